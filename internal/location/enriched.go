// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

package location

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const (
	keyCached         = "cached"
	keyStale          = "stale"
	keyCacheAge       = "cache_age"
	keyCacheExpiresIn = "cache_expires_in"
	keyFetchedAt      = "fetched_at"
	keyAPIError       = "api_error"
	keyIsStale        = "is_stale"
	keyIsExpired      = "is_expired"
)

// annotationKeys are owned by Annotations. A record never carries them as
// passthrough, so an upstream body cannot claim a cache state it does not have.
var annotationKeys = []string{
	keyCached, keyStale, keyCacheAge, keyCacheExpiresIn,
	keyFetchedAt, keyAPIError, keyIsStale, keyIsExpired,
}

func isAnnotationKey(key string) bool {
	for _, k := range annotationKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Annotations describe how a record was served. The gateway sets the first
// six; the poller adds IsStale and IsExpired after classifying its age.
type Annotations struct {
	Cached         bool   `json:"cached"`
	Stale          bool   `json:"stale,omitempty"`
	CacheAge       *int64 `json:"cache_age,omitempty"`
	CacheExpiresIn *int64 `json:"cache_expires_in,omitempty"`
	FetchedAt      string `json:"fetched_at,omitempty"`
	APIError       string `json:"api_error,omitempty"`

	IsStale   bool `json:"is_stale,omitempty"`
	IsExpired bool `json:"is_expired,omitempty"`
}

// Enriched is a record plus its annotations, encoded as one flat object.
type Enriched struct {
	Record
	Annotations
}

// Clone returns a deep copy of e.
func (e Enriched) Clone() Enriched {
	return Enriched{
		Record: e.Record.Clone(),
		Annotations: Annotations{
			Cached:         e.Cached,
			Stale:          e.Stale,
			CacheAge:       cloneInt(e.CacheAge),
			CacheExpiresIn: cloneInt(e.CacheExpiresIn),
			FetchedAt:      e.FetchedAt,
			APIError:       e.APIError,
			IsStale:        e.IsStale,
			IsExpired:      e.IsExpired,
		},
	}
}

// FetchedTime parses FetchedAt. ok is false when it is empty or unparsable.
func (e *Enriched) FetchedTime() (t time.Time, ok bool) {
	if e.FetchedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, e.FetchedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MarshalJSON flattens the annotations into the record object.
func (e Enriched) MarshalJSON() ([]byte, error) {
	m, err := e.Record.fields()
	if err != nil {
		return nil, err
	}

	set := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		m[key] = b
		return nil
	}

	if err := set(keyCached, e.Cached); err != nil {
		return nil, err
	}
	type opt struct {
		key  string
		v    any
		when bool
	}
	for _, o := range []opt{
		{keyStale, e.Stale, e.Stale},
		{keyCacheAge, e.CacheAge, e.CacheAge != nil},
		{keyCacheExpiresIn, e.CacheExpiresIn, e.CacheExpiresIn != nil},
		{keyFetchedAt, e.FetchedAt, e.FetchedAt != ""},
		{keyAPIError, e.APIError, e.APIError != ""},
		{keyIsStale, e.IsStale, e.IsStale},
		{keyIsExpired, e.IsExpired, e.IsExpired},
	} {
		if !o.when {
			continue
		}
		if err := set(o.key, o.v); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

// UnmarshalJSON splits annotation keys back out of the object.
func (e *Enriched) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	var out Enriched
	pull := func(key string, dst any) {
		raw, ok := m[key]
		if !ok {
			return
		}
		// A value of the wrong type is left in m; setFields drops it.
		if isNull(raw) || json.Unmarshal(raw, dst) == nil {
			delete(m, key)
		}
	}

	pull(keyCached, &out.Cached)
	pull(keyStale, &out.Stale)
	pull(keyCacheAge, &out.CacheAge)
	pull(keyCacheExpiresIn, &out.CacheExpiresIn)
	pull(keyFetchedAt, &out.FetchedAt)
	pull(keyAPIError, &out.APIError)
	pull(keyIsStale, &out.IsStale)
	pull(keyIsExpired, &out.IsExpired)

	out.Record.setFields(m)
	*e = out
	return nil
}

// ErrorRecord is the body served when no location has ever been obtained.
type ErrorRecord struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Seconds converts d to whole seconds for the cache_age style fields.
// Negative durations become zero.
func Seconds(d time.Duration) *int64 {
	s := int64(d / time.Second)
	if s < 0 {
		s = 0
	}
	return &s
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
