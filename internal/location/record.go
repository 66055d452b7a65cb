// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

// Package location defines the location record exchanged between the
// upstream API, the gateway and the poller, plus the freshness policy both
// sides apply to it.
//
// Records decode leniently: any key the record does not model, or a modeled
// key with an unexpected JSON type, is kept verbatim and written back out on
// encode. Encoding always sorts keys so equal records produce equal bytes.
package location

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubetrack/internal/validation"
)

// ErrInvalidRecord marks a record without usable coordinates. Such a record
// is never cached, stored or displayed.
var ErrInvalidRecord = errors.New("invalid location record")

const (
	keyLat             = "lat"
	keyLng             = "lng"
	keyTimestamp       = "timestamp"
	keyAddress         = "address"
	keyContext         = "context"
	keyClosestLandmark = "closest_landmark"
	keyDistanceFromMan = "distance_from_man"
	keyNearbyLandmarks = "nearby_landmarks"
	keySource          = "source"
)

// Record is one reported position of the cube.
type Record struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`

	// Timestamp is the upstream report time, normally RFC 3339.
	Timestamp string `json:"timestamp,omitempty"`
	Address   string `json:"address,omitempty"`
	Source    string `json:"source,omitempty"`

	Context         json.RawMessage   `json:"context,omitempty"`
	ClosestLandmark json.RawMessage   `json:"closest_landmark,omitempty"`
	DistanceFromMan json.RawMessage   `json:"distance_from_man,omitempty"`
	NearbyLandmarks []json.RawMessage `json:"nearby_landmarks,omitempty"`

	// Extra holds every other upstream key, untouched.
	Extra map[string]json.RawMessage `json:"-"`
}

// NewRecord returns a record with just coordinates and a timestamp.
func NewRecord(lat, lng float64, timestamp string) Record {
	return Record{Lat: &lat, Lng: &lng, Timestamp: timestamp}
}

// Validate returns an error wrapping ErrInvalidRecord when lat or lng is
// missing or out of range.
func (r *Record) Validate() error {
	if verr := validation.ValidateStruct(r); verr != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, verr.Error())
	}
	return nil
}

// Clone returns a deep copy that shares no memory with r.
func (r Record) Clone() Record {
	c := r
	c.Lat = cloneFloat(r.Lat)
	c.Lng = cloneFloat(r.Lng)
	c.Context = cloneRaw(r.Context)
	c.ClosestLandmark = cloneRaw(r.ClosestLandmark)
	c.DistanceFromMan = cloneRaw(r.DistanceFromMan)
	if r.NearbyLandmarks != nil {
		c.NearbyLandmarks = make([]json.RawMessage, len(r.NearbyLandmarks))
		for i, v := range r.NearbyLandmarks {
			c.NearbyLandmarks[i] = cloneRaw(v)
		}
	}
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = cloneRaw(v)
		}
	}
	return c
}

// MarshalJSON writes modeled and passthrough keys as one sorted object.
func (r Record) MarshalJSON() ([]byte, error) {
	m, err := r.fields()
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts any JSON object. It only fails when data is not an
// object (or null).
func (r *Record) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var rec Record
	rec.setFields(m)
	*r = rec
	return nil
}

func (r Record) fields() (map[string]json.RawMessage, error) {
	m := make(map[string]json.RawMessage, len(r.Extra)+9)
	for k, v := range r.Extra {
		if isAnnotationKey(k) {
			continue
		}
		m[k] = v
	}

	var err error
	put := func(key string, v any) {
		if err != nil {
			return
		}
		var b []byte
		if b, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("encode %s: %w", key, err)
			return
		}
		m[key] = b
	}

	if r.Lat != nil {
		put(keyLat, *r.Lat)
	}
	if r.Lng != nil {
		put(keyLng, *r.Lng)
	}
	if r.Timestamp != "" {
		put(keyTimestamp, r.Timestamp)
	}
	if r.Address != "" {
		put(keyAddress, r.Address)
	}
	if r.Source != "" {
		put(keySource, r.Source)
	}
	if len(r.Context) > 0 {
		m[keyContext] = r.Context
	}
	if len(r.ClosestLandmark) > 0 {
		m[keyClosestLandmark] = r.ClosestLandmark
	}
	if len(r.DistanceFromMan) > 0 {
		m[keyDistanceFromMan] = r.DistanceFromMan
	}
	if r.NearbyLandmarks != nil {
		put(keyNearbyLandmarks, r.NearbyLandmarks)
	}
	return m, err
}

// setFields consumes the modeled keys from m and keeps the rest as Extra.
// Values of the wrong JSON type stay in Extra under their original key.
// Annotation keys are discarded.
func (r *Record) setFields(m map[string]json.RawMessage) {
	for _, k := range annotationKeys {
		delete(m, k)
	}
	take := func(key string) (json.RawMessage, bool) {
		raw, ok := m[key]
		if !ok {
			return nil, false
		}
		delete(m, key)
		if isNull(raw) {
			return nil, false
		}
		return raw, true
	}
	keep := func(key string, raw json.RawMessage) {
		if m == nil {
			m = make(map[string]json.RawMessage)
		}
		m[key] = raw
	}

	number := func(key string) *float64 {
		raw, ok := take(key)
		if !ok {
			return nil
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			keep(key, raw)
			return nil
		}
		return &f
	}
	str := func(key string) string {
		raw, ok := take(key)
		if !ok {
			return ""
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			keep(key, raw)
			return ""
		}
		return s
	}
	opaque := func(key string) json.RawMessage {
		raw, _ := take(key)
		return cloneRaw(raw)
	}

	r.Lat = number(keyLat)
	r.Lng = number(keyLng)
	r.Timestamp = str(keyTimestamp)
	r.Address = str(keyAddress)
	r.Source = str(keySource)
	r.Context = opaque(keyContext)
	r.ClosestLandmark = opaque(keyClosestLandmark)
	r.DistanceFromMan = opaque(keyDistanceFromMan)

	if raw, ok := take(keyNearbyLandmarks); ok {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			keep(keyNearbyLandmarks, raw)
		} else {
			for i := range list {
				list[i] = cloneRaw(list[i])
			}
			r.NearbyLandmarks = list
		}
	}

	if len(m) > 0 {
		r.Extra = make(map[string]json.RawMessage, len(m))
		for k, v := range m {
			r.Extra[k] = cloneRaw(v)
		}
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
