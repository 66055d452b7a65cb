// Cubetrack - Live Location Mirror for a Roaming Art Installation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubetrack

// Package poller implements the client side: it polls the gateway, adapts its
// cadence to how the gateway is doing, and persists the last good record so a
// restart has something to show immediately.
//
// One goroutine owns the timer, the fetch and the state update, and fans out
// to observers in that order. State is behind a mutex only so other
// goroutines can read it.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cubetrack/internal/config"
	"github.com/tomtom215/cubetrack/internal/location"
	"github.com/tomtom215/cubetrack/internal/logging"
	"github.com/tomtom215/cubetrack/internal/metrics"
	"github.com/tomtom215/cubetrack/internal/store"
)

// Record sources.
const (
	SourceStorage = "storage"
	SourceLive    = "live"
	SourceStatic  = "static"
)

// DefaultStorageKey is where the snapshot lives.
const DefaultStorageKey = "cube_location_cache"

var (
	// ErrStaticMode is returned by Refresh when the poller serves a fixed record.
	ErrStaticMode = errors.New("poller is in static mode")
	// ErrRefreshThrottled is returned by Refresh when called too often.
	ErrRefreshThrottled = errors.New("manual refresh throttled")
	// ErrNotRunning is returned by Refresh before Start or after Stop.
	ErrNotRunning = errors.New("poller is not running")
	// ErrAlreadyRunning is returned by Start when the poller is running.
	ErrAlreadyRunning = errors.New("poller is already running")
)

// Storage is the persistence port. Get returns an error matching
// store.ErrNotFound for a missing key.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Clear(key string) error
}

// PersistenceError wraps a storage failure. It is reported to error
// observers and otherwise treated as empty state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Config tunes a Poller.
type Config struct {
	PollInterval    time.Duration
	SlowInterval    time.Duration
	OfflineInterval time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	HistoryLimit    int
	Policy          location.Policy
	StorageKey      string

	// RefreshEvery is the minimum spacing of manual refreshes.
	RefreshEvery time.Duration

	// StaticRecord switches the poller to static mode.
	StaticRecord *location.Record
}

// DefaultConfig returns 5m/30m/60m, 3 retries from 5s, 50 history entries and
// the default freshness policy.
func DefaultConfig() Config {
	return Config{
		PollInterval:    5 * time.Minute,
		SlowInterval:    30 * time.Minute,
		OfflineInterval: 60 * time.Minute,
		MaxRetries:      3,
		RetryDelay:      5 * time.Second,
		HistoryLimit:    50,
		Policy:          location.DefaultPolicy(),
		StorageKey:      DefaultStorageKey,
		RefreshEvery:    10 * time.Second,
	}
}

// ConfigFrom builds a Config from the loaded application config.
func ConfigFrom(cfg *config.Config) Config {
	c := DefaultConfig()
	c.PollInterval = cfg.Client.PollInterval
	c.SlowInterval = cfg.Client.SlowInterval
	c.OfflineInterval = cfg.Client.OfflineInterval
	c.MaxRetries = cfg.Client.MaxRetries
	c.RetryDelay = cfg.Client.RetryDelay
	c.HistoryLimit = cfg.Client.HistoryLimit
	c.Policy = location.Policy{
		StaleAfter:  cfg.Cache.StaleThreshold,
		ExpireAfter: cfg.Cache.ExpiredThreshold,
	}
	return c
}

// State is a copy of the poller's counters.
type State struct {
	CurrentInterval     time.Duration `json:"current_interval"`
	RetryCount          int           `json:"retry_count"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSuccessfulFetch time.Time     `json:"last_successful_fetch"`
	IsStaticMode        bool          `json:"is_static_mode"`
	Status              Status        `json:"status"`
}

// StatusChange is delivered to status observers.
type StatusChange struct {
	From  Status
	To    Status
	State State
}

// PollError is delivered to error observers. Attempt is 0 for errors outside
// a fetch (persistence). Final marks the attempt that ended the cycle.
type PollError struct {
	Err     error
	Attempt int
	Final   bool
}

// Poller is the adaptive client.
type Poller struct {
	cfg     Config
	fetcher Fetcher
	store   Storage
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	log     zerolog.Logger
	refresh *rate.Limiter

	locations *registry[location.Enriched]
	statuses  *registry[StatusChange]
	errs      *registry[PollError]

	mu        sync.Mutex
	state     State
	history   []location.Enriched
	last      *location.Enriched
	running   bool
	started   bool
	gen       uint64
	cancel    context.CancelFunc
	refreshCh chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// WithSleep replaces the backoff wait. It must return ctx.Err() when ctx is
// cancelled first.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Poller) { p.sleep = sleep }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// New builds a poller. fetcher may be nil in static mode.
func New(fetcher Fetcher, s Storage, cfg Config, opts ...Option) (*Poller, error) {
	if s == nil {
		s = store.NewMemoryStore()
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("history limit must be at least 1, got %d", cfg.HistoryLimit)
	}
	if cfg.PollInterval <= 0 || cfg.SlowInterval <= 0 || cfg.OfflineInterval <= 0 {
		return nil, errors.New("poll intervals must be positive")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = DefaultConfig().RefreshEvery
	}
	if cfg.StaticRecord != nil {
		if err := cfg.StaticRecord.Validate(); err != nil {
			return nil, fmt.Errorf("static record: %w", err)
		}
	} else if fetcher == nil {
		return nil, errors.New("fetcher is required outside static mode")
	}

	p := &Poller{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     s,
		now:       time.Now,
		sleep:     sleepContext,
		log:       logging.WithComponent("poller"),
		refresh:   rate.NewLimiter(rate.Every(cfg.RefreshEvery), 1),
		refreshCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.locations = newRegistry[location.Enriched]("location", &p.log)
	p.statuses = newRegistry[StatusChange]("status", &p.log)
	p.errs = newRegistry[PollError]("error", &p.log)

	p.state = State{CurrentInterval: cfg.PollInterval, Status: StatusOnline}
	if cfg.StaticRecord != nil {
		p.state.IsStaticMode = true
		p.state.Status = StatusStatic
	}
	return p, nil
}

// OnLocation registers fn for every published record.
func (p *Poller) OnLocation(fn func(location.Enriched)) *Subscription {
	return p.locations.add(fn)
}

// OnStatus registers fn for status transitions.
func (p *Poller) OnStatus(fn func(StatusChange)) *Subscription {
	return p.statuses.add(fn)
}

// OnError registers fn for fetch and persistence errors.
func (p *Poller) OnError(fn func(PollError)) *Subscription {
	return p.errs.add(fn)
}

// Start publishes the stored snapshot (first start only) and then begins
// polling, or in static mode publishes the static record once.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}
	p.running = true
	p.gen++
	gen := p.gen
	first := !p.started
	p.started = true
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	if first {
		p.restore(gen)
	}

	if p.cfg.StaticRecord != nil {
		if first {
			p.injectStatic(gen)
		}
		return nil
	}

	go p.loop(loopCtx, gen)
	return nil
}

// Stop cancels the timer and any pending backoff. A fetch still in flight is
// discarded when it returns. State and history are kept for the next Start.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.gen++
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Running reports whether Start was called without a matching Stop.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Refresh asks the loop to run a cycle now instead of waiting for the timer.
func (p *Poller) Refresh() error {
	if p.cfg.StaticRecord != nil {
		return ErrStaticMode
	}
	if !p.Running() {
		return ErrNotRunning
	}
	if !p.refresh.Allow() {
		return ErrRefreshThrottled
	}
	select {
	case p.refreshCh <- struct{}{}:
	default:
		// One is already queued.
	}
	return nil
}

// State returns a copy of the counters.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns the most recent fresh records, oldest first.
func (p *Poller) History() []location.Enriched {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]location.Enriched, len(p.history))
	for i, e := range p.history {
		out[i] = e.Clone()
	}
	return out
}

// LastLocation returns the last published record.
func (p *Poller) LastLocation() (location.Enriched, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return location.Enriched{}, false
	}
	return p.last.Clone(), true
}

// ClearCache removes the persisted snapshot and the in-memory history.
func (p *Poller) ClearCache() error {
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()

	if err := p.store.Clear(p.cfg.StorageKey); err != nil {
		perr := &PersistenceError{Op: "clear", Err: err}
		p.reportPersistence(perr)
		return perr
	}
	return nil
}

func (p *Poller) loop(ctx context.Context, gen uint64) {
	p.cycle(ctx, gen)

	for {
		timer := time.NewTimer(p.State().CurrentInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-p.refreshCh:
			timer.Stop()
		}
		p.cycle(ctx, gen)
	}
}

// cycle makes one attempt plus up to MaxRetries retries.
func (p *Poller) cycle(ctx context.Context, gen uint64) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if !p.setRetryCount(gen, attempt) {
				return
			}
			if err := p.sleep(ctx, p.cfg.backoff(attempt)); err != nil {
				return
			}
		}

		rec, err := p.fetchOnce(ctx)
		if ctx.Err() != nil || !p.isCurrent(gen) {
			return
		}
		if err == nil {
			p.onSuccess(gen, rec)
			return
		}

		lastErr = err
		final := attempt == p.cfg.MaxRetries
		p.log.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", p.cfg.MaxRetries+1).Msg("Location fetch failed")
		p.errs.emit(func() PollError { return PollError{Err: err, Attempt: attempt + 1, Final: final} })
	}
	p.onFailure(gen, lastErr)
}

func (p *Poller) fetchOnce(ctx context.Context) (*location.Enriched, error) {
	rec, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, location.ErrInvalidRecord
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *Poller) onSuccess(gen uint64, rec *location.Enriched) {
	now := p.now()
	e := rec.Clone()
	e.Source = SourceLive
	p.tag(&e, now)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	from := p.state.Status
	p.state.RetryCount = 0
	p.state.ConsecutiveFailures = 0
	p.state.CurrentInterval, p.state.Status = p.cfg.schedule(0)
	p.state.LastSuccessfulFetch = now
	if !e.IsStale {
		p.appendHistoryLocked(e)
	}
	last := e.Clone()
	p.last = &last
	snap := p.snapshotLocked(now)
	state := p.state
	p.mu.Unlock()

	metrics.RecordPollerCycle(true, 0, state.CurrentInterval)
	p.log.Debug().Bool("stale", e.IsStale).Bool("expired", e.IsExpired).Msg("Location updated")

	p.persist(snap)
	if !p.isCurrent(gen) {
		return
	}
	if from != state.Status {
		p.statuses.emit(func() StatusChange { return StatusChange{From: from, To: state.Status, State: state} })
	}
	p.locations.emit(e.Clone)
}

func (p *Poller) onFailure(gen uint64, err error) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	from := p.state.Status
	p.state.ConsecutiveFailures++
	p.state.CurrentInterval, p.state.Status = p.cfg.schedule(p.state.ConsecutiveFailures)
	state := p.state
	p.mu.Unlock()

	metrics.RecordPollerCycle(false, state.ConsecutiveFailures, state.CurrentInterval)
	p.log.Error().Err(err).
		Int("consecutive_failures", state.ConsecutiveFailures).
		Dur("next_interval", state.CurrentInterval).
		Str("status", string(state.Status)).
		Msg("Poll cycle failed")

	if from != state.Status {
		p.statuses.emit(func() StatusChange { return StatusChange{From: from, To: state.Status, State: state} })
	}
}

func (p *Poller) setRetryCount(gen uint64, n int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.state.RetryCount = n
	return true
}

func (p *Poller) isCurrent(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return gen == p.gen
}

// tag sets IsStale and IsExpired from the record's age. A record the server
// already flagged stale stays stale.
func (p *Poller) tag(e *location.Enriched, now time.Time) {
	age, ok := location.Age(e, now)
	if !ok && e.CacheAge != nil {
		age, ok = time.Duration(*e.CacheAge)*time.Second, true
	}
	freshness := location.Fresh
	if ok {
		freshness = p.cfg.Policy.Classify(age)
	}
	e.IsExpired = freshness == location.Expired
	e.IsStale = freshness != location.Fresh || e.Stale
}

func (p *Poller) appendHistoryLocked(e location.Enriched) {
	p.history = append(p.history, e.Clone())
	if over := len(p.history) - p.cfg.HistoryLimit; over > 0 {
		p.history = append([]location.Enriched(nil), p.history[over:]...)
	}
}

func (p *Poller) snapshotLocked(now time.Time) *Snapshot {
	s := &Snapshot{SavedAt: now.UTC(), Version: SnapshotVersion}
	if p.last != nil {
		last := p.last.Clone()
		s.LastLocation = &last
	}
	s.LocationHistory = make([]location.Enriched, len(p.history))
	for i, e := range p.history {
		s.LocationHistory[i] = e.Clone()
	}
	return s
}

func (p *Poller) persist(s *Snapshot) {
	data, err := encodeSnapshot(s)
	if err == nil {
		err = p.store.Set(p.cfg.StorageKey, data)
	}
	if err != nil {
		p.reportPersistence(&PersistenceError{Op: "save", Err: err})
	}
}

func (p *Poller) reportPersistence(err *PersistenceError) {
	metrics.PollerPersistErrors.WithLabelValues(err.Op).Inc()
	p.log.Warn().Err(err.Err).Str("operation", err.Op).Msg("Snapshot storage failed")
	p.errs.emit(func() PollError { return PollError{Err: err} })
}

// restore loads a usable snapshot and publishes its record with source
// storage. An unusable snapshot is left in place for the next save to replace.
func (p *Poller) restore(gen uint64) {
	data, err := p.store.Get(p.cfg.StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		p.reportPersistence(&PersistenceError{Op: "load", Err: err})
		return
	}

	now := p.now()
	snap, err := decodeSnapshot(data, now, p.cfg.Policy.ExpireAfter)
	if err != nil {
		p.log.Info().Err(err).Msg("Ignoring stored snapshot")
		return
	}

	e := snap.LastLocation.Clone()
	e.Source = SourceStorage
	p.tag(&e, now)

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.history = snap.LocationHistory
	if over := len(p.history) - p.cfg.HistoryLimit; over > 0 {
		p.history = p.history[over:]
	}
	last := e.Clone()
	p.last = &last
	p.mu.Unlock()

	p.log.Info().Time("saved_at", snap.SavedAt).Int("history", len(snap.LocationHistory)).Msg("Restored stored location")
	p.locations.emit(e.Clone)
}

func (p *Poller) injectStatic(gen uint64) {
	e := location.Enriched{Record: p.cfg.StaticRecord.Clone()}
	e.Source = SourceStatic

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	from := p.state.Status
	p.state.Status = StatusStatic
	p.state.IsStaticMode = true
	last := e.Clone()
	p.last = &last
	state := p.state
	p.mu.Unlock()

	p.log.Info().Msg("Static mode: serving embedded location")
	if from != state.Status {
		p.statuses.emit(func() StatusChange { return StatusChange{From: from, To: state.Status, State: state} })
	}
	p.locations.emit(e.Clone)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
