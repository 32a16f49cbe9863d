package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Status is the lifecycle state of a cache entry.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Fetcher is the outbound contract the store needs from the forecast client.
type Fetcher interface {
	Forecast(ctx context.Context, location string, days int) (*weather.ForecastSnapshot, error)
}

// PollScheduler drives periodic refreshes while a key has subscribers.
type PollScheduler interface {
	Start(key string)
	Stop(key string)
}

// EntryView is a read-only copy of an entry's state, safe to hand to readers.
type EntryView struct {
	Key          string                    `json:"key"`
	Status       Status                    `json:"status"`
	Snapshot     *weather.ForecastSnapshot `json:"snapshot,omitempty"`
	FetchedAt    time.Time                 `json:"fetchedAt,omitempty"`
	ErrorKind    weather.ErrorKind         `json:"errorKind,omitempty"`
	ErrorMessage string                    `json:"errorMessage,omitempty"`
	Subscribers  int                       `json:"subscribers"`
}

// Transition describes a status change for one key. Delivered to observers
// outside the store lock.
type Transition struct {
	Key       string
	From      Status
	To        Status
	ErrorKind weather.ErrorKind
}

type entry struct {
	key         string
	status      Status
	snapshot    *weather.ForecastSnapshot
	fetchedAt   time.Time
	errKind     weather.ErrorKind
	errMessage  string
	inFlight    string // request token of the current outstanding fetch; empty when none
	subscribers int
}

// Config holds the store's timing knobs.
type Config struct {
	// FreshnessWindow is how long a Ready entry is served without refetching.
	FreshnessWindow time.Duration
	// FetchTimeout bounds a single outbound forecast call.
	FetchTimeout time.Duration
	// ForecastDays is the number of days requested per fetch.
	ForecastDays int
}

func (c *Config) applyDefaults() {
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = 60 * time.Second
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.ForecastDays <= 0 {
		c.ForecastDays = 7
	}
}

// Store is the keyed forecast cache. It collapses concurrent interest in a
// key into a single in-flight request, tracks freshness, and guards entry
// updates with per-request tokens so a superseded fetch can never clobber a
// newer result.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	handles map[string]string // subscription handle -> key

	fetcher Fetcher
	clock   clockwork.Clock
	logger  *zap.Logger
	poller  PollScheduler
	cfg     Config

	transitionFns []func(Transition)
	subscribeFns  []func(key string)
}

// NewStore creates a Store. Wire a PollScheduler with SetPoller before the
// first Subscribe call.
func NewStore(fetcher Fetcher, clock clockwork.Clock, logger *zap.Logger, cfg Config) *Store {
	cfg.applyDefaults()
	return &Store{
		entries: make(map[string]*entry),
		handles: make(map[string]string),
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
		cfg:     cfg,
	}
}

// SetPoller attaches the subscription manager. Called once at composition.
func (s *Store) SetPoller(p PollScheduler) {
	s.poller = p
}

// OnTransition registers an observer for entry status changes. Register
// before the store is in use; observers run outside the store lock.
func (s *Store) OnTransition(fn func(Transition)) {
	s.transitionFns = append(s.transitionFns, fn)
}

// OnSubscribe registers an observer for new subscriptions on a key.
func (s *Store) OnSubscribe(fn func(key string)) {
	s.subscribeFns = append(s.subscribeFns, fn)
}

// Subscribe registers interest in a location and returns an opaque handle.
// The first subscriber starts the poll timer for the key. A fetch is
// triggered iff the entry is Idle, Failed, or stale; a fetch already in
// flight is shared (request dedup), and a fresh Ready entry is served as is.
// A configuration failure is terminal and never refetched.
func (s *Store) Subscribe(name string) string {
	key := weather.NormalizeKey(name)
	handle := uuid.NewString()

	s.mu.Lock()
	e := s.entryLocked(key)
	e.subscribers++
	first := e.subscribers == 1
	s.handles[handle] = key

	var tr *Transition
	switch {
	case e.status == StatusPending:
		// Attach to the in-flight fetch; no duplicate network call.
		metrics.FetchDedupTotal.Inc()
	case configFailedLocked(e):
		// Configuration failures are fatal until a restart; serve the
		// Failed view without retrying.
	case e.status == StatusIdle || e.status == StatusFailed || s.staleLocked(e):
		t := s.beginFetchLocked(e)
		tr = &t
	default:
		metrics.CacheFreshHitsTotal.Inc()
	}
	s.mu.Unlock()

	if first && s.poller != nil {
		s.poller.Start(key)
	}
	for _, fn := range s.subscribeFns {
		fn(key)
	}
	if tr != nil {
		s.fire(*tr)
	}
	return handle
}

// Unsubscribe drops interest. When the last subscriber for a key leaves, the
// poll timer is cancelled synchronously; the cached snapshot is retained so a
// later resubscribe is cheap. Unknown handles are ignored.
func (s *Store) Unsubscribe(handle string) {
	s.mu.Lock()
	key, ok := s.handles[handle]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.handles, handle)

	last := false
	if e, ok := s.entries[key]; ok && e.subscribers > 0 {
		e.subscribers--
		last = e.subscribers == 0
	}
	s.mu.Unlock()

	if last && s.poller != nil {
		s.poller.Stop(key)
	}
}

// Snapshot returns a copy of the entry state for a location. Unknown keys
// read as Idle.
func (s *Store) Snapshot(name string) EntryView {
	key := weather.NormalizeKey(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return EntryView{Key: key, Status: StatusIdle}
	}
	return EntryView{
		Key:          e.key,
		Status:       e.status,
		Snapshot:     e.snapshot,
		FetchedAt:    e.fetchedAt,
		ErrorKind:    e.errKind,
		ErrorMessage: e.errMessage,
		Subscribers:  e.subscribers,
	}
}

// ForceRefresh starts a new fetch regardless of freshness. Minting a new
// token invalidates any in-flight request, whose result will be discarded
// when it arrives.
func (s *Store) ForceRefresh(name string) {
	key := weather.NormalizeKey(name)

	s.mu.Lock()
	e := s.entryLocked(key)
	tr := s.beginFetchLocked(e)
	s.mu.Unlock()

	s.fire(tr)
}

// Poll is the timer-tick refresh path. It refetches regardless of freshness
// but shares the dedup discipline with Subscribe: a tick that lands while a
// fetch (for example a manual refresh) is in flight does not double-fetch. A
// tick for a key nobody subscribes to, or one stuck on a configuration
// failure, is a no-op.
func (s *Store) Poll(name string) {
	key := weather.NormalizeKey(name)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.subscribers == 0 || e.status == StatusPending || configFailedLocked(e) {
		s.mu.Unlock()
		return
	}
	metrics.PollTicksTotal.Inc()
	tr := s.beginFetchLocked(e)
	s.mu.Unlock()

	s.fire(tr)
}

func (s *Store) entryLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key, status: StatusIdle}
		s.entries[key] = e
	}
	return e
}

func configFailedLocked(e *entry) bool {
	return e.status == StatusFailed && e.errKind == weather.ErrorConfiguration
}

func (s *Store) staleLocked(e *entry) bool {
	if e.status != StatusReady {
		return false
	}
	return s.clock.Since(e.fetchedAt) > s.cfg.FreshnessWindow
}

// beginFetchLocked transitions the entry to Pending under a fresh request
// token and dispatches the fetch goroutine.
func (s *Store) beginFetchLocked(e *entry) Transition {
	from := e.status
	token := uuid.NewString()
	e.inFlight = token
	e.status = StatusPending
	go s.fetch(e.key, token)
	return Transition{Key: e.key, From: from, To: StatusPending}
}

func (s *Store) fetch(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
	defer cancel()

	snap, err := s.fetcher.Forecast(ctx, key, s.cfg.ForecastDays)

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || e.inFlight != token {
		// Superseded by a newer fetch for the same key; never apply.
		s.mu.Unlock()
		metrics.FetchesDiscardedTotal.Inc()
		s.logger.Debug("discarded superseded fetch result", zap.String("key", key))
		return
	}

	from := e.status
	e.inFlight = ""

	var tr Transition
	if err != nil {
		kind := weather.Classify(err)
		e.status = StatusFailed
		e.errKind = kind
		e.errMessage = err.Error()
		tr = Transition{Key: key, From: from, To: StatusFailed, ErrorKind: kind}
		metrics.FetchesTotal.WithLabelValues(string(kind)).Inc()
		s.logger.Warn("forecast fetch failed",
			zap.String("key", key),
			zap.String("kind", string(kind)),
			zap.Error(err))
	} else {
		e.status = StatusReady
		e.snapshot = snap
		e.fetchedAt = s.clock.Now().UTC()
		e.errKind = weather.ErrorNone
		e.errMessage = ""
		tr = Transition{Key: key, From: from, To: StatusReady}
		metrics.FetchesTotal.WithLabelValues("ok").Inc()
	}
	s.mu.Unlock()

	s.fire(tr)
}

func (s *Store) fire(tr Transition) {
	for _, fn := range s.transitionFns {
		fn(tr)
	}
}
