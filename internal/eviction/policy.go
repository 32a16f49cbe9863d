package eviction

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// Notice is a user-facing signal that a location was auto-removed. When the
// failing location was the focused selection, ClosedFocus tells the
// presentation layer to close the detail view.
type Notice struct {
	Location    string `json:"location"`
	ClosedFocus bool   `json:"closedFocus"`
}

// Favorites is the slice of the favorites set the policy mutates.
type Favorites interface {
	Contains(name string) bool
	Remove(name string) (string, bool)
}

// Policy enforces the rule that a location the provider cannot resolve must
// not remain a favorite or a focused selection. It observes cache entry
// transitions and reacts at most once per failing key per failure episode;
// a new subscription on the key re-arms it.
type Policy struct {
	favorites Favorites
	logger    *zap.Logger

	mu          sync.Mutex
	fired       map[string]bool
	focused     string // normalized key of the detail-view selection; empty when none
	focusedName string // display name of the selection, kept for notices
	pending     []Notice
}

// NewPolicy creates a Policy and registers it on the store's hooks.
func NewPolicy(store *cache.Store, favorites Favorites, logger *zap.Logger) *Policy {
	p := &Policy{
		favorites: favorites,
		logger:    logger,
		fired:     make(map[string]bool),
	}
	store.OnTransition(p.handleTransition)
	store.OnSubscribe(p.handleSubscribe)
	return p
}

// SetFocus records the detail-view selection.
func (p *Policy) SetFocus(name string) {
	p.mu.Lock()
	p.focused = weather.NormalizeKey(name)
	p.focusedName = strings.TrimSpace(name)
	p.mu.Unlock()
}

// ClearFocus drops the detail-view selection.
func (p *Policy) ClearFocus() {
	p.mu.Lock()
	p.focused = ""
	p.focusedName = ""
	p.mu.Unlock()
}

// Focused returns the normalized key of the current selection, empty when none.
func (p *Policy) Focused() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focused
}

// Drain returns and clears all pending notices.
func (p *Policy) Drain() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.pending
	p.pending = nil
	return out
}

func (p *Policy) handleSubscribe(key string) {
	p.mu.Lock()
	delete(p.fired, key)
	p.mu.Unlock()
}

func (p *Policy) handleTransition(tr cache.Transition) {
	if tr.To != cache.StatusFailed || tr.ErrorKind != weather.ErrorNotFound {
		return
	}

	p.mu.Lock()
	if p.fired[tr.Key] {
		p.mu.Unlock()
		return
	}
	wasFocused := p.focused == tr.Key
	p.mu.Unlock()

	// Transient failures never reach here; only a terminal not-found on a
	// favorite or the focused selection triggers eviction.
	if !p.favorites.Contains(tr.Key) && !wasFocused {
		return
	}

	p.mu.Lock()
	if p.fired[tr.Key] {
		p.mu.Unlock()
		return
	}
	p.fired[tr.Key] = true
	var focusName string
	if wasFocused {
		focusName = p.focusedName
		p.focused = ""
		p.focusedName = ""
	}
	p.mu.Unlock()

	// Prefer the display casing the user knows: the stored favorite name,
	// then the focused selection as typed, then the normalized key.
	name, removed := p.favorites.Remove(tr.Key)
	if name == "" {
		name = focusName
	}
	if name == "" {
		name = tr.Key
	}
	if removed {
		metrics.EvictionsTotal.Inc()
	}

	p.logger.Info("evicted unresolvable location",
		zap.String("location", name),
		zap.Bool("closedFocus", wasFocused))

	p.mu.Lock()
	p.pending = append(p.pending, Notice{Location: name, ClosedFocus: wasFocused})
	p.mu.Unlock()
}
