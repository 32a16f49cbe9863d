package eviction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/favorites"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

var errNoMatch = &weather.APIError{StatusCode: 400, Code: 1006, Message: "No matching location found."}

// scriptedFetcher fails or succeeds per location.
type scriptedFetcher struct {
	mu   sync.Mutex
	errs map[string]error
}

func (f *scriptedFetcher) Forecast(ctx context.Context, location string, days int) (*weather.ForecastSnapshot, error) {
	f.mu.Lock()
	err := f.errs[location]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &weather.ForecastSnapshot{}, nil
}

type nullStore struct{}

func (nullStore) Load() ([]string, error)   { return nil, nil }
func (nullStore) Save(names []string) error { return nil }

type fixture struct {
	store  *cache.Store
	favs   *favorites.Set
	policy *Policy
	trs    chan cache.Transition
}

func newFixture(t *testing.T, fetcher cache.Fetcher, names ...string) *fixture {
	t.Helper()

	store := cache.NewStore(fetcher, clockwork.NewFakeClock(), zap.NewNop(), cache.Config{})
	favs := favorites.NewSet(nullStore{}, zap.NewNop())
	for _, name := range names {
		favs.Add(name)
	}

	// Policy registers first so its reaction settles before the test observer.
	policy := NewPolicy(store, favs, zap.NewNop())

	trs := make(chan cache.Transition, 32)
	store.OnTransition(func(tr cache.Transition) { trs <- tr })

	return &fixture{store: store, favs: favs, policy: policy, trs: trs}
}

func (f *fixture) waitFailed(t *testing.T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case tr := <-f.trs:
			if tr.To == cache.StatusFailed {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for a failed transition")
		}
	}
}

func TestNotFoundFavoriteEvictedOnce(t *testing.T) {
	fetcher := &scriptedFetcher{errs: map[string]error{"atlantis": errNoMatch}}
	fx := newFixture(t, fetcher, "Atlantis")

	fx.store.Subscribe("Atlantis")
	fx.waitFailed(t)

	assert.False(t, fx.favs.Contains("Atlantis"))

	notices := fx.policy.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, "Atlantis", notices[0].Location)
	assert.False(t, notices[0].ClosedFocus)

	// A further failure in the same episode must not re-fire.
	fx.store.ForceRefresh("atlantis")
	fx.waitFailed(t)
	assert.Empty(t, fx.policy.Drain())
}

func TestResubscribeRearmsEviction(t *testing.T) {
	fetcher := &scriptedFetcher{errs: map[string]error{"atlantis": errNoMatch}}
	fx := newFixture(t, fetcher, "Atlantis")

	fx.store.Subscribe("Atlantis")
	fx.waitFailed(t)
	require.Len(t, fx.policy.Drain(), 1)

	// The user re-adds the location and subscribes again: a fresh failure
	// episode begins and the policy may fire again.
	fx.favs.Add("Atlantis")
	fx.store.Subscribe("Atlantis")
	fx.waitFailed(t)

	assert.False(t, fx.favs.Contains("Atlantis"))
	assert.Len(t, fx.policy.Drain(), 1)
}

func TestFocusedFailureClosesDetailView(t *testing.T) {
	fetcher := &scriptedFetcher{errs: map[string]error{"atlantis": errNoMatch}}
	fx := newFixture(t, fetcher, "Atlantis")

	fx.policy.SetFocus("Atlantis")
	fx.store.Subscribe("Atlantis")
	fx.waitFailed(t)

	notices := fx.policy.Drain()
	require.Len(t, notices, 1)
	assert.True(t, notices[0].ClosedFocus)
	assert.Equal(t, "Atlantis", notices[0].Location)
	assert.Equal(t, "", fx.policy.Focused())
}

func TestFocusedNonFavoriteStillCloses(t *testing.T) {
	fetcher := &scriptedFetcher{errs: map[string]error{"atlantis": errNoMatch}}
	fx := newFixture(t, fetcher) // not a favorite

	fx.policy.SetFocus("Atlantis")
	fx.store.Subscribe("Atlantis")
	fx.waitFailed(t)

	notices := fx.policy.Drain()
	require.Len(t, notices, 1)
	assert.True(t, notices[0].ClosedFocus)
	// With no favorite to take the name from, the notice carries the
	// selection as the user typed it, not the normalized key.
	assert.Equal(t, "Atlantis", notices[0].Location)
	assert.Equal(t, "", fx.policy.Focused())
}

func TestTransientFailureDoesNotEvict(t *testing.T) {
	fetcher := &scriptedFetcher{errs: map[string]error{"london": context.DeadlineExceeded}}
	fx := newFixture(t, fetcher, "London")

	fx.store.Subscribe("London")
	fx.waitFailed(t)

	assert.True(t, fx.favs.Contains("London"))
	assert.Empty(t, fx.policy.Drain())
}

func TestNonFavoriteUnfocusedFailureIgnored(t *testing.T) {
	fetcher := &scriptedFetcher{errs: map[string]error{"atlantis": errNoMatch}}
	fx := newFixture(t, fetcher, "London")

	fx.store.Subscribe("Atlantis")
	fx.waitFailed(t)

	assert.Empty(t, fx.policy.Drain())
	assert.True(t, fx.favs.Contains("London"))
}
