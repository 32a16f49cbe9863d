package search

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/i474232898/weather-dashboard/internal/metrics"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// minQueryLength is the minimum input length, in runes, before a lookup is
// issued.
const minQueryLength = 3

// lookupTimeout bounds a single outbound search call.
const lookupTimeout = 5 * time.Second

// Searcher is the outbound contract the coordinator needs from the client.
type Searcher interface {
	Search(ctx context.Context, query string) ([]weather.Location, error)
}

// Favorites is the slice of the favorites set the coordinator uses.
type Favorites interface {
	Add(name string) bool
}

// Batch is one delivered result set for a settled lookup.
type Batch struct {
	Query     string             `json:"query"`
	Locations []weather.Location `json:"locations"`
	Err       string             `json:"error,omitempty"`
}

// Coordinator debounces free-text location input and cancels superseded
// lookups. Each input change bumps a generation counter; a lookup result is
// delivered only while its generation is still current, so results are never
// delivered out of order or after a newer query has been issued.
type Coordinator struct {
	searcher  Searcher
	favorites Favorites
	clock     clockwork.Clock
	logger    *zap.Logger
	debounce  time.Duration

	mu     sync.Mutex
	gen    uint64
	query  string
	timer  clockwork.Timer
	cancel context.CancelFunc
	last   Batch

	results chan Batch
}

// NewCoordinator creates a Coordinator with the given debounce quiet period.
func NewCoordinator(searcher Searcher, favorites Favorites, clock clockwork.Clock, logger *zap.Logger, debounce time.Duration) *Coordinator {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Coordinator{
		searcher:  searcher,
		favorites: favorites,
		clock:     clock,
		logger:    logger,
		debounce:  debounce,
		results:   make(chan Batch, 1),
	}
}

// QueryChanged handles one input change. It supersedes any pending or
// in-flight lookup. Input shorter than three characters cancels everything
// and clears the results; longer input schedules a lookup after the quiet
// period, restarting the timer on every change.
func (c *Coordinator) QueryChanged(text string) {
	c.mu.Lock()
	c.query = text
	c.gen++
	gen := c.gen

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < minQueryLength {
		cleared := Batch{Query: text}
		c.last = cleared
		c.mu.Unlock()
		c.publish(cleared)
		return
	}

	c.timer = c.clock.AfterFunc(c.debounce, func() {
		c.dispatch(gen, trimmed)
	})
	c.mu.Unlock()
}

// dispatch runs after the quiet period. It re-checks the generation before
// and after the network call; a stale generation means a newer query
// superseded this one and its result must be discarded.
func (c *Coordinator) dispatch(gen uint64, query string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	c.cancel = cancel
	c.mu.Unlock()

	metrics.SearchLookupsTotal.Inc()
	locations, err := c.searcher.Search(ctx, query)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		metrics.SearchDiscardedTotal.Inc()
		c.logger.Debug("discarded superseded search result", zap.String("query", query))
		return
	}
	c.cancel = nil

	batch := Batch{Query: query, Locations: locations}
	if err != nil {
		batch.Err = err.Error()
		c.logger.Warn("search lookup failed", zap.String("query", query), zap.Error(err))
	}
	c.last = batch
	c.mu.Unlock()

	c.publish(batch)
}

// Results delivers settled batches, latest wins. A slow consumer only ever
// misses intermediate batches, never the most recent one.
func (c *Coordinator) Results() <-chan Batch {
	return c.results
}

// Latest returns the last delivered batch.
func (c *Coordinator) Latest() Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// AddFavorite adds a picked search result to the favorites set and clears
// the current query. Reports whether the name was newly added.
func (c *Coordinator) AddFavorite(name string) bool {
	added := c.favorites.Add(name)
	c.QueryChanged("")
	return added
}

func (c *Coordinator) publish(b Batch) {
	for {
		select {
		case c.results <- b:
			return
		default:
			select {
			case <-c.results:
			default:
			}
		}
	}
}
