package httpapi

import (
	"net/url"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-dashboard/internal/cache"
	"github.com/i474232898/weather-dashboard/internal/eviction"
	"github.com/i474232898/weather-dashboard/internal/favorites"
	"github.com/i474232898/weather-dashboard/internal/search"
)

var validate = validator.New()

// Deps bundles the services the HTTP surface exposes.
type Deps struct {
	Store       *cache.Store
	Coordinator *search.Coordinator
	Favorites   *favorites.Set
	Policy      *eviction.Policy
}

// api holds per-surface state: the subscription handle backing the focused
// detail view.
type api struct {
	deps Deps

	mu          sync.Mutex
	focusHandle string
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	a := &api{deps: deps}

	v1 := app.Group("/api/v1")

	v1.Get("/dashboard", a.getDashboard)

	v1.Post("/subscriptions", a.postSubscription)
	v1.Delete("/subscriptions/:handle", a.deleteSubscription)

	v1.Get("/weather/:location", a.getWeather)
	v1.Post("/weather/:location/refresh", a.postRefresh)

	v1.Put("/search/query", a.putSearchQuery)
	v1.Get("/search/results", a.getSearchResults)

	v1.Get("/favorites", a.getFavorites)
	v1.Post("/favorites", a.postFavorite)
	v1.Delete("/favorites/:name", a.deleteFavorite)

	v1.Put("/focus", a.putFocus)
	v1.Delete("/focus", a.deleteFocus)

	v1.Get("/notices", a.getNotices)
}

// getDashboard returns every favorite together with its cache entry view.
func (a *api) getDashboard(c *fiber.Ctx) error {
	names := a.deps.Favorites.List()

	type card struct {
		Name  string          `json:"name"`
		Entry cache.EntryView `json:"entry"`
	}
	cards := make([]card, 0, len(names))
	for _, name := range names {
		cards = append(cards, card{Name: name, Entry: a.deps.Store.Snapshot(name)})
	}

	return c.JSON(fiber.Map{
		"favorites": cards,
		"focused":   a.deps.Policy.Focused(),
	})
}

type subscribeRequest struct {
	Location string `json:"location" validate:"required"`
}

func (a *api) postSubscription(c *fiber.Ctx) error {
	var req subscribeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	handle := a.deps.Store.Subscribe(req.Location)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"handle": handle})
}

func (a *api) deleteSubscription(c *fiber.Ctx) error {
	a.deps.Store.Unsubscribe(c.Params("handle"))
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *api) getWeather(c *fiber.Ctx) error {
	location, err := pathParam(c, "location")
	if err != nil {
		return err
	}
	return c.JSON(a.deps.Store.Snapshot(location))
}

func (a *api) postRefresh(c *fiber.Ctx) error {
	location, err := pathParam(c, "location")
	if err != nil {
		return err
	}
	a.deps.Store.ForceRefresh(location)
	return c.SendStatus(fiber.StatusAccepted)
}

type searchRequest struct {
	Q string `json:"q"`
}

func (a *api) putSearchQuery(c *fiber.Ctx) error {
	var req searchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	a.deps.Coordinator.QueryChanged(req.Q)
	return c.SendStatus(fiber.StatusAccepted)
}

func (a *api) getSearchResults(c *fiber.Ctx) error {
	return c.JSON(a.deps.Coordinator.Latest())
}

func (a *api) getFavorites(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"favorites": a.deps.Favorites.List()})
}

type favoriteRequest struct {
	Name string `json:"name" validate:"required"`
}

func (a *api) postFavorite(c *fiber.Ctx) error {
	var req favoriteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	added := a.deps.Coordinator.AddFavorite(req.Name)
	status := fiber.StatusCreated
	if !added {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"added": added})
}

func (a *api) deleteFavorite(c *fiber.Ctx) error {
	name, err := pathParam(c, "name")
	if err != nil {
		return err
	}
	_, removed := a.deps.Favorites.Remove(name)
	return c.JSON(fiber.Map{"removed": removed})
}

type focusRequest struct {
	Location string `json:"location" validate:"required"`
}

// putFocus opens the detail view: subscribes to the location (sharing the
// cache's dedup and polling) and records it as the focused selection.
func (a *api) putFocus(c *fiber.Ctx) error {
	var req focusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	a.mu.Lock()
	if a.focusHandle != "" {
		a.deps.Store.Unsubscribe(a.focusHandle)
	}
	a.focusHandle = a.deps.Store.Subscribe(req.Location)
	a.mu.Unlock()

	a.deps.Policy.SetFocus(req.Location)
	return c.JSON(a.deps.Store.Snapshot(req.Location))
}

func (a *api) deleteFocus(c *fiber.Ctx) error {
	a.mu.Lock()
	if a.focusHandle != "" {
		a.deps.Store.Unsubscribe(a.focusHandle)
		a.focusHandle = ""
	}
	a.mu.Unlock()

	a.deps.Policy.ClearFocus()
	return c.SendStatus(fiber.StatusNoContent)
}

// getNotices drains pending eviction notices. Each notice names the evicted
// location; ClosedFocus tells the client to close the detail view.
func (a *api) getNotices(c *fiber.Ctx) error {
	notices := a.deps.Policy.Drain()
	if notices == nil {
		notices = []eviction.Notice{}
	}
	return c.JSON(fiber.Map{"notices": notices})
}

func pathParam(c *fiber.Ctx, name string) (string, error) {
	raw := c.Params(name)
	decoded, err := url.PathUnescape(raw)
	if err != nil || decoded == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid "+name+" parameter")
	}
	return decoded, nil
}
