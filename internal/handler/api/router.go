package api

import "github.com/labstack/echo/v4"

// RouteRegistrar is anything that mounts routes on the Echo instance.
type RouteRegistrar interface {
	RegisterRoutes(e *echo.Echo)
}

// Router aggregates the individual handlers into the single Handler the
// server wiring expects.
type Router struct {
	registrars []RouteRegistrar
}

func NewRouter(registrars ...RouteRegistrar) *Router {
	return &Router{registrars: registrars}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	for _, reg := range r.registrars {
		reg.RegisterRoutes(e)
	}
}
