package httpx

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Route is one table entry for RegisterRoutes.
type Route struct {
	Method     string
	Path       string
	Handler    HandlerFunc
	Middleware []MiddlewareFunc
}

// RegisterRoutes adds routes to a. Entries missing a method, path or handler
// are skipped.
func RegisterRoutes(a *App, routes ...Route) {
	if a == nil || a.e == nil {
		return
	}
	for _, r := range routes {
		if r.Handler == nil || r.Path == "" || r.Method == "" {
			continue
		}
		a.e.Add(strings.ToUpper(r.Method), r.Path, r.Handler, r.Middleware...)
	}
}

// Router registers routes under a group prefix.
type Router struct {
	g *echo.Group
}

func (r *Router) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.add(echo.GET, path, h, mw...)
}

func (r *Router) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.add(echo.POST, path, h, mw...)
}

func (r *Router) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.add(echo.DELETE, path, h, mw...)
}

func (r *Router) add(method, path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	if r.g != nil && h != nil && path != "" {
		r.g.Add(method, path, h, mw...)
	}
	return r
}
