// Package httpx wraps echo for the blog API server and resty for outbound
// calls (Notion, Resend, the admin CLI), so the rest of the module imports
// neither directly.
package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type (
	Context        = echo.Context
	HandlerFunc    = echo.HandlerFunc
	MiddlewareFunc = echo.MiddlewareFunc
)

// App is the route table a RouteRegistrar fills.
type App struct{ e *echo.Echo }

func newApp() *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &App{e}
}

func (a *App) Use(mw ...MiddlewareFunc) { a.e.Use(mw...) }

// Group mounts routes under prefix behind mw.
func (a *App) Group(prefix string, mw ...MiddlewareFunc) *Router {
	return &Router{g: a.e.Group(prefix, mw...)}
}

func (a *App) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.GET(path, h, mw...)
}

func (a *App) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.POST(path, h, mw...)
}

func (a *App) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.DELETE(path, h, mw...)
}

func RecoverMiddleware() MiddlewareFunc { return middleware.Recover() }

// CORSMiddleware builds a CORS middleware from cfg; nil uses DefaultCORSConfig.
func CORSMiddleware(cfg *middleware.CORSConfig) MiddlewareFunc {
	if cfg == nil {
		return middleware.CORSWithConfig(DefaultCORSConfig)
	}
	return middleware.CORSWithConfig(*cfg)
}

// DefaultCORSConfig allows the methods and headers the public API uses and
// lets browsers cache preflight answers for a day.
var DefaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Admin-Token"},
	MaxAge:       86400,
}

// WrapHandler adapts a net/http handler, such as promhttp, to a HandlerFunc.
func WrapHandler(h http.Handler) HandlerFunc { return echo.WrapHandler(h) }
