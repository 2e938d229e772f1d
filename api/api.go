// Package api mounts the blog's HTTP JSON endpoints on an httpx server.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/auth"
	"github.com/pipeaalzamora/el-blog-del-ceo/cache"
	"github.com/pipeaalzamora/el-blog-del-ceo/comments"
	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
	"github.com/pipeaalzamora/el-blog-del-ceo/newsletter"
	"github.com/pipeaalzamora/el-blog-del-ceo/webhook"
)

// AdminTokenHeader carries the admin token when a bearer header is not
// convenient.
const AdminTokenHeader = "X-Admin-Token"

// Deps are the services the routes call. Metrics, Caches and the verifiers
// are optional: without a verifier the guarded routes answer 503.
type Deps struct {
	Content    *content.Service
	Comments   *comments.Service
	Newsletter *newsletter.Service
	Webhook    *webhook.Receiver

	Caches  []cache.Admin
	Metrics http.Handler

	WebhookVerifier auth.Verifier
	AdminVerifier   auth.Verifier

	Logger zerolog.Logger
}

type handlers struct {
	Deps
}

// Register validates d and returns the registrar that mounts every route.
func Register(d Deps) (httpx.RouteRegistrar, error) {
	var errs []error
	if d.Content == nil {
		errs = append(errs, errors.New("api: content service is required"))
	}
	if d.Comments == nil {
		errs = append(errs, errors.New("api: comments service is required"))
	}
	if d.Newsletter == nil {
		errs = append(errs, errors.New("api: newsletter service is required"))
	}
	if d.Webhook == nil {
		errs = append(errs, errors.New("api: webhook receiver is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	webhookBearer, err := auth.NewMiddleware(orUnconfigured(d.WebhookVerifier), auth.WithTokenExtractor(auth.BearerTokenExtractor()))
	if err != nil {
		return nil, err
	}
	webhookQuery, err := auth.NewMiddleware(orUnconfigured(d.WebhookVerifier), auth.WithTokenExtractor(auth.QueryTokenExtractor("secret")))
	if err != nil {
		return nil, err
	}
	admin, err := auth.NewMiddleware(orUnconfigured(d.AdminVerifier), auth.WithTokenExtractor(auth.ChainExtractors(
		auth.BearerTokenExtractor(),
		auth.HeaderTokenExtractor(AdminTokenHeader),
	)))
	if err != nil {
		return nil, err
	}

	h := &handlers{Deps: d}
	return func(a *httpx.App) {
		a.GET("/healthz", h.health)
		if h.Metrics != nil {
			a.GET("/metrics", httpx.WrapHandler(h.Metrics))
		}

		httpx.RegisterRoutes(a,
			httpx.Route{Method: http.MethodGet, Path: "/api/posts", Handler: h.listPosts},
			httpx.Route{Method: http.MethodGet, Path: "/api/posts/featured", Handler: h.featuredPosts},
			httpx.Route{Method: http.MethodGet, Path: "/api/posts/recent", Handler: h.recentPosts},
			httpx.Route{Method: http.MethodGet, Path: "/api/posts/:slug", Handler: h.post},
			httpx.Route{Method: http.MethodGet, Path: "/api/search", Handler: h.search},

			httpx.Route{Method: http.MethodGet, Path: "/api/comments", Handler: h.listComments},
			httpx.Route{Method: http.MethodPost, Path: "/api/comments", Handler: h.addComment},

			httpx.Route{Method: http.MethodPost, Path: "/api/newsletter", Handler: h.subscribe},
			httpx.Route{Method: http.MethodDelete, Path: "/api/newsletter", Handler: h.unsubscribe},
			httpx.Route{Method: http.MethodPost, Path: "/api/newsletter/send", Handler: h.sendNewsletter, Middleware: []httpx.MiddlewareFunc{httpx.AuthMiddleware(admin)}},

			httpx.Route{Method: http.MethodPost, Path: "/api/webhook", Handler: h.webhook, Middleware: []httpx.MiddlewareFunc{httpx.AuthMiddleware(webhookBearer)}},
			httpx.Route{Method: http.MethodGet, Path: "/api/webhook", Handler: h.revalidate, Middleware: []httpx.MiddlewareFunc{httpx.AuthMiddleware(webhookQuery)}},
		)

		adminGroup := a.Group("/api/admin", httpx.AuthMiddleware(admin))
		adminGroup.GET("/cache", h.cacheStats)
		adminGroup.DELETE("/cache", h.clearCache)
		adminGroup.POST("/cache/invalidate", h.invalidateCache)
		adminGroup.POST("/cache/warmup", h.warmup)
		adminGroup.GET("/stats", h.stats)
	}, nil
}

func (h *handlers) health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

func orUnconfigured(v auth.Verifier) auth.Verifier {
	if v != nil {
		return v
	}
	return auth.VerifierFunc(func(context.Context, string) error { return auth.ErrNotConfigured })
}
