package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/auth"
	"github.com/pipeaalzamora/el-blog-del-ceo/ratelimit"
)

const (
	HeaderAPIVersion = "X-API-Version"
	APIVersion       = "1.0"

	requestIDKey = "request_id"
)

// DefaultMiddlewares is the stack NewServer installs ahead of CORS and any
// appended middlewares.
func DefaultMiddlewares(logger zerolog.Logger) []MiddlewareFunc {
	return []MiddlewareFunc{
		RecoverMiddleware(),
		RequestIDMiddleware(),
		RequestLoggerMiddleware(logger),
	}
}

// RequestIDMiddleware keeps an incoming X-Request-ID or mints a UUID, and
// echoes it on the response.
func RequestIDMiddleware() MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.Set(requestIDKey, id)
		},
	})
}

// RequestID returns the id assigned by RequestIDMiddleware, if any.
func RequestID(c Context) string {
	if id, ok := c.Get(requestIDKey).(string); ok {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// RequestLoggerMiddleware writes one zerolog event per request.
func RequestLoggerMiddleware(logger zerolog.Logger) MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = logger.Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", ClientIP(c.Request())).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// APIHeadersMiddleware stamps X-API-Version on every /api/ response.
func APIHeadersMiddleware() MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			if isAPIPath(c.Request().URL.Path) {
				h := c.Response().Header()
				h.Set(HeaderAPIVersion, APIVersion)
				h.Set(echo.HeaderAccessControlAllowCredentials, "false")
			}
			return next(c)
		}
	}
}

// OriginGuardMiddleware answers 403 to mutating /api/ requests whose Origin
// header does not start with one of the allowed origins. The request's own
// host (http and https) is always allowed; requests without Origin pass.
func OriginGuardMiddleware(allowed ...string) MiddlewareFunc {
	origins := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			req := c.Request()
			if !isAPIPath(req.URL.Path) || !isMutating(req.Method) {
				return next(c)
			}
			origin := req.Header.Get(echo.HeaderOrigin)
			if origin == "" {
				return next(c)
			}
			candidates := append([]string{"https://" + req.Host, "http://" + req.Host}, origins...)
			for _, candidate := range candidates {
				if strings.HasPrefix(origin, candidate) {
					return next(c)
				}
			}
			return echo.NewHTTPError(StatusForbidden, ErrorBody{Error: "Forbidden", Message: "Invalid origin"})
		}
	}
}

// RateLimitMiddleware applies limiter to /api/ requests per client IP and
// path. onReject, when set, is called with the path of every rejected request.
func RateLimitMiddleware(limiter *ratelimit.Limiter, onReject func(path string)) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			req := c.Request()
			if limiter == nil || !isAPIPath(req.URL.Path) {
				return next(c)
			}
			d := limiter.Allow(req.Context(), ClientIP(req), req.URL.Path)
			if d.Limit > 0 {
				h := c.Response().Header()
				h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
				h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			}
			if d.Allowed {
				return next(c)
			}
			if onReject != nil {
				onReject(req.URL.Path)
			}
			c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
			return echo.NewHTTPError(StatusTooManyRequests, ErrorBody{
				Error:   "Too many requests",
				Message: "Rate limit exceeded. Please try again later.",
			})
		}
	}
}

// AuthMiddleware bridges an auth.Middleware into the echo chain. Errors from
// downstream handlers are returned to echo unchanged.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var nextErr error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				nextErr = next(c)
			})
			mw.Handler(downstream).ServeHTTP(c.Response(), c.Request())
			return nextErr
		}
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func ClientIP(req *http.Request) string {
	if xff := req.Header.Get(echo.HeaderXForwardedFor); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if xr := strings.TrimSpace(req.Header.Get(echo.HeaderXRealIP)); xr != "" {
		return xr
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		if req.RemoteAddr == "" {
			return "unknown"
		}
		return req.RemoteAddr
	}
	return host
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}
