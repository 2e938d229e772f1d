// Package metrics registers the Prometheus collectors used by the blog server
// and adapts them to the hooks the cache, rate limiter and newsletter expose.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
)

// Metrics owns one registry so tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	// CacheEvents counts cache lookups and evictions labelled by cache name
	// and event ("hit", "miss", "expire", "invalidate", "fetch_error").
	CacheEvents *prometheus.CounterVec

	// RateLimitRejections counts requests answered 429, by rule prefix.
	RateLimitRejections *prometheus.CounterVec

	// NewsletterDeliveries counts newsletter emails by outcome ("sent", "failed").
	NewsletterDeliveries *prometheus.CounterVec

	// WebhookEvents counts accepted change notifications by event type.
	WebhookEvents *prometheus.CounterVec
}

// New builds the collectors on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_cache_events_total",
				Help: "Cache events by cache and kind.",
			},
			[]string{"cache", "event"},
		),
		RateLimitRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter.",
			},
			[]string{"rule"},
		),
		NewsletterDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_newsletter_deliveries_total",
				Help: "Newsletter emails by outcome.",
			},
			[]string{"outcome"},
		),
		WebhookEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_webhook_events_total",
				Help: "Change notifications received.",
			},
			[]string{"event"},
		),
	}
}

// Registry exposes the underlying registry for custom collectors and tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Cache returns a memory.Metrics that feeds CacheEvents.
func (m *Metrics) Cache() memory.Metrics { return cacheMetrics{m.CacheEvents} }

// TrackSize reports fn() as the entry count of the named cache at scrape time.
func (m *Metrics) TrackSize(name string, fn func() int) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "blog_cache_entries",
			Help:        "Entries currently held per cache.",
			ConstLabels: prometheus.Labels{"cache": name},
		},
		func() float64 { return float64(fn()) },
	)
}

type cacheMetrics struct {
	events *prometheus.CounterVec
}

func (c cacheMetrics) Hit(cache string)  { c.events.WithLabelValues(cache, "hit").Inc() }
func (c cacheMetrics) Miss(cache string) { c.events.WithLabelValues(cache, "miss").Inc() }
func (c cacheMetrics) Expire(cache string, n int) {
	c.events.WithLabelValues(cache, "expire").Add(float64(n))
}
func (c cacheMetrics) Invalidate(cache string, n int) {
	c.events.WithLabelValues(cache, "invalidate").Add(float64(n))
}
func (c cacheMetrics) FetchError(cache string) { c.events.WithLabelValues(cache, "fetch_error").Inc() }
