package memory

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultTTL           = 300 * time.Second
	DefaultMinTTL        = time.Second
	DefaultSweepInterval = 5 * time.Minute
)

// Options configures a Cache. Zero values fall back to the package defaults.
type Options struct {
	// Name labels the cache in stats, logs and metrics.
	Name string
	// DefaultTTL applies to SetDefault.
	DefaultTTL time.Duration
	// MinTTL replaces non-positive TTLs handed to Set.
	MinTTL        time.Duration
	SweepInterval time.Duration
	// Now is the clock used for storedAt and liveness checks.
	Now     func() time.Time
	Logger  *zerolog.Logger
	Metrics Metrics
}

func (o Options) withDefaults() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.MinTTL <= 0 {
		o.MinTTL = DefaultMinTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	return o
}

// Metrics receives cache lifecycle events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	Hit(cache string)
	Miss(cache string)
	Expire(cache string, n int)
	Invalidate(cache string, n int)
	FetchError(cache string)
}

// NoopMetrics discards every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)             {}
func (NoopMetrics) Miss(string)            {}
func (NoopMetrics) Expire(string, int)     {}
func (NoopMetrics) Invalidate(string, int) {}
func (NoopMetrics) FetchError(string)      {}
