package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pipeaalzamora/el-blog-del-ceo/api"
	"github.com/pipeaalzamora/el-blog-del-ceo/auth"
	"github.com/pipeaalzamora/el-blog-del-ceo/cache"
	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
	"github.com/pipeaalzamora/el-blog-del-ceo/cache/redis"
	"github.com/pipeaalzamora/el-blog-del-ceo/comments"
	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/content/notion"
	"github.com/pipeaalzamora/el-blog-del-ceo/db/sql/postgres"
	"github.com/pipeaalzamora/el-blog-del-ceo/db/sql/repository"
	"github.com/pipeaalzamora/el-blog-del-ceo/db/sql/sqlite"
	"github.com/pipeaalzamora/el-blog-del-ceo/httpx"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/config"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/logging"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/metrics"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/version"
	"github.com/pipeaalzamora/el-blog-del-ceo/newsletter"
	"github.com/pipeaalzamora/el-blog-del-ceo/ratelimit"
	"github.com/pipeaalzamora/el-blog-del-ceo/webhook"
)

const (
	rateLimitSweep = time.Minute
	mailerTimeout  = 15 * time.Second
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := serve(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("server stopped with error")
				return err
			}
			logger.Info().Msg("bye")
			return nil
		},
	}
}

// lifecycle is the part of a memory cache serve manages.
type lifecycle interface {
	cache.Admin
	Name() string
	Len() int
	Start()
	Stop()
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	logger.Info().Str("version", version.String()).Str("env", cfg.Server.Environment).Msg("starting")
	m := metrics.New()

	cacheLogger := logging.Component(logger, "cache")
	cacheOpts := func(name string, ttl time.Duration) memory.Options {
		return memory.Options{
			Name:          name,
			DefaultTTL:    ttl,
			SweepInterval: cfg.Cache.SweepInterval,
			Logger:        &cacheLogger,
			Metrics:       m.Cache(),
		}
	}
	lists := memory.New[[]content.Post](cacheOpts("posts", content.PostsTTL))
	posts := memory.New[content.Post](cacheOpts("post", content.PostTTL))
	commentCache := memory.New[[]comments.Comment](cacheOpts("comments", comments.CacheTTL))
	caches := []lifecycle{lists, posts, commentCache}
	admins := make([]cache.Admin, 0, len(caches))
	for _, c := range caches {
		c.Start()
		defer c.Stop()
		m.TrackSize(c.Name(), c.Len)
		admins = append(admins, c)
	}

	db, dialect, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	notionLogger := logging.Component(logger, "notion")
	source, err := notion.New(notion.Options{
		Token:      cfg.Notion.Token,
		DatabaseID: cfg.Notion.DatabaseID,
		BaseURL:    cfg.Notion.BaseURL,
		Version:    cfg.Notion.Version,
		Timeout:    cfg.Notion.Timeout,
		Logger:     &notionLogger,
	})
	if err != nil {
		return err
	}

	contentSvc := content.NewService(source, lists, posts, content.WithLogger(logging.Component(logger, "content")))
	commentSvc := comments.NewService(repository.NewComments(db, dialect), commentCache,
		comments.WithLogger(logging.Component(logger, "comments")))
	newsletterSvc := newsletter.NewService(repository.NewSubscribers(db, dialect), newMailer(cfg.Newsletter, logger),
		newsletter.WithFrom(cfg.Newsletter.From),
		newsletter.WithSiteURL(cfg.Server.SiteURL),
		newsletter.WithPause(cfg.Newsletter.Pause),
		newsletter.WithDeliveryObserver(func(outcome string) { m.NewsletterDeliveries.WithLabelValues(outcome).Inc() }),
		newsletter.WithLogger(logging.Component(logger, "newsletter")),
	)

	receiverOpts := []webhook.Option{
		webhook.WithObserver(func(event string) { m.WebhookEvents.WithLabelValues(event).Inc() }),
		webhook.WithLogger(logging.Component(logger, "webhook")),
	}
	if cfg.Newsletter.DispatchOnPublish {
		receiverOpts = append(receiverOpts, webhook.WithDispatcher(newsletterSvc))
	}
	receiver := webhook.NewReceiver(contentSvc, receiverOpts...)
	defer receiver.Close()

	store, memStore, closeStore := newRateLimitStore(ctx, cfg, logger)
	defer closeStore()
	limiter := ratelimit.New(store, ratelimit.WithLogger(logging.Component(logger, "ratelimit")))

	var adminVerifier auth.Verifier
	if cfg.Auth.AdminTokenHash != "" {
		v, err := auth.NewBcryptVerifier(cfg.Auth.AdminTokenHash)
		if err != nil {
			return fmt.Errorf("admin token hash: %w", err)
		}
		adminVerifier = v
	} else {
		logger.Warn().Msg("ADMIN_TOKEN_HASH not set; admin endpoints answer 503")
	}

	routes, err := api.Register(api.Deps{
		Content:         contentSvc,
		Comments:        commentSvc,
		Newsletter:      newsletterSvc,
		Webhook:         receiver,
		Caches:          admins,
		Metrics:         m.Handler(),
		WebhookVerifier: auth.NewSecretVerifier(cfg.Auth.WebhookSecret),
		AdminVerifier:   adminVerifier,
		Logger:          logging.Component(logger, "api"),
	})
	if err != nil {
		return err
	}

	httpLogger := logging.Component(logger, "http")
	srv := httpx.NewServer(
		httpx.WithLogger(httpLogger),
		httpx.WithAddress(cfg.Server.Addr),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithCORS(corsConfig(cfg)),
		httpx.AppendMiddlewares(
			httpx.APIHeadersMiddleware(),
			httpx.OriginGuardMiddleware(cfg.Origins()...),
			httpx.RateLimitMiddleware(limiter, func(path string) {
				rule := limiter.Rule(path).Prefix
				if rule == "" {
					rule = "default"
				}
				m.RateLimitRejections.WithLabelValues(rule).Inc()
			}),
		),
	)
	srv.RegisterRoutes(routes)

	g, gctx := errgroup.WithContext(ctx)
	if memStore != nil {
		g.Go(func() error {
			memStore.Run(gctx, rateLimitSweep)
			return nil
		})
	}
	if cfg.Cache.Warmup {
		g.Go(func() error {
			contentSvc.Warmup(gctx)
			return nil
		})
	}
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// openDatabase opens the configured database and applies its schema.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, repository.Dialect, error) {
	dialect, ok := repository.DialectFor(cfg.Driver)
	if !ok {
		return nil, repository.Dialect{}, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	var (
		db  *sql.DB
		err error
	)
	switch dialect.String() {
	case repository.Postgres.String():
		if db, err = postgres.Open(ctx, cfg.DSN); err != nil {
			return nil, dialect, err
		}
		err = postgres.Migrate(ctx, db)
	default:
		if db, err = sqlite.Open(cfg.DSN); err != nil {
			return nil, dialect, err
		}
		err = sqlite.Migrate(ctx, db)
	}
	if err != nil {
		_ = db.Close()
		return nil, dialect, err
	}
	return db, dialect, nil
}

func newMailer(cfg config.NewsletterConfig, logger zerolog.Logger) newsletter.Mailer {
	mailLogger := logging.Component(logger, "mailer")
	mailer, err := newsletter.NewResendMailer(cfg.ResendAPIKey, cfg.ResendBaseURL, mailerTimeout)
	if err != nil {
		mailLogger.Warn().Err(err).Msg("newsletter emails will only be logged")
		return newsletter.LogMailer{Logger: mailLogger}
	}
	return mailer
}

// newRateLimitStore returns the configured store. memStore is set when the
// store needs its sweeper run.
func newRateLimitStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (store ratelimit.Store, memStore *ratelimit.MemoryStore, closeFn func()) {
	if cfg.RateLimit.Backend == "redis" {
		rs := redis.New(redis.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err := rs.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unreachable; requests pass until it answers")
		}
		return ratelimit.NewRedisStore(rs, "ratelimit:"), nil, func() { _ = rs.Close() }
	}
	ms := ratelimit.NewMemoryStore(nil)
	return ms, ms, func() {}
}

func corsConfig(cfg config.Config) *middleware.CORSConfig {
	origins := cfg.Origins()
	if len(origins) == 0 {
		return nil
	}
	c := httpx.DefaultCORSConfig
	c.AllowOrigins = origins
	return &c
}
