// Package webhook reacts to change notifications from the content source:
// it drops cached content and, for newly published posts, mails the
// newsletter in the background.
package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/newsletter"
)

const (
	EventPostPublished = "post.published"
	EventPostUpdated   = "post.updated"
	EventPostDeleted   = "post.deleted"
	EventManual        = "manual"
	eventOther         = "other"
)

// Event is the notification body. The slug may come at the top level or
// inside post.
type Event struct {
	Event string `json:"event"`
	Slug  string `json:"slug,omitempty"`
	Post  *struct {
		Slug string `json:"slug"`
	} `json:"post,omitempty"`
}

func (e Event) PostSlug() string {
	if e.Slug != "" {
		return e.Slug
	}
	if e.Post != nil {
		return e.Post.Slug
	}
	return ""
}

// Content is what the receiver needs from the content service.
type Content interface {
	InvalidateAll() int
	PostBySlug(ctx context.Context, slug string) (content.Post, error)
}

// Dispatcher mails a post to its subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, post content.Post) (newsletter.Report, error)
}

type Result struct {
	Message     string `json:"message"`
	Timestamp   string `json:"timestamp"`
	Invalidated int    `json:"invalidated"`
	Dispatching bool   `json:"dispatching,omitempty"`
}

type Receiver struct {
	content         Content
	dispatcher      Dispatcher
	dispatchTimeout time.Duration
	now             func() time.Time
	observe         func(event string)
	logger          zerolog.Logger

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Receiver)

// WithDispatcher enables newsletter dispatch on post.published.
func WithDispatcher(d Dispatcher) Option {
	return func(r *Receiver) { r.dispatcher = d }
}

func WithDispatchTimeout(d time.Duration) Option {
	return func(r *Receiver) {
		if d > 0 {
			r.dispatchTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Receiver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithObserver is told the event name of every accepted notification.
func WithObserver(fn func(event string)) Option {
	return func(r *Receiver) {
		if fn != nil {
			r.observe = fn
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Receiver) { r.logger = logger }
}

func NewReceiver(c Content, opts ...Option) *Receiver {
	r := &Receiver{
		content:         c,
		dispatchTimeout: 10 * time.Minute,
		now:             time.Now,
		observe:         func(string) {},
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.base, r.cancel = context.WithCancel(context.Background())
	return r
}

// Handle invalidates all cached content. A post.published event with a slug
// also starts a newsletter dispatch that outlives the request.
func (r *Receiver) Handle(ctx context.Context, ev Event) Result {
	r.observe(eventLabel(ev.Event))
	n := r.content.InvalidateAll()
	r.logger.Info().Str("event", ev.Event).Str("slug", ev.PostSlug()).Int("invalidated", n).Msg("webhook received")

	res := r.result("Revalidation triggered successfully", n)
	if ev.Event == EventPostPublished && ev.PostSlug() != "" && r.dispatcher != nil {
		res.Dispatching = r.dispatch(ev.PostSlug())
	}
	return res
}

// Revalidate is the manual trigger: it only invalidates.
func (r *Receiver) Revalidate(context.Context) Result {
	r.observe(EventManual)
	n := r.content.InvalidateAll()
	r.logger.Info().Int("invalidated", n).Msg("manual revalidation")
	return r.result("Manual revalidation triggered", n)
}

// Close stops accepting dispatches, cancels running ones and waits for
// them to return.
func (r *Receiver) Close() {
	r.cancel()
	r.wg.Wait()
}

// Wait blocks until running dispatches finish.
func (r *Receiver) Wait() { r.wg.Wait() }

func (r *Receiver) dispatch(slug string) bool {
	if r.base.Err() != nil {
		return false
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.base, r.dispatchTimeout)
		defer cancel()

		logger := r.logger.With().Str("slug", slug).Logger()
		post, err := r.content.PostBySlug(ctx, slug)
		if err != nil {
			logger.Warn().Err(err).Msg("newsletter dispatch skipped: post not readable")
			return
		}
		report, err := r.dispatcher.Dispatch(ctx, post)
		if err != nil {
			logger.Error().Err(err).Int("sent", report.Sent).Msg("newsletter dispatch failed")
			return
		}
		logger.Info().Int("sent", report.Sent).Int("total", report.Total).Int("errors", len(report.Errors)).Msg("newsletter dispatch finished")
	}()
	return true
}

func (r *Receiver) result(msg string, n int) Result {
	return Result{
		Message:     msg,
		Timestamp:   r.now().UTC().Format(time.RFC3339),
		Invalidated: n,
	}
}

func eventLabel(event string) string {
	switch event {
	case EventPostPublished, EventPostUpdated, EventPostDeleted:
		return event
	}
	return eventOther
}
