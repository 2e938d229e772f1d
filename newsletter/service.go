package newsletter

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/validate"
)

const (
	DefaultFrom  = "El Blog del CEO <newsletter@elblogdelceo.com>"
	DefaultPause = 100 * time.Millisecond
)

// Delivery outcomes passed to the observer.
const (
	OutcomeSent          = "sent"
	OutcomeFailed        = "failed"
	OutcomeWelcomeSent   = "welcome_sent"
	OutcomeWelcomeFailed = "welcome_failed"
)

const inputSchema = `{
	"type": "object",
	"required": ["email", "categories"],
	"properties": {
		"email": {"type": "string", "maxLength": 254, "pattern": "^[^\\s@]+@[^\\s@]+\\.[^\\s@]+$"},
		"categories": {"type": "array", "minItems": 1, "items": {"type": "string"}}
	}
}`

var schema = validate.MustCompile("newsletter.json", inputSchema, map[string]string{
	"email/required":      "Email es requerido",
	"email/type":          "Email no válido",
	"email/pattern":       "Email no válido",
	"email/maxLength":     "Email no válido",
	"categories/required": "Debe seleccionar al menos una categoría",
	"categories/type":     "Debe seleccionar al menos una categoría",
	"categories/minItems": "Debe seleccionar al menos una categoría",
})

// Report summarizes one newsletter dispatch.
type Report struct {
	Sent   int      `json:"sent"`
	Total  int      `json:"total"`
	Errors []string `json:"errors,omitempty"`
}

type Service struct {
	repo    Repository
	mailer  Mailer
	from    string
	siteURL string
	pause   time.Duration
	now     func() time.Time
	newID   func() string
	observe func(outcome string)
	logger  zerolog.Logger
}

type Option func(*Service)

func WithFrom(from string) Option {
	return func(s *Service) {
		if from != "" {
			s.from = from
		}
	}
}

// WithSiteURL sets the base of the links placed in emails.
func WithSiteURL(u string) Option {
	return func(s *Service) { s.siteURL = strings.TrimRight(u, "/") }
}

// WithPause sets the delay between two dispatched emails.
func WithPause(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.pause = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithDeliveryObserver receives one outcome per attempted email.
func WithDeliveryObserver(fn func(outcome string)) Option {
	return func(s *Service) {
		if fn != nil {
			s.observe = fn
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(repo Repository, mailer Mailer, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		mailer:  mailer,
		from:    DefaultFrom,
		siteURL: "http://localhost:3000",
		pause:   DefaultPause,
		now:     time.Now,
		newID:   uuid.NewString,
		observe: func(string) {},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Subscribe validates in and stores the subscriber. Subscribing an existing
// email reactivates it with the new categories. The welcome email is best
// effort.
func (s *Service) Subscribe(ctx context.Context, in Input) (Subscriber, error) {
	in.Email = SanitizeEmail(in.Email)
	if err := schema.Validate(in); err != nil {
		return Subscriber{}, err
	}
	categories, err := parseCategories(in.Categories)
	if err != nil {
		return Subscriber{}, err
	}

	sub, err := s.repo.Upsert(ctx, Subscriber{
		ID:           s.newID(),
		Email:        in.Email,
		Categories:   categories,
		Active:       true,
		SubscribedAt: s.now().UTC(),
	})
	if err != nil {
		return Subscriber{}, fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info().Str("subscriber_id", sub.ID).Msg("subscribed")

	if _, err := s.mailer.Send(ctx, s.welcome(sub)); err != nil {
		s.observe(OutcomeWelcomeFailed)
		s.logger.Warn().Err(err).Str("subscriber_id", sub.ID).Msg("welcome email failed")
	} else {
		s.observe(OutcomeWelcomeSent)
	}
	return sub, nil
}

// Unsubscribe deactivates email. It returns ErrSubscriberNotFound when the
// address was never subscribed.
func (s *Service) Unsubscribe(ctx context.Context, email string) error {
	email = SanitizeEmail(email)
	if email == "" {
		return validate.Invalid("email", "Email es requerido")
	}
	ok, err := s.repo.Deactivate(ctx, email, s.now().UTC())
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if !ok {
		return ErrSubscriberNotFound
	}
	return nil
}

// Subscribers lists the active subscribers that want category.
func (s *Service) Subscribers(ctx context.Context, category content.Category) ([]Subscriber, error) {
	return s.repo.ListActive(ctx, category)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

// Dispatch emails post to every active subscriber of its category, one at a
// time with the configured pause between sends. Per-recipient failures land
// in the report; the returned error is reserved for failing to list
// subscribers or ctx ending mid-run.
func (s *Service) Dispatch(ctx context.Context, post content.Post) (Report, error) {
	if post.ID == "" || post.Title == "" {
		return Report{}, validate.Invalid("post", "Datos del post requeridos")
	}
	subs, err := s.repo.ListActive(ctx, post.Category)
	if err != nil {
		return Report{}, fmt.Errorf("dispatch: list subscribers: %w", err)
	}

	report := Report{Total: len(subs)}
	sent := make([]string, 0, len(subs))
	defer func() {
		if len(sent) == 0 {
			return
		}
		if err := s.repo.MarkSent(context.WithoutCancel(ctx), sent, s.now().UTC()); err != nil {
			s.logger.Warn().Err(err).Int("count", len(sent)).Msg("mark subscribers as sent")
		}
	}()

	for i, sub := range subs {
		if i > 0 {
			if err := sleep(ctx, s.pause); err != nil {
				return report, err
			}
		}
		if _, err := s.mailer.Send(ctx, s.announcement(post, sub)); err != nil {
			s.observe(OutcomeFailed)
			report.Errors = append(report.Errors, sub.Email+": "+err.Error())
			s.logger.Warn().Err(err).Str("subscriber_id", sub.ID).Str("post", post.Slug).Msg("newsletter email failed")
			continue
		}
		s.observe(OutcomeSent)
		report.Sent++
		sent = append(sent, sub.ID)
	}

	s.logger.Info().Str("post", post.Slug).Int("sent", report.Sent).Int("total", report.Total).Msg("newsletter dispatched")
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func parseCategories(raw []string) ([]content.Category, error) {
	out := make([]content.Category, 0, len(raw))
	for _, r := range raw {
		c, err := content.ParseCategory(r)
		if err != nil || r == "" {
			return nil, validate.Invalid("categories", "Categoría inválida")
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	if slices.Contains(out, content.All) && len(out) > 1 {
		return nil, validate.Invalid("categories", "Si selecciona 'Todos', no puede seleccionar otras categorías")
	}
	return out, nil
}

var categoryLabels = map[content.Category]string{
	content.Personal: "Posts personales",
	content.Startup:  "Posts de emprendimiento",
	content.All:      "Todos los posts",
}

func (s *Service) welcome(sub Subscriber) Message {
	labels := make([]string, 0, len(sub.Categories))
	for _, c := range sub.Categories {
		labels = append(labels, categoryLabels[c])
	}
	var b strings.Builder
	b.WriteString("¡Gracias por suscribirte a El Blog del CEO!\n\n")
	b.WriteString("Categorías suscritas: " + strings.Join(labels, ", ") + "\n\n")
	b.WriteString("Te escribiremos cada vez que publiquemos contenido nuevo en estas categorías.\n\n")
	b.WriteString("Visita el blog: " + s.siteURL + "\n")
	b.WriteString("Cancelar suscripción: " + s.unsubscribeURL(sub.Email) + "\n")
	return Message{
		From:    s.from,
		To:      sub.Email,
		Subject: "¡Bienvenido al Newsletter de El Blog del CEO!",
		Text:    b.String(),
	}
}

func (s *Service) announcement(post content.Post, sub Subscriber) Message {
	var b strings.Builder
	b.WriteString(post.Title + "\n\n")
	if post.Excerpt != "" {
		b.WriteString(post.Excerpt + "\n\n")
	}
	fmt.Fprintf(&b, "%d min de lectura\n\n", post.ReadingTime)
	b.WriteString("Leer artículo completo: " + s.siteURL + "/blog/" + post.Slug + "\n\n")
	b.WriteString("Cancelar suscripción: " + s.unsubscribeURL(sub.Email) + "\n")
	return Message{
		From:    s.from,
		To:      sub.Email,
		Subject: "Nuevo Post: " + post.Title,
		Text:    b.String(),
	}
}

func (s *Service) unsubscribeURL(email string) string {
	return s.siteURL + "/newsletter/unsubscribe?email=" + url.QueryEscape(email)
}
