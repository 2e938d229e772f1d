package comments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/validate"
)

// CacheTTL is how long a post's comment list is served from cache.
const CacheTTL = 60 * time.Second

const inputSchema = `{
	"type": "object",
	"required": ["postId", "content"],
	"properties": {
		"postId": {"type": "string", "minLength": 1},
		"nickname": {"type": "string", "maxLength": 30},
		"content": {"type": "string", "minLength": 1, "maxLength": 1000}
	}
}`

var schema = validate.MustCompile("comment.json", inputSchema, map[string]string{
	"postId/required":    "Post ID es requerido",
	"postId/minLength":   "Post ID es requerido",
	"nickname/maxLength": "Nickname no puede exceder 30 caracteres",
	"content/required":   "Contenido es requerido",
	"content/minLength":  "Contenido es requerido",
	"content/maxLength":  "Contenido no puede exceder 1000 caracteres",
})

// CacheKey is the cache key of a post's comment list.
func CacheKey(postID string) string { return "comments-" + postID }

type Service struct {
	repo   Repository
	cache  *memory.Cache[[]Comment]
	list   memory.Fetch[string, []Comment]
	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

type Option func(*Service)

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

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService wires repo behind c. The cache is shared with the admin
// surface, which may clear it at any time.
func NewService(repo Repository, c *memory.Cache[[]Comment], opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		cache:  c.WithClone(cloneComments),
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.list = memory.Wrap(s.cache, repo.ListApproved, CacheKey, CacheTTL)
	return s
}

// List returns the approved comments of postID, newest first.
func (s *Service) List(ctx context.Context, postID string) ([]Comment, error) {
	if postID == "" {
		return nil, validate.Invalid("postId", "postId es requerido")
	}
	comments, err := s.list(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

// Add validates, sanitizes and stores a comment, then drops the post's
// cached list so the next read sees it.
func (s *Service) Add(ctx context.Context, in Input) (Comment, error) {
	if err := schema.Validate(in); err != nil {
		return Comment{}, err
	}

	var fields []validate.FieldError
	if Malicious(in.Nickname) {
		fields = append(fields, validate.FieldError{Field: "nickname", Message: "Nickname contiene contenido no permitido"})
	}
	if Malicious(in.Content) {
		fields = append(fields, validate.FieldError{Field: "content", Message: "Contenido contiene elementos no permitidos"})
	}
	if len(fields) > 0 {
		return Comment{}, &validate.ValidationError{Fields: fields}
	}

	content := SanitizeText(in.Content)
	if content == "" {
		return Comment{}, validate.Invalid("content", "Contenido es requerido")
	}
	if Spam(content) {
		return Comment{}, ErrSpam
	}

	c := Comment{
		ID:        s.newID(),
		PostID:    in.PostID,
		Nickname:  SanitizeNickname(in.Nickname),
		Content:   content,
		CreatedAt: s.now().UTC(),
		Approved:  true,
	}
	if err := s.repo.Add(ctx, c); err != nil {
		return Comment{}, fmt.Errorf("add comment: %w", err)
	}
	s.cache.Invalidate(CacheKey(c.PostID))
	s.logger.Info().Str("post_id", c.PostID).Str("comment_id", c.ID).Msg("comment added")
	return c, nil
}

// Count returns the number of stored comments.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func cloneComments(in []Comment) []Comment {
	if in == nil {
		return nil
	}
	return append([]Comment(nil), in...)
}
