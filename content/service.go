package content

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/validate"
)

const (
	PostsTTL    = 300 * time.Second
	PostTTL     = 600 * time.Second
	FeaturedTTL = 300 * time.Second
	RecentTTL   = 300 * time.Second

	FeaturedLimit      = 3
	DefaultRecentLimit = 5
	MaxRecentLimit     = 50
	MaxQueryLength     = 100
)

// FeaturedKey is the cache key of the featured posts list.
const FeaturedKey = "featured-posts"

func PostsKey(c Category) string { return "blog-posts-" + string(c) }
func PostKey(slug string) string { return "blog-post-" + slug }
func RecentKey(n int) string     { return "recent-posts-" + strconv.Itoa(n) }

type Service struct {
	source Source
	lists  *memory.Cache[[]Post]
	posts  *memory.Cache[Post]
	logger zerolog.Logger

	listPosts  memory.Fetch[Category, []Post]
	postBySlug memory.Fetch[string, Post]
	recent     memory.Fetch[int, []Post]
	featured   func(context.Context) ([]Post, error)
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService memoizes source through two caches: lists holds every
// collection (category listings, featured, recent) and posts holds single
// posts by slug.
func NewService(source Source, lists *memory.Cache[[]Post], posts *memory.Cache[Post], opts ...Option) *Service {
	s := &Service{
		source: source,
		lists:  lists.WithClone(clonePosts),
		posts:  posts.WithClone(clonePost),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.listPosts = memory.Wrap(s.lists, s.fetchPosts, PostsKey, PostsTTL)
	s.postBySlug = memory.Wrap(s.posts, s.fetchPost, PostKey, PostTTL)
	s.recent = memory.Wrap(s.lists, s.fetchRecent, RecentKey, RecentTTL)
	s.featured = memory.Memoize(s.lists, s.fetchFeatured, FeaturedKey, FeaturedTTL)
	return s
}

// Posts returns the published posts of category, newest first.
func (s *Service) Posts(ctx context.Context, category Category) ([]Post, error) {
	if category == "" {
		category = All
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return nil, err
	}
	return s.listPosts(ctx, category)
}

// PostBySlug returns the post with slug or ErrPostNotFound. Misses are not
// cached.
func (s *Service) PostBySlug(ctx context.Context, slug string) (Post, error) {
	if slug == "" {
		return Post{}, ErrPostNotFound
	}
	return s.postBySlug(ctx, slug)
}

// FeaturedPosts returns at most FeaturedLimit featured posts.
func (s *Service) FeaturedPosts(ctx context.Context) ([]Post, error) {
	return s.featured(ctx)
}

// RecentPosts returns the n newest posts. n outside 1..MaxRecentLimit falls
// back to DefaultRecentLimit or is capped.
func (s *Service) RecentPosts(ctx context.Context, n int) ([]Post, error) {
	switch {
	case n <= 0:
		n = DefaultRecentLimit
	case n > MaxRecentLimit:
		n = MaxRecentLimit
	}
	return s.recent(ctx, n)
}

// Search matches query case-insensitively against title, excerpt, content
// and tags of the cached post list. Results are not cached.
func (s *Service) Search(ctx context.Context, query string, category Category) ([]Post, error) {
	query = strings.TrimSpace(query)
	if n := utf8.RuneCountInString(query); n < 1 || n > MaxQueryLength {
		return nil, validate.Invalid("q", "La búsqueda debe tener entre 1 y 100 caracteres")
	}
	category, err := ParseCategory(string(category))
	if err != nil {
		return nil, validate.Invalid("category", "Categoría inválida")
	}

	posts, err := s.Posts(ctx, All)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	out := make([]Post, 0)
	for _, p := range posts {
		if category != All && p.Category != category {
			continue
		}
		if matches(p, needle) {
			out = append(out, p)
		}
	}
	return out, nil
}

func matches(p Post, needle string) bool {
	for _, field := range []string{p.Title, p.Excerpt, p.Content} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// InvalidateAll drops every cached post and collection and returns how many
// entries went.
func (s *Service) InvalidateAll() int {
	n := s.lists.InvalidatePattern("blog-")
	n += s.posts.InvalidatePattern("blog-")
	n += s.lists.InvalidatePattern(FeaturedKey)
	n += s.lists.InvalidatePattern("recent-posts-")
	s.logger.Info().Int("removed", n).Msg("content cache invalidated")
	return n
}

// InvalidatePost drops slug and every collection that may list it. The
// count covers collections only.
func (s *Service) InvalidatePost(slug string) int {
	if slug != "" {
		s.posts.Invalidate(PostKey(slug))
	}
	n := s.lists.InvalidatePattern("blog-posts-")
	n += s.lists.InvalidatePattern(FeaturedKey)
	n += s.lists.InvalidatePattern("recent-posts-")
	s.logger.Info().Str("slug", slug).Int("removed", n).Msg("post invalidated")
	return n
}

// Warmup prefetches the collections the home page reads. Failures are
// logged only.
func (s *Service) Warmup(ctx context.Context) {
	if _, err := s.FeaturedPosts(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("warmup featured posts")
	}
	if _, err := s.RecentPosts(ctx, DefaultRecentLimit); err != nil {
		s.logger.Warn().Err(err).Msg("warmup recent posts")
	}
}

func (s *Service) fetchPosts(ctx context.Context, category Category) ([]Post, error) {
	posts, err := s.source.Posts(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("content: fetch %s posts: %w", category, err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

func (s *Service) fetchPost(ctx context.Context, slug string) (Post, error) {
	posts, err := s.Posts(ctx, All)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, ErrPostNotFound
}

func (s *Service) fetchFeatured(ctx context.Context) ([]Post, error) {
	posts, err := s.Posts(ctx, All)
	if err != nil {
		return nil, err
	}
	out := make([]Post, 0, FeaturedLimit)
	for _, p := range posts {
		if !p.Featured {
			continue
		}
		out = append(out, p)
		if len(out) == FeaturedLimit {
			break
		}
	}
	return out, nil
}

func (s *Service) fetchRecent(ctx context.Context, n int) ([]Post, error) {
	posts, err := s.Posts(ctx, All)
	if err != nil {
		return nil, err
	}
	if len(posts) > n {
		posts = posts[:n]
	}
	return posts, nil
}
