package content

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/validate"
)

type countingSource struct {
	mu    sync.Mutex
	posts []Post
	err   error
	calls atomic.Int32
	seen  []Category
}

func (s *countingSource) Posts(_ context.Context, category Category) ([]Post, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, category)
	if s.err != nil {
		return nil, s.err
	}
	var out []Post
	for _, p := range s.posts {
		if category == All || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *countingSource) set(posts []Post, err error) {
	s.mu.Lock()
	s.posts, s.err = posts, err
	s.mu.Unlock()
}

func samplePosts() []Post {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	mk := func(i int, slug string, cat Category, featured bool, tags ...string) Post {
		return Post{
			ID:          slug,
			Title:       "Post " + slug,
			Slug:        slug,
			Excerpt:     "excerpt of " + slug,
			Content:     "body of " + slug,
			PublishedAt: base.Add(-time.Duration(i) * 24 * time.Hour),
			Category:    cat,
			Tags:        tags,
			Featured:    featured,
			ReadingTime: 1,
		}
	}
	return []Post{
		mk(0, "liderazgo", Startup, true, "equipos"),
		mk(1, "rutina", Personal, true),
		mk(2, "fundraising", Startup, false, "Inversión"),
		mk(3, "lectura", Personal, true),
		mk(4, "pivot", Startup, true),
		mk(5, "viajes", Personal, false),
		mk(6, "contratar", Startup, false),
	}
}

func newTestService(src Source) (*Service, *memory.Cache[[]Post], *memory.Cache[Post]) {
	lists := memory.New[[]Post](memory.Options{Name: "posts"})
	posts := memory.New[Post](memory.Options{Name: "post"})
	return NewService(src, lists, posts), lists, posts
}

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{"": All, "all": All, "Personal": Personal, " startup ": Startup}
	for in, want := range cases {
		got, err := ParseCategory(in)
		if err != nil || got != want {
			t.Fatalf("ParseCategory(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCategory("tech"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestReadingTime(t *testing.T) {
	if got := ReadingTime(""); got != 1 {
		t.Fatalf("empty text = %d, want 1", got)
	}
	if got := ReadingTime(strings.Repeat("palabra ", 250)); got != 1 {
		t.Fatalf("250 words = %d, want 1", got)
	}
	if got := ReadingTime(strings.Repeat("palabra ", 251)); got != 2 {
		t.Fatalf("251 words = %d, want 2", got)
	}
}

func TestPostsAreCachedPerCategory(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, lists, _ := newTestService(src)
	ctx := context.Background()

	all, err := svc.Posts(ctx, "")
	if err != nil || len(all) != 7 {
		t.Fatalf("Posts(all) = %d, %v", len(all), err)
	}
	startup, err := svc.Posts(ctx, Startup)
	if err != nil || len(startup) != 4 {
		t.Fatalf("Posts(startup) = %d, %v", len(startup), err)
	}
	if _, err := svc.Posts(ctx, Startup); err != nil {
		t.Fatalf("Posts(startup) again: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("expected 2 source calls, got %d", got)
	}
	for _, key := range []string{"blog-posts-all", "blog-posts-startup"} {
		if _, ok := lists.Get(key); !ok {
			t.Fatalf("expected %s to be cached", key)
		}
	}
	if _, err := svc.Posts(ctx, "tech"); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestCallersCannotMutateCachedPosts(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, _, _ := newTestService(src)
	ctx := context.Background()

	first, _ := svc.Posts(ctx, All)
	first[0].Title = "changed"
	first[0].Tags[0] = "changed"

	again, _ := svc.Posts(ctx, All)
	if again[0].Title != "Post liderazgo" || again[0].Tags[0] != "equipos" {
		t.Fatalf("cached post was mutated: %+v", again[0])
	}
}

func TestPostBySlug(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, _, posts := newTestService(src)
	ctx := context.Background()

	p, err := svc.PostBySlug(ctx, "pivot")
	if err != nil || p.Slug != "pivot" {
		t.Fatalf("PostBySlug = %+v, %v", p, err)
	}
	if _, ok := posts.Get("blog-post-pivot"); !ok {
		t.Fatal("expected post to be cached")
	}
	if _, err := svc.PostBySlug(ctx, "missing"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if _, ok := posts.Get("blog-post-missing"); ok {
		t.Fatal("miss must not be cached")
	}
	if _, err := svc.PostBySlug(ctx, ""); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound for empty slug, got %v", err)
	}
}

func TestFeaturedAndRecent(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, lists, _ := newTestService(src)
	ctx := context.Background()

	featured, err := svc.FeaturedPosts(ctx)
	if err != nil {
		t.Fatalf("FeaturedPosts: %v", err)
	}
	if len(featured) != 3 || featured[0].Slug != "liderazgo" || featured[2].Slug != "lectura" {
		t.Fatalf("unexpected featured: %+v", featured)
	}

	recent, err := svc.RecentPosts(ctx, 2)
	if err != nil || len(recent) != 2 || recent[1].Slug != "rutina" {
		t.Fatalf("RecentPosts(2) = %+v, %v", recent, err)
	}
	def, err := svc.RecentPosts(ctx, 0)
	if err != nil || len(def) != DefaultRecentLimit {
		t.Fatalf("RecentPosts(0) = %d, %v", len(def), err)
	}
	for _, key := range []string{"featured-posts", "recent-posts-2", "recent-posts-5"} {
		if _, ok := lists.Get(key); !ok {
			t.Fatalf("expected %s to be cached", key)
		}
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected derived lists to share one source call, got %d", got)
	}
}

func TestSearch(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, _, _ := newTestService(src)
	ctx := context.Background()

	got, err := svc.Search(ctx, "INVERSIÓN", All)
	if err != nil || len(got) != 1 || got[0].Slug != "fundraising" {
		t.Fatalf("tag search = %+v, %v", got, err)
	}
	got, err = svc.Search(ctx, "post", Personal)
	if err != nil || len(got) != 3 {
		t.Fatalf("category search = %d, %v", len(got), err)
	}
	got, err = svc.Search(ctx, "nada que ver", All)
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty search = %#v, %v", got, err)
	}

	var ve *validate.ValidationError
	if _, err := svc.Search(ctx, "   ", All); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for blank query, got %v", err)
	}
	if _, err := svc.Search(ctx, strings.Repeat("a", 101), All); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for long query, got %v", err)
	}
	if _, err := svc.Search(ctx, "post", "tech"); !errors.As(err, &ve) {
		t.Fatalf("expected validation error for bad category, got %v", err)
	}
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	boom := errors.New("notion down")
	src := &countingSource{err: boom}
	svc, lists, _ := newTestService(src)
	ctx := context.Background()

	if _, err := svc.Posts(ctx, All); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	if lists.Len() != 0 {
		t.Fatal("failure must not be cached")
	}

	src.set(samplePosts(), nil)
	if posts, err := svc.Posts(ctx, All); err != nil || len(posts) != 7 {
		t.Fatalf("retry = %d, %v", len(posts), err)
	}
}

func TestInvalidateAll(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, lists, posts := newTestService(src)
	ctx := context.Background()

	_, _ = svc.Posts(ctx, Startup)
	_, _ = svc.PostBySlug(ctx, "pivot")
	_, _ = svc.FeaturedPosts(ctx)
	_, _ = svc.RecentPosts(ctx, 3)
	lists.Set("comments-unrelated", nil, time.Minute)

	if n := svc.InvalidateAll(); n != 5 {
		t.Fatalf("InvalidateAll removed %d, want 5", n)
	}
	if posts.Len() != 0 {
		t.Fatal("single posts survived")
	}
	if _, ok := lists.Get("comments-unrelated"); !ok {
		t.Fatal("unrelated key was dropped")
	}
}

func TestInvalidatePost(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, lists, posts := newTestService(src)
	ctx := context.Background()

	_, _ = svc.PostBySlug(ctx, "pivot")
	_, _ = svc.PostBySlug(ctx, "rutina")
	_, _ = svc.FeaturedPosts(ctx)

	svc.InvalidatePost("pivot")
	if _, ok := posts.Get("blog-post-pivot"); ok {
		t.Fatal("pivot still cached")
	}
	if _, ok := posts.Get("blog-post-rutina"); !ok {
		t.Fatal("rutina should survive")
	}
	if lists.Len() != 0 {
		t.Fatalf("collections survived: %+v", lists.Stats().Keys)
	}
}

func TestWarmup(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	svc, lists, _ := newTestService(src)
	svc.Warmup(context.Background())

	for _, key := range []string{"blog-posts-all", "featured-posts", "recent-posts-5"} {
		if _, ok := lists.Get(key); !ok {
			t.Fatalf("expected %s after warmup", key)
		}
	}

	failing := &countingSource{err: errors.New("down")}
	svc, lists, _ = newTestService(failing)
	svc.Warmup(context.Background())
	if lists.Len() != 0 {
		t.Fatal("failed warmup cached something")
	}
}
