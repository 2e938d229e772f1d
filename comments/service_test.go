package comments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
	"github.com/pipeaalzamora/el-blog-del-ceo/internal/validate"
)

type fakeRepo struct {
	mu       sync.Mutex
	comments []Comment
	lists    int
	addErr   error
}

func (r *fakeRepo) Add(_ context.Context, c Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.addErr != nil {
		return r.addErr
	}
	r.comments = append(r.comments, c)
	return nil
}

func (r *fakeRepo) ListApproved(_ context.Context, postID string) ([]Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	var out []Comment
	for _, c := range r.comments {
		if c.PostID == postID && c.Approved {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.comments), nil
}

func newTestService(t *testing.T, repo *fakeRepo) (*Service, *memory.Cache[[]Comment]) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ids := 0
	c := memory.New[[]Comment](memory.Options{Name: "comments"})
	svc := NewService(repo, c,
		WithClock(func() time.Time {
			now = now.Add(time.Minute)
			return now
		}),
		WithIDGenerator(func() string {
			ids++
			return "c" + string(rune('0'+ids))
		}),
	)
	return svc, c
}

func TestAddStoresSanitizedComment(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(t, repo)

	got, err := svc.Add(context.Background(), Input{
		PostID:   "post-1",
		Nickname: "  <b>Ana</b> ",
		Content:  "Muy   buen <em>post</em>",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.ID != "c1" || !got.Approved {
		t.Fatalf("unexpected comment: %+v", got)
	}
	if got.Content != "Muy buen post" {
		t.Fatalf("content = %q", got.Content)
	}
	if got.Nickname != "Ana" {
		t.Fatalf("nickname not sanitized: %q", got.Nickname)
	}
	if len(repo.comments) != 1 {
		t.Fatalf("expected 1 stored comment, got %d", len(repo.comments))
	}
}

func TestAddDefaultsNickname(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{})
	got, err := svc.Add(context.Background(), Input{PostID: "p", Content: "hola"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.Nickname != DefaultNickname {
		t.Fatalf("nickname = %q, want %q", got.Nickname, DefaultNickname)
	}
}

func TestAddValidation(t *testing.T) {
	cases := []struct {
		name  string
		in    Input
		field string
	}{
		{"missing post", Input{Content: "hola"}, "postId"},
		{"empty content", Input{PostID: "p"}, "content"},
		{"long content", Input{PostID: "p", Content: strings.Repeat("a", 1001)}, "content"},
		{"long nickname", Input{PostID: "p", Nickname: strings.Repeat("n", 31), Content: "hola"}, "nickname"},
		{"script", Input{PostID: "p", Content: "<script>alert(1)</script>"}, "content"},
		{"handler in nickname", Input{PostID: "p", Nickname: "x onclick=y", Content: "hola"}, "nickname"},
		{"blank after sanitize", Input{PostID: "p", Content: "<b></b>"}, "content"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc, _ := newTestService(t, repo)
			_, err := svc.Add(context.Background(), tc.in)
			var ve *validate.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
			found := false
			for _, f := range ve.Fields {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected error on %q, got %+v", tc.field, ve.Fields)
			}
			if len(repo.comments) != 0 {
				t.Fatal("invalid comment was stored")
			}
		})
	}
}

func TestAddRejectsSpam(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(t, repo)
	_, err := svc.Add(context.Background(), Input{PostID: "p", Content: "visita mi Casino online"})
	if !errors.Is(err, ErrSpam) {
		t.Fatalf("expected ErrSpam, got %v", err)
	}
	if len(repo.comments) != 0 {
		t.Fatal("spam was stored")
	}
}

func TestAddPropagatesRepositoryError(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := newTestService(t, &fakeRepo{addErr: boom})
	_, err := svc.Add(context.Background(), Input{PostID: "p", Content: "hola"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestListIsCachedAndInvalidatedOnAdd(t *testing.T) {
	repo := &fakeRepo{}
	svc, c := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Add(ctx, Input{PostID: "p", Content: "primero"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.List(ctx, "p"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := svc.List(ctx, "p"); err != nil {
		t.Fatalf("List: %v", err)
	}
	if repo.lists != 1 {
		t.Fatalf("expected one repository read, got %d", repo.lists)
	}
	if _, ok := c.Get(CacheKey("p")); !ok {
		t.Fatal("expected cached list")
	}

	if _, err := svc.Add(ctx, Input{PostID: "p", Content: "segundo"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, ok := c.Get(CacheKey("p")); ok {
		t.Fatal("expected list to be invalidated")
	}
	got, err := svc.List(ctx, "p")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Content != "segundo" || got[1].Content != "primero" {
		t.Fatalf("unexpected list: %+v", got)
	}
	if repo.lists != 2 {
		t.Fatalf("expected two repository reads, got %d", repo.lists)
	}
}

func TestListEmptyAndMissingPost(t *testing.T) {
	svc, _ := newTestService(t, &fakeRepo{})
	got, err := svc.List(context.Background(), "nada")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
	var ve *validate.ValidationError
	if _, err := svc.List(context.Background(), ""); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCount(t *testing.T) {
	repo := &fakeRepo{}
	svc, _ := newTestService(t, repo)
	for _, body := range []string{"uno", "dos"} {
		if _, err := svc.Add(context.Background(), Input{PostID: "p", Content: body}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	n, err := svc.Count(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}
}
