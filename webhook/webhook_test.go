package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pipeaalzamora/el-blog-del-ceo/cache/memory"
	"github.com/pipeaalzamora/el-blog-del-ceo/content"
	"github.com/pipeaalzamora/el-blog-del-ceo/newsletter"
)

type fakeContent struct {
	mu          sync.Mutex
	invalidated int
	posts       map[string]content.Post
}

func (f *fakeContent) InvalidateAll() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	return 3
}

func (f *fakeContent) PostBySlug(_ context.Context, slug string) (content.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.posts[slug]
	if !ok {
		return content.Post{}, content.ErrPostNotFound
	}
	return p, nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	posts []content.Post
	block chan struct{}
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, post content.Post) (newsletter.Report, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return newsletter.Report{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, post)
	return newsletter.Report{Sent: 1, Total: 1}, f.err
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posts)
}

var fixedNow = func() time.Time { return time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC) }

func TestHandleInvalidatesAndDispatchesPublishedPost(t *testing.T) {
	c := &fakeContent{posts: map[string]content.Post{"nuevo": {ID: "1", Title: "Nuevo", Slug: "nuevo"}}}
	d := &fakeDispatcher{}
	var events []string
	r := NewReceiver(c, WithDispatcher(d), WithClock(fixedNow), WithObserver(func(e string) { events = append(events, e) }))
	defer r.Close()

	res := r.Handle(context.Background(), Event{Event: EventPostPublished, Post: &struct {
		Slug string `json:"slug"`
	}{Slug: "nuevo"}})
	r.Wait()

	if res.Message != "Revalidation triggered successfully" || res.Timestamp != "2026-07-01T08:00:00Z" || res.Invalidated != 3 || !res.Dispatching {
		t.Fatalf("unexpected result: %+v", res)
	}
	if c.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", c.invalidated)
	}
	if d.count() != 1 || d.posts[0].Slug != "nuevo" {
		t.Fatalf("unexpected dispatches: %+v", d.posts)
	}
	if len(events) != 1 || events[0] != EventPostPublished {
		t.Fatalf("events = %v", events)
	}
}

func TestHandleOtherEventsOnlyInvalidate(t *testing.T) {
	c := &fakeContent{}
	d := &fakeDispatcher{}
	var events []string
	r := NewReceiver(c, WithDispatcher(d), WithObserver(func(e string) { events = append(events, e) }))
	defer r.Close()

	for _, ev := range []Event{{Event: EventPostUpdated, Slug: "x"}, {Event: "page.moved"}, {Event: EventPostPublished}} {
		if res := r.Handle(context.Background(), ev); res.Dispatching {
			t.Fatalf("%+v should not dispatch", ev)
		}
	}
	r.Wait()
	if c.invalidated != 3 || d.count() != 0 {
		t.Fatalf("invalidated=%d dispatched=%d", c.invalidated, d.count())
	}
	if events[1] != "other" {
		t.Fatalf("unknown events must be bucketed, got %v", events)
	}
}

func TestHandleWithoutDispatcher(t *testing.T) {
	r := NewReceiver(&fakeContent{})
	defer r.Close()
	if res := r.Handle(context.Background(), Event{Event: EventPostPublished, Slug: "x"}); res.Dispatching {
		t.Fatal("dispatch without a dispatcher")
	}
}

func TestDispatchSkipsMissingPost(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewReceiver(&fakeContent{}, WithDispatcher(d))
	defer r.Close()

	r.Handle(context.Background(), Event{Event: EventPostPublished, Slug: "missing"})
	r.Wait()
	if d.count() != 0 {
		t.Fatal("dispatched a post that does not exist")
	}
}

func TestDispatchOutlivesRequestContext(t *testing.T) {
	c := &fakeContent{posts: map[string]content.Post{"p": {ID: "1", Title: "P", Slug: "p"}}}
	d := &fakeDispatcher{block: make(chan struct{})}
	r := NewReceiver(c, WithDispatcher(d))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	r.Handle(ctx, Event{Event: EventPostPublished, Slug: "p"})
	cancel()
	close(d.block)
	r.Wait()
	if d.count() != 1 {
		t.Fatal("dispatch was tied to the request context")
	}
}

func TestCloseCancelsRunningDispatch(t *testing.T) {
	c := &fakeContent{posts: map[string]content.Post{"p": {ID: "1", Title: "P", Slug: "p"}}}
	d := &fakeDispatcher{block: make(chan struct{}), err: errors.New("unused")}
	r := NewReceiver(c, WithDispatcher(d))

	r.Handle(context.Background(), Event{Event: EventPostPublished, Slug: "p"})
	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not cancel the dispatch")
	}
	if d.count() != 0 {
		t.Fatal("cancelled dispatch recorded a send")
	}
	if res := r.Handle(context.Background(), Event{Event: EventPostPublished, Slug: "p"}); res.Dispatching {
		t.Fatal("dispatch started after Close")
	}
}

func TestRevalidate(t *testing.T) {
	c := &fakeContent{}
	var events []string
	r := NewReceiver(c, WithClock(fixedNow), WithObserver(func(e string) { events = append(events, e) }))
	defer r.Close()

	res := r.Revalidate(context.Background())
	if res.Message != "Manual revalidation triggered" || res.Invalidated != 3 || c.invalidated != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(events) != 1 || events[0] != EventManual {
		t.Fatalf("events = %v", events)
	}
}

func TestPublishDuringListFetchDispatchesNewPost(t *testing.T) {
	old := []content.Post{{ID: "1", Title: "Viejo", Slug: "viejo", Category: content.Startup}}
	started := make(chan struct{})
	release := make(chan struct{})
	var (
		mu    sync.Mutex
		calls int
	)
	src := content.SourceFunc(func(context.Context, content.Category) ([]content.Post, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(started)
			<-release
			return old, nil
		}
		return append(old, content.Post{ID: "2", Title: "Nuevo", Slug: "nuevo", Category: content.Startup}), nil
	})
	svc := content.NewService(src,
		memory.New[[]content.Post](memory.Options{Name: "posts"}),
		memory.New[content.Post](memory.Options{Name: "post"}))

	listed := make(chan []content.Post, 1)
	go func() {
		posts, _ := svc.Posts(context.Background(), content.All)
		listed <- posts
	}()
	<-started

	d := &fakeDispatcher{}
	r := NewReceiver(svc, WithDispatcher(d), WithClock(fixedNow))
	defer r.Close()
	res := r.Handle(context.Background(), Event{Event: EventPostPublished, Post: &struct {
		Slug string `json:"slug"`
	}{Slug: "nuevo"}})
	if !res.Dispatching {
		t.Fatalf("expected dispatch to start: %+v", res)
	}

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		close(release)
		t.Fatalf("dispatch waited on the list fetch started before the webhook")
	}
	close(release)
	if posts := <-listed; len(posts) != 1 {
		t.Fatalf("earlier reader got %d posts, want 1", len(posts))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.posts) != 1 || d.posts[0].Slug != "nuevo" {
		t.Fatalf("dispatched %+v, want the published post", d.posts)
	}

	posts, err := svc.Posts(context.Background(), content.All)
	if err != nil || len(posts) != 2 {
		t.Fatalf("cached list after publish = %d posts, %v; want 2", len(posts), err)
	}
}
