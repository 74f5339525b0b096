package coordinator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/liststore"
)

type fakeService struct {
	comments map[string]domain.Comment
	err      error
	calls    int
	nextID   int
}

func newFakeService(cs ...domain.Comment) *fakeService {
	f := &fakeService{comments: make(map[string]domain.Comment)}
	for _, c := range cs {
		f.comments[c.ID] = c
	}
	return f
}

func (f *fakeService) CreateComment(_ context.Context, in domain.CreateInput) (domain.Comment, error) {
	f.calls++
	if f.err != nil {
		return domain.Comment{}, f.err
	}
	f.nextID++
	c := domain.Comment{
		ID:             "new-" + string(rune('0'+f.nextID)),
		Content:        in.Content,
		ParentID:       in.ParentID,
		Author:         domain.Author{ID: "me"},
		ViewerReaction: domain.ReactionNone,
	}
	f.comments[c.ID] = c
	return c, nil
}

func (f *fakeService) UpdateComment(_ context.Context, id, content string) (domain.Comment, error) {
	f.calls++
	if f.err != nil {
		return domain.Comment{}, f.err
	}
	c, ok := f.comments[id]
	if !ok {
		return domain.Comment{}, &domain.NotFoundError{ID: id}
	}
	c.Content = content
	f.comments[id] = c
	return c, nil
}

func (f *fakeService) DeleteComment(_ context.Context, id string) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if _, ok := f.comments[id]; !ok {
		return &domain.NotFoundError{ID: id}
	}
	delete(f.comments, id)
	return nil
}

func (f *fakeService) ToggleReaction(_ context.Context, id string, kind domain.Reaction) (domain.Comment, error) {
	f.calls++
	if f.err != nil {
		return domain.Comment{}, f.err
	}
	c, ok := f.comments[id]
	if !ok {
		return domain.Comment{}, &domain.NotFoundError{ID: id}
	}
	adjust := func(r domain.Reaction, d int) {
		switch r {
		case domain.ReactionLike:
			c.LikeCount += d
		case domain.ReactionDislike:
			c.DislikeCount += d
		}
	}
	prev := c.ViewerReaction
	adjust(prev, -1)
	if prev == kind {
		c.ViewerReaction = domain.ReactionNone
	} else {
		c.ViewerReaction = kind
		adjust(kind, 1)
	}
	f.comments[id] = c
	return c, nil
}

type staticLists []*liststore.List

func (s staticLists) Lists() []*liststore.List { return s }

func seeded(cs ...domain.Comment) *liststore.List {
	l := liststore.NewList("", domain.SortNewest)
	l.LoadPage(cs, "", false)
	return l
}

func TestCoordinator_CreateTopLevelInsertsAtHead(t *testing.T) {
	top := seeded(domain.Comment{ID: "a"})
	co := New(newFakeService(), top, nil, nil)

	c, err := co.Create(context.Background(), "  hello  ", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Content != "hello" {
		t.Fatalf("expected trimmed content, got %q", c.Content)
	}
	snap := top.Snapshot()
	if len(snap) != 2 || snap[0].ID != c.ID {
		t.Fatalf("expected new comment at head, got %+v", snap)
	}
}

func TestCoordinator_CreateReplyLeavesListsAlone(t *testing.T) {
	top := seeded(domain.Comment{ID: "p1"})
	sub := liststore.NewList("p1", domain.SortNewest)
	co := New(newFakeService(), top, staticLists{sub}, nil)

	c, err := co.Create(context.Background(), "a reply", "p1")
	if err != nil {
		t.Fatalf("create reply: %v", err)
	}
	if c.ParentID != "p1" {
		t.Fatalf("expected reply to p1, got %q", c.ParentID)
	}
	if top.Len() != 1 || sub.Len() != 0 {
		t.Fatalf("expected no local insert for replies, top=%d sub=%d", top.Len(), sub.Len())
	}
}

func TestCoordinator_CreateValidatesLocally(t *testing.T) {
	svc := newFakeService()
	co := New(svc, seeded(), nil, nil)

	for _, content := range []string{"", "   ", strings.Repeat("x", domain.MaxContentLength+1)} {
		_, err := co.Create(context.Background(), content, "")
		var re *domain.RequestError
		if !errors.As(err, &re) || len(re.Fields["content"]) == 0 {
			t.Fatalf("expected content field error, got %v", err)
		}
	}
	if svc.calls != 0 {
		t.Fatalf("expected no service calls, got %d", svc.calls)
	}
}

func TestCoordinator_FailureLeavesStoreUntouched(t *testing.T) {
	a := domain.Comment{ID: "a", Content: "orig", ViewerReaction: domain.ReactionNone}
	top := seeded(a)
	svc := newFakeService(a)
	svc.err = &domain.NetworkError{Op: "post", Err: errors.New("connection refused")}
	co := New(svc, top, nil, nil)
	ctx := context.Background()

	if _, err := co.Create(ctx, "new", ""); !domain.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if _, err := co.Edit(ctx, "a", "changed"); !domain.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if _, err := co.Remove(ctx, "a"); !domain.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if _, err := co.React(ctx, "a", domain.ReactionLike); !domain.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}

	snap := top.Snapshot()
	if len(snap) != 1 || snap[0] != a {
		t.Fatalf("expected store untouched, got %+v", snap)
	}
}

func TestCoordinator_EditReplacesEverywhere(t *testing.T) {
	r := domain.Comment{ID: "r1", Content: "old", ParentID: "p1"}
	top := seeded(domain.Comment{ID: "p1"})
	sub := liststore.NewList("p1", domain.SortNewest)
	sub.LoadPage([]domain.Comment{r}, "", false)
	co := New(newFakeService(r), top, staticLists{sub}, nil)

	if _, err := co.Edit(context.Background(), "r1", "new text"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	got, _ := sub.Get("r1")
	if got.Content != "new text" {
		t.Fatalf("expected edited reply, got %q", got.Content)
	}
}

func TestCoordinator_RemoveReportsPresence(t *testing.T) {
	top := seeded(domain.Comment{ID: "a"})
	svc := newFakeService(domain.Comment{ID: "a"}, domain.Comment{ID: "elsewhere"})
	co := New(svc, top, nil, nil)
	ctx := context.Background()

	removed, err := co.Remove(ctx, "a")
	if err != nil || !removed {
		t.Fatalf("expected removal, removed=%v err=%v", removed, err)
	}
	removed, err = co.Remove(ctx, "elsewhere")
	if err != nil || removed {
		t.Fatalf("expected server delete without local removal, removed=%v err=%v", removed, err)
	}
	if _, err := co.Remove(ctx, "a"); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := co.Remove(ctx, " "); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestCoordinator_ReactionToggleScenario(t *testing.T) {
	a := domain.Comment{ID: "a", ViewerReaction: domain.ReactionNone}
	top := seeded(a)
	co := New(newFakeService(a), top, nil, nil)
	ctx := context.Background()

	steps := []struct {
		kind     domain.Reaction
		likes    int
		dislikes int
		viewer   domain.Reaction
	}{
		{domain.ReactionLike, 1, 0, domain.ReactionLike},
		{domain.ReactionLike, 0, 0, domain.ReactionNone},
		{domain.ReactionDislike, 0, 1, domain.ReactionDislike},
		{domain.ReactionLike, 1, 0, domain.ReactionLike},
	}
	for i, s := range steps {
		if _, err := co.React(ctx, "a", s.kind); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		got, _ := top.Get("a")
		if got.LikeCount != s.likes || got.DislikeCount != s.dislikes || got.ViewerReaction != s.viewer {
			t.Fatalf("step %d: expected %d/%d %q, got %d/%d %q", i,
				s.likes, s.dislikes, s.viewer, got.LikeCount, got.DislikeCount, got.ViewerReaction)
		}
	}

	if _, err := co.React(ctx, "a", domain.ReactionNone); err == nil {
		t.Fatal("expected invalid reaction to be rejected")
	}
}
