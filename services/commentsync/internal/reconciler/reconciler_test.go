package reconciler

import (
	"strings"
	"testing"

	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/liststore"
	"github.com/example/commentsync/services/commentsync/internal/realtime"
)

const viewer = "me"

func mk(id, author, parent string) domain.Comment {
	return domain.Comment{ID: id, Content: "c " + id, Author: domain.Author{ID: author}, ParentID: parent}
}

func created(c domain.Comment) realtime.Event {
	return realtime.Event{Kind: realtime.KindCreated, Comment: &c, CommentID: c.ID}
}

func ids(l *liststore.List) string {
	var out []string
	for _, c := range l.Snapshot() {
		out = append(out, c.ID)
	}
	return strings.Join(out, ",")
}

func setup(t *testing.T) (*realtime.Bus, *Reconciler, *liststore.List) {
	t.Helper()
	bus := realtime.NewBus(nil)
	r := New(bus, viewer, nil)
	top := liststore.NewList("", domain.SortNewest)
	r.Attach(top)
	return bus, r, top
}

func TestReconciler_CreatedInsertsAtHead(t *testing.T) {
	bus, _, top := setup(t)
	top.LoadPage([]domain.Comment{mk("a", "x", ""), mk("b", "x", "")}, "", false)

	bus.Publish(created(mk("n", "other", "")))
	bus.Publish(created(mk("n", "other", "")))

	if got := ids(top); got != "n,a,b" {
		t.Fatalf("expected n,a,b got %s", got)
	}
}

func TestReconciler_SuppressesOwnCreate(t *testing.T) {
	bus, _, top := setup(t)
	bus.Publish(created(mk("mine", viewer, "")))
	if top.Len() != 0 {
		t.Fatalf("expected own create to be suppressed, got %s", ids(top))
	}
}

func TestReconciler_UpdateAndReactReplace(t *testing.T) {
	bus, _, top := setup(t)
	a := mk("a", "x", "")
	a.ViewerReaction = domain.ReactionDislike
	top.LoadPage([]domain.Comment{a}, "", false)

	upd := mk("a", "x", "")
	upd.Content = "edited"
	bus.Publish(realtime.Event{Kind: realtime.KindUpdated, Comment: &upd, CommentID: "a"})
	react := upd
	react.LikeCount = 7
	bus.Publish(realtime.Event{Kind: realtime.KindReacted, Comment: &react, CommentID: "a"})

	got, _ := top.Get("a")
	if got.Content != "edited" || got.LikeCount != 7 {
		t.Fatalf("unexpected comment %+v", got)
	}
	if got.ViewerReaction != domain.ReactionDislike {
		t.Fatalf("expected broadcast without viewer reaction to keep dislike, got %q", got.ViewerReaction)
	}
}

func TestReconciler_OutOfOrderEvents(t *testing.T) {
	bus, _, top := setup(t)

	upd := mk("ghost", "x", "")
	bus.Publish(realtime.Event{Kind: realtime.KindUpdated, Comment: &upd, CommentID: "ghost"})
	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "ghost"})
	if top.Len() != 0 {
		t.Fatalf("expected update/delete for unknown ids to be no-ops, got %s", ids(top))
	}

	// delete arrives before the create it refers to
	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "late"})
	bus.Publish(created(mk("late", "x", "")))
	if got := ids(top); got != "late" {
		t.Fatalf("expected late to be inserted, got %s", got)
	}
	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "late"})
	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "late"})
	if top.Len() != 0 {
		t.Fatalf("expected empty list, got %s", ids(top))
	}
}

func TestReconciler_RoutesRepliesToExpandedSubstore(t *testing.T) {
	bus, r, top := setup(t)
	top.LoadPage([]domain.Comment{mk("p1", "x", ""), mk("p2", "x", "")}, "", false)
	sub := liststore.NewList("p1", domain.SortNewest)
	r.Attach(sub)

	reply := mk("r1", "other", "p1")
	bus.Publish(realtime.Event{Kind: realtime.KindReplyCreated, Comment: &reply, CommentID: "r1", ParentID: "p1"})
	// parent p2 was never expanded
	orphan := mk("r2", "other", "p2")
	bus.Publish(realtime.Event{Kind: realtime.KindReplyCreated, Comment: &orphan, CommentID: "r2", ParentID: "p2"})
	// a reply announced through comment:new is routed by its parent too
	viaNew := mk("r3", "other", "p1")
	bus.Publish(created(viaNew))

	if got := ids(top); got != "p1,p2" {
		t.Fatalf("expected replies to stay out of the top list, got %s", got)
	}
	if got := ids(sub); got != "r3,r1" {
		t.Fatalf("expected r3,r1 in substore, got %s", got)
	}

	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "r1"})
	if got := ids(sub); got != "r3" {
		t.Fatalf("expected delete to reach substore, got %s", got)
	}
}

func TestReconciler_DetachIsTokenPrecise(t *testing.T) {
	bus, r, top := setup(t)
	other := liststore.NewList("", domain.SortNewest)
	r.Attach(other)
	r.Attach(other)
	before := bus.Len()

	if !r.Detach(top) {
		t.Fatal("expected detach of attached list")
	}
	if r.Detach(top) {
		t.Fatal("expected second detach to report false")
	}
	if bus.Len() != before/2 {
		t.Fatalf("expected %d handlers left, got %d", before/2, bus.Len())
	}

	bus.Publish(created(mk("n", "x", "")))
	if top.Len() != 0 {
		t.Fatal("detached list must not receive events")
	}
	if other.Len() != 1 {
		t.Fatal("other list must still receive events")
	}

	r.Close()
	if bus.Len() != 0 || r.Attached() != 0 {
		t.Fatalf("expected no handlers after close, bus=%d attached=%d", bus.Len(), r.Attached())
	}
}

func TestReconciler_ScenarioSelfCreateWithLoad(t *testing.T) {
	bus, _, top := setup(t)
	top.LoadPage([]domain.Comment{mk("A", "x", ""), mk("B", "x", "")}, "c1", true)

	// own create confirmed by the coordinator, then echoed by the stream
	mine := mk("X", viewer, "")
	top.InsertAtHead(mine)
	bus.Publish(created(mine))

	top.LoadPage([]domain.Comment{mk("X", viewer, ""), mk("C", "x", "")}, "", false)
	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "B"})
	bus.Publish(realtime.Event{Kind: realtime.KindDeleted, CommentID: "B"})

	if got := ids(top); got != "X,A,C" {
		t.Fatalf("expected X,A,C got %s", got)
	}
	if top.HasMore() {
		t.Fatal("expected no more pages")
	}
}
