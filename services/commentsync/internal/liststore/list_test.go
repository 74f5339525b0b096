package liststore

import (
	"testing"

	"github.com/example/commentsync/services/commentsync/internal/domain"
)

func comment(id string) domain.Comment {
	return domain.Comment{ID: id, Content: "body " + id, Author: domain.Author{ID: "u-" + id}}
}

func ids(l *List) []string {
	snap := l.Snapshot()
	out := make([]string, len(snap))
	for i, c := range snap {
		out[i] = c.ID
	}
	return out
}

func equalIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestList_NewIsEmptyWithMore(t *testing.T) {
	l := NewList("", domain.SortNewest)
	if l.Len() != 0 || !l.HasMore() || l.Cursor() != "" {
		t.Fatalf("unexpected initial state: len=%d hasMore=%v cursor=%q", l.Len(), l.HasMore(), l.Cursor())
	}
}

func TestList_LoadPageSkipsDuplicates(t *testing.T) {
	l := NewList("", domain.SortNewest)
	if n := l.LoadPage([]domain.Comment{comment("a"), comment("b")}, "c1", true); n != 2 {
		t.Fatalf("expected 2 appended, got %d", n)
	}
	if n := l.LoadPage([]domain.Comment{comment("b"), comment("c")}, "c2", false); n != 1 {
		t.Fatalf("expected 1 appended, got %d", n)
	}
	equalIDs(t, ids(l), "a", "b", "c")
	if l.Cursor() != "c2" || l.HasMore() {
		t.Fatalf("expected cursor c2 and no more, got %q %v", l.Cursor(), l.HasMore())
	}
}

func TestList_InsertAtHeadIsIdempotent(t *testing.T) {
	l := NewList("", domain.SortMostLiked)
	l.LoadPage([]domain.Comment{comment("a")}, "", false)
	if !l.InsertAtHead(comment("x")) {
		t.Fatal("expected insert of new id")
	}
	if l.InsertAtHead(comment("x")) {
		t.Fatal("expected duplicate insert to be a no-op")
	}
	if l.InsertAtHead(comment("a")) {
		t.Fatal("expected insert of loaded id to be a no-op")
	}
	equalIDs(t, ids(l), "x", "a")
}

func TestList_RemoveByIDIsIdempotent(t *testing.T) {
	l := NewList("", domain.SortNewest)
	l.LoadPage([]domain.Comment{comment("a"), comment("b"), comment("c")}, "", false)

	if !l.RemoveByID("b") {
		t.Fatal("expected first remove to report true")
	}
	if l.RemoveByID("b") {
		t.Fatal("expected second remove to report false")
	}
	if l.RemoveByID("missing") {
		t.Fatal("expected remove of unknown id to report false")
	}
	equalIDs(t, ids(l), "a", "c")
	if l.Contains("b") {
		t.Fatal("expected b to be gone")
	}
}

func TestList_ReplaceByID(t *testing.T) {
	l := NewList("", domain.SortNewest)
	a := comment("a")
	a.ViewerReaction = domain.ReactionLike
	a.LikeCount = 1
	l.LoadPage([]domain.Comment{a, comment("b")}, "", false)

	if l.ReplaceByID(comment("zzz")) {
		t.Fatal("expected replace of unknown id to be ignored")
	}
	equalIDs(t, ids(l), "a", "b")

	upd := comment("a")
	upd.Content = "edited"
	upd.LikeCount = 2
	if !l.ReplaceByID(upd) {
		t.Fatal("expected replace to succeed")
	}
	got, _ := l.Get("a")
	if got.Content != "edited" || got.LikeCount != 2 {
		t.Fatalf("unexpected replaced comment %+v", got)
	}
	if got.ViewerReaction != domain.ReactionLike {
		t.Fatalf("expected unknown reaction to keep stored like, got %q", got.ViewerReaction)
	}

	upd.ViewerReaction = domain.ReactionNone
	l.ReplaceByID(upd)
	got, _ = l.Get("a")
	if got.ViewerReaction != domain.ReactionNone {
		t.Fatalf("expected explicit none to overwrite, got %q", got.ViewerReaction)
	}
	equalIDs(t, ids(l), "a", "b")
}

func TestList_Reset(t *testing.T) {
	l := NewList("", domain.SortNewest)
	l.LoadPage([]domain.Comment{comment("a")}, "c1", false)
	l.Reset(domain.SortMostDisliked)
	if l.Len() != 0 || l.Cursor() != "" || !l.HasMore() || l.Sort() != domain.SortMostDisliked {
		t.Fatalf("unexpected state after reset: len=%d cursor=%q more=%v sort=%q", l.Len(), l.Cursor(), l.HasMore(), l.Sort())
	}
	if !l.InsertAtHead(comment("a")) {
		t.Fatal("expected a to be insertable again after reset")
	}
}

func TestList_OnChange(t *testing.T) {
	l := NewList("p1", domain.SortNewest)
	calls := 0
	l.OnChange(func(got *List) {
		if got != l {
			t.Fatal("observer got a different list")
		}
		calls++
	})
	l.InsertAtHead(comment("a"))
	l.InsertAtHead(comment("a"))
	l.RemoveByID("missing")
	l.RemoveByID("a")
	if calls != 2 {
		t.Fatalf("expected 2 notifications for effective mutations, got %d", calls)
	}
}

func TestList_ScenarioRealtimeThenPagination(t *testing.T) {
	l := NewList("", domain.SortNewest)
	l.LoadPage([]domain.Comment{comment("A"), comment("B")}, "c1", true)

	l.InsertAtHead(comment("X"))
	l.LoadPage([]domain.Comment{comment("X"), comment("C")}, "", false)
	l.RemoveByID("B")
	l.RemoveByID("B")

	equalIDs(t, ids(l), "X", "A", "C")
	if l.HasMore() {
		t.Fatal("expected list to be exhausted")
	}
}
