// Package liststore keeps the ordered, duplicate-free comment lists the client
// renders, plus the pager that fills them page by page.
package liststore

import (
	"sync"

	"github.com/example/commentsync/services/commentsync/internal/domain"
)

// ChangeFunc is called after every mutation that changed a list.
type ChangeFunc func(l *List)

// List is an ordered sequence of comments with no duplicate ids. It is safe for
// concurrent use.
type List struct {
	mu       sync.RWMutex
	parentID string
	items    []domain.Comment
	index    map[string]struct{}
	cursor   string
	hasMore  bool
	sort     domain.SortMode
	onChange ChangeFunc
}

// NewList returns an empty list. parentID is empty for the top-level list.
func NewList(parentID string, sort domain.SortMode) *List {
	return &List{
		parentID: parentID,
		index:    make(map[string]struct{}),
		hasMore:  true,
		sort:     sort,
	}
}

// OnChange registers fn as the change observer, replacing any previous one.
// fn runs on the mutating goroutine and must not call back into a Pager.
func (l *List) OnChange(fn ChangeFunc) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// ParentID is the scope of the list: empty for top-level, else the parent comment id.
func (l *List) ParentID() string { return l.parentID }

// Reset clears the sequence and cursor and records sort. It does not fetch.
func (l *List) Reset(sort domain.SortMode) {
	l.mu.Lock()
	l.items = nil
	l.index = make(map[string]struct{})
	l.cursor = ""
	l.hasMore = true
	l.sort = sort
	fn := l.onChange
	l.mu.Unlock()
	notify(fn, l)
}

// LoadPage appends items not already present and stores the pagination state.
// It returns how many items were appended.
func (l *List) LoadPage(items []domain.Comment, nextCursor string, hasMore bool) int {
	l.mu.Lock()
	added := 0
	for _, c := range items {
		if _, ok := l.index[c.ID]; ok {
			continue
		}
		l.index[c.ID] = struct{}{}
		l.items = append(l.items, c)
		added++
	}
	l.cursor = nextCursor
	l.hasMore = hasMore
	fn := l.onChange
	l.mu.Unlock()
	notify(fn, l)
	return added
}

// InsertAtHead prepends c unless its id is already present.
func (l *List) InsertAtHead(c domain.Comment) bool {
	l.mu.Lock()
	if _, ok := l.index[c.ID]; ok {
		l.mu.Unlock()
		return false
	}
	l.index[c.ID] = struct{}{}
	l.items = append([]domain.Comment{c}, l.items...)
	fn := l.onChange
	l.mu.Unlock()
	notify(fn, l)
	return true
}

// ReplaceByID swaps the stored comment with the same id for c. Unknown ids are
// ignored. An unknown viewer reaction on c keeps the stored one.
func (l *List) ReplaceByID(c domain.Comment) bool {
	l.mu.Lock()
	if _, ok := l.index[c.ID]; !ok {
		l.mu.Unlock()
		return false
	}
	for i := range l.items {
		if l.items[i].ID != c.ID {
			continue
		}
		if c.ViewerReaction == domain.ReactionUnknown {
			c.ViewerReaction = l.items[i].ViewerReaction
		}
		l.items[i] = c
		break
	}
	fn := l.onChange
	l.mu.Unlock()
	notify(fn, l)
	return true
}

// RemoveByID drops the comment with id. Removing an absent id is a no-op.
func (l *List) RemoveByID(id string) bool {
	l.mu.Lock()
	if _, ok := l.index[id]; !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.index, id)
	for i := range l.items {
		if l.items[i].ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	fn := l.onChange
	l.mu.Unlock()
	notify(fn, l)
	return true
}

// Snapshot returns a copy of the current sequence.
func (l *List) Snapshot() []domain.Comment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Comment, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *List) Get(id string) (domain.Comment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.index[id]; !ok {
		return domain.Comment{}, false
	}
	for _, c := range l.items {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Comment{}, false
}

func (l *List) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[id]
	return ok
}

func (l *List) Cursor() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cursor
}

func (l *List) HasMore() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hasMore
}

func (l *List) Sort() domain.SortMode {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sort
}

func notify(fn ChangeFunc, l *List) {
	if fn != nil {
		fn(l)
	}
}
