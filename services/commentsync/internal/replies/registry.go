// Package replies keeps one lazily created reply list per expanded parent.
package replies

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/liststore"
)

var ErrClosed = errors.New("replies: registry closed")

// FetchFunc loads one page of replies to parentID.
type FetchFunc func(ctx context.Context, parentID string, req domain.PageRequest) (domain.Page, error)

// Attacher connects a list to the realtime stream.
type Attacher interface {
	Attach(list *liststore.List)
	Detach(list *liststore.List) bool
}

// Registry maps parent ids to their reply lists. Substores live until Close.
type Registry struct {
	fetch    FetchFunc
	attacher Attacher
	pageSize int
	log      *zap.Logger
	onChange liststore.ChangeFunc

	mu      sync.Mutex
	closed  bool
	pagers  map[string]*liststore.Pager
	ordered []string
}

func New(fetch FetchFunc, attacher Attacher, pageSize int, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		fetch:    fetch,
		attacher: attacher,
		pageSize: pageSize,
		log:      log.Named("replies"),
		pagers:   make(map[string]*liststore.Pager),
	}
}

// OnChange sets the observer given to substores created after this call.
func (r *Registry) OnChange(fn liststore.ChangeFunc) {
	r.mu.Lock()
	r.onChange = fn
	r.mu.Unlock()
}

// Expand returns the reply list for parentID, creating it and loading its first
// page on first use. Later calls fetch again only while the list is still empty
// with more to load, e.g. after a failed first fetch.
func (r *Registry) Expand(ctx context.Context, parentID string) (*liststore.List, error) {
	if parentID == "" {
		return nil, &domain.RequestError{Message: "parent id is required"}
	}
	p, created, err := r.pager(parentID)
	if err != nil {
		return nil, err
	}
	l := p.List()
	if created || (l.Len() == 0 && l.HasMore() && !p.Loading()) {
		if _, err := p.LoadMore(ctx); err != nil {
			return p.List(), err
		}
	}
	return p.List(), nil
}

// LoadMore fetches the next page for an expanded parent. Unknown parents are a
// no-op.
func (r *Registry) LoadMore(ctx context.Context, parentID string) (bool, error) {
	p := r.lookup(parentID)
	if p == nil {
		return false, nil
	}
	return p.LoadMore(ctx)
}

// Refresh reloads the first page of an expanded parent. It reports whether the
// parent was expanded.
func (r *Registry) Refresh(ctx context.Context, parentID string) (bool, error) {
	p := r.lookup(parentID)
	if p == nil {
		return false, nil
	}
	return true, p.Refresh(ctx)
}

// Get returns the reply list for parentID if it was expanded.
func (r *Registry) Get(parentID string) (*liststore.List, bool) {
	p := r.lookup(parentID)
	if p == nil {
		return nil, false
	}
	return p.List(), true
}

// Lists returns every substore in expansion order.
func (r *Registry) Lists() []*liststore.List {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*liststore.List, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, r.pagers[id].List())
	}
	return out
}

// Close detaches and stops every substore.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	pagers := r.pagers
	r.pagers = make(map[string]*liststore.Pager)
	r.ordered = nil
	r.mu.Unlock()

	for _, p := range pagers {
		p.Close()
		if r.attacher != nil {
			r.attacher.Detach(p.List())
		}
	}
}

func (r *Registry) lookup(parentID string) *liststore.Pager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pagers[parentID]
}

func (r *Registry) pager(parentID string) (*liststore.Pager, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, ErrClosed
	}
	if p, ok := r.pagers[parentID]; ok {
		return p, false, nil
	}

	list := liststore.NewList(parentID, domain.SortNewest)
	if r.onChange != nil {
		list.OnChange(r.onChange)
	}
	fetch := func(ctx context.Context, req domain.PageRequest) (domain.Page, error) {
		// reply lists are always newest first
		req.Sort = ""
		return r.fetch(ctx, parentID, req)
	}
	p := liststore.NewPager(list, fetch, r.pageSize, r.log)
	if r.attacher != nil {
		r.attacher.Attach(list)
	}
	r.pagers[parentID] = p
	r.ordered = append(r.ordered, parentID)
	r.log.Debug("substore created", zap.String("parent_id", parentID))
	return p, true, nil
}
