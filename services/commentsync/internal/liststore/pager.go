package liststore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/commentsync/services/commentsync/internal/domain"
)

// FetchFunc loads one page for a list.
type FetchFunc func(ctx context.Context, req domain.PageRequest) (domain.Page, error)

// Pager drives cursor pagination for one List. At most one fetch is in flight
// at a time; responses that arrive after a Reset or Close are discarded.
type Pager struct {
	list     *List
	fetch    FetchFunc
	pageSize int
	log      *zap.Logger

	mu       sync.Mutex
	inFlight bool
	epoch    uint64
	closed   bool
}

// NewPager wires fetch to list. A nil logger disables logging.
func NewPager(list *List, fetch FetchFunc, pageSize int, log *zap.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = 10
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pager{
		list:     list,
		fetch:    fetch,
		pageSize: pageSize,
		log:      log.Named("pager").With(zap.String("parent_id", list.ParentID())),
	}
}

func (p *Pager) List() *List { return p.list }

// Reset discards the list and any fetch in flight, leaving the pager ready for
// a fresh first page under sort.
func (p *Pager) Reset(sort domain.SortMode) {
	p.mu.Lock()
	p.epoch++
	p.inFlight = false
	p.mu.Unlock()
	p.list.Reset(sort)
}

// LoadMore fetches the next page. It reports whether a fetch was issued; it is
// a no-op when the list is exhausted or a fetch is already running.
func (p *Pager) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.closed || p.inFlight || !p.list.HasMore() {
		p.mu.Unlock()
		return false, nil
	}
	p.inFlight = true
	epoch := p.epoch
	p.mu.Unlock()

	req := domain.PageRequest{
		Cursor: p.list.Cursor(),
		Limit:  p.pageSize,
		Sort:   p.list.Sort(),
	}
	page, err := p.fetch(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if epoch != p.epoch {
		p.log.Debug("discarding stale page", zap.Uint64("epoch", epoch), zap.Uint64("current", p.epoch))
		return true, nil
	}
	p.inFlight = false
	if err != nil {
		return true, err
	}

	hasMore := page.HasMore
	if hasMore && page.NextCursor == "" {
		p.log.Warn("page claims more results without a cursor; treating as end of stream")
		hasMore = false
	}
	p.list.LoadPage(page.Items, page.NextCursor, hasMore)
	return true, nil
}

// Refresh resets the list under its current sort and loads the first page.
func (p *Pager) Refresh(ctx context.Context) error {
	p.Reset(p.list.Sort())
	_, err := p.LoadMore(ctx)
	return err
}

// Loading reports whether a fetch is in flight.
func (p *Pager) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Close stops the pager; later LoadMore calls are no-ops and in-flight
// responses are dropped.
func (p *Pager) Close() {
	p.mu.Lock()
	p.epoch++
	p.inFlight = false
	p.closed = true
	p.mu.Unlock()
}
