// Package session wires the stores, reconciler and coordinator for one signed
// in viewer. Nothing in it is global: tests and callers build as many sessions
// as they need.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/example/commentsync/services/commentsync/internal/coordinator"
	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/liststore"
	"github.com/example/commentsync/services/commentsync/internal/realtime"
	"github.com/example/commentsync/services/commentsync/internal/reconciler"
	"github.com/example/commentsync/services/commentsync/internal/replies"
)

var ErrClosed = errors.New("session: closed")

// Service is the comment API the session drives.
type Service interface {
	coordinator.Service
	FetchComments(ctx context.Context, req domain.PageRequest) (domain.Page, error)
	FetchReplies(ctx context.Context, parentID string, req domain.PageRequest) (domain.Page, error)
}

type Options struct {
	ViewerID string
	PageSize int
	Sort     domain.SortMode
	Logger   *zap.Logger
	// OnChange observes every list owned by the session.
	OnChange liststore.ChangeFunc
}

type Session struct {
	log     *zap.Logger
	top     *liststore.List
	pager   *liststore.Pager
	replies *replies.Registry
	rec     *reconciler.Reconciler
	coord   *coordinator.Coordinator

	mu     sync.Mutex
	closed bool
}

// New builds a session on bus. Events published on bus are applied to the
// session's lists until Close.
func New(svc Service, bus *realtime.Bus, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("session").With(zap.String("viewer_id", opts.ViewerID))
	if opts.Sort == "" {
		opts.Sort = domain.SortNewest
	}

	top := liststore.NewList("", opts.Sort)
	if opts.OnChange != nil {
		top.OnChange(opts.OnChange)
	}
	rec := reconciler.New(bus, opts.ViewerID, log)
	rec.Attach(top)

	reg := replies.New(svc.FetchReplies, rec, opts.PageSize, log)
	if opts.OnChange != nil {
		reg.OnChange(opts.OnChange)
	}

	return &Session{
		log:     log,
		top:     top,
		pager:   liststore.NewPager(top, svc.FetchComments, opts.PageSize, log),
		replies: reg,
		rec:     rec,
		coord:   coordinator.New(svc, top, reg, log),
	}
}

// Start loads the first page of top-level comments.
func (s *Session) Start(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.pager.LoadMore(ctx)
	return err
}

// Comments returns the top-level list.
func (s *Session) Comments() *liststore.List { return s.top }

// SetSort discards the top-level list and loads the first page under mode. An
// unknown mode is rejected before the list is touched.
func (s *Session) SetSort(ctx context.Context, mode domain.SortMode) error {
	if err := s.check(); err != nil {
		return err
	}
	m, ok := domain.ParseSortMode(string(mode))
	if !ok {
		return &domain.RequestError{
			Message: "invalid sort mode",
			Fields:  map[string][]string{"sortBy": {"Unknown sort mode " + string(mode)}},
		}
	}
	s.pager.Reset(m)
	_, err := s.pager.LoadMore(ctx)
	return err
}

// Refresh reloads the top-level list from the first page.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.pager.Refresh(ctx)
}

// LoadMore fetches the next top-level page; see liststore.Pager.LoadMore.
func (s *Session) LoadMore(ctx context.Context) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.pager.LoadMore(ctx)
}

// Loading reports whether a top-level fetch is in flight.
func (s *Session) Loading() bool { return s.pager.Loading() }

func (s *Session) ExpandReplies(ctx context.Context, parentID string) (*liststore.List, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.replies.Expand(ctx, parentID)
}

func (s *Session) LoadMoreReplies(ctx context.Context, parentID string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.replies.LoadMore(ctx, parentID)
}

func (s *Session) RefreshReplies(ctx context.Context, parentID string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.replies.Refresh(ctx, parentID)
}

// Replies returns the reply list for parentID if it was expanded.
func (s *Session) Replies(parentID string) (*liststore.List, bool) {
	return s.replies.Get(parentID)
}

// Create posts a top-level comment.
func (s *Session) Create(ctx context.Context, content string) (domain.Comment, error) {
	if err := s.check(); err != nil {
		return domain.Comment{}, err
	}
	return s.coord.Create(ctx, content, "")
}

// Reply posts a reply and refreshes the parent's reply list if it is
// expanded.
func (s *Session) Reply(ctx context.Context, parentID, content string) (domain.Comment, error) {
	if err := s.check(); err != nil {
		return domain.Comment{}, err
	}
	if parentID == "" {
		return domain.Comment{}, &domain.RequestError{Message: "parent id is required"}
	}
	c, err := s.coord.Create(ctx, content, parentID)
	if err != nil {
		return domain.Comment{}, err
	}
	if _, err := s.replies.Refresh(ctx, parentID); err != nil {
		s.log.Warn("refresh replies after reply", zap.String("parent_id", parentID), zap.Error(err))
	}
	return c, nil
}

func (s *Session) Edit(ctx context.Context, id, content string) (domain.Comment, error) {
	if err := s.check(); err != nil {
		return domain.Comment{}, err
	}
	return s.coord.Edit(ctx, id, content)
}

func (s *Session) Remove(ctx context.Context, id string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	return s.coord.Remove(ctx, id)
}

func (s *Session) React(ctx context.Context, id string, kind domain.Reaction) (domain.Comment, error) {
	if err := s.check(); err != nil {
		return domain.Comment{}, err
	}
	return s.coord.React(ctx, id, kind)
}

// Close removes every bus subscription the session installed and stops its
// pagers. Lists keep their last contents.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.pager.Close()
	s.replies.Close()
	s.rec.Close()
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
