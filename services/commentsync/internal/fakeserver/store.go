// Package fakeserver is an in-memory implementation of the comments REST API
// and its realtime stream, for tests and local development.
package fakeserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/wire"
)

var (
	ErrNotFound      = errors.New("comment not found")
	ErrForbidden     = errors.New("not the author")
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Author is the profile a comment is attributed to.
type Author struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
}

type record struct {
	id        string
	seq       uint64
	content   string
	author    Author
	parentID  string
	createdAt time.Time
	updatedAt time.Time
	likes     int
	dislikes  int
}

// Store keeps comments, replies and per-user reactions in memory.
type Store struct {
	mu        sync.RWMutex
	seq       uint64
	comments  map[string]*record
	reactions map[string]map[string]domain.Reaction // commentID -> userID -> reaction
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		comments:  make(map[string]*record),
		reactions: make(map[string]map[string]domain.Reaction),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create adds a comment, or a reply when parentID is set. A reply to a reply
// is attached to the top-level ancestor.
func (s *Store) Create(author Author, content, parentID string) (wire.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != "" {
		p, ok := s.comments[parentID]
		if !ok {
			return wire.Comment{}, ErrNotFound
		}
		if p.parentID != "" {
			parentID = p.parentID
		}
	}
	s.seq++
	now := s.now()
	r := &record{
		id:        uuid.NewString(),
		seq:       s.seq,
		content:   strings.TrimSpace(content),
		author:    author,
		parentID:  parentID,
		createdAt: now,
		updatedAt: now,
	}
	s.comments[r.id] = r
	return s.toWire(r, author.ID), nil
}

// Get returns a comment rendered for viewerID.
func (s *Store) Get(id, viewerID string) (wire.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.comments[id]
	if !ok {
		return wire.Comment{}, ErrNotFound
	}
	return s.toWire(r, viewerID), nil
}

// List returns one page of top-level comments (parentID empty) or replies.
// The cursor is the id of the last item of the previous page.
func (s *Store) List(parentID string, mode domain.SortMode, cursor string, limit int, viewerID string) (wire.PageData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if parentID != "" {
		if _, ok := s.comments[parentID]; !ok {
			return wire.PageData{}, ErrNotFound
		}
		mode = domain.SortNewest
	}

	var rows []*record
	for _, r := range s.comments {
		if r.parentID == parentID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j], mode) })

	start := 0
	if cursor != "" {
		start = -1
		for i, r := range rows {
			if r.id == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return wire.PageData{}, ErrInvalidCursor
		}
	}
	rows = rows[start:]

	page := wire.PageData{Data: []wire.Comment{}}
	if len(rows) > limit {
		next := rows[limit-1].id
		page.NextCursor = &next
		page.HasMore = true
		rows = rows[:limit]
	}
	for _, r := range rows {
		page.Data = append(page.Data, s.toWire(r, viewerID))
	}
	return page, nil
}

// Update changes the content of an own comment.
func (s *Store) Update(id, userID, content string) (wire.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return wire.Comment{}, ErrNotFound
	}
	if r.author.ID != userID {
		return wire.Comment{}, ErrForbidden
	}
	r.content = strings.TrimSpace(content)
	r.updatedAt = s.now()
	return s.toWire(r, userID), nil
}

// Delete removes an own comment together with its replies and returns every
// removed id, the comment itself first.
func (s *Store) Delete(id, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.author.ID != userID {
		return nil, ErrForbidden
	}
	removed := []string{id}
	delete(s.comments, id)
	delete(s.reactions, id)
	var replies []*record
	for _, c := range s.comments {
		if c.parentID == id {
			replies = append(replies, c)
		}
	}
	sort.Slice(replies, func(i, j int) bool { return replies[i].seq < replies[j].seq })
	for _, c := range replies {
		delete(s.comments, c.id)
		delete(s.reactions, c.id)
		removed = append(removed, c.id)
	}
	return removed, nil
}

// React toggles userID's reaction: the same kind again clears it, the other
// kind switches it.
func (s *Store) React(id, userID string, kind domain.Reaction) (wire.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.comments[id]
	if !ok {
		return wire.Comment{}, ErrNotFound
	}
	if s.reactions[id] == nil {
		s.reactions[id] = make(map[string]domain.Reaction)
	}
	prev := s.reactions[id][userID]
	adjust(r, prev, -1)
	if prev == kind {
		delete(s.reactions[id], userID)
	} else {
		s.reactions[id][userID] = kind
		adjust(r, kind, 1)
	}
	return s.toWire(r, userID), nil
}

// Len returns the number of stored comments and replies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.comments)
}

func adjust(r *record, kind domain.Reaction, delta int) {
	switch kind {
	case domain.ReactionLike:
		r.likes += delta
	case domain.ReactionDislike:
		r.dislikes += delta
	}
}

func less(a, b *record, mode domain.SortMode) bool {
	switch mode {
	case domain.SortMostLiked:
		if a.likes != b.likes {
			return a.likes > b.likes
		}
	case domain.SortMostDisliked:
		if a.dislikes != b.dislikes {
			return a.dislikes > b.dislikes
		}
	}
	return a.seq > b.seq
}

// toWire renders r. An empty viewerID omits the viewer-relative reaction, as
// broadcasts do.
func (s *Store) toWire(r *record, viewerID string) wire.Comment {
	out := wire.Comment{
		ID:      r.id,
		Content: r.content,
		Author: wire.User{
			ID:        r.author.ID,
			FirstName: r.author.FirstName,
			LastName:  r.author.LastName,
			Email:     r.author.Email,
		},
		LikesCount:    r.likes,
		DislikesCount: r.dislikes,
		CreatedAt:     r.createdAt,
		UpdatedAt:     r.updatedAt,
	}
	if r.parentID != "" {
		pid := r.parentID
		out.ParentComment = &pid
	}
	if viewerID != "" {
		react := wire.Reaction{Set: true}
		if v, ok := s.reactions[r.id][viewerID]; ok {
			react.Value = string(v)
		}
		out.UserReaction = react
	}
	return out
}

func validContent(content string) map[string][]string {
	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == "":
		return map[string][]string{"content": {"Content is required"}}
	case utf8.RuneCountInString(trimmed) > domain.MaxContentLength:
		return map[string][]string{"content": {"Content must not exceed 1000 characters"}}
	}
	return nil
}
