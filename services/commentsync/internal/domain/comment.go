package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the upper bound on comment content, in code points.
const MaxContentLength = 1000

// Reaction is the local viewer's reaction to a comment.
type Reaction string

const (
	// ReactionUnknown marks a payload that did not carry the viewer-relative field.
	ReactionUnknown Reaction = ""
	ReactionNone    Reaction = "none"
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Valid reports whether r can be sent to the toggle endpoint.
func (r Reaction) Valid() bool {
	return r == ReactionLike || r == ReactionDislike
}

// SortMode is the server-side ordering of a top-level list.
type SortMode string

const (
	SortNewest       SortMode = "newest"
	SortMostLiked    SortMode = "mostLiked"
	SortMostDisliked SortMode = "mostDisliked"
)

// ParseSortMode accepts the wire names; anything else falls back to newest.
func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(strings.TrimSpace(s)) {
	case SortNewest:
		return SortNewest, true
	case SortMostLiked:
		return SortMostLiked, true
	case SortMostDisliked:
		return SortMostDisliked, true
	default:
		return SortNewest, false
	}
}

type Author struct {
	ID          string
	DisplayName string
	Email       string
}

// Comment is a single top-level comment or reply. Replies never have replies of
// their own.
type Comment struct {
	ID             string
	Content        string
	Author         Author
	LikeCount      int
	DislikeCount   int
	ViewerReaction Reaction
	ParentID       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsReply reports whether c belongs to a reply list.
func (c Comment) IsReply() bool {
	return c.ParentID != ""
}

// PageRequest asks for one page of an ordered list. An empty Cursor requests the
// first page; an empty Sort leaves ordering to the server.
type PageRequest struct {
	Cursor string
	Limit  int
	Sort   SortMode
}

// Page is one page of results. HasMore is authoritative; NextCursor may be set
// even when HasMore is false.
type Page struct {
	Items      []Comment
	NextCursor string
	HasMore    bool
}

// CreateInput is the payload for creating a comment or, with ParentID set, a reply.
type CreateInput struct {
	Content  string
	ParentID string
}

// ValidateContent checks the content rules shared by create and edit.
func ValidateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return &RequestError{
			Message: "content must not be empty",
			Fields:  map[string][]string{"content": {"Content is required"}},
		}
	}
	if utf8.RuneCountInString(trimmed) > MaxContentLength {
		return &RequestError{
			Message: "content is too long",
			Fields:  map[string][]string{"content": {"Content must not exceed 1000 characters"}},
		}
	}
	return nil
}
