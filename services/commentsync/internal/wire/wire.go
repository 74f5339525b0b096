// Package wire holds the JSON shapes used by the comments REST API and the
// realtime stream, and their conversion to domain values.
package wire

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/example/commentsync/services/commentsync/internal/domain"
)

// Event names on the realtime stream.
const (
	EventCommentNew      = "comment:new"
	EventCommentUpdate   = "comment:update"
	EventCommentDelete   = "comment:delete"
	EventCommentReaction = "comment:reaction"
	EventCommentReply    = "comment:reply"
)

type User struct {
	ID        string `json:"_id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email,omitempty"`
}

// Reaction distinguishes an absent field from an explicit null: absent decodes
// to domain.ReactionUnknown, null to domain.ReactionNone. It must be held by
// value; encoding/json never calls UnmarshalJSON for null into a pointer.
type Reaction struct {
	Set   bool
	Value string
}

// IsZero reports an unset reaction so omitzero drops it on encode.
func (r Reaction) IsZero() bool { return !r.Set }

func (r *Reaction) UnmarshalJSON(b []byte) error {
	r.Set = true
	if string(b) == "null" {
		r.Value = ""
		return nil
	}
	return json.Unmarshal(b, &r.Value)
}

func (r Reaction) MarshalJSON() ([]byte, error) {
	if r.Value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// Comment is the REST/realtime comment document.
type Comment struct {
	ID            string    `json:"_id"`
	Content       string    `json:"content"`
	Author        User      `json:"author"`
	LikesCount    int       `json:"likesCount"`
	DislikesCount int       `json:"dislikesCount"`
	UserReaction  Reaction  `json:"userReaction,omitzero"`
	ParentComment *string   `json:"parentComment"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Envelope is the response wrapper used by every endpoint.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

type PageData struct {
	Data       []Comment `json:"data"`
	NextCursor *string   `json:"nextCursor"`
	HasMore    bool      `json:"hasMore"`
}

type CreateRequest struct {
	Content         string `json:"content"`
	ParentCommentID string `json:"parentCommentId,omitempty"`
}

type UpdateRequest struct {
	Content string `json:"content"`
}

type ReactionRequest struct {
	Type string `json:"type"`
}

// Frame is one WebSocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type CommentPayload struct {
	Comment *Comment `json:"comment"`
}

type DeletePayload struct {
	CommentID string `json:"commentId"`
}

type ReplyPayload struct {
	Comment  *Comment `json:"comment"`
	ParentID string   `json:"parentId"`
}

// ToDomain converts c to a domain comment.
func (c Comment) ToDomain() domain.Comment {
	out := domain.Comment{
		ID:      c.ID,
		Content: c.Content,
		Author: domain.Author{
			ID:          c.Author.ID,
			DisplayName: strings.TrimSpace(c.Author.FirstName + " " + c.Author.LastName),
			Email:       c.Author.Email,
		},
		LikeCount:      nonNegative(c.LikesCount),
		DislikeCount:   nonNegative(c.DislikesCount),
		ViewerReaction: domain.ReactionUnknown,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.ParentComment != nil {
		out.ParentID = *c.ParentComment
	}
	if c.UserReaction.Set {
		switch domain.Reaction(c.UserReaction.Value) {
		case domain.ReactionLike:
			out.ViewerReaction = domain.ReactionLike
		case domain.ReactionDislike:
			out.ViewerReaction = domain.ReactionDislike
		default:
			out.ViewerReaction = domain.ReactionNone
		}
	}
	return out
}

// FromDomain builds the wire document for c. An unknown viewer reaction is
// omitted from the output.
func FromDomain(c domain.Comment) Comment {
	first, last, _ := strings.Cut(c.Author.DisplayName, " ")
	out := Comment{
		ID:            c.ID,
		Content:       c.Content,
		Author:        User{ID: c.Author.ID, FirstName: first, LastName: last, Email: c.Author.Email},
		LikesCount:    c.LikeCount,
		DislikesCount: c.DislikeCount,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.ParentID != "" {
		pid := c.ParentID
		out.ParentComment = &pid
	}
	switch c.ViewerReaction {
	case domain.ReactionUnknown:
	case domain.ReactionNone:
		out.UserReaction = Reaction{Set: true}
	default:
		out.UserReaction = Reaction{Set: true, Value: string(c.ViewerReaction)}
	}
	return out
}

// PageToDomain converts a page payload, normalising a missing cursor.
func PageToDomain(p PageData) domain.Page {
	items := make([]domain.Comment, 0, len(p.Data))
	for _, c := range p.Data {
		items = append(items, c.ToDomain())
	}
	out := domain.Page{Items: items, HasMore: p.HasMore}
	if p.NextCursor != nil {
		out.NextCursor = *p.NextCursor
	}
	return out
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
