// Package realtime turns push notifications from the comment service into
// typed events and fans them out to subscribers in arrival order.
package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/wire"
)

// Kind names an event on the stream. The values are the wire event names.
type Kind string

const (
	KindCreated      Kind = wire.EventCommentNew
	KindUpdated      Kind = wire.EventCommentUpdate
	KindDeleted      Kind = wire.EventCommentDelete
	KindReacted      Kind = wire.EventCommentReaction
	KindReplyCreated Kind = wire.EventCommentReply
)

// Kinds lists every event kind the stream carries.
var Kinds = []Kind{KindCreated, KindUpdated, KindDeleted, KindReacted, KindReplyCreated}

func (k Kind) Known() bool {
	switch k {
	case KindCreated, KindUpdated, KindDeleted, KindReacted, KindReplyCreated:
		return true
	}
	return false
}

// Event is a decoded notification. Comment is set for every kind except
// KindDeleted, which carries only CommentID. ParentID is set for reply events.
type Event struct {
	Kind      Kind
	Comment   *domain.Comment
	CommentID string
	ParentID  string
}

// Decode parses payload for kind.
func Decode(kind Kind, payload []byte) (Event, error) {
	ev := Event{Kind: kind}
	switch kind {
	case KindCreated, KindUpdated, KindReacted:
		var p wire.CommentPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", kind, err)
		}
		if p.Comment == nil || p.Comment.ID == "" {
			return ev, fmt.Errorf("decode %s: missing comment", kind)
		}
		c := p.Comment.ToDomain()
		ev.Comment = &c
		ev.CommentID = c.ID
	case KindReplyCreated:
		var p wire.ReplyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", kind, err)
		}
		if p.Comment == nil || p.Comment.ID == "" {
			return ev, fmt.Errorf("decode %s: missing comment", kind)
		}
		c := p.Comment.ToDomain()
		ev.Comment = &c
		ev.CommentID = c.ID
		ev.ParentID = p.ParentID
		if ev.ParentID == "" {
			ev.ParentID = c.ParentID
		}
	case KindDeleted:
		var p wire.DeletePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", kind, err)
		}
		if p.CommentID == "" {
			return ev, fmt.Errorf("decode %s: missing commentId", kind)
		}
		ev.CommentID = p.CommentID
	default:
		return ev, fmt.Errorf("unknown event %q", kind)
	}
	return ev, nil
}
