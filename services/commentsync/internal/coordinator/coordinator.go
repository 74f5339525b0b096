// Package coordinator applies the local user's mutations: call the service,
// then write the confirmed result into every list that holds the comment.
package coordinator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/commentsync/services/commentsync/internal/domain"
	"github.com/example/commentsync/services/commentsync/internal/liststore"
)

// Service is the subset of the comment API the coordinator calls.
type Service interface {
	CreateComment(ctx context.Context, in domain.CreateInput) (domain.Comment, error)
	UpdateComment(ctx context.Context, id, content string) (domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ToggleReaction(ctx context.Context, id string, kind domain.Reaction) (domain.Comment, error)
}

// ListSource enumerates the reply lists currently held.
type ListSource interface {
	Lists() []*liststore.List
}

type Coordinator struct {
	svc     Service
	top     *liststore.List
	replies ListSource
	log     *zap.Logger
}

func New(svc Service, top *liststore.List, replies ListSource, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{svc: svc, top: top, replies: replies, log: log.Named("coordinator")}
}

// Create posts a comment, or a reply when parentID is set. A confirmed
// top-level comment is inserted at the head of the top list; replies are left
// for the caller to pick up by refreshing the parent's substore.
func (c *Coordinator) Create(ctx context.Context, content, parentID string) (domain.Comment, error) {
	if err := domain.ValidateContent(content); err != nil {
		return domain.Comment{}, err
	}
	created, err := c.svc.CreateComment(ctx, domain.CreateInput{
		Content:  strings.TrimSpace(content),
		ParentID: parentID,
	})
	if err != nil {
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	if created.ParentID == "" && parentID == "" {
		c.top.InsertAtHead(created)
	}
	c.log.Debug("comment created", zap.String("comment_id", created.ID), zap.String("parent_id", parentID))
	return created, nil
}

// Edit replaces the content of id with the server's confirmed version.
func (c *Coordinator) Edit(ctx context.Context, id, content string) (domain.Comment, error) {
	if err := requireID(id); err != nil {
		return domain.Comment{}, err
	}
	if err := domain.ValidateContent(content); err != nil {
		return domain.Comment{}, err
	}
	updated, err := c.svc.UpdateComment(ctx, id, strings.TrimSpace(content))
	if err != nil {
		return domain.Comment{}, fmt.Errorf("edit comment %s: %w", id, err)
	}
	c.replaceAll(updated)
	return updated, nil
}

// Remove deletes id and drops it from every list. It reports whether any list
// held the comment.
func (c *Coordinator) Remove(ctx context.Context, id string) (bool, error) {
	if err := requireID(id); err != nil {
		return false, err
	}
	if err := c.svc.DeleteComment(ctx, id); err != nil {
		return false, fmt.Errorf("delete comment %s: %w", id, err)
	}
	removed := false
	for _, l := range c.lists() {
		if l.RemoveByID(id) {
			removed = true
		}
	}
	return removed, nil
}

// React toggles the viewer's reaction and stores the returned counts.
func (c *Coordinator) React(ctx context.Context, id string, kind domain.Reaction) (domain.Comment, error) {
	if err := requireID(id); err != nil {
		return domain.Comment{}, err
	}
	if !kind.Valid() {
		return domain.Comment{}, &domain.RequestError{
			Message: fmt.Sprintf("unsupported reaction %q", kind),
			Fields:  map[string][]string{"type": {"Reaction type must be like or dislike"}},
		}
	}
	updated, err := c.svc.ToggleReaction(ctx, id, kind)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("react to comment %s: %w", id, err)
	}
	c.replaceAll(updated)
	return updated, nil
}

func (c *Coordinator) replaceAll(updated domain.Comment) {
	for _, l := range c.lists() {
		l.ReplaceByID(updated)
	}
}

func (c *Coordinator) lists() []*liststore.List {
	out := []*liststore.List{c.top}
	if c.replies != nil {
		out = append(out, c.replies.Lists()...)
	}
	return out
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &domain.RequestError{Message: "comment id is required"}
	}
	return nil
}
