// Package reconciler applies realtime events to the lists the client holds.
package reconciler

import (
	"sync"

	"go.uber.org/zap"

	"github.com/example/commentsync/services/commentsync/internal/liststore"
	"github.com/example/commentsync/services/commentsync/internal/realtime"
)

// Reconciler owns the bus subscriptions for every attached list and removes
// exactly those subscriptions on Detach or Close.
type Reconciler struct {
	bus      *realtime.Bus
	viewerID string
	log      *zap.Logger

	mu   sync.Mutex
	subs map[*liststore.List][]realtime.Subscription
}

func New(bus *realtime.Bus, viewerID string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		bus:      bus,
		viewerID: viewerID,
		log:      log.Named("reconciler"),
		subs:     make(map[*liststore.List][]realtime.Subscription),
	}
}

// Attach subscribes list to the stream. Creates are routed by list.ParentID():
// the top-level list takes comments without a parent, a reply list takes
// replies to its parent. Attaching the same list twice is a no-op.
func (r *Reconciler) Attach(list *liststore.List) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[list]; ok {
		return
	}
	scope := list.ParentID()
	r.subs[list] = []realtime.Subscription{
		r.bus.Subscribe(realtime.KindCreated, func(ev realtime.Event) { r.onCreated(list, scope, ev) }),
		r.bus.Subscribe(realtime.KindReplyCreated, func(ev realtime.Event) { r.onCreated(list, scope, ev) }),
		r.bus.Subscribe(realtime.KindUpdated, func(ev realtime.Event) { r.onReplaced(list, ev) }),
		r.bus.Subscribe(realtime.KindReacted, func(ev realtime.Event) { r.onReplaced(list, ev) }),
		r.bus.Subscribe(realtime.KindDeleted, func(ev realtime.Event) { r.onDeleted(list, ev) }),
	}
}

// Detach removes the subscriptions installed for list. It reports whether
// list was attached.
func (r *Reconciler) Detach(list *liststore.List) bool {
	r.mu.Lock()
	subs, ok := r.subs[list]
	delete(r.subs, list)
	r.mu.Unlock()
	for _, s := range subs {
		r.bus.Unsubscribe(s)
	}
	return ok
}

// Close detaches every list.
func (r *Reconciler) Close() {
	r.mu.Lock()
	all := r.subs
	r.subs = make(map[*liststore.List][]realtime.Subscription)
	r.mu.Unlock()
	for _, subs := range all {
		for _, s := range subs {
			r.bus.Unsubscribe(s)
		}
	}
}

// Attached returns the number of attached lists.
func (r *Reconciler) Attached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *Reconciler) onCreated(list *liststore.List, scope string, ev realtime.Event) {
	if ev.Comment == nil {
		return
	}
	parent := ev.Comment.ParentID
	if ev.Kind == realtime.KindReplyCreated && ev.ParentID != "" {
		parent = ev.ParentID
	}
	if parent != scope {
		return
	}
	if r.viewerID != "" && ev.Comment.Author.ID == r.viewerID {
		// the coordinator already applied our own create
		r.log.Debug("suppressing own create", zap.String("comment_id", ev.Comment.ID))
		return
	}
	c := *ev.Comment
	c.ParentID = parent
	if !list.InsertAtHead(c) {
		r.log.Debug("create already present", zap.String("comment_id", c.ID))
	}
}

func (r *Reconciler) onReplaced(list *liststore.List, ev realtime.Event) {
	if ev.Comment == nil {
		return
	}
	list.ReplaceByID(*ev.Comment)
}

func (r *Reconciler) onDeleted(list *liststore.List, ev realtime.Event) {
	if ev.CommentID == "" {
		return
	}
	list.RemoveByID(ev.CommentID)
}
