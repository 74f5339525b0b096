package realtime

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler receives events. It runs on the publishing goroutine.
type Handler func(Event)

// Subscription identifies one registered handler.
type Subscription struct {
	kind Kind
	id   uint64
}

func (s Subscription) Kind() Kind { return s.kind }

// Bus is an in-process fan-out of realtime events. Publish delivers
// synchronously, in subscription order, so events reach handlers in the order
// the transport received them.
type Bus struct {
	log *zap.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[Kind]map[uint64]Handler
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:      log.Named("realtime_bus"),
		handlers: make(map[Kind]map[uint64]Handler),
	}
}

// Subscribe registers h for kind and returns the token needed to remove
// exactly this handler.
func (b *Bus) Subscribe(kind Kind, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uint64]Handler)
	}
	b.handlers[kind][b.nextID] = h
	return Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe removes the handler behind sub. Other handlers for the same kind
// are untouched. It reports whether sub was still registered.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[sub.kind]
	if _, ok := hs[sub.id]; !ok {
		return false
	}
	delete(hs, sub.id)
	if len(hs) == 0 {
		delete(b.handlers, sub.kind)
	}
	return true
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, hs := range b.handlers {
		n += len(hs)
	}
	return n
}

// Publish delivers ev to every handler subscribed to ev.Kind.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	hs := b.handlers[ev.Kind]
	ids := make([]uint64, 0, len(hs))
	for id := range hs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	ordered := make([]Handler, len(ids))
	for i, id := range ids {
		ordered[i] = hs[id]
	}
	b.mu.RUnlock()

	for _, h := range ordered {
		h(ev)
	}
}

// Dispatch decodes a raw payload and publishes it. Unknown kinds and malformed
// payloads are logged and dropped; the returned error is informational only.
func (b *Bus) Dispatch(kind string, payload []byte) error {
	k := Kind(kind)
	if !k.Known() {
		b.log.Debug("ignoring unknown event", zap.String("event", kind))
		return nil
	}
	ev, err := Decode(k, payload)
	if err != nil {
		b.log.Warn("dropping malformed event", zap.String("event", kind), zap.Error(err))
		return err
	}
	b.Publish(ev)
	return nil
}
