package realtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is the subject root comment events are published under.
const DefaultSubjectPrefix = "comments.events"

var subjectKinds = map[string]Kind{
	"new":      KindCreated,
	"update":   KindUpdated,
	"delete":   KindDeleted,
	"reaction": KindReacted,
	"reply":    KindReplyCreated,
}

func kindSuffix(kind Kind) string {
	for suffix, k := range subjectKinds {
		if k == kind {
			return suffix
		}
	}
	return strings.TrimPrefix(string(kind), "comment:")
}

// Subject returns the NATS subject for kind under prefix.
func Subject(prefix string, kind Kind) string {
	return prefix + "." + kindSuffix(kind)
}

// NATSSource subscribes to <prefix>.> on a core NATS connection and dispatches
// each message body as the payload for the kind named by the subject suffix.
type NATSSource struct {
	nc     *nats.Conn
	prefix string
	bus    *Bus
	log    *zap.Logger
}

func NewNATSSource(nc *nats.Conn, prefix string, bus *Bus, log *zap.Logger) *NATSSource {
	if log == nil {
		log = zap.NewNop()
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSource{nc: nc, prefix: prefix, bus: bus, log: log.Named("nats_source")}
}

// Run subscribes and blocks until ctx is cancelled. A single subscription keeps
// messages in publish order.
func (s *NATSSource) Run(ctx context.Context) error {
	sub, err := s.nc.Subscribe(s.prefix+".>", s.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s.>: %w", s.prefix, err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && s.nc.IsConnected() {
			s.log.Warn("unsubscribe failed", zap.Error(err))
		}
	}()
	s.log.Info("subscribed", zap.String("subject", sub.Subject))

	<-ctx.Done()
	return nil
}

func (s *NATSSource) handle(msg *nats.Msg) {
	suffix := strings.TrimPrefix(msg.Subject, s.prefix+".")
	kind, ok := subjectKinds[suffix]
	if !ok {
		s.log.Debug("ignoring subject", zap.String("subject", msg.Subject))
		return
	}
	_ = s.bus.Dispatch(string(kind), msg.Data)
}
