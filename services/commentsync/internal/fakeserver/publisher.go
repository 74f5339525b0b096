package fakeserver

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/example/commentsync/services/commentsync/internal/realtime"
)

var ErrPublishDisabled = errors.New("publish is disabled")

// Publisher mirrors events onto a broker. Disabled publishers are skipped.
type Publisher interface {
	Enabled() bool
	PublishJSON(kind realtime.Kind, payload any) (string, error)
}

// Emitter receives every realtime event the server produces.
type Emitter interface {
	Emit(kind realtime.Kind, payload any)
}

// EventPublisher mirrors realtime events onto core NATS subjects
// <prefix>.<suffix>, one message per event, body = payload.
type EventPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewEventPublisher(nc *nats.Conn, prefix string) *EventPublisher {
	if prefix == "" {
		prefix = realtime.DefaultSubjectPrefix
	}
	return &EventPublisher{nc: nc, prefix: prefix}
}

func (p *EventPublisher) Enabled() bool {
	return p != nil && p.nc != nil && !p.nc.IsClosed()
}

// PublishJSON marshals payload and publishes it for kind. It returns the
// subject used.
func (p *EventPublisher) PublishJSON(kind realtime.Kind, payload any) (string, error) {
	if !p.Enabled() {
		return "", ErrPublishDisabled
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	subject := realtime.Subject(p.prefix, kind)
	if err := p.nc.Publish(subject, body); err != nil {
		return "", err
	}
	return subject, nil
}

// RedisPublisher mirrors realtime events onto Redis pub/sub channels
// <prefix>:<suffix>.
type RedisPublisher struct {
	rdb     *redis.Client
	prefix  string
	timeout time.Duration
}

func NewRedisPublisher(rdb *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = realtime.DefaultChannelPrefix
	}
	return &RedisPublisher{rdb: rdb, prefix: prefix, timeout: 2 * time.Second}
}

func (p *RedisPublisher) Enabled() bool {
	return p != nil && p.rdb != nil
}

// PublishJSON returns the channel used.
func (p *RedisPublisher) PublishJSON(kind realtime.Kind, payload any) (string, error) {
	if !p.Enabled() {
		return "", ErrPublishDisabled
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	channel := realtime.Channel(p.prefix, kind)
	if err := p.rdb.Publish(ctx, channel, body).Err(); err != nil {
		return "", err
	}
	return channel, nil
}

// fanout delivers to the WebSocket hub and every enabled publisher.
type fanout struct {
	hub  *Hub
	pubs []Publisher
	on   func(kind realtime.Kind, err error)
}

func (f fanout) Emit(kind realtime.Kind, payload any) {
	if f.hub != nil {
		f.hub.Broadcast(string(kind), payload)
	}
	for _, p := range f.pubs {
		if p == nil || !p.Enabled() {
			continue
		}
		if _, err := p.PublishJSON(kind, payload); err != nil && f.on != nil {
			f.on(kind, err)
		}
	}
}
