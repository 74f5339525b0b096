package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/example/commentsync/services/commentsync/internal/wire"
)

// StatusFunc is told when the connection goes up or down.
type StatusFunc func(connected bool)

type WebSocketConfig struct {
	URL   string
	Token string
	// MaxReconnects is the number of consecutive failed dials tolerated before
	// Run gives up. A successful connection resets the count.
	MaxReconnects int
	ReconnectWait time.Duration
	// ReadTimeout bounds the silence between frames or pings. Zero disables it.
	ReadTimeout time.Duration
}

// WebSocketSource reads {"event", "data"} text frames and dispatches them to a Bus.
type WebSocketSource struct {
	cfg    WebSocketConfig
	bus    *Bus
	log    *zap.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	onStatus StatusFunc
}

func NewWebSocketSource(cfg WebSocketConfig, bus *Bus, log *zap.Logger) *WebSocketSource {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 5
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = time.Second
	}
	return &WebSocketSource{
		cfg:    cfg,
		bus:    bus,
		log:    log.Named("ws_source"),
		dialer: websocket.DefaultDialer,
	}
}

func (s *WebSocketSource) OnStatus(fn StatusFunc) {
	s.mu.Lock()
	s.onStatus = fn
	s.mu.Unlock()
}

func (s *WebSocketSource) status(connected bool) {
	s.mu.Lock()
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

// Run connects and reads until ctx is cancelled, reconnecting with backoff
// when the connection drops. It returns nil on cancellation.
func (s *WebSocketSource) Run(ctx context.Context) error {
	failures := 0
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			if failures > s.cfg.MaxReconnects {
				return fmt.Errorf("websocket: giving up after %d attempts: %w", failures, err)
			}
			wait := reconnectDelay(s.cfg.ReconnectWait, failures)
			s.log.Warn("dial failed", zap.Error(err), zap.Int("attempt", failures), zap.Duration("retry_in", wait))
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		failures = 0
		s.status(true)
		s.log.Info("connected", zap.String("url", s.cfg.URL))
		err = s.readLoop(ctx, conn)
		s.status(false)
		if ctx.Err() != nil {
			return nil
		}
		s.log.Warn("connection lost", zap.Error(err))
		if !sleep(ctx, s.cfg.ReconnectWait) {
			return nil
		}
	}
}

func (s *WebSocketSource) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	if s.cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", s.cfg.URL, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

func (s *WebSocketSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
			_ = conn.Close()
		}
	}()

	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		conn.SetPingHandler(func(appData string) error {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
			err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return err
		})
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Warn("dropping unparseable frame", zap.Error(err))
			continue
		}
		_ = s.bus.Dispatch(frame.Event, frame.Data)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
