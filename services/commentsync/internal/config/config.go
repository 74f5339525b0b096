package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/commentsync/services/commentsync/internal/domain"
)

// Transport selects where realtime events come from.
type Transport string

const (
	TransportWebSocket Transport = "websocket"
	TransportNATS      Transport = "nats"
	TransportRedis     Transport = "redis"
	TransportNone      Transport = "none"
)

type Config struct {
	ServiceName string
	LogLevel    string

	APIURL   string
	Token    string
	ViewerID string
	PageSize int
	Sort     domain.SortMode

	Transport     Transport
	WSURL         string
	NATSURL       string
	NATSPrefix    string
	RedisURL      string
	RedisPrefix   string
	MaxReconnects int
	ReconnectWait time.Duration
	// ReadTimeout drops a WebSocket that has been silent this long, pings
	// included, so a half-open connection is redialled.
	ReadTimeout   time.Duration

	// HTTP client, retry and circuit-breaker settings.
	HTTPTimeout        time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	CBMaxRequests      uint32
	CBInterval         time.Duration
	CBTimeout          time.Duration
	CBFailureThreshold uint32
}

func Load() (Config, error) {
	serviceName := strings.TrimSpace(os.Getenv("SERVICE_NAME"))
	if serviceName == "" {
		serviceName = "commentsync"
	}
	logLevel := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevel == "" {
		logLevel = "info"
	}
	token := strings.TrimSpace(os.Getenv("AUTH_TOKEN"))
	if token == "" {
		return Config{}, errors.New("AUTH_TOKEN is required")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(os.Getenv("COMMENTS_API_URL")), "/")
	if apiURL == "" {
		apiURL = "http://localhost:5000/api/v1"
	}

	transport := Transport(strings.ToLower(strings.TrimSpace(os.Getenv("COMMENTS_REALTIME_TRANSPORT"))))
	switch transport {
	case "":
		transport = TransportWebSocket
	case TransportWebSocket, TransportNATS, TransportRedis, TransportNone:
	default:
		return Config{}, fmt.Errorf("COMMENTS_REALTIME_TRANSPORT: unknown transport %q", transport)
	}
	wsURL := strings.TrimSpace(os.Getenv("COMMENTS_WS_URL"))
	if wsURL == "" {
		wsURL = deriveWSURL(apiURL)
	}

	sort := domain.SortNewest
	if v := strings.TrimSpace(os.Getenv("COMMENTS_SORT")); v != "" {
		m, ok := domain.ParseSortMode(v)
		if !ok {
			return Config{}, fmt.Errorf("COMMENTS_SORT: unknown sort %q", v)
		}
		sort = m
	}
	pageSize := envInt("COMMENTS_PAGE_SIZE", 10)
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 10
	}

	return Config{
		ServiceName:        serviceName,
		LogLevel:           logLevel,
		APIURL:             apiURL,
		Token:              token,
		ViewerID:           strings.TrimSpace(os.Getenv("VIEWER_ID")),
		PageSize:           pageSize,
		Sort:               sort,
		Transport:          transport,
		WSURL:              wsURL,
		NATSURL:            strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSPrefix:         strings.TrimSpace(os.Getenv("COMMENTS_NATS_PREFIX")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisPrefix:        strings.TrimSpace(os.Getenv("COMMENTS_REDIS_PREFIX")),
		MaxReconnects:      envInt("WS_MAX_RECONNECTS", 5),
		ReconnectWait:      envDuration("WS_RECONNECT_WAIT", time.Second),
		ReadTimeout:        envDuration("WS_READ_TIMEOUT", 75*time.Second),
		HTTPTimeout:        envDuration("HTTP_TIMEOUT", 10*time.Second),
		MaxRetries:         envInt("API_MAX_RETRIES", 3),
		RetryBaseDelay:     envDuration("API_RETRY_BASE_DELAY", 500*time.Millisecond),
		CBMaxRequests:      envCount("CB_MAX_REQUESTS", 5),
		CBInterval:         envDuration("CB_INTERVAL", 60*time.Second),
		CBTimeout:          envDuration("CB_TIMEOUT", 30*time.Second),
		CBFailureThreshold: envCount("CB_FAILURE_THRESHOLD", 5),
	}, nil
}

// deriveWSURL maps http://host:port/api/v1 to ws://host:port/ws.
func deriveWSURL(apiURL string) string {
	u := apiURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if i := strings.Index(u, "://"); i >= 0 {
		if j := strings.Index(u[i+3:], "/"); j >= 0 {
			u = u[:i+3+j]
		}
	}
	return u + "/ws"
}

// envCount is envInt for settings where zero is meaningless.
func envCount(key string, def uint32) uint32 {
	n := envInt(key, int(def))
	if n <= 0 {
		return def
	}
	return uint32(n)
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
