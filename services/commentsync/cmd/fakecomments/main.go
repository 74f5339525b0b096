package main

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/commentsync/internal/platform/auth"
	"github.com/example/commentsync/internal/platform/config"
	"github.com/example/commentsync/internal/platform/httpserver"
	"github.com/example/commentsync/internal/platform/logging"
	"github.com/example/commentsync/internal/platform/natsconn"
	"github.com/example/commentsync/internal/platform/redisconn"
	"github.com/example/commentsync/internal/platform/run"
	"github.com/example/commentsync/services/commentsync/internal/fakeserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.ForService(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		log.Error("JWT_SECRET is required")
		run.Exit(1)
	}

	// DEV_USER_ID prints a day-long token for local clients.
	if uid := strings.TrimSpace(os.Getenv("DEV_USER_ID")); uid != "" {
		token, err := auth.Issuer{Secret: []byte(secret), TTL: 24 * time.Hour}.Issue(uid, uid, "", uid+"@example.com")
		if err != nil {
			log.Error("issue dev token", zap.Error(err))
			run.Exit(1)
		}
		log.Info("dev token", zap.String("user_id", uid), zap.String("token", token))
	}

	var pub *fakeserver.EventPublisher
	if strings.TrimSpace(os.Getenv("NATS_URL")) != "" {
		nc, err := natsconn.Connect(natsconn.Options{Name: cfg.ServiceName, Logger: log})
		if err != nil {
			log.Error("nats", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()
		pub = fakeserver.NewEventPublisher(nc, strings.TrimSpace(os.Getenv("COMMENTS_NATS_PREFIX")))
	}

	var redisPub *fakeserver.RedisPublisher
	if strings.TrimSpace(os.Getenv("REDIS_URL")) != "" {
		rdb, err := redisconn.Connect(context.Background(), redisconn.Options{})
		if err != nil {
			log.Error("redis", zap.Error(err))
			run.Exit(1)
		}
		defer rdb.Close()
		redisPub = fakeserver.NewRedisPublisher(rdb, strings.TrimSpace(os.Getenv("COMMENTS_REDIS_PREFIX")))
	}

	fake := fakeserver.New(fakeserver.Config{Secret: []byte(secret), Publisher: pub, Redis: redisPub, Logger: log})
	defer fake.Close()

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log})
	srv.HTTP.Handler = fake.Handler()

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		return srv.Start(log)
	})
	runner.Graceful(srv.Shutdown)
	if code != 0 {
		run.Exit(code)
	}
}
