package main

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/commentsync/internal/platform/auth"
	"github.com/example/commentsync/internal/platform/logging"
	"github.com/example/commentsync/internal/platform/natsconn"
	"github.com/example/commentsync/internal/platform/redisconn"
	"github.com/example/commentsync/internal/platform/run"
	"github.com/example/commentsync/services/commentsync/internal/config"
	"github.com/example/commentsync/services/commentsync/internal/dataservice"
	"github.com/example/commentsync/services/commentsync/internal/liststore"
	"github.com/example/commentsync/services/commentsync/internal/realtime"
	"github.com/example/commentsync/services/commentsync/internal/session"
)

type source interface {
	Run(ctx context.Context) error
}

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

	viewerID := cfg.ViewerID
	if viewerID == "" {
		viewerID, err = auth.ViewerIDFromToken(cfg.Token)
		if err != nil {
			log.Error("resolve viewer from AUTH_TOKEN; set VIEWER_ID to override", zap.Error(err))
			run.Exit(1)
		}
	}

	cb := dataservice.NewCircuitBreaker("comments-api", cfg.CBMaxRequests, cfg.CBInterval, cfg.CBTimeout, cfg.CBFailureThreshold, log)
	client := dataservice.New(cfg.APIURL, dataservice.ClientConfig{
		Token:          cfg.Token,
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.HTTPTimeout,
	}, dataservice.WithCircuitBreaker(cb), dataservice.WithLogger(log))

	bus := realtime.NewBus(log)
	var src source
	switch cfg.Transport {
	case config.TransportWebSocket:
		ws := realtime.NewWebSocketSource(realtime.WebSocketConfig{
			URL:           cfg.WSURL,
			Token:         cfg.Token,
			MaxReconnects: cfg.MaxReconnects,
			ReconnectWait: cfg.ReconnectWait,
			ReadTimeout:   cfg.ReadTimeout,
		}, bus, log)
		ws.OnStatus(func(connected bool) {
			log.Info("realtime connection", zap.Bool("connected", connected))
		})
		src = ws
	case config.TransportNATS:
		nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName, Logger: log})
		if err != nil {
			log.Error("nats", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()
		src = realtime.NewNATSSource(nc, cfg.NATSPrefix, bus, log)
	case config.TransportRedis:
		rdb, err := redisconn.Connect(context.Background(), redisconn.Options{URL: cfg.RedisURL})
		if err != nil {
			log.Error("redis", zap.Error(err))
			run.Exit(1)
		}
		defer rdb.Close()
		src = realtime.NewRedisSource(rdb, cfg.RedisPrefix, bus, log)
	}

	sess := session.New(client, bus, session.Options{
		ViewerID: viewerID,
		PageSize: cfg.PageSize,
		Sort:     cfg.Sort,
		Logger:   log,
		OnChange: func(l *liststore.List) {
			log.Info("list changed",
				zap.String("parent_id", l.ParentID()),
				zap.Int("len", l.Len()),
				zap.Bool("has_more", l.HasMore()))
		},
	})
	defer sess.Close()

	log.Info("commentsync starting",
		zap.String("api", cfg.APIURL),
		zap.String("transport", string(cfg.Transport)),
		zap.String("viewer_id", viewerID))

	code := run.New(log).WithSignals(func(ctx context.Context) error {
		g, ctx := errgroup.WithContext(ctx)
		if src != nil {
			g.Go(func() error { return src.Run(ctx) })
		}
		g.Go(func() error {
			if err := sess.Start(ctx); err != nil {
				return err
			}
			for _, c := range sess.Comments().Snapshot() {
				log.Info("comment",
					zap.String("id", c.ID),
					zap.String("author", c.Author.DisplayName),
					zap.Int("likes", c.LikeCount),
					zap.Int("dislikes", c.DislikeCount),
					zap.String("content", c.Content))
			}
			<-ctx.Done()
			return nil
		})
		return g.Wait()
	})
	if code != 0 {
		sess.Close()
		_ = log.Sync()
		run.Exit(code)
	}
}
