package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/discovery"
	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/identity"
	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/kvstore"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/adapters/api"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/adapters/events"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/adapters/store"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/config"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/domain/auctions"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Auction server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Open the key-value store
	kv, err := kvstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer kv.Close()
	logger.Info("Store opened", "backend", cfg.StoreBackend)

	// 2. Load or create the node identity
	id, err := identity.Bootstrap(ctx, kv)
	if err != nil {
		return fmt.Errorf("failed to bootstrap identity: %w", err)
	}
	logger.Info("RPC server identity ready",
		"public_key", id.RPC.PublicHex(),
		"dht_public_key", id.DHT.PublicHex(),
	)

	g, gctx := errgroup.WithContext(ctx)

	// 3. Lifecycle events (optional)
	var publisher auctions.EventPublisher
	if cfg.RabbitMQURL != "" {
		amqpConn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer amqpConn.Close()

		producer, err := events.NewAuctionEventsProducer(amqpConn, cfg.EventBatchSize, cfg.EventInterval, logger)
		if err != nil {
			return err
		}
		defer producer.Close()
		publisher = producer

		g.Go(func() error {
			logger.Info("Starting event relay...")
			return producer.Run(gctx)
		})
		logger.Info("RabbitMQ Connected")
	} else {
		logger.Warn("RABBITMQ_URL is not set, lifecycle events are disabled")
	}

	// 4. Domain and transport
	auctionService := auctions.NewService(store.NewAuctionStore(kv), publisher, logger)
	dispatcher := api.NewDispatcher(auctionService, logger)

	mux := http.NewServeMux()
	dispatcher.Register(mux, connect.WithInterceptors(api.NewLoggingInterceptor(logger)))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Use h2c for HTTP/2 without TLS
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting auction RPC server", "addr", cfg.Addr, "operations", dispatcher.Operations())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// 5. Announce on the registry (optional)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, server will not be discoverable", "error", err)
		} else {
			registry := discovery.NewRegistry(rdb, cfg.AnnounceTTL)
			announcer := discovery.NewAnnouncer(registry, id, cfg.AdvertisedURL(), logger)
			g.Go(func() error { return announcer.Run(gctx) })
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Auction server shut down")
	return nil
}
