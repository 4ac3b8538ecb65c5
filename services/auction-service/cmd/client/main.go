package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/discovery"
	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/rpc"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/adapters/api"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/config"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Client failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	rpcClient, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	client := api.NewAuctionClient(rpcClient)

	if err := client.OpenAuction(ctx, "pic1", "Sell Pic#1", 75); err != nil {
		return fmt.Errorf("openAuction: %w", err)
	}
	logger.Info("Auction opened", "id", "pic1", "starting_price", 75)

	if err := client.PlaceBid(ctx, "pic1", "Client2", 80); err != nil {
		return fmt.Errorf("placeBid: %w", err)
	}
	logger.Info("Bid placed", "id", "pic1", "bidder", "Client2", "amount", 80)

	result, err := client.CloseAuction(ctx, "pic1")
	if err != nil {
		return fmt.Errorf("closeAuction: %w", err)
	}
	if result.Winner == nil {
		logger.Info("Auction closed without bids", "id", "pic1")
		return nil
	}
	logger.Info("Auction closed", "id", "pic1", "winner", *result.Winner, "amount", *result.Amount)
	return nil
}

// dial prefers the public key so the server is found through the registry
func dial(ctx context.Context, cfg *config.Client) (*rpc.Client, error) {
	httpClient := rpc.NewH2CClient()
	if cfg.ServerPublicKey == "" {
		return rpc.NewClient(httpClient, cfg.ServerURL), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	// The resolved address is all we need from the registry
	defer rdb.Close()
	return rpc.DialPublicKey(ctx, discovery.NewRegistry(rdb, 0), cfg.ServerPublicKey, httpClient)
}
