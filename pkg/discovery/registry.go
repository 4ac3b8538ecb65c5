package discovery

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/identity"
)

// ErrPeerNotFound is returned when no live announcement exists for a key
var ErrPeerNotFound = errors.New("peer not found")

// Key is the registry key for a public key: the key itself is never stored
// in the clear, only its blake2b-256 digest.
func Key(publicKey ed25519.PublicKey) string {
	sum := blake2b.Sum256(publicKey)
	return "peer:" + hex.EncodeToString(sum[:])
}

// Registry stores signed announcements in Redis with a TTL
type Registry struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRegistry creates a registry whose announcements live for ttl
func NewRegistry(client *redis.Client, ttl time.Duration) *Registry {
	return &Registry{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Announce publishes that id's rpc key is reachable at address
func (r *Registry) Announce(ctx context.Context, id *identity.Identity, address string) error {
	token, err := id.SignAnnouncement(address, r.ttl, r.now())
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, Key(id.RPC.Public), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store announcement: %w", err)
	}
	return nil
}

// Withdraw removes id's announcement
func (r *Registry) Withdraw(ctx context.Context, id *identity.Identity) error {
	if err := r.client.Del(ctx, Key(id.RPC.Public)).Err(); err != nil {
		return fmt.Errorf("failed to withdraw announcement: %w", err)
	}
	return nil
}

// Resolve returns the verified announcement for publicKey
func (r *Registry) Resolve(ctx context.Context, publicKey ed25519.PublicKey) (*identity.Announcement, error) {
	token, err := r.client.Get(ctx, Key(publicKey)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPeerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load announcement: %w", err)
	}

	return identity.VerifyAnnouncement(token, publicKey)
}

// Announcer keeps an announcement alive until its context is cancelled
type Announcer struct {
	registry *Registry
	id       *identity.Identity
	address  string
	interval time.Duration
	logger   *slog.Logger
}

// NewAnnouncer refreshes the announcement at half the registry TTL
func NewAnnouncer(registry *Registry, id *identity.Identity, address string, logger *slog.Logger) *Announcer {
	interval := registry.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	return &Announcer{
		registry: registry,
		id:       id,
		address:  address,
		interval: interval,
		logger:   logger,
	}
}

// Run announces immediately, then on every tick. The announcement is
// withdrawn on shutdown.
func (a *Announcer) Run(ctx context.Context) error {
	if err := a.registry.Announce(ctx, a.id, a.address); err != nil {
		return err
	}
	a.logger.Info("Announced server", "public_key", a.id.RPC.PublicHex(), "address", a.address)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			withdrawCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := a.registry.Withdraw(withdrawCtx, a.id); err != nil {
				a.logger.Warn("Failed to withdraw announcement", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := a.registry.Announce(ctx, a.id, a.address); err != nil {
				a.logger.Error("Error refreshing announcement", "error", err)
			}
		}
	}
}
