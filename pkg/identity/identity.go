package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/kvstore"
)

// Keys under which the seeds are persisted in the key-value index
const (
	DHTSeedKey = "dht-seed"
	RPCSeedKey = "rpc-seed"
)

// SeedSize is the length of an ed25519 seed
const SeedSize = ed25519.SeedSize

var (
	ErrSeedLengthMismatch = fmt.Errorf("seed must be %d bytes long", SeedSize)
	ErrInvalidPublicKey   = fmt.Errorf("public key must be %d hex encoded bytes", ed25519.PublicKeySize)
)

// KeyPair is an ed25519 key pair derived from a persisted seed
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeyPair derives the key pair for seed
func NewKeyPair(seed []byte) (KeyPair, error) {
	if len(seed) != SeedSize {
		return KeyPair{}, ErrSeedLengthMismatch
	}
	private := ed25519.NewKeyFromSeed(seed)
	return KeyPair{
		Public:  private.Public().(ed25519.PublicKey),
		Private: private,
	}, nil
}

// PublicHex returns the hex encoded public key, the form peers address each other by
func (k KeyPair) PublicHex() string {
	return hex.EncodeToString(k.Public)
}

// Identity holds the node key (discovery overlay) and the server key (remote calls)
type Identity struct {
	DHT KeyPair
	RPC KeyPair
}

// Bootstrap loads both seeds from kv, generating and persisting any that are
// missing. A stored dht-seed longer than SeedSize is truncated; an rpc-seed of
// the wrong length is fatal.
func Bootstrap(ctx context.Context, kv kvstore.KV) (*Identity, error) {
	dhtSeed, err := loadOrCreateSeed(ctx, kv, DHTSeedKey, false)
	if err != nil {
		return nil, err
	}
	rpcSeed, err := loadOrCreateSeed(ctx, kv, RPCSeedKey, true)
	if err != nil {
		return nil, err
	}

	dht, err := NewKeyPair(dhtSeed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DHTSeedKey, err)
	}
	rpc, err := NewKeyPair(rpcSeed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", RPCSeedKey, err)
	}

	return &Identity{DHT: dht, RPC: rpc}, nil
}

func loadOrCreateSeed(ctx context.Context, kv kvstore.KV, key string, strict bool) ([]byte, error) {
	seed, err := kv.Get(ctx, key)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", key, err)
		}
		if err := kv.Put(ctx, key, seed); err != nil {
			return nil, fmt.Errorf("failed to persist %s: %w", key, err)
		}
		return seed, nil

	case err != nil:
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}

	if !strict && len(seed) > SeedSize {
		seed = seed[:SeedSize]
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%s has %d bytes: %w", key, len(seed), ErrSeedLengthMismatch)
	}
	return seed, nil
}

// DecodePublicKey parses a hex encoded ed25519 public key
func DecodePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrInvalidPublicKey
	}
	return ed25519.PublicKey(raw), nil
}
