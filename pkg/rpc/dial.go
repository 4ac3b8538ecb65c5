package rpc

import (
	"context"
	"crypto/ed25519"
	"fmt"

	"connectrpc.com/connect"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/identity"
)

// Resolver turns a server public key into a verified announcement
type Resolver interface {
	Resolve(ctx context.Context, publicKey ed25519.PublicKey) (*identity.Announcement, error)
}

// DialPublicKey resolves the server addressed by publicKeyHex and returns a client for it
func DialPublicKey(
	ctx context.Context,
	resolver Resolver,
	publicKeyHex string,
	httpClient connect.HTTPClient,
	opts ...connect.ClientOption,
) (*Client, error) {
	publicKey, err := identity.DecodePublicKey(publicKeyHex)
	if err != nil {
		return nil, err
	}

	ann, err := resolver.Resolve(ctx, publicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", publicKeyHex, err)
	}

	return NewClient(httpClient, ann.Address, opts...), nil
}
