package auctions

import (
	"context"
)

// Store defines the interface for auction persistence
type Store interface {
	// Get retrieves an auction by its ID, or ErrAuctionNotFound
	Get(ctx context.Context, id string) (*Auction, error)

	// Put writes the whole auction record, replacing any existing one
	Put(ctx context.Context, auction *Auction) error

	// Delete removes the auction record
	Delete(ctx context.Context, id string) error
}

// EventPublisher defines the interface for announcing lifecycle events
type EventPublisher interface {
	PublishAuctionEvent(ctx context.Context, event AuctionEvent) error
}
