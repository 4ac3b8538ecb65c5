package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/kvstore"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/domain/auctions"
)

const keyPrefix = "auction-"

// Key returns the storage key of an auction
func Key(id string) string {
	return keyPrefix + id
}

// auctionRecord is the persisted form of an auction. Records written without
// an id take it from their key.
type auctionRecord struct {
	ID            string      `json:"id,omitempty"`
	Description   string      `json:"description"`
	StartingPrice float64     `json:"startingPrice"`
	Bids          []bidRecord `json:"bids"`
	CreatedAt     int64       `json:"createdAt"`
}

type bidRecord struct {
	Bidder    string  `json:"bidder"`
	Amount    float64 `json:"amount"`
	Timestamp int64   `json:"timestamp"`
}

// AuctionStore implements auctions.Store on top of a key-value backend
type AuctionStore struct {
	kv kvstore.KV
}

// NewAuctionStore creates a new auction store
func NewAuctionStore(kv kvstore.KV) *AuctionStore {
	return &AuctionStore{kv: kv}
}

// Get retrieves an auction by its ID
func (s *AuctionStore) Get(ctx context.Context, id string) (*auctions.Auction, error) {
	raw, err := s.kv.Get(ctx, Key(id))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, auctions.ErrAuctionNotFound
		}
		return nil, fmt.Errorf("%w: failed to get auction %q: %w", auctions.ErrStoreFailure, id, err)
	}

	var record auctionRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: failed to decode auction %q: %w", auctions.ErrStoreFailure, id, err)
	}
	if record.ID == "" {
		record.ID = id
	}

	return record.toDomain(), nil
}

// Put writes the whole auction record
func (s *AuctionStore) Put(ctx context.Context, auction *auctions.Auction) error {
	raw, err := json.Marshal(fromDomain(auction))
	if err != nil {
		return fmt.Errorf("%w: failed to encode auction %q: %w", auctions.ErrStoreFailure, auction.ID, err)
	}

	if err := s.kv.Put(ctx, Key(auction.ID), raw); err != nil {
		return fmt.Errorf("%w: failed to put auction %q: %w", auctions.ErrStoreFailure, auction.ID, err)
	}
	return nil
}

// Delete removes the auction record
func (s *AuctionStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, Key(id)); err != nil {
		return fmt.Errorf("%w: failed to delete auction %q: %w", auctions.ErrStoreFailure, id, err)
	}
	return nil
}

func fromDomain(a *auctions.Auction) auctionRecord {
	bids := make([]bidRecord, 0, len(a.Bids))
	for _, b := range a.Bids {
		bids = append(bids, bidRecord{
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			Timestamp: b.Timestamp.UnixMilli(),
		})
	}
	return auctionRecord{
		ID:            a.ID,
		Description:   a.Description,
		StartingPrice: a.StartingPrice,
		Bids:          bids,
		CreatedAt:     a.CreatedAt.UnixMilli(),
	}
}

func (r auctionRecord) toDomain() *auctions.Auction {
	bids := make([]auctions.Bid, 0, len(r.Bids))
	for _, b := range r.Bids {
		bids = append(bids, auctions.Bid{
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			Timestamp: time.UnixMilli(b.Timestamp).UTC(),
		})
	}
	return &auctions.Auction{
		ID:            r.ID,
		Description:   r.Description,
		StartingPrice: r.StartingPrice,
		Bids:          bids,
		CreatedAt:     time.UnixMilli(r.CreatedAt).UTC(),
	}
}
