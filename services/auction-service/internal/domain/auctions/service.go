package auctions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Service implements the auction state machine. It keeps no auction state of
// its own: every operation is a fetch-mutate-store cycle against Store, held
// under the auction's lock so concurrent writers to one id cannot lose updates.
type Service struct {
	store     Store
	publisher EventPublisher
	locks     *keyedLocker
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a new auction service. publisher may be nil.
func NewService(store Store, publisher EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		locks:     newKeyedLocker(),
		logger:    logger,
		now:       defaultClock,
	}
}

// record timestamps have millisecond precision
func defaultClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// OpenAuction creates the auction, replacing any auction already stored under the same id
func (s *Service) OpenAuction(ctx context.Context, cmd OpenAuctionCommand) (*Auction, error) {
	if cmd.ID == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if err := validateAmount("starting price", cmd.StartingPrice); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	auction := &Auction{
		ID:            cmd.ID,
		Description:   cmd.Description,
		StartingPrice: cmd.StartingPrice,
		Bids:          []Bid{},
		CreatedAt:     s.now(),
	}

	if err := s.store.Put(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to save auction: %w", err)
	}

	price := auction.StartingPrice
	s.emit(ctx, AuctionEvent{
		Type:       EventTypeAuctionOpened,
		AuctionID:  auction.ID,
		Amount:     &price,
		OccurredAt: auction.CreatedAt,
	})

	return auction, nil
}

// PlaceBid appends a bid to an open auction. Any finite non-negative amount is
// accepted, including amounts below the starting price or the current best bid.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Bid, error) {
	if cmd.AuctionID == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}
	if cmd.Bidder == "" {
		return nil, fmt.Errorf("%w: bidder is required", ErrInvalidInput)
	}
	if err := validateAmount("amount", cmd.Amount); err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	auction, err := s.store.Get(ctx, cmd.AuctionID)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}

	bid := Bid{
		Bidder:    cmd.Bidder,
		Amount:    cmd.Amount,
		Timestamp: s.now(),
	}
	auction.Bids = append(auction.Bids, bid)

	if err := s.store.Put(ctx, auction); err != nil {
		return nil, fmt.Errorf("failed to save bid: %w", err)
	}

	amount := bid.Amount
	s.emit(ctx, AuctionEvent{
		Type:       EventTypeBidPlaced,
		AuctionID:  auction.ID,
		Bidder:     bid.Bidder,
		Amount:     &amount,
		OccurredAt: bid.Timestamp,
	})

	return &bid, nil
}

// CloseAuction selects the winner and deletes the auction. Closing is
// terminal: a second close of the same id reports ErrAuctionNotFound.
func (s *Service) CloseAuction(ctx context.Context, id string) (*CloseResult, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: auction id is required", ErrInvalidInput)
	}

	unlock, err := s.locks.Lock(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	auction, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAuctionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load auction: %w", err)
	}

	result := &CloseResult{
		AuctionID: id,
		Winner:    auction.HighestBid(),
		BidCount:  len(auction.Bids),
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete auction: %w", err)
	}

	event := AuctionEvent{
		Type:       EventTypeAuctionClosed,
		AuctionID:  id,
		OccurredAt: s.now(),
	}
	if result.Winner != nil {
		amount := result.Winner.Amount
		event.Bidder = result.Winner.Bidder
		event.Amount = &amount
	}
	s.emit(ctx, event)

	return result, nil
}

// emit is best-effort; the transition is already stored
func (s *Service) emit(ctx context.Context, event AuctionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAuctionEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish auction event",
			"type", event.Type.String(),
			"auction_id", event.AuctionID,
			"error", err,
		)
	}
}
