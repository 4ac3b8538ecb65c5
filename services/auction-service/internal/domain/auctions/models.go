package auctions

import (
	"time"
)

// Auction is an item for sale and the bids received so far.
// Bids are kept in arrival order and only ever appended to.
type Auction struct {
	ID            string
	Description   string
	StartingPrice float64
	Bids          []Bid
	CreatedAt     time.Time
}

// Bid is a bidder's offer; Timestamp is set on receipt
type Bid struct {
	Bidder    string
	Amount    float64
	Timestamp time.Time
}

// HighestBid returns the bid with the strictly greatest amount. When several
// bids share the maximum the earliest one wins. Nil means no bids.
func (a *Auction) HighestBid() *Bid {
	var best *Bid
	for i := range a.Bids {
		if best == nil || a.Bids[i].Amount > best.Amount {
			best = &a.Bids[i]
		}
	}
	if best == nil {
		return nil
	}
	winner := *best
	return &winner
}

// OpenAuctionCommand represents the command to open an auction
type OpenAuctionCommand struct {
	ID            string
	Description   string
	StartingPrice float64
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	AuctionID string
	Bidder    string
	Amount    float64
}

// CloseResult is the outcome of closing an auction
type CloseResult struct {
	AuctionID string
	Winner    *Bid // nil when the auction closed without bids
	BidCount  int
}

// EventType represents the type of auction lifecycle event
type EventType string

const (
	EventTypeAuctionOpened EventType = "auction.opened"
	EventTypeBidPlaced     EventType = "bid.placed"
	EventTypeAuctionClosed EventType = "auction.closed"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeAuctionOpened, EventTypeBidPlaced, EventTypeAuctionClosed:
		return true
	default:
		return false
	}
}

// AuctionEvent is emitted after a lifecycle transition has been stored
type AuctionEvent struct {
	Type       EventType
	AuctionID  string
	Bidder     string   // bid.placed, and auction.closed with a winner
	Amount     *float64 // starting price, bid amount or winning amount
	OccurredAt time.Time
}
