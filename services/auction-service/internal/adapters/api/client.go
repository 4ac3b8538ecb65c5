package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/daniuniperu/p2p-auction-hyperswarm/pkg/rpc"
)

// RemoteError is a failure envelope returned by the server
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CloseReply is the outcome of closing an auction. Winner is nil when no bids
// were placed.
type CloseReply struct {
	Winner *string
	Amount *float64
}

type reply struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Winner  *string  `json:"winner"`
	Amount  *float64 `json:"amount"`
}

// Caller sends one named operation to a server
type Caller interface {
	Call(ctx context.Context, op string, payload []byte) ([]byte, error)
}

var _ Caller = (*rpc.Client)(nil)

// AuctionClient is a typed client for the auction operations
type AuctionClient struct {
	caller Caller
}

// NewAuctionClient creates a new auction client
func NewAuctionClient(caller Caller) *AuctionClient {
	return &AuctionClient{caller: caller}
}

// OpenAuction opens an auction on the server
func (c *AuctionClient) OpenAuction(ctx context.Context, id, description string, startingPrice float64) error {
	_, err := c.call(ctx, OpOpenAuction, map[string]any{
		"id":            id,
		"description":   description,
		"startingPrice": startingPrice,
	})
	return err
}

// PlaceBid places a bid on an open auction
func (c *AuctionClient) PlaceBid(ctx context.Context, id, bidder string, amount float64) error {
	_, err := c.call(ctx, OpPlaceBid, map[string]any{
		"id":     id,
		"bidder": bidder,
		"amount": amount,
	})
	return err
}

// CloseAuction closes an auction and returns its winner
func (c *AuctionClient) CloseAuction(ctx context.Context, id string) (*CloseReply, error) {
	r, err := c.call(ctx, OpCloseAuction, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	return &CloseReply{Winner: r.Winner, Amount: r.Amount}, nil
}

func (c *AuctionClient) call(ctx context.Context, op string, req any) (*reply, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
	}

	raw, err := c.caller.Call(ctx, op, payload)
	if err != nil {
		return nil, err
	}

	var r reply
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("failed to decode %s reply: %w", op, err)
	}
	if !r.Success {
		return nil, &RemoteError{Code: r.Code, Message: r.Error}
	}
	return &r, nil
}
