package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/domain/auctions"
)

// Operation names served by the dispatcher
const (
	OpOpenAuction  = "openAuction"
	OpPlaceBid     = "placeBid"
	OpCloseAuction = "closeAuction"
)

// notFoundMessage is the error text clients match on
const notFoundMessage = "Auction not found"

// AuctionService is the engine the dispatcher drives
type AuctionService interface {
	OpenAuction(ctx context.Context, cmd auctions.OpenAuctionCommand) (*auctions.Auction, error)
	PlaceBid(ctx context.Context, cmd auctions.PlaceBidCommand) (*auctions.Bid, error)
	CloseAuction(ctx context.Context, id string) (*auctions.CloseResult, error)
}

type openAuctionRequest struct {
	ID            *string  `json:"id"`
	Description   *string  `json:"description"`
	StartingPrice *float64 `json:"startingPrice"`
}

type placeBidRequest struct {
	ID     *string  `json:"id"`
	Bidder *string  `json:"bidder"`
	Amount *float64 `json:"amount"`
}

type closeAuctionRequest struct {
	ID *string `json:"id"`
}

type successEnvelope struct {
	Success bool `json:"success"`
}

type closeEnvelope struct {
	Success bool     `json:"success"`
	Winner  *string  `json:"winner"`
	Amount  *float64 `json:"amount"`
}

type failureEnvelope struct {
	Success bool               `json:"success"`
	Error   string             `json:"error"`
	Code    auctions.ErrorKind `json:"code"`
}

type operation func(ctx context.Context, payload []byte) (any, error)

// Dispatcher maps operation names to engine calls and encodes every outcome as
// a JSON envelope. Engine failures never surface as transport errors.
type Dispatcher struct {
	service    AuctionService
	operations map[string]operation
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher serving the auction operations
func NewDispatcher(service AuctionService, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		service: service,
		logger:  logger,
	}
	d.operations = map[string]operation{
		OpOpenAuction:  d.openAuction,
		OpPlaceBid:     d.placeBid,
		OpCloseAuction: d.closeAuction,
	}
	return d
}

// Operations returns the served operation names in sorted order
func (d *Dispatcher) Operations() []string {
	ops := make([]string, 0, len(d.operations))
	for op := range d.operations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Dispatch runs op with payload and returns the encoded reply
func (d *Dispatcher) Dispatch(ctx context.Context, op string, payload []byte) (reply []byte) {
	logger := d.logger.With("op", op)
	if requestID, ok := RequestIDFromContext(ctx); ok {
		logger = logger.With("request_id", requestID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Operation panicked", "panic", r)
			reply = encodeFailure(fmt.Errorf("operation %s panicked: %v", op, r))
		}
	}()

	fn, ok := d.operations[op]
	if !ok {
		err := fmt.Errorf("%w: unknown operation %q", auctions.ErrInvalidInput, op)
		logger.WarnContext(ctx, "Unknown operation")
		return encodeFailure(err)
	}

	result, err := fn(ctx, payload)
	if err != nil {
		d.logFailure(ctx, logger, err)
		return encodeFailure(err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode reply", "error", err)
		return encodeFailure(err)
	}

	logger.InfoContext(ctx, "Operation succeeded")
	return out
}

func (d *Dispatcher) openAuction(ctx context.Context, payload []byte) (any, error) {
	var req openAuctionRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := requireFields(
		field{"id", req.ID != nil},
		field{"description", req.Description != nil},
		field{"startingPrice", req.StartingPrice != nil},
	); err != nil {
		return nil, err
	}

	if _, err := d.service.OpenAuction(ctx, auctions.OpenAuctionCommand{
		ID:            *req.ID,
		Description:   *req.Description,
		StartingPrice: *req.StartingPrice,
	}); err != nil {
		return nil, err
	}
	return successEnvelope{Success: true}, nil
}

func (d *Dispatcher) placeBid(ctx context.Context, payload []byte) (any, error) {
	var req placeBidRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := requireFields(
		field{"id", req.ID != nil},
		field{"bidder", req.Bidder != nil},
		field{"amount", req.Amount != nil},
	); err != nil {
		return nil, err
	}

	if _, err := d.service.PlaceBid(ctx, auctions.PlaceBidCommand{
		AuctionID: *req.ID,
		Bidder:    *req.Bidder,
		Amount:    *req.Amount,
	}); err != nil {
		return nil, err
	}
	return successEnvelope{Success: true}, nil
}

func (d *Dispatcher) closeAuction(ctx context.Context, payload []byte) (any, error) {
	var req closeAuctionRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := requireFields(field{"id", req.ID != nil}); err != nil {
		return nil, err
	}

	result, err := d.service.CloseAuction(ctx, *req.ID)
	if err != nil {
		return nil, err
	}

	env := closeEnvelope{Success: true}
	if result.Winner != nil {
		winner := result.Winner.Bidder
		amount := result.Winner.Amount
		env.Winner = &winner
		env.Amount = &amount
	}
	return env, nil
}

func (d *Dispatcher) logFailure(ctx context.Context, logger *slog.Logger, err error) {
	kind := auctions.KindOf(err)
	switch kind {
	case auctions.KindAuctionNotFound, auctions.KindInvalidInput:
		logger.WarnContext(ctx, "Operation rejected", "code", string(kind), "error", err)
	default:
		logger.ErrorContext(ctx, "Operation failed", "code", string(kind), "error", err)
	}
}

type field struct {
	name    string
	present bool
}

func requireFields(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if !f.present {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields %v", auctions.ErrInvalidInput, missing)
	}
	return nil
}

func decode(payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: malformed request: %w", auctions.ErrInvalidInput, err)
	}
	return nil
}

func encodeFailure(err error) []byte {
	kind := auctions.KindOf(err)
	if kind == auctions.KindNone {
		kind = auctions.KindInternal
	}

	message := err.Error()
	if errors.Is(err, auctions.ErrAuctionNotFound) {
		message = notFoundMessage
	}

	out, marshalErr := json.Marshal(failureEnvelope{
		Success: false,
		Error:   message,
		Code:    kind,
	})
	if marshalErr != nil {
		return []byte(`{"success":false,"error":"internal error","code":"INTERNAL"}`)
	}
	return out
}
