package auctions

import (
	"errors"
	"fmt"
	"math"
)

// Domain errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrStoreFailure    = errors.New("store failure")
)

// ErrorKind classifies an operation failure
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindAuctionNotFound ErrorKind = "AUCTION_NOT_FOUND"
	KindInvalidInput    ErrorKind = "INVALID_INPUT"
	KindStoreFailure    ErrorKind = "STORE_FAILURE"
	KindInternal        ErrorKind = "INTERNAL"
)

// KindOf maps an error returned by Service to its kind
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuctionNotFound):
		return KindAuctionNotFound
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrStoreFailure):
		return KindStoreFailure
	default:
		return KindInternal
	}
}

// validateAmount checks that a price or bid amount is a finite non-negative number
func validateAmount(field string, amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrInvalidInput, field)
	}
	if amount < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, field)
	}
	return nil
}
