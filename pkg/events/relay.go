package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Enqueue when the relay holds too many unpublished events
var ErrQueueFull = errors.New("event queue is full")

// Event is a domain event waiting to be published
type Event struct {
	ID        uuid.UUID
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// Relay buffers events in memory and publishes them in batches on an interval.
// Events that fail to publish stay at the head of the queue and are retried.
type Relay struct {
	mu         sync.Mutex
	pending    []*Event
	maxPending int

	publisher EventPublisher
	batchSize int
	interval  time.Duration
	exchange  string
	logger    *slog.Logger
}

// NewRelay creates a new relay
func NewRelay(
	publisher EventPublisher,
	batchSize int,
	maxPending int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *Relay {
	return &Relay{
		publisher:  publisher,
		batchSize:  batchSize,
		maxPending: maxPending,
		interval:   interval,
		exchange:   exchange,
		logger:     logger,
	}
}

// Enqueue adds an event to the tail of the queue
func (r *Relay) Enqueue(event *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxPending > 0 && len(r.pending) >= r.maxPending {
		return ErrQueueFull
	}
	r.pending = append(r.pending, event)
	return nil
}

// Pending returns the number of unpublished events
func (r *Relay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Run starts the publishing loop
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := r.Pending(); n > 0 {
				r.logger.Warn("Relay stopped with unpublished events", "count", n)
			}
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("Error processing batch", "error", err)
			}
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) error {
	batch := r.peek(r.batchSize)
	if len(batch) == 0 {
		return nil // Nothing to do
	}

	r.logger.Debug("Processing events", "count", len(batch))

	for i, event := range batch {
		// Routing Key is the event type
		if err := r.publisher.Publish(ctx, r.exchange, event.Type, event.Payload); err != nil {
			// Everything published so far is done, the rest stays pending
			r.ack(i)
			return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		}
	}

	r.ack(len(batch))
	return nil
}

// peek copies up to n events from the head of the queue
func (r *Relay) peek(n int) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || n > len(r.pending) {
		n = len(r.pending)
	}
	batch := make([]*Event, n)
	copy(batch, r.pending[:n])
	return batch
}

// ack drops n published events from the head; only Run removes events so the
// head is still the batch that was peeked
func (r *Relay) ack(n int) {
	if n == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	remaining := make([]*Event, len(r.pending)-n)
	copy(remaining, r.pending[n:])
	r.pending = remaining
}
