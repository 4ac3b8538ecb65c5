package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	pkgevents "github.com/daniuniperu/p2p-auction-hyperswarm/pkg/events"
	"github.com/daniuniperu/p2p-auction-hyperswarm/services/auction-service/internal/domain/auctions"
)

// Exchange is the topic exchange auction lifecycle events are published to
const Exchange = "auction.events"

// maxPendingEvents bounds the relay queue while the broker is unreachable
const maxPendingEvents = 10_000

// eventMessage is the wire form of an auction event
type eventMessage struct {
	EventID    uuid.UUID `json:"eventId"`
	Type       string    `json:"type"`
	AuctionID  string    `json:"auctionId"`
	Bidder     string    `json:"bidder,omitempty"`
	Amount     *float64  `json:"amount,omitempty"`
	OccurredAt int64     `json:"occurredAt"`
}

// AuctionEventsProducer implements auctions.EventPublisher by queueing events
// on a relay that ships them to RabbitMQ
type AuctionEventsProducer struct {
	relay     *pkgevents.Relay
	publisher *pkgevents.RabbitMQPublisher
}

// NewAuctionEventsProducer creates a new producer
func NewAuctionEventsProducer(conn *amqp.Connection, batchSize int, interval time.Duration, logger *slog.Logger) (*AuctionEventsProducer, error) {
	publisher, err := pkgevents.NewRabbitMQPublisher(conn, Exchange)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	relay := pkgevents.NewRelay(
		publisher,
		batchSize,
		maxPendingEvents,
		interval,
		Exchange,
		logger,
	)

	return &AuctionEventsProducer{
		relay:     relay,
		publisher: publisher,
	}, nil
}

// PublishAuctionEvent queues the event for the relay
func (p *AuctionEventsProducer) PublishAuctionEvent(ctx context.Context, event auctions.AuctionEvent) error {
	if !event.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", event.Type)
	}

	id := uuid.New()
	payload, err := json.Marshal(eventMessage{
		EventID:    id,
		Type:       event.Type.String(),
		AuctionID:  event.AuctionID,
		Bidder:     event.Bidder,
		Amount:     event.Amount,
		OccurredAt: event.OccurredAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.relay.Enqueue(&pkgevents.Event{
		ID:        id,
		Type:      event.Type.String(),
		Payload:   payload,
		CreatedAt: event.OccurredAt,
	})
}

// Run starts the relay loop
func (p *AuctionEventsProducer) Run(ctx context.Context) error {
	return p.relay.Run(ctx)
}

// Close closes the publisher channel
func (p *AuctionEventsProducer) Close() error {
	if p.publisher == nil {
		return nil
	}
	return p.publisher.Close()
}
