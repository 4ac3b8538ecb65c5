package auctions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store that hands out copies, like a real backend
// that decodes a fresh record on every read.
type memStore struct {
	mu      sync.Mutex
	records map[string]Auction
	delay   time.Duration
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Auction)}
}

func (s *memStore) Get(ctx context.Context, id string) (*Auction, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	record.Bids = append([]Bid(nil), record.Bids...)
	return &record, nil
}

func (s *memStore) Put(ctx context.Context, auction *Auction) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record := *auction
	record.Bids = append([]Bid(nil), auction.Bids...)
	s.records[auction.ID] = record
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// MockStore is a mock implementation of Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, id string) (*Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Auction), args.Error(1)
}

func (m *MockStore) Put(ctx context.Context, auction *Auction) error {
	args := m.Called(ctx, auction)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPublisher is a mock implementation of EventPublisher for testing
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishAuctionEvent(ctx context.Context, event AuctionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(store Store, publisher EventPublisher) *Service {
	svc := NewService(store, publisher, discardLogger())
	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Millisecond)
		return tick
	}
	return svc
}

func TestService_OpenAuction(t *testing.T) {
	tests := []struct {
		name    string
		cmd     OpenAuctionCommand
		wantErr error
	}{
		{
			name: "successfully opens auction",
			cmd:  OpenAuctionCommand{ID: "pic1", Description: "Sell Pic#1", StartingPrice: 75},
		},
		{
			name: "opens auction without description",
			cmd:  OpenAuctionCommand{ID: "pic2", StartingPrice: 10},
		},
		{
			name: "opens auction with zero starting price",
			cmd:  OpenAuctionCommand{ID: "free", StartingPrice: 0},
		},
		{
			name:    "fails with empty id",
			cmd:     OpenAuctionCommand{StartingPrice: 75},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "fails with negative starting price",
			cmd:     OpenAuctionCommand{ID: "pic1", StartingPrice: -1},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "fails with NaN starting price",
			cmd:     OpenAuctionCommand{ID: "pic1", StartingPrice: math.NaN()},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(store, nil)

			auction, err := svc.OpenAuction(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, auction)
				assert.Empty(t, store.records)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.cmd.ID, auction.ID)
			assert.Equal(t, tt.cmd.Description, auction.Description)
			assert.Equal(t, tt.cmd.StartingPrice, auction.StartingPrice)
			assert.NotNil(t, auction.Bids)
			assert.Empty(t, auction.Bids)
			assert.False(t, auction.CreatedAt.IsZero())

			stored, err := store.Get(context.Background(), tt.cmd.ID)
			require.NoError(t, err)
			assert.Equal(t, auction.StartingPrice, stored.StartingPrice)
		})
	}
}

func TestService_OpenAuctionOverwritesExisting(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore(), nil)

	_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", Description: "first", StartingPrice: 75})
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, PlaceBidCommand{AuctionID: "pic1", Bidder: "Client2", Amount: 80})
	require.NoError(t, err)

	_, err = svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", Description: "second", StartingPrice: 10})
	require.NoError(t, err)

	result, err := svc.CloseAuction(ctx, "pic1")
	require.NoError(t, err)
	assert.Nil(t, result.Winner)
	assert.Equal(t, 0, result.BidCount)
}

func TestService_PlaceBid(t *testing.T) {
	tests := []struct {
		name    string
		seed    bool
		cmd     PlaceBidCommand
		wantErr error
	}{
		{
			name: "successfully places bid",
			seed: true,
			cmd:  PlaceBidCommand{AuctionID: "pic1", Bidder: "Client2", Amount: 80},
		},
		{
			name: "accepts bid below starting price",
			seed: true,
			cmd:  PlaceBidCommand{AuctionID: "pic1", Bidder: "Client3", Amount: 1},
		},
		{
			name:    "fails for unknown auction",
			seed:    false,
			cmd:     PlaceBidCommand{AuctionID: "nope", Bidder: "Client2", Amount: 80},
			wantErr: ErrAuctionNotFound,
		},
		{
			name:    "fails with empty bidder",
			seed:    true,
			cmd:     PlaceBidCommand{AuctionID: "pic1", Amount: 80},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "fails with empty auction id",
			seed:    true,
			cmd:     PlaceBidCommand{Bidder: "Client2", Amount: 80},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "fails with infinite amount",
			seed:    true,
			cmd:     PlaceBidCommand{AuctionID: "pic1", Bidder: "Client2", Amount: math.Inf(1)},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore()
			svc := newTestService(store, nil)
			if tt.seed {
				_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", Description: "Sell Pic#1", StartingPrice: 75})
				require.NoError(t, err)
			}

			bid, err := svc.PlaceBid(ctx, tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bid)
				if tt.seed {
					stored, getErr := store.Get(ctx, "pic1")
					require.NoError(t, getErr)
					assert.Empty(t, stored.Bids)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.cmd.Bidder, bid.Bidder)
			assert.Equal(t, tt.cmd.Amount, bid.Amount)

			stored, err := store.Get(ctx, tt.cmd.AuctionID)
			require.NoError(t, err)
			require.Len(t, stored.Bids, 1)
			assert.Equal(t, *bid, stored.Bids[0])
		})
	}
}

func TestService_CloseAuction(t *testing.T) {
	tests := []struct {
		name       string
		bids       []PlaceBidCommand
		wantWinner *Bid
		wantCount  int
	}{
		{
			name:      "no bids yields no winner",
			wantCount: 0,
		},
		{
			name: "highest amount wins",
			bids: []PlaceBidCommand{
				{AuctionID: "pic1", Bidder: "Client2", Amount: 80},
				{AuctionID: "pic1", Bidder: "Client3", Amount: 75.5},
			},
			wantWinner: &Bid{Bidder: "Client2", Amount: 80},
			wantCount:  2,
		},
		{
			name: "tie goes to the earlier bid",
			bids: []PlaceBidCommand{
				{AuctionID: "pic1", Bidder: "X", Amount: 80},
				{AuctionID: "pic1", Bidder: "Y", Amount: 80},
			},
			wantWinner: &Bid{Bidder: "X", Amount: 80},
			wantCount:  2,
		},
		{
			name: "bid below starting price can win",
			bids: []PlaceBidCommand{
				{AuctionID: "pic1", Bidder: "Lowball", Amount: 5},
			},
			wantWinner: &Bid{Bidder: "Lowball", Amount: 5},
			wantCount:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := newMemStore()
			svc := newTestService(store, nil)

			_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", Description: "Sell Pic#1", StartingPrice: 75})
			require.NoError(t, err)
			for _, cmd := range tt.bids {
				_, err := svc.PlaceBid(ctx, cmd)
				require.NoError(t, err)
			}

			result, err := svc.CloseAuction(ctx, "pic1")
			require.NoError(t, err)

			assert.Equal(t, "pic1", result.AuctionID)
			assert.Equal(t, tt.wantCount, result.BidCount)
			if tt.wantWinner == nil {
				assert.Nil(t, result.Winner)
			} else {
				require.NotNil(t, result.Winner)
				assert.Equal(t, tt.wantWinner.Bidder, result.Winner.Bidder)
				assert.Equal(t, tt.wantWinner.Amount, result.Winner.Amount)
			}

			_, err = store.Get(ctx, "pic1")
			assert.ErrorIs(t, err, ErrAuctionNotFound)
		})
	}
}

func TestService_ClosedAuctionIsGone(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemStore(), nil)

	_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
	require.NoError(t, err)
	_, err = svc.CloseAuction(ctx, "pic1")
	require.NoError(t, err)

	_, err = svc.CloseAuction(ctx, "pic1")
	assert.ErrorIs(t, err, ErrAuctionNotFound)

	_, err = svc.PlaceBid(ctx, PlaceBidCommand{AuctionID: "pic1", Bidder: "late", Amount: 100})
	assert.ErrorIs(t, err, ErrAuctionNotFound)

	_, err = svc.CloseAuction(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestService_ConcurrentBidsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.delay = time.Millisecond
	svc := newTestService(store, nil)

	_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
	require.NoError(t, err)

	const bidders = 50
	var wg sync.WaitGroup
	errs := make(chan error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.PlaceBid(ctx, PlaceBidCommand{
				AuctionID: "pic1",
				Bidder:    fmt.Sprintf("bidder-%d", i),
				Amount:    float64(100 + i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	result, err := svc.CloseAuction(ctx, "pic1")
	require.NoError(t, err)
	assert.Equal(t, bidders, result.BidCount)
	require.NotNil(t, result.Winner)
	assert.Equal(t, "bidder-49", result.Winner.Bidder)
	assert.Equal(t, 0, svc.locks.size())
}

func TestService_ConcurrentCloseAndBid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.delay = time.Millisecond
	svc := newTestService(store, nil)

	_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var bidErr, closeErr error
	var result *CloseResult
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, bidErr = svc.PlaceBid(ctx, PlaceBidCommand{AuctionID: "pic1", Bidder: "racer", Amount: 90})
	}()
	go func() {
		defer wg.Done()
		result, closeErr = svc.CloseAuction(ctx, "pic1")
	}()
	wg.Wait()

	require.NoError(t, closeErr)
	if bidErr == nil {
		// bid landed before the close and must be visible to it
		assert.Equal(t, 1, result.BidCount)
	} else {
		assert.ErrorIs(t, bidErr, ErrAuctionNotFound)
		assert.Equal(t, 0, result.BidCount)
	}
}

func TestService_StoreFailures(t *testing.T) {
	storeErr := fmt.Errorf("%w: disk full", ErrStoreFailure)
	existing := func() *Auction {
		return &Auction{ID: "pic1", StartingPrice: 75, Bids: []Bid{}}
	}

	tests := []struct {
		name      string
		setupMock func(*MockStore)
		run       func(*Service) error
	}{
		{
			name: "open fails to save",
			setupMock: func(store *MockStore) {
				store.On("Put", mock.Anything, mock.AnythingOfType("*auctions.Auction")).Return(storeErr)
			},
			run: func(svc *Service) error {
				_, err := svc.OpenAuction(context.Background(), OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
				return err
			},
		},
		{
			name: "bid fails to load",
			setupMock: func(store *MockStore) {
				store.On("Get", mock.Anything, "pic1").Return(nil, storeErr)
			},
			run: func(svc *Service) error {
				_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{AuctionID: "pic1", Bidder: "b", Amount: 1})
				return err
			},
		},
		{
			name: "bid fails to save",
			setupMock: func(store *MockStore) {
				store.On("Get", mock.Anything, "pic1").Return(existing(), nil)
				store.On("Put", mock.Anything, mock.AnythingOfType("*auctions.Auction")).Return(storeErr)
			},
			run: func(svc *Service) error {
				_, err := svc.PlaceBid(context.Background(), PlaceBidCommand{AuctionID: "pic1", Bidder: "b", Amount: 1})
				return err
			},
		},
		{
			name: "close fails to delete",
			setupMock: func(store *MockStore) {
				store.On("Get", mock.Anything, "pic1").Return(existing(), nil)
				store.On("Delete", mock.Anything, "pic1").Return(storeErr)
			},
			run: func(svc *Service) error {
				_, err := svc.CloseAuction(context.Background(), "pic1")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			tt.setupMock(store)
			publisher := new(MockPublisher)
			svc := newTestService(store, publisher)

			err := tt.run(svc)

			assert.ErrorIs(t, err, ErrStoreFailure)
			assert.Equal(t, KindStoreFailure, KindOf(err))
			store.AssertExpectations(t)
			publisher.AssertNotCalled(t, "PublishAuctionEvent", mock.Anything, mock.Anything)
		})
	}
}

func TestService_PublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	publisher := new(MockPublisher)
	publisher.On("PublishAuctionEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newTestService(newMemStore(), publisher)

	_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
	require.NoError(t, err)
	_, err = svc.PlaceBid(ctx, PlaceBidCommand{AuctionID: "pic1", Bidder: "Client2", Amount: 80})
	require.NoError(t, err)
	_, err = svc.CloseAuction(ctx, "pic1")
	require.NoError(t, err)

	require.Len(t, publisher.Calls, 3)
	events := make([]AuctionEvent, 0, 3)
	for _, call := range publisher.Calls {
		events = append(events, call.Arguments.Get(1).(AuctionEvent))
	}

	assert.Equal(t, EventTypeAuctionOpened, events[0].Type)
	require.NotNil(t, events[0].Amount)
	assert.Equal(t, 75.0, *events[0].Amount)

	assert.Equal(t, EventTypeBidPlaced, events[1].Type)
	assert.Equal(t, "Client2", events[1].Bidder)

	assert.Equal(t, EventTypeAuctionClosed, events[2].Type)
	assert.Equal(t, "Client2", events[2].Bidder)
	require.NotNil(t, events[2].Amount)
	assert.Equal(t, 80.0, *events[2].Amount)
	for _, event := range events {
		assert.Equal(t, "pic1", event.AuctionID)
	}
}

func TestService_PublishFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	publisher := new(MockPublisher)
	publisher.On("PublishAuctionEvent", mock.Anything, mock.Anything).Return(errors.New("queue full"))
	svc := newTestService(newMemStore(), publisher)

	_, err := svc.OpenAuction(ctx, OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
	require.NoError(t, err)

	result, err := svc.CloseAuction(ctx, "pic1")
	require.NoError(t, err)
	assert.Nil(t, result.Winner)
	publisher.AssertNumberOfCalls(t, "PublishAuctionEvent", 2)
}

func TestService_CancelledWhileWaitingForLock(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	_, err := svc.OpenAuction(context.Background(), OpenAuctionCommand{ID: "pic1", StartingPrice: 75})
	require.NoError(t, err)

	unlock, err := svc.locks.Lock(context.Background(), "pic1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.PlaceBid(ctx, PlaceBidCommand{AuctionID: "pic1", Bidder: "impatient", Amount: 90})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindInternal, KindOf(err))

	unlock()

	stored, err := store.Get(context.Background(), "pic1")
	require.NoError(t, err)
	assert.Empty(t, stored.Bids)
	assert.Equal(t, 0, svc.locks.size())
}
