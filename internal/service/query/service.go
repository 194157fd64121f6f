package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/repository"
	postgresrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/postgres"
	redisrepo "github.com/ThisaraGit99/artists-management-core/internal/repository/redis"
)

type Config struct {
	BookingSummaryTTL time.Duration
	LedgerTTL         time.Duration
}

type Service struct {
	store *postgresrepo.Store
	cache *redisrepo.Cache
	cfg   Config
}

func New(store *postgresrepo.Store, cache *redisrepo.Cache, cfg Config) *Service {
	if cfg.BookingSummaryTTL <= 0 {
		cfg.BookingSummaryTTL = 30 * time.Second
	}

	if cfg.LedgerTTL <= 0 {
		cfg.LedgerTTL = 30 * time.Second
	}

	return &Service{
		store: store,
		cache: cache,
		cfg:   cfg,
	}
}

// GetBooking retrieves a booking by its ID through the cache. Cached
// copies are invalidated after every committed transition, so the TTL
// only bounds staleness across instances that missed the pubsub event.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "service.query.GetBooking"

	key := redisrepo.KeyBookingSummary(id)

	b, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.BookingSummaryTTL,
		func(ctx context.Context) (domain.Booking, error) {
			stored, err := s.store.Bookings().Get(ctx, id)
			if err != nil {
				return domain.Booking{}, err
			}
			return *stored, nil
		},
	)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrBookingNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &b, nil
}

// LedgerForBooking returns the booking's money-movement history.
func (s *Service) LedgerForBooking(
	ctx context.Context,
	id uuid.UUID,
) ([]domain.PaymentTransaction, error) {
	const op = "service.query.LedgerForBooking"

	key := redisrepo.KeyBookingLedger(id)

	entries, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		key,
		s.cfg.LedgerTTL,
		func(ctx context.Context) ([]domain.PaymentTransaction, error) {
			return s.store.Ledger().ListByBooking(ctx, id)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return entries, nil
}

// GetDispute retrieves a dispute by its ID.
func (s *Service) GetDispute(ctx context.Context, id uuid.UUID) (*domain.Dispute, error) {
	const op = "service.query.GetDispute"

	d, err := s.store.Disputes().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrDisputeNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return d, nil
}
