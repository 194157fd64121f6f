package lifecycle

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
)

func TestValidateRequest(t *testing.T) {
	releaseAt := time.Now().Add(72 * time.Hour)

	t.Run("whitelisted transition passes", func(t *testing.T) {
		err := validateRequest(Request{
			From: domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPaid},
			To:   domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
			Effects: Effects{
				AutoReleaseAt: &releaseAt,
			},
		})
		assert.NoError(t, err)
	})

	t.Run("outside the whitelist", func(t *testing.T) {
		err := validateRequest(Request{
			From: domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPaid},
			To:   domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
		})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("escrow entry without release date", func(t *testing.T) {
		err := validateRequest(Request{
			From: domain.StatePair{Event: domain.EventConfirmed, Payment: domain.PaymentPaid},
			To:   domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
		})
		assert.ErrorIs(t, err, ErrInvalidEffects)
	})

	t.Run("release date outside the escrow window", func(t *testing.T) {
		err := validateRequest(Request{
			From: domain.StatePair{Event: domain.EventCompleted, Payment: domain.PaymentHeld},
			To:   domain.StatePair{Event: domain.EventDisputed, Payment: domain.PaymentHeld},
			Effects: Effects{
				AutoReleaseAt: &releaseAt,
			},
		})
		assert.ErrorIs(t, err, ErrInvalidEffects)
	})
}

func TestValidateMoney(t *testing.T) {
	t.Run("sum within total", func(t *testing.T) {
		err := validateMoney([]LedgerIntent{
			{Kind: domain.TxRelease, Cents: 60},
			{Kind: domain.TxRefund, Cents: 40},
		}, 100)
		assert.NoError(t, err)
	})

	t.Run("no entries", func(t *testing.T) {
		assert.NoError(t, validateMoney(nil, 100))
	})

	t.Run("non-positive amount", func(t *testing.T) {
		err := validateMoney([]LedgerIntent{{Kind: domain.TxRelease, Cents: 0}}, 100)
		assert.ErrorIs(t, err, ErrInvalidEffects)
	})

	t.Run("sum exceeds total", func(t *testing.T) {
		err := validateMoney([]LedgerIntent{
			{Kind: domain.TxRelease, Cents: 70},
			{Kind: domain.TxRefund, Cents: 40},
		}, 100)
		assert.ErrorIs(t, err, ErrInvalidEffects)
	})
}

func TestLedgerEntry(t *testing.T) {
	b := &domain.Booking{
		ID:         uuid.New(),
		TotalCents: 100_000,
		FeeCents:   10_000,
		NetCents:   90_000,
	}

	t.Run("release carries the fee split", func(t *testing.T) {
		entry := ledgerEntry(b, LedgerIntent{Kind: domain.TxRelease, Cents: 100_000})
		require.NotNil(t, entry)
		assert.Equal(t, b.ID, entry.BookingID)
		assert.Equal(t, domain.TxRelease, entry.Kind)
		assert.Equal(t, int64(100_000), entry.Cents)
		assert.Equal(t, int64(10_000), entry.FeeCents)
		assert.Equal(t, int64(90_000), entry.NetCents)
	})

	t.Run("capture carries the fee split", func(t *testing.T) {
		entry := ledgerEntry(b, LedgerIntent{Kind: domain.TxCapture, Cents: 100_000})
		assert.Equal(t, int64(10_000), entry.FeeCents)
		assert.Equal(t, int64(90_000), entry.NetCents)
	})

	t.Run("partial release prorates the fee", func(t *testing.T) {
		// 5% of the booking released, so 5% of the fee applies. A flat
		// fee here would push the net negative.
		entry := ledgerEntry(b, LedgerIntent{Kind: domain.TxRelease, Cents: 5_000})
		assert.Equal(t, int64(500), entry.FeeCents)
		assert.Equal(t, int64(4_500), entry.NetCents)
		assert.Equal(t, entry.Cents, entry.NetCents+entry.FeeCents)
	})

	t.Run("refund has no fee", func(t *testing.T) {
		entry := ledgerEntry(b, LedgerIntent{Kind: domain.TxRefund, Cents: 50_000})
		assert.Equal(t, int64(0), entry.FeeCents)
		assert.Equal(t, int64(50_000), entry.NetCents)
	})
}
