package dispute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
)

func TestPlanResolution(t *testing.T) {
	const total = int64(100_000)

	t.Run("favor artist releases everything", func(t *testing.T) {
		plan, err := planResolution(domain.FavorArtist, total, 5000)
		require.NoError(t, err)
		assert.Equal(t,
			domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
			plan.To)
		assert.Equal(t, []lifecycle.LedgerIntent{
			{Kind: domain.TxRelease, Cents: total},
		}, plan.Ledger)
	})

	t.Run("favor organizer refunds everything", func(t *testing.T) {
		plan, err := planResolution(domain.FavorOrganizer, total, 5000)
		require.NoError(t, err)
		assert.Equal(t,
			domain.StatePair{Event: domain.EventCancelled, Payment: domain.PaymentRefunded},
			plan.To)
		assert.Equal(t, []lifecycle.LedgerIntent{
			{Kind: domain.TxRefund, Cents: total},
		}, plan.Ledger)
	})

	t.Run("full refund matches favor organizer", func(t *testing.T) {
		plan, err := planResolution(domain.FullRefund, total, 5000)
		require.NoError(t, err)
		assert.Equal(t,
			domain.StatePair{Event: domain.EventCancelled, Payment: domain.PaymentRefunded},
			plan.To)
	})

	t.Run("partial refund splits into two entries", func(t *testing.T) {
		plan, err := planResolution(domain.PartialRefund, total, 3000)
		require.NoError(t, err)
		assert.Equal(t,
			domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
			plan.To)
		assert.Equal(t, []lifecycle.LedgerIntent{
			{Kind: domain.TxRelease, Cents: 70_000},
			{Kind: domain.TxRefund, Cents: 30_000},
		}, plan.Ledger)
	})

	t.Run("partial refund rounding favors the artist", func(t *testing.T) {
		plan, err := planResolution(domain.PartialRefund, 99, 5000)
		require.NoError(t, err)
		// 99 * 5000 / 10000 = 49 refunded, 50 released.
		assert.Equal(t, []lifecycle.LedgerIntent{
			{Kind: domain.TxRelease, Cents: 50},
			{Kind: domain.TxRefund, Cents: 49},
		}, plan.Ledger)

		var sum int64
		for _, in := range plan.Ledger {
			sum += in.Cents
		}
		assert.Equal(t, int64(99), sum)
	})

	t.Run("partial refund at zero bps releases only", func(t *testing.T) {
		plan, err := planResolution(domain.PartialRefund, total, 0)
		require.NoError(t, err)
		assert.Equal(t, []lifecycle.LedgerIntent{
			{Kind: domain.TxRelease, Cents: total},
		}, plan.Ledger)
	})

	t.Run("partial refund at full bps refunds only", func(t *testing.T) {
		plan, err := planResolution(domain.PartialRefund, total, 10000)
		require.NoError(t, err)
		assert.Equal(t, []lifecycle.LedgerIntent{
			{Kind: domain.TxRefund, Cents: total},
		}, plan.Ledger)
	})

	t.Run("unknown decision", func(t *testing.T) {
		_, err := planResolution(domain.DisputeDecision("split_the_baby"), total, 5000)
		assert.ErrorIs(t, err, ErrUnknownDecision)
	})
}
