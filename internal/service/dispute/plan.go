package dispute

import (
	"fmt"

	"github.com/ThisaraGit99/artists-management-core/internal/domain"
	"github.com/ThisaraGit99/artists-management-core/internal/service/lifecycle"
)

// resolutionPlan is the booking transition a decision maps to,
// together with the money movements it records.
type resolutionPlan struct {
	To     domain.StatePair
	Ledger []lifecycle.LedgerIntent
}

// planResolution maps an admin decision onto the transition table.
// The partial-refund split is a configuration input: refundBps is the
// organizer's share of the total in basis points; the remainder is
// released to the artist. Each share gets its own ledger entry so
// every money movement stays individually recorded.
func planResolution(
	decision domain.DisputeDecision,
	totalCents int64,
	refundBps int,
) (resolutionPlan, error) {
	switch decision {
	case domain.FavorArtist:
		return resolutionPlan{
			To: domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
			Ledger: []lifecycle.LedgerIntent{
				{Kind: domain.TxRelease, Cents: totalCents},
			},
		}, nil

	case domain.FavorOrganizer, domain.FullRefund:
		return resolutionPlan{
			To: domain.StatePair{Event: domain.EventCancelled, Payment: domain.PaymentRefunded},
			Ledger: []lifecycle.LedgerIntent{
				{Kind: domain.TxRefund, Cents: totalCents},
			},
		}, nil

	case domain.PartialRefund:
		refund := totalCents * int64(refundBps) / 10000
		release := totalCents - refund

		plan := resolutionPlan{
			To: domain.StatePair{Event: domain.EventSettled, Payment: domain.PaymentReleased},
		}
		if release > 0 {
			plan.Ledger = append(plan.Ledger, lifecycle.LedgerIntent{
				Kind: domain.TxRelease, Cents: release,
			})
		}
		if refund > 0 {
			plan.Ledger = append(plan.Ledger, lifecycle.LedgerIntent{
				Kind: domain.TxRefund, Cents: refund,
			})
		}
		return plan, nil
	}

	return resolutionPlan{}, fmt.Errorf("%w: %q", ErrUnknownDecision, decision)
}
