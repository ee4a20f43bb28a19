package syncer

import (
	"context"
	"fmt"

	"github.com/caixaflow/ledger/internal/access"
	"github.com/caixaflow/ledger/internal/domain"
	"github.com/caixaflow/ledger/internal/gateway"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transfer moves an amount between two establishments as a paired
// Saída/Entrada. Both legs share a transfer id in their observation so
// reports can correlate them; there is no atomicity across the pair —
// if one dispatch fails the legs reconcile independently on a later
// sync, the same accepted divergence as any other mutation.
func (o *Orchestrator) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, description string) bool {
	if !access.CanMutate(o.gate.Role()) {
		return false
	}
	if fromID == toID || amount.Sign() <= 0 {
		return false
	}

	now := o.now()
	transferID := uuid.New().String()
	date := now.Format(domain.DateLayout)
	observation := fmt.Sprintf("Transferência %s", transferID)
	actor := o.Actor()

	out := domain.Transaction{
		ID:              uuid.New().String(),
		Date:            date,
		CreatedAt:       now,
		EstablishmentID: fromID,
		Direction:       domain.DirectionOut,
		Amount:          amount,
		Description:     description,
		Observation:     observation,
		Status:          domain.StatusApproved,
		Author:          actor,
	}
	in := domain.Transaction{
		ID:              uuid.New().String(),
		Date:            date,
		CreatedAt:       now,
		EstablishmentID: toID,
		Direction:       domain.DirectionIn,
		Amount:          amount,
		Description:     description,
		Observation:     observation,
		Status:          domain.StatusApproved,
		Author:          actor,
	}

	o.store.AddTransaction(out)
	o.store.AddTransaction(in)

	if o.gw == nil {
		return true
	}

	// Both legs dispatch before the single reconciling resync so the
	// refetch sees the complete pair whenever both landed.
	delivered := true
	for _, leg := range []domain.Transaction{out, in} {
		if err := o.gw.Dispatch(ctx, gateway.Mutation{Action: gateway.ActionAddTransaction, Payload: leg, User: actor}); err != nil {
			o.log.Warn().Err(err).Str("transaction_id", leg.ID).Msg("Transfer leg dispatch failed, keeping optimistic state")
			delivered = false
		}
	}
	if delivered {
		if err := o.TriggerSync(ctx); err != nil {
			o.log.Warn().Err(err).Msg("Post-transfer resync failed")
		}
	}

	return true
}
