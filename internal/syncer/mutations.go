package syncer

import (
	"context"

	"github.com/caixaflow/ledger/internal/access"
	"github.com/caixaflow/ledger/internal/domain"
	"github.com/caixaflow/ledger/internal/gateway"
	"github.com/google/uuid"
)

// Every mutation entry point here follows the same two-phase protocol:
// permission check, optimistic local apply, then remote confirmation
// with a full resync on success. A guest role makes each of them a
// silent no-op, and a failed confirmation never reaches the caller.
// The returned bool only says whether the optimistic apply happened.

// AnomalyChecker flags a candidate transaction before submission. The
// assistant package provides the real implementation.
type AnomalyChecker interface {
	CheckAnomaly(ctx context.Context, tx domain.Transaction, establishmentName string) (flagged bool, reason string, err error)
}

// AddTransaction records a new transaction. Missing id, date, creation
// timestamp and status are filled in; the author is the acting user.
func (o *Orchestrator) AddTransaction(ctx context.Context, tx domain.Transaction) bool {
	if !access.CanMutate(o.gate.Role()) {
		o.log.Debug().Str("role", string(o.gate.Role())).Msg("Add transaction skipped by role gate")
		return false
	}

	now := o.now()
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.Date = domain.CanonicalDate(tx.Date, now)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.Status == "" {
		tx.Status = domain.StatusPending
	}
	tx.Author = o.Actor()

	o.store.AddTransaction(tx)
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionAddTransaction, Payload: tx, User: o.Actor()})
	return true
}

// AddTransactionChecked is AddTransaction with the assistant's anomaly
// check in front, used when the assistant feature toggle is on. A
// flagged candidate is not applied; the reason goes back to the caller
// so the user can confirm or fix the entry. Checker errors never block
// submission.
func (o *Orchestrator) AddTransactionChecked(ctx context.Context, tx domain.Transaction, checker AnomalyChecker) (applied bool, reason string) {
	if checker != nil && o.store.Settings().Features.Assistant {
		flagged, why, err := checker.CheckAnomaly(ctx, tx, o.establishmentName(tx.EstablishmentID))
		if err != nil {
			o.log.Warn().Err(err).Msg("Anomaly check failed, submitting anyway")
		} else if flagged {
			o.log.Info().Str("reason", why).Msg("Transaction flagged by anomaly check")
			return false, why
		}
	}
	return o.AddTransaction(ctx, tx), ""
}

// EditTransaction replaces a cached transaction by id. The replacement
// is flagged unsynced and edited until the next successful resync.
func (o *Orchestrator) EditTransaction(ctx context.Context, tx domain.Transaction) bool {
	if !access.CanMutate(o.gate.Role()) {
		o.log.Debug().Str("role", string(o.gate.Role())).Msg("Edit transaction skipped by role gate")
		return false
	}

	tx.Date = domain.CanonicalDate(tx.Date, o.now())
	if !o.store.UpdateTransaction(tx) {
		o.log.Warn().Str("transaction_id", tx.ID).Msg("Edit targets unknown transaction id")
		return false
	}

	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionEditTransaction, Payload: tx, User: o.Actor()})
	return true
}

// AddEstablishment registers a new location. Admin only.
func (o *Orchestrator) AddEstablishment(ctx context.Context, est domain.Establishment) bool {
	if !access.CanManageDirectory(o.gate.Role()) {
		return false
	}

	if est.ID == "" {
		est.ID = uuid.New().String()
	}
	o.store.AddEstablishment(est)
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionAddEstablishment, Payload: est, User: o.Actor()})
	return true
}

// EditEstablishment updates a location by id. Admin only.
func (o *Orchestrator) EditEstablishment(ctx context.Context, est domain.Establishment) bool {
	if !access.CanManageDirectory(o.gate.Role()) {
		return false
	}
	if !o.store.UpdateEstablishment(est) {
		return false
	}
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionEditEstablishment, Payload: est, User: o.Actor()})
	return true
}

// AddUser grants a role to an email. Admin only.
func (o *Orchestrator) AddUser(ctx context.Context, user domain.AuthorizedUser) bool {
	if !access.CanManageDirectory(o.gate.Role()) {
		return false
	}
	o.store.AddUser(user)
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionAddUser, Payload: user, User: o.Actor()})
	return true
}

// EditUser changes the role of an authorized user. Admin only.
func (o *Orchestrator) EditUser(ctx context.Context, user domain.AuthorizedUser) bool {
	if !access.CanManageDirectory(o.gate.Role()) {
		return false
	}
	if !o.store.UpdateUser(user) {
		return false
	}
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionEditUser, Payload: user, User: o.Actor()})
	return true
}

// DeleteUser revokes an authorized user. Admin only.
func (o *Orchestrator) DeleteUser(ctx context.Context, email string) bool {
	if !access.CanManageDirectory(o.gate.Role()) {
		return false
	}
	if !o.store.DeleteUser(email) {
		return false
	}
	o.confirm(ctx, gateway.Mutation{
		Action:  gateway.ActionDeleteUser,
		Payload: map[string]string{"email": email},
		User:    o.Actor(),
	})
	return true
}

// UpdateNote writes the note text for a scope (last write wins).
func (o *Orchestrator) UpdateNote(ctx context.Context, scope, text string) bool {
	if !access.CanMutate(o.gate.Role()) {
		return false
	}
	o.store.SetNote(scope, text)
	o.confirm(ctx, gateway.Mutation{
		Action:  gateway.ActionUpdateNote,
		Payload: map[string]string{"scope": scope, "text": text},
		User:    o.Actor(),
	})
	return true
}

// UpdateSettings replaces the settings singleton. Admin only.
func (o *Orchestrator) UpdateSettings(ctx context.Context, settings domain.AppSettings) bool {
	if !access.CanManageDirectory(o.gate.Role()) {
		return false
	}
	o.store.SetSettings(settings)
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionUpdateSettings, Payload: settings, User: o.Actor()})
	return true
}

// UpdateQuickDescriptions replaces only the quick-description shortcuts,
// available to Admin and Financeiro.
func (o *Orchestrator) UpdateQuickDescriptions(ctx context.Context, descriptions []string) bool {
	if !access.CanManageShortcuts(o.gate.Role()) {
		return false
	}

	settings := o.store.Settings()
	settings.QuickDescriptions = descriptions
	o.store.SetSettings(settings)
	o.confirm(ctx, gateway.Mutation{Action: gateway.ActionUpdateSettings, Payload: settings, User: o.Actor()})
	return true
}

func (o *Orchestrator) establishmentName(id string) string {
	for _, est := range o.store.Establishments() {
		if est.ID == id {
			return est.Name
		}
	}
	return id
}
