// Package gateway talks to the remote spreadsheet-backed data store. It
// holds no local logic: it fetches full-state snapshots and posts
// mutation commands, leaving reconciliation to the syncer.
package gateway

import (
	"context"
	"errors"

	"github.com/caixaflow/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrMalformedSnapshot marks a snapshot response that lacks the required
// array-typed establishments or transactions fields. Callers treat it
// exactly like a transport failure.
var ErrMalformedSnapshot = errors.New("gateway: snapshot missing required arrays")

// Action identifies a mutation command understood by the remote store.
type Action string

const (
	ActionAddTransaction    Action = "ADD_TRANSACTION"
	ActionEditTransaction   Action = "EDIT_TRANSACTION"
	ActionAddEstablishment  Action = "ADD_ESTABLISHMENT"
	ActionEditEstablishment Action = "EDIT_ESTABLISHMENT"
	ActionAddUser           Action = "ADD_USER"
	ActionEditUser          Action = "EDIT_USER"
	ActionDeleteUser        Action = "DELETE_USER"
	ActionUpdateNote        Action = "UPDATE_NOTE"
	ActionUpdateSettings    Action = "UPDATE_SETTINGS"
)

// Mutation is one command posted to the remote store. Payload is the
// entity being written; User is the acting email, recorded remotely for
// audit.
type Mutation struct {
	Action  Action `json:"action"`
	Payload any    `json:"payload"`
	User    string `json:"user"`
}

// RawTransaction is a transaction as it arrives off the wire, before
// normalization. Dates come in several formats and the edited flag may
// be a boolean or a string, so both are kept loose here; the store owns
// folding them into canonical form.
type RawTransaction struct {
	ID              string           `json:"id"`
	Date            string           `json:"date"`
	CreatedAt       string           `json:"createdAt"`
	EstablishmentID string           `json:"establishmentId"`
	Direction       domain.Direction `json:"type"`
	Amount          decimal.Decimal  `json:"amount"`
	Description     string           `json:"description"`
	Observation     string           `json:"observation"`
	Status          domain.Status    `json:"status"`
	Author          string           `json:"author"`
	IsEdited        any              `json:"isEdited"`
}

// Snapshot is one full remote state fetch. AuthorizedUsers defaults to
// an empty list when the remote omits it; Notes and Settings stay nil
// when absent, which tells the store to keep its prior cache for them.
type Snapshot struct {
	Establishments  []domain.Establishment
	Transactions    []RawTransaction
	AuthorizedUsers []domain.AuthorizedUser
	Notes           map[string]string
	Settings        *domain.AppSettings
}

// Client is the remote data gateway contract. Both the Apps-Script web
// app client and the direct Sheets client implement it.
type Client interface {
	// FetchSnapshot retrieves the complete remote state.
	FetchSnapshot(ctx context.Context) (*Snapshot, error)

	// Dispatch posts one mutation command. The remote contract is
	// fire-and-forget: a completed request counts as delivered.
	Dispatch(ctx context.Context, m Mutation) error
}
