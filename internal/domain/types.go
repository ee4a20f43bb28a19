package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether a transaction increases or decreases a balance.
// Wire values are kept in Portuguese to match the spreadsheet contract.
type Direction string

const (
	// DirectionIn is an incoming amount ("Entrada").
	DirectionIn Direction = "Entrada"
	// DirectionOut is an outgoing amount ("Saída").
	DirectionOut Direction = "Saída"
)

// Status is the review state of a transaction.
type Status string

const (
	StatusPending  Status = "Pendente"
	StatusApproved Status = "Aprovado"
	StatusRejected Status = "Rejeitado"
)

// Role is the permission level of an authorized user.
type Role string

const (
	RoleAdmin   Role = "Admin"
	RoleFinance Role = "Financeiro"
	RoleGuest   Role = "Convidado"
)

// Transaction is one cash movement recorded against an establishment.
// Amounts are non-negative; the direction carries the sign. Synced and
// Edited are local-only bookkeeping and never authoritative remotely.
type Transaction struct {
	ID              string          `json:"id"`
	Date            string          `json:"date"` // canonical YYYY-MM-DD after normalization
	CreatedAt       time.Time       `json:"createdAt"`
	EstablishmentID string          `json:"establishmentId"`
	Direction       Direction       `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	Observation     string          `json:"observation,omitempty"`
	Status          Status          `json:"status"`
	Author          string          `json:"author"` // email of the user who recorded it

	// Synced is true once the transaction was confirmed present in a
	// remote snapshot. Edited is true once it was modified locally after
	// its initial sync.
	Synced bool `json:"isSynced"`
	Edited bool `json:"isEdited"`
}

// Signed returns the transaction's contribution to a balance:
// +Amount for Entrada, -Amount for Saída.
func (t Transaction) Signed() decimal.Decimal {
	if t.Direction == DirectionIn {
		return t.Amount
	}
	return t.Amount.Neg()
}

// Establishment is one physical business location in the group.
type Establishment struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	ResponsibleEmail string `json:"responsibleEmail"`
}

// AuthorizedUser maps an email to the role it holds. Email is the unique
// key; matching against a signed-in identity is case-insensitive and
// whitespace-trimmed.
type AuthorizedUser struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// NormalizeEmail produces the comparison form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FeatureToggles switches optional surfaces on or off group-wide.
type FeatureToggles struct {
	NotesBoard    bool `json:"notesBoard"`
	Assistant     bool `json:"assistant"`
	TrendChart    bool `json:"trendChart"`
	Notifications bool `json:"notifications"`
}

// BalanceGroup is a named ad-hoc subset of establishments whose balances
// are summed together on the dashboard.
type BalanceGroup struct {
	Name             string   `json:"name"`
	EstablishmentIDs []string `json:"establishmentIds"`
}

// AppSettings is the process-wide configuration singleton, replaced
// wholesale on every sync.
type AppSettings struct {
	QuickDescriptions []string       `json:"quickDescriptions"`
	GroupA            BalanceGroup   `json:"groupA"`
	GroupB            BalanceGroup   `json:"groupB"`
	Features          FeatureToggles `json:"features"`
}

// NoteScopeGeneral is the scope key for the shared general notes board.
// Every other scope is an entity id.
const NoteScopeGeneral = "GENERAL"

// UserProfile is the signed-in session identity, persisted across
// restarts and cleared on logout.
type UserProfile struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Token     string `json:"token,omitempty"`
}
