package balance

import (
	"github.com/caixaflow/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Filter narrows a transaction set for reporting. Zero values mean "no
// constraint"; dates are canonical YYYY-MM-DD strings compared
// lexically, which is safe for that layout.
type Filter struct {
	EstablishmentIDs map[string]bool
	FromDate         string
	ToDate           string
	Direction        domain.Direction
	Status           domain.Status
}

// Report is a filtered slice of the cache plus its totals.
type Report struct {
	Transactions []domain.Transaction `json:"transactions"`
	TotalIn      decimal.Decimal      `json:"totalIn"`
	TotalOut     decimal.Decimal      `json:"totalOut"`
	Net          decimal.Decimal      `json:"net"`
}

// Matches reports whether a transaction passes the filter.
func (f Filter) Matches(tx domain.Transaction) bool {
	if len(f.EstablishmentIDs) > 0 && !f.EstablishmentIDs[tx.EstablishmentID] {
		return false
	}
	if f.FromDate != "" && tx.Date < f.FromDate {
		return false
	}
	if f.ToDate != "" && tx.Date > f.ToDate {
		return false
	}
	if f.Direction != "" && tx.Direction != f.Direction {
		return false
	}
	if f.Status != "" && tx.Status != f.Status {
		return false
	}
	return true
}

// BuildReport applies the filter and totals the result. Input ordering
// is preserved (most-recent-first when fed from the cache).
func BuildReport(transactions []domain.Transaction, f Filter) Report {
	report := Report{
		Transactions: []domain.Transaction{},
		TotalIn:      decimal.Zero,
		TotalOut:     decimal.Zero,
	}

	for _, tx := range transactions {
		if !f.Matches(tx) {
			continue
		}
		report.Transactions = append(report.Transactions, tx)
		if tx.Direction == domain.DirectionIn {
			report.TotalIn = report.TotalIn.Add(tx.Amount)
		} else {
			report.TotalOut = report.TotalOut.Add(tx.Amount)
		}
	}

	report.Net = report.TotalIn.Sub(report.TotalOut)
	return report
}
