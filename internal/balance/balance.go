// Package balance derives balances and time series from the transaction
// cache. Everything here is a pure function of its inputs; no running
// totals are stored anywhere.
package balance

import (
	"time"

	"github.com/caixaflow/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Sum returns the signed balance of every transaction whose
// establishment is in the given id set. An empty set yields zero.
func Sum(transactions []domain.Transaction, establishmentIDs map[string]bool) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if establishmentIDs[tx.EstablishmentID] {
			total = total.Add(tx.Signed())
		}
	}
	return total
}

// SumAll returns the signed balance over every transaction regardless of
// establishment.
func SumAll(transactions []domain.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		total = total.Add(tx.Signed())
	}
	return total
}

// IDSet builds a membership set from a list of establishment ids.
func IDSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// DayFlow is one day of the trailing series: total Entrada and total
// Saída for transactions dated exactly on Date.
type DayFlow struct {
	Date string          `json:"date"` // canonical YYYY-MM-DD
	In   decimal.Decimal `json:"in"`
	Out  decimal.Decimal `json:"out"`
}

// WeeklySeries returns the last 7 calendar days (inclusive of today,
// oldest first) with the Entrada and Saída totals per day. Days without
// transactions get zero for both, never a gap. Matching is string
// equality on the canonical date, so callers must feed normalized
// transactions.
func WeeklySeries(transactions []domain.Transaction, today time.Time) []DayFlow {
	series := make([]DayFlow, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i-6).Format(domain.DateLayout)
		series[i] = DayFlow{Date: day, In: decimal.Zero, Out: decimal.Zero}
		index[day] = i
	}

	for _, tx := range transactions {
		i, ok := index[tx.Date]
		if !ok {
			continue
		}
		if tx.Direction == domain.DirectionIn {
			series[i].In = series[i].In.Add(tx.Amount)
		} else {
			series[i].Out = series[i].Out.Add(tx.Amount)
		}
	}

	return series
}
