package store

import (
	"time"

	"github.com/caixaflow/ledger/internal/domain"
	"github.com/caixaflow/ledger/internal/gateway"
)

// createdAtLayouts are the timestamp forms seen in snapshot payloads.
var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	domain.DateLayout,
}

// ApplySnapshot replaces the cache with a freshly fetched remote state.
// Establishments and authorized users are replaced outright; notes and
// settings only when the snapshot carries them. Every transaction is
// normalized (canonical date, coerced edited flag) and marked synced —
// the remote snapshot is authoritative, so any optimistic entry with the
// same id is superseded.
func (s *Store) ApplySnapshot(snap *gateway.Snapshot) {
	now := s.now()

	transactions := make([]domain.Transaction, 0, len(snap.Transactions))
	for _, raw := range snap.Transactions {
		transactions = append(transactions, normalizeTransaction(raw, now))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = transactions
	s.establishments = append([]domain.Establishment(nil), snap.Establishments...)
	s.users = append([]domain.AuthorizedUser(nil), snap.AuthorizedUsers...)

	if snap.Notes != nil {
		notes := make(map[string]string, len(snap.Notes))
		for k, v := range snap.Notes {
			notes[k] = v
		}
		s.notes = notes
	}
	if snap.Settings != nil {
		s.settings = *snap.Settings
	}

	s.lastSync = now
}

// normalizeTransaction folds one wire transaction into canonical form.
func normalizeTransaction(raw gateway.RawTransaction, now time.Time) domain.Transaction {
	return domain.Transaction{
		ID:              raw.ID,
		Date:            domain.CanonicalDate(raw.Date, now),
		CreatedAt:       parseCreatedAt(raw.CreatedAt),
		EstablishmentID: raw.EstablishmentID,
		Direction:       raw.Direction,
		Amount:          raw.Amount,
		Description:     raw.Description,
		Observation:     raw.Observation,
		Status:          raw.Status,
		Author:          raw.Author,
		Synced:          true,
		Edited:          domain.CoerceEdited(raw.IsEdited),
	}
}

func parseCreatedAt(raw string) time.Time {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
