// Package store is the local mutation cache: an optimistic in-memory
// copy of the remote state. Mutations apply here first with zero
// latency; a later full snapshot from the remote source of truth
// replaces whatever it covers (last write on the server wins).
package store

import (
	"sync"
	"time"

	"github.com/caixaflow/ledger/internal/domain"
)

// Store holds the four mutable collections plus settings. It is safe for
// concurrent use; all reads return copies so callers never alias the
// cache.
type Store struct {
	mu             sync.RWMutex
	transactions   []domain.Transaction // most-recent-first
	establishments []domain.Establishment
	users          []domain.AuthorizedUser
	notes          map[string]string
	settings       domain.AppSettings
	lastSync       time.Time

	now func() time.Time
}

// New creates an empty cache.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates an empty cache with an injectable clock, used by
// tests to pin date normalization.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		notes: make(map[string]string),
		now:   now,
	}
}

// AddTransaction prepends a locally-created transaction, keeping the
// most-recent-first ordering. It enters the cache unsynced.
func (s *Store) AddTransaction(tx domain.Transaction) {
	tx.Synced = false
	tx.Edited = false

	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append([]domain.Transaction{tx}, s.transactions...)
}

// UpdateTransaction replaces the cached transaction with the same id.
// The replacement is marked unsynced and edited. Returns false when no
// transaction with that id exists.
func (s *Store) UpdateTransaction(tx domain.Transaction) bool {
	tx.Synced = false
	tx.Edited = true

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == tx.ID {
			s.transactions[i] = tx
			return true
		}
	}
	return false
}

// AddEstablishment appends a new establishment.
func (s *Store) AddEstablishment(est domain.Establishment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.establishments = append(s.establishments, est)
}

// UpdateEstablishment replaces the establishment with the same id.
func (s *Store) UpdateEstablishment(est domain.Establishment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.establishments {
		if s.establishments[i].ID == est.ID {
			s.establishments[i] = est
			return true
		}
	}
	return false
}

// AddUser appends an authorized user.
func (s *Store) AddUser(user domain.AuthorizedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, user)
}

// UpdateUser replaces the authorized user with the same email
// (case-insensitive).
func (s *Store) UpdateUser(user domain.AuthorizedUser) bool {
	key := domain.NormalizeEmail(user.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if domain.NormalizeEmail(s.users[i].Email) == key {
			s.users[i] = user
			return true
		}
	}
	return false
}

// DeleteUser removes the authorized user with the given email.
func (s *Store) DeleteUser(email string) bool {
	key := domain.NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if domain.NormalizeEmail(s.users[i].Email) == key {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return true
		}
	}
	return false
}

// SetNote writes the note text for a scope (last write wins).
func (s *Store) SetNote(scope, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[scope] = text
}

// Note returns the note text for a scope.
func (s *Store) Note(scope string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.notes[scope]
	return text, ok
}

// SetSettings replaces the settings singleton.
func (s *Store) SetSettings(settings domain.AppSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

// Settings returns the current settings.
func (s *Store) Settings() domain.AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Transactions returns a copy of the cached transactions,
// most-recent-first.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

// Establishments returns a copy of the cached establishments.
func (s *Store) Establishments() []domain.Establishment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Establishment, len(s.establishments))
	copy(out, s.establishments)
	return out
}

// Users returns a copy of the cached authorized users.
func (s *Store) Users() []domain.AuthorizedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuthorizedUser, len(s.users))
	copy(out, s.users)
	return out
}

// Notes returns a copy of the notes map.
func (s *Store) Notes() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.notes))
	for k, v := range s.notes {
		out[k] = v
	}
	return out
}

// LastSync returns when the cache last accepted a full snapshot, or the
// zero time if it never has.
func (s *Store) LastSync() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}
