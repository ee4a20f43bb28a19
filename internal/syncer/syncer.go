// Package syncer coordinates the optimistic cache against the remote
// source of truth: fetch-on-login, fetch-after-mutation and manual
// refresh all funnel through TriggerSync, and every mutation follows the
// same apply-then-confirm-then-resync protocol.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/caixaflow/ledger/internal/access"
	"github.com/caixaflow/ledger/internal/gateway"
	"github.com/caixaflow/ledger/internal/store"
	"github.com/rs/zerolog"
)

// Status is the orchestrator's sync state as shown to the user.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// Orchestrator owns sync status and drives the two-phase mutation
// protocol. A nil gateway puts it in fully local mode: no remote calls,
// the session is granted Admin immediately and nothing is ever marked
// synced by a refetch.
type Orchestrator struct {
	gw    gateway.Client
	store *store.Store
	gate  *access.Gate
	log   zerolog.Logger

	mu      sync.Mutex
	status  Status
	syncErr bool
	actor   string

	now func() time.Time
}

// New creates an orchestrator. gw may be nil for local mode.
func New(gw gateway.Client, st *store.Store, gate *access.Gate, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		gw:     gw,
		store:  st,
		gate:   gate,
		log:    log,
		status: StatusIdle,
		now:    time.Now,
	}
}

// SetActor records the signed-in email used for role resolution and as
// the acting user on dispatched mutations.
func (o *Orchestrator) SetActor(email string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.actor = email
}

// Actor returns the signed-in email.
func (o *Orchestrator) Actor() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.actor
}

// Status returns the current sync status. Callers are expected to gate
// manual refresh on it; overlapping syncs are not deduplicated here and
// the last one to finish wins.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// SyncFailed reports the sticky error flag from the last attempted sync.
func (o *Orchestrator) SyncFailed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.syncErr
}

// Gate exposes the access gate for read-side permission checks.
func (o *Orchestrator) Gate() *access.Gate {
	return o.gate
}

// Store exposes the local cache for read access.
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// LocalMode reports whether no remote endpoint is configured.
func (o *Orchestrator) LocalMode() bool {
	return o.gw == nil
}

// TriggerSync fetches a full snapshot and reconciles the cache with it.
// On success the snapshot wholly replaces the covered collections, the
// caller's role is re-resolved from the fresh authorized-user list and
// the error flag clears. On failure the prior cache is left untouched,
// the sticky error flag is set and the gate does not transition.
func (o *Orchestrator) TriggerSync(ctx context.Context) error {
	if o.gw == nil {
		o.gate.GrantLocal()
		o.mu.Lock()
		o.status = StatusIdle
		o.syncErr = false
		o.mu.Unlock()
		o.log.Debug().Msg("No endpoint configured, running in local mode")
		return nil
	}

	o.mu.Lock()
	o.status = StatusSyncing
	actor := o.actor
	o.mu.Unlock()

	snap, err := o.gw.FetchSnapshot(ctx)
	if err != nil {
		o.mu.Lock()
		o.status = StatusError
		o.syncErr = true
		o.mu.Unlock()
		o.log.Error().Err(err).Msg("Sync failed, cache left untouched")
		return err
	}

	o.store.ApplySnapshot(snap)
	o.gate.Resolve(snap.AuthorizedUsers, actor)

	o.mu.Lock()
	o.status = StatusIdle
	o.syncErr = false
	o.mu.Unlock()

	o.log.Info().
		Int("transactions", len(snap.Transactions)).
		Int("establishments", len(snap.Establishments)).
		Str("auth_state", o.gate.State().String()).
		Msg("Sync completed")

	return nil
}

// confirm dispatches a mutation and, on success, reconciles via a full
// resync. A failed dispatch is swallowed: the optimistic local state is
// kept as-is and the divergence surfaces through the error flag on the
// next sync attempt.
func (o *Orchestrator) confirm(ctx context.Context, m gateway.Mutation) {
	if o.gw == nil {
		return
	}

	if err := o.gw.Dispatch(ctx, m); err != nil {
		o.log.Warn().Err(err).Str("action", string(m.Action)).Msg("Mutation dispatch failed, keeping optimistic state")
		return
	}

	if err := o.TriggerSync(ctx); err != nil {
		o.log.Warn().Err(err).Str("action", string(m.Action)).Msg("Post-mutation resync failed")
	}
}
