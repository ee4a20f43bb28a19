package syncer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caixaflow/ledger/internal/access"
	"github.com/caixaflow/ledger/internal/domain"
	"github.com/caixaflow/ledger/internal/gateway"
	"github.com/caixaflow/ledger/internal/logger"
	"github.com/caixaflow/ledger/internal/store"
	"github.com/shopspring/decimal"
)

// fakeGateway is a scripted gateway. When echo is set, FetchSnapshot
// reflects every dispatched ADD_TRANSACTION back as remote state, which
// is how the real backend behaves from the client's perspective.
type fakeGateway struct {
	snap        *gateway.Snapshot
	fetchErr    error
	dispatchErr error
	dispatches  []gateway.Mutation
	echo        bool
	fetches     int
}

func (f *fakeGateway) FetchSnapshot(ctx context.Context) (*gateway.Snapshot, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap := f.snap
	if snap == nil {
		snap = &gateway.Snapshot{AuthorizedUsers: []domain.AuthorizedUser{}}
	}
	if f.echo {
		echoed := *snap
		echoed.Transactions = append([]gateway.RawTransaction(nil), snap.Transactions...)
		for _, m := range f.dispatches {
			if m.Action != gateway.ActionAddTransaction && m.Action != gateway.ActionEditTransaction {
				continue
			}
			tx := m.Payload.(domain.Transaction)
			raw := gateway.RawTransaction{
				ID: tx.ID, Date: tx.Date, CreatedAt: tx.CreatedAt.Format(time.RFC3339),
				EstablishmentID: tx.EstablishmentID, Direction: tx.Direction, Amount: tx.Amount,
				Description: tx.Description, Observation: tx.Observation,
				Status: tx.Status, Author: tx.Author,
			}
			replaced := false
			for i := range echoed.Transactions {
				if echoed.Transactions[i].ID == raw.ID {
					echoed.Transactions[i] = raw
					replaced = true
					break
				}
			}
			if !replaced {
				echoed.Transactions = append(echoed.Transactions, raw)
			}
		}
		return &echoed, nil
	}
	return snap, nil
}

func (f *fakeGateway) Dispatch(ctx context.Context, m gateway.Mutation) error {
	if f.dispatchErr != nil {
		return f.dispatchErr
	}
	f.dispatches = append(f.dispatches, m)
	return nil
}

func newTestOrchestrator(gw gateway.Client) (*Orchestrator, *store.Store, *access.Gate) {
	clock := func() time.Time {
		return time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	}
	st := store.NewWithClock(clock)
	gate := access.NewGate()
	o := New(gw, st, gate, logger.NewWithWriter(&bytes.Buffer{}))
	o.now = clock
	return o, st, gate
}

func TestTriggerSync_Success(t *testing.T) {
	gw := &fakeGateway{snap: &gateway.Snapshot{
		Establishments: []domain.Establishment{{ID: "e1", Name: "Pousada Mar"}},
		Transactions: []gateway.RawTransaction{
			{ID: "t1", Date: "05/03/2024", Direction: domain.DirectionIn, Amount: decimal.NewFromInt(10)},
		},
		AuthorizedUsers: []domain.AuthorizedUser{{Email: "ana@x.com", Role: domain.RoleFinance}},
	}}
	o, st, gate := newTestOrchestrator(gw)
	o.SetActor("ANA@X.com ")

	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("TriggerSync failed: %v", err)
	}

	if o.Status() != StatusIdle || o.SyncFailed() {
		t.Errorf("status=%v failed=%v after success", o.Status(), o.SyncFailed())
	}
	if gate.State() != access.StateAuthorized || gate.Role() != domain.RoleFinance {
		t.Errorf("gate = %v/%q, want authorized/Financeiro", gate.State(), gate.Role())
	}
	txs := st.Transactions()
	if len(txs) != 1 || txs[0].Date != "2024-03-05" || !txs[0].Synced {
		t.Errorf("snapshot not normalized into cache: %+v", txs)
	}
}

func TestTriggerSync_FailureLeavesCacheAndGate(t *testing.T) {
	gw := &fakeGateway{snap: &gateway.Snapshot{
		AuthorizedUsers: []domain.AuthorizedUser{{Email: "ana@x.com", Role: domain.RoleAdmin}},
	}}
	o, st, gate := newTestOrchestrator(gw)
	o.SetActor("ana@x.com")

	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}
	st.AddTransaction(domain.Transaction{ID: "pending"})

	gw.fetchErr = errors.New("endpoint unreachable")
	if err := o.TriggerSync(context.Background()); err == nil {
		t.Fatal("expected sync error")
	}

	if o.Status() != StatusError || !o.SyncFailed() {
		t.Errorf("status=%v failed=%v, want error/true", o.Status(), o.SyncFailed())
	}
	if len(st.Transactions()) != 1 {
		t.Error("failed sync must leave the cache untouched")
	}
	if gate.State() != access.StateAuthorized {
		t.Errorf("failed sync must not transition the gate, got %v", gate.State())
	}

	// A later successful sync clears the sticky flag.
	gw.fetchErr = nil
	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("recovery sync failed: %v", err)
	}
	if o.SyncFailed() {
		t.Error("error flag should clear on successful sync")
	}
}

func TestTriggerSync_MalformedTreatedAsFailure(t *testing.T) {
	gw := &fakeGateway{fetchErr: gateway.ErrMalformedSnapshot}
	o, _, gate := newTestOrchestrator(gw)

	if err := o.TriggerSync(context.Background()); !errors.Is(err, gateway.ErrMalformedSnapshot) {
		t.Fatalf("expected ErrMalformedSnapshot, got %v", err)
	}
	if !o.SyncFailed() || gate.State() != access.StateUnknown {
		t.Errorf("malformed payload must behave like transport failure")
	}
}

func TestTriggerSync_LocalMode(t *testing.T) {
	o, _, gate := newTestOrchestrator(nil)

	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("local mode sync failed: %v", err)
	}
	if !gate.Authorized() || gate.Role() != domain.RoleAdmin {
		t.Errorf("local mode should grant Admin immediately, got %v/%q", gate.State(), gate.Role())
	}
	if !o.LocalMode() {
		t.Error("LocalMode should report true with nil gateway")
	}
}

func TestAddTransaction_OptimisticThenReconcile(t *testing.T) {
	gw := &fakeGateway{
		echo: true,
		snap: &gateway.Snapshot{
			AuthorizedUsers: []domain.AuthorizedUser{{Email: "ana@x.com", Role: domain.RoleAdmin}},
		},
	}
	o, st, _ := newTestOrchestrator(gw)
	o.SetActor("ana@x.com")
	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("login sync failed: %v", err)
	}

	// Stub the gateway's dispatch side so we can observe the optimistic
	// state before confirmation: force dispatch failure first.
	gw.dispatchErr = errors.New("offline")
	if ok := o.AddTransaction(context.Background(), domain.Transaction{
		EstablishmentID: "e1",
		Direction:       domain.DirectionIn,
		Amount:          decimal.NewFromInt(150),
		Description:     "Diária",
	}); !ok {
		t.Fatal("AddTransaction should apply optimistically")
	}

	txs := st.Transactions()
	if len(txs) != 1 || txs[0].Synced {
		t.Fatalf("optimistic transaction should be cached unsynced: %+v", txs)
	}
	id := txs[0].ID
	if id == "" {
		t.Fatal("client must generate the transaction id")
	}

	// Now let the confirmation and resync succeed via the edit path.
	gw.dispatchErr = nil
	if ok := o.EditTransaction(context.Background(), txs[0]); !ok {
		t.Fatal("EditTransaction should apply")
	}

	final := st.Transactions()
	if len(final) != 1 {
		t.Fatalf("expected 1 transaction after reconcile, got %d", len(final))
	}
	got := final[0]
	if got.ID != id {
		t.Errorf("id changed across reconcile: %s -> %s", id, got.ID)
	}
	if !got.Synced {
		t.Error("reconciled transaction should be synced")
	}
	if got.Description != "Diária" || !got.Amount.Equal(decimal.NewFromInt(150)) {
		t.Errorf("business fields changed across reconcile: %+v", got)
	}
}

func TestGuestGating_AllMutationsNoOp(t *testing.T) {
	gw := &fakeGateway{snap: &gateway.Snapshot{
		Establishments:  []domain.Establishment{{ID: "e1"}},
		Transactions:    []gateway.RawTransaction{{ID: "t1", Date: "2024-06-01", Amount: decimal.NewFromInt(5)}},
		AuthorizedUsers: []domain.AuthorizedUser{{Email: "guest@x.com", Role: domain.RoleGuest}},
		Notes:           map[string]string{domain.NoteScopeGeneral: "fixo"},
		Settings:        &domain.AppSettings{QuickDescriptions: []string{"Diária"}},
	}}
	o, st, _ := newTestOrchestrator(gw)
	o.SetActor("guest@x.com")
	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("login sync failed: %v", err)
	}

	before := struct {
		txs   []domain.Transaction
		ests  []domain.Establishment
		users []domain.AuthorizedUser
		notes map[string]string
		set   domain.AppSettings
	}{st.Transactions(), st.Establishments(), st.Users(), st.Notes(), st.Settings()}

	ctx := context.Background()
	if o.AddTransaction(ctx, domain.Transaction{Description: "x"}) {
		t.Error("guest AddTransaction should be a no-op")
	}
	if o.EditTransaction(ctx, domain.Transaction{ID: "t1"}) {
		t.Error("guest EditTransaction should be a no-op")
	}
	if o.AddEstablishment(ctx, domain.Establishment{Name: "Nova"}) {
		t.Error("guest AddEstablishment should be a no-op")
	}
	if o.AddUser(ctx, domain.AuthorizedUser{Email: "x@x.com"}) {
		t.Error("guest AddUser should be a no-op")
	}
	if o.DeleteUser(ctx, "guest@x.com") {
		t.Error("guest DeleteUser should be a no-op")
	}
	if o.UpdateNote(ctx, domain.NoteScopeGeneral, "hacked") {
		t.Error("guest UpdateNote should be a no-op")
	}
	if o.UpdateSettings(ctx, domain.AppSettings{}) {
		t.Error("guest UpdateSettings should be a no-op")
	}
	if o.UpdateQuickDescriptions(ctx, nil) {
		t.Error("guest UpdateQuickDescriptions should be a no-op")
	}
	if o.Transfer(ctx, "e1", "e2", decimal.NewFromInt(1), "x") {
		t.Error("guest Transfer should be a no-op")
	}

	if len(st.Transactions()) != len(before.txs) ||
		len(st.Establishments()) != len(before.ests) ||
		len(st.Users()) != len(before.users) {
		t.Error("guest mutations must leave collections unchanged")
	}
	if st.Notes()[domain.NoteScopeGeneral] != before.notes[domain.NoteScopeGeneral] {
		t.Error("guest mutations must leave notes unchanged")
	}
	if len(st.Settings().QuickDescriptions) != len(before.set.QuickDescriptions) {
		t.Error("guest mutations must leave settings unchanged")
	}
	if len(gw.dispatches) != 0 {
		t.Errorf("no mutation should reach the gateway, got %d", len(gw.dispatches))
	}
}

func TestFinanceRole_CannotManageDirectory(t *testing.T) {
	gw := &fakeGateway{snap: &gateway.Snapshot{
		AuthorizedUsers: []domain.AuthorizedUser{{Email: "fin@x.com", Role: domain.RoleFinance}},
	}}
	o, _, _ := newTestOrchestrator(gw)
	o.SetActor("fin@x.com")
	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("login sync failed: %v", err)
	}

	ctx := context.Background()
	if o.AddEstablishment(ctx, domain.Establishment{Name: "Nova"}) {
		t.Error("Financeiro must not manage establishments")
	}
	if o.AddUser(ctx, domain.AuthorizedUser{Email: "x@x.com"}) {
		t.Error("Financeiro must not manage users")
	}
	if !o.UpdateQuickDescriptions(ctx, []string{"Almoço"}) {
		t.Error("Financeiro should manage quick descriptions")
	}
	if !o.AddTransaction(ctx, domain.Transaction{Description: "ok"}) {
		t.Error("Financeiro should add transactions")
	}
}

type fakeChecker struct {
	flagged bool
	reason  string
	err     error
}

func (f fakeChecker) CheckAnomaly(ctx context.Context, tx domain.Transaction, name string) (bool, string, error) {
	return f.flagged, f.reason, f.err
}

func TestAddTransactionChecked(t *testing.T) {
	o, st, gate := newTestOrchestrator(nil)
	gate.GrantLocal()
	st.SetSettings(domain.AppSettings{Features: domain.FeatureToggles{Assistant: true}})

	applied, reason := o.AddTransactionChecked(context.Background(), domain.Transaction{
		Description: "valor suspeito",
	}, fakeChecker{flagged: true, reason: "amount far above this establishment's usual range"})

	if applied {
		t.Error("flagged transaction must not be applied")
	}
	if reason == "" {
		t.Error("caller should receive the flag reason")
	}
	if len(st.Transactions()) != 0 {
		t.Error("flagged transaction must not reach the cache")
	}

	// Checker errors never block submission.
	applied, _ = o.AddTransactionChecked(context.Background(), domain.Transaction{
		Description: "ok",
	}, fakeChecker{err: errors.New("model unavailable")})
	if !applied || len(st.Transactions()) != 1 {
		t.Error("checker failure should not block submission")
	}
}

func TestTransfer_PairedLegs(t *testing.T) {
	gw := &fakeGateway{
		echo: true,
		snap: &gateway.Snapshot{
			AuthorizedUsers: []domain.AuthorizedUser{{Email: "ana@x.com", Role: domain.RoleAdmin}},
		},
	}
	o, st, _ := newTestOrchestrator(gw)
	o.SetActor("ana@x.com")
	if err := o.TriggerSync(context.Background()); err != nil {
		t.Fatalf("login sync failed: %v", err)
	}

	if !o.Transfer(context.Background(), "e1", "e2", decimal.NewFromInt(200), "Caixa da semana") {
		t.Fatal("Transfer should apply")
	}

	txs := st.Transactions()
	if len(txs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(txs))
	}

	var in, out *domain.Transaction
	for i := range txs {
		switch txs[i].Direction {
		case domain.DirectionIn:
			in = &txs[i]
		case domain.DirectionOut:
			out = &txs[i]
		}
	}
	if in == nil || out == nil {
		t.Fatalf("expected one Entrada and one Saída leg: %+v", txs)
	}
	if in.EstablishmentID != "e2" || out.EstablishmentID != "e1" {
		t.Errorf("legs attached to wrong establishments: in=%s out=%s", in.EstablishmentID, out.EstablishmentID)
	}
	if in.Observation != out.Observation {
		t.Error("legs must share the transfer id observation")
	}
	if !in.Signed().Add(out.Signed()).IsZero() {
		t.Error("transfer must net to zero across the group")
	}

	if o.Transfer(context.Background(), "e1", "e1", decimal.NewFromInt(5), "self") {
		t.Error("self transfer should be rejected")
	}
	if o.Transfer(context.Background(), "e1", "e2", decimal.Zero, "zero") {
		t.Error("non-positive transfer should be rejected")
	}
}
