// Package handlers exposes the reconciliation core over a small JSON
// API. Handlers stay thin: permission decisions, optimistic applies and
// reconciliation all live in the syncer.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/caixaflow/ledger/internal/api/middleware"
	"github.com/caixaflow/ledger/internal/balance"
	"github.com/caixaflow/ledger/internal/domain"
	"github.com/caixaflow/ledger/internal/session"
	"github.com/caixaflow/ledger/internal/syncer"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerHandler serves the ledger API backed by one orchestrator (one
// active session per client instance).
type LedgerHandler struct {
	orch     *syncer.Orchestrator
	sessions *session.Manager
	checker  syncer.AnomalyChecker
	log      zerolog.Logger
}

// NewLedgerHandler creates the handler set. checker may be nil when the
// assistant is not configured.
func NewLedgerHandler(orch *syncer.Orchestrator, sessions *session.Manager, checker syncer.AnomalyChecker, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{orch: orch, sessions: sessions, checker: checker, log: log}
}

// Register wires every route onto the mux.
func (h *LedgerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", h.State)
	mux.HandleFunc("POST /api/sync", h.Sync)
	mux.HandleFunc("POST /api/login", h.Login)
	mux.HandleFunc("POST /api/logout", h.Logout)

	mux.HandleFunc("GET /api/balance", h.Balance)
	mux.HandleFunc("GET /api/series", h.Series)
	mux.HandleFunc("GET /api/report", h.Report)

	mux.HandleFunc("POST /api/transactions", h.AddTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", h.EditTransaction)
	mux.HandleFunc("POST /api/transfers", h.Transfer)

	mux.HandleFunc("POST /api/establishments", h.AddEstablishment)
	mux.HandleFunc("PUT /api/establishments/{id}", h.EditEstablishment)

	mux.HandleFunc("POST /api/users", h.AddUser)
	mux.HandleFunc("PUT /api/users", h.EditUser)
	mux.HandleFunc("DELETE /api/users", h.DeleteUser)

	mux.HandleFunc("PUT /api/notes/{scope}", h.UpdateNote)
	mux.HandleFunc("PUT /api/settings", h.UpdateSettings)
	mux.HandleFunc("PUT /api/settings/quick-descriptions", h.UpdateQuickDescriptions)

	mux.HandleFunc("GET /api/prefs", h.Prefs)
	mux.HandleFunc("PUT /api/prefs", h.UpdatePrefs)
}

// State returns the whole cached state plus sync and auth status.
func (h *LedgerHandler) State(w http.ResponseWriter, r *http.Request) {
	st := h.orch.Store()
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"establishments": st.Establishments(),
		"transactions":   st.Transactions(),
		"notes":          st.Notes(),
		"settings":       st.Settings(),
		"authorizedUsers": st.Users(),
		"authState":      h.orch.Gate().State().String(),
		"role":           h.orch.Gate().Role(),
		"syncStatus":     h.orch.Status(),
		"syncFailed":     h.orch.SyncFailed(),
		"lastSync":       st.LastSync(),
		"localMode":      h.orch.LocalMode(),
	})
}

// Sync is the manual refresh trigger, also used by a denied identity to
// re-check after an admin adds it.
func (h *LedgerHandler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.TriggerSync(r.Context()); err != nil {
		middleware.WriteJSON(w, http.StatusBadGateway, map[string]any{
			"syncStatus": h.orch.Status(),
			"syncFailed": true,
		})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"syncStatus": h.orch.Status(),
		"syncFailed": false,
		"authState":  h.orch.Gate().State().String(),
		"role":       h.orch.Gate().Role(),
	})
}

// Login stores the signed-in profile and runs the fetch-on-login sync.
func (h *LedgerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var profile domain.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil || profile.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Profile with email is required")
		return
	}

	if err := h.sessions.SaveProfile(profile); err != nil {
		h.log.Warn().Err(err).Msg("Failed to persist session")
	}
	h.orch.SetActor(profile.Email)

	if err := h.orch.TriggerSync(r.Context()); err != nil {
		// Login still succeeds: the cache is just stale/empty and the
		// sticky error flag tells the UI.
		h.log.Warn().Err(err).Msg("Login sync failed")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"authState":  h.orch.Gate().State().String(),
		"role":       h.orch.Gate().Role(),
		"syncFailed": h.orch.SyncFailed(),
	})
}

// Logout clears the stored session. Preferences stay.
func (h *LedgerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.ClearProfile(); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to clear session")
		return
	}
	h.orch.SetActor("")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Balance sums the signed contributions for ?ids=e1,e2 (empty ids means
// zero, per the aggregator contract).
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		ids = strings.Split(raw, ",")
	}
	total := balance.Sum(h.orch.Store().Transactions(), balance.IDSet(ids))
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"balance": total})
}

// Series returns the 7-trailing-day Entrada/Saída series.
func (h *LedgerHandler) Series(w http.ResponseWriter, r *http.Request) {
	series := balance.WeeklySeries(h.orch.Store().Transactions(), time.Now())
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"series": series})
}

// Report filters the cache by establishment set, date range, direction
// and status.
func (h *LedgerHandler) Report(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := balance.Filter{
		FromDate:  q.Get("from"),
		ToDate:    q.Get("to"),
		Direction: domain.Direction(q.Get("direction")),
		Status:    domain.Status(q.Get("status")),
	}
	if raw := q.Get("ids"); raw != "" {
		filter.EstablishmentIDs = balance.IDSet(strings.Split(raw, ","))
	}
	report := balance.BuildReport(h.orch.Store().Transactions(), filter)
	middleware.WriteJSON(w, http.StatusOK, report)
}

// AddTransaction records a transaction, running the assistant anomaly
// check first when it is enabled. A flagged candidate returns 409 with
// the reason so the user can confirm or fix it; ?force=true skips the
// check.
func (h *LedgerHandler) AddTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction body")
		return
	}
	if tx.Amount.Sign() < 0 {
		middleware.WriteError(w, http.StatusBadRequest, "Amount must be non-negative")
		return
	}

	checker := h.checker
	if r.URL.Query().Get("force") == "true" {
		checker = nil
	}

	applied, reason := h.orch.AddTransactionChecked(r.Context(), tx, checker)
	if !applied && reason != "" {
		middleware.WriteJSON(w, http.StatusConflict, map[string]string{"flagged": "true", "reason": reason})
		return
	}
	if !applied {
		middleware.WriteError(w, http.StatusForbidden, "Role does not permit this mutation")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"status": "applied"})
}

// EditTransaction replaces a transaction by id.
func (h *LedgerHandler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	var tx domain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction body")
		return
	}
	tx.ID = r.PathValue("id")

	if !h.orch.EditTransaction(r.Context(), tx) {
		middleware.WriteError(w, http.StatusForbidden, "Edit not applied")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

// Transfer records the paired Saída/Entrada legs between two
// establishments.
func (h *LedgerHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromID      string          `json:"fromId"`
		ToID        string          `json:"toId"`
		Amount      json.Number     `json:"amount"`
		Description string          `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid transfer body")
		return
	}

	amount, err := decimalFromNumber(req.Amount)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	if !h.orch.Transfer(r.Context(), req.FromID, req.ToID, amount, req.Description) {
		middleware.WriteError(w, http.StatusForbidden, "Transfer not applied")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]string{"status": "applied"})
}

// AddEstablishment registers a location (Admin only).
func (h *LedgerHandler) AddEstablishment(w http.ResponseWriter, r *http.Request) {
	var est domain.Establishment
	if err := json.NewDecoder(r.Body).Decode(&est); err != nil || est.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Establishment with name is required")
		return
	}
	h.writeApplied(w, h.orch.AddEstablishment(r.Context(), est))
}

// EditEstablishment updates a location by id (Admin only).
func (h *LedgerHandler) EditEstablishment(w http.ResponseWriter, r *http.Request) {
	var est domain.Establishment
	if err := json.NewDecoder(r.Body).Decode(&est); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid establishment body")
		return
	}
	est.ID = r.PathValue("id")
	h.writeApplied(w, h.orch.EditEstablishment(r.Context(), est))
}

// AddUser grants a role to an email (Admin only).
func (h *LedgerHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var user domain.AuthorizedUser
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil || user.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "User with email is required")
		return
	}
	h.writeApplied(w, h.orch.AddUser(r.Context(), user))
}

// EditUser changes a user's role (Admin only).
func (h *LedgerHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	var user domain.AuthorizedUser
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil || user.Email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "User with email is required")
		return
	}
	h.writeApplied(w, h.orch.EditUser(r.Context(), user))
}

// DeleteUser revokes access (Admin only).
func (h *LedgerHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		middleware.WriteError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}
	h.writeApplied(w, h.orch.DeleteUser(r.Context(), email))
}

// UpdateNote writes a note scope (last write wins).
func (h *LedgerHandler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid note body")
		return
	}
	h.writeApplied(w, h.orch.UpdateNote(r.Context(), r.PathValue("scope"), req.Text))
}

// UpdateSettings replaces the settings singleton (Admin only).
func (h *LedgerHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.AppSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid settings body")
		return
	}
	h.writeApplied(w, h.orch.UpdateSettings(r.Context(), settings))
}

// UpdateQuickDescriptions replaces the shortcuts (Admin and Financeiro).
func (h *LedgerHandler) UpdateQuickDescriptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		QuickDescriptions []string `json:"quickDescriptions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	h.writeApplied(w, h.orch.UpdateQuickDescriptions(r.Context(), req.QuickDescriptions))
}

// Prefs returns the persisted display preferences.
func (h *LedgerHandler) Prefs(w http.ResponseWriter, r *http.Request) {
	dark, err := h.sessions.LoadDarkMode()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load preferences")
		return
	}
	groupA, groupB, err := h.sessions.LoadGroupSelections()
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load preferences")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"darkMode": dark,
		"groupA":   groupA,
		"groupB":   groupB,
	})
}

// UpdatePrefs persists the display preferences.
func (h *LedgerHandler) UpdatePrefs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DarkMode bool     `json:"darkMode"`
		GroupA   []string `json:"groupA"`
		GroupB   []string `json:"groupB"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid preferences body")
		return
	}
	if err := h.sessions.SaveDarkMode(req.DarkMode); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}
	if err := h.sessions.SaveGroupSelections(req.GroupA, req.GroupB); err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to save preferences")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *LedgerHandler) writeApplied(w http.ResponseWriter, applied bool) {
	if !applied {
		middleware.WriteError(w, http.StatusForbidden, "Role does not permit this mutation")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "applied"})
}

func decimalFromNumber(n json.Number) (decimal.Decimal, error) {
	return decimal.NewFromString(n.String())
}
