package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/caixaflow/ledger/internal/api/middleware"
	"github.com/caixaflow/ledger/internal/assistant"
	"github.com/caixaflow/ledger/internal/syncer"
	"github.com/rs/zerolog"
)

// AssistantHandler serves the AI question endpoint. It is registered
// only when an assistant client is configured.
type AssistantHandler struct {
	orch   *syncer.Orchestrator
	client *assistant.Client
	log    zerolog.Logger
}

// NewAssistantHandler creates the assistant handler.
func NewAssistantHandler(orch *syncer.Orchestrator, client *assistant.Client, log zerolog.Logger) *AssistantHandler {
	return &AssistantHandler{orch: orch, client: client, log: log}
}

// Register wires the assistant route onto the mux.
func (h *AssistantHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/assistant/ask", h.Ask)
}

// Ask forwards a question to the model with the most recent cached
// transactions as context.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
		Scope    string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if !h.orch.Store().Settings().Features.Assistant {
		middleware.WriteError(w, http.StatusForbidden, "Assistant is disabled in settings")
		return
	}

	scope := req.Scope
	if scope == "" {
		scope = "Todos"
	}

	answer, err := h.client.Ask(r.Context(), req.Question, h.orch.Store().Transactions(), scope)
	if err != nil {
		h.log.Error().Err(err).Msg("Assistant question failed")
		middleware.WriteError(w, http.StatusBadGateway, "Assistant unavailable")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, answer)
}
