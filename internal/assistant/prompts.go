package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caixaflow/ledger/internal/domain"
)

// contextTransaction is the slim transaction shape sent to the model.
// Local-only flags and author emails stay out of the prompt.
type contextTransaction struct {
	Date            string `json:"date"`
	EstablishmentID string `json:"establishmentId"`
	Direction       string `json:"type"`
	Amount          string `json:"amount"`
	Description     string `json:"description"`
	Status          string `json:"status"`
}

// contextPayload serializes the most recent transactions, capped at
// MaxContextTransactions. Input is expected most-recent-first, as the
// cache returns it.
func contextPayload(recent []domain.Transaction) ([]byte, error) {
	if len(recent) > MaxContextTransactions {
		recent = recent[:MaxContextTransactions]
	}

	slim := make([]contextTransaction, 0, len(recent))
	for _, tx := range recent {
		slim = append(slim, contextTransaction{
			Date:            tx.Date,
			EstablishmentID: tx.EstablishmentID,
			Direction:       string(tx.Direction),
			Amount:          tx.Amount.String(),
			Description:     tx.Description,
			Status:          string(tx.Status),
		})
	}
	return json.Marshal(slim)
}

func buildAskPrompt(question string, recent []domain.Transaction, scopeLabel string) (string, error) {
	context, err := contextPayload(recent)
	if err != nil {
		return "", err
	}

	prompt :=
		"You are the finance assistant of a small hospitality group's cash-flow ledger.\n" +
			"Transactions use Portuguese labels: type is \"Entrada\" (money in) or \"Saída\" (money out);\n" +
			"status is \"Pendente\", \"Aprovado\" or \"Rejeitado\". Amounts are in BRL.\n\n" +
			fmt.Sprintf("Scope: %s\n", scopeLabel) +
			fmt.Sprintf("Recent transactions (most recent first):\n%s\n\n", context) +
			fmt.Sprintf("Question: %s\n\n", question) +
			"Reply with STRICT JSON only, no code fences, no extra text:\n" +
			"{\n" +
			"  \"answer\": string (answer in the user's language),\n" +
			"  \"suggestion\": null, or when the user is asking to record something:\n" +
			"  {\"establishmentId\": string, \"type\": \"Entrada\"|\"Saída\", \"amount\": number, \"description\": string}\n" +
			"}\n"

	return prompt, nil
}

func buildAnomalyPrompt(tx domain.Transaction, establishmentName string) string {
	return "You review cash-flow entries for a small hospitality group before they are saved.\n" +
		"Flag an entry only when something is clearly off: an amount wildly out of range for the\n" +
		"description, a direction that contradicts the description, or a nonsense description.\n\n" +
		fmt.Sprintf("Establishment: %s\n", establishmentName) +
		fmt.Sprintf("Type: %s\n", tx.Direction) +
		fmt.Sprintf("Amount: %s\n", tx.Amount.String()) +
		fmt.Sprintf("Description: %s\n\n", tx.Description) +
		"Reply with STRICT JSON only, no code fences:\n" +
		"{\"flagged\": boolean, \"reason\": string (short, in Portuguese, empty when not flagged)}\n"
}

// cleanModelJSON strips Markdown fences and surrounding chatter when the
// model ignores the strict-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		return strings.TrimSpace(s)
	}

	// Fall back to the outermost JSON object or array.
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return s
	}
	return s[start : end+1]
}
