// Package assistant is the language-model collaborator: free-form
// questions over recent activity and a pre-submission anomaly check.
// Both are best-effort; callers must treat failures as "no opinion".
package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caixaflow/ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for both operations.
const DefaultModelName = "gemini-2.0-flash-001"

// MaxContextTransactions bounds how much recent activity is sent with a
// question.
const MaxContextTransactions = 100

// Suggestion is a structured transaction proposal extracted from the
// model's answer, ready to prefill the entry form.
type Suggestion struct {
	EstablishmentID string           `json:"establishmentId"`
	Direction       domain.Direction `json:"type"`
	Amount          decimal.Decimal  `json:"amount"`
	Description     string           `json:"description"`
}

// Answer is the assistant's reply to a question.
type Answer struct {
	Text       string      `json:"answer"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

// Client calls the Gemini API. The zero value is not usable; create it
// with NewClient.
type Client struct {
	model string
	log   zerolog.Logger
}

// NewClient creates an assistant client using the default model.
// Credentials come from the environment (GEMINI_API_KEY or application
// default credentials).
func NewClient(log zerolog.Logger) *Client {
	return &Client{model: DefaultModelName, log: log}
}

// Ask answers a natural-language question about the ledger, scoped to a
// label ("Todos" or an establishment name) and grounded on at most the
// 100 most recent transactions.
func (c *Client) Ask(ctx context.Context, question string, recent []domain.Transaction, scopeLabel string) (*Answer, error) {
	prompt, err := buildAskPrompt(question, recent, scopeLabel)
	if err != nil {
		return nil, fmt.Errorf("Ask: build prompt: %w", err)
	}

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("Ask: %w", err)
	}

	answer, err := decodeAnswer(raw)
	if err != nil {
		return nil, fmt.Errorf("Ask: %w", err)
	}

	c.log.Debug().Bool("has_suggestion", answer.Suggestion != nil).Msg("Assistant answered")
	return answer, nil
}

// CheckAnomaly asks the model whether a candidate transaction looks
// wrong for its establishment. The flag plus reason interrupt submission
// upstream; an error means "no opinion", never a block.
func (c *Client) CheckAnomaly(ctx context.Context, tx domain.Transaction, establishmentName string) (bool, string, error) {
	raw, err := c.generate(ctx, buildAnomalyPrompt(tx, establishmentName))
	if err != nil {
		return false, "", fmt.Errorf("CheckAnomaly: %w", err)
	}

	var verdict struct {
		Flagged bool   `json:"flagged"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &verdict); err != nil {
		return false, "", fmt.Errorf("CheckAnomaly: unmarshal verdict: %w\nraw response: %s", err, raw)
	}

	return verdict.Flagged, verdict.Reason, nil
}

// generate sends one prompt and returns the raw text reply.
func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return rawText, nil
}

// decodeAnswer parses the model's JSON reply, tolerating Markdown
// fences.
func decodeAnswer(raw string) (*Answer, error) {
	var answer Answer
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &answer); err != nil {
		return nil, fmt.Errorf("unmarshal answer: %w\nraw response: %s", err, raw)
	}
	if answer.Text == "" {
		return nil, fmt.Errorf("model reply missing answer text")
	}
	return &answer, nil
}
