package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/caixaflow/ledger/internal/domain"
	"github.com/rs/zerolog"
)

// WebAppClient talks to the spreadsheet's published web-app endpoint:
// GET returns the full snapshot as JSON, POST accepts mutation commands.
type WebAppClient struct {
	endpoint   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewWebAppClient creates a client for the given web-app endpoint URL.
func NewWebAppClient(endpoint string, log zerolog.Logger) *WebAppClient {
	return &WebAppClient{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		log:        log,
	}
}

// wireSnapshot mirrors the snapshot JSON body. Establishments and
// Transactions are pointers so a missing or non-array field is
// distinguishable from an empty one.
type wireSnapshot struct {
	Establishments  *[]domain.Establishment  `json:"establishments"`
	Transactions    *[]RawTransaction        `json:"transactions"`
	AuthorizedUsers []domain.AuthorizedUser  `json:"authorizedUsers"`
	Notes           map[string]string        `json:"notes"`
	Settings        *domain.AppSettings      `json:"settings"`
}

// FetchSnapshot implements Client.
func (c *WebAppClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("FetchSnapshot: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("FetchSnapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("FetchSnapshot: endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var wire wireSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("FetchSnapshot: decode body: %w", err)
	}

	if wire.Establishments == nil || wire.Transactions == nil {
		return nil, ErrMalformedSnapshot
	}

	snap := &Snapshot{
		Establishments:  *wire.Establishments,
		Transactions:    *wire.Transactions,
		AuthorizedUsers: wire.AuthorizedUsers,
		Notes:           wire.Notes,
		Settings:        wire.Settings,
	}
	if snap.AuthorizedUsers == nil {
		snap.AuthorizedUsers = []domain.AuthorizedUser{}
	}

	c.log.Debug().
		Int("establishments", len(snap.Establishments)).
		Int("transactions", len(snap.Transactions)).
		Int("authorized_users", len(snap.AuthorizedUsers)).
		Msg("Snapshot fetched")

	return snap, nil
}

// Dispatch implements Client. The web-app contract is fire-and-forget:
// the response body is not inspected and any completed request counts as
// delivered. Only a transport-level failure is reported.
func (c *WebAppClient) Dispatch(ctx context.Context, m Mutation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("Dispatch: marshal mutation: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Dispatch: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Dispatch: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.log.Debug().Str("action", string(m.Action)).Str("user", m.User).Msg("Mutation dispatched")
	return nil
}

var _ Client = (*WebAppClient)(nil)
