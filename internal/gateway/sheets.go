package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/caixaflow/ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"google.golang.org/api/sheets/v4"
)

// Tab names inside the backing spreadsheet. Header row is row 1; data
// starts at row 2.
const (
	tabEstablishments = "Establishments"
	tabTransactions   = "Transactions"
	tabUsers          = "Users"
	tabNotes          = "Notes"
	tabSettings       = "Settings"
	tabCommands       = "Commands"
)

// SheetsClient reads and writes the backing spreadsheet directly through
// the Sheets API instead of the published web app. Adds append rows to
// the entity tabs; edits and deletes are appended to a command tab that
// the spreadsheet's own script applies, preserving the fire-and-forget
// mutation contract.
type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewSheetsClient creates a client using application default credentials.
func NewSheetsClient(ctx context.Context, spreadsheetID string, log zerolog.Logger) (*SheetsClient, error) {
	svc, err := sheets.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewSheetsClient: create sheets service: %w", err)
	}
	return &SheetsClient{svc: svc, spreadsheetID: spreadsheetID, log: log}, nil
}

// FetchSnapshot implements Client by batch-reading every tab.
func (c *SheetsClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	resp, err := c.svc.Spreadsheets.Values.BatchGet(c.spreadsheetID).
		Ranges(
			tabEstablishments+"!A2:C",
			tabTransactions+"!A2:K",
			tabUsers+"!A2:B",
			tabNotes+"!A2:B",
			tabSettings+"!A2",
		).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("FetchSnapshot: batch get: %w", err)
	}

	if len(resp.ValueRanges) < 5 {
		return nil, ErrMalformedSnapshot
	}

	snap := &Snapshot{
		Establishments:  []domain.Establishment{},
		Transactions:    []RawTransaction{},
		AuthorizedUsers: []domain.AuthorizedUser{},
	}

	for _, row := range resp.ValueRanges[0].Values {
		snap.Establishments = append(snap.Establishments, domain.Establishment{
			ID:               cell(row, 0),
			Name:             cell(row, 1),
			ResponsibleEmail: cell(row, 2),
		})
	}

	for _, row := range resp.ValueRanges[1].Values {
		tx := RawTransaction{
			ID:              cell(row, 0),
			Date:            cell(row, 1),
			CreatedAt:       cell(row, 2),
			EstablishmentID: cell(row, 3),
			Direction:       domain.Direction(cell(row, 4)),
			Description:     cell(row, 6),
			Observation:     cell(row, 7),
			Status:          domain.Status(cell(row, 8)),
			Author:          cell(row, 9),
		}
		if len(row) > 10 {
			tx.IsEdited = row[10]
		}
		if amt, err := decimal.NewFromString(cell(row, 5)); err == nil {
			tx.Amount = amt
		} else {
			c.log.Warn().Str("transaction_id", tx.ID).Str("raw", cell(row, 5)).Msg("Unparseable amount, keeping zero")
		}
		snap.Transactions = append(snap.Transactions, tx)
	}

	for _, row := range resp.ValueRanges[2].Values {
		snap.AuthorizedUsers = append(snap.AuthorizedUsers, domain.AuthorizedUser{
			Email: cell(row, 0),
			Role:  domain.Role(cell(row, 1)),
		})
	}

	if rows := resp.ValueRanges[3].Values; len(rows) > 0 {
		notes := make(map[string]string, len(rows))
		for _, row := range rows {
			if scope := cell(row, 0); scope != "" {
				notes[scope] = cell(row, 1)
			}
		}
		snap.Notes = notes
	}

	// Settings live as one JSON cell maintained by the spreadsheet
	// script. A missing or unreadable cell leaves the prior cache alone.
	if rows := resp.ValueRanges[4].Values; len(rows) > 0 {
		var settings domain.AppSettings
		if err := json.Unmarshal([]byte(cell(rows[0], 0)), &settings); err == nil {
			snap.Settings = &settings
		} else {
			c.log.Warn().Err(err).Msg("Unreadable settings cell, keeping prior settings")
		}
	}

	c.log.Debug().
		Int("establishments", len(snap.Establishments)).
		Int("transactions", len(snap.Transactions)).
		Int("authorized_users", len(snap.AuthorizedUsers)).
		Msg("Snapshot fetched from spreadsheet")

	return snap, nil
}

// Dispatch implements Client.
func (c *SheetsClient) Dispatch(ctx context.Context, m Mutation) error {
	var (
		tab string
		row []any
	)

	switch m.Action {
	case ActionAddTransaction:
		tx, ok := m.Payload.(domain.Transaction)
		if !ok {
			return fmt.Errorf("Dispatch: %s payload is %T, want domain.Transaction", m.Action, m.Payload)
		}
		tab = tabTransactions
		row = []any{
			tx.ID, tx.Date, tx.CreatedAt.Format(time.RFC3339), tx.EstablishmentID,
			string(tx.Direction), tx.Amount.String(), tx.Description, tx.Observation,
			string(tx.Status), tx.Author, false,
		}
	case ActionAddEstablishment:
		est, ok := m.Payload.(domain.Establishment)
		if !ok {
			return fmt.Errorf("Dispatch: %s payload is %T, want domain.Establishment", m.Action, m.Payload)
		}
		tab = tabEstablishments
		row = []any{est.ID, est.Name, est.ResponsibleEmail}
	case ActionAddUser:
		user, ok := m.Payload.(domain.AuthorizedUser)
		if !ok {
			return fmt.Errorf("Dispatch: %s payload is %T, want domain.AuthorizedUser", m.Action, m.Payload)
		}
		tab = tabUsers
		row = []any{user.Email, string(user.Role)}
	default:
		// Edits, deletes, notes and settings go through the command tab.
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			return fmt.Errorf("Dispatch: marshal %s payload: %w", m.Action, err)
		}
		tab = tabCommands
		row = []any{time.Now().UTC().Format(time.RFC3339), string(m.Action), string(payload), m.User}
	}

	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, tab+"!A1", &sheets.ValueRange{
		Values: [][]any{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("Dispatch: append to %s: %w", tab, err)
	}

	c.log.Debug().Str("action", string(m.Action)).Str("tab", tab).Msg("Mutation appended to spreadsheet")
	return nil
}

// cell returns row[i] as a string, or "" when the row is short.
func cell(row []any, i int) string {
	if i >= len(row) {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprint(row[i])
}

var _ Client = (*SheetsClient)(nil)
