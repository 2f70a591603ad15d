package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultSheetsURL is the Google Sheets API host.
	DefaultSheetsURL = "https://sheets.googleapis.com"

	// DefaultSheetName is the tab the ledger lives on.
	DefaultSheetName = "Sheet1"

	// SheetsScope grants read/write access to spreadsheets.
	SheetsScope = "https://www.googleapis.com/auth/spreadsheets"

	maxErrorBody = 64 << 10
)

// TokenSource mints bearer tokens for a scope.
type TokenSource interface {
	AccessToken(ctx context.Context, scope string) (string, error)
}

// GoogleSheetConfig configures a GoogleSheet.
type GoogleSheetConfig struct {
	BaseURL       string
	SpreadsheetID string
	SheetName     string
	Scope         string
	HTTPClient    *http.Client
}

// GoogleSheet is a Sheet backed by the Google Sheets v4 values API.
type GoogleSheet struct {
	cfg    GoogleSheetConfig
	tokens TokenSource
	client *http.Client
}

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values"`
}

// NewGoogleSheet creates the backend. The spreadsheet id is required.
func NewGoogleSheet(cfg GoogleSheetConfig, tokens TokenSource) (*GoogleSheet, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSheetsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.SheetName == "" {
		cfg.SheetName = DefaultSheetName
	}
	if cfg.Scope == "" {
		cfg.Scope = SheetsScope
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &GoogleSheet{cfg: cfg, tokens: tokens, client: client}, nil
}

func (g *GoogleSheet) headerRange() string { return g.cfg.SheetName + "!A1:M1" }
func (g *GoogleSheet) rowsRange() string   { return g.cfg.SheetName + "!A2:M" }

func (g *GoogleSheet) valuesURL(a1 string) string {
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.SpreadsheetID), url.PathEscape(a1))
}

// ReadHeader implements Sheet.
func (g *GoogleSheet) ReadHeader(ctx context.Context) ([]string, error) {
	var vr valueRange
	if err := g.do(ctx, "header read", http.MethodGet, g.valuesURL(g.headerRange()), nil, &vr); err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, nil
	}
	return vr.Values[0], nil
}

// WriteHeader implements Sheet.
func (g *GoogleSheet) WriteHeader(ctx context.Context, header []string) error {
	body := valueRange{Range: g.headerRange(), Values: [][]string{header}}
	endpoint := g.valuesURL(g.headerRange()) + "?valueInputOption=RAW"
	return g.do(ctx, "header write", http.MethodPut, endpoint, body, nil)
}

// AppendRow implements Sheet.
func (g *GoogleSheet) AppendRow(ctx context.Context, row []string) error {
	body := valueRange{Values: [][]string{row}}
	endpoint := g.valuesURL(g.headerRange()) + ":append?valueInputOption=RAW&insertDataOption=INSERT_ROWS"
	return g.do(ctx, "append", http.MethodPost, endpoint, body, nil)
}

// ReadRows implements Sheet.
func (g *GoogleSheet) ReadRows(ctx context.Context) ([][]string, error) {
	var vr valueRange
	if err := g.do(ctx, "rows read", http.MethodGet, g.valuesURL(g.rowsRange()), nil, &vr); err != nil {
		return nil, err
	}
	return vr.Values, nil
}

// Close implements Sheet.
func (g *GoogleSheet) Close() error { return nil }

// GetStats implements StatsProvider.
func (g *GoogleSheet) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		"backend":        "sheets",
		"spreadsheet_id": g.cfg.SpreadsheetID,
		"sheet_name":     g.cfg.SheetName,
	}, nil
}

func (g *GoogleSheet) do(ctx context.Context, op, method, endpoint string, in, out any) error {
	token, err := g.tokens.AccessToken(ctx, g.cfg.Scope)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ledger %s: encode: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger %s: decode: %w", op, err)
	}
	return nil
}

var (
	_ Sheet         = (*GoogleSheet)(nil)
	_ StatsProvider = (*GoogleSheet)(nil)
)
