package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultSheetsURL is the Google Sheets API host.
const DefaultSheetsURL = "https://sheets.googleapis.com"

// Sheets reads a tab of a public read-only spreadsheet through the
// v4 values endpoint using a static API key.
type Sheets struct {
	client   *http.Client
	baseURL  string
	sheetsID string
	tabName  string
	key      string
	referrer string
}

type valuesResponse struct {
	Range  string      `json:"range"`
	Values *[][]string `json:"values"`
}

// NewSheets returns a Sheets source. A nil client uses http.DefaultClient.
func NewSheets(cfg Config, client *http.Client) *Sheets {
	if client == nil {
		client = http.DefaultClient
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultSheetsURL
	}
	return &Sheets{
		client:   client,
		baseURL:  strings.TrimRight(base, "/"),
		sheetsID: cfg.SheetsID,
		tabName:  cfg.TabName,
		key:      cfg.Key,
		referrer: cfg.Referrer,
	}
}

// URL is the request URL for the configured tab.
func (s *Sheets) URL() string {
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?key=%s",
		s.baseURL, url.PathEscape(s.sheetsID), url.PathEscape(s.tabName), url.QueryEscape(s.key))
}

func (s *Sheets) Values(ctx context.Context) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build sheets request: %w", err)
	}
	if s.referrer != "" {
		req.Header.Set("Referer", s.referrer)
	}

	slog.Debug("Fetching sheet", "sheets_id", s.sheetsID, "tab", s.tabName)
	resp, err := s.client.Do(req)
	if err != nil {
		// keep the API key out of error messages
		var uerr *url.Error
		if errors.As(err, &uerr) && s.key != "" {
			uerr.URL = strings.Replace(uerr.URL, "key="+url.QueryEscape(s.key), "key=REDACTED", 1)
		}
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch sheet: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out valuesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sheet response: %w", err)
	}
	if out.Values == nil {
		return nil, ErrNoValues
	}
	return *out.Values, nil
}
