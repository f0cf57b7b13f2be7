// Package google writes reports to a Google Sheets spreadsheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"lendbook/internal/ledger"
	"lendbook/internal/log"
	ports "lendbook/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

// Ensure interface conformance
var (
	_ ports.ReportWriter     = (*Client)(nil)
	_ ports.DebtorListWriter = (*Client)(nil)
)

// Credentials selects how the client authenticates. A service account wins
// over an OAuth client and token.
type Credentials struct {
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthClientFile    string
	OAuthTokenJSON     string
	OAuthTokenFile     string
}

// NewWithCredentials builds a client for spreadsheetID.
func NewWithCredentials(ctx context.Context, spreadsheetID string, creds Credentials, logger *log.Logger) (*Client, error) {
	opts, err := authOptions(ctx, creds)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, logger, opts...)
}

// New builds a client from explicit API options.
func New(ctx context.Context, spreadsheetID string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Default()
	}
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

func authOptions(ctx context.Context, creds Credentials) ([]goption.ClientOption, error) {
	saJSON, err := inlineOrFile(creds.ServiceAccountJSON, creds.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("read service account: %w", err)
	}
	if len(saJSON) > 0 {
		return []goption.ClientOption{
			goption.WithCredentialsJSON(saJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	}

	clientJSON, err := inlineOrFile(creds.OAuthClientJSON, creds.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client: %w", err)
	}
	if len(clientJSON) == 0 {
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_JSON/FILE)")
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	tokenJSON, err := inlineOrFile(creds.OAuthTokenJSON, creds.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token: %w", err)
	}
	if len(tokenJSON) == 0 {
		return nil, errors.New("missing oauth token (run oauth-init)")
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}

	base := &http.Client{Transport: pooledTransport(), Timeout: 60 * time.Second}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return []goption.ClientOption{goption.WithHTTPClient(cfg.Client(ctx, &tok))}, nil
}

func inlineOrFile(inline, path string) ([]byte, error) {
	if s := strings.TrimSpace(inline); s != "" {
		return []byte(s), nil
	}
	if path = strings.TrimSpace(path); path != "" {
		return os.ReadFile(path)
	}
	return nil, nil
}

func pooledTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// WriteMonthReport clears the month tab and writes header, rows and totals.
// The tab is created on first use.
func (c *Client) WriteMonthReport(ctx context.Context, report ledger.MonthReport) (string, error) {
	return c.replaceTab(ctx, ports.TabName(report), report.Records())
}

func (c *Client) WriteDebtorList(ctx context.Context, list ledger.DebtorList) (string, error) {
	return c.replaceTab(ctx, ports.DebtorsTab, list.Records())
}

func (c *Client) replaceTab(ctx context.Context, tab string, records [][]string) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if err := c.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	target := quoteTab(tab)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, target+"!A:Z", &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}

	values := make([][]any, len(records))
	for i, record := range records {
		row := make([]any, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		values[i] = row
	}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, target+"!A1", &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", tab, err)
	}

	c.logger.InfoContext(ctx, "Report written to Google Sheets",
		"tab", tab,
		log.FieldRowCount, len(records),
		log.FieldSheetsRef, resp.UpdatedRange)
	if resp.UpdatedRange != "" {
		return resp.UpdatedRange, nil
	}
	return tab, nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}
	c.logger.DebugContext(ctx, "Created sheet tab", "tab", tab)
	return nil
}

// quoteTab wraps a tab name for A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
