package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"

	"lendbook/internal/core"
	"lendbook/internal/ledger"
)

// fakeSheets is a minimal stand-in for the Sheets v4 REST API.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    []string
	added   []string
	cleared []string
	written map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		sheets := make([]map[string]any, 0, len(f.tabs))
		for _, t := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})

	case strings.HasSuffix(path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.tabs = append(f.tabs, rq.AddSheet.Properties.Title)
			f.added = append(f.added, rq.AddSheet.Properties.Title)
		}
		_, _ = w.Write([]byte(`{}`))

	case strings.HasSuffix(path, ":clear"):
		rng := path[strings.Index(path, "/values/")+len("/values/") : len(path)-len(":clear")]
		f.cleared = append(f.cleared, rng)
		_ = json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		var vr struct {
			Values [][]any `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&vr)
		if f.written == nil {
			f.written = map[string][][]any{}
		}
		f.written[rng] = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng, "updatedRows": len(vr.Values)})

	default:
		http.Error(w, `{"error":{"code":404,"message":"unexpected call"}}`, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), "sheet-1", nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	return c
}

func sampleReport() ledger.MonthReport {
	d := core.Debtor{
		ID:         "001",
		Name:       "Ravi",
		Address:    "Salem",
		DebtAmount: core.Rupees(1000),
		DebtDate:   core.NewDate(2024, 3, 5),
	}
	l := ledger.Aggregate([]core.Debtor{d}, core.NewDate(2024, 3, 20))
	return ledger.BuildMonthReport(l, core.MonthKey{Year: 2024, Month: time.March})
}

func TestWriteMonthReport_CreatesTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"Debtors"}}
	c := newTestClient(t, fake)

	ref, err := c.WriteMonthReport(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "'2024 Mar'!A1", ref)

	assert.Equal(t, []string{"2024 Mar"}, fake.added)
	assert.Equal(t, []string{"'2024 Mar'!A:Z"}, fake.cleared)

	values := fake.written["'2024 Mar'!A1"]
	require.Len(t, values, 3)
	assert.Equal(t, "ID", values[0][0])
	assert.Equal(t, "Ravi", values[1][2])
	assert.Equal(t, "Total Debt Given", values[2][0])
	assert.Equal(t, "₹1,000.00", values[2][1])
}

func TestWriteMonthReport_ReusesTab(t *testing.T) {
	fake := &fakeSheets{tabs: []string{"2024 Mar"}}
	c := newTestClient(t, fake)

	_, err := c.WriteMonthReport(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Empty(t, fake.added)
	assert.Len(t, fake.cleared, 1)
}

func TestWriteDebtorList(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	list := ledger.BuildDebtorList([]core.Debtor{{ID: "001", Name: "Ravi", DebtAmount: core.Rupees(100)}}, core.NewDate(2024, 3, 1))
	_, err := c.WriteDebtorList(context.Background(), list)
	require.NoError(t, err)
	assert.Equal(t, []string{"Debtors"}, fake.added)
	assert.Len(t, fake.written["'Debtors'!A1"], 3)
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", nil, goption.WithoutAuthentication())
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNewWithCredentials_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewWithCredentials(ctx, "sheet-1", Credentials{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing credentials")

	_, err = NewWithCredentials(ctx, "sheet-1", Credentials{OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"x"}`}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oauth config")

	_, err = NewWithCredentials(ctx, "sheet-1", Credentials{ServiceAccountFile: filepath.Join(t.TempDir(), "missing.json")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account")
}

func TestNewWithCredentials_OAuthToken(t *testing.T) {
	dir := t.TempDir()
	client := `{"installed":{"client_id":"id","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`
	tokenFile := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(tokenFile, []byte(`{"access_token":"abc","token_type":"Bearer"}`), 0o600))

	c, err := NewWithCredentials(context.Background(), "sheet-1", Credentials{OAuthClientJSON: client, OAuthTokenFile: tokenFile}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", c.spreadsheetID)

	_, err = NewWithCredentials(context.Background(), "sheet-1", Credentials{OAuthClientJSON: client}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing oauth token")
}

func TestQuoteTab(t *testing.T) {
	assert.Equal(t, "'2024 Mar'", quoteTab("2024 Mar"))
	assert.Equal(t, "'Ravi''s'", quoteTab("Ravi's"))
}
