// Package remote talks to the debtor REST API that owns every debtor record.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/log"
)

// ErrRemote is wrapped by every error status other than 404.
var ErrRemote = errors.New("debtor API error")

// StatusError carries the status and message of a failed API call.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("debtor API returned status %d", e.Status)
	}
	return fmt.Sprintf("debtor API returned status %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return debtors.ErrNotFound
	}
	return ErrRemote
}

// Client wraps interactions with the debtor API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	loc        *time.Location
	logger     *log.Logger
}

// NewClient constructs a client. Dates sent as timestamps are read in loc.
func NewClient(baseURL string, timeout time.Duration, loc *time.Location, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		loc:        loc,
		logger:     logger.WithComponent(log.ComponentRemote),
	}
}

// ListDebtors fetches every record. Records without a usable date are
// dropped with a warning rather than failing the whole list.
func (c *Client) ListDebtors(ctx context.Context) ([]core.Debtor, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/debtors", nil, "")
	if err != nil {
		return nil, err
	}
	decoded, err := DecodeDebtors(body, c.loc)
	if err != nil {
		return nil, err
	}
	for _, rejected := range decoded.Rejected {
		c.logger.WarnContext(ctx, "Dropping debtor record", "error", rejected)
	}
	if decoded.SkippedEntries > 0 {
		c.logger.WarnContext(ctx, "Dropped malformed history entries", "count", decoded.SkippedEntries)
	}
	return decoded.Debtors, nil
}

func (c *Client) GetDebtor(ctx context.Context, key string) (core.Debtor, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/debtors/"+url.PathEscape(key), nil, "")
	if err != nil {
		return core.Debtor{}, err
	}
	return DecodeDebtor(body, c.loc)
}

type payInterestBody struct {
	DebtorID   string   `json:"debtorId"`
	PaidMonths []string `json:"paidMonths"`
	PaidDate   string   `json:"paidDate"`
	Amount     string   `json:"amount"`
}

func (c *Client) PayInterest(ctx context.Context, p debtors.InterestPayment) error {
	id := p.DebtorID
	if id == "" {
		id = p.DebtorKey
	}
	payload, err := json.Marshal(payInterestBody{
		DebtorID:   id,
		PaidMonths: p.Months,
		PaidDate:   p.Date.ISO(),
		Amount:     p.Amount.String(),
	})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/api/debtors/pay-interest", bytes.NewReader(payload), "application/json")
	return err
}

type payPrincipalBody struct {
	Amount        string `json:"amount"`
	PaymentDate   string `json:"paymentDate"`
	PaymentMethod string `json:"paymentMethod"`
}

func (c *Client) PayPrincipal(ctx context.Context, p debtors.PrincipalPayment) error {
	payload, err := json.Marshal(payPrincipalBody{
		Amount:        p.Payment.Amount.String(),
		PaymentDate:   p.Payment.Date.ISO(),
		PaymentMethod: string(p.Payment.Method),
	})
	if err != nil {
		return err
	}
	path := "/api/debtors/" + url.PathEscape(p.DebtorKey) + "/pay-principal"
	_, err = c.do(ctx, http.MethodPost, path, bytes.NewReader(payload), "application/json")
	return err
}

// CreateDebtor posts the record as a multipart form and returns the new key
// when the API reports one.
func (c *Client) CreateDebtor(ctx context.Context, d core.Debtor) (string, error) {
	body, contentType, err := debtorForm(d)
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/debtors/add", body, contentType)
	if err != nil {
		return "", err
	}
	var created struct {
		Key    string `json:"_id"`
		Debtor struct {
			Key string `json:"_id"`
		} `json:"debtor"`
	}
	if len(resp) > 0 && json.Unmarshal(resp, &created) == nil {
		if created.Key != "" {
			return created.Key, nil
		}
		return created.Debtor.Key, nil
	}
	return "", nil
}

func (c *Client) UpdateDebtor(ctx context.Context, d core.Debtor) error {
	if d.Key == "" {
		return fmt.Errorf("update debtor: missing record key")
	}
	body, contentType, err := debtorForm(d)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, "/api/debtors/update/"+url.PathEscape(d.Key), body, contentType)
	return err
}

func (c *Client) DeleteDebtor(ctx context.Context, key string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/debtors/"+url.PathEscape(key), nil, "")
	return err
}

// LastLogout returns when username last logged out, or the zero time when
// the API has no record of it.
func (c *Client) LastLogout(ctx context.Context, username string) (time.Time, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/users/last-logout/"+url.PathEscape(strings.ToLower(username)), nil, "")
	if err != nil {
		return time.Time{}, err
	}
	var resp struct {
		LastLogout *time.Time `json:"lastLogout"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return time.Time{}, fmt.Errorf("decode last logout: %w", err)
	}
	if resp.LastLogout == nil {
		return time.Time{}, nil
	}
	return resp.LastLogout.In(c.loc), nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListDebtors(ctx)
	return err
}

func debtorForm(d core.Debtor) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := []struct{ name, value string }{
		{"id", d.ID},
		{"name", d.Name},
		{"address", d.Address},
		{"mobile", d.Mobile},
		{"debtAmount", d.DebtAmount.String()},
		{"originalDebtAmount", d.Principal().String()},
		{"debtDate", d.DebtDate.ISO()},
		{"currentDate", d.CurrentDate.ISO()},
		{"interestRate", d.InterestRate.String()},
		{"interestAmount", d.InterestAmount.String()},
	}
	if d.RemainingBalance != nil {
		fields = append(fields, struct{ name, value string }{"remainingBalance", d.RemainingBalance.String()})
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := writer.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, debtors.ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	c.logger.DebugContext(ctx, "Debtor API call",
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s %s: %w", method, path, &StatusError{Status: resp.StatusCode, Message: apiMessage(payload)})
	}
	return payload, nil
}

// apiMessage extracts {"message": "..."} or {"error": "..."} from an error body.
func apiMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &m) == nil {
		if m.Message != "" {
			return m.Message
		}
		if m.Error != "" {
			return m.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
