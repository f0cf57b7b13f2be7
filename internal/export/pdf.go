package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"lendbook/internal/ledger"
	"lendbook/web"
)

const (
	reportTemplate  = "pdf_report.html"
	debtorsTemplate = "pdf_debtors.html"
)

// paper holds Gotenberg page settings in inches.
type paper struct {
	width, height string
	landscape     bool
}

var (
	portraitA4  = paper{width: "8.27", height: "11.7"}
	landscapeA4 = paper{width: "8.27", height: "11.7", landscape: true}
)

// PDFExporter renders reports to HTML and converts them through Gotenberg.
type PDFExporter struct {
	Endpoint string
	Client   *http.Client
	// Business is printed at the top of every document.
	Business string

	templates *template.Template
	now       func() time.Time
}

type reportDocument struct {
	Business  string
	Generated string
	Columns   []string
	Report    ledger.MonthReport
}

type debtorsDocument struct {
	Business string
	Columns  []string
	List     ledger.DebtorList
}

// NewPDFExporter creates a PDFExporter with parsed templates.
func NewPDFExporter(endpoint string, client *http.Client, business string) (*PDFExporter, error) {
	tpl, err := template.ParseFS(web.TemplatesFS, "templates/"+reportTemplate, "templates/"+debtorsTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse pdf templates: %w", err)
	}
	return &PDFExporter{
		Endpoint:  endpoint,
		Client:    client,
		Business:  business,
		templates: tpl,
		now:       time.Now,
	}, nil
}

// Enabled reports whether a Gotenberg endpoint is configured.
func (p *PDFExporter) Enabled() bool {
	return p != nil && strings.TrimSpace(p.Endpoint) != ""
}

// RenderMonthReport returns the month report as a PDF document.
func (p *PDFExporter) RenderMonthReport(ctx context.Context, report ledger.MonthReport) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("pdf exporter not initialized")
	}
	doc := reportDocument{
		Business:  p.Business,
		Generated: p.now().Format("02/01/2006 15:04"),
		Columns:   ledger.ReportColumns,
		Report:    report,
	}
	return p.render(ctx, reportTemplate, doc, portraitA4)
}

// RenderDebtorList returns the outstanding-amounts statement as a PDF document.
func (p *PDFExporter) RenderDebtorList(ctx context.Context, list ledger.DebtorList) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("pdf exporter not initialized")
	}
	doc := debtorsDocument{
		Business: p.Business,
		Columns:  ledger.DebtorColumns,
		List:     list,
	}
	return p.render(ctx, debtorsTemplate, doc, landscapeA4)
}

// Ping checks that Gotenberg answers its health endpoint.
func (p *PDFExporter) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return fmt.Errorf("gotenberg endpoint required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(p.Endpoint, "/")+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("gotenberg returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *PDFExporter) client() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

func (p *PDFExporter) render(ctx context.Context, name string, data any, page paper) ([]byte, error) {
	endpoint := strings.TrimRight(p.Endpoint, "/")
	if endpoint == "" {
		return nil, fmt.Errorf("gotenberg endpoint required")
	}
	if p.templates == nil {
		return nil, fmt.Errorf("templates not initialized")
	}

	html := &bytes.Buffer{}
	if err := p.templates.ExecuteTemplate(html, name, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	// Gotenberg requires the entry document to be called index.html.
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, html); err != nil {
		return nil, err
	}
	fields := [][2]string{
		{"paperWidth", page.width},
		{"paperHeight", page.height},
		{"marginTop", "0.4"},
		{"marginBottom", "0.4"},
		{"marginLeft", "0.4"},
		{"marginRight", "0.4"},
		{"printBackground", "true"},
	}
	if page.landscape {
		fields = append(fields, [2]string{"landscape", "true"})
	}
	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/forms/chromium/convert/html", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("gotenberg response %d: %s", resp.StatusCode, string(msg))
	}
	return io.ReadAll(resp.Body)
}
