package http

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"lendbook/internal/core"
	"lendbook/internal/export"
	"lendbook/internal/ledger"
	"lendbook/internal/log"
	"lendbook/internal/services"
	"lendbook/internal/storage"
)

const exportsShown = 50

// page is the layout data shared by every HTML page.
type page struct {
	Title    string
	Business string
	Nav      string
	Flash    string
}

var flashMessages = map[string]string{
	"interest":  "Interest payment recorded.",
	"principal": "Principal payment recorded.",
	"published": "Report queued for publishing.",
	"skipped":   "That month was already published.",
}

func (s *Server) pageFor(r *http.Request, title, nav string) page {
	return page{
		Title:    title,
		Business: s.opts.Business,
		Nav:      nav,
		Flash:    flashMessages[r.URL.Query().Get("flash")],
	}
}

// render executes the named template into a buffer first so a failing
// template never sends a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		ctx := r.Context()
		log.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			"template", name,
			log.FieldError, err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func debtorPath(key string) string {
	return "/debtors/" + url.PathEscape(key)
}

func (s *Server) handleDebtorList(w http.ResponseWriter, r *http.Request) {
	list, query, err := s.debtorList(r)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "debtors.html", struct {
		page
		List       ledger.DebtorList
		Query      string
		Columns    []string
		LastLogout string
	}{
		page:       s.pageFor(r, "Debtors", "debtors"),
		List:       list,
		Query:      query,
		Columns:    ledger.DebtorColumns,
		LastLogout: s.lastLogoutLabel(r),
	})
}

// lastLogoutLabel is shown under the debtor list. The lookup is advisory, so
// a failure only hides the line.
func (s *Server) lastLogoutLabel(r *http.Request) string {
	if s.deps.Sessions == nil || s.opts.AdminUsername == "" {
		return ""
	}
	ctx := r.Context()
	at, err := s.deps.Sessions.LastLogout(ctx, s.opts.AdminUsername)
	if err != nil {
		log.FromContext(ctx).DebugContext(ctx, "Last logout lookup failed", log.FieldError, err)
		return ""
	}
	if at.IsZero() {
		return ""
	}
	return at.In(s.opts.Location).Format("02/01/2006 15:04")
}

// searchDebtors returns the debtors matching the "q" parameter, or every
// debtor when it is empty.
func (s *Server) searchDebtors(r *http.Request) ([]core.Debtor, string, error) {
	query := sanitizeInput(r.URL.Query().Get("q"))
	if query == "" {
		found, err := s.deps.Directory.List(r.Context())
		return found, query, err
	}
	found, err := s.deps.Directory.Search(r.Context(), query)
	return found, query, err
}

func (s *Server) debtorList(r *http.Request) (ledger.DebtorList, string, error) {
	found, query, err := s.searchDebtors(r)
	if err != nil {
		return ledger.DebtorList{}, query, err
	}
	return ledger.BuildDebtorList(found, s.today()), query, nil
}

// monthReport aggregates every debtor and picks the month from the query,
// defaulting to the ledger's default month.
func (s *Server) monthReport(r *http.Request) (*ledger.Ledger, ledger.MonthReport, error) {
	all, err := s.deps.Directory.List(r.Context())
	if err != nil {
		return nil, ledger.MonthReport{}, err
	}
	l := ledger.Aggregate(all, s.today())
	month, err := ParseMonthParam(r.URL.Query(), l.Default)
	if err != nil {
		return nil, ledger.MonthReport{}, err
	}
	return l, ledger.BuildMonthReport(l, month), nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	l, report, err := s.monthReport(r)
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	months := slices.Clone(l.Months)
	if !l.NoData && !l.HasMonth(report.Month) {
		months = append(months, report.Month)
		slices.SortFunc(months, core.MonthKey.Compare)
	}

	s.render(w, r, http.StatusOK, "report.html", struct {
		page
		Report     ledger.MonthReport
		Months     []core.MonthKey
		Selected   string
		Columns    []string
		CanPublish bool
	}{
		page:       s.pageFor(r, report.Title(), "report"),
		Report:     report,
		Months:     months,
		Selected:   report.Month.Label(),
		Columns:    ledger.ReportColumns,
		CanPublish: s.deps.Reports != nil,
	})
}

// handlePublishReport queues the selected month for the report worker.
func (s *Server) handlePublishReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.pageError(w, r, errNotConfigured)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.pageError(w, r, errors.Join(errBadRequestBody, err))
		return
	}
	month, err := core.ParseMonthKey(parser.Get("month"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	msg, err := s.deps.Reports.Request(r.Context(), month, s.opts.AdminUsername, parser.GetBool("force"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	flash := "published"
	if msg == nil {
		flash = "skipped"
	}
	SeeOther(w, r, "/report?"+url.Values{"month": {month.Label()}, "flash": {flash}}.Encode())
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	var records []storage.ExportRecord
	if s.deps.Exports != nil {
		list, err := s.deps.Exports.ListExports(r.Context(), exportsShown)
		if err != nil {
			s.pageError(w, r, err)
			return
		}
		records = list
	}
	s.render(w, r, http.StatusOK, "exports.html", struct {
		page
		Exports []storage.ExportRecord
	}{
		page:    s.pageFor(r, "Published reports", "exports"),
		Exports: records,
	})
}

func (s *Server) handleDebtor(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Directory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "debtor.html", struct {
		page
		Debtor core.Debtor
		Dues   []core.MonthKey
	}{
		page:   s.pageFor(r, d.Name, "debtors"),
		Debtor: d,
		Dues:   services.InterestDues(d, s.today()),
	})
}

type interestForm struct {
	page
	Debtor   core.Debtor
	Problems []string
	Years    []int
	Year     int
	Options  []services.MonthOption
	Selected map[string]bool
	Date     core.Date
	Today    core.Date
}

func (s *Server) interestForm(r *http.Request, d core.Debtor, year int) interestForm {
	today := s.today()
	years := services.PayableYears(d, today)
	fallback := today.Year()
	if !slices.Contains(years, fallback) && len(years) > 0 {
		fallback = years[len(years)-1]
	}
	if year == 0 || !slices.Contains(years, year) {
		year = ParseYearParam(r.URL.Query(), fallback, years)
	}
	return interestForm{
		page:     s.pageFor(r, "Pay interest", "debtors"),
		Debtor:   d,
		Years:    years,
		Year:     year,
		Options:  services.InterestMonthOptions(d, year),
		Selected: map[string]bool{},
		Date:     services.DefaultInterestDate(d, today),
		Today:    today,
	}
}

func (s *Server) handleInterestForm(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Directory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	if d.IsSettled() {
		SeeOther(w, r, debtorPath(d.Key))
		return
	}
	s.render(w, r, http.StatusOK, "interest_form.html", s.interestForm(r, d, 0))
}

func (s *Server) handlePayInterestForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.deps.Directory.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.pageError(w, r, errors.Join(errBadRequestBody, err))
		return
	}
	months := parser.GetAll("months")
	date, dateErr := ParseDateValue(parser.Get("date"), s.opts.Location)

	retry := func(problems []string) {
		year := 0
		if len(months) > 0 {
			if k, err := core.ParseMonthKey(months[0]); err == nil {
				year = k.Year
			}
		}
		form := s.interestForm(r, d, year)
		form.Problems = problems
		for _, m := range months {
			form.Selected[m] = true
		}
		if !date.IsZero() {
			form.Date = date
		}
		s.render(w, r, http.StatusUnprocessableEntity, "interest_form.html", form)
	}

	if dateErr != nil {
		retry([]string{dateErr.Error()})
		return
	}

	_, err = s.deps.Payments.PayInterest(ctx, services.PayInterestRequest{
		DebtorKey: d.Key,
		Months:    months,
		Date:      date,
	})
	switch {
	case err == nil:
		s.metrics.PaymentRecorded("interest")
		SeeOther(w, r, debtorPath(d.Key)+"?flash=interest")
	case errors.Is(err, services.ErrValidation):
		retry(services.Problems(err))
	case errors.Is(err, services.ErrSettled):
		SeeOther(w, r, debtorPath(d.Key))
	default:
		s.pageError(w, r, err)
	}
}

type principalForm struct {
	page
	Debtor   core.Debtor
	Problems []string
	Amount   string
	Date     core.Date
	Today    core.Date
	Methods  []core.PaymentMethod
	Method   string
}

func (s *Server) principalForm(r *http.Request, d core.Debtor) principalForm {
	today := s.today()
	methods := core.PaymentMethods()
	return principalForm{
		page:    s.pageFor(r, "Pay principal", "debtors"),
		Debtor:  d,
		Date:    services.DefaultPrincipalDate(d, today),
		Today:   today,
		Methods: methods,
		Method:  string(methods[0]),
	}
}

func (s *Server) handlePrincipalForm(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Directory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	if d.IsSettled() {
		SeeOther(w, r, debtorPath(d.Key))
		return
	}
	s.render(w, r, http.StatusOK, "principal_form.html", s.principalForm(r, d))
}

func (s *Server) handlePayPrincipalForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := s.deps.Directory.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.pageError(w, r, err)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.pageError(w, r, errors.Join(errBadRequestBody, err))
		return
	}
	rawAmount := parser.Get("amount")
	method := parser.Get("method")

	var problems []string
	amount, err := ParseAmountValue(rawAmount)
	if err != nil {
		problems = append(problems, err.Error())
	}
	date, err := ParseDateValue(parser.Get("date"), s.opts.Location)
	if err != nil {
		problems = append(problems, err.Error())
	}

	retry := func(problems []string) {
		form := s.principalForm(r, d)
		form.Problems = problems
		form.Amount = rawAmount
		if method != "" {
			form.Method = method
		}
		if !date.IsZero() {
			form.Date = date
		}
		s.render(w, r, http.StatusUnprocessableEntity, "principal_form.html", form)
	}

	if len(problems) > 0 {
		retry(problems)
		return
	}

	_, err = s.deps.Payments.PayPrincipal(ctx, services.PayPrincipalRequest{
		DebtorKey: d.Key,
		Amount:    amount,
		Date:      date,
		Method:    method,
	})
	switch {
	case err == nil:
		s.metrics.PaymentRecorded("principal")
		SeeOther(w, r, debtorPath(d.Key)+"?flash=principal")
	case errors.Is(err, services.ErrValidation):
		retry(services.Problems(err))
	case errors.Is(err, services.ErrSettled):
		SeeOther(w, r, debtorPath(d.Key))
	default:
		s.pageError(w, r, err)
	}
}

const csvContentType = "text/csv; charset=utf-8"
const pdfContentType = "application/pdf"

func (s *Server) handleDebtorListCSV(w http.ResponseWriter, r *http.Request) {
	list, _, err := s.debtorList(r)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteDebtorListCSV(&buf, list); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.download(w, export.DebtorListStem+".csv", csvContentType, buf.Bytes())
}

func (s *Server) handleDebtorListPDF(w http.ResponseWriter, r *http.Request) {
	if !s.pdfEnabled() {
		s.pageError(w, r, errNotConfigured)
		return
	}
	list, _, err := s.debtorList(r)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	content, err := s.deps.PDF.RenderDebtorList(r.Context(), list)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.download(w, export.DebtorListStem+".pdf", pdfContentType, content)
}

func (s *Server) handleReportCSV(w http.ResponseWriter, r *http.Request) {
	report, ok := s.downloadableReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteMonthReportCSV(&buf, report); err != nil {
		s.pageError(w, r, err)
		return
	}
	s.download(w, report.FileStem()+".csv", csvContentType, buf.Bytes())
}

func (s *Server) handleReportPDF(w http.ResponseWriter, r *http.Request) {
	if !s.pdfEnabled() {
		s.pageError(w, r, errNotConfigured)
		return
	}
	report, ok := s.downloadableReport(w, r)
	if !ok {
		return
	}
	content, err := s.deps.PDF.RenderMonthReport(r.Context(), report)
	if err != nil {
		s.pageError(w, r, err)
		return
	}
	s.download(w, report.FileStem()+".pdf", pdfContentType, content)
}

// downloadableReport builds the requested month report. Without any
// recorded transaction there is nothing to download and a problem document
// is sent instead.
func (s *Server) downloadableReport(w http.ResponseWriter, r *http.Request) (ledger.MonthReport, bool) {
	_, report, err := s.monthReport(r)
	if err != nil {
		s.pageError(w, r, err)
		return ledger.MonthReport{}, false
	}
	if report.NoData {
		s.respondError(w, r, errNoData)
		return ledger.MonthReport{}, false
	}
	return report, true
}

func (s *Server) pdfEnabled() bool {
	return s.deps.PDF != nil && s.deps.PDF.Enabled()
}

func (s *Server) download(w http.ResponseWriter, filename, contentType string, content []byte) {
	s.metrics.Download(strings.TrimPrefix(path.Ext(filename), "."))
	NewResponse().Attachment(filename, contentType, content).Write(w)
}
