package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"lendbook/internal/core"
	"lendbook/internal/ledger"
	"lendbook/internal/services"
)

type interestEntryJSON struct {
	Month  string `json:"month"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

type principalEntryJSON struct {
	Date   string `json:"date"`
	Amount string `json:"amount"`
	Method string `json:"method"`
}

type debtorJSON struct {
	Key                string               `json:"key"`
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Address            string               `json:"address"`
	Mobile             string               `json:"mobile"`
	DebtAmount         string               `json:"debtAmount"`
	OriginalDebtAmount string               `json:"originalDebtAmount"`
	DebtDate           string               `json:"debtDate,omitempty"`
	InterestRate       string               `json:"interestRate"`
	InterestAmount     string               `json:"interestAmount"`
	Outstanding        string               `json:"outstanding"`
	Settled            bool                 `json:"settled"`
	PaidMonths         []string             `json:"paidMonths"`
	InterestDue        []string             `json:"interestDue"`
	InterestPaid       []interestEntryJSON  `json:"interestPaid"`
	Payments           []principalEntryJSON `json:"payments"`
}

func isoOrEmpty(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.ISO()
}

func newDebtorJSON(d core.Debtor, today core.Date) debtorJSON {
	out := debtorJSON{
		Key:                d.Key,
		ID:                 d.ID,
		Name:               d.Name,
		Address:            d.Address,
		Mobile:             d.Mobile,
		DebtAmount:         d.DebtAmount.String(),
		OriginalDebtAmount: d.Principal().String(),
		DebtDate:           isoOrEmpty(d.DebtDate),
		InterestRate:       d.InterestRate.String(),
		InterestAmount:     d.InterestAmount.String(),
		Outstanding:        d.Outstanding().String(),
		Settled:            d.IsSettled(),
		PaidMonths:         d.PaidMonths(),
		InterestDue:        []string{},
		InterestPaid:       make([]interestEntryJSON, 0, len(d.InterestPaid)),
		Payments:           make([]principalEntryJSON, 0, len(d.Payments)),
	}
	if out.PaidMonths == nil {
		out.PaidMonths = []string{}
	}
	for _, k := range services.InterestDues(d, today) {
		out.InterestDue = append(out.InterestDue, k.PaidLabel())
	}
	for _, e := range d.InterestPaid {
		out.InterestPaid = append(out.InterestPaid, interestEntryJSON{Month: e.Month, Date: isoOrEmpty(e.Date), Amount: e.Amount.String()})
	}
	for _, p := range d.Payments {
		out.Payments = append(out.Payments, principalEntryJSON{Date: isoOrEmpty(p.Date), Amount: p.Amount.String(), Method: string(p.Method)})
	}
	return out
}

type totalsJSON struct {
	DebtGiven     string `json:"debtGiven"`
	InterestPaid  string `json:"interestPaid"`
	PrincipalPaid string `json:"principalPaid"`
	Net           string `json:"net"`
}

func newTotalsJSON(t core.MonthTotals) totalsJSON {
	return totalsJSON{
		DebtGiven:     t.DebtGiven.String(),
		InterestPaid:  t.InterestPaid.String(),
		PrincipalPaid: t.PrincipalPaid.String(),
		Net:           t.Net().String(),
	}
}

func (s *Server) apiListDebtors(w http.ResponseWriter, r *http.Request) {
	found, _, err := s.searchDebtors(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	today := s.today()
	list := ledger.BuildDebtorList(found, today)
	out := make([]debtorJSON, 0, len(found))
	for _, d := range found {
		out = append(out, newDebtorJSON(d, today))
	}
	NewResponse().JSON(map[string]any{
		"asOf":             today.ISO(),
		"count":            len(out),
		"totalOutstanding": list.TotalOutstanding.String(),
		"totalInterest":    list.TotalInterest.String(),
		"debtors":          out,
	}).Write(w)
}

func (s *Server) apiGetDebtor(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Directory.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	NewResponse().JSON(newDebtorJSON(d, s.today())).Write(w)
}

// debtorRequest reads a debtor body. Values that cannot be parsed are
// returned as a validation error so the caller sees every problem at once.
func (s *Server) debtorRequest(r *http.Request) (services.DebtorRequest, error) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		return services.DebtorRequest{}, errors.Join(errBadRequestBody, err)
	}

	req := services.DebtorRequest{
		ID:      parser.Get("id"),
		Name:    parser.Get("name"),
		Address: parser.Get("address"),
		Mobile:  parser.Get("mobile"),
	}
	var problems []string
	var err error
	if req.DebtAmount, err = ParseAmountValue(parser.Get("debtAmount")); err != nil {
		problems = append(problems, err.Error())
	}
	if req.DebtDate, err = ParseDateValue(parser.Get("debtDate"), s.opts.Location); err != nil {
		problems = append(problems, err.Error())
	}
	if raw := strings.TrimSuffix(parser.Get("interestRate"), "%"); raw != "" {
		if req.InterestRate, err = decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			problems = append(problems, "interest rate "+raw+" is not a number")
		}
	}
	if err := services.NewValidationError(problems...); err != nil {
		return services.DebtorRequest{}, err
	}
	return req, nil
}

func (s *Server) apiCreateDebtor(w http.ResponseWriter, r *http.Request) {
	req, err := s.debtorRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.deps.Debtors.AddDebtor(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	location := ""
	if d.Key != "" {
		location = "/api" + debtorPath(d.Key)
	}
	NewResponse().Created(location).JSON(newDebtorJSON(d, s.today())).Write(w)
}

func (s *Server) apiUpdateDebtor(w http.ResponseWriter, r *http.Request) {
	req, err := s.debtorRequest(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	d, err := s.deps.Debtors.UpdateDebtor(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	NewResponse().JSON(newDebtorJSON(d, s.today())).Write(w)
}

func (s *Server) apiDeleteDebtor(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Debtors.DeleteDebtor(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiPayInterest(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.respondError(w, r, errors.Join(errBadRequestBody, err))
		return
	}
	date, err := ParseDateValue(parser.Get("date"), s.opts.Location)
	if err != nil {
		s.respondError(w, r, services.NewValidationError(err.Error()))
		return
	}

	payment, err := s.deps.Payments.PayInterest(r.Context(), services.PayInterestRequest{
		DebtorKey: chi.URLParam(r, "id"),
		Months:    parser.GetAll("months"),
		Date:      date,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.PaymentRecorded("interest")
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"debtorKey":      payment.DebtorKey,
		"debtorId":       payment.DebtorID,
		"months":         payment.Months,
		"date":           payment.Date.ISO(),
		"amountPerMonth": payment.Amount.String(),
		"total":          payment.Amount.Times(len(payment.Months)).String(),
	}).Write(w)
}

func (s *Server) apiPayPrincipal(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.respondError(w, r, errors.Join(errBadRequestBody, err))
		return
	}
	var problems []string
	amount, err := ParseAmountValue(parser.Get("amount"))
	if err != nil {
		problems = append(problems, err.Error())
	}
	date, err := ParseDateValue(parser.Get("date"), s.opts.Location)
	if err != nil {
		problems = append(problems, err.Error())
	}
	if err := services.NewValidationError(problems...); err != nil {
		s.respondError(w, r, err)
		return
	}

	payment, err := s.deps.Payments.PayPrincipal(r.Context(), services.PayPrincipalRequest{
		DebtorKey: chi.URLParam(r, "id"),
		Amount:    amount,
		Date:      date,
		Method:    parser.Get("method"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.metrics.PaymentRecorded("principal")
	NewResponse().Status(http.StatusCreated).JSON(map[string]any{
		"debtorKey": payment.DebtorKey,
		"amount":    payment.Payment.Amount.String(),
		"date":      payment.Payment.Date.ISO(),
		"method":    string(payment.Payment.Method),
	}).Write(w)
}

type reportRowJSON struct {
	ID             string `json:"id"`
	Date           string `json:"date"`
	Name           string `json:"name"`
	Address        string `json:"address"`
	InterestMonths string `json:"interestMonths,omitempty"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
}

func (s *Server) apiReport(w http.ResponseWriter, r *http.Request) {
	l, report, err := s.monthReport(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	rows := make([]reportRowJSON, 0, len(report.Rows))
	for _, row := range report.Rows {
		rows = append(rows, reportRowJSON{
			ID:             row.ID,
			Date:           row.Date,
			Name:           row.Name,
			Address:        row.Address,
			InterestMonths: row.InterestMonths,
			Type:           row.Type,
			Amount:         row.Value.String(),
		})
	}
	months := make([]string, 0, len(l.Months))
	for _, m := range l.Months {
		months = append(months, m.Label())
	}
	NewResponse().JSON(map[string]any{
		"title":  report.Title(),
		"month":  report.Month.Label(),
		"noData": report.NoData,
		"months": months,
		"rows":   rows,
		"totals": newTotalsJSON(report.Totals),
	}).Write(w)
}

// apiQueueReport asks the worker to publish a month. Without a month in the
// body the last closed month is used.
func (s *Server) apiQueueReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reports == nil {
		s.respondError(w, r, errNotConfigured)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.respondError(w, r, errors.Join(errBadRequestBody, err))
		return
	}

	month := s.deps.Reports.ClosedMonth(s.now())
	if raw := parser.Get("month"); raw != "" {
		var err error
		if month, err = core.ParseMonthKey(raw); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	requestedBy := parser.Get("requestedBy")
	if requestedBy == "" {
		requestedBy = s.opts.AdminUsername
	}
	msg, err := s.deps.Reports.Request(r.Context(), month, requestedBy, parser.GetBool("force"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if msg == nil {
		NewResponse().JSON(map[string]any{
			"month":  month.Label(),
			"status": "skipped",
		}).Write(w)
		return
	}
	NewResponse().Status(http.StatusAccepted).JSON(map[string]any{
		"jobId":  msg.JobID,
		"month":  month.Label(),
		"status": "queued",
	}).Write(w)
}

func (s *Server) apiRefresh(w http.ResponseWriter, r *http.Request) {
	found, err := s.deps.Directory.Refresh(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"count":       len(found),
		"refreshedAt": s.now().Format(time.RFC3339),
	}).Write(w)
}

func (s *Server) apiLastLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		s.respondError(w, r, errNotConfigured)
		return
	}
	name := sanitizeInput(chi.URLParam(r, "name"))
	if name == "" {
		s.respondError(w, r, errBadRequestBody)
		return
	}
	at, err := s.deps.Sessions.LastLogout(r.Context(), name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var last *string
	if !at.IsZero() {
		v := at.In(s.opts.Location).Format(time.RFC3339)
		last = &v
	}
	NewResponse().JSON(map[string]any{
		"username":   name,
		"lastLogout": last,
	}).Write(w)
}
