package http

import (
	"context"
	"errors"
	"net/http"

	"lendbook/internal/core"
	"lendbook/internal/debtors"
	"lendbook/internal/debtors/remote"
	"lendbook/internal/httpx"
	"lendbook/internal/log"
	"lendbook/internal/services"
)

var (
	errNotFound       = errors.New("page not found")
	errNotConfigured  = errors.New("feature not configured")
	errBadRequestBody = errors.New("request body could not be read")
	errNoData         = errors.New("no transactions recorded yet")
)

// problemFor maps an error to its problem document. Internal errors keep
// their detail out of the response.
func problemFor(err error) httpx.ProblemDetail {
	switch {
	case errors.Is(err, services.ErrValidation):
		return httpx.ProblemDetail{
			Status:   http.StatusUnprocessableEntity,
			Title:    "Validation Failed",
			Detail:   "The request has problems that must be fixed.",
			Problems: services.Problems(err),
		}
	case errors.Is(err, core.ErrInvalidMonth), errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, errBadRequestBody):
		return httpx.ProblemDetail{Status: http.StatusBadRequest, Title: "Bad Request", Detail: err.Error()}
	case errors.Is(err, services.ErrSettled):
		return httpx.ProblemDetail{Status: http.StatusConflict, Title: "Debt Settled", Detail: err.Error()}
	case errors.Is(err, services.ErrLedgerFull):
		return httpx.ProblemDetail{Status: http.StatusConflict, Title: "Ledger Full", Detail: err.Error()}
	case errors.Is(err, errNoData):
		return httpx.ProblemDetail{Status: http.StatusNotFound, Title: "No Data", Detail: err.Error()}
	case errors.Is(err, debtors.ErrNotFound), errors.Is(err, errNotFound):
		return httpx.ProblemDetail{Status: http.StatusNotFound, Title: "Not Found", Detail: err.Error()}
	case errors.Is(err, debtors.ErrUnavailable):
		return httpx.ProblemDetail{Status: http.StatusServiceUnavailable, Title: "Debtor Service Unavailable",
			Detail: "The debtor service cannot be reached. Try again shortly."}
	case errors.Is(err, errNotConfigured):
		return httpx.ProblemDetail{Status: http.StatusServiceUnavailable, Title: "Not Configured", Detail: err.Error()}
	case errors.Is(err, remote.ErrRemote):
		return httpx.ProblemDetail{Status: http.StatusBadGateway, Title: "Debtor Service Error", Detail: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.ProblemDetail{Status: http.StatusGatewayTimeout, Title: "Timeout"}
	}
	return httpx.ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error"}
}

// respondError writes err as a problem document and logs server-side failures.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	p.Instance = r.URL.Path
	s.logFailure(r, p.Status, err)
	httpx.WriteProblem(w, p)
}

// pageError answers a page request with a plain text error.
func (s *Server) pageError(w http.ResponseWriter, r *http.Request, err error) {
	p := problemFor(err)
	s.logFailure(r, p.Status, err)
	msg := p.Title
	if p.Detail != "" && p.Status < http.StatusInternalServerError {
		msg = p.Detail
	}
	http.Error(w, msg, p.Status)
}

func (s *Server) logFailure(r *http.Request, status int, err error) {
	ctx := r.Context()
	if status >= http.StatusInternalServerError {
		fields := log.NewFields().
			WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "")
		fields[log.FieldStatusCode] = status
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Request failed", err, log.ComponentHTTP, r.Method, fields)
		return
	}
	log.FromContext(ctx).DebugContext(ctx, "Request rejected",
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, status,
		log.FieldError, err)
}
