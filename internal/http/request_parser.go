// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Page forms and API clients share them, so a value reads the same whether it
// arrives as a form field, a query parameter or a JSON property.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"lendbook/internal/core"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 1 << 20

// ParseMonthParam reads the "month" query parameter ("Mar 24", "Mar-24",
// "March 2024" or "2024-03"). fallback is returned when it is absent.
func ParseMonthParam(query url.Values, fallback core.MonthKey) (core.MonthKey, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return fallback, nil
	}
	return core.ParseMonthKey(v)
}

// ParseYearParam reads the "year" query parameter. Values that are not in
// allowed fall back to fallback.
func ParseYearParam(query url.Values, fallback int, allowed []int) int {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return fallback
	}
	y, err := strconv.Atoi(v)
	if err != nil || (len(allowed) > 0 && !slices.Contains(allowed, y)) {
		return fallback
	}
	return y
}

// ParseDateValue parses a form or JSON date. Empty input yields the zero date
// so the services report it as missing.
func ParseDateValue(s string, loc *time.Location) (core.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s, loc)
	if err != nil {
		return core.Date{}, fmt.Errorf("date %q is not a valid date", s)
	}
	return d, nil
}

// ParseAmountValue parses a rupee amount. Empty input yields zero.
func ParseAmountValue(s string) (core.Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Money{}, nil
	}
	m, err := core.ParseAmount(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q is not a valid amount", s)
	}
	return m, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if p.err == nil && len(p.body) > maxBodyBytes {
			p.err = errors.New("request body too large")
		}
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	// Try JSON first if content looks like JSON
	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = fmt.Errorf("malformed JSON body: %w", err)
			return p.err
		}
		return nil
	}

	// Fall back to form parsing
	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetAll returns every value of key: the elements of a JSON array, or the
// repeated form fields. A single JSON string counts as one value.
func (p *RequestBodyParser) GetAll(key string) []string {
	var raw []string
	switch {
	case p.jsonData != nil:
		switch val := p.jsonData[key].(type) {
		case []any:
			for _, v := range val {
				raw = append(raw, stringValue(v))
			}
		case nil:
		default:
			raw = append(raw, stringValue(val))
		}
	case p.formData != nil:
		raw = p.formData[key]
	}

	var out []string
	for _, v := range raw {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// GetBool reads a boolean flag, accepting JSON booleans and "true"/"1"/"on".
func (p *RequestBodyParser) GetBool(key string) bool {
	switch strings.ToLower(p.Get(key)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters other than tab and newlines and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
