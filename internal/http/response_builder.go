// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for constructing responses.
// It provides a fluent API for JSON bodies, downloads and redirects with
// consistent headers.

package http

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// ResponseBuilder provides a fluent API for building HTTP responses.
type ResponseBuilder struct {
	statusCode int
	body       []byte
	headers    map[string]string
	err        error
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the response body as bytes.
func (b *ResponseBuilder) Body(content []byte) *ResponseBuilder {
	b.body = content
	return b
}

// BodyString sets the response body as a string.
func (b *ResponseBuilder) BodyString(content string) *ResponseBuilder {
	b.body = []byte(content)
	return b
}

// JSON encodes data as the response body.
func (b *ResponseBuilder) JSON(data any) *ResponseBuilder {
	encoded, err := json.Marshal(data)
	if err != nil {
		b.err = fmt.Errorf("encode response: %w", err)
		return b
	}
	b.headers["Content-Type"] = "application/json"
	b.body = append(encoded, '\n')
	return b
}

// Created sets 201 and the Location of the new resource.
func (b *ResponseBuilder) Created(location string) *ResponseBuilder {
	b.statusCode = http.StatusCreated
	if location != "" {
		b.headers["Location"] = location
	}
	return b
}

// Attachment sends content as a download named filename.
func (b *ResponseBuilder) Attachment(filename, contentType string, content []byte) *ResponseBuilder {
	b.headers["Content-Type"] = contentType
	b.headers["Content-Disposition"] = mime.FormatMediaType("attachment", map[string]string{"filename": filename})
	b.headers["Cache-Control"] = "no-store"
	b.body = content
	return b
}

// Err returns the first error met while building.
func (b *ResponseBuilder) Err() error {
	return b.err
}

// Write sends the built response to the http.ResponseWriter. A builder that
// failed to encode its body answers 500 instead.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	if b.err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// SeeOther redirects a submitted form to target.
func SeeOther(w http.ResponseWriter, r *http.Request, target string) {
	http.Redirect(w, r, target, http.StatusSeeOther)
}
