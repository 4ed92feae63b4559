// Package http provides HTTP server and handler implementations.
//
// This file builds the JSON envelope every endpoint answers with and maps
// service errors onto status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"churchbook/internal/log"
	"churchbook/internal/services"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       APIResponse
}

func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		body:       APIResponse{Status: statusSuccess},
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) Data(data any) *ResponseBuilder {
	b.body.Data = data
	return b
}

func (b *ResponseBuilder) Message(msg string) *ResponseBuilder {
	b.body.Message = msg
	return b
}

// Write sends the response. A 204 carries no body.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates a response with an error envelope.
func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	b := NewResponse().Status(statusCode)
	b.body.Status = statusError
	b.body.Message = message
	return b
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	NewResponse().Status(status).Data(data).Write(w)
}

func writeNoContent(w http.ResponseWriter) {
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// statusFor maps an error onto the status code clients see.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest), services.IsMalformed(err):
		return http.StatusBadRequest
	case services.IsPIN(err):
		return http.StatusForbidden
	case services.IsNotFound(err):
		return http.StatusNotFound
	case services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs and sends err. Internal errors are not echoed to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger := log.FromContext(r.Context())

	message := err.Error()
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldStatusCode, status)
		message = http.StatusText(status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	ErrorResponse(status, message).Write(w)
}

// rateLimited answers a request rejected by the rate limiter.
func rateLimited(w http.ResponseWriter, r *http.Request, retryAfter int) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").
		Header("Retry-After", strconv.Itoa(max(retryAfter, 1))).
		Write(w)
}
