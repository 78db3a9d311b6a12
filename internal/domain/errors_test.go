package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "kind and message",
			err:      &APIError{Kind: KindMalformedInput, Message: "bad json"},
			expected: "malformed_input: bad json",
		},
		{
			name:     "with cause",
			err:      &APIError{Kind: KindStore, Message: "query failed", Err: errors.New("conn reset")},
			expected: "store: query failed: conn reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"malformed input", &APIError{Kind: KindMalformedInput}, http.StatusBadRequest},
		{"validation", &APIError{Kind: KindValidation}, http.StatusBadRequest},
		{"not found", &APIError{Kind: KindNotFound}, http.StatusNotFound},
		{"method not allowed", &APIError{Kind: KindMethodNotAllowed}, http.StatusMethodNotAllowed},
		{"payload too large", &APIError{Kind: KindPayloadTooLarge}, http.StatusRequestEntityTooLarge},
		{"rate limit", &APIError{Kind: KindRateLimit}, http.StatusTooManyRequests},
		{"store", &APIError{Kind: KindStore}, http.StatusInternalServerError},
		{"not implemented", &APIError{Kind: KindNotImplemented}, http.StatusNotImplemented},
		{"internal", &APIError{Kind: KindInternal}, http.StatusInternalServerError},
		{"unknown kind", &APIError{Kind: ErrorKind("unknown")}, http.StatusInternalServerError},
		{"explicit status code", &APIError{Kind: KindValidation, StatusCode: http.StatusConflict}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestAPIError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStore("write failed").WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestAsAPIError(t *testing.T) {
	wrapped := fmt.Errorf("stage body: %w", ErrMalformedInput("bad json"))

	apiErr, ok := AsAPIError(wrapped)
	if !ok {
		t.Fatal("expected APIError in chain")
	}
	if apiErr.Kind != KindMalformedInput {
		t.Errorf("Kind = %v, want %v", apiErr.Kind, KindMalformedInput)
	}

	if _, ok := AsAPIError(errors.New("plain")); ok {
		t.Error("plain error should not be an APIError")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name        string
		constructor func(string) *APIError
		kind        ErrorKind
	}{
		{"ErrMalformedInput", ErrMalformedInput, KindMalformedInput},
		{"ErrValidation", ErrValidation, KindValidation},
		{"ErrNotFound", ErrNotFound, KindNotFound},
		{"ErrMethodNotAllowed", ErrMethodNotAllowed, KindMethodNotAllowed},
		{"ErrPayloadTooLarge", ErrPayloadTooLarge, KindPayloadTooLarge},
		{"ErrRateLimit", ErrRateLimit, KindRateLimit},
		{"ErrStore", ErrStore, KindStore},
		{"ErrNotImplemented", ErrNotImplemented, KindNotImplemented},
		{"ErrInternal", ErrInternal, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.constructor("msg")
			if err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", err.Kind, tt.kind)
			}
			if err.Message != "msg" {
				t.Errorf("Message = %q, want %q", err.Message, "msg")
			}
		})
	}
}
