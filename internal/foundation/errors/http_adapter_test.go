package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: http.StatusOK},
		{name: "validation error", err: ValidationError("invalid input").Build(), expected: http.StatusBadRequest},
		{name: "contract error", err: ContractError("misuse").Build(), expected: http.StatusBadRequest},
		{name: "auth error", err: AuthError("unauthorized").Build(), expected: http.StatusUnauthorized},
		{name: "not found error", err: NotFoundError("no such table").Build(), expected: http.StatusNotFound},
		{name: "duplicate module", err: AlreadyExistsError("module exists").Build(), expected: http.StatusConflict},
		{name: "network error", err: NetworkError("unreachable").Build(), expected: http.StatusBadGateway},
		{name: "event hub error", err: EventHubError("disposed").Build(), expected: http.StatusServiceUnavailable},
		{name: "storage error", err: StorageError("corrupt").Build(), expected: http.StatusInternalServerError},
		{name: "unclassified error", err: &customHTTPError{msg: "unknown"}, expected: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adapter.StatusCodeFor(tt.err)
			if got != tt.expected {
				t.Errorf("StatusCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		checkJSON      bool
	}{
		{name: "nil error", err: nil, expectedStatus: http.StatusOK},
		{
			name:           "classified validation error",
			err:            NewError(CategoryValidation, "invalid input").WithSeverity(SeverityError).Build(),
			expectedStatus: http.StatusBadRequest,
			checkJSON:      true,
		},
		{
			name:           "config error",
			err:            ConfigError("bad config").Build(),
			expectedStatus: http.StatusBadRequest,
			checkJSON:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			adapter.WriteErrorResponse(w, r, tt.err)

			if w.Code != tt.expectedStatus {
				t.Errorf("WriteErrorResponse() status = %v, want %v", w.Code, tt.expectedStatus)
			}
			if !tt.checkJSON {
				return
			}

			var response HTTPErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("WriteErrorResponse() invalid JSON: %v", err)
			}
			if response.Error == "" {
				t.Error("WriteErrorResponse() missing error message")
			}
			if response.Code == "" {
				t.Error("WriteErrorResponse() missing error code")
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("WriteErrorResponse() content-type = %v, want application/json", ct)
			}
		})
	}
}

func TestHTTPErrorAdapter_FormatErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	t.Run("context becomes details", func(t *testing.T) {
		resp := adapter.FormatErrorResponse(ValidationError("invalid field").WithContext("field", "type").Build())
		if resp.Code != string(CategoryValidation) {
			t.Errorf("code = %q", resp.Code)
		}
		if resp.Details["field"] != "type" {
			t.Errorf("details = %v", resp.Details)
		}
		if resp.Retryable {
			t.Error("validation errors are not retryable")
		}
	})

	t.Run("retryable flag", func(t *testing.T) {
		resp := adapter.FormatErrorResponse(NetworkError("timeout").Build())
		if !resp.Retryable {
			t.Error("expected retryable response")
		}
	})

	t.Run("unclassified", func(t *testing.T) {
		resp := adapter.FormatErrorResponse(&customHTTPError{msg: "boom"})
		if resp.Error != "boom" || resp.Code != "" {
			t.Errorf("unexpected response %+v", resp)
		}
	})
}

// customHTTPError is a test helper for unclassified errors
type customHTTPError struct {
	msg string
}

func (e *customHTTPError) Error() string {
	return e.msg
}
