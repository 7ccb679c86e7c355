package httputil

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "tradegate/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("wallet rejection includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeUserRejected, "Please connect your wallet. Request was rejected."))

		if w.Code != http.StatusForbidden {
			t.Fatalf("expected status %d, got %d", http.StatusForbidden, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "user_rejected" {
			t.Fatalf("expected error code user_rejected, got %q", body["error"])
		}
		if body["error_description"] != "Please connect your wallet. Request was rejected." {
			t.Fatalf("expected error_description to be returned, got %q", body["error_description"])
		}
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeProviderUnavailable:    http.StatusServiceUnavailable,
		dErrors.CodeRequestPending:         http.StatusConflict,
		dErrors.CodeNoAccounts:             http.StatusUnprocessableEntity,
		dErrors.CodeInvalidOnboardingState: http.StatusConflict,
		dErrors.CodePersistenceFailure:     http.StatusServiceUnavailable,
		dErrors.CodeInvalidInput:           http.StatusBadRequest,
		dErrors.CodeUnauthorized:           http.StatusUnauthorized,
		dErrors.Code("unheard_of"):         http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}

type levelRequest struct {
	Level string `json:"level"`
}

func (r *levelRequest) Validate() error {
	r.Level = strings.TrimSpace(r.Level)
	if r.Level == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "level is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	decode := func(body string) (*levelRequest, *httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req, ok := DecodeAndPrepare[levelRequest](w, r, logger, context.Background(), "req-1")
		return req, w, ok
	}

	req, _, ok := decode(`{"level":" pro "}`)
	if !ok || req.Level != "pro" {
		t.Fatalf("expected normalized request, got %+v ok=%v", req, ok)
	}

	_, w, ok := decode(`{"level":`)
	if ok || w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", w.Code)
	}

	_, w, ok = decode(`{"level":"pro","extra":1}`)
	if ok || w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown fields, got %d", w.Code)
	}

	_, w, ok = decode(``)
	if ok || w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 from validation of empty body, got %d", w.Code)
	}
}
