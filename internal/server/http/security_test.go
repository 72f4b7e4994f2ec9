package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/helixir/paper-digest-service/internal/domain"
	"github.com/helixir/paper-digest-service/internal/pipeline"
)

// ---------------------------------------------------------------------------
// TestResponseSanitization
// ---------------------------------------------------------------------------

// TestResponseSanitization verifies that details of dependency failures
// (driver errors, upstream hosts, file paths) never reach the HTTP client.
func TestResponseSanitization(t *testing.T) {
	sensitiveErrors := []struct {
		name      string
		err       error
		wantCode  int
		forbidden []string
	}{
		{
			name:      "postgres connection refused",
			err:       fmt.Errorf("pgx: connection refused to 10.0.0.5:5432"),
			wantCode:  http.StatusInternalServerError,
			forbidden: []string{"pgx", "connection refused", "10.0.0.5", "5432"},
		},
		{
			name:      "fetch with dial error",
			err:       domain.NewFetchError(domain.FetchStageContent, "2401.00001", 3, errors.New("dial tcp 10.0.1.20:443: i/o timeout")),
			wantCode:  http.StatusBadGateway,
			forbidden: []string{"10.0.1.20", "dial tcp", "i/o timeout"},
		},
		{
			name:      "llm provider error with key hint",
			err:       domain.NewSummarizationError(domain.RunStateConsolidating, -1, errors.New("401: invalid x-api-key sk-ant-XXXX")),
			wantCode:  http.StatusBadGateway,
			forbidden: []string{"sk-ant", "x-api-key", "401"},
		},
		{
			name:      "extraction with file path",
			err:       domain.NewExtractionError("2401.00001", "pdf parse", errors.New("open /tmp/digest-123/paper.pdf: permission denied")),
			wantCode:  http.StatusUnprocessableEntity,
			forbidden: []string{"/tmp/digest-123", "permission denied"},
		},
	}

	for _, tc := range sensitiveErrors {
		t.Run(tc.name, func(t *testing.T) {
			runner := &mockRunner{
				runFn: func(context.Context, pipeline.Request) (*domain.Report, error) {
					return nil, tc.err
				},
			}
			srv := newTestHTTPServer(runner, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/summaries", bytes.NewBufferString(`{"reference":"2401.00001"}`))
			rr := serveHTTP(srv, req)

			if rr.Code != tc.wantCode {
				t.Errorf("expected status %d, got %d", tc.wantCode, rr.Code)
			}
			responseBody := rr.Body.String()
			for _, fragment := range tc.forbidden {
				if strings.Contains(responseBody, fragment) {
					t.Errorf("response body contains sensitive fragment %q: %s", fragment, responseBody)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestXSSPayload_ReferenceField
// ---------------------------------------------------------------------------

// TestXSSPayload_ReferenceField verifies that HTML in a rejected reference is
// escaped in the JSON error body.
func TestXSSPayload_ReferenceField(t *testing.T) {
	payloads := []struct {
		name    string
		ref     string
		mustNot []string
	}{
		{"script tag", "<script>alert('xss')</script>", []string{"<script>", "</script>"}},
		{"img onerror", `<img src=x onerror=alert('xss')>`, []string{"<img"}},
		{"svg tag", `<svg/onload=alert('xss')>`, []string{"<svg"}},
		{"iframe injection", `<iframe src="javascript:alert('xss')">`, []string{"<iframe"}},
	}

	for _, tc := range payloads {
		t.Run(tc.name, func(t *testing.T) {
			runner := &mockRunner{
				runFn: func(_ context.Context, req pipeline.Request) (*domain.Report, error) {
					return nil, domain.NewInvalidReferenceError(req.Reference, "no arXiv identifier found")
				},
			}
			srv := newTestHTTPServer(runner, nil)

			bodyBytes, err := json.Marshal(map[string]string{"reference": tc.ref})
			if err != nil {
				t.Fatalf("failed to marshal request body: %v", err)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/summaries", bytes.NewBuffer(bodyBytes))
			rr := serveHTTP(srv, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rr.Code)
			}
			for _, forbidden := range tc.mustNot {
				if strings.Contains(rr.Body.String(), forbidden) {
					t.Errorf("response contains unescaped HTML %q: %s", forbidden, rr.Body.String())
				}
			}
			if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
				t.Errorf("expected Content-Type application/json, got %q", ct)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestWriteDomainError_NeverLeaksInternalDetails
// ---------------------------------------------------------------------------

func TestWriteDomainError_NeverLeaksInternalDetails(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"generic error with DB details", fmt.Errorf("FATAL: password authentication failed for user \"admin\"")},
		{"wrapped sqlite error", fmt.Errorf("repository: %w", errors.New("SQL logic error: no such table: reports"))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeDomainError(rr, tc.err)

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("expected status 500, got %d", rr.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] != "internal server error" {
				t.Errorf("expected generic error, got %q", resp["error"])
			}
		})
	}

	t.Run("nil error is no-op", func(t *testing.T) {
		rr := httptest.NewRecorder()
		writeDomainError(rr, nil)
		if rr.Body.Len() != 0 {
			t.Errorf("expected empty body, got %q", rr.Body.String())
		}
	})
}
