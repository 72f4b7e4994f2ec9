package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time check that OpenAIProvider implements Completer.
var _ Completer = (*OpenAIProvider)(nil)

// newOpenAITestServer creates an httptest server that responds with the given handler.
func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// newOpenAITestProvider creates an OpenAIProvider configured to use the test server.
func newOpenAITestProvider(t *testing.T, serverURL string) *OpenAIProvider {
	t.Helper()
	cfg := OpenAIConfig{
		APIKey:  "test-api-key",
		Model:   "gpt-4o-mini",
		BaseURL: serverURL,
	}
	return NewOpenAIProvider(cfg, 0.3, 5*time.Second)
}

func writeOpenAIText(w http.ResponseWriter, text, finish string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{
		ID:    "chatcmpl-test",
		Model: "gpt-4o-mini-2024-07-18",
		Choices: []chatChoice{
			{Index: 0, Message: chatMessage{Role: "assistant", Content: text}, FinishReason: finish},
		},
		Usage: chatUsage{PromptTokens: 200, CompletionTokens: 64, TotalTokens: 264},
	})
}

func TestOpenAIProvider_Complete(t *testing.T) {
	t.Run("sends system and user messages", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			assert.Equal(t, "gpt-4o-mini", req.Model)
			assert.InDelta(t, 0.3, req.Temperature, 0.001)
			assert.Equal(t, 300, req.MaxTokens)
			assert.Nil(t, req.ResponseFormat)
			require.Len(t, req.Messages, 2)
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "Be brief.", req.Messages[0].Content)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "Summarize.", req.Messages[1].Content)

			writeOpenAIText(w, "A short summary.\n", "stop")
		})

		provider := newOpenAITestProvider(t, server.URL)
		got, err := provider.Complete(context.Background(), Request{
			System:    "Be brief.",
			Prompt:    "Summarize.",
			MaxTokens: 300,
		})

		require.NoError(t, err)
		assert.Equal(t, "A short summary.", got.Text)
		assert.Equal(t, "gpt-4o-mini-2024-07-18", got.Model)
		assert.Equal(t, 200, got.InputTokens)
		assert.Equal(t, 64, got.OutputTokens)
		assert.Equal(t, "stop", got.StopReason)
	})

	t.Run("json mode sets response format", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			var req chatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.ResponseFormat)
			assert.Equal(t, "json_object", req.ResponseFormat.Type)
			assert.Equal(t, defaultOpenAIMaxTokens, req.MaxTokens)
			require.Len(t, req.Messages, 1, "no system message when System is empty")

			writeOpenAIText(w, `{"Method":"attention"}`, "stop")
		})

		got, err := newOpenAITestProvider(t, server.URL).Complete(context.Background(), Request{
			Prompt: "Extract sections.",
			JSON:   true,
		})
		require.NoError(t, err)
		assert.Equal(t, `{"Method":"attention"}`, got.Text)
	})
}

func TestOpenAIProvider_Complete_Empty(t *testing.T) {
	t.Run("no choices", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(chatResponse{ID: "x"})
		})
		_, err := newOpenAITestProvider(t, server.URL).Complete(context.Background(), Request{Prompt: "p"})
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})

	t.Run("blank content", func(t *testing.T) {
		server := newOpenAITestServer(t, func(w http.ResponseWriter, _ *http.Request) {
			writeOpenAIText(w, " \n ", "length")
		})
		_, err := newOpenAITestProvider(t, server.URL).Complete(context.Background(), Request{Prompt: "p"})
		assert.ErrorIs(t, err, ErrEmptyCompletion)
		assert.Contains(t, err.Error(), "length")
	})
}

func TestOpenAIProvider_Complete_APIError(t *testing.T) {
	tests := []struct {
		name          string
		statusCode    int
		body          string
		retryAfter    string
		wantTransient bool
		wantCode      string
		wantWait      time.Duration
	}{
		{
			name:          "rate limit",
			statusCode:    http.StatusTooManyRequests,
			body:          `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			retryAfter:    "1.5",
			wantTransient: true,
			wantCode:      "rate_limit_exceeded",
			wantWait:      1500 * time.Millisecond,
		},
		{
			name:          "unauthorized",
			statusCode:    http.StatusUnauthorized,
			body:          `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantTransient: false,
			wantCode:      "invalid_api_key",
		},
		{
			name:          "server error",
			statusCode:    http.StatusInternalServerError,
			body:          `{"error":{"message":"The server had an error","type":"server_error"}}`,
			wantTransient: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newOpenAITestServer(t, func(w http.ResponseWriter, _ *http.Request) {
				if tc.retryAfter != "" {
					w.Header().Set("Retry-After", tc.retryAfter)
				}
				w.WriteHeader(tc.statusCode)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := newOpenAITestProvider(t, server.URL).Complete(context.Background(), Request{Prompt: "p"})

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, "openai", apiErr.Provider)
			assert.Equal(t, tc.statusCode, apiErr.StatusCode)
			assert.Equal(t, tc.wantTransient, apiErr.IsTransient())
			assert.Equal(t, tc.wantCode, apiErr.Code)
			assert.Equal(t, tc.wantWait, apiErr.RetryAfterDuration())
		})
	}
}

func TestOpenAIProvider_Complete_ContextCancelled(t *testing.T) {
	server := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newOpenAITestProvider(t, server.URL).Complete(ctx, Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIProvider_Provider(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"}, 0, 0)
	assert.Equal(t, "openai", p.Provider())
}

func TestOpenAIProvider_Model(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o"}, 0, 0)
		assert.Equal(t, "gpt-4o", p.Model())
	})
	t.Run("default", func(t *testing.T) {
		p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"}, 0, 0)
		assert.Equal(t, defaultOpenAIModel, p.Model())
	})
}

func TestNewOpenAIProvider(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: "http://localhost:8080/v1/"}, 0.5, 0)
	assert.Equal(t, "http://localhost:8080/v1", p.baseURL)
	assert.Equal(t, 120*time.Second, p.httpClient.Timeout)
	assert.InDelta(t, 0.5, p.temperature, 0.001)

	p = NewOpenAIProvider(OpenAIConfig{APIKey: "k"}, 0, 30*time.Second)
	assert.Equal(t, defaultOpenAIBaseURL, p.baseURL)
	assert.Equal(t, 30*time.Second, p.httpClient.Timeout)
}
