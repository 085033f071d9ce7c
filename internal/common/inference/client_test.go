package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"founder-scheduler/internal/common/config"
	apperrors "founder-scheduler/internal/common/errors"
	"founder-scheduler/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig(baseURL string) config.InferenceConfig {
	return config.InferenceConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "deepseek-chat",
		Temperature: 0.5,
		MaxTokens:   1024,
		Timeout:     2000,
		MaxRetries:  2,
	}
}

func chatCompletion(content string) string {
	data, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(data)
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deepseek-chat", body.Model)
		assert.Equal(t, 0.5, body.Temperature)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		assert.Equal(t, "You extract preferences.", body.Messages[0].Content)
		assert.Equal(t, "user", body.Messages[1].Role)
		assert.Equal(t, "I am building a fintech startup", body.Messages[1].Content)

		_, _ = w.Write([]byte(chatCompletion(`{"industry":"fintech"}`)))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	out, err := client.Complete(context.Background(), Request{
		Stage:        "UserAgent",
		SystemPrompt: "You extract preferences.",
		UserContent:  "I am building a fintech startup",
	})

	require.NoError(t, err)
	assert.Equal(t, `{"industry":"fintech"}`, out)
}

func TestClient_Complete_Retries(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []int
		expectErr     error
		expectedCalls int32
	}{
		{"recovers after server error", []int{500, 200}, nil, 2},
		{"recovers after rate limit", []int{429, 429, 200}, nil, 3},
		{"exhausts retry budget", []int{503, 503, 503, 503}, apperrors.ErrInferenceFailed, 3},
		{"client error is not retried", []int{400}, apperrors.ErrInferenceFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				status := tt.statuses[int(n)-1]
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = w.Write([]byte(chatCompletion("[]")))
					return
				}
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t), WithInitialBackoff(time.Millisecond))
			out, err := client.Complete(context.Background(), Request{Stage: "InvestorAgent"})

			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "[]", out)
			}
			assert.Equal(t, tt.expectedCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestClient_Complete_RetryOverrides(t *testing.T) {
	zero, one := 0, 1
	tests := []struct {
		name          string
		cfgRetries    int
		reqRetries    *int
		expectedCalls int32
	}{
		{"retries disabled in config", 0, nil, 1},
		{"request disables retries", 2, &zero, 1},
		{"request enables retries", 0, &one, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer server.Close()

			cfg := createTestConfig(server.URL)
			cfg.MaxRetries = tt.cfgRetries
			client := NewClient(cfg, logger.NewTestLogger(t), WithInitialBackoff(time.Millisecond))
			_, err := client.Complete(context.Background(), Request{Stage: "CommuteAgent", MaxRetries: tt.reqRetries})

			assert.ErrorIs(t, err, apperrors.ErrInferenceFailed)
			assert.Equal(t, tt.expectedCalls, atomic.LoadInt32(&calls))
		})
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t), WithInitialBackoff(time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, Request{Stage: "GeolocationAgent"})
	assert.ErrorIs(t, err, apperrors.ErrInferenceTimeout)
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewClient(createTestConfig(server.URL), logger.NewTestLogger(t))
	_, err := client.Complete(context.Background(), Request{Stage: "EventAgent"})
	assert.ErrorIs(t, err, apperrors.ErrInferenceFailed)
}

func TestBackendFunc(t *testing.T) {
	var backend Backend = BackendFunc(func(ctx context.Context, req Request) (string, error) {
		return req.Stage + ":" + req.UserContent, nil
	})
	out, err := backend.Complete(context.Background(), Request{Stage: "CommuteAgent", UserContent: "x"})
	require.NoError(t, err)
	assert.Equal(t, "CommuteAgent:x", out)
}
