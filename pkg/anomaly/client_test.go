package anomaly

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Classify(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ANOMALY","score":0.97}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	result, err := client.Classify(context.Background(), SuspiciousFeatures(78, 100000))

	require.NoError(t, err)
	assert.True(t, result.IsAnomaly())
	assert.Equal(t, 0.97, result.Score)
	assert.Len(t, got.Features, 78)
}

func TestClient_Classify_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		isParse bool
	}{
		{"server error", http.StatusInternalServerError, `{"status":"ANOMALY","score":1}`, false},
		{"bad request", http.StatusBadRequest, `{"detail":"bad features"}`, false},
		{"malformed body", http.StatusOK, `not json`, false},
		{"missing status", http.StatusOK, `{"score":0.5}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewClient(server.URL, nil).Classify(context.Background(), []float64{1})
			require.Error(t, err)
			assert.False(t, result.IsAnomaly())
			if tt.isParse {
				assert.ErrorIs(t, err, ErrMalformedResponse)
			}
		})
	}
}

func TestClient_Classify_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL, nil).Classify(ctx, []float64{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Classify_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, nil).Classify(context.Background(), []float64{1})
	assert.Error(t, err)
}
