package eval

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/resilience"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.NewRetryConfig(attempts, time.Millisecond, 5*time.Millisecond)
}

func TestHTTPAsker_Ask(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, AnswerPath, r.URL.Path)
		var req AnswerRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := model.NewResponse(req.Question, model.TransformPoint)
		resp.Value = model.Ptr(3.5)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer ts.Close()

	a := NewHTTPAsker(ts.URL + "/")
	resp, err := a.Ask(context.Background(), "What was UNRATE in May 2019?")
	require.NoError(t, err)
	assert.Equal(t, "What was UNRATE in May 2019?", resp.Question)
	require.NotNil(t, resp.Value)
	assert.InDelta(t, 3.5, *resp.Value, 1e-9)
}

func TestHTTPAsker_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(model.NewResponse("q", model.TransformPoint)) //nolint:errcheck
	}))
	defer ts.Close()

	a := NewHTTPAsker(ts.URL, WithRetry(fastRetry(3)))
	_, err := a.Ask(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPAsker_PermanentStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"question is required"}`)) //nolint:errcheck
	}))
	defer ts.Close()

	a := NewHTTPAsker(ts.URL, WithRetry(fastRetry(3)))
	_, err := a.Ask(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval: answer returned 400")
	assert.Contains(t, err.Error(), "question is required")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPAsker_BadBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json")) //nolint:errcheck
	}))
	defer ts.Close()

	a := NewHTTPAsker(ts.URL, WithHTTPClient(ts.Client()))
	_, err := a.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eval: decode answer")
}

func TestHTTPAsker_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	a := NewHTTPAsker(ts.URL, WithRetry(fastRetry(1)))
	for range 5 {
		_, err := a.Ask(context.Background(), "q")
		require.Error(t, err)
	}
	_, err := a.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(5), calls.Load())
}
