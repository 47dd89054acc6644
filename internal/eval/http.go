package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fredqa/internal/model"
	"github.com/sells-group/fredqa/internal/resilience"
)

// AnswerPath is the answer endpoint served by `fredqa serve`.
const AnswerPath = "/v1/answer"

// AnswerRequest is the body of POST /v1/answer.
type AnswerRequest struct {
	Question string `json:"question"`
}

// HTTPAsker asks a remote fredqa server. Transient failures are retried and
// repeated failures open a circuit so a dead server fails cases quickly.
type HTTPAsker struct {
	baseURL string
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// HTTPAskerOption configures an HTTPAsker.
type HTTPAskerOption func(*HTTPAsker)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPAskerOption {
	return func(a *HTTPAsker) { a.client = c }
}

// WithRetry replaces the retry policy.
func WithRetry(cfg resilience.RetryConfig) HTTPAskerOption {
	return func(a *HTTPAsker) { a.retry = cfg }
}

// NewHTTPAsker returns an asker for the server at baseURL.
func NewHTTPAsker(baseURL string, opts ...HTTPAskerOption) *HTTPAsker {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("fredqa", "answer")
	a := &HTTPAsker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:       "fredqa",
			ShouldTrip: resilience.IsTransient,
		}),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Ask posts the question and decodes the response.
func (a *HTTPAsker) Ask(ctx context.Context, question string) (*model.Response, error) {
	body, err := json.Marshal(AnswerRequest{Question: question})
	if err != nil {
		return nil, eris.Wrap(err, "eval: encode question")
	}
	return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*model.Response, error) {
		return resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (*model.Response, error) {
			return a.post(ctx, body)
		})
	})
}

func (a *HTTPAsker) post(ctx context.Context, body []byte) (*model.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+AnswerPath, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "eval: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "eval: post answer")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.New(fmt.Sprintf("eval: answer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out model.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "eval: decode answer")
	}
	return &out, nil
}
