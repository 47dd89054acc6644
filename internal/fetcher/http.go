package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fredqa/internal/resilience"
)

// FREDHost is the FRED API host.
const FREDHost = "api.stlouisfed.org"

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
	Retry     resilience.RetryConfig
	// Limiters overrides the adaptive per-host limiters.
	Limiters map[string]*AdaptiveLimiter
	// DefaultRate applies to hosts without a limiter.
	DefaultRate rate.Limit
}

// AdaptiveLimiter is a rate.Limiter that speeds up 20% per success (to 2x
// the initial rate) and halves on 429 (to a quarter of it).
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	initial rate.Limit
	current rate.Limit
}

// NewAdaptiveLimiter returns a limiter starting at r with the given burst.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{limiter: rate.NewLimiter(r, burst), initial: r, current: r}
}

// Wait blocks until a request may proceed.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate.
func (a *AdaptiveLimiter) OnSuccess() {
	a.set(min(a.Limit()*1.2, a.initial*2))
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	next := max(a.Limit()*0.5, a.initial/4)
	a.set(next)
	zap.L().Warn("fetcher: rate limited, slowing down", zap.Float64("rate", float64(next)))
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = r
	a.limiter.SetLimit(r)
}

// DefaultLimiters returns the per-host limiters. FRED allows 120 requests
// per minute per key.
func DefaultLimiters() map[string]*AdaptiveLimiter {
	return map[string]*AdaptiveLimiter{
		FREDHost: NewAdaptiveLimiter(2, 2),
	}
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client   *http.Client
	opts     HTTPOptions
	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher returns a fetcher with defaults applied.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "fredqa/1.0"
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.DefaultRate <= 0 {
		opts.DefaultRate = 20
	}
	limiters := opts.Limiters
	if limiters == nil {
		limiters = DefaultLimiters()
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(host string) *AdaptiveLimiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(f.opts.DefaultRate, int(f.opts.DefaultRate))
		f.limiters[host] = lim
	}
	return lim
}

// Download GETs rawURL. 429 and 5xx responses are retried with backoff;
// other non-200 statuses fail immediately.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	lim := f.limiterFor(u.Host)
	safe := redact(u)

	retry := f.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, err error) {
			zap.L().Warn("fetcher: retrying",
				zap.String("url", safe),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (io.ReadCloser, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", f.opts.UserAgent)

		resp, err := f.client.Do(req)
		if err != nil {
			var ue *url.Error
			if errors.As(err, &ue) {
				err = ue.Err
			}
			return nil, eris.Wrapf(err, "fetcher: get %s", safe)
		}
		if resp.StatusCode == http.StatusOK {
			lim.OnSuccess()
			return resp.Body, nil
		}

		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		_ = resp.Body.Close()
		statusErr := eris.New(fmt.Sprintf("fetcher: status %d from %s: %s",
			resp.StatusCode, safe, strings.TrimSpace(string(snippet))))
		if resp.StatusCode == http.StatusTooManyRequests {
			lim.OnRateLimit()
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	})
}

// redact hides the api_key query parameter in logs and errors.
func redact(u *url.URL) string {
	q := u.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
		c := *u
		c.RawQuery = q.Encode()
		return c.String()
	}
	return u.String()
}
