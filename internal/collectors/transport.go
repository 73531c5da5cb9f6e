package collectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/hetulpatel/arbscan/internal/logging"
)

const maxBodyBytes = 32 << 20

// TransportConfig controls the shared HTTP behaviour of a venue client.
type TransportConfig struct {
	Name         string
	Timeout      time.Duration
	MaxAttempts  int
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	RequestDelay time.Duration // minimum spacing between requests; 0 disables
	Headers      map[string]string
	HTTPClient   *http.Client
}

// Transport performs GET requests with retry/backoff, optional request
// spacing and a circuit breaker per venue.
type Transport struct {
	cfg        TransportConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// NewTransport builds a transport, filling unset fields with defaults.
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 10 * time.Second
		if cfg.MaxBackoff < cfg.MinBackoff {
			cfg.MaxBackoff = cfg.MinBackoff
		}
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	t := &Transport{cfg: cfg, httpClient: client}
	if cfg.RequestDelay > 0 {
		t.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	t.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warnf("[%s] circuit breaker %s -> %s", name, from, to)
		},
		IsSuccessful: breakerSuccess,
	})
	return t
}

// GetJSON fetches rawURL and decodes the body into dst.
func (t *Transport) GetJSON(ctx context.Context, rawURL string, dst any) error {
	body, err := t.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, t.cfg.Name, err)
	}
	return nil
}

// Get returns the body of a successful response. Transient failures that
// survive every attempt are wrapped in ErrTransient.
func (t *Transport) Get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxAttempts; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				// Wait refuses early when the delay would outlast the deadline.
				return nil, fmt.Errorf("%s: rate limit wait: %w", t.cfg.Name, context.DeadlineExceeded)
			}
		}

		body, err := t.breaker.Execute(func() ([]byte, error) {
			return t.once(ctx, rawURL)
		})
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransient, t.cfg.Name, err)
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			if statusErr.Code == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, t.cfg.Name, err)
			}
			return nil, fmt.Errorf("%s: %w", t.cfg.Name, err)
		}

		lastErr = err
		if attempt < t.cfg.MaxAttempts {
			logging.Debugf("[%s] attempt %d failed: %v", t.cfg.Name, attempt, err)
			if err := sleep(ctx, t.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrTransient, t.cfg.Name, lastErr)
}

func (t *Transport) once(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// backoff doubles from MinBackoff and is capped at MaxBackoff.
func (t *Transport) backoff(attempt int) time.Duration {
	d := t.cfg.MinBackoff << uint(attempt-1)
	if d <= 0 || d > t.cfg.MaxBackoff {
		d = t.cfg.MaxBackoff
	}
	return d
}

// breakerSuccess keeps client errors and cancellations from tripping the
// breaker: the venue answered, or we stopped waiting.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return !statusErr.Retryable()
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
