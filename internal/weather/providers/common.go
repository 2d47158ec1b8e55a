package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-poller/internal/weather"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 1 << 20

var (
	// ErrCircuitOpen is returned without sending a request while the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	errNoHTTPClient = errors.New("http client not configured")
)

// BreakerConfig controls when a provider stops sending requests after
// consecutive failures. It never retries a request.
type BreakerConfig struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
}

// DefaultBreakerConfig trips after five straight failures and probes again after two minutes.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxConsecutiveFailures: 5,
		OpenTimeout:            2 * time.Minute,
	}
}

func newCircuitBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = DefaultBreakerConfig().MaxConsecutiveFailures
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
}

// doRequest sends req exactly once through the circuit breaker and returns
// the response body of a 2xx reply.
func doRequest(
	ctx context.Context,
	provider string,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	req *http.Request,
) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	// Ensure the request obeys context cancellation.
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, &weather.TransportError{Provider: provider, Err: execErr}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &weather.ProviderError{Provider: provider, StatusCode: resp.StatusCode}
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, &weather.TransportError{Provider: provider, Err: fmt.Errorf("read body: %w", readErr)}
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.TransportError{Provider: provider, Err: fmt.Errorf("%w: %v", ErrCircuitOpen, err)}
		}
		return nil, err
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return body, nil
}
