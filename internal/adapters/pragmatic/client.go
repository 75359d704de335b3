package pragmatic

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Rate limit conservador: el provider bloquea IPs agresivas.
	authRatePerSec = 2

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	defaultHTTPTimeout = 10 * time.Second
)

// httpClient es el HTTP client base con rate limiting y retries.
type httpClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(timeout time.Duration) *httpClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &httpClient{
		// CheckRedirect deshabilitado: el handshake de credenciales extrae
		// el token del header Location de un 302 sin seguirlo.
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		limiter: rate.NewLimiter(authRatePerSec, 2),
	}
}

// doWithRetry ejecuta la request con backoff exponencial y jitter.
// Solo 429 y 5xx se reintentan; los 4xx son terminales para el caller.
func (c *httpClient) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			if attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
			if attempt == maxRetries {
				return nil, fmt.Errorf("%w after %d retries", lastErr, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		return resp, nil
	}
	return nil, lastErr
}

// sleep espera con backoff exponencial + jitter, respetando el contexto.
func (c *httpClient) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(float64(baseRetryWait) * math.Pow(2, float64(attempt)))
	wait += time.Duration(rand.Int63n(int64(wait) / 2))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
