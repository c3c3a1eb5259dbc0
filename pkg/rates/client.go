// Package rates provides the live currency-rate lookup used during
// prize conversion. The enricher treats it as optional: any failure
// falls back to the static table.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/hacksignal/hacksignal/internal/config"
	"github.com/hacksignal/hacksignal/internal/model"
	"github.com/hacksignal/hacksignal/internal/resilience"
)

// Client fetches USD conversion rates over HTTP. It satisfies the
// enricher's RateSource.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a rate client from config.
func New(cfg config.RatesConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	perSec := cfg.RequestsPerSec
	if perSec <= 0 {
		perSec = 2
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

type rateResponse struct {
	Symbol  string  `json:"symbol"`
	RateUSD float64 `json:"rate_usd"`
}

// Rate returns the USD value of one unit of the given currency.
// Throttled requests and server errors come back as transient so the
// caller's retry policy applies.
func (c *Client) Rate(ctx context.Context, currency model.Currency) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "rates: rate limit wait")
	}

	url := fmt.Sprintf("%s/v1/rates/%s", c.baseURL, currency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, eris.Wrap(err, "rates: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &resilience.TransientError{Err: eris.Wrap(err, "rates: request")}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return 0, &resilience.TransientError{
			Err:        eris.Errorf("rates: status %d for %s", resp.StatusCode, currency),
			StatusCode: resp.StatusCode,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("rates: status %d for %s", resp.StatusCode, currency)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, eris.Wrap(err, "rates: read body")
	}

	var parsed rateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, eris.Wrapf(err, "rates: decode body for %s", currency)
	}
	if parsed.RateUSD <= 0 {
		return 0, eris.Errorf("rates: non-positive rate %.4f for %s", parsed.RateUSD, currency)
	}
	return parsed.RateUSD, nil
}
