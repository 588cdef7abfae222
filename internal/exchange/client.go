// Package exchange implements the single upstream collaborator the Bar
// Fetcher depends on: a rate-limited, retrying OHLCV fetch.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/quantrail/internal/domain"
)

const (
	defaultRatePerSec = 10
	defaultBurst      = 20
	maxRetries        = 3
	baseRetryWait     = 500 * time.Millisecond
)

// Client fetches OHLCV bars from an upstream exchange's REST API over a
// single rate-limited, retrying HTTP client.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient builds a Client against baseURL (e.g. "https://api.exchange.example").
func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: baseURL,
		limiter: rate.NewLimiter(defaultRatePerSec, defaultBurst),
	}
}

type rawOHLCV [][]float64

// FetchOHLCV fetches up to limit bars for symbol/tf starting at sinceMs,
// ordered ascending by time. Implements ports.ExchangeClient.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf domain.Timeframe, sinceMs int64, limit int) ([]domain.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", string(tf))
	q.Set("since", strconv.FormatInt(sinceMs, 10))
	q.Set("limit", strconv.Itoa(limit))
	endpoint := c.baseURL + "/ohlcv?" + q.Encode()

	var raw rawOHLCV
	if err := c.doWithRetry(ctx, endpoint, &raw); err != nil {
		return nil, fmt.Errorf("exchange.FetchOHLCV: %w", err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		bars = append(bars, domain.Bar{
			TimeMs: int64(row[0]),
			Open:   row[1],
			High:   row[2],
			Low:    row[3],
			Close:  row[4],
			Volume: row[5],
		})
	}
	return bars, nil
}

func (c *Client) doWithRetry(ctx context.Context, endpoint string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, bytes.NewReader(nil))
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by exchange", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
