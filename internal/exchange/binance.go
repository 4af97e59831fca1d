// Package exchange
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/iphasm/Nexus-TB-sub003/internal/candle"
)

const (
	defaultBaseURL = "https://api.binance.com"

	backoffFactor = 2.0
	jitterRange   = 0.1 // ±10% jitter
)

// Client fetches public market data from Binance. It performs no
// authentication and submits no orders.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient builds a client with an optional proxy. Retry parameters of zero
// select the defaults (3 attempts, 2s base, 15s cap).
func NewClient(proxyURL string, maxRetries int, baseDelay, maxDelay time.Duration) (*Client, error) {
	transport := &http.Transport{}
	if proxyURL != "" {
		proxyParsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyParsed)
		log.WithField("proxy", proxyURL).Info("NewClient | using proxy")
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 15 * time.Second
	}
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second, Transport: transport},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}, nil
}

// FetchCandles downloads 1m..1d klines for [start, end) with retry and
// exponential backoff.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]candle.Candle, error) {
	switch timeframe {
	case "1m", "5m", "15m", "30m", "1h", "4h", "1d":
	default:
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	apiSymbol := strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
	startMs := start.UnixNano() / int64(time.Millisecond)
	endMs := end.UnixNano() / int64(time.Millisecond)

	apiURL := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&endTime=%d&limit=1000",
		c.baseURL, apiSymbol, timeframe, startMs, endMs)

	body, err := c.getWithRetry(ctx, apiURL, "FetchCandles")
	if err != nil {
		return nil, err
	}

	var rawCandles [][]any
	if err := json.Unmarshal(body, &rawCandles); err != nil {
		return nil, fmt.Errorf("failed to decode klines response: %w", err)
	}

	candles := make([]candle.Candle, 0, len(rawCandles))
	for _, raw := range rawCandles {
		if len(raw) < 6 {
			continue
		}
		ts, ok := parseTimestamp(raw[0])
		if !ok {
			log.WithField("value", raw[0]).Warn("FetchCandles | skipping kline with bad timestamp")
			continue
		}
		candles = append(candles, candle.Candle{
			Timestamp: time.Unix(ts/1000, 0).UTC(),
			Open:      parseNum(raw[1]),
			High:      parseNum(raw[2]),
			Low:       parseNum(raw[3]),
			Close:     parseNum(raw[4]),
			Volume:    parseNum(raw[5]),
			Symbol:    symbol,
			Timeframe: timeframe,
			Source:    "binance",
		})
	}

	log.WithFields(log.Fields{"symbol": symbol, "candles": len(candles)}).
		Debug("FetchCandles | download complete")
	return candles, nil
}

// FetchCandlesChunked downloads a long range in chunks of maxChunk, pacing
// requests to stay under public API rate limits.
func (c *Client) FetchCandlesChunked(ctx context.Context, symbol, timeframe string, start, end time.Time, maxChunk time.Duration) ([]candle.Candle, error) {
	if maxChunk <= 0 {
		maxChunk = 12 * time.Hour
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var all []candle.Candle
	for curr := start; curr.Before(end); {
		next := curr.Add(maxChunk)
		if next.After(end) {
			next = end
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during download: %w", ctx.Err())
		case <-ticker.C:
		}

		chunk, err := c.FetchCandles(ctx, symbol, timeframe, curr, next)
		if err != nil {
			return nil, fmt.Errorf("error fetching %s candles from %s to %s: %w",
				symbol, curr.Format(time.RFC3339), next.Format(time.RFC3339), err)
		}
		all = append(all, chunk...)
		curr = next
	}

	return candle.SortAndDeduplicate(all), nil
}

type tickerEntry struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
	LastPrice   string `json:"lastPrice"`
}

// Fetch24hVolumes returns the 24h quote volume (USD for USDT pairs) per
// symbol. An empty symbol list returns every USDT pair.
func (c *Client) Fetch24hVolumes(ctx context.Context, symbols []string) (map[string]float64, error) {
	body, err := c.getWithRetry(ctx, c.baseURL+"/api/v3/ticker/24hr", "Fetch24hVolumes")
	if err != nil {
		return nil, err
	}

	var entries []tickerEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode 24hr ticker response: %w", err)
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[strings.ToUpper(s)] = true
	}

	volumes := make(map[string]float64)
	for _, e := range entries {
		if len(want) > 0 && !want[e.Symbol] {
			continue
		}
		if len(want) == 0 && !strings.HasSuffix(e.Symbol, "USDT") {
			continue
		}
		vol, err := strconv.ParseFloat(e.QuoteVolume, 64)
		if err != nil {
			continue
		}
		volumes[e.Symbol] = vol
	}
	return volumes, nil
}

// TopSymbolsByVolume returns the topN USDT symbols ranked by 24h quote volume.
func (c *Client) TopSymbolsByVolume(ctx context.Context, topN int) ([]string, error) {
	volumes, err := c.Fetch24hVolumes(ctx, nil)
	if err != nil {
		return nil, err
	}

	symbols := make([]string, 0, len(volumes))
	for s := range volumes {
		symbols = append(symbols, s)
	}
	sort.Slice(symbols, func(i, j int) bool {
		return volumes[symbols[i]] > volumes[symbols[j]]
	})
	if topN > 0 && len(symbols) > topN {
		symbols = symbols[:topN]
	}
	return symbols, nil
}

// getWithRetry performs a GET with exponential backoff and jitter, retrying
// on network errors and retryable HTTP statuses.
func (c *Client) getWithRetry(ctx context.Context, apiURL, op string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return nil, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("network error on attempt %d: %w", attempt+1, err)
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()

			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("error reading response on attempt %d: %w", attempt+1, readErr)
			case resp.StatusCode == http.StatusOK:
				return body, nil
			case isRetryableHTTPStatus(resp.StatusCode):
				lastErr = fmt.Errorf("API error (status %d) on attempt %d: %s", resp.StatusCode, attempt+1, string(body))
			default:
				return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
			}
		}

		log.WithField("op", op).Warnf("%v", lastErr)

		if attempt < c.maxRetries-1 {
			delay := retryDelay(attempt, c.baseDelay, c.maxDelay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("%s failed after %d attempts, last error: %w", op, c.maxRetries, lastErr)
}

// retryDelay applies exponential backoff with jitter to avoid thundering herd.
func retryDelay(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	delay := float64(baseDelay) * math.Pow(backoffFactor, float64(attempt))
	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}
	jitter := delay * jitterRange * (2*rand.Float64() - 1)
	delay += jitter
	if delay < 0 {
		delay = float64(baseDelay)
	}
	return time.Duration(delay)
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func parseTimestamp(val any) (int64, bool) {
	switch v := val.(type) {
	case float64:
		return int64(v), true
	case string:
		ts, err := strconv.ParseInt(v, 10, 64)
		return ts, err == nil
	default:
		return 0, false
	}
}

func parseNum(val any) float64 {
	switch n := val.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
