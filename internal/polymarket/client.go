// Package polymarket provides the read-only data-api client supplying the
// engine's two inputs: recent whale trades grouped per market, and price
// history converted into momentum samples.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/whalefuse/whalefuse/internal/models"
)

// Client provides access to the Polymarket data API
type Client struct {
	apiBaseURL  string
	httpClient  *http.Client
	minTradeUSD float64
	maxRetries  int
}

// apiTrade mirrors one trade row from the data API
type apiTrade struct {
	ProxyWallet string  `json:"proxyWallet"`
	Side        string  `json:"side"`
	Outcome     string  `json:"outcome"`
	Size        float64 `json:"size"`
	Price       float64 `json:"price"`
	Timestamp   int64   `json:"timestamp"`
	ConditionID string  `json:"conditionId"`
	Title       string  `json:"title"`
}

// apiPricePoint mirrors one point of the prices-history endpoint
type apiPricePoint struct {
	T int64   `json:"t"`
	P float64 `json:"p"`
}

// NewClient creates a new data-api client. Trades below minTradeUSD are
// dropped at the boundary; only whale-sized observations reach the engine.
func NewClient(apiBaseURL string, timeout time.Duration, minTradeUSD float64, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		apiBaseURL:  apiBaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		minTradeUSD: minTradeUSD,
		maxRetries:  maxRetries,
	}
}

// MarketActivity is one market's observed whale trades plus its question.
type MarketActivity struct {
	MarketID string
	Question string
	Trades   []models.WhaleTrade
}

// FetchWhaleTrades retrieves recent trades, filters them to whale size and
// the lookback window, and groups them per market. Trades arriving out of
// timestamp order are kept as-is; decay weighting is timestamp-based.
func (c *Client) FetchWhaleTrades(ctx context.Context, lookback time.Duration) (map[string]*MarketActivity, error) {
	u := fmt.Sprintf("%s/trades?limit=500&takerOnly=true", c.apiBaseURL)

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trades: %w", err)
	}
	defer resp.Body.Close()

	var rows []apiTrade
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode trades: %w", err)
	}

	cutoff := time.Now().Add(-lookback)
	markets := make(map[string]*MarketActivity)

	for _, row := range rows {
		usd := row.Size * row.Price
		if usd < c.minTradeUSD {
			continue
		}
		ts := time.Unix(row.Timestamp, 0).UTC()
		if ts.Before(cutoff) {
			continue
		}

		trade := models.WhaleTrade{
			Wallet:         row.ProxyWallet,
			MarketID:       row.ConditionID,
			MarketQuestion: row.Title,
			Category:       models.DetectCategory(row.Title),
			Outcome:        row.Outcome,
			Side:           row.Side,
			SizeUSD:        usd,
			Price:          row.Price,
			Timestamp:      ts,
		}
		if err := trade.Validate(); err != nil {
			continue
		}

		m, ok := markets[trade.MarketID]
		if !ok {
			m = &MarketActivity{MarketID: trade.MarketID, Question: trade.MarketQuestion}
			markets[trade.MarketID] = m
		}
		m.Trades = append(m.Trades, trade)
	}
	return markets, nil
}

// FetchPriceHistory retrieves a market's price series and derives momentum
// samples with per-interval returns, oldest first.
func (c *Client) FetchPriceHistory(ctx context.Context, marketID string, lookback time.Duration) ([]models.MomentumSample, error) {
	u := fmt.Sprintf("%s/prices-history?market=%s&fidelity=10&startTs=%d",
		c.apiBaseURL, url.QueryEscape(marketID), time.Now().Add(-lookback).Unix())

	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		History []apiPricePoint `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode price history: %w", err)
	}

	samples := make([]models.MomentumSample, 0, len(payload.History))
	var prev float64
	for i, pt := range payload.History {
		if pt.P <= 0 {
			continue
		}
		s := models.MomentumSample{
			MarketID:  marketID,
			Price:     pt.P,
			Timestamp: time.Unix(pt.T, 0).UTC(),
		}
		if i > 0 && prev > 0 {
			s.Return = (pt.P - prev) / prev
		}
		prev = pt.P
		samples = append(samples, s)
	}
	return samples, nil
}

// apiMarket mirrors the resolution-relevant fields of a market row
type apiMarket struct {
	ConditionID   string   `json:"conditionId"`
	Closed        bool     `json:"closed"`
	Outcomes      []string `json:"outcomes"`
	OutcomePrices []string `json:"outcomePrices"`
}

// Resolution reports a settled market and its winning outcome.
type Resolution struct {
	MarketID       string
	WinningOutcome string
}

// FetchResolutions checks which of the given markets have settled and
// returns their winning outcomes. Markets still open are omitted.
func (c *Client) FetchResolutions(ctx context.Context, marketIDs []string) ([]Resolution, error) {
	var resolutions []Resolution

	for _, id := range marketIDs {
		u := fmt.Sprintf("%s/markets?condition_ids=%s", c.apiBaseURL, url.QueryEscape(id))

		resp, err := c.doRequest(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch market %s: %w", id, err)
		}

		var rows []apiMarket
		err = json.NewDecoder(resp.Body).Decode(&rows)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode market %s: %w", id, err)
		}

		for _, row := range rows {
			if row.ConditionID != id || !row.Closed {
				continue
			}
			winner := winningOutcome(row.Outcomes, row.OutcomePrices)
			if winner == "" {
				continue
			}
			resolutions = append(resolutions, Resolution{MarketID: id, WinningOutcome: winner})
		}
	}
	return resolutions, nil
}

// winningOutcome picks the outcome whose settlement price is highest.
func winningOutcome(outcomes, prices []string) string {
	best := ""
	bestPrice := -1.0
	for i, o := range outcomes {
		if i >= len(prices) {
			break
		}
		var p float64
		if _, err := fmt.Sscanf(prices[i], "%f", &p); err != nil {
			continue
		}
		if p > bestPrice {
			bestPrice = p
			best = o
		}
	}
	return best
}

// doRequest performs an HTTP GET with retry on transport and 5xx errors
func (c *Client) doRequest(ctx context.Context, u string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
