// Package coingecko is a keyless client for the public CoinGecko v3 API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/namelens/coinbridge/internal/config"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/upstream"
)

const (
	DefaultBaseURL = "https://api.coingecko.com/api/v3"
	DefaultTimeout = 10 * time.Second

	// ChartTimeout is longer because market_chart payloads are large.
	ChartTimeout = 15 * time.Second

	category = "coingecko"
)

// Client queries CoinGecko through a coordinator. The free tier allows about
// 30 calls a minute, which the coordinator's weight budget enforces.
type Client struct {
	coord   *coordinator.Coordinator
	http    *resty.Client
	baseURL string
}

// New creates a client. Empty baseURL and zero timeout take the defaults; a
// nil coordinator gets a private one with the built-in CoinGecko policies.
func New(coord *coordinator.Coordinator, baseURL string, timeout time.Duration) *Client {
	if coord == nil {
		coord = coordinator.New(config.PoolCoinGecko, coordinator.CoinGeckoPolicies(), coordinator.WithMaxWeight(30))
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		coord:   coord,
		http:    resty.New().SetTimeout(timeout).SetHeader("Accept", "application/json"),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Coordinator exposes the coordinator backing the client.
func (c *Client) Coordinator() *coordinator.Coordinator {
	return c.coord
}

// SimplePrice returns USD quotes keyed by coin id. Unknown ids are absent
// from the result.
func (c *Client) SimplePrice(ctx context.Context, ids []string) (map[string]Quote, error) {
	joined := strings.Join(SplitIDs(ids), ",")
	return get[map[string]Quote](ctx, c, "/simple/price", coordinator.Params{
		"ids":                     joined,
		"vs_currencies":           "usd",
		"include_24hr_change":     "true",
		"include_24hr_vol":        "true",
		"include_market_cap":      "true",
		"include_last_updated_at": "true",
	}, 0)
}

// Coin returns the key market fields for one coin.
func (c *Client) Coin(ctx context.Context, id string) (CoinSummary, error) {
	raw, err := get[coinResponse](ctx, c, "/coins/"+url.PathEscape(strings.TrimSpace(id)), coordinator.Params{
		"localization":   "false",
		"tickers":        "false",
		"community_data": "false",
		"developer_data": "false",
	}, 0)
	if err != nil {
		return CoinSummary{}, err
	}
	return raw.summary(), nil
}

// Search finds coins, exchanges and categories matching a query.
func (c *Client) Search(ctx context.Context, query string) (SearchResult, error) {
	return get[SearchResult](ctx, c, "/search", coordinator.Params{"query": query}, 0)
}

// Trending returns the coins trending on CoinGecko in the last 24 hours.
func (c *Client) Trending(ctx context.Context) (TrendingResult, error) {
	return get[TrendingResult](ctx, c, "/search/trending", nil, 0)
}

// MarketChart returns USD price, market cap and volume series for the last
// days days.
func (c *Client) MarketChart(ctx context.Context, id string, days int) (MarketChart, error) {
	return get[MarketChart](ctx, c, "/coins/"+url.PathEscape(strings.TrimSpace(id))+"/market_chart", coordinator.Params{
		"vs_currency": "usd",
		"days":        days,
	}, ChartTimeout)
}

func get[T any](ctx context.Context, c *Client, endpoint string, params coordinator.Params, timeout time.Duration) (T, error) {
	detached := context.WithoutCancel(ctx)
	return coordinator.Fetch(ctx, c.coord, category, endpoint, params, func() (T, error) {
		var out T
		err := c.do(detached, endpoint, params, timeout, &out)
		return out, err
	})
}

func (c *Client) do(ctx context.Context, endpoint string, params coordinator.Params, timeout time.Duration, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	query := make(map[string]string, len(params))
	for k, v := range params {
		query[k] = fmt.Sprint(v)
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).Get(c.baseURL + endpoint)
	if err != nil {
		metrics.RecordUpstreamRequest(category, 0, false)
		return fmt.Errorf("%w: coingecko %s: %v", upstream.ErrUnreachable, endpoint, err)
	}

	status := resp.StatusCode()
	metrics.RecordUpstreamRequest(category, status, false)
	switch {
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: coingecko %s: HTTP %d", upstream.ErrUnreachable, endpoint, status)
	case status >= http.StatusBadRequest:
		return newAPIError(resp)
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode coingecko %s response: %w", endpoint, err)
	}
	return nil
}

// newAPIError decodes either {"error": "..."} or
// {"status": {"error_code": n, "error_message": "..."}}.
func newAPIError(resp *resty.Response) *upstream.Error {
	apiErr := &upstream.Error{
		Provider:   "coingecko",
		StatusCode: resp.StatusCode(),
		RetryAfter: upstream.RetryAfter(resp.Header()),
	}

	var body struct {
		Error  string `json:"error"`
		Status struct {
			ErrorCode    int    `json:"error_code"`
			ErrorMessage string `json:"error_message"`
		} `json:"status"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Msg = body.Error
		if apiErr.Msg == "" {
			apiErr.Msg = body.Status.ErrorMessage
		}
		if body.Status.ErrorCode != 0 {
			apiErr.Code = fmt.Sprint(body.Status.ErrorCode)
		}
	}
	return apiErr
}

// SplitIDs splits comma separated coin ids and drops blanks.
func SplitIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		for _, part := range strings.Split(id, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
