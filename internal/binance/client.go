// Package binance is a read-only client for the public Binance spot,
// USDⓈ-M futures and Alpha market data APIs.
//
// Every call goes through a request coordinator, so concurrent identical
// requests share one upstream round trip and responses are cached for the
// endpoint's TTL. Returned slices may be shared with other callers and must
// not be mutated.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/config"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/observability"
	"github.com/namelens/coinbridge/internal/upstream"
)

// Family identifies a group of interchangeable base URLs. It doubles as the
// coordinator category.
type Family string

const (
	FamilySpot        Family = "spot"
	FamilyFutures     Family = "futures"
	FamilyFuturesData Family = "futures_data"
	FamilyAlpha       Family = "alpha"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultAlphaTimeout = 15 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Default base URLs, tried in order.
var (
	DefaultSpotBaseURLs = []string{
		"https://api.binance.com/api/v3",
		"https://api1.binance.com/api/v3",
		"https://api2.binance.com/api/v3",
		"https://api3.binance.com/api/v3",
		"https://api4.binance.com/api/v3",
	}
	DefaultFuturesBaseURLs = []string{
		"https://fapi.binance.com/fapi/v1",
		"https://fapi1.binance.com/fapi/v1",
	}
	DefaultFuturesDataBaseURL = "https://fapi.binance.com/futures/data"
	DefaultAlphaBaseURL       = "https://www.binance.com/bapi/defi/v1/public/alpha-trade"
	DefaultAlphaTokenListURL  = "https://www.binance.com/bapi/defi/v1/public/wallet-direct/buw/wallet/cex/alpha/all/token/list"
)

// ErrUnreachable is wrapped by errors returned when every host of a family
// failed with a network error, a geo block (451) or a 5xx.
var ErrUnreachable = upstream.ErrUnreachable

// APIError is a 4xx answer from Binance, or an Alpha envelope carrying a
// non-success code.
type APIError = upstream.Error

// IsInvalidSymbol reports whether err is a 400 from Binance, which is how an
// unknown trading pair surfaces.
func IsInvalidSymbol(err error) bool {
	return upstream.StatusOf(err) == http.StatusBadRequest
}

// IsRateLimited reports a 429, or the 418 Binance sends to clients that kept
// going after a 429.
func IsRateLimited(err error) bool {
	return upstream.Classify(err) == upstream.ClassRateLimited
}

// IsUnreachable reports whether all hosts failed.
func IsUnreachable(err error) bool {
	return upstream.IsUnreachable(err)
}

// Options configures a Client. Empty fields take the package defaults.
type Options struct {
	SpotBaseURLs       []string
	FuturesBaseURLs    []string
	FuturesDataBaseURL string
	AlphaBaseURL       string
	AlphaTokenListURL  string
	Timeout            time.Duration
	UserAgent          string
}

// OptionsFromConfig maps the upstream config section onto Options.
func OptionsFromConfig(cfg config.UpstreamConfig) Options {
	return Options{
		SpotBaseURLs:       cfg.SpotBaseURLs,
		FuturesBaseURLs:    cfg.FuturesBaseURLs,
		FuturesDataBaseURL: cfg.FuturesDataBaseURL,
		AlphaBaseURL:       cfg.AlphaBaseURL,
		AlphaTokenListURL:  cfg.AlphaTokenListURL,
		Timeout:            cfg.Timeout,
		UserAgent:          cfg.UserAgent,
	}
}

// Client talks to Binance through a coordinator.
type Client struct {
	coord     *coordinator.Coordinator
	http      *resty.Client
	alphaHTTP *resty.Client

	spotHosts     []string
	futuresHosts  []string
	dataHosts     []string
	alphaHosts    []string
	tokenListURLs []string
}

// New creates a client. A nil coordinator gets a private one with the
// built-in Binance policies.
func New(coord *coordinator.Coordinator, opts Options) *Client {
	if coord == nil {
		coord = coordinator.New(config.PoolBinance, coordinator.BinancePolicies())
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	alphaTimeout := DefaultAlphaTimeout
	if timeout > alphaTimeout {
		alphaTimeout = timeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	newHTTP := func(d time.Duration) *resty.Client {
		return resty.New().
			SetTimeout(d).
			SetHeader("User-Agent", userAgent).
			SetHeader("Accept", "application/json")
	}

	return &Client{
		coord:         coord,
		http:          newHTTP(timeout),
		alphaHTTP:     newHTTP(alphaTimeout),
		spotHosts:     orDefault(opts.SpotBaseURLs, DefaultSpotBaseURLs),
		futuresHosts:  orDefault(opts.FuturesBaseURLs, DefaultFuturesBaseURLs),
		dataHosts:     orDefault(nonEmpty(opts.FuturesDataBaseURL), []string{DefaultFuturesDataBaseURL}),
		alphaHosts:    orDefault(nonEmpty(opts.AlphaBaseURL), []string{DefaultAlphaBaseURL}),
		tokenListURLs: orDefault(nonEmpty(opts.AlphaTokenListURL), []string{DefaultAlphaTokenListURL}),
	}
}

// Coordinator exposes the coordinator backing the client.
func (c *Client) Coordinator() *coordinator.Coordinator {
	return c.coord
}

// request describes one logical call. endpoint keys the coordinator policy
// and cache; path is appended to each host.
type request struct {
	family   Family
	endpoint string
	path     string
	hosts    []string
	params   coordinator.Params
	http     *resty.Client
}

func (c *Client) spot(endpoint string, params coordinator.Params) request {
	return request{family: FamilySpot, endpoint: endpoint, path: endpoint, hosts: c.spotHosts, params: params, http: c.http}
}

func (c *Client) futures(endpoint string, params coordinator.Params) request {
	return request{family: FamilyFutures, endpoint: endpoint, path: endpoint, hosts: c.futuresHosts, params: params, http: c.http}
}

func (c *Client) futuresData(endpoint string, params coordinator.Params) request {
	return request{family: FamilyFuturesData, endpoint: endpoint, path: "/" + strings.TrimLeft(endpoint, "/"), hosts: c.dataHosts, params: params, http: c.http}
}

// get runs req through the coordinator and decodes the body into T.
func get[T any](ctx context.Context, c *Client, req request) (T, error) {
	detached := context.WithoutCancel(ctx)
	return coordinator.Fetch(ctx, c.coord, string(req.family), req.endpoint, req.params, func() (T, error) {
		var out T
		err := c.do(detached, req, &out)
		return out, err
	})
}

// getAlpha is get for bapi endpoints, which wrap their payload in an
// envelope. A non-success envelope is an APIError and is not cached.
func getAlpha[T any](ctx context.Context, c *Client, req request) (T, error) {
	detached := context.WithoutCancel(ctx)
	return coordinator.Fetch(ctx, c.coord, string(req.family), req.endpoint, req.params, func() (T, error) {
		var envelope alphaEnvelope[T]
		if err := c.do(detached, req, &envelope); err != nil {
			var zero T
			return zero, err
		}
		if !envelope.ok() {
			var zero T
			msg := envelope.Message
			if msg == "" {
				msg = "alpha API returned an error"
			}
			return zero, &APIError{Provider: "binance", StatusCode: http.StatusOK, Code: envelope.Code, Msg: msg}
		}
		return envelope.Data, nil
	})
}

// do walks the hosts in order. Geo blocks, network errors and 5xx move on to
// the next host; any other 4xx stops and is returned as *APIError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	query := queryParams(req.params)

	var lastErr error
	for i, host := range req.hosts {
		url := strings.TrimRight(host, "/") + req.path
		resp, err := req.http.R().SetContext(ctx).SetQueryParams(query).Get(url)
		if err != nil {
			metrics.RecordUpstreamRequest(string(req.family), 0, i > 0)
			lastErr = err
			logFallback(req, host, err.Error())
			continue
		}

		status := resp.StatusCode()
		metrics.RecordUpstreamRequest(string(req.family), status, i > 0)
		switch {
		case status == http.StatusUnavailableForLegalReasons:
			lastErr = fmt.Errorf("%s: access restricted in this region (HTTP 451)", host)
			logFallback(req, host, "HTTP 451")
			continue
		case status >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("%s: HTTP %d", host, status)
			logFallback(req, host, resp.Status())
			continue
		case status >= http.StatusBadRequest:
			return newAPIError(resp)
		}

		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", req.family, req.endpoint, err)
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("no base URLs configured")
	}
	return fmt.Errorf("%w: %s %s: %v", ErrUnreachable, req.family, req.endpoint, lastErr)
}

func newAPIError(resp *resty.Response) *APIError {
	apiErr := &APIError{
		Provider:   "binance",
		StatusCode: resp.StatusCode(),
		RetryAfter: upstream.RetryAfter(resp.Header()),
	}

	var body struct {
		Code    json.RawMessage `json:"code"`
		Msg     string          `json:"msg"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Code = strings.Trim(string(body.Code), `"`)
		apiErr.Msg = body.Msg
		if apiErr.Msg == "" {
			apiErr.Msg = body.Message
		}
	}
	return apiErr
}

func queryParams(params coordinator.Params) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func logFallback(req request, host, cause string) {
	if observability.ServerLogger == nil {
		return
	}
	observability.ServerLogger.Warn("Binance host failed, trying next",
		zap.String("family", string(req.family)),
		zap.String("endpoint", req.endpoint),
		zap.String("host", host),
		zap.String("cause", cause))
}

func orDefault(values, fallback []string) []string {
	if len(values) == 0 {
		return append([]string(nil), fallback...)
	}
	return append([]string(nil), values...)
}

func nonEmpty(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return []string{value}
}
