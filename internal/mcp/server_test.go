package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/alpha"
	"github.com/namelens/coinbridge/internal/binance"
	"github.com/namelens/coinbridge/internal/coingecko"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/market"
)

func newMarket(t *testing.T, handler http.Handler) *market.Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return marketAt(server.URL)
}

func marketAt(base string) *market.Service {
	client := binance.New(coordinator.New("binance", coordinator.BinancePolicies()), binance.Options{
		SpotBaseURLs:       []string{base + "/spot"},
		FuturesBaseURLs:    []string{base + "/fapi"},
		FuturesDataBaseURL: base + "/data",
		AlphaBaseURL:       base + "/alpha",
		AlphaTokenListURL:  base + "/alpha/list",
	})
	return market.New(client)
}

func spotPriceHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/spot/ticker/price" && r.URL.Query().Get("symbol") == "BTCUSDT" {
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"65000.50"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
}

func request(t *testing.T, id any, method string, params any) Request {
	t.Helper()
	req := Request{JSONRPC: "2.0", Method: method}
	if id != nil {
		raw, err := json.Marshal(id)
		require.NoError(t, err)
		req.ID = raw
	}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	return req
}

// roundTrip encodes a response the way the transports do and decodes it
// generically.
func roundTrip(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	require.NotNil(t, resp)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

// toolText calls a tool and decodes the JSON text of its single content block.
func toolText(t *testing.T, s *Server, name string, args map[string]any) map[string]any {
	t.Helper()
	resp := s.Handle(context.Background(), request(t, 1, "tools/call", map[string]any{"name": name, "arguments": args}))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "unexpected rpc error")
	result, ok := resp.Result.(*CallResult)
	require.True(t, ok)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	return out
}

func TestInitialize(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0")
	out := roundTrip(t, s.Handle(context.Background(), request(t, 1, "initialize", nil)))

	assert.Equal(t, "2.0", out["jsonrpc"])
	assert.EqualValues(t, 1, out["id"])
	result := out["result"].(map[string]any)
	assert.Equal(t, ProtocolVersion, result["protocolVersion"])
	assert.Equal(t, map[string]any{"tools": map[string]any{}}, result["capabilities"])
	assert.Equal(t, map[string]any{"name": "test-mcp", "version": "0.1.0"}, result["serverInfo"])
}

func TestBinanceRegistry(t *testing.T) {
	mkt := marketAt("http://127.0.0.1:1")
	al := alpha.NewService(nil, mkt, nil, nil)

	s := NewBinanceServer(mkt, al)
	assert.Equal(t, BinanceServerName, s.Name())
	assert.Equal(t, BinanceServerVersion, s.Version())

	tools := s.Tools()
	require.Len(t, tools, 34)
	names := make(map[string]bool, len(tools))
	for _, tool := range tools {
		assert.False(t, names[tool.Name], "duplicate tool %s", tool.Name)
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		assert.NotNil(t, tool.Handler, tool.Name)
	}
	for _, name := range []string{"get_spot_price", "get_extreme_funding_rates", "get_taker_buy_sell_ratio", "add_alpha_competition", "get_top_gainers_losers"} {
		assert.True(t, names[name], name)
	}

	assert.Len(t, BinanceTools(mkt, nil), 29)

	out := roundTrip(t, s.Handle(context.Background(), request(t, "list", "tools/list", nil)))
	listed := out["result"].(map[string]any)["tools"].([]any)
	require.Len(t, listed, 34)
	first := listed[0].(map[string]any)
	assert.Equal(t, "get_spot_price", first["name"])
	assert.Equal(t, []any{"symbol"}, first["inputSchema"].(map[string]any)["required"])
}

func TestCoinGeckoRegistry(t *testing.T) {
	s := NewCoinGeckoServer(coingecko.New(nil, "http://127.0.0.1:1", 0), 2)
	assert.Equal(t, CoinGeckoServerName, s.Name())
	assert.Equal(t, CoinGeckoServerVersion, s.Version())

	var names []string
	for _, tool := range s.Tools() {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"get_price", "get_coin_data", "search_coins", "get_trending"}, names)
}

func TestUnknownMethod(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0")
	resp := s.Handle(context.Background(), request(t, 7, "resources/list", nil))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, "Method not found: resources/list", resp.Error.Message)
	assert.Equal(t, json.RawMessage("7"), resp.ID)
}

func TestNotificationsGetNoResponse(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0")
	assert.Nil(t, s.Handle(context.Background(), request(t, nil, "notifications/initialized", nil)))

	req := request(t, nil, "initialize", nil)
	req.ID = json.RawMessage("null")
	assert.Nil(t, s.Handle(context.Background(), req))
}

func TestCallSpotPrice(t *testing.T) {
	s := NewBinanceServer(newMarket(t, spotPriceHandler()), nil)

	out := toolText(t, s, "get_spot_price", map[string]any{"symbol": "btc"})
	assert.Equal(t, "BTCUSDT", out["symbol"])
	assert.InDelta(t, 65000.5, out["price"], 1e-9)
	assert.Equal(t, "spot", out["market"])
}

func TestCallResultIsIndented(t *testing.T) {
	s := NewBinanceServer(newMarket(t, spotPriceHandler()), nil)
	result, err := s.Call(context.Background(), "get_spot_price", map[string]any{"symbol": "BTC"})
	require.NoError(t, err)
	text := result.Content[0].Text
	assert.True(t, strings.HasPrefix(text, "{\n  \""), text)
	assert.False(t, strings.HasSuffix(text, "\n"))
}

func TestCallUnknownTool(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0")
	out := toolText(t, s, "nope", nil)
	assert.Equal(t, map[string]any{"error": "Unknown tool: nope"}, out)
}

func TestCallMissingRequiredArgument(t *testing.T) {
	s := NewBinanceServer(newMarket(t, spotPriceHandler()), nil)
	resp := s.Handle(context.Background(), request(t, 3, "tools/call", map[string]any{
		"name":      "get_spot_price",
		"arguments": map[string]any{"symbol": "  "},
	}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.True(t, strings.HasPrefix(resp.Error.Message, "Internal error: "))
	assert.Contains(t, resp.Error.Message, `"symbol"`)
}

func TestCallUndecodableArguments(t *testing.T) {
	s := NewBinanceServer(newMarket(t, spotPriceHandler()), nil)
	resp := s.Handle(context.Background(), request(t, 4, "tools/call", map[string]any{
		"name":      "get_klines",
		"arguments": map[string]any{"symbol": "BTC", "limit": "many"},
	}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "get_klines")
}

func TestCallToolErrorIsContent(t *testing.T) {
	s := NewBinanceServer(newMarket(t, spotPriceHandler()), nil)
	out := toolText(t, s, "get_klines", map[string]any{"symbol": "BTC", "interval": "7x"})
	assert.Contains(t, out["error"], "unsupported interval")
	assert.NotContains(t, out, "network_error")
}

func TestCallNetworkErrorPayload(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	base := closed.URL
	closed.Close()

	s := NewBinanceServer(marketAt(base), nil)
	out := toolText(t, s, "get_spot_price", map[string]any{"symbol": "BTC"})
	assert.Equal(t, true, out["network_error"])
	assert.Equal(t, true, out["stop_execution"])
	assert.NotEmpty(t, out["user_action_required"])
	assert.Equal(t, "BTC", out["symbol"])
	assert.NotEmpty(t, out["error"])
}

func TestPanicBecomesInternalError(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0", Tool{
		Name:        "boom",
		InputSchema: schema(nil, nil),
		Handler: func(context.Context, map[string]any) (any, error) {
			panic("boom")
		},
	})
	resp := s.Handle(context.Background(), request(t, 9, "tools/call", map[string]any{"name": "boom"}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "Internal error: boom", resp.Error.Message)
}

func TestBindAppliesDefaultsAndLooseTypes(t *testing.T) {
	var got klineArgs
	handler := Bind(klineDefaults, func(_ context.Context, a klineArgs) (any, error) {
		got = a
		return nil, nil
	})
	_, err := handler(context.Background(), map[string]any{"symbol": "ETH", "limit": "50"})
	require.NoError(t, err)
	assert.Equal(t, klineArgs{Symbol: "ETH", Interval: "1h", Limit: 50}, got)

	_, err = handler(context.Background(), map[string]any{"symbol": "ETH", "limit": float64(20), "interval": "4h"})
	require.NoError(t, err)
	assert.Equal(t, klineArgs{Symbol: "ETH", Interval: "4h", Limit: 20}, got)

	// defaults are not mutated between calls
	assert.Equal(t, "1h", klineDefaults.Interval)
}

func TestServeStdio(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0")
	input := strings.Join([]string{
		"",
		"not json",
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		"   ",
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"bogus"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(input), &out))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	for i, line := range lines {
		var resp map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &resp), line)
		assert.EqualValues(t, i+1, resp["id"])
	}
	assert.Contains(t, lines[0], ProtocolVersion)
	assert.Contains(t, lines[1], `"tools":[]`)
	assert.Contains(t, lines[2], fmt.Sprint(CodeMethodNotFound))
}

func TestServeHTTP(t *testing.T) {
	s := NewServer("test-mcp", "0.1.0")

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
		return rec
	}

	rec := post(`{"jsonrpc":"2.0","id":"a","method":"initialize"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"id":"a"`)

	rec = post(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = post(`{oops`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestCoinGeckoGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/simple/price":
			assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
			_, _ = w.Write([]byte(`{"bitcoin":{"usd":65000,"usd_24h_change":1.5}}`))
		case "/coins/bitcoin/market_chart":
			points := make([]string, 70)
			for i := range points {
				points[i] = fmt.Sprintf("[%d,%d]", 1700000000000+i*3600000, 100+i)
			}
			_, _ = w.Write([]byte(`{"prices":[` + strings.Join(points, ",") + `]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer server.Close()

	gecko := coingecko.New(coordinator.New("coingecko", coordinator.CoinGeckoPolicies()), server.URL, 0)
	s := NewCoinGeckoServer(gecko, 2)

	out := toolText(t, s, "get_price", map[string]any{"coin_ids": "bitcoin, ethereum"})
	require.Contains(t, out, "bitcoin")
	assert.NotContains(t, out, "ethereum")
	btc := out["bitcoin"].(map[string]any)
	assert.InDelta(t, 65000.0, btc["usd"], 1e-9)
	trend := btc["trend_analysis"].(map[string]any)
	assert.Contains(t, trend, "up_probability")

	out = toolText(t, s, "get_coin_data", map[string]any{"coin_id": "missing"})
	assert.NotEmpty(t, out["error"])
}
