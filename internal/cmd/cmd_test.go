package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/binance"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/upstream"
)

func TestExitCodeFor(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want foundry.ExitCode
	}{
		{"unreachable", fmt.Errorf("spot: %w", upstream.ErrUnreachable), foundry.ExitExternalServiceUnavailable},
		{"rate limited", &upstream.Error{Provider: "binance", StatusCode: http.StatusTooManyRequests}, foundry.ExitExternalServiceUnavailable},
		{"timeout", context.DeadlineExceeded, foundry.ExitExternalServiceUnavailable},
		{"rejected", &upstream.Error{Provider: "binance", StatusCode: http.StatusBadRequest, Msg: "Invalid symbol."}, foundry.ExitFailure},
		{"plain", fmt.Errorf("boom"), foundry.ExitFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExitCodeFor(tc.err))
		})
	}
}

func TestUnflatten(t *testing.T) {
	got := unflatten(map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 9000,
		"workers":     4,
	})
	assert.Equal(t, map[string]any{
		"server":  map[string]any{"host": "0.0.0.0", "port": 9000},
		"workers": 4,
	}, got)
}

func TestFormatMiniTicker(t *testing.T) {
	var tick binance.MiniTicker
	require.NoError(t, json.Unmarshal([]byte(`{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"110","o":"100","h":"120","l":"90","v":"5","q":"1500000"}`), &tick))

	line := formatMiniTicker(tick)
	assert.True(t, strings.HasPrefix(line, "22:13:20 BTCUSDT"), line)
	assert.Contains(t, line, "$110.0000")
	assert.Contains(t, line, "+10.00%")
	assert.True(t, strings.HasSuffix(line, "vol 1.50M"), line)
}

func TestWatchTickersStopsAfterLimit(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close() // nolint:errcheck // test server teardown

		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		for i := 0; i < 5; i++ {
			frame := fmt.Sprintf(`{"e":"24hrMiniTicker","E":%d,"s":"ETHUSDT","c":"2000","o":"2000","h":"2100","l":"1900","v":"7","q":"14000"}`, 1700000000000+int64(i)*1000)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer server.Close()

	var buf bytes.Buffer
	stream := binance.NewStream("ws" + strings.TrimPrefix(server.URL, "http"))
	err := watchTickers(context.Background(), stream, []string{"ETHUSDT"}, 3, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.Contains(t, line, "ETHUSDT")
		assert.Contains(t, line, "+0.00%")
	}
}

func newPoliciesCommand(out *bytes.Buffer, format string) *cobra.Command {
	c := &cobra.Command{Use: "policies"}
	addOutputFlags(c)
	c.SetOut(out)
	_ = c.Flags().Set("output", format)
	return c
}

func TestCoordinatorPoliciesJSON(t *testing.T) {
	var buf bytes.Buffer
	c := newPoliciesCommand(&buf, "json")

	require.NoError(t, coordinatorPoliciesCmd.RunE(c, []string{"CoinGecko"}))

	var payload map[string][]coordinator.Policy
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	require.Len(t, payload, 1)
	assert.Equal(t, coordinator.CoinGeckoPolicies().Entries(), payload["coingecko"])
}

func TestCoordinatorPoliciesTableListsEveryPool(t *testing.T) {
	var buf bytes.Buffer
	c := newPoliciesCommand(&buf, "table")

	require.NoError(t, coordinatorPoliciesCmd.RunE(c, nil))

	out := buf.String()
	assert.Contains(t, out, "binance")
	assert.Contains(t, out, "coingecko")
	assert.Contains(t, out, "alpha123")
}

func TestCoordinatorPoliciesUnknownPool(t *testing.T) {
	var buf bytes.Buffer
	c := newPoliciesCommand(&buf, "table")

	err := coordinatorPoliciesCmd.RunE(c, []string{"kraken"})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "kraken")
}
