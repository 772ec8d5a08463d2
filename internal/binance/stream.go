package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/observability"
)

// DefaultStreamURL is the raw spot websocket endpoint.
const DefaultStreamURL = "wss://stream.binance.com:9443/ws"

// ErrStopStream can be returned by a handler to end a stream without error.
var ErrStopStream = errors.New("stop stream")

// MiniTicker is a 24h rolling window update from the <symbol>@miniTicker
// stream.
type MiniTicker struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	Close       Number `json:"c"`
	Open        Number `json:"o"`
	High        Number `json:"h"`
	Low         Number `json:"l"`
	Volume      Number `json:"v"`
	QuoteVolume Number `json:"q"`
}

// ChangePercent is the move from the window open to the last price.
func (m MiniTicker) ChangePercent() float64 {
	open := m.Open.Float()
	if open == 0 {
		return 0
	}
	return (m.Close.Float() - open) / open * 100
}

type subscribeMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Stream subscribes to public websocket market streams.
type Stream struct {
	url    string
	dialer *websocket.Dialer
}

// NewStream creates a stream client. An empty url uses DefaultStreamURL.
func NewStream(url string) *Stream {
	if strings.TrimSpace(url) == "" {
		url = DefaultStreamURL
	}
	return &Stream{
		url: url,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// MiniTickers subscribes to the miniTicker stream of each symbol and calls
// handle for every update until ctx ends, the connection drops or handle
// returns an error. ErrStopStream ends the stream cleanly.
func (s *Stream) MiniTickers(ctx context.Context, symbols []string, handle func(MiniTicker) error) error {
	if len(symbols) == 0 {
		return errors.New("at least one symbol is required")
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			closeConn()
		case <-stop:
		}
	}()

	params := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		params = append(params, strings.ToLower(symbol)+"@miniTicker")
	}
	if err := conn.WriteJSON(subscribeMessage{Method: "SUBSCRIBE", Params: params, ID: 1}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Subscribed to miniTicker streams", zap.Strings("streams", params))
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}

		var ticker MiniTicker
		if err := json.Unmarshal(data, &ticker); err != nil || ticker.EventType != "24hrMiniTicker" {
			// subscription acks and unknown frames
			continue
		}
		if err := handle(ticker); err != nil {
			if errors.Is(err, ErrStopStream) {
				return nil
			}
			return err
		}
	}
}
