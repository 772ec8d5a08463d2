package binance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/namelens/coinbridge/internal/core/coordinator"
)

// ErrAlphaTokenNotFound is returned when no Alpha token matches a symbol.
var ErrAlphaTokenNotFound = errors.New("alpha token not found")

// AlphaTokens returns the full Alpha token list.
func (c *Client) AlphaTokens(ctx context.Context) ([]AlphaToken, error) {
	return getAlpha[[]AlphaToken](ctx, c, request{
		family:   FamilyAlpha,
		endpoint: "/token/list",
		hosts:    c.tokenListURLs,
		http:     c.alphaHTTP,
	})
}

// FindAlphaToken looks a token up by symbol or name. A trailing USDT is
// ignored.
func (c *Client) FindAlphaToken(ctx context.Context, symbol string) (AlphaToken, error) {
	base := AlphaBase(symbol)
	tokens, err := c.AlphaTokens(ctx)
	if err != nil {
		return AlphaToken{}, err
	}
	for _, t := range tokens {
		if strings.ToUpper(t.Symbol) == base || strings.ToUpper(t.Name) == base {
			return t, nil
		}
	}
	return AlphaToken{}, fmt.Errorf("%w: %s", ErrAlphaTokenNotFound, base)
}

// AlphaKlines returns candles for an Alpha token id such as ALPHA_175.
func (c *Client) AlphaKlines(ctx context.Context, alphaID, interval string, limit int) ([]Kline, error) {
	return getAlpha[[]Kline](ctx, c, request{
		family:   FamilyAlpha,
		endpoint: "/klines",
		path:     "/klines",
		hosts:    c.alphaHosts,
		params: coordinator.Params{
			"symbol":   alphaID + "USDT",
			"interval": interval,
			"limit":    limit,
		},
		http: c.alphaHTTP,
	})
}

// AlphaBase upper-cases a symbol and strips a USDT quote suffix.
func AlphaBase(symbol string) string {
	base := strings.ToUpper(strings.TrimSpace(symbol))
	if len(base) > 4 {
		base = strings.TrimSuffix(base, "USDT")
	}
	return base
}
