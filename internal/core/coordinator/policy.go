package coordinator

import (
	"strings"
	"time"
)

// Policy is the cache TTL and rate weight for one (category, endpoint) pair.
type Policy struct {
	Category string        `json:"category"`
	Endpoint string        `json:"endpoint"`
	TTL      time.Duration `json:"ttl"`
	Weight   int           `json:"weight"`
}

// DefaultPolicy applies when no table entry matches.
var DefaultPolicy = Policy{TTL: 5 * time.Second, Weight: 1}

// PolicyTable is an ordered, read-only list of endpoint policies.
type PolicyTable struct {
	entries []Policy
}

// NewPolicyTable copies entries into a table. Declaration order is kept and
// decides which partial match wins.
func NewPolicyTable(entries ...Policy) PolicyTable {
	copied := make([]Policy, len(entries))
	copy(copied, entries)
	return PolicyTable{entries: copied}
}

// Entries returns a copy of the table in declaration order.
func (t PolicyTable) Entries() []Policy {
	out := make([]Policy, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup resolves the policy for an endpoint: exact match first, then the
// first entry (in declaration order) whose trimmed endpoint is a prefix of, or
// a substring of, the requested one. Unknown endpoints get DefaultPolicy.
func (t PolicyTable) Lookup(category, endpoint string) Policy {
	for _, p := range t.entries {
		if p.Category == category && p.Endpoint == endpoint {
			return p
		}
	}

	trimmed := strings.Trim(endpoint, "/")
	for _, p := range t.entries {
		if p.Category != category {
			continue
		}
		if strings.HasPrefix(trimmed, strings.Trim(p.Endpoint, "/")) || strings.Contains(endpoint, p.Endpoint) {
			return p
		}
	}

	fallback := DefaultPolicy
	fallback.Category = category
	fallback.Endpoint = endpoint
	return fallback
}

// BinancePolicies is the built-in table for the Binance pool.
func BinancePolicies() PolicyTable {
	const (
		halfSecond = 500 * time.Millisecond
		second     = time.Second
		fiveSec    = 5 * time.Second
		minute     = time.Minute
		fiveMin    = 5 * time.Minute
	)
	return NewPolicyTable(
		Policy{"spot", "/ticker/price", second, 1},
		Policy{"spot", "/ticker/24hr", second, 1},
		Policy{"spot", "/klines", fiveSec, 1},
		Policy{"spot", "/exchangeInfo", minute, 10},
		Policy{"spot", "/depth", halfSecond, 5},
		Policy{"futures", "/ticker/price", second, 1},
		Policy{"futures", "/ticker/24hr", second, 1},
		Policy{"futures", "/klines", fiveSec, 1},
		Policy{"futures", "/premiumIndex", second, 1},
		Policy{"futures", "/fundingRate", fiveSec, 1},
		Policy{"futures", "/openInterest", fiveSec, 1},
		Policy{"futures", "/exchangeInfo", minute, 10},
		Policy{"futures", "/depth", halfSecond, 5},
		Policy{"futures_data", "openInterestHist", minute, 1},
		Policy{"futures_data", "topLongShortAccountRatio", minute, 1},
		Policy{"futures_data", "topLongShortPositionRatio", minute, 1},
		Policy{"futures_data", "globalLongShortAccountRatio", minute, 1},
		Policy{"futures_data", "takerlongshortRatio", minute, 1},
		Policy{"alpha", "/token/list", fiveMin, 1},
		Policy{"alpha", "/get-exchange-info", fiveMin, 1},
		Policy{"alpha", "/klines", fiveSec, 1},
	)
}

// CoinGeckoPolicies is the built-in table for the CoinGecko pool.
func CoinGeckoPolicies() PolicyTable {
	return NewPolicyTable(
		Policy{"coingecko", "/simple/price", 30 * time.Second, 1},
		Policy{"coingecko", "/coins/markets", time.Minute, 1},
		Policy{"coingecko", "/market_chart", 5 * time.Minute, 1},
		Policy{"coingecko", "/search/trending", 5 * time.Minute, 1},
		Policy{"coingecko", "/search", 5 * time.Minute, 1},
		Policy{"coingecko", "/coins/", time.Minute, 1},
	)
}

// Alpha123Policies is the built-in table for the alpha123 pool.
func Alpha123Policies() PolicyTable {
	return NewPolicyTable(
		Policy{"alpha123", "/data", 30 * time.Second, 1},
		Policy{"alpha123", "/price/", 10 * time.Second, 1},
	)
}
