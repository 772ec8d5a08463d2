package alpha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/namelens/coinbridge/internal/config"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/upstream"
)

const (
	DefaultAlpha123BaseURL = "https://alpha123.uk/api"
	DefaultAlpha123Timeout = 15 * time.Second

	alpha123Category  = "alpha123"
	alpha123UserAgent = "Mozilla/5.0 (Linux; Android 6.0; Nexus 5 Build/MRA58N) AppleWebKit/537.36"

	// phaseTwoOffset shifts second-phase airdrops to their real start.
	phaseTwoOffset = 18 * time.Hour
	slotLayout     = "2006-01-02 15:04"
)

// Text decodes a JSON string, number or null into a string. alpha123 is not
// consistent about quoting points and amounts.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*t = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Int parses the text as an integer, returning 0 when it is not one.
func (t Text) Int() int64 {
	s := strings.TrimSpace(string(t))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

// Drop is one airdrop as listed by alpha123.
type Drop struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Points    Text   `json:"points"`
	Amount    Text   `json:"amount"`
	Phase     Text   `json:"phase"`
	Status    string `json:"status"`
	Type      string `json:"type"`
	Completed bool   `json:"completed"`
}

// PhaseNumber returns the phase, defaulting to 1.
func (d Drop) PhaseNumber() int64 {
	if p := d.Phase.Int(); p > 0 {
		return p
	}
	return 1
}

// shiftPhaseTwo moves a phase 2 slot forward by 18 hours. Slots that do not
// parse are left alone.
func (d Drop) shiftPhaseTwo() Drop {
	if d.PhaseNumber() != 2 || d.Date == "" || d.Time == "" {
		return d
	}
	slot, err := time.Parse(slotLayout, d.Date+" "+d.Time)
	if err != nil {
		return d
	}
	slot = slot.Add(phaseTwoOffset)
	d.Date = slot.Format("2006-01-02")
	d.Time = slot.Format("15:04")
	return d
}

type dataResponse struct {
	Airdrops []Drop `json:"airdrops"`
}

type priceResponse struct {
	Success bool    `json:"success"`
	Price   float64 `json:"price"`
}

// Alpha123Client reads the alpha123.uk airdrop aggregator.
type Alpha123Client struct {
	coord   *coordinator.Coordinator
	http    *resty.Client
	baseURL string
	now     func() time.Time
}

// NewAlpha123Client creates a client. A nil coordinator gets a private one
// with the built-in alpha123 policies.
func NewAlpha123Client(coord *coordinator.Coordinator, baseURL string, timeout time.Duration) *Alpha123Client {
	if coord == nil {
		coord = coordinator.New(config.PoolAlpha123, coordinator.Alpha123Policies())
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultAlpha123BaseURL
	}
	if timeout <= 0 {
		timeout = DefaultAlpha123Timeout
	}
	return &Alpha123Client{
		coord:   coord,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "*/*").
			SetHeader("Accept-Language", "en-US,en;q=0.9").
			SetHeader("Referer", "https://alpha123.uk/").
			SetHeader("User-Agent", alpha123UserAgent),
	}
}

// Coordinator exposes the coordinator backing the client.
func (c *Alpha123Client) Coordinator() *coordinator.Coordinator {
	return c.coord
}

// Airdrops returns the current airdrop list with phase 2 times adjusted.
func (c *Alpha123Client) Airdrops(ctx context.Context) ([]Drop, error) {
	resp, err := alpha123Get[dataResponse](ctx, c, "/data")
	if err != nil {
		return nil, err
	}
	drops := make([]Drop, len(resp.Airdrops))
	for i, d := range resp.Airdrops {
		drops[i] = d.shiftPhaseTwo()
	}
	return drops, nil
}

// Price returns the alpha123 price of a token. A response without success
// yields an error.
func (c *Alpha123Client) Price(ctx context.Context, token string) (float64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("alpha123 price: empty token")
	}
	resp, err := alpha123Get[priceResponse](ctx, c, "/price/"+url.PathEscape(token))
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("alpha123 price %s: no price", token)
	}
	return resp.Price, nil
}

// alpha123Get keys the coordinator on the endpoint alone. The cache-busting
// timestamp is added per upstream call.
func alpha123Get[T any](ctx context.Context, c *Alpha123Client, endpoint string) (T, error) {
	detached := context.WithoutCancel(ctx)
	return coordinator.Fetch(ctx, c.coord, alpha123Category, endpoint, nil, func() (T, error) {
		var out T
		err := c.do(detached, endpoint, &out)
		return out, err
	})
}

func (c *Alpha123Client) do(ctx context.Context, endpoint string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("t", strconv.FormatInt(c.now().UnixMilli(), 10)).
		SetQueryParam("fresh", "1").
		Get(c.baseURL + endpoint)
	if err != nil {
		metrics.RecordUpstreamRequest(alpha123Category, 0, false)
		return fmt.Errorf("%w: alpha123 %s: %v", upstream.ErrUnreachable, endpoint, err)
	}

	status := resp.StatusCode()
	metrics.RecordUpstreamRequest(alpha123Category, status, false)
	switch {
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: alpha123 %s: HTTP %d", upstream.ErrUnreachable, endpoint, status)
	case status >= http.StatusBadRequest:
		return &upstream.Error{
			Provider:   alpha123Category,
			StatusCode: status,
			Msg:        snippet(resp.Body()),
			RetryAfter: upstream.RetryAfter(resp.Header()),
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode alpha123 %s response: %w", endpoint, err)
	}
	return nil
}

// snippet keeps error bodies short; alpha123 answers failures with HTML.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
