package alpha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/core/store"
	"github.com/namelens/coinbridge/internal/upstream"
)

const calendarBody = `{"airdrops":[
	{"token":"ABC","name":"Abc","date":"2026-01-10","time":"10:00","points":230,"amount":"500","phase":2,"type":"tge"},
	{"token":"DEF","name":"Def","date":"2026-01-10","time":"20:00","points":"200","amount":100,"phase":1},
	{"token":"OLD","name":"Old","date":"2026-01-02","time":"18:00","points":"180","amount":"50","completed":true}
]}`

func newCalendarServer(t *testing.T, hits *int32) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		assert.NotEmpty(t, r.URL.Query().Get("t"))
		assert.Equal(t, "1", r.URL.Query().Get("fresh"))
		assert.Equal(t, "https://alpha123.uk/", r.Header.Get("Referer"))

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/data":
			_, _ = w.Write([]byte(calendarBody))
		case "/price/ABC":
			_, _ = w.Write([]byte(`{"success":true,"price":0.5}`))
		case "/price/DEF":
			_, _ = w.Write([]byte(`{"success":true,"price":2}`))
		default:
			_, _ = w.Write([]byte(`{"success":false}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestAlpha123(url string) *Alpha123Client {
	return NewAlpha123Client(coordinator.New("alpha123", coordinator.Alpha123Policies()), url, time.Second)
}

func TestAirdropsShiftsPhaseTwo(t *testing.T) {
	var hits int32
	client := newTestAlpha123(newCalendarServer(t, &hits).URL)

	drops, err := client.Airdrops(context.Background())
	require.NoError(t, err)
	require.Len(t, drops, 3)

	assert.Equal(t, "2026-01-11", drops[0].Date)
	assert.Equal(t, "04:00", drops[0].Time)
	assert.Equal(t, Text("230"), drops[0].Points)
	assert.Equal(t, int64(500), drops[0].Amount.Int())
	assert.Equal(t, int64(2), drops[0].PhaseNumber())

	assert.Equal(t, "20:00", drops[1].Time)
	assert.Equal(t, int64(100), drops[1].Amount.Int())
	assert.Equal(t, int64(1), drops[2].PhaseNumber())

	// The cache-busting timestamp is not part of the cache key.
	_, err = client.Airdrops(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestAlpha123Price(t *testing.T) {
	client := newTestAlpha123(newCalendarServer(t, nil).URL)

	price, err := client.Price(context.Background(), "ABC")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, price, 1e-12)

	_, err = client.Price(context.Background(), "NOPE")
	require.Error(t, err)

	_, err = client.Price(context.Background(), " ")
	require.Error(t, err)
}

func TestAlpha123Unavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestAlpha123(server.URL).Airdrops(context.Background())
	require.Error(t, err)
	assert.True(t, upstream.IsUnreachable(err))
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		drop Drop
		want string
	}{
		{Drop{Date: "2026-01-09", Time: "20:00"}, BucketEnded},
		{Drop{Date: "2026-01-12", Time: "20:00", Completed: true}, BucketEnded},
		{Drop{Date: "2026-01-10", Time: "11:00"}, BucketOngoing},
		{Drop{Date: "2026-01-10", Time: "12:00"}, BucketOngoing},
		{Drop{Date: "2026-01-10", Time: "soon"}, BucketOngoing},
		{Drop{Date: "2026-01-10", Time: "13:00"}, BucketUpcoming},
		{Drop{Date: "2026-01-11", Time: "09:00"}, BucketUpcoming},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.drop, now), "%s %s", tc.drop.Date, tc.drop.Time)
	}
}

func TestRealtimeAirdrops(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := NewService(nil, nil, nil, newTestAlpha123(newCalendarServer(t, nil).URL),
		WithClock(func() time.Time { return now }))

	board, err := svc.RealtimeAirdrops(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RealtimeSummary{UpcomingCount: 2, OngoingCount: 0, EndedCount: 1}, board.Summary)
	require.Len(t, board.UpcomingAirdrops, 2)
	assert.Equal(t, "DEF", board.UpcomingAirdrops[0].Token)
	assert.Equal(t, "$2.000000", board.UpcomingAirdrops[0].CurrentPrice)
	assert.Equal(t, "$200.00", board.UpcomingAirdrops[0].TotalValue)
	assert.Equal(t, "ABC", board.UpcomingAirdrops[1].Token)
	assert.Equal(t, "2026-01-11 04:00", board.UpcomingAirdrops[1].Datetime)
	assert.Equal(t, "$250.00", board.UpcomingAirdrops[1].TotalValue)

	require.Len(t, board.RecentlyEnded, 1)
	assert.Equal(t, "completed", board.RecentlyEnded[0].Status)
	assert.Equal(t, "fetching", board.RecentlyEnded[0].CurrentPrice)
	assert.Equal(t, "pending", board.RecentlyEnded[0].TotalValue)
	assert.NotNil(t, board.OngoingAirdrops)
}

func TestRealtimeAirdropsNotConfigured(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil).RealtimeAirdrops(context.Background())
	require.Error(t, err)
}

func TestTimeRemaining(t *testing.T) {
	zone := ParseZone("UTC+8")
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, zone)

	assert.Equal(t, "2d 3h", TimeRemaining(now, "2026-01-12 15:30:00", zone))
	assert.Equal(t, "3h 30m", TimeRemaining(now, "2026-01-10 15:30:00", zone))
	assert.Equal(t, "5m", TimeRemaining(now, "2026-01-10 12:05:00", zone))
	assert.Equal(t, "ended", TimeRemaining(now, "2026-01-10 11:59:59", zone))
	assert.Equal(t, "unknown", TimeRemaining(now, "next week", zone))

	// The same wall clock read in UTC is eight hours later.
	assert.Equal(t, "8h 5m", TimeRemaining(now, "2026-01-10 12:05:00", time.UTC))
}

func TestTimeRemainingAcceptsRFC3339WallClock(t *testing.T) {
	zone := ParseZone("UTC+8")
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, zone)

	// The clock reading is kept and the zone comes from the competition.
	assert.Equal(t, "2d 3h", TimeRemaining(now, "2026-01-12T15:30:00Z", zone))
	assert.Equal(t, "ended", TimeRemaining(now, "2026-01-10T11:59:59Z", zone))

	end, err := EndTime(store.Competition{EndTime: "2026-01-12T21:00:00Z", Timezone: "UTC+8"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 12, 13, 0, 0, 0, time.UTC), end.UTC())
}

func TestSnippetKeepsValidUTF8(t *testing.T) {
	body := []byte(strings.Repeat("a", 199) + "é" + strings.Repeat("b", 50))
	got := snippet(body)
	assert.True(t, utf8.ValidString(got), got)
	assert.Equal(t, strings.Repeat("a", 199)+"...", got)

	assert.Equal(t, "short", snippet([]byte("  short \n")))
	long := strings.Repeat("币", 100)
	assert.True(t, utf8.ValidString(snippet([]byte(long))))
}

func TestParseZone(t *testing.T) {
	ref := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := func(tz string) int {
		_, off := ref.In(ParseZone(tz)).Zone()
		return off
	}
	assert.Equal(t, 8*3600, offset("UTC+8"))
	assert.Equal(t, 0, offset("utc"))
	assert.Equal(t, -(5*3600 + 30*60), offset("UTC-5:30"))
	assert.Equal(t, 8*3600, offset("Asia/Nowhere"))
	assert.Equal(t, 8*3600, offset(""))
}

func TestAmount(t *testing.T) {
	assert.Equal(t, "7,178,800", amount(7178800))
	assert.Equal(t, "1,370.5", amount(1370.5))
	assert.Equal(t, "0", amount(0))
}
