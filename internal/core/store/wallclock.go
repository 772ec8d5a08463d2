package store

import (
	"fmt"
	"strings"
	"time"
)

// Wall-clock layouts for registry times. Values carry no zone; the zone is
// the row's timezone column.
const (
	TimeLayout = "2006-01-02 15:04:05"
	DateLayout = "2006-01-02"
)

// wallClock scans a TEXT column holding a zone-less datetime. libsql returns
// datetime-looking text as time.Time or RFC3339 text, so both are rendered
// back in layout without a zone conversion.
type wallClock struct {
	layout string
	value  string
}

func (w *wallClock) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		w.value = ""
	case time.Time:
		w.value = v.Format(w.layout)
	case string:
		w.value = normalizeWallClock(v, w.layout)
	case []byte:
		w.value = normalizeWallClock(string(v), w.layout)
	default:
		return fmt.Errorf("unsupported datetime value %T", src)
	}
	return nil
}

func normalizeWallClock(s, layout string) string {
	s = strings.TrimSpace(s)
	for _, l := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format(layout)
		}
	}
	return s
}
