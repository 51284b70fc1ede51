package timefmt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var ErrInvalidTimestamp = errors.New("timefmt: invalid timestamp")

// isoMillis matches the output of JavaScript's Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z"

var stringLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse converts a backend timestamp into a UTC instant. Strings are ISO-8601 (a
// missing zone means UTC), numbers are milliseconds since the Unix epoch.
func Parse(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, ErrInvalidTimestamp
	case time.Time:
		if v.IsZero() {
			return time.Time{}, ErrInvalidTimestamp
		}
		return v.UTC(), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, ErrInvalidTimestamp
		}
		return v.UTC(), nil
	case string:
		return parseString(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return fromMillis(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, v.String())
		}
		return fromFloatMillis(f)
	case int:
		return fromMillis(int64(v)), nil
	case int32:
		return fromMillis(int64(v)), nil
	case int64:
		return fromMillis(v), nil
	case uint32:
		return fromMillis(int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return time.Time{}, ErrInvalidTimestamp
		}
		return fromMillis(int64(v)), nil
	case float64:
		return fromFloatMillis(v)
	case float32:
		return fromFloatMillis(float64(v))
	default:
		return time.Time{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, value)
	}
}

func parseString(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, ErrInvalidTimestamp
	}

	for _, layout := range stringLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func fromFloatMillis(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, ErrInvalidTimestamp
	}
	return fromMillis(int64(f)), nil
}
