package timefmt

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RelativeTime describes value relative to the formatter's clock.
func (f *Formatter) RelativeTime(ctx context.Context, value any) string {
	return f.RelativeTimeAt(ctx, value, f.now())
}

// RelativeTimeIn is RelativeTime with the compact fallback rendered in tz instead of
// the user's zone, so callers that already resolved the zone skip the preference read.
func (f *Formatter) RelativeTimeIn(ctx context.Context, value any, tz string) string {
	return f.relative(ctx, value, f.now(), tz)
}

// RelativeTimeAt buckets value-ref into "just now", minutes, hours or days, each
// rounded to the nearest unit. A week or more away falls back to the compact form.
func (f *Formatter) RelativeTimeAt(ctx context.Context, value any, ref time.Time) string {
	return f.relative(ctx, value, ref, "")
}

func (f *Formatter) relative(ctx context.Context, value any, ref time.Time, tz string) string {
	t, ok := f.parse(value)
	if !ok {
		return ""
	}

	diff := t.Sub(ref)

	minutes := roundHalfUp(diff.Minutes())
	if math.Abs(minutes) < 1 {
		return "just now"
	}
	if math.Abs(minutes) < 60 {
		return phrase(minutes, "minute")
	}

	hours := roundHalfUp(diff.Hours())
	if math.Abs(hours) < 24 {
		return phrase(hours, "hour")
	}

	days := roundHalfUp(diff.Hours() / 24)
	if math.Abs(days) < 7 {
		return phrase(days, "day")
	}

	return f.FormatDateTimeCompact(ctx, t, tz)
}

// roundHalfUp rounds .5 towards positive infinity, so -1.5 becomes -1.
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func phrase(n float64, unit string) string {
	count := int64(math.Abs(n))
	if count != 1 {
		unit += "s"
	}
	if n > 0 {
		return fmt.Sprintf("in %d %s", count, unit)
	}
	return fmt.Sprintf("%d %s ago", count, unit)
}
