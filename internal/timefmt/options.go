package timefmt

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Style selects how a single date or time field is rendered.
type Style string

const (
	// Inherit keeps whatever the default option set says for the field.
	Inherit  Style = ""
	Omit     Style = "omit"
	Numeric  Style = "numeric"
	TwoDigit Style = "2-digit"
	Long     Style = "long"
	Short    Style = "short"
)

// Options mirrors the field set of a locale date formatter. Fields left as Inherit
// take the default; Omit drops a field the defaults would otherwise print.
type Options struct {
	Year         Style
	Month        Style
	Day          Style
	Hour         Style
	Minute       Style
	Second       Style
	TimeZoneName Style
	Hour12       *bool
}

var defaultOptions = Options{
	Year:         Numeric,
	Month:        Long,
	Day:          Numeric,
	Hour:         Numeric,
	Minute:       TwoDigit,
	TimeZoneName: Short,
}

var (
	dateOnly = Options{Hour: Omit, Minute: Omit, Second: Omit, TimeZoneName: Omit}
	timeOnly = Options{Year: Omit, Month: Omit, Day: Omit}
	compact  = Options{Month: Short, TimeZoneName: Omit}
)

func (o Options) merge(over Options) Options {
	pick := func(base, override Style) Style {
		if override != Inherit {
			return override
		}
		return base
	}

	merged := Options{
		Year:         pick(o.Year, over.Year),
		Month:        pick(o.Month, over.Month),
		Day:          pick(o.Day, over.Day),
		Hour:         pick(o.Hour, over.Hour),
		Minute:       pick(o.Minute, over.Minute),
		Second:       pick(o.Second, over.Second),
		TimeZoneName: pick(o.TimeZoneName, over.TimeZoneName),
		Hour12:       o.Hour12,
	}
	if over.Hour12 != nil {
		merged.Hour12 = over.Hour12
	}
	return merged
}

func present(s Style) bool {
	return s != Inherit && s != Omit
}

func (o Options) hour12() bool {
	return o.Hour12 == nil || *o.Hour12
}

// render lays t out in en-US order: "January 15, 2024 at 3:30 PM PKT".
func render(t time.Time, o Options) string {
	date := renderDate(t, o)
	clock := renderClock(t, o)

	var out string
	switch {
	case date != "" && clock != "":
		sep := ", "
		if o.Month == Long {
			sep = " at "
		}
		out = date + sep + clock
	case date != "":
		out = date
	default:
		out = clock
	}

	if present(o.TimeZoneName) {
		zone := zoneName(t, o.TimeZoneName)
		if out == "" {
			return zone
		}
		out += " " + zone
	}

	return out
}

func renderDate(t time.Time, o Options) string {
	day := pad(t.Day(), o.Day)
	year := renderYear(t.Year(), o.Year)

	switch o.Month {
	case Long, Short:
		name := t.Month().String()
		if o.Month == Short {
			name = name[:3]
		}
		out := name
		if day != "" {
			out += " " + day
		}
		if year != "" {
			if day != "" {
				out += ","
			}
			out += " " + year
		}
		return out
	case Numeric, TwoDigit:
		parts := []string{pad(int(t.Month()), o.Month)}
		if day != "" {
			parts = append(parts, day)
		}
		if year != "" {
			parts = append(parts, year)
		}
		return strings.Join(parts, "/")
	default:
		return strings.TrimSpace(strings.Join([]string{day, year}, " "))
	}
}

func renderYear(year int, s Style) string {
	switch s {
	case TwoDigit:
		return fmt.Sprintf("%02d", year%100)
	case Numeric, Long, Short:
		return strconv.Itoa(year)
	default:
		return ""
	}
}

func renderClock(t time.Time, o Options) string {
	if !present(o.Hour) {
		if present(o.Minute) {
			return pad(t.Minute(), TwoDigit)
		}
		return ""
	}

	hour := t.Hour()
	suffix := ""
	if o.hour12() {
		suffix = " AM"
		if hour >= 12 {
			suffix = " PM"
		}
		hour %= 12
		if hour == 0 {
			hour = 12
		}
	}

	hourStyle := o.Hour
	if !o.hour12() {
		hourStyle = TwoDigit
	}

	out := pad(hour, hourStyle)
	if present(o.Minute) {
		out += ":" + pad(t.Minute(), TwoDigit)
		if present(o.Second) {
			out += ":" + pad(t.Second(), TwoDigit)
		}
	}

	return out + suffix
}

func pad(v int, s Style) string {
	switch s {
	case TwoDigit:
		return fmt.Sprintf("%02d", v)
	case Numeric, Long, Short:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// zoneName returns the zone abbreviation for Short, falling back to a GMT offset
// when the zone database has no letters for it (Asia/Dubai reports "+04").
// Long always renders the full offset.
func zoneName(t time.Time, s Style) string {
	abbr, offset := t.Zone()
	if s == Long {
		return gmtOffset(offset, true)
	}
	if abbr == "" || abbr[0] == '+' || abbr[0] == '-' {
		return gmtOffset(offset, false)
	}
	return abbr
}

// gmtOffset renders "GMT+05:00" in full form or "GMT+5" / "GMT+5:30" in short form.
// A zero offset is plain "GMT".
func gmtOffset(seconds int, full bool) string {
	if seconds == 0 {
		return "GMT"
	}

	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60

	if full {
		return fmt.Sprintf("GMT%s%02d:%02d", sign, hours, minutes)
	}
	if minutes == 0 {
		return fmt.Sprintf("GMT%s%d", sign, hours)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, hours, minutes)
}
