package timefmt

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Preferences is the persisted per-user timezone choice.
type Preferences interface {
	Timezone(ctx context.Context) (string, bool)
	SetTimezone(ctx context.Context, tz string) error
}

// Fixed is a Preferences that always answers with the same zone and ignores writes.
type Fixed string

func (f Fixed) Timezone(context.Context) (string, bool) {
	tz := strings.TrimSpace(string(f))
	return tz, tz != ""
}

func (Fixed) SetTimezone(context.Context, string) error { return nil }

// Info describes the zone a Formatter resolves to at a given instant.
type Info struct {
	Timezone      string `json:"timezone"`
	CurrentTime   string `json:"currentTime"`
	Offset        string `json:"offset"`
	OffsetSeconds int    `json:"offsetSeconds"`
	IsDST         bool   `json:"isDst"`
	Source        string `json:"source"`
}

const (
	SourceExplicit   = "explicit"
	SourcePreference = "preference"
	SourceSystem     = "system"
	SourceFallback   = "fallback"
)

// Formatter turns UTC instants into display strings. None of its methods fail:
// bad input yields "" (or false), an unusable zone falls back to UTC.
type Formatter struct {
	prefs  Preferences
	now    func() time.Time
	local  string
	logger *zap.Logger
}

type Option func(*Formatter)

func WithPreferences(p Preferences) Option {
	return func(f *Formatter) { f.prefs = p }
}

func WithClock(now func() time.Time) Option {
	return func(f *Formatter) { f.now = now }
}

// WithLocalTimezone overrides the detected host zone used when no preference exists.
func WithLocalTimezone(tz string) Option {
	return func(f *Formatter) { f.local = tz }
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Formatter) { f.logger = logger }
}

func New(opts ...Option) *Formatter {
	f := &Formatter{
		prefs:  Fixed(""),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if strings.TrimSpace(f.local) == "" {
		f.local = DetectLocalTimezone()
	}
	return f
}

// With returns a copy of f reading preferences from p.
func (f *Formatter) With(p Preferences) *Formatter {
	clone := *f
	clone.prefs = p
	return &clone
}

func (f *Formatter) Now() time.Time {
	return f.now()
}

// UserTimezone returns the stored preference, or the host zone when none is stored.
func (f *Formatter) UserTimezone(ctx context.Context) string {
	tz, _ := f.resolveZone(ctx, "")
	return tz
}

// SetUserTimezone stores tz without validating it; invalid zones degrade to UTC at
// format time. Store failures are logged and returned.
func (f *Formatter) SetUserTimezone(ctx context.Context, tz string) error {
	if err := f.prefs.SetTimezone(ctx, tz); err != nil {
		f.logger.Warn("persist timezone preference", zap.String("timezone", tz), zap.Error(err))
		return err
	}
	return nil
}

func (f *Formatter) resolveZone(ctx context.Context, explicit string) (string, string) {
	if tz := strings.TrimSpace(explicit); tz != "" {
		return tz, SourceExplicit
	}
	if tz, ok := f.prefs.Timezone(ctx); ok && strings.TrimSpace(tz) != "" {
		return strings.TrimSpace(tz), SourcePreference
	}
	return f.local, SourceSystem
}

// location resolves tz to a location, degrading to UTC when the zone is unknown.
func (f *Formatter) location(tz string) (*time.Location, string, bool) {
	loc, err := LoadLocation(tz)
	if err != nil {
		f.logger.Warn("unknown timezone, formatting in UTC", zap.String("timezone", tz))
		return time.UTC, fallbackZone, false
	}
	return loc, tz, true
}

func (f *Formatter) parse(value any) (time.Time, bool) {
	if isBlank(value) {
		return time.Time{}, false
	}
	t, err := Parse(value)
	if err != nil {
		f.logger.Warn("invalid timestamp", zap.Any("value", value), zap.Error(err))
		return time.Time{}, false
	}
	return t, true
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case *time.Time:
		return v == nil
	}
	return false
}

// FormatDateTime renders value in tz (or the user's zone when tz is empty) using the
// default option set overridden by opts.
func (f *Formatter) FormatDateTime(ctx context.Context, value any, opts Options, tz string) string {
	t, ok := f.parse(value)
	if !ok {
		return ""
	}

	zone, _ := f.resolveZone(ctx, tz)
	loc, _, _ := f.location(zone)

	return render(t.In(loc), defaultOptions.merge(opts))
}

func (f *Formatter) FormatDate(ctx context.Context, value any, tz string) string {
	return f.FormatDateTime(ctx, value, dateOnly, tz)
}

func (f *Formatter) FormatTime(ctx context.Context, value any, tz string) string {
	return f.FormatDateTime(ctx, value, timeOnly, tz)
}

// FormatDateTimeCompact is the short form used in tables: "Jan 15, 2024, 3:30 PM".
func (f *Formatter) FormatDateTimeCompact(ctx context.Context, value any, tz string) string {
	return f.FormatDateTime(ctx, value, compact, tz)
}

// ToUTC normalises value to an ISO-8601 UTC string with millisecond precision.
func (f *Formatter) ToUTC(value any) (string, bool) {
	t, ok := f.parse(value)
	if !ok {
		return "", false
	}
	return t.UTC().Format(isoMillis), true
}

func (f *Formatter) IsPast(value any) bool {
	return f.IsPastAt(value, f.now())
}

func (f *Formatter) IsPastAt(value any, ref time.Time) bool {
	t, ok := f.parse(value)
	return ok && t.Before(ref)
}

func (f *Formatter) IsFuture(value any) bool {
	return f.IsFutureAt(value, f.now())
}

func (f *Formatter) IsFutureAt(value any, ref time.Time) bool {
	t, ok := f.parse(value)
	return ok && t.After(ref)
}

// IsWithinHours reports whether value falls in (now, now+hours].
func (f *Formatter) IsWithinHours(value any, hours float64) bool {
	return f.IsWithinHoursAt(value, hours, f.now())
}

func (f *Formatter) IsWithinHoursAt(value any, hours float64, ref time.Time) bool {
	t, ok := f.parse(value)
	if !ok {
		return false
	}
	limit := ref.Add(time.Duration(hours * float64(time.Hour)))
	return t.After(ref) && !t.After(limit)
}

// TimezoneInfo describes tz (or the user's zone) as of now.
func (f *Formatter) TimezoneInfo(ctx context.Context, tz string) Info {
	return f.TimezoneInfoAt(ctx, tz, f.now())
}

func (f *Formatter) TimezoneInfoAt(ctx context.Context, tz string, ref time.Time) Info {
	zone, source := f.resolveZone(ctx, tz)
	loc, effective, ok := f.location(zone)
	if !ok {
		source = SourceFallback
	}

	local := ref.In(loc)
	_, offset := local.Zone()

	return Info{
		Timezone:      effective,
		CurrentTime:   render(local, defaultOptions),
		Offset:        gmtOffset(offset, true),
		OffsetSeconds: offset,
		IsDST:         local.IsDST(),
		Source:        source,
	}
}
