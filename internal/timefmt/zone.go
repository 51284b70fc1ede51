package timefmt

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	// Embedded zone database so formatting never depends on the host's zoneinfo.
	_ "time/tzdata"
)

var ErrInvalidTimezone = errors.New("timefmt: invalid timezone")

const fallbackZone = "UTC"

var locations sync.Map // name -> *time.Location

// LoadLocation resolves an IANA identifier, caching successful lookups.
// Empty names and "Local" are rejected because they are not IANA identifiers.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}

	if cached, ok := locations.Load(name); ok {
		return cached.(*time.Location), nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}

	locations.Store(name, loc)
	return loc, nil
}

// Validate reports whether tz can be used for formatting.
func Validate(tz string) error {
	_, err := LoadLocation(tz)
	return err
}

// DetectLocalTimezone returns the host's IANA zone: TZ first, then the
// /etc/localtime link target, then time.Local, and UTC when none of them names a zone.
func DetectLocalTimezone() string {
	if tz := strings.TrimPrefix(strings.TrimSpace(os.Getenv("TZ")), ":"); tz != "" {
		if Validate(tz) == nil {
			return tz
		}
	}

	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if idx := strings.Index(target, "zoneinfo/"); idx >= 0 {
			name := target[idx+len("zoneinfo/"):]
			if Validate(name) == nil {
				return name
			}
		}
	}

	if name := time.Local.String(); Validate(name) == nil {
		return name
	}

	return fallbackZone
}
