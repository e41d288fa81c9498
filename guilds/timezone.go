package guilds

import (
	"strings"
	"time"

	"github.com/clanbot/clanbot/common"
	"github.com/tkuchiki/go-timezone"
)

// ResolveTimezone accepts IANA names ("Europe/Berlin") and abbreviations ("CEST"), abbreviations resolve to the
// first zone that uses them
func ResolveTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.NewValidationError("timezone", "can't be empty")
	}

	if strings.EqualFold(name, "utc") || strings.EqualFold(name, "gmt") {
		return time.UTC, nil
	}

	if loc, err := time.LoadLocation(name); err == nil && !strings.Contains(name, "..") {
		return loc, nil
	}

	names, err := timezone.GetTimezones(strings.ToUpper(name))
	if err == nil {
		for _, v := range names {
			if loc, err := time.LoadLocation(v); err == nil {
				return loc, nil
			}
		}
	}

	return nil, common.NewValidationErrorf("timezone", "unknown timezone %q, use a name like Europe/Berlin or an abbreviation like CET", name)
}
