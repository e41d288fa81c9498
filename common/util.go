package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type DurationFormatPrecision int

const (
	DurationPrecisionSeconds DurationFormatPrecision = iota
	DurationPrecisionMinutes
	DurationPrecisionHours
	DurationPrecisionDays
)

func (d DurationFormatPrecision) String() string {
	switch d {
	case DurationPrecisionSeconds:
		return "second"
	case DurationPrecisionMinutes:
		return "minute"
	case DurationPrecisionHours:
		return "hour"
	case DurationPrecisionDays:
		return "day"
	}
	return "Unknown"
}

func pluralize(val int64) string {
	if val == 1 {
		return ""
	}
	return "s"
}

// HumanizeDuration formats d as "2 days, 3 hours and 4 minutes", units below precision are dropped
func HumanizeDuration(precision DurationFormatPrecision, in time.Duration) string {
	if in < 0 {
		in = -in
	}

	seconds := int64(in.Seconds())
	days := seconds / (60 * 60 * 24)
	seconds -= days * 60 * 60 * 24
	hours := seconds / (60 * 60)
	seconds -= hours * 60 * 60
	minutes := seconds / 60
	seconds -= minutes * 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d day%s", days, pluralize(days)))
	}
	if hours > 0 && precision <= DurationPrecisionHours {
		parts = append(parts, fmt.Sprintf("%d hour%s", hours, pluralize(hours)))
	}
	if minutes > 0 && precision <= DurationPrecisionMinutes {
		parts = append(parts, fmt.Sprintf("%d minute%s", minutes, pluralize(minutes)))
	}
	if seconds > 0 && precision <= DurationPrecisionSeconds {
		parts = append(parts, fmt.Sprintf("%d second%s", seconds, pluralize(seconds)))
	}

	if len(parts) == 0 {
		return "less than 1 " + precision.String()
	}

	if len(parts) == 1 {
		return parts[0]
	}

	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// DiscordTimestamp renders t with one of discord's timestamp styles (t, T, d, D, f, F, R)
func DiscordTimestamp(t time.Time, style string) string {
	return "<t:" + strconv.FormatInt(t.Unix(), 10) + ":" + style + ">"
}

// CutStringShort cuts s to at most l runes, appending "..." if it had to cut
func CutStringShort(s string, l int) string {
	if utf8.RuneCountInString(s) <= l {
		return s
	}

	runes := []rune(s)
	if l <= 3 {
		return string(runes[:l])
	}

	return string(runes[:l-3]) + "..."
}

func ContainsInt64Slice(slice []int64, search int64) bool {
	for _, v := range slice {
		if v == search {
			return true
		}
	}

	return false
}

func ContainsStringSliceFold(strs []string, search string) bool {
	for _, v := range strs {
		if strings.EqualFold(v, search) {
			return true
		}
	}

	return false
}

// SplitLines splits s on newlines, trimming each line and dropping empty ones
func SplitLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return result
}

// ParseInt parses an integer that may contain thousands separators ("1,250,000")
func ParseInt(s string) (int64, error) {
	cleaned := strings.NewReplacer(",", "", " ", "", "_", "").Replace(strings.TrimSpace(s))
	return strconv.ParseInt(cleaned, 10, 64)
}

// FormatInt formats n with comma thousands separators
func FormatInt(n int64) string {
	str := strconv.FormatInt(n, 10)
	neg := false
	if n < 0 {
		neg = true
		str = str[1:]
	}

	var b strings.Builder
	pre := len(str) % 3
	if pre > 0 {
		b.WriteString(str[:pre])
	}
	for i := pre; i < len(str); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(str[i : i+3])
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}
