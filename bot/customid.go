package bot

import (
	"fmt"
	"strconv"
	"strings"

	"emperror.dev/errors"
)

const (
	customIDSeparator = ":"
	maxCustomIDLength = 100
)

// CustomID builds a component custom id of the form "prefix:arg:arg"
func CustomID(prefix string, args ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, v := range args {
		b.WriteString(customIDSeparator)
		b.WriteString(fmt.Sprint(v))
	}

	out := b.String()
	if len(out) > maxCustomIDLength {
		logger.Warn("custom id too long, truncating: ", out)
		out = out[:maxCustomIDLength]
	}
	return out
}

// ParsedCustomID is a decoded custom id
type ParsedCustomID struct {
	Raw    string
	Prefix string
	Args   []string
}

func ParseCustomID(s string) ParsedCustomID {
	parts := strings.Split(s, customIDSeparator)
	return ParsedCustomID{
		Raw:    s,
		Prefix: parts[0],
		Args:   parts[1:],
	}
}

// Arg returns the i'th argument or an empty string
func (p ParsedCustomID) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// Int64 parses the i'th argument as an integer
func (p ParsedCustomID) Int64(i int) (int64, error) {
	if i < 0 || i >= len(p.Args) {
		return 0, errors.Errorf("custom id %q has no argument %d", p.Raw, i)
	}

	n, err := strconv.ParseInt(p.Args[i], 10, 64)
	if err != nil {
		return 0, errors.WithMessage(err, "custom id "+p.Raw)
	}
	return n, nil
}

func (p ParsedCustomID) String() string {
	return p.Raw
}
