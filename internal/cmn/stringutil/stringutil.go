package stringutil

import (
	"fmt"
	"strconv"
	"strings"
)

// TruncString returns truncated string.
func TruncString(val string, max int) string {
	if len(val) > max {
		return val[:max]
	}
	return val
}

// ParseBool parses a boolean value from the given input.
func ParseBool(value any) (bool, error) {
	switch v := value.(type) {
	case string:
		return strconv.ParseBool(v)
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("unsupported type %T for bool (value: %+v)", value, value)
	}
}

// RemoveQuotes removes leading and trailing double quotes from a string if present,
// and unescapes the content using strconv.Unquote.
func RemoveQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		unquoted, err := strconv.Unquote(s)
		if err == nil {
			return unquoted
		}
	}
	return s
}

// IsMultiLine checks if the given string contains multiple lines.
func IsMultiLine(s string) bool {
	return strings.ContainsAny(s, "\n\r")
}

// ParseKeyValue splits "KEY=VALUE" into its parts. The value may be
// wrapped in double quotes.
func ParseKeyValue(s string) (string, string, error) {
	key, value, found := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", fmt.Errorf("invalid key=value pair %q", s)
	}
	return key, RemoveQuotes(value), nil
}

// ParseKeyValues parses a list of "KEY=VALUE" pairs into a map.
// Later pairs override earlier ones.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, err := ParseKeyValue(p)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Indent prefixes every non-empty line of s with prefix.
func Indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
