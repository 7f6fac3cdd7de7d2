// Package domain canonicalizes user supplied domains into the key used for
// lookups and uniqueness.
package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidDomain is returned for empty or malformed input. It is raised
// before any network work happens.
var ErrInvalidDomain = errors.New("invalid domain")

// hostname: dot separated labels of letters, digits and inner hyphens,
// ending in an alphabetic TLD of at least two characters.
var hostnamePattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// Normalize turns "https://www.Example.com:8080/path?q" into "example.com".
// Normalizing an already normalized value returns it unchanged.
func Normalize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", fmt.Errorf("%w: empty input", ErrInvalidDomain)
	}

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimPrefix(s, "//")

	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")

	// Repeated so that the result is a fixed point; a bare "www.tld" is kept.
	for strings.HasPrefix(s, "www.") && strings.Contains(s[len("www."):], ".") {
		s = s[len("www."):]
	}

	if !hostnamePattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	return s, nil
}

// IsValid reports whether raw normalizes without error.
func IsValid(raw string) bool {
	_, err := Normalize(raw)
	return err == nil
}
