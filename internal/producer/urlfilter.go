package producer

import (
	"strings"
	"unicode"
)

// IsValidNewsURL is the acceptance rule for candidate article URLs.
// A URL passes iff no excluded pattern appears anywhere in it, AND it
// either sits under a known news section or its last path segment
// carries a digit (article ids end most article slugs).
func IsValidNewsURL(url string, excludedPatterns, newsSections []string) bool {
	lower := strings.ToLower(url)

	for _, pattern := range excludedPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}

	for _, section := range newsSections {
		if strings.Contains(lower, section) {
			return true
		}
	}

	return lastSegmentHasDigit(url)
}

func lastSegmentHasDigit(url string) bool {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return false
	}
	for _, r := range url[idx+1:] {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
