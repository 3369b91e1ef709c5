package util

import "strings"

// SafeTruncate truncates s to maxLen characters without panicking. Used when
// logging sensitive data like tokens, where only a prefix should be shown.
// A negative maxLen returns an empty string.
func SafeTruncate(s string, maxLen int) string {
	if maxLen < 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// NormalizeURL normalizes a URL for comparison and joining by removing
// trailing slashes, so issuers with and without a trailing slash are
// equivalent.
func NormalizeURL(url string) string {
	return strings.TrimRight(url, "/")
}
