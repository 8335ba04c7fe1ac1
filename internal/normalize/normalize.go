package normalize

import "strings"

// Email returns a normalized form of an email address suitable for
// storage and comparisons. Normalization currently trims surrounding
// whitespace and lower-cases the address.
func Email(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// Content trims surrounding whitespace from a message body. An empty result
// means there is nothing to send.
func Content(c string) string {
	return strings.TrimSpace(c)
}
