// internal/widget/slug.go
//
// Slug helpers for widget creation.
//
// • MakeSlug(text) ─ converts arbitrary text into a URL-safe slug
//   restricted to ASCII a-z, 0-9 and “-”.
// • randomSuffix(n) ─ short random tail that makes the slug globally
//   unique without coordinating across instances.
//
// Rules (MakeSlug)
// ----------------
// 1. Lower-case everything.
// 2. Convert any run of non-[a-z0-9] characters to one “-”.  That strips
//    spaces, punctuation, emoji, and non-ASCII.
// 3. Collapse consecutive “-” to a single “-”.
// 4. Trim leading / trailing “-”.
// 5. If the result is empty, return "widget".
//
// Slugs are capped at 40 runes before the suffix, matching the public
// URL budget.

package widget

import (
	"crypto/rand"
	"strings"
)

// MakeSlug converts text → lower-kebab ASCII.
func MakeSlug(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	lastWasDash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastWasDash = false
		default:
			// any non-ASCII or punctuation becomes a single dash
			if !lastWasDash {
				b.WriteRune('-')
				lastWasDash = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "widget"
	}
	if len(slug) > 40 {
		slug = slug[:40]
		slug = strings.TrimRightFunc(slug, func(r rune) bool { return r == '-' })
	}
	return slug
}

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomSuffix returns n random characters from the slug alphabet.
func randomSuffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf)
}
