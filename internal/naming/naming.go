// Package naming resolves filename templates for incoming assets.
package naming

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context carries the values available to template placeholders for one
// image. It is assembled per image and read-only during resolution.
type Context struct {
	Filename  string
	AltText   string
	TitleText string
	DocTitle  string
	DocSlug   string
	DocID     int64
	DocDate   time.Time
	Now       time.Time
	// RandomToken is generated when empty so tests can pin it.
	RandomToken string
}

// randomTokenLength truncates the uuid-derived token to a filename-friendly size.
const randomTokenLength = 12

// Resolve substitutes the closed placeholder set into template and
// sanitizes the result. Unknown placeholders pass through as literal
// text. The empty string is returned untouched; callers fall back to a
// synthetic name.
func Resolve(template string, c Context) string {
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	token := c.RandomToken
	if token == "" {
		token = strings.ReplaceAll(uuid.NewString(), "-", "")[:randomTokenLength]
	}

	replacer := strings.NewReplacer(
		"%filename%", c.Filename,
		"%alt%", c.AltText,
		"%title%", c.TitleText,
		"%post_title%", c.DocTitle,
		"%post_slug%", c.DocSlug,
		"%post_id%", fmt.Sprintf("%d", c.DocID),
		"%post_date%", formatDocDate(c.DocDate),
		"%year%", now.Format("2006"),
		"%month%", now.Format("01"),
		"%day%", now.Format("02"),
		"%random%", token,
	)

	return Sanitize(replacer.Replace(template))
}

// formatDocDate renders the document date, empty when unset.
func formatDocDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// Sanitize strips path separators and control characters so the result
// is safe to use as a single filename component.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Fallback returns the synthetic name used when resolution yields an
// empty string.
func Fallback(now time.Time) string {
	if now.IsZero() {
		now = time.Now()
	}
	return fmt.Sprintf("image_%d", now.Unix())
}
