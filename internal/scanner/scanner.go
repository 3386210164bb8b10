// Package scanner extracts image references from content blobs.
package scanner

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sotarylen/mediapress/internal/domain"
)

// Scanner parses content blobs as HTML-like markup and extracts every
// <img> reference from src and srcset attributes.
type Scanner struct{}

// New creates a new content scanner.
func New() *Scanner {
	return &Scanner{}
}

// Scan returns the ordered list of unique image references in the blob.
// The first occurrence of a URL wins; later duplicates in the same blob
// are folded into it, keeping the first occurrence's alt and title text.
func (s *Scanner) Scan(blob string) ([]domain.ImageRef, error) {
	normalized := normalizeBlob(blob)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(normalized))
	if err != nil {
		return nil, err
	}

	var refs []domain.ImageRef
	seen := make(map[string]struct{})

	add := func(url, alt, title string) {
		raw := strings.TrimSpace(url)
		if raw == "" {
			return
		}
		normalized := normalizeProtocolRelative(raw)
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		refs = append(refs, domain.ImageRef{URL: normalized, RawURL: raw, AltText: alt, TitleText: title})
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		alt, _ := sel.Attr("alt")
		title, _ := sel.Attr("title")

		if src, exists := sel.Attr("src"); exists {
			add(src, alt, title)
		}

		if srcset, exists := sel.Attr("srcset"); exists {
			for _, url := range parseSrcset(srcset) {
				add(url, alt, title)
			}
		}
	})

	return refs, nil
}

// normalizeBlob undoes a JSON round-trip the blob may have been
// through. Two symptoms are handled: the whole blob being a JSON
// string, and backslash-escaped quotes inside otherwise raw markup.
// This is a pattern heuristic, not a JSON grammar check; when decoding
// fails the blob is left unchanged.
func normalizeBlob(blob string) string {
	trimmed := strings.TrimSpace(blob)

	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		var decoded string
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}

	if strings.Contains(blob, `\"`) {
		return strings.ReplaceAll(blob, `\"`, `"`)
	}

	return blob
}

// parseSrcset splits a srcset attribute into its URL tokens, dropping
// width and density descriptors.
func parseSrcset(srcset string) []string {
	var urls []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) == 0 {
			continue
		}
		urls = append(urls, fields[0])
	}
	return urls
}

// normalizeProtocolRelative rewrites //host/... URLs to an explicit
// https:// form.
func normalizeProtocolRelative(url string) string {
	if strings.HasPrefix(url, "//") {
		return "https:" + url
	}
	return url
}
