// Package rewriter substitutes asset references inside content blobs,
// both for a single document and across the whole corpus.
package rewriter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sotarylen/mediapress/internal/logger"
)

// DocumentStore is the content-store seam the corpus rewrite needs.
type DocumentStore interface {
	UpdateBlob(ctx context.Context, id int64, blob string) error
	StreamContaining(ctx context.Context, substring string, fn func(id int64, blob string) error) error
}

// Rewriter performs reference substitution.
type Rewriter struct {
	docs DocumentStore
	log  logger.Interface
}

// New creates a rewriter. docs may be nil if only RewriteBlob is used.
func New(docs DocumentStore, log logger.Interface) *Rewriter {
	return &Rewriter{docs: docs, log: log}
}

// RewriteBlob replaces every literal occurrence of oldURL with newURL
// in one blob. When the asset's alt text changed, alt attributes whose
// value equals oldAlt are updated to newAlt (attribute name matched
// case-insensitively). Returns the new blob and whether anything changed.
func RewriteBlob(blob, oldURL, newURL, oldAlt, newAlt string) (string, bool) {
	out := blob
	if oldURL != "" && oldURL != newURL {
		out = strings.ReplaceAll(out, oldURL, newURL)
	}
	if oldAlt != "" && oldAlt != newAlt {
		out = rewriteAltAttr(out, oldAlt, newAlt)
	}
	return out, out != blob
}

// rewriteAltAttr replaces alt="oldAlt" attributes, matching the
// attribute name without case sensitivity but the value exactly. The
// leading boundary keeps longer attribute names such as data-alt from
// matching.
func rewriteAltAttr(blob, oldAlt, newAlt string) string {
	pattern := regexp.MustCompile(`(?i)(^|[^\w-])(alt)(\s*=\s*")` + regexp.QuoteMeta(oldAlt) + `(")`)
	return pattern.ReplaceAllStringFunc(blob, func(match string) string {
		sub := pattern.FindStringSubmatch(match)
		return sub[1] + sub[2] + sub[3] + newAlt + sub[4]
	})
}

// RewriteCorpus replaces oldURL with newURL in every document whose
// blob contains it as a literal substring, persisting each modified
// document. Documents stream from the store; a failure updating one
// document is logged and skipped, never aborting the scan. Returns the
// number of documents modified.
//
// Matching is deliberately literal: a stored %20 and a literal space
// are different strings, mirroring the storage convention.
func (rw *Rewriter) RewriteCorpus(ctx context.Context, oldURL, newURL string) (int, error) {
	if oldURL == "" || oldURL == newURL {
		return 0, nil
	}

	modified := 0
	err := rw.docs.StreamContaining(ctx, oldURL, func(id int64, blob string) error {
		newBlob := strings.ReplaceAll(blob, oldURL, newURL)
		if newBlob == blob {
			return nil
		}

		if updateErr := rw.docs.UpdateBlob(ctx, id, newBlob); updateErr != nil {
			rw.log.Error("corpus rewrite failed for document",
				"document_id", id,
				"old_url", oldURL,
				"error", updateErr.Error(),
			)
			return nil
		}

		modified++
		return nil
	})
	if err != nil {
		return modified, fmt.Errorf("corpus rewrite scan: %w", err)
	}

	rw.log.Info("corpus rewrite complete",
		"old_url", oldURL,
		"new_url", newURL,
		"documents_modified", modified,
	)

	return modified, nil
}
