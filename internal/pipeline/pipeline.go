// Package pipeline orchestrates single-document image ingestion: scan,
// validate, dedup, fetch, register, rewrite.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sotarylen/mediapress/internal/domain"
	"github.com/sotarylen/mediapress/internal/fetcher"
	"github.com/sotarylen/mediapress/internal/logger"
	"github.com/sotarylen/mediapress/internal/naming"
	"github.com/sotarylen/mediapress/internal/registrar"
	"github.com/sotarylen/mediapress/internal/rewriter"
	"github.com/sotarylen/mediapress/internal/scanner"
	"github.com/sotarylen/mediapress/internal/validator"
)

// DocumentStore reads and writes content documents.
type DocumentStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	UpdateBlob(ctx context.Context, id int64, blob string) error
}

// Ledger is the failure ledger of known-bad source URLs.
type Ledger interface {
	IsFailed(ctx context.Context, url string) (bool, error)
	RecordFailure(ctx context.Context, url string) error
}

// DedupIndex is the pre-fetch source-URL lookup tier.
type DedupIndex interface {
	FindBySource(ctx context.Context, sourceURL string) (*domain.Asset, error)
}

// ImageFetcher retrieves remote images to temp files.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// AssetRegistrar persists fetched bytes and creates asset records.
type AssetRegistrar interface {
	Register(ctx context.Context, p registrar.Params) (*domain.Asset, error)
}

// RefStatus classifies the outcome of processing one image reference.
type RefStatus string

// Reference outcomes. The failure statuses mirror the error taxonomy:
// validation rejections are never fetched, ledger hits never consume
// retry budget, and storage failures never abort sibling references.
const (
	StatusRegistered       RefStatus = "registered"
	StatusDuplicate        RefStatus = "duplicate"
	StatusRejected         RefStatus = "validation-rejected"
	StatusPreviouslyFailed RefStatus = "previously-failed"
	StatusTransportFailed  RefStatus = "transport-failed"
	StatusHTTPFailed       RefStatus = "http-status-failed"
	StatusNotAnImage       RefStatus = "not-an-image"
	StatusStorageFailed    RefStatus = "storage-failed"
)

// RefResult is the per-reference outcome.
type RefResult struct {
	URL     string    `json:"url"`
	Status  RefStatus `json:"status"`
	AssetID int64     `json:"asset_id,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Result is the outcome of ingesting one document.
type Result struct {
	DocumentID int64       `json:"document_id"`
	Modified   bool        `json:"modified"`
	NewBlob    string      `json:"new_blob,omitempty"`
	Refs       []RefResult `json:"refs"`
}

// Config holds pipeline settings.
type Config struct {
	// NamingTemplate is the filename template for stored assets.
	NamingTemplate string
	// MaxRetries is the additional fetch attempts after the first.
	MaxRetries int
}

// Pipeline is the single-document ingestion orchestrator. It runs
// synchronously within whatever invoked it, one reference at a time.
type Pipeline struct {
	docs     DocumentStore
	scanner  *scanner.Scanner
	validate *validator.Validator
	ledger   Ledger
	index    DedupIndex
	fetch    ImageFetcher
	register AssetRegistrar
	cfg      Config
	log      logger.Interface
}

// New creates an ingestion pipeline.
func New(
	docs DocumentStore,
	scan *scanner.Scanner,
	validate *validator.Validator,
	ledger Ledger,
	index DedupIndex,
	fetch ImageFetcher,
	register AssetRegistrar,
	cfg Config,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		docs:     docs,
		scanner:  scan,
		validate: validate,
		ledger:   ledger,
		index:    index,
		fetch:    fetch,
		register: register,
		cfg:      cfg,
		log:      log,
	}
}

// Ingest processes one document: every eligible external image
// reference is localized and the blob rewritten to point at the local
// asset. Failing references never abort their siblings; the returned
// blob reflects every substitution that did succeed.
func (p *Pipeline) Ingest(ctx context.Context, documentID int64) (*Result, error) {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document %d: %w", documentID, err)
	}

	refs, err := p.scanner.Scan(doc.Blob)
	if err != nil {
		return nil, fmt.Errorf("scan document %d: %w", documentID, err)
	}

	result := &Result{DocumentID: documentID}
	blob := doc.Blob

	for _, ref := range refs {
		refResult, asset := p.processRef(ctx, doc, ref)
		result.Refs = append(result.Refs, refResult)

		if asset != nil && asset.PublicURL != "" && asset.PublicURL != ref.URL {
			// The blob carries the raw attribute text, which for a
			// protocol-relative source differs from the fetched URL. The
			// normalized form goes first: it contains the raw form as a
			// suffix, so the reverse order would corrupt absolute
			// occurrences.
			blob, _ = rewriter.RewriteBlob(blob, ref.URL, asset.PublicURL, "", "")
			if ref.RawURL != "" && ref.RawURL != ref.URL {
				blob, _ = rewriter.RewriteBlob(blob, ref.RawURL, asset.PublicURL, "", "")
			}
		}
	}

	if blob != doc.Blob {
		if saveErr := p.docs.UpdateBlob(ctx, documentID, blob); saveErr != nil {
			return nil, fmt.Errorf("save document %d: %w", documentID, saveErr)
		}
		result.Modified = true
		result.NewBlob = blob
	}

	p.log.Info("document ingested",
		"document_id", documentID,
		"references", len(refs),
		"modified", result.Modified,
	)

	return result, nil
}

// processRef runs one image reference through the full per-reference
// path. The returned asset is non-nil when the reference now has a
// local asset to rewrite to.
func (p *Pipeline) processRef(
	ctx context.Context,
	doc *domain.Document,
	ref domain.ImageRef,
) (RefResult, *domain.Asset) {
	if vr := p.validate.Validate(ref.URL, doc); !vr.Eligible {
		return RefResult{URL: ref.URL, Status: StatusRejected, Detail: string(vr.Reason)}, nil
	}

	// Ledger check precedes any fetch; a hit short-circuits without
	// consuming retry budget.
	failed, ledgerErr := p.ledger.IsFailed(ctx, ref.URL)
	if ledgerErr != nil {
		return RefResult{URL: ref.URL, Status: StatusStorageFailed, Detail: ledgerErr.Error()}, nil
	}
	if failed {
		return RefResult{URL: ref.URL, Status: StatusPreviouslyFailed}, nil
	}

	// Source-URL dedup tier: cheapest, avoids the request entirely.
	existing, dedupErr := p.index.FindBySource(ctx, ref.URL)
	if dedupErr != nil {
		return RefResult{URL: ref.URL, Status: StatusStorageFailed, Detail: dedupErr.Error()}, nil
	}
	if existing != nil {
		return RefResult{URL: ref.URL, Status: StatusDuplicate, AssetID: existing.ID}, existing
	}

	fetched, status, detail := p.fetchWithRetries(ctx, ref.URL)
	if fetched == nil {
		return RefResult{URL: ref.URL, Status: status, Detail: detail}, nil
	}

	stem, ext := nameFromURL(ref.URL, fetched.Header.Get("Content-Type"))
	ownerID := doc.ID
	resolved := naming.Resolve(p.cfg.NamingTemplate, naming.Context{
		Filename:  stem,
		AltText:   ref.AltText,
		TitleText: ref.TitleText,
		DocTitle:  doc.Title,
		DocSlug:   doc.Slug,
		DocID:     doc.ID,
		DocDate:   doc.CreatedAt,
	})

	asset, regErr := p.register.Register(ctx, registrar.Params{
		TempPath:        fetched.TempPath,
		ResolvedName:    resolved,
		Extension:       ext,
		SourceURL:       ref.URL,
		AltText:         ref.AltText,
		OwnerDocumentID: &ownerID,
	})
	if regErr != nil {
		return RefResult{URL: ref.URL, Status: StatusStorageFailed, Detail: regErr.Error()}, nil
	}

	return RefResult{URL: ref.URL, Status: StatusRegistered, AssetID: asset.ID}, asset
}

// fetchWithRetries attempts the fetch up to 1+MaxRetries times for
// retryable failures. Once the budget is exhausted, or on a permanent
// failure, the URL is recorded in the ledger.
func (p *Pipeline) fetchWithRetries(
	ctx context.Context,
	rawURL string,
) (*fetcher.Result, RefStatus, string) {
	attempts := 1 + p.cfg.MaxRetries

	var lastStatus RefStatus
	var lastDetail string

	for attempt := 0; attempt < attempts; attempt++ {
		fetched, err := p.fetch.Fetch(ctx, rawURL)
		if err == nil {
			return fetched, StatusRegistered, ""
		}

		var notImage *fetcher.NotImageError
		var httpErr *fetcher.HTTPError
		var transportErr *fetcher.TransportError

		switch {
		case errors.As(err, &notImage):
			// Permanent for this URL; retrying cannot help.
			p.recordFailure(ctx, rawURL)
			return nil, StatusNotAnImage, notImage.Detail
		case errors.As(err, &httpErr):
			lastStatus = StatusHTTPFailed
			lastDetail = fmt.Sprintf("status %d", httpErr.StatusCode)
		case errors.As(err, &transportErr):
			lastStatus = StatusTransportFailed
			lastDetail = transportErr.Err.Error()
		case errors.Is(err, fetcher.ErrEmptyBody):
			lastStatus = StatusTransportFailed
			lastDetail = err.Error()
		default:
			lastStatus = StatusStorageFailed
			lastDetail = err.Error()
		}

		if ctx.Err() != nil {
			return nil, lastStatus, lastDetail
		}
	}

	p.recordFailure(ctx, rawURL)
	return nil, lastStatus, lastDetail
}

// recordFailure adds the URL to the ledger, logging on error.
func (p *Pipeline) recordFailure(ctx context.Context, rawURL string) {
	if err := p.ledger.RecordFailure(ctx, rawURL); err != nil {
		p.log.Error("failed to record ledger entry", "url", rawURL, "error", err.Error())
	}
}

// nameFromURL derives a filename stem and extension for the fetched
// image from its URL path, falling back to the response content type
// for the extension.
func nameFromURL(rawURL, contentType string) (stem, ext string) {
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "." || base == "/" {
		base = ""
	}

	ext = path.Ext(base)
	stem = strings.TrimSuffix(base, ext)

	if stem == "" {
		stem = naming.Fallback(time.Now())
	}
	if ext == "" {
		ext = extensionForContentType(contentType)
	}

	return stem, ext
}

// extensionForContentType maps common image content types to a file
// extension.
func extensionForContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	switch strings.TrimSpace(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	case "image/tiff":
		return ".tiff"
	default:
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			return exts[0]
		}
		return ""
	}
}
