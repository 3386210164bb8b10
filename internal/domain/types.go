// Package domain defines the core types shared across the ingestion
// and transcode pipelines.
package domain

import "time"

// Document is one unit of stored content. The blob is opaque markup;
// the pipeline reads metadata and reads/writes the blob's serialized form.
type Document struct {
	ID        int64     `db:"id" json:"id"`
	Blob      string    `db:"blob" json:"blob"`
	Title     string    `db:"title" json:"title"`
	Slug      string    `db:"slug" json:"slug"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	AuthorID  int64     `db:"author_id" json:"author_id"`
	Type      string    `db:"doc_type" json:"type"`
}

// ImageRef is a single image reference extracted from a document blob.
// It exists only while that document is being processed.
type ImageRef struct {
	// URL is the normalized fetchable form of the reference.
	URL string `json:"url"`
	// RawURL is the attribute text as it appears in the blob. It can
	// differ from URL (protocol-relative sources) and is what a rewrite
	// must match against.
	RawURL    string `json:"raw_url,omitempty"`
	AltText   string `json:"alt_text,omitempty"`
	TitleText string `json:"title_text,omitempty"`
}

// Asset is the durable record of one stored, locally served file.
// SourceURL is the external URL the bytes came from and acts as the
// dedup key; it never changes after creation and is nil for assets
// that did not originate from a remote fetch.
type Asset struct {
	ID               int64     `db:"id" json:"id"`
	FilePath         string    `db:"file_path" json:"file_path"`
	PublicURL        string    `db:"public_url" json:"public_url"`
	MimeType         string    `db:"mime_type" json:"mime_type"`
	SourceURL        *string   `db:"source_url" json:"source_url,omitempty"`
	AltText          string    `db:"alt_text" json:"alt_text,omitempty"`
	ParentDocumentID *int64    `db:"parent_document_id" json:"parent_document_id,omitempty"`
	SizeBytes        int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ConvertibleAsset is the projection of an Asset returned by candidate
// scans for the transcode batch engine.
type ConvertibleAsset struct {
	ID               int64  `db:"id" json:"id"`
	FilePath         string `db:"file_path" json:"file_path"`
	PublicURL        string `db:"public_url" json:"public_url"`
	MimeType         string `db:"mime_type" json:"mime_type"`
	SizeBytes        int64  `db:"size_bytes" json:"size_bytes"`
	ParentDocumentID *int64 `db:"parent_document_id" json:"parent_document_id,omitempty"`
}

// FailedURL is one Failure Ledger entry. FirstFailedAt is preserved
// across repeated failures of the same URL and drives eviction order.
type FailedURL struct {
	URL           string    `db:"url" json:"url"`
	FirstFailedAt time.Time `db:"first_failed_at" json:"first_failed_at"`
}
