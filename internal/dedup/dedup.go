// Package dedup implements the two-tier duplicate detection for
// ingested images: a source-URL lookup that avoids the fetch entirely,
// and a content-hash comparison that avoids storing byte-identical
// files under different names.
package dedup

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/sotarylen/mediapress/internal/domain"
)

// SourceFinder looks up asset records by their original external URL.
type SourceFinder interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Asset, error)
}

// Index is the dedup index. When SkipDuplicates is disabled both tiers
// are bypassed and every reference produces a new asset record.
type Index struct {
	assets         SourceFinder
	skipDuplicates bool
}

// New creates a dedup index.
func New(assets SourceFinder, skipDuplicates bool) *Index {
	return &Index{assets: assets, skipDuplicates: skipDuplicates}
}

// FindBySource returns the existing asset for a source URL, or nil when
// none exists or dedup is disabled. This tier runs before any fetch.
func (i *Index) FindBySource(ctx context.Context, sourceURL string) (*domain.Asset, error) {
	if !i.skipDuplicates {
		return nil, nil
	}
	return i.assets.FindBySourceURL(ctx, sourceURL)
}

// SameContent reports whether two files on disk hold identical bytes,
// by SHA-1 comparison. This tier runs after a fetch, before a new
// record is registered for a file that would occupy an occupied name.
func (i *Index) SameContent(pathA, pathB string) (bool, error) {
	if !i.skipDuplicates {
		return false, nil
	}

	hashA, err := FileSHA1(pathA)
	if err != nil {
		return false, err
	}
	hashB, err := FileSHA1(pathB)
	if err != nil {
		return false, err
	}

	return hashA == hashB, nil
}

// FileSHA1 returns the hex SHA-1 digest of a file's contents. SHA-1 is
// sufficient here: the guarantee needed is collision resistance against
// accidental duplicates, not cryptographic strength.
func FileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
