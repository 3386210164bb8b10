// Package registrar persists fetched image bytes and creates their
// asset records, including the source-URL back-reference future dedup
// lookups depend on.
package registrar

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sotarylen/mediapress/internal/domain"
	"github.com/sotarylen/mediapress/internal/logger"
	"github.com/sotarylen/mediapress/internal/naming"
)

// AssetStore is the subset of the asset repository the registrar needs.
type AssetStore interface {
	Create(ctx context.Context, asset *domain.Asset) error
	FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Asset, error)
	Delete(ctx context.Context, id int64) error
}

// ContentComparer reports whether two files on disk hold identical
// bytes. When duplicate detection is disabled it reports false for
// every pair, so collisions always get a fresh suffixed name.
type ContentComparer interface {
	SameContent(pathA, pathB string) (bool, error)
}

// DerivativeGenerator produces derived sizes (thumbnails) for a stored
// file. Generation itself belongs to the serving platform; the
// registrar only decides whether to invoke it.
type DerivativeGenerator interface {
	Generate(ctx context.Context, filePath string) error
}

// Config holds registrar settings.
type Config struct {
	// UploadDir is where asset files are written.
	UploadDir string
	// PublicBaseURL is the URL prefix files in UploadDir are served under.
	PublicBaseURL string
	// GenerateDerivedSizes controls whether the derivative generator
	// runs after registration. The memory-optimized legacy path is this
	// flag set to false.
	GenerateDerivedSizes bool
}

// Params describes one registration request. TempPath is consumed: on
// success the file has been moved into the upload directory or deleted
// as a duplicate.
type Params struct {
	TempPath        string
	ResolvedName    string
	Extension       string
	SourceURL       string
	AltText         string
	OwnerDocumentID *int64
}

// Registrar writes asset files and records.
type Registrar struct {
	assets      AssetStore
	compare     ContentComparer
	derivatives DerivativeGenerator
	cfg         Config
	log         logger.Interface
}

// New creates a registrar. derivatives may be nil.
func New(assets AssetStore, compare ContentComparer, derivatives DerivativeGenerator, cfg Config, log logger.Interface) *Registrar {
	return &Registrar{assets: assets, compare: compare, derivatives: derivatives, cfg: cfg, log: log}
}

// maxSuffixAttempts bounds the collision-suffix search.
const maxSuffixAttempts = 1000

// Register stores the fetched bytes under the resolved name and creates
// the asset record. Name collisions are resolved by an incrementing
// numeric suffix, except that a same-name file with identical content
// is reused instead of duplicated (a prior partial run left it there).
func (r *Registrar) Register(ctx context.Context, p Params) (*domain.Asset, error) {
	if err := os.MkdirAll(r.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := naming.Sanitize(p.ResolvedName)
	ext := normalizeExtension(p.Extension)

	targetPath, reused, err := r.placeFile(p.TempPath, name, ext)
	if err != nil {
		return nil, err
	}

	asset := &domain.Asset{
		FilePath:         targetPath,
		PublicURL:        r.publicURL(targetPath),
		MimeType:         mimeFromName(targetPath),
		AltText:          p.AltText,
		ParentDocumentID: p.OwnerDocumentID,
	}
	if p.SourceURL != "" {
		src := p.SourceURL
		asset.SourceURL = &src
	}
	if info, statErr := os.Stat(targetPath); statErr == nil {
		asset.SizeBytes = info.Size()
	}

	if err := r.assets.Create(ctx, asset); err != nil {
		return nil, fmt.Errorf("create asset record: %w", err)
	}

	// Insert-if-absent on source_url: if a concurrent writer created a
	// record for the same source first, resolve to that record and
	// withdraw ours.
	if p.SourceURL != "" {
		canonical, findErr := r.assets.FindBySourceURL(ctx, p.SourceURL)
		if findErr == nil && canonical != nil && canonical.ID != asset.ID {
			r.withdraw(ctx, asset, targetPath, reused)
			return canonical, nil
		}
	}

	if r.cfg.GenerateDerivedSizes && r.derivatives != nil {
		if genErr := r.derivatives.Generate(ctx, targetPath); genErr != nil {
			r.log.Warn("derived size generation failed", "path", targetPath, "error", genErr)
		}
	}

	r.log.Info("asset registered",
		"asset_id", asset.ID,
		"path", targetPath,
		"source_url", p.SourceURL,
		"reused_file", reused,
	)

	return asset, nil
}

// placeFile moves the temp file to its final name, appending numeric
// suffixes on collision. Returns the final path and whether an existing
// identical file was reused.
func (r *Registrar) placeFile(tempPath, name, ext string) (string, bool, error) {
	if name == "" {
		name = naming.Fallback(time.Time{})
	}

	for attempt := 0; attempt < maxSuffixAttempts; attempt++ {
		candidate := name
		if attempt > 0 {
			candidate = fmt.Sprintf("%s-%d", name, attempt)
		}
		target := filepath.Join(r.cfg.UploadDir, candidate+ext)

		if _, statErr := os.Stat(target); statErr == nil {
			same, hashErr := r.compare.SameContent(tempPath, target)
			if hashErr != nil {
				return "", false, hashErr
			}
			if same {
				// Prior run already stored these bytes here.
				if rmErr := os.Remove(tempPath); rmErr != nil && !os.IsNotExist(rmErr) {
					r.log.Warn("failed to remove temp file", "path", tempPath, "error", rmErr)
				}
				return target, true, nil
			}
			continue
		}

		if err := moveFile(tempPath, target); err != nil {
			return "", false, fmt.Errorf("store asset file: %w", err)
		}
		return target, false, nil
	}

	return "", false, fmt.Errorf("no free filename for %q after %d attempts", name+ext, maxSuffixAttempts)
}

// withdraw undoes a registration that lost the source-URL race.
func (r *Registrar) withdraw(ctx context.Context, asset *domain.Asset, path string, reusedFile bool) {
	if err := r.assets.Delete(ctx, asset.ID); err != nil {
		r.log.Warn("failed to withdraw duplicate asset record", "asset_id", asset.ID, "error", err)
	}
	if !reusedFile {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			r.log.Warn("failed to remove duplicate asset file", "path", path, "error", err)
		}
	}
}

// publicURL maps a file path inside UploadDir to its served URL.
func (r *Registrar) publicURL(path string) string {
	rel, err := filepath.Rel(r.cfg.UploadDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return strings.TrimRight(r.cfg.PublicBaseURL, "/") + "/" + filepath.ToSlash(rel)
}

// moveFile renames, falling back to copy+remove across filesystems
// (temp dir and upload dir are often different mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	return os.Remove(src)
}

// mimeFromName sniffs the mime type from the sanitized filename.
func mimeFromName(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		// TypeByExtension may append a charset parameter.
		if idx := strings.Index(t, ";"); idx >= 0 {
			return t[:idx]
		}
		return t
	}
	return "application/octet-stream"
}

// normalizeExtension ensures a leading dot and lower case.
func normalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
