package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/sotarylen/mediapress/internal/domain"
	"github.com/sotarylen/mediapress/internal/logger"
)

// ReservationName is the shared name of the batch-run reservation.
const ReservationName = "transcode-batch"

// ErrBatchAlreadyRunning is returned when a run is requested while
// another holds the reservation. Requests are rejected, never queued.
var ErrBatchAlreadyRunning = errors.New("a transcode batch run is already active")

// AssetStore is the asset-repository surface the engine needs.
type AssetStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Asset, error)
	ListConvertible(ctx context.Context, mimeTypes []string, minSizeBytes int64, limit, offset int) ([]domain.ConvertibleAsset, error)
	CountConvertible(ctx context.Context, mimeTypes []string, minSizeBytes int64) (int, error)
	UpdateEncoding(ctx context.Context, id int64, filePath, publicURL, mimeType string, sizeBytes int64) error
}

// CorpusRewriter rewrites one URL across the whole corpus.
type CorpusRewriter interface {
	RewriteCorpus(ctx context.Context, oldURL, newURL string) (int, error)
}

// ReservationStore backs the batch-run mutual exclusion.
type ReservationStore interface {
	Acquire(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, name, owner string, ttl time.Duration) error
	Release(ctx context.Context, name, owner string) error
	IsHeld(ctx context.Context, name string) (bool, error)
}

// Config holds batch engine settings.
type Config struct {
	SourceMimeTypes []string
	MinSizeBytes    int64
	ScanLimit       int
	ChunkSize       int
	Workers         int
	// KeepOriginal retains the source file after conversion; when
	// false, derived sizes are deleted alongside it.
	KeepOriginal   bool
	ReservationTTL time.Duration
}

// ItemStatus classifies one batch item's outcome.
type ItemStatus string

// Batch item outcomes.
const (
	ItemSuccess ItemStatus = "success"
	ItemSkipped ItemStatus = "skipped"
	ItemError   ItemStatus = "error"
)

// ItemResult is the per-item outcome of a conversion chunk.
type ItemResult struct {
	AssetID          int64      `json:"asset_id"`
	Status           ItemStatus `json:"status"`
	DocumentsUpdated int        `json:"documents_updated"`
	Detail           string     `json:"detail,omitempty"`
}

// Stats aggregates item results. All fields are commutative counters.
type Stats struct {
	Success          int `json:"success"`
	Skipped          int `json:"skipped"`
	Errors           int `json:"errors"`
	DocumentsUpdated int `json:"documents_updated"`
}

// add folds one item into the stats.
func (s *Stats) add(item ItemResult) {
	switch item.Status {
	case ItemSuccess:
		s.Success++
	case ItemSkipped:
		s.Skipped++
	case ItemError:
		s.Errors++
	}
	s.DocumentsUpdated += item.DocumentsUpdated
}

// RunStatus is a batch run's terminal state.
type RunStatus string

// Terminal states.
const (
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunError     RunStatus = "error"
)

// ScanResult is the outcome of a candidate scan.
type ScanResult struct {
	Total   int                       `json:"total"`
	Preview []domain.ConvertibleAsset `json:"preview"`
}

// RunResult is the outcome of a full batch run.
type RunResult struct {
	Status RunStatus    `json:"status"`
	Items  []ItemResult `json:"items"`
	Stats  Stats        `json:"stats"`
}

// Engine orchestrates transcode batch runs in cancellable chunks.
type Engine struct {
	assets       AssetStore
	rewriter     CorpusRewriter
	reservations ReservationStore
	converter    *Converter
	cfg          Config
	log          logger.Interface

	// owner identifies this engine instance's reservation claims.
	owner string

	cancelRequested atomic.Bool
}

// NewEngine creates a transcode batch engine.
func NewEngine(
	assets AssetStore,
	rewriter CorpusRewriter,
	reservations ReservationStore,
	converter *Converter,
	cfg Config,
	log logger.Interface,
) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = 2 * time.Minute
	}
	return &Engine{
		assets:       assets,
		rewriter:     rewriter,
		reservations: reservations,
		converter:    converter,
		cfg:          cfg,
		log:          log,
		owner:        uuid.NewString(),
	}
}

// ScanCandidates enumerates convertible assets: total count plus a
// preview page of at most limit entries.
func (e *Engine) ScanCandidates(ctx context.Context, limit int) (*ScanResult, error) {
	if limit <= 0 || limit > e.cfg.ScanLimit {
		limit = e.cfg.ScanLimit
	}

	total, err := e.assets.CountConvertible(ctx, e.cfg.SourceMimeTypes, e.cfg.MinSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}

	preview, err := e.assets.ListConvertible(ctx, e.cfg.SourceMimeTypes, e.cfg.MinSizeBytes, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	return &ScanResult{Total: total, Preview: preview}, nil
}

// IsRunning reports whether any batch run currently holds the
// reservation, whichever process owns it.
func (e *Engine) IsRunning(ctx context.Context) (bool, error) {
	return e.reservations.IsHeld(ctx, ReservationName)
}

// RequestCancel sets the cooperative cancellation flag. The in-flight
// chunk finishes; the run then reports stopped. A later run re-scans
// from scratch since no cursor is persisted.
func (e *Engine) RequestCancel() {
	e.cancelRequested.Store(true)
}

// Run processes all candidate ids in chunks under the batch
// reservation, renewing it between chunks and releasing it on exit. A
// second Run while the reservation is held fails with
// ErrBatchAlreadyRunning.
func (e *Engine) Run(ctx context.Context, ids []int64) (*RunResult, error) {
	acquired, err := e.reservations.Acquire(ctx, ReservationName, e.owner, e.cfg.ReservationTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire batch reservation: %w", err)
	}
	if !acquired {
		return nil, ErrBatchAlreadyRunning
	}

	e.cancelRequested.Store(false)

	defer func() {
		if releaseErr := e.reservations.Release(context.WithoutCancel(ctx), ReservationName, e.owner); releaseErr != nil {
			e.log.Warn("failed to release batch reservation", "error", releaseErr.Error())
		}
	}()

	result := &RunResult{Status: RunCompleted}

	for start := 0; start < len(ids); start += e.cfg.ChunkSize {
		// Cancellation is checked between chunks, never mid-item.
		if e.cancelRequested.Load() || ctx.Err() != nil {
			result.Status = RunStopped
			break
		}

		if renewErr := e.reservations.Renew(ctx, ReservationName, e.owner, e.cfg.ReservationTTL); renewErr != nil {
			e.log.Error("lost batch reservation mid-run", "error", renewErr.Error())
			result.Status = RunError
			break
		}

		end := min(start+e.cfg.ChunkSize, len(ids))
		items := e.processChunk(ctx, ids[start:end])
		for _, item := range items {
			result.Items = append(result.Items, item)
			result.Stats.add(item)
		}
	}

	e.log.Info("batch run finished",
		"status", string(result.Status),
		"success", result.Stats.Success,
		"skipped", result.Stats.Skipped,
		"errors", result.Stats.Errors,
		"documents_updated", result.Stats.DocumentsUpdated,
	)

	return result, nil
}

// ConvertChunk processes one chunk of candidate ids under the batch
// reservation, for callers that drive chunking themselves (one chunk
// per scheduler turn). The reservation is acquired on the first chunk
// and renewed on each subsequent one; it lapses by TTL when the caller
// stops.
func (e *Engine) ConvertChunk(ctx context.Context, ids []int64) ([]ItemResult, error) {
	acquired, err := e.reservations.Acquire(ctx, ReservationName, e.owner, e.cfg.ReservationTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire batch reservation: %w", err)
	}
	if !acquired {
		// Renew succeeds when this engine already owns the reservation
		// from an earlier chunk; otherwise another run is active.
		if renewErr := e.reservations.Renew(ctx, ReservationName, e.owner, e.cfg.ReservationTTL); renewErr != nil {
			return nil, ErrBatchAlreadyRunning
		}
	}

	return e.processChunk(ctx, ids), nil
}

// processChunk converts the chunk's items concurrently up to the worker
// bound. One item's failure never shortens the chunk: every id yields
// exactly one result.
func (e *Engine) processChunk(ctx context.Context, ids []int64) []ItemResult {
	results := make([]ItemResult, len(ids))
	sem := semaphore.NewWeighted(int64(e.cfg.Workers))

	var wg sync.WaitGroup
	for i, id := range ids {
		if acquireErr := sem.Acquire(ctx, 1); acquireErr != nil {
			results[i] = ItemResult{AssetID: id, Status: ItemError, Detail: acquireErr.Error()}
			continue
		}

		wg.Add(1)
		go func(idx int, assetID int64) {
			defer wg.Done()
			defer sem.Release(1)
			results[idx] = e.processItem(ctx, assetID)
		}(i, id)
	}
	wg.Wait()

	return results
}

// processItem converts one asset, or re-associates it with an existing
// converted sibling, then rewrites its references across the corpus.
func (e *Engine) processItem(ctx context.Context, id int64) ItemResult {
	asset, err := e.assets.GetByID(ctx, id)
	if err != nil {
		return ItemResult{AssetID: id, Status: ItemError, Detail: err.Error()}
	}

	if asset.MimeType == e.converter.TargetMime() {
		return ItemResult{AssetID: id, Status: ItemSkipped, Detail: "already in target format"}
	}

	newPath := swapExt(asset.FilePath, e.converter.TargetExt())
	newPublicURL := swapExt(asset.PublicURL, e.converter.TargetExt())

	if _, statErr := os.Stat(newPath); statErr == nil {
		// Converted sibling already on disk (produced out-of-band):
		// re-associate instead of re-encoding.
		e.log.Info("re-associating existing converted sibling", "asset_id", id, "path", newPath)
	} else if convErr := e.converter.Convert(asset.FilePath, newPath); convErr != nil {
		return ItemResult{AssetID: id, Status: ItemError, Detail: convErr.Error()}
	}

	var sizeBytes int64
	if info, statErr := os.Stat(newPath); statErr == nil {
		sizeBytes = info.Size()
	}

	if updateErr := e.assets.UpdateEncoding(ctx, id, newPath, newPublicURL, e.converter.TargetMime(), sizeBytes); updateErr != nil {
		return ItemResult{AssetID: id, Status: ItemError, Detail: updateErr.Error()}
	}

	if !e.cfg.KeepOriginal {
		e.deleteOriginal(asset.FilePath)
	}

	docsUpdated, rewriteErr := e.rewriter.RewriteCorpus(ctx, asset.PublicURL, newPublicURL)
	if rewriteErr != nil {
		return ItemResult{
			AssetID:          id,
			Status:           ItemError,
			DocumentsUpdated: docsUpdated,
			Detail:           fmt.Sprintf("converted but rewrite incomplete: %v", rewriteErr),
		}
	}

	return ItemResult{AssetID: id, Status: ItemSuccess, DocumentsUpdated: docsUpdated}
}

// deleteOriginal removes the stale source file and its derived sizes
// (the <stem>-<W>x<H><ext> convention).
func (e *Engine) deleteOriginal(filePath string) {
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		e.log.Warn("failed to delete original file", "path", filePath, "error", err)
	}

	ext := filepath.Ext(filePath)
	stem := strings.TrimSuffix(filePath, ext)
	derived, globErr := filepath.Glob(stem + "-*x*" + ext)
	if globErr != nil {
		return
	}
	for _, d := range derived {
		if err := os.Remove(d); err != nil && !os.IsNotExist(err) {
			e.log.Warn("failed to delete derived size", "path", d, "error", err)
		}
	}
}

// swapExt replaces the path or URL's extension.
func swapExt(p, newExt string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + newExt
}
