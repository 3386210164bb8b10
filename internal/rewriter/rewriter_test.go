package rewriter_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotarylen/mediapress/internal/logger"
	"github.com/sotarylen/mediapress/internal/rewriter"
)

func TestRewriteBlob_ReplacesEveryOccurrence(t *testing.T) {
	t.Parallel()

	oldURL := "https://ext.example/a.png"
	newURL := "https://my-site.example/media/a.png"
	blob := `<img src="` + oldURL + `"> text ` + oldURL + ` <a href="` + oldURL + `">link</a>`

	out, changed := rewriter.RewriteBlob(blob, oldURL, newURL, "", "")
	assert.True(t, changed)
	assert.Equal(t, 0, strings.Count(out, oldURL))
	assert.Equal(t, 3, strings.Count(out, newURL))
}

func TestRewriteBlob_AltTextUpdated(t *testing.T) {
	t.Parallel()

	blob := `<img src="x.png" alt="old text"><img src="y.png" ALT="old text"><img alt="other">`

	out, changed := rewriter.RewriteBlob(blob, "", "", "old text", "new text")
	assert.True(t, changed)
	assert.Contains(t, out, `alt="new text"`)
	assert.Contains(t, out, `ALT="new text"`)
	assert.Contains(t, out, `alt="other"`)
	assert.NotContains(t, out, "old text")
}

func TestRewriteBlob_DataAltAttributeLeftAlone(t *testing.T) {
	t.Parallel()

	blob := `<img data-alt="old text" alt="old text"><span myalt="old text">`

	out, changed := rewriter.RewriteBlob(blob, "", "", "old text", "new text")
	assert.True(t, changed)
	assert.Contains(t, out, `data-alt="old text"`)
	assert.Contains(t, out, `myalt="old text"`)
	assert.Contains(t, out, ` alt="new text"`)
}

func TestRewriteBlob_UnchangedAltLeftAlone(t *testing.T) {
	t.Parallel()

	blob := `<img src="https://ext.example/a.png" alt="keep me">`

	out, changed := rewriter.RewriteBlob(blob,
		"https://ext.example/a.png", "https://my-site.example/media/a.png",
		"keep me", "keep me")
	assert.True(t, changed)
	assert.Contains(t, out, `alt="keep me"`)
}

func TestRewriteBlob_NoOccurrenceNoChange(t *testing.T) {
	t.Parallel()

	blob := `<p>no images here</p>`
	out, changed := rewriter.RewriteBlob(blob, "https://ext.example/a.png", "https://my-site.example/a.png", "", "")
	assert.False(t, changed)
	assert.Equal(t, blob, out)
}

func TestRewriteBlob_LiteralMatchOnly(t *testing.T) {
	t.Parallel()

	// An encoded space and a literal space are different strings.
	blob := `<img src="https://ext.example/my pic.png">`
	out, changed := rewriter.RewriteBlob(blob,
		"https://ext.example/my%20pic.png", "https://my-site.example/pic.png", "", "")
	assert.False(t, changed)
	assert.Equal(t, blob, out)
}

type fakeDocStore struct {
	blobs      map[int64]string
	failUpdate map[int64]bool
	updates    []int64
}

func (s *fakeDocStore) UpdateBlob(_ context.Context, id int64, blob string) error {
	if s.failUpdate[id] {
		return errors.New("write refused")
	}
	s.blobs[id] = blob
	s.updates = append(s.updates, id)
	return nil
}

func (s *fakeDocStore) StreamContaining(_ context.Context, substring string, fn func(int64, string) error) error {
	// Ascending id order, matching the repository scan.
	for id := int64(1); id <= int64(len(s.blobs)); id++ {
		blob, ok := s.blobs[id]
		if !ok || !strings.Contains(blob, substring) {
			continue
		}
		if err := fn(id, blob); err != nil {
			return err
		}
	}
	return nil
}

func TestRewriteCorpus(t *testing.T) {
	t.Parallel()

	oldURL := "https://ext.example/shared.png"
	store := &fakeDocStore{blobs: map[int64]string{
		1: `<img src="` + oldURL + `">`,
		2: `<p>unrelated</p>`,
		3: `before ` + oldURL + ` after ` + oldURL,
	}}

	rw := rewriter.New(store, logger.NewNoOp())
	modified, err := rw.RewriteCorpus(context.Background(), oldURL, "https://my-site.example/media/shared.png")
	require.NoError(t, err)
	assert.Equal(t, 2, modified)

	assert.NotContains(t, store.blobs[1], oldURL)
	assert.Equal(t, `<p>unrelated</p>`, store.blobs[2])
	assert.Equal(t, 2, strings.Count(store.blobs[3], "https://my-site.example/media/shared.png"))
}

func TestRewriteCorpus_UpdateFailureSkipsDocument(t *testing.T) {
	t.Parallel()

	oldURL := "https://ext.example/shared.png"
	store := &fakeDocStore{
		blobs: map[int64]string{
			1: oldURL,
			2: oldURL,
			3: oldURL,
		},
		failUpdate: map[int64]bool{2: true},
	}

	rw := rewriter.New(store, logger.NewNoOp())
	modified, err := rw.RewriteCorpus(context.Background(), oldURL, "https://my-site.example/x.png")
	require.NoError(t, err, "one failed document must not abort the scan")
	assert.Equal(t, 2, modified)
	assert.Equal(t, []int64{1, 3}, store.updates)
	assert.Equal(t, oldURL, store.blobs[2], "failed document keeps its old blob")
}

func TestRewriteCorpus_NoOpInputs(t *testing.T) {
	t.Parallel()

	rw := rewriter.New(&fakeDocStore{blobs: map[int64]string{}}, logger.NewNoOp())

	modified, err := rw.RewriteCorpus(context.Background(), "", "https://x.example/a.png")
	require.NoError(t, err)
	assert.Zero(t, modified)

	modified, err = rw.RewriteCorpus(context.Background(), "https://x.example/a.png", "https://x.example/a.png")
	require.NoError(t, err)
	assert.Zero(t, modified)
}
