package registrar_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotarylen/mediapress/internal/dedup"
	"github.com/sotarylen/mediapress/internal/domain"
	"github.com/sotarylen/mediapress/internal/logger"
	"github.com/sotarylen/mediapress/internal/registrar"
)

type fakeAssetStore struct {
	nextID   int64
	created  []*domain.Asset
	bySource map[string][]*domain.Asset
	deleted  []int64
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{bySource: make(map[string][]*domain.Asset)}
}

func (s *fakeAssetStore) Create(_ context.Context, asset *domain.Asset) error {
	s.nextID++
	asset.ID = s.nextID
	s.created = append(s.created, asset)
	if asset.SourceURL != nil {
		s.bySource[*asset.SourceURL] = append(s.bySource[*asset.SourceURL], asset)
	}
	return nil
}

func (s *fakeAssetStore) FindBySourceURL(_ context.Context, sourceURL string) (*domain.Asset, error) {
	candidates := s.bySource[sourceURL]
	if len(candidates) == 0 {
		return nil, nil
	}
	// Lowest id wins, matching the repository's ORDER BY id ASC.
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if c.ID < winner.ID {
			winner = c
		}
	}
	return winner, nil
}

func (s *fakeAssetStore) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func tempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "incoming.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newRegistrar(t *testing.T, store *fakeAssetStore) (*registrar.Registrar, string) {
	t.Helper()
	uploadDir := t.TempDir()
	r := registrar.New(store, dedup.New(store, true), nil, registrar.Config{
		UploadDir:     uploadDir,
		PublicBaseURL: "https://my-site.example/media/",
	}, logger.NewNoOp())
	return r, uploadDir
}

func TestRegister_StoresFileAndRecord(t *testing.T) {
	t.Parallel()

	store := newFakeAssetStore()
	r, uploadDir := newRegistrar(t, store)

	owner := int64(42)
	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:        tempFile(t, "png bytes"),
		ResolvedName:    "sunset",
		Extension:       "png",
		SourceURL:       "https://ext.example/sunset.png",
		AltText:         "A sunset",
		OwnerDocumentID: &owner,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(uploadDir, "sunset.png"), asset.FilePath)
	assert.Equal(t, "https://my-site.example/media/sunset.png", asset.PublicURL)
	assert.Equal(t, "image/png", asset.MimeType)
	assert.Equal(t, "A sunset", asset.AltText)
	require.NotNil(t, asset.SourceURL)
	assert.Equal(t, "https://ext.example/sunset.png", *asset.SourceURL)
	require.NotNil(t, asset.ParentDocumentID)
	assert.Equal(t, int64(42), *asset.ParentDocumentID)
	assert.Equal(t, int64(len("png bytes")), asset.SizeBytes)

	got, err := os.ReadFile(asset.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(got))
}

func TestRegister_CollisionGetsNumericSuffix(t *testing.T) {
	t.Parallel()

	store := newFakeAssetStore()
	r, uploadDir := newRegistrar(t, store)
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "photo.jpg"), []byte("existing"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "photo-1.jpg"), []byte("also existing"), 0o644))

	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:     tempFile(t, "new bytes"),
		ResolvedName: "photo",
		Extension:    ".jpg",
		SourceURL:    "https://ext.example/photo.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(uploadDir, "photo-2.jpg"), asset.FilePath)
}

func TestRegister_SameNameSameContentReusesFile(t *testing.T) {
	t.Parallel()

	store := newFakeAssetStore()
	r, uploadDir := newRegistrar(t, store)
	existing := filepath.Join(uploadDir, "photo.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("same bytes"), 0o644))

	temp := tempFile(t, "same bytes")
	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:     temp,
		ResolvedName: "photo",
		Extension:    ".jpg",
		SourceURL:    "https://ext.example/photo.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, existing, asset.FilePath)
	assert.NoFileExists(t, temp, "temp file must be consumed on reuse")

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no duplicate file may be written")
}

func TestRegister_DedupDisabledNeverReusesFiles(t *testing.T) {
	t.Parallel()

	store := newFakeAssetStore()
	uploadDir := t.TempDir()
	r := registrar.New(store, dedup.New(store, false), nil, registrar.Config{
		UploadDir:     uploadDir,
		PublicBaseURL: "https://my-site.example/media/",
	}, logger.NewNoOp())

	existing := filepath.Join(uploadDir, "photo.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("same bytes"), 0o644))

	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:     tempFile(t, "same bytes"),
		ResolvedName: "photo",
		Extension:    ".jpg",
	})
	require.NoError(t, err)

	// Identical content, but with dedup off the collision still gets a
	// suffixed name.
	assert.Equal(t, filepath.Join(uploadDir, "photo-1.jpg"), asset.FilePath)
}

func TestRegister_LoserOfSourceURLRaceWithdraws(t *testing.T) {
	t.Parallel()

	store := newFakeAssetStore()
	r, uploadDir := newRegistrar(t, store)

	// A concurrent writer got there first.
	src := "https://ext.example/contested.png"
	winner := &domain.Asset{FilePath: "elsewhere/contested.png", SourceURL: &src}
	require.NoError(t, store.Create(context.Background(), winner))

	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:     tempFile(t, "contested bytes"),
		ResolvedName: "contested",
		Extension:    ".png",
		SourceURL:    src,
	})
	require.NoError(t, err)

	assert.Equal(t, winner.ID, asset.ID, "caller must receive the canonical record")
	require.Len(t, store.deleted, 1)
	assert.Equal(t, int64(2), store.deleted[0], "losing record must be withdrawn")
	assert.NoFileExists(t, filepath.Join(uploadDir, "contested.png"))
}

func TestRegister_EmptyNameFallsBack(t *testing.T) {
	t.Parallel()

	store := newFakeAssetStore()
	r, _ := newRegistrar(t, store)

	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:     tempFile(t, "bytes"),
		ResolvedName: "",
		Extension:    ".gif",
	})
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(asset.FilePath), "image_")
	assert.Nil(t, asset.SourceURL, "empty source URL must store NULL")
}

type recordingGenerator struct {
	paths []string
}

func (g *recordingGenerator) Generate(_ context.Context, filePath string) error {
	g.paths = append(g.paths, filePath)
	return nil
}

func TestRegister_DerivedSizesGatedByConfig(t *testing.T) {
	t.Parallel()

	gen := &recordingGenerator{}
	store := newFakeAssetStore()
	uploadDir := t.TempDir()

	r := registrar.New(store, dedup.New(store, true), gen, registrar.Config{
		UploadDir:            uploadDir,
		PublicBaseURL:        "https://my-site.example/media",
		GenerateDerivedSizes: false,
	}, logger.NewNoOp())

	_, err := r.Register(context.Background(), registrar.Params{
		TempPath:     tempFile(t, "bytes"),
		ResolvedName: "pic",
		Extension:    ".png",
	})
	require.NoError(t, err)
	assert.Empty(t, gen.paths, "generator must not run when disabled")

	r = registrar.New(store, dedup.New(store, true), gen, registrar.Config{
		UploadDir:            uploadDir,
		PublicBaseURL:        "https://my-site.example/media",
		GenerateDerivedSizes: true,
	}, logger.NewNoOp())

	asset, err := r.Register(context.Background(), registrar.Params{
		TempPath:     tempFile(t, "other bytes"),
		ResolvedName: "pic2",
		Extension:    ".png",
	})
	require.NoError(t, err)
	require.Len(t, gen.paths, 1)
	assert.Equal(t, asset.FilePath, gen.paths[0])
}
