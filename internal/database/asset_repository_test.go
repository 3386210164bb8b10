package database_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotarylen/mediapress/internal/database"
	"github.com/sotarylen/mediapress/internal/domain"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func assetColumns() []string {
	return []string{
		"id", "file_path", "public_url", "mime_type", "source_url",
		"alt_text", "parent_document_id", "size_bytes", "created_at",
	}
}

func TestAssetRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	created := time.Now()
	src := "https://ext.example/pic.png"
	owner := int64(3)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO assets")).
		WithArgs("/media/pic.png", "https://my-site.example/media/pic.png",
			"image/png", src, "alt", owner, int64(1234)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), created))

	asset := &domain.Asset{
		FilePath:         "/media/pic.png",
		PublicURL:        "https://my-site.example/media/pic.png",
		MimeType:         "image/png",
		SourceURL:        &src,
		AltText:          "alt",
		ParentDocumentID: &owner,
		SizeBytes:        1234,
	}
	require.NoError(t, repo.Create(context.Background(), asset))
	assert.Equal(t, int64(11), asset.ID)
	assert.Equal(t, created, asset.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_GetByID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectQuery("SELECT .+ FROM assets WHERE id").
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(assetColumns()))

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, database.ErrAssetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_FindBySourceURL(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	src := "https://ext.example/pic.png"
	mock.ExpectQuery("SELECT .+ FROM assets WHERE source_url .+ ORDER BY id ASC LIMIT 1").
		WithArgs(src).
		WillReturnRows(sqlmock.NewRows(assetColumns()).
			AddRow(int64(5), "/media/pic.png", "https://my-site.example/media/pic.png",
				"image/png", src, "alt", nil, int64(1234), time.Now()))

	asset, err := repo.FindBySourceURL(context.Background(), src)
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, int64(5), asset.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_FindBySourceURL_NoRowsIsNotAnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectQuery("SELECT .+ FROM assets WHERE source_url").
		WithArgs("https://ext.example/unknown.png").
		WillReturnRows(sqlmock.NewRows(assetColumns()))

	asset, err := repo.FindBySourceURL(context.Background(), "https://ext.example/unknown.png")
	require.NoError(t, err)
	assert.Nil(t, asset)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_ListConvertible(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectQuery("SELECT id, file_path, public_url, mime_type, size_bytes, parent_document_id").
		WithArgs("image/png", "image/bmp", int64(1000), 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "file_path", "public_url", "mime_type", "size_bytes", "parent_document_id",
		}).
			AddRow(int64(1), "/media/a.png", "https://my-site.example/media/a.png", "image/png", int64(2000), nil).
			AddRow(int64(2), "/media/b.bmp", "https://my-site.example/media/b.bmp", "image/bmp", int64(5000), nil))

	got, err := repo.ListConvertible(context.Background(), []string{"image/png", "image/bmp"}, 1000, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "image/bmp", got[1].MimeType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_ListConvertible_EmptyMimeList(t *testing.T) {
	db, _ := newMockDB(t)
	repo := database.NewAssetRepository(db)

	got, err := repo.ListConvertible(context.Background(), nil, 0, 10, 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAssetRepository_CountConvertible(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM assets")).
		WithArgs("image/png", int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	total, err := repo.CountConvertible(context.Background(), []string{"image/png"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assets WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_Delete_Missing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM assets WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), 7)
	assert.ErrorIs(t, err, database.ErrAssetNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_UpdateEncoding(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewAssetRepository(db)

	mock.ExpectExec("UPDATE assets").
		WithArgs("/media/a.jpg", "https://my-site.example/media/a.jpg", "image/jpeg", int64(900), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateEncoding(context.Background(), 7,
		"/media/a.jpg", "https://my-site.example/media/a.jpg", "image/jpeg", 900)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
