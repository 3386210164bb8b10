// Package common builds the shared dependency graph for all commands.
package common

import (
	"github.com/jmoiron/sqlx"

	"github.com/sotarylen/mediapress/internal/config"
	"github.com/sotarylen/mediapress/internal/database"
	"github.com/sotarylen/mediapress/internal/dedup"
	"github.com/sotarylen/mediapress/internal/fetcher"
	"github.com/sotarylen/mediapress/internal/logger"
	"github.com/sotarylen/mediapress/internal/pipeline"
	"github.com/sotarylen/mediapress/internal/registrar"
	"github.com/sotarylen/mediapress/internal/rewriter"
	"github.com/sotarylen/mediapress/internal/scanner"
	"github.com/sotarylen/mediapress/internal/transcode"
	"github.com/sotarylen/mediapress/internal/validator"
)

// Deps is the assembled dependency graph. Component state lives for the
// lifetime of one command invocation; nothing is process-global.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
	DB     *sqlx.DB

	Documents    *database.DocumentRepository
	Assets       *database.AssetRepository
	Failures     *database.FailureRepository
	Reservations *database.ReservationRepository

	Pipeline *pipeline.Pipeline
	Engine   *transcode.Engine
}

// Build loads configuration, connects to the database, and wires every
// component.
func Build(cfgFile string, debug bool) (*Deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logger.Level = "debug"
		cfg.Logger.Development = true
	}

	log, err := logger.New(&cfg.Logger)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}

	docs := database.NewDocumentRepository(db)
	assets := database.NewAssetRepository(db)
	failures := database.NewFailureRepository(db, cfg.Ingest.LedgerCapacity)
	reservations := database.NewReservationRepository(db)

	index := dedup.New(assets, cfg.Ingest.SkipDuplicates)

	fetch := fetcher.New(fetcher.Config{
		Timeout:      cfg.Fetcher.Timeout,
		UserAgent:    cfg.Fetcher.UserAgent,
		HostHeader:   cfg.Fetcher.HostHeader,
		MaxBodyBytes: cfg.Fetcher.MaxBodyBytes,
	}, log.WithComponent("fetcher"))

	register := registrar.New(assets, index, nil, registrar.Config{
		UploadDir:            cfg.Storage.UploadDir,
		PublicBaseURL:        cfg.Storage.PublicBaseURL,
		GenerateDerivedSizes: cfg.Ingest.GenerateDerivedSizes,
	}, log.WithComponent("registrar"))

	validate := validator.New(validator.Config{
		SiteHost:        cfg.Ingest.SiteHost,
		ExcludedDomains: cfg.Ingest.ExcludedDomainList(),
		ExcludedTypes:   cfg.Ingest.ExcludedTypes,
	}, nil)

	ingest := pipeline.New(
		docs,
		scanner.New(),
		validate,
		failures,
		index,
		fetch,
		register,
		pipeline.Config{
			NamingTemplate: cfg.Ingest.NamingTemplate,
			MaxRetries:     cfg.Ingest.MaxRetries,
		},
		log.WithComponent("pipeline"),
	)

	rewrite := rewriter.New(docs, log.WithComponent("rewriter"))

	engine := transcode.NewEngine(
		assets,
		rewrite,
		reservations,
		transcode.NewConverter(cfg.Transcode.Quality),
		transcode.Config{
			SourceMimeTypes: cfg.Transcode.SourceMimeTypes,
			MinSizeBytes:    cfg.Transcode.MinSizeBytes,
			ScanLimit:       cfg.Transcode.ScanLimit,
			ChunkSize:       cfg.Transcode.ChunkSize,
			Workers:         cfg.Transcode.Workers,
			KeepOriginal:    cfg.Transcode.KeepOriginal,
			ReservationTTL:  cfg.Transcode.ReservationTTL,
		},
		log.WithComponent("transcode"),
	)

	return &Deps{
		Config:       cfg,
		Logger:       log,
		DB:           db,
		Documents:    docs,
		Assets:       assets,
		Failures:     failures,
		Reservations: reservations,
		Pipeline:     ingest,
		Engine:       engine,
	}, nil
}

// Close releases held resources.
func (d *Deps) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
