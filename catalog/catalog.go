package catalog

import (
	"context"
	"embed"
	stderrors "errors"

	"gorm.io/gorm"

	"github.com/kbukum/imgprep/database"
	"github.com/kbukum/imgprep/database/migration"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 20

// Catalog records finished runs in a SQLite database.
type Catalog struct {
	db  *database.DB
	log *logger.Logger
}

// Open opens the database, applies pending migrations and returns the
// catalog. The caller closes it.
func Open(ctx context.Context, cfg database.Config, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.Get("catalog")
	}
	db, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c, err := New(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an open database, migrating it to the current schema.
func New(db *database.DB, log *logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.Get("catalog")
	}
	if err := migration.MigrateUp(db.GormDB, migrationsFS, "migrations", migration.SQLite); err != nil {
		return nil, errors.IO("migrate", "catalog", err)
	}
	return &Catalog{db: db, log: log}, nil
}

// RecordRun stores run and its branch counts in one transaction. An empty
// run ID is generated.
func (c *Catalog) RecordRun(ctx context.Context, run *Run) error {
	if run.Name == "" {
		return errors.InvalidInput("run.name", "is required")
	}
	if run.Status == "" {
		run.Status = StatusSucceeded
	}
	err := c.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(run).Error
	})
	if err != nil {
		return database.FromDatabase(err, "run")
	}
	c.log.Debug("run recorded", logger.Fields(
		logger.FieldRunID, run.ID,
		logger.FieldElements, run.Routed,
	))
	return nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (c *Catalog) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var runs []Run
	err := c.db.WithContext(ctx).
		Preload("Branches", func(db *gorm.DB) *gorm.DB { return db.Order("branch") }).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, database.FromDatabase(err, "runs")
	}
	return runs, nil
}

// GetRun returns the run with id, or a NOT_FOUND error.
func (c *Catalog) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := c.db.WithContext(ctx).
		Preload("Branches", func(db *gorm.DB) *gorm.DB { return db.Order("branch") }).
		Where("id = ?", id).
		First(&run).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("run", id).WithCause(err)
	}
	if err != nil {
		return nil, database.FromDatabase(err, "run")
	}
	return &run, nil
}

// Close closes the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
