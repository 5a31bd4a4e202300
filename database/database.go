package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/resilience"
)

// DB wraps a GORM database with imgprep logging.
type DB struct {
	GormDB *gorm.DB
	log    *logger.Logger
	cfg    Config
	closed bool
	mu     sync.Mutex
}

// Open connects to the SQLite database at cfg.DSN, retrying with an
// exponential backoff until cfg.MaxRetries attempts fail or ctx is done.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	return OpenDialector(ctx, sqlite.Open(cfg.DSN), cfg, log)
}

// OpenDialector is Open with an explicit GORM dialector.
func OpenDialector(ctx context.Context, dialector gorm.Dialector, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("database")
	}

	gormCfg := &gorm.Config{
		Logger: newQueryLogger(log, cfg),
	}

	policy := resilience.Policy{
		Attempts: cfg.MaxRetries,
		Initial:  200 * time.Millisecond,
		Max:      2 * time.Second,
	}.Logged(log, "database connection")

	attempt := 0
	db, err := resilience.Do(ctx, policy, func(ctx context.Context) (*gorm.DB, error) {
		attempt++
		db, err := gorm.Open(dialector, gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.IO("open database", cfg.DSN,
			fmt.Errorf("after %d attempts: %w", attempt, err))
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	if lifetime, parseErr := time.ParseDuration(cfg.ConnMaxLifetime); parseErr == nil {
		sqlDB.SetConnMaxLifetime(lifetime)
	}
	log.Debug("database connection established", logger.Fields(
		logger.FieldPath, cfg.DSN,
		"attempt", attempt,
	))
	return &DB{GormDB: db, log: log, cfg: cfg}, nil
}

// Close closes the connection pool. Safe to call multiple times.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	d.closed = true
	return sqlDB.Close()
}

// PingContext verifies the database connection is alive.
func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.GormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// WithContext returns a GORM session scoped to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.GormDB.WithContext(ctx)
}

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *gorm.DB) error

// WithTransaction runs fn in a transaction, committing when it returns nil
// and rolling back on error or panic.
func (d *DB) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	tx := d.GormDB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return FromDatabase(tx.Error, "transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			d.log.Error("transaction rolled back due to panic", map[string]interface{}{
				"panic": fmt.Sprintf("%v", r),
			})
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return FromDatabase(err, "transaction")
	}
	return nil
}
