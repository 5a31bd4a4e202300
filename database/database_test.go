package database

import (
	"bytes"
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

type item struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: filepath.Join(t.TempDir(), "test.db")}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.GormDB.AutoMigrate(&item{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.DSN != "imgprep.db" || cfg.MaxRetries != 3 || cfg.LogLevel != "warn" {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"idle above open", func(c *Config) { c.MaxIdleConns = 5 }},
		{"bad lifetime", func(c *Config) { c.ConnMaxLifetime = "forever" }},
		{"bad slow threshold", func(c *Config) { c.SlowQueryThreshold = "soon" }},
		{"bad log level", func(c *Config) { c.LogLevel = "chatty" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tc.mod(&cfg)
			if err := cfg.Validate(); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestOpen_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Open(ctx, Config{DSN: filepath.Join(t.TempDir(), "x.db")}, logger.Nop())
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOpen_UnreachablePath(t *testing.T) {
	cfg := Config{DSN: filepath.Join(t.TempDir(), "no", "such", "dir", "x.db"), MaxRetries: 1}
	if _, err := Open(context.Background(), cfg, logger.Nop()); !errors.HasCode(err, errors.ErrCodeIO) {
		t.Fatalf("expected IO error, got %v", err)
	}
}

func TestWithTransaction(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	if err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&item{Name: "kept"}).Error
	}); err != nil {
		t.Fatal(err)
	}

	boom := stderrors.New("boom")
	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&item{Name: "dropped"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var names []string
	if err := db.WithContext(ctx).Model(&item{}).Pluck("name", &names).Error; err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "kept" {
		t.Errorf("names = %v", names)
	}
}

func TestFromDatabase(t *testing.T) {
	db := openTest(t)
	var it item
	err := db.WithContext(context.Background()).First(&it, 42).Error
	if !errors.HasCode(FromDatabase(err, "item"), errors.ErrCodeNotFound) {
		t.Errorf("record not found should map to NOT_FOUND, got %v", err)
	}
	if !errors.HasCode(FromDatabase(stderrors.New("disk full"), "item"), errors.ErrCodeIO) {
		t.Error("generic error should map to IO")
	}
	if FromDatabase(nil, "item") != nil {
		t.Error("nil error should stay nil")
	}
}

func TestClose_Idempotent(t *testing.T) {
	db := openTest(t)
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestIsConnectionError(t *testing.T) {
	if !IsConnectionError(stderrors.New("database is locked")) {
		t.Error("locked database is a connection error")
	}
	if IsConnectionError(stderrors.New("syntax error")) || IsConnectionError(nil) {
		t.Error("unexpected connection error match")
	}
}

func TestQueryLogger_TagsRunID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "imgprep", &buf)
	db, err := Open(context.Background(),
		Config{DSN: filepath.Join(t.TempDir(), "log.db"), LogLevel: "info"}, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.GormDB.AutoMigrate(&item{}); err != nil {
		t.Fatal(err)
	}

	buf.Reset()
	ctx := logger.ContextWithRunID(context.Background(), "run-9")
	if err := db.WithContext(ctx).Create(&item{Name: "a"}).Error; err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"run_id":"run-9"`, `"operation":"INSERT"`, `"component":"catalog.sql"`, `"duration_ms":`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestQueryLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "imgprep", &buf)
	ql := newQueryLogger(log, Config{LogLevel: "warn", SlowQueryThreshold: "1h"})
	stmt := func() (string, int64) { return "SELECT * FROM runs", 0 }

	ql.Trace(context.Background(), time.Now(), stmt, nil)
	ql.Trace(context.Background(), time.Now(), stmt, gorm.ErrRecordNotFound)
	if buf.Len() != 0 {
		t.Errorf("warn level must drop fast statements and misses, got %q", buf.String())
	}

	ql.Trace(context.Background(), time.Now(), stmt, stderrors.New("disk I/O error"))
	if out := buf.String(); !strings.Contains(out, `"operation":"SELECT"`) || !strings.Contains(out, "disk I/O error") {
		t.Errorf("expected failed statement, got %q", out)
	}

	buf.Reset()
	ql.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), stmt, stderrors.New("ignored"))
	if buf.Len() != 0 {
		t.Errorf("silent mode logged %q", buf.String())
	}
}

func TestStatementVerb(t *testing.T) {
	tests := map[string]string{
		"insert into runs":     "INSERT",
		"  SELECT * FROM runs": "SELECT",
		"BEGIN":                "BEGIN",
		"":                     "",
		"update\trun_branches": "UPDATE",
	}
	for sql, want := range tests {
		if got := statementVerb(sql); got != want {
			t.Errorf("statementVerb(%q) = %q, want %q", sql, got, want)
		}
	}
}
