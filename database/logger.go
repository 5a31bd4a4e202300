package database

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/imgprep/logger"
)

// queryLogger routes GORM's statement log through the imgprep logger. Every
// entry carries the run id found in the statement's context (see
// logger.ContextWithRunID), so catalog writes line up with the pipeline run
// that issued them.
type queryLogger struct {
	log   *logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*queryLogger)(nil)

// newQueryLogger builds the GORM logger for cfg. cfg must be validated.
func newQueryLogger(log *logger.Logger, cfg Config) *queryLogger {
	slow, _ := time.ParseDuration(cfg.SlowQueryThreshold)
	return &queryLogger{
		log:   log.WithComponent("catalog.sql"),
		level: gormLevel(cfg.LogLevel),
		slow:  slow,
	}
}

func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	default:
		return gormlogger.Info
	}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.WithContext(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.WithContext(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.WithContext(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace logs one statement. Failures are errors, statements slower than the
// threshold are warnings, and at info level every statement is a debug line.
// A lookup that finds no run is not a failure.
func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound)
	slow := l.slow > 0 && elapsed > l.slow
	if !failed && !slow && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := logger.Fields(
		logger.FieldOperation, statementVerb(sql),
		logger.FieldDuration, elapsed.Milliseconds(),
		"rows", rows,
		"sql", sql,
	)
	log := l.log.WithContext(ctx)
	switch {
	case failed && l.level >= gormlogger.Error:
		log.Error("catalog statement failed", logger.MergeWithError(fields, err))
	case slow && l.level >= gormlogger.Warn:
		log.Warn("slow catalog statement", fields)
	case l.level >= gormlogger.Info:
		log.Debug("catalog statement", fields)
	}
}

// statementVerb is the upper-cased first keyword of sql, e.g. INSERT.
func statementVerb(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n"); i > 0 {
		sql = sql[:i]
	}
	return strings.ToUpper(sql)
}
