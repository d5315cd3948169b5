package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// maxLoggedSQL caps the logged statement; hydration of a large cart expands
// into a long IN list
const maxLoggedSQL = 512

// CatalogQueryLogger routes catalog query logs through zap. Failed queries
// log at error, queries over the slow threshold at warn, everything else at
// debug when the GORM level is Info.
type CatalogQueryLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var _ gormlogger.Interface = (*CatalogQueryLogger)(nil)

// CatalogQueryLoggerOption configures a CatalogQueryLogger
type CatalogQueryLoggerOption func(*CatalogQueryLogger)

// WithSlowThreshold sets the slow query threshold; zero disables slow logs
func WithSlowThreshold(threshold time.Duration) CatalogQueryLoggerOption {
	return func(l *CatalogQueryLogger) {
		l.slowThreshold = threshold
	}
}

// NewCatalogQueryLogger creates the GORM logger of the catalog database
func NewCatalogQueryLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...CatalogQueryLoggerOption) *CatalogQueryLogger {
	l := &CatalogQueryLogger{
		logger:        zapLogger.Named("catalog.db").With(zap.String("component", "catalog")),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface
func (l *CatalogQueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *CatalogQueryLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *CatalogQueryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *CatalogQueryLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface
func (l *CatalogQueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	elapsed := time.Since(begin)
	lvl, msg, ok := l.classify(elapsed, err)
	if !ok {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", truncateSQL(sql)),
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if lvl == zapcore.WarnLevel && err == nil {
		fields = append(fields, zap.Duration("threshold", l.slowThreshold))
	}
	l.logger.Check(lvl, msg).Write(fields...)
}

// classify picks the level and message of a finished query. A query
// canceled with its request is not a catalog failure and logs at warn.
func (l *CatalogQueryLogger) classify(elapsed time.Duration, err error) (zapcore.Level, string, bool) {
	switch {
	case l.level <= gormlogger.Silent:
		return 0, "", false
	case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		return zapcore.WarnLevel, "catalog query abandoned", l.level >= gormlogger.Warn
	case err != nil:
		return zapcore.ErrorLevel, "catalog query failed", l.level >= gormlogger.Error
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		return zapcore.WarnLevel, "slow catalog query", l.level >= gormlogger.Warn
	default:
		return zapcore.DebugLevel, "catalog query", l.level >= gormlogger.Info
	}
}

func truncateSQL(sql string) string {
	if len(sql) <= maxLoggedSQL {
		return sql
	}
	return sql[:maxLoggedSQL] + "..."
}

// MapGormLogLevel maps the application log level to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
