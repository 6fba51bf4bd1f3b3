package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// maxLoggedSQL bounds the statement text attached to slow query entries
// unless full SQL logging is enabled
const maxLoggedSQL = 512

// GormConfig configures the GORM logger
type GormConfig struct {
	Level         string
	SlowThreshold time.Duration
	LogFullSQL    bool
}

// GormLogger implements gormlogger.Interface on top of zap
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	logFullSQL    bool
}

// NewGormLogger creates a GORM logger
func NewGormLogger(zapLogger *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         MapGormLogLevel(cfg.Level),
		slowThreshold: cfg.SlowThreshold,
		logFullSQL:    cfg.LogFullSQL,
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.withContext(ctx).Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.withContext(ctx).Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.withContext(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface. Record-not-found is never logged;
// repositories translate it into domain errors.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.withContext(ctx).Error("SQL error", l.fields(sql, rows, elapsed, zap.Error(err))...)
	case slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.withContext(ctx).Warn("Slow SQL", l.fields(sql, rows, elapsed, zap.Duration("threshold", l.slowThreshold))...)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.withContext(ctx).Debug("SQL", l.fields(sql, rows, elapsed)...)
	}
}

func (l *GormLogger) fields(sql string, rows int64, elapsed time.Duration, extra ...zap.Field) []zap.Field {
	if !l.logFullSQL && len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}
	return append([]zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}, extra...)
}

func (l *GormLogger) withContext(ctx context.Context) *zap.Logger {
	zl := l.logger
	if id := GetRequestID(ctx); id != "" {
		zl = zl.With(zap.String("request_id", id))
	}
	return WithTraceContext(ctx, zl)
}

// MapGormLogLevel maps a level name to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
