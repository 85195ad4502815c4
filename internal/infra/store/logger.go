package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// gormZap routes gorm's SQL logging through zap. Slow queries and failures
// are logged; record-not-found is not an error.
type gormZap struct {
	logger *zap.Logger
	level  gormLogger.LogLevel
	slow   time.Duration
}

// NewGormLogger adapts logger to gorm at Warn level.
func NewGormLogger(logger *zap.Logger, slow time.Duration) gormLogger.Interface {
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return &gormZap{logger: logger.Named("gorm"), level: gormLogger.Warn, slow: slow}
}

func (l *gormZap) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormZap) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormLogger.Info {
		l.logger.Sugar().Infof(msg, args...)
	}
}

func (l *gormZap) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormLogger.Warn {
		l.logger.Sugar().Warnf(msg, args...)
	}
}

func (l *gormZap) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormLogger.Error {
		l.logger.Sugar().Errorf(msg, args...)
	}
}

func (l *gormZap) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormLogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.logger.Error("sql failed", zap.Error(err), zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case elapsed > l.slow && l.level >= gormLogger.Warn:
		sql, rows := fc()
		l.logger.Warn("slow sql", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	case l.level >= gormLogger.Info:
		sql, rows := fc()
		l.logger.Debug("sql", zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", sql))
	}
}
