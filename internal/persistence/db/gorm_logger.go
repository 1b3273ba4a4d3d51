package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes gorm's query log into the service logger.
type GormLogger struct {
	logger        logging.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

func NewGormLogger(logger logging.Logger, slowThreshold time.Duration) *GormLogger {
	return &GormLogger{
		logger:        logger,
		level:         gormlogger.Warn,
		slowThreshold: slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.logger.Info(logging.Postgres, logging.Query, fmt.Sprintf(msg, args...), nil)
	}
}

func (l *GormLogger) Warn(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.Warn(logging.Postgres, logging.Query, fmt.Sprintf(msg, args...), nil)
	}
}

func (l *GormLogger) Error(_ context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.logger.Error(logging.Postgres, logging.Query, fmt.Sprintf(msg, args...), nil)
	}
}

func (l *GormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	extra := map[logging.ExtraKey]any{
		"Sql":           sql,
		"Rows":          rows,
		logging.Latency: elapsed.Milliseconds(),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		extra[logging.ErrorMessage] = err.Error()
		l.logger.Error(logging.Postgres, logging.Query, "query failed", extra)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logger.Warn(logging.Postgres, logging.Query, "slow query", extra)
	case l.level >= gormlogger.Info:
		l.logger.Debug(logging.Postgres, logging.Query, "query", extra)
	}
}
