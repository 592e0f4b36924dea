package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pfrederiksen/opencall-events/internal/logger"
)

// gormLog routes gorm's own output into the store logger. It starts silent;
// statements run through db.Debug() raise it to Info and are logged at DEBUG,
// so nothing gorm prints ever reaches stdout.
type gormLog struct {
	log   *logger.Logger
	level gormlogger.LogLevel
}

var _ gormlogger.Interface = gormLog{}

func newGormLog(l *logger.Logger) gormLog {
	return gormLog{log: l, level: gormlogger.Silent}
}

func (g gormLog) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	g.level = level
	return g
}

func (g gormLog) Info(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Info {
		g.log.Debug(fmt.Sprintf(msg, data...), logger.Fields{"source": "gorm"})
	}
}

func (g gormLog) Warn(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.log.Warn(fmt.Sprintf(msg, data...), logger.Fields{"source": "gorm"})
	}
}

func (g gormLog) Error(_ context.Context, msg string, data ...interface{}) {
	if g.level >= gormlogger.Error {
		g.log.Debug(fmt.Sprintf(msg, data...), logger.Fields{"source": "gorm"})
	}
}

// Trace logs one statement. Failures are reported by the store operation
// itself, so here they stay at DEBUG too.
func (g gormLog) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	if g.level < gormlogger.Info && !(failed && g.level >= gormlogger.Error) {
		return
	}

	sql, rows := fc()
	fields := logger.Fields{
		"source":  "gorm",
		"sql":     sql,
		"rows":    rows,
		"elapsed": time.Since(begin).String(),
	}
	if failed {
		fields["error"] = err.Error()
	}
	g.log.Debug("sql", fields)
}
