package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/reputation-engine/internal/infra/database/models"
)

func NewPostgres(dsn string, log *zap.Logger) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log),
	})
}

func newGormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		return logger.Discard
	}
	writer := &zapio.Writer{Log: log.Named("gorm"), Level: zap.WarnLevel}
	return logger.New(
		gormWriter{writer},
		logger.Config{
			SlowThreshold:             300 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

type gormWriter struct {
	w *zapio.Writer
}

func (g gormWriter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(g.w, format+"\n", args...)
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Document{},
		&models.CommitLog{},
	)
}
