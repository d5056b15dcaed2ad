package drivers

import (
	"log"
	"os"
	"time"

	"gorm.io/gorm/logger"
)

// newGormLogger maps a level name to a gorm logger. Anything other than
// info, warn or error is silent.
func newGormLogger(logLevel string) logger.Interface {
	var level logger.LogLevel
	switch logLevel {
	case "info": // every SQL statement
		level = logger.Info
	case "warn": // slow statements and errors
		level = logger.Warn
	case "error":
		level = logger.Error
	default:
		return logger.Default.LogMode(logger.Silent)
	}

	return logger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)
}
