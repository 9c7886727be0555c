package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// openDatabase connects to the catalog database and runs migrations.
// A postgres:// DSN selects the Postgres driver; anything else is treated
// as a SQLite path, which keeps local development and tests self-contained.
func openDatabase(dsn string) (*gorm.DB, error) {
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("gorm.Open: %w", err)
	}

	// SQLite only enforces ON DELETE CASCADE with the foreign_keys pragma
	// enabled; busy_timeout makes concurrent writers wait for the lock
	// instead of failing immediately.
	if _, ok := dialector.(*sqlite.Dialector); ok {
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
		if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
			return nil, fmt.Errorf("set sqlite busy timeout: %w", err)
		}
	}

	if err := db.AutoMigrate(&Patient{}, &Study{}, &Image{}); err != nil {
		return nil, fmt.Errorf("auto-migrate catalog tables: %w", err)
	}

	return db, nil
}
