// Package db provides database connection and migration functionality.
package db

import (
	"fmt"
	stdlog "log"
	"os"

	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/config"
	"github.com/Shr1mpTop/Singapore-Major-Fan-Consensus-Protocol/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens a database connection using the provided configuration.
// TranslateError is enabled so a unique-constraint race surfaces as
// gorm.ErrDuplicatedKey on every dialect.
func Open(cfg config.Config) (*gorm.DB, error) {
	// Configure GORM logger (Silent to avoid cluttering output; only errors will be logged)
	newLogger := logger.New(
		stdlog.New(os.Stdout, "", stdlog.LstdFlags),
		logger.Config{
			SlowThreshold:             0,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	if cfg.DBDialect == "" || cfg.DBDsn == "" {
		return nil, nil
	}

	gormCfg := &gorm.Config{Logger: newLogger, TranslateError: true}

	switch cfg.DBDialect {
	case config.DatabaseSchemePostgres:
		return gorm.Open(postgres.Open(cfg.DBDsn), gormCfg)
	case config.DatabaseSchemeSQLite:
		return gorm.Open(sqlite.Open(cfg.DBDsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DIALECT: %s", cfg.DBDialect)
	}
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&models.UserVote{},
		&models.Team{},
		&models.GameState{},
		&models.Collectible{},
	)
}

// Reset clears votes, teams and the game state in one transaction and
// reinitializes the singleton GameState to an open round. Collectible price
// rows survive a reset. Team reseeding is the caller's job since it needs a
// contract read.
func Reset(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.UserVote{}).Error; err != nil {
			return fmt.Errorf("clear votes: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.Team{}).Error; err != nil {
			return fmt.Errorf("clear teams: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.GameState{}).Error; err != nil {
			return fmt.Errorf("clear game state: %w", err)
		}
		fresh := models.GameState{
			ID:             models.GameStateID,
			Status:         models.StatusOpen,
			TotalPrizePool: "0",
			WinningTeamID:  nil,
		}
		if err := tx.Create(&fresh).Error; err != nil {
			return fmt.Errorf("init game state: %w", err)
		}
		return nil
	})
}
