// Package database opens the SQLite store and prepares the schema.
package database

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agency-hub/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbLogger = loggo.GetLogger("agencyhub.database")

// Open connects to the SQLite database at dsn and migrates every model.
func Open(dsn string) (*gorm.DB, error) {
	if dir := filepath.Dir(dsn); dir != "." && !isMemory(dsn) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Annotatef(err, "creating %s", dir)
		}
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   newLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, errors.Annotate(err, "connecting database")
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Agency{},
		&model.SubAccount{},
		&model.User{},
		&model.Permission{},
		&model.ActivityLog{},
		&model.Config{},
	)
	return errors.Annotate(err, "migrating schema")
}

// Bootstrap creates a first agency and its owner when the users table is empty.
func Bootstrap(db *gorm.DB, ownerEmail, ownerPassword string) error {
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return errors.Trace(err)
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		agency := model.Agency{ID: uuid.NewString(), Name: "My Agency"}
		if err := tx.Create(&agency).Error; err != nil {
			return errors.Annotate(err, "creating initial agency")
		}
		owner := model.User{
			Email:        ownerEmail,
			Name:         "Agency Owner",
			Password:     ownerPassword,
			TokenVersion: 1,
			Role:         model.RoleAgencyOwner,
			AgencyID:     agency.ID,
		}
		if err := tx.Create(&owner).Error; err != nil {
			return errors.Annotate(err, "creating initial owner")
		}
		dbLogger.Infof("created initial owner %s. Password: '%s'", ownerEmail, ownerPassword)
		return nil
	})
}

// ConfigValue reads a runtime setting, returning "" when it is unset.
func ConfigValue(db *gorm.DB, key string) string {
	var config model.Config
	db.Where("key = ?", key).First(&config)
	return config.Value
}

// SetConfigValue stores a runtime setting, creating the row if needed.
func SetConfigValue(db *gorm.DB, key, value string) error {
	err := db.Model(&model.Config{}).Where("key = ?", key).
		Assign(model.Config{Value: value}).
		FirstOrCreate(&model.Config{Key: key}).Error
	return errors.Annotatef(err, "saving config %q", key)
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.HasPrefix(dsn, "file:") && strings.Contains(dsn, "mode=memory")
}
