package database

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRenameLegacyBlobNamespace = "2026-05-12_rename_legacy_blob_namespace"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRenameLegacyBlobNamespace, apply: renameLegacyBlobNamespace},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// renameLegacyBlobNamespace moves blobs imported from the mobile app's
// AsyncStorage export, which used the "@campus_events:" key prefix, into the
// current namespace. Collection blobs keep their names, per-user push tokens
// keep their sub-prefix, and every remaining legacy key was ad hoc data, which
// the accessors now read under the data sub-prefix.
func renameLegacyBlobNamespace(db *gorm.DB) error {
	const legacyPrefix = "@campus_events:"
	const legacyPushTokenPrefix = legacyPrefix + "push_token:"

	collections := []string{"events", "registrations", "user_profiles", "comments", "comment_likes"}
	for _, name := range collections {
		rename := fmt.Sprintf(
			"UPDATE app_blobs SET blob_key = 'pulse:%s' WHERE blob_key = '%s%s';",
			name, legacyPrefix, name)
		if err := db.Exec(rename).Error; err != nil {
			return err
		}
	}

	renameTokens := fmt.Sprintf(
		"UPDATE app_blobs SET blob_key = 'pulse:push_token:' || substr(blob_key, %d) WHERE blob_key LIKE '%s%%';",
		len(legacyPushTokenPrefix)+1, legacyPushTokenPrefix)
	if err := db.Exec(renameTokens).Error; err != nil {
		return err
	}

	renameData := fmt.Sprintf(
		"UPDATE app_blobs SET blob_key = 'pulse:data:' || substr(blob_key, %d) WHERE blob_key LIKE '%s%%';",
		len(legacyPrefix)+1, legacyPrefix)
	return db.Exec(renameData).Error
}
