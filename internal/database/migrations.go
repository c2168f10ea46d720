package database

import (
	"errors"
	"time"

	"github.com/quantumtracker/backend/internal/tickets"
	"github.com/quantumtracker/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationSeedSystemUser           = "2024-01-01_seed_system_user"
	migrationCanonicalizeSystemAuthor = "2024-01-02_canonicalize_system_author_ids"

	// systemPasswordHash is not a valid bcrypt hash, so nobody can log in as System.
	systemPasswordHash = "!"
)

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
		{name: migrationSeedSystemUser, apply: seedSystemUser},
		{name: migrationCanonicalizeSystemAuthor, apply: canonicalizeSystemAuthorIDs},
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
		logger.Info("database migration applied", zap.String("migration", migration.name))
	}
	return nil
}

func seedSystemUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&users.User{}).Where("id = ?", users.SystemUserID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	now := time.Now().UTC()
	return db.Create(&users.User{
		ID:           users.SystemUserID,
		Username:     users.SystemUsername,
		Email:        "system@tracker.invalid",
		PasswordHash: systemPasswordHash,
		Assignments:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}).Error
}

// canonicalizeSystemAuthorIDs rewrites tickets imported with the legacy "0"
// system author id.
func canonicalizeSystemAuthorIDs(db *gorm.DB) error {
	return db.Model(&tickets.Ticket{}).
		Where("author_id = ?", "0").
		Update("author_id", users.SystemUserID).Error
}
