package notifications

import (
	"context"
	"errors"

	"github.com/quantumtracker/backend/internal/apperrors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opAppend         = "notifications.append"
	opSetAllInactive = "notifications.set_all_inactive"
	opList           = "notifications.list"
)

var errMissingDatabase = errors.New("notifications: database connection required")

// StoreConfig describes the persistence dependencies of the notification list.
type StoreConfig struct {
	Database *gorm.DB
	// RetentionLimit caps the notifications kept per user. Zero keeps all of them.
	RetentionLimit int
	Logger         *zap.Logger
}

// Store persists each user's notification list.
type Store struct {
	db             *gorm.DB
	retentionLimit int
	logger         *zap.Logger
}

// NewStore constructs the gorm backed notification store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retention := cfg.RetentionLimit
	if retention < 0 {
		retention = 0
	}
	return &Store{db: cfg.Database, retentionLimit: retention, logger: logger}, nil
}

// Append adds a notification to its user's list and prunes the oldest entries
// beyond the retention limit.
func (s *Store) Append(ctx context.Context, notification Notification) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notification).Error; err != nil {
			s.logError(opAppend, "insert_failed", err, zap.String("user_id", notification.UserID))
			return apperrors.Wrap(opAppend, "insert_failed", err)
		}
		if s.retentionLimit == 0 {
			return nil
		}
		return s.prune(tx, notification.UserID)
	})
}

func (s *Store) prune(tx *gorm.DB, userID string) error {
	var ids []string
	err := tx.Model(&Notification{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("notification_id DESC").
		Pluck("notification_id", &ids).Error
	if err != nil {
		s.logError(opAppend, "prune_query_failed", err, zap.String("user_id", userID))
		return apperrors.Wrap(opAppend, "prune_query_failed", err)
	}
	if len(ids) <= s.retentionLimit {
		return nil
	}
	stale := ids[s.retentionLimit:]
	if err := tx.Where("user_id = ? AND notification_id IN ?", userID, stale).Delete(&Notification{}).Error; err != nil {
		s.logError(opAppend, "prune_failed", err, zap.String("user_id", userID))
		return apperrors.Wrap(opAppend, "prune_failed", err)
	}
	return nil
}

// SetAllInactive marks every notification of the user as read.
func (s *Store) SetAllInactive(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND active = ?", userID, true).
		Update("active", false).Error
	if err != nil {
		s.logError(opSetAllInactive, "update_failed", err, zap.String("user_id", userID))
		return apperrors.Wrap(opSetAllInactive, "update_failed", err)
	}
	return nil
}

// List returns the user's notifications, newest first.
func (s *Store) List(ctx context.Context, userID string) ([]Notification, error) {
	notifications := []Notification{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("notification_id DESC").
		Find(&notifications).Error
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperrors.Wrap(opList, "query_failed", err)
	}
	return notifications, nil
}

func (s *Store) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("notification store error", append(attrs, fields...)...)
}
