package notifications

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/quantumtracker/backend/internal/apperrors"
	"go.uber.org/zap"
)

var (
	ErrMissingUserID  = apperrors.New(apperrors.KindBadRequest, "A target user id is required.")
	ErrMissingMessage = apperrors.New(apperrors.KindBadRequest, "A notification message is required.")
	ErrUserNotFound   = apperrors.New(apperrors.KindNotFound, "User not found.")

	errMissingStore     = errors.New("notifications: store required")
	errMissingDirectory = errors.New("notifications: user directory required")
)

const (
	opNotify      = "notifications.notify"
	opDispatch    = "notifications.dispatch"
	opMarkAllRead = "notifications.mark_all_read"
)

// UserDirectory resolves notification targets.
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// ServiceConfig describes the dependencies of the notification service.
type ServiceConfig struct {
	Store      *Store
	Registry   *Registry
	Users      UserDirectory
	Clock      func() time.Time
	IDProvider IDProvider
	// SystemUser reports whether an id is the system pseudo-user.
	SystemUser func(userID string) bool
	Logger     *zap.Logger
}

// Service persists notifications and queues them for live delivery.
type Service struct {
	store      *Store
	registry   *Registry
	users      UserDirectory
	clock      func() time.Time
	idProvider IDProvider
	systemUser func(string) bool
	logger     *zap.Logger
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	if cfg.Users == nil {
		return nil, errMissingDirectory
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewUUIDProvider()
	}
	systemUser := cfg.SystemUser
	if systemUser == nil {
		systemUser = func(string) bool { return false }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      cfg.Store,
		registry:   cfg.Registry,
		users:      cfg.Users,
		clock:      clock,
		idProvider: idProvider,
		systemUser: systemUser,
		logger:     logger,
	}, nil
}

// Notify persists a notification for the target user and queues it on the
// user's live connection. Targeting the system user is a no-op that returns
// a nil notification.
func (s *Service) Notify(ctx context.Context, request Request) (*Notification, error) {
	userID := strings.TrimSpace(request.UserID)
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if strings.TrimSpace(request.Message) == "" {
		return nil, ErrMissingMessage
	}
	if s.systemUser(userID) {
		return nil, nil
	}

	if err := s.requireUser(ctx, opNotify, userID); err != nil {
		return nil, err
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return nil, apperrors.Wrap(opNotify, "id_generation_failed", err)
	}
	notification := Notification{
		UserID:    userID,
		ID:        id,
		Message:   request.Message,
		Link:      request.Link,
		Active:    true,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.Append(ctx, notification); err != nil {
		return nil, err
	}
	s.registry.Enqueue(userID, notification)
	return &notification, nil
}

// Failure records a notification that could not be raised.
type Failure struct {
	Request Request
	Err     error
}

// DispatchReport summarizes a fire-and-forget fan-out.
type DispatchReport struct {
	Delivered []Notification
	Failures  []Failure
}

// Failed reports whether any notification could not be raised.
func (r DispatchReport) Failed() bool {
	return len(r.Failures) > 0
}

// Err joins the recorded failures, or returns nil.
func (r DispatchReport) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, failure := range r.Failures {
		errs = append(errs, failure.Err)
	}
	return errors.Join(errs...)
}

// Dispatch raises every request and never fails. Errors are logged and
// returned in the report so the caller's primary action stands.
func (s *Service) Dispatch(ctx context.Context, requests ...Request) DispatchReport {
	var report DispatchReport
	for _, request := range requests {
		notification, err := s.Notify(ctx, request)
		if err != nil {
			s.logger.Warn("notification dispatch failed",
				zap.String("operation", opDispatch),
				zap.String("user_id", request.UserID),
				zap.String("code", apperrors.CodeOf(err)),
				zap.Error(err),
			)
			report.Failures = append(report.Failures, Failure{Request: request, Err: err})
			continue
		}
		if notification != nil {
			report.Delivered = append(report.Delivered, *notification)
		}
	}
	return report
}

// MarkAllRead sets every notification of the user inactive. Unknown users
// fail with ErrUserNotFound.
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrMissingUserID
	}
	if err := s.requireUser(ctx, opMarkAllRead, userID); err != nil {
		return err
	}
	return s.store.SetAllInactive(ctx, userID)
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}
	return s.store.List(ctx, userID)
}

func (s *Service) requireUser(ctx context.Context, operation, userID string) error {
	found, err := s.users.Exists(ctx, userID)
	if err != nil {
		s.logError(operation, "user_lookup_failed", err, zap.String("user_id", userID))
		return apperrors.Wrap(operation, "user_lookup_failed", err)
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("notification service error", append(attrs, fields...)...)
}
