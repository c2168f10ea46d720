package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quantumtracker/backend/internal/apperrors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = apperrors.New(apperrors.KindNotFound, "User not found.")
	ErrUsernameNotFound   = apperrors.New(apperrors.KindNotFound, "No user exists with that name.")
	ErrMissingUsername    = apperrors.New(apperrors.KindBadRequest, "A username is required.")
	ErrMissingEmail       = apperrors.New(apperrors.KindBadRequest, "An email is required.")
	ErrMissingPassword    = apperrors.New(apperrors.KindBadRequest, "A password is required.")
	ErrUsernameTaken      = apperrors.New(apperrors.KindConflict, "That username is already taken.")
	ErrEmailTaken         = apperrors.New(apperrors.KindConflict, "That email is already registered with a user.")
	ErrInvalidCredentials = apperrors.New(apperrors.KindUnauthorized, "Invalid credentials.")

	errMissingDatabase = errors.New("users: database connection required")
)

const (
	opCreate            = "users.create"
	opAuthenticate      = "users.authenticate"
	opGuestLogin        = "users.guest_login"
	opFind              = "users.find"
	opList              = "users.list"
	opUpdateInfo        = "users.update_info"
	opUpdateAssignments = "users.update_assignments"
)

// IDProvider issues new user identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for user management.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	HashCost   int
	Logger     *zap.Logger
}

// Service manages tracker accounts and their ticket assignments.
type Service struct {
	db         *gorm.DB
	now        func() time.Time
	idProvider IDProvider
	hashCost   int
	logger     *zap.Logger
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewObjectIDProvider()
	}
	hashCost := cfg.HashCost
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		now:        clock,
		idProvider: idProvider,
		hashCost:   hashCost,
		logger:     logger,
	}, nil
}

// SignUp carries the fields required to register an account.
type SignUp struct {
	Username string
	Email    string
	Password string
}

// Create registers a new account with a bcrypt-hashed password.
func (s *Service) Create(ctx context.Context, input SignUp) (User, error) {
	username := normalize(input.Username)
	email := normalize(input.Email)
	switch {
	case username == "":
		return User{}, ErrMissingUsername
	case email == "":
		return User{}, ErrMissingEmail
	case input.Password == "":
		return User{}, ErrMissingPassword
	}

	if taken, err := s.exists(ctx, "username = ?", username); err != nil {
		return User{}, apperrors.Wrap(opCreate, "username_lookup_failed", err)
	} else if taken {
		return User{}, ErrUsernameTaken
	}
	if taken, err := s.exists(ctx, "email = ?", email); err != nil {
		return User{}, apperrors.Wrap(opCreate, "email_lookup_failed", err)
	} else if taken {
		return User{}, ErrEmailTaken
	}

	return s.insert(ctx, opCreate, username, email, input.Password)
}

// Authenticate returns the user matching the credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	username = normalize(username)
	if username == "" {
		return User{}, ErrMissingUsername
	}
	if password == "" {
		return User{}, ErrMissingPassword
	}

	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, apperrors.Wrap(opAuthenticate, "query_failed", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GuestLogin returns the shared guest account, creating it on first use.
func (s *Service) GuestLogin(ctx context.Context) (User, error) {
	user, err := s.FindByUsername(ctx, GuestUsername)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUsernameNotFound) {
		return User{}, err
	}

	suffix, err := s.idProvider.NewID()
	if err != nil {
		return User{}, apperrors.Wrap(opGuestLogin, "id_generation_failed", err)
	}
	email := fmt.Sprintf("%s@%s.com", GuestUsername, suffix)
	return s.insert(ctx, opGuestLogin, GuestUsername, email, GuestUsername)
}

// FindByID loads a user by id. The legacy system alias is accepted.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	id = CanonicalID(id)
	if id == "" {
		return User{}, ErrUserNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		s.logError(opFind, "query_failed", err, zap.String("user_id", id))
		return User{}, apperrors.Wrap(opFind, "query_failed", err)
	}
	return user, nil
}

// FindByUsername loads a user by username.
func (s *Service) FindByUsername(ctx context.Context, username string) (User, error) {
	username = normalize(username)
	if username == "" {
		return User{}, ErrUsernameNotFound
	}
	var user User
	err := s.db.WithContext(ctx).Where("username = ?", username).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUsernameNotFound
	}
	if err != nil {
		return User{}, apperrors.Wrap(opFind, "query_failed", err)
	}
	return user, nil
}

// Exists reports whether a user with the given id is present.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	found, err := s.exists(ctx, "id = ?", CanonicalID(id))
	if err != nil {
		return false, apperrors.Wrap(opFind, "exists_failed", err)
	}
	return found, nil
}

// List returns every account ordered by username.
func (s *Service) List(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, apperrors.Wrap(opList, "query_failed", err)
	}
	return users, nil
}

// Count returns the number of accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Count(&count).Error; err != nil {
		return 0, apperrors.Wrap(opList, "count_failed", err)
	}
	return count, nil
}

// ProfileUpdate carries the editable profile fields. Empty values are ignored.
type ProfileUpdate struct {
	Location string
	RealName string
}

// UpdateInfo applies the non-empty profile fields.
func (s *Service) UpdateInfo(ctx context.Context, id string, update ProfileUpdate) error {
	if _, err := s.FindByID(ctx, id); err != nil {
		return err
	}
	changes := map[string]interface{}{}
	if location := normalize(update.Location); location != "" {
		changes["location"] = location
	}
	if realName := normalize(update.RealName); realName != "" {
		changes["real_name"] = realName
	}
	if len(changes) == 0 {
		return nil
	}
	changes["updated_at"] = s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", CanonicalID(id)).Updates(changes).Error; err != nil {
		s.logError(opUpdateInfo, "update_failed", err, zap.String("user_id", id))
		return apperrors.Wrap(opUpdateInfo, "update_failed", err)
	}
	return nil
}

// UpdateAssignments pushes ticketID onto the assignment lists of added users
// and pulls it from the lists of removed users.
func (s *Service) UpdateAssignments(ctx context.Context, ticketID string, added, removed []string) error {
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.rewriteAssignments(tx, added, func(current []string) []string {
			if containsString(current, ticketID) {
				return current
			}
			return append(current, ticketID)
		}); err != nil {
			return err
		}
		return s.rewriteAssignments(tx, removed, func(current []string) []string {
			kept := current[:0]
			for _, id := range current {
				if id != ticketID {
					kept = append(kept, id)
				}
			}
			return kept
		})
	})
}

func (s *Service) rewriteAssignments(tx *gorm.DB, userIDs []string, rewrite func([]string) []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	var users []User
	if err := tx.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		s.logError(opUpdateAssignments, "query_failed", err)
		return apperrors.Wrap(opUpdateAssignments, "query_failed", err)
	}
	for _, user := range users {
		user.Assignments = assignmentsValue(rewrite(append([]string(nil), user.Assignments...)))
		user.UpdatedAt = s.now().UTC()
		if err := tx.Save(&user).Error; err != nil {
			s.logError(opUpdateAssignments, "update_failed", err, zap.String("user_id", user.ID))
			return apperrors.Wrap(opUpdateAssignments, "update_failed", err)
		}
	}
	return nil
}

func (s *Service) insert(ctx context.Context, operation, username, email, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return User{}, apperrors.Wrap(operation, "hash_failed", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return User{}, apperrors.Wrap(operation, "id_generation_failed", err)
	}
	now := s.now().UTC()
	user := User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Assignments:  []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.logError(operation, "insert_failed", err, zap.String("username", username))
		return User{}, apperrors.Wrap(operation, "insert_failed", err)
	}
	return user, nil
}

func (s *Service) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("users service error", append(attrs, fields...)...)
}

// assignmentsValue keeps an emptied list serialized as [] instead of null.
func assignmentsValue(assignments []string) []string {
	if assignments == nil {
		return []string{}
	}
	return assignments
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}

type objectIDProvider struct{}

// NewObjectIDProvider issues 24 character hex identifiers derived from UUIDv7,
// so ids sort by creation time.
func NewObjectIDProvider() IDProvider {
	return objectIDProvider{}
}

func (objectIDProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(value.String(), "-", "")[:24], nil
}
