package tickets

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/quantumtracker/backend/internal/apperrors"
	"github.com/quantumtracker/backend/internal/notifications"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrTicketNotFound  = apperrors.New(apperrors.KindNotFound, "Ticket not found.")
	ErrMissingSummary  = apperrors.New(apperrors.KindBadRequest, "A short summary is required.")
	ErrMissingType     = apperrors.New(apperrors.KindBadRequest, "Bug type is required.")
	ErrMissingSeverity = apperrors.New(apperrors.KindBadRequest, "Severity level is required.")
	ErrMissingStatus   = apperrors.New(apperrors.KindBadRequest, "A bug status is required.")
	ErrMissingActor    = apperrors.New(apperrors.KindBadRequest, "A user identification error has occurred.")

	errMissingDatabase = errors.New("tickets: database connection required")
	errMissingUsers    = errors.New("tickets: user directory required")
	errMissingNotifier = errors.New("tickets: notifier required")
)

const (
	opList   = "tickets.list"
	opGet    = "tickets.get"
	opCreate = "tickets.create"
	opUpdate = "tickets.update"
	opDelete = "tickets.delete"
)

// UserDirectory is the slice of the user service tickets depend on.
type UserDirectory interface {
	UpdateAssignments(ctx context.Context, ticketID string, added, removed []string) error
	Count(ctx context.Context) (int64, error)
}

// Notifier raises notifications without failing the caller.
type Notifier interface {
	Dispatch(ctx context.Context, requests ...notifications.Request) notifications.DispatchReport
}

// ServiceConfig describes the dependencies of the ticket service.
type ServiceConfig struct {
	Database   *gorm.DB
	Users      UserDirectory
	Notifier   Notifier
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service manages tickets, their comments and the notifications they raise.
type Service struct {
	db         *gorm.DB
	users      UserDirectory
	notifier   Notifier
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the ticket service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Users == nil {
		return nil, errMissingUsers
	}
	if cfg.Notifier == nil {
		return nil, errMissingNotifier
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = NewShortIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		users:      cfg.Users,
		notifier:   cfg.Notifier,
		clock:      clock,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// List returns every ticket, oldest first.
func (s *Service) List(ctx context.Context) ([]Ticket, error) {
	tickets := []Ticket{}
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&tickets).Error; err != nil {
		s.logError(opList, "query_failed", err)
		return nil, apperrors.Wrap(opList, "query_failed", err)
	}
	return tickets, nil
}

// Get loads a single ticket.
func (s *Service) Get(ctx context.Context, ticketID string) (Ticket, error) {
	return s.load(s.db.WithContext(ctx), opGet, ticketID)
}

func (s *Service) load(db *gorm.DB, operation, ticketID string) (Ticket, error) {
	var ticket Ticket
	err := db.Where("id = ?", strings.TrimSpace(ticketID)).Take(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Ticket{}, ErrTicketNotFound
	}
	if err != nil {
		s.logError(operation, "query_failed", err, zap.String("ticket_id", ticketID))
		return Ticket{}, apperrors.Wrap(operation, "query_failed", err)
	}
	return ticket, nil
}

// NewTicket carries the fields of a ticket being opened.
type NewTicket struct {
	Summary     string   `json:"summary"`
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Assignees   []string `json:"assignees"`
}

// Create opens a ticket authored by the actor and records the initial
// assignments on the assigned users.
func (s *Service) Create(ctx context.Context, input NewTicket, author Actor) (Ticket, error) {
	if err := validateNewTicket(input, author); err != nil {
		return Ticket{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return Ticket{}, apperrors.Wrap(opCreate, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	ticket := Ticket{
		ID:          id,
		Summary:     strings.TrimSpace(input.Summary),
		Type:        strings.TrimSpace(input.Type),
		Severity:    strings.TrimSpace(input.Severity),
		Status:      strings.TrimSpace(input.Status),
		Description: input.Description,
		Author:      author.Username,
		AuthorID:    author.ID,
		Assignees:   cleanAssignees(input.Assignees),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&ticket).Error; err != nil {
		s.logError(opCreate, "insert_failed", err)
		return Ticket{}, apperrors.Wrap(opCreate, "insert_failed", err)
	}
	if err := s.users.UpdateAssignments(ctx, ticket.ID, ticket.Assignees, nil); err != nil {
		s.logError(opCreate, "assignments_failed", err, zap.String("ticket_id", ticket.ID))
		return Ticket{}, apperrors.Wrap(opCreate, "assignments_failed", err)
	}
	return ticket, nil
}

func validateNewTicket(input NewTicket, author Actor) error {
	switch {
	case strings.TrimSpace(input.Summary) == "":
		return ErrMissingSummary
	case strings.TrimSpace(input.Type) == "":
		return ErrMissingType
	case strings.TrimSpace(input.Severity) == "":
		return ErrMissingSeverity
	case strings.TrimSpace(input.Status) == "":
		return ErrMissingStatus
	case author.ID == "" || author.Username == "":
		return ErrMissingActor
	}
	return nil
}

// TicketUpdate carries an edit. Empty fields are left untouched; a nil
// Assignees leaves the assignment list alone.
type TicketUpdate struct {
	Summary     string    `json:"summary"`
	Type        string    `json:"type"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Assignees   *[]string `json:"assignees"`
}

// UpdateOutcome is the result of an edit. Notifications reports fan-out
// failures, which never fail the edit itself.
type UpdateOutcome struct {
	Ticket        Ticket
	Changed       []string
	Assigned      []string
	Unassigned    []string
	Notifications notifications.DispatchReport
}

// Update applies an edit, syncs user assignment lists and notifies the
// author and assignees.
func (s *Service) Update(ctx context.Context, ticketID string, update TicketUpdate, editor Actor) (UpdateOutcome, error) {
	if editor.ID == "" {
		return UpdateOutcome{}, ErrMissingActor
	}
	ticket, err := s.load(s.db.WithContext(ctx), opUpdate, ticketID)
	if err != nil {
		return UpdateOutcome{}, err
	}
	previousAssignees := append([]string(nil), ticket.Assignees...)

	changed := applyFieldChanges(&ticket, update)
	var added, removed []string
	if update.Assignees != nil {
		next := cleanAssignees(*update.Assignees)
		added, removed = diffAssignees(previousAssignees, next)
		ticket.Assignees = next
	}
	if len(changed) == 0 && len(added) == 0 && len(removed) == 0 {
		return UpdateOutcome{Ticket: ticket}, nil
	}

	ticket.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Save(&ticket).Error; err != nil {
		s.logError(opUpdate, "save_failed", err, zap.String("ticket_id", ticket.ID))
		return UpdateOutcome{}, apperrors.Wrap(opUpdate, "save_failed", err)
	}
	if err := s.users.UpdateAssignments(ctx, ticket.ID, added, removed); err != nil {
		s.logError(opUpdate, "assignments_failed", err, zap.String("ticket_id", ticket.ID))
		return UpdateOutcome{}, apperrors.Wrap(opUpdate, "assignments_failed", err)
	}

	requests := changeRecipients(ticket, previousAssignees, changed, editor)
	requests = append(requests, assignmentRecipients(ticket.ID, added, removed, editor)...)
	return UpdateOutcome{
		Ticket:        ticket,
		Changed:       changed,
		Assigned:      added,
		Unassigned:    removed,
		Notifications: s.notifier.Dispatch(ctx, requests...),
	}, nil
}

// applyFieldChanges copies the non-empty tracked fields that differ and
// returns their names in tracking order.
func applyFieldChanges(ticket *Ticket, update TicketUpdate) []string {
	tracked := []struct {
		name  string
		value string
		field *string
	}{
		{name: "summary", value: update.Summary, field: &ticket.Summary},
		{name: "type", value: update.Type, field: &ticket.Type},
		{name: "severity", value: update.Severity, field: &ticket.Severity},
		{name: "status", value: update.Status, field: &ticket.Status},
		{name: "description", value: update.Description, field: &ticket.Description},
	}
	var changed []string
	for _, entry := range tracked {
		if entry.value == "" || entry.value == *entry.field {
			continue
		}
		*entry.field = entry.value
		changed = append(changed, entry.name)
	}
	return changed
}

// Delete removes a ticket with its comments and pulls it from every
// assignee's list.
func (s *Service) Delete(ctx context.Context, ticketID string) error {
	var ticket Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.load(tx, opDelete, ticketID)
		if err != nil {
			return err
		}
		ticket = loaded
		if err := tx.Where("ticket_id = ?", ticket.ID).Delete(&Comment{}).Error; err != nil {
			return apperrors.Wrap(opDelete, "comments_delete_failed", err)
		}
		if err := tx.Delete(&ticket).Error; err != nil {
			return apperrors.Wrap(opDelete, "delete_failed", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			s.logError(opDelete, "transaction_failed", err, zap.String("ticket_id", ticketID))
		}
		return err
	}
	if err := s.users.UpdateAssignments(ctx, ticket.ID, nil, ticket.Assignees); err != nil {
		s.logError(opDelete, "assignments_failed", err, zap.String("ticket_id", ticket.ID))
		return apperrors.Wrap(opDelete, "assignments_failed", err)
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	s.logger.Error("tickets service error", append(attrs, fields...)...)
}
