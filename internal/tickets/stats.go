package tickets

import (
	"context"

	"github.com/quantumtracker/backend/internal/apperrors"
)

const opStats = "tickets.stats"

// Stats summarizes the tracker for the dashboard.
type Stats struct {
	TicketCount  int64 `json:"ticketCount"`
	UserCount    int64 `json:"userCount"`
	CommentCount int64 `json:"commentCount"`

	TicketsNew            int64 `json:"ticketsNew"`
	TicketsInProgress     int64 `json:"ticketsInProgress"`
	TicketsResolved       int64 `json:"ticketsResolved"`
	TicketsFeedbackNeeded int64 `json:"ticketsFeedbackNeeded"`
	TicketsRejected       int64 `json:"ticketsRejected"`
	TicketsOnHold         int64 `json:"ticketsOnHold"`

	TicketsUnknown  int64 `json:"ticketsUnknown"`
	TicketsLow      int64 `json:"ticketsLow"`
	TicketsModerate int64 `json:"ticketsModerate"`
	TicketsHigh     int64 `json:"ticketsHigh"`
	TicketsCritical int64 `json:"ticketsCritical"`
}

type groupCount struct {
	Value string
	Total int64
}

// Stats counts tickets by status and severity along with user and comment totals.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	db := s.db.WithContext(ctx)
	if err := db.Model(&Ticket{}).Count(&stats.TicketCount).Error; err != nil {
		s.logError(opStats, "ticket_count_failed", err)
		return Stats{}, apperrors.Wrap(opStats, "ticket_count_failed", err)
	}
	if err := db.Model(&Comment{}).Count(&stats.CommentCount).Error; err != nil {
		s.logError(opStats, "comment_count_failed", err)
		return Stats{}, apperrors.Wrap(opStats, "comment_count_failed", err)
	}
	userCount, err := s.users.Count(ctx)
	if err != nil {
		return Stats{}, apperrors.Wrap(opStats, "user_count_failed", err)
	}
	stats.UserCount = userCount

	byStatus, err := s.countBy(ctx, "status")
	if err != nil {
		return Stats{}, err
	}
	stats.TicketsNew = byStatus[StatusNew]
	stats.TicketsInProgress = byStatus[StatusInProgress]
	stats.TicketsResolved = byStatus[StatusResolved]
	stats.TicketsFeedbackNeeded = byStatus[StatusFeedbackNeeded]
	stats.TicketsRejected = byStatus[StatusRejected]
	stats.TicketsOnHold = byStatus[StatusOnHold]

	bySeverity, err := s.countBy(ctx, "severity")
	if err != nil {
		return Stats{}, err
	}
	stats.TicketsUnknown = bySeverity[SeverityUnknown]
	stats.TicketsLow = bySeverity[SeverityLow]
	stats.TicketsModerate = bySeverity[SeverityModerate]
	stats.TicketsHigh = bySeverity[SeverityHigh]
	stats.TicketsCritical = bySeverity[SeverityCritical]
	return stats, nil
}

// countBy groups tickets by a whitelisted column.
func (s *Service) countBy(ctx context.Context, column string) (map[string]int64, error) {
	var rows []groupCount
	err := s.db.WithContext(ctx).
		Model(&Ticket{}).
		Select(column + " AS value, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		s.logError(opStats, "group_failed", err)
		return nil, apperrors.Wrap(opStats, "group_"+column+"_failed", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Value] = row.Total
	}
	return counts, nil
}
