package tickets

import (
	"context"
	"errors"
	"strings"

	"github.com/quantumtracker/backend/internal/apperrors"
	"github.com/quantumtracker/backend/internal/notifications"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrCommentNotFound = apperrors.New(apperrors.KindNotFound, "Comment not found.")
	ErrEmptyComment    = apperrors.New(apperrors.KindBadRequest, "There is nothing to post.")
)

const (
	opListComments  = "tickets.list_comments"
	opPostComment   = "tickets.post_comment"
	opDeleteComment = "tickets.delete_comment"
)

// ListComments returns the comments of a ticket, oldest first.
func (s *Service) ListComments(ctx context.Context, ticketID string) ([]Comment, error) {
	comments := []Comment{}
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", strings.TrimSpace(ticketID)).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		s.logError(opListComments, "query_failed", err, zap.String("ticket_id", ticketID))
		return nil, apperrors.Wrap(opListComments, "query_failed", err)
	}
	return comments, nil
}

// CommentOutcome is the result of posting a comment.
type CommentOutcome struct {
	Comment       Comment
	Notifications notifications.DispatchReport
}

// PostComment stores a comment, bumps the ticket's comment count and notifies
// the author and assignees.
func (s *Service) PostComment(ctx context.Context, ticketID string, poster Actor, content string) (CommentOutcome, error) {
	if poster.ID == "" || poster.Username == "" {
		return CommentOutcome{}, ErrMissingActor
	}
	if strings.TrimSpace(content) == "" {
		return CommentOutcome{}, ErrEmptyComment
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return CommentOutcome{}, apperrors.Wrap(opPostComment, "id_generation_failed", err)
	}

	var ticket Ticket
	now := s.clock().UTC()
	comment := Comment{
		ID:        id,
		Poster:    poster.Username,
		PosterID:  poster.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.load(tx, opPostComment, ticketID)
		if err != nil {
			return err
		}
		ticket = loaded
		comment.TicketID = ticket.ID
		if err := tx.Model(&Ticket{}).Where("id = ?", ticket.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + ?", 1)).Error; err != nil {
			return apperrors.Wrap(opPostComment, "count_failed", err)
		}
		if err := tx.Create(&comment).Error; err != nil {
			return apperrors.Wrap(opPostComment, "insert_failed", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			s.logError(opPostComment, "transaction_failed", err, zap.String("ticket_id", ticketID))
		}
		return CommentOutcome{}, err
	}

	return CommentOutcome{
		Comment:       comment,
		Notifications: s.notifier.Dispatch(ctx, commentRecipients(ticket, poster)...),
	}, nil
}

// DeleteComment removes a comment and decrements its ticket's count when the
// ticket still exists.
func (s *Service) DeleteComment(ctx context.Context, ticketID, commentID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment Comment
		err := tx.Where("id = ? AND ticket_id = ?", strings.TrimSpace(commentID), strings.TrimSpace(ticketID)).
			Take(&comment).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		if err != nil {
			return apperrors.Wrap(opDeleteComment, "query_failed", err)
		}
		if err := tx.Delete(&comment).Error; err != nil {
			return apperrors.Wrap(opDeleteComment, "delete_failed", err)
		}
		err = tx.Model(&Ticket{}).
			Where("id = ? AND comment_count > 0", comment.TicketID).
			UpdateColumn("comment_count", gorm.Expr("comment_count - ?", 1)).Error
		if err != nil {
			return apperrors.Wrap(opDeleteComment, "count_failed", err)
		}
		return nil
	})
	if err != nil && apperrors.KindOf(err) == apperrors.KindInternal {
		s.logError(opDeleteComment, "transaction_failed", err, zap.String("comment_id", commentID))
	}
	return err
}
