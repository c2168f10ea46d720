package tickets

import "time"

// Ticket statuses counted by Stats.
const (
	StatusNew            = "New"
	StatusInProgress     = "In progress"
	StatusResolved       = "Resolved"
	StatusFeedbackNeeded = "Feedback needed"
	StatusRejected       = "Rejected"
	StatusOnHold         = "On hold"
)

// Ticket severities counted by Stats.
const (
	SeverityUnknown  = "Unknown"
	SeverityLow      = "Low"
	SeverityModerate = "Moderate"
	SeverityHigh     = "High"
	SeverityCritical = "Critical"
)

// Ticket is a tracked issue. Assignees holds user ids.
type Ticket struct {
	ID           string    `gorm:"column:id;primaryKey;size:32;not null" json:"id"`
	Summary      string    `gorm:"column:summary;not null" json:"summary"`
	Type         string    `gorm:"column:type;size:64;not null" json:"type"`
	Severity     string    `gorm:"column:severity;size:32;not null;index" json:"severity"`
	Status       string    `gorm:"column:status;size:32;not null;index" json:"status"`
	Description  string    `gorm:"column:description" json:"description"`
	CommentCount int       `gorm:"column:comment_count;not null" json:"commentCount"`
	Author       string    `gorm:"column:author;size:64;not null" json:"author"`
	AuthorID     string    `gorm:"column:author_id;size:24;not null" json:"authorId"`
	Assignees    []string  `gorm:"column:assignees;serializer:json" json:"assignees"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Ticket) TableName() string {
	return "tickets"
}

// Comment is a message posted on a ticket.
type Comment struct {
	ID        string    `gorm:"column:id;primaryKey;size:32;not null" json:"id"`
	TicketID  string    `gorm:"column:ticket_id;size:32;not null;index" json:"ticketId"`
	Poster    string    `gorm:"column:poster;size:64;not null" json:"poster"`
	PosterID  string    `gorm:"column:poster_id;size:24;not null" json:"posterId"`
	Content   string    `gorm:"column:content;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Comment) TableName() string {
	return "comments"
}

// Actor is the session user performing a ticket or comment operation.
type Actor struct {
	ID       string
	Username string
}
