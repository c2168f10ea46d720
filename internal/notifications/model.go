package notifications

import "time"

// Notification is a message raised for one user. Only Active ever changes
// after creation, and it only moves from true to false.
type Notification struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:24;not null" json:"userId"`
	ID        string    `gorm:"column:notification_id;primaryKey;size:64;not null" json:"id"`
	Message   string    `gorm:"column:message;not null" json:"message"`
	Link      string    `gorm:"column:link;not null" json:"link"`
	Active    bool      `gorm:"column:active;not null" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"createdAt"`
}

// TableName keeps the per-user notification list in its own table.
func (Notification) TableName() string {
	return "user_notifications"
}

// Request describes a notification to raise. Link is optional.
type Request struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Link    string `json:"link"`
}
