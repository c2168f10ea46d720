package users

import (
	"strings"
	"time"
)

const (
	// SystemUserID identifies the pseudo-user that authors system-generated tickets.
	SystemUserID = "000000000000000000000000"
	// SystemUsername is the display name of the system pseudo-user.
	SystemUsername = "System"
	// GuestUsername is the shared demo account handed out by GuestLogin.
	GuestUsername = "Guest"

	legacySystemUserID = "0"
)

// User is a tracker account. Assignments holds the ids of tickets the user is
// assigned to.
type User struct {
	ID           string    `gorm:"column:id;primaryKey;size:24;not null" json:"_id"`
	Username     string    `gorm:"column:username;size:64;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"column:email;size:320;not null;uniqueIndex" json:"-"`
	PasswordHash string    `gorm:"column:password_hash;size:72;not null" json:"-"`
	RealName     string    `gorm:"column:real_name;size:190" json:"realName,omitempty"`
	Location     string    `gorm:"column:location;size:190" json:"location,omitempty"`
	Assignments  []string  `gorm:"column:assignments;serializer:json" json:"assignments"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName exposes the table backing users.
func (User) TableName() string {
	return "users"
}

// IsSystemUser reports whether id refers to the system pseudo-user, including
// the legacy "0" alias carried by old system tickets.
func IsSystemUser(id string) bool {
	trimmed := strings.TrimSpace(id)
	return trimmed == SystemUserID || trimmed == legacySystemUserID
}

// CanonicalID maps the legacy system alias onto SystemUserID.
func CanonicalID(id string) string {
	trimmed := strings.TrimSpace(id)
	if trimmed == legacySystemUserID {
		return SystemUserID
	}
	return trimmed
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
