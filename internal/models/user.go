package models

import (
	"time"
)

// User represents a community member
type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Nickname  string    `gorm:"type:varchar(32);not null;uniqueIndex;column:nickname"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// UserBlock records that Blocker blocked Blocked. Visibility treats the pair
// symmetrically: either direction hides each other's content.
type UserBlock struct {
	BlockerID int64     `gorm:"primaryKey;column:blocker_id"`
	BlockedID int64     `gorm:"primaryKey;column:blocked_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Blocker *User `gorm:"foreignKey:BlockerID;references:ID"`
	Blocked *User `gorm:"foreignKey:BlockedID;references:ID"`
}

// TableName specifies the table name for UserBlock
func (UserBlock) TableName() string {
	return "user_blocks"
}
