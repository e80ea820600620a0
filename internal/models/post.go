package models

import (
	"database/sql"
	"time"
)

// Post represents a community post
type Post struct {
	ID           int64        `gorm:"primaryKey;autoIncrement;column:id"`
	UserID       int64        `gorm:"not null;index;column:user_id"`
	Title        string       `gorm:"type:varchar(255);not null;column:title"`
	Content      string       `gorm:"type:text;not null;column:content"`
	ViewCount    int64        `gorm:"not null;default:0;column:view_count"`
	LikeCount    int64        `gorm:"not null;default:0;column:like_count"`
	CommentCount int64        `gorm:"not null;default:0;column:comment_count"`
	IsNotice     bool         `gorm:"not null;default:false;column:is_notice"`
	CreatedAt    time.Time    `gorm:"not null;column:created_at"`
	UpdatedAt    time.Time    `gorm:"not null;column:updated_at"`
	DeletedAt    sql.NullTime `gorm:"index;column:deleted_at"`

	// Relationships
	Author *User `gorm:"foreignKey:UserID;references:ID"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}
