package model

import "time"

// Comment is a user's comment on a song. Append-only; the comment module is
// built on GORM, independent of the raw-SQL catalog store.
type Comment struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	SongID      int64     `json:"songId" gorm:"not null;index"`
	UserID      int64     `json:"userId" gorm:"not null;index"`
	CommentText string    `json:"commentText" gorm:"column:comment_text;type:text;not null"`
	CreatedAt   time.Time `json:"createdAt" gorm:"autoCreateTime"`

	// Username is joined in on read for display, never written.
	Username string `json:"username" gorm:"->"`
}

// TableName keeps GORM on the table the schema migration creates.
func (Comment) TableName() string {
	return "comments"
}
