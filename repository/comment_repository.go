package repository

import (
	"context"

	"swarabox/model"

	"gorm.io/gorm"
)

// CommentRepository is the comment data access interface. Comments are
// simple append-only CRUD; the module runs on GORM.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetBySongID(ctx context.Context, songID int64) ([]*model.Comment, error)
}

// gormCommentRepository implements CommentRepository on GORM.
type gormCommentRepository struct {
	db *gorm.DB
}

// NewGormCommentRepository creates a GORM comment repository.
func NewGormCommentRepository(db *gorm.DB) CommentRepository {
	return &gormCommentRepository{db: db}
}

// Create stores a new comment.
func (r *gormCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	return r.db.WithContext(ctx).Create(comment).Error
}

// GetBySongID retrieves a song's comments with commenter usernames, oldest
// first.
func (r *gormCommentRepository) GetBySongID(ctx context.Context, songID int64) ([]*model.Comment, error) {
	var comments []*model.Comment
	err := r.db.WithContext(ctx).
		Table("comments").
		Select("comments.*, users.username AS username").
		Joins("JOIN users ON users.id = comments.user_id").
		Where("comments.song_id = ?", songID).
		Order("comments.created_at ASC").
		Scan(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}
