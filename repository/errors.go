package repository

import "errors"

// Domain errors surfaced to handlers. Store-level faults are wrapped with
// context instead; handlers match these with errors.Is.
var (
	ErrDuplicateUser = errors.New("username or email already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrSongNotFound  = errors.New("song not found")
	ErrAlreadyLiked  = errors.New("song already liked")
	ErrLikeNotFound  = errors.New("like not found")
)
