package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the like table surfaces as domain errors.
const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrFKViolation    = 1452
)

// LikeRepository defines like/unlike operations. The UNIQUE(user_id, song_id)
// constraint provides the at-most-one-like invariant; duplicate-insert races
// lose with ErrAlreadyLiked.
type LikeRepository interface {
	Like(userID, songID int64) error
	Unlike(userID, songID int64) error
	IsLiked(userID, songID int64) (bool, error)
	// LikedSongIDs returns every song id the user has liked, for annotating
	// catalog listings in one pass.
	LikedSongIDs(userID int64) (map[int64]bool, error)
}

// mysqlLikeRepository implements LikeRepository for MySQL.
type mysqlLikeRepository struct {
	db *sql.DB
}

// NewMySQLLikeRepository creates a new mysqlLikeRepository.
func NewMySQLLikeRepository(db *sql.DB) LikeRepository {
	return &mysqlLikeRepository{db: db}
}

// Like records that the user likes the song.
func (r *mysqlLikeRepository) Like(userID, songID int64) error {
	_, err := r.db.Exec("INSERT INTO likes (user_id, song_id) VALUES (?, ?)", userID, songID)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) {
			switch mysqlErr.Number {
			case mysqlErrDuplicateEntry:
				return ErrAlreadyLiked
			case mysqlErrFKViolation:
				return ErrSongNotFound
			}
		}
		return fmt.Errorf("failed to insert like (user %d, song %d): %w", userID, songID, err)
	}
	return nil
}

// Unlike removes the like; ErrLikeNotFound when there was none.
func (r *mysqlLikeRepository) Unlike(userID, songID int64) error {
	res, err := r.db.Exec("DELETE FROM likes WHERE user_id = ? AND song_id = ?", userID, songID)
	if err != nil {
		return fmt.Errorf("failed to delete like (user %d, song %d): %w", userID, songID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for unlike: %w", err)
	}
	if affected == 0 {
		return ErrLikeNotFound
	}
	return nil
}

// IsLiked reports whether the (user, song) like row exists.
func (r *mysqlLikeRepository) IsLiked(userID, songID int64) (bool, error) {
	var one int
	err := r.db.QueryRow("SELECT 1 FROM likes WHERE user_id = ? AND song_id = ?", userID, songID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to check like (user %d, song %d): %w", userID, songID, err)
	}
	return true, nil
}

// LikedSongIDs retrieves the user's liked song ids.
func (r *mysqlLikeRepository) LikedSongIDs(userID int64) (map[int64]bool, error) {
	rows, err := r.db.Query("SELECT song_id FROM likes WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query likes for user %d: %w", userID, err)
	}
	defer rows.Close()

	liked := make(map[int64]bool)
	for rows.Next() {
		var songID int64
		if err := rows.Scan(&songID); err != nil {
			return nil, fmt.Errorf("failed to scan liked song id: %w", err)
		}
		liked[songID] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in LikedSongIDs: %w", err)
	}
	return liked, nil
}
