package repository

import (
	"database/sql"
	"fmt"

	"swarabox/logger"
	"swarabox/model"
)

// SongFilter restricts a catalog listing. Nil fields mean no restriction;
// set fields combine with AND.
type SongFilter struct {
	Type      *model.Category
	Language  *model.Language
	IsPodcast *bool
}

// SongRepository defines the catalog store operations for songs.
type SongRepository interface {
	// CreateSong inserts the song row and its category side-table row in one
	// transaction. Either both rows are committed or neither is.
	CreateSong(song *model.Song, category model.Category) (int64, error)
	GetSongByID(id int64) (*model.Song, error)
	ListSongs(filter SongFilter) ([]*model.Song, error)
	// DeleteSong removes a song by id; the category row, likes and comments
	// cascade. Returns ErrSongNotFound when no row was affected.
	DeleteSong(id int64) error
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	db *sql.DB
}

// NewMySQLSongRepository creates a new mysqlSongRepository.
func NewMySQLSongRepository(db *sql.DB) SongRepository {
	return &mysqlSongRepository{db: db}
}

// songColumns is the select list shared by every song query. The derived
// category comes from side-table membership; a song that lost its category
// row scans as NULL rather than failing.
const songColumns = `
	s.id, s.user_id, s.title, s.artist, s.file_path, s.cover_path,
	s.is_podcast, s.language, s.created_at, s.updated_at,
	CASE
		WHEN r.song_id IS NOT NULL THEN 'retro'
		WHEN c.song_id IS NOT NULL THEN 'classic'
		WHEN l.song_id IS NOT NULL THEN 'latest'
		ELSE NULL
	END AS category`

const songJoins = `
	FROM songs s
	LEFT JOIN retro_songs r ON s.id = r.song_id
	LEFT JOIN classic_songs c ON s.id = c.song_id
	LEFT JOIN latest_songs l ON s.id = l.song_id`

// CreateSong adds a new song and its category membership atomically.
func (r *mysqlSongRepository) CreateSong(song *model.Song, category model.Category) (int64, error) {
	sideTable := category.SideTable()
	if sideTable == "" {
		return 0, fmt.Errorf("unknown category %q", category)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for CreateSong: %w", err)
	}
	// Rollback is a no-op once the transaction is committed.
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO songs (title, artist, file_path, cover_path, user_id, is_podcast, language)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		song.Title, song.Artist, song.FilePath, nullString(song.CoverPath),
		song.UserID, song.IsPodcast, string(song.Language),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert song: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for song: %w", err)
	}

	// The table name comes from the Category constant's fixed mapping,
	// never from request text.
	insertCategory := fmt.Sprintf(
		"INSERT INTO %s (song_id, additional_info) VALUES (?, ?)", sideTable)
	if _, err := tx.Exec(insertCategory, id, fmt.Sprintf("%s song", category)); err != nil {
		return 0, fmt.Errorf("failed to insert into %s: %w", sideTable, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit CreateSong: %w", err)
	}

	logger.Info("song created",
		logger.Int64("songId", id),
		logger.String("title", song.Title),
		logger.String("category", category.String()))
	return id, nil
}

// GetSongByID retrieves a song with its derived category.
func (r *mysqlSongRepository) GetSongByID(id int64) (*model.Song, error) {
	query := "SELECT" + songColumns + songJoins + " WHERE s.id = ?"
	song, err := scanSong(r.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSongNotFound
		}
		return nil, fmt.Errorf("failed to scan song by ID %d: %w", id, err)
	}
	return song, nil
}

// ListSongs retrieves songs matching the filter, newest first.
func (r *mysqlSongRepository) ListSongs(filter SongFilter) ([]*model.Song, error) {
	query := "SELECT" + songColumns + songJoins
	var conditions []string
	var params []interface{}

	if filter.Type != nil {
		// Membership test chosen by the validated enum constant.
		switch *filter.Type {
		case model.CategoryRetro:
			conditions = append(conditions, "r.song_id IS NOT NULL")
		case model.CategoryClassic:
			conditions = append(conditions, "c.song_id IS NOT NULL")
		case model.CategoryLatest:
			conditions = append(conditions, "l.song_id IS NOT NULL")
		default:
			return nil, fmt.Errorf("unknown category filter %q", *filter.Type)
		}
	}
	if filter.Language != nil {
		conditions = append(conditions, "s.language = ?")
		params = append(params, string(*filter.Language))
	}
	if filter.IsPodcast != nil {
		conditions = append(conditions, "s.is_podcast = ?")
		params = append(params, *filter.IsPodcast)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY s.created_at DESC"

	rows, err := r.db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	songs := make([]*model.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song in ListSongs: %w", err)
		}
		songs = append(songs, song)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListSongs: %w", err)
	}
	return songs, nil
}

// DeleteSong removes a song by id. Concurrent deletes race on the row: the
// loser sees zero rows affected and gets ErrSongNotFound.
func (r *mysqlSongRepository) DeleteSong(id int64) error {
	res, err := r.db.Exec("DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete song %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for song delete: %w", err)
	}
	if affected == 0 {
		return ErrSongNotFound
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSong(row rowScanner) (*model.Song, error) {
	song := &model.Song{}
	var coverPath, category sql.NullString
	err := row.Scan(
		&song.ID, &song.UserID, &song.Title, &song.Artist, &song.FilePath,
		&coverPath, &song.IsPodcast, &song.Language,
		&song.CreatedAt, &song.UpdatedAt, &category,
	)
	if err != nil {
		return nil, err
	}
	if coverPath.Valid {
		song.CoverPath = coverPath.String
	}
	if category.Valid {
		c := model.Category(category.String)
		song.Type = &c
	}
	return song, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
