package db

import (
	"database/sql"
	"fmt"
	"time"

	"swarabox/config"
	"swarabox/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// Connect opens the MySQL connection pool. The handle is passed explicitly
// to repositories rather than held as package state.
func Connect(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(100)
	conn.SetConnMaxLifetime(time.Hour)

	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to MySQL",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return conn, nil
}

// InitSchema creates the tables if they don't exist. Ordering matters:
// songs references users, the category side tables and likes/comments
// reference songs with ON DELETE CASCADE.
func InitSchema(conn *sql.DB) error {
	statements := []struct {
		name  string
		query string
	}{
		{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id INT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(100) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		);`},
		{"songs", `
		CREATE TABLE IF NOT EXISTS songs (
			id INT AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			artist VARCHAR(255) NOT NULL,
			file_path VARCHAR(767) NOT NULL,
			cover_path VARCHAR(767),
			user_id INT NOT NULL,
			is_podcast BOOLEAN NOT NULL DEFAULT FALSE,
			language ENUM('Kannada', 'Hindi', 'English') NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT fk_user_songs FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`},
		{"retro_songs", `
		CREATE TABLE IF NOT EXISTS retro_songs (
			song_id INT PRIMARY KEY,
			additional_info TEXT,
			CONSTRAINT fk_retro_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
		);`},
		{"classic_songs", `
		CREATE TABLE IF NOT EXISTS classic_songs (
			song_id INT PRIMARY KEY,
			additional_info TEXT,
			CONSTRAINT fk_classic_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
		);`},
		{"latest_songs", `
		CREATE TABLE IF NOT EXISTS latest_songs (
			song_id INT PRIMARY KEY,
			additional_info TEXT,
			CONSTRAINT fk_latest_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
		);`},
		{"likes", `
		CREATE TABLE IF NOT EXISTS likes (
			user_id INT NOT NULL,
			song_id INT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT uq_user_song UNIQUE (user_id, song_id),
			CONSTRAINT fk_like_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
			CONSTRAINT fk_like_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
		);`},
		{"comments", `
		CREATE TABLE IF NOT EXISTS comments (
			id INT AUTO_INCREMENT PRIMARY KEY,
			song_id INT NOT NULL,
			user_id INT NOT NULL,
			comment_text TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_comment_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE,
			CONSTRAINT fk_comment_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		);`},
	}

	for _, s := range statements {
		if _, err := conn.Exec(s.query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.name, err)
		}
	}

	logger.Info("database schema initialized")
	return nil
}
