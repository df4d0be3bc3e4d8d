package model

import (
	"fmt"
	"time"
)

// Category classifies a song as retro, classic or latest. Storage-side each
// category is a separate side table keyed by song_id; a song must have a row
// in exactly one of them.
type Category string

const (
	CategoryRetro   Category = "retro"
	CategoryClassic Category = "classic"
	CategoryLatest  Category = "latest"
)

// ParseCategory validates a category coming from a request. Table names are
// only ever derived from the returned constant, never from the raw input.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryRetro, CategoryClassic, CategoryLatest:
		return Category(s), nil
	}
	return "", fmt.Errorf("invalid category %q: must be one of retro, classic, latest", s)
}

// SideTable returns the category table backing this category.
func (c Category) SideTable() string {
	switch c {
	case CategoryRetro:
		return "retro_songs"
	case CategoryClassic:
		return "classic_songs"
	case CategoryLatest:
		return "latest_songs"
	}
	return ""
}

func (c Category) String() string {
	return string(c)
}

// Language is the song's language, stored as a MySQL enum column.
type Language string

const (
	LanguageKannada Language = "Kannada"
	LanguageHindi   Language = "Hindi"
	LanguageEnglish Language = "English"
)

// ParseLanguage validates a language value coming from a request.
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageKannada, LanguageHindi, LanguageEnglish:
		return Language(s), nil
	}
	return "", fmt.Errorf("invalid language %q: must be one of Kannada, Hindi, English", s)
}

// Song represents an uploaded track or podcast episode.
type Song struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	FilePath  string    `json:"filePath"`
	CoverPath string    `json:"coverPath,omitempty"`
	IsPodcast bool      `json:"isPodcast"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`

	// Type is derived from side-table membership. It is nil only for a song
	// that somehow lost its category row; clients receive an explicit null.
	Type *Category `json:"type"`

	// Liked is annotated per requesting user on listing, never persisted here.
	Liked bool `json:"liked"`
}
