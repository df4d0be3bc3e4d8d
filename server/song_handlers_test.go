package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"swarabox/model"
	"swarabox/repository"

	"github.com/gorilla/mux"
)

func seedSong(t *testing.T, env *testEnv, userID int64, title string, category model.Category, language model.Language, isPodcast bool) int64 {
	t.Helper()
	song := &model.Song{
		UserID:    userID,
		Title:     title,
		Artist:    "artist",
		IsPodcast: isPodcast,
		Language:  language,
		CreatedAt: time.Now().Add(time.Duration(env.songs.nextID) * time.Second),
	}
	id, err := env.songs.CreateSong(song, category)
	if err != nil {
		t.Fatalf("seed song %q: %v", title, err)
	}
	return id
}

func decodeSongs(t *testing.T, rec *httptest.ResponseRecorder) []*model.Song {
	t.Helper()
	var songs []*model.Song
	if err := json.NewDecoder(rec.Body).Decode(&songs); err != nil {
		t.Fatalf("decode songs: %v", err)
	}
	return songs
}

func TestGetSongsRejectsInvalidFilters(t *testing.T) {
	env := newTestEnv()

	cases := []struct {
		name  string
		query string
	}{
		{"bad type", "?type=rock"},
		{"injected type", "?type=latest%3B%20DROP%20TABLE%20songs"},
		{"bad language", "?language=Klingon"},
		{"bad isPodcast", "?isPodcast=maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodGet, "/api/songs"+tc.query, nil, 1, "alice")
			rec := httptest.NewRecorder()
			env.handler.GetSongsHandler(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Kind != KindValidation {
				t.Fatalf("kind = %q, want %q", resp.Kind, KindValidation)
			}
		})
	}
}

func TestGetSongsFiltersAndLikedAnnotation(t *testing.T) {
	env := newTestEnv()

	retroID := seedSong(t, env, 1, "old gold", model.CategoryRetro, model.LanguageHindi, false)
	classicID := seedSong(t, env, 1, "evergreen", model.CategoryClassic, model.LanguageKannada, false)
	podcastID := seedSong(t, env, 2, "talk show", model.CategoryLatest, model.LanguageEnglish, true)

	if err := env.likes.Like(7, retroID); err != nil {
		t.Fatalf("seed like: %v", err)
	}

	t.Run("no filter returns everything newest first", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/songs", nil, 7, "grace")
		rec := httptest.NewRecorder()
		env.handler.GetSongsHandler(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		songs := decodeSongs(t, rec)
		if len(songs) != 3 {
			t.Fatalf("got %d songs, want 3", len(songs))
		}
		if songs[0].ID != podcastID || songs[2].ID != retroID {
			t.Fatalf("unexpected order: %d, %d, %d", songs[0].ID, songs[1].ID, songs[2].ID)
		}
	})

	t.Run("type filter", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/songs?type=classic", nil, 7, "grace")
		rec := httptest.NewRecorder()
		env.handler.GetSongsHandler(rec, req)

		songs := decodeSongs(t, rec)
		if len(songs) != 1 || songs[0].ID != classicID {
			t.Fatalf("got %+v, want only song %d", songs, classicID)
		}
		if songs[0].Type == nil || *songs[0].Type != model.CategoryClassic {
			t.Fatalf("type = %v, want classic", songs[0].Type)
		}
	})

	t.Run("language and podcast filters", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/songs?language=English&isPodcast=true", nil, 7, "grace")
		rec := httptest.NewRecorder()
		env.handler.GetSongsHandler(rec, req)

		songs := decodeSongs(t, rec)
		if len(songs) != 1 || songs[0].ID != podcastID {
			t.Fatalf("got %+v, want only song %d", songs, podcastID)
		}
	})

	t.Run("liked reflects the requester, not the owner", func(t *testing.T) {
		req := authedRequest(http.MethodGet, "/api/songs", nil, 7, "grace")
		rec := httptest.NewRecorder()
		env.handler.GetSongsHandler(rec, req)

		for _, song := range decodeSongs(t, rec) {
			want := song.ID == retroID
			if song.Liked != want {
				t.Errorf("song %d liked = %v, want %v", song.ID, song.Liked, want)
			}
		}

		req = authedRequest(http.MethodGet, "/api/songs", nil, 1, "alice")
		rec = httptest.NewRecorder()
		env.handler.GetSongsHandler(rec, req)

		for _, song := range decodeSongs(t, rec) {
			if song.Liked {
				t.Errorf("song %d liked for user 1, want false", song.ID)
			}
		}
	})
}

func deleteRequest(songID int64, userID int64) *http.Request {
	req := authedRequest(http.MethodDelete, fmt.Sprintf("/api/songs/%d", songID), nil, userID, "user")
	return mux.SetURLVars(req, map[string]string{"songId": fmt.Sprintf("%d", songID)})
}

func TestDeleteSong(t *testing.T) {
	t.Run("absent song", func(t *testing.T) {
		env := newTestEnv()
		rec := httptest.NewRecorder()
		env.handler.DeleteSongHandler(rec, deleteRequest(42, 1))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("someone else's song", func(t *testing.T) {
		env := newTestEnv()
		songID := seedSong(t, env, 1, "mine", model.CategoryRetro, model.LanguageHindi, false)

		rec := httptest.NewRecorder()
		env.handler.DeleteSongHandler(rec, deleteRequest(songID, 2))

		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
		}
		if _, err := env.songs.GetSongByID(songID); err != nil {
			t.Fatalf("song should survive a forbidden delete: %v", err)
		}
	})

	t.Run("owner deletes", func(t *testing.T) {
		env := newTestEnv()
		songID := seedSong(t, env, 1, "mine", model.CategoryRetro, model.LanguageHindi, false)

		rec := httptest.NewRecorder()
		env.handler.DeleteSongHandler(rec, deleteRequest(songID, 1))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		if _, err := env.songs.GetSongByID(songID); err != repository.ErrSongNotFound {
			t.Fatalf("song should be gone, got err %v", err)
		}
		if _, ok := env.songs.categories[songID]; ok {
			t.Fatal("category row should cascade with the song")
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		env := newTestEnv()
		req := authedRequest(http.MethodDelete, "/api/songs/abc", nil, 1, "alice")
		req = mux.SetURLVars(req, map[string]string{"songId": "abc"})
		rec := httptest.NewRecorder()
		env.handler.DeleteSongHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})
}

// uploadForm builds a multipart body for UploadSongHandler.
func uploadForm(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("song", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("ID3 fake audio payload")); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadSongValidation(t *testing.T) {
	validFields := func() map[string]string {
		return map[string]string{
			"title":    "song",
			"artist":   "artist",
			"type":     "latest",
			"language": "English",
		}
	}

	cases := []struct {
		name     string
		filename string
		mutate   func(map[string]string)
	}{
		{"missing file", "", nil},
		{"wrong extension", "track.wav", nil},
		{"missing title", "track.mp3", func(f map[string]string) { f["title"] = "  " }},
		{"missing artist", "track.mp3", func(f map[string]string) { delete(f, "artist") }},
		{"invalid type", "track.mp3", func(f map[string]string) { f["type"] = "rock" }},
		{"injected type", "track.mp3", func(f map[string]string) { f["type"] = "latest; DROP TABLE songs" }},
		{"invalid language", "track.mp3", func(f map[string]string) { f["language"] = "French" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			fields := validFields()
			if tc.mutate != nil {
				tc.mutate(fields)
			}
			body, contentType := uploadForm(t, tc.filename, fields)

			req := authedRequest(http.MethodPost, "/api/songs", body, 1, "alice")
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			env.handler.UploadSongHandler(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body.String())
			}
			if len(env.songs.songs) != 0 {
				t.Fatal("rejected upload must not create a song")
			}
		})
	}
}

func TestUploadSongSuccess(t *testing.T) {
	env := newTestEnv()
	body, contentType := uploadForm(t, "track.mp3", map[string]string{
		"title":    "kaadu",
		"artist":   "raj",
		"type":     "retro",
		"language": "Kannada",
	})

	req := authedRequest(http.MethodPost, "/api/songs", body, 1, "alice")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.UploadSongHandler(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var resp struct {
		SongID int64 `json:"songId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SongID == 0 {
		t.Fatal("response carries no songId")
	}

	song, err := env.songs.GetSongByID(resp.SongID)
	if err != nil {
		t.Fatalf("song not persisted: %v", err)
	}
	if song.UserID != 1 || song.Title != "kaadu" || song.Artist != "raj" {
		t.Fatalf("persisted song = %+v", song)
	}
	if song.Type == nil || *song.Type != model.CategoryRetro {
		t.Fatalf("type = %v, want retro", song.Type)
	}
	if song.Language != model.LanguageKannada {
		t.Fatalf("language = %q, want Kannada", song.Language)
	}

	object := mediaObjectPath(song.FilePath)
	if _, ok := env.store.objects[object]; !ok {
		t.Fatalf("file path %q has no stored object", song.FilePath)
	}
	if env.store.contentTypes[object] != "audio/mpeg" {
		t.Fatalf("content type = %q, want audio/mpeg", env.store.contentTypes[object])
	}
}

// A failed insert must not strand the already-uploaded audio object.
func TestUploadSongRemovesBlobWhenInsertFails(t *testing.T) {
	env := newTestEnv()
	env.songs.createErr = errors.New("side table insert failed")

	body, contentType := uploadForm(t, "track.mp3", map[string]string{
		"title":    "kaadu",
		"artist":   "raj",
		"type":     "retro",
		"language": "Kannada",
	})
	req := authedRequest(http.MethodPost, "/api/songs", body, 1, "alice")
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.handler.UploadSongHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if len(env.songs.songs) != 0 {
		t.Fatal("failed upload must leave no song row")
	}
	if len(env.store.objects) != 0 {
		t.Fatalf("orphaned objects left behind: %v", env.store.objects)
	}
	if len(env.store.removed) != 1 {
		t.Fatalf("removed %d objects, want 1", len(env.store.removed))
	}
}

// Full catalog round trip: upload as one user, list, fail a foreign delete,
// then let the owner remove it.
func TestSongLifecycle(t *testing.T) {
	env := newTestEnv()

	songID := seedSong(t, env, 1, "kaadu", model.CategoryRetro, model.LanguageKannada, false)

	req := authedRequest(http.MethodGet, "/api/songs?type=retro", nil, 2, "bob")
	rec := httptest.NewRecorder()
	env.handler.GetSongsHandler(rec, req)
	songs := decodeSongs(t, rec)
	if len(songs) != 1 || songs[0].ID != songID {
		t.Fatalf("listing = %+v, want song %d", songs, songID)
	}
	if songs[0].Type == nil || *songs[0].Type != model.CategoryRetro {
		t.Fatalf("type = %v, want retro", songs[0].Type)
	}

	rec = httptest.NewRecorder()
	env.handler.DeleteSongHandler(rec, deleteRequest(songID, 2))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign delete status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	rec = httptest.NewRecorder()
	env.handler.DeleteSongHandler(rec, deleteRequest(songID, 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = authedRequest(http.MethodGet, "/api/songs", nil, 2, "bob")
	rec = httptest.NewRecorder()
	env.handler.GetSongsHandler(rec, req)
	if songs := decodeSongs(t, rec); len(songs) != 0 {
		t.Fatalf("listing after delete = %+v, want empty", songs)
	}
}
