package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"swarabox/cache"
	"swarabox/config"
	"swarabox/core/feed"
	"swarabox/logger"
	"swarabox/model"
	"swarabox/repository"
	"swarabox/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// BlobStore is the object-storage surface the handlers use. *storage.Store
// implements it.
type BlobStore interface {
	Upload(ctx context.Context, objectPath string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectPath string) error
	Get(ctx context.Context, objectPath string) (storage.Object, error)
}

// APIHandler holds the dependencies shared by all HTTP handlers.
type APIHandler struct {
	songRepo    repository.SongRepository
	userRepo    repository.UserRepository
	likeRepo    repository.LikeRepository
	commentRepo repository.CommentRepository
	store       BlobStore
	catalog     *cache.CatalogCache
	feedHub     *feed.Hub
	cfg         *config.Config
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(
	songRepo repository.SongRepository,
	userRepo repository.UserRepository,
	likeRepo repository.LikeRepository,
	commentRepo repository.CommentRepository,
	store BlobStore,
	catalog *cache.CatalogCache,
	feedHub *feed.Hub,
	cfg *config.Config,
) *APIHandler {
	return &APIHandler{
		songRepo:    songRepo,
		userRepo:    userRepo,
		likeRepo:    likeRepo,
		commentRepo: commentRepo,
		store:       store,
		catalog:     catalog,
		feedHub:     feedHub,
		cfg:         cfg,
	}
}

// mediaObjectPath maps a served file path back to its bucket object.
func mediaObjectPath(servePath string) string {
	return strings.TrimPrefix(servePath, "/media/")
}

// UploadSongHandler handles audio uploads: the file goes to the blob store
// first, then the song row and its category row are committed in one
// transaction. Validation happens before any side effect.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}

	// Leave headroom beyond the file limit for the metadata fields.
	if err := r.ParseMultipartForm(h.cfg.MaxSongSize + (1 << 20)); err != nil {
		logger.Warn("failed to parse upload form", logger.ErrorField(err))
		respondWithError(w, KindValidation, "Failed to parse upload form")
		return
	}

	songFile, songHeader, err := r.FormFile("song")
	if err != nil {
		respondWithError(w, KindValidation, "Missing song file")
		return
	}
	defer songFile.Close()

	if songHeader.Size > h.cfg.MaxSongSize {
		respondWithError(w, KindValidation, "Song file too large")
		return
	}
	if !strings.EqualFold(filepath.Ext(songHeader.Filename), ".mp3") {
		respondWithError(w, KindValidation, "Only MP3 files are allowed")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	artist := strings.TrimSpace(r.FormValue("artist"))
	if title == "" || artist == "" {
		respondWithError(w, KindValidation, "Title and artist are required")
		return
	}

	category, err := model.ParseCategory(r.FormValue("type"))
	if err != nil {
		respondWithError(w, KindValidation, err.Error())
		return
	}
	language, err := model.ParseLanguage(r.FormValue("language"))
	if err != nil {
		respondWithError(w, KindValidation, err.Error())
		return
	}
	isPodcast := r.FormValue("isPodcast") == "true"

	objectPath := "songs/" + uuid.NewString() + ".mp3"

	uploadCtx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	if err := h.store.Upload(uploadCtx, objectPath, songFile, songHeader.Size, "audio/mpeg"); err != nil {
		logger.Error("failed to upload song to blob store",
			logger.ErrorField(err),
			logger.Int64("userId", userID))
		respondWithError(w, KindInternal, "Failed to store song file")
		return
	}

	song := &model.Song{
		UserID:    userID,
		Title:     title,
		Artist:    artist,
		FilePath:  "/media/" + objectPath,
		CoverPath: strings.TrimSpace(r.FormValue("coverPath")),
		IsPodcast: isPodcast,
		Language:  language,
	}

	songID, err := h.songRepo.CreateSong(song, category)
	if err != nil {
		logger.Error("failed to create song, rolling back blob",
			logger.ErrorField(err),
			logger.Int64("userId", userID),
			logger.String("object", objectPath))
		// The transaction left no rows behind; drop the orphaned object too.
		if rmErr := h.store.Remove(context.Background(), objectPath); rmErr != nil {
			logger.Warn("failed to remove orphaned object", logger.ErrorField(rmErr))
		}
		respondWithError(w, KindInternal, "Failed to upload song")
		return
	}

	h.invalidateCatalog(r.Context())

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Song uploaded",
		"songId":  songID,
	})
}

// GetSongsHandler lists the shared catalog with per-user liked annotation.
// The requester only affects the liked flag; all songs are visible to every
// authenticated user.
func (h *APIHandler) GetSongsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}

	var filter repository.SongFilter
	if v := r.URL.Query().Get("type"); v != "" {
		category, err := model.ParseCategory(v)
		if err != nil {
			respondWithError(w, KindValidation, err.Error())
			return
		}
		filter.Type = &category
	}
	if v := r.URL.Query().Get("language"); v != "" {
		language, err := model.ParseLanguage(v)
		if err != nil {
			respondWithError(w, KindValidation, err.Error())
			return
		}
		filter.Language = &language
	}
	if v := r.URL.Query().Get("isPodcast"); v != "" {
		isPodcast, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, KindValidation, "isPodcast must be a boolean")
			return
		}
		filter.IsPodcast = &isPodcast
	}

	songs, err := h.loadCatalog(r.Context(), filter)
	if err != nil {
		logger.Error("failed to list songs", logger.ErrorField(err))
		respondWithError(w, KindInternal, "Failed to fetch songs")
		return
	}

	// Liked is overlaid per requester; cached rows never carry it.
	liked, err := h.likeRepo.LikedSongIDs(userID)
	if err != nil {
		logger.Error("failed to load likes", logger.ErrorField(err), logger.Int64("userId", userID))
		respondWithError(w, KindInternal, "Failed to fetch songs")
		return
	}
	for _, song := range songs {
		song.Liked = liked[song.ID]
	}

	respondWithJSON(w, http.StatusOK, songs)
}

// loadCatalog reads a listing through the cache; cache trouble degrades to a
// direct store read.
func (h *APIHandler) loadCatalog(ctx context.Context, filter repository.SongFilter) ([]*model.Song, error) {
	if h.catalog != nil {
		cached, err := h.catalog.Get(ctx, filter)
		if err != nil {
			logger.Warn("catalog cache read failed", logger.ErrorField(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	songs, err := h.songRepo.ListSongs(filter)
	if err != nil {
		return nil, err
	}

	if h.catalog != nil {
		if err := h.catalog.Set(ctx, filter, songs); err != nil {
			logger.Warn("catalog cache write failed", logger.ErrorField(err))
		}
	}
	return songs, nil
}

func (h *APIHandler) invalidateCatalog(ctx context.Context) {
	if h.catalog == nil {
		return
	}
	if err := h.catalog.Invalidate(ctx); err != nil {
		logger.Warn("catalog cache invalidation failed", logger.ErrorField(err))
	}
}

// DeleteSongHandler deletes a song the requester owns. Absent song: 404.
// Someone else's song: 403, nothing touched. The category row, likes and
// comments cascade in the store; media objects are removed after the commit.
func (h *APIHandler) DeleteSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}

	songID, err := strconv.ParseInt(mux.Vars(r)["songId"], 10, 64)
	if err != nil {
		respondWithError(w, KindValidation, "Invalid song id")
		return
	}

	song, err := h.songRepo.GetSongByID(songID)
	if err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			respondWithError(w, KindNotFound, "Song not found")
			return
		}
		logger.Error("failed to fetch song for delete", logger.ErrorField(err), logger.Int64("songId", songID))
		respondWithError(w, KindInternal, "Failed to delete song")
		return
	}
	if song.UserID != userID {
		logger.Warn("delete forbidden",
			logger.Int64("songId", songID),
			logger.Int64("owner", song.UserID),
			logger.Int64("requester", userID))
		respondWithError(w, KindForbidden, "Not authorized to delete this song")
		return
	}

	if err := h.songRepo.DeleteSong(songID); err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			// Lost a delete race; the other request already removed it.
			respondWithError(w, KindNotFound, "Song not found")
			return
		}
		logger.Error("failed to delete song", logger.ErrorField(err), logger.Int64("songId", songID))
		respondWithError(w, KindInternal, "Failed to delete song")
		return
	}

	// Media cleanup is best effort once the row is gone.
	removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if song.FilePath != "" {
		if err := h.store.Remove(removeCtx, mediaObjectPath(song.FilePath)); err != nil {
			logger.Warn("failed to remove song object", logger.ErrorField(err), logger.Int64("songId", songID))
		}
	}
	if song.CoverPath != "" {
		if err := h.store.Remove(removeCtx, mediaObjectPath(song.CoverPath)); err != nil {
			logger.Warn("failed to remove cover object", logger.ErrorField(err), logger.Int64("songId", songID))
		}
	}

	h.invalidateCatalog(r.Context())

	logger.Info("song deleted", logger.Int64("songId", songID), logger.Int64("userId", userID))
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Song deleted"})
}
