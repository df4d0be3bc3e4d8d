package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"swarabox/logger"
	"swarabox/repository"

	"github.com/gorilla/mux"
)

// likeRequest is the body of like/unlike requests.
type likeRequest struct {
	SongID int64 `json:"songId"`
}

// LikeSongHandler records a like. The unique (user, song) constraint settles
// duplicate races: the loser gets a conflict, exactly one row remains.
func (h *APIHandler) LikeSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SongID <= 0 {
		respondWithError(w, KindValidation, "songId is required")
		return
	}

	if err := h.likeRepo.Like(userID, req.SongID); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyLiked):
			respondWithError(w, KindConflict, "Already liked")
		case errors.Is(err, repository.ErrSongNotFound):
			respondWithError(w, KindNotFound, "Song not found")
		default:
			logger.Error("failed to like song",
				logger.ErrorField(err),
				logger.Int64("userId", userID),
				logger.Int64("songId", req.SongID))
			respondWithError(w, KindInternal, "Failed to like song")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Song liked"})
}

// UnlikeSongHandler removes a like; 404 when there was none.
func (h *APIHandler) UnlikeSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SongID <= 0 {
		respondWithError(w, KindValidation, "songId is required")
		return
	}

	if err := h.likeRepo.Unlike(userID, req.SongID); err != nil {
		if errors.Is(err, repository.ErrLikeNotFound) {
			respondWithError(w, KindNotFound, "Like not found")
			return
		}
		logger.Error("failed to unlike song",
			logger.ErrorField(err),
			logger.Int64("userId", userID),
			logger.Int64("songId", req.SongID))
		respondWithError(w, KindInternal, "Failed to unlike song")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Song unliked"})
}

// CheckLikeHandler reports whether the requester likes a song.
func (h *APIHandler) CheckLikeHandler(w http.ResponseWriter, r *http.Request) {
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

	liked, err := h.likeRepo.IsLiked(userID, songID)
	if err != nil {
		logger.Error("failed to check like status",
			logger.ErrorField(err),
			logger.Int64("userId", userID),
			logger.Int64("songId", songID))
		respondWithError(w, KindInternal, "Failed to check like status")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}
