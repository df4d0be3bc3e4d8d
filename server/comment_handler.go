package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"swarabox/core/feed"
	"swarabox/logger"
	"swarabox/model"
	"swarabox/repository"

	"github.com/gorilla/mux"
)

// commentRequest is the body of POST /api/comments.
type commentRequest struct {
	SongID      int64  `json:"songId"`
	CommentText string `json:"commentText"`
}

// AddCommentHandler stores a comment and pushes it to feed subscribers.
func (h *APIHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}
	username, _ := GetUsernameFromContext(r.Context())

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, KindValidation, "Invalid request body")
		return
	}
	if req.SongID <= 0 {
		respondWithError(w, KindValidation, "songId is required")
		return
	}
	if strings.TrimSpace(req.CommentText) == "" {
		respondWithError(w, KindValidation, "Comment text is required")
		return
	}

	// Comments reference songs; reject comments on songs that don't exist
	// instead of surfacing an FK violation as a server fault.
	if _, err := h.songRepo.GetSongByID(req.SongID); err != nil {
		if errors.Is(err, repository.ErrSongNotFound) {
			respondWithError(w, KindNotFound, "Song not found")
			return
		}
		logger.Error("failed to fetch song for comment", logger.ErrorField(err), logger.Int64("songId", req.SongID))
		respondWithError(w, KindInternal, "Failed to add comment")
		return
	}

	comment := &model.Comment{
		SongID:      req.SongID,
		UserID:      userID,
		CommentText: strings.TrimSpace(req.CommentText),
		Username:    username,
	}
	if err := h.commentRepo.Create(r.Context(), comment); err != nil {
		logger.Error("failed to create comment",
			logger.ErrorField(err),
			logger.Int64("userId", userID),
			logger.Int64("songId", req.SongID))
		respondWithError(w, KindInternal, "Failed to add comment")
		return
	}

	if h.feedHub != nil {
		if data, err := json.Marshal(comment); err == nil {
			h.feedHub.BroadcastEvent(&feed.Event{
				Type:   "comment",
				SongID: comment.SongID,
				Data:   data,
			})
		}
	}

	respondWithJSON(w, http.StatusCreated, comment)
}

// GetCommentsHandler lists a song's comments, oldest first.
func (h *APIHandler) GetCommentsHandler(w http.ResponseWriter, r *http.Request) {
	songID, err := strconv.ParseInt(mux.Vars(r)["songId"], 10, 64)
	if err != nil {
		respondWithError(w, KindValidation, "Invalid song id")
		return
	}

	comments, err := h.commentRepo.GetBySongID(r.Context(), songID)
	if err != nil {
		logger.Error("failed to fetch comments", logger.ErrorField(err), logger.Int64("songId", songID))
		respondWithError(w, KindInternal, "Failed to fetch comments")
		return
	}

	respondWithJSON(w, http.StatusOK, comments)
}
