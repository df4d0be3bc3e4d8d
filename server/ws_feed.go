package server

import (
	"net/http"
	"strconv"

	"swarabox/core/auth"
	"swarabox/core/feed"
	"swarabox/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API already allows any origin through the CORS middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CommentFeedHandler subscribes a websocket client to a song's live comment
// feed. Browsers can't set headers on websocket dials, so the token rides in
// the query string.
func (h *APIHandler) CommentFeedHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Token is required", Kind: "unauthorized"})
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid token", Kind: "unauthorized"})
		return
	}

	songID, err := strconv.ParseInt(mux.Vars(r)["songId"], 10, 64)
	if err != nil {
		respondWithError(w, KindValidation, "Invalid song id")
		return
	}

	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &feed.Client{
		Hub:    h.feedHub,
		Conn:   conn,
		Send:   make(chan []byte, 64),
		SongID: songID,
		UserID: claims.UserID,
	}
	h.feedHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
