package server

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"swarabox/logger"

	"github.com/google/uuid"
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// UploadImageHandler stores a cover image and returns its served URL.
func (h *APIHandler) UploadImageHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := GetUserIDFromContext(r.Context()); err != nil {
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized", Kind: "unauthorized"})
		return
	}

	if err := r.ParseMultipartForm(h.cfg.MaxImageSize + (1 << 20)); err != nil {
		respondWithError(w, KindValidation, "Failed to parse upload form")
		return
	}

	imageFile, imageHeader, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, KindValidation, "No image file uploaded")
		return
	}
	defer imageFile.Close()

	if imageHeader.Size > h.cfg.MaxImageSize {
		respondWithError(w, KindValidation, "Image file too large")
		return
	}
	ext := strings.ToLower(filepath.Ext(imageHeader.Filename))
	if !allowedImageExts[ext] {
		respondWithError(w, KindValidation, "Only JPG, JPEG, and PNG images are allowed")
		return
	}

	contentType := "image/jpeg"
	if ext == ".png" {
		contentType = "image/png"
	}

	objectPath := "images/" + uuid.NewString() + ext

	uploadCtx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if err := h.store.Upload(uploadCtx, objectPath, imageFile, imageHeader.Size, contentType); err != nil {
		logger.Error("failed to upload image", logger.ErrorField(err))
		respondWithError(w, KindInternal, "Failed to store image")
		return
	}

	logger.Info("image uploaded", logger.String("object", objectPath))
	respondWithJSON(w, http.StatusOK, map[string]string{
		"message":  "Image uploaded successfully",
		"imageUrl": "/media/" + objectPath,
	})
}

// MediaHandler streams stored objects (songs, covers, images) from the blob
// store under the /media/ prefix.
func (h *APIHandler) MediaHandler(w http.ResponseWriter, r *http.Request) {
	objectPath := strings.TrimPrefix(r.URL.Path, "/media/")
	if objectPath == "" || strings.Contains(objectPath, "..") {
		respondWithError(w, KindValidation, "Invalid media path")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	object, err := h.store.Get(ctx, objectPath)
	if err != nil {
		respondWithError(w, KindNotFound, "File not found")
		return
	}
	defer object.Close()

	// Stat before streaming so a missing object becomes a 404, not a broken
	// 200 body.
	if _, err := object.Stat(); err != nil {
		respondWithError(w, KindNotFound, "File not found")
		return
	}

	var contentType string
	switch strings.ToLower(filepath.Ext(objectPath)) {
	case ".mp3":
		contentType = "audio/mpeg"
	case ".jpg", ".jpeg":
		contentType = "image/jpeg"
	case ".png":
		contentType = "image/png"
	default:
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if _, err := io.Copy(w, object); err != nil {
		logger.Warn("error serving media object",
			logger.ErrorField(err),
			logger.String("object", objectPath))
	}
}
