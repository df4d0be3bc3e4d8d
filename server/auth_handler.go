package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"swarabox/core/auth"
	"swarabox/logger"
	"swarabox/model"
	"swarabox/repository"
)

type contextKey string

const (
	ctxKeyUserID   contextKey = "userID"
	ctxKeyUsername contextKey = "username"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterHandler handles user registration requests.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, KindValidation, "Invalid request body")
		return
	}

	if len(strings.TrimSpace(req.Username)) < 3 {
		respondWithError(w, KindValidation, "Username must be at least 3 characters")
		return
	}
	if !strings.Contains(req.Email, "@") {
		respondWithError(w, KindValidation, "A valid email is required")
		return
	}
	if len(req.Password) < 6 {
		respondWithError(w, KindValidation, "Password must be at least 6 characters")
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] failed to hash password", logger.ErrorField(err))
		respondWithError(w, KindInternal, "Failed to process password")
		return
	}

	user := &model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        req.Email,
		PasswordHash: hashedPassword,
	}

	userID, err := h.userRepo.CreateUser(user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[Register] username or email already exists",
				logger.String("username", req.Username),
				logger.String("email", req.Email))
			respondWithError(w, KindConflict, "Username or email already exists")
			return
		}
		logger.Error("[Register] failed to create user", logger.ErrorField(err))
		respondWithError(w, KindInternal, "Failed to create user")
		return
	}

	logger.Info("[Register] user registered",
		logger.Int64("userId", userID),
		logger.String("username", user.Username))

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered",
		"userId":  userID,
	})
}

// LoginHandler handles user login requests.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, KindValidation, "Invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		respondWithError(w, KindValidation, "Email and password are required")
		return
	}

	user, err := h.userRepo.GetUserByEmail(req.Email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		logger.Error("[Login] failed to query user", logger.ErrorField(err))
		respondWithError(w, KindInternal, "Internal server error")
		return
	}
	if err != nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("[Login] invalid credentials", logger.String("email", req.Email))
		respondWithJSON(w, http.StatusUnauthorized, errorResponse{
			Error: "Invalid email or password",
			Kind:  "unauthorized",
		})
		return
	}

	token, err := auth.GenerateToken(h.cfg.JWTSecret, h.cfg.JWTTTL, user.ID, user.Username)
	if err != nil {
		logger.Error("[Login] failed to generate token", logger.ErrorField(err))
		respondWithError(w, KindInternal, "Internal server error")
		return
	}

	logger.Info("[Login] login successful", logger.String("username", user.Username))

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"token":   token,
		"userId":  user.ID,
	})
}

// AuthMiddleware checks for a valid bearer token and injects the identity
// into the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondWithJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "Authorization header is required",
				Kind:  "unauthorized",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondWithJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "Invalid authorization header format",
				Kind:  "unauthorized",
			})
			return
		}

		claims, err := auth.ParseToken(h.cfg.JWTSecret, parts[1])
		if err != nil {
			respondWithJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "Invalid token",
				Kind:  "unauthorized",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxKeyUsername, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext extracts the user ID from the request context.
func GetUserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(ctxKeyUserID).(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetUsernameFromContext extracts the username from the request context.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	username, ok := ctx.Value(ctxKeyUsername).(string)
	if !ok {
		return "", fmt.Errorf("username not found in context")
	}
	return username, nil
}
