package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swarabox/cache"
	"swarabox/config"
	"swarabox/core/feed"
	"swarabox/db"
	"swarabox/logger"
	"swarabox/repository"
	"swarabox/storage"

	"github.com/gorilla/mux"
)

// Start initializes dependencies and runs the HTTP server until interrupted.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	conn, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer conn.Close()

	if err := db.InitSchema(conn); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	gormDB, err := db.ConnectGorm(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database with GORM", logger.ErrorField(err))
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	store, err := storage.NewMinioStore(cfg)
	if err != nil {
		logger.Fatal("failed to initialize MinIO store", logger.ErrorField(err))
	}

	songRepo := repository.NewMySQLSongRepository(conn)
	userRepo := repository.NewMySQLUserRepository(conn)
	likeRepo := repository.NewMySQLLikeRepository(conn)
	commentRepo := repository.NewGormCommentRepository(gormDB)
	catalog := cache.NewCatalogCache(redisClient)

	feedHub := feed.NewHub()
	go feedHub.Run()
	defer feedHub.Stop()

	apiHandler := NewAPIHandler(songRepo, userRepo, likeRepo, commentRepo, store, catalog, feedHub, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Auth endpoints
	router.HandleFunc("/api/register", apiHandler.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/login", apiHandler.LoginHandler).Methods(http.MethodPost)

	// Song catalog endpoints
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.UploadSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/songs", apiHandler.AuthMiddleware(apiHandler.GetSongsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/{songId}", apiHandler.AuthMiddleware(apiHandler.DeleteSongHandler)).Methods(http.MethodDelete)

	// Like endpoints
	router.HandleFunc("/api/likes", apiHandler.AuthMiddleware(apiHandler.LikeSongHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/likes", apiHandler.AuthMiddleware(apiHandler.UnlikeSongHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/likes/{songId}", apiHandler.AuthMiddleware(apiHandler.CheckLikeHandler)).Methods(http.MethodGet)

	// Comment endpoints
	router.HandleFunc("/api/comments", apiHandler.AuthMiddleware(apiHandler.AddCommentHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/comments/{songId}", apiHandler.AuthMiddleware(apiHandler.GetCommentsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/ws/comments/{songId}", apiHandler.CommentFeedHandler).Methods(http.MethodGet)

	// Image upload and blob-backed media serving
	router.HandleFunc("/api/upload-image", apiHandler.AuthMiddleware(apiHandler.UploadImageHandler)).Methods(http.MethodPost)
	router.PathPrefix("/media/").HandlerFunc(apiHandler.MediaHandler).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// corsMiddleware mirrors the front end's cross-origin needs.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
