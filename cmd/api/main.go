package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/openedx/forum/internal/config"
	"github.com/openedx/forum/internal/domain/content"
	"github.com/openedx/forum/internal/domain/moderation"
	"github.com/openedx/forum/internal/middleware"
	"github.com/openedx/forum/internal/pkg/classifier"
	"github.com/openedx/forum/internal/pkg/database"
	"github.com/openedx/forum/internal/pkg/jwt"
	"github.com/openedx/forum/internal/pkg/logger"
	"github.com/openedx/forum/internal/pkg/toggles"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Str("content_backend", cfg.ContentBackend).
		Msg("Starting Forum API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Content repository (backend-selectable) ----------
	var contentRepo content.Repository
	switch cfg.ContentBackend {
	case config.BackendMongo:
		mongoDB, err := database.NewMongo(cfg.MongoURL, cfg.MongoDB)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer database.CloseMongo(mongoDB)
		contentRepo = content.NewMongoRepository(mongoDB)
	case config.BackendPostgres:
		contentRepo = content.NewPostgresRepository(db)
	default:
		log.Fatal().Str("backend", cfg.ContentBackend).Msg("Unknown content backend")
	}

	// ---------- Moderation pipeline ----------
	// The audit ledger always lives in PostgreSQL, whichever backend
	// holds the content.
	classifierClient := classifier.NewClient(classifier.Config{
		APIURL:        cfg.AIModerationAPIURL,
		ClientID:      cfg.AIModerationClientID,
		SystemMessage: cfg.AIModerationSystemMessage,
		Timeout:       time.Duration(cfg.AIModerationTimeoutSeconds) * time.Second,
	})
	toggleStore := toggles.NewStore(redis)
	ledgerRepo := moderation.NewRepository(db)
	moderationService := moderation.NewService(ledgerRepo, classifierClient, contentRepo)

	// ---------- Content ----------
	contentService := content.NewService(contentRepo, moderationService, toggleStore)

	// ---------- Handlers ----------
	contentHandler := content.NewHandler(contentService)
	moderationHandler := moderation.NewHandler(moderationService)

	authMiddleware := middleware.Auth(jwtService)
	moderatorMiddleware := middleware.RequireRole(jwt.RoleModerator, jwt.RoleAdmin)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/threads", contentHandler.Routes(authMiddleware))
		r.Mount("/moderation", moderationHandler.Routes(authMiddleware, moderatorMiddleware))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
