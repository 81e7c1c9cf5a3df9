package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/media-gallery/backend/config"
	"github.com/media-gallery/backend/handlers"
	"github.com/media-gallery/backend/middleware"
	"github.com/media-gallery/backend/service"
	"github.com/media-gallery/backend/store"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	config.ValidateEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("logger:", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	db, err := store.NewMongoDB(ctx, cfg.MongoURI, cfg.DBName)
	if err != nil {
		logger.Fatal("mongodb", zap.Error(err))
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			logger.Warn("mongodb disconnect", zap.Error(err))
		}
	}()
	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatal("mongodb indexes", zap.Error(err))
	}
	logger.Info("connected to MongoDB", zap.String("db", cfg.DBName))

	s3Service, err := service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	mailer := service.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)

	authHandler := &handlers.AuthHandler{
		Users:     db,
		Mail:      mailer,
		Log:       logger,
		JWTSecret: cfg.JWTSecret,
		ClientURL: cfg.ClientURL,
	}
	googleHandler := &handlers.GoogleHandler{
		Users:        db,
		Log:          logger,
		JWTSecret:    cfg.JWTSecret,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.BaseURL + "/auth/google/callback",
		ClientURL:    cfg.ClientURL,
	}
	mediaHandler := &handlers.MediaHandler{
		Media:    db,
		Storage:  s3Service,
		Log:      logger,
		MaxBytes: cfg.MaxUploadMB * 1024 * 1024,
	}
	requireAuth := middleware.Auth(cfg.JWTSecret, db)

	r := chi.NewRouter()
	r.Use(middleware.AllowAll())
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/resend-otp", authHandler.ResendOTP)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Get("/google", googleHandler.Login)
		r.Get("/google/callback", googleHandler.Callback)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/profile", authHandler.Profile)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Get("/users", authHandler.ListUsers)
				r.Post("/create-admin", authHandler.CreateAdmin)
				r.Patch("/users/{userId}/role", authHandler.UpdateUserRole)
			})
		})
	})

	r.Route("/media", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", mediaHandler.Upload)
		r.Get("/my", mediaHandler.ListMine)
		r.Get("/shared", mediaHandler.ListShared)
		r.Put("/{id}", mediaHandler.Update)
		r.Delete("/{id}", mediaHandler.Delete)
		r.Post("/download-zip", mediaHandler.DownloadZip)
	})

	server := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
