package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audio-vault/config"
	"audio-vault/constant"
	recordingHandler "audio-vault/handler"
	"audio-vault/pkg/rabbitmq"
	"audio-vault/pkg/storage"
	"audio-vault/repository"
	"audio-vault/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().
		Str("env", cfg.App.Environment).
		Str("storage_backend", cfg.Storage.Backend).
		Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).
		Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	var blobs storage.BlobStore
	var local *storage.LocalStore
	if cfg.Storage.Backend == constant.BackendLocal.String() {
		baseURL := fmt.Sprintf("%s://%s", cfg.App.Protocol, cfg.App.Host)
		local = storage.NewLocalStore(cfg.Storage.LocalDirectory, cfg.Storage.LocalSignSecret, baseURL)
		blobs = local
	} else {
		blobs = storage.NewMinioStore(cfg.Minio, cfg.Storage.Bucket)
	}

	// No operation can succeed without the namespace, so a failed check or
	// create aborts startup.
	if err := blobs.EnsureBucket(ctx); err != nil {
		zerolog.Ctx(ctx).Fatal().Err(err).Msg("failed to initialize storage namespace")
	}

	var events service.EventPublisher
	if cfg.Queue.Enabled {
		conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn, storage events will be log-only")
		} else {
			events = rabbitmq.NewPublisher(conn, cfg.Queue)
		}
	}

	repo := repository.NewRepo(cfg.DB)
	recordingService := service.NewRecordingService(repo, blobs, events)
	urlIssuer := service.NewURLIssuer(blobs, cfg.Storage.PresignExpiryHours)

	h := recordingHandler.New(recordingService, urlIssuer, local)

	r := gin.Default()
	r.Use(requestLogger(ctx))
	addHealth(r)
	addRoutes(r, h, local != nil)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addRoutes(r *gin.Engine, h *recordingHandler.Handler, localBackend bool) {
	api := r.Group("/api/recordings")
	api.POST("/upload", h.Upload)
	api.POST("", h.Create)
	api.GET("", h.List)
	api.GET("/search", h.Search)
	api.GET("/:id", h.GetById)
	api.GET("/:id/download", h.Download)
	api.GET("/:id/presigned-url", h.PresignedURL)
	api.DELETE("/:id", h.Delete)

	if localBackend {
		r.GET("/files/:key", h.ServeSignedFile)
	}
}

// requestLogger seeds each request context with the process logger so
// handlers and services can log via zerolog.Ctx.
func requestLogger(ctx context.Context) gin.HandlerFunc {
	logger := zerolog.Ctx(ctx)
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))
		c.Next()
	}
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
