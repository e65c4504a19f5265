package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/thereayou/bunker/internal/config"
	"github.com/thereayou/bunker/internal/database"
	"github.com/thereayou/bunker/internal/handlers"
	"github.com/thereayou/bunker/internal/pubsub"
	"github.com/thereayou/bunker/internal/services"
	"github.com/thereayou/bunker/internal/websocket"
	"github.com/thereayou/bunker/pkg/auth"
)

type Server struct {
	cfg        *config.Config
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Registry   *pubsub.Registry
	Hub        *websocket.Hub
	JWTManager *auth.JWTManager
}

func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect failed: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}

	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
	blacklist := auth.NewRedisBlacklist(rdb)

	registry := pubsub.NewRegistry()
	presence := services.NewPresenceService(db, registry)
	hub := websocket.NewHub(registry, presence)

	messages := services.NewMessageService(db, registry, presence, cfg.MessageMaxLength)
	rooms := services.NewRoomService(db, registry, messages)
	queries := services.NewQueryService(db)

	h := Handlers{
		Auth:      handlers.NewAuthHandler(db, jwtMgr, blacklist),
		Room:      handlers.NewRoomHandler(rooms, queries, hub),
		Message:   handlers.NewHTTPMessageHandler(messages, queries),
		User:      handlers.NewUserHandler(db, presence, rooms, hub),
		WebSocket: handlers.NewWebSocketHandler(ctx, hub, handlers.NewMessageHandler(rooms, messages, presence), cfg.CORSAllow),
	}

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if cfg.Mode == "debug" {
		router.Use(gin.Logger())
	}
	router.Use(gin.Recovery())
	APIEndpoints(router, h, jwtMgr, blacklist, db)

	return &Server{
		cfg:        cfg,
		Router:     router,
		DB:         db,
		Redis:      rdb,
		Registry:   registry,
		Hub:        hub,
		JWTManager: jwtMgr,
	}, nil
}

// Run обслуживает HTTP до отмены ctx, затем останавливается
func (s *Server) Run(ctx context.Context) error {
	go s.Hub.Run()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllow,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", handlers.ConnectionHeader},
		AllowCredentials: true,
	})

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           corsHandler.Handler(s.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.close()
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.close()
	if err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info().Msg("server exited gracefully")
	return nil
}

func (s *Server) close() {
	s.Hub.Stop()
	if err := s.Redis.Close(); err != nil {
		log.Warn().Err(err).Msg("redis close failed")
	}
	if err := s.DB.Close(); err != nil {
		log.Warn().Err(err).Msg("postgres close failed")
	}
}
