package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/bunker/internal/handlers"
	"github.com/thereayou/bunker/internal/metrics"
	"github.com/thereayou/bunker/internal/middleware"
	"github.com/thereayou/bunker/pkg/auth"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Room      *handlers.RoomHandler
	Message   *handlers.HTTPMessageHandler
	User      *handlers.UserHandler
	WebSocket *handlers.WebSocketHandler
}

type pinger interface {
	Ping(ctx context.Context) error
}

func APIEndpoints(r *gin.Engine, h Handlers, jwtMgr *auth.JWTManager, blacklist auth.Blacklist, db pinger) {
	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth endpoints
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/logout", middleware.AuthMiddleware(jwtMgr, blacklist), h.Auth.Logout)
	}

	r.GET("/ws", middleware.WSAuthMiddleware(jwtMgr, blacklist), h.WebSocket.HandleWebSocket)

	api := r.Group("/", middleware.AuthMiddleware(jwtMgr, blacklist))
	{
		api.GET("/init", h.User.Init)
		api.GET("/user/current", h.User.GetMe)
		api.PUT("/user/current/connect", h.User.Connect)
		api.PUT("/user/current/activity", h.User.UpdateActivity)

		api.POST("/room", h.Room.CreateRoom)
		api.GET("/room/:id", h.Room.GetRoom)
		api.GET("/room/:id/join", h.Room.JoinRoom)
		api.PUT("/room/:id/leave", h.Room.LeaveRoom)
		api.POST("/room/:id/message", h.Message.SendMessage)
		api.GET("/room/:id/messages", h.Message.GetRoomMessages)
		api.GET("/room/:id/history", h.Message.GetHistory)
		api.GET("/room/:id/media", h.Message.GetMedia)
	}
}
