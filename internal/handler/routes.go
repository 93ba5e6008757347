package handler

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupRouter wires the REST session boundary and the three per-role
// WebSocket upgrade endpoints onto a fresh gin.Engine, grounded on the
// teacher's bootstrap.SetupRouter CORS-then-routes shape.
func SetupRouter(sessions *SessionHandler, ws *WSHandler) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", sessions.Health)

	// ========== Session Module ==========
	apiV1 := router.Group("/api/v1")
	sessionRoutes := apiV1.Group("/sessions")
	{
		sessionRoutes.POST("", sessions.CreateSession)
		sessionRoutes.POST("/:joinCode/join", sessions.JoinByCode)
		sessionRoutes.GET("/:joinCode/bigscreen-token", sessions.BigScreenToken)
	}

	// ========== WebSocket ==========
	router.GET("/ws/participant", ws.HandleParticipant)
	router.GET("/ws/controller", ws.HandleController)
	router.GET("/ws/bigscreen", ws.HandleBigScreen)

	return router
}
