package handler

import (
	"net/http"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/livehub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the client surface: the realtime socket and the activity log.
type Handler struct {
	Dispatcher livehub.Dispatcher
	Activity   *analytics.Aggregator
	JWTSecret  []byte
	Log        *zap.Logger
}

func NewHandler(d livehub.Dispatcher, activity *analytics.Aggregator, jwtSecret string, log *zap.Logger) *Handler {
	h := &Handler{Dispatcher: d, Activity: activity, Log: log.Named("handler")}
	if jwtSecret != "" {
		h.JWTSecret = []byte(jwtSecret)
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.Health)
	r.GET("/ws/livestream", h.ServeWebSocket)
	r.GET("/api/livestreams/:roomId/activities", h.ListActivities)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
