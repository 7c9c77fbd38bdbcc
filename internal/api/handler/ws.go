package handler

import (
	"net/http"
	"strconv"

	"livesignal/backend/internal/livehub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// storefront and clinic dashboards are served from other origins
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and hands the connection to the orchestrator.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	userID, clinicID, err := h.identity(c)
	if err != nil {
		h.Log.Info("rejected websocket connection", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.Log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := livehub.NewWebSocketClient(conn, userID, clinicID, h.Dispatcher, h.Log)
	h.Log.Debug("client connected", zap.String("conn_id", client.ID()), zap.String("user_id", userID))
	client.Run()
}

// ListActivities returns one page of a room's activity log.
func (h *Handler) ListActivities(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be an integer"})
		return
	}
	size, err := queryInt(c, "size", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "size must be an integer"})
		return
	}

	result, err := h.Activity.Page(c.Param("roomId"), page, size)
	if err != nil {
		h.Log.Error("failed to list activities", zap.String("room_guid", c.Param("roomId")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load activities"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
