package livehub

import (
	"encoding/json"
	"sync"
	"time"

	"livesignal/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10 // SDP offers are a few KB
	sendBuffer     = 64
)

// WebSocketClient implements Client over a gorilla connection.
type WebSocketClient struct {
	id       string
	userID   string
	clinicID string

	conn       *websocket.Conn
	send       chan models.Event
	done       chan struct{}
	closeOnce  sync.Once
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewWebSocketClient(conn *websocket.Conn, userID, clinicID string, d Dispatcher, log *zap.Logger) *WebSocketClient {
	id := uuid.NewString()
	return &WebSocketClient{
		id:         id,
		userID:     userID,
		clinicID:   clinicID,
		conn:       conn,
		send:       make(chan models.Event, sendBuffer),
		done:       make(chan struct{}),
		dispatcher: d,
		log:        log.With(zap.String("conn_id", id), zap.String("user_id", userID)),
	}
}

func (c *WebSocketClient) ID() string       { return c.id }
func (c *WebSocketClient) UserID() string   { return c.userID }
func (c *WebSocketClient) ClinicID() string { return c.clinicID }

func (c *WebSocketClient) Send(ev models.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which sends a close frame and closes the socket.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// readPump dispatches frames one at a time so a connection's operations run in order.
func (c *WebSocketClient) readPump() {
	// the write pump owns closing the socket so queued events still go out
	defer func() {
		c.dispatcher.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Info("connection closed unexpectedly", zap.Error(err))
			}
			return
		}

		var req models.ClientRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.log.Warn("undecodable client frame", zap.Error(err))
			continue
		}
		c.dispatcher.Dispatch(c, req)

		select {
		case <-c.done:
			return
		default:
		}
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}

		case <-c.done:
			// flush what was queued before the close, e.g. an error event
			for {
				select {
				case ev := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(ev); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
