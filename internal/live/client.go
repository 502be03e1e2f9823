package live

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Client is one staff dashboard connection. Dashboards only receive;
// inbound frames are ignored except for keepalive.
type Client struct {
	id   string
	slug string
	role string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// ServeWs handles GET /ws/check-ins?conference=<slug>&token=<jwt>. Browsers
// cannot set headers on WebSocket upgrades, so the token rides the query.
func ServeWs(hub *Hub, validate func(token string) (userID, role string, err error), logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.Query("conference")
		token := c.Query("token")
		if slug == "" || token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conference and token required"})
			return
		}
		_, role, err := validate(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:   uuid.New().String(),
			slug: slug,
			role: role,
			hub:  hub,
			conn: conn,
			send: make(chan Message, 256),
		}
		hub.register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait * time.Second))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
