// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/ScriptStudio/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 50 * time.Second
)

// SessionWebSocket streams the events of one session
func (h *Handler) SessionWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	view, err := h.Sessions.Get(sessionID)
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("websocket upgrade failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return
	}

	client := newWebSocketClient(conn, sessionID)
	h.Hub.Register(client)

	// 欢迎消息携带当前会话视图
	if welcome, err := json.Marshal(map[string]interface{}{
		"type":       "welcome",
		"session_id": sessionID,
		"session":    view,
		"timestamp":  time.Now(),
	}); err == nil {
		client.enqueue(welcome)
	}

	go h.handleWebSocketWrites(client)
	h.handleWebSocketReads(client)
}

// handleWebSocketReads 处理 WebSocket 读取；客户端只发送 ping
func (h *Handler) handleWebSocketReads(client *WebSocketClient) {
	defer h.Hub.Unregister(client)

	client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for !client.IsClosed() {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.GetLogger().Debug("websocket read error", map[string]interface{}{
					"session_id": client.sessionID,
					"error":      err.Error(),
				})
			}
			return
		}
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var message struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &message) == nil && message.Type == "ping" {
			if pong, err := json.Marshal(map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now(),
			}); err == nil {
				client.enqueue(pong)
			}
		}
	}
}

// handleWebSocketWrites 处理 WebSocket 写入和心跳
func (h *Handler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		client.Close()
	}()

	for {
		select {
		case message := <-client.send:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
