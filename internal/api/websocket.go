// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketConnection 定义 WebSocket 连接的接口
type WebSocketConnection interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// WebSocketClient 表示一个订阅会话事件的连接
type WebSocketClient struct {
	conn      WebSocketConnection
	sessionID string
	send      chan []byte
	closed    int32 // 0=开启，1=关闭
	mu        sync.Mutex
	lastPing  time.Time
	createdAt time.Time
}

func newWebSocketClient(conn WebSocketConnection, sessionID string) *WebSocketClient {
	now := time.Now()
	return &WebSocketClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, 64),
		lastPing:  now,
		createdAt: now,
	}
}

// Close 安全关闭客户端连接
func (client *WebSocketClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// IsClosed 检查连接是否已关闭
func (client *WebSocketClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

// UpdatePing 更新最后ping时间
func (client *WebSocketClient) UpdatePing() {
	client.mu.Lock()
	client.lastPing = time.Now()
	client.mu.Unlock()
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	return time.Since(client.lastPing) > timeout
}

// enqueue drops the message when the client is too slow
func (client *WebSocketClient) enqueue(msg []byte) bool {
	if client.IsClosed() {
		return false
	}
	select {
	case client.send <- msg:
		return true
	default:
		return false
	}
}

type sessionMessage struct {
	sessionID string
	payload   []byte
}

// WebSocketManager fans session events out to the subscribed connections.
// It implements services.EventSink.
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // sessionID -> clients
	mutex       sync.RWMutex

	broadcast  chan sessionMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
	closeOnce  sync.Once

	pingTimeout time.Duration
}

// NewWebSocketManager creates a manager and starts its loop
func NewWebSocketManager() *WebSocketManager {
	manager := &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		broadcast:   make(chan sessionMessage, 256),
		register:    make(chan *WebSocketClient, 64),
		unregister:  make(chan *WebSocketClient, 64),
		done:        make(chan struct{}),
		pingTimeout: 90 * time.Second,
	}
	go manager.run()
	return manager
}

// run 运行 WebSocket 管理器主循环
func (manager *WebSocketManager) run() {
	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)

		case client := <-manager.unregister:
			manager.unregisterClient(client)

		case <-cleanupTicker.C:
			manager.cleanupExpiredConnections()

		case msg := <-manager.broadcast:
			manager.deliver(msg)

		case <-manager.done:
			manager.shutdown()
			return
		}
	}
}

// Publish queues a session event for delivery. It never blocks the caller.
func (manager *WebSocketManager) Publish(event models.SessionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		utils.GetLogger().Warn("failed to encode session event", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}

	select {
	case manager.broadcast <- sessionMessage{sessionID: event.SessionID, payload: payload}:
	case <-manager.done:
	default:
		utils.GetLogger().Warn("event queue full, dropping session event", map[string]interface{}{
			"session_id": event.SessionID,
			"type":       event.Type,
		})
	}
}

// Register subscribes a client
func (manager *WebSocketManager) Register(client *WebSocketClient) {
	select {
	case manager.register <- client:
	case <-manager.done:
		client.Close()
	}
}

// Unregister removes a client
func (manager *WebSocketManager) Unregister(client *WebSocketClient) {
	select {
	case manager.unregister <- client:
	case <-manager.done:
	case <-time.After(time.Second):
		utils.GetLogger().Warn("websocket unregister timed out", map[string]interface{}{
			"session_id": client.sessionID,
		})
	}
}

// Close disconnects every client and stops the loop
func (manager *WebSocketManager) Close() {
	manager.closeOnce.Do(func() { close(manager.done) })
}

// registerClient 注册新客户端
func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.sessionID] == nil {
		manager.connections[client.sessionID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.sessionID][client] = struct{}{}
	client.UpdatePing()

	utils.GetLogger().Debug("websocket client connected", map[string]interface{}{
		"session_id": client.sessionID,
	})
}

// unregisterClient 安全注销客户端
func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	if client == nil {
		return
	}

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if clients, exists := manager.connections[client.sessionID]; exists {
		delete(clients, client)
		if len(clients) == 0 {
			delete(manager.connections, client.sessionID)
		}
	}
	client.Close()

	utils.GetLogger().Debug("websocket client disconnected", map[string]interface{}{
		"session_id": client.sessionID,
	})
}

// cleanupExpiredConnections 清理过期和死连接
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for sessionID, clients := range manager.connections {
		for client := range clients {
			if client.IsClosed() || client.IsExpired(manager.pingTimeout) {
				delete(clients, client)
				client.Close()
			}
		}
		if len(clients) == 0 {
			delete(manager.connections, sessionID)
		}
	}
}

// deliver sends one message to the session's subscribers
func (manager *WebSocketManager) deliver(msg sessionMessage) {
	manager.mutex.RLock()
	clients := make([]*WebSocketClient, 0, len(manager.connections[msg.sessionID]))
	for client := range manager.connections[msg.sessionID] {
		clients = append(clients, client)
	}
	manager.mutex.RUnlock()

	for _, client := range clients {
		if !client.enqueue(msg.payload) && !client.IsClosed() {
			// 队列满，断开慢客户端
			client.Close()
		}
	}
}

// shutdown 优雅关闭管理器
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, clients := range manager.connections {
		for client := range clients {
			client.Close()
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
	utils.GetLogger().Info("websocket manager stopped", nil)
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sessions := make(map[string]int, len(manager.connections))
	total := 0
	for sessionID, clients := range manager.connections {
		active := 0
		for client := range clients {
			if !client.IsClosed() {
				active++
			}
		}
		sessions[sessionID] = active
		total += active
	}

	return map[string]interface{}{
		"total_sessions":    len(manager.connections),
		"total_connections": total,
		"sessions":          sessions,
	}
}
