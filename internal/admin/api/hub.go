package api

import (
	"context"
	"net/http"
	"sync"

	"addongate/internal/pkg"
	"addongate/internal/sink"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 每个客户端的发送缓冲，满时丢弃
const clientSendSize = 64

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 把解码结果实时推送给 websocket 客户端，同时作为 pipeline 的一个输出端
type Hub struct {
	ctx      context.Context
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewHub(ctx context.Context) *Hub {
	return &Hub{
		ctx:    ctx,
		logger: pkg.LoggerFromContext(ctx).With(zap.String("sink_type", "websocket")),
		upgrader: websocket.Upgrader{
			// 来源由 CORS 配置约束
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

var _ sink.Template = (*Hub)(nil)

func (h *Hub) GetType() string {
	return "websocket"
}

// Start 实现 sink.Template，通道关闭后断开所有客户端
func (h *Hub) Start(points chan pkg.Point) {
	h.logger.Info("===WebsocketHub started===")
	defer h.closeAll()
	for {
		select {
		case <-h.ctx.Done():
			return
		case point, ok := <-points:
			if !ok {
				return
			}
			data, err := sink.MarshalPoint(point)
			if err != nil {
				h.logger.Error("marshal point failed", zap.Error(err))
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			pkg.GetPerformanceMetrics().IncMsgErrors("websocket_sink")
		}
	}
}

// Clients 当前连接数
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.logger.Info("===WebsocketHub stopped===")
}

// remove 客户端可能已被 closeAll 移除
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS GET /ws
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &wsClient{conn: conn, send: make(chan []byte, clientSendSize)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", zap.Int("clients", n))

	// 写
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// 读，只用于感知断开
	go func() {
		defer h.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
