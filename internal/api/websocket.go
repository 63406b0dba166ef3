// Package api WebSocket 文档事件推送
//
// 客户端订阅某个集合后，服务端把事件总线上的新事件实时推送过去。
// 消息格式：
//
//	{"type": "event", "data": {...DocumentEvent}}
//	{"type": "pong"}
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"agents-workflow/internal/shared/eventbus"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 10 * time.Second
	wsReadLimit    = 512
)

// upgrader WebSocket 升级器配置
//
// CheckOrigin 允许所有来源，与 CORS 中间件保持一致。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsMessage 推送给客户端的消息
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// StreamDocumentEvents 订阅集合的文档事件
//
// 路由: GET /ws/events/{collection}
//
// 查询参数:
//   - from: 起始事件 ID（不包含）；提供时先补发历史事件，再推送实时事件
func (h *Handler) StreamDocumentEvents(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if !knownCollection(collection) {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events, err := h.events.SubscribeDocumentEvents(ctx, collection)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		h.log.WithContext(ctx).WithError(err).Warn("websocket upgrade failed", "collection", collection)
		return
	}
	defer conn.Close()

	log := h.log.WithContext(ctx)
	log.Info("websocket client subscribed", "collection", collection, "client_ip", clientIP(r))

	if from := r.URL.Query().Get("from"); from != "" {
		backlog, err := h.events.GetDocumentEvents(ctx, collection, from, maxListLimit)
		if err != nil {
			log.WithError(err).Warn("replay document events failed", "collection", collection, "from", from)
		}
		for _, event := range backlog {
			if err := writeWS(conn, wsMessage{Type: "event", Data: event}); err != nil {
				return
			}
		}
	}

	pongs := make(chan struct{}, 1)
	go h.readPump(conn, cancel, pongs)
	h.writePump(ctx, conn, events, pongs)
}

// readPump 读取客户端消息，维持心跳
//
// 连接断开时取消订阅上下文。
func (h *Handler) readPump(conn *websocket.Conn, cancel context.CancelFunc, pongs chan<- struct{}) {
	defer cancel()

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("websocket read failed")
			}
			return
		}

		var msg wsMessage
		if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
			select {
			case pongs <- struct{}{}:
			default:
			}
		}
	}
}

// writePump 唯一的写端：推送事件、回复 ping、定时发送心跳
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, events <-chan *eventbus.DocumentEvent, pongs <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-pongs:
			if err := writeWS(conn, wsMessage{Type: "pong"}); err != nil {
				return
			}

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeWS(conn, wsMessage{Type: "event", Data: event}); err != nil {
				h.log.WithError(err).Warn("websocket write failed", "event_id", event.ID)
				return
			}
		}
	}
}

func writeWS(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
