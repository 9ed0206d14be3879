package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prenatal-care/appointment-booking/backend/internal/domain"
)

// TopicAll 订阅所有预约变更
const TopicAll = "appointments"

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

func DoctorTopic(doctorID int64) string {
	return fmt.Sprintf("doctors/%d", doctorID)
}

type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

func NewClient(topics ...string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		Topics: topics,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Hub 管理当前实例上的所有 websocket 连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> clients
	all     map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister 移除客户端并关闭它的 Send 通道，重复调用是安全的
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Publish 把事件推送给订阅了全部预约或相关医生的客户端，每个客户端最多收到一次
func (h *Hub) Publish(event domain.AppointmentEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("无法序列化预约事件", "error", err)
		return
	}

	topics := []string{TopicAll, DoctorTopic(event.DoctorID)}
	if event.PreviousDoctorID != 0 && event.PreviousDoctorID != event.DoctorID {
		topics = append(topics, DoctorTopic(event.PreviousDoctorID))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := make(map[*Client]struct{})
	for _, topic := range topics {
		for client := range h.clients[topic] {
			if _, ok := sent[client]; ok {
				continue
			}
			sent[client] = struct{}{}

			select {
			case client.Send <- data:
			default:
				// 客户端缓冲区已满，丢弃这条消息，客户端下次拉取时会拿到最新数据
				slog.Warn("websocket 客户端缓冲区已满", "client", client.ID)
			}
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS 把 HTTP 连接升级为 websocket 并注册到 hub 中，checkOrigin 为 nil 时只允许同源
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, checkOrigin func(r *http.Request) bool, topics ...string) error {
	u := upgrader
	u.CheckOrigin = checkOrigin

	conn, err := u.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := NewClient(topics...)
	h.Register(client)

	go h.writePump(client, conn)
	go h.readPump(client, conn)

	return nil
}

// readPump 只负责处理 pong 和检测断开，客户端发来的消息会被忽略
func (h *Hub) readPump(client *Client, conn *websocket.Conn) {
	defer func() {
		h.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// hub 已经关闭了这个通道
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
