package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"bookstore_go/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ReviewEventsChannel 多实例同步书评事件的Redis频道
	ReviewEventsChannel = "review_events"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
	broadcastQueue = 1000
)

// 客户端消息类型
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
)

// Message WebSocket消息结构
type Message struct {
	Type      string      `json:"type"`
	BookID    uint        `json:"book_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Client 一个订阅了若干书籍的连接
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan *Message
	books map[uint]bool // 仅由 hub.mu 保护
}

// Hub 书评实时推送：按书籍ID分组广播，配置Redis时经频道在多实例间同步
type Hub struct {
	rdb      *redis.Client
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[uint]map[*Client]struct{}

	broadcast chan *Message
	pubsub    *redis.PubSub
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewHub 创建推送中心，rdb 可为 nil
func NewHub(rdb *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		rdb: rdb,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[*Client]struct{}),
		rooms:     make(map[uint]map[*Client]struct{}),
		broadcast: make(chan *Message, broadcastQueue),
	}
}

// Start 启动广播worker；有Redis时先完成订阅再返回
func (h *Hub) Start(ctx context.Context) error {
	ctx, h.cancel = context.WithCancel(ctx)

	if h.rdb != nil {
		h.pubsub = h.rdb.Subscribe(ctx, ReviewEventsChannel)
		if _, err := h.pubsub.Receive(ctx); err != nil {
			_ = h.pubsub.Close()
			h.pubsub = nil
			h.log.Warn("review feed redis subscribe failed, delivering locally only", zap.Error(err))
		} else {
			h.wg.Add(1)
			go h.subscribeLoop(ctx, h.pubsub.Channel())
		}
	}

	h.wg.Add(1)
	go h.broadcastLoop(ctx)
	return nil
}

// Close 停止推送并断开所有连接
func (h *Hub) Close() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.pubsub != nil {
		_ = h.pubsub.Close()
	}
	h.wg.Wait()

	h.mu.Lock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
	h.mu.Unlock()
}

// PublishReviewEvent 发布书评事件。有Redis时经频道投递（本实例也从频道收到），否则直接本地广播
func (h *Hub) PublishReviewEvent(ctx context.Context, eventType string, bookID uint, data interface{}) {
	msg := &Message{
		Type:      eventType,
		BookID:    bookID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	if h.pubsub != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			if err = h.rdb.Publish(ctx, ReviewEventsChannel, payload).Err(); err == nil {
				return
			}
		}
		h.log.Warn("publish review event to redis failed, delivering locally", zap.Error(err))
	}
	h.enqueue(msg)
}

func (h *Hub) enqueue(msg *Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("review feed broadcast queue full, dropping event",
			zap.String("type", msg.Type), zap.Uint("book_id", msg.BookID))
	}
}

func (h *Hub) subscribeLoop(ctx context.Context, ch <-chan *redis.Message) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			var msg Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				continue
			}
			h.enqueue(&msg)
		}
	}
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// deliver 投递给订阅了该书的连接；发送队列满的连接丢弃本条消息
func (h *Hub) deliver(msg *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[msg.BookID] {
		select {
		case c.send <- msg:
		default:
			h.log.Debug("review feed client queue full, dropping event", zap.Uint("book_id", msg.BookID))
		}
	}
}

func (h *Hub) register(c *Client, bookIDs []uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for _, id := range bookIDs {
		h.joinLocked(c, id)
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for id := range c.books {
		h.leaveLocked(c, id)
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) joinLocked(c *Client, bookID uint) {
	room, ok := h.rooms[bookID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[bookID] = room
	}
	room[c] = struct{}{}
	c.books[bookID] = true
}

func (h *Hub) leaveLocked(c *Client, bookID uint) {
	if room, ok := h.rooms[bookID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, bookID)
		}
	}
	delete(c.books, bookID)
}

// Subscribers 订阅某本书的连接数
func (h *Hub) Subscribers(bookID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[bookID])
}

// ServeWS 升级为WebSocket连接，book_ids 为初始订阅
// @Router /ws/reviews [get]
func (h *Hub) ServeWS(c *gin.Context) {
	bookIDs := utils.ParseIDList(c.Query("book_ids"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan *Message, sendBufferSize),
		books: make(map[uint]bool),
	}
	h.register(client, bookIDs)

	go client.writePump()
	go client.readPump()
}

// readPump 读取客户端消息，连接断开时注销
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handleMessage(&msg)
	}
}

// writePump 写出消息并定时发送心跳
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理客户端消息
func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		if msg.BookID == 0 {
			return
		}
		c.hub.mu.Lock()
		if msg.Type == TypeSubscribe {
			c.hub.joinLocked(c, msg.BookID)
		} else {
			c.hub.leaveLocked(c, msg.BookID)
		}
		c.hub.mu.Unlock()

	case TypePing:
		c.hub.mu.RLock()
		select {
		case c.send <- &Message{Type: TypePong, Timestamp: time.Now().Unix()}:
		default:
		}
		c.hub.mu.RUnlock()
	}
}
