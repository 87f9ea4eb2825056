package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bookstore_go/testutil"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, rdb *redis.Client) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(rdb, testutil.Logger(t))
	require.NoError(t, hub.Start(context.Background()))

	r := gin.New()
	r.GET("/ws/reviews", hub.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/reviews"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// 收到 pong 说明连接已注册
	syncConn(t, conn)
	return conn
}

func syncConn(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(Message{Type: TypePing}))
	msg := read(t, conn)
	require.Equal(t, TypePong, msg.Type)
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_LocalDelivery(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url+"?book_ids=1,2")
	assert.Equal(t, 1, hub.Subscribers(1))
	assert.Equal(t, 1, hub.Subscribers(2))

	hub.PublishReviewEvent(context.Background(), "review_created", 3, map[string]int{"rating_star": 1})
	hub.PublishReviewEvent(context.Background(), "review_created", 2, map[string]int{"rating_star": 5})

	msg := read(t, conn)
	assert.Equal(t, "review_created", msg.Type)
	assert.Equal(t, uint(2), msg.BookID)
	assert.NotZero(t, msg.Timestamp)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), data["rating_star"])
}

func TestHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url+"?book_ids=1")

	require.NoError(t, conn.WriteJSON(Message{Type: TypeUnsubscribe, BookID: 1}))
	require.NoError(t, conn.WriteJSON(Message{Type: TypeSubscribe, BookID: 9}))
	syncConn(t, conn)
	assert.Zero(t, hub.Subscribers(1))
	assert.Equal(t, 1, hub.Subscribers(9))

	hub.PublishReviewEvent(context.Background(), "stats_updated", 1, nil)
	hub.PublishReviewEvent(context.Background(), "stats_updated", 9, nil)

	msg := read(t, conn)
	assert.Equal(t, uint(9), msg.BookID)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, url := startHub(t, nil)
	conn := dial(t, url+"?book_ids=4")
	require.Equal(t, 1, hub.Subscribers(4))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers(4) == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestHub_RedisFanOut(t *testing.T) {
	_, rdb := testutil.Redis(t)
	publisher, _ := startHub(t, rdb)
	_, url := startHub(t, rdb)

	conn := dial(t, url+"?book_ids=5")

	// 事件由另一实例发布，经Redis频道到达
	publisher.PublishReviewEvent(context.Background(), "review_created", 5, map[string]string{"review_title": "Great"})

	msg := read(t, conn)
	assert.Equal(t, "review_created", msg.Type)
	assert.Equal(t, uint(5), msg.BookID)
}
