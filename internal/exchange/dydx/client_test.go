package dydx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
)

// fakeIndexer 收到订阅后推送快照与一条增量
func fakeIndexer(t *testing.T) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connected","connection_id":"c1","message_id":0}`))
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req SubscribeRequest
			if json.Unmarshal(data, &req) != nil || req.Channel != ChannelOrderbook {
				continue
			}
			snap := strings.ReplaceAll(snapshotMsg, "BTC-USD", req.ID)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(snap))
			_ = conn.WriteMessage(websocket.TextMessage, update(req.ID, [][]string{{"45000.5", "1"}}, nil))
		}
	}))
}

func TestClient_StreamsBookEvents(t *testing.T) {
	srv := fakeIndexer(t)
	defer srv.Close()

	cfg := config.WSConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		PingIntervalMs: 50,
		PongTimeoutMs:  1000,
		QueueSize:      16,
	}
	c := NewClient(cfg, []string{"BTC-USD", "ETH-USD"}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	got := map[string]int{}
	var lastBTC float64
	timeout := time.After(5 * time.Second)
	for got["BTC-USD"] < 2 || got["ETH-USD"] < 2 {
		select {
		case ev := <-c.BookCh():
			require.NotNil(t, ev)
			got[ev.Market]++
			if ev.Market == "BTC-USD" {
				lastBTC = ev.BestBidPx
			}
		case <-timeout:
			t.Fatalf("未收到全部事件: %v", got)
		}
	}
	assert.Equal(t, 45000.5, lastBTC)

	require.NoError(t, c.Close())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run 未退出")
	}
	_, open := <-c.BookCh()
	assert.False(t, open, "Run 退出后 BookCh 应关闭")
	assert.Zero(t, c.Metrics().ParseErrorCount)
}

func TestClient_SubscribeWithoutConnection(t *testing.T) {
	c := NewClient(config.WSConfig{URL: "ws://127.0.0.1:1"}, []string{"BTC-USD"}, nil)
	assert.Error(t, c.Subscribe())
}
