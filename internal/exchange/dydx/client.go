// Package dydx 实现 dYdX v4 indexer 的 WebSocket 行情客户端。
// 连接地址: wss://indexer.dydx.trade/v4/ws
// 订阅频道: v4_orderbook（subscribed 快照 + channel_data 增量）
// 心跳机制: WebSocket ping 控制帧，默认 25 秒间隔，10 秒超时
package dydx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/util/backoff"
	"meanrev-paper-engine/internal/util/timeutil"
)

// Client dYdX WebSocket 客户端
type Client struct {
	// cfg WebSocket 配置
	cfg config.WSConfig
	// markets 订阅的市场
	markets []string
	// logger 日志记录器
	logger *zap.Logger
	// parser 消息解析器（仅读取协程使用）
	parser *Parser
	// conn WebSocket 连接
	conn *websocket.Conn
	// connMu 连接锁，同时串行化写入
	connMu sync.Mutex
	// bookCh 订单簿事件输出通道，Run 退出时关闭
	bookCh chan *model.BookEvent
	// metrics 连接指标
	metrics ConnectionMetrics
	// metricsMu 指标锁
	metricsMu sync.RWMutex
	// lastMsgTime 最后消息时间
	lastMsgTime atomic.Int64
	// lastPingSentNs 上次发送 ping 的时间（纳秒）
	lastPingSentNs atomic.Int64
	// lastPongRecvNs 上次收到 pong 的时间（纳秒）
	lastPongRecvNs atomic.Int64
	// updateCount 更新计数（用于计算 QPS）
	updateCount atomic.Int64
	// backoff 重连退避
	backoff *backoff.Backoff
	// closed 是否已关闭
	closed atomic.Bool

	// parseErrSampleCount 解析错误计数（用于采样日志）
	parseErrSampleCount atomic.Uint64
	// lastParseErrLogNs 上次解析错误日志时间（纳秒）
	lastParseErrLogNs atomic.Int64
}

// NewClient 创建 dYdX WebSocket 客户端
// 参数 cfg: WebSocket 配置
// 参数 markets: 订阅的市场列表，如 BTC-USD
// 参数 logger: 日志记录器
func NewClient(cfg config.WSConfig, markets []string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.QueueSize * len(markets)
	if size < 1000 {
		size = 1000
	}
	return &Client{
		cfg:     cfg,
		markets: markets,
		logger:  logger.Named("dydx"),
		parser:  NewParser(markets),
		bookCh:  make(chan *model.BookEvent, size),
		backoff: backoff.NewDefault(),
	}
}

// Connect 建立 WebSocket 连接
// 参数 ctx: 上下文，用于取消连接
func (c *Client) Connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := http.Header{}
	header.Set("User-Agent", "meanrev-paper-engine/1.0")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("连接 dYdX WebSocket 失败: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		nowNs := timeutil.NowNano()
		c.lastPongRecvNs.Store(nowNs)
		if lastPing := c.lastPingSentNs.Load(); lastPing > 0 {
			c.metricsMu.Lock()
			c.metrics.WsRttMs = (nowNs - lastPing) / 1_000_000
			c.metricsMu.Unlock()
		}
		return nil
	})

	c.conn = conn
	c.backoff.Reset()
	c.logger.Info("dYdX WebSocket 连接成功", zap.String("url", c.cfg.URL))

	return nil
}

// Subscribe 订阅全部市场的 v4_orderbook 频道
func (c *Client) Subscribe() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("WebSocket 未连接")
	}

	for _, m := range c.markets {
		data, err := json.Marshal(SubscribeRequest{
			Type:    "subscribe",
			Channel: ChannelOrderbook,
			ID:      m,
		})
		if err != nil {
			return fmt.Errorf("序列化订阅请求失败: %w", err)
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return fmt.Errorf("发送订阅请求失败: %w", err)
		}
	}

	c.logger.Info("dYdX 订阅请求已发送", zap.Int("markets", len(c.markets)))
	return nil
}

// Run 启动客户端主循环，阻塞直到 ctx 取消或客户端关闭
// 包含读取循环、心跳循环与指标循环；退出时关闭 BookCh
func (c *Client) Run(ctx context.Context) {
	defer close(c.bookCh)

	go c.heartbeatLoop(ctx)
	go c.metricsLoop(ctx)

	c.readLoop(ctx)
}

// readLoop 持续读取消息并解析
func (c *Client) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.closed.Load() {
			return
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			c.reconnect(ctx)
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || ctx.Err() != nil {
				return
			}
			c.logger.Warn("读取 dYdX 消息失败", zap.Error(err))
			c.incrementReconnectCount()
			c.reconnect(ctx)
			continue
		}

		nowNs := timeutil.NowNano()
		c.lastMsgTime.Store(nowNs)

		ev, err := c.parser.Parse(data, nowNs)
		if err != nil {
			c.incrementParseErrorCount()
			c.maybeLogParseError(err, data)
			continue
		}
		if ev == nil {
			continue
		}

		c.updateCount.Add(1)
		select {
		case c.bookCh <- ev:
		default:
			c.metricsMu.Lock()
			c.metrics.DroppedCount++
			c.metricsMu.Unlock()
		}
	}
}

// heartbeatLoop 定时发送 ping，超时未收到 pong 则断开重连
func (c *Client) heartbeatLoop(ctx context.Context) {
	interval := time.Duration(c.cfg.PingIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = 25 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.closed.Load() {
				return
			}

			c.connMu.Lock()
			conn := c.conn
			if conn == nil {
				c.connMu.Unlock()
				continue
			}
			pingTime := timeutil.NowNano()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.connMu.Unlock()
			if err != nil {
				c.logger.Warn("发送 dYdX ping 失败", zap.Error(err))
				continue
			}

			// 上一轮 ping 超时未回应
			lastPing := c.lastPingSentNs.Swap(pingTime)
			lastPong := c.lastPongRecvNs.Load()
			if lastPing > 0 && lastPong < lastPing &&
				pingTime-lastPing > int64(c.cfg.PongTimeoutMs)*1_000_000 {
				c.logger.Warn("dYdX 心跳超时，触发重连")
				c.closeConn()
			}
		}
	}
}

// metricsLoop 每秒计算 QPS 与消息新鲜度
func (c *Client) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastCount int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.closed.Load() {
				return
			}
			count := c.updateCount.Load()
			qps := float64(count - lastCount)
			lastCount = count

			var ageMs int64
			if lastMsg := c.lastMsgTime.Load(); lastMsg > 0 {
				ageMs = (timeutil.NowNano() - lastMsg) / 1_000_000
			}

			c.metricsMu.Lock()
			c.metrics.UpdatesPerSec = qps
			c.metrics.LastMessageAgeMs = ageMs
			c.metricsMu.Unlock()
		}
	}
}

// reconnect 按退避时间重连并重新订阅
// 本地订单簿被清空，等待新快照后才重新产生事件
func (c *Client) reconnect(ctx context.Context) {
	c.closeConn()
	c.parser.Reset()

	delay := c.backoff.Next()
	c.logger.Info("dYdX 准备重连", zap.Duration("delay", delay))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if err := c.Connect(ctx); err != nil {
		c.logger.Error("dYdX 重连失败", zap.Error(err))
		return
	}
	if err := c.Subscribe(); err != nil {
		c.logger.Error("dYdX 重新订阅失败", zap.Error(err))
		c.closeConn()
	}
}

// closeConn 关闭当前连接
func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close 关闭客户端；Run 随后退出并关闭 BookCh
func (c *Client) Close() error {
	c.closed.Store(true)
	c.closeConn()
	c.logger.Info("dYdX 客户端已关闭")
	return nil
}

// BookCh 获取订单簿事件通道
func (c *Client) BookCh() <-chan *model.BookEvent {
	return c.bookCh
}

// Metrics 获取连接指标
func (c *Client) Metrics() ConnectionMetrics {
	c.metricsMu.RLock()
	defer c.metricsMu.RUnlock()
	return c.metrics
}

func (c *Client) incrementReconnectCount() {
	c.metricsMu.Lock()
	c.metrics.ReconnectCount++
	c.metricsMu.Unlock()
}

func (c *Client) incrementParseErrorCount() {
	c.metricsMu.Lock()
	c.metrics.ParseErrorCount++
	c.metricsMu.Unlock()
}

// maybeLogParseError 采样记录解析错误原始消息
// 第 1 次及此后每 100 次记录 1 条，且至少间隔 1 分钟
func (c *Client) maybeLogParseError(err error, data []byte) {
	count := c.parseErrSampleCount.Add(1)
	if count != 1 && count%100 != 0 {
		return
	}

	nowNs := timeutil.NowNano()
	last := c.lastParseErrLogNs.Load()
	if last > 0 && nowNs-last < int64(time.Minute) {
		return
	}
	c.lastParseErrLogNs.Store(nowNs)

	sample := data
	if len(sample) > 200 {
		sample = sample[:200]
	}
	c.logger.Warn("解析 dYdX 消息失败（采样）", zap.Error(err), zap.ByteString("data", sample))
}
