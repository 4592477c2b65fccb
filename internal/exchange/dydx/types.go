// Package dydx 定义 dYdX v4 indexer WebSocket 消息类型。
package dydx

import "encoding/json"

// 消息类型
const (
	TypeConnected   = "connected"
	TypeSubscribed  = "subscribed"
	TypeChannelData = "channel_data"
	TypeError       = "error"
)

// ChannelOrderbook 订单簿频道
const ChannelOrderbook = "v4_orderbook"

// SubscribeRequest 订阅请求
// 每个市场单独发送一条
type SubscribeRequest struct {
	// Type 操作类型: subscribe, unsubscribe
	Type string `json:"type"`
	// Channel 频道名称: v4_orderbook
	Channel string `json:"channel"`
	// ID 市场标识: BTC-USD
	ID string `json:"id"`
	// Batched 是否批量推送
	Batched bool `json:"batched"`
}

// Message indexer 推送的通用消息
// subscribed 携带完整快照，channel_data 携带增量更新
type Message struct {
	// Type 消息类型
	Type string `json:"type"`
	// ConnectionID 连接标识
	ConnectionID string `json:"connection_id,omitempty"`
	// MessageID 消息序号
	MessageID int64 `json:"message_id,omitempty"`
	// Channel 频道
	Channel string `json:"channel,omitempty"`
	// ID 市场标识
	ID string `json:"id,omitempty"`
	// Version 订单簿版本
	Version string `json:"version,omitempty"`
	// Contents 消息内容
	Contents json.RawMessage `json:"contents,omitempty"`
	// Message 错误描述（仅 error）
	Message string `json:"message,omitempty"`
}

// BookContents 订单簿内容
// 档位有两种形式: 快照为 {"price","size"} 对象，增量为 ["price","size"] 数组
type BookContents struct {
	// Bids 买盘档位
	Bids []json.RawMessage `json:"bids"`
	// Asks 卖盘档位
	Asks []json.RawMessage `json:"asks"`
}

// PriceLevel 快照档位
type PriceLevel struct {
	// Price 价格字符串
	Price string `json:"price"`
	// Size 数量字符串，"0" 表示删除该档
	Size string `json:"size"`
}

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64 `json:"reconnect_count"`
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64 `json:"parse_error_count"`
	// DroppedCount 输出通道已满而丢弃的事件数
	DroppedCount int64 `json:"dropped_count"`
	// UpdatesPerSec 每秒更新次数
	UpdatesPerSec float64 `json:"updates_per_sec"`
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64 `json:"last_message_age_ms"`
	// WsRttMs WebSocket RTT（毫秒）
	WsRttMs int64 `json:"ws_rtt_ms"`
}
