// Package model 定义模拟引擎中使用的核心数据结构。
// 包含订单簿事件、价格快照、信号、订单、仓位和成交事件等核心类型。
package model

import (
	"time"
)

// ExchangeDYDX dYdX v4 交易所标识
const ExchangeDYDX = "dydx"

// TopLevels 归一化订单簿保留的档位数
const TopLevels = 5

// Side 订单方向
type Side string

const (
	// SideBuy 买入（多头）
	SideBuy Side = "BUY"
	// SideSell 卖出（空头）
	SideSell Side = "SELL"
)

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Level 订单簿深度档位
// 表示某一价格档位的价格和数量
type Level struct {
	// Price 价格
	Price float64 `json:"price"`
	// Qty 数量
	Qty float64 `json:"qty"`
}

// BookEvent 归一化订单簿事件结构
// 由行情适配器产生，驱动一次完整的 tick 处理
type BookEvent struct {
	// Exchange 交易所标识
	Exchange string `json:"exchange"`
	// Market 市场标识，如 BTC-USD
	Market string `json:"market"`
	// BestBidPx 最优买价（买一价）
	BestBidPx float64 `json:"best_bid_px"`
	// BestBidQty 最优买量（买一量）
	BestBidQty float64 `json:"best_bid_qty"`
	// BestAskPx 最优卖价（卖一价）
	BestAskPx float64 `json:"best_ask_px"`
	// BestAskQty 最优卖量（卖一量）
	BestAskQty float64 `json:"best_ask_qty"`
	// Bids 买盘档位（Top 5，价格从高到低）
	Bids []Level `json:"bids,omitempty"`
	// Asks 卖盘档位（Top 5，价格从低到高）
	Asks []Level `json:"asks,omitempty"`
	// ArrivedAtUnixNs 本机收到消息的时间戳（纳秒）
	// 引擎内所有时间判断（窗口、TTL、持仓时长）都以此为准，回放时可完全复现
	ArrivedAtUnixNs int64 `json:"arrived_at_unix_ns"`
	// Seq 本地订单簿序号（每次更新自增）
	Seq int64 `json:"seq"`
}

// IsValid 检查订单簿事件是否有效
// 有效条件: 市场非空，买卖价格都大于 0，且买价 < 卖价
func (b *BookEvent) IsValid() bool {
	return b != nil && b.Market != "" && b.BestBidPx > 0 && b.BestAskPx > 0 && b.BestBidPx < b.BestAskPx
}

// MidPrice 计算中间价
// 公式: (BestBidPx + BestAskPx) / 2
func (b *BookEvent) MidPrice() float64 {
	return (b.BestBidPx + b.BestAskPx) / 2
}

// Spread 计算买卖价差
// 公式: BestAskPx - BestBidPx
func (b *BookEvent) Spread() float64 {
	return b.BestAskPx - b.BestBidPx
}

// SpreadPct 计算买卖价差百分比
// 公式: (BestAskPx - BestBidPx) / MidPrice * 100
func (b *BookEvent) SpreadPct() float64 {
	mid := b.MidPrice()
	if mid == 0 {
		return 0
	}
	return (b.BestAskPx - b.BestBidPx) / mid * 100
}

// Top5Volume 计算前 5 档买卖挂单数量之和
// 用作信号的成交量因子输入
func (b *BookEvent) Top5Volume() float64 {
	var total float64
	for i, level := range b.Bids {
		if i >= TopLevels {
			break
		}
		total += level.Qty
	}
	for i, level := range b.Asks {
		if i >= TopLevels {
			break
		}
		total += level.Qty
	}
	return total
}

// Snapshot 将订单簿事件转换为价格快照
func (b *BookEvent) Snapshot() PriceSnapshot {
	return PriceSnapshot{
		TsNs:      b.ArrivedAtUnixNs,
		Price:     b.MidPrice(),
		Bid:       b.BestBidPx,
		Ask:       b.BestAskPx,
		Volume:    b.Top5Volume(),
		SpreadPct: b.SpreadPct(),
	}
}

// Quote 提取最优报价
func (b *BookEvent) Quote() Quote {
	return Quote{
		Market: b.Market,
		Bid:    b.BestBidPx,
		Ask:    b.BestAskPx,
		TsNs:   b.ArrivedAtUnixNs,
	}
}

// ArrivedAt 获取到达时间的 time.Time 表示
func (b *BookEvent) ArrivedAt() time.Time {
	return time.Unix(0, b.ArrivedAtUnixNs)
}

// Clone 创建 BookEvent 的深拷贝
func (b *BookEvent) Clone() *BookEvent {
	clone := *b
	if b.Bids != nil {
		clone.Bids = make([]Level, len(b.Bids))
		copy(clone.Bids, b.Bids)
	}
	if b.Asks != nil {
		clone.Asks = make([]Level, len(b.Asks))
		copy(clone.Asks, b.Asks)
	}
	return &clone
}

// Quote 某市场的最优买卖价
type Quote struct {
	// Market 市场标识
	Market string
	// Bid 最优买价
	Bid float64
	// Ask 最优卖价
	Ask float64
	// TsNs 报价时间（纳秒）
	TsNs int64
}

// Mid 中间价
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// SpreadPct 价差百分比
func (q Quote) SpreadPct() float64 {
	mid := q.Mid()
	if mid == 0 {
		return 0
	}
	return (q.Ask - q.Bid) / mid * 100
}

// Valid 报价是否可用于撮合模拟
func (q Quote) Valid() bool {
	return q.Bid > 0 && q.Ask > 0 && q.Bid <= q.Ask
}
