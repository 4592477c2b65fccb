package model

import (
	"fmt"
	"math"
)

// OrderKind 订单类型
type OrderKind string

const (
	// OrderMarket 市价单（taker）
	OrderMarket OrderKind = "MARKET"
	// OrderLimit 限价单（maker）
	OrderLimit OrderKind = "LIMIT"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	// OrderPending 挂单中，尚未成交
	OrderPending OrderStatus = "PENDING"
	// OrderFilled 已完全成交
	OrderFilled OrderStatus = "FILLED"
	// OrderCancelled 已撤销（如穿越价差被拒）
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order 模拟订单
// 由执行模拟器创建；FILLED/CANCELLED 后不再修改，挂单成交会生成新的 Order
type Order struct {
	// ID 订单唯一标识
	ID string `json:"id"`
	// Market 市场标识
	Market string `json:"market"`
	// Side 方向: BUY, SELL
	Side Side `json:"side"`
	// Kind 类型: MARKET, LIMIT
	Kind OrderKind `json:"kind"`
	// Size 数量（基础资产），必须大于 0
	Size float64 `json:"size"`
	// LimitPx 限价（市价单为 0）
	LimitPx float64 `json:"limit_px,omitempty"`
	// Status 状态
	Status OrderStatus `json:"status"`
	// FilledSize 已成交数量，FILLED 时等于 Size
	FilledSize float64 `json:"filled_size"`
	// AvgFillPx 成交均价
	AvgFillPx float64 `json:"avg_fill_px"`
	// FeesPaid 手续费（USD，负数表示返佣）
	FeesPaid float64 `json:"fees_paid"`
	// LatencyMs 模拟延迟（毫秒），仅记录，不真实等待
	LatencyMs float64 `json:"latency_ms"`
	// CreatedNs 创建时间（纳秒）
	CreatedNs int64 `json:"created_ns"`
}

// NewOrder 创建 PENDING 状态的订单
// size ≤ 0 属于调用方错误，直接 panic
func NewOrder(id, market string, side Side, kind OrderKind, size, limitPx float64, nowNs int64) *Order {
	if !(size > 0) || math.IsInf(size, 0) {
		panic(fmt.Sprintf("model: 订单数量必须为正数: %s size=%v", market, size))
	}
	return &Order{
		ID:        id,
		Market:    market,
		Side:      side,
		Kind:      kind,
		Size:      size,
		LimitPx:   limitPx,
		Status:    OrderPending,
		CreatedNs: nowNs,
	}
}

// Fill 以给定价格和手续费完成成交
func (o *Order) Fill(px, fee float64) {
	o.Status = OrderFilled
	o.FilledSize = o.Size
	o.AvgFillPx = px
	o.FeesPaid = fee
}

// Cancel 撤销订单
func (o *Order) Cancel() {
	o.Status = OrderCancelled
}

// Notional 名义价值
// 已成交按成交价计算，否则按限价计算
func (o *Order) Notional() float64 {
	if o.Status == OrderFilled {
		return o.FilledSize * o.AvgFillPx
	}
	return o.Size * o.LimitPx
}

// IsFilled 是否已成交
func (o *Order) IsFilled() bool {
	return o.Status == OrderFilled
}

// Clone 拷贝订单
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
