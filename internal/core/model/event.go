package model

import (
	"time"

	"github.com/google/uuid"
)

// TradeAction 成交事件动作
type TradeAction string

const (
	// ActionEntry 入场挂单已提交
	ActionEntry TradeAction = "ENTRY"
	// ActionFill 入场订单成交
	ActionFill TradeAction = "FILL"
	// ActionExit 出场成交，仓位关闭
	ActionExit TradeAction = "EXIT"
	// ActionExpire 入场挂单过期
	ActionExpire TradeAction = "EXPIRE"
	// ActionCancel 入场挂单被撤（穿越价差）
	ActionCancel TradeAction = "CANCEL"
)

// EventSource 事件来源标识
const EventSource = "meanrev-paper-engine"

// eventNamespace 事件 ID 命名空间（UUIDv5）
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:meanrev-paper-engine:trade-event"))

// TradeEvent 订单状态变化事件
// 下游至少收到一次；ID 由仓位与动作确定性生成，消费方据此去重
type TradeEvent struct {
	// ID 幂等键（UUIDv5）
	ID string `json:"id"`
	// PositionID 所属仓位
	PositionID string `json:"position_id"`
	// Action 动作: ENTRY, FILL, EXIT, EXPIRE, CANCEL
	Action TradeAction `json:"action"`
	// Market 市场标识
	Market string `json:"market"`
	// Side 方向
	Side Side `json:"side"`
	// Size 数量
	Size float64 `json:"size"`
	// Price 价格（挂单价或成交价）
	Price float64 `json:"price"`
	// Status 订单状态
	Status OrderStatus `json:"status"`
	// PnLUSD 已实现盈亏（仅 EXIT）
	PnLUSD float64 `json:"pnl_usd"`
	// FeesUSD 本次订单手续费
	FeesUSD float64 `json:"fees_usd"`
	// Reason 退出原因或补充说明
	Reason string `json:"reason,omitempty"`
	// TsNs 事件时间（纳秒）
	TsNs int64 `json:"timestamp_ns"`
	// Datetime 事件时间（RFC3339，UTC）
	Datetime string `json:"datetime"`
	// Source 来源
	Source string `json:"source"`
}

// NewTradeEvent 根据仓位当前状态构建事件
// 参数 pos: 仓位
// 参数 action: 动作
// 参数 order: 触发事件的订单（可为 nil）
// 参数 nowNs: 事件时间（纳秒）
func NewTradeEvent(pos *Position, action TradeAction, order *Order, nowNs int64) TradeEvent {
	ev := TradeEvent{
		ID:         EventID(pos.ID, action),
		PositionID: pos.ID,
		Action:     action,
		Market:     pos.Market,
		Side:       pos.Side,
		Size:       pos.Size,
		Price:      pos.EntryPx,
		TsNs:       nowNs,
		Datetime:   time.Unix(0, nowNs).UTC().Format(time.RFC3339Nano),
		Source:     EventSource,
	}
	if order != nil {
		ev.Side = order.Side
		ev.Status = order.Status
		ev.FeesUSD = order.FeesPaid
		ev.Price = order.LimitPx
		if order.IsFilled() {
			ev.Price = order.AvgFillPx
		}
	}
	switch action {
	case ActionExit:
		ev.PnLUSD = pos.PnLUSD
		ev.Reason = string(pos.ExitReason)
		if order == nil {
			ev.Price = pos.ExitPx
			ev.Status = OrderFilled
		}
	case ActionExpire, ActionCancel:
		ev.Reason = string(pos.ExitReason)
	}
	return ev
}

// EventID 生成事件幂等键
// 同一仓位的同一动作始终得到相同 ID
func EventID(positionID string, action TradeAction) string {
	return uuid.NewSHA1(eventNamespace, []byte(positionID+"|"+string(action))).String()
}
