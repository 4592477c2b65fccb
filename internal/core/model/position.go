package model

import (
	"time"
)

// PositionStatus 仓位状态
// 状态单向流转: PENDING → OPEN → CLOSED，或 PENDING → MISSED
type PositionStatus string

const (
	// PositionPending 入场挂单未成交
	PositionPending PositionStatus = "PENDING"
	// PositionOpen 已持仓
	PositionOpen PositionStatus = "OPEN"
	// PositionClosed 已平仓
	PositionClosed PositionStatus = "CLOSED"
	// PositionMissed 入场失败（撤单或过期）
	PositionMissed PositionStatus = "MISSED"
)

// Result 仓位结果
type Result string

const (
	// ResultWin 盈利
	ResultWin Result = "win"
	// ResultLoss 亏损（含打平）
	ResultLoss Result = "loss"
	// ResultMissed 未成交
	ResultMissed Result = "missed"
	// ResultPending 尚未结束
	ResultPending Result = "pending"
)

// ExitReason 退出原因
type ExitReason string

const (
	// ExitTakeProfit 浮盈超过止盈金额
	ExitTakeProfit ExitReason = "take_profit"
	// ExitStopLoss 浮亏超过止损金额
	ExitStopLoss ExitReason = "stop_loss"
	// ExitTimeout 持仓超时
	ExitTimeout ExitReason = "timeout"
	// ExitSignalReversal 出现反向高置信度信号
	ExitSignalReversal ExitReason = "signal_reversal"
	// ExitZNeutral |z| 回到中性区间
	ExitZNeutral ExitReason = "z_neutral"
	// ExitEmergencyStop 浮亏超过名义价值的紧急止损比例
	ExitEmergencyStop ExitReason = "emergency_stop"
	// ExitExpired 入场挂单超过 TTL
	ExitExpired ExitReason = "expired"
	// ExitCancelled 入场单穿越价差被撤
	ExitCancelled ExitReason = "cancelled"
)

// Position 模拟仓位
// 仅由仓位管理器修改；CLOSED/MISSED 后保留用于统计，不再修改
type Position struct {
	// ID 仓位唯一标识
	ID string `json:"id"`
	// Market 市场标识
	Market string `json:"market"`
	// Side 方向: BUY（多）或 SELL（空）
	Side Side `json:"side"`
	// Size 数量（基础资产），大于 0
	Size float64 `json:"size"`
	// EntryPx 入场价格（限价）
	EntryPx float64 `json:"entry_px"`
	// EntryTimeNs 入场时间（纳秒），挂单成交时重置为成交时间
	EntryTimeNs int64 `json:"entry_time_ns"`
	// Status 状态
	Status PositionStatus `json:"status"`
	// PnLPct 盈亏百分比（相对入场名义价值）
	PnLPct float64 `json:"pnl_pct"`
	// PnLUSD 盈亏金额（USD，已扣除手续费）
	PnLUSD float64 `json:"pnl_usd"`
	// ExitPx 出场价格
	ExitPx float64 `json:"exit_px,omitempty"`
	// ExitTimeNs 出场时间（纳秒）
	ExitTimeNs int64 `json:"exit_time_ns,omitempty"`
	// EntryOrder 入场订单
	EntryOrder *Order `json:"entry_order,omitempty"`
	// ExitOrder 出场订单
	ExitOrder *Order `json:"exit_order,omitempty"`
	// FeesTotal 入场与出场手续费之和
	FeesTotal float64 `json:"fees_total"`
	// Result 结果
	Result Result `json:"result"`
	// ExitReason 退出原因
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	// OrderPlacedNs 入场挂单时间（纳秒）
	OrderPlacedNs int64 `json:"order_placed_ns"`
	// OrderExpiresNs 入场挂单过期时间（纳秒）
	OrderExpiresNs int64 `json:"order_expires_ns"`
	// MaxProfitUSD 持仓期间最大浮盈
	MaxProfitUSD float64 `json:"max_profit_usd"`
	// MaxLossUSD 持仓期间最大浮亏（负数）
	MaxLossUSD float64 `json:"max_loss_usd"`
	// ExitAttempts 出场挂单尝试次数
	ExitAttempts int `json:"exit_attempts"`
}

// IsLong 判断是否为多头仓位
func (p *Position) IsLong() bool {
	return p.Side == SideBuy
}

// Direction 获取方向系数
// 多头返回 1，空头返回 -1
func (p *Position) Direction() float64 {
	if p.Side == SideBuy {
		return 1
	}
	return -1
}

// IsLive 是否仍需每个 tick 复查（PENDING 或 OPEN）
func (p *Position) IsLive() bool {
	return p.Status == PositionPending || p.Status == PositionOpen
}

// EntryNotional 入场名义价值
func (p *Position) EntryNotional() float64 {
	return p.Size * p.EntryPx
}

// MarkPx 按当前报价取平仓参考价
// 多头使用买价，空头使用卖价
func (p *Position) MarkPx(q Quote) float64 {
	if p.IsLong() {
		return q.Bid
	}
	return q.Ask
}

// GrossPnL 按给定价格计算毛盈亏（未扣手续费）
func (p *Position) GrossPnL(px float64) float64 {
	return p.Direction() * (px - p.EntryPx) * p.Size
}

// HoldingNs 持仓时长（纳秒）
// 已平仓按出场时间计算，否则按 nowNs 计算
func (p *Position) HoldingNs(nowNs int64) int64 {
	if p.Status == PositionClosed {
		return p.ExitTimeNs - p.EntryTimeNs
	}
	if p.Status != PositionOpen {
		return 0
	}
	return nowNs - p.EntryTimeNs
}

// HoldDuration 持仓时长
func (p *Position) HoldDuration(nowNs int64) time.Duration {
	return time.Duration(p.HoldingNs(nowNs))
}

// IsWin 判断是否盈利
func (p *Position) IsWin() bool {
	return p.Status == PositionClosed && p.PnLUSD > 0
}

// Clone 拷贝仓位（订单一并拷贝），用于向外暴露只读快照
func (p *Position) Clone() *Position {
	c := *p
	if p.EntryOrder != nil {
		c.EntryOrder = p.EntryOrder.Clone()
	}
	if p.ExitOrder != nil {
		c.ExitOrder = p.ExitOrder.Clone()
	}
	return &c
}
