package model

import (
	"time"
)

// SignalType 信号类型
type SignalType string

const (
	// SignalBuy 价格显著低于均值，做多
	SignalBuy SignalType = "BUY"
	// SignalSell 价格显著高于均值，做空
	SignalSell SignalType = "SELL"
	// SignalNeutral 无方向
	SignalNeutral SignalType = "NEUTRAL"
)

// Signal 均值回归信号
// 每个 tick 重新计算，仅保留每个市场的最新值
type Signal struct {
	// Market 市场标识
	Market string `json:"market"`
	// TsNs 计算时间（纳秒）
	TsNs int64 `json:"ts_ns"`
	// Type 信号类型: BUY, SELL, NEUTRAL
	// 仅当 |z| ≥ 阈值时为非 NEUTRAL
	Type SignalType `json:"type"`
	// DeviationPct 偏离百分比
	// 计算公式: (current - mean) / mean × 100
	DeviationPct float64 `json:"deviation_pct"`
	// EntryPx 计算时的当前价格（中间价）
	EntryPx float64 `json:"entry_px"`
	// Confidence 置信度，范围 [0, 100]
	Confidence float64 `json:"confidence"`
	// ZScore z 分数
	ZScore float64 `json:"z_score"`
	// Mean 窗口均值
	Mean float64 `json:"mean"`
	// StdDev 窗口样本标准差（n-1）
	StdDev float64 `json:"std_dev"`
	// Samples 参与计算的样本数
	Samples int `json:"samples"`
	// Volume 当前盘口量
	Volume float64 `json:"volume"`
}

// IsActionable 是否为有方向的信号
func (s *Signal) IsActionable() bool {
	return s != nil && s.Type != SignalNeutral
}

// Side 信号对应的开仓方向
// NEUTRAL 返回空字符串
func (s *Signal) Side() Side {
	switch s.Type {
	case SignalBuy:
		return SideBuy
	case SignalSell:
		return SideSell
	default:
		return ""
	}
}

// DetectedAt 获取计算时间的 time.Time 表示
func (s *Signal) DetectedAt() time.Time {
	return time.Unix(0, s.TsNs)
}
