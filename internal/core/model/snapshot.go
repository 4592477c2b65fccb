package model

// PriceSnapshot 单次行情更新的价格快照
// 不变量: Bid ≤ Price ≤ Ask；SpreadPct ≥ 0
type PriceSnapshot struct {
	// TsNs 快照时间（纳秒）
	TsNs int64 `json:"ts_ns"`
	// Price 中间价
	Price float64 `json:"price"`
	// Bid 最优买价
	Bid float64 `json:"bid"`
	// Ask 最优卖价
	Ask float64 `json:"ask"`
	// Volume 前 5 档买卖挂单量之和
	Volume float64 `json:"volume"`
	// SpreadPct 价差百分比
	SpreadPct float64 `json:"spread_pct"`
}

// MinuteBar 1 分钟聚合 K 线
// StartNs 对齐到 60 秒边界；High ≥ Open、Close、Low
type MinuteBar struct {
	// StartNs 分钟起始时间（纳秒，60 秒对齐）
	StartNs int64 `json:"start_ns"`
	// Open 开盘价
	Open float64 `json:"open"`
	// High 最高价
	High float64 `json:"high"`
	// Low 最低价
	Low float64 `json:"low"`
	// Close 收盘价
	Close float64 `json:"close"`
	// Volume 本分钟内各快照盘口量之和
	Volume float64 `json:"volume"`
	// Bid 最后一次快照的买价
	Bid float64 `json:"bid"`
	// Ask 最后一次快照的卖价
	Ask float64 `json:"ask"`
	// SpreadPct 最后一次快照的价差百分比
	SpreadPct float64 `json:"spread_pct"`
	// TickCount 聚合的快照数
	TickCount int `json:"tick_count"`
}
