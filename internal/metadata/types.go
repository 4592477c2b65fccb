// Package metadata 负责从 dYdX indexer 获取永续市场元数据，解析出可订阅市场及其下单精度。
package metadata

import (
	"strings"

	"meanrev-paper-engine/internal/util/fastparse"
)

// PerpetualMarketsResponse dYdX 永续市场元数据 API 响应
// API: GET /v4/perpetualMarkets
type PerpetualMarketsResponse struct {
	// Markets 市场表，key 为 ticker（如 BTC-USD）
	Markets map[string]PerpetualMarket `json:"markets"`
}

// PerpetualMarket dYdX 永续市场信息
// 数值字段均为十进制字符串
type PerpetualMarket struct {
	// Ticker 市场标识，如 BTC-USD
	Ticker string `json:"ticker"`
	// Status 市场状态: ACTIVE, PAUSED, CANCEL_ONLY, POST_ONLY, FINAL_SETTLEMENT, INITIALIZING
	Status string `json:"status"`
	// MarketType 保证金模式: CROSS, ISOLATED
	MarketType string `json:"marketType"`
	// OraclePrice 预言机价格
	OraclePrice string `json:"oraclePrice"`
	// TickSize 最小价格变动单位
	TickSize string `json:"tickSize"`
	// StepSize 最小数量变动单位
	StepSize string `json:"stepSize"`
	// Volume24H 24 小时成交额（USD）
	Volume24H string `json:"volume24H"`
}

// Tradable 判断是否为可交易的 USD 永续市场
// 条件: status=ACTIVE, 以 -USD 结尾, marketType 为 CROSS 或 ISOLATED
// 参数 name: 市场表中的 key
func (m *PerpetualMarket) Tradable(name string) bool {
	if m.Status != "ACTIVE" || !strings.HasSuffix(name, "-USD") {
		return false
	}
	return m.MarketType == "CROSS" || m.MarketType == "ISOLATED"
}

// MarketInfo 解析后的市场元数据
type MarketInfo struct {
	// ID 市场标识
	ID string `json:"id"`
	// TickSize 价格步长
	TickSize float64 `json:"tick_size"`
	// StepSize 数量步长
	StepSize float64 `json:"step_size"`
	// QtyPrecision 数量小数位数（由 stepSize 推导）
	QtyPrecision int `json:"qty_precision"`
	// MinQty 最小下单数量（等于 stepSize）
	MinQty float64 `json:"min_qty"`
	// OraclePrice 预言机价格
	OraclePrice float64 `json:"oracle_price"`
	// Volume24H 24 小时成交额
	Volume24H float64 `json:"volume_24h"`
}

// infoOf 由原始元数据构建 MarketInfo
func infoOf(name string, m *PerpetualMarket) MarketInfo {
	step := fastparse.MustParseFloat(m.StepSize)
	return MarketInfo{
		ID:           name,
		TickSize:     fastparse.MustParseFloat(m.TickSize),
		StepSize:     step,
		QtyPrecision: fastparse.DecimalPlaces(m.StepSize),
		MinQty:       step,
		OraclePrice:  fastparse.MustParseFloat(m.OraclePrice),
		Volume24H:    fastparse.MustParseFloat(m.Volume24H),
	}
}

// FallbackMarkets 元数据不可用且启用自动发现时使用的市场列表
var FallbackMarkets = []string{
	"BTC-USD", "ETH-USD", "SOL-USD", "AVAX-USD",
	"DOGE-USD", "LINK-USD", "UNI-USD", "AAVE-USD",
	"ADA-USD", "DOT-USD", "ATOM-USD", "NEAR-USD",
}
