// Package fill 模拟 maker 限价单的成交判定。
package fill

import (
	"math"

	"meanrev-paper-engine/internal/core/model"
)

// Rand 随机数源
// *math/rand.Rand 满足该接口；测试中可注入固定序列
type Rand interface {
	Float64() float64
}

// 竞争力分段与对应的基础成交概率
const (
	bandVeryCompetitive = 0.8
	bandModerate        = 0.5
	bandSomewhat        = 0.2

	probVeryCompetitive = 0.85
	probModerate        = 0.70
	probSomewhat        = 0.50
	probLow             = 0.25
)

// Simulator 限价单成交模拟器
type Simulator struct {
	// baseDepthUSD 盘口基础深度（USD）
	baseDepthUSD float64
}

// NewSimulator 创建成交模拟器
// 参数 baseDepthUSD: 盘口基础深度，竞争力越高可用深度越大
func NewSimulator(baseDepthUSD float64) *Simulator {
	return &Simulator{baseDepthUSD: baseDepthUSD}
}

// CrossesSpread 限价单是否会穿越价差（变成 taker）
// BUY: limit ≥ ask；SELL: limit ≤ bid
func CrossesSpread(side model.Side, limitPx float64, q model.Quote) bool {
	if side == model.SideBuy {
		return limitPx >= q.Ask
	}
	return limitPx <= q.Bid
}

// Competitiveness 挂单价格竞争力
// BUY: (ask - limit) / spread；SELL: (limit - bid) / spread；spread 为 0 时返回 0
func Competitiveness(side model.Side, limitPx float64, q model.Quote) float64 {
	spread := q.Ask - q.Bid
	if spread <= 0 {
		return 0
	}
	if side == model.SideBuy {
		return (q.Ask - limitPx) / spread
	}
	return (limitPx - q.Bid) / spread
}

// Probability 成交概率（不含随机抽样）
// 穿越价差或深度不足时返回 0
func (s *Simulator) Probability(side model.Side, limitPx float64, q model.Quote, notionalUSD float64) float64 {
	if CrossesSpread(side, limitPx, q) {
		return 0
	}
	c := Competitiveness(side, limitPx, q)
	depth := s.baseDepthUSD * (1 + c*2)
	if depth < notionalUSD {
		return 0
	}

	var base float64
	switch {
	case c > bandVeryCompetitive:
		base = probVeryCompetitive
	case c > bandModerate:
		base = probModerate
	case c > bandSomewhat:
		base = probSomewhat
	default:
		base = probLow
	}

	sizeFactor := 1.0
	if notionalUSD > 0 {
		sizeFactor = math.Min(1, depth/notionalUSD)
	}
	return base * sizeFactor
}

// WillFill 判定限价单是否成交
// 穿越价差的订单确定返回 false，不消耗随机数
func (s *Simulator) WillFill(rnd Rand, side model.Side, limitPx float64, q model.Quote, notionalUSD float64) bool {
	p := s.Probability(side, limitPx, q, notionalUSD)
	if p <= 0 {
		return false
	}
	return rnd.Float64() < p
}
