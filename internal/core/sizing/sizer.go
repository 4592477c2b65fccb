// Package sizing 实现仓位数量计算与开仓前风控检查。
package sizing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/model"
)

// MarketRules 单市场下单规则
type MarketRules struct {
	// QtyPrecision 数量小数位数
	QtyPrecision int
	// MinQty 最小下单数量（0 表示取 10^-QtyPrecision）
	MinQty float64
	// NotionalUSD 固定名义价值（0 表示使用默认值）
	NotionalUSD float64
}

// Sizer 仓位计算器
// 余额由调用方从 account.Account 读取后传入，计算器本身无状态
type Sizer struct {
	cfg   config.SizingConfig
	rules map[string]MarketRules
}

// NewSizer 创建仓位计算器
// 参数 cfg: 仓位配置
// 参数 rules: 各市场下单规则；未列出的市场使用默认精度
func NewSizer(cfg config.SizingConfig, rules map[string]MarketRules) *Sizer {
	if rules == nil {
		rules = make(map[string]MarketRules)
	}
	return &Sizer{cfg: cfg, rules: rules}
}

// RulesFromConfig 由配置构建市场规则
// 元数据精度（若有）优先级低于显式配置
func RulesFromConfig(cfg *config.Config, precisions map[string]int, minQtys map[string]float64) map[string]MarketRules {
	out := make(map[string]MarketRules, len(cfg.Markets))
	for _, m := range cfg.Markets {
		r := MarketRules{
			QtyPrecision: cfg.Sizing.DefaultQtyPrecision,
			MinQty:       m.MinQty,
			NotionalUSD:  m.NotionalUSD,
		}
		if p, ok := precisions[m.ID]; ok {
			r.QtyPrecision = p
		}
		if m.QtyPrecision != nil {
			r.QtyPrecision = *m.QtyPrecision
		}
		if r.MinQty == 0 {
			r.MinQty = minQtys[m.ID]
		}
		out[m.ID] = r
	}
	return out
}

// Rules 返回市场规则（未配置时使用默认值）
func (s *Sizer) Rules(market string) MarketRules {
	r, ok := s.rules[market]
	if !ok {
		r = MarketRules{QtyPrecision: s.cfg.DefaultQtyPrecision}
	}
	if r.MinQty <= 0 {
		r.MinQty = math.Pow10(-r.QtyPrecision)
	}
	return r
}

// Notional 计算目标名义价值（USD）
// percent_balance: balance × entryFraction × confidence/100 × volFactor，截断到 [min, balance × maxFraction]
// fixed_notional: 市场名义价值；余额不足时使用 balance × reserve
func (s *Sizer) Notional(market string, sig *model.Signal, balance float64) float64 {
	switch s.cfg.Policy {
	case config.PolicyFixedNotional:
		n := s.Rules(market).NotionalUSD
		if n <= 0 {
			n = s.cfg.DefaultNotionalUSD
		}
		if balance < n {
			n = balance * s.cfg.BalanceReserve
		}
		return n
	default:
		conf := 0.0
		z := 0.0
		if sig != nil {
			conf = sig.Confidence
			z = sig.ZScore
		}
		n := balance * s.cfg.EntryFraction * conf / 100
		volFactor := math.Max(s.cfg.MinVolFactor, 1-(math.Abs(z)-s.cfg.ZBaseline)*s.cfg.ZShrinkPerUnit)
		n *= volFactor
		return math.Max(s.cfg.MinNotionalUSD, math.Min(balance*s.cfg.MaxFraction, n))
	}
}

// Size 计算下单数量
// 参数 price: 参考价格（通常为中间价），必须大于 0
// 返回: 按市场精度四舍五入后的数量，以及对应的目标名义价值
// 数量不低于市场最小下单量；结果仍 ≤ 0 属于调用方错误，直接 panic
func (s *Sizer) Size(market string, sig *model.Signal, price, balance float64) (qty, notional float64) {
	if !(price > 0) {
		panic(fmt.Sprintf("sizing: 参考价格必须为正数: %s price=%v", market, price))
	}
	notional = s.Notional(market, sig, balance)
	rules := s.Rules(market)

	qty = Round(notional/price, rules.QtyPrecision)
	if qty < rules.MinQty {
		qty = Round(rules.MinQty, rules.QtyPrecision)
	}
	if !(qty > 0) {
		panic(fmt.Sprintf("sizing: 四舍五入后数量必须为正数: %s notional=%v price=%v", market, notional, price))
	}
	return qty, notional
}

// Round 按小数位数四舍五入
func Round(v float64, places int) float64 {
	f, _ := decimal.NewFromFloat(v).Round(int32(places)).Float64()
	return f
}
