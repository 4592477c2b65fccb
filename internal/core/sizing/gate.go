package sizing

import (
	"meanrev-paper-engine/internal/config"
)

// RejectReason 开仓被拒原因
// 拒绝是正常结果而不是错误；空字符串表示通过
type RejectReason string

const (
	// RejectNone 通过
	RejectNone RejectReason = ""
	// RejectMarketBusy 该市场已有存活仓位（PENDING/OPEN）
	RejectMarketBusy RejectReason = "market_busy"
	// RejectMaxPositions 存活仓位数达到上限
	RejectMaxPositions RejectReason = "max_open_positions"
	// RejectMaxExposure 敞口达到上限
	RejectMaxExposure RejectReason = "max_exposure"
	// RejectDailyLoss 亏损熔断
	RejectDailyLoss RejectReason = "daily_loss_limit"
	// RejectNoBalance 余额不足
	RejectNoBalance RejectReason = "no_balance"
	// RejectMarketNotAllowed 市场不在白名单
	RejectMarketNotAllowed RejectReason = "market_not_allowed"
	// RejectNoQuote 缺少有效报价
	RejectNoQuote RejectReason = "no_quote"
)

// GateState 风控检查所需的账户与仓位快照
// 由仓位管理器在持锁状态下构造
type GateState struct {
	// MarketLive 该市场是否已有存活仓位
	MarketLive bool
	// LiveCount 全局存活仓位数
	LiveCount int
	// ExposureUSD OPEN 仓位 |size × mid| 之和
	ExposureUSD float64
	// RealizedPnLUSD 自启动以来的累计已实现盈亏
	RealizedPnLUSD float64
	// DayPnLUSD 当日（UTC）已实现盈亏
	DayPnLUSD float64
	// BalanceUSD 当前余额
	BalanceUSD float64
}

// Gate 开仓风控
type Gate struct {
	cfg     config.RiskConfig
	allowed map[string]struct{}
}

// NewGate 创建风控检查器
// 参数 allowed: 允许交易的市场；为空表示不限制
func NewGate(cfg config.RiskConfig, allowed []string) *Gate {
	g := &Gate{cfg: cfg}
	if len(allowed) > 0 {
		g.allowed = make(map[string]struct{}, len(allowed))
		for _, m := range allowed {
			g.allowed[m] = struct{}{}
		}
	}
	return g
}

// Check 检查是否允许在 market 开新仓
// 按顺序检查，返回第一个不满足的条件
func (g *Gate) Check(market string, st GateState) RejectReason {
	if g.allowed != nil {
		if _, ok := g.allowed[market]; !ok {
			return RejectMarketNotAllowed
		}
	}
	if st.MarketLive {
		return RejectMarketBusy
	}
	if g.cfg.MaxOpenPositions > 0 && st.LiveCount >= g.cfg.MaxOpenPositions {
		return RejectMaxPositions
	}
	if g.cfg.MaxExposureUSD > 0 && st.ExposureUSD >= g.cfg.MaxExposureUSD {
		return RejectMaxExposure
	}
	if g.cfg.DailyLossLimitUSD > 0 && g.lossPnL(st) < -g.cfg.DailyLossLimitUSD {
		return RejectDailyLoss
	}
	if st.BalanceUSD <= 0 {
		return RejectNoBalance
	}
	return RejectNone
}

// lossPnL 熔断使用的已实现盈亏；未配置区间时按累计计算
func (g *Gate) lossPnL(st GateState) float64 {
	if g.cfg.LossWindow == config.LossWindowDaily {
		return st.DayPnLUSD
	}
	return st.RealizedPnLUSD
}
