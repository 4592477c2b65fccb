// Package perf 按市场聚合已结束仓位的表现统计。
// EV = p × R - (1 - p) × L
// p_required = L / (R + L)
package perf

import (
	"math"
	"sort"
	"strconv"
	"sync"

	"meanrev-paper-engine/internal/core/model"
)

// MarketStats 单个市场的表现统计（累计）
// 金额单位：USD，已扣除手续费。
type MarketStats struct {
	// Market 市场标识；汇总行为 "ALL"
	Market string `json:"market"`
	// Trades 已平仓笔数
	Trades int64 `json:"trades"`
	// Wins 盈利笔数（净利 > 0）
	Wins int64 `json:"wins"`
	// Losses 亏损笔数（净利 ≤ 0）
	Losses int64 `json:"losses"`
	// Misses 未成交笔数（撤单或过期）
	Misses int64 `json:"misses"`
	// TotalPnLUSD 累计盈亏
	TotalPnLUSD float64 `json:"total_pnl_usd"`
	// GrossProfitUSD 盈利笔的盈利之和
	GrossProfitUSD float64 `json:"gross_profit_usd"`
	// GrossLossUSD 亏损笔的亏损绝对值之和
	GrossLossUSD float64 `json:"gross_loss_usd"`
	// FeesUSD 累计手续费（负数为返佣）
	FeesUSD float64 `json:"fees_usd"`
	// BestUSD 单笔最佳
	BestUSD float64 `json:"best_usd"`
	// WorstUSD 单笔最差
	WorstUSD float64 `json:"worst_usd"`
	// WinRate 胜率 p
	WinRate float64 `json:"win_rate"`
	// AvgWinUSD 平均盈利 R
	AvgWinUSD float64 `json:"avg_win_usd"`
	// AvgLossUSD 平均亏损 L（绝对值）
	AvgLossUSD float64 `json:"avg_loss_usd"`
	// ProfitFactor 盈利因子；无亏损时为 +Inf
	ProfitFactor float64 `json:"-"`
	// EV 每笔期望值
	EV float64 `json:"ev_usd"`
	// PRequired 盈亏平衡胜率
	PRequired float64 `json:"p_required"`
	// AvgHoldingMs 平均持仓时长（毫秒）
	AvgHoldingMs float64 `json:"avg_holding_ms"`
	// Exits 各退出原因的次数
	Exits map[model.ExitReason]int64 `json:"exits,omitempty"`

	holdingNsSum int64
}

// ProfitFactorString ProfitFactor 的可序列化形式（JSON 不支持 Inf）
func (s MarketStats) ProfitFactorString() string {
	if math.IsInf(s.ProfitFactor, 1) {
		return "inf"
	}
	return strconv.FormatFloat(s.ProfitFactor, 'f', 4, 64)
}

func (s *MarketStats) add(pos *model.Position) {
	if pos.Status == model.PositionMissed {
		s.Misses++
		return
	}
	pnl := pos.PnLUSD
	if s.Trades == 0 || pnl > s.BestUSD {
		s.BestUSD = pnl
	}
	if s.Trades == 0 || pnl < s.WorstUSD {
		s.WorstUSD = pnl
	}
	s.Trades++
	s.TotalPnLUSD += pnl
	s.FeesUSD += pos.FeesTotal
	s.holdingNsSum += pos.HoldingNs(0)
	if pnl > 0 {
		s.Wins++
		s.GrossProfitUSD += pnl
	} else {
		s.Losses++
		s.GrossLossUSD += -pnl
	}
	if pos.ExitReason != "" {
		if s.Exits == nil {
			s.Exits = make(map[model.ExitReason]int64)
		}
		s.Exits[pos.ExitReason]++
	}
}

// finish 计算派生指标
func (s MarketStats) finish() MarketStats {
	if s.Exits != nil {
		exits := make(map[model.ExitReason]int64, len(s.Exits))
		for k, v := range s.Exits {
			exits[k] = v
		}
		s.Exits = exits
	}
	if s.Trades == 0 {
		s.PRequired = 1
		return s
	}
	n := float64(s.Trades)
	s.WinRate = float64(s.Wins) / n
	s.AvgHoldingMs = float64(s.holdingNsSum) / n / 1e6
	if s.Wins > 0 {
		s.AvgWinUSD = s.GrossProfitUSD / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLossUSD = s.GrossLossUSD / float64(s.Losses)
	}
	switch {
	case s.GrossLossUSD > 0:
		s.ProfitFactor = s.GrossProfitUSD / s.GrossLossUSD
	case s.GrossProfitUSD > 0:
		s.ProfitFactor = math.Inf(1)
	}

	p, R, L := s.WinRate, s.AvgWinUSD, s.AvgLossUSD
	s.EV = p*R - (1-p)*L
	if den := R + L; den > 0 {
		s.PRequired = L / den
	} else {
		s.PRequired = 1
	}
	return s
}

// Tracker 按市场聚合仓位表现
// 并发安全；实现仓位管理器的结束观察者接口。
type Tracker struct {
	mu      sync.Mutex
	markets map[string]*MarketStats
	total   MarketStats
}

// NewTracker 创建表现追踪器
func NewTracker() *Tracker {
	return &Tracker{
		markets: make(map[string]*MarketStats),
		total:   MarketStats{Market: "ALL"},
	}
}

// ObservePosition 记录一个已结束的仓位
// 仅统计 CLOSED 与 MISSED，其他状态忽略
func (t *Tracker) ObservePosition(pos *model.Position) {
	if pos == nil || (pos.Status != model.PositionClosed && pos.Status != model.PositionMissed) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	ms, ok := t.markets[pos.Market]
	if !ok {
		ms = &MarketStats{Market: pos.Market}
		t.markets[pos.Market] = ms
	}
	ms.add(pos)
	t.total.add(pos)
}

// Market 获取单个市场的统计快照
func (t *Tracker) Market(market string) (MarketStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ms, ok := t.markets[market]
	if !ok {
		return MarketStats{Market: market, PRequired: 1}, false
	}
	return ms.finish(), true
}

// Total 获取全部市场的汇总统计
func (t *Tracker) Total() MarketStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total.finish()
}

// All 获取全部市场的统计快照（按市场排序）
func (t *Tracker) All() []MarketStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]MarketStats, 0, len(t.markets))
	for _, ms := range t.markets {
		out = append(out, ms.finish())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Market < out[j].Market })
	return out
}
