// Package execution 模拟订单执行：延迟、滑点、手续费与 maker-only 规则。
// 所有随机性来自按市场划分的种子随机源，相同种子下回放结果可复现。
package execution

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/fill"
	"meanrev-paper-engine/internal/core/model"
)

// marketState 单市场随机源与订单序号
type marketState struct {
	rnd *rand.Rand
	seq uint64
}

// Simulator 执行模拟器
type Simulator struct {
	cfg  config.ExecutionConfig
	fees config.FeesConfig
	seed int64

	fill *fill.Simulator

	mu      sync.Mutex
	markets map[string]*marketState
}

// NewSimulator 创建执行模拟器
// 参数 cfg: 执行模拟配置
// 参数 fees: 手续费配置
// 参数 seed: 随机数种子，每个市场的随机源为 seed XOR fnv64(market)
func NewSimulator(cfg config.ExecutionConfig, fees config.FeesConfig, seed int64) *Simulator {
	return &Simulator{
		cfg:     cfg,
		fees:    fees,
		seed:    seed,
		fill:    fill.NewSimulator(cfg.BaseDepthUSD),
		markets: make(map[string]*marketState),
	}
}

func (s *Simulator) state(market string) *marketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.markets[market]
	if !ok {
		h := fnv.New64a()
		_, _ = h.Write([]byte(market))
		st = &marketState{rnd: rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))}
		s.markets[market] = st
	}
	return st
}

// nextID 生成市场内递增的订单 ID
func (st *marketState) nextID(market string) string {
	st.seq++
	return fmt.Sprintf("%s-%06d", market, st.seq)
}

// uniform 返回 [lo, hi) 内均匀分布的随机数
func (st *marketState) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*st.rnd.Float64()
}

// LimitPrice 计算不穿越价差的 maker 挂单价
// BUY: bid × (1 - offset/100)；SELL: ask × (1 + offset/100)
func LimitPrice(side model.Side, q model.Quote, offsetPct float64) float64 {
	if side == model.SideBuy {
		return q.Bid * (1 - offsetPct/100)
	}
	return q.Ask * (1 + offsetPct/100)
}

// EntryPrice 入场挂单价
func (s *Simulator) EntryPrice(side model.Side, q model.Quote) float64 {
	return LimitPrice(side, q, s.cfg.EntryOffsetPct)
}

// ExitPrice 出场挂单价
// 参数 side: 出场订单方向（多头平仓为 SELL，空头平仓为 BUY）
func (s *Simulator) ExitPrice(side model.Side, q model.Quote) float64 {
	return LimitPrice(side, q, s.cfg.ExitOffsetPct)
}

// SimulateMarket 模拟市价单，总是完全成交
// 滑点% = slippage×100 + impact×(notional/refVolume)×100 + spread%×crossFraction
// 手续费 = 成交名义价值 × taker 费率
func (s *Simulator) SimulateMarket(market string, side model.Side, size float64, q model.Quote, nowNs int64) *model.Order {
	st := s.state(market)
	o := model.NewOrder(st.nextID(market), market, side, model.OrderMarket, size, 0, nowNs)

	jitter := st.uniform(-s.cfg.MarketLatencyJitterMs, s.cfg.MarketLatencyJitterMs)
	o.LatencyMs = math.Max(s.cfg.MinMarketLatencyMs, s.cfg.MarketLatencyMs+jitter)

	touch := q.Bid
	if side == model.SideBuy {
		touch = q.Ask
	}
	notional := size * touch
	impact := 0.0
	if s.cfg.ReferenceVolumeUSD > 0 {
		impact = s.cfg.ImpactFactor * (notional / s.cfg.ReferenceVolumeUSD) * 100
	}
	slippagePct := s.cfg.SlippageFactor*100 + impact + q.SpreadPct()*s.cfg.SpreadCrossFraction

	px := q.Bid * (1 - slippagePct/100)
	if side == model.SideBuy {
		px = q.Ask * (1 + slippagePct/100)
	}
	o.Fill(px, size*px*s.fees.TakerRate)
	return o
}

// SimulateLimit 模拟 post-only 限价单
// 穿越价差: CANCELLED（快速撤单延迟）
// 否则由成交模拟器判定 FILLED（maker 费率，负数为返佣）或 PENDING
func (s *Simulator) SimulateLimit(market string, side model.Side, size, limitPx float64, q model.Quote, nowNs int64) *model.Order {
	st := s.state(market)
	o := model.NewOrder(st.nextID(market), market, side, model.OrderLimit, size, limitPx, nowNs)

	if fill.CrossesSpread(side, limitPx, q) {
		o.LatencyMs = st.uniform(s.cfg.CancelLatencyMinMs, s.cfg.CancelLatencyMaxMs)
		o.Cancel()
		return o
	}

	o.LatencyMs = st.uniform(s.cfg.LimitLatencyMinMs, s.cfg.LimitLatencyMaxMs)
	if s.fill.WillFill(st.rnd, side, limitPx, q, size*limitPx) {
		o.Fill(limitPx, size*limitPx*s.fees.MakerRate)
	}
	return o
}

// FillPending 复查挂单是否成交
// 成交概率随挂单时长线性上升: p = min(cap, elapsed / ramp)，且需通过成交模拟器
// 参数 o: PENDING 状态的订单（不会被修改）
// 参数 elapsedNs: 自挂单以来经过的时间
// 返回: 成交时返回新的 FILLED 订单，否则返回 nil
func (s *Simulator) FillPending(o *model.Order, q model.Quote, elapsedNs, nowNs int64) *model.Order {
	if o == nil || o.Status != model.OrderPending {
		return nil
	}
	st := s.state(o.Market)

	ramp := float64(s.cfg.PendingFillRampSeconds)
	p := s.cfg.PendingFillCap
	if ramp > 0 {
		p = math.Min(s.cfg.PendingFillCap, float64(elapsedNs)/1e9/ramp)
	}
	if !(st.rnd.Float64() < p) {
		return nil
	}
	if !s.fill.WillFill(st.rnd, o.Side, o.LimitPx, q, o.Size*o.LimitPx) {
		return nil
	}

	filled := model.NewOrder(st.nextID(o.Market), o.Market, o.Side, model.OrderLimit, o.Size, o.LimitPx, nowNs)
	filled.LatencyMs = o.LatencyMs
	filled.Fill(o.LimitPx, o.Size*o.LimitPx*s.fees.MakerRate)
	return filled
}

// MakerRate maker 费率
func (s *Simulator) MakerRate() float64 { return s.fees.MakerRate }

// TakerRate taker 费率
func (s *Simulator) TakerRate() float64 { return s.fees.TakerRate }
