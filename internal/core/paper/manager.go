// Package paper 实现模拟仓位的完整生命周期：入场、成交、出场、过期与风控记账。
// 重要：仅用于模拟，严禁真实下单。
package paper

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/account"
	"meanrev-paper-engine/internal/core/execution"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/sizing"
)

// Emitter 事件出口
// 实现方不得阻塞（仓位管理器持锁调用）
type Emitter interface {
	Emit(ev model.TradeEvent)
}

// OrderObserver 订单观察者（如延迟统计）
type OrderObserver interface {
	ObserveOrder(o *model.Order)
}

// PositionObserver 仓位结束观察者（CLOSED 或 MISSED）
type PositionObserver interface {
	ObservePosition(pos *model.Position)
}

// OrderObservers 依次通知多个订单观察者
type OrderObservers []OrderObserver

// ObserveOrder 实现 OrderObserver
func (obs OrderObservers) ObserveOrder(o *model.Order) {
	for _, ob := range obs {
		ob.ObserveOrder(o)
	}
}

// PositionObservers 依次通知多个仓位观察者
type PositionObservers []PositionObserver

// ObservePosition 实现 PositionObserver
func (ps PositionObservers) ObservePosition(pos *model.Position) {
	for _, ob := range ps {
		ob.ObservePosition(pos)
	}
}

// Executor 订单执行模拟
// *execution.Simulator 为默认实现
type Executor interface {
	EntryPrice(side model.Side, q model.Quote) float64
	ExitPrice(side model.Side, q model.Quote) float64
	SimulateLimit(market string, side model.Side, size, limitPx float64, q model.Quote, nowNs int64) *model.Order
	SimulateMarket(market string, side model.Side, size float64, q model.Quote, nowNs int64) *model.Order
	FillPending(o *model.Order, q model.Quote, elapsedNs, nowNs int64) *model.Order
}

var _ Executor = (*execution.Simulator)(nil)

// QuoteSource 最新报价来源，用于计算敞口
type QuoteSource interface {
	Quote(market string) (model.Quote, bool)
}

// Deps 仓位管理器依赖
type Deps struct {
	// Exec 执行模拟器（必填）
	Exec Executor
	// Sizer 仓位计算器（必填）
	Sizer *sizing.Sizer
	// Gate 开仓风控（必填）
	Gate *sizing.Gate
	// Account 模拟账户（必填）
	Account *account.Account
	// Quotes 最新报价；为空时敞口按入场价计算
	Quotes QuoteSource
	// Emitter 事件出口；可为空
	Emitter Emitter
	// Orders 订单观察者；可为空
	Orders OrderObserver
	// Done 仓位结束观察者；可为空
	Done PositionObserver
	// Logger 日志；可为空
	Logger *zap.Logger
}

// Settings 仓位管理参数
type Settings struct {
	// EntryMinConfidence 入场最低置信度（严格大于）
	EntryMinConfidence float64
	// OrderTTL 入场挂单有效期
	OrderTTL time.Duration
	// Exits 出场配置
	Exits config.ExitConfig
}

// SettingsFromConfig 由配置构建仓位管理参数
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		EntryMinConfidence: cfg.Strategy.EntryMinConfidence,
		OrderTTL:           time.Duration(cfg.Execution.OrderTTLSeconds) * time.Second,
		Exits:              cfg.Exits,
	}
}

// Manager 仓位管理器
// 独占修改 Position/Order；所有账户与仓位变更在 mu 下串行执行。
type Manager struct {
	set  Settings
	deps Deps
	log  *zap.Logger

	maxHoldNs  int64
	graceNs    int64
	minHoldNs  int64
	orderTTLNs int64

	mu sync.Mutex
	// positions 全部仓位（含已结束），按创建顺序
	positions []*model.Position
	// live 每个市场的存活仓位（PENDING 或 OPEN）
	live map[string]*model.Position
	// seq 每个市场的仓位序号
	seq map[string]uint64

	// guardsMu 保护 guards
	guardsMu sync.Mutex
	// guards 每个市场的入场互斥，防止同一市场并发入场
	guards map[string]*sync.Mutex
}

// NewManager 创建仓位管理器
func NewManager(set Settings, deps Deps) *Manager {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		set:        set,
		deps:       deps,
		log:        log,
		maxHoldNs:  int64(set.Exits.MaxHoldSeconds) * int64(time.Second),
		graceNs:    int64(set.Exits.ForceCloseGraceSeconds) * int64(time.Second),
		minHoldNs:  int64(set.Exits.MinHoldSeconds) * int64(time.Second),
		orderTTLNs: int64(set.OrderTTL),
		live:       make(map[string]*model.Position),
		seq:        make(map[string]uint64),
		guards:     make(map[string]*sync.Mutex),
	}
}

// Eligible 信号是否满足入场条件：有方向且置信度严格大于阈值
func (m *Manager) Eligible(sig *model.Signal) bool {
	return sig.IsActionable() && sig.Confidence > m.set.EntryMinConfidence
}

func (m *Manager) guard(market string) *sync.Mutex {
	m.guardsMu.Lock()
	defer m.guardsMu.Unlock()
	g, ok := m.guards[market]
	if !ok {
		g = &sync.Mutex{}
		m.guards[market] = g
	}
	return g
}

// Enter 根据信号尝试入场
// 顺序: 风控检查 → 计算数量 → 模拟 maker 限价单 → 按订单结果建仓
// 参数 sig: 可入场的信号
// 参数 q: 当前报价
// 参数 nowNs: 当前时间（纳秒）
// 返回: 新建仓位的快照；被拒时返回 nil 与拒绝原因
func (m *Manager) Enter(sig *model.Signal, q model.Quote, nowNs int64) (*model.Position, sizing.RejectReason) {
	if !sig.IsActionable() {
		return nil, sizing.RejectNone
	}
	if !q.Valid() {
		return nil, sizing.RejectNoQuote
	}
	market := sig.Market

	g := m.guard(market)
	if !g.TryLock() {
		return nil, sizing.RejectMarketBusy
	}
	defer g.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if reason := m.deps.Gate.Check(market, m.gateStateLocked(market, nowNs)); reason != sizing.RejectNone {
		return nil, reason
	}

	side := sig.Side()
	qty, notional := m.deps.Sizer.Size(market, sig, q.Mid(), m.deps.Account.Balance())
	limitPx := m.deps.Exec.EntryPrice(side, q)
	order := m.deps.Exec.SimulateLimit(market, side, qty, limitPx, q, nowNs)

	m.seq[market]++
	pos := &model.Position{
		ID:            fmt.Sprintf("%s-%d-%d", market, nowNs, m.seq[market]),
		Market:        market,
		Side:          side,
		Size:          qty,
		EntryPx:       limitPx,
		EntryTimeNs:   nowNs,
		Result:        model.ResultPending,
		OrderPlacedNs: nowNs,
	}
	m.onEntryResultLocked(pos, order, nowNs)

	m.log.Info("入场下单",
		zap.String("position", pos.ID),
		zap.String("market", market),
		zap.String("side", string(side)),
		zap.Float64("size", qty),
		zap.Float64("notional_usd", notional),
		zap.Float64("limit_px", limitPx),
		zap.Float64("z", sig.ZScore),
		zap.Float64("confidence", sig.Confidence),
		zap.String("order_status", string(order.Status)),
	)
	return pos.Clone(), sizing.RejectNone
}

// onEntryResultLocked 按入场订单结果确定仓位状态
// FILLED → OPEN；PENDING → PENDING（带过期时间）；CANCELLED → MISSED
func (m *Manager) onEntryResultLocked(pos *model.Position, order *model.Order, nowNs int64) {
	pos.EntryOrder = order
	m.positions = append(m.positions, pos)
	m.deps.Account.RecordEntry()
	m.observeOrder(order)
	m.emit(pos, model.ActionEntry, order, nowNs)

	switch order.Status {
	case model.OrderFilled:
		pos.Status = model.PositionOpen
		pos.EntryPx = order.AvgFillPx
		pos.EntryTimeNs = nowNs
		pos.FeesTotal = order.FeesPaid
		m.deps.Account.AddFee(order.FeesPaid)
		m.deps.Account.RecordFill()
		m.live[pos.Market] = pos
		m.emit(pos, model.ActionFill, order, nowNs)
	case model.OrderPending:
		pos.Status = model.PositionPending
		pos.OrderExpiresNs = nowNs + m.orderTTLNs
		m.live[pos.Market] = pos
	default:
		pos.Status = model.PositionMissed
		pos.Result = model.ResultMissed
		pos.ExitReason = model.ExitCancelled
		m.deps.Account.RecordMiss()
		m.emit(pos, model.ActionCancel, order, nowNs)
		m.observeDone(pos)
	}
}

// gateStateLocked 构造风控检查所需的状态快照
func (m *Manager) gateStateLocked(market string, nowNs int64) sizing.GateState {
	st := sizing.GateState{
		LiveCount:      len(m.live),
		RealizedPnLUSD: m.deps.Account.RealizedPnL(),
		DayPnLUSD:      m.deps.Account.DayPnL(nowNs),
		BalanceUSD:     m.deps.Account.Balance(),
	}
	_, st.MarketLive = m.live[market]
	st.ExposureUSD = m.exposureLocked()
	return st
}

// exposureLocked OPEN 仓位 |size × mid| 之和
// 缺少报价时按入场价计算
func (m *Manager) exposureLocked() float64 {
	var total float64
	for mk, pos := range m.live {
		if pos.Status != model.PositionOpen {
			continue
		}
		px := pos.EntryPx
		if m.deps.Quotes != nil {
			if q, ok := m.deps.Quotes.Quote(mk); ok && q.Valid() {
				px = q.Mid()
			}
		}
		total += math.Abs(pos.Size * px)
	}
	return total
}

func (m *Manager) emit(pos *model.Position, action model.TradeAction, order *model.Order, nowNs int64) {
	if m.deps.Emitter == nil {
		return
	}
	m.deps.Emitter.Emit(model.NewTradeEvent(pos, action, order, nowNs))
}

func (m *Manager) observeOrder(o *model.Order) {
	if m.deps.Orders != nil && o != nil {
		m.deps.Orders.ObserveOrder(o)
	}
}

func (m *Manager) observeDone(pos *model.Position) {
	if m.deps.Done != nil {
		m.deps.Done.ObservePosition(pos.Clone())
	}
}

// Positions 全部仓位快照（按创建顺序）
func (m *Manager) Positions() []*model.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Position, len(m.positions))
	for i, p := range m.positions {
		out[i] = p.Clone()
	}
	return out
}

// Live 指定市场的存活仓位快照
func (m *Manager) Live(market string) (*model.Position, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.live[market]
	if !ok {
		return nil, false
	}
	return pos.Clone(), true
}

// LiveCount 存活仓位数
func (m *Manager) LiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// Exposure 当前敞口（USD）
func (m *Manager) Exposure() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exposureLocked()
}

// Account 账户
func (m *Manager) Account() *account.Account {
	return m.deps.Account
}
