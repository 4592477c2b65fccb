package paper

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/model"
)

// Review 复查市场的存活仓位
// PENDING: 先检查过期，再尝试挂单成交
// OPEN: 更新浮动盈亏，按优先级检查出场条件:
// 超时/强平 > 止盈 > 止损 > 信号退出 > 紧急止损；未满最短持仓时只检查超时
// 参数 market: 市场标识
// 参数 q: 当前报价；无效时跳过本次复查
// 参数 sig: 本 tick 的最新信号（可为 nil）
// 参数 nowNs: 当前时间（纳秒）
// 返回: 本次发生状态变化的仓位快照
func (m *Manager) Review(market string, q model.Quote, sig *model.Signal, nowNs int64) []*model.Position {
	if !q.Valid() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.live[market]
	if !ok {
		return nil
	}

	before := pos.Status
	switch pos.Status {
	case model.PositionPending:
		m.reviewPendingLocked(pos, q, nowNs)
	case model.PositionOpen:
		m.reviewOpenLocked(pos, q, sig, nowNs)
	}
	if pos.Status == before {
		return nil
	}
	return []*model.Position{pos.Clone()}
}

// ReviewAll 对所有有存活仓位的市场执行复查
// 参数 quotes: 报价来源；缺少报价的市场跳过
func (m *Manager) ReviewAll(quotes QuoteSource, signals map[string]*model.Signal, nowNs int64) []*model.Position {
	m.mu.Lock()
	markets := make([]string, 0, len(m.live))
	for mk := range m.live {
		markets = append(markets, mk)
	}
	m.mu.Unlock()
	sort.Strings(markets)

	var changed []*model.Position
	for _, mk := range markets {
		q, ok := quotes.Quote(mk)
		if !ok {
			continue
		}
		changed = append(changed, m.Review(mk, q, signals[mk], nowNs)...)
	}
	return changed
}

func (m *Manager) reviewPendingLocked(pos *model.Position, q model.Quote, nowNs int64) {
	// 过期检查与随机性无关，优先执行
	if nowNs > pos.OrderExpiresNs {
		expired := pos.EntryOrder.Clone()
		expired.Cancel()
		pos.EntryOrder = expired
		pos.Status = model.PositionMissed
		pos.Result = model.ResultMissed
		pos.ExitReason = model.ExitExpired
		pos.ExitTimeNs = nowNs
		delete(m.live, pos.Market)
		m.deps.Account.RecordMiss()
		m.emit(pos, model.ActionExpire, expired, nowNs)
		m.observeDone(pos)
		m.log.Info("入场挂单过期", zap.String("position", pos.ID), zap.String("market", pos.Market))
		return
	}

	filled := m.deps.Exec.FillPending(pos.EntryOrder, q, nowNs-pos.OrderPlacedNs, nowNs)
	if filled == nil {
		return
	}
	pos.EntryOrder = filled
	pos.Status = model.PositionOpen
	pos.EntryPx = filled.AvgFillPx
	pos.EntryTimeNs = nowNs
	pos.FeesTotal = filled.FeesPaid
	m.deps.Account.AddFee(filled.FeesPaid)
	m.deps.Account.RecordFill()
	m.observeOrder(filled)
	m.emit(pos, model.ActionFill, filled, nowNs)
	m.log.Info("入场挂单成交",
		zap.String("position", pos.ID),
		zap.String("market", pos.Market),
		zap.Float64("entry_px", pos.EntryPx),
	)
}

func (m *Manager) reviewOpenLocked(pos *model.Position, q model.Quote, sig *model.Signal, nowNs int64) {
	ex := m.set.Exits

	// 浮动盈亏：多头按买价、空头按卖价，扣除已付手续费
	pnl := pos.GrossPnL(pos.MarkPx(q)) - pos.FeesTotal
	pos.PnLUSD = pnl
	if n := pos.EntryNotional(); n > 0 {
		pos.PnLPct = pnl / n * 100
	}
	pos.MaxProfitUSD = math.Max(pos.MaxProfitUSD, pnl)
	pos.MaxLossUSD = math.Min(pos.MaxLossUSD, pnl)

	holding := nowNs - pos.EntryTimeNs

	// 1. 超时：先尝试挂单出场，超过宽限期强制平仓
	if m.maxHoldNs > 0 && holding > m.maxHoldNs {
		if holding > m.maxHoldNs+m.graceNs {
			m.forceCloseLocked(pos, q, nowNs)
			return
		}
		m.attemptExitLocked(pos, q, model.ExitTimeout, nowNs)
		return
	}

	// 最短持仓期内不检查其他条件
	if holding < m.minHoldNs {
		return
	}

	var reason model.ExitReason
	switch {
	case ex.ProfitTargetUSD > 0 && pnl > ex.ProfitTargetUSD:
		reason = model.ExitTakeProfit
	case ex.StopLossUSD > 0 && pnl < -ex.StopLossUSD:
		reason = model.ExitStopLoss
	default:
		reason = m.signalExit(pos, sig)
		if reason == "" && ex.EmergencyStopPct > 0 && pnl < -ex.EmergencyStopPct/100*pos.EntryNotional() {
			reason = model.ExitEmergencyStop
		}
	}
	if reason != "" {
		m.attemptExitLocked(pos, q, reason, nowNs)
	}
}

// signalExit 信号类退出条件
func (m *Manager) signalExit(pos *model.Position, sig *model.Signal) model.ExitReason {
	if sig == nil || sig.Market != pos.Market {
		return ""
	}
	ex := m.set.Exits
	switch ex.SignalExit {
	case config.SignalExitReversal:
		if sig.IsActionable() && sig.Side() != pos.Side && sig.Confidence > ex.ReversalMinConfidence {
			return model.ExitSignalReversal
		}
	case config.SignalExitZNeutral:
		if math.Abs(sig.ZScore) < ex.ZNeutralBand {
			return model.ExitZNeutral
		}
	}
	return ""
}

// attemptExitLocked 以 maker 限价单尝试出场
// 未成交（撤单或挂单）时仓位保持 OPEN，下一个 tick 重试
func (m *Manager) attemptExitLocked(pos *model.Position, q model.Quote, reason model.ExitReason, nowNs int64) {
	exitSide := pos.Side.Opposite()
	px := m.deps.Exec.ExitPrice(exitSide, q)
	order := m.deps.Exec.SimulateLimit(pos.Market, exitSide, pos.Size, px, q, nowNs)
	pos.ExitAttempts++
	m.observeOrder(order)

	if !order.IsFilled() {
		m.log.Debug("出场挂单未成交",
			zap.String("position", pos.ID),
			zap.String("reason", string(reason)),
			zap.String("order_status", string(order.Status)),
			zap.Int("attempts", pos.ExitAttempts),
		)
		return
	}
	m.closeLocked(pos, order.AvgFillPx, order, reason, nowNs)
}

// forceCloseLocked 超时宽限期后强制平仓
// touch: 按对手价直接平仓，不产生手续费；market: 模拟市价单
func (m *Manager) forceCloseLocked(pos *model.Position, q model.Quote, nowNs int64) {
	if m.set.Exits.ForceCloseMode == config.ForceCloseMarket {
		order := m.deps.Exec.SimulateMarket(pos.Market, pos.Side.Opposite(), pos.Size, q, nowNs)
		m.observeOrder(order)
		m.closeLocked(pos, order.AvgFillPx, order, model.ExitTimeout, nowNs)
		return
	}
	m.closeLocked(pos, pos.MarkPx(q), nil, model.ExitTimeout, nowNs)
}

// closeLocked 平仓并入账
// 已实现盈亏 = 方向 × (出场价 - 入场价) × 数量 - 手续费合计；余额仅在此处变动一次
func (m *Manager) closeLocked(pos *model.Position, exitPx float64, order *model.Order, reason model.ExitReason, nowNs int64) {
	if pos.Status != model.PositionOpen {
		return
	}
	if order != nil {
		pos.FeesTotal += order.FeesPaid
		m.deps.Account.AddFee(order.FeesPaid)
	}
	pos.ExitOrder = order
	pos.ExitPx = exitPx
	pos.ExitTimeNs = nowNs
	pos.ExitReason = reason

	realized := pos.GrossPnL(exitPx) - pos.FeesTotal
	pos.PnLUSD = realized
	if n := pos.EntryNotional(); n > 0 {
		pos.PnLPct = realized / n * 100
	}
	pos.Result = model.ResultLoss
	if realized > 0 {
		pos.Result = model.ResultWin
	}
	pos.Status = model.PositionClosed

	delete(m.live, pos.Market)
	m.deps.Account.Realize(realized, nowNs)
	m.emit(pos, model.ActionExit, order, nowNs)
	m.observeDone(pos)

	m.log.Info("平仓",
		zap.String("position", pos.ID),
		zap.String("market", pos.Market),
		zap.String("reason", string(reason)),
		zap.Float64("entry_px", pos.EntryPx),
		zap.Float64("exit_px", exitPx),
		zap.Float64("pnl_usd", realized),
		zap.Duration("holding", pos.HoldDuration(nowNs)),
	)
}
