package paper

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/account"
	"meanrev-paper-engine/internal/core/execution"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/sizing"
)

const sec = int64(time.Second)

const (
	makerRate = -0.0002
	takerRate = 0.0005
)

// fakeExec 可控结果的执行模拟
// limit 依次消费 limitResults，耗尽后默认成交
type fakeExec struct {
	mu           sync.Mutex
	limitResults []model.OrderStatus
	pendingFill  bool
	seq          int
	limitCalls   int
	marketCalls  int
}

func (f *fakeExec) EntryPrice(side model.Side, q model.Quote) float64 {
	return execution.LimitPrice(side, q, 0.05)
}

func (f *fakeExec) ExitPrice(side model.Side, q model.Quote) float64 {
	return execution.LimitPrice(side, q, 0.05)
}

func (f *fakeExec) nextID() string {
	f.seq++
	return fmt.Sprintf("o-%d", f.seq)
}

func (f *fakeExec) SimulateLimit(market string, side model.Side, size, limitPx float64, q model.Quote, nowNs int64) *model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limitCalls++
	o := model.NewOrder(f.nextID(), market, side, model.OrderLimit, size, limitPx, nowNs)
	status := model.OrderFilled
	if len(f.limitResults) > 0 {
		status = f.limitResults[0]
		f.limitResults = f.limitResults[1:]
	}
	switch status {
	case model.OrderFilled:
		o.Fill(limitPx, size*limitPx*makerRate)
	case model.OrderCancelled:
		o.Cancel()
	}
	return o
}

func (f *fakeExec) SimulateMarket(market string, side model.Side, size float64, q model.Quote, nowNs int64) *model.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketCalls++
	o := model.NewOrder(f.nextID(), market, side, model.OrderMarket, size, 0, nowNs)
	px := q.Bid
	if side == model.SideBuy {
		px = q.Ask
	}
	o.Fill(px, size*px*takerRate)
	return o
}

func (f *fakeExec) FillPending(o *model.Order, q model.Quote, elapsedNs, nowNs int64) *model.Order {
	if !f.pendingFill {
		return nil
	}
	filled := model.NewOrder(f.nextID(), o.Market, o.Side, model.OrderLimit, o.Size, o.LimitPx, nowNs)
	filled.Fill(o.LimitPx, o.Size*o.LimitPx*makerRate)
	return filled
}

// recorder 收集事件与结束仓位
type recorder struct {
	mu     sync.Mutex
	events []model.TradeEvent
	done   []*model.Position
	orders int
}

func (r *recorder) Emit(ev model.TradeEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) ObservePosition(pos *model.Position) {
	r.mu.Lock()
	r.done = append(r.done, pos)
	r.mu.Unlock()
}

func (r *recorder) ObserveOrder(*model.Order) {
	r.mu.Lock()
	r.orders++
	r.mu.Unlock()
}

func (r *recorder) actions() []model.TradeAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.TradeAction, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Action
	}
	return out
}

type fixture struct {
	m    *Manager
	exec *fakeExec
	rec  *recorder
	acct *account.Account
}

func scalpExits() config.ExitConfig {
	return config.ExitConfig{
		MaxHoldSeconds:         30,
		ForceCloseGraceSeconds: 5,
		ForceCloseMode:         config.ForceCloseTouch,
		ProfitTargetUSD:        0.5,
		StopLossUSD:            0.25,
		SignalExit:             config.SignalExitReversal,
		ReversalMinConfidence:  60,
	}
}

func newFixture(t *testing.T, exits config.ExitConfig, risk config.RiskConfig) *fixture {
	t.Helper()
	fx := &fixture{
		exec: &fakeExec{},
		rec:  &recorder{},
		acct: account.New(50),
	}
	sizer := sizing.NewSizer(config.SizingConfig{
		Policy:              config.PolicyFixedNotional,
		DefaultNotionalUSD:  10,
		BalanceReserve:      0.95,
		DefaultQtyPrecision: 6,
	}, nil)
	fx.m = NewManager(Settings{
		EntryMinConfidence: 75,
		OrderTTL:           30 * time.Second,
		Exits:              exits,
	}, Deps{
		Exec:    fx.exec,
		Sizer:   sizer,
		Gate:    sizing.NewGate(risk, nil),
		Account: fx.acct,
		Emitter: fx.rec,
		Orders:  fx.rec,
		Done:    fx.rec,
		Logger:  zaptest.NewLogger(t),
	})
	return fx
}

func defaultRisk() config.RiskConfig {
	return config.RiskConfig{MaxOpenPositions: 5, MaxExposureUSD: 10000, DailyLossLimitUSD: 1000}
}

func quote(market string, bid, ask float64) model.Quote {
	return model.Quote{Market: market, Bid: bid, Ask: ask}
}

func buySignal(market string) *model.Signal {
	return &model.Signal{Market: market, Type: model.SignalBuy, Confidence: 80, ZScore: -2}
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano()

func TestEligible(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	assert.True(t, fx.m.Eligible(&model.Signal{Type: model.SignalSell, Confidence: 75.01}))
	assert.False(t, fx.m.Eligible(&model.Signal{Type: model.SignalSell, Confidence: 75}))
	assert.False(t, fx.m.Eligible(&model.Signal{Type: model.SignalNeutral, Confidence: 99}))
	assert.False(t, fx.m.Eligible(nil))
}

func TestEnter_FilledOpensPosition(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	q := quote("BTC-USD", 100, 100.01)

	pos, reason := fx.m.Enter(buySignal("BTC-USD"), q, t0)
	require.Equal(t, sizing.RejectNone, reason)
	require.NotNil(t, pos)

	assert.Equal(t, model.PositionOpen, pos.Status)
	assert.Equal(t, model.SideBuy, pos.Side)
	assert.InDelta(t, 99.95, pos.EntryPx, 1e-9)
	assert.InDelta(t, pos.Size*99.95*makerRate, pos.FeesTotal, 1e-12)
	assert.Less(t, pos.FeesTotal, 0.0, "maker 返佣应为负数手续费")
	assert.Equal(t, []model.TradeAction{model.ActionEntry, model.ActionFill}, fx.rec.actions())

	snap := fx.acct.Snapshot(t0)
	assert.Equal(t, int64(1), snap.Entries)
	assert.Equal(t, int64(1), snap.Fills)
	assert.Equal(t, 50.0, snap.BalanceUSD, "入场不改变余额")
	assert.Equal(t, 1, fx.m.LiveCount())
}

func TestEnter_CancelledIsMissed(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.exec.limitResults = []model.OrderStatus{model.OrderCancelled}

	pos, reason := fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	require.Equal(t, sizing.RejectNone, reason)
	assert.Equal(t, model.PositionMissed, pos.Status)
	assert.Equal(t, model.ResultMissed, pos.Result)
	assert.Equal(t, model.ExitCancelled, pos.ExitReason)
	assert.Equal(t, 0, fx.m.LiveCount())
	assert.Equal(t, []model.TradeAction{model.ActionEntry, model.ActionCancel}, fx.rec.actions())
	assert.Len(t, fx.rec.done, 1)
}

func TestEnter_RejectsInvalidQuoteAndNeutral(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	_, reason := fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 0, 100), t0)
	assert.Equal(t, sizing.RejectNoQuote, reason)

	pos, reason := fx.m.Enter(&model.Signal{Market: "BTC-USD", Type: model.SignalNeutral}, quote("BTC-USD", 100, 101), t0)
	assert.Nil(t, pos)
	assert.Equal(t, sizing.RejectNone, reason)
	assert.Zero(t, fx.exec.limitCalls)
}

func TestEnter_GateRejectsSixthPosition(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	for i := 0; i < 5; i++ {
		mk := fmt.Sprintf("M%d-USD", i)
		_, reason := fx.m.Enter(buySignal(mk), quote(mk, 100, 100.01), t0)
		require.Equal(t, sizing.RejectNone, reason)
	}
	require.Equal(t, 5, fx.m.LiveCount())

	pos, reason := fx.m.Enter(buySignal("M5-USD"), quote("M5-USD", 100, 100.01), t0)
	assert.Nil(t, pos)
	assert.Equal(t, sizing.RejectMaxPositions, reason)

	// 同一市场重复入场
	_, reason = fx.m.Enter(buySignal("M0-USD"), quote("M0-USD", 100, 100.01), t0)
	assert.Equal(t, sizing.RejectMarketBusy, reason)
}

func TestEnter_LossBreakerIsCumulative(t *testing.T) {
	risk := defaultRisk()
	risk.DailyLossLimitUSD = 1
	fx := newFixture(t, scalpExits(), risk)
	fx.acct.Realize(-5, t0)
	q := quote("BTC-USD", 100, 100.01)

	_, reason := fx.m.Enter(buySignal("BTC-USD"), q, t0)
	assert.Equal(t, sizing.RejectDailyLoss, reason)

	// 跨过 UTC 日界后累计亏损仍然有效
	pos, reason := fx.m.Enter(buySignal("BTC-USD"), q, t0+24*3600*sec)
	assert.Nil(t, pos)
	assert.Equal(t, sizing.RejectDailyLoss, reason)
	assert.Zero(t, fx.exec.limitCalls)
}

func TestEnter_DailyLossWindowResets(t *testing.T) {
	risk := defaultRisk()
	risk.DailyLossLimitUSD = 1
	risk.LossWindow = config.LossWindowDaily
	fx := newFixture(t, scalpExits(), risk)
	fx.acct.Realize(-5, t0)
	q := quote("BTC-USD", 100, 100.01)

	_, reason := fx.m.Enter(buySignal("BTC-USD"), q, t0)
	assert.Equal(t, sizing.RejectDailyLoss, reason)

	pos, reason := fx.m.Enter(buySignal("BTC-USD"), q, t0+24*3600*sec)
	require.Equal(t, sizing.RejectNone, reason)
	assert.Equal(t, model.PositionOpen, pos.Status)
}

func TestEnter_ConcurrentSameMarket(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	q := quote("BTC-USD", 100, 100.01)

	const n = 64
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		reasons = make([]sizing.RejectReason, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, reasons[i] = fx.m.Enter(buySignal("BTC-USD"), q, t0)
		}(i)
	}
	close(start)
	wg.Wait()

	accepted := 0
	for _, r := range reasons {
		if r == sizing.RejectNone {
			accepted++
			continue
		}
		assert.Equal(t, sizing.RejectMarketBusy, r)
	}
	assert.Equal(t, 1, accepted)
	assert.Len(t, fx.m.Positions(), 1)
	assert.Equal(t, 1, fx.m.LiveCount())
	assert.Equal(t, 1, fx.exec.limitCalls)
	assert.Equal(t, int64(1), fx.acct.Snapshot(t0).Entries)
}

func TestReview_PendingExpires(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.exec.limitResults = []model.OrderStatus{model.OrderPending}
	q := quote("BTC-USD", 100, 100.01)

	pos, _ := fx.m.Enter(buySignal("BTC-USD"), q, t0)
	require.Equal(t, model.PositionPending, pos.Status)
	assert.Equal(t, t0+30*sec, pos.OrderExpiresNs)

	// TTL 内不过期
	assert.Nil(t, fx.m.Review("BTC-USD", q, nil, t0+30*sec))

	changed := fx.m.Review("BTC-USD", q, nil, t0+31*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.PositionMissed, changed[0].Status)
	assert.Equal(t, model.ExitExpired, changed[0].ExitReason)
	assert.Equal(t, model.OrderCancelled, changed[0].EntryOrder.Status)
	assert.Equal(t, 0, fx.m.LiveCount())
	assert.Equal(t, int64(1), fx.acct.Snapshot(t0).Misses)
	assert.Equal(t, []model.TradeAction{model.ActionEntry, model.ActionExpire}, fx.rec.actions())
}

func TestReview_ExpiryIgnoresFillLuck(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.exec.limitResults = []model.OrderStatus{model.OrderPending}
	fx.exec.pendingFill = true
	q := quote("BTC-USD", 100, 100.01)

	fx.m.Enter(buySignal("BTC-USD"), q, t0)
	changed := fx.m.Review("BTC-USD", q, nil, t0+45*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.PositionMissed, changed[0].Status)
}

func TestReview_PendingFills(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.exec.limitResults = []model.OrderStatus{model.OrderPending}
	q := quote("BTC-USD", 100, 100.01)

	fx.m.Enter(buySignal("BTC-USD"), q, t0)
	fx.exec.pendingFill = true

	changed := fx.m.Review("BTC-USD", q, nil, t0+10*sec)
	require.Len(t, changed, 1)
	pos := changed[0]
	assert.Equal(t, model.PositionOpen, pos.Status)
	assert.Equal(t, t0+10*sec, pos.EntryTimeNs, "入场时间应重置为成交时间")
	assert.Less(t, pos.FeesTotal, 0.0)
	assert.Equal(t, int64(1), fx.acct.Snapshot(t0).Fills)
	assert.Equal(t, []model.TradeAction{model.ActionEntry, model.ActionFill}, fx.rec.actions())
}

func TestReview_TakeProfitClosesOnce(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	pos, _ := fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)

	up := quote("BTC-USD", 110, 110.01)
	changed := fx.m.Review("BTC-USD", up, nil, t0+5*sec)
	require.Len(t, changed, 1)
	closed := changed[0]

	exitPx := 110.01 * 1.0005
	fees := pos.FeesTotal + pos.Size*exitPx*makerRate
	realized := (exitPx-99.95)*pos.Size - fees

	assert.Equal(t, model.PositionClosed, closed.Status)
	assert.Equal(t, model.ExitTakeProfit, closed.ExitReason)
	assert.Equal(t, model.ResultWin, closed.Result)
	assert.InDelta(t, realized, closed.PnLUSD, 1e-9)
	assert.InDelta(t, fees, closed.FeesTotal, 1e-12)
	assert.InDelta(t, 50+realized, fx.acct.Balance(), 1e-9)

	// 再次复查不应重复入账
	assert.Nil(t, fx.m.Review("BTC-USD", up, nil, t0+6*sec))
	assert.InDelta(t, 50+realized, fx.acct.Balance(), 1e-9)
	assert.Equal(t, int64(1), fx.acct.Snapshot(t0).Closes)
	assert.Len(t, fx.rec.done, 1)
	assert.Equal(t, []model.TradeAction{model.ActionEntry, model.ActionFill, model.ActionExit}, fx.rec.actions())
}

func TestReview_StopLoss(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)

	changed := fx.m.Review("BTC-USD", quote("BTC-USD", 95, 95.01), nil, t0+2*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.ExitStopLoss, changed[0].ExitReason)
	assert.Equal(t, model.ResultLoss, changed[0].Result)
	assert.Less(t, fx.acct.Balance(), 50.0)
}

func TestReview_UnfilledExitStaysOpen(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.exec.limitResults = []model.OrderStatus{model.OrderFilled, model.OrderPending, model.OrderCancelled}
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)

	up := quote("BTC-USD", 110, 110.01)
	assert.Nil(t, fx.m.Review("BTC-USD", up, nil, t0+1*sec))
	assert.Nil(t, fx.m.Review("BTC-USD", up, nil, t0+2*sec))

	live, ok := fx.m.Live("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, model.PositionOpen, live.Status)
	assert.Equal(t, 2, live.ExitAttempts)
	assert.Equal(t, 50.0, fx.acct.Balance())

	// 第三次出场成交
	changed := fx.m.Review("BTC-USD", up, nil, t0+3*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, 3, changed[0].ExitAttempts)
}

func TestReview_TimeoutThenForceClose(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.exec.limitResults = []model.OrderStatus{model.OrderFilled, model.OrderPending, model.OrderPending}
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	flat := quote("BTC-USD", 100, 100.01)

	// 30 秒内不超时
	assert.Nil(t, fx.m.Review("BTC-USD", flat, nil, t0+30*sec))
	assert.Equal(t, 1, fx.exec.limitCalls)

	// 超时：尝试挂单出场但未成交
	assert.Nil(t, fx.m.Review("BTC-USD", flat, nil, t0+31*sec))
	assert.Equal(t, 2, fx.exec.limitCalls)

	// 超过宽限期：按对手价强平
	changed := fx.m.Review("BTC-USD", flat, nil, t0+36*sec)
	require.Len(t, changed, 1)
	pos := changed[0]
	assert.Equal(t, model.ExitTimeout, pos.ExitReason)
	assert.Equal(t, 100.0, pos.ExitPx)
	assert.Nil(t, pos.ExitOrder)
	assert.Equal(t, 2, fx.exec.limitCalls, "强平不再挂单")
	assert.Equal(t, 36*time.Second, pos.HoldDuration(t0+100*sec))
}

func TestReview_ForceCloseMarketMode(t *testing.T) {
	exits := scalpExits()
	exits.ForceCloseMode = config.ForceCloseMarket
	fx := newFixture(t, exits, defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)

	changed := fx.m.Review("BTC-USD", quote("BTC-USD", 100, 100.01), nil, t0+40*sec)
	require.Len(t, changed, 1)
	pos := changed[0]
	require.NotNil(t, pos.ExitOrder)
	assert.Equal(t, model.OrderMarket, pos.ExitOrder.Kind)
	assert.Greater(t, pos.ExitOrder.FeesPaid, 0.0, "市价单为 taker 手续费")
	assert.Equal(t, 1, fx.exec.marketCalls)
}

func TestReview_SignalReversal(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	q := quote("BTC-USD", 100, 100.01)

	weak := &model.Signal{Market: "BTC-USD", Type: model.SignalSell, Confidence: 60}
	assert.Nil(t, fx.m.Review("BTC-USD", q, weak, t0+1*sec), "置信度需严格大于 60")

	same := &model.Signal{Market: "BTC-USD", Type: model.SignalBuy, Confidence: 90}
	assert.Nil(t, fx.m.Review("BTC-USD", q, same, t0+2*sec))

	strong := &model.Signal{Market: "BTC-USD", Type: model.SignalSell, Confidence: 61}
	changed := fx.m.Review("BTC-USD", q, strong, t0+3*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.ExitSignalReversal, changed[0].ExitReason)
}

func swingExits() config.ExitConfig {
	return config.ExitConfig{
		MaxHoldSeconds:         7200,
		ForceCloseGraceSeconds: 300,
		ForceCloseMode:         config.ForceCloseTouch,
		MinHoldSeconds:         1800,
		StopLossUSD:            0.25,
		SignalExit:             config.SignalExitZNeutral,
		ZNeutralBand:           0.5,
		EmergencyStopPct:       10,
	}
}

func TestReview_MinHoldSuppressesExits(t *testing.T) {
	fx := newFixture(t, swingExits(), defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	down := quote("BTC-USD", 95, 95.01)
	neutral := &model.Signal{Market: "BTC-USD", Type: model.SignalNeutral, ZScore: 0.1}

	assert.Nil(t, fx.m.Review("BTC-USD", down, neutral, t0+1799*sec))
	assert.Equal(t, 1, fx.exec.limitCalls)

	changed := fx.m.Review("BTC-USD", down, neutral, t0+1800*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.ExitStopLoss, changed[0].ExitReason)
}

func TestReview_ZNeutralExit(t *testing.T) {
	exits := swingExits()
	exits.StopLossUSD = 0
	fx := newFixture(t, exits, defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	q := quote("BTC-USD", 100, 100.01)

	assert.Nil(t, fx.m.Review("BTC-USD", q, &model.Signal{Market: "BTC-USD", ZScore: -1.2}, t0+2000*sec))

	changed := fx.m.Review("BTC-USD", q, &model.Signal{Market: "BTC-USD", ZScore: 0.3}, t0+2001*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.ExitZNeutral, changed[0].ExitReason)
}

func TestReview_EmergencyStop(t *testing.T) {
	exits := swingExits()
	exits.StopLossUSD = 0
	exits.SignalExit = config.SignalExitNone
	fx := newFixture(t, exits, defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)

	// 名义价值约 10 USD，跌 5% 未触发，跌 20% 触发
	assert.Nil(t, fx.m.Review("BTC-USD", quote("BTC-USD", 95, 95.01), nil, t0+1900*sec))
	changed := fx.m.Review("BTC-USD", quote("BTC-USD", 80, 80.01), nil, t0+1901*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.ExitEmergencyStop, changed[0].ExitReason)
}

func TestReview_TracksMaxProfitAndLoss(t *testing.T) {
	exits := swingExits()
	exits.StopLossUSD = 0
	exits.SignalExit = config.SignalExitNone
	exits.EmergencyStopPct = 0
	fx := newFixture(t, exits, defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)

	fx.m.Review("BTC-USD", quote("BTC-USD", 103, 103.01), nil, t0+10*sec)
	fx.m.Review("BTC-USD", quote("BTC-USD", 97, 97.01), nil, t0+20*sec)

	live, ok := fx.m.Live("BTC-USD")
	require.True(t, ok)
	assert.Greater(t, live.MaxProfitUSD, 0.2)
	assert.Less(t, live.MaxLossUSD, -0.2)
	assert.Less(t, live.PnLUSD, 0.0)
}

func TestReview_SkipsInvalidQuote(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	assert.Nil(t, fx.m.Review("BTC-USD", model.Quote{Market: "BTC-USD"}, nil, t0+100*sec))
	assert.Equal(t, 1, fx.m.LiveCount())
}

// staticQuotes 固定报价来源
type staticQuotes map[string]model.Quote

func (s staticQuotes) Quote(market string) (model.Quote, bool) {
	q, ok := s[market]
	return q, ok
}

func TestReviewAll_SkipsMissingQuotes(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	fx.m.Enter(buySignal("ETH-USD"), quote("ETH-USD", 100, 100.01), t0)

	quotes := staticQuotes{"BTC-USD": quote("BTC-USD", 110, 110.01)}
	changed := fx.m.ReviewAll(quotes, nil, t0+1*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, "BTC-USD", changed[0].Market)
	assert.Equal(t, 1, fx.m.LiveCount())
}

func TestPositions_ReturnsCopies(t *testing.T) {
	fx := newFixture(t, scalpExits(), defaultRisk())
	fx.m.Enter(buySignal("BTC-USD"), quote("BTC-USD", 100, 100.01), t0)
	ps := fx.m.Positions()
	require.Len(t, ps, 1)
	ps[0].Status = model.PositionClosed
	live, _ := fx.m.Live("BTC-USD")
	assert.Equal(t, model.PositionOpen, live.Status)
}
