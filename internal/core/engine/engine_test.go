package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/account"
	"meanrev-paper-engine/internal/core/execution"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/paper"
	"meanrev-paper-engine/internal/core/signal"
	"meanrev-paper-engine/internal/core/sizing"
	"meanrev-paper-engine/internal/core/store"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).UnixNano()

const sec = int64(time.Second)

// MockObserver tick 观测 mock
type MockObserver struct {
	mock.Mock
}

func (m *MockObserver) ObserveBook(market string)       { m.Called(market) }
func (m *MockObserver) ObserveSignal(sig *model.Signal) { m.Called(sig) }
func (m *MockObserver) ObserveReject(market, reason string) {
	m.Called(market, reason)
}
func (m *MockObserver) ObserveState(balanceUSD float64, live int, exposureUSD float64) {
	m.Called(balanceUSD, live, exposureUSD)
}

func newObserver() *MockObserver {
	obs := &MockObserver{}
	obs.On("ObserveBook", mock.Anything).Return()
	obs.On("ObserveSignal", mock.Anything).Return()
	obs.On("ObserveReject", mock.Anything, mock.Anything).Return()
	obs.On("ObserveState", mock.Anything, mock.Anything, mock.Anything).Return()
	return obs
}

// fillingExec 限价单与市价单均按挂单价立即成交，无手续费
type fillingExec struct {
	mu  sync.Mutex
	seq int
}

func (f *fillingExec) EntryPrice(side model.Side, q model.Quote) float64 {
	return execution.LimitPrice(side, q, 0)
}

func (f *fillingExec) ExitPrice(side model.Side, q model.Quote) float64 {
	return execution.LimitPrice(side, q, 0)
}

func (f *fillingExec) order(market string, side model.Side, kind model.OrderKind, size, px float64, nowNs int64) *model.Order {
	f.mu.Lock()
	f.seq++
	id := fmt.Sprintf("o-%d", f.seq)
	f.mu.Unlock()
	o := model.NewOrder(id, market, side, kind, size, px, nowNs)
	o.Fill(px, 0)
	return o
}

func (f *fillingExec) SimulateLimit(market string, side model.Side, size, limitPx float64, _ model.Quote, nowNs int64) *model.Order {
	return f.order(market, side, model.OrderLimit, size, limitPx, nowNs)
}

func (f *fillingExec) SimulateMarket(market string, side model.Side, size float64, q model.Quote, nowNs int64) *model.Order {
	return f.order(market, side, model.OrderMarket, size, q.Mid(), nowNs)
}

func (f *fillingExec) FillPending(o *model.Order, _ model.Quote, _, nowNs int64) *model.Order {
	return f.order(o.Market, o.Side, model.OrderLimit, o.Size, o.LimitPx, nowNs)
}

func testStrategy() config.StrategyConfig {
	return config.StrategyConfig{
		Mode:               config.ModeSnapshot,
		LookbackSeconds:    60,
		MinSamples:         10,
		HistorySize:        200,
		BarHistory:         20,
		EntryThreshold:     2,
		EntryMinConfidence: 75,
	}
}

func newTestEngine(t *testing.T, allowed []string, obs Observer) *Engine {
	t.Helper()
	st := store.New()
	strat := testStrategy()
	mgr := paper.NewManager(paper.Settings{
		EntryMinConfidence: strat.EntryMinConfidence,
		OrderTTL:           30 * time.Second,
		Exits: config.ExitConfig{
			MaxHoldSeconds:         300,
			ForceCloseGraceSeconds: 10,
			ForceCloseMode:         config.ForceCloseTouch,
			ProfitTargetUSD:        0.25,
			StopLossUSD:            1,
		},
	}, paper.Deps{
		Exec: &fillingExec{},
		Sizer: sizing.NewSizer(config.SizingConfig{
			Policy:              config.PolicyFixedNotional,
			DefaultNotionalUSD:  10,
			BalanceReserve:      0.95,
			DefaultQtyPrecision: 6,
		}, nil),
		Gate:    sizing.NewGate(config.RiskConfig{MaxOpenPositions: 5}, allowed),
		Account: account.New(100),
		Quotes:  st,
		Logger:  zaptest.NewLogger(t),
	})
	return New(strat, st, signal.NewGenerator(strat), mgr, Options{Observer: obs, Logger: zaptest.NewLogger(t)})
}

func book(market string, mid float64, ts int64) *model.BookEvent {
	return &model.BookEvent{
		Exchange:        "dydx",
		Market:          market,
		BestBidPx:       mid - 0.05,
		BestBidQty:      5,
		BestAskPx:       mid + 0.05,
		BestAskQty:      5,
		Bids:            []model.Level{{Price: mid - 0.05, Qty: 5}},
		Asks:            []model.Level{{Price: mid + 0.05, Qty: 5}},
		ArrivedAtUnixNs: ts,
	}
}

// feedCalm 19 个围绕 100 小幅震荡的 tick
func feedCalm(e *Engine, market string) int64 {
	ts := t0
	for i := 0; i < 19; i++ {
		mid := 100.1
		if i%2 == 1 {
			mid = 99.9
		}
		e.OnBook(book(market, mid, ts))
		ts += sec
	}
	return ts
}

func TestOnBook_EntersOnDipAndTakesProfit(t *testing.T) {
	obs := newObserver()
	e := newTestEngine(t, nil, obs)

	ts := feedCalm(e, "BTC-USD")
	tick := e.OnBook(book("BTC-USD", 95, ts))
	require.NotNil(t, tick)
	require.NotNil(t, tick.Signal)
	assert.Equal(t, model.SignalBuy, tick.Signal.Type)
	assert.Greater(t, tick.Signal.Confidence, 75.0)
	require.NotNil(t, tick.Entered)
	assert.Equal(t, sizing.RejectNone, tick.Reject)
	assert.Equal(t, model.PositionOpen, tick.Entered.Status)
	assert.Equal(t, model.SideBuy, tick.Entered.Side)
	assert.Equal(t, 1, e.Manager().LiveCount())

	latest, ok := e.LatestSignal("BTC-USD")
	require.True(t, ok)
	assert.Equal(t, model.SignalBuy, latest.Type)

	tick = e.OnBook(book("BTC-USD", 100, ts+sec))
	require.NotNil(t, tick)
	require.Len(t, tick.Changed, 1)
	closed := tick.Changed[0]
	assert.Equal(t, model.PositionClosed, closed.Status)
	assert.Equal(t, model.ExitTakeProfit, closed.ExitReason)
	assert.Equal(t, model.ResultWin, closed.Result)
	assert.Greater(t, e.Manager().Account().Balance(), 100.0)
	assert.Equal(t, 0, e.Manager().LiveCount())

	obs.AssertNumberOfCalls(t, "ObserveBook", 21)
	obs.AssertNotCalled(t, "ObserveReject", mock.Anything, mock.Anything)
}

func TestSweep_TimesOutStaleMarket(t *testing.T) {
	e := newTestEngine(t, nil, newObserver())

	ts := feedCalm(e, "BTC-USD")
	tick := e.OnBook(book("BTC-USD", 95, ts))
	require.NotNil(t, tick.Entered)

	assert.Empty(t, e.Sweep(ts+10*sec))
	assert.Equal(t, 1, e.Manager().LiveCount())

	changed := e.Sweep(ts + 301*sec)
	require.Len(t, changed, 1)
	assert.Equal(t, model.PositionClosed, changed[0].Status)
	assert.Equal(t, model.ExitTimeout, changed[0].ExitReason)
	assert.Equal(t, 0, e.Manager().LiveCount())
}

func TestOnBook_RejectedEntryIsObserved(t *testing.T) {
	obs := newObserver()
	e := newTestEngine(t, []string{"ETH-USD"}, obs)

	ts := feedCalm(e, "BTC-USD")
	tick := e.OnBook(book("BTC-USD", 95, ts))
	require.NotNil(t, tick)
	assert.Nil(t, tick.Entered)
	assert.Equal(t, sizing.RejectMarketNotAllowed, tick.Reject)
	obs.AssertCalled(t, "ObserveReject", "BTC-USD", "market_not_allowed")
	assert.Equal(t, 0, e.Manager().LiveCount())
}

func TestOnBook_IgnoresInvalidBooks(t *testing.T) {
	obs := newObserver()
	e := newTestEngine(t, nil, obs)

	assert.Nil(t, e.OnBook(nil))
	crossed := book("BTC-USD", 100, t0)
	crossed.BestBidPx, crossed.BestAskPx = 101, 99
	assert.Nil(t, e.OnBook(crossed))
	obs.AssertNotCalled(t, "ObserveBook", mock.Anything)
}

func TestOnBook_NoSignalBeforeMinSamples(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	for i := 0; i < 9; i++ {
		tick := e.OnBook(book("ETH-USD", 3000, t0+int64(i)*sec))
		require.NotNil(t, tick)
		assert.Nil(t, tick.Signal)
	}
	_, ok := e.LatestSignal("ETH-USD")
	assert.False(t, ok)

	tick := e.OnBook(book("ETH-USD", 3000, t0+9*sec))
	require.NotNil(t, tick.Signal)
	assert.Equal(t, model.SignalNeutral, tick.Signal.Type)
	assert.Len(t, e.Signals(), 1)
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []*model.BookEvent
}

func (r *recordingRecorder) Record(ev *model.BookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func TestOnBook_RecordsValidBooks(t *testing.T) {
	rec := &recordingRecorder{}
	e := newTestEngine(t, nil, nil)
	e.opts.Recorder = rec

	e.OnBook(book("BTC-USD", 100, t0))
	bad := book("BTC-USD", 100, t0+sec)
	bad.BestBidPx = 0
	e.OnBook(bad)
	assert.Len(t, rec.events, 1)
}
