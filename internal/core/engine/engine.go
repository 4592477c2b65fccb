// Package engine 串联单个 tick 的处理流程：
// BookEvent → Store → Series → Signal → 入场 → 仓位复查。
package engine

import (
	"sync"

	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/paper"
	"meanrev-paper-engine/internal/core/series"
	"meanrev-paper-engine/internal/core/signal"
	"meanrev-paper-engine/internal/core/sizing"
	"meanrev-paper-engine/internal/core/store"
)

// Observer tick 级观测（指标）
// 实现方不得阻塞
type Observer interface {
	ObserveBook(market string)
	ObserveSignal(sig *model.Signal)
	ObserveReject(market, reason string)
	ObserveState(balanceUSD float64, live int, exposureUSD float64)
}

// Recorder 原始订单簿录制（用于回放）
type Recorder interface {
	Record(ev *model.BookEvent) error
}

// Tick 单次 OnBook 的处理结果
type Tick struct {
	// Signal 本 tick 计算的信号；样本不足时为 nil
	Signal *model.Signal
	// Entered 本 tick 新建的仓位
	Entered *model.Position
	// Reject 入场被拒原因
	Reject sizing.RejectReason
	// Changed 本 tick 复查中状态发生变化的仓位
	Changed []*model.Position
}

// Options 引擎可选依赖
type Options struct {
	Observer Observer
	Recorder Recorder
	Logger   *zap.Logger
}

// market 单市场状态
// series 只由该市场的 worker 写入
type market struct {
	series *series.Series
}

// Engine 逐 tick 驱动策略
// 同一市场的事件必须串行调用 OnBook；不同市场可并发
type Engine struct {
	strategy config.StrategyConfig
	store    *store.Store
	gen      *signal.Generator
	mgr      *paper.Manager
	opts     Options
	log      *zap.Logger

	mu      sync.Mutex
	markets map[string]*market
	latest  map[string]*model.Signal
}

// New 创建引擎
// 参数 strategy: 策略配置（决定序列容量）
// 参数 st: 最新报价缓存（同时作为仓位管理器的报价来源）
// 参数 gen: 信号生成器
// 参数 mgr: 仓位管理器
func New(strategy config.StrategyConfig, st *store.Store, gen *signal.Generator, mgr *paper.Manager, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		strategy: strategy,
		store:    st,
		gen:      gen,
		mgr:      mgr,
		opts:     opts,
		log:      log.Named("engine"),
		markets:  make(map[string]*market),
		latest:   make(map[string]*model.Signal),
	}
}

func (e *Engine) market(id string) *market {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.markets[id]
	if !ok {
		m = &market{series: series.New(e.strategy.HistorySize, e.strategy.BarHistory)}
		e.markets[id] = m
	}
	return m
}

// OnBook 处理一条订单簿事件
// 所有时间取自 ev.ArrivedAtUnixNs，回放时结果可复现
// 返回: 无效事件返回 nil
func (e *Engine) OnBook(ev *model.BookEvent) *Tick {
	if ev == nil || !e.store.Update(ev) {
		return nil
	}
	if e.opts.Recorder != nil {
		if err := e.opts.Recorder.Record(ev); err != nil {
			e.log.Debug("录制订单簿失败", zap.String("market", ev.Market), zap.Error(err))
		}
	}
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveBook(ev.Market)
	}

	nowNs := ev.ArrivedAtUnixNs
	m := e.market(ev.Market)
	m.series.Update(ev.Snapshot())

	tick := &Tick{}
	tick.Signal = e.gen.Compute(ev.Market, m.series, nowNs)
	if tick.Signal != nil {
		e.mu.Lock()
		e.latest[ev.Market] = tick.Signal
		e.mu.Unlock()
		if e.opts.Observer != nil {
			e.opts.Observer.ObserveSignal(tick.Signal)
		}
	}

	q := ev.Quote()
	if tick.Signal != nil && e.mgr.Eligible(tick.Signal) {
		tick.Entered, tick.Reject = e.mgr.Enter(tick.Signal, q, nowNs)
		if tick.Reject != sizing.RejectNone {
			e.log.Debug("入场被拒",
				zap.String("market", ev.Market),
				zap.String("reason", string(tick.Reject)),
				zap.Float64("z", tick.Signal.ZScore),
			)
			if e.opts.Observer != nil {
				e.opts.Observer.ObserveReject(ev.Market, string(tick.Reject))
			}
		}
	}

	tick.Changed = e.mgr.Review(ev.Market, q, tick.Signal, nowNs)

	if e.opts.Observer != nil {
		e.opts.Observer.ObserveState(e.mgr.Account().Balance(), e.mgr.LiveCount(), e.mgr.Exposure())
	}
	return tick
}

// LatestSignal 市场最近一次计算出的信号
func (e *Engine) LatestSignal(market string) (*model.Signal, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sig, ok := e.latest[market]
	return sig, ok
}

// Signals 全部市场最近信号的副本
func (e *Engine) Signals() map[string]*model.Signal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*model.Signal, len(e.latest))
	for k, v := range e.latest {
		s := *v
		out[k] = &s
	}
	return out
}

// Sweep 以各市场最新报价与信号复查全部存活仓位
// 行情停滞的市场仍能按持仓时间触发超时平仓
func (e *Engine) Sweep(nowNs int64) []*model.Position {
	return e.mgr.ReviewAll(e.store, e.Signals(), nowNs)
}

// Manager 仓位管理器
func (e *Engine) Manager() *paper.Manager {
	return e.mgr
}
