// Package metrics 暴露 Prometheus 指标，并在同一 HTTP 服务上挂载看板推送。
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/stats/latency"
)

var (
	// BooksTotal 已处理的订单簿事件
	BooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "meanrev_books_total", Help: "Order book events processed"},
		[]string{"market"},
	)
	// SignalsTotal 产生的信号
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "meanrev_signals_total", Help: "Signals computed by type"},
		[]string{"market", "type"},
	)
	// RejectsTotal 被风控拒绝的入场
	RejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "meanrev_entry_rejects_total", Help: "Entry attempts rejected by the risk gate"},
		[]string{"market", "reason"},
	)
	// TradeEventsTotal 成交事件
	TradeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "meanrev_trade_events_total", Help: "Trade events delivered"},
		[]string{"market", "action"},
	)
	// RealizedPnL 已实现盈亏（USD）
	RealizedPnL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "meanrev_realized_pnl_usd", Help: "Realized PnL per market"},
		[]string{"market"},
	)
	// OrderLatency 模拟订单延迟（毫秒）
	OrderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meanrev_order_latency_ms",
			Help:    "Simulated order latency",
			Buckets: []float64{5, 10, 15, 20, 30, 50, 80, 120},
		},
		[]string{"kind"},
	)
	// BalanceUSD 账户余额
	BalanceUSD = prometheus.NewGauge(prometheus.GaugeOpts{Name: "meanrev_balance_usd", Help: "Paper account balance"})
	// LivePositions 存活仓位数
	LivePositions = prometheus.NewGauge(prometheus.GaugeOpts{Name: "meanrev_live_positions", Help: "Pending and open positions"})
	// ExposureUSD 当前敞口
	ExposureUSD = prometheus.NewGauge(prometheus.GaugeOpts{Name: "meanrev_exposure_usd", Help: "Open exposure"})
	// Reconnects 行情重连次数
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{Name: "meanrev_ws_reconnects_total", Help: "Market data reconnects"})
)

func init() {
	prometheus.MustRegister(
		BooksTotal, SignalsTotal, RejectsTotal, TradeEventsTotal, RealizedPnL,
		OrderLatency, BalanceUSD, LivePositions, ExposureUSD, Reconnects,
	)
}

// Sink 把成交事件计入指标
type Sink struct{}

// Name 下游名称
func (Sink) Name() string { return "metrics" }

// Deliver 计数并累计已实现盈亏
func (Sink) Deliver(_ context.Context, ev model.TradeEvent) error {
	TradeEventsTotal.WithLabelValues(ev.Market, string(ev.Action)).Inc()
	if ev.Action == model.ActionExit {
		RealizedPnL.WithLabelValues(ev.Market).Add(ev.PnLUSD)
	}
	return nil
}

// OrderObserver 把订单延迟计入直方图
type OrderObserver struct{}

// ObserveOrder 记录一笔订单的延迟
func (OrderObserver) ObserveOrder(o *model.Order) {
	if o == nil || o.LatencyMs <= 0 {
		return
	}
	OrderLatency.WithLabelValues(latency.KindOf(o)).Observe(o.LatencyMs)
}

// EngineObserver 把 tick 处理结果计入指标
type EngineObserver struct{}

// ObserveBook 订单簿计数
func (EngineObserver) ObserveBook(market string) {
	BooksTotal.WithLabelValues(market).Inc()
}

// ObserveSignal 信号计数
func (EngineObserver) ObserveSignal(sig *model.Signal) {
	SignalsTotal.WithLabelValues(sig.Market, string(sig.Type)).Inc()
}

// ObserveReject 入场拒绝计数
func (EngineObserver) ObserveReject(market, reason string) {
	RejectsTotal.WithLabelValues(market, reason).Inc()
}

// ObserveState 更新账户与敞口
func (EngineObserver) ObserveState(balanceUSD float64, live int, exposureUSD float64) {
	BalanceUSD.Set(balanceUSD)
	LivePositions.Set(float64(live))
	ExposureUSD.Set(exposureUSD)
}

// Serve 启动 /metrics 服务
// 参数 addr: 监听地址
// 参数 extra: 额外挂载的路由（如 /ws 看板推送）
func Serve(addr string, extra map[string]http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	for path, h := range extra {
		mux.Handle(path, h)
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
