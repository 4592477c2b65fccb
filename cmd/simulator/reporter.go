package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"meanrev-paper-engine/internal/core/account"
	"meanrev-paper-engine/internal/core/engine"
	"meanrev-paper-engine/internal/events"
	"meanrev-paper-engine/internal/exchange/dydx"
	"meanrev-paper-engine/internal/metrics"
	"meanrev-paper-engine/internal/output/jsonl"
	"meanrev-paper-engine/internal/stats/latency"
	"meanrev-paper-engine/internal/stats/perf"
	"meanrev-paper-engine/internal/util/timeutil"
)

// metricsSnapshot 周期性指标快照
type metricsSnapshot struct {
	// TsUnixNs 采集时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// Account 账户状态
	Account account.Snapshot `json:"account"`
	// LivePositions 存活仓位数
	LivePositions int `json:"live_positions"`
	// ExposureUSD 当前敞口
	ExposureUSD float64 `json:"exposure_usd"`
	// Total 全市场表现
	Total perf.MarketStats `json:"total"`
	// Markets 各市场表现
	Markets []perf.MarketStats `json:"markets"`
	// Latency 模拟订单延迟
	Latency []latency.LatencyStats `json:"latency"`
	// Connection 行情连接指标（回放时为空）
	Connection *dydx.ConnectionMetrics `json:"connection,omitempty"`
	// Processed 已处理订单簿事件
	Processed int64 `json:"processed"`
	// Dropped 因队列满丢弃的事件
	Dropped int64 `json:"dropped"`
	// Dispatch 事件投递统计
	Dispatch events.DispatchStats `json:"dispatch"`
}

// reporter 汇总各组件状态
type reporter struct {
	eng        *engine.Engine
	runner     *engine.Runner
	perf       *perf.Tracker
	latency    *latency.Tracker
	dispatcher *events.Dispatcher
	client     *dydx.Client
	writer     *jsonl.Writer

	// lastNs 回放时的行情时间；实时模式为 0
	lastNs atomic.Int64
	// mu 保护 reconnects，串行化快照写入
	mu sync.Mutex
	// reconnects 已计入 Prometheus 的重连次数
	reconnects int64
}

// nowNs 快照时间：回放取最后一条行情时间，实时取本机时间
func (r *reporter) nowNs() int64 {
	if ts := r.lastNs.Load(); ts > 0 {
		return ts
	}
	return timeutil.NowNano()
}

func (r *reporter) snapshot(nowNs int64) metricsSnapshot {
	mgr := r.eng.Manager()
	snap := metricsSnapshot{
		TsUnixNs:      nowNs,
		Account:       mgr.Account().Snapshot(nowNs),
		LivePositions: mgr.LiveCount(),
		ExposureUSD:   mgr.Exposure(),
		Total:         r.perf.Total(),
		Markets:       r.perf.All(),
		Latency:       r.latency.All(),
		Processed:     r.runner.Processed(),
		Dropped:       r.runner.Dropped(),
		Dispatch:      r.dispatcher.Stats(),
	}
	if r.client != nil {
		m := r.client.Metrics()
		snap.Connection = &m
	}
	return snap
}

// write 输出一条快照，并同步重连计数到 Prometheus
func (r *reporter) write(nowNs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot(nowNs)
	if snap.Connection != nil {
		if d := snap.Connection.ReconnectCount - r.reconnects; d > 0 {
			metrics.Reconnects.Add(float64(d))
			r.reconnects = snap.Connection.ReconnectCount
		}
	}
	if r.writer == nil {
		return
	}
	_ = r.writer.Write(snap)
	_ = r.writer.Flush()
}

// loop 按间隔输出快照，直到 ctx 取消
func (r *reporter) loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := r.nowNs()
			r.eng.Sweep(now)
			r.write(now)
		}
	}
}

// summary 输出运行总结
func (r *reporter) summary(logger *zap.Logger) {
	snap := r.snapshot(r.nowNs())
	acct := snap.Account
	logger.Info("模拟结束",
		zap.Float64("starting_balance_usd", acct.StartingBalanceUSD),
		zap.Float64("balance_usd", acct.BalanceUSD),
		zap.Float64("return_pct", acct.ReturnPct()),
		zap.Float64("realized_pnl_usd", acct.RealizedPnLUSD),
		zap.Float64("fees_usd", acct.FeesUSD),
		zap.Int64("entries", acct.Entries),
		zap.Int64("fills", acct.Fills),
		zap.Int64("closes", acct.Closes),
		zap.Float64("win_rate", acct.WinRate()),
		zap.Int64("misses", acct.Misses),
		zap.Int("live_positions", snap.LivePositions),
		zap.Int64("processed", snap.Processed),
	)
	for _, m := range snap.Markets {
		logger.Info("市场表现",
			zap.String("market", m.Market),
			zap.Int64("trades", m.Trades),
			zap.Float64("win_rate", m.WinRate),
			zap.Float64("pnl_usd", m.TotalPnLUSD),
			zap.Float64("ev_usd", m.EV),
			zap.Float64("p_required", m.PRequired),
			zap.String("profit_factor", m.ProfitFactorString()),
		)
	}
	for _, l := range snap.Latency {
		logger.Info("订单延迟",
			zap.String("kind", l.Kind),
			zap.Int64("count", l.Count),
			zap.Float64("p50_ms", l.P50Ms),
			zap.Float64("p99_ms", l.P99Ms),
		)
	}
}
