// Package signal 实现滚动 z 分数均值回归信号。
package signal

import (
	"math"
	"time"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/series"
)

// 置信度映射: |z| × 25，上限 100
const confidencePerZ = 25.0

// 无成交量数据时的置信度折扣
const noVolumeFactor = 0.8

// 成交量因子上限
const maxVolumeFactor = 1.2

// Generator 信号生成器
// 无状态：所有历史由调用方传入的 Series 提供，可被多个市场的 worker 共享。
type Generator struct {
	cfg      config.StrategyConfig
	lookback time.Duration
}

// NewGenerator 创建信号生成器
// 参数 cfg: 策略配置（已填充默认值）
func NewGenerator(cfg config.StrategyConfig) *Generator {
	return &Generator{
		cfg:      cfg,
		lookback: time.Duration(cfg.LookbackSeconds) * time.Second,
	}
}

// sample 单个样本：价格与对应价差
type sample struct {
	px        float64
	spreadPct float64
}

// Compute 计算市场当前信号
// 参数 market: 市场标识
// 参数 s: 该市场的价格序列（bars 模式下会先调用 Roll 封口过期分钟）
// 参数 nowNs: 当前时间（纳秒）
// 返回: 样本不足时返回 nil（表示无信号，不是错误）
func (g *Generator) Compute(market string, s *series.Series, nowNs int64) *model.Signal {
	if s == nil {
		return nil
	}
	latest, ok := s.Latest()
	if !ok {
		return nil
	}

	var samples []sample
	switch g.cfg.Mode {
	case config.ModeBars:
		samples = g.barSamples(s, nowNs)
	default:
		samples = g.snapshotSamples(s, nowNs)
	}
	if samples == nil {
		return nil
	}

	cur := latest.Price
	mean, std := meanStd(samples)

	sig := &model.Signal{
		Market:  market,
		TsNs:    nowNs,
		Type:    model.SignalNeutral,
		EntryPx: cur,
		Mean:    mean,
		StdDev:  std,
		Samples: len(samples),
		Volume:  latest.Volume,
	}
	if mean != 0 {
		sig.DeviationPct = (cur - mean) / mean * 100
	}
	if std > 0 {
		sig.ZScore = (cur - mean) / std
	}

	// 无盘口量时不出信号
	if g.cfg.VolumeRequired() && latest.Volume <= 0 {
		return sig
	}

	switch {
	case sig.ZScore >= g.cfg.EntryThreshold:
		sig.Type = model.SignalSell
	case sig.ZScore <= -g.cfg.EntryThreshold:
		sig.Type = model.SignalBuy
	default:
		return sig
	}

	sig.Confidence = g.confidence(sig.ZScore, meanSpread(samples), latest.Volume)
	return sig
}

// snapshotSamples 回看窗口内的快照中间价
func (g *Generator) snapshotSamples(s *series.Series, nowNs int64) []sample {
	window := s.Window(nowNs, g.lookback)
	minSamples := g.cfg.MinSamples
	if minSamples < 2 {
		minSamples = 2
	}
	if len(window) < minSamples {
		return nil
	}
	out := make([]sample, len(window))
	for i, snap := range window {
		out[i] = sample{px: snap.Price, spreadPct: snap.SpreadPct}
	}
	return out
}

// barSamples 已封口分钟 K 线的收盘价
// 丢弃最旧的一根（可能只覆盖了部分分钟），取最近 WindowMinutes 根
func (g *Generator) barSamples(s *series.Series, nowNs int64) []sample {
	s.Roll(nowNs)
	bars := s.Bars()
	w := g.cfg.WindowMinutes
	if w < 2 {
		w = 2
	}
	if len(bars) < w+1 {
		return nil
	}
	bars = bars[1:]
	bars = bars[len(bars)-w:]
	out := make([]sample, len(bars))
	for i, b := range bars {
		out[i] = sample{px: b.Close, spreadPct: b.SpreadPct}
	}
	return out
}

// confidence 置信度
// base = min(100, |z|×25)；扣除价差惩罚后乘以成交量因子，结果截断到 [0, 100]
func (g *Generator) confidence(z, avgSpreadPct, volume float64) float64 {
	base := math.Min(100, math.Abs(z)*confidencePerZ)

	penalty := 0.0
	if g.cfg.SpreadPenaltyFactor > 0 {
		penalty = math.Max(0, (avgSpreadPct-g.cfg.SpreadBaselinePct)*g.cfg.SpreadPenaltyFactor)
	}
	c := math.Max(0, base-penalty)

	factor := 1.0
	if g.cfg.VolumeReference > 0 {
		if volume > 0 {
			factor = math.Min(maxVolumeFactor, volume/g.cfg.VolumeReference)
		} else {
			factor = noVolumeFactor
		}
	}
	return math.Max(0, math.Min(100, c*factor))
}

// meanStd 均值与样本标准差（n-1）
func meanStd(samples []sample) (mean, std float64) {
	n := float64(len(samples))
	for _, s := range samples {
		mean += s.px
	}
	mean /= n
	if len(samples) < 2 {
		return mean, 0
	}
	var ss float64
	for _, s := range samples {
		d := s.px - mean
		ss += d * d
	}
	std = math.Sqrt(ss / (n - 1))
	// 常数序列的舍入残差按 0 处理
	if std <= 1e-12*math.Abs(mean) {
		std = 0
	}
	return mean, std
}

func meanSpread(samples []sample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.spreadPct
	}
	return sum / float64(len(samples))
}
