package signal

import (
	"math"
	"testing"
	"time"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/series"
)

const sec = int64(time.Second)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).UnixNano()

func snap(ts int64, px, vol float64) model.PriceSnapshot {
	return model.PriceSnapshot{TsNs: ts, Price: px, Bid: px - 0.01, Ask: px + 0.01, Volume: vol, SpreadPct: 0.02 / px * 100}
}

func snapshotCfg(threshold float64) config.StrategyConfig {
	return config.StrategyConfig{
		Mode:            config.ModeSnapshot,
		LookbackSeconds: 10,
		MinSamples:      3,
		EntryThreshold:  threshold,
	}
}

func seriesOf(prices []float64, vol float64) *series.Series {
	s := series.New(100, 20)
	for i, p := range prices {
		s.Update(snap(t0+int64(i)*sec, p, vol))
	}
	return s
}

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestCompute_ReferenceWindow(t *testing.T) {
	prices := []float64{100, 101, 99, 100, 102}
	now := t0 + 4*sec

	// 阈值 1.5：z ≈ 1.403 不触发
	g := NewGenerator(snapshotCfg(1.5))
	sig := g.Compute("BTC-USD", seriesOf(prices, 5), now)
	if sig == nil {
		t.Fatalf("应产生信号")
	}
	if !almostEqual(sig.Mean, 100.4, 1e-9) {
		t.Errorf("Mean=%v, want 100.4", sig.Mean)
	}
	if !almostEqual(sig.StdDev, 1.1402, 1e-4) {
		t.Errorf("StdDev=%v, want ≈1.1402", sig.StdDev)
	}
	if !almostEqual(sig.ZScore, 1.403, 1e-3) {
		t.Errorf("ZScore=%v, want ≈1.403", sig.ZScore)
	}
	if sig.Type != model.SignalNeutral || sig.Confidence != 0 {
		t.Errorf("Type=%s Confidence=%v, want NEUTRAL/0", sig.Type, sig.Confidence)
	}
	if sig.Samples != 5 || sig.EntryPx != 102 {
		t.Errorf("Samples=%d EntryPx=%v", sig.Samples, sig.EntryPx)
	}

	// 阈值 1.0：SELL，置信度 = |z| × 25
	g = NewGenerator(snapshotCfg(1.0))
	sig = g.Compute("BTC-USD", seriesOf(prices, 5), now)
	if sig.Type != model.SignalSell {
		t.Fatalf("Type=%s, want SELL", sig.Type)
	}
	if !almostEqual(sig.Confidence, 35.08, 0.01) {
		t.Errorf("Confidence=%v, want ≈35.08", sig.Confidence)
	}
	if !almostEqual(sig.DeviationPct, 1.6/100.4*100, 1e-9) {
		t.Errorf("DeviationPct=%v", sig.DeviationPct)
	}
}

func TestCompute_BuyBelowMean(t *testing.T) {
	g := NewGenerator(snapshotCfg(1.0))
	sig := g.Compute("ETH-USD", seriesOf([]float64{100, 99, 101, 100, 98}, 5), t0+4*sec)
	if sig.Type != model.SignalBuy || sig.Side() != model.SideBuy {
		t.Fatalf("Type=%s, want BUY", sig.Type)
	}
	if sig.ZScore >= 0 {
		t.Fatalf("ZScore=%v 应为负", sig.ZScore)
	}
}

func TestCompute_ZeroStdIsNeutral(t *testing.T) {
	g := NewGenerator(snapshotCfg(0.5))
	sig := g.Compute("BTC-USD", seriesOf([]float64{100, 100, 100, 100}, 5), t0+3*sec)
	if sig == nil {
		t.Fatalf("应产生信号")
	}
	if sig.StdDev != 0 || sig.ZScore != 0 || sig.Type != model.SignalNeutral {
		t.Fatalf("std=%v z=%v type=%s", sig.StdDev, sig.ZScore, sig.Type)
	}
}

func TestCompute_InsufficientSamples(t *testing.T) {
	g := NewGenerator(snapshotCfg(1.0))
	if sig := g.Compute("BTC-USD", seriesOf([]float64{100, 101}, 5), t0+1*sec); sig != nil {
		t.Fatalf("样本不足应返回 nil, got %+v", sig)
	}
	// 窗口外的旧样本不计入
	s := seriesOf([]float64{100, 101, 99, 100}, 5)
	if sig := g.Compute("BTC-USD", s, t0+60*sec); sig != nil {
		t.Fatalf("回看窗口外样本不应参与计算")
	}
	if sig := g.Compute("BTC-USD", series.New(10, 10), t0); sig != nil {
		t.Fatalf("空序列应返回 nil")
	}
	if sig := g.Compute("BTC-USD", nil, t0); sig != nil {
		t.Fatalf("nil 序列应返回 nil")
	}
}

func TestCompute_RequireVolume(t *testing.T) {
	cfg := snapshotCfg(1.0)
	required := true
	cfg.RequireVolume = &required
	g := NewGenerator(cfg)
	sig := g.Compute("BTC-USD", seriesOf([]float64{100, 101, 99, 100, 102}, 0), t0+4*sec)
	if sig.Type != model.SignalNeutral || sig.Confidence != 0 {
		t.Fatalf("无成交量应为 NEUTRAL/0, got %s/%v", sig.Type, sig.Confidence)
	}
	if sig.ZScore == 0 {
		t.Fatalf("z 分数仍应计算")
	}
}

func TestConfidence_PenaltyAndVolumeFactor(t *testing.T) {
	g := NewGenerator(config.StrategyConfig{
		SpreadBaselinePct:   0.05,
		SpreadPenaltyFactor: 10,
		VolumeReference:     1000,
	})
	cases := []struct {
		name   string
		z      float64
		spread float64
		volume float64
		want   float64
	}{
		{"无惩罚满量", 2, 0.05, 1000, 50},
		{"价差惩罚", 2, 1.05, 1000, 40},
		{"成交量上限 1.2", 2, 0.05, 5000, 60},
		{"成交量不足", 2, 0.05, 500, 25},
		{"无成交量", 2, 0.05, 0, 40},
		{"置信度上限 100", 5, 0.05, 5000, 100},
		{"惩罚超过基础值", 1, 5, 1000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := g.confidence(tc.z, tc.spread, tc.volume)
			if !almostEqual(got, tc.want, 1e-9) {
				t.Fatalf("confidence=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestCompute_BarsMode(t *testing.T) {
	cfg := config.StrategyConfig{
		Mode:           config.ModeBars,
		WindowMinutes:  3,
		EntryThreshold: 1.0,
	}
	g := NewGenerator(cfg)
	s := series.New(100, 20)

	// 第 0 分钟收盘 500（作为最旧 K 线被丢弃），随后 100, 101, 99
	closes := []float64{500, 100, 101, 99}
	for m, c := range closes {
		s.Update(snap(t0+int64(m)*60*sec+30*sec, c, 5))
	}
	// 第 4 分钟的快照作为当前价
	now := t0 + 4*60*sec + 10*sec
	s.Update(snap(now, 104, 5))

	// 此时只有 4 根封口 K 线（0..3），需要 W+1=4 根
	sig := g.Compute("BTC-USD", s, now)
	if sig == nil {
		t.Fatalf("4 根 K 线应足够")
	}
	if sig.Samples != 3 {
		t.Fatalf("Samples=%d, want 3", sig.Samples)
	}
	if !almostEqual(sig.Mean, 100, 1e-9) {
		t.Fatalf("Mean=%v, want 100（最旧 K 线应被丢弃）", sig.Mean)
	}
	if sig.EntryPx != 104 || sig.Type != model.SignalSell {
		t.Fatalf("EntryPx=%v Type=%s", sig.EntryPx, sig.Type)
	}
}

func TestCompute_BarsModeInsufficient(t *testing.T) {
	g := NewGenerator(config.StrategyConfig{Mode: config.ModeBars, WindowMinutes: 10, EntryThreshold: 3})
	s := series.New(100, 20)
	for m := 0; m < 5; m++ {
		s.Update(snap(t0+int64(m)*60*sec, 100+float64(m), 5))
	}
	if sig := g.Compute("BTC-USD", s, t0+5*60*sec); sig != nil {
		t.Fatalf("K 线不足应返回 nil")
	}
}
