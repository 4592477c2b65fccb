package sizing

import (
	"testing"

	"meanrev-paper-engine/internal/config"
)

func TestGate_Check(t *testing.T) {
	g := NewGate(config.RiskConfig{
		MaxOpenPositions:  5,
		MaxExposureUSD:    1000,
		DailyLossLimitUSD: 50,
	}, nil)

	ok := GateState{LiveCount: 2, ExposureUSD: 100, RealizedPnLUSD: -10, DayPnLUSD: -10, BalanceUSD: 100}

	cases := []struct {
		name   string
		mutate func(*GateState)
		want   RejectReason
	}{
		{"通过", func(*GateState) {}, RejectNone},
		{"市场已有仓位", func(s *GateState) { s.MarketLive = true }, RejectMarketBusy},
		{"第 6 笔被拒", func(s *GateState) { s.LiveCount = 5 }, RejectMaxPositions},
		{"4 笔存活可通过", func(s *GateState) { s.LiveCount = 4 }, RejectNone},
		{"敞口达到上限", func(s *GateState) { s.ExposureUSD = 1000 }, RejectMaxExposure},
		{"亏损恰好等于阈值", func(s *GateState) { s.RealizedPnLUSD = -50 }, RejectNone},
		{"亏损超过阈值", func(s *GateState) { s.RealizedPnLUSD = -50.01 }, RejectDailyLoss},
		{"跨日后累计亏损仍熔断", func(s *GateState) { s.RealizedPnLUSD, s.DayPnLUSD = -80, 0 }, RejectDailyLoss},
		{"余额为 0", func(s *GateState) { s.BalanceUSD = 0 }, RejectNoBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := ok
			tc.mutate(&st)
			if got := g.Check("BTC-USD", st); got != tc.want {
				t.Fatalf("Check=%q, want %q", got, tc.want)
			}
		})
	}
}

func TestGate_AllowList(t *testing.T) {
	g := NewGate(config.RiskConfig{MaxOpenPositions: 5}, []string{"BTC-USD"})
	st := GateState{BalanceUSD: 100}
	if got := g.Check("ETH-USD", st); got != RejectMarketNotAllowed {
		t.Fatalf("Check=%q, want %q", got, RejectMarketNotAllowed)
	}
	if got := g.Check("BTC-USD", st); got != RejectNone {
		t.Fatalf("Check=%q, want pass", got)
	}
}

func TestGate_ZeroLimitsDisabled(t *testing.T) {
	g := NewGate(config.RiskConfig{}, nil)
	st := GateState{LiveCount: 100, ExposureUSD: 1e9, RealizedPnLUSD: -1e9, DayPnLUSD: -1e9, BalanceUSD: 1}
	if got := g.Check("BTC-USD", st); got != RejectNone {
		t.Fatalf("未配置的限制不应生效, got %q", got)
	}
}

func TestGate_DailyLossWindow(t *testing.T) {
	g := NewGate(config.RiskConfig{DailyLossLimitUSD: 50, LossWindow: config.LossWindowDaily}, nil)

	// 前一日亏损不影响当日
	st := GateState{RealizedPnLUSD: -80, DayPnLUSD: 0, BalanceUSD: 100}
	if got := g.Check("BTC-USD", st); got != RejectNone {
		t.Fatalf("Check=%q, want pass", got)
	}
	st.DayPnLUSD = -50.01
	if got := g.Check("BTC-USD", st); got != RejectDailyLoss {
		t.Fatalf("Check=%q, want %q", got, RejectDailyLoss)
	}
}
