package perf

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"meanrev-paper-engine/internal/core/model"
)

func closed(market string, pnl float64, holdSec int64, reason model.ExitReason) *model.Position {
	return &model.Position{
		ID:          "p",
		Market:      market,
		Status:      model.PositionClosed,
		PnLUSD:      pnl,
		FeesTotal:   -0.01,
		EntryTimeNs: 1_000_000_000,
		ExitTimeNs:  1_000_000_000 + holdSec*1_000_000_000,
		ExitReason:  reason,
	}
}

func TestTracker_MarketAggregates(t *testing.T) {
	tr := NewTracker()
	tr.ObservePosition(closed("BTC-USD", 3, 10, model.ExitTakeProfit))
	tr.ObservePosition(closed("BTC-USD", -1, 20, model.ExitStopLoss))
	tr.ObservePosition(closed("BTC-USD", 1, 30, model.ExitTakeProfit))
	tr.ObservePosition(&model.Position{Market: "BTC-USD", Status: model.PositionMissed, ExitReason: model.ExitExpired})
	tr.ObservePosition(&model.Position{Market: "BTC-USD", Status: model.PositionOpen})
	tr.ObservePosition(nil)

	s, ok := tr.Market("BTC-USD")
	if !ok {
		t.Fatalf("缺少市场统计")
	}
	if s.Trades != 3 || s.Wins != 2 || s.Losses != 1 || s.Misses != 1 {
		t.Fatalf("计数错误: %+v", s)
	}
	if s.BestUSD != 3 || s.WorstUSD != -1 || s.TotalPnLUSD != 3 {
		t.Fatalf("best/worst/total 错误: %+v", s)
	}
	if math.Abs(s.WinRate-2.0/3) > 1e-12 {
		t.Fatalf("WinRate=%v", s.WinRate)
	}
	if math.Abs(s.ProfitFactor-4) > 1e-12 {
		t.Fatalf("ProfitFactor=%v", s.ProfitFactor)
	}
	if math.Abs(s.AvgHoldingMs-20000) > 1e-6 {
		t.Fatalf("AvgHoldingMs=%v", s.AvgHoldingMs)
	}
	// p=2/3, R=2, L=1 → EV = 4/3 - 1/3 = 1
	if math.Abs(s.EV-1) > 1e-12 {
		t.Fatalf("EV=%v", s.EV)
	}
	if math.Abs(s.PRequired-1.0/3) > 1e-12 {
		t.Fatalf("PRequired=%v", s.PRequired)
	}
	if s.Exits[model.ExitTakeProfit] != 2 || s.Exits[model.ExitStopLoss] != 1 {
		t.Fatalf("Exits=%v", s.Exits)
	}
}

func TestTracker_ProfitFactorInfWithoutLosses(t *testing.T) {
	tr := NewTracker()
	tr.ObservePosition(closed("ETH-USD", 2, 1, model.ExitZNeutral))

	s, _ := tr.Market("ETH-USD")
	if !math.IsInf(s.ProfitFactor, 1) {
		t.Fatalf("无亏损时 ProfitFactor 应为 +Inf: %v", s.ProfitFactor)
	}
	if s.ProfitFactorString() != "inf" {
		t.Fatalf("ProfitFactorString=%s", s.ProfitFactorString())
	}
}

func TestTracker_UnknownMarketAndTotal(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.Market("SOL-USD"); ok {
		t.Fatalf("未知市场不应存在")
	}
	if tot := tr.Total(); tot.Trades != 0 || tot.PRequired != 1 {
		t.Fatalf("空汇总=%+v", tot)
	}

	tr.ObservePosition(closed("SOL-USD", 1, 1, model.ExitTimeout))
	tr.ObservePosition(closed("BTC-USD", -2, 1, model.ExitTimeout))
	all := tr.All()
	if len(all) != 2 || all[0].Market != "BTC-USD" {
		t.Fatalf("All=%+v", all)
	}
	if tot := tr.Total(); tot.Trades != 2 || tot.TotalPnLUSD != -1 || tot.Market != "ALL" {
		t.Fatalf("Total=%+v", tot)
	}
}

// **Feature: meanrev-paper-engine, Property 10: Aggregate Consistency**

func TestTracker_Aggregates_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 80
	properties := gopter.NewProperties(parameters)

	properties.Property("胜负之和等于笔数，总盈亏等于逐笔之和", prop.ForAll(
		func(pnls []float64) bool {
			tr := NewTracker()
			var sum float64
			for _, p := range pnls {
				tr.ObservePosition(closed("BTC-USD", p, 1, model.ExitTimeout))
				sum += p
			}
			s := tr.Total()
			if s.Trades != int64(len(pnls)) || s.Wins+s.Losses != s.Trades {
				return false
			}
			if math.Abs(s.TotalPnLUSD-sum) > 1e-6 {
				return false
			}
			if s.Trades > 0 && (s.WinRate < 0 || s.WinRate > 1 || s.BestUSD < s.WorstUSD) {
				return false
			}
			return s.PRequired >= 0 && s.PRequired <= 1
		},
		gen.SliceOf(gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}
