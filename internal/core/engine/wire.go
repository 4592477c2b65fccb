package engine

import (
	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/account"
	"meanrev-paper-engine/internal/core/execution"
	"meanrev-paper-engine/internal/core/paper"
	"meanrev-paper-engine/internal/core/signal"
	"meanrev-paper-engine/internal/core/sizing"
	"meanrev-paper-engine/internal/core/store"
)

// Hooks 引擎对外输出
// 所有实现都在仓位管理器持锁或 worker 热路径上调用，不得阻塞
type Hooks struct {
	Emitter  paper.Emitter
	Orders   paper.OrderObserver
	Done     paper.PositionObserver
	Observer Observer
	Recorder Recorder
	Logger   *zap.Logger
}

// Wire 按配置组装完整引擎
// 参数 cfg: 已校验的配置（Markets 为最终订阅列表）
// 参数 rules: 各市场下单规则（通常由 sizing.RulesFromConfig 生成）
func Wire(cfg *config.Config, rules map[string]sizing.MarketRules, hooks Hooks) *Engine {
	logger := hooks.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	quotes := store.New()
	mgr := paper.NewManager(paper.SettingsFromConfig(cfg), paper.Deps{
		Exec:    execution.NewSimulator(cfg.Execution, cfg.Fees, cfg.App.Seed),
		Sizer:   sizing.NewSizer(cfg.Sizing, rules),
		Gate:    sizing.NewGate(cfg.Risk, cfg.MarketIDs()),
		Account: account.New(cfg.App.StartingBalanceUSD),
		Quotes:  quotes,
		Emitter: hooks.Emitter,
		Orders:  hooks.Orders,
		Done:    hooks.Done,
		Logger:  logger.Named("paper"),
	})
	return New(cfg.Strategy, quotes, signal.NewGenerator(cfg.Strategy), mgr, Options{
		Observer: hooks.Observer,
		Recorder: hooks.Recorder,
		Logger:   logger,
	})
}
