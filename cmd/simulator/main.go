// Package main 是均值回归模拟交易引擎的入口点。
// 订阅 dYdX indexer 的订单簿推送，对每个市场计算滚动 z 分数信号，
// 在模拟账户上执行入场、成交与出场，并输出事件、仓位与指标。
//
// 重要：本系统仅用于模拟，严禁真实下单。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/core/engine"
	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/core/paper"
	"meanrev-paper-engine/internal/core/sizing"
	"meanrev-paper-engine/internal/events"
	"meanrev-paper-engine/internal/exchange/dydx"
	"meanrev-paper-engine/internal/metadata"
	"meanrev-paper-engine/internal/metrics"
	"meanrev-paper-engine/internal/output/jsonl"
	"meanrev-paper-engine/internal/stats/latency"
	"meanrev-paper-engine/internal/stats/perf"
)

func main() {
	var (
		configPath string
		replayPath string
		record     bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.StringVar(&replayPath, "replay", "", "回放录制的订单簿文件（books.jsonl），不连接交易所")
	flag.BoolVar(&record, "record", false, "实时模式下录制订单簿到输出目录")
	flag.Parse()

	// .env 可选，用于提供 JOURNAL_DSN
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "加载 .env 失败: %v\n", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if cfg.Journal.DSN == "" {
		cfg.Journal.DSN = os.Getenv("JOURNAL_DSN")
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	// 回放模式离线运行，只使用配置中的市场与精度
	var precisions map[string]int
	var minQtys map[string]float64
	if replayPath == "" {
		res, err := metadata.Resolve(ctx, cfg, metadata.NewHTTPFetcher(cfg.Metadata.TimeoutMs), logger.Named("metadata"))
		if err != nil {
			logger.Error("解析市场失败", zap.Error(err))
			os.Exit(1)
		}
		cfg.Markets = res.Markets
		precisions, minQtys = res.Precisions(), res.MinQtys()
	}
	rules := sizing.RulesFromConfig(cfg, precisions, minQtys)

	out, err := openOutputs(ctx, cfg, record && replayPath == "", logger)
	if err != nil {
		logger.Error("初始化输出失败", zap.Error(err))
		os.Exit(1)
	}

	outbox := events.NewOutbox()
	perfTracker := perf.NewTracker()
	latTracker := latency.NewTracker(10000)

	doneObs := paper.PositionObservers{perfTracker}
	if out.positions != nil {
		doneObs = append(doneObs, out.positions)
	}
	hooks := engine.Hooks{
		Emitter:  outbox,
		Orders:   paper.OrderObservers{latTracker, metrics.OrderObserver{}},
		Done:     doneObs,
		Observer: metrics.EngineObserver{},
		Logger:   logger,
	}
	if out.books != nil {
		hooks.Recorder = out.books
	}
	eng := engine.Wire(cfg, rules, hooks)
	runner := engine.NewRunner(eng, cfg.WS.QueueSize, logger)

	dispatcher := events.NewDispatcher(outbox, out.sinks, cfg.Output.DispatchRetries, logger)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if err := dispatcher.Run(dispatchCtx); err != nil {
			logger.Warn("事件投递未完成", zap.Error(err))
		}
	}()

	var server *http.Server
	if cfg.Telemetry.ListenAddr != "" {
		extra := map[string]http.Handler{}
		if out.hub != nil {
			extra["/ws"] = out.hub
		}
		server = metrics.Serve(cfg.Telemetry.ListenAddr, extra)
		logger.Info("指标服务已启动", zap.String("addr", cfg.Telemetry.ListenAddr))
	}

	rep := &reporter{
		eng:        eng,
		runner:     runner,
		perf:       perfTracker,
		latency:    latTracker,
		dispatcher: dispatcher,
		writer:     out.metrics,
	}

	var runErr error
	if replayPath != "" {
		runErr = runReplay(ctx, replayPath, runner, rep, logger)
	} else {
		runErr = runLive(ctx, cfg, runner, rep, logger)
	}
	if runErr != nil {
		logger.Error("运行结束", zap.Error(runErr))
	}

	rep.write(rep.nowNs())
	rep.summary(logger)

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		stopDispatch()
		<-dispatchDone
		if server != nil {
			_ = server.Shutdown(shutdownCtx)
		}
		if err := out.close(); err != nil {
			logger.Warn("关闭输出失败", zap.Error(err))
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成", zap.Int64("events", outbox.Total()))
	}
}

// runLive 连接 dYdX 并驱动引擎，直到收到退出信号
func runLive(ctx context.Context, cfg *config.Config, runner *engine.Runner, rep *reporter, logger *zap.Logger) error {
	client := dydx.NewClient(cfg.WS, cfg.MarketIDs(), logger)
	rep.client = client

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()
	if err := client.Connect(startCtx); err != nil {
		return fmt.Errorf("dYdX 连接失败: %w", err)
	}
	if err := client.Subscribe(); err != nil {
		_ = client.Close()
		return fmt.Errorf("dYdX 订阅失败: %w", err)
	}

	go client.Run(ctx)
	go rep.loop(ctx, time.Duration(cfg.Output.MetricsIntervalMs)*time.Millisecond)

	// 退出信号到达后关闭连接，BookCh 随之关闭，runner 处理完已入队事件后返回
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	return runner.Run(context.Background(), client.BookCh())
}

// runReplay 顺序回放录制文件
func runReplay(ctx context.Context, path string, runner *engine.Runner, rep *reporter, logger *zap.Logger) error {
	logger.Info("开始回放", zap.String("file", path))
	n, err := jsonl.ReadBooksFile(path, func(ev *model.BookEvent) error {
		rep.lastNs.Store(ev.ArrivedAtUnixNs)
		return runner.Step(ctx, ev)
	})
	logger.Info("回放结束", zap.Int("events", n), zap.Int64("processed", runner.Processed()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
