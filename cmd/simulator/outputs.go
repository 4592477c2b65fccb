package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
	"meanrev-paper-engine/internal/events"
	"meanrev-paper-engine/internal/journal"
	"meanrev-paper-engine/internal/metrics"
	"meanrev-paper-engine/internal/output/jsonl"
	"meanrev-paper-engine/internal/output/wsfeed"
)

// outputs 所有下游输出
type outputs struct {
	sinks     []events.Sink
	positions *jsonl.PositionSink
	books     *jsonl.BookRecorder
	metrics   *jsonl.Writer
	hub       *wsfeed.Hub
	journal   *journal.Journal

	writers []*jsonl.Writer
	logger  *zap.Logger
}

// openOutputs 按配置创建输出
// 参数 record: 是否录制订单簿
func openOutputs(ctx context.Context, cfg *config.Config, record bool, logger *zap.Logger) (*outputs, error) {
	o := &outputs{logger: logger}
	o.sinks = append(o.sinks, metrics.Sink{})

	open := func(name string) (*jsonl.Writer, error) {
		w, err := jsonl.NewWriter(jsonl.PathIn(cfg.Output.Dir, name), cfg.Output.BufferSize)
		if err != nil {
			return nil, fmt.Errorf("创建 %s writer 失败: %w", name, err)
		}
		o.writers = append(o.writers, w)
		return w, nil
	}

	if cfg.Output.EventsEnabled {
		w, err := open(jsonl.EventsFile)
		if err != nil {
			_ = o.close()
			return nil, err
		}
		o.sinks = append(o.sinks, jsonl.NewEventSink(w))
	}
	if cfg.Output.PositionsEnabled {
		w, err := open(jsonl.PositionsFile)
		if err != nil {
			_ = o.close()
			return nil, err
		}
		o.positions = jsonl.NewPositionSink(w, logger)
	}
	if cfg.Output.MetricsEnabled {
		w, err := open(jsonl.MetricsFile)
		if err != nil {
			_ = o.close()
			return nil, err
		}
		o.metrics = w
	}
	if record {
		w, err := open(jsonl.BooksFile)
		if err != nil {
			_ = o.close()
			return nil, err
		}
		o.books = jsonl.NewBookRecorder(w, logger)
		logger.Info("订单簿录制已启用", zap.String("file", w.Path()))
	}

	if cfg.Telemetry.ListenAddr != "" {
		o.hub = wsfeed.NewHub(logger)
		o.sinks = append(o.sinks, o.hub)
	}

	if cfg.Journal.Enabled {
		timeout := time.Duration(cfg.Journal.TimeoutMs) * time.Millisecond
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		j, err := journal.Open(openCtx, cfg.Journal.DSN, timeout)
		cancel()
		if err != nil {
			_ = o.close()
			return nil, fmt.Errorf("打开事件日志失败: %w", err)
		}
		o.journal = j
		o.sinks = append(o.sinks, j)
	}
	return o, nil
}

// close 关闭全部输出（先关闭推送，再刷盘）
// 返回: 各文件关闭错误的合并结果
func (o *outputs) close() error {
	if o.hub != nil {
		o.hub.Close()
	}
	if o.journal != nil {
		o.journal.Close()
	}
	var errs error
	for _, w := range o.writers {
		if err := w.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", w.Path(), err))
			continue
		}
		written, failed, dropped := w.Stats()
		o.logger.Info("输出文件已关闭",
			zap.String("file", w.Path()),
			zap.Int64("written", written),
			zap.Int64("failed", failed),
			zap.Int64("dropped", dropped),
		)
	}
	return errs
}
