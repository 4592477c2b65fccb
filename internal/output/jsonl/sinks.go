package jsonl

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"meanrev-paper-engine/internal/core/model"
)

// dropLogEvery 丢弃告警的采样间隔
const dropLogEvery = 1000

// 输出文件名
const (
	EventsFile    = "events.jsonl"
	PositionsFile = "positions.jsonl"
	MetricsFile   = "metrics.jsonl"
	BooksFile     = "books.jsonl"
)

// PathIn 拼接输出目录与文件名
func PathIn(dir, name string) string {
	return filepath.Join(dir, name)
}

// EventSink 成交事件文件下游
type EventSink struct {
	w *Writer
}

// NewEventSink 创建成交事件下游
func NewEventSink(w *Writer) *EventSink {
	return &EventSink{w: w}
}

// Name 下游名称
func (s *EventSink) Name() string { return "jsonl" }

// Deliver 写入一条成交事件
func (s *EventSink) Deliver(_ context.Context, ev model.TradeEvent) error {
	return s.w.Write(ev)
}

// dropCounter 非阻塞写入的丢弃计数，首次及每 dropLogEvery 次告警一次
type dropCounter struct {
	w      *Writer
	logger *zap.Logger
	n      atomic.Int64
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (d *dropCounter) tryWrite(v any, fields ...zap.Field) {
	if d.w.TryWrite(v) {
		return
	}
	if n := d.n.Add(1); n == 1 || n%dropLogEvery == 0 {
		d.logger.Warn("输出队列已满，丢弃记录",
			append(fields, zap.String("file", d.w.Path()), zap.Int64("dropped", n))...)
	}
}

// positionRecord 已结束仓位的输出格式
type positionRecord struct {
	*model.Position
	// HoldingMs 持仓时长（毫秒）
	HoldingMs float64 `json:"holding_ms"`
}

// PositionSink 已结束仓位文件输出
// 在仓位管理器加锁期间被调用，因此只做非阻塞投递
type PositionSink struct {
	drops dropCounter
}

// NewPositionSink 创建仓位输出
func NewPositionSink(w *Writer, logger *zap.Logger) *PositionSink {
	return &PositionSink{drops: dropCounter{w: w, logger: orNop(logger)}}
}

// Dropped 因队列已满丢弃的仓位数
func (s *PositionSink) Dropped() int64 { return s.drops.n.Load() }

// ObservePosition 写入一个已结束仓位
func (s *PositionSink) ObservePosition(pos *model.Position) {
	if pos == nil {
		return
	}
	s.drops.tryWrite(positionRecord{
		Position:  pos,
		HoldingMs: float64(pos.HoldingNs(pos.ExitTimeNs)) / 1e6,
	}, zap.String("position", pos.ID))
}

// BookRecorder 原始订单簿事件记录（供 -replay 回放）
// 在市场处理协程上调用，队列满时丢弃而不阻塞
type BookRecorder struct {
	drops dropCounter
}

// NewBookRecorder 创建订单簿记录器
func NewBookRecorder(w *Writer, logger *zap.Logger) *BookRecorder {
	return &BookRecorder{drops: dropCounter{w: w, logger: orNop(logger)}}
}

// Dropped 因队列已满丢弃的订单簿事件数
func (r *BookRecorder) Dropped() int64 { return r.drops.n.Load() }

// Record 记录一条订单簿事件
func (r *BookRecorder) Record(ev *model.BookEvent) error {
	if !ev.IsValid() {
		return nil
	}
	if r.drops.w.closed.Load() {
		return ErrClosed
	}
	r.drops.tryWrite(ev, zap.String("market", ev.Market))
	return nil
}
