package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meanrev-paper-engine/internal/core/model"
)

// BookHandler 处理单条订单簿事件
// *Engine 为默认实现
type BookHandler interface {
	OnBook(ev *model.BookEvent) *Tick
}

var _ BookHandler = (*Engine)(nil)

// 默认每市场队列长度
const defaultQueueSize = 256

// Runner 把行情事件路由到各市场的有界队列，每个市场一个 worker 串行处理
type Runner struct {
	h         BookHandler
	queueSize int
	log       *zap.Logger

	processed atomic.Int64
	dropped   atomic.Int64
}

// NewRunner 创建路由器
// 参数 h: 事件处理器
// 参数 queueSize: 每市场队列长度（<=0 使用默认值）
func NewRunner(h BookHandler, queueSize int, logger *zap.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{h: h, queueSize: queueSize, log: logger.Named("runner")}
}

// Run 消费行情通道直到通道关闭或 ctx 取消
// 队列满时丢弃事件（实时行情优先保证新鲜度）；退出前等待各 worker 处理完已入队事件
func (r *Runner) Run(ctx context.Context, in <-chan *model.BookEvent) error {
	g := &errgroup.Group{}
	queues := make(map[string]chan *model.BookEvent)

	route := func(ev *model.BookEvent) {
		q, ok := queues[ev.Market]
		if !ok {
			q = make(chan *model.BookEvent, r.queueSize)
			queues[ev.Market] = q
			g.Go(func() error {
				for ev := range q {
					r.h.OnBook(ev)
					r.processed.Add(1)
				}
				return nil
			})
		}
		select {
		case q <- ev:
		default:
			if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
				r.log.Warn("市场队列已满，丢弃事件", zap.String("market", ev.Market), zap.Int64("dropped", n))
			}
		}
	}

	err := func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-in:
				if !ok {
					return nil
				}
				if ev == nil || ev.Market == "" {
					continue
				}
				route(ev)
			}
		}
	}()

	for _, q := range queues {
		close(q)
	}
	if werr := g.Wait(); werr != nil {
		return werr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Step 在调用方 goroutine 中同步处理一条事件（回放模式）
// 回放时所有市场按录制顺序串行处理，结果与录制时的 tick 顺序一致
func (r *Runner) Step(ctx context.Context, ev *model.BookEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.h.OnBook(ev)
	r.processed.Add(1)
	return nil
}

// Processed 已处理事件数
func (r *Runner) Processed() int64 {
	return r.processed.Load()
}

// Dropped 因队列满丢弃的事件数
func (r *Runner) Dropped() int64 {
	return r.dropped.Load()
}
