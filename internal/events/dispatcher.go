package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/util/backoff"
)

// Sink 事件下游
// Deliver 必须幂等：重试时同一 ID 的事件可能重复送达
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev model.TradeEvent) error
}

// DispatchStats 投递统计
type DispatchStats struct {
	// Delivered 全部下游成功送达的事件数
	Delivered int64 `json:"delivered"`
	// Failed 关闭时仍未送达而放弃的事件数
	Failed int64 `json:"failed"`
	// Retries 累计失败重试次数
	Retries int64 `json:"retries"`
	// Pending 至少一个下游尚未送达的事件数
	Pending int64 `json:"pending"`
}

// queued 带序号的待投递事件
type queued struct {
	seq uint64
	ev  model.TradeEvent
}

// sinkQueue 单个下游的待投递队列
// 队首事件送达后才会投递下一条，保证该下游收到的顺序与产生顺序一致。
type sinkQueue struct {
	sink    Sink
	pending []queued
	// outage 非 nil 表示下游不可用，retryAt 之前不再尝试
	outage  *backoff.Backoff
	retryAt time.Time
}

// Dispatcher 事件投递器
// 每个下游独立排队，失败的事件留在队首按退避持续重试，直到送达（至少一次）。
// 只有 Run 退出时的最终刷新超时才会放弃剩余事件。
// Run 与 Flush 不可并发调用。
type Dispatcher struct {
	outbox  *Outbox
	queues  []*sinkQueue
	retries int
	logger  *zap.Logger

	newBackoff   func() *backoff.Backoff
	flushTimeout time.Duration

	seq       uint64
	remaining map[uint64]int

	delivered atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	pending   atomic.Int64
}

// NewDispatcher 创建事件投递器
// 参数 outbox: 事件来源
// 参数 sinks: 下游列表
// 参数 retries: 单轮投递中对同一下游的立即重试次数；仍失败则转入退避重试
func NewDispatcher(outbox *Outbox, sinks []Sink, retries int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	queues := make([]*sinkQueue, len(sinks))
	for i, s := range sinks {
		queues[i] = &sinkQueue{sink: s}
	}
	return &Dispatcher{
		outbox:  outbox,
		queues:  queues,
		retries: retries,
		logger:  logger.Named("dispatcher"),
		newBackoff: func() *backoff.Backoff {
			return backoff.New(100*time.Millisecond, 5*time.Second, 0.2)
		},
		flushTimeout: 5 * time.Second,
		remaining:    make(map[uint64]int),
	}
}

// WithBackoff 替换重试退避策略（单轮重试与下游故障期间的重试共用）
func (d *Dispatcher) WithBackoff(f func() *backoff.Backoff) *Dispatcher {
	d.newBackoff = f
	return d
}

// Run 持续投递直到 ctx 取消
// 退出前用独立的 ctx 刷新剩余事件；超时仍未送达的事件记为失败并放弃
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		var (
			timer  *time.Timer
			retryC <-chan time.Time
		)
		if wait, ok := d.nextRetry(time.Now()); ok {
			timer = time.NewTimer(wait)
			retryC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), d.flushTimeout)
			defer cancel()
			if err := d.Flush(flushCtx); err != nil {
				d.abandon()
				return err
			}
			return nil
		case <-d.outbox.Ready():
			d.enqueue(d.outbox.Drain())
			_ = d.pump(ctx)
		case <-retryC:
			_ = d.pump(ctx)
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Flush 同步投递当前队列中的全部事件，直到全部送达或 ctx 结束
// ctx 结束时未送达的事件仍保留在队列中，之后的 Flush/Run 会继续投递
// 返回: ctx 结束时的汇总错误
func (d *Dispatcher) Flush(ctx context.Context) error {
	for {
		d.enqueue(d.outbox.Drain())
		err := d.pump(ctx)

		wait, ok := d.nextRetry(time.Now())
		if !ok {
			if d.outbox.Len() == 0 {
				return nil
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("仍有 %d 条事件未送达: %w", d.pending.Load(), multierr.Append(err, ctx.Err()))
		case <-timer.C:
		}
	}
}

// Stats 获取投递统计
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Retries:   d.retried.Load(),
		Pending:   d.pending.Load(),
	}
}

// enqueue 把一批事件追加到每个下游的队列
func (d *Dispatcher) enqueue(batch []model.TradeEvent) {
	if len(batch) == 0 {
		return
	}
	for _, ev := range batch {
		if len(d.queues) == 0 {
			d.delivered.Add(1)
			continue
		}
		d.seq++
		d.remaining[d.seq] = len(d.queues)
		for _, q := range d.queues {
			q.pending = append(q.pending, queued{seq: d.seq, ev: ev})
		}
	}
	d.pending.Store(int64(len(d.remaining)))
}

// pump 对每个到期的下游投递队列中的事件
func (d *Dispatcher) pump(ctx context.Context) error {
	var errs error
	now := time.Now()
	for _, q := range d.queues {
		errs = multierr.Append(errs, d.pumpSink(ctx, q, now))
	}
	return errs
}

func (d *Dispatcher) pumpSink(ctx context.Context, q *sinkQueue, now time.Time) error {
	if q.outage != nil && now.Before(q.retryAt) {
		return nil
	}
	for len(q.pending) > 0 {
		item := q.pending[0]
		if err := d.deliverTo(ctx, q.sink, item.ev); err != nil {
			if q.outage == nil {
				q.outage = d.newBackoff()
				d.logger.Warn("下游不可用，事件保留待重试",
					zap.String("sink", q.sink.Name()),
					zap.String("id", item.ev.ID),
					zap.String("action", string(item.ev.Action)),
					zap.String("market", item.ev.Market),
					zap.Int("queued", len(q.pending)),
					zap.Error(err))
			}
			q.retryAt = time.Now().Add(q.outage.Next())
			return err
		}
		q.pending[0] = queued{}
		q.pending = q.pending[1:]
		d.ack(item.seq)
		if q.outage != nil {
			d.logger.Info("下游已恢复", zap.String("sink", q.sink.Name()), zap.Int("queued", len(q.pending)))
			q.outage = nil
		}
	}
	q.pending = nil
	return nil
}

// ack 记录一个下游已送达；全部下游送达后计入 Delivered
func (d *Dispatcher) ack(seq uint64) {
	d.remaining[seq]--
	if d.remaining[seq] > 0 {
		return
	}
	delete(d.remaining, seq)
	d.delivered.Add(1)
	d.pending.Store(int64(len(d.remaining)))
}

// nextRetry 距离最早一个故障下游可重试的时间
// 返回: 无待投递事件时 ok 为 false
func (d *Dispatcher) nextRetry(now time.Time) (time.Duration, bool) {
	var (
		wait  time.Duration
		found bool
	)
	for _, q := range d.queues {
		if len(q.pending) == 0 {
			continue
		}
		w := time.Duration(0)
		if q.outage != nil {
			w = max(q.retryAt.Sub(now), 0)
		}
		if !found || w < wait {
			wait, found = w, true
		}
	}
	return wait, found
}

// abandon 放弃全部未送达事件
func (d *Dispatcher) abandon() {
	n := len(d.remaining)
	if n == 0 {
		return
	}
	for _, q := range d.queues {
		if len(q.pending) > 0 {
			d.logger.Error("关闭时下游仍有未送达事件，放弃投递",
				zap.String("sink", q.sink.Name()),
				zap.Int("events", len(q.pending)))
		}
		q.pending = nil
		q.outage = nil
	}
	clear(d.remaining)
	d.failed.Add(int64(n))
	d.pending.Store(0)
}

// deliverTo 单轮投递：失败时按退避立即重试 retries 次
func (d *Dispatcher) deliverTo(ctx context.Context, s Sink, ev model.TradeEvent) error {
	b := d.newBackoff()
	for {
		err := s.Deliver(ctx, ev)
		if err == nil {
			return nil
		}
		d.retried.Add(1)
		if b.Attempt() >= d.retries {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
		if werr := b.Wait(ctx); werr != nil {
			return fmt.Errorf("%s: %w", s.Name(), multierr.Append(err, werr))
		}
	}
}
