// Package events 负责把仓位管理器产生的成交事件投递给下游。
// 核心只向内存 Outbox 追加事件（永不阻塞），由 Dispatcher 在后台重试投递，保证至少一次送达。
package events

import (
	"sync"

	"meanrev-paper-engine/internal/core/model"
)

// Outbox 内存事件队列
// 无界；Emit 在持有仓位锁的路径上调用，只做追加与唤醒。
type Outbox struct {
	mu     sync.Mutex
	buf    []model.TradeEvent
	notify chan struct{}
	total  int64
}

// NewOutbox 创建事件队列
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Emit 追加一条事件并唤醒投递协程
func (o *Outbox) Emit(ev model.TradeEvent) {
	o.mu.Lock()
	o.buf = append(o.buf, ev)
	o.total++
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Drain 取出当前全部事件（保持顺序）
func (o *Outbox) Drain() []model.TradeEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.buf) == 0 {
		return nil
	}
	out := o.buf
	o.buf = nil
	return out
}

// Len 当前待投递事件数
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buf)
}

// Total 累计收到的事件数
func (o *Outbox) Total() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.total
}

// Ready 有新事件时可读
func (o *Outbox) Ready() <-chan struct{} {
	return o.notify
}
