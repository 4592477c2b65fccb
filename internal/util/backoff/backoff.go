// Package backoff 实现指数退避重试机制。
// 用于 WebSocket 断线重连与事件投递失败重试，避免频繁重试压垮对端。
// 默认基础间隔 1s，最大间隔 30s，抖动 ±20%
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Backoff 指数退避计算器
// 每次调用 Next() 返回下一次重试的等待时间
// 等待时间按指数增长，直到达到最大值
// 非并发安全，每个重试循环独立持有一个实例
type Backoff struct {
	// base 基础等待时间
	base time.Duration
	// max 最大等待时间
	max time.Duration
	// jitter 抖动比例（0-1），例如 0.2 表示 ±20%
	jitter float64
	// attempt 当前重试次数
	attempt int
	// rnd 抖动随机源（nil 时使用全局随机源）
	rnd *rand.Rand
}

// New 创建新的退避计算器
// 参数 base: 基础等待时间（建议 1s）
// 参数 max: 最大等待时间（建议 30s）
// 参数 jitter: 抖动比例（建议 0.2，即 ±20%）
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		base:    base,
		max:     max,
		jitter:  jitter,
		attempt: 0,
	}
}

// NewDefault 创建默认配置的退避计算器
// 基础间隔 1s，最大间隔 30s，抖动 ±20%
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// WithRand 指定抖动随机源，便于测试复现
func (b *Backoff) WithRand(r *rand.Rand) *Backoff {
	b.rnd = r
	return b
}

// Next 获取下次重试的等待时间
// 计算公式: base * 2^attempt，然后应用抖动
// 返回值不会超过 max
func (b *Backoff) Next() time.Duration {
	// 计算指数退避基础值: base * 2^attempt
	// 位移超过 30 后必然超过 max，提前截断避免溢出
	shift := b.attempt
	if shift > 30 {
		shift = 30
	}
	multiplier := int64(1) << shift
	delay := b.base * time.Duration(multiplier)

	// 限制最大值
	if delay > b.max || delay <= 0 {
		delay = b.max
	}

	// 应用抖动: delay * (1 ± jitter)
	if b.jitter > 0 {
		jitterFactor := 1.0 + (b.float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * jitterFactor)
	}

	b.attempt++

	return delay
}

// Wait 等待下一次退避时间
// 参数 ctx: 上下文，取消时立即返回
// 返回: ctx 被取消时返回 ctx.Err()
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Reset 重置退避计算器
// 在连接或投递成功后调用，重置重试次数
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt 获取当前重试次数
func (b *Backoff) Attempt() int {
	return b.attempt
}

func (b *Backoff) float64() float64 {
	if b.rnd != nil {
		return b.rnd.Float64()
	}
	return rand.Float64()
}
