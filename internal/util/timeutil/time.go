// Package timeutil 提供时间相关的工具函数。
// 引擎内部统一使用 Unix 纳秒时间戳，便于回放与确定性测试。
package timeutil

import (
	"time"
)

var (
	// baseTime 基准时间点（包含单调时钟读数）
	baseTime = time.Now()
	// baseUnixNs 基准时间点对应的 Unix 纳秒时间戳
	baseUnixNs = baseTime.UnixNano()
)

// minuteNs 一分钟的纳秒数
const minuteNs = int64(time.Minute)

// NowNano 获取当前时间的纳秒时间戳
// 使用“单调时钟 + 启动时 Unix 时间”组合实现：
// NowNano = baseUnixNs + time.Since(baseTime).Nanoseconds()
// 系统时间跳变（NTP/手动调整）时仍保持单调，避免 TTL 与持仓时长出现负值。
// 返回: 当前时间的 Unix 纳秒时间戳
func NowNano() int64 {
	return baseUnixNs + time.Since(baseTime).Nanoseconds()
}

// NanoToTime 将纳秒时间戳转换为 time.Time
// 参数 ns: 纳秒时间戳
// 返回: time.Time 对象
func NanoToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}

// DurationMs 计算两个纳秒时间戳之间的毫秒差
// 参数 startNs: 开始时间（纳秒）
// 参数 endNs: 结束时间（纳秒）
// 返回: 时间差（毫秒，浮点数以保留精度）
func DurationMs(startNs, endNs int64) float64 {
	return float64(endNs-startNs) / 1_000_000.0
}

// SecondsToNano 将秒转换为纳秒
func SecondsToNano(sec int) int64 {
	return int64(sec) * int64(time.Second)
}

// MinuteStart 返回 ns 所在分钟的起始时间（纳秒，60 秒对齐）
// 负数时间戳向下取整
func MinuteStart(ns int64) int64 {
	m := ns / minuteNs
	if ns < 0 && ns%minuteNs != 0 {
		m--
	}
	return m * minuteNs
}

// UTCDayKey 返回 ns 对应的 UTC 日期，如 2024-01-31
// 用于按日累计已实现盈亏
func UTCDayKey(ns int64) string {
	return time.Unix(0, ns).UTC().Format("2006-01-02")
}
