// Package latency 统计模拟订单的执行延迟分位数。
// 按市价单、限价单与穿越价差撤单分别维护滚动窗口。
package latency

import (
	"math"
	"sort"
	"sync"

	"meanrev-paper-engine/internal/core/model"
)

// 延迟类别
const (
	// KindMarket 市价单
	KindMarket = "market"
	// KindLimit 限价单（成交或挂单）
	KindLimit = "limit"
	// KindCancel 穿越价差被撤的限价单
	KindCancel = "cancel"
)

// Kinds 全部延迟类别（输出顺序）
var Kinds = []string{KindMarket, KindLimit, KindCancel}

// LatencyStats 延迟统计快照（滚动窗口）
// 单位：毫秒。
type LatencyStats struct {
	// Kind 类别: market, limit, cancel
	Kind string `json:"kind"`
	// Count 样本总数（累计）
	Count int64 `json:"count"`
	// P50Ms P50 延迟（毫秒）
	P50Ms float64 `json:"p50_ms"`
	// P90Ms P90 延迟（毫秒）
	P90Ms float64 `json:"p90_ms"`
	// P99Ms P99 延迟（毫秒）
	P99Ms float64 `json:"p99_ms"`
}

// rollingWindow 存储微秒精度的样本
type rollingWindow struct {
	size  int
	buf   []int64
	pos   int
	count int64
	full  bool

	mu sync.Mutex
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]int64, 0, size)}
}

func (w *rollingWindow) add(v int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

func (w *rollingWindow) snapshotQuantiles(qs ...float64) (count int64, values []int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	count = w.count
	if len(w.buf) == 0 {
		return count, make([]int64, len(qs))
	}

	tmp := make([]int64, len(w.buf))
	copy(tmp, w.buf)
	sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })

	values = make([]int64, len(qs))
	n := len(tmp)
	for i, q := range qs {
		if q <= 0 {
			values[i] = tmp[0]
			continue
		}
		if q >= 1 {
			values[i] = tmp[n-1]
			continue
		}
		idx := int(float64(n-1) * q)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		values[i] = tmp[idx]
	}
	return count, values
}

// Tracker 订单延迟追踪器
// 并发安全；实现仓位管理器的订单观察者接口。
type Tracker struct {
	windows map[string]*rollingWindow
}

// NewTracker 创建延迟追踪器
// 参数 windowSize: 滚动窗口大小（建议 10000），用于 P50/P90/P99。
func NewTracker(windowSize int) *Tracker {
	t := &Tracker{windows: make(map[string]*rollingWindow, len(Kinds))}
	for _, k := range Kinds {
		t.windows[k] = newRollingWindow(windowSize)
	}
	return t
}

// KindOf 订单所属的延迟类别
func KindOf(o *model.Order) string {
	switch {
	case o.Kind == model.OrderMarket:
		return KindMarket
	case o.Status == model.OrderCancelled:
		return KindCancel
	default:
		return KindLimit
	}
}

// ObserveOrder 记录一笔订单的模拟延迟
func (t *Tracker) ObserveOrder(o *model.Order) {
	if o == nil || o.LatencyMs <= 0 {
		return
	}
	t.windows[KindOf(o)].add(int64(math.Round(o.LatencyMs * 1000)))
}

// Stats 获取指定类别的统计快照
// 参数 kind: market, limit 或 cancel
func (t *Tracker) Stats(kind string) LatencyStats {
	w, ok := t.windows[kind]
	if !ok {
		return LatencyStats{Kind: kind}
	}
	count, qs := w.snapshotQuantiles(0.50, 0.90, 0.99)
	return LatencyStats{
		Kind:  kind,
		Count: count,
		P50Ms: float64(qs[0]) / 1000.0,
		P90Ms: float64(qs[1]) / 1000.0,
		P99Ms: float64(qs[2]) / 1000.0,
	}
}

// All 获取全部类别的统计快照
func (t *Tracker) All() []LatencyStats {
	out := make([]LatencyStats, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, t.Stats(k))
	}
	return out
}
