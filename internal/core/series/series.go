// Package series 维护单个市场的有界价格历史与分钟 K 线聚合。
package series

import (
	"time"

	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/util/timeutil"
)

// Series 单市场价格序列
// 快照使用环形缓冲区，容量满后覆盖最旧样本；
// 分钟 K 线在跨越分钟边界时封口追加，超出容量丢弃最旧 K 线。
// 非并发安全：同一市场只应由一个 worker 写入。
type Series struct {
	// buf 快照环形缓冲区
	buf []model.PriceSnapshot
	// pos 下一个写入位置
	pos int
	// full 是否已填满
	full bool

	// barCap K 线保留数量
	barCap int
	// bars 已封口的分钟 K 线（按时间升序）
	bars []model.MinuteBar
	// cur 当前分钟累加器
	cur *model.MinuteBar
}

// New 创建价格序列
// 参数 capacity: 快照保留数量（建议 100 或更多）
// 参数 barCapacity: 分钟 K 线保留数量（建议 20）
func New(capacity, barCapacity int) *Series {
	if capacity <= 0 {
		capacity = 100
	}
	if barCapacity <= 0 {
		barCapacity = 20
	}
	return &Series{
		buf:    make([]model.PriceSnapshot, capacity),
		barCap: barCapacity,
	}
}

// Update 追加一条快照并更新分钟累加器
// 若快照所在分钟晚于累加器分钟，先封口累加器
func (s *Series) Update(snap model.PriceSnapshot) {
	s.buf[s.pos] = snap
	s.pos++
	if s.pos >= len(s.buf) {
		s.pos = 0
		s.full = true
	}

	start := timeutil.MinuteStart(snap.TsNs)
	if s.cur != nil && start > s.cur.StartNs {
		s.seal()
	}
	if s.cur == nil {
		s.cur = &model.MinuteBar{
			StartNs: start,
			Open:    snap.Price,
			High:    snap.Price,
			Low:     snap.Price,
		}
	}
	c := s.cur
	if snap.Price > c.High {
		c.High = snap.Price
	}
	if snap.Price < c.Low {
		c.Low = snap.Price
	}
	c.Close = snap.Price
	c.Volume += snap.Volume
	c.Bid = snap.Bid
	c.Ask = snap.Ask
	c.SpreadPct = snap.SpreadPct
	c.TickCount++
}

// Roll 若累加器所在分钟早于 nowNs 所在分钟，则将其封口
// 在没有新行情到达时，保证计算信号前上一分钟已入列
func (s *Series) Roll(nowNs int64) {
	if s.cur != nil && s.cur.StartNs < timeutil.MinuteStart(nowNs) {
		s.seal()
	}
}

func (s *Series) seal() {
	s.bars = append(s.bars, *s.cur)
	if over := len(s.bars) - s.barCap; over > 0 {
		s.bars = append(s.bars[:0], s.bars[over:]...)
	}
	s.cur = nil
}

// Len 当前保留的快照数
func (s *Series) Len() int {
	if s.full {
		return len(s.buf)
	}
	return s.pos
}

// Latest 最新快照
func (s *Series) Latest() (model.PriceSnapshot, bool) {
	n := s.Len()
	if n == 0 {
		return model.PriceSnapshot{}, false
	}
	idx := s.pos - 1
	if idx < 0 {
		idx = len(s.buf) - 1
	}
	return s.buf[idx], true
}

// Window 返回 nowNs 回看 lookback 内的快照（按时间升序）
// 条件: nowNs - ts ≤ lookback
func (s *Series) Window(nowNs int64, lookback time.Duration) []model.PriceSnapshot {
	n := s.Len()
	out := make([]model.PriceSnapshot, 0, n)
	start := 0
	if s.full {
		start = s.pos
	}
	for i := 0; i < n; i++ {
		snap := s.buf[(start+i)%len(s.buf)]
		if nowNs-snap.TsNs <= int64(lookback) {
			out = append(out, snap)
		}
	}
	return out
}

// Bars 返回已封口的分钟 K 线拷贝（按时间升序）
func (s *Series) Bars() []model.MinuteBar {
	out := make([]model.MinuteBar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Pending 当前未封口的分钟累加器
func (s *Series) Pending() (model.MinuteBar, bool) {
	if s.cur == nil {
		return model.MinuteBar{}, false
	}
	return *s.cur, true
}
