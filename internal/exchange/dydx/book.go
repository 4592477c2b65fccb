package dydx

import (
	"sort"

	"meanrev-paper-engine/internal/core/model"
)

// Book 本地 L2 订单簿
// 以价格字符串为键，避免浮点键比较问题；非并发安全，仅由读取协程访问
type Book struct {
	bids map[string]model.Level
	asks map[string]model.Level
	seq  int64
}

// NewBook 创建空订单簿
func NewBook() *Book {
	return &Book{
		bids: make(map[string]model.Level),
		asks: make(map[string]model.Level),
	}
}

// levelUpdate 解析后的档位变更
type levelUpdate struct {
	key string
	lvl model.Level
}

// reset 清空订单簿（收到新快照时）
func (b *Book) reset() {
	clear(b.bids)
	clear(b.asks)
}

// apply 应用档位变更，数量为 0 的档位被删除
func (b *Book) apply(bids, asks []levelUpdate) {
	applySide(b.bids, bids)
	applySide(b.asks, asks)
	b.seq++
}

func applySide(side map[string]model.Level, ups []levelUpdate) {
	for _, u := range ups {
		if u.lvl.Qty == 0 {
			delete(side, u.key)
			continue
		}
		side[u.key] = u.lvl
	}
}

// Top 买卖各前 n 档
// 买盘价格从高到低，卖盘价格从低到高
func (b *Book) Top(n int) (bids, asks []model.Level) {
	return topN(b.bids, n, true), topN(b.asks, n, false)
}

// Seq 本地序号
func (b *Book) Seq() int64 {
	return b.seq
}

func topN(side map[string]model.Level, n int, desc bool) []model.Level {
	out := make([]model.Level, 0, len(side))
	for _, l := range side {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if desc {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
