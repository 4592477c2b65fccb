// Package store 维护各市场的最新订单簿与报价。
package store

import (
	"sort"
	"sync"

	"meanrev-paper-engine/internal/core/model"
)

// Store 最新订单簿缓存
// 每个市场由各自的 worker 写入，仓位管理器跨市场读取报价计算敞口，因此使用读写锁。
type Store struct {
	mu sync.RWMutex
	// books 按市场缓存最新 BookEvent（只读快照）
	books map[string]*model.BookEvent
}

// New 创建新的订单簿缓存
func New() *Store {
	return &Store{
		books: make(map[string]*model.BookEvent),
	}
}

// Update 更新缓存
// 参数 ev: 归一化后的订单簿事件；无效事件被忽略
// 返回: 是否已更新
func (s *Store) Update(ev *model.BookEvent) bool {
	if !ev.IsValid() {
		return false
	}
	s.mu.Lock()
	s.books[ev.Market] = ev
	s.mu.Unlock()
	return true
}

// Get 获取指定市场的最新订单簿
// 返回值可能为 nil；返回的指针应视为只读。
func (s *Store) Get(market string) *model.BookEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[market]
}

// Quote 获取指定市场的最新报价
func (s *Store) Quote(market string) (model.Quote, bool) {
	ev := s.Get(market)
	if ev == nil {
		return model.Quote{}, false
	}
	return ev.Quote(), true
}

// Markets 已有行情的市场列表（排序）
func (s *Store) Markets() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.books))
	for m := range s.books {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
