// Package account 维护模拟账户的余额、已实现盈亏与计数。
package account

import (
	"sync"

	"meanrev-paper-engine/internal/util/timeutil"
)

// Snapshot 账户状态快照
type Snapshot struct {
	// StartingBalanceUSD 初始资金
	StartingBalanceUSD float64 `json:"starting_balance_usd"`
	// BalanceUSD 当前余额（初始资金 + 已实现盈亏）
	BalanceUSD float64 `json:"balance_usd"`
	// RealizedPnLUSD 累计已实现盈亏（已扣除手续费）
	RealizedPnLUSD float64 `json:"realized_pnl_usd"`
	// FeesUSD 累计手续费（负数表示净返佣）
	FeesUSD float64 `json:"fees_usd"`
	// Entries 下单次数
	Entries int64 `json:"entries"`
	// Fills 入场成交次数
	Fills int64 `json:"fills"`
	// Closes 平仓次数
	Closes int64 `json:"closes"`
	// Wins 盈利平仓次数
	Wins int64 `json:"wins"`
	// Misses 未成交次数（撤单或过期）
	Misses int64 `json:"misses"`
	// DayPnLUSD 当日（UTC）已实现盈亏
	DayPnLUSD float64 `json:"day_pnl_usd"`
}

// ReturnPct 收益率（百分比）
func (s Snapshot) ReturnPct() float64 {
	if s.StartingBalanceUSD == 0 {
		return 0
	}
	return (s.BalanceUSD - s.StartingBalanceUSD) / s.StartingBalanceUSD * 100
}

// WinRate 胜率（百分比）
func (s Snapshot) WinRate() float64 {
	if s.Closes == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closes) * 100
}

// Account 模拟账户
// 并发安全；余额只在平仓时通过 Realize 变动
type Account struct {
	mu sync.RWMutex

	starting float64
	balance  float64
	realized float64
	fees     float64

	entries int64
	fills   int64
	closes  int64
	wins    int64
	misses  int64

	// dayPnL 按 UTC 日期累计的已实现盈亏
	dayPnL map[string]float64
}

// New 创建账户
// 参数 startingBalance: 初始资金（USD）
func New(startingBalance float64) *Account {
	return &Account{
		starting: startingBalance,
		balance:  startingBalance,
		dayPnL:   make(map[string]float64),
	}
}

// Balance 当前余额
func (a *Account) Balance() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// RealizedPnL 自启动以来的累计已实现盈亏
func (a *Account) RealizedPnL() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.realized
}

// DayPnL nowNs 所在 UTC 日的已实现盈亏
func (a *Account) DayPnL(nowNs int64) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dayPnL[timeutil.UTCDayKey(nowNs)]
}

// AddFee 记录手续费（负数为返佣）
// 手续费已包含在平仓的已实现盈亏中，这里只做统计，不改变余额
func (a *Account) AddFee(fee float64) {
	a.mu.Lock()
	a.fees += fee
	a.mu.Unlock()
}

// RecordEntry 记录一次下单
func (a *Account) RecordEntry() {
	a.mu.Lock()
	a.entries++
	a.mu.Unlock()
}

// RecordFill 记录一次入场成交
func (a *Account) RecordFill() {
	a.mu.Lock()
	a.fills++
	a.mu.Unlock()
}

// RecordMiss 记录一次未成交
func (a *Account) RecordMiss() {
	a.mu.Lock()
	a.misses++
	a.mu.Unlock()
}

// Realize 平仓入账
// 参数 pnl: 已实现盈亏（已扣除手续费）
// 参数 nowNs: 平仓时间，用于当日盈亏统计
func (a *Account) Realize(pnl float64, nowNs int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance += pnl
	a.realized += pnl
	a.closes++
	if pnl > 0 {
		a.wins++
	}
	a.dayPnL[timeutil.UTCDayKey(nowNs)] += pnl
}

// Snapshot 获取账户快照
func (a *Account) Snapshot(nowNs int64) Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		StartingBalanceUSD: a.starting,
		BalanceUSD:         a.balance,
		RealizedPnLUSD:     a.realized,
		FeesUSD:            a.fees,
		Entries:            a.entries,
		Fills:              a.fills,
		Closes:             a.closes,
		Wins:               a.wins,
		Misses:             a.misses,
		DayPnLUSD:          a.dayPnL[timeutil.UTCDayKey(nowNs)],
	}
}
