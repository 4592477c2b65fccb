// Package config 负责加载和验证 YAML 配置文件。
// 提供模拟引擎所需的所有配置项，包括行情连接、策略参数、手续费、执行模拟、仓位与风控设置等。
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// 策略预设
const (
	// VariantScalp 高频快照模式：秒级窗口、按余额比例下单、反向信号退出
	VariantScalp = "scalp"
	// VariantSwing 分钟 K 线模式：固定名义价值、z 回归中性退出、最短持仓
	VariantSwing = "swing"
)

// 信号采样模式
const (
	// ModeSnapshot 以回看窗口内的快照为样本
	ModeSnapshot = "snapshot"
	// ModeBars 以已封口的分钟 K 线收盘价为样本
	ModeBars = "bars"
)

// 仓位计算策略
const (
	// PolicyPercentBalance 按余额比例
	PolicyPercentBalance = "percent_balance"
	// PolicyFixedNotional 固定名义价值
	PolicyFixedNotional = "fixed_notional"
)

// 信号类退出方式
const (
	// SignalExitReversal 反向高置信度信号退出
	SignalExitReversal = "reversal"
	// SignalExitZNeutral |z| 回到中性区间退出
	SignalExitZNeutral = "z_neutral"
	// SignalExitNone 不使用信号类退出
	SignalExitNone = "none"
)

// 超时强平定价方式
const (
	// ForceCloseTouch 按对手价直接平仓
	ForceCloseTouch = "touch"
	// ForceCloseMarket 通过模拟市价单平仓（含滑点与 taker 费）
	ForceCloseMarket = "market"
)

// 亏损熔断的统计区间
const (
	// LossWindowCumulative 自启动以来的累计已实现盈亏
	LossWindowCumulative = "cumulative"
	// LossWindowDaily 当日（UTC）已实现盈亏，跨日重置
	LossWindowDaily = "daily"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Markets 交易市场列表
	Markets []MarketConfig `yaml:"markets"`
	// Metadata 市场元数据 API 配置
	Metadata MetadataConfig `yaml:"metadata"`
	// WS WebSocket 行情连接配置
	WS WSConfig `yaml:"ws"`
	// Fees 手续费配置
	Fees FeesConfig `yaml:"fees"`
	// Strategy 信号参数配置
	Strategy StrategyConfig `yaml:"strategy"`
	// Execution 执行模拟配置
	Execution ExecutionConfig `yaml:"execution"`
	// Sizing 仓位计算配置
	Sizing SizingConfig `yaml:"sizing"`
	// Risk 风控配置
	Risk RiskConfig `yaml:"risk"`
	// Exits 出场配置
	Exits ExitConfig `yaml:"exits"`
	// Output 输出配置
	Output OutputConfig `yaml:"output"`
	// Telemetry 指标与看板推送配置
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// Journal 事件日志库配置
	Journal JournalConfig `yaml:"journal"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
	// Variant 策略预设: scalp, swing；用于填充未显式配置的参数
	Variant string `yaml:"variant"`
	// Seed 随机数种子，相同种子 + 相同行情回放得到相同结果
	Seed int64 `yaml:"seed"`
	// StartingBalanceUSD 初始资金（USD）
	StartingBalanceUSD float64 `yaml:"starting_balance_usd"`
}

// MarketConfig 单个市场配置
type MarketConfig struct {
	// ID 市场标识，如 BTC-USD
	ID string `yaml:"id"`
	// NotionalUSD 固定名义价值（fixed_notional 策略使用，0 表示使用默认值）
	NotionalUSD float64 `yaml:"notional_usd"`
	// QtyPrecision 数量小数位数（未配置时取元数据或默认值）
	QtyPrecision *int `yaml:"qty_precision"`
	// MinQty 最小下单数量
	MinQty float64 `yaml:"min_qty"`
}

// MetadataConfig 元数据 API 配置
type MetadataConfig struct {
	// URL dYdX indexer perpetualMarkets 地址
	URL string `yaml:"url"`
	// TimeoutMs HTTP 请求超时时间（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
	// Discover 未配置 markets 时是否自动发现全部 USD 永续市场
	Discover bool `yaml:"discover"`
	// MaxMarkets 自动发现时最多订阅的市场数（0 表示不限）
	MaxMarkets int `yaml:"max_markets"`
}

// WSConfig WebSocket 连接配置
type WSConfig struct {
	// URL WebSocket 连接地址
	URL string `yaml:"url"`
	// PingIntervalMs 心跳间隔（毫秒）
	PingIntervalMs int `yaml:"ping_interval_ms"`
	// PongTimeoutMs 心跳响应超时（毫秒）
	PongTimeoutMs int `yaml:"pong_timeout_ms"`
	// QueueSize 每个市场的待处理行情队列长度
	QueueSize int `yaml:"queue_size"`
}

// FeesConfig 手续费配置
type FeesConfig struct {
	// MakerRate Maker 费率（负数表示返佣）
	MakerRate float64 `yaml:"maker_rate"`
	// TakerRate Taker 费率
	TakerRate float64 `yaml:"taker_rate"`
}

// StrategyConfig 信号参数配置
type StrategyConfig struct {
	// Mode 采样模式: snapshot, bars
	Mode string `yaml:"mode"`
	// LookbackSeconds 快照模式回看窗口（秒）
	LookbackSeconds int `yaml:"lookback_seconds"`
	// MinSamples 快照模式最少样本数
	MinSamples int `yaml:"min_samples"`
	// WindowMinutes K 线模式滚动窗口（分钟）
	WindowMinutes int `yaml:"window_minutes"`
	// HistorySize 每个市场保留的快照数
	HistorySize int `yaml:"history_size"`
	// BarHistory 每个市场保留的分钟 K 线数
	BarHistory int `yaml:"bar_history"`
	// EntryThreshold z 分数入场阈值
	EntryThreshold float64 `yaml:"entry_threshold"`
	// EntryMinConfidence 入场所需最低置信度（严格大于）
	EntryMinConfidence float64 `yaml:"entry_min_confidence"`
	// SpreadBaselinePct 价差惩罚基线（百分比）
	SpreadBaselinePct float64 `yaml:"spread_baseline_pct"`
	// SpreadPenaltyFactor 价差惩罚系数（0 表示不惩罚）
	SpreadPenaltyFactor float64 `yaml:"spread_penalty_factor"`
	// VolumeReference 成交量因子参考量（0 表示不使用成交量因子）
	VolumeReference float64 `yaml:"volume_reference"`
	// RequireVolume 当前盘口量为 0 时强制输出 NEUTRAL（未配置时由预设决定）
	RequireVolume *bool `yaml:"require_volume"`
}

// VolumeRequired 是否要求盘口量
func (s StrategyConfig) VolumeRequired() bool {
	return s.RequireVolume != nil && *s.RequireVolume
}

// ExecutionConfig 执行模拟配置
type ExecutionConfig struct {
	// BaseDepthUSD 盘口基础深度（USD）
	BaseDepthUSD float64 `yaml:"base_depth_usd"`
	// MarketLatencyMs 市价单基础延迟（毫秒）
	MarketLatencyMs float64 `yaml:"market_latency_ms"`
	// MarketLatencyJitterMs 市价单延迟抖动（毫秒，±）
	MarketLatencyJitterMs float64 `yaml:"market_latency_jitter_ms"`
	// MinMarketLatencyMs 市价单最小延迟（毫秒）
	MinMarketLatencyMs float64 `yaml:"min_market_latency_ms"`
	// SlippageFactor 基础滑点（比例）
	SlippageFactor float64 `yaml:"slippage_factor"`
	// ImpactFactor 市场冲击系数
	ImpactFactor float64 `yaml:"impact_factor"`
	// ReferenceVolumeUSD 市场冲击参考成交额
	ReferenceVolumeUSD float64 `yaml:"reference_volume_usd"`
	// SpreadCrossFraction 市价单额外承担的价差比例
	SpreadCrossFraction float64 `yaml:"spread_cross_fraction"`
	// LimitLatencyMinMs 限价单延迟下限（毫秒）
	LimitLatencyMinMs float64 `yaml:"limit_latency_min_ms"`
	// LimitLatencyMaxMs 限价单延迟上限（毫秒）
	LimitLatencyMaxMs float64 `yaml:"limit_latency_max_ms"`
	// CancelLatencyMinMs 穿越价差撤单延迟下限（毫秒）
	CancelLatencyMinMs float64 `yaml:"cancel_latency_min_ms"`
	// CancelLatencyMaxMs 穿越价差撤单延迟上限（毫秒）
	CancelLatencyMaxMs float64 `yaml:"cancel_latency_max_ms"`
	// EntryOffsetPct 入场挂单相对对手价的偏移（百分比）
	// BUY: bid × (1 - offset)；SELL: ask × (1 + offset)
	EntryOffsetPct float64 `yaml:"entry_offset_pct"`
	// ExitOffsetPct 出场挂单偏移（百分比），规则同上
	ExitOffsetPct float64 `yaml:"exit_offset_pct"`
	// OrderTTLSeconds 入场挂单有效期（秒）
	OrderTTLSeconds int `yaml:"order_ttl_seconds"`
	// PendingFillCap 挂单复查成交概率上限
	PendingFillCap float64 `yaml:"pending_fill_cap"`
	// PendingFillRampSeconds 挂单成交概率线性爬升时长（秒）
	PendingFillRampSeconds int `yaml:"pending_fill_ramp_seconds"`
}

// SizingConfig 仓位计算配置
type SizingConfig struct {
	// Policy 计算策略: percent_balance, fixed_notional
	Policy string `yaml:"policy"`
	// EntryFraction 按余额比例策略的基础比例
	EntryFraction float64 `yaml:"entry_fraction"`
	// MaxFraction 单笔名义价值上限（相对余额）
	MaxFraction float64 `yaml:"max_fraction"`
	// MinNotionalUSD 单笔名义价值下限
	MinNotionalUSD float64 `yaml:"min_notional_usd"`
	// ZBaseline 波动率缩减的 z 基线
	ZBaseline float64 `yaml:"z_baseline"`
	// ZShrinkPerUnit |z| 每超出基线 1 个单位缩减的比例
	ZShrinkPerUnit float64 `yaml:"z_shrink_per_unit"`
	// MinVolFactor 波动率缩减系数下限
	MinVolFactor float64 `yaml:"min_vol_factor"`
	// DefaultNotionalUSD 固定名义价值策略的默认值
	DefaultNotionalUSD float64 `yaml:"default_notional_usd"`
	// BalanceReserve 余额不足时可用于下单的余额比例
	BalanceReserve float64 `yaml:"balance_reserve"`
	// DefaultQtyPrecision 默认数量小数位数
	DefaultQtyPrecision int `yaml:"default_qty_precision"`
}

// RiskConfig 风控配置
type RiskConfig struct {
	// MaxOpenPositions 全局同时存活（PENDING + OPEN）仓位上限
	MaxOpenPositions int `yaml:"max_open_positions"`
	// MaxExposureUSD 全局敞口上限（OPEN 仓位 |size × price| 之和）
	MaxExposureUSD float64 `yaml:"max_exposure_usd"`
	// DailyLossLimitUSD 已实现亏损熔断阈值
	DailyLossLimitUSD float64 `yaml:"daily_loss_limit_usd"`
	// LossWindow 熔断统计区间: cumulative（默认）, daily
	LossWindow string `yaml:"loss_window"`
}

// ExitConfig 出场配置
type ExitConfig struct {
	// MaxHoldSeconds 最大持仓时间（秒），超过后尝试超时出场
	MaxHoldSeconds int `yaml:"max_hold_seconds"`
	// ForceCloseGraceSeconds 超时后的宽限期（秒），超过则强制平仓
	ForceCloseGraceSeconds int `yaml:"force_close_grace_seconds"`
	// ForceCloseMode 强平定价: touch, market
	ForceCloseMode string `yaml:"force_close_mode"`
	// MinHoldSeconds 最短持仓时间（秒），未满足前仅检查超时
	MinHoldSeconds int `yaml:"min_hold_seconds"`
	// ProfitTargetUSD 止盈金额（0 表示关闭）
	ProfitTargetUSD float64 `yaml:"profit_target_usd"`
	// StopLossUSD 止损金额（0 表示关闭）
	StopLossUSD float64 `yaml:"stop_loss_usd"`
	// SignalExit 信号类退出: reversal, z_neutral, none
	SignalExit string `yaml:"signal_exit"`
	// ReversalMinConfidence 反向信号最低置信度（严格大于）
	ReversalMinConfidence float64 `yaml:"reversal_min_confidence"`
	// ZNeutralBand |z| 小于该值视为回归中性
	ZNeutralBand float64 `yaml:"z_neutral_band"`
	// EmergencyStopPct 紧急止损比例（相对入场名义价值的百分比，0 表示关闭）
	EmergencyStopPct float64 `yaml:"emergency_stop_pct"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	// Dir 输出目录
	Dir string `yaml:"dir"`
	// EventsEnabled 是否输出成交事件文件
	EventsEnabled bool `yaml:"events_enabled"`
	// PositionsEnabled 是否输出已结束仓位文件
	PositionsEnabled bool `yaml:"positions_enabled"`
	// MetricsEnabled 是否输出指标文件
	MetricsEnabled bool `yaml:"metrics_enabled"`
	// MetricsIntervalMs 指标输出间隔（毫秒）
	MetricsIntervalMs int `yaml:"metrics_interval_ms"`
	// BufferSize 异步写入缓冲区大小
	BufferSize int `yaml:"buffer_size"`
	// DispatchRetries 事件投递重试次数
	DispatchRetries int `yaml:"dispatch_retries"`
}

// TelemetryConfig 指标与看板推送配置
type TelemetryConfig struct {
	// ListenAddr HTTP 监听地址（/metrics 与 /ws），为空表示不启动
	ListenAddr string `yaml:"listen_addr"`
}

// JournalConfig PostgreSQL 事件日志配置
type JournalConfig struct {
	// Enabled 是否启用
	Enabled bool `yaml:"enabled"`
	// DSN 连接串；为空时读取环境变量 JOURNAL_DSN
	DSN string `yaml:"dsn"`
	// TimeoutMs 单次写入超时（毫秒）
	TimeoutMs int `yaml:"timeout_ms"`
}

// Load 从文件加载配置并验证
// 参数 path: 配置文件路径
// 返回: 解析后的配置对象，若失败则返回错误
func Load(path string) (*Config, error) {
	// 读取配置文件
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 解析 YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	cfg.setDefaults()

	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置配置默认值
// 先套用策略预设，再补齐通用默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "meanrev-paper-engine"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.Variant == "" {
		c.App.Variant = VariantScalp
	}

	switch c.App.Variant {
	case VariantSwing:
		c.applySwingDefaults()
	default:
		c.applyScalpDefaults()
	}

	// 元数据
	if c.Metadata.URL == "" {
		c.Metadata.URL = "https://indexer.dydx.trade/v4/perpetualMarkets"
	}
	if c.Metadata.TimeoutMs == 0 {
		c.Metadata.TimeoutMs = 10000 // 10 秒
	}

	// WebSocket
	if c.WS.URL == "" {
		c.WS.URL = "wss://indexer.dydx.trade/v4/ws"
	}
	if c.WS.PingIntervalMs == 0 {
		c.WS.PingIntervalMs = 25000 // 25 秒
	}
	if c.WS.PongTimeoutMs == 0 {
		c.WS.PongTimeoutMs = 10000 // 10 秒
	}
	if c.WS.QueueSize == 0 {
		c.WS.QueueSize = 256
	}

	// 手续费（dYdX 默认：maker -0.02%，taker 0.05%）
	if c.Fees.MakerRate == 0 && c.Fees.TakerRate == 0 {
		c.Fees.MakerRate = -0.0002
		c.Fees.TakerRate = 0.0005
	}

	// 信号通用默认值
	if c.Strategy.MinSamples == 0 {
		c.Strategy.MinSamples = 3
	}
	if c.Strategy.BarHistory == 0 {
		c.Strategy.BarHistory = 20
	}

	// 执行模拟
	e := &c.Execution
	if e.BaseDepthUSD == 0 {
		e.BaseDepthUSD = 5
	}
	if e.MarketLatencyMs == 0 {
		e.MarketLatencyMs = 50
	}
	if e.MarketLatencyJitterMs == 0 {
		e.MarketLatencyJitterMs = 30
	}
	if e.MinMarketLatencyMs == 0 {
		e.MinMarketLatencyMs = 10
	}
	if e.SlippageFactor == 0 {
		e.SlippageFactor = 0.0001
	}
	if e.ImpactFactor == 0 {
		e.ImpactFactor = 0.00005
	}
	if e.ReferenceVolumeUSD == 0 {
		e.ReferenceVolumeUSD = 1_000_000
	}
	if e.SpreadCrossFraction == 0 {
		e.SpreadCrossFraction = 0.3
	}
	if e.LimitLatencyMinMs == 0 {
		e.LimitLatencyMinMs = 5
	}
	if e.LimitLatencyMaxMs == 0 {
		e.LimitLatencyMaxMs = 30
	}
	if e.CancelLatencyMinMs == 0 {
		e.CancelLatencyMinMs = 5
	}
	if e.CancelLatencyMaxMs == 0 {
		e.CancelLatencyMaxMs = 15
	}
	if e.EntryOffsetPct == 0 {
		e.EntryOffsetPct = 0.05
	}
	if e.ExitOffsetPct == 0 {
		e.ExitOffsetPct = 0.05
	}
	if e.PendingFillCap == 0 {
		e.PendingFillCap = 0.6
	}
	if e.PendingFillRampSeconds == 0 {
		e.PendingFillRampSeconds = 30
	}

	// 仓位计算
	s := &c.Sizing
	if s.ZBaseline == 0 {
		s.ZBaseline = 2
	}
	if s.ZShrinkPerUnit == 0 {
		s.ZShrinkPerUnit = 0.1
	}
	if s.MinVolFactor == 0 {
		s.MinVolFactor = 0.5
	}
	if s.DefaultNotionalUSD == 0 {
		s.DefaultNotionalUSD = 10
	}
	if s.BalanceReserve == 0 {
		s.BalanceReserve = 0.95
	}
	if s.DefaultQtyPrecision == 0 {
		s.DefaultQtyPrecision = 6
	}

	if c.Risk.LossWindow == "" {
		c.Risk.LossWindow = LossWindowCumulative
	}
	if c.Exits.ForceCloseMode == "" {
		c.Exits.ForceCloseMode = ForceCloseTouch
	}

	// 输出
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Output.MetricsIntervalMs == 0 {
		c.Output.MetricsIntervalMs = 10000 // 10 秒
	}
	if c.Output.BufferSize == 0 {
		c.Output.BufferSize = 1000
	}
	if c.Output.DispatchRetries == 0 {
		c.Output.DispatchRetries = 5
	}

	if c.Journal.TimeoutMs == 0 {
		c.Journal.TimeoutMs = 5000
	}
}

// applyScalpDefaults 秒级快照预设
// 10 秒窗口、阈值 1.5、按余额 5% 下单、30 秒 TTL、30 秒持仓上限
func (c *Config) applyScalpDefaults() {
	if c.App.StartingBalanceUSD == 0 {
		c.App.StartingBalanceUSD = 50
	}
	st := &c.Strategy
	if st.Mode == "" {
		st.Mode = ModeSnapshot
	}
	if st.LookbackSeconds == 0 {
		st.LookbackSeconds = 10
	}
	if st.HistorySize == 0 {
		st.HistorySize = 100
	}
	if st.EntryThreshold == 0 {
		st.EntryThreshold = 1.5
	}
	if st.EntryMinConfidence == 0 {
		st.EntryMinConfidence = 75
	}
	if st.SpreadBaselinePct == 0 {
		st.SpreadBaselinePct = 0.05
	}
	if st.SpreadPenaltyFactor == 0 {
		st.SpreadPenaltyFactor = 10
	}
	if st.VolumeReference == 0 {
		st.VolumeReference = 10000
	}
	if c.Execution.OrderTTLSeconds == 0 {
		c.Execution.OrderTTLSeconds = 30
	}
	if c.Sizing.Policy == "" {
		c.Sizing.Policy = PolicyPercentBalance
	}
	if c.Sizing.EntryFraction == 0 {
		c.Sizing.EntryFraction = 0.05
	}
	if c.Sizing.MaxFraction == 0 {
		c.Sizing.MaxFraction = 0.2
	}
	if c.Sizing.MinNotionalUSD == 0 {
		c.Sizing.MinNotionalUSD = 2
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 5
	}
	if c.Risk.MaxExposureUSD == 0 {
		c.Risk.MaxExposureUSD = 10000
	}
	if c.Risk.DailyLossLimitUSD == 0 {
		c.Risk.DailyLossLimitUSD = 1000
	}
	x := &c.Exits
	if x.MaxHoldSeconds == 0 {
		x.MaxHoldSeconds = 30
	}
	if x.ForceCloseGraceSeconds == 0 {
		x.ForceCloseGraceSeconds = 5
	}
	if x.ProfitTargetUSD == 0 {
		x.ProfitTargetUSD = 50
	}
	if x.StopLossUSD == 0 {
		x.StopLossUSD = 25
	}
	if x.SignalExit == "" {
		x.SignalExit = SignalExitReversal
	}
	if x.ReversalMinConfidence == 0 {
		x.ReversalMinConfidence = 60
	}
}

// applySwingDefaults 分钟 K 线预设
// 10 分钟窗口、阈值 3.0、固定 10 USD、120 秒 TTL、持仓 30 分钟至 2 小时
func (c *Config) applySwingDefaults() {
	if c.App.StartingBalanceUSD == 0 {
		c.App.StartingBalanceUSD = 100
	}
	st := &c.Strategy
	if st.Mode == "" {
		st.Mode = ModeBars
	}
	if st.WindowMinutes == 0 {
		st.WindowMinutes = 10
	}
	if st.HistorySize == 0 {
		st.HistorySize = 1200
	}
	if st.EntryThreshold == 0 {
		st.EntryThreshold = 3.0
	}
	if st.RequireVolume == nil {
		required := true
		st.RequireVolume = &required
	}
	if c.Execution.OrderTTLSeconds == 0 {
		c.Execution.OrderTTLSeconds = 120
	}
	if c.Sizing.Policy == "" {
		c.Sizing.Policy = PolicyFixedNotional
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 10
	}
	if c.Risk.MaxExposureUSD == 0 {
		c.Risk.MaxExposureUSD = 1000
	}
	if c.Risk.DailyLossLimitUSD == 0 {
		c.Risk.DailyLossLimitUSD = 50
	}
	x := &c.Exits
	if x.MaxHoldSeconds == 0 {
		x.MaxHoldSeconds = 7200
	}
	if x.ForceCloseGraceSeconds == 0 {
		x.ForceCloseGraceSeconds = 300
	}
	if x.MinHoldSeconds == 0 {
		x.MinHoldSeconds = 1800
	}
	if x.SignalExit == "" {
		x.SignalExit = SignalExitZNeutral
	}
	if x.ZNeutralBand == 0 {
		x.ZNeutralBand = 0.5
	}
	if x.EmergencyStopPct == 0 {
		x.EmergencyStopPct = 10
	}
}

// Validate 验证配置合法性
// 检查所有必填项和数值范围
// 返回: 若配置无效则返回描述性错误
func (c *Config) Validate() error {
	var errs []string

	// 市场配置：允许为空（此时依赖元数据自动发现）
	if len(c.Markets) == 0 && !c.Metadata.Discover {
		errs = append(errs, "markets: 至少需要配置一个市场，或启用 metadata.discover")
	}
	seen := make(map[string]bool, len(c.Markets))
	for i, m := range c.Markets {
		if m.ID == "" {
			errs = append(errs, fmt.Sprintf("markets[%d].id: 市场不能为空", i))
			continue
		}
		if seen[m.ID] {
			errs = append(errs, fmt.Sprintf("markets[%d].id: 重复的市场 '%s'", i, m.ID))
		}
		seen[m.ID] = true
		if m.NotionalUSD < 0 {
			errs = append(errs, fmt.Sprintf("markets[%d].notional_usd: 不能为负数", i))
		}
		if m.MinQty < 0 {
			errs = append(errs, fmt.Sprintf("markets[%d].min_qty: 不能为负数", i))
		}
		if m.QtyPrecision != nil && (*m.QtyPrecision < 0 || *m.QtyPrecision > 12) {
			errs = append(errs, fmt.Sprintf("markets[%d].qty_precision: 必须在 0-12 之间", i))
		}
	}

	if c.App.Variant != VariantScalp && c.App.Variant != VariantSwing {
		errs = append(errs, fmt.Sprintf("app.variant: 无效的预设 '%s'，有效值: scalp, swing", c.App.Variant))
	}
	if c.App.StartingBalanceUSD <= 0 {
		errs = append(errs, "app.starting_balance_usd: 初始资金必须为正数")
	}

	if c.WS.URL == "" {
		errs = append(errs, "ws.url: WebSocket 地址不能为空")
	}
	if c.WS.QueueSize < 0 {
		errs = append(errs, "ws.queue_size: 不能为负数")
	}

	// 手续费（范围 -1 到 1，maker 可为负）
	if err := validateFeeRate(c.Fees.MakerRate, "fees.maker_rate"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateFeeRate(c.Fees.TakerRate, "fees.taker_rate"); err != nil {
		errs = append(errs, err.Error())
	}

	// 信号参数
	switch c.Strategy.Mode {
	case ModeSnapshot:
		if c.Strategy.LookbackSeconds <= 0 {
			errs = append(errs, "strategy.lookback_seconds: 回看窗口必须为正数")
		}
		if c.Strategy.MinSamples < 2 {
			errs = append(errs, "strategy.min_samples: 至少需要 2 个样本")
		}
	case ModeBars:
		if c.Strategy.WindowMinutes < 2 {
			errs = append(errs, "strategy.window_minutes: 至少需要 2 分钟")
		}
		if c.Strategy.BarHistory < c.Strategy.WindowMinutes+1 {
			errs = append(errs, "strategy.bar_history: 必须不少于 window_minutes + 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("strategy.mode: 无效的模式 '%s'，有效值: snapshot, bars", c.Strategy.Mode))
	}
	if c.Strategy.EntryThreshold <= 0 {
		errs = append(errs, "strategy.entry_threshold: 入场阈值必须为正数")
	}
	if c.Strategy.EntryMinConfidence < 0 || c.Strategy.EntryMinConfidence > 100 {
		errs = append(errs, "strategy.entry_min_confidence: 必须在 0-100 之间")
	}
	if c.Strategy.HistorySize <= 0 {
		errs = append(errs, "strategy.history_size: 必须为正数")
	}
	if c.Strategy.SpreadPenaltyFactor < 0 || c.Strategy.VolumeReference < 0 {
		errs = append(errs, "strategy: 价差惩罚系数与成交量参考值不能为负数")
	}

	// 执行模拟
	e := c.Execution
	if e.BaseDepthUSD <= 0 {
		errs = append(errs, "execution.base_depth_usd: 必须为正数")
	}
	if e.LimitLatencyMaxMs < e.LimitLatencyMinMs || e.CancelLatencyMaxMs < e.CancelLatencyMinMs {
		errs = append(errs, "execution: 延迟上限不能小于下限")
	}
	if e.EntryOffsetPct < 0 || e.ExitOffsetPct < 0 {
		errs = append(errs, "execution: 挂单偏移不能为负数")
	}
	if e.OrderTTLSeconds <= 0 {
		errs = append(errs, "execution.order_ttl_seconds: 挂单有效期必须为正数")
	}
	if e.PendingFillCap < 0 || e.PendingFillCap > 1 {
		errs = append(errs, "execution.pending_fill_cap: 必须在 0-1 之间")
	}
	if e.PendingFillRampSeconds <= 0 {
		errs = append(errs, "execution.pending_fill_ramp_seconds: 必须为正数")
	}

	// 仓位计算
	switch c.Sizing.Policy {
	case PolicyPercentBalance:
		if c.Sizing.EntryFraction <= 0 || c.Sizing.EntryFraction > 1 {
			errs = append(errs, "sizing.entry_fraction: 必须在 (0, 1] 之间")
		}
		if c.Sizing.MaxFraction <= 0 || c.Sizing.MaxFraction > 1 {
			errs = append(errs, "sizing.max_fraction: 必须在 (0, 1] 之间")
		}
		if c.Sizing.MinNotionalUSD < 0 {
			errs = append(errs, "sizing.min_notional_usd: 不能为负数")
		}
	case PolicyFixedNotional:
		if c.Sizing.DefaultNotionalUSD <= 0 {
			errs = append(errs, "sizing.default_notional_usd: 必须为正数")
		}
		if c.Sizing.BalanceReserve <= 0 || c.Sizing.BalanceReserve > 1 {
			errs = append(errs, "sizing.balance_reserve: 必须在 (0, 1] 之间")
		}
	default:
		errs = append(errs, fmt.Sprintf("sizing.policy: 无效的策略 '%s'，有效值: percent_balance, fixed_notional", c.Sizing.Policy))
	}
	if c.Sizing.DefaultQtyPrecision < 0 || c.Sizing.DefaultQtyPrecision > 12 {
		errs = append(errs, "sizing.default_qty_precision: 必须在 0-12 之间")
	}

	// 风控
	if c.Risk.MaxOpenPositions <= 0 {
		errs = append(errs, "risk.max_open_positions: 必须为正数")
	}
	if c.Risk.MaxExposureUSD <= 0 {
		errs = append(errs, "risk.max_exposure_usd: 必须为正数")
	}
	if c.Risk.DailyLossLimitUSD <= 0 {
		errs = append(errs, "risk.daily_loss_limit_usd: 必须为正数")
	}
	if c.Risk.LossWindow != LossWindowCumulative && c.Risk.LossWindow != LossWindowDaily {
		errs = append(errs, fmt.Sprintf("risk.loss_window: 无效的值 '%s'，有效值: cumulative, daily", c.Risk.LossWindow))
	}

	// 出场
	x := c.Exits
	if x.MaxHoldSeconds <= 0 {
		errs = append(errs, "exits.max_hold_seconds: 最大持仓时间必须为正数")
	}
	if x.ForceCloseGraceSeconds < 0 || x.MinHoldSeconds < 0 {
		errs = append(errs, "exits: 宽限期与最短持仓不能为负数")
	}
	if x.MinHoldSeconds > x.MaxHoldSeconds {
		errs = append(errs, "exits.min_hold_seconds: 不能大于 max_hold_seconds")
	}
	if x.ProfitTargetUSD < 0 || x.StopLossUSD < 0 || x.EmergencyStopPct < 0 {
		errs = append(errs, "exits: 止盈、止损与紧急止损不能为负数")
	}
	switch x.SignalExit {
	case SignalExitReversal, SignalExitZNeutral, SignalExitNone:
	default:
		errs = append(errs, fmt.Sprintf("exits.signal_exit: 无效的值 '%s'，有效值: reversal, z_neutral, none", x.SignalExit))
	}
	if x.ForceCloseMode != ForceCloseTouch && x.ForceCloseMode != ForceCloseMarket {
		errs = append(errs, fmt.Sprintf("exits.force_close_mode: 无效的值 '%s'，有效值: touch, market", x.ForceCloseMode))
	}

	if c.Output.BufferSize < 0 || c.Output.DispatchRetries < 0 {
		errs = append(errs, "output: 缓冲区大小与重试次数不能为负数")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateFeeRate 验证手续费率范围
// 参数 rate: 费率值
// 参数 field: 字段名称，用于错误消息
// 返回: 若费率无效则返回错误
func validateFeeRate(rate float64, field string) error {
	if rate < -1 || rate > 1 {
		return fmt.Errorf("%s: 费率必须在 -1 到 1 之间，当前值: %f", field, rate)
	}
	return nil
}

// MarketIDs 获取所有配置的市场标识
// 返回: 市场标识列表
func (c *Config) MarketIDs() []string {
	ids := make([]string, len(c.Markets))
	for i, m := range c.Markets {
		ids[i] = m.ID
	}
	return ids
}

// Market 按标识查找市场配置
func (c *Config) Market(id string) (MarketConfig, bool) {
	for _, m := range c.Markets {
		if m.ID == id {
			return m, true
		}
	}
	return MarketConfig{}, false
}
