package metadata

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"meanrev-paper-engine/internal/config"
)

// Resolved 元数据解析结果
type Resolved struct {
	// Markets 最终订阅的市场配置（按 ID 排序）
	Markets []config.MarketConfig
	// Info 各市场元数据；元数据不可用时为空
	Info map[string]MarketInfo
	// Fallback 是否因元数据不可用而回退
	Fallback bool
}

// Precisions 各市场的数量精度
func (r *Resolved) Precisions() map[string]int {
	out := make(map[string]int, len(r.Info))
	for id, info := range r.Info {
		out[id] = info.QtyPrecision
	}
	return out
}

// MinQtys 各市场的最小下单数量
func (r *Resolved) MinQtys() map[string]float64 {
	out := make(map[string]float64, len(r.Info))
	for id, info := range r.Info {
		out[id] = info.MinQty
	}
	return out
}

// IDs 市场标识列表
func (r *Resolved) IDs() []string {
	ids := make([]string, len(r.Markets))
	for i, m := range r.Markets {
		ids[i] = m.ID
	}
	return ids
}

// ErrNoMarkets 解析后没有可订阅的市场
var ErrNoMarkets = errors.New("没有可订阅的市场")

// Resolve 确定订阅市场并补全下单精度
// 配置了 markets 时只保留元数据中可交易的市场；未配置且启用 discover 时订阅全部可交易市场
// （按 24h 成交额截取前 MaxMarkets 个）。元数据获取失败时回退到配置市场或 FallbackMarkets。
// 参数 ctx: 上下文
// 参数 cfg: 配置
// 参数 f: 元数据获取器
// 参数 logger: 日志；可为空
func Resolve(ctx context.Context, cfg *config.Config, f Fetcher, logger *zap.Logger) (*Resolved, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, err := f.FetchPerpetualMarkets(ctx, cfg.Metadata.URL)
	if err != nil {
		logger.Warn("获取市场元数据失败，使用回退市场", zap.Error(err))
		return fallback(cfg)
	}

	tradable := make(map[string]MarketInfo, len(raw))
	for name, m := range raw {
		if m.Tradable(name) {
			tradable[name] = infoOf(name, &m)
		}
	}

	res := &Resolved{Info: make(map[string]MarketInfo)}
	if len(cfg.Markets) > 0 {
		for _, m := range cfg.Markets {
			info, ok := tradable[m.ID]
			if !ok {
				logger.Warn("市场不可交易或不存在，已跳过", zap.String("market", m.ID))
				continue
			}
			res.Markets = append(res.Markets, m)
			res.Info[m.ID] = info
		}
	} else {
		for _, info := range discover(tradable, cfg.Metadata.MaxMarkets) {
			res.Markets = append(res.Markets, config.MarketConfig{ID: info.ID})
			res.Info[info.ID] = info
		}
	}
	if len(res.Markets) == 0 {
		return nil, ErrNoMarkets
	}
	sortMarkets(res.Markets)

	logger.Info("市场元数据已加载",
		zap.Int("tradable", len(tradable)),
		zap.Strings("markets", res.IDs()),
	)
	return res, nil
}

// discover 按 24h 成交额降序选取前 limit 个市场（limit<=0 表示全部）
func discover(tradable map[string]MarketInfo, limit int) []MarketInfo {
	all := make([]MarketInfo, 0, len(tradable))
	for _, info := range tradable {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Volume24H != all[j].Volume24H {
			return all[i].Volume24H > all[j].Volume24H
		}
		return all[i].ID < all[j].ID
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func fallback(cfg *config.Config) (*Resolved, error) {
	res := &Resolved{Info: make(map[string]MarketInfo), Fallback: true}
	if len(cfg.Markets) > 0 {
		res.Markets = append(res.Markets, cfg.Markets...)
	} else {
		ids := FallbackMarkets
		if n := cfg.Metadata.MaxMarkets; n > 0 && len(ids) > n {
			ids = ids[:n]
		}
		for _, id := range ids {
			res.Markets = append(res.Markets, config.MarketConfig{ID: id})
		}
	}
	if len(res.Markets) == 0 {
		return nil, fmt.Errorf("元数据不可用: %w", ErrNoMarkets)
	}
	sortMarkets(res.Markets)
	return res, nil
}

func sortMarkets(ms []config.MarketConfig) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID < ms[j].ID })
}
