package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher 元数据获取器接口
type Fetcher interface {
	// FetchPerpetualMarkets 获取 dYdX 永续市场元数据
	FetchPerpetualMarkets(ctx context.Context, url string) (map[string]PerpetualMarket, error)
}

// HTTPFetcher HTTP 元数据获取器
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher 创建 HTTP 元数据获取器
// 参数 timeoutMs: HTTP 请求超时时间（毫秒）
func NewHTTPFetcher(timeoutMs int) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: time.Duration(timeoutMs) * time.Millisecond,
		},
	}
}

// FetchPerpetualMarkets 获取 dYdX 永续市场元数据
// 参数 ctx: 上下文，用于取消请求
// 参数 url: perpetualMarkets API 地址
// 返回: 市场表（key 为 ticker）
func (f *HTTPFetcher) FetchPerpetualMarkets(ctx context.Context, url string) (map[string]PerpetualMarket, error) {
	body, err := f.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("请求 dYdX 元数据失败: %w", err)
	}

	var resp PerpetualMarketsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("解析 dYdX 元数据失败: %w", err)
	}
	if resp.Markets == nil {
		return nil, fmt.Errorf("dYdX 元数据缺少 markets 字段")
	}
	return resp.Markets, nil
}

// doRequest 执行 HTTP GET 请求
func (f *HTTPFetcher) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "meanrev-paper-engine/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP 状态码错误: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	return body, nil
}
