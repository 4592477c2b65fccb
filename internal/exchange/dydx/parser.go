package dydx

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"meanrev-paper-engine/internal/core/model"
	"meanrev-paper-engine/internal/util/fastparse"
)

// ErrMalformed 档位格式错误
var ErrMalformed = errors.New("dydx: 档位格式错误")

// Parser v4_orderbook 消息解析器
// 维护每个已订阅市场的本地订单簿，把快照与增量归一化为 BookEvent。
type Parser struct {
	books map[string]*Book
}

// NewParser 创建解析器
// 参数 markets: 订阅的市场列表；其他市场的消息被忽略
func NewParser(markets []string) *Parser {
	p := &Parser{books: make(map[string]*Book, len(markets))}
	for _, m := range markets {
		p.books[m] = nil
	}
	return p
}

// Reset 丢弃全部本地订单簿（重连后等待新快照）
func (p *Parser) Reset() {
	for m := range p.books {
		p.books[m] = nil
	}
}

// Parse 解析一条 WebSocket 消息
// 参数 data: 原始消息字节
// 参数 arrivedNs: 本机收到消息的时间（纳秒）
// 返回: 归一化事件；非订单簿消息、未收到快照前的增量或盘口不完整时返回 nil
func (p *Parser) Parse(data []byte, arrivedNs int64) (*model.BookEvent, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 dYdX 消息失败: %w", err)
	}
	if msg.Type == TypeError {
		return nil, fmt.Errorf("dYdX 返回错误: %s", msg.Message)
	}
	if msg.Channel != ChannelOrderbook {
		return nil, nil
	}
	book, known := p.books[msg.ID]
	if !known {
		return nil, nil
	}

	var contents BookContents
	if len(msg.Contents) > 0 {
		if err := json.Unmarshal(msg.Contents, &contents); err != nil {
			return nil, fmt.Errorf("解析订单簿内容失败: %w", err)
		}
	}
	bids, err := parseLevels(contents.Bids)
	if err != nil {
		return nil, fmt.Errorf("%s bids: %w", msg.ID, err)
	}
	asks, err := parseLevels(contents.Asks)
	if err != nil {
		return nil, fmt.Errorf("%s asks: %w", msg.ID, err)
	}

	switch msg.Type {
	case TypeSubscribed:
		if book == nil {
			book = NewBook()
			p.books[msg.ID] = book
		}
		book.reset()
	case TypeChannelData:
		if book == nil {
			return nil, nil
		}
	default:
		return nil, nil
	}
	book.apply(bids, asks)

	return p.event(msg.ID, book, arrivedNs), nil
}

// event 由本地订单簿生成归一化事件；盘口缺失或交叉时返回 nil
func (p *Parser) event(market string, book *Book, arrivedNs int64) *model.BookEvent {
	bids, asks := book.Top(model.TopLevels)
	if len(bids) == 0 || len(asks) == 0 {
		return nil
	}
	ev := &model.BookEvent{
		Exchange:        model.ExchangeDYDX,
		Market:          market,
		BestBidPx:       bids[0].Price,
		BestBidQty:      bids[0].Qty,
		BestAskPx:       asks[0].Price,
		BestAskQty:      asks[0].Qty,
		Bids:            bids,
		Asks:            asks,
		ArrivedAtUnixNs: arrivedNs,
		Seq:             book.Seq(),
	}
	if !ev.IsValid() {
		return nil
	}
	return ev
}

// parseLevels 解析档位列表，任一档位非法则整体失败
func parseLevels(raw []json.RawMessage) ([]levelUpdate, error) {
	out := make([]levelUpdate, 0, len(raw))
	for _, r := range raw {
		px, sz, err := decodeLevel(r)
		if err != nil {
			return nil, err
		}
		price, err := fastparse.ParseNonNegative(px)
		if err != nil || price == 0 {
			return nil, fmt.Errorf("%w: price=%q", ErrMalformed, px)
		}
		qty, err := fastparse.ParseNonNegative(sz)
		if err != nil {
			return nil, fmt.Errorf("%w: size=%q", ErrMalformed, sz)
		}
		out = append(out, levelUpdate{
			key: strconv.FormatFloat(price, 'f', -1, 64),
			lvl: model.Level{Price: price, Qty: qty},
		})
	}
	return out, nil
}

// decodeLevel 兼容对象与数组两种档位形式
func decodeLevel(r json.RawMessage) (price, size string, err error) {
	if len(r) == 0 {
		return "", "", ErrMalformed
	}
	switch r[0] {
	case '{':
		var pl PriceLevel
		if err := json.Unmarshal(r, &pl); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return pl.Price, pl.Size, nil
	case '[':
		var arr []string
		if err := json.Unmarshal(r, &arr); err != nil || len(arr) < 2 {
			return "", "", fmt.Errorf("%w: %s", ErrMalformed, string(r))
		}
		return arr[0], arr[1], nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrMalformed, string(r))
	}
}
