package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"meanrev-paper-engine/internal/core/model"
)

// maxLineBytes 单行最大长度
const maxLineBytes = 4 << 20

// ReadBooks 顺序读取订单簿记录
// 参数 r: JSONL 数据源
// 参数 fn: 每条有效事件的回调；返回错误时停止读取
// 返回: 已回调的事件数
func ReadBooks(r io.Reader, fn func(*model.BookEvent) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	n := 0
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var ev model.BookEvent
		if err := json.Unmarshal(b, &ev); err != nil {
			return n, fmt.Errorf("第 %d 行解析失败: %w", line, err)
		}
		if !ev.IsValid() {
			continue
		}
		if err := fn(&ev); err != nil {
			return n, err
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("读取失败: %w", err)
	}
	return n, nil
}

// ReadBooksFile 从文件读取订单簿记录
func ReadBooksFile(path string, fn func(*model.BookEvent) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开回放文件失败: %w", err)
	}
	defer f.Close()
	return ReadBooks(f, fn)
}
