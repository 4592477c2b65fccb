// Package fastparse 提供热路径上的字符串数值解析函数。
// dYdX indexer 的价格、数量与步长均以十进制字符串下发。
package fastparse

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseFloat 解析浮点数字符串
// 参数 s: 待解析的字符串，如 "12345.67"
// 返回: 解析后的浮点数和可能的错误
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseNonNegative 解析非负有限浮点数
// 用于订单簿价格与数量：NaN、Inf、负数均视为格式错误
func ParseNonNegative(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("非法数值: %q", s)
	}
	return v, nil
}

// MustParseFloat 解析浮点数，失败时返回 0
// 参数 s: 待解析的字符串
// 返回: 解析后的浮点数，失败返回 0
func MustParseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// DecimalPlaces 计算十进制字符串的小数位数
// 用于由 stepSize 推导数量精度，如 "0.0001" -> 4，"1" -> 0，"0.10" -> 1
func DecimalPlaces(s string) int {
	s = strings.TrimSpace(s)
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	frac := strings.TrimRight(s[dot+1:], "0")
	return len(frac)
}
