// 包 sanitize：数值字段清洗，将带千分位或占位符的文本转换为整数
package sanitize

import (
	"math"
	"strconv"
	"strings"
)

// Strip：去除千分位分隔符与首尾空白，不做数值转换
func Strip(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}

// Int：将计数文本转换为非负整数
// 背景：人口类数据常以 "1,234" 形式发布，小样本以 "<5" 等占位符屏蔽
// 约束：仅接受十进制整数，允许上游导出的 ".0" 后缀；负数、科学计数法、超出 int64 的值均不可解析
// 返回：ok=false 表示不可解析，调用方自行决定默认值
func Int(s string) (int64, bool) {
	v := Strip(s)
	if i := strings.IndexByte(v, '.'); i >= 0 {
		if strings.Trim(v[i+1:], "0") != "" {
			return 0, false
		}
		v = v[:i]
	}
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Zip：将邮编文本统一为整数键
// 约束：兼容 "92101"、"92101.0"、"92101-1234"（ZIP+4 取前段）；负数与空值视为非法
func Zip(s string) (int, bool) {
	v := strings.TrimSpace(s)
	if i := strings.IndexByte(v, '-'); i > 0 {
		v = v[:i]
	}
	n, ok := Int(v)
	if !ok || n < 0 || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

// Count：带有效标记的计数
// 背景：抽取阶段以 0 兜底写出，聚合阶段需要知道该值是否来自占位符
type Count struct {
	N     int64
	Valid bool
}

// ParseCount：解析计数文本；不可解析时 N=0、Valid=false
func ParseCount(s string) Count {
	n, ok := Int(s)
	return Count{N: n, Valid: ok}
}

// Of：构造有效计数
func Of(n int64) Count { return Count{N: n, Valid: true} }

// Add：累加；任一方无效则结果无效，数值仍按有效部分累加
func (c Count) Add(o Count) Count {
	return Count{N: c.N + o.N, Valid: c.Valid && o.Valid}
}
