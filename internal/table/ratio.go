package table

import "math"

// Sentinel：不可计算比率的对外取值，与历史输出保持一致
const Sentinel = 999.0

type ratioState uint8

const (
	ratioUnset ratioState = iota
	ratioValue
	ratioNotComputable
)

// Ratio：派生比率
// 零值为预分配的占位（输出 0），Value 为已计算值（两位小数），NotComputable 为不可计算（输出 Sentinel）
type Ratio struct {
	v     float64
	state ratioState
}

// Value：构造已计算比率，四舍五入到两位小数
func Value(v float64) Ratio {
	return Ratio{v: round2(v), state: ratioValue}
}

// NotComputable：构造不可计算比率
func NotComputable() Ratio {
	return Ratio{state: ratioNotComputable}
}

// Divide：num/den；den<=0 时不可计算
func Divide(num, den int64) Ratio {
	if den <= 0 {
		return NotComputable()
	}
	return Value(float64(num) / float64(den))
}

// Computable：是否为已计算值
func (r Ratio) Computable() bool { return r.state == ratioValue }

// Float：对外数值
func (r Ratio) Float() float64 {
	switch r.state {
	case ratioValue:
		return r.v
	case ratioNotComputable:
		return Sentinel
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
