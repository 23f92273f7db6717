// 包 geo：地理参照表（SRA/邮编/ZCTA 对照），定义下游所有抽取结果的行集合与对齐顺序
package geo

import (
	"fmt"
	"io"
	"strings"

	"afc/internal/sanitize"
	"afc/internal/tabular"
)

// SummaryZip：邮编哨兵值，表示该行代表整个 SRA 而非具体邮编
const SummaryZip = 0

// 对照表列名
const (
	ColSRA     = "SRA"
	ColRegion  = "Region"
	ColZipcode = "Zipcode"
	ColZCTA    = "ZCTA"
)

// Row：参照表中的一行
type Row struct {
	SRA     string
	Region  string
	Zipcode int
	ZCTA    string
}

// IsSummary：是否为 SRA 汇总行
func (r Row) IsSummary() bool { return r.Zipcode == SummaryZip }

// Key：用于跨源关联的规范化 SRA 键
func (r Row) Key() string { return RegionKey(r.SRA) }

// Reference：参照表契约；同一次运行内行序稳定
type Reference interface {
	Rows() []Row
}

// Pair：(SRA 键, 邮编) 投影，供按区域与复合键抽取使用
type Pair struct {
	Region string
	Zip    int
}

// RegionKey：SRA 名称规范化（去首尾空白、合并内部空白、大写）
// 背景：各发布方对同一 SRA 的大小写与空格写法不一致；输出仍使用参照表原文
func RegionKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// Crosswalk：从对照文件加载的参照表
type Crosswalk struct {
	rows []Row
}

// Rows：返回参照表行的副本，调用方修改不影响参照表
func (c *Crosswalk) Rows() []Row {
	cp := make([]Row, len(c.rows))
	copy(cp, c.rows)
	return cp
}

// Pairs：按行序返回 (SRA 键, 邮编) 投影
func Pairs(rows []Row) []Pair {
	out := make([]Pair, len(rows))
	for i, r := range rows {
		out[i] = Pair{Region: r.Key(), Zip: r.Zipcode}
	}
	return out
}

// LoadCrosswalk：读取 SRA/邮编/ZCTA 对照文件
// 约束：参照表定义行身份，任何行的 SRA 为空或邮编不可解析均视为致命错误，不做兜底
func LoadCrosswalk(r io.Reader, opts tabular.Options) (*Crosswalk, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Require("geo", ColSRA, ColRegion, ColZipcode, ColZCTA); err != nil {
		return nil, err
	}
	rows := make([]Row, 0, t.Len())
	for i, rec := range t.Records {
		sra := t.Get(rec, ColSRA)
		if sra == "" {
			return nil, fmt.Errorf("crosswalk row %d: empty SRA", i+1)
		}
		zip, ok := sanitize.Zip(t.Get(rec, ColZipcode))
		if !ok {
			return nil, fmt.Errorf("crosswalk row %d: bad zipcode %q", i+1, t.Get(rec, ColZipcode))
		}
		rows = append(rows, Row{
			SRA:     sra,
			Region:  t.Get(rec, ColRegion),
			Zipcode: zip,
			ZCTA:    t.Get(rec, ColZCTA),
		})
	}
	return &Crosswalk{rows: rows}, nil
}
