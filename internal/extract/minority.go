package extract

import (
	"io"
	"strings"

	"afc/internal/geo"
	"afc/internal/sanitize"
	"afc/internal/tabular"
)

const (
	ColType      = "TYPE"
	TypeTotal    = "Total"
	ColTwoOrMore = "Two or More"
	ColOther     = "Other"
	ColPacific   = "Pacific Islander"
	ColAsian     = "Asian"
	ColAmIndian  = "American Indian"
	ColBlack     = "Black"
	ColWhite     = "White"
	ColHispanic  = "Hispanic"
)

// MinorityCategories：计入少数族裔人口的类别；White 为基线类别，Two or More 不计入
var MinorityCategories = []string{ColOther, ColPacific, ColAsian, ColAmIndian, ColBlack, ColHispanic}

// LoadMinority：读取族裔人口估计，仅保留 TYPE=Total 的合计行（按性别等拆分的行丢弃）
// 约束：任一计入类别不可解析时该 SRA 的计数标记为无效
func LoadMinority(r io.Reader, opts tabular.Options) (map[string]sanitize.Count, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	required := append([]string{ColSRA, ColType, ColTwoOrMore, ColWhite}, MinorityCategories...)
	if err := t.Require(SourceMinority, required...); err != nil {
		return nil, err
	}
	out := make(map[string]sanitize.Count)
	for i, rec := range t.Records {
		if !strings.EqualFold(t.Get(rec, ColType), TypeTotal) {
			dropped(SourceMinority, dropNotTotal, i+1, t.Get(rec, ColType))
			continue
		}
		sra := t.Get(rec, ColSRA)
		if sra == "" {
			dropped(SourceMinority, dropNoRegion, i+1, "")
			continue
		}
		sum := sanitize.Of(0)
		for _, c := range MinorityCategories {
			v := sanitize.ParseCount(t.Get(rec, c))
			if !v.Valid {
				defaulted(SourceMinority, c, t.Get(rec, c))
			}
			sum = sum.Add(v)
		}
		out[geo.RegionKey(sra)] = sum
	}
	loaded(SourceMinority, t.Len(), len(out))
	return out, nil
}

// ProjectMinority：仅汇总行取值，其余为 0
func ProjectMinority(rows []geo.Row, m map[string]sanitize.Count) []sanitize.Count {
	out := make([]sanitize.Count, len(rows))
	for i, row := range rows {
		v, ok := m[row.Key()]
		if !row.IsSummary() || !ok {
			v = sanitize.Of(0)
		}
		out[i] = v
	}
	return out
}

// MinoritySeries：抽取少数族裔人口
func MinoritySeries(rows []geo.Row, r io.Reader, opts tabular.Options) ([]sanitize.Count, error) {
	m, err := LoadMinority(r, opts)
	if err != nil {
		return nil, err
	}
	return ProjectMinority(rows, m), nil
}
