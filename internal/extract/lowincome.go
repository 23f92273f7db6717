package extract

import (
	"io"

	"afc/internal/geo"
	"afc/internal/sanitize"
	"afc/internal/tabular"
)

const (
	ColLowIncomeZip    = "Zipcode"
	ColLowIncome55Over = "55 and Over (Low Income)"
	ColLowIncome65Over = "65 and Over (Low Income)"
)

// LowIncome：低收入老年人口计数
type LowIncome struct {
	Over55 sanitize.Count
	Over65 sanitize.Count
}

var zeroLowIncome = LowIncome{Over55: sanitize.Of(0), Over65: sanitize.Of(0)}

// LoadLowIncome：读取按 (SRA, 邮编) 发布的低收入人口
// 背景：同一邮编可能跨多个 SRA，唯一键为复合键，故使用单层映射 geo.Pair -> 计数
func LoadLowIncome(r io.Reader, opts tabular.Options) (map[geo.Pair]LowIncome, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Require(SourceLowIncome, ColSRA, ColLowIncomeZip, ColLowIncome55Over, ColLowIncome65Over); err != nil {
		return nil, err
	}
	out := make(map[geo.Pair]LowIncome)
	for i, rec := range t.Records {
		sra := t.Get(rec, ColSRA)
		if sra == "" {
			dropped(SourceLowIncome, dropNoRegion, i+1, "")
			continue
		}
		rawZip := t.Get(rec, ColLowIncomeZip)
		zip, ok := sanitize.Zip(rawZip)
		if !ok {
			dropped(SourceLowIncome, dropBadZip, i+1, rawZip)
			continue
		}
		v := LowIncome{
			Over55: sanitize.ParseCount(t.Get(rec, ColLowIncome55Over)),
			Over65: sanitize.ParseCount(t.Get(rec, ColLowIncome65Over)),
		}
		if !v.Over55.Valid {
			defaulted(SourceLowIncome, ColLowIncome55Over, t.Get(rec, ColLowIncome55Over))
		}
		if !v.Over65.Valid {
			defaulted(SourceLowIncome, ColLowIncome65Over, t.Get(rec, ColLowIncome65Over))
		}
		out[geo.Pair{Region: geo.RegionKey(sra), Zip: zip}] = v
	}
	loaded(SourceLowIncome, t.Len(), len(out))
	return out, nil
}

// ProjectLowIncome：按复合键查找，缺失为 [0, 0]
func ProjectLowIncome(rows []geo.Row, m map[geo.Pair]LowIncome) []LowIncome {
	pairs := geo.Pairs(rows)
	out := make([]LowIncome, len(rows))
	for i, p := range pairs {
		v, ok := m[p]
		if !ok {
			v = zeroLowIncome
		}
		out[i] = v
	}
	return out
}

// LowIncomeSeries：抽取低收入人口
func LowIncomeSeries(rows []geo.Row, r io.Reader, opts tabular.Options) ([]LowIncome, error) {
	m, err := LoadLowIncome(r, opts)
	if err != nil {
		return nil, err
	}
	return ProjectLowIncome(rows, m), nil
}
