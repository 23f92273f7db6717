package extract

import (
	"io"

	"afc/internal/geo"
	"afc/internal/sanitize"
	"afc/internal/tabular"
)

const (
	ColSRA          = "SRA"
	ColAge55To64    = "55-64"
	ColAge65To74    = "65-74"
	ColAge75To84    = "75-84"
	ColAge85Over    = "85 and Over"
	ColAge55Over    = "55 and Over"
	ColADODCurrent  = "2012"
	ColADODFuture   = "2030"
	placeholderZero = "0"
)

// Population：某 SRA 的 65 岁以上与 55 岁以上人口
type Population struct {
	Over65 int64
	Over55 int64
}

// ADOD：某 SRA 的 ADOD 人口（当前年/预测年），保留去除千分位后的原文
// 背景：源数据含 "<5" 等屏蔽值，转换推迟到聚合阶段
type ADOD struct {
	Current string
	Future  string
}

func bandSum(source string, t *tabular.Table, rec []string, cols ...string) int64 {
	var sum int64
	for _, c := range cols {
		raw := t.Get(rec, c)
		n, ok := sanitize.Int(raw)
		if !ok {
			defaulted(source, c, raw)
		}
		sum += n
	}
	return sum
}

// LoadPopulation：读取按 SRA 发布的年龄段人口
// 约束：SRA 为空的行忽略；65+ 为 65-74、75-84、85+ 三段之和；不可解析的段按 0 计
func LoadPopulation(source string, r io.Reader, opts tabular.Options) (map[string]Population, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Require(source, ColSRA, ColAge55To64, ColAge65To74, ColAge75To84, ColAge85Over, ColAge55Over); err != nil {
		return nil, err
	}
	out := make(map[string]Population)
	for i, rec := range t.Records {
		sra := t.Get(rec, ColSRA)
		if sra == "" {
			dropped(source, dropNoRegion, i+1, "")
			continue
		}
		out[geo.RegionKey(sra)] = Population{
			Over65: bandSum(source, t, rec, ColAge65To74, ColAge75To84, ColAge85Over),
			Over55: bandSum(source, t, rec, ColAge55Over),
		}
	}
	loaded(source, t.Len(), len(out))
	return out, nil
}

// ProjectPopulation：仅 SRA 汇总行取值，其余行为 (0, 0)
func ProjectPopulation(rows []geo.Row, m map[string]Population) []Population {
	out := make([]Population, len(rows))
	for i, row := range rows {
		if !row.IsSummary() {
			continue
		}
		out[i] = m[row.Key()]
	}
	return out
}

// PopulationSeries：抽取当前年或预测年人口，source 区分两个变体
func PopulationSeries(source string, rows []geo.Row, r io.Reader, opts tabular.Options) ([]Population, error) {
	m, err := LoadPopulation(source, r, opts)
	if err != nil {
		return nil, err
	}
	return ProjectPopulation(rows, m), nil
}

// LoadADOD：读取 ADOD 人口，只去除千分位
func LoadADOD(r io.Reader, opts tabular.Options) (map[string]ADOD, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Require(SourceADOD, ColSRA, ColADODCurrent, ColADODFuture); err != nil {
		return nil, err
	}
	out := make(map[string]ADOD)
	for i, rec := range t.Records {
		sra := t.Get(rec, ColSRA)
		if sra == "" {
			dropped(SourceADOD, dropNoRegion, i+1, "")
			continue
		}
		out[geo.RegionKey(sra)] = ADOD{
			Current: sanitize.Strip(t.Get(rec, ColADODCurrent)),
			Future:  sanitize.Strip(t.Get(rec, ColADODFuture)),
		}
	}
	loaded(SourceADOD, t.Len(), len(out))
	return out, nil
}

// ProjectADOD：汇总行取原文，其余行及源中缺失的 SRA 为 "0"
func ProjectADOD(rows []geo.Row, m map[string]ADOD) []ADOD {
	out := make([]ADOD, len(rows))
	for i, row := range rows {
		v, ok := m[row.Key()]
		if !row.IsSummary() || !ok {
			v = ADOD{Current: placeholderZero, Future: placeholderZero}
		}
		out[i] = v
	}
	return out
}

// ADODSeries：抽取 ADOD 人口
func ADODSeries(rows []geo.Row, r io.Reader, opts tabular.Options) ([]ADOD, error) {
	m, err := LoadADOD(r, opts)
	if err != nil {
		return nil, err
	}
	return ProjectADOD(rows, m), nil
}
