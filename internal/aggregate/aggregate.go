// 包 aggregate：按 SRA 汇总邮编级计数并计算派生比率
// 两遍处理：第一遍只读宽表生成不可变的 Summary；第二遍仅把 Summary 写回各 SRA 的汇总行（邮编为 0 的行）
package aggregate

import (
	"fmt"

	"afc/internal/logger"
	"afc/internal/metrics"
	"afc/internal/sanitize"
	"afc/internal/table"
)

// IssueKind：参照表与汇总行不一致的类型
type IssueKind string

const (
	IssueMissingSummary   IssueKind = "missing_summary_row"
	IssueDuplicateSummary IssueKind = "duplicate_summary_row"
)

// Issue：某 SRA 被跳过的原因；该 SRA 不写入任何汇总值，其他 SRA 不受影响
type Issue struct {
	SRA       string
	Kind      IssueKind
	Summaries int
}

func (i Issue) Error() string {
	return fmt.Sprintf("region %q skipped: %s (%d summary rows)", i.SRA, i.Kind, i.Summaries)
}

// Summary：单个 SRA 的汇总结果
type Summary struct {
	SRA        string
	Index      int
	Facilities int64
	Capacity   int64
	Enrollment int64
	Ratios     table.Ratios
	// InputsValid=false 表示比率输入含不可解析的值，六个比率整体回退为不可计算
	InputsValid bool
}

// Report：一次聚合的结果
type Report struct {
	Summaries []Summary
	Issues    []Issue
}

type group struct {
	sra     string
	members []int
	targets []int
}

// groups：按首次出现顺序对行分组
func groups(t *table.Table) []*group {
	var out []*group
	byKey := make(map[string]*group)
	for i, r := range t.Rows {
		k := r.Geo.Key()
		g, ok := byKey[k]
		if !ok {
			g = &group{sra: r.Geo.SRA}
			byKey[k] = g
			out = append(out, g)
		}
		g.members = append(g.members, i)
		if r.Geo.IsSummary() {
			g.targets = append(g.targets, i)
		}
	}
	return out
}

// ratioInputs：比率计算所需的全部输入
type ratioInputs struct {
	adodCurrent int64
	adodFuture  int64
	minority    int64
	low55       int64
	low65       int64
}

// parseInputs：解析汇总行上的比率输入；任一不可解析返回 ok=false
func parseInputs(r table.Row) (ratioInputs, bool) {
	cur, ok1 := sanitize.Int(r.ADOD.Current)
	fut, ok2 := sanitize.Int(r.ADOD.Future)
	ok := ok1 && ok2 && r.Minority.Valid && r.LowIncome.Over55.Valid && r.LowIncome.Over65.Valid
	return ratioInputs{
		adodCurrent: cur,
		adodFuture:  fut,
		minority:    r.Minority.N,
		low55:       r.LowIncome.Over55.N,
		low65:       r.LowIncome.Over65.N,
	}, ok
}

// computeRatios：按机构总数与 ADOD 当前人口计算六个比率
// 约束：机构总数为 0 时四个按机构计算的比率不可计算；ADOD 当前人口为 0 时两个 ADOD 比率不可计算
func computeRatios(totalFacilities int64, in ratioInputs) table.Ratios {
	return table.Ratios{
		ADODPerFacilityCurrent: table.Divide(in.adodCurrent, totalFacilities),
		ADODPerFacilityFuture:  table.Divide(in.adodFuture, totalFacilities),
		LowIncome65PerFacility: table.Divide(in.low65, totalFacilities),
		MinorityPerFacility:    table.Divide(in.minority, totalFacilities),
		LowIncome55ADOD:        table.Divide(in.low55, in.adodCurrent),
		MinorityADOD:           table.Divide(in.minority, in.adodCurrent),
	}
}

func allNotComputable() table.Ratios {
	nc := table.NotComputable()
	return table.Ratios{
		ADODPerFacilityCurrent: nc,
		ADODPerFacilityFuture:  nc,
		LowIncome65PerFacility: nc,
		LowIncome55ADOD:        nc,
		MinorityPerFacility:    nc,
		MinorityADOD:           nc,
	}
}

// Summarize：第一遍，只读宽表
func Summarize(t *table.Table) ([]Summary, []Issue) {
	var sums []Summary
	var issues []Issue
	for _, g := range groups(t) {
		if len(g.targets) != 1 {
			kind := IssueMissingSummary
			if len(g.targets) > 1 {
				kind = IssueDuplicateSummary
			}
			issues = append(issues, Issue{SRA: g.sra, Kind: kind, Summaries: len(g.targets)})
			continue
		}
		s := Summary{SRA: g.sra, Index: g.targets[0]}
		for _, i := range g.members {
			r := t.Rows[i]
			s.Facilities += r.Facilities
			s.Capacity += r.Capacity
			s.Enrollment += r.Enrollment
		}
		in, ok := parseInputs(t.Rows[s.Index])
		s.InputsValid = ok
		if ok {
			s.Ratios = computeRatios(s.Facilities, in)
		} else {
			s.Ratios = allNotComputable()
		}
		sums = append(sums, s)
	}
	return sums, issues
}

// Apply：第二遍，把汇总值写回汇总行；邮编级行保持不变
func Apply(t *table.Table, sums []Summary) {
	for _, s := range sums {
		r := &t.Rows[s.Index]
		r.Facilities = s.Facilities
		r.Capacity = s.Capacity
		r.Enrollment = s.Enrollment
		r.Ratios = s.Ratios
	}
}

// Run：执行两遍聚合，记录跳过的 SRA 与不可计算比率
func Run(t *table.Table) Report {
	l := logger.L()
	sums, issues := Summarize(t)
	for _, is := range issues {
		metrics.RegionsSkippedTotal.WithLabelValues(string(is.Kind)).Inc()
		l.Warn("region_skip", "sra", is.SRA, "reason", string(is.Kind), "summary_rows", is.Summaries)
	}
	for _, s := range sums {
		if !s.InputsValid {
			l.Warn("region_ratio_inputs_invalid", "sra", s.SRA)
		}
		countSentinels(s.Ratios)
	}
	Apply(t, sums)
	metrics.RegionsAggregatedTotal.Add(float64(len(sums)))
	l.Info("aggregate_done", "regions", len(sums), "skipped", len(issues))
	return Report{Summaries: sums, Issues: issues}
}

func countSentinels(r table.Ratios) {
	named := []struct {
		name string
		r    table.Ratio
	}{
		{table.Col2012ADODPerRCFE, r.ADODPerFacilityCurrent},
		{table.Col2030ADODPerRCFE, r.ADODPerFacilityFuture},
		{table.Col2012LowIncome65OverPerRCFE, r.LowIncome65PerFacility},
		{table.Col2012LowIncome55OverADOD, r.LowIncome55ADOD},
		{table.ColPopMinorityPerRCFE, r.MinorityPerFacility},
		{table.ColPopMinorityADODRatio, r.MinorityADOD},
	}
	for _, n := range named {
		if !n.r.Computable() {
			metrics.SentinelRatiosTotal.WithLabelValues(n.name).Inc()
		}
	}
}
