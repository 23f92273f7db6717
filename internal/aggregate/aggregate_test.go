package aggregate

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"afc/internal/extract"
	"afc/internal/geo"
	"afc/internal/metrics"
	"afc/internal/sanitize"
	"afc/internal/table"
)

func zipRow(sra string, zip int, facilities, capacity, enrollment int64) table.Row {
	return table.Row{
		Geo:        geo.Row{SRA: sra, Zipcode: zip},
		Facilities: facilities,
		Capacity:   capacity,
		Enrollment: enrollment,
		ADOD:       extract.ADOD{Current: "0", Future: "0"},
		LowIncome:  extract.LowIncome{Over55: sanitize.Of(0), Over65: sanitize.Of(0)},
		Minority:   sanitize.Of(0),
	}
}

func summaryRow(sra, adodCur, adodFut string, low55, low65, minority int64) table.Row {
	r := zipRow(sra, geo.SummaryZip, 0, 0, 0)
	r.ADOD = extract.ADOD{Current: adodCur, Future: adodFut}
	r.LowIncome = extract.LowIncome{Over55: sanitize.Of(low55), Over65: sanitize.Of(low65)}
	r.Minority = sanitize.Of(minority)
	return r
}

func TestRunSumsIntoSummaryRow(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		zipRow("A", 92101, 3, 30, 1),
		zipRow("A", 92102, 4, 12, 2),
		summaryRow("A", "140", "210", 70, 35, 700),
	}}
	rep := Run(tab)
	if len(rep.Issues) != 0 || len(rep.Summaries) != 1 {
		t.Fatalf("report: %+v", rep)
	}
	s := tab.Rows[2]
	if s.Facilities != 7 || s.Capacity != 42 || s.Enrollment != 3 {
		t.Fatalf("summary totals: got=%d/%d/%d", s.Facilities, s.Capacity, s.Enrollment)
	}
	if tab.Rows[0].Facilities != 3 || tab.Rows[1].Facilities != 4 {
		t.Fatalf("per-zip rows changed: %d %d", tab.Rows[0].Facilities, tab.Rows[1].Facilities)
	}
	if tab.Rows[0].Ratios != (table.Ratios{}) {
		t.Fatalf("per-zip ratios must stay zero-filled: %+v", tab.Rows[0].Ratios)
	}
	want := map[string]float64{
		"adod_cur":  20,
		"adod_fut":  30,
		"low65":     5,
		"minority":  100,
		"low55adod": 0.5,
		"min_adod":  5,
	}
	got := map[string]float64{
		"adod_cur":  s.Ratios.ADODPerFacilityCurrent.Float(),
		"adod_fut":  s.Ratios.ADODPerFacilityFuture.Float(),
		"low65":     s.Ratios.LowIncome65PerFacility.Float(),
		"minority":  s.Ratios.MinorityPerFacility.Float(),
		"low55adod": s.Ratios.LowIncome55ADOD.Float(),
		"min_adod":  s.Ratios.MinorityADOD.Float(),
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s: want=%v got=%v", k, v, got[k])
		}
	}
}

func TestZeroFacilitiesGivesSentinel(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		zipRow("A", 92101, 0, 0, 0),
		summaryRow("A", "100", "150", 10, 20, 30),
	}}
	Run(tab)
	r := tab.Rows[1].Ratios
	for name, v := range map[string]table.Ratio{
		"adod_cur": r.ADODPerFacilityCurrent,
		"adod_fut": r.ADODPerFacilityFuture,
		"low65":    r.LowIncome65PerFacility,
		"minority": r.MinorityPerFacility,
	} {
		if v.Float() != table.Sentinel {
			t.Fatalf("%s: want=%v got=%v", name, table.Sentinel, v.Float())
		}
	}
	if r.LowIncome55ADOD.Float() != 0.1 || r.MinorityADOD.Float() != 0.3 {
		t.Fatalf("ADOD ratios: got=%v %v", r.LowIncome55ADOD.Float(), r.MinorityADOD.Float())
	}
}

func TestZeroADODGivesSentinel(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		zipRow("A", 92101, 2, 10, 0),
		summaryRow("A", "0", "5", 10, 20, 30),
	}}
	Run(tab)
	r := tab.Rows[1].Ratios
	if r.LowIncome55ADOD.Float() != table.Sentinel || r.MinorityADOD.Float() != table.Sentinel {
		t.Fatalf("ADOD ratios: want sentinel got=%v %v", r.LowIncome55ADOD.Float(), r.MinorityADOD.Float())
	}
	if r.ADODPerFacilityCurrent.Float() != 0 || r.ADODPerFacilityFuture.Float() != 2.5 {
		t.Fatalf("facility ratios: got=%v %v", r.ADODPerFacilityCurrent.Float(), r.ADODPerFacilityFuture.Float())
	}
}

func TestPlaceholderFallsBackForWholeGroup(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		zipRow("A", 92101, 5, 10, 0),
		summaryRow("A", "<5", "20", 10, 20, 30),
	}}
	rep := Run(tab)
	if rep.Summaries[0].InputsValid {
		t.Fatalf("InputsValid: want=false")
	}
	r := tab.Rows[1]
	if r.Facilities != 5 {
		t.Fatalf("totals still written: want=5 got=%d", r.Facilities)
	}
	for i, v := range []table.Ratio{
		r.Ratios.ADODPerFacilityCurrent, r.Ratios.ADODPerFacilityFuture,
		r.Ratios.LowIncome65PerFacility, r.Ratios.LowIncome55ADOD,
		r.Ratios.MinorityPerFacility, r.Ratios.MinorityADOD,
	} {
		if v.Float() != table.Sentinel {
			t.Fatalf("ratio %d: want sentinel got=%v", i, v.Float())
		}
	}
}

func TestInvalidMinorityFallsBack(t *testing.T) {
	row := summaryRow("A", "10", "20", 1, 2, 3)
	row.Minority = sanitize.Count{N: 3}
	tab := &table.Table{Rows: []table.Row{zipRow("A", 92101, 1, 1, 0), row}}
	Run(tab)
	if tab.Rows[1].Ratios.ADODPerFacilityCurrent.Float() != table.Sentinel {
		t.Fatalf("invalid minority should disable every ratio")
	}
}

func TestMissingSummaryRowSkipsOnlyThatRegion(t *testing.T) {
	before := testutil.ToFloat64(metrics.RegionsSkippedTotal.WithLabelValues(string(IssueMissingSummary)))
	tab := &table.Table{Rows: []table.Row{
		zipRow("A", 92101, 3, 3, 0),
		zipRow("A", 92102, 4, 4, 0),
		zipRow("B", 92118, 2, 8, 1),
		summaryRow("B", "10", "10", 0, 0, 0),
	}}
	rep := Run(tab)
	if len(rep.Issues) != 1 || rep.Issues[0].SRA != "A" || rep.Issues[0].Kind != IssueMissingSummary {
		t.Fatalf("issues: %+v", rep.Issues)
	}
	if tab.Rows[3].Facilities != 2 {
		t.Fatalf("region B still aggregated: want=2 got=%d", tab.Rows[3].Facilities)
	}
	if tab.Rows[0].Facilities != 3 || tab.Rows[1].Facilities != 4 {
		t.Fatalf("region A rows must stay untouched")
	}
	after := testutil.ToFloat64(metrics.RegionsSkippedTotal.WithLabelValues(string(IssueMissingSummary)))
	if after-before != 1 {
		t.Fatalf("skip metric delta: want=1 got=%v", after-before)
	}
}

func TestDuplicateSummaryRows(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		summaryRow("A", "1", "1", 0, 0, 0),
		zipRow("A", 92101, 1, 1, 0),
		summaryRow("A", "1", "1", 0, 0, 0),
	}}
	sums, issues := Summarize(tab)
	if len(sums) != 0 || len(issues) != 1 || issues[0].Kind != IssueDuplicateSummary || issues[0].Summaries != 2 {
		t.Fatalf("duplicate summary: sums=%+v issues=%+v", sums, issues)
	}
}

func TestRegionKeyNormalizedForGrouping(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		zipRow("North  County", 92025, 2, 2, 0),
		summaryRow("north county", "4", "4", 0, 0, 0),
	}}
	sums, issues := Summarize(tab)
	if len(issues) != 0 || len(sums) != 1 || sums[0].Facilities != 2 {
		t.Fatalf("normalized grouping: sums=%+v issues=%+v", sums, issues)
	}
}

func TestOutOfRangeInputFallsBack(t *testing.T) {
	tab := &table.Table{Rows: []table.Row{
		zipRow("A", 92101, 4, 10, 0),
		summaryRow("A", "99999999999999999999", "1e30", 10, 20, 30),
	}}
	rep := Run(tab)
	if len(rep.Summaries) != 1 || rep.Summaries[0].InputsValid {
		t.Fatalf("InputsValid: want=false got=%+v", rep.Summaries)
	}
	r := tab.Rows[1].Ratios
	for i, v := range []table.Ratio{
		r.ADODPerFacilityCurrent, r.ADODPerFacilityFuture,
		r.LowIncome65PerFacility, r.LowIncome55ADOD,
		r.MinorityPerFacility, r.MinorityADOD,
	} {
		if v.Float() != table.Sentinel {
			t.Fatalf("ratio %d: want=%v got=%v", i, table.Sentinel, v.Float())
		}
	}
}
