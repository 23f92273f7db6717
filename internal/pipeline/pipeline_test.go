package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"afc/internal/config"
	"afc/internal/table"
	"afc/internal/tabular"
)

var fixtures = map[string]string{
	"geo.txt": "SRA\tRegion\tZipcode\tZCTA\n" +
		"Central San Diego\tCentral\t92101\t92101\n" +
		"Central San Diego\tCentral\t92102\t92102\n" +
		"Central San Diego\tCentral\t0\t\n" +
		"Coronado\tSouth\t92118\t92118\n" +
		"Coronado\tSouth\t0\t\n",
	"facilities.csv": "Facility Name,Facility Zip,Facility Capacity\n" +
		"A,92101,10\n" +
		"B,92101,5\n" +
		"C,92102,20\n",
	"enrollment.csv": "Facility,Zip Code\nA,92101\nB,92101\nD,92118\n",
	"pop_current.csv": "Population 2012\n" +
		"SRA,55-64,65-74,75-84,85 and Over,55 and Over\n" +
		"Central San Diego,10,20,30,40,100\n" +
		"Coronado,1,2,3,4,10\n",
	"pop_future.csv": "Population 2030\n" +
		"SRA,55-64,65-74,75-84,85 and Over,55 and Over\n" +
		"Central San Diego,20,30,40,50,140\n",
	"adod.csv": "ADOD 55+\n" +
		"SRA,2012,2030\n" +
		"Central San Diego,\"1,200\",\"1,500\"\n" +
		"Coronado,<5,12\n",
	"low_income.csv": "SRA,Zipcode,55 and Over (Low Income),65 and Over (Low Income)\n" +
		"Central San Diego,0,300,150\n" +
		"Coronado,0,8,4\n",
	"minority.csv": "SRA,TYPE,Two or More,Other,Pacific Islander,Asian,American Indian,Black,White,Hispanic\n" +
		"Central San Diego,Total,100,1,2,3,4,5,1000,\"1,006\"\n" +
		"Coronado,Total,9,1,1,1,1,1,500,1\n",
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	data := t.TempDir()
	for name, body := range fixtures {
		if err := os.WriteFile(filepath.Join(data, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	cfg := config.Default()
	cfg.DataDir = data
	cfg.OutputDir = t.TempDir()
	cfg.Sources = config.Sources{
		Geo:               config.SourceSpec{File: "geo.txt", Delimiter: "tab"},
		Facilities:        config.SourceSpec{File: "facilities.csv"},
		Enrollment:        config.SourceSpec{File: "enrollment.csv"},
		PopulationCurrent: config.SourceSpec{File: "pop_current.csv", SkipRows: 1},
		PopulationFuture:  config.SourceSpec{File: "pop_future.csv", SkipRows: 1},
		ADOD:              config.SourceSpec{File: "adod.csv", SkipRows: 1},
		LowIncome:         config.SourceSpec{File: "low_income.csv"},
		Minority:          config.SourceSpec{File: "minority.csv"},
	}
	return cfg
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	return recs
}

func column(t *testing.T, header []string, name string) int {
	t.Helper()
	for i, h := range header {
		if h == name {
			return i
		}
	}
	t.Fatalf("column %s not in header", name)
	return -1
}

type recordingSink struct {
	name  string
	err   error
	snaps []Snapshot
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, snap Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	sink := &recordingSink{name: "memory"}
	res, err := Run(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := filepath.Join(cfg.OutputDir, "afc_20170125.csv"); res.Path != want {
		t.Fatalf("path: want=%s got=%s", want, res.Path)
	}
	if res.Rows != 5 || res.Regions != 2 || len(res.Skipped) != 0 {
		t.Fatalf("result: got=%+v", res)
	}

	recs := readOutput(t, res.Path)
	if len(recs) != 6 {
		t.Fatalf("lines: want=6 got=%d", len(recs))
	}
	header := recs[0]
	if len(header) != len(table.Header) {
		t.Fatalf("header width: want=%d got=%d", len(table.Header), len(header))
	}
	get := func(row int, col string) string { return recs[row+1][column(t, header, col)] }

	// 逐邮编行保持原值
	if got := get(0, table.ColNumRCFE); got != "2" {
		t.Fatalf("92101 facilities: want=2 got=%s", got)
	}
	if got := get(0, table.Col2012ADODPerRCFE); got != "0.0" {
		t.Fatalf("92101 ratio: want=0.0 got=%s", got)
	}

	cases := []struct {
		row  int
		col  string
		want string
	}{
		{2, table.ColNumRCFE, "3"},
		{2, table.ColNumRCFEBeds, "35"},
		{2, table.ColNumRCFEInALWP, "2"},
		{2, table.Col2012Pop65Over, "90"},
		{2, table.Col2012PopADOD55Over, "1200"},
		{2, table.Col2012ADODPerRCFE, "400.0"},
		{2, table.Col2030ADODPerRCFE, "500.0"},
		{2, table.Col2012LowIncome65OverPerRCFE, "50.0"},
		{2, table.Col2012LowIncome55OverADOD, "0.25"},
		{2, table.ColPopMinorityPerRCFE, "340.33"},
		{2, table.ColPopMinorityADODRatio, "0.85"},
		{4, table.ColNumRCFE, "0"},
		{4, table.ColNumRCFEInALWP, "1"},
		{4, table.Col2012ADODPerRCFE, "999.0"},
		{4, table.ColPopMinorityADODRatio, "999.0"},
	}
	for _, c := range cases {
		if got := get(c.row, c.col); got != c.want {
			t.Fatalf("row %d %s: want=%s got=%s", c.row, c.col, c.want, got)
		}
	}

	if len(sink.snaps) != 1 || sink.snaps[0].Version != cfg.Version || sink.snaps[0].Table.Len() != 5 {
		t.Fatalf("sink snapshot: got=%+v", sink.snaps)
	}
}

func TestRunIsByteIdentical(t *testing.T) {
	cfg := testConfig(t)
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(res.Path)
	if _, err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(res.Path)
	if !bytes.Equal(first, second) {
		t.Fatalf("outputs differ between runs")
	}
}

func TestRunSchemaErrorWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	bad := "Facility Name,Facility Capacity\nA,10\n"
	if err := os.WriteFile(filepath.Join(cfg.DataDir, "facilities.csv"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Run(context.Background(), cfg)
	var se *StageError
	if !errors.As(err, &se) || se.Stage != "extract:facilities" {
		t.Fatalf("stage error: want=extract:facilities got=%v", err)
	}
	var schema *tabular.SchemaError
	if !errors.As(err, &schema) || schema.Column != "Facility Zip" {
		t.Fatalf("schema error: got=%v", err)
	}
	entries, _ := os.ReadDir(cfg.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("output dir: want empty got=%d entries", len(entries))
	}
}

func TestRunMissingGeo(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sources.Geo.File = "absent.txt"
	_, err := Run(context.Background(), cfg)
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageGeo {
		t.Fatalf("stage error: want=geo got=%v", err)
	}
}

func TestRunSinkFailureKeepsOutput(t *testing.T) {
	cfg := testConfig(t)
	ok := &recordingSink{name: "ok"}
	failing := &recordingSink{name: "down", err: errors.New("connection refused")}
	res, err := Run(context.Background(), cfg, failing, ok)
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StagePublish {
		t.Fatalf("stage error: want=publish got=%v", err)
	}
	if res == nil {
		t.Fatalf("result: want non-nil on publish failure")
	}
	if _, statErr := os.Stat(res.Path); statErr != nil {
		t.Fatalf("output missing: %v", statErr)
	}
	if len(ok.snaps) != 1 {
		t.Fatalf("remaining sink: want=1 publish got=%d", len(ok.snaps))
	}
}
