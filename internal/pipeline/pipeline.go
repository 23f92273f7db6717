// 包 pipeline：串联参照表、各抽取器、拼装、聚合与导出，单线程一次性完成
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"afc/internal/aggregate"
	"afc/internal/config"
	"afc/internal/export"
	"afc/internal/extract"
	"afc/internal/geo"
	"afc/internal/logger"
	"afc/internal/metrics"
	"afc/internal/table"
	"afc/internal/tabular"
)

// 阶段名称
const (
	StageGeo       = "geo"
	StageAssemble  = "assemble"
	StageAggregate = "aggregate"
	StageExport    = "export"
	StagePublish   = "publish"
)

// StageError：带阶段标识的错误，CLI 据此输出失败阶段
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Snapshot：导出完成后交给下游发布的只读快照
type Snapshot struct {
	Version string
	Table   *table.Table
	Report  aggregate.Report
}

// Sink：可选的下游发布目标
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap Snapshot) error
}

// Result：一次运行的结果
type Result struct {
	Path    string
	Rows    int
	Regions int
	Skipped []aggregate.Issue
}

// withSource：打开源文件并交给 fn 读取
func withSource(path string, fn func(r io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// Build：读取全部源并生成聚合后的宽表，不写任何输出
func Build(cfg *config.Config) (*table.Table, aggregate.Report, error) {
	l := logger.L()
	var rep aggregate.Report

	var ref geo.Reference
	if err := withSource(cfg.Path(cfg.Sources.Geo), func(r io.Reader) error {
		cw, err := geo.LoadCrosswalk(r, cfg.Sources.Geo.Options())
		ref = cw
		return err
	}); err != nil {
		return nil, rep, stageErr(StageGeo, err)
	}
	rows := ref.Rows()
	l.Info("geo_loaded", "rows", len(rows))

	var cols table.Columns
	steps := []struct {
		source string
		spec   config.SourceSpec
		run    func(r io.Reader, opts tabular.Options) error
	}{
		{extract.SourceFacilities, cfg.Sources.Facilities, func(r io.Reader, o tabular.Options) (err error) {
			cols.Facilities, err = extract.Facilities(rows, r, o)
			return
		}},
		{extract.SourceEnrollment, cfg.Sources.Enrollment, func(r io.Reader, o tabular.Options) (err error) {
			cols.Enrollment, err = extract.Enrollment(rows, r, o)
			return
		}},
		{extract.SourcePopulationCurrent, cfg.Sources.PopulationCurrent, func(r io.Reader, o tabular.Options) (err error) {
			cols.PopCurrent, err = extract.PopulationSeries(extract.SourcePopulationCurrent, rows, r, o)
			return
		}},
		{extract.SourcePopulationFuture, cfg.Sources.PopulationFuture, func(r io.Reader, o tabular.Options) (err error) {
			cols.PopFuture, err = extract.PopulationSeries(extract.SourcePopulationFuture, rows, r, o)
			return
		}},
		{extract.SourceADOD, cfg.Sources.ADOD, func(r io.Reader, o tabular.Options) (err error) {
			cols.ADOD, err = extract.ADODSeries(rows, r, o)
			return
		}},
		{extract.SourceLowIncome, cfg.Sources.LowIncome, func(r io.Reader, o tabular.Options) (err error) {
			cols.LowIncome, err = extract.LowIncomeSeries(rows, r, o)
			return
		}},
		{extract.SourceMinority, cfg.Sources.Minority, func(r io.Reader, o tabular.Options) (err error) {
			cols.Minority, err = extract.MinoritySeries(rows, r, o)
			return
		}},
	}
	for _, s := range steps {
		path := cfg.Path(s.spec)
		opts := s.spec.Options()
		if err := withSource(path, func(r io.Reader) error { return s.run(r, opts) }); err != nil {
			return nil, rep, stageErr("extract:"+s.source, fmt.Errorf("%s: %w", path, err))
		}
	}

	t, err := table.Assemble(rows, cols)
	if err != nil {
		return nil, rep, stageErr(StageAssemble, err)
	}
	rep = aggregate.Run(t)
	return t, rep, nil
}

// Run：完整执行一次；导出之前任何阶段失败都不写出文件
// 约束：下游发布逐个执行，单个失败不影响其他目标，最终合并返回 publish 阶段错误；此时 CSV 已完整写出
func Run(ctx context.Context, cfg *config.Config, sinks ...Sink) (*Result, error) {
	l := logger.L()
	start := time.Now()
	metrics.LastRunSuccess.Set(0)
	l.Info("run_start", "version", cfg.Version, "data_dir", cfg.DataDir)

	t, rep, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	name := export.FileName(cfg.OutputPrefix, cfg.Version)
	path, err := export.WriteFile(cfg.OutputDir, name, t)
	if err != nil {
		return nil, stageErr(StageExport, err)
	}
	metrics.OutputRows.Set(float64(t.Len()))
	metrics.LastRunSuccess.Set(1)
	metrics.RunDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	l.Info("export_done", "path", path, "rows", t.Len())

	res := &Result{Path: path, Rows: t.Len(), Regions: len(rep.Summaries), Skipped: rep.Issues}
	snap := Snapshot{Version: cfg.Version, Table: t, Report: rep}
	var errs []error
	for _, s := range sinks {
		if err := s.Publish(ctx, snap); err != nil {
			l.Error("publish_error", "sink", s.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return res, stageErr(StagePublish, errors.Join(errs...))
	}
	return res, nil
}
