package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SourceRowsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "afc_source_rows_total",
		Help: "Total number of data rows read per source",
	}, []string{"source"})
	SourceRowsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "afc_source_rows_dropped_total",
		Help: "Source rows ignored during extraction by reason",
	}, []string{"source", "reason"})
	ValuesSanitizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "afc_values_defaulted_total",
		Help: "Non-numeric source values replaced by the default during extraction",
	}, []string{"source"})
	RegionsAggregatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "afc_regions_aggregated_total",
		Help: "Regions whose summary row received aggregate values",
	})
	RegionsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "afc_regions_skipped_total",
		Help: "Regions skipped by the aggregator by reason",
	}, []string{"reason"})
	SentinelRatiosTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "afc_sentinel_ratios_total",
		Help: "Derived ratios written as the not-computable sentinel",
	}, []string{"ratio"})
	OutputRows = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "afc_output_rows",
		Help: "Rows written by the last run",
	})
	RunDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "afc_run_duration_ms",
		Help:    "Pipeline run duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	LastRunSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "afc_last_run_success",
		Help: "1 when the last run completed and wrote output, 0 otherwise",
	})
)

func init() {
	prometheus.MustRegister(SourceRowsTotal)
	prometheus.MustRegister(SourceRowsDroppedTotal)
	prometheus.MustRegister(ValuesSanitizedTotal)
	prometheus.MustRegister(RegionsAggregatedTotal)
	prometheus.MustRegister(RegionsSkippedTotal)
	prometheus.MustRegister(SentinelRatiosTotal)
	prometheus.MustRegister(OutputRows)
	prometheus.MustRegister(RunDurationMs)
	prometheus.MustRegister(LastRunSuccess)
}

// 文档注释：写出指标快照到文本文件
// 背景：批处理进程不常驻，不挂载 /metrics；按 node_exporter textfile collector 约定落盘供抓取。
// 约束：path 为空时不写出；写入由 client_golang 先写临时文件再重命名完成。
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
