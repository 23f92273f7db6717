// 包 extract：各源文件的抽取器
// 每个抽取器先将源表归并为中间映射（Load*），再按参照表行序投影为等长结果（Project*）；中间映射用后即弃。
package extract

import (
	"afc/internal/logger"
	"afc/internal/metrics"
)

// 源名称：用于日志、指标与错误定位
const (
	SourceFacilities        = "facilities"
	SourceEnrollment        = "enrollment"
	SourcePopulationCurrent = "population_current"
	SourcePopulationFuture  = "population_future"
	SourceADOD              = "adod"
	SourceLowIncome         = "low_income"
	SourceMinority          = "minority"
)

// 丢弃原因
const (
	dropBadZip   = "bad_zip"
	dropNoRegion = "no_region"
	dropNotTotal = "not_total"
)

func dropped(source, reason string, row int, value string) {
	metrics.SourceRowsDroppedTotal.WithLabelValues(source, reason).Inc()
	logger.L().Debug("extract_row_dropped", "source", source, "reason", reason, "row", row, "value", value)
}

func defaulted(source, column, value string) {
	metrics.ValuesSanitizedTotal.WithLabelValues(source).Inc()
	logger.L().Debug("extract_value_defaulted", "source", source, "column", column, "value", value)
}

func loaded(source string, rows, keys int) {
	metrics.SourceRowsTotal.WithLabelValues(source).Add(float64(rows))
	logger.L().Info("extract_loaded", "source", source, "rows", rows, "keys", keys)
}
