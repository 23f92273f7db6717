// 包 export：宽表序列化为 CSV，输出文件按版本号命名并整体替换旧文件
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"afc/internal/table"
)

// FileName：输出文件名，如 afc_20170125.csv
func FileName(prefix, version string) string {
	return prefix + "_" + version + ".csv"
}

// FormatRatio：比率输出格式，最短表示且至少保留一位小数（0.0、999.0、12.35）
func FormatRatio(r table.Ratio) string {
	s := strconv.FormatFloat(r.Float(), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// Record：单行输出字段，顺序与 table.Header 一致
func Record(r table.Row) []string {
	return []string{
		r.Geo.SRA,
		r.Geo.Region,
		strconv.Itoa(r.Geo.Zipcode),
		r.Geo.ZCTA,
		itoa(r.Facilities),
		itoa(r.Capacity),
		itoa(r.Enrollment),
		itoa(r.PopCurrent.Over65),
		itoa(r.PopCurrent.Over55),
		itoa(r.PopFuture.Over65),
		itoa(r.PopFuture.Over55),
		r.ADOD.Current,
		r.ADOD.Future,
		itoa(r.LowIncome.Over55.N),
		itoa(r.LowIncome.Over65.N),
		itoa(r.Minority.N),
		FormatRatio(r.Ratios.ADODPerFacilityCurrent),
		FormatRatio(r.Ratios.ADODPerFacilityFuture),
		FormatRatio(r.Ratios.LowIncome65PerFacility),
		FormatRatio(r.Ratios.LowIncome55ADOD),
		FormatRatio(r.Ratios.MinorityPerFacility),
		FormatRatio(r.Ratios.MinorityADOD),
	}
}

// WriteCSV：写出表头与全部行
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header); err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.Write(Record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile：写出到 dir/name 并替换同名旧文件
// 背景：先写同目录临时文件再重命名；任何失败都不会留下半截文件，旧的有效输出保持不变
func WriteFile(dir, name string, t *table.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	tmpName := tmp.Name()
	if err := WriteCSV(tmp, t); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("replace output: %w", err)
	}
	return path, nil
}
