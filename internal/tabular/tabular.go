// 包 tabular：读取逗号/制表符分隔的源文件，按表头名称取列并做必需列校验
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Options：单个源文件的读取参数
// SkipRows 为表头之前需要跳过的标题行数（部分发布文件首行为报表标题）
type Options struct {
	Comma    rune
	SkipRows int
}

// SchemaError：必需列缺失；属于整次运行的致命错误
type SchemaError struct {
	Source string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("source %s: required column %q not found", e.Source, e.Column)
}

// Table：一次性读入内存的源表
type Table struct {
	Header  []string
	Records [][]string
	index   map[string]int
}

// Read：读取表头与全部数据行
// 约束：字段前导空白去除；允许行字段数不一致（缺失字段按空串处理）；空文件视为错误
func Read(r io.Reader, opts Options) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	// 制表符分隔时开启会吞掉空字段
	cr.TrimLeadingSpace = cr.Comma != '\t'
	cr.LazyQuotes = true
	for i := 0; i < opts.SkipRows; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("unexpected end of file before header")
			}
			return nil, fmt.Errorf("skip title row %d: %w", i+1, err)
		}
	}
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	t := &Table{Header: make([]string, len(header)), index: make(map[string]int, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", len(t.Records)+1, err)
		}
		if blank(rec) {
			continue
		}
		t.Records = append(t.Records, rec)
	}
	return t, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Require：校验必需列，返回第一个缺失列的 SchemaError
func (t *Table) Require(source string, cols ...string) error {
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			return &SchemaError{Source: source, Column: c}
		}
	}
	return nil
}

// Get：按列名取值（已去除首尾空白）；列不存在或行过短时返回空串
func (t *Table) Get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// Len：数据行数
func (t *Table) Len() int { return len(t.Records) }
