package extract

import (
	"io"

	"afc/internal/geo"
	"afc/internal/sanitize"
	"afc/internal/tabular"
)

const (
	ColFacilityZip      = "Facility Zip"
	ColFacilityCapacity = "Facility Capacity"
	ColEnrollmentZip    = "Zip Code"
)

// FacilityCount：某邮编下的机构数与床位合计
type FacilityCount struct {
	Count    int64
	Capacity int64
}

// LoadFacilities：按邮编累计机构数与床位
// 约束：邮编统一转为整数键；邮编不可解析的记录丢弃；床位不可解析时机构仍计数、床位按 0 累加
func LoadFacilities(r io.Reader, opts tabular.Options) (map[int]FacilityCount, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Require(SourceFacilities, ColFacilityZip, ColFacilityCapacity); err != nil {
		return nil, err
	}
	out := make(map[int]FacilityCount)
	for i, rec := range t.Records {
		raw := t.Get(rec, ColFacilityZip)
		zip, ok := sanitize.Zip(raw)
		if !ok {
			dropped(SourceFacilities, dropBadZip, i+1, raw)
			continue
		}
		capRaw := t.Get(rec, ColFacilityCapacity)
		capacity, ok := sanitize.Int(capRaw)
		if !ok {
			defaulted(SourceFacilities, ColFacilityCapacity, capRaw)
		}
		fc := out[zip]
		fc.Count++
		fc.Capacity += capacity
		out[zip] = fc
	}
	loaded(SourceFacilities, t.Len(), len(out))
	return out, nil
}

// ProjectFacilities：按参照表行序输出，缺失邮编为 (0, 0)
func ProjectFacilities(rows []geo.Row, m map[int]FacilityCount) []FacilityCount {
	out := make([]FacilityCount, len(rows))
	for i, row := range rows {
		out[i] = m[row.Zipcode]
	}
	return out
}

// Facilities：抽取机构数与床位
func Facilities(rows []geo.Row, r io.Reader, opts tabular.Options) ([]FacilityCount, error) {
	m, err := LoadFacilities(r, opts)
	if err != nil {
		return nil, err
	}
	return ProjectFacilities(rows, m), nil
}

// LoadEnrollment：按邮编统计参与项目的机构数
func LoadEnrollment(r io.Reader, opts tabular.Options) (map[int]int64, error) {
	t, err := tabular.Read(r, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Require(SourceEnrollment, ColEnrollmentZip); err != nil {
		return nil, err
	}
	out := make(map[int]int64)
	for i, rec := range t.Records {
		raw := t.Get(rec, ColEnrollmentZip)
		zip, ok := sanitize.Zip(raw)
		if !ok {
			dropped(SourceEnrollment, dropBadZip, i+1, raw)
			continue
		}
		out[zip]++
	}
	loaded(SourceEnrollment, t.Len(), len(out))
	return out, nil
}

// ProjectEnrollment：按参照表行序输出，缺失邮编为 0
func ProjectEnrollment(rows []geo.Row, m map[int]int64) []int64 {
	out := make([]int64, len(rows))
	for i, row := range rows {
		out[i] = m[row.Zipcode]
	}
	return out
}

// Enrollment：抽取项目参与计数
func Enrollment(rows []geo.Row, r io.Reader, opts tabular.Options) ([]int64, error) {
	m, err := LoadEnrollment(r, opts)
	if err != nil {
		return nil, err
	}
	return ProjectEnrollment(rows, m), nil
}
