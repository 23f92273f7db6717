// 包 table：宽表行模型与拼装
// 拼装只按参照表行序拼接各抽取结果，不增删、不重排；派生比率列预分配为零值
package table

import (
	"fmt"

	"afc/internal/extract"
	"afc/internal/geo"
	"afc/internal/sanitize"
)

// 输出列名（顺序即输出顺序）
const (
	ColSRA                        = "SRA"
	ColRegion                     = "Region"
	ColZipcode                    = "Zipcode"
	ColZCTA                       = "ZCTA"
	ColNumRCFE                    = "NumRCFE"
	ColNumRCFEBeds                = "NumRCFEBeds"
	ColNumRCFEInALWP              = "NumRCFEInALWP"
	Col2012Pop65Over              = "2012Pop65Over"
	Col2012Pop55Over              = "2012Pop55Over"
	Col2030Pop65Over              = "2030Pop65Over"
	Col2030Pop55Over              = "2030Pop55Over"
	Col2012PopADOD55Over          = "2012PopADOD55Over"
	Col2030PopADOD55Over          = "2030PopADOD55Over"
	Col2012PopLowIncome55Over     = "2012PopLowIncome55Over"
	Col2012PopLowIncome65Over     = "2012PopLowIncome65Over"
	Col2012PopMinority            = "2012PopMinority"
	Col2012ADODPerRCFE            = "2012ADODPerRCFE"
	Col2030ADODPerRCFE            = "2030ADODPerRCFE"
	Col2012LowIncome65OverPerRCFE = "2012LowIncome65OverPerRCFE"
	Col2012LowIncome55OverADOD    = "2012LowIncome55OverADODRatio"
	ColPopMinorityPerRCFE         = "PopMinorityPerRCFE"
	ColPopMinorityADODRatio       = "PopMinorityADODRatio"
)

// Header：固定输出列顺序
var Header = []string{
	ColSRA, ColRegion, ColZipcode, ColZCTA,
	ColNumRCFE, ColNumRCFEBeds, ColNumRCFEInALWP,
	Col2012Pop65Over, Col2012Pop55Over, Col2030Pop65Over, Col2030Pop55Over,
	Col2012PopADOD55Over, Col2030PopADOD55Over,
	Col2012PopLowIncome55Over, Col2012PopLowIncome65Over,
	Col2012PopMinority,
	Col2012ADODPerRCFE, Col2030ADODPerRCFE,
	Col2012LowIncome65OverPerRCFE, Col2012LowIncome55OverADOD,
	ColPopMinorityPerRCFE, ColPopMinorityADODRatio,
}

// Ratios：六个派生比率
type Ratios struct {
	ADODPerFacilityCurrent Ratio
	ADODPerFacilityFuture  Ratio
	LowIncome65PerFacility Ratio
	LowIncome55ADOD        Ratio
	MinorityPerFacility    Ratio
	MinorityADOD           Ratio
}

// Row：一行宽表
type Row struct {
	Geo geo.Row

	Facilities int64
	Capacity   int64
	Enrollment int64
	PopCurrent extract.Population
	PopFuture  extract.Population
	ADOD       extract.ADOD
	LowIncome  extract.LowIncome
	Minority   sanitize.Count
	Ratios     Ratios
}

// Columns：各抽取器输出，长度须与参照表一致
type Columns struct {
	Facilities []extract.FacilityCount
	Enrollment []int64
	PopCurrent []extract.Population
	PopFuture  []extract.Population
	ADOD       []extract.ADOD
	LowIncome  []extract.LowIncome
	Minority   []sanitize.Count
}

func (c Columns) check(n int) error {
	lens := []struct {
		name string
		n    int
	}{
		{extract.SourceFacilities, len(c.Facilities)},
		{extract.SourceEnrollment, len(c.Enrollment)},
		{extract.SourcePopulationCurrent, len(c.PopCurrent)},
		{extract.SourcePopulationFuture, len(c.PopFuture)},
		{extract.SourceADOD, len(c.ADOD)},
		{extract.SourceLowIncome, len(c.LowIncome)},
		{extract.SourceMinority, len(c.Minority)},
	}
	for _, l := range lens {
		if l.n != n {
			return fmt.Errorf("column %s has %d rows, reference has %d", l.name, l.n, n)
		}
	}
	return nil
}

// Table：拼装后的宽表，Rows 与参照表一一对应
type Table struct {
	Rows []Row
}

// Len：行数
func (t *Table) Len() int { return len(t.Rows) }

// Assemble：按参照表行序拼接各列
func Assemble(rows []geo.Row, c Columns) (*Table, error) {
	if err := c.check(len(rows)); err != nil {
		return nil, err
	}
	out := make([]Row, len(rows))
	for i, g := range rows {
		out[i] = Row{
			Geo:        g,
			Facilities: c.Facilities[i].Count,
			Capacity:   c.Facilities[i].Capacity,
			Enrollment: c.Enrollment[i],
			PopCurrent: c.PopCurrent[i],
			PopFuture:  c.PopFuture[i],
			ADOD:       c.ADOD[i],
			LowIncome:  c.LowIncome[i],
			Minority:   c.Minority[i],
		}
	}
	return &Table{Rows: out}, nil
}
