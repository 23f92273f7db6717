// 包 store: 将最终宽表发布到 PostgreSQL，按版本整体替换
package store

import (
	"context"
	"database/sql"
	"fmt"

	"afc/internal/logger"
	"afc/internal/migrate"
	"afc/internal/pipeline"
	"afc/internal/table"

	_ "github.com/lib/pq"
)

const insertRow = `INSERT INTO _afc_rows(version, seq, sra, region, zipcode, zcta,
        num_rcfe, num_rcfe_beds, num_rcfe_in_alwp,
        pop65_current, pop55_current, pop65_future, pop55_future,
        adod_current, adod_future, low_income55, low_income65, minority,
        adod_per_rcfe_current, adod_per_rcfe_future, low_income65_per_rcfe,
        low_income55_adod_ratio, minority_per_rcfe, minority_adod_ratio)
        VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`

const upsertRun = `INSERT INTO _afc_runs(version, row_count, regions, skipped, updated_at)
        VALUES($1,$2,$3,$4,now())
        ON CONFLICT (version) DO UPDATE SET row_count=EXCLUDED.row_count, regions=EXCLUDED.regions, skipped=EXCLUDED.skipped, updated_at=now()`

// Store: 数据库访问入口
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Name() string { return "postgres" }

// rowArgs: 单行插入参数，顺序与 insertRow 一致
func rowArgs(version string, seq int, r table.Row) []any {
	return []any{
		version, seq, r.Geo.SRA, r.Geo.Region, r.Geo.Zipcode, r.Geo.ZCTA,
		r.Facilities, r.Capacity, r.Enrollment,
		r.PopCurrent.Over65, r.PopCurrent.Over55, r.PopFuture.Over65, r.PopFuture.Over55,
		r.ADOD.Current, r.ADOD.Future, r.LowIncome.Over55.N, r.LowIncome.Over65.N, r.Minority.N,
		r.Ratios.ADODPerFacilityCurrent.Float(), r.Ratios.ADODPerFacilityFuture.Float(),
		r.Ratios.LowIncome65PerFacility.Float(), r.Ratios.LowIncome55ADOD.Float(),
		r.Ratios.MinorityPerFacility.Float(), r.Ratios.MinorityADOD.Float(),
	}
}

// Publish: 在单个事务内删除同版本旧数据并写入全部行
// 背景：与 CSV 输出的“整体替换”语义一致；失败时事务回滚，库内保持上一次的完整版本
// 异常：SQL 执行或提交失败直接返回，不做重试
func (s *Store) Publish(ctx context.Context, snap pipeline.Snapshot) error {
	l := logger.L()
	if err := migrate.EnsureSchema(ctx, s.db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM _afc_rows WHERE version=$1`, snap.Version); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range snap.Table.Rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(snap.Version, i, r)...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
		if (i+1)%500 == 0 {
			l.Info("pg_publish_progress", "count", i+1)
		}
	}
	if _, err := tx.ExecContext(ctx, upsertRun, snap.Version, snap.Table.Len(), len(snap.Report.Summaries), len(snap.Report.Issues)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	l.Info("pg_publish_done", "version", snap.Version, "rows", snap.Table.Len())
	return nil
}
