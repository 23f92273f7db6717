package migrate

import (
	"context"
	"database/sql"

	"afc/internal/logger"
)

// 背景：首次发布时自动创建宽表与运行记录表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；列与 CSV 输出一一对应，比率列保留哨兵值 999
var schemaStmts = []string{
	`CREATE TABLE IF NOT EXISTS _afc_rows (
            version TEXT NOT NULL,
            seq INT NOT NULL,
            sra TEXT NOT NULL,
            region TEXT NOT NULL,
            zipcode INT NOT NULL,
            zcta TEXT NOT NULL,
            num_rcfe BIGINT NOT NULL,
            num_rcfe_beds BIGINT NOT NULL,
            num_rcfe_in_alwp BIGINT NOT NULL,
            pop65_current BIGINT NOT NULL,
            pop55_current BIGINT NOT NULL,
            pop65_future BIGINT NOT NULL,
            pop55_future BIGINT NOT NULL,
            adod_current TEXT NOT NULL,
            adod_future TEXT NOT NULL,
            low_income55 BIGINT NOT NULL,
            low_income65 BIGINT NOT NULL,
            minority BIGINT NOT NULL,
            adod_per_rcfe_current DOUBLE PRECISION NOT NULL,
            adod_per_rcfe_future DOUBLE PRECISION NOT NULL,
            low_income65_per_rcfe DOUBLE PRECISION NOT NULL,
            low_income55_adod_ratio DOUBLE PRECISION NOT NULL,
            minority_per_rcfe DOUBLE PRECISION NOT NULL,
            minority_adod_ratio DOUBLE PRECISION NOT NULL,
            PRIMARY KEY (version, seq)
        )`,
	`CREATE INDEX IF NOT EXISTS idx_afc_rows_sra ON _afc_rows(version, sra, zipcode)`,
	`CREATE TABLE IF NOT EXISTS _afc_runs (
            version TEXT PRIMARY KEY,
            row_count INT NOT NULL,
            regions INT NOT NULL,
            skipped INT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
}

// EnsureSchema：逐条执行建表语句
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range schemaStmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
