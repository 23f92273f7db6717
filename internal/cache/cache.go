// 包 cache：将各 SRA 汇总行写入 Redis，供看板按 SRA 快速读取
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"afc/internal/export"
	"afc/internal/geo"
	"afc/internal/logger"
	"afc/internal/pipeline"
	"afc/internal/table"
)

// LatestKey：指向最近一次发布版本的键
const LatestKey = "afc:latest"

// RegionCache：Redis 汇总缓存
// 约束：仅写入汇总行（邮编为 0）；键按版本隔离，TTL 到期自动清理旧版本
type RegionCache struct {
	rc  *redis.Client
	ttl time.Duration
}

func New(rc *redis.Client, ttl time.Duration) *RegionCache {
	return &RegionCache{rc: rc, ttl: ttl}
}

func (c *RegionCache) Name() string { return "redis" }

// RegionKey：afc:<version>:sra:<规范化 SRA>
func RegionKey(version, sra string) string {
	return "afc:" + version + ":sra:" + geo.RegionKey(sra)
}

// Fields：汇总行的哈希字段，字段名与 CSV 列名一致、取值与 CSV 文本一致
func Fields(r table.Row) map[string]any {
	rec := export.Record(r)
	out := make(map[string]any, len(rec))
	for i, col := range table.Header {
		out[col] = rec[i]
	}
	return out
}

// summaryRows：已完成聚合的汇总行；被跳过的 SRA（缺失或重复汇总行）不写入
func summaryRows(snap pipeline.Snapshot) []table.Row {
	out := make([]table.Row, 0, len(snap.Report.Summaries))
	for _, s := range snap.Report.Summaries {
		out = append(out, snap.Table.Rows[s.Index])
	}
	return out
}

// Publish：在一个 MULTI/EXEC 中写入全部汇总行并更新 latest 指针
// 异常：rc 为 nil 时视为未启用，直接返回
func (c *RegionCache) Publish(ctx context.Context, snap pipeline.Snapshot) error {
	if c.rc == nil {
		return nil
	}
	rows := summaryRows(snap)
	_, err := c.rc.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, r := range rows {
			key := RegionKey(snap.Version, r.Geo.SRA)
			p.Del(ctx, key)
			p.HSet(ctx, key, Fields(r))
			p.Expire(ctx, key, c.ttl)
		}
		p.Set(ctx, LatestKey, snap.Version, 0)
		return nil
	})
	if err != nil {
		return err
	}
	logger.L().Info("redis_publish_done", "version", snap.Version, "regions", len(rows))
	return nil
}
