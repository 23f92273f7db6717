// 程序入口：读取配置、按需连接 Postgres/Redis，执行一次聚合并写出 CSV
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"afc/internal/cache"
	"afc/internal/config"
	"afc/internal/logger"
	"afc/internal/metrics"
	"afc/internal/pipeline"
	"afc/internal/store"
	"afc/internal/utils"
)

var rootFlags struct {
	manifest string
	dataDir  string
	outDir   string
	version  string
}

var rootCmd = &cobra.Command{
	Use:   "afc-aggregate",
	Short: "Build the regional assisted-living facility capacity table",
	Long: `Reads the SRA/zip crosswalk and the facility, enrollment, population,
ADOD, low-income and minority sources, aggregates them per SRA and writes
<prefix>_<version>.csv to the output directory.

Every flag has an environment equivalent (AFC_MANIFEST, AFC_DATA_DIR,
AFC_OUTPUT_DIR, AFC_OUT_VERSION); flags win.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runAggregate,
}

func init() {
	rootCmd.Flags().StringVarP(&rootFlags.manifest, "manifest", "m", "", "YAML source manifest")
	rootCmd.Flags().StringVar(&rootFlags.dataDir, "data-dir", "", "directory holding the source files")
	rootCmd.Flags().StringVarP(&rootFlags.outDir, "out-dir", "o", "", "output directory")
	rootCmd.Flags().StringVar(&rootFlags.version, "out-version", "", `version stamp in the output name ("today" for the current date)`)
}

// flagsToEnv：命令行参数写入对应环境变量，统一由 config.Load 解析
func flagsToEnv(cmd *cobra.Command) {
	pairs := []struct {
		flag, env, val string
	}{
		{"manifest", "AFC_MANIFEST", rootFlags.manifest},
		{"data-dir", "AFC_DATA_DIR", rootFlags.dataDir},
		{"out-dir", "AFC_OUTPUT_DIR", rootFlags.outDir},
		{"out-version", "AFC_OUT_VERSION", rootFlags.version},
	}
	for _, p := range pairs {
		if cmd.Flags().Changed(p.flag) {
			_ = os.Setenv(p.env, p.val)
		}
	}
}

// buildSinks：按配置打开下游发布目标；返回的 closer 需在运行结束后调用
func buildSinks(ctx context.Context, cfg *config.Config) ([]pipeline.Sink, func(), error) {
	l := logger.L()
	var sinks []pipeline.Sink
	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if cfg.PublishPG {
		db, err := utils.OpenPostgresFromEnv()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, closeAll, fmt.Errorf("ping postgres: %w", err)
		}
		l.Info("db_ping_ok")
		st := store.AttachDB(db)
		closers = append(closers, func() { _ = st.Close() })
		sinks = append(sinks, st)
	}
	if cfg.PublishRedis {
		rc := utils.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			_ = rc.Close()
			return nil, closeAll, fmt.Errorf("ping redis: %w", err)
		}
		l.Info("redis_ping_ok")
		closers = append(closers, func() { _ = rc.Close() })
		sinks = append(sinks, cache.New(rc, cfg.RedisTTL()))
	}
	return sinks, closeAll, nil
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	l := logger.L()
	flagsToEnv(cmd)
	cfg, err := config.Load(os.Getenv("AFC_MANIFEST"))
	if err != nil {
		return &pipeline.StageError{Stage: "config", Err: err}
	}
	l.Debug("config_loaded", "data_dir", cfg.DataDir, "out_dir", cfg.OutputDir, "version", cfg.Version)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks, closeSinks, err := buildSinks(ctx, cfg)
	defer closeSinks()
	if err != nil {
		return &pipeline.StageError{Stage: "connect", Err: err}
	}

	res, runErr := pipeline.Run(ctx, cfg, sinks...)
	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		l.Warn("metrics_textfile_error", "path", cfg.MetricsTextfile, "err", err)
	}
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s rows=%d regions=%d skipped=%d\n", res.Path, res.Rows, res.Regions, len(res.Skipped))
	}
	return runErr
}

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	l.Debug("log_init_ok")
	if err := rootCmd.Execute(); err != nil {
		stage := ""
		var se *pipeline.StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		l.Error("afc_run_error", "stage", stage, "err", err)
		os.Exit(1)
	}
}
