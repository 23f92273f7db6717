// 包 config：运行配置；内置默认源文件清单，可由 YAML 清单与环境变量逐层覆盖
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"afc/internal/tabular"
)

// SourceSpec：单个源文件的位置与读取参数
type SourceSpec struct {
	File      string `yaml:"file"`
	Delimiter string `yaml:"delimiter"`
	SkipRows  int    `yaml:"skip_rows"`
}

// Options：转换为 tabular 读取参数；delimiter 支持 "tab" 或 "\t"
func (s SourceSpec) Options() tabular.Options {
	o := tabular.Options{Comma: ',', SkipRows: s.SkipRows}
	switch s.Delimiter {
	case "", ",":
	case "tab", "\\t", "\t":
		o.Comma = '\t'
	default:
		o.Comma = []rune(s.Delimiter)[0]
	}
	return o
}

// Sources：全部源文件
type Sources struct {
	Geo               SourceSpec `yaml:"geo"`
	Facilities        SourceSpec `yaml:"facilities"`
	Enrollment        SourceSpec `yaml:"enrollment"`
	PopulationCurrent SourceSpec `yaml:"population_current"`
	PopulationFuture  SourceSpec `yaml:"population_future"`
	ADOD              SourceSpec `yaml:"adod"`
	LowIncome         SourceSpec `yaml:"low_income"`
	Minority          SourceSpec `yaml:"minority"`
}

// Config：一次运行的全部配置
type Config struct {
	DataDir         string  `yaml:"data_dir"`
	OutputDir       string  `yaml:"output_dir"`
	OutputPrefix    string  `yaml:"output_prefix"`
	Version         string  `yaml:"version"`
	Sources         Sources `yaml:"sources"`
	PublishPG       bool    `yaml:"publish_pg"`
	PublishRedis    bool    `yaml:"publish_redis"`
	RedisTTLHours   int     `yaml:"redis_ttl_hours"`
	MetricsTextfile string  `yaml:"metrics_textfile"`
}

// DefaultVersion：历史输出使用的版本号
const DefaultVersion = "20170125"

// Default：内置源文件清单（与历史数据发布的文件名一致）
func Default() *Config {
	return &Config{
		DataDir:      ".",
		OutputDir:    ".",
		OutputPrefix: "afc",
		Version:      DefaultVersion,
		Sources: Sources{
			Geo:               SourceSpec{File: "sd_county_sra_zip_zcta.txt", Delimiter: "tab"},
			Facilities:        SourceSpec{File: "rcfe_sd_county_01012017.csv"},
			Enrollment:        SourceSpec{File: "rcfe_in_alwp_sd_county_12302016.csv"},
			PopulationCurrent: SourceSpec{File: "SD_County_ADOD_Pop_Data_003.csv", SkipRows: 1},
			PopulationFuture:  SourceSpec{File: "SD_County_ADOD_Pop_Data_005.csv", SkipRows: 1},
			ADOD:              SourceSpec{File: "SD_County_ADOD_Pop_Data_001.csv", SkipRows: 1},
			LowIncome:         SourceSpec{File: "low_income_data_sd_county_2012.csv"},
			Minority:          SourceSpec{File: "pop_estimate_sd_county_2012.csv"},
		},
		RedisTTLHours: 24 * 30,
	}
}

// Load：默认值 -> YAML 清单（manifest 非空时）-> 环境变量
// 异常：清单不可读或格式错误直接返回；环境变量格式错误回退默认值
func Load(manifest string) (*Config, error) {
	cfg := Default()
	if manifest != "" {
		b, err := os.ReadFile(manifest)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", manifest, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AFC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("AFC_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("AFC_OUTPUT_PREFIX"); v != "" {
		cfg.OutputPrefix = v
	}
	if v := os.Getenv("AFC_OUT_VERSION"); v != "" {
		cfg.Version = v
	}
	if v := os.Getenv("AFC_PUBLISH_PG"); v != "" {
		cfg.PublishPG = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("AFC_PUBLISH_REDIS"); v != "" {
		cfg.PublishRedis = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("AFC_REDIS_TTL_HOURS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			cfg.RedisTTLHours = n
		}
	}
	if v := os.Getenv("AFC_METRICS_TEXTFILE"); v != "" {
		cfg.MetricsTextfile = v
	}
}

// Validate：校验必填项；版本号为 "today" 时替换为当天日期
func (c *Config) Validate() error {
	if strings.EqualFold(c.Version, "today") {
		c.Version = time.Now().Format("20060102")
	}
	if c.Version == "" {
		return fmt.Errorf("config: version is empty")
	}
	if strings.ContainsAny(c.Version, `/\`) || strings.ContainsAny(c.OutputPrefix, `/\`) {
		return fmt.Errorf("config: version and output_prefix must not contain path separators")
	}
	if c.OutputPrefix == "" {
		return fmt.Errorf("config: output_prefix is empty")
	}
	for name, s := range c.Sources.byName() {
		if s.File == "" {
			return fmt.Errorf("config: source %s has no file", name)
		}
	}
	return nil
}

func (s Sources) byName() map[string]SourceSpec {
	return map[string]SourceSpec{
		"geo":                s.Geo,
		"facilities":         s.Facilities,
		"enrollment":         s.Enrollment,
		"population_current": s.PopulationCurrent,
		"population_future":  s.PopulationFuture,
		"adod":               s.ADOD,
		"low_income":         s.LowIncome,
		"minority":           s.Minority,
	}
}

// Path：源文件绝对/相对路径；清单中的绝对路径原样使用
func (c *Config) Path(s SourceSpec) string {
	if filepath.IsAbs(s.File) {
		return s.File
	}
	return filepath.Join(c.DataDir, s.File)
}

// RedisTTL：Redis 汇总键过期时间
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.RedisTTLHours) * time.Hour
}
