// 包 logger：统一初始化与获取日志器，避免各阶段重复配置；通过环境变量控制日志级别与输出格式
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// 默认日志器：在进程级复用，避免多处初始化导致输出不一致
var defaultLogger *slog.Logger

// parseLevel：将 LOG_LEVEL 文本映射为 slog 级别，未知值回退到 info
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup：初始化默认日志器
// 背景：集中化日志配置，批处理命令启动时调用一次
// 约束：输出目标固定为标准错误，标准输出保留给命令本身
func Setup() *slog.Logger {
	return SetupWriter(os.Stderr)
}

// SetupWriter：以指定输出初始化默认日志器（测试中用于捕获日志）
func SetupWriter(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}
	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	defaultLogger = slog.New(h).With("app", "afc")
	return defaultLogger
}

// L：获取默认日志器；若未初始化则回退到 Setup
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}
