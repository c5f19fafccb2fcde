package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig 日志配置。
type LogConfig struct {
	// Level 日志级别: debug, info, warn, error。
	Level string `yaml:"level"`

	// Format 输出格式: json, console。
	Format string `yaml:"format"`

	// OutputPaths 输出路径。
	OutputPaths []string `yaml:"output_paths"`

	// EnableCaller 是否记录调用位置。
	EnableCaller bool `yaml:"enable_caller"`

	// EnableStacktrace 是否记录堆栈跟踪。
	EnableStacktrace bool `yaml:"enable_stacktrace"`
}

// BuildLogger 按配置构建 zap.Logger。
func (c LogConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = c.Format
	if c.Format == "console" {
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if len(c.OutputPaths) > 0 {
		zapCfg.OutputPaths = c.OutputPaths
	}
	zapCfg.DisableCaller = !c.EnableCaller
	zapCfg.DisableStacktrace = !c.EnableStacktrace

	return zapCfg.Build()
}
