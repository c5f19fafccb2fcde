package config

import (
	"github.com/w4n9H/autocoder-nano-sub001/index"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/pruner"
	"github.com/w4n9H/autocoder-nano-sub001/selector"
)

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		Index:    index.DefaultConfig(),
		Selector: selector.DefaultConfig(),
		Pruner:   DefaultPrunerConfig(),
		Oracle:   oracle.DefaultClientConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultPrunerConfig 返回默认裁剪配置。
func DefaultPrunerConfig() PrunerConfig {
	return PrunerConfig{
		Conversation:       pruner.DefaultConfig(),
		Content:            pruner.DefaultContentConfig(),
		ConversationBudget: 51200,
		Strategy:           string(pruner.StrategyDelete),
	}
}

// DefaultLogConfig 返回默认日志配置。
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}
