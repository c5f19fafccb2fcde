package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/w4n9H/autocoder-nano-sub001/index"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/pruner"
	"github.com/w4n9H/autocoder-nano-sub001/selector"
)

// Config 是上下文预算子系统的完整配置。
type Config struct {
	// Index 索引构建与两级查询配置。
	Index index.Config `yaml:"index"`

	// Selector 文件筛选流水线配置。
	Selector selector.Config `yaml:"selector"`

	// Pruner 会话与内容裁剪配置。
	Pruner PrunerConfig `yaml:"pruner"`

	// Oracle LLM 裁判客户端配置。
	Oracle oracle.ClientConfig `yaml:"oracle"`

	// Log 日志配置。
	Log LogConfig `yaml:"log"`
}

// PrunerConfig 汇集两类裁剪器的配置与默认策略。
type PrunerConfig struct {
	// Conversation 会话裁剪配置。
	Conversation pruner.Config `yaml:"conversation"`

	// Content 文件内容裁剪配置。
	Content pruner.ContentConfig `yaml:"content"`

	// ConversationBudget 是会话历史的 token 预算。
	ConversationBudget int `yaml:"conversation_budget"`

	// Strategy 是默认裁剪策略。
	Strategy string `yaml:"strategy"`
}

// Loader 配置加载器（Builder 模式）。
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器。
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AUTOCODER",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径。
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀。
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器。
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置。优先级: 默认值 → YAML 文件 → 环境变量。
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}
	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置，文件不存在时保留默认值。
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// setFieldsFromEnv 按 yaml 标签递归生成环境变量键并覆盖字段。
func setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		tag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		envKey := prefix + "_" + strings.ToUpper(tag)

		if field.Kind() == reflect.Struct {
			if err := setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(i)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}

// MustLoad 加载配置，失败时 panic。
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate 验证配置。
func (c *Config) Validate() error {
	var errs []string

	if c.Selector.PassThreshold < 0 || c.Selector.PassThreshold > 10 {
		errs = append(errs, "selector pass_threshold must be between 0 and 10")
	}
	if c.Selector.MaxFiles < 0 {
		errs = append(errs, "selector max_files must not be negative")
	}
	if c.Selector.MinWorkers < 1 {
		errs = append(errs, "selector min_workers must be at least 1")
	}
	if c.Index.BuildWorkers < 1 {
		errs = append(errs, "index build_workers must be at least 1")
	}
	if c.Index.FilterBatchSize < 1 {
		errs = append(errs, "index filter_batch_size must be at least 1")
	}
	if c.Pruner.ConversationBudget <= 0 {
		errs = append(errs, "pruner conversation_budget must be positive")
	}
	if c.Pruner.Content.MaxTokens <= 0 {
		errs = append(errs, "pruner content max_tokens must be positive")
	}
	if s := pruner.Strategy(c.Pruner.Strategy); !s.Valid() {
		errs = append(errs, fmt.Sprintf("unknown pruner strategy %q", c.Pruner.Strategy))
	}
	if c.Oracle.Model == "" {
		errs = append(errs, "oracle model must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
