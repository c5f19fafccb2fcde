// Package config 提供统一配置：默认值 → YAML 文件 → 环境变量逐层覆盖。
// 环境变量以 AUTOCODER_ 为前缀，按配置段与字段的 yaml 标签大写拼接，
// 例如 AUTOCODER_SELECTOR_PASS_THRESHOLD。
package config
