// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与 CJK 估算器。预算子系统中所有 token 预算检查
// 都经由本包的 Counter 完成；Counter 不可用属于致命配置错误。
package tokenizer
