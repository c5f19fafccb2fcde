// Package selector 实现文件相关性筛选流水线：标签直通、Level-1 关键词过滤、
// Level-2 关联扩展、全量兜底、并发核验、数量截断，最终拼装成可直接注入
// 提示词的文件载荷。核验阶段并发执行且容忍单文件失败；其余阶段顺序执行。
package selector
