// Package index 维护按文件的符号/变更索引：仅当文件内容哈希变化时重建条目，
// 并基于索引摘要提供两级查询能力（Level-1 关键词查询、Level-2 关联扩展）。
// 两级查询均 fail-closed：Oracle 出错时返回空结果而非部分结果，且不重试。
package index
