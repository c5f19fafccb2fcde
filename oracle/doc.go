// Package oracle 封装相关性裁判（Relevance Oracle）：一个以 LLM 调用实现的
// 黑盒打分/排序能力。所有方法同步、可失败、非确定；调用方负责按自身语义
// 降级（索引查询失败降为空结果，裁剪打分失败降级为 delete 策略）。
// 本包不做重试。
package oracle
