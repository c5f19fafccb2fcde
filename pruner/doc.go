// Package pruner 在会话与文件两个维度上把上下文压进 token 预算：
// ConversationPruner 逐单元裁剪会话历史（system 前缀与首条用户消息固定保留，
// 工具调用/工具结果成对增删），ContentPruner 无状态地裁剪文件列表或单段超长
// 内容。依赖 Oracle 的策略在 Oracle 失败时降级为占位删除，保证总能前进。
package pruner
