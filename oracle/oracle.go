package oracle

import (
	"context"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Oracle 定义相关性裁判的窄接口，便于在测试中注入确定性桩实现。
type Oracle interface {
	// RankByQuery 根据自由文本查询在索引摘要中寻找相关文件（Level-1）。
	RankByQuery(ctx context.Context, indexDigest, query string) ([]types.Candidate, error)

	// Expand 根据已选文件推断其引用/被引用的相关文件（Level-2）。
	Expand(ctx context.Context, indexDigest string, paths []string) ([]types.Candidate, error)

	// ScoreFile 对单个文件内容与查询的相关性打分，范围 0-10。
	ScoreFile(ctx context.Context, content, query string) (score int, reason string, err error)

	// ScoreMessage 对单条会话内容与查询的相关性打分，范围 0-10。
	ScoreMessage(ctx context.Context, content, query string) (score int, reason string, err error)

	// SummarizeMessage 将单条超长内容压缩为不超过 maxTokens 的语义摘录。
	SummarizeMessage(ctx context.Context, content, query string, maxTokens int) (string, error)

	// ExtractSnippets 从带行号的文件内容中提取与查询相关的行区间。
	// partial 表示当前内容只是文件的局部窗口。
	ExtractSnippets(ctx context.Context, numberedContent, query string, partial bool) ([]types.LineRange, error)

	// SummarizeGroup 将一组早期会话浓缩为要点摘要。
	SummarizeGroup(ctx context.Context, msgs []types.Message) (string, error)

	// ExtractSymbols 提取单个源文件中的符号信息（函数/类型/变量/导入），
	// 供索引构建使用。
	ExtractSymbols(ctx context.Context, path, code string) (string, error)
}
