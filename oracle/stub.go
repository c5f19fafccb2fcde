package oracle

import (
	"context"
	"strings"
	"sync"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Stub 是用于测试的确定性 Oracle 桩实现。
// 零值可用：未配置的能力返回空结果。
type Stub struct {
	mu sync.Mutex

	// Ranked / Expanded 作为 RankByQuery / Expand 的固定返回。
	Ranked   []types.Candidate
	Expanded []types.Candidate

	// FileScores 按文件内容的首行（通常是路径标记）查分；
	// 查不到时返回 DefaultScore。
	FileScores   map[string]int
	DefaultScore int

	// Summary / Symbols 作为对应能力的固定返回。
	Summary string
	Symbols string

	// Snippets 作为 ExtractSnippets 的固定返回。
	Snippets []types.LineRange

	// Err 非 nil 时，所有调用返回该错误（模拟 Oracle 整体不可用）。
	Err error

	// Calls 记录各方法被调用的次数。
	Calls map[string]int
}

func (s *Stub) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Calls == nil {
		s.Calls = make(map[string]int)
	}
	s.Calls[op]++
}

// CallCount 返回 op 被调用的次数。
func (s *Stub) CallCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls[op]
}

func (s *Stub) RankByQuery(ctx context.Context, indexDigest, query string) ([]types.Candidate, error) {
	s.record("rank_by_query")
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Ranked, nil
}

func (s *Stub) Expand(ctx context.Context, indexDigest string, paths []string) ([]types.Candidate, error) {
	s.record("expand")
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Expanded, nil
}

func (s *Stub) scoreByKey(content string) int {
	key := content
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		key = content[:i]
	}
	if score, ok := s.FileScores[key]; ok {
		return score
	}
	return s.DefaultScore
}

func (s *Stub) ScoreFile(ctx context.Context, content, query string) (int, string, error) {
	s.record("score_file")
	if s.Err != nil {
		return 0, "", s.Err
	}
	return s.scoreByKey(content), "stub", nil
}

func (s *Stub) ScoreMessage(ctx context.Context, content, query string) (int, string, error) {
	s.record("score_message")
	if s.Err != nil {
		return 0, "", s.Err
	}
	return s.scoreByKey(content), "stub", nil
}

func (s *Stub) SummarizeMessage(ctx context.Context, content, query string, maxTokens int) (string, error) {
	s.record("summarize_message")
	if s.Err != nil {
		return "", s.Err
	}
	if s.Summary != "" {
		return s.Summary, nil
	}
	return "summary", nil
}

func (s *Stub) ExtractSnippets(ctx context.Context, numberedContent, query string, partial bool) ([]types.LineRange, error) {
	s.record("extract_snippets")
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Snippets, nil
}

func (s *Stub) SummarizeGroup(ctx context.Context, msgs []types.Message) (string, error) {
	s.record("summarize_group")
	if s.Err != nil {
		return "", s.Err
	}
	if s.Summary != "" {
		return s.Summary, nil
	}
	return "summary", nil
}

func (s *Stub) ExtractSymbols(ctx context.Context, path, code string) (string, error) {
	s.record("extract_symbols")
	if s.Err != nil {
		return "", s.Err
	}
	if s.Symbols != "" {
		return s.Symbols, nil
	}
	return "函数: stub", nil
}

var _ Oracle = (*Stub)(nil)
