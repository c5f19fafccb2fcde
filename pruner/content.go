package pruner

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// ContentConfig 配置文件内容裁剪。
type ContentConfig struct {
	// MaxTokens 是文件列表的 token 预算。
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// WindowSize / WindowOverlap 控制超大文件的滑动窗口分割（按行）。
	WindowSize    int `yaml:"window_size" json:"window_size"`
	WindowOverlap int `yaml:"window_overlap" json:"window_overlap"`

	// ScoreWorkers 是 score 策略并行打分协程数的下限。
	ScoreWorkers int `yaml:"score_workers" json:"score_workers"`
}

// DefaultContentConfig 返回合理的默认值。
func DefaultContentConfig() ContentConfig {
	return ContentConfig{
		MaxTokens:     32768,
		WindowSize:    100,
		WindowOverlap: 20,
		ScoreWorkers:  2,
	}
}

// ContentPruner 无状态地将文件列表或单段超长内容裁剪进 token 预算。
type ContentPruner struct {
	config  ContentConfig
	oracle  oracle.Oracle
	counter tokenizer.Counter
	logger  *zap.Logger
}

// NewContentPruner 创建内容裁剪器。
func NewContentPruner(config ContentConfig, o oracle.Oracle, counter tokenizer.Counter, logger *zap.Logger) *ContentPruner {
	return &ContentPruner{
		config:  config,
		oracle:  o,
		counter: counter,
		logger:  logger.With(zap.String("component", "content_pruner")),
	}
}

// PruneFiles 将文件列表裁剪到预算内。convo 提供当前任务意图（取最后一条
// 用户消息），供 score/extract 策略使用。已在预算内时原样返回。
func (p *ContentPruner) PruneFiles(ctx context.Context, files []types.SourceFile, convo []types.Message, strategy Strategy) ([]types.SourceFile, error) {
	sources, total, err := p.countFiles(files)
	if err != nil {
		return nil, err
	}
	if total <= p.config.MaxTokens {
		return sources, nil
	}

	query := activeQuery(convo)
	p.logger.Info("content prune started",
		zap.String("strategy", string(strategy)),
		zap.Int("files", len(sources)),
		zap.Int("total_tokens", total),
		zap.Int("max_tokens", p.config.MaxTokens))

	switch strategy {
	case StrategyDelete:
		return p.deleteOverflow(sources), nil
	case StrategyScore:
		return p.scoreAndFilter(ctx, sources, query), nil
	case StrategyExtract:
		return p.extractSnippets(ctx, sources, query)
	default:
		return nil, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown content prune strategy %q", strategy))
	}
}

// PruneText 将单段超长内容压缩到 limit 个 token 以内，用 extract 策略
// 抽取相关行区间。内容本就达标时原样返回。
func (p *ContentPruner) PruneText(ctx context.Context, content, query string, limit int) (string, error) {
	total, err := p.counter.Count(content)
	if err != nil {
		return "", types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
	}
	if total <= limit {
		return content, nil
	}

	ranges, err := p.collectRanges(ctx, content, total, query, limit)
	if err != nil {
		return "", err
	}
	merged := mergeRanges(ranges)
	if len(merged) == 0 {
		return "", types.NewError(types.ErrContextOverflow, "no relevant snippets found in oversized content")
	}
	return renderSnippets(content, merged), nil
}

// countFiles 补齐每个文件的 token 数并返回总量。
func (p *ContentPruner) countFiles(files []types.SourceFile) ([]types.SourceFile, int, error) {
	out := make([]types.SourceFile, len(files))
	total := 0
	for i, f := range files {
		if f.Tokens <= 0 {
			n, err := p.counter.Count(f.Content)
			if err != nil {
				return nil, 0, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
			}
			f.Tokens = n
		}
		total += f.Tokens
		out[i] = f
	}
	return out, total, nil
}

// deleteOverflow 从头保留文件，直到再放一个就超预算为止。
func (p *ContentPruner) deleteOverflow(files []types.SourceFile) []types.SourceFile {
	var selected []types.SourceFile
	total := 0
	for _, f := range files {
		if total+f.Tokens > p.config.MaxTokens {
			break
		}
		selected = append(selected, f)
		total += f.Tokens
	}
	return selected
}

// scoreAndFilter 并行为每个文件打相关性分，按分数从高到低贪心装入预算。
// 打分失败的文件被跳过。
func (p *ContentPruner) scoreAndFilter(ctx context.Context, files []types.SourceFile, query string) []types.SourceFile {
	type scored struct {
		file  types.SourceFile
		score int
		ok    bool
	}
	results := make([]scored, len(files))

	workers := runtime.GOMAXPROCS(0) / 2
	if workers < p.config.ScoreWorkers {
		workers = p.config.ScoreWorkers
	}
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, f := range files {
		wg.Add(1)
		go func(idx int, file types.SourceFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			score, _, err := p.oracle.ScoreFile(ctx, file.Content, query)
			if err != nil {
				p.logger.Warn("file scoring failed, file skipped",
					zap.String("path", file.Path),
					zap.Error(err))
				return
			}
			results[idx] = scored{file: file, score: score, ok: true}
		}(i, f)
	}
	wg.Wait()

	valid := make([]scored, 0, len(results))
	for _, r := range results {
		if r.ok {
			valid = append(valid, r)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].score > valid[j].score })

	var selected []types.SourceFile
	total := 0
	for _, r := range valid {
		if total+r.file.Tokens > p.config.MaxTokens {
			break
		}
		selected = append(selected, r.file)
		total += r.file.Tokens
	}
	return selected
}

// extractSnippets 优先完整保留小文件（阈值为预算的 80%），对放不下的文件
// 抽取相关行区间；抽不到相关片段的文件被跳过。
func (p *ContentPruner) extractSnippets(ctx context.Context, files []types.SourceFile, query string) ([]types.SourceFile, error) {
	fullFileBudget := p.config.MaxTokens * 8 / 10
	var selected []types.SourceFile
	total := 0

	for _, f := range files {
		if total+f.Tokens <= fullFileBudget {
			selected = append(selected, f)
			total += f.Tokens
			continue
		}

		ranges, err := p.collectRanges(ctx, f.Content, f.Tokens, query, p.config.MaxTokens)
		if err != nil {
			p.logger.Warn("snippet extraction failed, file skipped",
				zap.String("path", f.Path),
				zap.Error(err))
			continue
		}
		merged := mergeRanges(ranges)
		if len(merged) == 0 {
			p.logger.Info("no relevant snippets, file skipped", zap.String("path", f.Path))
			continue
		}

		snippet := renderSnippets(f.Content, merged)
		n, err := p.counter.Count(snippet)
		if err != nil {
			return nil, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
		}
		if total+n > p.config.MaxTokens {
			break
		}
		selected = append(selected, types.SourceFile{
			Path:     f.Path,
			Content:  snippet,
			Tag:      f.Tag,
			Tokens:   n,
			Metadata: f.Metadata,
		})
		total += n
	}
	return selected, nil
}

// collectRanges 对内容执行行区间抽取。超过 limit 的内容先按滑动窗口分割，
// 逐窗口抽取；单个窗口失败只记录、不中断。
func (p *ContentPruner) collectRanges(ctx context.Context, content string, tokens int, query string, limit int) ([]types.LineRange, error) {
	if tokens <= limit {
		return p.oracle.ExtractSnippets(ctx, numberLines(content, 1), query, false)
	}

	windows := slideWindows(content, p.config.WindowSize, p.config.WindowOverlap)
	var all []types.LineRange
	failed := 0
	for _, w := range windows {
		ranges, err := p.oracle.ExtractSnippets(ctx, w.numbered, query, true)
		if err != nil {
			p.logger.Warn("window extraction failed",
				zap.Int("start_line", w.start),
				zap.Int("end_line", w.end),
				zap.Error(err))
			failed++
			continue
		}
		all = append(all, ranges...)
	}
	if failed == len(windows) {
		return nil, types.NewError(types.ErrOracleError, "snippet extraction failed for every window")
	}
	return all, nil
}

// window 是一个带绝对行号的内容窗口。
type window struct {
	start    int
	end      int
	numbered string
}

// slideWindows 按行滑动分割内容，相邻窗口重叠 overlap 行，
// 每行前缀其在原文件中的绝对行号（从 1 开始）。
func slideWindows(content string, size, overlap int) []window {
	lines := strings.Split(content, "\n")
	step := size - overlap
	if step < 1 {
		step = 1
	}

	var out []window
	for start := 0; start < len(lines); start += step {
		end := start + size
		if end > len(lines) {
			end = len(lines)
		}
		actualStart := start - overlap
		if actualStart < 0 {
			actualStart = 0
		}

		var b strings.Builder
		for i := actualStart; i < end; i++ {
			fmt.Fprintf(&b, "%d %s\n", i+1, lines[i])
		}
		out = append(out, window{start: actualStart + 1, end: end, numbered: b.String()})
		if end == len(lines) {
			break
		}
	}
	return out
}

// numberLines 为每行添加从 base 开始的行号前缀。
func numberLines(content string, base int) string {
	lines := strings.Split(content, "\n")
	var b strings.Builder
	for i, line := range lines {
		fmt.Fprintf(&b, "%d %s\n", base+i, line)
	}
	return b.String()
}

// mergeRanges 按起始行排序并合并重叠或仅隔 1 行的区间。
func mergeRanges(ranges []types.LineRange) []types.LineRange {
	if len(ranges) == 0 {
		return nil
	}
	sorted := make([]types.LineRange, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartLine < sorted[j].StartLine })

	merged := []types.LineRange{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if cur.StartLine <= last.EndLine+1 {
			if cur.EndLine > last.EndLine {
				last.EndLine = cur.EndLine
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// renderSnippets 将抽取的行区间渲染为带 "# Lines a-b" 标注的片段内容。
func renderSnippets(content string, ranges []types.LineRange) string {
	lines := strings.Split(content, "\n")
	parts := make([]string, 0, len(ranges)*2)
	for _, r := range ranges {
		start := r.StartLine - 1
		if start < 0 {
			start = 0
		}
		end := r.EndLine
		if end > len(lines) {
			end = len(lines)
		}
		if start >= end {
			continue
		}
		parts = append(parts, fmt.Sprintf("# Lines %d-%d", start+1, end))
		parts = append(parts, lines[start:end]...)
	}
	return "Snippets:\n" + strings.Join(parts, "\n")
}
