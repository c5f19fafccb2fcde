package selector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/index"
	"github.com/w4n9H/autocoder-nano-sub001/internal/metrics"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Config 配置筛选流水线。
type Config struct {
	// SkipIndex 跳过索引重建，直接使用存储中的既有索引。
	SkipIndex bool `yaml:"skip_index" json:"skip_index"`

	// SkipFilter 完全跳过相关性过滤与核验，全部文件直接入选。
	SkipFilter bool `yaml:"skip_filter" json:"skip_filter"`

	// SkipVerify 跳过核验阶段，候选集原样进入截断。
	SkipVerify bool `yaml:"skip_verify" json:"skip_verify"`

	// EnableExpansion 在 Level-1 有产出时执行 Level-2 关联扩展。
	EnableExpansion bool `yaml:"enable_expansion" json:"enable_expansion"`

	// PassThreshold 是核验通过分数线（score >= PassThreshold 判 PASS）。
	PassThreshold int `yaml:"pass_threshold" json:"pass_threshold"`

	// MaxFiles 限制最终入选文件数，0 表示不限制。
	MaxFiles int `yaml:"max_files" json:"max_files"`

	// MinWorkers 是核验工作池并发下限；
	// 实际并发为 max(GOMAXPROCS/2, MinWorkers)。
	MinWorkers int `yaml:"min_workers" json:"min_workers"`
}

// DefaultConfig 返回合理的默认值。
func DefaultConfig() Config {
	return Config{
		EnableExpansion: true,
		PassThreshold:   5,
		MaxFiles:        0,
		MinWorkers:      2,
	}
}

// Selection 是一次筛选的完整结果。
type Selection struct {
	// Files 是最终入选的文件路径，按入选顺序排列。
	Files []string

	// Candidates 是最终累积器内容，按路径索引。
	Candidates map[string]types.Candidate

	// Verdicts 按完成顺序记录核验结论；跳过核验时为空。
	Verdicts []types.Verdict

	// Payload 是可直接注入提示词的文件载荷。
	Payload string

	// Tokens 是每个入选文件正文的 token 数。
	Tokens map[string]int

	// PayloadTokens 是整个载荷的 token 数。
	PayloadTokens int
}

// Selector 执行文件相关性筛选流水线。
type Selector struct {
	config   Config
	index    *index.Manager
	verifier *Verifier
	counter  tokenizer.Counter
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// New 创建筛选器。counter 不可用属于致命错误，在 Select 入口即失败。
func New(config Config, idx *index.Manager, o oracle.Oracle, counter tokenizer.Counter, logger *zap.Logger, collector *metrics.Collector) *Selector {
	return &Selector{
		config:   config,
		index:    idx,
		verifier: NewVerifier(o, config.PassThreshold, config.MinWorkers, logger, collector),
		counter:  counter,
		logger:   logger.With(zap.String("component", "selector")),
		metrics:  collector,
	}
}

// Select 执行完整流水线：标签直通、Level-1、Level-2、全量兜底、核验、截断，
// 最后拼装载荷。除核验阶段外全部顺序执行。
func (s *Selector) Select(ctx context.Context, files []types.SourceFile, query string) (*Selection, error) {
	if s.counter == nil {
		return nil, types.NewError(types.ErrTokenizerError, "token counter unavailable")
	}
	if _, err := s.counter.Count(query); err != nil {
		return nil, types.NewError(types.ErrTokenizerError, "token counter unusable").WithCause(err)
	}

	// 路径到正文的映射，重复路径保留先出现者。
	content := make(map[string]string, len(files))
	for _, f := range files {
		if _, ok := content[f.Path]; !ok {
			content[f.Path] = f.Content
		}
	}

	acc := make(map[string]types.Candidate)
	var order []string
	insert := func(c types.Candidate) {
		if c.Path == "" {
			return
		}
		if _, ok := acc[c.Path]; !ok {
			order = append(order, c.Path)
		}
		// 同路径后来者覆盖先来者（分层：直通 < 查询 < 扩展）。
		acc[c.Path] = c
	}

	// 第 1 阶段：带来源标签的文件无条件入选。
	for _, f := range files {
		if f.Tag.Bypass() {
			insert(types.Candidate{Path: f.Path, Reason: fmt.Sprintf("tagged %s source", f.Tag)})
		}
	}

	var verdicts []types.Verdict
	if s.config.SkipFilter {
		// 过滤整体关闭：全部文件直接入选，不做核验。
		for _, f := range files {
			insert(types.Candidate{Path: f.Path, Reason: "relevance filter disabled"})
		}
	} else {
		// 第 2-3 阶段：两级索引过滤。
		level1, level2 := s.runFilters(ctx, files, query, insert)

		// 第 4 阶段：两级过滤均无产出时回退到全部文件，保证调用方不会空手而归。
		if len(level1)+len(level2) == 0 {
			s.logger.Info("no related files found, falling back to whole project",
				zap.Int("files", len(files)))
			for _, f := range files {
				insert(types.Candidate{Path: f.Path, Reason: "no related files found"})
			}
		}

		// 没有正文的候选（通常是 Oracle 幻觉出的路径）无法进入载荷，统一剔除。
		kept := order[:0]
		for _, path := range order {
			if _, ok := content[path]; ok {
				kept = append(kept, path)
				continue
			}
			s.logger.Debug("candidate without content dropped", zap.String("path", path))
			delete(acc, path)
		}
		order = kept

		// 第 5 阶段：核验结果整体替换累积器，FAIL 被剔除，
		// ERROR 保留原候选（单文件核验失败不应使其出局）。
		// 存活者按提交顺序排列：核验并发完成的先后不影响最终结果，
		// 同一输入两次筛选得到同一存活集。
		if !s.config.SkipVerify {
			tasks := make([]verifyTask, 0, len(order))
			for _, path := range order {
				tasks = append(tasks, verifyTask{Path: path, Content: content[path]})
			}
			verdicts = s.verifier.Verify(ctx, tasks, query)

			byPath := make(map[string]types.Verdict, len(verdicts))
			for _, vd := range verdicts {
				if _, ok := byPath[vd.Path]; !ok {
					byPath[vd.Path] = vd
				}
			}

			replaced := make(map[string]types.Candidate, len(byPath))
			replacedOrder := make([]string, 0, len(byPath))
			for _, path := range order {
				vd, ok := byPath[path]
				if !ok || vd.Status == types.VerdictFail {
					continue
				}
				c := types.Candidate{Path: vd.Path, Reason: vd.Reason}
				if vd.Status == types.VerdictPass {
					score := vd.Score
					c.Score = &score
				}
				replaced[path] = c
				replacedOrder = append(replacedOrder, path)
			}
			acc, order = replaced, replacedOrder
		}
	}

	// 第 6 阶段：数量截断，顺序即入选顺序。
	if s.config.MaxFiles > 0 && len(order) > s.config.MaxFiles {
		s.logger.Warn("survivor cap applied",
			zap.Int("survivors", len(order)),
			zap.Int("max_files", s.config.MaxFiles))
		for _, path := range order[s.config.MaxFiles:] {
			delete(acc, path)
		}
		order = order[:s.config.MaxFiles]
	}

	sel := &Selection{
		Files:      order,
		Candidates: acc,
		Verdicts:   verdicts,
		Tokens:     make(map[string]int, len(order)),
	}

	// 载荷拼装：seen 集合保证每个路径只出现一次。
	var b strings.Builder
	seen := make(map[string]bool, len(order))
	for _, path := range order {
		if seen[path] {
			continue
		}
		seen[path] = true
		body, ok := content[path]
		if !ok {
			continue
		}
		n, err := s.counter.Count(body)
		if err != nil {
			return nil, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
		}
		sel.Tokens[path] = n
		fmt.Fprintf(&b, "##File: %s\n%s\n\n", path, body)
	}
	sel.Payload = b.String()

	total, err := s.counter.Count(sel.Payload)
	if err != nil {
		return nil, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
	}
	sel.PayloadTokens = total
	s.metrics.RecordPayloadTokens(total)

	s.logger.Info("file selection finished",
		zap.Int("input_files", len(files)),
		zap.Int("selected", len(sel.Files)),
		zap.Int("payload_tokens", total))
	return sel, nil
}

// runFilters 执行 Level-1 关键词过滤与可选的 Level-2 关联扩展。
// 索引加载失败降级为空候选，由兜底阶段接手。
func (s *Selector) runFilters(ctx context.Context, files []types.SourceFile, query string, insert func(types.Candidate)) (level1, level2 []types.Candidate) {
	var entries map[string]types.IndexEntry
	var err error
	if s.config.SkipIndex {
		entries, err = s.index.Entries()
	} else {
		entries, err = s.index.Build(ctx, files)
	}
	if err != nil {
		s.logger.Warn("index unavailable, filter stages skipped", zap.Error(err))
		return nil, nil
	}
	if len(entries) == 0 {
		return nil, nil
	}

	level1 = s.index.QueryByKeyword(ctx, entries, query)
	for _, c := range level1 {
		insert(c)
	}

	if len(level1) > 0 && s.config.EnableExpansion {
		paths := make([]string, 0, len(level1))
		for _, c := range level1 {
			paths = append(paths, c.Path)
		}
		level2 = s.index.Expand(ctx, entries, paths)
		for _, c := range level2 {
			insert(c)
		}
	}
	return level1, level2
}
