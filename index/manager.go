package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Config 配置索引管理器。
type Config struct {
	// BuildWorkers 是索引构建工作协程数的下限；
	// 实际并发为 max(GOMAXPROCS/2, BuildWorkers)。
	BuildWorkers int `yaml:"build_workers" json:"build_workers"`

	// FilterBatchSize 是单次 Oracle 查询携带的索引条目数上限。
	FilterBatchSize int `yaml:"filter_batch_size" json:"filter_batch_size"`

	// MaxTargetFiles 限制 Level-1 查询返回的候选数，0 表示不限制。
	MaxTargetFiles int `yaml:"max_target_files" json:"max_target_files"`

	// SymbolBudget 是符号提取单次可处理的内容 token 上限；
	// 超长文件先按行切块再逐块提取。
	SymbolBudget int `yaml:"symbol_budget" json:"symbol_budget"`
}

// DefaultConfig 返回合理的默认值。
func DefaultConfig() Config {
	return Config{
		BuildWorkers:    2,
		FilterBatchSize: 30,
		MaxTargetFiles:  0,
		SymbolBudget:    51200,
	}
}

// 文档类文件不进入符号索引。
var skipExtensions = map[string]bool{
	".md": true, ".html": true, ".txt": true, ".doc": true, ".pdf": true,
}

// Manager 构建并查询符号/变更索引。
type Manager struct {
	config  Config
	store   Store
	oracle  oracle.Oracle
	counter tokenizer.Counter
	logger  *zap.Logger
}

// NewManager 创建索引管理器。
func NewManager(config Config, store Store, o oracle.Oracle, counter tokenizer.Counter, logger *zap.Logger) *Manager {
	return &Manager{
		config:  config,
		store:   store,
		oracle:  o,
		counter: counter,
		logger:  logger.With(zap.String("component", "index")),
	}
}

func (m *Manager) workers() int {
	n := runtime.GOMAXPROCS(0) / 2
	if n < m.config.BuildWorkers {
		n = m.config.BuildWorkers
	}
	if n < 1 {
		n = 1
	}
	return n
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Build 构建或更新索引：仅对内容哈希变化的文件重新提取符号，
// 已消失文件的条目被清除。单个文件的 Oracle 失败只记录、不中断；
// 分词器不可用没有降级余地，整次构建失败。
func (m *Manager) Build(ctx context.Context, files []types.SourceFile) (map[string]types.IndexEntry, error) {
	entries, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	// 清理已不存在的文件索引。
	known := make(map[string]types.SourceFile, len(files))
	for _, f := range files {
		known[f.Path] = f
	}
	for path := range entries {
		if _, ok := known[path]; !ok {
			delete(entries, path)
		}
	}

	// 找出需要重建的文件。
	var stale []types.SourceFile
	for _, f := range files {
		if skipExtensions[strings.ToLower(filepath.Ext(f.Path))] {
			continue
		}
		if strings.TrimSpace(f.Content) == "" {
			continue
		}
		if entry, ok := entries[f.Path]; !ok || entry.SHA256 != contentHash(f.Content) {
			stale = append(stale, f)
		}
	}

	m.logger.Info("index build started",
		zap.Int("total_files", len(files)),
		zap.Int("stale_files", len(stale)))

	if len(stale) == 0 {
		return entries, nil
	}

	// 固定宽度的工作池，每个任务写入自己的结果槽，join 后统一汇总。
	results := make([]*types.IndexEntry, len(stale))
	buildErrs := make([]error, len(stale))
	sem := make(chan struct{}, m.workers())
	var wg sync.WaitGroup

	for i, f := range stale {
		wg.Add(1)
		go func(idx int, file types.SourceFile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			entry, err := m.buildEntry(ctx, file)
			if err != nil {
				buildErrs[idx] = err
				m.logger.Warn("index entry build failed",
					zap.String("path", file.Path),
					zap.Error(err))
				return
			}
			results[idx] = entry
		}(i, f)
	}
	wg.Wait()

	for _, err := range buildErrs {
		if err != nil && types.IsFatal(err) {
			return nil, err
		}
	}

	updated := 0
	for _, entry := range results {
		if entry != nil {
			entries[entry.Path] = *entry
			updated++
		}
	}

	if updated > 0 {
		if err := m.store.Save(entries); err != nil {
			return nil, err
		}
	}

	m.logger.Info("index build finished",
		zap.Int("updated", updated),
		zap.Int("entries", len(entries)))
	return entries, nil
}

// Entries 返回持久化存储中的当前索引条目，不触发重建。
func (m *Manager) Entries() (map[string]types.IndexEntry, error) {
	return m.store.Load()
}

// buildEntry 为单个文件提取符号信息并生成索引条目。
func (m *Manager) buildEntry(ctx context.Context, file types.SourceFile) (*types.IndexEntry, error) {
	tokens, err := m.counter.Count(file.Content)
	if err != nil {
		return nil, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
	}

	var symbols string
	if tokens > m.config.SymbolBudget {
		m.logger.Warn("source too long for single extraction, splitting",
			zap.String("path", file.Path),
			zap.Int("tokens", tokens))
		parts := make([]string, 0, 4)
		for _, chunk := range splitIntoChunks(file.Content, m.config.SymbolBudget) {
			part, err := m.oracle.ExtractSymbols(ctx, file.Path, chunk)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		}
		symbols = strings.Join(parts, "\n")
	} else {
		symbols, err = m.oracle.ExtractSymbols(ctx, file.Path, file.Content)
		if err != nil {
			return nil, err
		}
	}

	return &types.IndexEntry{
		Path:         file.Path,
		Symbols:      symbols,
		LastModified: float64(time.Now().Unix()),
		SHA256:       contentHash(file.Content),
	}, nil
}

// splitIntoChunks 按行将大文本分割为不超过 budget 个字符估算单位的块。
func splitIntoChunks(text string, budget int) []string {
	lines := strings.Split(text, "\n")
	var chunks []string
	var current []string
	length := 0

	for _, line := range lines {
		if length+len(line)+1 <= budget {
			current = append(current, line)
			length += len(line) + 1
		} else {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = []string{line}
			length = len(line) + 1
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// digestChunks 将索引条目渲染为 "##path\nsymbols\n\n" 形式的摘要分块。
func (m *Manager) digestChunks(entries map[string]types.IndexEntry) []string {
	batch := m.config.FilterBatchSize
	if batch < 1 {
		batch = 1
	}

	var chunks []string
	var current []string
	for _, entry := range entries {
		current = append(current, fmt.Sprintf("##%s\n%s\n\n", entry.Path, entry.Symbols))
		if len(current) >= batch {
			chunks = append(chunks, strings.Join(current, ""))
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// queryChunks 并发地对每个摘要分块执行一次 Oracle 查询并汇总候选。
// fail-closed：任一分块失败即整体返回空结果。
func (m *Manager) queryChunks(ctx context.Context, chunks []string, call func(ctx context.Context, chunk string) ([]types.Candidate, error)) []types.Candidate {
	results := make([][]types.Candidate, len(chunks))
	errs := make([]error, len(chunks))
	sem := make(chan struct{}, m.workers())
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		wg.Add(1)
		go func(idx int, c string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx], errs[idx] = call(ctx, c)
		}(i, chunk)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			m.logger.Warn("index query degraded to empty result", zap.Error(err))
			return nil
		}
	}

	// 按路径去重，保留先出现的候选。
	seen := make(map[string]bool)
	var all []types.Candidate
	for _, batch := range results {
		for _, c := range batch {
			if seen[c.Path] {
				continue
			}
			seen[c.Path] = true
			all = append(all, c)
		}
	}
	return all
}

// QueryByKeyword 根据自由文本查询返回相关文件候选（Level-1）。
// Oracle 出错时返回空结果，不重试。
func (m *Manager) QueryByKeyword(ctx context.Context, entries map[string]types.IndexEntry, query string) []types.Candidate {
	chunks := m.digestChunks(entries)
	if len(chunks) == 0 {
		return nil
	}

	all := m.queryChunks(ctx, chunks, func(ctx context.Context, chunk string) ([]types.Candidate, error) {
		return m.oracle.RankByQuery(ctx, chunk, query)
	})

	if m.config.MaxTargetFiles > 0 && len(all) > m.config.MaxTargetFiles {
		all = all[:m.config.MaxTargetFiles]
	}
	m.logger.Info("level-1 query finished",
		zap.Int("chunks", len(chunks)),
		zap.Int("candidates", len(all)))
	return all
}

// Expand 根据已选文件返回其引用/被引用的相关文件候选（Level-2）。
// Oracle 出错时返回空结果，不重试。
func (m *Manager) Expand(ctx context.Context, entries map[string]types.IndexEntry, paths []string) []types.Candidate {
	if len(paths) == 0 {
		return nil
	}
	chunks := m.digestChunks(entries)
	if len(chunks) == 0 {
		return nil
	}

	all := m.queryChunks(ctx, chunks, func(ctx context.Context, chunk string) ([]types.Candidate, error) {
		return m.oracle.Expand(ctx, chunk, paths)
	})

	m.logger.Info("level-2 expansion finished",
		zap.Int("chunks", len(chunks)),
		zap.Int("candidates", len(all)))
	return all
}
