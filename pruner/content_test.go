package pruner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

func newTestContentPruner(cfg ContentConfig, o oracle.Oracle) *ContentPruner {
	return NewContentPruner(cfg, o, tokenizer.NewEstimator(), zap.NewNop())
}

// genSource 生成 n 行、首行可作打分键的文件内容。
func genSource(marker string, n int) string {
	lines := make([]string, 0, n)
	lines = append(lines, "// "+marker)
	for i := 1; i < n; i++ {
		lines = append(lines, fmt.Sprintf("line %d of %s with some padding text", i, marker))
	}
	return strings.Join(lines, "\n")
}

func contentQuery() []types.Message {
	return []types.Message{
		types.NewSystemMessage("system"),
		types.NewUserMessage("how does the parser recover from errors"),
	}
}

func TestContentPruner_WithinBudgetUnchanged(t *testing.T) {
	t.Parallel()

	cfg := DefaultContentConfig()
	p := newTestContentPruner(cfg, &oracle.Stub{})

	files := []types.SourceFile{{Path: "a.go", Content: "package a\n"}}
	out, err := p.PruneFiles(context.Background(), files, contentQuery(), StrategyDelete)
	require.NoError(t, err)

	require.Len(t, out, 1)
	assert.Equal(t, "a.go", out[0].Path)
	assert.Positive(t, out[0].Tokens)
}

func TestContentPruner_DeleteKeepsPrefix(t *testing.T) {
	t.Parallel()

	cfg := DefaultContentConfig()
	cfg.MaxTokens = 900
	p := newTestContentPruner(cfg, &oracle.Stub{})

	files := []types.SourceFile{
		{Path: "a.go", Content: genSource("alpha", 40)},
		{Path: "b.go", Content: genSource("beta", 40)},
		{Path: "c.go", Content: genSource("gamma", 40)},
	}
	out, err := p.PruneFiles(context.Background(), files, contentQuery(), StrategyDelete)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "a.go", out[0].Path)
	assert.Equal(t, "b.go", out[1].Path)
}

func TestContentPruner_ScoreKeepsHighestScoring(t *testing.T) {
	t.Parallel()

	cfg := DefaultContentConfig()
	cfg.MaxTokens = 900
	stub := &oracle.Stub{
		DefaultScore: 2,
		FileScores: map[string]int{
			"// gamma": 9,
			"// beta":  6,
		},
	}
	p := newTestContentPruner(cfg, stub)

	files := []types.SourceFile{
		{Path: "a.go", Content: genSource("alpha", 40)},
		{Path: "b.go", Content: genSource("beta", 40)},
		{Path: "c.go", Content: genSource("gamma", 40)},
	}
	out, err := p.PruneFiles(context.Background(), files, contentQuery(), StrategyScore)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "c.go", out[0].Path)
	assert.Equal(t, "b.go", out[1].Path)
}

func TestContentPruner_ScoreSkipsFailingFiles(t *testing.T) {
	t.Parallel()

	cfg := DefaultContentConfig()
	cfg.MaxTokens = 900
	stub := &failScoreOracle{
		Stub:       oracle.Stub{DefaultScore: 8},
		failPrefix: "// beta",
	}
	p := newTestContentPruner(cfg, stub)

	files := []types.SourceFile{
		{Path: "a.go", Content: genSource("alpha", 40)},
		{Path: "b.go", Content: genSource("beta", 40)},
		{Path: "c.go", Content: genSource("gamma", 40)},
	}
	out, err := p.PruneFiles(context.Background(), files, contentQuery(), StrategyScore)
	require.NoError(t, err)

	paths := make([]string, 0, len(out))
	for _, f := range out {
		paths = append(paths, f.Path)
	}
	assert.NotContains(t, paths, "b.go")
	assert.Contains(t, paths, "a.go")
	assert.Contains(t, paths, "c.go")
}

// failScoreOracle makes ScoreFile fail for contents starting with failPrefix.
type failScoreOracle struct {
	oracle.Stub
	failPrefix string
}

func (f *failScoreOracle) ScoreFile(ctx context.Context, content, query string) (int, string, error) {
	if strings.HasPrefix(content, f.failPrefix) {
		return 0, "", errors.New("timeout")
	}
	return f.Stub.ScoreFile(ctx, content, query)
}

func TestContentPruner_ExtractKeepsSmallFilesWhole(t *testing.T) {
	t.Parallel()

	cfg := DefaultContentConfig()
	cfg.MaxTokens = 700
	stub := &oracle.Stub{
		Snippets: []types.LineRange{{StartLine: 2, EndLine: 4}},
	}
	p := newTestContentPruner(cfg, stub)

	small := genSource("alpha", 10)
	big := genSource("beta", 60)
	files := []types.SourceFile{
		{Path: "small.go", Content: small},
		{Path: "big.go", Content: big},
	}
	out, err := p.PruneFiles(context.Background(), files, contentQuery(), StrategyExtract)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, small, out[0].Content)
	assert.True(t, strings.HasPrefix(out[1].Content, "Snippets:\n"))
	assert.Contains(t, out[1].Content, "# Lines 2-4")
	assert.Less(t, out[1].Tokens, 100)
}

func TestContentPruner_PruneTextOversized(t *testing.T) {
	t.Parallel()

	cfg := DefaultContentConfig()
	stub := &oracle.Stub{
		Snippets: []types.LineRange{{StartLine: 10, EndLine: 20}},
	}
	p := newTestContentPruner(cfg, stub)

	content := genSource("recover", 200)
	limit := 300

	out, err := p.PruneText(context.Background(), content, "how does recovery work", limit)
	require.NoError(t, err)

	assert.NotEmpty(t, out)
	assert.Less(t, len(out), len(content))
	n, cerr := tokenizer.NewEstimator().Count(out)
	require.NoError(t, cerr)
	assert.LessOrEqual(t, n, limit)
	assert.Contains(t, out, "# Lines 10-20")
}

func TestContentPruner_PruneTextNoSnippets(t *testing.T) {
	t.Parallel()

	stub := &oracle.Stub{} // no snippets configured
	p := newTestContentPruner(DefaultContentConfig(), stub)

	_, err := p.PruneText(context.Background(), genSource("noise", 200), "unrelated question", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrContextOverflow, types.CodeOf(err))
}

func TestMergeRanges(t *testing.T) {
	t.Parallel()

	merged := mergeRanges([]types.LineRange{
		{StartLine: 30, EndLine: 40},
		{StartLine: 1, EndLine: 5},
		{StartLine: 6, EndLine: 10}, // 1-line gap merges
		{StartLine: 13, EndLine: 20},
	})
	assert.Equal(t, []types.LineRange{
		{StartLine: 1, EndLine: 10},
		{StartLine: 13, EndLine: 20},
		{StartLine: 30, EndLine: 40},
	}, merged)

	assert.Nil(t, mergeRanges(nil))
}

func TestSlideWindows(t *testing.T) {
	t.Parallel()

	var lines []string
	for i := 1; i <= 25; i++ {
		lines = append(lines, fmt.Sprintf("line%d", i))
	}
	windows := slideWindows(strings.Join(lines, "\n"), 10, 3)
	require.NotEmpty(t, windows)

	assert.Equal(t, 1, windows[0].start)
	assert.Equal(t, 10, windows[0].end)
	assert.True(t, strings.HasPrefix(windows[0].numbered, "1 line1\n"))

	// later windows carry absolute line numbers and overlap the previous one
	second := windows[1]
	assert.Equal(t, 5, second.start)
	assert.True(t, strings.HasPrefix(second.numbered, "5 line5\n"))
	assert.Equal(t, 25, windows[len(windows)-1].end)
}
