package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

func newTestManager(stub *oracle.Stub) *Manager {
	return NewManager(DefaultConfig(), NewMemoryStore(), stub, tokenizer.NewEstimator(), zap.NewNop())
}

func testFiles() []types.SourceFile {
	return []types.SourceFile{
		{Path: "selector/selector.go", Content: "package selector\n\nfunc Select() {}\n"},
		{Path: "pruner/pruner.go", Content: "package pruner\n\nfunc Prune() {}\n"},
		{Path: "README.md", Content: "# readme"},
		{Path: "empty.go", Content: "   "},
	}
}

func TestManager_Build_HashGated(t *testing.T) {
	t.Parallel()

	stub := &oracle.Stub{Symbols: "函数: Select"}
	m := newTestManager(stub)
	ctx := context.Background()

	entries, err := m.Build(ctx, testFiles())
	require.NoError(t, err)

	// Doc files and blank files never enter the index.
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, stub.CallCount("extract_symbols"))
	assert.NotEmpty(t, entries["selector/selector.go"].SHA256)

	// Unchanged content: no re-extraction.
	entries, err = m.Build(ctx, testFiles())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, stub.CallCount("extract_symbols"))

	// One changed file: exactly one re-extraction.
	files := testFiles()
	files[0].Content = "package selector\n\nfunc Select(query string) {}\n"
	entries, err = m.Build(ctx, files)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 3, stub.CallCount("extract_symbols"))
}

func TestManager_Build_DropsVanishedFiles(t *testing.T) {
	t.Parallel()

	stub := &oracle.Stub{Symbols: "函数: X"}
	m := newTestManager(stub)
	ctx := context.Background()

	_, err := m.Build(ctx, testFiles())
	require.NoError(t, err)

	entries, err := m.Build(ctx, testFiles()[:1])
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "selector/selector.go")
}

func TestManager_Build_SingleFailureContinues(t *testing.T) {
	t.Parallel()

	flaky := &flakyOracle{Stub: oracle.Stub{Symbols: "变量: a"}, failOn: "pruner/pruner.go"}
	m := NewManager(DefaultConfig(), NewMemoryStore(), flaky, tokenizer.NewEstimator(), zap.NewNop())

	entries, err := m.Build(context.Background(), testFiles())
	require.NoError(t, err)

	// The failing file is skipped, the rest of the batch survives.
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "selector/selector.go")
}

type failingCounter struct{}

func (failingCounter) Count(string) (int, error) { return 0, errors.New("encoding unavailable") }
func (failingCounter) CountMessages([]types.Message) (int, error) {
	return 0, errors.New("encoding unavailable")
}
func (failingCounter) Name() string { return "failing" }

func TestManager_Build_TokenizerFailureIsFatal(t *testing.T) {
	t.Parallel()

	stub := &oracle.Stub{Symbols: "函数: X"}
	m := NewManager(DefaultConfig(), NewMemoryStore(), stub, failingCounter{}, zap.NewNop())

	// An oracle failure skips one file; a tokenizer failure aborts the build.
	_, err := m.Build(context.Background(), testFiles())
	require.Error(t, err)
	assert.Equal(t, types.ErrTokenizerError, types.CodeOf(err))
	assert.True(t, types.IsFatal(err))
}

// flakyOracle fails symbol extraction for one specific path.
type flakyOracle struct {
	oracle.Stub
	failOn string
}

func (f *flakyOracle) ExtractSymbols(ctx context.Context, path, code string) (string, error) {
	if path == f.failOn {
		return "", errors.New("model overloaded")
	}
	return f.Stub.ExtractSymbols(ctx, path, code)
}

func TestManager_QueryByKeyword(t *testing.T) {
	t.Parallel()

	stub := &oracle.Stub{
		Symbols: "函数: Select",
		Ranked: []types.Candidate{
			{Path: "selector/selector.go", Reason: "直接相关"},
			{Path: "selector/selector.go", Reason: "重复候选"},
			{Path: "pruner/pruner.go", Reason: "依赖关系"},
		},
	}
	m := newTestManager(stub)
	ctx := context.Background()

	entries, err := m.Build(ctx, testFiles())
	require.NoError(t, err)

	got := m.QueryByKeyword(ctx, entries, "选择相关文件")
	require.Len(t, got, 2)
	assert.Equal(t, "selector/selector.go", got[0].Path)
	assert.Equal(t, "直接相关", got[0].Reason)
}

func TestManager_QueryByKeyword_FailsClosed(t *testing.T) {
	t.Parallel()

	entries := map[string]types.IndexEntry{
		"a.go": {Path: "a.go", Symbols: "函数: A"},
	}

	stub := &oracle.Stub{Err: errors.New("oracle unreachable")}
	m := newTestManager(stub)

	got := m.QueryByKeyword(context.Background(), entries, "query")
	assert.Empty(t, got)

	// Exactly one attempt per chunk, no retries.
	assert.Equal(t, 1, stub.CallCount("rank_by_query"))
}

func TestManager_QueryByKeyword_Cap(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxTargetFiles = 1
	stub := &oracle.Stub{
		Ranked: []types.Candidate{
			{Path: "a.go", Reason: "r1"},
			{Path: "b.go", Reason: "r2"},
		},
	}
	m := NewManager(cfg, NewMemoryStore(), stub, tokenizer.NewEstimator(), zap.NewNop())

	entries := map[string]types.IndexEntry{"a.go": {Path: "a.go", Symbols: "s"}}
	got := m.QueryByKeyword(context.Background(), entries, "q")
	assert.Len(t, got, 1)
}

func TestManager_Expand(t *testing.T) {
	t.Parallel()

	stub := &oracle.Stub{
		Expanded: []types.Candidate{{Path: "types/source.go", Reason: "被引用"}},
	}
	m := newTestManager(stub)

	entries := map[string]types.IndexEntry{"a.go": {Path: "a.go", Symbols: "s"}}

	got := m.Expand(context.Background(), entries, []string{"a.go"})
	require.Len(t, got, 1)
	assert.Equal(t, "types/source.go", got[0].Path)

	// Empty input short-circuits without oracle calls.
	assert.Empty(t, m.Expand(context.Background(), entries, nil))
	assert.Equal(t, 1, stub.CallCount("expand"))
}

func TestSplitIntoChunks(t *testing.T) {
	t.Parallel()

	text := "line one\nline two\nline three"
	chunks := splitIntoChunks(text, 12)
	require.Len(t, chunks, 3)
	assert.Equal(t, "line one", chunks[0])

	whole := splitIntoChunks(text, 1000)
	require.Len(t, whole, 1)
	assert.Equal(t, text, whole[0])
}
