package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

func newTestClient(reply string, err error) (*Client, *int) {
	calls := 0
	completer := CompleterFunc(func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		calls++
		if err != nil {
			return nil, err
		}
		return &ChatResponse{Content: reply, Model: req.Model}, nil
	})
	cfg := DefaultClientConfig()
	cfg.RequestsPerSecond = 0 // no pacing in tests
	return NewClient(cfg, completer, zap.NewNop(), nil), &calls
}

func TestClient_RankByQuery(t *testing.T) {
	t.Parallel()

	client, calls := newTestClient("```json\n{\"file_list\": [{\"file_path\": \"index/manager.go\", \"reason\": \"符号匹配\"}]}\n```", nil)

	got, err := client.RankByQuery(context.Background(), "##index/manager.go\n函数: Build\n\n", "如何构建索引")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "index/manager.go", got[0].Path)
	assert.Equal(t, 1, *calls)
}

func TestClient_ScoreFile(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient("```json\n{\"relevant_score\": 8, \"reason\": \"核心实现\"}\n```", nil)

	score, reason, err := client.ScoreFile(context.Background(), "package index", "构建索引")
	require.NoError(t, err)
	assert.Equal(t, 8, score)
	assert.NotEmpty(t, reason)
}

func TestClient_CompleterFailure(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient("", errors.New("upstream 503"))

	_, err := client.RankByQuery(context.Background(), "digest", "query")
	require.Error(t, err)
	assert.Equal(t, types.ErrOracleError, types.CodeOf(err))

	_, _, err = client.ScoreFile(context.Background(), "content", "query")
	require.Error(t, err)
	assert.Equal(t, types.ErrOracleError, types.CodeOf(err))
}

func TestClient_BadReplyIsNotPartial(t *testing.T) {
	t.Parallel()

	// A garbled reply must yield an error, never a partial result.
	client, _ := newTestClient("抱歉，我无法完成这个任务。", nil)

	got, err := client.Expand(context.Background(), "digest", []string{"a.go"})
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, types.ErrOracleBadReply, types.CodeOf(err))
}

func TestClient_RateLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	cfg := DefaultClientConfig()
	cfg.RequestsPerSecond = 0.001 // effectively blocked after the first burst
	cfg.Burst = 1
	client := NewClient(cfg, CompleterFunc(func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Content: "```json\n{\"file_list\": []}\n```"}, nil
	}), zap.NewNop(), nil)

	ctx := context.Background()
	_, err := client.RankByQuery(ctx, "d", "q")
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = client.RankByQuery(canceled, "d", "q")
	require.Error(t, err)
}
