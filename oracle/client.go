package oracle

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/w4n9H/autocoder-nano-sub001/internal/metrics"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// ClientConfig 配置 LLM 裁判客户端。
type ClientConfig struct {
	// Model 发往 Completer 的模型名。
	Model string `yaml:"model" json:"model"`

	// Temperature 打分/排序类调用使用低温以稳定输出。
	Temperature float32 `yaml:"temperature" json:"temperature"`

	// RequestsPerSecond 限制 Oracle 调用频率，防止触发上游配额限制。
	// 零值表示不限速。
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`

	// Burst 限速器的突发容量。
	Burst int `yaml:"burst" json:"burst"`
}

// DefaultClientConfig 返回合理的默认值。
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Model:             "deepseek-chat",
		Temperature:       0.1,
		RequestsPerSecond: 2,
		Burst:             1,
	}
}

// Client 以一次 LLM Completion 实现 Oracle 的每个能力。
// 不做重试：失败原样返回，由调用方按自身语义降级。
type Client struct {
	config    ClientConfig
	completer Completer
	limiter   *rate.Limiter
	logger    *zap.Logger
	metrics   *metrics.Collector
}

// NewClient 创建 LLM 裁判客户端。collector 可为 nil。
func NewClient(config ClientConfig, completer Completer, logger *zap.Logger, collector *metrics.Collector) *Client {
	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return &Client{
		config:    config,
		completer: completer,
		limiter:   limiter,
		logger:    logger.With(zap.String("component", "oracle")),
		metrics:   collector,
	}
}

// complete 发起一次受限速保护的请求并返回原始文本。
func (c *Client) complete(ctx context.Context, op, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			c.metrics.RecordOracleCall(op, "canceled")
			return "", types.NewError(types.ErrOracleError, "rate limit wait interrupted").WithCause(err)
		}
	}

	req := &ChatRequest{
		TraceID:     uuid.NewString(),
		Model:       c.config.Model,
		Messages:    []types.Message{types.NewUserMessage(prompt)},
		Temperature: c.config.Temperature,
	}

	resp, err := c.completer.Completion(ctx, req)
	if err != nil {
		c.metrics.RecordOracleCall(op, "error")
		c.logger.Warn("oracle call failed",
			zap.String("op", op),
			zap.String("trace_id", req.TraceID),
			zap.Error(err))
		return "", types.NewError(types.ErrOracleError, op+" failed").WithCause(err)
	}

	c.metrics.RecordOracleCall(op, "ok")
	c.logger.Debug("oracle call completed",
		zap.String("op", op),
		zap.String("trace_id", req.TraceID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Content, nil
}

func (c *Client) RankByQuery(ctx context.Context, indexDigest, query string) ([]types.Candidate, error) {
	content, err := c.complete(ctx, "rank_by_query", promptTargetFilesByQuery(indexDigest, query))
	if err != nil {
		return nil, err
	}
	return parseFileList(content)
}

func (c *Client) Expand(ctx context.Context, indexDigest string, paths []string) ([]types.Candidate, error) {
	content, err := c.complete(ctx, "expand", promptRelatedFiles(indexDigest, paths))
	if err != nil {
		return nil, err
	}
	return parseFileList(content)
}

func (c *Client) ScoreFile(ctx context.Context, content, query string) (int, string, error) {
	reply, err := c.complete(ctx, "score_file", promptVerifyFileRelevance(content, query))
	if err != nil {
		return 0, "", err
	}
	return parseScore(reply)
}

func (c *Client) ScoreMessage(ctx context.Context, content, query string) (int, string, error) {
	reply, err := c.complete(ctx, "score_message", promptScoreMessage(content, query))
	if err != nil {
		return 0, "", err
	}
	return parseScore(reply)
}

func (c *Client) SummarizeMessage(ctx context.Context, content, query string, maxTokens int) (string, error) {
	reply, err := c.complete(ctx, "summarize_message", promptSummarizeMessage(content, query, maxTokens))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *Client) ExtractSnippets(ctx context.Context, numberedContent, query string, partial bool) ([]types.LineRange, error) {
	reply, err := c.complete(ctx, "extract_snippets", promptExtractSnippets(numberedContent, query, partial))
	if err != nil {
		return nil, err
	}
	return parseLineRanges(reply)
}

func (c *Client) SummarizeGroup(ctx context.Context, msgs []types.Message) (string, error) {
	reply, err := c.complete(ctx, "summarize_group", promptSummarizeGroup(msgs))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func (c *Client) ExtractSymbols(ctx context.Context, path, code string) (string, error) {
	reply, err := c.complete(ctx, "extract_symbols", promptExtractSymbols(path, code))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

var _ Oracle = (*Client)(nil)
