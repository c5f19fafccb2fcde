package oracle

import (
	"context"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// ChatRequest 是发往模型提供方的最小请求。网络传输由外部协作方实现，
// 本包只消费 Completion 一个能力。
type ChatRequest struct {
	TraceID     string          `json:"trace_id"`
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
}

// ChatUsage 统计一次请求消耗的 token。
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse 是模型的完整响应。
type ChatResponse struct {
	Content string    `json:"content"`
	Model   string    `json:"model,omitempty"`
	Usage   ChatUsage `json:"usage,omitempty"`
}

// Completer 发起同步聊天请求，返回完整响应。
type Completer interface {
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// CompleterFunc 将普通函数适配为 Completer。
type CompleterFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

func (f CompleterFunc) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	return f(ctx, req)
}
