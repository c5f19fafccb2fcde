package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// HTTPCompleterConfig 配置 OpenAI 兼容的 HTTP Completer。
type HTTPCompleterConfig struct {
	// APIKey 鉴权密钥，以 Bearer 方式携带。
	APIKey string `yaml:"api_key" json:"api_key"`

	// BaseURL 服务基地址，例如 https://api.deepseek.com。
	BaseURL string `yaml:"base_url" json:"base_url"`

	// EndpointPath 聊天补全端点，默认 /v1/chat/completions。
	EndpointPath string `yaml:"endpoint_path" json:"endpoint_path"`

	// Timeout 是单次请求超时，默认 120s（打分类调用输出短但排队可能久）。
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// HTTPCompleter 通过任意 OpenAI 兼容端点实现 Completer。
type HTTPCompleter struct {
	config HTTPCompleterConfig
	client *http.Client
}

// NewHTTPCompleter 创建 HTTP Completer。
func NewHTTPCompleter(config HTTPCompleterConfig) *HTTPCompleter {
	if config.EndpointPath == "" {
		config.EndpointPath = "/v1/chat/completions"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	return &HTTPCompleter{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// 与 OpenAI 兼容端点交换的线格式。
type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Completion 发起一次非流式补全。4xx 不可重试，5xx 与网络错误可重试。
func (c *HTTPCompleter) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body := openAIRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "marshal completion request").WithCause(err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + c.config.EndpointPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build completion request").WithCause(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.TraceID != "" {
		httpReq.Header.Set("X-Trace-ID", req.TraceID)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrOracleError, "completion request failed").
			WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		oerr := types.NewError(types.ErrOracleError,
			fmt.Sprintf("completion failed: status=%d msg=%s", resp.StatusCode, msg))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			oerr = oerr.WithRetryable(true)
		}
		return nil, oerr
	}

	var decoded openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, types.NewError(types.ErrOracleBadReply, "decode completion response").WithCause(err)
	}
	if decoded.Error != nil {
		return nil, types.NewError(types.ErrOracleError, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, types.NewError(types.ErrOracleBadReply, "completion response has no choices")
	}

	return &ChatResponse{
		Content: decoded.Choices[0].Message.Content,
		Model:   decoded.Model,
		Usage: ChatUsage{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
		},
	}, nil
}

// readErrorMessage 尽力从错误响应体中取出可读信息。
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return "unreadable body"
	}
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &wrapped) == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(data))
}

var _ Completer = (*HTTPCompleter)(nil)
