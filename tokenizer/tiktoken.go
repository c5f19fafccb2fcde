package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// TiktokenCounter 为 OpenAI 系模型封装 tiktoken 精确计数。
type TiktokenCounter struct {
	model    string
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

// 模型编码表，将模型名称映射到其 tiktoken 编码。
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
	"deepseek-chat": "cl100k_base",
}

// NewTiktokenCounter 为给定模型创建以 tiktoken 为底的计数器。
func NewTiktokenCounter(model string) *TiktokenCounter {
	encoding, ok := modelEncodings[model]
	if !ok {
		// 尝试前缀匹配。
		for prefix, e := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				encoding = e
				ok = true
				break
			}
		}
	}
	if !ok {
		// 默认为 cl100k_base。
		encoding = "cl100k_base"
	}

	return &TiktokenCounter{model: model, encoding: encoding}
}

// init lazily 初始化 tiktoken 编码（首次使用时可能下载数据）。
func (c *TiktokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = types.NewError(types.ErrTokenizerError,
				fmt.Sprintf("init tiktoken encoding %s", c.encoding)).WithCause(err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

func (c *TiktokenCounter) Count(text string) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}

func (c *TiktokenCounter) CountMessages(msgs []types.Message) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range msgs {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		total += len(c.enc.Encode(msg.Content, nil, nil))
		total += len(c.enc.Encode(string(msg.Role), nil, nil))
		for _, tc := range msg.ToolCalls {
			total += len(c.enc.Encode(tc.Name, nil, nil))
			total += len(c.enc.Encode(string(tc.Arguments), nil, nil))
		}
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (c *TiktokenCounter) Name() string {
	return fmt.Sprintf("tiktoken[%s]", c.encoding)
}

// RegisterOpenAICounters 登记所有已知 OpenAI 系模型的计数器。
func RegisterOpenAICounters() {
	for model := range modelEncodings {
		RegisterCounter(model, NewTiktokenCounter(model))
	}
}
