package tokenizer

import (
	"sync"

	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Counter 是统一的 token 计数接口。
type Counter interface {
	// Count 返回给定文本的 token 数。
	Count(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(msgs []types.Message) (int, error)

	// Name 返回计数器的名称。
	Name() string
}

// 全局计数器注册表。
var (
	counters   = make(map[string]Counter)
	countersMu sync.RWMutex
)

// RegisterCounter 为给定的模型名称注册计数器。
func RegisterCounter(model string, c Counter) {
	countersMu.Lock()
	defer countersMu.Unlock()
	counters[model] = c
}

// GetCounter 返回为给定模型注册的计数器，
// 也尝试前缀匹配（如 "gpt-4o" 匹配 "gpt-4o-mini"）。
func GetCounter(model string) (Counter, error) {
	countersMu.RLock()
	defer countersMu.RUnlock()

	if c, ok := counters[model]; ok {
		return c, nil
	}

	for prefix, c := range counters {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return c, nil
		}
	}

	return nil, types.NewError(types.ErrTokenizerError, "no counter registered for model: "+model)
}

// GetCounterOrEstimator 返回该模型的注册计数器，
// 如果没有登记，则回退到通用估算器。
func GetCounterOrEstimator(model string) Counter {
	c, err := GetCounter(model)
	if err != nil {
		return NewEstimator()
	}
	return c
}
