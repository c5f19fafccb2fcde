package tokenizer

import (
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Estimator is a character-count-based token estimator. It distinguishes CJK
// and ASCII characters for better accuracy compared to a naive len/4 approach.
type Estimator struct{}

// NewEstimator creates a generic estimator.
func NewEstimator() *Estimator {
	return &Estimator{}
}

func (e *Estimator) Count(text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	cjkCount, otherCount := 0, 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		} else {
			otherCount++
		}
	}

	// CJK characters ~1.5 chars/token, ASCII ~4 chars/token.
	estimated := int(float64(cjkCount)/1.5 + float64(otherCount)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *Estimator) CountMessages(msgs []types.Message) (int, error) {
	total := 0
	for _, msg := range msgs {
		tokens, err := e.Count(msg.Content)
		if err != nil {
			return 0, err
		}
		// Each message has ~4 tokens of overhead (role markers, separators).
		total += tokens + 4
		for _, tc := range msg.ToolCalls {
			nameTokens, _ := e.Count(tc.Name)
			total += nameTokens + len(tc.Arguments)/4
		}
	}
	// Conversation-end overhead.
	total += 3
	return total, nil
}

func (e *Estimator) Name() string {
	return "estimator"
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}
