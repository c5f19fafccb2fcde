package pruner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

func TestProperty_PrunePreservesPairingAndPins(t *testing.T) {
	strategies := []Strategy{
		StrategyDelete, StrategyScore, StrategyExtract,
		StrategyTruncate, StrategySummarize, StrategyHybrid,
	}

	rapid.Check(t, func(rt *rapid.T) {
		msgs := []types.Message{
			types.NewSystemMessage("You are a coding agent."),
			types.NewUserMessage("work on the parser"),
		}
		units := rapid.IntRange(1, 20).Draw(rt, "units")
		for i := 0; i < units; i++ {
			lines := rapid.IntRange(1, 40).Draw(rt, "lines")
			body := strings.Repeat("a line of tool output or discussion\n", lines)
			if rapid.Bool().Draw(rt, "isToolPair") {
				msgs = append(msgs, toolPair(fmt.Sprintf("call-%d", i), body)...)
			} else {
				msgs = append(msgs, types.NewAssistantMessage(body))
			}
		}

		strategy := rapid.SampledFrom(strategies).Draw(rt, "strategy")
		budget := rapid.IntRange(1, 2000).Draw(rt, "budget")
		stub := &oracle.Stub{
			DefaultScore: rapid.IntRange(0, 10).Draw(rt, "score"),
			Summary:      "早期讨论要点",
		}
		if rapid.Bool().Draw(rt, "oracleDown") {
			stub.Err = errors.New("connection refused")
		}
		p := newTestPruner(stub)

		res, err := p.Prune(context.Background(), msgs, budget, strategy)
		require.NoError(t, err)

		// every surviving tool call keeps its result and vice versa
		assertPairing(t, res.Messages)

		// the system prefix and the first user message are untouchable
		require.NotEmpty(t, res.Messages)
		assert.Equal(t, msgs[0], res.Messages[0])
		assert.Contains(t, res.Messages, msgs[1])

		switch res.State {
		case types.PruneUnchanged:
			assert.Equal(t, res.OriginalTokens, res.FinalTokens)
		case types.PruneReduced:
			assert.LessOrEqual(t, res.FinalTokens, budget)
			assert.Positive(t, res.DroppedUnits)
		case types.PruneExhausted:
			assert.Greater(t, res.FinalTokens, budget)
		default:
			t.Fatalf("unknown prune state %q", res.State)
		}
	})
}
