package types

// PruneState describes how a pruning run ended.
type PruneState string

const (
	// PruneUnchanged means the input already fit the budget.
	PruneUnchanged PruneState = "unchanged"

	// PruneReduced means pruning brought the input under the budget.
	PruneReduced PruneState = "reduced"

	// PruneExhausted means every non-pinned unit was reduced and the result
	// still exceeds the budget. The overshoot is reported, never hidden.
	PruneExhausted PruneState = "prune-exhausted"
)

// PruneResult is the outcome of one conversation pruning call. It is
// ephemeral: nothing about a pruning decision survives the call.
type PruneResult struct {
	Messages       []Message  `json:"messages"`
	OriginalTokens int        `json:"original_tokens"`
	FinalTokens    int        `json:"final_tokens"`
	DroppedUnits   int        `json:"dropped_units"`
	State          PruneState `json:"state"`
}

// Exhausted reports whether pruning ran out of removable units before
// reaching the budget.
func (r *PruneResult) Exhausted() bool {
	return r.State == PruneExhausted
}

// TokensSaved returns how many tokens pruning removed.
func (r *PruneResult) TokensSaved() int {
	return r.OriginalTokens - r.FinalTokens
}

// CompressionRatio returns the saved fraction in [0,1]. Zero when the
// original conversation was empty.
func (r *PruneResult) CompressionRatio() float64 {
	if r.OriginalTokens == 0 {
		return 0
	}
	return 1 - float64(r.FinalTokens)/float64(r.OriginalTokens)
}
