package pruner

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/internal/metrics"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/tokenizer"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// Strategy 选择一次裁剪调用使用的策略。
type Strategy string

const (
	// StrategyDelete 用占位消息替换单元内容，保留消息条数与角色序列。
	StrategyDelete Strategy = "delete"

	// StrategyScore 按相关性打分，低于阈值的单元整体移除。
	StrategyScore Strategy = "score"

	// StrategyExtract 用有界长度的语义摘录替换原始内容。
	StrategyExtract Strategy = "extract"

	// StrategyTruncate 按组丢弃最早的单元。
	StrategyTruncate Strategy = "truncate"

	// StrategySummarize 将最早的一组单元浓缩为一对摘要消息。
	StrategySummarize Strategy = "summarize"

	// StrategyHybrid 按会话长度自动组合上述策略。
	StrategyHybrid Strategy = "hybrid"
)

// Valid 报告策略是否为已知取值。
func (s Strategy) Valid() bool {
	switch s {
	case StrategyDelete, StrategyScore, StrategyExtract,
		StrategyTruncate, StrategySummarize, StrategyHybrid:
		return true
	default:
		return false
	}
}

// omittedMarker 是 delete 策略的占位内容。
const omittedMarker = "This message has been cleared. If you still want to get this information, " +
	"you can call the tool again to retrieve it."

// Config 配置会话裁剪。
type Config struct {
	// ScoreThreshold 是 score 策略的保留分数线，低于该分的单元被移除。
	ScoreThreshold int `yaml:"score_threshold" json:"score_threshold"`

	// ExtractMaxTokens 是 extract 策略生成摘录的 token 上限。
	ExtractMaxTokens int `yaml:"extract_max_tokens" json:"extract_max_tokens"`

	// GroupSize 是 truncate/summarize 策略单次处理的单元数。
	GroupSize int `yaml:"group_size" json:"group_size"`
}

// DefaultConfig 返回合理的默认值。
func DefaultConfig() Config {
	return Config{
		ScoreThreshold:   5,
		ExtractMaxTokens: 512,
		GroupSize:        4,
	}
}

// ConversationPruner 将会话历史裁剪到 token 预算内。
// system 前缀与首条用户消息永不参与裁剪；工具调用与其结果作为单一可裁剪
// 单元，要么同留要么同去。
type ConversationPruner struct {
	config  Config
	oracle  oracle.Oracle
	counter tokenizer.Counter
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewConversationPruner 创建会话裁剪器。
func NewConversationPruner(config Config, o oracle.Oracle, counter tokenizer.Counter, logger *zap.Logger, collector *metrics.Collector) *ConversationPruner {
	if config.GroupSize < 1 {
		config.GroupSize = 1
	}
	return &ConversationPruner{
		config:  config,
		oracle:  o,
		counter: counter,
		logger:  logger.With(zap.String("component", "conversation_pruner")),
		metrics: collector,
	}
}

// Prune 将 msgs 裁剪到不超过 budget 个 token。已在预算内时原样返回；
// 可裁剪单元耗尽仍超预算时如实报告 prune-exhausted。
func (p *ConversationPruner) Prune(ctx context.Context, msgs []types.Message, budget int, strategy Strategy) (*types.PruneResult, error) {
	total, err := p.counter.CountMessages(msgs)
	if err != nil {
		return nil, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
	}

	if total <= budget {
		result := &types.PruneResult{
			Messages:       msgs,
			OriginalTokens: total,
			FinalTokens:    total,
			State:          types.PruneUnchanged,
		}
		p.metrics.RecordPruneRun(string(result.State))
		return result, nil
	}

	if strategy == StrategyHybrid {
		return p.pruneHybrid(ctx, msgs, budget)
	}
	if !strategy.Valid() {
		return nil, types.NewError(types.ErrInvalidRequest, fmt.Sprintf("unknown prune strategy %q", strategy))
	}

	r := newRun(msgs)
	query := activeQuery(msgs)

	var dropped int
	switch strategy {
	case StrategyDelete:
		dropped, err = p.applyDelete(r, budget)
	case StrategyScore:
		dropped, err = p.applyScore(ctx, r, budget, query)
	case StrategyExtract:
		dropped, err = p.applyExtract(ctx, r, budget, query)
	case StrategyTruncate:
		dropped, err = p.applyTruncate(r, budget)
	case StrategySummarize:
		dropped, err = p.applySummarize(ctx, r, budget)
	}
	if err != nil {
		return nil, err
	}

	final, err := p.counter.CountMessages(r.live())
	if err != nil {
		return nil, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
	}

	state := types.PruneReduced
	if final > budget {
		state = types.PruneExhausted
	}
	result := &types.PruneResult{
		Messages:       r.live(),
		OriginalTokens: total,
		FinalTokens:    final,
		DroppedUnits:   dropped,
		State:          state,
	}
	p.metrics.RecordPruneRun(string(state))
	p.logger.Info("conversation prune finished",
		zap.String("strategy", string(strategy)),
		zap.Int("original_tokens", total),
		zap.Int("final_tokens", final),
		zap.Int("dropped_units", dropped),
		zap.String("state", string(state)))
	return result, nil
}

// pruneHybrid 按会话长度组合策略：短会话说明单条消息超大，只有摘要能保住
// 信息；中等长度用占位；更长的会话逐级叠加摘要与截断。
func (p *ConversationPruner) pruneHybrid(ctx context.Context, msgs []types.Message, budget int) (*types.PruneResult, error) {
	n := len(msgs)
	switch {
	case n <= 10:
		short := *p
		short.config.GroupSize = 2
		return short.Prune(ctx, msgs, budget, StrategySummarize)
	case n <= 50:
		return p.Prune(ctx, msgs, budget, StrategyDelete)
	case n <= 100:
		return p.chain(ctx, msgs, budget, StrategySummarize, StrategyDelete)
	default:
		return p.chain(ctx, msgs, budget, StrategyTruncate, StrategySummarize, StrategyDelete)
	}
}

// chain 依次应用多个策略，直到预算满足或策略用尽。
func (p *ConversationPruner) chain(ctx context.Context, msgs []types.Message, budget int, strategies ...Strategy) (*types.PruneResult, error) {
	original := -1
	dropped := 0
	current := msgs
	var last *types.PruneResult

	for _, st := range strategies {
		res, err := p.Prune(ctx, current, budget, st)
		if err != nil {
			return nil, err
		}
		if original < 0 {
			original = res.OriginalTokens
		}
		dropped += res.DroppedUnits
		current = res.Messages
		last = res
		if !res.Exhausted() {
			break
		}
	}

	last.OriginalTokens = original
	last.DroppedUnits = dropped
	return last, nil
}

func (p *ConversationPruner) applyDelete(r *run, budget int) (int, error) {
	dropped := 0
	for _, unit := range r.units() {
		fit, err := p.fits(r, budget)
		if err != nil {
			return dropped, err
		}
		if fit {
			break
		}
		if r.isOmitted(unit) {
			continue
		}
		r.omit(unit)
		dropped++
	}
	return dropped, nil
}

func (p *ConversationPruner) applyScore(ctx context.Context, r *run, budget int, query string) (int, error) {
	dropped := 0
	for _, unit := range r.units() {
		fit, err := p.fits(r, budget)
		if err != nil {
			return dropped, err
		}
		if fit {
			break
		}
		if r.isOmitted(unit) {
			continue
		}

		score, _, serr := p.oracle.ScoreMessage(ctx, r.unitContent(unit), query)
		if serr != nil {
			p.logger.Warn("message scoring failed, degrading to delete", zap.Error(serr))
			r.omit(unit)
			dropped++
			continue
		}
		if score < p.config.ScoreThreshold {
			r.drop(unit)
			dropped++
		}
	}
	return dropped, nil
}

func (p *ConversationPruner) applyExtract(ctx context.Context, r *run, budget int, query string) (int, error) {
	dropped := 0
	for _, unit := range r.units() {
		fit, err := p.fits(r, budget)
		if err != nil {
			return dropped, err
		}
		if fit {
			break
		}
		if r.isOmitted(unit) {
			continue
		}

		excerpt, serr := p.oracle.SummarizeMessage(ctx, r.unitContent(unit), query, p.config.ExtractMaxTokens)
		if serr != nil {
			p.logger.Warn("message extraction failed, degrading to delete", zap.Error(serr))
			r.omit(unit)
			dropped++
			continue
		}
		r.replaceWithExcerpt(unit, excerpt)
		dropped++
	}
	return dropped, nil
}

func (p *ConversationPruner) applyTruncate(r *run, budget int) (int, error) {
	dropped := 0
	units := r.units()
	for start := 0; start < len(units); start += p.config.GroupSize {
		fit, err := p.fits(r, budget)
		if err != nil {
			return dropped, err
		}
		if fit {
			break
		}
		end := start + p.config.GroupSize
		if end > len(units) {
			end = len(units)
		}
		for _, unit := range units[start:end] {
			r.drop(unit)
			dropped++
		}
	}
	return dropped, nil
}

func (p *ConversationPruner) applySummarize(ctx context.Context, r *run, budget int) (int, error) {
	dropped := 0
	units := r.units()
	for start := 0; start < len(units); start += p.config.GroupSize {
		fit, err := p.fits(r, budget)
		if err != nil {
			return dropped, err
		}
		if fit {
			break
		}
		end := start + p.config.GroupSize
		if end > len(units) {
			end = len(units)
		}
		group := units[start:end]

		var groupMsgs []types.Message
		var indices []int
		for _, unit := range group {
			for _, idx := range unit {
				groupMsgs = append(groupMsgs, r.msgs[idx])
				indices = append(indices, idx)
			}
		}

		summary, serr := p.oracle.SummarizeGroup(ctx, groupMsgs)
		if serr != nil {
			p.logger.Warn("group summarization failed, degrading to truncate", zap.Error(serr))
			for _, unit := range group {
				r.drop(unit)
				dropped++
			}
			continue
		}

		// 摘要占据组内前两个槽位，其余消息移除。
		r.msgs[indices[0]] = types.NewUserMessage("历史对话摘要：\n" + summary)
		if len(indices) > 1 {
			r.msgs[indices[1]] = types.NewAssistantMessage("收到")
			for _, idx := range indices[2:] {
				r.removed[idx] = true
			}
		}
		dropped += len(group)
	}
	return dropped, nil
}

func (p *ConversationPruner) fits(r *run, budget int) (bool, error) {
	total, err := p.counter.CountMessages(r.live())
	if err != nil {
		return false, types.NewError(types.ErrTokenizerError, "token counting failed").WithCause(err)
	}
	return total <= budget, nil
}

// activeQuery 取最后一条非占位用户消息作为当前任务意图。
func activeQuery(msgs []types.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser && msgs[i].Content != omittedMarker {
			return msgs[i].Content
		}
	}
	return ""
}

// run 是一次裁剪的工作状态：消息副本、移除标记与固定保留标记。
type run struct {
	msgs    []types.Message
	removed []bool
	pinned  []bool
}

func newRun(msgs []types.Message) *run {
	r := &run{
		msgs:    make([]types.Message, len(msgs)),
		removed: make([]bool, len(msgs)),
		pinned:  make([]bool, len(msgs)),
	}
	copy(r.msgs, msgs)

	// system 前缀固定保留。
	i := 0
	for ; i < len(msgs) && msgs[i].Role == types.RoleSystem; i++ {
		r.pinned[i] = true
	}
	// 首条用户消息固定保留。
	for ; i < len(msgs); i++ {
		if msgs[i].Role == types.RoleUser {
			r.pinned[i] = true
			break
		}
	}
	return r
}

// units 返回按时间先后排列的可裁剪单元。工具调用消息与其后连续的
// 工具结果消息合为一个单元。
func (r *run) units() [][]int {
	used := make([]bool, len(r.msgs))
	var units [][]int
	for i := range r.msgs {
		if used[i] || r.removed[i] || r.pinned[i] {
			continue
		}
		unit := []int{i}
		used[i] = true
		if r.msgs[i].IsToolCall() {
			for j := i + 1; j < len(r.msgs); j++ {
				if r.removed[j] {
					continue
				}
				if !r.msgs[j].IsToolResult() {
					break
				}
				unit = append(unit, j)
				used[j] = true
			}
		}
		units = append(units, unit)
	}
	return units
}

// live 返回未被移除的消息。
func (r *run) live() []types.Message {
	out := make([]types.Message, 0, len(r.msgs))
	for i, m := range r.msgs {
		if !r.removed[i] {
			out = append(out, m)
		}
	}
	return out
}

func (r *run) unitContent(unit []int) string {
	parts := make([]string, 0, len(unit))
	for _, idx := range unit {
		parts = append(parts, r.msgs[idx].Content)
	}
	return strings.Join(parts, "\n")
}

// omit 将单元内容替换为占位标记，保留消息条数与角色序列。
func (r *run) omit(unit []int) {
	for _, idx := range unit {
		r.msgs[idx].Content = omittedMarker
	}
}

// drop 将单元整体移除。
func (r *run) drop(unit []int) {
	for _, idx := range unit {
		r.removed[idx] = true
	}
}

// replaceWithExcerpt 用摘录替换单元首条消息的内容，其余成员置占位标记。
func (r *run) replaceWithExcerpt(unit []int, excerpt string) {
	r.msgs[unit[0]].Content = excerpt
	for _, idx := range unit[1:] {
		r.msgs[idx].Content = omittedMarker
	}
}

func (r *run) isOmitted(unit []int) bool {
	for _, idx := range unit {
		if r.msgs[idx].Content != omittedMarker {
			return false
		}
	}
	return true
}
