package selector

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/w4n9H/autocoder-nano-sub001/internal/metrics"
	"github.com/w4n9H/autocoder-nano-sub001/oracle"
	"github.com/w4n9H/autocoder-nano-sub001/types"
)

// verifyTask 是一次核验任务：候选文件及其内容。
type verifyTask struct {
	Path    string
	Content string
}

// Verifier 并发核验候选文件的相关性。
// 工作池宽度为 max(GOMAXPROCS/2, MinWorkers)；每个任务写入自己的结果槽，
// 另以互斥锁记录完成顺序，join 之后统一返回，调用方不会观察到部分结果。
type Verifier struct {
	oracle     oracle.Oracle
	threshold  int
	minWorkers int
	logger     *zap.Logger
	metrics    *metrics.Collector
}

// NewVerifier 创建核验器。threshold 是通过分数线（score >= threshold 判 PASS），
// minWorkers 是并发下限。
func NewVerifier(o oracle.Oracle, threshold, minWorkers int, logger *zap.Logger, collector *metrics.Collector) *Verifier {
	if minWorkers < 1 {
		minWorkers = 1
	}
	return &Verifier{
		oracle:     o,
		threshold:  threshold,
		minWorkers: minWorkers,
		logger:     logger.With(zap.String("component", "verifier")),
		metrics:    collector,
	}
}

func (v *Verifier) workers() int {
	n := runtime.GOMAXPROCS(0) / 2
	if n < v.minWorkers {
		n = v.minWorkers
	}
	return n
}

// Verify 按完成顺序返回每个任务的核验结论。
// 单个文件的 Oracle 失败记为 ERROR，不中断其余任务。
func (v *Verifier) Verify(ctx context.Context, tasks []verifyTask, query string) []types.Verdict {
	if len(tasks) == 0 {
		return nil
	}

	verdicts := make([]types.Verdict, len(tasks))
	order := make([]int, 0, len(tasks))
	var mu sync.Mutex
	sem := make(chan struct{}, v.workers())
	var wg sync.WaitGroup

	for i, t := range tasks {
		wg.Add(1)
		go func(idx int, task verifyTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			verdicts[idx] = v.verifyOne(ctx, task, query)

			mu.Lock()
			order = append(order, idx)
			mu.Unlock()
		}(i, t)
	}
	wg.Wait()

	out := make([]types.Verdict, 0, len(tasks))
	for _, idx := range order {
		out = append(out, verdicts[idx])
	}
	return out
}

func (v *Verifier) verifyOne(ctx context.Context, task verifyTask, query string) types.Verdict {
	score, reason, err := v.oracle.ScoreFile(ctx, task.Content, query)
	if err != nil {
		v.logger.Warn("file verification failed",
			zap.String("path", task.Path),
			zap.Error(err))
		v.metrics.RecordVerdict(string(types.VerdictError))
		return types.Verdict{
			Path:   task.Path,
			Status: types.VerdictError,
			Reason: fmt.Sprintf("verification failed: %v", err),
		}
	}

	status := types.VerdictFail
	if score >= v.threshold {
		status = types.VerdictPass
	}
	v.metrics.RecordVerdict(string(status))
	return types.Verdict{
		Path:   task.Path,
		Score:  score,
		Status: status,
		Reason: reason,
	}
}
