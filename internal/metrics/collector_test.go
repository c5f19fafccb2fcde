package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestCollector_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("autocoder", reg, zap.NewNop())

	c.RecordOracleCall("score_file", "ok")
	c.RecordOracleCall("score_file", "error")
	c.RecordVerdict("PASS")
	c.RecordVerdict("PASS")
	c.RecordVerdict("FAIL")
	c.RecordPruneRun("reduced")
	c.RecordPayloadTokens(1024)

	if got := testutil.ToFloat64(c.oracleCallsTotal.WithLabelValues("score_file", "ok")); got != 1 {
		t.Fatalf("oracle ok calls = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.filesVerifiedTotal.WithLabelValues("PASS")); got != 2 {
		t.Fatalf("pass verdicts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.pruneRunsTotal.WithLabelValues("reduced")); got != 1 {
		t.Fatalf("prune runs = %v, want 1", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RecordOracleCall("rank", "ok")
	c.RecordVerdict("ERROR")
	c.RecordPayloadTokens(1)
	c.RecordPruneRun("unchanged")
}
