package metrics

import (
	"testing"
	"time"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(404, 20*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.RecordRun(2, 1, 3)
	c.RecordSlips(1, 0, 0)

	snap := c.Snapshot()
	if snap["requestsTotal"] != uint64(3) {
		t.Fatalf("expected 3 requests, got %v", snap["requestsTotal"])
	}
	if snap["errorsTotal"] != uint64(1) || snap["clientErrorsTotal"] != uint64(1) {
		t.Fatalf("unexpected error counters %v / %v", snap["errorsTotal"], snap["clientErrorsTotal"])
	}
	if snap["avgDurationMs"] != float64(20) {
		t.Fatalf("expected avg 20ms, got %v", snap["avgDurationMs"])
	}
	if snap["payrollRunsTotal"] != uint64(1) {
		t.Fatalf("expected 1 run, got %v", snap["payrollRunsTotal"])
	}
	if snap["slipsGeneratedTotal"] != uint64(3) || snap["slipsFailedTotal"] != uint64(1) {
		t.Fatalf("unexpected slip counters %v / %v", snap["slipsGeneratedTotal"], snap["slipsFailedTotal"])
	}
	if snap["slipWarningsTotal"] != uint64(3) {
		t.Fatalf("expected 3 warnings, got %v", snap["slipWarningsTotal"])
	}
}
