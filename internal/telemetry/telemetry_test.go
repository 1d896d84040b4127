package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordBlock("voiced")
	r.RecordFailedStart("device")
	r.SetDropped(3)
	u := r.StartUtterance(context.Background(), "s", 1)
	u.RecordFed(10)
	u.RecordPartial("x")
	u.Stopped()
	u.Finish("x", nil)
	if got := r.Snapshot(); got != (Snapshot{}) {
		t.Errorf("Snapshot() = %+v, want zero", got)
	}
}

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(testLogger())
	r.RecordBlock("voiced")
	r.RecordBlock("silence")
	r.RecordBlock("indeterminate")
	r.RecordFailedStart("device")
	r.SetDropped(2)
	r.SetOverflows(5)

	ok := r.StartUtterance(context.Background(), "s", 1)
	ok.RecordFed(1600)
	ok.RecordPartial("hel")
	ok.Stopped()
	ok.Finish("hello", nil)
	ok.Finish("again", nil)

	empty := r.StartUtterance(context.Background(), "s", 2)
	empty.Finish("", nil)

	failed := r.StartUtterance(context.Background(), "s", 3)
	failed.Finish("", errors.New("decoder crashed"))

	active := r.StartUtterance(context.Background(), "s", 4)

	got := r.Snapshot()
	want := Snapshot{
		TotalUtterances:  4,
		ActiveUtterances: 1,
		TotalBlocks:      3,
		VoicedBlocks:     1,
		SilentBlocks:     1,
		UndecidedBlocks:  1,
		TotalPartials:    1,
		TotalFinals:      1,
		EmptyFinals:      1,
		FailedFinals:     1,
		FailedStarts:     1,
		DroppedBlocks:    2,
		CaptureOverflows: 5,
	}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
	active.Finish("", nil)
}

func TestSetupServesMetrics(t *testing.T) {
	p, err := Setup(context.Background(), Config{ServiceName: "gostt-test"}, testLogger())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer p.Shutdown(context.Background())

	r := NewRecorder(testLogger())
	r.RecordBlock("voiced")

	addr, err := p.Serve("127.0.0.1:0", testLogger())
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "gostt_blocks") {
		t.Errorf("metrics output missing gostt_blocks:\n%s", body)
	}
}

func TestServeWithoutAddr(t *testing.T) {
	p := &Provider{}
	addr, err := p.Serve("", testLogger())
	if err != nil || addr != "" {
		t.Errorf("Serve(\"\") = %q, %v; want empty, nil", addr, err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
