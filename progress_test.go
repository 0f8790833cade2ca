package main

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"
)

func TestRenderStars(t *testing.T) {
	tests := []struct {
		pct      int
		width    int
		expected string
	}{
		{0, 10, "☆☆☆☆☆☆☆☆☆☆"},
		{50, 10, "★★★★★☆☆☆☆☆"},
		{100, 10, "★★★★★★★★★★"},
		{5, 10, "☆☆☆☆☆☆☆☆☆☆"},
		{10, 10, "★☆☆☆☆☆☆☆☆☆"},
		{99, 10, "★★★★★★★★★☆"},
		{-5, 10, "☆☆☆☆☆☆☆☆☆☆"},
		{120, 10, "★★★★★★★★★★"},
		{50, 20, "★★★★★★★★★★☆☆☆☆☆☆☆☆☆☆"},
	}

	for _, test := range tests {
		result := renderStars(test.pct, test.width)
		if result != test.expected {
			t.Errorf("renderStars(%d, %d) = %q, expected %q", test.pct, test.width, result, test.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	if got, want := renderBar(50, 10), "[★★★★★☆☆☆☆☆] 50%"; got != want {
		t.Errorf("renderBar(50, 10) = %q, expected %q", got, want)
	}
	if got, want := renderBar(0, 10), "[☆☆☆☆☆☆☆☆☆☆] 0%"; got != want {
		t.Errorf("renderBar(0, 10) = %q, expected %q", got, want)
	}
}

func TestProgressReporterThrottle(t *testing.T) {
	var emitted []int
	r := NewProgressReporter(10, 5, 0, func(state ProgressState, bar string) {
		emitted = append(emitted, state.Percentage)
	})

	r.StartStage(StageDownload, "file.bin", 100)
	for done := int64(1); done <= 100; done++ {
		r.Report(ProgressState{Stage: StageDownload, FileName: "file.bin", Done: done, Total: 100})
	}

	if len(emitted) == 0 {
		t.Fatal("no updates emitted")
	}
	if emitted[0] != 0 {
		t.Errorf("first update = %d%%, expected 0%%", emitted[0])
	}
	if emitted[len(emitted)-1] != 100 {
		t.Errorf("last update = %d%%, expected 100%%", emitted[len(emitted)-1])
	}
	// Per-byte samples must collapse: a 5% step over 100 samples means
	// far fewer than 100 updates.
	if len(emitted) > 25 {
		t.Errorf("%d updates for 100 samples, throttle is not working", len(emitted))
	}
	for i := 1; i < len(emitted); i++ {
		if emitted[i] < emitted[i-1] {
			t.Fatalf("progress went backwards: %v", emitted)
		}
		if emitted[i]-emitted[i-1] < 5 && emitted[i] != 100 {
			t.Errorf("update step %d%% → %d%% below the 5%% threshold", emitted[i-1], emitted[i])
		}
	}
}

func TestProgressReporterInterval(t *testing.T) {
	var count int
	r := NewProgressReporter(10, 1, time.Hour, func(ProgressState, string) { count++ })

	r.StartStage(StageUpload, "big.iso", 1000)
	for done := int64(10); done <= 990; done += 10 {
		r.Report(ProgressState{Stage: StageUpload, Done: done, Total: 1000})
	}
	// Only the 0% opener passes inside one interval.
	if count != 1 {
		t.Errorf("emitted %d updates inside the minimum interval, expected 1", count)
	}

	// 100% always goes through.
	r.Report(ProgressState{Stage: StageUpload, Done: 1000, Total: 1000})
	if count != 2 {
		t.Errorf("final update suppressed, emitted = %d", count)
	}
}

func TestProgressReaderCounts(t *testing.T) {
	var last ProgressState
	r := NewProgressReporter(10, 1, 0, func(state ProgressState, bar string) { last = state })
	src := strings.NewReader(strings.Repeat("x", 1024))
	pr := &progressReader{r: src, stage: StageDownload, fileName: "x.bin", total: 1024, reporter: r}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, pr)
	if err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if n != 1024 {
		t.Fatalf("copied %d bytes, expected 1024", n)
	}
	if last.Done != 1024 || last.Percentage != 100 {
		t.Errorf("final state = %+v, expected Done=1024 Percentage=100", last)
	}
}
