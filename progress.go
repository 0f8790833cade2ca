package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ==================== PROGRESS SYSTEM ====================

const (
	barFilled = "★"
	barEmpty  = "☆"
)

// renderStars fills a fixed-width slot sequence left to right:
// 0% → all empty, 50% of 10 → ★★★★★☆☆☆☆☆, 100% → all filled.
func renderStars(percentage, width int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	filled := width * percentage / 100
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// renderBar formats the bar like the status cards: [★★★★★☆☆☆☆☆] 50%
func renderBar(percentage, width int) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	return fmt.Sprintf("[%s] %d%%", renderStars(percentage, width), percentage)
}

// ProgressFunc receives throttled, render-ready progress updates.
type ProgressFunc func(state ProgressState, bar string)

// ProgressReporter converts raw byte counts into rate-limited bar
// updates. Editing a chat message per read() call would flood the
// transport, so an update only goes out when the percentage moved by
// at least stepPct AND minInterval passed. 100% always goes out.
type ProgressReporter struct {
	width       int
	stepPct     int
	minInterval time.Duration
	emit        ProgressFunc

	mu       sync.Mutex
	lastPct  int
	lastTime time.Time
}

func NewProgressReporter(width, stepPct int, minInterval time.Duration, emit ProgressFunc) *ProgressReporter {
	return &ProgressReporter{
		width:       width,
		stepPct:     stepPct,
		minInterval: minInterval,
		emit:        emit,
		lastPct:     -1,
	}
}

// StartStage resets the throttle so the new stage begins at 0%.
func (r *ProgressReporter) StartStage(stage, fileName string, total int64) {
	r.mu.Lock()
	r.lastPct = -1
	r.lastTime = time.Time{}
	r.mu.Unlock()
	r.Report(ProgressState{Stage: stage, FileName: fileName, Total: total})
}

// Report feeds one raw progress sample through the rate limit.
func (r *ProgressReporter) Report(state ProgressState) {
	if state.Total > 0 {
		state.Percentage = int(state.Done * 100 / state.Total)
		if state.Percentage > 100 {
			state.Percentage = 100
		}
	}

	r.mu.Lock()
	now := time.Now()
	final := state.Percentage >= 100
	first := r.lastPct < 0
	moved := state.Percentage-r.lastPct >= r.stepPct
	cooled := now.Sub(r.lastTime) >= r.minInterval
	if !final && !first && !(moved && cooled) {
		r.mu.Unlock()
		return
	}
	if final && state.Percentage == r.lastPct {
		r.mu.Unlock()
		return
	}
	r.lastPct = state.Percentage
	r.lastTime = now
	r.mu.Unlock()

	if r.emit != nil {
		r.emit(state, renderBar(state.Percentage, r.width))
	}
}

// progressReader counts bytes moving through an io.Reader and feeds
// every sample to the reporter (the reporter does the throttling).
type progressReader struct {
	r        io.Reader
	stage    string
	fileName string
	total    int64
	done     int64
	reporter *ProgressReporter
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.done += int64(n)
		pr.reporter.Report(ProgressState{
			Stage:    pr.stage,
			FileName: pr.fileName,
			Done:     pr.done,
			Total:    pr.total,
		})
	}
	return n, err
}
