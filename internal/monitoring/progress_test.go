package monitoring

import (
	"fmt"
	"sync"
	"testing"
)

func TestProgressLogsAtStepBoundaries(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var mu sync.Mutex
	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		lines = append(lines, fmt.Sprintf(format, v...))
		mu.Unlock()
	})

	p := NewProgress("sweep", 100, 25)
	for i := 0; i < 100; i++ {
		p.Add(1)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 4 {
		t.Errorf("Expected 4 progress lines (25%%..100%%), got %d: %v", len(lines), lines)
	}
}

func TestProgressCoarseIncrements(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	count := 0
	SetLogger(func(format string, v ...interface{}) { count++ })

	// One bulk Add crossing several boundaries logs once, for the step
	// actually reached.
	p := NewProgress("sweep", 100, 10)
	p.Add(73)
	if count != 1 {
		t.Errorf("Expected 1 progress line for a bulk add, got %d", count)
	}
}

func TestProgressDisabled(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	SetLogger(func(format string, v ...interface{}) {
		t.Errorf("No logging expected, got %q", format)
	})

	// Zero total and out-of-range step both disable logging.
	NewProgress("idle", 0, 10).Add(5)
	NewProgress("idle", 100, 0).Add(50)
	NewProgress("idle", 100, 150).Add(50)

	// A nil reporter is safe to use.
	var p *Progress
	p.Add(3)
}
