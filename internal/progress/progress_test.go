package progress

import (
	"errors"
	"sync"
	"testing"
)

func TestNewTracker(t *testing.T) {
	tests := []struct {
		name  string
		label string
		total int
	}{
		{
			name:  "standard tracker",
			label: "Loading modules",
			total: 100,
		},
		{
			name:  "zero total",
			label: "Empty graph",
			total: 0,
		},
		{
			name:  "single module",
			label: "One file",
			total: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewTracker(tt.label, tt.total)

			if tracker == nil {
				t.Fatal("NewTracker() returned nil")
			}
			if tracker.bar == nil {
				t.Error("tracker.bar should not be nil")
			}
			if tracker.label != tt.label {
				t.Errorf("tracker.label = %q, want %q", tracker.label, tt.label)
			}
		})
	}
}

func TestNewSpinner(t *testing.T) {
	tracker := NewSpinner("Loading modules")

	if tracker == nil {
		t.Fatal("NewSpinner() returned nil")
	}
	if tracker.bar == nil {
		t.Error("tracker.bar should not be nil")
	}
}

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker("Lifecycle", 5)

	for i := 0; i < 5; i++ {
		tracker.Tick()
	}
	tracker.Finish()
	tracker.Finish()
}

func TestTrackerTickConcurrent(t *testing.T) {
	tracker := NewTracker("Concurrent", 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.Tick()
			}
		}()
	}

	wg.Wait()
	tracker.Finish()
}

func TestTrackerFinishError(t *testing.T) {
	tracker := NewSpinner("Failing")
	tracker.Tick()
	tracker.FinishError(errors.New("parse failed"))
}
