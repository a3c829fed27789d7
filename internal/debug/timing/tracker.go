// Package timing records how long each pipeline stage took.
package timing

import (
	"sort"
	"time"
)

// Tracker is owned by a single pipeline instance and is not safe for
// concurrent use.
type Tracker struct {
	timings map[string][]time.Duration
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		now:     time.Now,
	}
}

// Start returns a function that records the elapsed time for operation.
func (tt *Tracker) Start(operation string) func() time.Duration {
	start := tt.now()
	return func() time.Duration {
		duration := tt.now().Sub(start)
		tt.timings[operation] = append(tt.timings[operation], duration)
		return duration
	}
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

// Operations returns the recorded operation names in sorted order.
func (tt *Tracker) Operations() []string {
	names := make([]string, 0, len(tt.timings))
	for name := range tt.timings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (tt *Tracker) Total() time.Duration {
	var total time.Duration
	for _, timings := range tt.timings {
		for _, d := range timings {
			total += d
		}
	}
	return total
}
