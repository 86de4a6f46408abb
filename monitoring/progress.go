package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks a bring-up sequence made of a known number of steps.
type ProgressBar struct {
	mu sync.Mutex

	id         string
	name       string
	step       string
	startTime  time.Time
	total      uint64
	finished   uint64
	inProgress uint64
}

type progressBarState struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Step       string    `json:"step,omitempty"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// Begin marks the named step as running.
func (b *ProgressBar) Begin(step string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.step = step
	b.inProgress++
}

// Done marks the running step as finished.
func (b *ProgressBar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inProgress > 0 {
		b.inProgress--
	}

	b.step = ""
	b.finished++
}

// Skip counts n steps as finished without running them.
func (b *ProgressBar) Skip(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.finished += n
}

// Progress returns the finished, running and total step counts.
func (b *ProgressBar) Progress() (finished, inProgress, total uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.finished, b.inProgress, b.total
}

func (b *ProgressBar) state() progressBarState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return progressBarState{
		ID:         b.id,
		Name:       b.name,
		Step:       b.step,
		StartTime:  b.startTime,
		Total:      b.total,
		Finished:   b.finished,
		InProgress: b.inProgress,
	}
}
