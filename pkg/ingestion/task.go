package ingestion

import (
	"context"
	"time"
)

// Outcome is what became of one ingestion request. Delivered means the
// service answered; the status code is informational only.
type Outcome struct {
	RequestID   string    `json:"request_id"`
	Ecosystem   string    `json:"ecosystem"`
	Packages    int       `json:"packages"`
	StatusCode  int       `json:"status_code,omitempty"`
	Delivered   bool      `json:"delivered"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Task tracks a request running in the background. Callers may ignore it.
type Task struct {
	id      string
	done    chan struct{}
	outcome Outcome
}

func newTask(id string) *Task {
	return &Task{id: id, done: make(chan struct{})}
}

func (t *Task) ID() string {
	return t.id
}

// Done is closed once the request has completed or failed.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the request finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (t *Task) finish(o Outcome) {
	t.outcome = o
	close(t.done)
}
