package service

import (
	"context"
	"log"
)

// Outbox collects best-effort side effects during a transaction and runs
// them only after the commit succeeds. Failures are logged and swallowed;
// nothing here may affect the committed state, and nothing is retried
// inline.
type Outbox struct {
	tasks []outboxTask
}

type outboxTask struct {
	name string
	fn   func(ctx context.Context) error
}

// Add schedules a post-commit task. The name shows up in failure logs.
func (o *Outbox) Add(name string, fn func(ctx context.Context) error) {
	o.tasks = append(o.tasks, outboxTask{name: name, fn: fn})
}

// Run executes all scheduled tasks in order.
func (o *Outbox) Run(ctx context.Context) {
	for _, t := range o.tasks {
		if err := t.fn(ctx); err != nil {
			log.Printf("ERROR: post-commit %s: %v", t.name, err)
		}
	}
}
