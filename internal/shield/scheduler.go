package shield

import "sync"

// Scheduler defers work until the current synchronous handler has unwound
type Scheduler interface {
	Schedule(task func())
}

// TaskQueue collects deferred tasks until Drain is called.
// The owner of a form drains the queue after each event it dispatches.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []func()
}

// NewTaskQueue creates an empty queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Schedule appends a task
func (q *TaskQueue) Schedule(task func()) {
	if task == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()
}

// Len returns the number of pending tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs pending tasks in FIFO order, including tasks they schedule,
// and returns how many ran.
func (q *TaskQueue) Drain() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return ran
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		task()
		ran++
	}
}
