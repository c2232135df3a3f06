package engine

import "sync"

// CommandQueue stages commands in a fixed-size ring. It is safe for
// concurrent producers and a single consumer (the scheduler).
type CommandQueue struct {
	mu       sync.Mutex
	data     []Command
	head     int
	tail     int
	count    int
	overflow uint64
}

// NewCommandQueue constructs a ring buffer with the provided capacity.
func NewCommandQueue(capacity int) *CommandQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandQueue{data: make([]Command, capacity)}
}

// Capacity reports the maximum number of commands the queue can hold.
func (q *CommandQueue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Push stages a command. Returns ErrQueueFull under backpressure; callers
// surface that to the issuing player rather than blocking.
func (q *CommandQueue) Push(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		q.overflow++
		return ErrQueueFull
	}
	q.data[q.tail] = cmd
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	return nil
}

// Drain returns all staged commands in FIFO order and clears the queue.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	out := make([]Command, q.count)
	for i := 0; i < q.count; i++ {
		out[i] = q.data[(q.head+i)%len(q.data)]
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	return out
}

// Len reports the number of staged commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Overflows reports how many pushes were refused since construction.
func (q *CommandQueue) Overflows() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.overflow
}
