package pcm

import "sync"

// Queue is a FIFO of blocks shared between the capture callback (producer)
// and the transcription worker (consumer). Push never blocks; when a capacity
// is set and the queue is full the oldest block is discarded and counted.
type Queue struct {
	mu       sync.Mutex
	blocks   []Block
	capacity int
	dropped  uint64
}

// NewQueue returns a queue holding at most capacity blocks. A capacity <= 0
// means unbounded.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Push appends a block.
func (q *Queue) Push(b Block) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.blocks) >= q.capacity {
		q.blocks[0] = Block{}
		q.blocks = q.blocks[1:]
		q.dropped++
	}
	q.blocks = append(q.blocks, b)
}

// Pop removes and returns the oldest block.
func (q *Queue) Pop() (Block, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.blocks) == 0 {
		return Block{}, false
	}
	b := q.blocks[0]
	q.blocks[0] = Block{}
	q.blocks = q.blocks[1:]
	return b, true
}

// Drain removes every queued block and returns them oldest first.
func (q *Queue) Drain() []Block {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.blocks) == 0 {
		return nil
	}
	out := q.blocks
	q.blocks = nil
	return out
}

// Reset discards every queued block without touching the drop counter.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.blocks = nil
	q.mu.Unlock()
}

// Len returns the number of queued blocks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blocks)
}

// Dropped returns how many blocks were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
