package sources

import (
	"sync/atomic"
)

// Chunk is one producer read. Generation counts transport connections, so
// a consumer can tell where one connection's bytes end and the next begin
// even when chunks in between were dropped.
type Chunk struct {
	Data       []byte
	Generation uint64
}

// Queue is the bounded FIFO between a producer and the pipeline consumer.
// When full, the oldest chunk is dropped so the producer never blocks.
// It supports a single producer.
type Queue struct {
	ch         chan Chunk
	generation atomic.Uint64
	pushed     atomic.Uint64
	dropped    atomic.Uint64
	bytes      atomic.Uint64
}

// NewQueue returns a queue holding up to capacity chunks.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Chunk, max(1, capacity))}
}

// NextGeneration starts a new connection generation. Chunks pushed from
// now on carry the returned value.
func (q *Queue) NextGeneration() uint64 {
	return q.generation.Add(1)
}

// Generation returns the generation stamped on new chunks.
func (q *Queue) Generation() uint64 {
	return q.generation.Load()
}

// Push enqueues chunk, evicting the oldest chunk when full. It reports
// whether a chunk was dropped. The queue takes ownership of chunk.
func (q *Queue) Push(chunk []byte) (dropped bool) {
	q.pushed.Add(1)
	q.bytes.Add(uint64(len(chunk)))
	c := Chunk{Data: chunk, Generation: q.generation.Load()}
	for {
		select {
		case q.ch <- c:
			return dropped
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
			dropped = true
		default:
		}
	}
}

// DrainChunks removes up to limit chunks without blocking, oldest first. A
// limit of zero or less drains everything currently queued.
func (q *Queue) DrainChunks(limit int) []Chunk {
	n := len(q.ch)
	if limit > 0 {
		n = min(n, limit)
	}
	out := make([]Chunk, 0, n)
	for range n {
		select {
		case c := <-q.ch:
			out = append(out, c)
		default:
			return out
		}
	}
	return out
}

// Drain is DrainChunks without the generations.
func (q *Queue) Drain(limit int) [][]byte {
	chunks := q.DrainChunks(limit)
	out := make([][]byte, len(chunks))
	for i, c := range chunks {
		out[i] = c.Data
	}
	return out
}

// Len returns the number of queued chunks.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// QueueStats are cumulative queue counters.
type QueueStats struct {
	Pushed  uint64
	Dropped uint64
	Bytes   uint64
}

// Stats returns cumulative counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{Pushed: q.pushed.Load(), Dropped: q.dropped.Load(), Bytes: q.bytes.Load()}
}
