package sources

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawring/sawring/internal/errors"
)

// scriptedSource replays a list of read results, then blocks until closed.
type scriptedSource struct {
	mu      sync.Mutex
	reads   []readResult
	closed  chan struct{}
	closeMu sync.Once
}

type readResult struct {
	data []byte
	err  error
}

func newScriptedSource(reads ...readResult) *scriptedSource {
	return &scriptedSource{reads: reads, closed: make(chan struct{})}
}

func (s *scriptedSource) Name() string                    { return "scripted" }
func (s *scriptedSource) ReadSize() int                   { return 64 }
func (s *scriptedSource) Connect(ctx context.Context) error { return nil }

func (s *scriptedSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.reads) > 0 {
		r := s.reads[0]
		s.reads = s.reads[1:]
		s.mu.Unlock()
		return copy(p, r.data), r.err
	}
	s.mu.Unlock()
	<-s.closed
	return 0, errors.NewStd("use of closed connection")
}

func (s *scriptedSource) Close() error {
	s.closeMu.Do(func() { close(s.closed) })
	return nil
}

func TestProduceCopiesInOrderUntilEOF(t *testing.T) {
	src := newScriptedSource(
		readResult{data: []byte("abc")},
		readResult{},
		readResult{data: []byte("defg")},
		readResult{data: []byte("h"), err: io.EOF},
	)
	q := NewQueue(16)

	stats, err := Produce(context.Background(), src, q)
	require.NoError(t, err)

	assert.Equal(t, []byte("abcdefgh"), bytes.Join(q.Drain(0), nil))
	assert.Equal(t, uint64(8), stats.Bytes)
	assert.Equal(t, uint64(1), stats.IdleReads)
	assert.Equal(t, uint64(4), stats.Reads)
}

func TestProduceReportsLoss(t *testing.T) {
	src := newScriptedSource(
		readResult{data: []byte{1, 2}},
		readResult{err: errors.NewStd("connection reset by peer")},
	)
	q := NewQueue(4)

	_, err := Produce(context.Background(), src, q)
	require.Error(t, err)
	assert.True(t, IsLostError(err))
	assert.False(t, IsConnectError(err))
	assert.Equal(t, 1, q.Len())
}

func TestProduceCancelClosesSource(t *testing.T) {
	src := newScriptedSource(readResult{data: []byte{1}})
	q := NewQueue(4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Produce(ctx, src, q)
		done <- err
	}()

	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("blocked read was not unblocked by cancellation")
	}
}

func TestProduceCountsDrops(t *testing.T) {
	reads := make([]readResult, 0, 11)
	for i := range 10 {
		reads = append(reads, readResult{data: []byte{byte(i)}})
	}
	reads = append(reads, readResult{err: io.EOF})
	q := NewQueue(3)

	stats, err := Produce(context.Background(), newScriptedSource(reads...), q)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), stats.Dropped)
	assert.Equal(t, [][]byte{{7}, {8}, {9}}, q.Drain(0))
}
