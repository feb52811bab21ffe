package sources

import (
	"io"
	"sync"
	"time"
)

// chanReader adapts callback-delivered buffers (BLE notifications, audio
// device callbacks) to Read. Deliver never blocks; when the backlog is full
// the oldest buffer is dropped.
type chanReader struct {
	ch          chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	readTimeout time.Duration

	mu      sync.Mutex
	rest    []byte
	lostErr error
}

func newChanReader(backlog int, readTimeout time.Duration) *chanReader {
	return &chanReader{
		ch:          make(chan []byte, max(1, backlog)),
		done:        make(chan struct{}),
		readTimeout: readTimeout,
	}
}

// Deliver copies b into the backlog. Called from driver callbacks.
func (r *chanReader) Deliver(b []byte) {
	if len(b) == 0 {
		return
	}
	c := make([]byte, len(b))
	copy(c, b)
	for {
		select {
		case <-r.done:
			return
		case r.ch <- c:
			return
		default:
		}
		select {
		case <-r.ch:
		default:
		}
	}
}

// Read returns buffered bytes, waiting up to the read timeout. A timeout
// yields (0, nil).
func (r *chanReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	if len(r.rest) > 0 {
		n := copy(p, r.rest)
		r.rest = r.rest[n:]
		r.mu.Unlock()
		return n, nil
	}
	r.mu.Unlock()

	var timeout <-chan time.Time
	if r.readTimeout > 0 {
		t := time.NewTimer(r.readTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case b := <-r.ch:
		n := copy(p, b)
		if n < len(b) {
			r.mu.Lock()
			r.rest = b[n:]
			r.mu.Unlock()
		}
		return n, nil
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.lostErr != nil {
			return 0, r.lostErr
		}
		return 0, io.EOF
	case <-timeout:
		return 0, nil
	}
}

// Fail ends the stream with err, for example on an unexpected disconnect.
func (r *chanReader) Fail(err error) {
	r.mu.Lock()
	if r.lostErr == nil {
		r.lostErr = err
	}
	r.mu.Unlock()
	r.Close()
}

// Close ends the stream with io.EOF and unblocks Read.
func (r *chanReader) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}
