package sources

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanReaderSplitsLargeBuffers(t *testing.T) {
	r := newChanReader(4, time.Second)
	r.Deliver([]byte{1, 2, 3, 4, 5})

	p := make([]byte, 2)
	var got []byte
	for range 3 {
		n, err := r.Read(p)
		require.NoError(t, err)
		got = append(got, p[:n]...)
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, got)
}

func TestChanReaderDeliverCopies(t *testing.T) {
	r := newChanReader(4, time.Second)
	b := []byte{9, 9}
	r.Deliver(b)
	b[0] = 0

	p := make([]byte, 4)
	n, err := r.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, p[:n])
}

func TestChanReaderDropsOldestWhenFull(t *testing.T) {
	r := newChanReader(2, time.Second)
	r.Deliver([]byte{1})
	r.Deliver([]byte{2})
	r.Deliver([]byte{3})

	p := make([]byte, 1)
	_, _ = r.Read(p)
	assert.Equal(t, byte(2), p[0])
	_, _ = r.Read(p)
	assert.Equal(t, byte(3), p[0])
}

func TestChanReaderTimeoutIsIdle(t *testing.T) {
	r := newChanReader(1, 10*time.Millisecond)
	n, err := r.Read(make([]byte, 4))
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestChanReaderCloseAndFail(t *testing.T) {
	r := newChanReader(1, 0)
	go r.Close()
	_, err := r.Read(make([]byte, 4))
	assert.ErrorIs(t, err, io.EOF)

	lost := newChanReader(1, 0)
	lost.Fail(lostError("ble", assert.AnError))
	_, err = lost.Read(make([]byte, 4))
	assert.True(t, IsLostError(err))

	// Delivery after close is ignored and does not block.
	lost.Deliver([]byte{1})
	lost.Deliver([]byte{2})
}
