package sources

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawring/sawring/internal/conf"
)

func TestTCPSourceStreamsUntilPeerCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	payload := bytes.Repeat([]byte{0x01, 0x02}, 3000)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write(payload)
		_ = conn.Close()
	}()

	src := NewTCPSource(ln.Addr().String(), true, time.Second, 200*time.Millisecond)
	require.NoError(t, src.Connect(context.Background()))

	q := NewQueue(64)
	stats, err := Produce(context.Background(), src, q)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(payload)), stats.Bytes)
	assert.Equal(t, payload, bytes.Join(q.Drain(0), nil))
	require.NoError(t, src.Close())
}

func TestTCPSourceConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	src := NewTCPSource(addr, true, 500*time.Millisecond, time.Second)
	err = src.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectError(err))
	assert.False(t, IsLostError(err))
}

func TestTCPSourceIdleReadAndCloseUnblocks(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	src := NewTCPSource(ln.Addr().String(), true, time.Second, 20*time.Millisecond)
	require.NoError(t, src.Connect(context.Background()))
	peer := <-accepted
	defer peer.Close()

	n, err := src.Read(make([]byte, 16))
	assert.Zero(t, n)
	assert.NoError(t, err, "deadline without data is an idle tick")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := Produce(ctx, src, NewQueue(4))
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop")
	}
}

func TestUDPSourceReceivesDatagrams(t *testing.T) {
	src := NewUDPSource("127.0.0.1:0", 65536, 4096, 500*time.Millisecond, 48000, 0.1)
	require.NoError(t, src.Connect(context.Background()))
	defer src.Close()

	conn, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)

	p := make([]byte, src.ReadSize())
	n, err := src.Read(p)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, p[:n])
	assert.Zero(t, src.LossRate(), "under a second of history")
}

func TestUDPSourceRebindsSameAddress(t *testing.T) {
	probe, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.LocalAddr().String()
	require.NoError(t, probe.Close())

	src := NewUDPSource(addr, 0, 4096, 100*time.Millisecond, 48000, 0.1)
	require.NoError(t, src.Connect(context.Background()))
	// A second Connect without Close releases the first socket.
	require.NoError(t, src.Connect(context.Background()))
	require.NoError(t, src.Close())
	require.NoError(t, src.Connect(context.Background()))
	assert.Equal(t, addr, src.LocalAddr().String())
	require.NoError(t, src.Close())
}

func TestTCPSourceReconnectClosesPreviousConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	peerClosed := make(chan struct{})
	go func() {
		first, err := ln.Accept()
		if err != nil {
			return
		}
		second, err := ln.Accept()
		if err != nil {
			_ = first.Close()
			return
		}
		_, _ = io.Copy(io.Discard, first)
		close(peerClosed)
		_ = first.Close()
		_ = second.Close()
	}()

	src := NewTCPSource(ln.Addr().String(), true, time.Second, 100*time.Millisecond)
	require.NoError(t, src.Connect(context.Background()))
	require.NoError(t, src.Connect(context.Background()))

	select {
	case <-peerClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection was not closed")
	}
	require.NoError(t, src.Close())
}

func TestLossRate(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Zero(t, lossRate(0, time.Time{}, start, 48000))
	assert.Zero(t, lossRate(100, start, start.Add(500*time.Millisecond), 48000))
	assert.InDelta(t, 0.25, lossRate(72000, start, start.Add(2*time.Second), 48000), 1e-9)
	assert.Zero(t, lossRate(200000, start, start.Add(2*time.Second), 48000))
}

func writeWAV(t *testing.T, samples []int, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, 24000, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   samples,
		Format: &audio.Format{SampleRate: 24000, NumChannels: channels},
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileSourceReplaysFirstChannel(t *testing.T) {
	// Interleaved stereo: left carries the ramp, right is noise to discard.
	var samples []int
	for i := range 3000 {
		samples = append(samples, i-1500, 7)
	}
	src := NewFileSource(writeWAV(t, samples, 2), 24000, 1024, false)
	require.NoError(t, src.Connect(context.Background()))

	q := NewQueue(64)
	_, err := Produce(context.Background(), src, q)
	require.NoError(t, err)

	data := bytes.Join(q.Drain(0), nil)
	require.Len(t, data, 6000)
	for i := range 3000 {
		got := int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
		require.Equal(t, int16(i-1500), got)
	}
	require.NoError(t, src.Close())
}

func TestFileSourceRejectsWrongRate(t *testing.T) {
	src := NewFileSource(writeWAV(t, make([]int, 100), 1), 48000, 1024, false)
	err := src.Connect(context.Background())
	require.Error(t, err)

	missing := NewFileSource(filepath.Join(t.TempDir(), "none.wav"), 24000, 1024, false)
	assert.True(t, IsConnectError(missing.Connect(context.Background())))
}

func TestFileSourceRealtimeCloseInterruptsPacing(t *testing.T) {
	src := NewFileSource(writeWAV(t, make([]int, 240000), 1), 24000, 48000, true)
	require.NoError(t, src.Connect(context.Background()))

	p := make([]byte, src.ReadSize())
	_, err := src.Read(p) // one second of audio, paced
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = src.Close()
	}()
	start := time.Now()
	_, err = src.Read(p)
	assert.ErrorIs(t, err, io.EOF)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestNewSelectsTransport(t *testing.T) {
	settings := conf.Defaults()
	for typ, name := range map[string]string{
		conf.SourceTCP:       "tcp",
		conf.SourceUDP:       "udp",
		conf.SourceBLE:       "ble",
		conf.SourceSerial:    "serial",
		conf.SourceSoundcard: "soundcard",
		conf.SourceFile:      "file",
	} {
		settings.Source.Type = typ
		src, err := New(settings)
		require.NoError(t, err)
		assert.Equal(t, name, src.Name())
	}

	settings.Source.Type = "carrier-pigeon"
	_, err := New(settings)
	assert.Error(t, err)
}
