// Package sources adapts the ring's transports (BLE notifications, TCP,
// UDP, serial) and local test inputs (sound card, WAV file) to a common
// byte-stream contract, and moves their bytes to the pipeline through a
// bounded queue.
package sources

import (
	"context"
	"fmt"
	"io"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
)

// Source is a byte-producing transport.
//
// Read may return zero bytes with a nil error when the read timeout expired
// without data; that is an idle tick, not a failure. io.EOF signals an
// orderly close and any other error an abnormal loss. Close must unblock a
// pending Read.
type Source interface {
	io.ReadCloser

	// Name identifies the transport in logs and status, e.g. "tcp".
	Name() string

	// Connect opens the transport. It honors ctx and the configured
	// connect timeout.
	Connect(ctx context.Context) error

	// ReadSize is the buffer size the producer should read with.
	ReadSize() int
}

// New builds the source selected by settings.Source.Type.
func New(settings *conf.Settings) (Source, error) {
	frameSize := settings.FrameSizeBytes()
	s := settings.Source
	switch s.Type {
	case conf.SourceTCP:
		return NewTCPSource(s.TCP.Address, s.TCP.NoDelay, s.ConnectTimeout, s.ReadTimeout), nil
	case conf.SourceUDP:
		return NewUDPSource(s.UDP.Listen, s.UDP.ReadBuffer, frameSize*4, s.ReadTimeout,
			settings.Frame.SampleRate*settings.Frame.SampleWidth, s.UDP.LossThreshold), nil
	case conf.SourceBLE:
		return NewBLESource(s.BLE.DeviceName, s.BLE.DeviceAddress, s.BLE.Characteristic,
			s.BLE.ScanTimeout, s.ConnectTimeout, s.ReadTimeout), nil
	case conf.SourceSerial:
		return NewSerialSource(s.Serial.Port, s.Serial.BaudRate, frameSize, s.ReadTimeout), nil
	case conf.SourceSoundcard:
		return NewSoundcardSource(s.Soundcard.Device, settings.Frame.SampleRate, frameSize, s.ReadTimeout), nil
	case conf.SourceFile:
		return NewFileSource(s.File.Path, settings.Frame.SampleRate, frameSize, s.File.Realtime), nil
	default:
		return nil, errors.Newf("unknown source type %q", s.Type).
			Component("sources").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// connectError wraps a failure to establish a connection: refused, not
// found or timed out.
func connectError(source string, err error, kv ...any) error {
	b := errors.New(err).
		Component("sources").
		Category(errors.CategoryTransportConnect).
		Context("source", source)
	for i := 0; i+1 < len(kv); i += 2 {
		b = b.Context(fmt.Sprint(kv[i]), kv[i+1])
	}
	return b.Build()
}

// lostError wraps the loss of an established connection.
func lostError(source string, err error) error {
	return errors.New(err).
		Component("sources").
		Category(errors.CategoryTransportLost).
		Context("source", source).
		Build()
}

// IsConnectError reports whether err is a connect failure.
func IsConnectError(err error) bool {
	return errors.IsCategory(err, errors.CategoryTransportConnect)
}

// IsLostError reports whether err is the loss of an established connection.
func IsLostError(err error) bool {
	return errors.IsCategory(err, errors.CategoryTransportLost)
}
