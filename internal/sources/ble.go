package sources

import (
	"context"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// bleBacklog is the number of undelivered notifications kept.
const bleBacklog = 256

// BLESource subscribes to the ring's PCM notify characteristic. Every
// notification carries one frame.
type BLESource struct {
	deviceName     string
	deviceAddress  string
	characteristic string
	scanTimeout    time.Duration
	connectTimeout time.Duration
	readTimeout    time.Duration

	adapter *bluetooth.Adapter

	mu     sync.Mutex
	device *bluetooth.Device
	reader *chanReader
}

// NewBLESource returns an unconnected BLE source using the default adapter.
func NewBLESource(deviceName, deviceAddress, characteristic string, scanTimeout, connectTimeout, readTimeout time.Duration) *BLESource {
	return &BLESource{
		deviceName:     deviceName,
		deviceAddress:  deviceAddress,
		characteristic: characteristic,
		scanTimeout:    scanTimeout,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
		adapter:        bluetooth.DefaultAdapter,
	}
}

func (s *BLESource) Name() string  { return "ble" }
func (s *BLESource) ReadSize() int { return 4096 }

// matches reports whether a scan result is the configured ring.
func (s *BLESource) matches(name, address string) bool {
	if s.deviceAddress != "" {
		return strings.EqualFold(address, s.deviceAddress)
	}
	return name == s.deviceName
}

// Connect scans for the ring, connects, and enables notifications.
func (s *BLESource) Connect(ctx context.Context) error {
	charUUID, err := bluetooth.ParseUUID(s.characteristic)
	if err != nil {
		return errors.New(err).
			Component("sources").
			Category(errors.CategoryConfiguration).
			Context("characteristic", s.characteristic).
			Build()
	}
	if err := s.adapter.Enable(); err != nil {
		return connectError(s.Name(), err, "stage", "enable_adapter")
	}

	result, err := s.scan(ctx)
	if err != nil {
		return err
	}

	params := bluetooth.ConnectionParams{}
	if s.connectTimeout > 0 {
		params.ConnectionTimeout = bluetooth.NewDuration(s.connectTimeout)
	}
	device, err := s.adapter.Connect(result.Address, params)
	if err != nil {
		return connectError(s.Name(), err, "address", result.Address.String())
	}

	char, err := findCharacteristic(device, charUUID)
	if err != nil {
		_ = device.Disconnect()
		return connectError(s.Name(), err, "characteristic", s.characteristic)
	}

	reader := newChanReader(bleBacklog, s.readTimeout)
	s.adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if !connected && d.Address == device.Address {
			reader.Fail(lostError(s.Name(), errors.NewStd("device disconnected")))
		}
	})
	if err := char.EnableNotifications(reader.Deliver); err != nil {
		_ = device.Disconnect()
		return connectError(s.Name(), err, "stage", "enable_notifications")
	}

	s.mu.Lock()
	s.device = &device
	s.reader = reader
	s.mu.Unlock()

	GetLogger().Info("connected to ring",
		logger.String("source", s.Name()),
		logger.String("name", result.LocalName()),
		logger.String("address", result.Address.String()),
		logger.Int("rssi", int(result.RSSI)))
	return nil
}

func (s *BLESource) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- s.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			if s.matches(r.LocalName(), r.Address.String()) {
				select {
				case found <- r:
				default:
				}
				_ = a.StopScan()
			}
		})
	}()

	timeout := s.scanTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	stopAndWait := func() {
		_ = s.adapter.StopScan()
		<-scanErr
	}

	select {
	case r := <-found:
		<-scanErr
		return r, nil
	case err := <-scanErr:
		select {
		case r := <-found:
			return r, nil
		default:
		}
		if err == nil {
			err = errors.NewStd("scan stopped")
		}
		return bluetooth.ScanResult{}, connectError(s.Name(), err, "device_name", s.deviceName)
	case <-timer.C:
		stopAndWait()
		return bluetooth.ScanResult{}, connectError(s.Name(), errors.NewStd("device not found"),
			"device_name", s.deviceName, "scan_timeout", timeout.String())
	case <-ctx.Done():
		stopAndWait()
		return bluetooth.ScanResult{}, connectError(s.Name(), ctx.Err(), "device_name", s.deviceName)
	}
}

func findCharacteristic(device bluetooth.Device, id bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	services, err := device.DiscoverServices(nil)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, err
	}
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{id})
		if err != nil || len(chars) == 0 {
			continue
		}
		return chars[0], nil
	}
	return bluetooth.DeviceCharacteristic{}, errors.NewStd("characteristic not found")
}

// Read returns the next notification payload.
func (s *BLESource) Read(p []byte) (int, error) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return 0, lostError(s.Name(), errors.NewStd("not connected"))
	}
	return reader.Read(p)
}

// Close disconnects from the ring, unblocking Read.
func (s *BLESource) Close() error {
	s.mu.Lock()
	device, reader := s.device, s.reader
	s.device, s.reader = nil, nil
	s.mu.Unlock()

	if reader != nil {
		reader.Close()
	}
	if device == nil {
		return nil
	}
	return device.Disconnect()
}
