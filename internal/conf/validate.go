// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateSourceSettings,
		validateFrameSettings,
		validateDisplaySettings,
		validateSpectrogramSettings,
		validateFeatureSettings,
		validateClassifierSettings,
		validateEventSettings,
		validateMQTTSettings,
		validateNotifySettings,
		validateWebServerSettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateSourceSettings(s *Settings) error {
	src := &s.Source
	if src.ConnectTimeout <= 0 {
		return fmt.Errorf("source.connecttimeout must be positive")
	}
	if src.ReadTimeout <= 0 {
		return fmt.Errorf("source.readtimeout must be positive")
	}
	if src.ReconnectDelay < 0 {
		return fmt.Errorf("source.reconnectdelay must not be negative")
	}

	switch src.Type {
	case SourceTCP:
		if _, _, err := net.SplitHostPort(src.TCP.Address); err != nil {
			return fmt.Errorf("source.tcp.address %q: %w", src.TCP.Address, err)
		}
	case SourceUDP:
		if _, _, err := net.SplitHostPort(src.UDP.Listen); err != nil {
			return fmt.Errorf("source.udp.listen %q: %w", src.UDP.Listen, err)
		}
		if src.UDP.LossThreshold < 0 || src.UDP.LossThreshold > 1 {
			return fmt.Errorf("source.udp.lossthreshold must be between 0 and 1")
		}
	case SourceBLE:
		if src.BLE.DeviceName == "" && src.BLE.DeviceAddress == "" {
			return fmt.Errorf("source.ble needs a devicename or a deviceaddress")
		}
		if _, err := uuid.Parse(src.BLE.Characteristic); err != nil {
			return fmt.Errorf("source.ble.characteristic %q is not a UUID", src.BLE.Characteristic)
		}
	case SourceSerial:
		if src.Serial.Port == "" {
			return fmt.Errorf("source.serial.port is required")
		}
		if src.Serial.BaudRate <= 0 {
			return fmt.Errorf("source.serial.baudrate must be positive")
		}
	case SourceSoundcard:
	case SourceFile:
		if src.File.Path == "" {
			return fmt.Errorf("source.file.path is required")
		}
	default:
		return fmt.Errorf("unknown source.type %q", src.Type)
	}
	return nil
}

func validateFrameSettings(s *Settings) error {
	if s.Frame.SampleWidth != 2 {
		return fmt.Errorf("frame.samplewidth must be 2, got %d", s.Frame.SampleWidth)
	}
	if s.Frame.SampleRate <= 0 {
		return fmt.Errorf("frame.samplerate must be positive")
	}
	if s.Frame.SizeBytes < 0 || s.Frame.SizeBytes%s.Frame.SampleWidth != 0 {
		return fmt.Errorf("frame.sizebytes must be a non-negative multiple of %d", s.Frame.SampleWidth)
	}
	return nil
}

func validateDisplaySettings(s *Settings) error {
	if s.Display.Multiplier < 1 {
		return fmt.Errorf("display.multiplier must be at least 1")
	}
	if s.Display.Tick <= 0 {
		return fmt.Errorf("display.tick must be positive")
	}
	return nil
}

func validateWindowing(prefix string, nfft, hop, nmels int) error {
	switch {
	case nfft < 2:
		return fmt.Errorf("%s.nfft must be at least 2", prefix)
	case hop < 1 || hop > nfft:
		return fmt.Errorf("%s.hoplength must be between 1 and nfft", prefix)
	case nmels < 1:
		return fmt.Errorf("%s.nmels must be positive", prefix)
	}
	return nil
}

func validateSpectrogramSettings(s *Settings) error {
	sp := &s.Spectrogram
	if err := validateWindowing("spectrogram", sp.NFFT, sp.HopLength, sp.NMels); err != nil {
		return err
	}
	if sp.TimeSteps < 1 {
		return fmt.Errorf("spectrogram.timesteps must be positive")
	}
	nyquist := float64(s.Frame.SampleRate) / 2
	if sp.FMin < 0 || (sp.FMax != 0 && (sp.FMax <= sp.FMin || sp.FMax > nyquist)) {
		return fmt.Errorf("spectrogram fmin/fmax must satisfy 0 <= fmin < fmax <= %.0f", nyquist)
	}
	if sp.FloorDB >= 0 {
		return fmt.Errorf("spectrogram.floordb must be negative")
	}
	return nil
}

func validateFeatureSettings(s *Settings) error {
	f := &s.Features
	if err := validateWindowing("features", f.NFFT, f.HopLength, f.NMels); err != nil {
		return err
	}
	if f.FixedWidth < 1 {
		return fmt.Errorf("features.fixedwidth must be positive")
	}
	if f.Window <= 0 {
		return fmt.Errorf("features.window must be positive")
	}
	if f.Trim != TrimKeepLatest && f.Trim != TrimKeepEarliest {
		return fmt.Errorf("features.trim must be %q or %q", TrimKeepLatest, TrimKeepEarliest)
	}
	p := &f.PCEN
	if p.TimeConstant <= 0 || p.Bias <= 0 || p.Power <= 0 || p.Eps <= 0 || p.Gain < 0 {
		return fmt.Errorf("features.pcen constants must be positive")
	}
	return nil
}

func validateClassifierSettings(s *Settings) error {
	if s.Classifier.Threads < 0 {
		return fmt.Errorf("classifier.threads must not be negative")
	}
	if s.Classifier.Interval <= 0 {
		return fmt.Errorf("classifier.interval must be positive")
	}
	return nil
}

func validateEventSettings(s *Settings) error {
	e := &s.Events
	switch {
	case e.HighThreshold <= 0 || e.HighThreshold > 1:
		return fmt.Errorf("events.highthreshold must be in (0,1]")
	case e.LowThreshold < 0 || e.LowThreshold >= e.HighThreshold:
		return fmt.Errorf("events.lowthreshold must be in [0, highthreshold)")
	case e.TriggerFrames < 1 || e.MissFrames < 1:
		return fmt.Errorf("events.triggerframes and events.missframes must be at least 1")
	case e.Cooldown < 0:
		return fmt.Errorf("events.cooldown must not be negative")
	case e.BusBuffer < 1 || e.BusWorkers < 1:
		return fmt.Errorf("events.busbuffer and events.busworkers must be at least 1")
	}
	if s.Queue.Capacity < 1 {
		return fmt.Errorf("queue.capacity must be at least 1")
	}
	return nil
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}
	u, err := url.Parse(s.MQTT.Broker)
	if err != nil || u.Host == "" {
		return fmt.Errorf("mqtt.broker %q is not a valid broker URL", s.MQTT.Broker)
	}
	if strings.TrimSpace(s.MQTT.Topic) == "" {
		return fmt.Errorf("mqtt.topic is required")
	}
	if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}

func validateNotifySettings(s *Settings) error {
	if s.Notify.Enabled && len(s.Notify.URLs) == 0 {
		return fmt.Errorf("notify.urls must not be empty when notifications are enabled")
	}
	return nil
}

func validateWebServerSettings(s *Settings) error {
	if !s.WebServer.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.WebServer.Listen); err != nil {
		return fmt.Errorf("webserver.listen %q: %w", s.WebServer.Listen, err)
	}
	return nil
}
