// conf/config.go
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Transport identifiers accepted in source.type
const (
	SourceBLE       = "ble"
	SourceTCP       = "tcp"
	SourceUDP       = "udp"
	SourceSerial    = "serial"
	SourceSoundcard = "soundcard"
	SourceFile      = "file"
)

// Trim policies for the feature window
const (
	TrimKeepLatest   = "latest"
	TrimKeepEarliest = "earliest"
)

// SourceSettings selects and configures the byte-producing transport.
type SourceSettings struct {
	Type           string        // ble, tcp, udp, serial, soundcard or file
	ConnectTimeout time.Duration // explicit timeout for connect attempts
	ReadTimeout    time.Duration // read deadline on connection-oriented transports
	ReconnectDelay time.Duration // wait before reconnecting after loss, 0 disables
	TCP            struct {
		Address string // host:port of the sensor bridge
		NoDelay bool   // disable Nagle
	}
	UDP struct {
		Listen        string  // bind address
		ReadBuffer    int     // SO_RCVBUF size in bytes
		LossThreshold float64 // loss rate above which a warning is logged
	}
	BLE struct {
		DeviceName     string        // advertised local name to connect to
		DeviceAddress  string        // optional fixed address, skips name matching
		Characteristic string        // notify characteristic UUID carrying PCM
		ScanTimeout    time.Duration // how long to scan before giving up
	}
	Serial struct {
		Port     string // device path, e.g. /dev/ttyACM0
		BaudRate int    // line rate
	}
	Soundcard struct {
		Device string // capture device name substring, empty for default
	}
	File struct {
		Path     string // WAV file to replay
		Realtime bool   // pace replay at the stream's sample rate
	}
}

// FrameSettings describes the PCM framing.
type FrameSettings struct {
	SizeBytes   int // frame size; 0 picks the transport default
	SampleRate  int // Hz
	SampleWidth int // bytes per sample, only 2 is supported
}

// DisplaySettings controls the rolling waveform and the display tick.
type DisplaySettings struct {
	Multiplier int           // waveform length in frames
	Tick       time.Duration // consumer drain period
}

// SpectrogramSettings are the display spectrogram parameters.
type SpectrogramSettings struct {
	NFFT      int
	HopLength int
	NMels     int
	TimeSteps int     // rolling image width in columns
	FMin      float64 // lowest mel band edge in Hz
	FMax      float64 // highest mel band edge in Hz, 0 means Nyquist
	FloorDB   float64 // absolute dB floor, e.g. -80
}

// PCENSettings are the per-channel energy normalization constants.
type PCENSettings struct {
	TimeConstant float64
	Gain         float64
	Bias         float64
	Power        float64
	Eps          float64
}

// FeatureSettings configure the classifier input tensor.
type FeatureSettings struct {
	NFFT       int
	HopLength  int
	NMels      int
	FixedWidth int           // time columns in the tensor
	Window     time.Duration // waveform span fed to the extractor
	RemoveDC   bool          // subtract the mean before the mel transform
	Trim       string        // latest or earliest
	PCEN       PCENSettings
}

// ClassifierSettings configure the tflite model.
type ClassifierSettings struct {
	ModelPath string        // path to .tflite model, empty runs without predictions
	LabelPath string        // path to labels yaml, empty uses the built-in gesture set
	Threads   int           // interpreter threads, 0 picks from CPU topology
	XNNPACK   bool          // enable the XNNPACK delegate
	Interval  time.Duration // inference tick period
}

// EventSettings configure the hysteresis state machine and dispatch.
type EventSettings struct {
	HighThreshold float64
	LowThreshold  float64
	TriggerFrames int
	MissFrames    int
	Cooldown      time.Duration
	RecentTTL     time.Duration // how long recent events stay queryable
	BusBuffer     int           // dispatch queue size
	BusWorkers    int
}

// QueueSettings size the producer/consumer byte queue.
type QueueSettings struct {
	Capacity int // chunks held before the oldest is dropped
}

// MQTTSettings configure event publishing.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:1883
	Topic    string // events go to <topic>/events, status to <topic>/status
	ClientID string
	Username string
	Password string
	QoS      int
	Retain   bool
}

// NotifySettings configure push notifications through shoutrrr URLs.
type NotifySettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
	OnEnd   bool // also notify on EventEnd
}

// WebServerSettings configure the HTTP API.
type WebServerSettings struct {
	Enabled bool
	Listen  string
}

// TelemetrySettings configure metrics and error reporting.
type TelemetrySettings struct {
	Enabled   bool   // expose /metrics
	SentryDSN string // empty disables error reporting
}

// Settings is the complete configuration.
type Settings struct {
	Debug bool

	Logging     logger.LoggingConfig
	Source      SourceSettings
	Frame       FrameSettings
	Display     DisplaySettings
	Spectrogram SpectrogramSettings
	Features    FeatureSettings
	Classifier  ClassifierSettings
	Events      EventSettings
	Queue       QueueSettings
	MQTT        MQTTSettings
	Notify      NotifySettings
	WebServer   WebServerSettings
	Telemetry   TelemetrySettings
}

// FrameSizeBytes returns the configured frame size or the transport default:
// 2048 bytes for TCP, 1024 for the rest.
func (s *Settings) FrameSizeBytes() int {
	if s.Frame.SizeBytes > 0 {
		return s.Frame.SizeBytes
	}
	if s.Source.Type == SourceTCP {
		return 2048
	}
	return 1024
}

// FrameSamples returns the number of samples per frame.
func (s *Settings) FrameSamples() int {
	return s.FrameSizeBytes() / s.Frame.SampleWidth
}

// WaveformSamples returns the display waveform capacity.
func (s *Settings) WaveformSamples() int {
	return s.FrameSamples() * s.Display.Multiplier
}

// FeatureWindowSamples returns the inference window length in samples.
func (s *Settings) FeatureWindowSamples() int {
	return int(s.Features.Window.Seconds() * float64(s.Frame.SampleRate))
}

var settingsMutex sync.Mutex

// Load reads configuration from the default paths or configFile, applies
// defaults and validates the result.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// Defaults returns settings built from the default values only; tests and
// the file command use it.
func Defaults() *Settings {
	v := viper.New()
	setDefaults(v)
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		panic(fmt.Sprintf("default settings do not decode: %v", err))
	}
	return settings
}

// initViper initializes viper with default values and reads the configuration file.
func initViper(configFile string) error {
	setDefaultConfig()

	viper.SetEnvPrefix("SAWRING")
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errors.New(err).
				Category(errors.CategoryConfiguration).
				Context("operation", "read_config").
				Context("path", configFile).
				Build()
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml to dir and reads it back
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))

	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If one of them already holds a config file only that one is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{
		filepath.Join(homeDir, ".config", "sawring"),
		"/etc/sawring",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}
