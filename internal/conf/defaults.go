// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values on the global viper instance.
func setDefaultConfig() {
	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/sawring.log")
	v.SetDefault("logging.file_output.level", "debug")
	v.SetDefault("logging.file_output.max_size", 100)
	v.SetDefault("logging.file_output.max_backups", 3)
	v.SetDefault("logging.file_output.max_age", 28)
	v.SetDefault("logging.file_output.compress", false)

	v.SetDefault("source.type", SourceBLE)
	v.SetDefault("source.connecttimeout", 5*time.Second)
	v.SetDefault("source.readtimeout", 2*time.Second)
	v.SetDefault("source.reconnectdelay", 3*time.Second)
	v.SetDefault("source.tcp.address", "192.168.4.1:8080")
	v.SetDefault("source.tcp.nodelay", true)
	v.SetDefault("source.udp.listen", "0.0.0.0:8000")
	v.SetDefault("source.udp.readbuffer", 65536)
	v.SetDefault("source.udp.lossthreshold", 0.10)
	v.SetDefault("source.ble.devicename", "SAW-Ring")
	v.SetDefault("source.ble.deviceaddress", "")
	v.SetDefault("source.ble.characteristic", "13b73498-101b-4f22-aa2b-a72c6710e54f")
	v.SetDefault("source.ble.scantimeout", 10*time.Second)
	v.SetDefault("source.serial.port", "/dev/ttyACM0")
	v.SetDefault("source.serial.baudrate", 921600)
	v.SetDefault("source.soundcard.device", "")
	v.SetDefault("source.file.path", "")
	v.SetDefault("source.file.realtime", true)

	v.SetDefault("frame.sizebytes", 0)
	v.SetDefault("frame.samplerate", 24000)
	v.SetDefault("frame.samplewidth", 2)

	v.SetDefault("display.multiplier", 10)
	v.SetDefault("display.tick", 16*time.Millisecond)

	v.SetDefault("spectrogram.nfft", 1024)
	v.SetDefault("spectrogram.hoplength", 256)
	v.SetDefault("spectrogram.nmels", 128)
	v.SetDefault("spectrogram.timesteps", 100)
	v.SetDefault("spectrogram.fmin", 0.0)
	v.SetDefault("spectrogram.fmax", 0.0)
	v.SetDefault("spectrogram.floordb", -80.0)

	v.SetDefault("features.nfft", 1024)
	v.SetDefault("features.hoplength", 256)
	v.SetDefault("features.nmels", 128)
	v.SetDefault("features.fixedwidth", 188)
	v.SetDefault("features.window", 2*time.Second)
	v.SetDefault("features.removedc", true)
	v.SetDefault("features.trim", TrimKeepLatest)
	v.SetDefault("features.pcen.timeconstant", 0.3)
	v.SetDefault("features.pcen.gain", 0.98)
	v.SetDefault("features.pcen.bias", 2.0)
	v.SetDefault("features.pcen.power", 0.5)
	v.SetDefault("features.pcen.eps", 1e-6)

	v.SetDefault("classifier.modelpath", "")
	v.SetDefault("classifier.labelpath", "")
	v.SetDefault("classifier.threads", 0)
	v.SetDefault("classifier.xnnpack", false)
	v.SetDefault("classifier.interval", 350*time.Millisecond)

	v.SetDefault("events.highthreshold", 0.85)
	v.SetDefault("events.lowthreshold", 0.60)
	v.SetDefault("events.triggerframes", 2)
	v.SetDefault("events.missframes", 2)
	v.SetDefault("events.cooldown", 1500*time.Millisecond)
	v.SetDefault("events.recentttl", 10*time.Minute)
	v.SetDefault("events.busbuffer", 64)
	v.SetDefault("events.busworkers", 1)

	v.SetDefault("queue.capacity", 256)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "sawring")
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("notify.onend", false)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", "127.0.0.1:8090")

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sentrydsn", "")
}
