package realtime

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sawring/sawring/internal/analysis"
	"github.com/sawring/sawring/internal/conf"
)

// Command creates the command for live capture from the ring.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Receive and analyze the sensor stream",
		Long:  "Connect to the configured transport, keep the display buffers current and publish gesture events until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Realtime(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// setupFlags configures flags specific to the realtime command. Values
// override the configuration file through viper.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("source", "", "Transport: ble, tcp, udp, serial, soundcard or file")
	flags.String("tcp", "", "host:port of the TCP sensor bridge")
	flags.String("udp", "", "Listen address for UDP datagrams")
	flags.String("ble", "", "Advertised BLE device name")
	flags.String("serial", "", "Serial device path")
	flags.String("device", "", "Sound card capture device")
	flags.String("replay", "", "WAV file to replay at stream speed")
	flags.String("listen", "", "Listen address of the HTTP API")
	flags.Bool("mqtt", false, "Publish events to the configured MQTT broker")
	flags.Bool("telemetry", false, "Expose Prometheus metrics on /metrics")

	for key, flag := range map[string]string{
		"source.type":             "source",
		"source.tcp.address":      "tcp",
		"source.udp.listen":       "udp",
		"source.ble.devicename":   "ble",
		"source.serial.port":      "serial",
		"source.soundcard.device": "device",
		"source.file.path":        "replay",
		"webserver.listen":        "listen",
		"mqtt.enabled":            "mqtt",
		"telemetry.enabled":       "telemetry",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
