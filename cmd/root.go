package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sawring/sawring/cmd/file"
	"github.com/sawring/sawring/cmd/labels"
	"github.com/sawring/sawring/cmd/realtime"
	"github.com/sawring/sawring/internal/buildinfo"
	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/logger"
)

// RootCommand creates and returns the root command. settings is filled in
// from the configuration file, environment and flags before any
// subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "sawring",
		Short:         "SAW-Ring acoustic gesture receiver",
		Long:          "Receive PCM audio from a SAW-Ring sensor, render its waveform and spectrogram and detect gestures.",
		Version:       buildinfo.Current().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		file.Command(settings),
		labels.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(configFile, settings)
	}

	return rootCmd
}

// initialize loads configuration and installs the global logger before any
// subcommand runs.
func initialize(configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config.yaml (default: ~/.config/sawring/config.yaml)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("model", "", "Path to the gesture .tflite model")
	flags.String("labels", "", "Path to the labels yaml file")

	for key, flag := range map[string]string{
		"debug":                "debug",
		"classifier.modelpath": "model",
		"classifier.labelpath": "labels",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
