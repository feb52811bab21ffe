package file

import (
	"github.com/spf13/cobra"

	"github.com/sawring/sawring/internal/analysis"
	"github.com/sawring/sawring/internal/conf"
)

// Command creates the command for offline analysis of one recording.
func Command(settings *conf.Settings) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze a recorded WAV file",
		Long:  "Replay a 16-bit recording through the pipeline as fast as possible and print the gesture events it produces.",
		Args:  cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Source.Type = conf.SourceFile
			settings.Source.File.Path = args[0]
			settings.Source.File.Realtime = false

			_, err := analysis.File(cmd.Context(), settings, analysis.FileOptions{
				Path:   args[0],
				Format: format,
			}, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", analysis.FormatTable, "Output format: table, json")
	return cmd
}
