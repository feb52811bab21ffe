package labels

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sawring/sawring/internal/classifier"
	"github.com/sawring/sawring/internal/conf"
)

// Command creates the command that prints the active label set.
func Command(settings *conf.Settings) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Print the gesture labels and their actions",
		Long:  "Print the label set the classifier uses, either the configured labels file or the built-in gestures. The YAML form is a valid labels file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			labels, err := classifier.LoadLabels(settings.Classifier.LabelPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(labels); err != nil {
					return err
				}
				return enc.Close()
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tLABEL\tACTION")
			for i, l := range labels.Classes {
				action := l.Action
				switch {
				case l.Name == labels.Background:
					action = "(background)"
				case action == "":
					action = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, l.Name, action)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print as a labels file")
	return cmd
}
