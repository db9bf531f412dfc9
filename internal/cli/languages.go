package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fmueller/moji/internal/language"
	"github.com/spf13/cobra"
)

func newLanguagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the languages offered for --language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, option := range language.Supported() {
				code := option.Code
				if code == "" {
					code = language.Auto.String()
				}
				fmt.Fprintf(w, "%s\t%s\n", code, option.Label)
			}
			return w.Flush()
		},
	}
}
