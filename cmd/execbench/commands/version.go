package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/execkit/version"
)

func newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			switch {
			case jsonOutput:
				return writeOutput(cmd.OutOrStdout(), info, true)
			case short:
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.Short())
				return err
			default:
				_, err := fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return err
			}
		},
	}

	cmd.Flags().BoolVar(&short, "short", false, "print the version only")
	return cmd
}
