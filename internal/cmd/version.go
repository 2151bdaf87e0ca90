package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dagucloud/azpipe/internal/cmn/config"
)

// Version returns the version command.
func Version() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the binary version",
		Long:  `Print the current version of the azpipe executable.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.Version)
			return err
		},
	}
}
