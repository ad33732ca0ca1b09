package cmd

import (
	"os"

	"github.com/craterun/craterun/pkg/craterun"
	"github.com/spf13/cobra"
)

func NewLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs <id>",
		Short: "Print the captured stdout and stderr of a container",
		Args:  cobra.ExactArgs(1),
		RunE:  ShowLogs,
	}
}

func ShowLogs(cmd *cobra.Command, args []string) error {
	c, err := craterun.New()
	if err != nil {
		return err
	}
	return c.Logs(args[0], os.Stdout, os.Stderr)
}
