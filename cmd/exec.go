package cmd

import (
	"os"

	"github.com/craterun/craterun/pkg/craterun"
	"github.com/craterun/craterun/pkg/logger"
	"github.com/spf13/cobra"
)

func NewExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <id> -- CMD [ARGS...]",
		Short: "Execute a command inside a running container",
		Long: `Execute a command inside a running container.

The command joins the container's pid, mount, uts, ipc, and net namespaces.
It is not placed into the container's cgroup, so resource limits do not
apply to it. The process exits with the inner command's exit code.`,
		Args: cobra.MinimumNArgs(2),
		RunE: ExecInContainer,
	}

	cmd.Flags().BoolP("tty", "t", false, "Allocate a pseudo-terminal")
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose output")

	return cmd
}

func ExecInContainer(cmd *cobra.Command, args []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetVerbose()
	}
	tty, _ := cmd.Flags().GetBool("tty")

	c, err := craterun.New()
	if err != nil {
		return err
	}

	code, err := c.Exec(args[0], args[1:], tty)
	if err != nil {
		return err
	}

	os.Exit(code)
	return nil
}
