package main

import (
	"fmt"
	"os"

	"github.com/craterun/craterun/cmd"
	"github.com/craterun/craterun/pkg/craterun"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "craterun",
		Short:         "minimal single-host Linux container runtime",
		Long:          `craterun isolates commands in kernel namespaces with cgroup v2 limits and a pivot_root'ed root filesystem`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cmd.NewRunCommand())
	rootCmd.AddCommand(cmd.NewPsCommand())
	rootCmd.AddCommand(cmd.NewLogsCommand())
	rootCmd.AddCommand(cmd.NewExecCommand())
	rootCmd.AddCommand(cmd.NewRmCommand())
	rootCmd.AddCommand(cmd.NewSpawnCommand())
	rootCmd.AddCommand(cmd.NewGenSchemaCommand())

	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "craterun:", err)
		os.Exit(craterun.ExitCode(err))
	}
}
