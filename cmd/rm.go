package cmd

import (
	"fmt"

	"github.com/craterun/craterun/pkg/craterun"
	"github.com/spf13/cobra"
)

func NewRmCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a container",
		Args:  cobra.ExactArgs(1),
		RunE:  RemoveContainer,
	}

	cmd.Flags().Bool("force", false, "Kill and remove a running container")

	return cmd
}

func RemoveContainer(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	c, err := craterun.New()
	if err != nil {
		return err
	}

	id, err := c.Rm(args[0], force)
	if err != nil {
		return err
	}

	fmt.Printf("Removed container %s\n", id)
	return nil
}
