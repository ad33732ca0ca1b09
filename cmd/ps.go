package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/craterun/craterun/pkg/craterun"
	"github.com/craterun/craterun/pkg/tools"
	"github.com/craterun/craterun/pkg/types"
	"github.com/spf13/cobra"
)

func NewPsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List containers",
		Args:  cobra.NoArgs,
		RunE:  ListContainers,
	}

	cmd.Flags().BoolP("json", "j", false, "Print output in JSON format")

	return cmd
}

func ListContainers(cmd *cobra.Command, args []string) error {
	jsonFlag, _ := cmd.Flags().GetBool("json")

	c, err := craterun.New()
	if err != nil {
		return err
	}

	metas, err := c.Ps()
	if err != nil {
		return err
	}

	if jsonFlag {
		out, err := json.MarshalIndent(metas, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	header := []string{"Container ID", "PID", "Status", "Created", "Command"}
	data := [][]string{}
	for _, meta := range metas {
		data = append(data, []string{
			meta.Id,
			pidColumn(meta),
			string(meta.Status),
			meta.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
			commandColumn(meta),
		})
	}
	tools.ShowTable(header, data)
	return nil
}

func pidColumn(meta types.ContainerMeta) string {
	if meta.Pid == nil {
		return "-"
	}
	return strconv.Itoa(*meta.Pid)
}

func commandColumn(meta types.ContainerMeta) string {
	joined := strings.Join(meta.Cmd, " ")
	if len(joined) > 40 {
		return joined[:37] + "..."
	}
	return joined
}
