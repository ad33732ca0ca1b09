package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/craterun/craterun/pkg/craterun"
	"github.com/craterun/craterun/pkg/logger"
	"github.com/craterun/craterun/pkg/types"
	"github.com/spf13/cobra"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run --rootfs PATH [flags] -- CMD [ARGS...]",
		Short: "Create and run a new container",
		Long: `Create and run a new container.

The command after -- becomes the container's init process (PID 1). The
container's stdout and stderr are captured to log files; the full container
ID is printed before the command starts. The process exits with the
container's own exit code (128+signum for signal death).`,
		Args: cobra.MinimumNArgs(1),
		RunE: RunContainer,
	}

	cmd.Flags().String("rootfs", "", "path to the root filesystem (e.g. an extracted Alpine minirootfs)")
	cmd.Flags().Uint64("memory", 0, "memory limit in bytes (cgroup memory.max)")
	cmd.Flags().Uint32("pids", 0, "maximum number of PIDs (cgroup pids.max)")
	cmd.Flags().String("cpu", "", `CPU bandwidth as "QUOTA PERIOD" in microseconds (cgroup cpu.max)`)
	cmd.Flags().String("hostname", "", "hostname inside the container (default: first 12 chars of the ID)")
	cmd.Flags().BoolP("verbose", "v", false, "Enable verbose output")
	cmd.MarkFlagRequired("rootfs")

	return cmd
}

func RunContainer(cmd *cobra.Command, args []string) error {
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetVerbose()
	}

	rootfs, _ := cmd.Flags().GetString("rootfs")
	hostname, _ := cmd.Flags().GetString("hostname")

	limits, err := parseLimits(cmd)
	if err != nil {
		return err
	}

	config := types.ContainerConfig{
		Rootfs:   rootfs,
		Cmd:      args,
		Hostname: hostname,
		Limits:   limits,
	}

	c, err := craterun.New()
	if err != nil {
		return err
	}

	result, err := c.Run(config)
	if err != nil {
		return err
	}

	os.Exit(result.ExitCode)
	return nil
}

func parseLimits(cmd *cobra.Command) (limits types.Limits, err error) {
	if cmd.Flags().Changed("memory") {
		memory, _ := cmd.Flags().GetUint64("memory")
		limits.Memory = &memory
	}
	if cmd.Flags().Changed("pids") {
		pids, _ := cmd.Flags().GetUint32("pids")
		limits.Pids = &pids
	}
	if cmd.Flags().Changed("cpu") {
		raw, _ := cmd.Flags().GetString("cpu")
		cpu, parseErr := parseCpuMax(raw)
		if parseErr != nil {
			return limits, parseErr
		}
		limits.Cpu = cpu
	}
	return limits, nil
}

func parseCpuMax(raw string) (*types.CpuMax, error) {
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: --cpu wants \"QUOTA PERIOD\", got %q", craterun.ErrConfig, raw)
	}
	quota, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CPU quota %q", craterun.ErrConfig, fields[0])
	}
	period, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid CPU period %q", craterun.ErrConfig, fields[1])
	}
	return &types.CpuMax{QuotaUs: quota, PeriodUs: period}, nil
}
