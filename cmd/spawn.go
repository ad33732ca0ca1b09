package cmd

/*
craterun spawn --id <id> --rootfs <path> --hostname <name> -- CMD [ARGS...]

Internal: the container-init half of `run`. The parent clones this process
into fresh pid/mount/uts/ipc/net namespaces with the synchronization pipe's
read end as fd 3 and the log files as stdout/stderr.
*/

import (
	"fmt"
	"os"
	"syscall"

	"github.com/craterun/craterun/pkg/craterun"
	"github.com/craterun/craterun/pkg/tools"
	"github.com/spf13/cobra"
)

// syncFd is the file descriptor number of the inherited barrier pipe.
const syncFd = 3

func NewSpawnCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "spawn",
		Short:  "Container init entry point (internal)",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		Run:    SpawnContainer,
	}

	cmd.Flags().String("id", "", "container id")
	cmd.Flags().String("rootfs", "", "canonical rootfs path")
	cmd.Flags().String("hostname", "", "hostname to set in the UTS namespace")

	return cmd
}

// SpawnContainer never returns: it either execs the user command or exits
// with 125 (setup failure) / 127 (exec failure). Errors cannot be returned
// to the parent process; diagnostics go to stderr, which is the container's
// stderr log.
func SpawnContainer(cmd *cobra.Command, args []string) {
	rootfs, _ := cmd.Flags().GetString("rootfs")
	hostname, _ := cmd.Flags().GetString("hostname")

	// Block until the parent has admitted this process to its cgroup. EOF
	// means the parent died before releasing us; nothing must run then.
	sync := os.NewFile(syncFd, "sync")
	if sync == nil {
		spawnFatal("synchronization pipe (fd 3) not inherited", nil)
	}
	buf := make([]byte, 1)
	if n, err := sync.Read(buf); n != 1 {
		spawnFatal("synchronization pipe closed before release", err)
	}
	sync.Close()

	if err := syscall.Sethostname([]byte(hostname)); err != nil {
		spawnFatal("sethostname", err)
	}

	if err := tools.SetupRootfs(rootfs); err != nil {
		spawnFatal("rootfs setup", err)
	}

	env := []string{
		"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
		"HOSTNAME=" + hostname,
		"TERM=xterm",
		"HOME=/root",
	}
	if err := syscall.Exec(args[0], args, env); err != nil {
		fmt.Fprintf(os.Stderr, "craterun: exec %s: %v\n", args[0], err)
		os.Exit(craterun.ExitExecFailed)
	}
}

func spawnFatal(op string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "craterun: container setup failed: %s: %v\n", op, err)
	} else {
		fmt.Fprintf(os.Stderr, "craterun: container setup failed: %s\n", op)
	}
	os.Exit(craterun.ExitSetupFailed)
}
