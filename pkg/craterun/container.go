/*
* Copyright (c) 2025 FABRICATORS S.R.L.
* Licensed under the Fabricators Public Access License (FPAL) v1.0
* See https://github.com/fabricatorsltd/FPAL for details.
 */
package craterun

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/craterun/craterun/pkg/logger"
	"github.com/craterun/craterun/pkg/tools"
	"github.com/craterun/craterun/pkg/types"
	"github.com/creack/pty"
	"golang.org/x/term"
)

// RunResult is the outcome of running a container to completion.
type RunResult struct {
	// Id is the container's assigned ID.
	Id string

	// ExitCode is the CLI exit status: the init process's own exit code,
	// or 128+signum when it died from a signal.
	ExitCode int
}

// Run creates and runs a container to completion: it validates the config,
// allocates an ID and state directory, clones the container init into fresh
// namespaces via the hidden spawn subcommand, admits it to a new cgroup,
// releases it through the synchronization pipe, and blocks until it exits.
//
// Ordering is the whole point here. The spawned process is created with
// CLONE_NEWPID so it is PID 1 of the new PID namespace and its host PID is
// the clone return value; it then blocks on the pipe until the parent has
// finished cgroup admission, so not a single byte of user code runs outside
// the cgroup.
func (c *Craterun) Run(config types.ContainerConfig) (result RunResult, err error) {
	if err = ValidateConfig(&config); err != nil {
		return
	}

	id := NewId()
	if config.Hostname == "" {
		config.Hostname = id[:12]
	}
	result.Id = id

	stdout, err := c.Store.OpenLogAppend(id, StdoutLog)
	if err != nil {
		return
	}
	defer stdout.Close()
	stderr, err := c.Store.OpenLogAppend(id, StderrLog)
	if err != nil {
		return
	}
	defer stderr.Close()

	meta := types.ContainerMeta{
		Id:        id,
		Rootfs:    config.Rootfs,
		Cmd:       config.Cmd,
		Hostname:  config.Hostname,
		Limits:    config.Limits,
		Status:    types.StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err = c.Store.Save(meta); err != nil {
		return
	}

	// One-shot parent->child barrier. The child inherits the read end as
	// fd 3 and blocks on it until the parent has admitted it to the cgroup.
	syncRead, syncWrite, err := os.Pipe()
	if err != nil {
		return result, fmt.Errorf("%w: cannot create synchronization pipe: %v", ErrKernel, err)
	}
	defer syncWrite.Close()

	args := []string{"spawn",
		"--id", id,
		"--rootfs", config.Rootfs,
		"--hostname", config.Hostname,
		"--",
	}
	args = append(args, config.Cmd...)

	cmd := exec.Command("/proc/self/exe", args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{syncRead}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWNS |
			syscall.CLONE_NEWPID |
			syscall.CLONE_NEWUTS |
			syscall.CLONE_NEWIPC |
			syscall.CLONE_NEWNET,
	}

	if err = cmd.Start(); err != nil {
		syncRead.Close()
		c.Store.Delete(id)
		return result, kernelError("cloning container init", err)
	}
	syncRead.Close()

	pid := cmd.Process.Pid
	startedAt := time.Now().UTC()
	logger.Debugf("container %s init cloned with host pid %d", id, pid)

	// The ID goes to stdout before the container is released; the
	// container's own stdout lands in its log file, never here.
	fmt.Println(id)

	cgroup, err := c.Cgroups.Create(id)
	if err == nil {
		err = cgroup.ApplyLimits(config.Limits)
	}
	if err == nil {
		err = cgroup.Admit(pid)
	}
	if err != nil {
		c.abortLaunch(id, cmd)
		return
	}

	// Release the barrier: the child may now run user code.
	if _, err = syncWrite.Write([]byte{1}); err != nil {
		c.abortLaunch(id, cmd)
		return result, fmt.Errorf("%w: cannot release container init: %v", ErrKernel, err)
	}
	syncWrite.Close()

	meta.Status = types.StatusRunning
	meta.Pid = &pid
	meta.StartedAt = &startedAt
	if err = c.Store.Save(meta); err != nil {
		c.abortLaunch(id, cmd)
		return
	}

	waitErr := cmd.Wait()
	if waitErr != nil {
		if _, ok := waitErr.(*exec.ExitError); !ok {
			// The wait itself failed; the exit status is unknowable.
			c.Cgroups.Destroy(id)
			return result, fmt.Errorf("%w: waiting for container init: %v", ErrKernel, waitErr)
		}
	}

	stored, cli := exitCodes(cmd.ProcessState.Sys().(syscall.WaitStatus))
	result.ExitCode = cli

	stoppedAt := time.Now().UTC()
	meta.Status = types.StatusStopped
	meta.Pid = nil
	meta.ExitCode = &stored
	meta.StoppedAt = &stoppedAt
	if err = c.Store.Save(meta); err != nil {
		c.Cgroups.Destroy(id)
		return
	}

	c.Cgroups.Destroy(id)
	return result, nil
}

// abortLaunch tears down a container whose setup failed between clone and
// the running transition: the init is killed and reaped, its cgroup is
// destroyed, and the record is removed entirely. When the failure is in
// cgroup setup or the barrier write, the init has run no user code; when
// persisting the running status fails, the barrier was already released.
func (c *Craterun) abortLaunch(id string, cmd *exec.Cmd) {
	cmd.Process.Kill()
	cmd.Wait()
	c.Cgroups.Destroy(id)
	if err := c.Store.Delete(id); err != nil {
		logger.Warnf("cannot clean up aborted container %s: %v", id, err)
	}
}

// exitCodes interprets a wait status. The stored code keeps the source
// encoding (negated signal number for signal death); the CLI code follows
// shell convention (128+signum).
func exitCodes(ws syscall.WaitStatus) (stored, cli int) {
	if ws.Signaled() {
		sig := int(ws.Signal())
		return -sig, 128 + sig
	}
	code := ws.ExitStatus()
	return code, code
}

// Resolve maps an ID prefix to the full ID of an existing container.
func (c *Craterun) Resolve(prefix string) (string, error) {
	ids, err := c.Store.Ids()
	if err != nil {
		return "", err
	}
	return ResolveId(prefix, ids)
}

// Ps lists all containers, repairing stale running records on the way.
func (c *Craterun) Ps() ([]types.ContainerMeta, error) {
	metas, err := c.Store.List()
	if err != nil {
		return nil, err
	}
	for i := range metas {
		c.refreshStatus(&metas[i])
	}
	return metas, nil
}

// refreshStatus repairs a running record whose process is gone (or whose
// PID was recycled by another process). The exit code is unknowable at this
// point and stays null.
func (c *Craterun) refreshStatus(meta *types.ContainerMeta) {
	if meta.Status != types.StatusRunning {
		return
	}
	if meta.Pid != nil && tools.PidMatches(*meta.Pid, meta.StartedAt) {
		return
	}

	stoppedAt := time.Now().UTC()
	meta.Status = types.StatusStopped
	meta.Pid = nil
	meta.StoppedAt = &stoppedAt
	if err := c.Store.Save(*meta); err != nil {
		logger.Warnf("cannot repair stale container %s: %v", meta.Id, err)
	} else {
		logger.Debugf("container %s marked stopped (process gone)", meta.Id)
	}
}

// Logs streams a container's captured stdout and stderr snapshots to the
// given writers.
func (c *Craterun) Logs(prefix string, stdout, stderr io.Writer) error {
	id, err := c.Resolve(prefix)
	if err != nil {
		return err
	}

	for _, log := range []struct {
		name string
		dest io.Writer
	}{
		{StdoutLog, stdout},
		{StderrLog, stderr},
	} {
		f, err := c.Store.OpenLogRead(id, log.name)
		if err != nil {
			return err
		}
		if f == nil {
			continue
		}
		_, copyErr := io.Copy(log.dest, f)
		f.Close()
		if copyErr != nil {
			return fmt.Errorf("%w: streaming %s of %s: %v", ErrState, log.name, id, copyErr)
		}
	}
	return nil
}

// Rm removes a container. A running container is refused unless force is
// set, in which case it is SIGKILLed and given a bounded grace period to
// disappear before the record is forced to stopped. The cgroup subtree and
// the state directory are then removed. Returns the full ID.
func (c *Craterun) Rm(prefix string, force bool) (string, error) {
	id, err := c.Resolve(prefix)
	if err != nil {
		return "", err
	}
	meta, err := c.Store.Load(id)
	if err != nil {
		return "", err
	}
	c.refreshStatus(&meta)

	if meta.Status == types.StatusRunning {
		if !force {
			return "", fmt.Errorf("%w: container %s is still running (use --force)", ErrState, id)
		}
		if err := c.killAndReap(&meta); err != nil {
			return "", err
		}
	}

	c.Cgroups.Destroy(id)
	if err := c.Store.Delete(id); err != nil {
		return "", err
	}
	return id, nil
}

// rmGracePeriod bounds how long Rm waits for a SIGKILLed init to disappear.
const rmGracePeriod = 5 * time.Second

func (c *Craterun) killAndReap(meta *types.ContainerMeta) error {
	pid := *meta.Pid
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return kernelError(fmt.Sprintf("killing pid %d", pid), err)
	}

	deadline := time.Now().Add(rmGracePeriod)
	for time.Now().Before(deadline) {
		if !tools.PidMatches(pid, meta.StartedAt) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	stoppedAt := time.Now().UTC()
	meta.Status = types.StatusStopped
	meta.Pid = nil
	meta.StoppedAt = &stoppedAt
	return c.Store.Save(*meta)
}

// Exec runs a command inside a running container's namespaces via
// nsenter(1) and returns the inner command's exit code.
//
// setns(CLONE_NEWNS) requires a single-threaded caller and the Go runtime
// is never single-threaded, so the namespace transitions happen in nsenter,
// which applies the PID namespace before forking and the mount namespace
// last among the fs-affecting ones. The exec'd process stays in the host
// cgroup; the container's limits do not apply to it.
func (c *Craterun) Exec(prefix string, cmdArgs []string, tty bool) (int, error) {
	if len(cmdArgs) == 0 {
		return 0, fmt.Errorf("%w: no command specified", ErrConfig)
	}

	id, err := c.Resolve(prefix)
	if err != nil {
		return 0, err
	}
	meta, err := c.Store.Load(id)
	if err != nil {
		return 0, err
	}
	c.refreshStatus(&meta)
	if meta.Status != types.StatusRunning {
		return 0, fmt.Errorf("%w: container %s is not running", ErrState, id)
	}

	nsenterBin, err := exec.LookPath("nsenter")
	if err != nil {
		return 0, fmt.Errorf("%w: nsenter not found in PATH: %v", ErrKernel, err)
	}

	args := []string{
		"--target", strconv.Itoa(*meta.Pid),
		"--pid", "--mount", "--uts", "--ipc", "--net",
		"--",
	}
	args = append(args, cmdArgs...)
	cmd := exec.Command(nsenterBin, args...)
	logger.Debugf("entering container %s: %s", id, cmd.String())

	if tty {
		err = runWithPty(cmd)
	} else {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		err = cmd.Run()
	}

	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return 0, kernelError("executing nsenter", err)
		}
	}
	_, cli := exitCodes(cmd.ProcessState.Sys().(syscall.WaitStatus))
	return cli, nil
}

// runWithPty runs cmd attached to a fresh pseudo-terminal, proxying bytes
// between it and the calling terminal in raw mode.
func runWithPty(cmd *exec.Cmd) error {
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return err
	}
	defer ptmx.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, rawErr := term.MakeRaw(int(os.Stdin.Fd()))
		if rawErr == nil {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	go io.Copy(ptmx, os.Stdin)
	io.Copy(os.Stdout, ptmx)
	return cmd.Wait()
}
