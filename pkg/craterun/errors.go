package craterun

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Error kinds. Every error returned by the engine wraps exactly one of these
// so the CLI can map it to an exit status.
var (
	// ErrConfig marks a bad rootfs, an empty command, or unparseable limits.
	ErrConfig = errors.New("invalid configuration")

	// ErrPermission marks an EPERM-class failure on a privileged operation.
	ErrPermission = errors.New("permission denied")

	// ErrKernel marks any other syscall or kernel-interface failure.
	ErrKernel = errors.New("kernel operation failed")

	// ErrState marks missing, ambiguous, or corrupt container state.
	ErrState = errors.New("container state error")
)

// Exit statuses used by the spawned container init before the user command
// takes over. 125 is a setup failure between clone and execve, 127 is an
// execve failure; both are distinguishable from the user command's own codes.
const (
	ExitSetupFailed = 125
	ExitExecFailed  = 127
)

// ExitCode maps an engine error to the process exit status: 2 for
// configuration errors, 1 for everything else, 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, ErrConfig) {
		return 2
	}
	return 1
}

// kernelError wraps a syscall failure, promoting EPERM/EACCES to the
// permission kind so the message names the operation that needed root.
func kernelError(op string, err error) error {
	if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s requires root privileges: %v", ErrPermission, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrKernel, op, err)
}
