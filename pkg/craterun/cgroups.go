package craterun

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/craterun/craterun/pkg/logger"
	"github.com/craterun/craterun/pkg/types"
)

// DefaultCgroupRoot is the mount point of the unified cgroup v2 hierarchy.
const DefaultCgroupRoot = "/sys/fs/cgroup"

const cgroupPrefix = "craterun-"

// Cgroups manages per-container cgroup v2 subtrees under Root.
type Cgroups struct {
	Root string
}

// NewCgroups returns a controller targeting the system cgroup v2 hierarchy.
func NewCgroups() *Cgroups {
	return &Cgroups{Root: DefaultCgroupRoot}
}

// CgroupHandle is an open handle on a container's cgroup directory.
type CgroupHandle struct {
	Path string
}

func (c *Cgroups) path(id string) string {
	return filepath.Join(c.Root, cgroupPrefix+id)
}

// Create makes the cgroup directory for a container. It fails if the
// directory already exists or the hierarchy at Root is not cgroup v2.
func (c *Cgroups) Create(id string) (*CgroupHandle, error) {
	if _, err := os.Stat(filepath.Join(c.Root, "cgroup.controllers")); err != nil {
		return nil, fmt.Errorf("%w: no cgroup v2 hierarchy at %s: %v", ErrKernel, c.Root, err)
	}

	path := c.path(id)
	if err := os.Mkdir(path, 0755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: cgroup %s already exists", ErrKernel, path)
		}
		return nil, kernelError("creating cgroup "+path, err)
	}
	return &CgroupHandle{Path: path}, nil
}

// SetMemoryMax writes the memory limit in bytes to memory.max.
func (h *CgroupHandle) SetMemoryMax(bytes uint64) error {
	return h.write("memory.max", strconv.FormatUint(bytes, 10))
}

// SetPidsMax writes the process-count limit to pids.max.
func (h *CgroupHandle) SetPidsMax(n uint32) error {
	return h.write("pids.max", strconv.FormatUint(uint64(n), 10))
}

// SetCpuMax writes the CPU bandwidth pair to cpu.max.
func (h *CgroupHandle) SetCpuMax(quotaUs, periodUs uint64) error {
	return h.write("cpu.max", fmt.Sprintf("%d %d", quotaUs, periodUs))
}

// ApplyLimits applies every configured limit to the cgroup.
func (h *CgroupHandle) ApplyLimits(limits types.Limits) error {
	if limits.Memory != nil {
		if err := h.SetMemoryMax(*limits.Memory); err != nil {
			return err
		}
	}
	if limits.Pids != nil {
		if err := h.SetPidsMax(*limits.Pids); err != nil {
			return err
		}
	}
	if limits.Cpu != nil {
		if err := h.SetCpuMax(limits.Cpu.QuotaUs, limits.Cpu.PeriodUs); err != nil {
			return err
		}
	}
	return nil
}

// Admit moves a process (and its future descendants) into the cgroup.
func (h *CgroupHandle) Admit(pid int) error {
	return h.write("cgroup.procs", strconv.Itoa(pid))
}

func (h *CgroupHandle) write(name, value string) error {
	file := filepath.Join(h.Path, name)
	if err := os.WriteFile(file, []byte(value), 0644); err != nil {
		return kernelError(fmt.Sprintf("writing %q to %s", value, file), err)
	}
	return nil
}

// Destroy tears down a container's cgroup: kill the subtree if the kernel
// supports cgroup.kill, wait briefly for cgroup.procs to drain, then remove
// the directory. Teardown is best-effort; failures are logged, never
// propagated, so they cannot mask the container's own exit code.
func (c *Cgroups) Destroy(id string) {
	path := c.path(id)
	if _, err := os.Stat(path); err != nil {
		return
	}

	killFile := filepath.Join(path, "cgroup.kill")
	if _, err := os.Stat(killFile); err == nil {
		if err := os.WriteFile(killFile, []byte("1"), 0644); err != nil {
			logger.Warnf("cgroup kill for %s failed: %v", id, err)
		}
	}

	for i := 0; i < 20; i++ {
		if c.drained(path) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := os.Remove(path); err != nil {
		logger.Warnf("cannot remove cgroup %s: %v", path, err)
	}
}

func (c *Cgroups) drained(path string) bool {
	data, err := os.ReadFile(filepath.Join(path, "cgroup.procs"))
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(data)) == ""
}
