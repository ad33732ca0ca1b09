/*
* Copyright (c) 2025 FABRICATORS S.R.L.
* Licensed under the Fabricators Public Access License (FPAL) v1.0
* See https://github.com/fabricatorsltd/FPAL for details.
 */
package types

import "time"

// ContainerStatus is the lifecycle state of a container. Transitions are
// monotonic: created -> running -> stopped.
type ContainerStatus string

const (
	StatusCreated ContainerStatus = "created"
	StatusRunning ContainerStatus = "running"
	StatusStopped ContainerStatus = "stopped"
)

// CpuMax is the cgroup v2 cpu.max pair, both in microseconds.
type CpuMax struct {
	QuotaUs  uint64 `json:"quota_us"`
	PeriodUs uint64 `json:"period_us"`
}

// Limits holds the optional cgroup resource limits for a container. A nil
// field means the corresponding controller file is left untouched.
type Limits struct {
	Memory *uint64 `json:"memory"`
	Pids   *uint32 `json:"pids"`
	Cpu    *CpuMax `json:"cpu"`
}

// IsZero reports whether no limit is set.
func (l Limits) IsZero() bool {
	return l.Memory == nil && l.Pids == nil && l.Cpu == nil
}

// ContainerConfig is the user-supplied launch configuration. It is immutable
// after the container is created.
type ContainerConfig struct {
	// Rootfs is the path to the root filesystem of the container. It is
	// canonicalized during validation.
	Rootfs string

	// Cmd is the argv of the container init process. Must be non-empty.
	Cmd []string

	// Hostname is set inside the UTS namespace. Defaults to the first 12
	// characters of the container ID.
	Hostname string

	// Limits are the cgroup limits applied before the init process runs.
	Limits Limits
}

// ContainerMeta is the persisted record of a container, serialized as
// metadata.json in the container's state directory.
type ContainerMeta struct {
	// Id is the unique identifier of the container, 16 lowercase hex chars.
	Id string `json:"id"`

	// Rootfs is the canonical rootfs path the container was started from.
	Rootfs string `json:"rootfs"`

	// Cmd is the argv of the container init process.
	Cmd []string `json:"cmd"`

	// Hostname is the hostname inside the container.
	Hostname string `json:"hostname"`

	// Limits are the configured cgroup limits.
	Limits Limits `json:"limits"`

	// Pid is the host PID of the container init, or null if the container
	// was never started or has been reaped.
	Pid *int `json:"pid"`

	// Status is the current lifecycle state.
	Status ContainerStatus `json:"status"`

	// ExitCode is set once the container stopped and its wait status was
	// observed; signal death is encoded as the negated signal number. It
	// stays null when a stale running record is repaired.
	ExitCode *int `json:"exit_code"`

	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at"`
	StoppedAt *time.Time `json:"stopped_at"`
}
