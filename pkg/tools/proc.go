package tools

import (
	"time"

	"github.com/shirou/gopsutil/process"
)

// startTimeTolerance bounds the allowed skew between a persisted start
// timestamp and the kernel's process creation time. A recycled PID shows a
// creation time far outside this window.
const startTimeTolerance = 10 * time.Second

// PidAlive reports whether a process with the given PID currently exists.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}

// PidMatches reports whether the PID exists and its creation time is close
// enough to startedAt to be the same process rather than a recycled PID.
// With a nil startedAt only existence is checked.
func PidMatches(pid int, startedAt *time.Time) bool {
	if !PidAlive(pid) {
		return false
	}
	if startedAt == nil {
		return true
	}

	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return false
	}
	createMs, err := p.CreateTime()
	if err != nil {
		return false
	}

	diff := time.Duration(createMs-startedAt.UnixMilli()) * time.Millisecond
	if diff < 0 {
		diff = -diff
	}
	return diff <= startTimeTolerance
}
