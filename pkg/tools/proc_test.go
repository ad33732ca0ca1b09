package tools

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPidAlive(t *testing.T) {
	assert.True(t, PidAlive(os.Getpid()))
	assert.False(t, PidAlive(0))
	assert.False(t, PidAlive(-1))
	assert.False(t, PidAlive(1<<31-2))
}

func TestPidMatches(t *testing.T) {
	pid := os.Getpid()

	assert.True(t, PidMatches(pid, nil))

	// A start timestamp far in the past cannot belong to this process.
	old := time.Now().Add(-24 * time.Hour)
	assert.False(t, PidMatches(pid, &old))

	gone := 1<<31 - 2
	now := time.Now()
	assert.False(t, PidMatches(gone, &now))
}
