package craterun

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/craterun/craterun/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCgroups fakes a cgroup v2 hierarchy root in a temp dir.
func newTestCgroups(t *testing.T) *Cgroups {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cgroup.controllers"), []byte("cpu memory pids\n"), 0644))
	return &Cgroups{Root: root}
}

func TestCreateRequiresCgroupV2(t *testing.T) {
	c := &Cgroups{Root: t.TempDir()} // no cgroup.controllers file

	_, err := c.Create("aabbccdd11223344")
	require.ErrorIs(t, err, ErrKernel)
}

func TestCreateRefusesExisting(t *testing.T) {
	c := newTestCgroups(t)

	_, err := c.Create("aabbccdd11223344")
	require.NoError(t, err)

	_, err = c.Create("aabbccdd11223344")
	require.ErrorIs(t, err, ErrKernel)
}

func TestApplyLimitsWritesControlFiles(t *testing.T) {
	c := newTestCgroups(t)

	handle, err := c.Create("aabbccdd11223344")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.Root, "craterun-aabbccdd11223344"), handle.Path)

	memory := uint64(1048576)
	pids := uint32(64)
	limits := types.Limits{
		Memory: &memory,
		Pids:   &pids,
		Cpu:    &types.CpuMax{QuotaUs: 50000, PeriodUs: 100000},
	}
	require.NoError(t, handle.ApplyLimits(limits))

	read := func(name string) string {
		data, err := os.ReadFile(filepath.Join(handle.Path, name))
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "1048576", read("memory.max"))
	assert.Equal(t, "64", read("pids.max"))
	assert.Equal(t, "50000 100000", read("cpu.max"))
}

func TestAdmitWritesPid(t *testing.T) {
	c := newTestCgroups(t)

	handle, err := c.Create("aabbccdd11223344")
	require.NoError(t, err)
	require.NoError(t, handle.Admit(4242))

	data, err := os.ReadFile(filepath.Join(handle.Path, "cgroup.procs"))
	require.NoError(t, err)
	assert.Equal(t, "4242", string(data))
}

func TestDestroyRemovesEmptyCgroup(t *testing.T) {
	c := newTestCgroups(t)

	handle, err := c.Create("aabbccdd11223344")
	require.NoError(t, err)

	c.Destroy("aabbccdd11223344")

	_, err = os.Stat(handle.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestDestroyMissingCgroupIsNoop(t *testing.T) {
	c := newTestCgroups(t)
	c.Destroy("ffffffffffffffff") // must not panic or create anything

	_, err := os.Stat(filepath.Join(c.Root, "craterun-ffffffffffffffff"))
	assert.True(t, os.IsNotExist(err))
}
