package craterun

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/craterun/craterun/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeta(id string) types.ContainerMeta {
	return types.ContainerMeta{
		Id:        id,
		Rootfs:    "/tmp/rootfs",
		Cmd:       []string{"/bin/sh", "-c", "echo hi"},
		Hostname:  id[:12],
		Status:    types.StatusStopped,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	meta := sampleMeta("aabbccdd11223344")
	memory := uint64(67108864)
	meta.Limits.Memory = &memory
	exitCode := 42
	meta.ExitCode = &exitCode

	require.NoError(t, store.Save(meta))

	loaded, err := store.Load(meta.Id)
	require.NoError(t, err)
	assert.Equal(t, meta.Id, loaded.Id)
	assert.Equal(t, meta.Rootfs, loaded.Rootfs)
	assert.Equal(t, meta.Cmd, loaded.Cmd)
	assert.Equal(t, meta.Status, loaded.Status)
	require.NotNil(t, loaded.Limits.Memory)
	assert.Equal(t, memory, *loaded.Limits.Memory)
	require.NotNil(t, loaded.ExitCode)
	assert.Equal(t, exitCode, *loaded.ExitCode)
	assert.True(t, meta.CreatedAt.Equal(loaded.CreatedAt))

	// No tempfile survives a completed save.
	_, err = os.Stat(filepath.Join(store.ContainerDir(meta.Id), "metadata.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("deadbeef12345678")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadCorrupt(t *testing.T) {
	store := newTestStore(t)

	dir := store.ContainerDir("deadbeef12345678")
	require.NoError(t, os.MkdirAll(dir, 0755))

	// Not JSON at all.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("not json"), 0644))
	_, err := store.Load("deadbeef12345678")
	require.ErrorIs(t, err, ErrCorrupt)

	// Valid JSON violating the metadata schema.
	bad := `{"id":"deadbeef12345678","rootfs":"/r","cmd":["sh"],"hostname":"h",` +
		`"limits":{},"pid":null,"status":"banana","exit_code":null,"created_at":"2025-01-01T00:00:00Z"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte(bad), 0644))
	_, err = store.Load("deadbeef12345678")
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestCrashedSaveLeavesPreviousValue(t *testing.T) {
	store := newTestStore(t)

	meta := sampleMeta("aabbccdd11223344")
	require.NoError(t, store.Save(meta))

	// A crash between tempfile write and rename leaves a stray tempfile;
	// the committed document must win.
	tmp := filepath.Join(store.ContainerDir(meta.Id), "metadata.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("partial garbage"), 0644))

	loaded, err := store.Load(meta.Id)
	require.NoError(t, err)
	assert.Equal(t, meta.Id, loaded.Id)
}

func TestCrashedCreateIsNotFound(t *testing.T) {
	store := newTestStore(t)

	// Crash before the first rename: only the tempfile exists.
	dir := store.ContainerDir("aabbccdd11223344")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json.tmp"), []byte("partial"), 0644))

	_, err := store.Load("aabbccdd11223344")
	require.ErrorIs(t, err, ErrNotFound)

	// The half-created directory is invisible to enumeration too.
	ids, err := store.Ids()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestListSkipsCorruptEntries(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(sampleMeta("aabbccdd11223344")))
	require.NoError(t, store.Save(sampleMeta("1122334455667788")))

	dir := store.ContainerDir("ffffffffffffffff")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{"), 0644))

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "1122334455667788", metas[0].Id)
	assert.Equal(t, "aabbccdd11223344", metas[1].Id)
}

func TestDeleteRefusesRunning(t *testing.T) {
	store := newTestStore(t)

	meta := sampleMeta("aabbccdd11223344")
	meta.Status = types.StatusRunning
	pid := 12345
	meta.Pid = &pid
	startedAt := time.Now().UTC()
	meta.StartedAt = &startedAt
	require.NoError(t, store.Save(meta))

	err := store.Delete(meta.Id)
	require.ErrorIs(t, err, ErrState)

	meta.Status = types.StatusStopped
	meta.Pid = nil
	require.NoError(t, store.Save(meta))
	require.NoError(t, store.Delete(meta.Id))

	_, err = os.Stat(store.ContainerDir(meta.Id))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenLogAppendAndRead(t *testing.T) {
	store := newTestStore(t)

	f, err := store.OpenLogAppend("aabbccdd11223344", StdoutLog)
	require.NoError(t, err)
	_, err = f.WriteString("hi\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := store.OpenLogRead("aabbccdd11223344", StdoutLog)
	require.NoError(t, err)
	require.NotNil(t, r)
	data := make([]byte, 16)
	n, _ := r.Read(data)
	assert.Equal(t, "hi\n", string(data[:n]))
	r.Close()

	// A log that was never written reads as absent, not as an error.
	r, err = store.OpenLogRead("aabbccdd11223344", StderrLog)
	require.NoError(t, err)
	assert.Nil(t, r)
}
