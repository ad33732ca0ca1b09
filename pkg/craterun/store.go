/*
* Copyright (c) 2025 FABRICATORS S.R.L.
* Licensed under the Fabricators Public Access License (FPAL) v1.0
* See https://github.com/fabricatorsltd/FPAL for details.
 */
package craterun

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/craterun/craterun/pkg/logger"
	"github.com/craterun/craterun/pkg/types"
	"github.com/xeipuuv/gojsonschema"
)

const metaFile = "metadata.json"

// Log file names inside a container's state directory.
const (
	StdoutLog = "stdout.log"
	StderrLog = "stderr.log"
)

//go:embed metadata.schema.json
var metaSchema []byte

// Load failure modes, both state errors.
var (
	ErrNotFound = fmt.Errorf("%w: not found", ErrState)
	ErrCorrupt  = fmt.Errorf("%w: corrupt metadata", ErrState)
)

// Store persists container metadata and logs on disk, one directory per
// container under Root, named by the full container ID. It assumes
// cooperative single-writer-per-container; no file locking.
type Store struct {
	Root string
}

// NewStore opens (creating if needed) the state directory at root.
func NewStore(root string) (s *Store, err error) {
	if err = os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create state directory %s: %v", ErrState, root, err)
	}
	return &Store{Root: root}, nil
}

// ContainerDir returns the state directory of the given container.
func (s *Store) ContainerDir(id string) string {
	return filepath.Join(s.Root, id)
}

// Save atomically persists meta: the JSON document is written to a tempfile
// in the container directory, fsynced, and renamed over metadata.json.
// The container directory is created if absent.
func (s *Store) Save(meta types.ContainerMeta) (err error) {
	dir := s.ContainerDir(meta.Id)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: cannot create container directory %s: %v", ErrState, dir, err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: cannot serialize metadata for %s: %v", ErrState, meta.Id, err)
	}

	tmp := filepath.Join(dir, metaFile+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: cannot write %s: %v", ErrState, tmp, err)
	}
	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: cannot write %s: %v", ErrState, tmp, err)
	}

	if err = os.Rename(tmp, filepath.Join(dir, metaFile)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: cannot commit metadata for %s: %v", ErrState, meta.Id, err)
	}
	return nil
}

// Load reads and validates a container's metadata. A missing directory or
// metadata file yields a not-found error; a document that fails to parse or
// violates the metadata schema yields a corrupt error.
func (s *Store) Load(id string) (meta types.ContainerMeta, err error) {
	data, err := os.ReadFile(filepath.Join(s.ContainerDir(id), metaFile))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, fmt.Errorf("%w: no such container %s", ErrNotFound, id)
		}
		return meta, fmt.Errorf("%w: cannot read metadata for %s: %v", ErrState, id, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(metaSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return meta, fmt.Errorf("%w for %s: %v", ErrCorrupt, id, err)
	}
	if !result.Valid() {
		return meta, fmt.Errorf("%w for %s: %s", ErrCorrupt, id, result.Errors()[0])
	}

	if err = json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("%w for %s: %v", ErrCorrupt, id, err)
	}
	return meta, nil
}

// Ids returns the IDs of all containers present on disk, sorted. A directory
// without a metadata file (e.g. a crashed create) is skipped.
func (s *Store) Ids() (ids []string, err error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: cannot read state directory %s: %v", ErrState, s.Root, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, statErr := os.Stat(filepath.Join(s.Root, entry.Name(), metaFile)); statErr == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// List loads the metadata of every container. Entries that fail to load are
// reported and skipped; they never abort the enumeration.
func (s *Store) List() (metas []types.ContainerMeta, err error) {
	ids, err := s.Ids()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		meta, loadErr := s.Load(id)
		if loadErr != nil {
			logger.Warnf("skipping container %s: %v", id, loadErr)
			continue
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Delete removes a container's state directory. It refuses to delete a
// record still marked running; callers that killed the process must persist
// the stopped status first.
func (s *Store) Delete(id string) error {
	meta, err := s.Load(id)
	if err == nil && meta.Status == types.StatusRunning {
		return fmt.Errorf("%w: container %s is running", ErrState, id)
	}
	if err := os.RemoveAll(s.ContainerDir(id)); err != nil {
		return fmt.Errorf("%w: cannot remove container directory for %s: %v", ErrState, id, err)
	}
	return nil
}

// OpenLogAppend opens a container log file for appending, creating the
// container directory and the file if needed. Used by the lifecycle engine
// to capture the container's stdout/stderr.
func (s *Store) OpenLogAppend(id, name string) (*os.File, error) {
	dir := s.ContainerDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create container directory %s: %v", ErrState, dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s for container %s: %v", ErrState, name, id, err)
	}
	return f, nil
}

// OpenLogRead opens a container log file for reading. A missing file is
// returned as (nil, nil): a container that never wrote has no log to show.
func (s *Store) OpenLogRead(id, name string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.ContainerDir(id), name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: cannot open %s for container %s: %v", ErrState, name, id, err)
	}
	return f, nil
}
