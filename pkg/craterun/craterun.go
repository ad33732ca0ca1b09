package craterun

import (
	"fmt"
	"os"
	"path/filepath"
)

// Craterun is the container lifecycle engine: it owns the on-disk state
// store and the cgroup controller and implements the run/ps/logs/exec/rm
// operations on top of them.
type Craterun struct {
	Store   *Store
	Cgroups *Cgroups
}

// New creates an engine rooted at the default state directory, creating it
// if needed.
func New() (c *Craterun, err error) {
	root, err := stateRoot()
	if err != nil {
		return
	}
	store, err := NewStore(root)
	if err != nil {
		return
	}
	return &Craterun{Store: store, Cgroups: NewCgroups()}, nil
}

// stateRoot returns the base state directory following a defined priority
// order:
//  1. If the CRATERUN_STATE_DIR environment variable is set, it is used
//     as the sole source.
//  2. When running as root (euid 0), /var/lib/craterun.
//  3. Otherwise $HOME/.craterun.
func stateRoot() (string, error) {
	if env := os.Getenv("CRATERUN_STATE_DIR"); env != "" {
		return env, nil
	}
	if os.Geteuid() == 0 {
		return "/var/lib/craterun", nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: cannot determine home directory: %v", ErrState, err)
	}
	return filepath.Join(home, ".craterun"), nil
}
