/*
* Copyright (c) 2025 FABRICATORS S.R.L.
* Licensed under the Fabricators Public Access License (FPAL) v1.0
* See https://github.com/fabricatorsltd/FPAL for details.
 */
package craterun

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/craterun/craterun/pkg/tools"
	"github.com/craterun/craterun/pkg/types"
)

// rootfsMarkers: a usable rootfs contains at least one of these directories.
var rootfsMarkers = []string{"bin", "usr", "etc"}

// ValidateConfig checks a launch configuration before any namespace or
// cgroup work starts and canonicalizes the rootfs path in place.
func ValidateConfig(config *types.ContainerConfig) error {
	if len(config.Cmd) == 0 {
		return fmt.Errorf("%w: no command specified", ErrConfig)
	}

	rootfs, err := ValidateRootfs(config.Rootfs)
	if err != nil {
		return err
	}
	config.Rootfs = rootfs
	return nil
}

// ValidateRootfs checks that path is an existing directory usable as a
// container root and returns its canonical absolute form. It rejects "/"
// outright and any tree without a bin/, usr/, or etc/ directory.
func ValidateRootfs(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: rootfs path must not be empty", ErrConfig)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve rootfs path %q: %v", ErrConfig, path, err)
	}
	canon := tools.ResolvePath(abs)

	info, err := os.Stat(canon)
	if err != nil {
		return "", fmt.Errorf("%w: rootfs path %q does not exist", ErrConfig, path)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: rootfs path %q is not a directory", ErrConfig, path)
	}

	if canon == "/" {
		return "", fmt.Errorf("%w: refusing to use / as rootfs", ErrConfig)
	}

	for _, marker := range rootfsMarkers {
		if info, err := os.Stat(filepath.Join(canon, marker)); err == nil && info.IsDir() {
			return canon, nil
		}
	}
	return "", fmt.Errorf(
		"%w: rootfs %q does not look like a filesystem root (no bin/, usr/, or etc/); provide an extracted rootfs such as an Alpine minirootfs",
		ErrConfig, canon)
}
