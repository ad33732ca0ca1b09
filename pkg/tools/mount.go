/*
* Copyright (c) 2025 FABRICATORS S.R.L.
* Licensed under the Fabricators Public Access License (FPAL) v1.0
* See https://github.com/fabricatorsltd/FPAL for details.
 */
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const oldRootDir = ".oldroot"

// devNodes are the host device files bind-mounted into the container's /dev.
var devNodes = []string{"null", "zero", "random", "urandom", "tty"}

// SetupRootfs performs the full mount sequence inside a fresh mount
// namespace and pivots into rootfs. Order matters: the root mount must be
// private before anything else, and rootfs must be a mount point before
// pivot_root will accept it.
func SetupRootfs(rootfs string) error {
	if err := MakeMountPrivate(); err != nil {
		return err
	}
	if err := BindRootfs(rootfs); err != nil {
		return err
	}
	if err := MountProc(rootfs); err != nil {
		return err
	}
	if err := MountDevNodes(rootfs); err != nil {
		return err
	}
	return PivotRoot(rootfs)
}

// MakeMountPrivate marks the whole mount tree private so mounts inside the
// container do not propagate back to the host.
func MakeMountPrivate() error {
	if err := syscall.Mount("", "/", "", syscall.MS_REC|syscall.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("making / private: %w", err)
	}
	return nil
}

// BindRootfs bind-mounts the rootfs onto itself. pivot_root requires the new
// root to be a mount point.
func BindRootfs(rootfs string) error {
	if err := syscall.Mount(rootfs, rootfs, "bind", syscall.MS_BIND|syscall.MS_REC, ""); err != nil {
		return fmt.Errorf("bind-mounting rootfs %s: %w", rootfs, err)
	}
	return nil
}

// MountProc mounts a fresh proc filesystem at <rootfs>/proc, creating the
// directory if missing.
func MountProc(rootfs string) error {
	target := filepath.Join(rootfs, "proc")
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	flags := uintptr(syscall.MS_NOSUID | syscall.MS_NODEV | syscall.MS_NOEXEC)
	if err := syscall.Mount("proc", target, "proc", flags, ""); err != nil {
		return fmt.Errorf("mounting proc at %s: %w", target, err)
	}
	return nil
}

// MountDevNodes populates a minimal /dev by bind-mounting the host's basic
// device files onto same-named nodes under <rootfs>/dev. The target nodes
// are created as empty files first.
func MountDevNodes(rootfs string) error {
	devDir := filepath.Join(rootfs, "dev")
	if err := os.MkdirAll(devDir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", devDir, err)
	}

	for _, node := range devNodes {
		src := filepath.Join("/dev", node)
		dest := filepath.Join(devDir, node)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			f, createErr := os.Create(dest)
			if createErr != nil {
				return fmt.Errorf("creating %s: %w", dest, createErr)
			}
			f.Close()
		}
		if err := syscall.Mount(src, dest, "bind", syscall.MS_BIND, ""); err != nil {
			return fmt.Errorf("bind-mounting %s: %w", src, err)
		}
	}
	return nil
}

// PivotRoot swaps / for rootfs, parking the old root under .oldroot, then
// lazily unmounts and removes it so the host filesystem is unreachable.
func PivotRoot(rootfs string) error {
	putOld := filepath.Join(rootfs, oldRootDir)
	if err := os.MkdirAll(putOld, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", putOld, err)
	}

	if err := syscall.PivotRoot(rootfs, putOld); err != nil {
		return fmt.Errorf("pivot_root(%s, %s): %w", rootfs, putOld, err)
	}

	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("chdir / after pivot_root: %w", err)
	}

	oldRoot := "/" + oldRootDir
	if err := syscall.Unmount(oldRoot, syscall.MNT_DETACH); err != nil {
		return fmt.Errorf("unmounting old root at %s: %w", oldRoot, err)
	}
	if err := os.Remove(oldRoot); err != nil {
		return fmt.Errorf("removing old root directory %s: %w", oldRoot, err)
	}
	return nil
}
