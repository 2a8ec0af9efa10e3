// Package overlay composes the overlay filesystem that becomes a
// container's root: a read-only image directory as the lower layer, a
// per-container upper/work pair as the writable scratch. Grounded on
// lib/system/init/mount.go's setupOverlay (hypeman) and bindings.py's
// overlay_mount, using internal/linux's direct unix.Mount wrapper instead
// of hypeman's shelled-out `/bin/mount -t overlay`.
package overlay

import (
	"errors"
	"fmt"

	"github.com/onkernel/pocky/internal/linux"
	"golang.org/x/sys/unix"
)

// Mount composes the overlay at target from lower (the image directory),
// upper, and work (the container's scratch directories), matching spec.md
// §4.4's exact option string shape.
func Mount(target, lower, upper, work string) error {
	options := buildOptions(lower, upper, work)
	if err := linux.OverlayMount(target, options); err != nil {
		return fmt.Errorf("mount overlay at %s: %w", target, err)
	}
	return nil
}

func buildOptions(lower, upper, work string) string {
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lower, upper, work)
}

// Unmount tears down the overlay mount at target. Tolerates the target
// already being unmounted, per teardown's idempotence contract (spec.md
// §4.8): only a non-"already gone" errno is surfaced.
func Unmount(target string) error {
	if err := linux.Unmount(target); err != nil {
		if isAlreadyGone(err) {
			return nil
		}
		return fmt.Errorf("unmount overlay at %s: %w", target, err)
	}
	return nil
}

func isAlreadyGone(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.ENOENT)
}
