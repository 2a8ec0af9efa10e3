package runtime

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/onkernel/pocky/internal/cgroups"
	"github.com/onkernel/pocky/internal/containerstore"
	"github.com/onkernel/pocky/internal/linux"
	"github.com/onkernel/pocky/internal/logging"
	"github.com/onkernel/pocky/internal/network"
	"github.com/onkernel/pocky/internal/overlay"
	"golang.org/x/sys/unix"
)

// killWaitTimeout bounds how long Teardown waits for SIGTERM to take
// effect before escalating to SIGKILL (spec.md §9's REDESIGN FLAG: "a
// well-behaved port should add a bounded SIGKILL fallback"). Grounded on
// lib/instances/delete.go's WaitForProcessExit polling loop.
const killWaitTimeout = 5 * time.Second

// Teardown idempotently removes a container, in the load-bearing order
// spec.md §4.8 specifies: network, signal the process, unmount proc then
// the overlay, remove cgroup dirs, then the container directory last.
// Every step tolerates its artifact already being gone; unexpected errors
// are logged and collected, never abort the remaining steps, and are
// returned joined once every step has run.
func Teardown(ctx context.Context, store *containerstore.Store, ctr *containerstore.Container) error {
	log := logging.FromContext(ctx)
	var errs []error

	if n, err := ctr.ReadNetns(); err == nil {
		if err := network.Teardown(n); err != nil {
			log.WarnContext(ctx, "teardown: release network failed", "container_id", ctr.ID, "error", err)
			errs = append(errs, err)
		}
	}

	if pid, err := ctr.ReadPid(); err == nil {
		killAndReap(ctx, pid)
	}

	procPath := filepath.Join(ctr.MountDir(), "proc")
	if err := overlay.Unmount(procPath); err != nil {
		log.WarnContext(ctx, "teardown: unmount proc failed", "container_id", ctr.ID, "error", err)
		errs = append(errs, err)
	}

	if err := overlay.Unmount(ctr.MountDir()); err != nil {
		log.WarnContext(ctx, "teardown: unmount overlay failed", "container_id", ctr.ID, "error", err)
		errs = append(errs, err)
	}

	if err := cgroups.Teardown(ctr.ID); err != nil {
		log.WarnContext(ctx, "teardown: remove cgroup dirs failed", "container_id", ctr.ID, "error", err)
		errs = append(errs, err)
	}

	if err := store.Remove(ctr); err != nil {
		log.WarnContext(ctx, "teardown: remove container dir failed", "container_id", ctr.ID, "error", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// killAndReap sends SIGTERM, the original's only signal (spec.md §4.8 step
// 3); an already-gone pid is the TransientChild case and is silently
// ignored (spec.md §7). If the process survives killWaitTimeout, it is
// escalated to SIGKILL — the bounded fallback spec.md §9 calls for, since
// a process that ignores SIGTERM would otherwise leak indefinitely.
func killAndReap(ctx context.Context, pid int) {
	log := logging.FromContext(ctx)

	if err := linux.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return
		}
		log.WarnContext(ctx, "teardown: sigterm failed", "pid", pid, "error", err)
	}

	if waitForExit(pid, killWaitTimeout) {
		return
	}

	log.WarnContext(ctx, "teardown: process did not exit after sigterm, escalating to sigkill", "pid", pid)
	if err := linux.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		log.WarnContext(ctx, "teardown: sigkill failed", "pid", pid, "error", err)
	}
	waitForExit(pid, killWaitTimeout)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !linux.ProcessExists(pid) {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return !linux.ProcessExists(pid)
}
