package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/onkernel/pocky/internal/containerstore"
	"github.com/onkernel/pocky/internal/linux"
	"github.com/onkernel/pocky/internal/logging"
)

// Launch runs spec.md §4.7 steps 5 onward: fork C1 (here, a re-exec of the
// pocky binary into the new mount/uts/ipc namespaces), let C1 unshare the
// pid namespace and fork C2, and wait for C1 to finish. It returns C2's
// exit code when available.
func Launch(ctx context.Context, ctr *containerstore.Container, spec LaunchSpec) (int, error) {
	log := logging.FromContext(ctx)

	self, err := os.Executable()
	if err != nil {
		return 1, fmt.Errorf("resolve self executable: %w", err)
	}

	envLine, err := spec.toEnv()
	if err != nil {
		return 1, err
	}

	cmd := exec.Command(self, Stage1Arg)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), envLine)
	// CLONE_NEWPID is deliberately absent here: the kernel contract only
	// lets it apply to a caller's *future* children, so stage1 unshares it
	// itself before forking stage2 (spec.md §9, "Two-stage fork").
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: linux.CloneNewNS | linux.CloneNewUTS | linux.CloneNewIPC,
	}

	log.InfoContext(ctx, "launching container", "container_id", ctr.ID)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if ok := asExitError(err, &exitErr); ok {
			return exitErr.ExitCode(), nil
		}
		return 1, fmt.Errorf("run stage1: %w", err)
	}
	return 0, nil
}

func asExitError(err error, target **exec.ExitError) bool {
	if ee, ok := err.(*exec.ExitError); ok {
		*target = ee
		return true
	}
	return false
}
