package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onkernel/pocky/internal/containerstore"
	"github.com/onkernel/pocky/internal/linux"
)

// RunStage1 is the entry point for the re-exec'd C1 process (spec.md §4.7
// steps 6-7). It already runs inside the new mount/uts/ipc namespaces
// (established at clone time by Launch); it unshares the pid namespace —
// which only takes effect for its own future children — then forks C2 by
// re-exec'ing itself once more, records C2's pid, and waits for it.
func RunStage1() int {
	spec, err := launchSpecFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage1:", err)
		return 1
	}

	if err := linux.Unshare(linux.CloneNewPID); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage1: unshare pid namespace:", err)
		return 1
	}

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage1: resolve self executable:", err)
		return 1
	}

	envLine, _ := spec.toEnv()
	cmd := exec.Command(self, Stage2Arg)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(filterLaunchSpecEnv(os.Environ()), envLine)

	if err := cmd.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage1: start stage2:", err)
		return 1
	}

	ctr := &containerstore.Container{ID: filepath.Base(spec.ContainerDir), Dir: spec.ContainerDir}
	ctr.ID = strings.TrimPrefix(ctr.ID, "ps_")
	if err := ctr.WritePid(cmd.Process.Pid); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage1: write pid.txt:", err)
	}

	err = cmd.Wait()
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	fmt.Fprintln(os.Stderr, "pocky: stage1: wait stage2:", err)
	return 1
}

func filterLaunchSpecEnv(env []string) []string {
	out := make([]string, 0, len(env))
	prefix := launchSpecEnvVar + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			continue
		}
		out = append(out, e)
	}
	return out
}
