// Package runtime implements the two-stage fork/unshare/setns/chroot/exec
// launcher and its matching teardown — the core of the container runtime.
// Grounded on original_source/pocky.py's run()/rm() for the pipeline order
// and on lib/instances/create.go and lib/instances/delete.go (hypeman) for
// the cleanup-on-error and bounded-kill-then-reap shape. Go cannot safely
// call the raw fork() the original uses mid-process (the runtime has
// multiple OS threads live by the time main() runs); the two stages are
// instead obtained by re-executing the pocky binary under os/exec, using
// SysProcAttr.Cloneflags for the unshare that must happen at process
// creation and a second, flag-less re-exec for the fork that must happen
// after CLONE_NEWPID takes effect — see DESIGN.md.
package runtime

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/onkernel/pocky/internal/cgroups"
)

// LaunchSpec is everything the re-exec'd stage1/stage2 processes need,
// passed via a single environment variable since they do not share memory
// with the parent that created them.
type LaunchSpec struct {
	ContainerDir string
	MountDir     string
	WorkingDir   string
	Cmd          []string
	Env          []string
	NetnsN       int
	NSVeth       string
	DNSServer    string
	Limits       cgroups.Limits
}

const launchSpecEnvVar = "POCKY_LAUNCH_SPEC"

func (s LaunchSpec) toEnv() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal launch spec: %w", err)
	}
	return launchSpecEnvVar + "=" + string(raw), nil
}

func launchSpecFromEnv() (LaunchSpec, error) {
	raw := os.Getenv(launchSpecEnvVar)
	if raw == "" {
		return LaunchSpec{}, fmt.Errorf("%s not set", launchSpecEnvVar)
	}
	var s LaunchSpec
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return LaunchSpec{}, fmt.Errorf("unmarshal launch spec: %w", err)
	}
	return s, nil
}

// Stage1Arg and Stage2Arg are the hidden os.Args[1] markers cmd/pocky
// dispatches on to re-enter this package inside the re-exec'd processes.
const (
	Stage1Arg = "__pocky_stage1"
	Stage2Arg = "__pocky_stage2"
)
