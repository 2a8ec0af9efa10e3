package runtime

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/onkernel/pocky/internal/cgroups"
	"github.com/onkernel/pocky/internal/linux"
	"github.com/onkernel/pocky/internal/network"
)

// RunStage2 is the entry point for the re-exec'd C2 process: the contained
// program itself, running as pid 1 of the new pid namespace (spec.md §4.7
// steps 8-15). On success this function never returns — execvp replaces
// the process image. On failure it returns a nonzero exit code for main to
// surface.
func RunStage2() int {
	spec, err := launchSpecFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2:", err)
		return 1
	}

	// Step 8: join the container's network namespace.
	fd, err := network.OpenNetnsFD(spec.NetnsN)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: open netns:", err)
		return 1
	}
	if err := linux.Setns(fd, linux.CloneNewNet); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: setns:", err)
		return 1
	}
	closeFD(fd)

	// Step 9: configure loopback, veth address, default route.
	if err := network.ConfigureAddress(spec.NSVeth); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: configure network:", err)
		return 1
	}

	// Step 10: export config.Env into the process environment.
	for _, kv := range spec.Env {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		os.Setenv(parts[0], parts[1])
	}

	// Step 11: install cgroups with this process's own pid, before any
	// resource-bound work (including exec) happens.
	containerID := strings.TrimPrefix(filepath.Base(spec.ContainerDir), "ps_")
	if err := cgroups.Install(containerID, os.Getpid(), spec.Limits); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: install cgroups:", err)
		return 1
	}

	// Step 12: chdir into the new root before chroot, so the cwd stays
	// within it once chroot takes effect.
	if err := linux.Chdir(spec.MountDir); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: chdir mount dir:", err)
		return 1
	}
	if err := linux.Chroot(spec.MountDir); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: chroot:", err)
		return 1
	}

	// resolv.conf must be written after chroot, so "/etc" below resolves
	// inside the container (spec.md §4.6 step 6).
	if err := network.WriteResolvConf(spec.DNSServer); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: write resolv.conf:", err)
		return 1
	}

	// Step 13: honor config.WorkingDir if set; otherwise cwd stays at "/".
	if spec.WorkingDir != "" {
		if err := os.MkdirAll(spec.WorkingDir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, "pocky: stage2: create working dir:", err)
			return 1
		}
		if err := linux.Chdir(spec.WorkingDir); err != nil {
			fmt.Fprintln(os.Stderr, "pocky: stage2: chdir working dir:", err)
			return 1
		}
	}

	// Step 14: mount /proc only after chroot, so it lands at the
	// container's /proc rather than the host's.
	if err := os.MkdirAll("/proc", 0o555); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: create /proc:", err)
		return 1
	}
	if err := linux.ProcMount(); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: mount proc:", err)
		return 1
	}

	// Step 15: execvp(cmd[0], cmd).
	if len(spec.Cmd) == 0 {
		fmt.Fprintln(os.Stderr, "pocky: stage2: no command to run")
		return 1
	}
	path, err := exec.LookPath(spec.Cmd[0])
	if err != nil {
		path = spec.Cmd[0]
	}
	if err := syscall.Exec(path, spec.Cmd, os.Environ()); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: stage2: exec:", err)
		return 1
	}

	// Unreachable: syscall.Exec only returns on error.
	return 1
}

func closeFD(fd int) {
	syscall.Close(fd)
}
