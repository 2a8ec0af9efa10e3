// Package linux wraps the kernel operations the container runtime composes:
// mount, umount, unshare, setns, chroot, chdir, kill, and wait.
// Every wrapper reports errno-level failures distinctly, carrying the
// syscall name and its arguments, mirroring bindings.py's ctypes wrappers
// (overlay_mount, proc_mount, unshare) translated onto golang.org/x/sys/unix.
package linux

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Unshare namespace flags used by the core (spec §4.1).
const (
	CloneNewUTS = 0x04000000
	CloneNewIPC = 0x08000000
	CloneNewNS  = 0x00020000
	CloneNewPID = 0x20000000
	CloneNewNet = 0x40000000
)

// MSBind is the bind-mount flag.
const MSBind = 0x1000

// SyscallError carries the originating syscall name, its arguments, and the
// errno that failed it, so callers can distinguish failure modes without
// parsing a formatted string.
type SyscallError struct {
	Syscall string
	Args    string
	Errno   error
}

func (e *SyscallError) Error() string {
	return fmt.Sprintf("%s(%s): %v", e.Syscall, e.Args, e.Errno)
}

func (e *SyscallError) Unwrap() error {
	return e.Errno
}

func newSyscallError(syscall, args string, errno error) error {
	if errno == nil {
		return nil
	}
	return &SyscallError{Syscall: syscall, Args: args, Errno: errno}
}

// OverlayMount mounts an overlay filesystem at target with the given
// lowerdir/upperdir/workdir options string, grounded on bindings.py's
// overlay_mount (a bare libc mount(NULL, target, "overlay", 0, options)).
func OverlayMount(target, options string) error {
	err := unix.Mount("overlay", target, "overlay", 0, options)
	return newSyscallError("mount", fmt.Sprintf("overlay,target=%s,data=%s", target, options), err)
}

// BindMount bind-mounts src onto target.
func BindMount(src, target string) error {
	err := unix.Mount(src, target, "", unix.MS_BIND, "")
	return newSyscallError("mount", fmt.Sprintf("bind,src=%s,target=%s", src, target), err)
}

// ProcMount mounts a fresh proc filesystem at /proc, grounded on
// bindings.py's proc_mount.
func ProcMount() error {
	err := unix.Mount("proc", "/proc", "proc", 0, "")
	return newSyscallError("mount", "proc,target=/proc", err)
}

// Unmount unmounts path, tolerating ENOENT/EINVAL as "already gone" at the
// caller's discretion (the caller decides whether to surface or swallow).
func Unmount(path string) error {
	err := unix.Unmount(path, 0)
	return newSyscallError("umount", path, err)
}

// Unshare detaches the calling thread from the given namespaces, grounded
// on bindings.py's unshare wrapper.
func Unshare(flags int) error {
	err := unix.Unshare(flags)
	return newSyscallError("unshare", fmt.Sprintf("flags=0x%x", flags), err)
}

// Setns joins the namespace referenced by fd.
func Setns(fd int, nstype int) error {
	err := unix.Setns(fd, nstype)
	return newSyscallError("setns", fmt.Sprintf("fd=%d,nstype=0x%x", fd, nstype), err)
}

// Chroot changes the process's root directory to path.
func Chroot(path string) error {
	err := unix.Chroot(path)
	return newSyscallError("chroot", path, err)
}

// Chdir changes the process's working directory to path.
func Chdir(path string) error {
	err := os.Chdir(path)
	return newSyscallError("chdir", path, err)
}

// Kill sends signal sig to pid. The errno is carried in a *SyscallError
// whose Unwrap exposes it, so callers can match ESRCH (no such process)
// with errors.Is(err, unix.ESRCH).
func Kill(pid int, sig unix.Signal) error {
	err := unix.Kill(pid, sig)
	return newSyscallError("kill", fmt.Sprintf("pid=%d,sig=%d", pid, sig), err)
}

// Wait4 waits on pid with the given options, mirroring the standard
// waitpid/wait4 surface used by the launcher's reap path.
func Wait4(pid int, options int) (wpid int, status unix.WaitStatus, err error) {
	var ws unix.WaitStatus
	wpid, err = unix.Wait4(pid, &ws, options, nil)
	if err != nil {
		return wpid, ws, newSyscallError("wait4", fmt.Sprintf("pid=%d,options=%d", pid, options), err)
	}
	return wpid, ws, nil
}

// ProcessExists reports whether pid is alive, using the kill(pid, 0) idiom.
// kill(pid, 0) also succeeds for a zombie, so a pid whose /proc stat state
// is Z counts as not alive.
func ProcessExists(pid int) bool {
	if unix.Kill(pid, 0) != nil {
		return false
	}
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	stat := string(raw)
	if i := strings.LastIndexByte(stat, ')'); i >= 0 && i+2 < len(stat) {
		return stat[i+2] != 'Z'
	}
	return true
}
