package linux

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestSyscallErrorFormatsSyscallArgsErrno(t *testing.T) {
	err := &SyscallError{Syscall: "mount", Args: "target=/mnt", Errno: unix.EINVAL}

	assert.Contains(t, err.Error(), "mount")
	assert.Contains(t, err.Error(), "target=/mnt")
	assert.True(t, errors.Is(err, unix.EINVAL))
}

func TestNewSyscallErrorNilErrnoIsNil(t *testing.T) {
	assert.Nil(t, newSyscallError("mount", "x", nil))
}

func TestProcessExistsForCurrentProcess(t *testing.T) {
	assert.True(t, ProcessExists(os.Getpid()))
}

func TestProcessExistsForBogusPid(t *testing.T) {
	// Pid 1<<30 is extremely unlikely to be in use.
	assert.False(t, ProcessExists(1<<30))
}

func TestUnshareFlagConstants(t *testing.T) {
	assert.Equal(t, 0x04000000, CloneNewUTS)
	assert.Equal(t, 0x08000000, CloneNewIPC)
	assert.Equal(t, 0x00020000, CloneNewNS)
	assert.Equal(t, 0x20000000, CloneNewPID)
	assert.Equal(t, 0x40000000, CloneNewNet)
	assert.Equal(t, 0x1000, MSBind)
}
