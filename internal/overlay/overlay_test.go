package overlay

import (
	"errors"
	"testing"

	"github.com/onkernel/pocky/internal/linux"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestBuildOptions(t *testing.T) {
	got := buildOptions("/var/pocky/img_x", "/var/pocky/ps_y/fs/upperdir", "/var/pocky/ps_y/fs/workdir")

	assert.Equal(t, "lowerdir=/var/pocky/img_x,upperdir=/var/pocky/ps_y/fs/upperdir,workdir=/var/pocky/ps_y/fs/workdir", got)
}

func TestIsAlreadyGone(t *testing.T) {
	assert.True(t, isAlreadyGone(&linux.SyscallError{Syscall: "umount", Errno: unix.ENOENT}))
	assert.True(t, isAlreadyGone(&linux.SyscallError{Syscall: "umount", Errno: unix.EINVAL}))
	assert.False(t, isAlreadyGone(&linux.SyscallError{Syscall: "umount", Errno: unix.EBUSY}))
	assert.False(t, isAlreadyGone(errors.New("some other error")))
}
