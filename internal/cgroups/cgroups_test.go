package cgroups

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withTempRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	orig := Root
	Root = root
	t.Cleanup(func() { Root = orig })
	return root
}

func TestInstallWritesPidAndLimits(t *testing.T) {
	root := withTempRoot(t)
	id := "abc123"
	limits := Limits{CPUShares: 256, MemoryMB: 128, PidsMax: 64}

	require.NoError(t, Install(id, 999, limits))

	for _, h := range Hierarchies {
		raw, err := os.ReadFile(filepath.Join(root, h, "ps_"+id, "cgroup.procs"))
		require.NoError(t, err)
		assert.Equal(t, "999", string(raw))
	}

	shares, err := os.ReadFile(filepath.Join(root, "cpu", "ps_"+id, "cpu.shares"))
	require.NoError(t, err)
	assert.Equal(t, "256", string(shares))

	memLimit, err := os.ReadFile(filepath.Join(root, "memory", "ps_"+id, "memory.limit_in_bytes"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(128*1_000_000), string(memLimit))

	swappiness, err := os.ReadFile(filepath.Join(root, "memory", "ps_"+id, "memory.swappiness"))
	require.NoError(t, err)
	assert.Equal(t, "0", string(swappiness))

	pidsMax, err := os.ReadFile(filepath.Join(root, "pids", "ps_"+id, "pids.max"))
	require.NoError(t, err)
	assert.Equal(t, "64", string(pidsMax))
}

func TestIsLiveReflectsCgroupProcs(t *testing.T) {
	root := withTempRoot(t)
	id := "live1"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cpu", "ps_"+id), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cpu", "ps_"+id, "cgroup.procs"), []byte("123\n"), 0o644))

	assert.True(t, IsLive(id))
	assert.False(t, IsLive("does-not-exist"))
}

func TestIsLiveEmptyProcsIsNotLive(t *testing.T) {
	root := withTempRoot(t)
	id := "empty1"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "cpu", "ps_"+id), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "cpu", "ps_"+id, "cgroup.procs"), []byte(""), 0o644))

	assert.False(t, IsLive(id))
}

func TestTeardownRemovesCpuMemoryPidsNotCpuacct(t *testing.T) {
	root := withTempRoot(t)
	id := "teardown1"
	limits := Limits{CPUShares: 512, MemoryMB: 512, PidsMax: 512}
	require.NoError(t, Install(id, 1, limits))

	require.NoError(t, Teardown(id))

	for _, h := range []string{"cpu", "memory", "pids"} {
		_, err := os.Stat(filepath.Join(root, h, "ps_"+id))
		assert.True(t, os.IsNotExist(err), "expected %s dir removed", h)
	}
	_, err := os.Stat(filepath.Join(root, "cpuacct", "ps_"+id))
	assert.NoError(t, err, "cpuacct dir should be left alone")
}

func TestTeardownToleratesAlreadyGone(t *testing.T) {
	withTempRoot(t)

	assert.NoError(t, Teardown("never-existed"))
}
