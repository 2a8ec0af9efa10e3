// Package cgroups installs and tears down per-container cgroup v1
// hierarchies. Grounded on the resource-limit shape of
// lib/instances/create.go's buildHypervisorConfig (hypeman's analogous
// "apply resource limits before the workload starts" step), translated
// from hypeman's VM-level vcpu/memory config onto direct v1 cgroupfs
// writes, since pocky's isolation unit is a process, not a VM.
package cgroups

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Root is the cgroup v1 mount point. A var, not a const, so tests can
// redirect it to a temp directory (spec.md §9: "model them as services...
// so tests can redirect the root").
var Root = "/sys/fs/cgroup"

// Hierarchies lists the v1 controllers the core uses, in creation order
// (spec.md §4.5): cpuacct is created and populated alongside cpu, since on
// most kernels it is mounted together with cpu.
var Hierarchies = []string{"cpuacct", "cpu", "memory", "pids"}

// Limits is the set of resource caps applied to a container.
type Limits struct {
	CPUShares int // cpu.shares
	MemoryMB  int // memory.limit_in_bytes, in megabytes
	PidsMax   int // pids.max
}

// Install creates /sys/fs/cgroup/<h>/ps_<id>/ for each hierarchy, writes
// pid into each hierarchy's cgroup.procs, then applies limit files. The pid
// must be the grandchild's own pid, and this must run before exec so the
// limits are in force from the workload's first instruction (spec.md §4.5,
// §4.7 step 11).
func Install(id string, pid int, limits Limits) error {
	for _, h := range Hierarchies {
		dir := filepath.Join(Root, h, "ps_"+id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cgroup dir %s: %w", dir, err)
		}
		if err := writeFile(filepath.Join(dir, "cgroup.procs"), strconv.Itoa(pid)); err != nil {
			return fmt.Errorf("join cgroup %s: %w", dir, err)
		}
	}

	cpuDir := filepath.Join(Root, "cpu", "ps_"+id)
	if err := writeFile(filepath.Join(cpuDir, "cpu.shares"), strconv.Itoa(limits.CPUShares)); err != nil {
		return fmt.Errorf("set cpu.shares: %w", err)
	}

	memDir := filepath.Join(Root, "memory", "ps_"+id)
	limitBytes := limits.MemoryMB * 1_000_000
	if err := writeFile(filepath.Join(memDir, "memory.limit_in_bytes"), strconv.Itoa(limitBytes)); err != nil {
		return fmt.Errorf("set memory.limit_in_bytes: %w", err)
	}
	if err := writeFile(filepath.Join(memDir, "memory.swappiness"), "0"); err != nil {
		return fmt.Errorf("set memory.swappiness: %w", err)
	}

	pidsDir := filepath.Join(Root, "pids", "ps_"+id)
	if err := writeFile(filepath.Join(pidsDir, "pids.max"), strconv.Itoa(limits.PidsMax)); err != nil {
		return fmt.Errorf("set pids.max: %w", err)
	}

	return nil
}

func writeFile(path, value string) error {
	return os.WriteFile(path, []byte(value), 0o644)
}

// IsLive reports whether ps_<id>'s cpu cgroup.procs is non-empty, i.e. at
// least one task is still attached — the test the `ps` command uses to
// decide whether a container is running (spec.md §6).
func IsLive(id string) bool {
	raw, err := os.ReadFile(filepath.Join(Root, "cpu", "ps_"+id, "cgroup.procs"))
	if err != nil {
		return false
	}
	return len(trimSpace(raw)) > 0
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && (b[start] == ' ' || b[start] == '\n' || b[start] == '\t') {
		start++
	}
	for end > start && (b[end-1] == ' ' || b[end-1] == '\n' || b[end-1] == '\t') {
		end--
	}
	return b[start:end]
}

// Teardown removes ps_<id> directories for h ∈ {cpu, memory, pids}. The
// cpuacct directory is deliberately left untouched: on most kernels it is
// co-mounted with cpu and rmdir-ing it separately is unnecessary and can
// race the cpu removal (spec.md §4.5, §4.8 step 6).
func Teardown(id string) error {
	var firstErr error
	for _, h := range []string{"cpu", "memory", "pids"} {
		dir := filepath.Join(Root, h, "ps_"+id)
		if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove cgroup dir %s: %w", dir, err)
			}
		}
	}
	return firstErr
}
