// Package containerstore implements the on-disk container directory
// layout: a directory per container holding the overlay upper/work/mount
// roots plus provenance and runtime metadata files. Grounded on
// lib/instances/storage.go (hypeman), trading hypeman's JSON metadata.json
// for spec.md's plain-text metadata files (src.txt, cmd.txt, pid.txt,
// netns.txt), and on lib/instances/create.go's cleanup-on-error shape for
// Allocate's rollback behavior.
package containerstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const dirPrefix = "ps_"

// Store resolves and manages ps_<uuid> directories under a pocky root.
type Store struct {
	root string
}

// New returns a Store rooted at pockyDir.
func New(pockyDir string) *Store {
	return &Store{root: pockyDir}
}

// Allocate creates a fresh ps_<uuid>/ directory tree in the order spec.md
// §4.3 requires — ps_<uuid>/, fs/, fs/mnt, fs/upperdir, fs/workdir — undoing
// prior creations if any mkdir fails.
func (s *Store) Allocate() (*Container, error) {
	id := uuid.New().String()
	c := &Container{ID: id, Dir: filepath.Join(s.root, dirPrefix+id)}

	dirs := []string{c.Dir, c.FSDir(), c.MountDir(), c.UpperDir(), c.WorkDir()}
	for i, d := range dirs {
		if err := os.Mkdir(d, 0o755); err != nil {
			// Undo everything created so far, innermost first.
			for j := i - 1; j >= 0; j-- {
				os.Remove(dirs[j])
			}
			return nil, fmt.Errorf("allocate container dir %s: %w", d, err)
		}
	}

	return c, nil
}

// WriteMetadata persists src.txt and cmd.txt. This is a write-once step
// performed before the first fork, so that teardown can always locate the
// container's provenance even if later steps fail (spec.md §4.3).
func (c *Container) WriteMetadata(src string, cmd []string) error {
	if err := os.WriteFile(c.srcFile(), []byte(src), 0o644); err != nil {
		return fmt.Errorf("write src.txt: %w", err)
	}
	if err := os.WriteFile(c.cmdFile(), []byte(strings.Join(cmd, " ")), 0o644); err != nil {
		return fmt.Errorf("write cmd.txt: %w", err)
	}
	return nil
}

// WritePid persists the grandchild's host pid to pid.txt.
func (c *Container) WritePid(pid int) error {
	return os.WriteFile(c.pidFile(), []byte(strconv.Itoa(pid)), 0o644)
}

// ReadPid reads the grandchild's host pid from pid.txt.
func (c *Container) ReadPid() (int, error) {
	raw, err := os.ReadFile(c.pidFile())
	if err != nil {
		return 0, fmt.Errorf("read pid.txt: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse pid.txt: %w", err)
	}
	return pid, nil
}

// WriteNetns persists the netns numeric id to netns.txt.
func (c *Container) WriteNetns(n int) error {
	return os.WriteFile(c.netnsFile(), []byte(strconv.Itoa(n)), 0o644)
}

// ReadNetns reads the netns numeric id from netns.txt.
func (c *Container) ReadNetns() (int, error) {
	raw, err := os.ReadFile(c.netnsFile())
	if err != nil {
		return 0, fmt.Errorf("read netns.txt: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse netns.txt: %w", err)
	}
	return n, nil
}

// ReadSrc reads src.txt, the image origin string.
func (c *Container) ReadSrc() string {
	raw, err := os.ReadFile(c.srcFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// ReadCmd reads cmd.txt, the executed argv joined by spaces.
func (c *Container) ReadCmd() string {
	raw, err := os.ReadFile(c.cmdFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

// Resolve finds the single ps_<uuid> directory whose uuid has the given
// prefix, mirroring imagestore.Resolve's NotFound/Ambiguous semantics.
func (s *Store) Resolve(shortID string) (*Container, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read pocky root %s: %w", s.root, err)
	}

	var matches []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		id := strings.TrimPrefix(e.Name(), dirPrefix)
		if strings.HasPrefix(id, shortID) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", shortID, ErrNotFound)
	case 1:
		return &Container{ID: matches[0], Dir: filepath.Join(s.root, dirPrefix+matches[0])}, nil
	default:
		return nil, fmt.Errorf("%s matches %d containers: %w", shortID, len(matches), ErrAmbiguous)
	}
}

// List enumerates every ps_<uuid> directory under the pocky root whose
// cgroup.procs is non-empty (spec.md §6: `ps` only shows live containers).
// isLive is injected so this package doesn't need to know cgroup layout.
func (s *Store) List(isLive func(id string) bool) ([]*Container, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read pocky root %s: %w", s.root, err)
	}

	var containers []*Container
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		id := strings.TrimPrefix(e.Name(), dirPrefix)
		if !isLive(id) {
			continue
		}
		containers = append(containers, &Container{ID: id, Dir: filepath.Join(s.root, dirPrefix+id)})
	}
	return containers, nil
}

// Remove recursively deletes the container directory. This is the last
// teardown step (spec.md §4.8 step 7) so that a crash mid-teardown still
// leaves enough state for a manual retry.
func (s *Store) Remove(c *Container) error {
	return os.RemoveAll(c.Dir)
}

// FormatTable renders containers as tab-aligned rows,
// "<short-id>\t<src>\t<cmd>", matching the original's ps() output shape.
func FormatTable(containers []*Container) string {
	var b strings.Builder
	for _, c := range containers {
		shortID := c.ID
		if len(shortID) > 12 {
			shortID = shortID[:12]
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\n", shortID, c.ReadSrc(), c.ReadCmd())
	}
	return b.String()
}
