// Package imagestore implements the on-disk image directory layout: a
// directory per image holding a flattened filesystem tree, a config.json,
// and a src.txt recording origin. Grounded on lib/images/storage.go and
// lib/images/manager.go (hypeman), adapted from hypeman's digest-keyed
// layout to the uuid-prefix lookup spec.md mandates.
package imagestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const dirPrefix = "img_"

// Store resolves and manages img_<uuid> directories under a pocky root.
type Store struct {
	root string
}

// New returns a Store rooted at pockyDir (e.g. /var/pocky).
func New(pockyDir string) *Store {
	return &Store{root: pockyDir}
}

// Resolve finds the single img_<uuid> directory whose uuid has the given
// prefix. Fails with ErrNotFound for zero matches, ErrAmbiguous for more
// than one, exactly as spec.md §4.2 requires.
func (s *Store) Resolve(shortID string) (*Image, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read pocky root %s: %w", s.root, err)
	}

	var matches []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, dirPrefix) {
			continue
		}
		id := strings.TrimPrefix(name, dirPrefix)
		if strings.HasPrefix(id, shortID) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%s: %w", shortID, ErrNotFound)
	case 1:
		return s.load(matches[0])
	default:
		return nil, fmt.Errorf("%s matches %d images: %w", shortID, len(matches), ErrAmbiguous)
	}
}

func (s *Store) load(id string) (*Image, error) {
	dir := filepath.Join(s.root, dirPrefix+id)
	src, err := os.ReadFile(filepath.Join(dir, "src.txt"))
	if err != nil {
		src = nil
	}
	return &Image{ID: id, Dir: dir, Src: strings.TrimSpace(string(src))}, nil
}

// Config reads img.Dir/config.json lazily, returning the (Cmd, Env,
// WorkingDir) tuple the launcher needs.
func (s *Store) Config(img *Image) (RuntimeConfig, error) {
	raw, err := os.ReadFile(filepath.Join(img.Dir, "config.json"))
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("read config.json: %w", err)
	}

	var parsed imageConfigFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return RuntimeConfig{}, fmt.Errorf("%w: %v", ErrMalformedImage, err)
	}
	if len(parsed.Config.Cmd) == 0 {
		return RuntimeConfig{}, fmt.Errorf("%w: config.Cmd is empty", ErrMalformedImage)
	}
	return parsed.Config, nil
}

// Create allocates a fresh img_<uuid> directory, writes src.txt and
// config.json, and returns the Image. Used by the pull command after the
// registry-pull helper script and tar extraction have populated rootDir.
func (s *Store) Create(rootDir, src string, cfg RuntimeConfig) (*Image, error) {
	id := uuid.New().String()
	dir := filepath.Join(s.root, dirPrefix+id)

	if err := os.Rename(rootDir, dir); err != nil {
		return nil, fmt.Errorf("finalize image dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "src.txt"), []byte(src), 0o644); err != nil {
		return nil, fmt.Errorf("write src.txt: %w", err)
	}

	raw, err := json.Marshal(imageConfigFile{Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("marshal config.json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), raw, 0o644); err != nil {
		return nil, fmt.Errorf("write config.json: %w", err)
	}

	return &Image{ID: id, Dir: dir, Src: src}, nil
}

// List enumerates every img_<uuid> directory under the pocky root.
func (s *Store) List() ([]*Image, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read pocky root %s: %w", s.root, err)
	}

	var images []*Image
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		id := strings.TrimPrefix(e.Name(), dirPrefix)
		img, err := s.load(id)
		if err != nil {
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

// Remove recursively deletes an image directory (rmi).
func (s *Store) Remove(img *Image) error {
	return os.RemoveAll(img.Dir)
}

// FormatTable renders images as tab-aligned rows, "<short-id>\t<src>",
// matching the original's images() output shape (spec.md §6 Supplemented
// Features).
func FormatTable(images []*Image) string {
	var b strings.Builder
	for _, img := range images {
		shortID := img.ID
		if len(shortID) > 12 {
			shortID = shortID[:12]
		}
		fmt.Fprintf(&b, "%s\t%s\n", shortID, img.Src)
	}
	return b.String()
}
