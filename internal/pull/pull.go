// Package pull implements the `pull` command: shell out to the registry
// helper script, then flatten the layer tarballs it downloads into a
// single image directory. Grounded on original_source/pocky.py's pull()
// for the manifest-driven extraction sequence, and on lib/images/docker.go
// (hypeman)'s extractTar for the tar-entry-type handling — adapted from
// hypeman's Docker-API pull to pocky's shelled-out helper script, per
// spec.md §1 (registry pulling is an external collaborator).
package pull

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onkernel/pocky/internal/imagestore"
)

// manifestEntry is one entry of manifest.json, as produced by the registry
// helper script (docker's "frozen image" export format).
type manifestEntry struct {
	Config string   `json:"Config"`
	Layers []string `json:"Layers"`
}

type imageConfigFile struct {
	Config imagestore.RuntimeConfig `json:"config"`
}

// Pull runs scriptPath <scratchDir> <name:tag>, extracts every layer tar
// manifest.json lists into a single flattened tree, promotes the
// manifest's Config blob to config.json, and hands the result to store to
// finalize as img_<uuid>.
func Pull(store *imagestore.Store, pockyDir, scriptPath, name, tag string) (*imagestore.Image, error) {
	src := fmt.Sprintf("%s:%s", name, tag)

	scratchDir, err := os.MkdirTemp(pockyDir, "pull-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratchDir)

	// Nil Stdout/Stderr connect to /dev/null, matching the original's
	// subprocess.check_call(..., stdout=DEVNULL, stderr=DEVNULL).
	cmd := exec.Command(scriptPath, scratchDir, src)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run %s: %w", scriptPath, err)
	}

	manifestPath := filepath.Join(scratchDir, "manifest.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("read manifest.json: %w", err)
	}

	var manifest []manifestEntry
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest.json: %w", err)
	}
	if len(manifest) == 0 {
		return nil, fmt.Errorf("manifest.json has no entries")
	}
	if len(manifest) > 1 {
		return nil, ErrMultipleManifests
	}
	entry := manifest[0]

	for _, layer := range entry.Layers {
		layerHash := strings.SplitN(layer, "/", 2)[0]
		tarPath := filepath.Join(scratchDir, layer)

		if err := extractTar(tarPath, scratchDir); err != nil {
			return nil, fmt.Errorf("extract layer %s: %w", layer, err)
		}
		os.RemoveAll(filepath.Join(scratchDir, layerHash))
	}

	cfgRaw, err := os.ReadFile(filepath.Join(scratchDir, entry.Config))
	if err != nil {
		return nil, fmt.Errorf("read image config %s: %w", entry.Config, err)
	}
	var cfgFile imageConfigFile
	if err := json.Unmarshal(cfgRaw, &cfgFile); err != nil {
		return nil, fmt.Errorf("parse image config %s: %w", entry.Config, err)
	}

	return store.Create(scratchDir, src, cfgFile.Config)
}

// extractTar unpacks every entry of the tar file at tarPath into dest,
// handling directory, regular-file, symlink, and hardlink entries, on a
// best-effort basis for permissions (grounded on lib/images/docker.go's
// extractTar).
func extractTar(tarPath, dest string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", tarPath, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target := filepath.Join(dest, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return fmt.Errorf("mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("mkdir parent of %s: %w", target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(hdr.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("write %s: %w", target, err)
			}
			out.Close()
		case tar.TypeSymlink:
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				// Best-effort: a broken or repeated symlink shouldn't abort
				// the whole extraction.
				continue
			}
		case tar.TypeLink:
			linkTarget := filepath.Join(dest, hdr.Linkname)
			os.Remove(target)
			if err := os.Link(linkTarget, target); err != nil {
				continue
			}
		}
	}
}
