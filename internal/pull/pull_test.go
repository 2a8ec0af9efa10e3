package pull

import (
	"archive/tar"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/onkernel/pocky/internal/imagestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestTar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	defer tw.Close()

	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
}

func TestExtractTarWritesRegularFiles(t *testing.T) {
	dest := t.TempDir()
	tarPath := filepath.Join(t.TempDir(), "layer.tar")
	writeTestTar(t, tarPath, map[string]string{
		"etc/hostname": "pocky\n",
		"bin/true":     "binary-contents",
	})

	require.NoError(t, extractTar(tarPath, dest))

	hostname, err := os.ReadFile(filepath.Join(dest, "etc/hostname"))
	require.NoError(t, err)
	assert.Equal(t, "pocky\n", string(hostname))

	bin, err := os.ReadFile(filepath.Join(dest, "bin/true"))
	require.NoError(t, err)
	assert.Equal(t, "binary-contents", string(bin))
}

func TestPullFlattensLayersAndWritesConfig(t *testing.T) {
	pockyDir := t.TempDir()
	scriptOutputDir := t.TempDir()

	layerHash := "deadbeef0123"
	require.NoError(t, os.MkdirAll(filepath.Join(scriptOutputDir, layerHash), 0o755))
	layerTarPath := filepath.Join(scriptOutputDir, layerHash, "layer.tar")
	writeTestTar(t, layerTarPath, map[string]string{"etc/os-release": "alpine\n"})

	cfgBlob, err := json.Marshal(map[string]any{
		"config": map[string]any{
			"Cmd":        []string{"/bin/sh"},
			"Env":        []string{"PATH=/usr/bin"},
			"WorkingDir": "",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(scriptOutputDir, "image-config.json"), cfgBlob, 0o644))

	manifest := []manifestEntry{{
		Config: "image-config.json",
		Layers: []string{layerHash + "/layer.tar"},
	}}
	manifestBlob, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(scriptOutputDir, "manifest.json"), manifestBlob, 0o644))

	// The fake "registry helper script" just copies our pre-built
	// scriptOutputDir contents into whatever scratch dir Pull passes it.
	scriptPath := filepath.Join(t.TempDir(), "fake-download.sh")
	script := "#!/bin/sh\ncp -r \"" + scriptOutputDir + "\"/. \"$1\"\n"
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))

	store := imagestore.New(pockyDir)
	img, err := Pull(store, pockyDir, scriptPath, "alpine", "3.18")

	require.NoError(t, err)
	assert.Equal(t, "alpine:3.18", img.Src)

	cfg, err := store.Config(img)
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/sh"}, cfg.Cmd)
	assert.Equal(t, []string{"PATH=/usr/bin"}, cfg.Env)

	osRelease, err := os.ReadFile(filepath.Join(img.Dir, "etc/os-release"))
	require.NoError(t, err)
	assert.Equal(t, "alpine\n", string(osRelease))

	_, err = os.Stat(filepath.Join(img.Dir, layerHash))
	assert.True(t, os.IsNotExist(err), "layer digest dir should be removed after extraction")
}

func TestPullRejectsMultipleManifests(t *testing.T) {
	pockyDir := t.TempDir()
	scriptOutputDir := t.TempDir()

	manifest := []manifestEntry{{Config: "a.json"}, {Config: "b.json"}}
	manifestBlob, err := json.Marshal(manifest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(scriptOutputDir, "manifest.json"), manifestBlob, 0o644))

	scriptPath := filepath.Join(t.TempDir(), "fake-download.sh")
	script := "#!/bin/sh\ncp -r \"" + scriptOutputDir + "\"/. \"$1\"\n"
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o755))

	store := imagestore.New(pockyDir)
	_, err = Pull(store, pockyDir, scriptPath, "alpine", "3.18")

	assert.ErrorIs(t, err, ErrMultipleManifests)
}
