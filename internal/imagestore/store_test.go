package imagestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImage(t *testing.T, root, src string, cfg RuntimeConfig) *Image {
	t.Helper()
	store := New(root)
	scratch, err := os.MkdirTemp(root, "scratch-")
	require.NoError(t, err)

	img, err := store.Create(scratch, src, cfg)
	require.NoError(t, err)
	return img
}

func TestCreateAndResolveByPrefix(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	img := newTestImage(t, root, "alpine:3.18", RuntimeConfig{Cmd: []string{"/bin/sh"}})

	got, err := store.Resolve(img.ID[:8])

	require.NoError(t, err)
	assert.Equal(t, img.ID, got.ID)
	assert.Equal(t, "alpine:3.18", got.Src)
}

func TestResolveNotFound(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	_, err := store.Resolve("deadbeef")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAmbiguous(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	// Force a shared prefix by creating two images and resolving on "".
	newTestImage(t, root, "alpine:3.18", RuntimeConfig{Cmd: []string{"/bin/sh"}})
	newTestImage(t, root, "ubuntu:22.04", RuntimeConfig{Cmd: []string{"/bin/bash"}})

	_, err := store.Resolve("")

	assert.ErrorIs(t, err, ErrAmbiguous)
}

func TestConfigRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	want := RuntimeConfig{Cmd: []string{"/bin/echo", "hi"}, Env: []string{"FOO=bar"}, WorkingDir: "/app"}
	img := newTestImage(t, root, "alpine:3.18", want)

	got, err := store.Config(img)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestConfigRejectsEmptyCmd(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	img := newTestImage(t, root, "alpine:3.18", RuntimeConfig{})

	_, err := store.Config(img)

	assert.ErrorIs(t, err, ErrMalformedImage)
}

func TestListAndRemove(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	img := newTestImage(t, root, "alpine:3.18", RuntimeConfig{Cmd: []string{"/bin/sh"}})

	images, err := store.List()
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, img.ID, images[0].ID)

	require.NoError(t, store.Remove(img))

	_, err = os.Stat(filepath.Join(root, dirPrefix+img.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestFormatTableTruncatesID(t *testing.T) {
	images := []*Image{{ID: "0123456789abcdef", Src: "alpine:3.18"}}

	table := FormatTable(images)

	assert.Contains(t, table, "0123456789ab\talpine:3.18")
}
