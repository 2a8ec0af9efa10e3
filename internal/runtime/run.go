package runtime

import (
	"context"
	"fmt"

	"github.com/onkernel/pocky/internal/cgroups"
	"github.com/onkernel/pocky/internal/containerstore"
	"github.com/onkernel/pocky/internal/imagestore"
	"github.com/onkernel/pocky/internal/logging"
	"github.com/onkernel/pocky/internal/network"
	"github.com/onkernel/pocky/internal/overlay"
)

// RunRequest carries everything `run` needs before any fork happens.
type RunRequest struct {
	ImageIDPrefix string
	Argv          []string
	Limits        cgroups.Limits
	BridgeName    string
	DNSServer     string
}

// Run executes spec.md §4.7's full pipeline: resolve the image, allocate
// the container directory and overlay mount, wire the host-side network,
// fork the container (Launch), and always tear down afterward — mirroring
// lib/instances/create.go's validate→allocate→start shape, with a
// cleanup-on-error path for every step that runs before the fork.
func Run(ctx context.Context, imgStore *imagestore.Store, ctrStore *containerstore.Store, req RunRequest) (exitCode int, err error) {
	log := logging.FromContext(ctx)

	// Step 1: validate image id; read config.
	img, err := imgStore.Resolve(req.ImageIDPrefix)
	if err != nil {
		return 1, fmt.Errorf("resolve image: %w", err)
	}
	rtCfg, err := imgStore.Config(img)
	if err != nil {
		return 1, fmt.Errorf("read image config: %w", err)
	}

	cmd := req.Argv
	if len(cmd) == 0 {
		cmd = rtCfg.Cmd
	}

	// Step 3: allocate container dir, metadata, overlay mount.
	ctr, err := ctrStore.Allocate()
	if err != nil {
		return 1, fmt.Errorf("allocate container: %w", err)
	}
	cleanupDir := true
	defer func() {
		if cleanupDir {
			ctrStore.Remove(ctr)
		}
	}()

	if err := ctr.WriteMetadata(img.Src, cmd); err != nil {
		return 1, fmt.Errorf("write container metadata: %w", err)
	}

	if err := overlay.Mount(ctr.MountDir(), img.Dir, ctr.UpperDir(), ctr.WorkDir()); err != nil {
		return 1, fmt.Errorf("mount overlay: %w", err)
	}
	cleanupOverlay := true
	defer func() {
		if cleanupOverlay {
			overlay.Unmount(ctr.MountDir())
		}
	}()

	// Step 4: allocate netns id; create host-side veth + netns.
	n, err := network.AllocateID()
	if err != nil {
		return 1, fmt.Errorf("allocate netns id: %w", err)
	}
	alloc, err := network.HostSetup(n, req.BridgeName)
	if err != nil {
		return 1, fmt.Errorf("set up host network: %w", err)
	}
	cleanupNetwork := true
	defer func() {
		if cleanupNetwork {
			network.Teardown(n)
		}
	}()

	if err := ctr.WriteNetns(n); err != nil {
		return 1, fmt.Errorf("write netns.txt: %w", err)
	}

	spec := LaunchSpec{
		ContainerDir: ctr.Dir,
		MountDir:     ctr.MountDir(),
		WorkingDir:   rtCfg.WorkingDir,
		Cmd:          cmd,
		Env:          rtCfg.Env,
		NetnsN:       n,
		NSVeth:       alloc.NSVeth,
		DNSServer:    req.DNSServer,
		Limits:       req.Limits,
	}

	// Step 5 onward: fork C1/C2 and wait for the contained process to exit.
	log.InfoContext(ctx, "starting container", "container_id", ctr.ID, "image_id", img.ID)
	code, launchErr := Launch(ctx, ctr, spec)

	// The container ran (however it exited); teardown now owns cleanup of
	// everything allocated above, in its own load-bearing order, so the
	// deferred best-effort cleanups here are suppressed.
	cleanupDir, cleanupOverlay, cleanupNetwork = false, false, false

	if err := Teardown(ctx, ctrStore, ctr); err != nil {
		log.WarnContext(ctx, "teardown reported an error", "container_id", ctr.ID, "error", err)
	}

	if launchErr != nil {
		return 1, fmt.Errorf("launch container: %w", launchErr)
	}
	return code, nil
}
