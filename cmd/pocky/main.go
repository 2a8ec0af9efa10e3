// Command pocky is a minimal Linux container manager: it pulls OCI/Docker
// Hub images, materializes them as layered root filesystems, and runs
// programs inside isolated namespaces with cgroup-bounded resources and a
// private veth link to a host bridge. Grounded on original_source/pocky.py's
// argv-dispatch main(), translated into the teacher's thin-main,
// subsystem-logger convention (cmd/api/main.go, hypeman).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/onkernel/pocky/internal/cgroups"
	"github.com/onkernel/pocky/internal/config"
	"github.com/onkernel/pocky/internal/containerstore"
	"github.com/onkernel/pocky/internal/imagestore"
	"github.com/onkernel/pocky/internal/logging"
	"github.com/onkernel/pocky/internal/pull"
	"github.com/onkernel/pocky/internal/runtime"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case runtime.Stage1Arg:
			return runtime.RunStage1()
		case runtime.Stage2Arg:
			return runtime.RunStage2()
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky:", err)
		return 1
	}

	logCfg := logging.NewConfig()
	log := logging.NewSubsystemLogger(logging.SubsystemCLI, logCfg)
	ctx := logging.AddToContext(context.Background(), log)

	if len(os.Args) <= 1 {
		fmt.Fprintln(os.Stderr, "Please provide a valid command.")
		return 0
	}

	if !bridgeExists(cfg.BridgeName) {
		fmt.Fprintf(os.Stderr, "pocky: bridge %s not found; run scripts/setup_networking.sh first\n", cfg.BridgeName)
		return 1
	}

	imgStore := imagestore.New(cfg.PockyDir)
	ctrStore := containerstore.New(cfg.PockyDir)

	switch os.Args[1] {
	case "run":
		return cmdRun(ctx, cfg, imgStore, ctrStore, os.Args[2:])
	case "pull":
		return cmdPull(imgStore, cfg, os.Args[2:])
	case "images":
		return cmdImages(imgStore)
	case "ps":
		return cmdPS(ctrStore)
	case "rm":
		return cmdRm(ctx, ctrStore, os.Args[2:])
	case "rmi":
		return cmdRmi(imgStore, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, "Invalid command: please try again.")
		return 1
	}
}

// bridgeExists mirrors the original's `brctl show` scrape to decide
// whether the host bridge is already provisioned (spec.md §1: host bridge
// provisioning is a one-shot script, out of scope here).
func bridgeExists(name string) bool {
	out, err := exec.Command("brctl", "show").Output()
	if err != nil {
		return false
	}
	return bridgeListHasName(string(out), name)
}

func bridgeListHasName(brctlOutput, name string) bool {
	matched, _ := regexp.MatchString(`\b`+regexp.QuoteMeta(name)+`\b`, brctlOutput)
	return matched
}

func cmdRun(ctx context.Context, cfg config.Config, imgStore *imagestore.Store, ctrStore *containerstore.Store, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pocky run <image-id-prefix> [argv...]")
		return 1
	}

	imageID := args[0]
	argv := args[1:]

	if _, err := imgStore.Resolve(imageID); err != nil {
		fmt.Fprintln(os.Stderr, "Provided image id does not exist.")
		return 1
	}

	reader := bufio.NewReader(os.Stdin)
	cpu := config.PromptInt(os.Stdout, reader, "CPU shares for container", cfg.DefaultCPUShares)
	memMB := config.PromptInt(os.Stdout, reader, "Memory for container in MB", cfg.DefaultMemoryMB)
	pids := config.PromptInt(os.Stdout, reader, "PIDs for container", cfg.DefaultPidsMax)

	req := runtime.RunRequest{
		ImageIDPrefix: imageID,
		Argv:          argv,
		Limits: cgroups.Limits{
			CPUShares: cpu,
			MemoryMB:  memMB,
			PidsMax:   pids,
		},
		BridgeName: cfg.BridgeName,
		DNSServer:  cfg.DNSServer,
	}

	code, err := runtime.Run(ctx, imgStore, ctrStore, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: run:", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func cmdPull(imgStore *imagestore.Store, cfg config.Config, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: pocky pull <name> <tag>")
		return 1
	}

	fmt.Println("Pulling....")
	img, err := pull.Pull(imgStore, cfg.PockyDir, "./scripts/download-frozen-image-v2.sh", args[0], args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: pull:", err)
		return 1
	}

	fmt.Printf("Successfully pulled image %s.\n", img.Src)
	return 0
}

func cmdImages(imgStore *imagestore.Store) int {
	images, err := imgStore.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: images:", err)
		return 1
	}
	fmt.Print(imagestore.FormatTable(images))
	return 0
}

func cmdPS(ctrStore *containerstore.Store) int {
	containers, err := ctrStore.List(cgroups.IsLive)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pocky: ps:", err)
		return 1
	}
	fmt.Print(containerstore.FormatTable(containers))
	return 0
}

func cmdRm(ctx context.Context, ctrStore *containerstore.Store, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pocky rm <container-id>")
		return 1
	}

	ctr, err := ctrStore.Resolve(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Provided container does not exist.")
		return 1
	}

	if err := runtime.Teardown(ctx, ctrStore, ctr); err != nil {
		fmt.Fprintln(os.Stderr, "There was an error deleting", args[0])
		return 1
	}
	return 0
}

func cmdRmi(imgStore *imagestore.Store, args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: pocky rmi <image-id>")
		return 1
	}

	img, err := imgStore.Resolve(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Provided image does not exist.")
		return 1
	}

	if err := imgStore.Remove(img); err != nil {
		fmt.Fprintln(os.Stderr, "pocky: rmi:", err)
		return 1
	}
	return 0
}
