// Package config loads pocky's runtime configuration from the environment.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is pocky's full runtime configuration.
type Config struct {
	// PockyDir is the root directory holding img_<uuid> and ps_<uuid> dirs.
	PockyDir string
	// BridgeName is the pre-existing host bridge every veth attaches to.
	BridgeName string
	// DNSServer is written into the container's /etc/resolv.conf.
	DNSServer string
	// SubnetCIDR is the bridge's subnet (informational; the plumber uses
	// the fixed 10.0.0.0/24 scheme from the address-allocation rules).
	SubnetCIDR string

	// DefaultCPUShares is the cgroup cpu.shares weight used when the user
	// leaves the CPU prompt blank.
	DefaultCPUShares int
	// DefaultMemoryMB is the memory limit, in megabytes, used when the
	// user leaves the memory prompt blank.
	DefaultMemoryMB int
	// DefaultPidsMax is the pids.max cap used when the user leaves the
	// pids prompt blank.
	DefaultPidsMax int
}

// Load reads a .env file (if present) via godotenv and builds a Config from
// the process environment, applying pocky's defaults for anything unset.
func Load() (Config, error) {
	// godotenv.Load is a no-op error we tolerate: a missing .env file is
	// the common case outside development.
	_ = godotenv.Load()

	cfg := Config{
		PockyDir:         getEnv("POCKY_DIR", "/var/pocky"),
		BridgeName:       getEnv("BRIDGE_NAME", "bridge0"),
		DNSServer:        getEnv("DNS_SERVER", "8.8.8.8"),
		SubnetCIDR:       getEnv("SUBNET_CIDR", "10.0.0.0/24"),
		DefaultCPUShares: getEnvInt("DEFAULT_CPU_SHARES", 512),
		DefaultMemoryMB:  getEnvInt("DEFAULT_MEMORY_MB", 512),
		DefaultPidsMax:   getEnvInt("DEFAULT_PIDS_MAX", 512),
	}

	if cfg.PockyDir == "" {
		return Config{}, fmt.Errorf("POCKY_DIR must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// PromptInt reads one line from r, printing prompt to w first. A blank line
// returns fallback. A non-numeric line also returns fallback (clarifying the
// muddled double-call validation in the original this is ported from — see
// DESIGN.md). A well-formed integer returns its value.
func PromptInt(w io.Writer, r *bufio.Reader, prompt string, fallback int) int {
	fmt.Fprintf(w, "%s [%d]: ", prompt, fallback)

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return fallback
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}

	n, err := strconv.Atoi(line)
	if err != nil {
		return fallback
	}
	return n
}
