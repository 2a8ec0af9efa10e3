package config

import (
	"bufio"
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"POCKY_DIR", "BRIDGE_NAME", "DNS_SERVER", "SUBNET_CIDR",
		"DEFAULT_CPU_SHARES", "DEFAULT_MEMORY_MB", "DEFAULT_PIDS_MAX",
	}
	for _, k := range keys {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/var/pocky", cfg.PockyDir)
	assert.Equal(t, "bridge0", cfg.BridgeName)
	assert.Equal(t, "8.8.8.8", cfg.DNSServer)
	assert.Equal(t, "10.0.0.0/24", cfg.SubnetCIDR)
	assert.Equal(t, 512, cfg.DefaultCPUShares)
	assert.Equal(t, 512, cfg.DefaultMemoryMB)
	assert.Equal(t, 512, cfg.DefaultPidsMax)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("POCKY_DIR", "/tmp/pocky-test")
	os.Setenv("DEFAULT_CPU_SHARES", "256")
	defer clearEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "/tmp/pocky-test", cfg.PockyDir)
	assert.Equal(t, 256, cfg.DefaultCPUShares)
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	os.Setenv("DEFAULT_PIDS_MAX", "not-a-number")
	defer os.Unsetenv("DEFAULT_PIDS_MAX")

	assert.Equal(t, 512, getEnvInt("DEFAULT_PIDS_MAX", 512))
}

func TestPromptIntBlankYieldsDefault(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("\n"))
	var out bytes.Buffer

	got := PromptInt(&out, r, "CPU shares", 512)

	assert.Equal(t, 512, got)
}

func TestPromptIntNonNumericYieldsDefault(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("banana\n"))
	var out bytes.Buffer

	got := PromptInt(&out, r, "Memory", 512)

	assert.Equal(t, 512, got)
}

func TestPromptIntIntegerYieldsValue(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("256\n"))
	var out bytes.Buffer

	got := PromptInt(&out, r, "PIDs", 512)

	assert.Equal(t, 256, got)
}
