package runtime

import (
	"os"
	"strings"
	"testing"

	"github.com/onkernel/pocky/internal/cgroups"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchSpecEnvRoundTrip(t *testing.T) {
	want := LaunchSpec{
		ContainerDir: "/var/pocky/ps_abc",
		MountDir:     "/var/pocky/ps_abc/fs/mnt",
		WorkingDir:   "/app",
		Cmd:          []string{"/bin/echo", "hi"},
		Env:          []string{"FOO=bar"},
		NetnsN:       17,
		NSVeth:       "veth1_17",
		DNSServer:    "8.8.8.8",
		Limits:       cgroups.Limits{CPUShares: 512, MemoryMB: 512, PidsMax: 512},
	}

	envLine, err := want.toEnv()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(envLine, launchSpecEnvVar+"="))

	raw := strings.TrimPrefix(envLine, launchSpecEnvVar+"=")
	os.Setenv(launchSpecEnvVar, raw)
	defer os.Unsetenv(launchSpecEnvVar)

	got, err := launchSpecFromEnv()

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLaunchSpecFromEnvMissingErrors(t *testing.T) {
	os.Unsetenv(launchSpecEnvVar)

	_, err := launchSpecFromEnv()

	assert.Error(t, err)
}

func TestFilterLaunchSpecEnvRemovesOnlyItsOwnVar(t *testing.T) {
	env := []string{"PATH=/usr/bin", launchSpecEnvVar + "={}", "HOME=/root"}

	got := filterLaunchSpecEnv(env)

	assert.ElementsMatch(t, []string{"PATH=/usr/bin", "HOME=/root"}, got)
}
