package hostmanager

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
)

type MockCommandManager struct {
	Outputs map[string]cm.CommandResult
	Err     error
}

func (m *MockCommandManager) Run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	return m.Outputs[config.Command], m.Err
}

const bookworm = `PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"
NAME="Debian GNU/Linux"
VERSION_ID="12"
VERSION="12 (bookworm)"
VERSION_CODENAME=bookworm
ID=debian
HOME_URL="https://www.debian.org/"
`

const jammy = `NAME="Ubuntu"
VERSION="22.04.3 LTS (Jammy Jellyfish)"
ID=ubuntu
ID_LIKE=debian
UBUNTU_CODENAME=jammy
`

func TestHostname(t *testing.T) {
	mockCmd := &MockCommandManager{
		Outputs: map[string]cm.CommandResult{
			"hostname": {STDOUT: "test-hostname\n"},
		},
	}
	hostManager := UnixHostManager{CommandManager: mockCmd}

	hostname, err := hostManager.Hostname(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-hostname", hostname)
}

func TestDistroFromOSRelease(t *testing.T) {
	mockCmd := &MockCommandManager{
		Outputs: map[string]cm.CommandResult{
			"cat":   {STDOUT: bookworm},
			"uname": {STDOUT: "x86_64\n"},
		},
	}
	hostManager := UnixHostManager{CommandManager: mockCmd}

	distro, err := hostManager.Distro(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Distro{
		Name:        "Debian GNU/Linux",
		ID:          "debian",
		Codename:    "bookworm",
		MachineType: "x86_64",
	}, distro)
	assert.True(t, distro.IsDebianFamily())
}

func TestDistroUbuntuCodename(t *testing.T) {
	distro, err := ParseOSRelease([]byte(jammy))
	require.NoError(t, err)
	assert.Equal(t, "jammy", distro.Codename)
	assert.Equal(t, []string{"debian"}, distro.IDLike)
	assert.True(t, distro.IsDebianFamily())
}

func TestDistroLSBFallback(t *testing.T) {
	mockCmd := &MockCommandManager{
		Outputs: map[string]cm.CommandResult{
			"cat":         {ExitCode: 1, STDERR: "No such file or directory"},
			"lsb_release": {STDOUT: "wheezy\n"},
			"uname":       {STDOUT: "armv7l\n"},
		},
	}
	hostManager := UnixHostManager{CommandManager: mockCmd}

	distro, err := hostManager.Distro(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wheezy", distro.Codename)
	assert.Equal(t, "armv7l", distro.MachineType)
}

func TestDistroUnknownCodename(t *testing.T) {
	mockCmd := &MockCommandManager{
		Outputs: map[string]cm.CommandResult{
			"cat": {STDOUT: "ID=debian\n"},
		},
	}
	hostManager := UnixHostManager{CommandManager: mockCmd}

	_, err := hostManager.Distro(context.Background())
	assert.ErrorIs(t, err, ErrUnknownCodename)
}

func TestDistroTransportError(t *testing.T) {
	hostManager := UnixHostManager{CommandManager: &MockCommandManager{Err: errors.New("connection reset")}}
	_, err := hostManager.Distro(context.Background())
	assert.EqualError(t, err, "connection reset")
}

func TestIsDebianFamily(t *testing.T) {
	assert.False(t, Distro{ID: "centos", IDLike: []string{"rhel", "fedora"}}.IsDebianFamily())
	assert.True(t, Distro{ID: "linuxmint", IDLike: []string{"ubuntu"}}.IsDebianFamily())
}
