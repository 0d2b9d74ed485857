package host

import (
	"github.com/sirupsen/logrus"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/hostmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/sshmanager"
)

type HostOption func(*Host)

// WithUser returns a HostOption that sets the user for a Host.
func WithUser(user string) HostOption {
	return func(host *Host) {
		host.User = user
	}
}

// WithPassword returns a HostOption that sets the password for a Host.
func WithPassword(password string) HostOption {
	return func(host *Host) {
		host.Password = password
	}
}

// WithKeyPassphrase returns a HostOption that sets the key passphrase for a Host.
func WithKeyPassphrase(keyPassphrase string) HostOption {
	return func(host *Host) {
		host.KeyPassphrase = keyPassphrase
	}
}

// WithSudoPassword returns a HostOption that sets the sudo password for a Host.
func WithSudoPassword(password string) HostOption {
	return func(host *Host) {
		host.SudoPassword = password
	}
}

func WithPort(port int) HostOption {
	return func(host *Host) {
		host.Port = port
	}
}

func WithLogger(log logrus.FieldLogger) HostOption {
	return func(host *Host) {
		host.Log = log
	}
}

// WithSSHDialer replaces the dialer used for the host connection.
func WithSSHDialer(dialer sshmanager.Dialer) HostOption {
	return func(host *Host) {
		host.dialer = dialer
	}
}

func WithKeyManager(km sshmanager.SSHKeyManager) HostOption {
	return func(host *Host) {
		host.keyManager = km
	}
}

// WithCommandManager bypasses SSH entirely; every manager runs through cmd.
func WithCommandManager(cmd cm.CommandManager) HostOption {
	return func(host *Host) {
		host.CommandManager = cmd
	}
}

// WithDistro skips distribution detection.
func WithDistro(distro hostmanager.Distro) HostOption {
	return func(host *Host) {
		host.Distro = distro
		host.distroKnown = true
	}
}
