package host

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"path"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/common"
	"github.com/varadakari/ceph-deploy/cephdeploy/filemanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/hostmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/installmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/packagemanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/repomanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/sshmanager"
)

// KeyDir holds signing keys uploaded from the admin node.
const KeyDir = "/etc/apt/ceph-deploy"

var (
	ErrInvalidHostname   = errors.New("invalid hostname")
	ErrUnsupportedDistro = errors.New("unsupported distribution, only Debian and Ubuntu hosts are handled")
)

var currentUser = user.Current

var hostnamePattern = regexp.MustCompile(`^[A-Za-z0-9._:\-\[\]]+$`)

// Host is one provisioning target and the managers bound to its connection.
type Host struct {
	Hostname string
	Port     int
	common.Credentials
	Distro hostmanager.Distro
	Log    logrus.FieldLogger

	CommandManager cm.CommandManager
	FileManager    filemanager.FileManager
	HostManager    hostmanager.HostManager
	PackageManager packagemanager.PackageManager
	RepoWriter     *repomanager.AptRepoWriter

	dialer      sshmanager.Dialer
	keyManager  sshmanager.SSHKeyManager
	conn        *sshmanager.Connection
	distroKnown bool
}

// NewHost wires the managers for hostname. Nothing is dialed until Connect.
func NewHost(hostname string, options ...HostOption) (*Host, error) {
	if !hostnamePattern.MatchString(hostname) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHostname, hostname)
	}

	h := &Host{Hostname: hostname}
	for _, option := range options {
		option(h)
	}

	// Without an explicit user, log in as the invoking user like ssh(1).
	if h.User == "" {
		currentUser, err := currentUser()
		if err != nil {
			return nil, fmt.Errorf("could not get current user: %w", err)
		}
		h.User = currentUser.Username
	}
	h.Log = common.LoggerOrDiscard(h.Log).WithField("host", hostname)

	configureDebianHost(h)
	return h, nil
}

func configureDebianHost(h *Host) {
	var stager filemanager.Stager = &filemanager.LocalStager{}

	if h.CommandManager == nil {
		if h.dialer == nil {
			h.dialer = sshmanager.RealDialer{}
		}
		h.conn = &sshmanager.Connection{
			Hostname:    h.Hostname,
			Port:        h.Port,
			Credentials: h.Credentials,
			Dialer:      h.dialer,
			KeyManager:  h.keyManager,
			Logger:      h.Log,
		}
		cmdManager := &cm.UnixCommandManager{
			Hostname:    h.Hostname,
			Conn:        h.conn,
			Credentials: h.Credentials,
			Log:         h.Log,
		}
		if h.Hostname != "localhost" && h.Hostname != "127.0.0.1" {
			stager = &filemanager.SFTPStager{Conn: h.conn}
		}
		h.CommandManager = cmdManager
	}

	files := &filemanager.UnixFileManager{CommandManager: h.CommandManager, Stager: stager}
	h.FileManager = files
	h.HostManager = &hostmanager.UnixHostManager{CommandManager: h.CommandManager}
	h.PackageManager = &packagemanager.AptPackageManager{CommandManager: h.CommandManager}
	h.RepoWriter = &repomanager.AptRepoWriter{Files: files}
}

// Connect detects the distribution and rejects hosts that are not Debian based.
func (h *Host) Connect(ctx context.Context) error {
	if !h.distroKnown {
		distro, err := h.HostManager.Distro(ctx)
		if err != nil {
			return fmt.Errorf("failed to detect distribution: %w", err)
		}
		h.Distro = distro
		h.distroKnown = true
		h.checkRemoteHostname(ctx)
	}

	h.Log.Infof("Distro info: %s %s %s", h.Distro.Name, h.Distro.Codename, h.Distro.MachineType)
	if !h.Distro.IsDebianFamily() {
		return fmt.Errorf("%w: %s", ErrUnsupportedDistro, h.Distro.ID)
	}
	return nil
}

// checkRemoteHostname warns when the address used to reach a host is not
// its own short hostname. Monitors are later created under that name.
func (h *Host) checkRemoteHostname(ctx context.Context) {
	remote, err := h.HostManager.Hostname(ctx)
	if err != nil {
		h.Log.WithError(err).Debug("Could not read remote hostname")
		return
	}
	short := strings.SplitN(h.Hostname, ".", 2)[0]
	if remote != "" && remote != short && remote != h.Hostname {
		h.Log.Warnf("Remote hostname %s does not match %s", remote, h.Hostname)
	}
}

// Installer returns an installer bound to this host's connection and release.
func (h *Host) Installer() *installmanager.Installer {
	return &installmanager.Installer{
		Commands: h.CommandManager,
		Packages: h.PackageManager,
		Repos:    h.RepoWriter,
		Files:    h.FileManager,
		Codename: h.Distro.Codename,
		Log:      h.Log,
	}
}

// UploadKey copies a signing key to KeyDir and returns a file:// URL for it.
func (h *Host) UploadKey(ctx context.Context, name string, data []byte) (string, error) {
	remotePath := path.Join(KeyDir, path.Base(name))
	if err := h.FileManager.WriteFile(ctx, remotePath, data, 0o644); err != nil {
		return "", err
	}
	return "file://" + remotePath, nil
}

// Close releases the SSH connection, if one was opened.
func (h *Host) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
