package hostmanager

import (
	"context"
	"strings"
)

// Distro identifies the operating system release of a host.
type Distro struct {
	Name        string
	ID          string
	IDLike      []string
	Codename    string
	MachineType string
}

// IsDebianFamily reports whether the host uses apt and dpkg.
func (d Distro) IsDebianFamily() bool {
	for _, id := range append([]string{d.ID}, d.IDLike...) {
		switch strings.ToLower(id) {
		case "debian", "ubuntu":
			return true
		}
	}
	return false
}

// HostManager gathers facts about a host.
type HostManager interface {
	Hostname(ctx context.Context) (string, error)
	Distro(ctx context.Context) (Distro, error)
}
