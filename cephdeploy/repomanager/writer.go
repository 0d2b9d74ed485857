package repomanager

import (
	"context"
	"fmt"
	"path"

	"github.com/varadakari/ceph-deploy/cephdeploy/filemanager"
)

const (
	SourcesDir     = "/etc/apt/sources.list.d"
	PreferencesDir = "/etc/apt/preferences.d"
	PinPriority    = 999
)

// AptRepoWriter registers repositories with apt on a host.
type AptRepoWriter struct {
	Files filemanager.FileManager
}

// WriteSourceList overwrites sources.list.d/filename with a single entry.
func (w *AptRepoWriter) WriteSourceList(ctx context.Context, repoURL, codename, filename string) error {
	if filename == "" {
		filename = DefaultSourceList
	}
	return w.Files.WriteFile(ctx, path.Join(SourcesDir, filename), []byte(SourceListEntry(repoURL, codename)), 0o644)
}

// SetPriority pins every package from domain above the distro repositories.
func (w *AptRepoWriter) SetPriority(ctx context.Context, domain string) error {
	return w.Files.WriteFile(ctx, path.Join(PreferencesDir, "ceph.pref"), []byte(PinEntry(domain)), 0o644)
}

func SourceListEntry(repoURL, codename string) string {
	return fmt.Sprintf("deb %s %s main\n", repoURL, codename)
}

func PinEntry(domain string) string {
	return fmt.Sprintf("Package: *\nPin: origin %s\nPin-Priority: %d\n", domain, PinPriority)
}
