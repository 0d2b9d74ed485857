package repomanager

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrUnknownVersionKind = errors.New("unknown version kind")
	ErrInvalidRepoURL     = errors.New("invalid repository url")
	ErrNoRepository       = errors.New("install source has no repository")
)

const (
	// LegacyCodename is the one release whose trust store rejects the key
	// server certificate, so its key is fetched over plain http.
	LegacyCodename = "wheezy"

	DefaultSourceList = "ceph.list"
	DefaultKeyFile    = "release.asc"

	officialRepoBase = "http://ceph.com"
	devRepoBase      = "http://gitbuilder.ceph.com"
	keyHost          = "git.ceph.com"
	localKeyScheme   = "file://"
)

type VersionKind string

const (
	Stable  VersionKind = "stable"
	Testing VersionKind = "testing"
	Dev     VersionKind = "dev"
)

// InstallSource is one of Official, Mirror, NamedRepo or LocalDirectory.
type InstallSource interface {
	isInstallSource()
}

// Official installs from the upstream package repositories.
type Official struct {
	Kind        VersionKind
	Version     string
	Codename    string
	MachineType string
}

// Mirror installs from a copy of the official repository.
type Mirror struct {
	RepoURL         string
	GPGKeyURL       string
	InstallPackages bool
}

// NamedRepo is an arbitrary third-party repository identified by name.
type NamedRepo struct {
	Name            string
	BaseURL         string
	GPGKeyURL       string
	InstallPackages bool
}

// LocalDirectory holds .deb files already present on the host.
type LocalDirectory struct {
	Path string
}

func (Official) isInstallSource()       {}
func (Mirror) isInstallSource()         {}
func (NamedRepo) isInstallSource()      {}
func (LocalDirectory) isInstallSource() {}

// RepoAddress is everything needed to trust and register one repository.
type RepoAddress struct {
	// KeyURL is empty when the key is already on the host.
	KeyURL string
	// KeyFile is the path handed to apt-key add.
	KeyFile        string
	RepoURL        string
	SourceListFile string
	PriorityDomain string
}

// Resolve maps an install source to its repository address. It performs no I/O.
func Resolve(source InstallSource) (RepoAddress, error) {
	switch s := source.(type) {
	case Official:
		return resolveOfficial(s)
	case Mirror:
		return resolveCustom(s.RepoURL, s.GPGKeyURL, "")
	case NamedRepo:
		return resolveCustom(s.BaseURL, s.GPGKeyURL, s.Name)
	case LocalDirectory:
		return RepoAddress{}, fmt.Errorf("%w: local directory %s", ErrNoRepository, s.Path)
	default:
		return RepoAddress{}, fmt.Errorf("%w: %T", ErrNoRepository, source)
	}
}

func resolveOfficial(s Official) (RepoAddress, error) {
	var repoURL, key string
	switch s.Kind {
	case Stable:
		repoURL = fmt.Sprintf("%s/debian-%s/", officialRepoBase, s.Version)
		key = "release"
	case Testing:
		repoURL = officialRepoBase + "/debian-testing/"
		key = "release"
	case Dev:
		repoURL = fmt.Sprintf("%s/ceph-deb-%s-%s-basic/ref/%s",
			devRepoBase, s.Codename, s.MachineType, s.Version)
		key = "autobuild"
	default:
		return RepoAddress{}, fmt.Errorf("%w: %q", ErrUnknownVersionKind, s.Kind)
	}

	addr := RepoAddress{
		KeyURL:         KeyURL(key, s.Codename),
		KeyFile:        key + ".asc",
		RepoURL:        strings.TrimRight(repoURL, "/"),
		SourceListFile: DefaultSourceList,
	}
	domain, err := PriorityDomain(addr.RepoURL)
	if err != nil {
		return RepoAddress{}, err
	}
	addr.PriorityDomain = domain
	return addr, nil
}

func resolveCustom(repoURL, keyURL, name string) (RepoAddress, error) {
	addr := RepoAddress{
		RepoURL:        strings.TrimRight(repoURL, "/"),
		SourceListFile: SourceListFilename(name),
	}

	switch {
	case strings.HasPrefix(keyURL, localKeyScheme):
		addr.KeyFile = strings.TrimPrefix(keyURL, localKeyScheme)
	case keyURL != "":
		addr.KeyURL = keyURL
		addr.KeyFile = DefaultKeyFile
	default:
		// Trust whatever release.asc an earlier run left behind.
		addr.KeyFile = DefaultKeyFile
	}

	domain, err := PriorityDomain(addr.RepoURL)
	if err != nil {
		return RepoAddress{}, err
	}
	addr.PriorityDomain = domain
	return addr, nil
}

// KeyURL returns where the named upstream signing key is published.
func KeyURL(key, codename string) string {
	scheme := "https"
	if codename == LegacyCodename {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/?p=ceph.git;a=blob_plain;f=keys/%s.asc", scheme, keyHost, key)
}

// PriorityDomain returns the bare hostname serving repoURL.
func PriorityDomain(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidRepoURL, repoURL)
	}
	return u.Hostname(), nil
}

// SourceListFilename derives the sources.list.d entry for a repository name.
// Unnamed repositories all share DefaultSourceList.
func SourceListFilename(name string) string {
	if strings.TrimSpace(name) == "" {
		return DefaultSourceList
	}
	return strings.ReplaceAll(name, " ", "-") + ".list"
}
