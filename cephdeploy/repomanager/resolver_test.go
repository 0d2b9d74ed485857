package repomanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOfficial(t *testing.T) {
	tests := []struct {
		name   string
		source Official
		want   RepoAddress
	}{
		{
			name:   "stable",
			source: Official{Kind: Stable, Version: "firefly", Codename: "trusty", MachineType: "x86_64"},
			want: RepoAddress{
				KeyURL:         "https://git.ceph.com/?p=ceph.git;a=blob_plain;f=keys/release.asc",
				KeyFile:        "release.asc",
				RepoURL:        "http://ceph.com/debian-firefly",
				SourceListFile: "ceph.list",
				PriorityDomain: "ceph.com",
			},
		},
		{
			name:   "testing",
			source: Official{Kind: Testing, Codename: "jessie"},
			want: RepoAddress{
				KeyURL:         "https://git.ceph.com/?p=ceph.git;a=blob_plain;f=keys/release.asc",
				KeyFile:        "release.asc",
				RepoURL:        "http://ceph.com/debian-testing",
				SourceListFile: "ceph.list",
				PriorityDomain: "ceph.com",
			},
		},
		{
			name:   "dev",
			source: Official{Kind: Dev, Version: "master", Codename: "trusty", MachineType: "x86_64"},
			want: RepoAddress{
				KeyURL:         "https://git.ceph.com/?p=ceph.git;a=blob_plain;f=keys/autobuild.asc",
				KeyFile:        "autobuild.asc",
				RepoURL:        "http://gitbuilder.ceph.com/ceph-deb-trusty-x86_64-basic/ref/master",
				SourceListFile: "ceph.list",
				PriorityDomain: "gitbuilder.ceph.com",
			},
		},
		{
			name:   "legacy release fetches key over http",
			source: Official{Kind: Stable, Version: "dumpling", Codename: "wheezy"},
			want: RepoAddress{
				KeyURL:         "http://git.ceph.com/?p=ceph.git;a=blob_plain;f=keys/release.asc",
				KeyFile:        "release.asc",
				RepoURL:        "http://ceph.com/debian-dumpling",
				SourceListFile: "ceph.list",
				PriorityDomain: "ceph.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveUnknownVersionKind(t *testing.T) {
	_, err := Resolve(Official{Kind: "nightly", Codename: "trusty"})
	assert.ErrorIs(t, err, ErrUnknownVersionKind)
	assert.Contains(t, err.Error(), `"nightly"`)
}

func TestKeyURLScheme(t *testing.T) {
	for _, codename := range []string{"trusty", "jessie", "bookworm", "jammy", ""} {
		assert.Contains(t, KeyURL("release", codename), "https://", codename)
	}
	assert.Regexp(t, `^http://`, KeyURL("autobuild", "wheezy"))
}

func TestResolveMirror(t *testing.T) {
	got, err := Resolve(Mirror{RepoURL: "http://x/y//", GPGKeyURL: "http://x/key.asc"})
	require.NoError(t, err)
	assert.Equal(t, RepoAddress{
		KeyURL:         "http://x/key.asc",
		KeyFile:        "release.asc",
		RepoURL:        "http://x/y",
		SourceListFile: "ceph.list",
		PriorityDomain: "x",
	}, got)
}

func TestResolveLocalKey(t *testing.T) {
	got, err := Resolve(Mirror{RepoURL: "http://mirror.example.org/ceph", GPGKeyURL: "file:///etc/ceph/mirror.asc"})
	require.NoError(t, err)
	assert.Empty(t, got.KeyURL)
	assert.Equal(t, "/etc/ceph/mirror.asc", got.KeyFile)
}

func TestResolveNamedRepo(t *testing.T) {
	got, err := Resolve(NamedRepo{
		Name:      "ceph extras  repo",
		BaseURL:   "http://mirror.example.org:8080/ceph",
		GPGKeyURL: "https://mirror.example.org/release.asc",
	})
	require.NoError(t, err)
	assert.Equal(t, "ceph-extras-repo.list", got.SourceListFile)
	assert.Equal(t, "mirror.example.org", got.PriorityDomain)
	assert.Equal(t, "http://mirror.example.org:8080/ceph", got.RepoURL)
	assert.Equal(t, "release.asc", got.KeyFile)
}

func TestResolveNamedRepoWithoutKey(t *testing.T) {
	got, err := Resolve(NamedRepo{Name: "calamari", BaseURL: "http://repo.example.com/calamari/"})
	require.NoError(t, err)
	assert.Empty(t, got.KeyURL)
	assert.Equal(t, "release.asc", got.KeyFile)
	assert.Equal(t, "http://repo.example.com/calamari", got.RepoURL)
}

func TestResolveInvalidURL(t *testing.T) {
	_, err := Resolve(Mirror{RepoURL: "/just/a/path", GPGKeyURL: "http://x/k"})
	assert.ErrorIs(t, err, ErrInvalidRepoURL)

	_, err = Resolve(NamedRepo{Name: "bad", BaseURL: "http://[::1"})
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
}

func TestResolveLocalDirectory(t *testing.T) {
	_, err := Resolve(LocalDirectory{Path: "/srv/debs"})
	assert.ErrorIs(t, err, ErrNoRepository)
}

func TestPriorityDomain(t *testing.T) {
	domain, err := PriorityDomain("http://mirror.example.org:8080/ceph")
	require.NoError(t, err)
	assert.Equal(t, "mirror.example.org", domain)
}

func TestSourceListFilename(t *testing.T) {
	assert.Equal(t, "ceph.list", SourceListFilename(""))
	assert.Equal(t, "ceph.list", SourceListFilename("   "))
	assert.Equal(t, "my-repo.list", SourceListFilename("my repo"))
	assert.Equal(t, "a--b.list", SourceListFilename("a  b"))
	assert.Equal(t, "a\tb-c.list", SourceListFilename("a\tb c"))
}
