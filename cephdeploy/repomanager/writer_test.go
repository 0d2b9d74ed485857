package repomanager

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writtenFile struct {
	path string
	data string
	mode os.FileMode
}

type MockFileManager struct {
	Written []writtenFile
	Err     error
}

func (m *MockFileManager) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	m.Written = append(m.Written, writtenFile{path, string(data), mode})
	return m.Err
}

func (m *MockFileManager) Exists(ctx context.Context, path string) (bool, error) { return false, nil }

func TestWriteSourceList(t *testing.T) {
	files := &MockFileManager{}
	w := &AptRepoWriter{Files: files}

	require.NoError(t, w.WriteSourceList(context.Background(), "http://ceph.com/debian-firefly", "trusty", ""))
	require.NoError(t, w.WriteSourceList(context.Background(), "http://repo.example.com/x", "jessie", "x-repo.list"))

	assert.Equal(t, []writtenFile{
		{"/etc/apt/sources.list.d/ceph.list", "deb http://ceph.com/debian-firefly trusty main\n", 0o644},
		{"/etc/apt/sources.list.d/x-repo.list", "deb http://repo.example.com/x jessie main\n", 0o644},
	}, files.Written)
}

func TestSetPriority(t *testing.T) {
	files := &MockFileManager{}
	w := &AptRepoWriter{Files: files}

	require.NoError(t, w.SetPriority(context.Background(), "mirror.example.org"))
	require.Len(t, files.Written, 1)
	assert.Equal(t, "/etc/apt/preferences.d/ceph.pref", files.Written[0].path)
	assert.Equal(t, "Package: *\nPin: origin mirror.example.org\nPin-Priority: 999\n", files.Written[0].data)
}

func TestWriterPropagatesErrors(t *testing.T) {
	w := &AptRepoWriter{Files: &MockFileManager{Err: errors.New("read-only file system")}}
	assert.EqualError(t, w.SetPriority(context.Background(), "x"), "read-only file system")
	assert.EqualError(t, w.WriteSourceList(context.Background(), "http://x", "y", ""), "read-only file system")
}
