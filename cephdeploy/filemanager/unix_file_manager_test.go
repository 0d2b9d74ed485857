package filemanager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
)

type MockCommandManager struct {
	Results map[string]cm.CommandResult
	Errors  map[string]error
	Calls   []cm.CommandConfig
}

func (m *MockCommandManager) Run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	m.Calls = append(m.Calls, config)
	return m.Results[config.Command], m.Errors[config.Command]
}

type fakeStager struct {
	staged []byte
	err    error
}

func (f *fakeStager) Stage(ctx context.Context, data []byte) (string, error) {
	f.staged = data
	return "/tmp/ceph-deploy.staged", f.err
}

func TestWriteFile(t *testing.T) {
	mockCmd := &MockCommandManager{}
	stager := &fakeStager{}
	fm := &UnixFileManager{CommandManager: mockCmd, Stager: stager}

	err := fm.WriteFile(context.Background(), "/etc/apt/sources.list.d/ceph.list", []byte("deb x y main\n"), 0o644)
	require.NoError(t, err)

	assert.Equal(t, "deb x y main\n", string(stager.staged))
	require.Len(t, mockCmd.Calls, 2)
	assert.Equal(t, cm.CommandConfig{
		Command: "install",
		Args:    []string{"-D", "-m", "0644", "/tmp/ceph-deploy.staged", "/etc/apt/sources.list.d/ceph.list"},
		Sudo:    true,
	}, mockCmd.Calls[0])
	assert.Equal(t, "rm", mockCmd.Calls[1].Command)
	assert.False(t, mockCmd.Calls[1].Sudo)
	assert.True(t, mockCmd.Calls[1].AllowFailure)
}

func TestWriteFileInstallFails(t *testing.T) {
	mockCmd := &MockCommandManager{
		Errors: map[string]error{"install": &cm.ExitError{Command: "install", ExitCode: 1, Stderr: "permission denied"}},
	}
	fm := &UnixFileManager{CommandManager: mockCmd, Stager: &fakeStager{}}

	err := fm.WriteFile(context.Background(), "/etc/x", []byte("x"), 0o644)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	// The staged file is still cleaned up.
	require.Len(t, mockCmd.Calls, 2)
	assert.Equal(t, "rm", mockCmd.Calls[1].Command)
}

func TestWriteFileStageFails(t *testing.T) {
	mockCmd := &MockCommandManager{}
	fm := &UnixFileManager{CommandManager: mockCmd, Stager: &fakeStager{err: errors.New("sftp down")}}

	err := fm.WriteFile(context.Background(), "/etc/x", []byte("x"), 0o644)
	assert.ErrorContains(t, err, "sftp down")
	assert.Empty(t, mockCmd.Calls)
}

func TestWriteFileWithoutStager(t *testing.T) {
	fm := &UnixFileManager{CommandManager: &MockCommandManager{}}
	assert.Error(t, fm.WriteFile(context.Background(), "/etc/x", nil, 0o644))
}

func TestExists(t *testing.T) {
	mockCmd := &MockCommandManager{Results: map[string]cm.CommandResult{"test": {ExitCode: 1}}}
	fm := &UnixFileManager{CommandManager: mockCmd}

	exists, err := fm.Exists(context.Background(), "/etc/apt/release.asc")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, mockCmd.Calls[0].AllowFailure)

	mockCmd.Results["test"] = cm.CommandResult{}
	exists, err = fm.Exists(context.Background(), "/etc/apt/release.asc")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestHandleCommandResult(t *testing.T) {
	assert.NoError(t, handleCommandResult(cm.CommandResult{}, nil))
	assert.EqualError(t, handleCommandResult(cm.CommandResult{ExitCode: 2, STDERR: "nope\n"}, nil), "nope")
	assert.EqualError(t, handleCommandResult(cm.CommandResult{}, errors.New("boom")), "boom")
}

func TestLocalStager(t *testing.T) {
	dir := t.TempDir()
	stager := &LocalStager{Dir: dir}

	staged, err := stager.Stage(context.Background(), []byte("Package: *\n"))
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(staged))

	data, err := os.ReadFile(staged)
	require.NoError(t, err)
	assert.Equal(t, "Package: *\n", string(data))
}
