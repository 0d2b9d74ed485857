package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/config"
	"github.com/varadakari/ceph-deploy/cephdeploy/host"
	"github.com/varadakari/ceph-deploy/cephdeploy/hostmanager"
	"github.com/varadakari/ceph-deploy/logger"
)

// MockCommandManager records every command line and answers from results,
// keyed by the longest matching command line prefix.
type MockCommandManager struct {
	Calls   []string
	Results map[string]cm.CommandResult
}

func (m *MockCommandManager) Run(ctx context.Context, config cm.CommandConfig) (cm.CommandResult, error) {
	call := strings.Join(append([]string{config.Command}, config.Args...), " ")
	if config.Sudo {
		call = "sudo " + call
	}
	m.Calls = append(m.Calls, call)

	var result cm.CommandResult
	best := -1
	for prefix, r := range m.Results {
		if strings.HasPrefix(call, prefix) && len(prefix) > best {
			result, best = r, len(prefix)
		}
	}
	result.Command = call
	if result.ExitCode != 0 && !config.AllowFailure {
		return result, &cm.ExitError{Command: call, ExitCode: result.ExitCode, Stderr: result.STDERR}
	}
	return result, nil
}

func (m *MockCommandManager) callsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range m.Calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

var trusty = hostmanager.Distro{Name: "Ubuntu", ID: "ubuntu", IDLike: []string{"debian"}, Codename: "trusty", MachineType: "x86_64"}

// runCLI executes the root command against mock hosts and returns stdout.
func runCLI(t *testing.T, mock *MockCommandManager, distro hostmanager.Distro, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	color.NoColor = true

	a := &app{hostOptions: []host.HostOption{
		host.WithCommandManager(mock),
		host.WithDistro(distro),
	}}
	root := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	a.close()
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadHostsFromFile(t *testing.T) {
	path := writeFile(t, "test.ini", `[group1]
host1=127.0.0.1
host2=127.0.0.2

[group2]
host3=127.0.0.3`)

	hosts, err := readHostsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"group1": {"127.0.0.1", "127.0.0.2"},
		"group2": {"127.0.0.3"},
	}, hosts)
}

func TestReadHostsFromFileMissing(t *testing.T) {
	_, err := readHostsFromFile(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}

func newTestApp(opts ...host.HostOption) *app {
	var buf bytes.Buffer
	return &app{
		log:         logger.New(logger.Options{Output: &buf}),
		cfg:         config.Default(),
		out:         &buf,
		hostOptions: opts,
	}
}

func TestInitializeHostsOrder(t *testing.T) {
	a := newTestApp(host.WithCommandManager(&MockCommandManager{}))
	a.flags.IniFilePath = writeFile(t, "hosts.ini", "[osds]\na = osd1\nb = osd2\n\n[mons]\na = mon1\n")

	hg, err := a.initializeHosts([]string{"extra1", "osd1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mon1", "osd1", "osd2", "extra1"}, hg.Hostnames())
}

func TestInitializeHostsSkipsDuplicates(t *testing.T) {
	var buf bytes.Buffer
	a := newTestApp(host.WithCommandManager(&MockCommandManager{}))
	a.log = logger.New(logger.Options{Output: &buf, Debug: true})
	a.flags.IniFilePath = writeFile(t, "hosts.ini", "[osds]\na = osd1\n")

	hg, err := a.initializeHosts([]string{"osd1", "osd2", "osd2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"osd1", "osd2"}, hg.Hostnames())
	assert.Equal(t, 2, strings.Count(buf.String(), "Skipping duplicate host"))
}

func TestInitializeHostsNoHosts(t *testing.T) {
	a := newTestApp()
	_, err := a.initializeHosts(nil)
	assert.ErrorIs(t, err, errNoHosts)
}

func TestInitializeHostsInvalidHostname(t *testing.T) {
	a := newTestApp(host.WithCommandManager(&MockCommandManager{}))
	hg, err := a.initializeHosts([]string{"good", "bad host"})
	assert.ErrorIs(t, err, host.ErrInvalidHostname)
	assert.Equal(t, []string{"good"}, hg.Hostnames())
}

func TestBuildHostOptionsPrompts(t *testing.T) {
	orig := readSecret
	t.Cleanup(func() { readSecret = orig })

	var prompts []string
	readSecret = func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "pw-" + string(rune('a'+len(prompts)-1)), nil
	}

	a := newTestApp(host.WithCommandManager(&MockCommandManager{}))
	a.flags.Username = "ceph"
	a.flags.PasswordPrompt = true
	a.flags.SudoPasswordPrompt = true

	options, err := a.buildHostOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"Enter the password: ", "Enter the sudo password: "}, prompts)

	h, err := host.NewHost("node1", options...)
	require.NoError(t, err)
	assert.Equal(t, "ceph", h.User)
	assert.Equal(t, "pw-a", h.Password)
	assert.Equal(t, "pw-b", h.SudoPassword)
	assert.Empty(t, h.KeyPassphrase)
}

func TestBuildHostOptionsPromptError(t *testing.T) {
	orig := readSecret
	t.Cleanup(func() { readSecret = orig })
	readSecret = func(string) (string, error) { return "", errors.New("not a terminal") }

	a := newTestApp()
	a.flags.KeyPassPrompt = true
	_, err := a.buildHostOptions()
	assert.ErrorContains(t, err, "not a terminal")
}

func TestRootRequiresHosts(t *testing.T) {
	_, err := runCLI(t, &MockCommandManager{}, trusty, "uninstall")
	assert.ErrorIs(t, err, errNoHosts)
}

func TestRootBadConfig(t *testing.T) {
	conf := writeFile(t, config.FileName, "[broken]\ngpgkey = https://example.com/k.asc\n")
	mock := &MockCommandManager{}

	_, err := runCLI(t, mock, trusty, "--conf", conf, "uninstall", "node1")
	assert.ErrorContains(t, err, "missing baseurl")
	assert.Empty(t, mock.Calls)
}

func TestRootLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ceph-deploy.log")

	_, err := runCLI(t, &MockCommandManager{}, trusty, "--log", logPath, "uninstall", "node1")
	require.NoError(t, err)

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(b), "Distro info: Ubuntu trusty x86_64")
	assert.Contains(t, string(b), "host=node1")
}
