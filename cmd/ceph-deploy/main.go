package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"

	"github.com/fatih/color"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/ini.v1"

	"github.com/varadakari/ceph-deploy/cephdeploy/config"
	"github.com/varadakari/ceph-deploy/cephdeploy/host"
	"github.com/varadakari/ceph-deploy/cephdeploy/hostgroup"
	"github.com/varadakari/ceph-deploy/logger"
)

var errNoHosts = errors.New("no hosts given, pass them as arguments or with --ini")

// readSecret prompts on the controlling terminal without echo.
var readSecret = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return string(b), err
}

type globalFlags struct {
	IniFilePath        string
	ConfPath           string
	Username           string
	PasswordPrompt     bool
	KeyPassPrompt      bool
	SudoPasswordPrompt bool
	Port               int
	Debug              bool
	JSONLogs           bool
	LogFileName        string
	ReportPath         string
}

// app carries state shared by every subcommand of one invocation.
type app struct {
	flags globalFlags
	log   *logrus.Logger
	cfg   *config.Config
	out   io.Writer

	// hostOptions are applied after the ones derived from flags.
	hostOptions []host.HostOption
	logFile     *os.File
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) close() {
	if a.logFile != nil {
		a.logFile.Close()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ceph-deploy",
		Short:         "Install and remove Ceph packages on Debian and Ubuntu hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.flags.IniFilePath, "ini", "", "Path to INI file with host inventory")
	f.StringVar(&a.flags.ConfPath, "conf", "", "Path to "+config.FileName+" (default ./"+config.FileName+" or ~/."+config.FileName+")")
	f.StringVar(&a.flags.Username, "username", "", "Username to use for SSH connection")
	f.BoolVar(&a.flags.PasswordPrompt, "password", false, "Prompt for the SSH password")
	f.BoolVar(&a.flags.KeyPassPrompt, "keypass", false, "Prompt for the SSH key passphrase")
	f.BoolVar(&a.flags.SudoPasswordPrompt, "sudo-password", false, "Prompt for the sudo password")
	f.IntVar(&a.flags.Port, "port", 0, "SSH port (default 22)")
	f.BoolVar(&a.flags.Debug, "debug", false, "Enable debug log level")
	f.BoolVar(&a.flags.JSONLogs, "json-logs", false, "Emit logs as JSON")
	f.StringVar(&a.flags.LogFileName, "log", "", "Also write logs to this file")
	f.StringVar(&a.flags.ReportPath, "report", "", "Write a YAML run report to this file")

	root.AddCommand(
		newInstallCmd(a),
		newMirrorCmd(a),
		newRepoCmd(a),
		newLocalCmd(a),
		newUninstallCmd(a, false),
		newUninstallCmd(a, true),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	var output io.Writer = cmd.ErrOrStderr()
	if a.flags.LogFileName != "" {
		file, err := os.OpenFile(a.flags.LogFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		a.logFile = file
		output = io.MultiWriter(output, file)
	}
	a.log = logger.New(logger.Options{Output: output, Debug: a.flags.Debug, JSON: a.flags.JSONLogs})
	a.log.Debug("Debug mode enabled")

	path := a.flags.ConfPath
	if path == "" {
		path = config.Locate()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Path != "" {
		a.log.Debugf("Using configuration %s", cfg.Path)
	}
	a.cfg = cfg
	return nil
}

func readHostsFromFile(filePath string) (map[string][]string, error) {
	cfg, err := ini.Load(filePath)
	if err != nil {
		return nil, err
	}

	hosts := make(map[string][]string)

	for _, section := range cfg.Sections() {
		name := section.Name()
		for _, key := range section.Keys() {
			hosts[name] = append(hosts[name], key.String())
		}
	}

	return hosts, nil
}

func (a *app) buildHostOptions() ([]host.HostOption, error) {
	options := []host.HostOption{host.WithLogger(a.log)}
	if a.flags.Username != "" {
		options = append(options, host.WithUser(a.flags.Username))
	}
	if a.flags.Port != 0 {
		options = append(options, host.WithPort(a.flags.Port))
	}

	prompts := []struct {
		enabled bool
		prompt  string
		option  func(string) host.HostOption
	}{
		{a.flags.PasswordPrompt, "Enter the password: ", host.WithPassword},
		{a.flags.KeyPassPrompt, "Enter the key passphrase: ", host.WithKeyPassphrase},
		{a.flags.SudoPasswordPrompt, "Enter the sudo password: ", host.WithSudoPassword},
	}
	for _, p := range prompts {
		if !p.enabled {
			continue
		}
		secret, err := readSecret(p.prompt)
		if err != nil {
			return nil, fmt.Errorf("failed to read secret: %w", err)
		}
		if secret != "" {
			options = append(options, p.option(secret))
		}
	}

	return append(options, a.hostOptions...), nil
}

// initializeHosts builds the group from the inventory file, in group name
// order, followed by hosts named on the command line.
func (a *app) initializeHosts(hostnames []string) (*hostgroup.HostGroup, error) {
	var all []string
	if a.flags.IniFilePath != "" {
		hostsMap, err := readHostsFromFile(a.flags.IniFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read INI file: %w", err)
		}
		groups := make([]string, 0, len(hostsMap))
		for group := range hostsMap {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		for _, group := range groups {
			a.log.WithField("group", group).Debug("Adding hosts from group")
			all = append(all, hostsMap[group]...)
		}
	}
	all = append(all, hostnames...)
	if len(all) == 0 {
		return nil, errNoHosts
	}

	options, err := a.buildHostOptions()
	if err != nil {
		return nil, err
	}

	hostGroup := hostgroup.NewHostGroup()
	var result *multierror.Error
	for _, hostname := range all {
		if hostGroup.HasHost(hostname) {
			a.log.WithField("host", hostname).Debug("Skipping duplicate host")
			continue
		}
		a.log.WithField("host", hostname).Debug("Adding host")
		server, err := host.NewHost(hostname, options...)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		hostGroup.AddHost(server)
	}
	return hostGroup, result.ErrorOrNil()
}
