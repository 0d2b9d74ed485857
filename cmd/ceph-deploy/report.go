package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	multierror "github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/varadakari/ceph-deploy/cephdeploy/host"
	"github.com/varadakari/ceph-deploy/cephdeploy/hostgroup"
	"github.com/varadakari/ceph-deploy/cephdeploy/installmanager"
	"github.com/varadakari/ceph-deploy/cephdeploy/keyring"
)

const (
	statusOK      = "ok"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// Report is written with --report after every run.
type Report struct {
	Command  string        `yaml:"command"`
	Started  time.Time     `yaml:"started"`
	Duration time.Duration `yaml:"duration"`
	Hosts    []*HostReport `yaml:"hosts"`
}

type HostReport struct {
	Host   string                             `yaml:"host"`
	Status string                             `yaml:"status"`
	Error  string                             `yaml:"error,omitempty"`
	Distro string                             `yaml:"distro,omitempty"`
	Source string                             `yaml:"source,omitempty"`
	Keys   []keyring.KeyInfo                  `yaml:"keys,omitempty"`
	Local  *installmanager.LocalInstallReport `yaml:"local,omitempty"`
}

type hostAction func(ctx context.Context, h *host.Host, rep *HostReport) error

// run applies action to every host in turn and reports the outcome. The
// returned error aggregates every host failure.
func (a *app) run(ctx context.Context, command string, hostnames []string, action hostAction) error {
	hg, err := a.initializeHosts(hostnames)
	if err != nil {
		return err
	}

	report := &Report{Command: command, Started: time.Now().UTC()}
	entries := make(map[string]*HostReport)
	for _, name := range hg.Hostnames() {
		entry := &HostReport{Host: name}
		entries[name] = entry
		report.Hosts = append(report.Hosts, entry)
	}

	runErr := hg.ForEach(ctx, func(ctx context.Context, h *host.Host) error {
		rep := entries[h.Hostname]
		rep.Distro = fmt.Sprintf("%s %s %s", h.Distro.ID, h.Distro.Codename, h.Distro.MachineType)
		if err := action(ctx, h, rep); err != nil {
			return err
		}
		rep.Status = statusOK
		return nil
	})
	report.Duration = time.Since(report.Started).Round(time.Millisecond)

	var merr *multierror.Error
	if errors.As(runErr, &merr) {
		for _, err := range merr.Errors {
			var hostErr *hostgroup.HostError
			if errors.As(err, &hostErr) {
				if entry, ok := entries[hostErr.Hostname]; ok {
					entry.Status = statusFailed
					entry.Error = hostErr.Err.Error()
				}
			}
		}
	}
	for _, entry := range report.Hosts {
		if entry.Status == "" {
			entry.Status = statusSkipped
		}
	}

	printSummary(a.out, report)
	if a.flags.ReportPath != "" {
		if err := writeReport(a.flags.ReportPath, report); err != nil {
			runErr = multierror.Append(runErr, err)
		}
	}
	return runErr
}

func writeReport(path string, report *Report) error {
	b, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func printSummary(w io.Writer, report *Report) {
	ok := color.New(color.FgGreen).SprintFunc()
	failed := color.New(color.FgRed, color.Bold).SprintFunc()
	skipped := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(w, "%s finished in %s\n", report.Command, report.Duration)
	for _, entry := range report.Hosts {
		switch entry.Status {
		case statusOK:
			fmt.Fprintf(w, "  %-8s %s\n", ok(entry.Status), entry.Host)
		case statusFailed:
			fmt.Fprintf(w, "  %-8s %s: %s\n", failed(entry.Status), entry.Host, entry.Error)
		default:
			fmt.Fprintf(w, "  %-8s %s\n", skipped(entry.Status), entry.Host)
		}
		if entry.Local != nil {
			for _, f := range entry.Local.Failed {
				fmt.Fprintf(w, "           %s %s\n", skipped("not installed:"), f.File)
			}
		}
	}
}
