package hostmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	cm "github.com/varadakari/ceph-deploy/cephdeploy/commandmanager"
)

var ErrUnknownCodename = errors.New("could not determine distribution codename")

type UnixHostManager struct {
	CommandManager cm.CommandManager
}

func (uhm *UnixHostManager) Hostname(ctx context.Context) (string, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "hostname",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(output.STDOUT), nil
}

// Distro reads /etc/os-release, falling back to lsb_release for the codename
// on releases that predate VERSION_CODENAME.
func (uhm *UnixHostManager) Distro(ctx context.Context) (Distro, error) {
	output, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command:      "cat",
		Args:         []string{"/etc/os-release"},
		AllowFailure: true,
	})
	if err != nil {
		return Distro{}, err
	}

	var distro Distro
	if output.ExitCode == 0 {
		distro, err = ParseOSRelease([]byte(output.STDOUT))
		if err != nil {
			return Distro{}, err
		}
	}

	if distro.Codename == "" {
		lsb, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
			Command:      "lsb_release",
			Args:         []string{"-sc"},
			AllowFailure: true,
		})
		if err != nil {
			return Distro{}, err
		}
		distro.Codename = strings.TrimSpace(lsb.STDOUT)
	}
	if distro.Codename == "" {
		return Distro{}, ErrUnknownCodename
	}

	machine, err := uhm.CommandManager.Run(ctx, cm.CommandConfig{
		Command: "uname",
		Args:    []string{"-m"},
	})
	if err != nil {
		return Distro{}, fmt.Errorf("could not determine machine type: %w", err)
	}
	distro.MachineType = strings.TrimSpace(machine.STDOUT)

	return distro, nil
}

// ParseOSRelease extracts the fields of an os-release(5) file.
func ParseOSRelease(data []byte) (Distro, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		KeyValueDelimiters:  "=",
	}, data)
	if err != nil {
		return Distro{}, fmt.Errorf("malformed os-release: %w", err)
	}

	section := cfg.Section(ini.DefaultSection)
	codename := section.Key("VERSION_CODENAME").String()
	if codename == "" {
		codename = section.Key("UBUNTU_CODENAME").String()
	}

	distro := Distro{
		Name:     section.Key("NAME").String(),
		ID:       section.Key("ID").String(),
		Codename: codename,
	}
	if like := strings.Fields(section.Key("ID_LIKE").String()); len(like) > 0 {
		distro.IDLike = like
	}
	return distro, nil
}
