package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const (
	FileName       = "cephdeploy.conf"
	GlobalSection  = "ceph-deploy-global"
	InstallSection = "ceph-deploy-install"
)

var ErrUnknownRepo = errors.New("repository not defined in " + FileName)

// Repo is a named repository section.
type Repo struct {
	Name        string
	BaseURL     string
	GPGKey      string
	Default     bool
	InstallCeph bool
	ExtraRepos  []string
}

// Config is the parsed cephdeploy.conf.
type Config struct {
	Path string
	// Release overrides the default stable release name.
	Release     string
	AdjustRepos bool
	// Repos keeps file order.
	Repos []Repo
}

// Default is used when no cephdeploy.conf exists.
func Default() *Config {
	return &Config{AdjustRepos: true}
}

// Locate returns ./cephdeploy.conf, else ~/.cephdeploy.conf, else "".
func Locate() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, "."+FileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Load reads path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		SpaceBeforeInlineComment: true,
	}, data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	install := file.Section(InstallSection)
	cfg.Release = install.Key("release").String()
	if install.HasKey("adjust_repos") {
		if cfg.AdjustRepos, err = install.Key("adjust_repos").Bool(); err != nil {
			return nil, fmt.Errorf("[%s] adjust_repos: %w", InstallSection, err)
		}
	}

	for _, section := range file.Sections() {
		switch section.Name() {
		case ini.DefaultSection, GlobalSection, InstallSection:
			continue
		}
		repo, err := parseRepo(section)
		if err != nil {
			return nil, err
		}
		cfg.Repos = append(cfg.Repos, repo)
	}
	return cfg, nil
}

func parseRepo(section *ini.Section) (Repo, error) {
	repo := Repo{
		Name:       section.Name(),
		BaseURL:    section.Key("baseurl").String(),
		GPGKey:     section.Key("gpgkey").String(),
		ExtraRepos: section.Key("extra-repos").Strings(","),
	}
	if repo.BaseURL == "" {
		return Repo{}, fmt.Errorf("[%s] is missing baseurl", repo.Name)
	}

	for key, dst := range map[string]*bool{"default": &repo.Default, "install_ceph": &repo.InstallCeph} {
		if !section.HasKey(key) {
			continue
		}
		v, err := section.Key(key).Bool()
		if err != nil {
			return Repo{}, fmt.Errorf("[%s] %s: %w", repo.Name, key, err)
		}
		*dst = v
	}
	return repo, nil
}

// Repo looks up a repository section by name.
func (c *Config) Repo(name string) (Repo, error) {
	for _, r := range c.Repos {
		if r.Name == name {
			return r, nil
		}
	}
	return Repo{}, fmt.Errorf("%w: %s", ErrUnknownRepo, name)
}

// DefaultRepo returns the first repository marked default.
func (c *Config) DefaultRepo() (Repo, bool) {
	for _, r := range c.Repos {
		if r.Default {
			return r, true
		}
	}
	return Repo{}, false
}

// Extras resolves the extra-repos of r.
func (c *Config) Extras(r Repo) ([]Repo, error) {
	extras := make([]Repo, 0, len(r.ExtraRepos))
	for _, name := range r.ExtraRepos {
		extra, err := c.Repo(name)
		if err != nil {
			return nil, fmt.Errorf("[%s] extra-repos: %w", r.Name, err)
		}
		extras = append(extras, extra)
	}
	return extras, nil
}
