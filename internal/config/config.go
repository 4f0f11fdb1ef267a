// Package config loads and validates the repovault configuration file.
//
// The file is TOML. A [general] table carries run-wide settings; optional
// [github] and [gitlab] tables enable the corresponding provider. Missing
// API keys fall back to the provider's conventional environment variable
// (GITHUB_TOKEN, GITLAB_TOKEN) during Load.
package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultPath is the config file consulted when --config is not given.
// The leading "~" is expanded against the user's home directory.
const DefaultPath = "~/.repovault.toml"

// Validation sentinels, matchable with errors.Is.
var (
	ErrMissingRoot      = errors.New("general.root is required")
	ErrMissingGitHubKey = errors.New("github.api-key is required (or set GITHUB_TOKEN)")
	ErrMissingGitLabKey = errors.New("gitlab.api-key is required (or set GITLAB_TOKEN)")
)

type Config struct {
	// MAINTAINER NOTE: field changes here must be mirrored in Example below
	// and in the CLI help text in internal/cli/root.go.
	General General `toml:"general"`

	// GitHub enables the GitHub provider when the [github] table is present.
	GitHub *GitHub `toml:"github"`

	// GitLab enables the GitLab provider when the [gitlab] table is present.
	GitLab *GitLab `toml:"gitlab"`
}

type General struct {
	// Root is the directory all clones live under (required). A leading "~"
	// is expanded during validation.
	Root string `toml:"root"`

	// Workers is the number of concurrent sync workers. 0 means one per CPU.
	Workers int `toml:"workers"`

	// ErrorThreshold aborts the run once this many syncs have failed.
	// 0 means unlimited (never abort early).
	ErrorThreshold int `toml:"error-threshold"`

	// Blacklist holds destination paths that are never synced. Entries are
	// matched exactly, or as path.Match globs when they contain glob
	// metacharacters (e.g. "gitlab.com/noisy/*").
	Blacklist []string `toml:"blacklist"`

	// SyncTimeout bounds a single repository sync. 0 means no deadline.
	SyncTimeout Duration `toml:"sync-timeout"`
}

type GitHub struct {
	// APIKey is the GitHub access token. Falls back to GITHUB_TOKEN.
	APIKey string `toml:"api-key"`

	// Host is an optional GitHub Enterprise base URL. Empty means github.com.
	Host string `toml:"host"`

	// SkipOwned, SkipOrganisations and SkipStarred turn off the
	// corresponding repository category. All categories are on by default.
	SkipOwned         bool `toml:"skip-owned"`
	SkipOrganisations bool `toml:"skip-organisations"`
	SkipStarred       bool `toml:"skip-starred"`

	// UseSSH selects ssh clone URLs instead of the default https ones.
	UseSSH bool `toml:"use-ssh"`
}

type GitLab struct {
	// APIKey is the GitLab access token. Falls back to GITLAB_TOKEN.
	APIKey string `toml:"api-key"`

	// Host is the GitLab instance base URL.
	Host string `toml:"host"`

	SkipOwned         bool `toml:"skip-owned"`
	SkipOrganisations bool `toml:"skip-organisations"`
	SkipStarred       bool `toml:"skip-starred"`

	// UseHTTP selects http clone URLs instead of the default ssh ones.
	UseHTTP bool `toml:"use-http"`
}

// Duration is a time.Duration that decodes from TOML strings like "10m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

const defaultGitLabHost = "https://gitlab.com/"

func New() *Config {
	return &Config{
		General: General{
			ErrorThreshold: 0,
		},
	}
}

// Load reads and decodes the TOML file at p, applies environment fallbacks
// for provider credentials, and validates the result. The path may start
// with "~".
func Load(p string) (*Config, error) {
	expanded, err := ExpandHome(p)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", p, err)
	}

	cfg := New()
	if _, err := toml.DecodeFile(expanded, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", expanded, err)
	}

	cfg.applyEnvFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", expanded, err)
	}
	return cfg, nil
}

func (c *Config) applyEnvFallbacks() {
	if c.GitHub != nil && c.GitHub.APIKey == "" {
		c.GitHub.APIKey = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}
	if c.GitLab != nil && c.GitLab.APIKey == "" {
		c.GitLab.APIKey = strings.TrimSpace(os.Getenv("GITLAB_TOKEN"))
	}
}

// Validate checks the configuration and normalizes it in place: the root
// path is home-expanded, a zero worker count becomes one worker per CPU,
// blank blacklist entries are dropped. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	c.General.Root = strings.TrimSpace(c.General.Root)
	if c.General.Root == "" {
		errs = append(errs, ErrMissingRoot)
	} else {
		root, err := ExpandHome(c.General.Root)
		if err != nil {
			errs = append(errs, fmt.Errorf("general.root: %w", err))
		} else {
			c.General.Root = filepath.Clean(root)
		}
	}

	if c.General.Workers < 0 {
		errs = append(errs, fmt.Errorf("general.workers must be >= 0, got %d", c.General.Workers))
	}
	if c.General.Workers == 0 {
		c.General.Workers = runtime.NumCPU()
	}

	if c.General.ErrorThreshold < 0 {
		errs = append(errs, fmt.Errorf("general.error-threshold must be >= 0, got %d", c.General.ErrorThreshold))
	}
	if c.General.SyncTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("general.sync-timeout must be >= 0, got %s", c.General.SyncTimeout))
	}

	c.General.Blacklist = cleanList(c.General.Blacklist)
	for _, pattern := range c.General.Blacklist {
		if _, err := path.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("general.blacklist entry %q: %w", pattern, err))
		}
	}

	if c.GitHub != nil {
		if c.GitHub.APIKey == "" {
			errs = append(errs, ErrMissingGitHubKey)
		}
		if c.GitHub.Host != "" {
			if err := checkHostURL(c.GitHub.Host); err != nil {
				errs = append(errs, fmt.Errorf("github.host: %w", err))
			}
		}
	}

	if c.GitLab != nil {
		if c.GitLab.APIKey == "" {
			errs = append(errs, ErrMissingGitLabKey)
		}
		if c.GitLab.Host == "" {
			c.GitLab.Host = defaultGitLabHost
		}
		if err := checkHostURL(c.GitLab.Host); err != nil {
			errs = append(errs, fmt.Errorf("gitlab.host: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Providers reports how many provider sections are enabled.
func (c *Config) Providers() int {
	n := 0
	if c.GitHub != nil {
		n++
	}
	if c.GitLab != nil {
		n++
	}
	return n
}

// Example returns a fully populated configuration suitable for rendering
// with WriteTOML and editing by hand.
func Example() *Config {
	return &Config{
		General: General{
			Root:           "/srv/backups",
			Workers:        4,
			ErrorThreshold: 0,
			Blacklist:      []string{"github.com/torvalds/linux"},
			SyncTimeout:    Duration{10 * time.Minute},
		},
		GitHub: &GitHub{
			APIKey: "your GitHub token",
		},
		GitLab: &GitLab{
			APIKey: "your GitLab token",
			Host:   defaultGitLabHost,
		},
	}
}

// WriteTOML renders the configuration as TOML.
func (c *Config) WriteTOML(w io.Writer) error {
	enc := toml.NewEncoder(w)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading "~" with the current user's home directory.
func ExpandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

func checkHostURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q is not a valid URL: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q must use http or https", raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

func cleanList(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
