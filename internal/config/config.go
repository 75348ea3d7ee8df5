// Package config loads run settings from an optional TOML file and secrets
// from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"errdeltas/internal/orchestrator"
	"errdeltas/internal/report"
	"errdeltas/internal/repos"
)

// TokenEnv holds the GitHub token used for search and issue filing.
const TokenEnv = "GITHUB_PAT"

var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration written as "10m" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Run      RunConfig      `toml:"run"`
	Scratch  ScratchConfig  `toml:"scratch"`
	Compiler CompilerConfig `toml:"compiler"`
	Issue    IssueConfig    `toml:"issue"`
	Archive  ArchiveConfig  `toml:"archive"`

	// Token comes from the environment only.
	Token string `toml:"-"`
	// Path of the file the config was read from, empty for defaults.
	Path string `toml:"-"`
	// StaticRepos is set when [run].repos replaces the GitHub search.
	StaticRepos bool `toml:"-"`
}

type RunConfig struct {
	Timeout           Duration `toml:"timeout"`
	Denylist          []string `toml:"denylist"`
	Query             string   `toml:"query"`
	Repos             []string `toml:"repos"`
	AllowPartialGraph bool     `toml:"allow_partial_graph"`
	MaxDiagnostics    int      `toml:"max_diagnostics"`
	IgnoreScripts     bool     `toml:"ignore_scripts"`
}

type ScratchConfig struct {
	Dir   string `toml:"dir"`
	Size  string `toml:"size"`
	Mount bool   `toml:"mount"`
	Sudo  bool   `toml:"sudo"`
}

type CompilerConfig struct {
	WorkDir string `toml:"work_dir"` // where npm pack downloads releases
}

type IssueConfig struct {
	Repo string `toml:"repo"`
}

type ArchiveConfig struct {
	Path       string `toml:"path"`
	S3Bucket   string `toml:"s3_bucket"`
	S3Prefix   string `toml:"s3_prefix"`
	S3Region   string `toml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint"`
}

// Default mirrors the settings of the hosted runner: a 2g tmpfs at
// /mnt/ts_downloads and ten minutes per step.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Timeout:       Duration{orchestrator.DefaultTimeout},
			Denylist:      append([]string(nil), orchestrator.DefaultDenylist...),
			Query:         repos.DefaultQuery,
			IgnoreScripts: true,
		},
		Scratch: ScratchConfig{
			Dir:   "/mnt/ts_downloads",
			Size:  "2g",
			Mount: true,
			Sudo:  true,
		},
		Compiler: CompilerConfig{WorkDir: "."},
		Issue:    IssueConfig{Repo: report.DefaultIssueRepo},
		Archive:  ArchiveConfig{S3Region: "us-east-1"},
	}
}

// Load reads .env (when present), then path over the defaults. An empty path
// keeps the defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.Token = strings.TrimSpace(os.Getenv(TokenEnv))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: %s: unknown keys %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	c.Path = path
	c.StaticRepos = meta.IsDefined("run", "repos")
	return nil
}

// Validate checks values the defaults cannot fix.
func (c *Config) Validate() error {
	var errs []error
	if c.Run.Timeout.Duration <= 0 {
		errs = append(errs, fmt.Errorf("[run].timeout must be positive, got %s", c.Run.Timeout))
	}
	if c.Run.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("[run].max_diagnostics must not be negative"))
	}
	if strings.TrimSpace(c.Scratch.Dir) == "" {
		errs = append(errs, fmt.Errorf("[scratch].dir is empty"))
	}
	if c.Scratch.Mount && strings.TrimSpace(c.Scratch.Size) == "" {
		errs = append(errs, fmt.Errorf("[scratch].size is required when mounting"))
	}
	for _, u := range c.Run.Repos {
		if _, err := repos.ParseURL(u); err != nil {
			errs = append(errs, fmt.Errorf("[run].repos: %w", err))
		}
	}
	if owner, name, ok := strings.Cut(c.Issue.Repo, "/"); !ok || owner == "" || name == "" {
		errs = append(errs, fmt.Errorf("[issue].repo must be owner/name, got %q", c.Issue.Repo))
	}
	if c.Archive.S3Bucket != "" && c.Archive.Path == "" {
		errs = append(errs, fmt.Errorf("[archive].s3_bucket needs [archive].path"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// StaticSource turns [run].repos into a repository source.
func (c *Config) StaticSource() (repos.StaticSource, error) {
	out := make(repos.StaticSource, 0, len(c.Run.Repos))
	for _, u := range c.Run.Repos {
		r, err := repos.ParseURL(u)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
