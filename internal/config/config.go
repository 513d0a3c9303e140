// Package config loads mend.toml: how to run the build, how to read its
// output, which files to scan and which rewrite rules to apply.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"mend/internal/build"
	"mend/internal/diag"
	"mend/internal/driver"
	"mend/internal/patch"
	"mend/internal/project"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the decoded mend.toml.
type Config struct {
	// Path of the manifest; empty when running on defaults.
	Path string `toml:"-"`
	// Dir is the directory relative paths are resolved against.
	Dir string `toml:"-"`

	Build      BuildConfig   `toml:"build"`
	Parse      ParseConfig   `toml:"parse"`
	Scan       ScanConfig    `toml:"scan"`
	Run        RunConfig     `toml:"run"`
	Loop       LoopConfig    `toml:"loop"`
	Log        LogConfig     `toml:"log"`
	History    HistoryConfig `toml:"history"`
	RulesFiles []string      `toml:"rules_files"`
	Rules      []patch.Rule  `toml:"rule"`
}

type BuildConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Dir     string   `toml:"dir"`
	Env     []string `toml:"env"`
	Timeout string   `toml:"timeout"` // "10m"; пусто - без таймаута
	// Log is a captured build log read instead of running the build.
	Log string `toml:"log"`
}

type ParseConfig struct {
	PathStyle  string   `toml:"path_style"`
	Severities []string `toml:"severities"`
}

type ScanConfig struct {
	Root              string   `toml:"root"`
	Extensions        []string `toml:"extensions"`
	Include           []string `toml:"include"`
	Exclude           []string `toml:"exclude"`
	NoDefaultExcludes bool     `toml:"no_default_excludes"`
}

type RunConfig struct {
	Jobs   int    `toml:"jobs"`
	Policy string `toml:"policy"`
	Mode   string `toml:"mode"`
	DryRun bool   `toml:"dry_run"`
}

type LoopConfig struct {
	MaxIterations   int  `toml:"max_iterations"`
	Rebuild         bool `toml:"rebuild"`
	StopWhenStalled bool `toml:"stop_when_stalled"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type HistoryConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default is the configuration used when no mend.toml exists. Decoding a
// manifest starts from it, so absent keys keep these values.
func Default() *Config {
	return &Config{
		Build: BuildConfig{
			Command: "./gradlew",
			Args:    []string{"compileKotlinJs", "--no-daemon"},
		},
		Parse: ParseConfig{PathStyle: "unix"},
		Scan: ScanConfig{
			Root:       ".",
			Extensions: []string{".kt", ".kts"},
		},
		Run:     RunConfig{Policy: "continue", Mode: "atomic"},
		Loop:    LoopConfig{MaxIterations: 5, Rebuild: true, StopWhenStalled: true},
		Log:     LogConfig{Level: "warn", Format: "console"},
		History: HistoryConfig{Enabled: true},
	}
}

// Discover loads explicit when set, otherwise the nearest mend.toml at or
// above startDir. Without a manifest it returns Default rooted at the Gradle
// build root above startDir, or at startDir itself.
func Discover(startDir, explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	path, ok, err := project.FindManifest(startDir)
	if err != nil {
		return nil, err
	}
	if ok {
		return Load(path)
	}
	cfg := Default()
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	// без mend.toml корнем считаем корень Gradle-сборки, если он есть
	if root, ok, err := project.FindProjectRoot(dir); err == nil && ok {
		dir = root
	}
	cfg.Dir = dir
	return cfg, cfg.Validate()
}

// Load decodes path, pulls in rules_files and validates the result.
func Load(path string) (*Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	meta, err := toml.DecodeFile(abs, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", abs, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: %w: unknown keys %s", abs, ErrInvalid, strings.Join(keys, ", "))
	}
	cfg.Path = abs
	cfg.Dir = filepath.Dir(abs)

	for _, rf := range cfg.RulesFiles {
		rules, err := LoadRules(cfg.resolve(rf))
		if err != nil {
			return nil, fmt.Errorf("%s: rules_files: %w", abs, err)
		}
		cfg.Rules = append(cfg.Rules, rules...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type tomlRules struct {
	Rules []patch.Rule `toml:"rule"`
}

type yamlRules struct {
	Rules []patch.Rule `yaml:"rules"`
}

// LoadRules reads a standalone rule file: TOML with [[rule]] tables, or YAML
// with a top-level "rules" list.
func LoadRules(path string) ([]patch.Rule, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var doc tomlRules
		meta, err := toml.DecodeFile(path, &doc)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: %w: unknown key %s", path, ErrInvalid, undecoded[0])
		}
		return doc.Rules, nil
	case ".yaml", ".yml":
		// #nosec G304 -- path comes from the project config
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var doc yamlRules
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%s: failed to parse YAML: %w", path, err)
		}
		return doc.Rules, nil
	}
	return nil, fmt.Errorf("%s: %w: rule files must be .toml, .yaml or .yml", path, ErrInvalid)
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(key string, err error) {
		errs = append(errs, fmt.Errorf("%s: %w: %s: %w", c.where(), ErrInvalid, key, err))
	}

	if strings.TrimSpace(c.Build.Command) == "" && c.Build.Log == "" {
		bad("[build].command", errors.New("empty"))
	}
	if _, err := c.Build.TimeoutDuration(); err != nil {
		bad("[build].timeout", err)
	}
	if _, err := diag.ParsePathStyle(c.Parse.PathStyle); err != nil {
		bad("[parse].path_style", err)
	}
	if _, err := c.severities(); err != nil {
		bad("[parse].severities", err)
	}
	if err := c.Filter().Validate(); err != nil {
		bad("[scan]", err)
	}
	if c.Run.Jobs < 0 {
		bad("[run].jobs", fmt.Errorf("must not be negative, got %d", c.Run.Jobs))
	}
	if _, err := driver.ParsePolicy(c.Run.Policy); err != nil {
		bad("[run].policy", err)
	}
	if _, err := driver.ParseMode(c.Run.Mode); err != nil {
		bad("[run].mode", err)
	}
	if c.Loop.MaxIterations < 0 {
		bad("[loop].max_iterations", fmt.Errorf("must not be negative, got %d", c.Loop.MaxIterations))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		bad("[log].format", fmt.Errorf("unknown format %q (expected console|json)", c.Log.Format))
	}
	if _, err := patch.NewRegistry().BuildSet(c.Rules); err != nil {
		bad("[[rule]]", err)
	}
	return errors.Join(errs...)
}

func (c *Config) where() string {
	if c.Path != "" {
		return c.Path
	}
	return "defaults"
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, filepath.FromSlash(p))
}

// Root is the absolute directory scanned for source files.
func (c *Config) Root() string {
	return c.resolve(c.Scan.Root)
}

// BuildLog is the captured log to read instead of running the build, if any.
func (c *Config) BuildLog() string {
	return c.resolve(c.Build.Log)
}

// TimeoutDuration parses the timeout; empty means none.
func (b BuildConfig) TimeoutDuration() (time.Duration, error) {
	if strings.TrimSpace(b.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(b.Timeout)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %s", d)
	}
	return d, nil
}

// Runner describes the build invocation, run from [build].dir or the config directory.
func (c *Config) Runner() build.Runner {
	timeout, _ := c.Build.TimeoutDuration() // проверено в Validate
	dir := c.Dir
	if c.Build.Dir != "" {
		dir = c.resolve(c.Build.Dir)
	}
	return build.Runner{
		Command: c.Build.Command,
		Args:    append([]string(nil), c.Build.Args...),
		Dir:     dir,
		Env:     append([]string(nil), c.Build.Env...),
		Timeout: timeout,
	}
}

func (c *Config) severities() ([]diag.Severity, error) {
	out := make([]diag.Severity, 0, len(c.Parse.Severities))
	for _, s := range c.Parse.Severities {
		sev, err := diag.ParseSeverity(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sev)
	}
	return out, nil
}

// Parser returns the diagnostic parser described by [parse].
func (c *Config) Parser() *diag.Parser {
	style, _ := diag.ParsePathStyle(c.Parse.PathStyle) // проверено в Validate
	sevs, _ := c.severities()                          // проверено в Validate
	p := diag.NewParser(style)
	p.Severities = sevs
	return p
}

// Filter returns the file selection described by [scan].
func (c *Config) Filter() project.Filter {
	exclude := append([]string(nil), c.Scan.Exclude...)
	if !c.Scan.NoDefaultExcludes {
		exclude = append(exclude, project.DefaultExcludes...)
	}
	return project.Filter{
		Extensions: append([]string(nil), c.Scan.Extensions...),
		Include:    append([]string(nil), c.Scan.Include...),
		Exclude:    exclude,
	}
}

// Actions builds the configured rules into an action set.
func (c *Config) Actions(reg *patch.Registry) (*patch.Set, error) {
	if reg == nil {
		reg = patch.NewRegistry()
	}
	set, err := reg.BuildSet(c.Rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.where(), err)
	}
	return set, nil
}

// DriverOptions fills the run settings of driver.Options; the caller adds
// actions, logger and progress sink.
func (c *Config) DriverOptions() driver.Options {
	policy, _ := driver.ParsePolicy(c.Run.Policy) // проверено в Validate
	mode, _ := driver.ParseMode(c.Run.Mode)       // проверено в Validate
	return driver.Options{
		Root:   c.Root(),
		Filter: c.Filter(),
		Jobs:   c.Run.Jobs,
		Policy: policy,
		Mode:   mode,
		DryRun: c.Run.DryRun,
	}
}
