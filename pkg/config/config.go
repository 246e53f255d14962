package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen       = "0.0.0.0:9186"
	DefaultUserAgent    = "jsonnet-exporter"
	defaultMaxBodyBytes = 10 * 1024 * 1024
)

// ErrAmbiguousOrMissingSource is returned for a module that sets both or
// neither of jsonnet and jsonnet_path.
var ErrAmbiguousOrMissingSource = errors.New("exactly one of 'jsonnet' and 'jsonnet_path' has to be set")

// ModuleError associates a validation error with the module it belongs to.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("module %q: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type ModuleTest struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

type ModuleSpec struct {
	Jsonnet     string       `yaml:"jsonnet"`
	JsonnetPath string       `yaml:"jsonnet_path"`
	Tests       []ModuleTest `yaml:"tests"`
}

// Validate checks that exactly one program source is set.
func (s ModuleSpec) Validate() error {
	hasInline := strings.TrimSpace(s.Jsonnet) != ""
	hasPath := strings.TrimSpace(s.JsonnetPath) != ""
	if hasInline == hasPath {
		return ErrAmbiguousOrMissingSource
	}
	return nil
}

type AccessLogRotateConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

type LoggingConfig struct {
	Level                 string `yaml:"level"`
	AccessLog             bool   `yaml:"access_log"`
	AccessLogFormat       string `yaml:"access_log_format"`
	AccessLogFormatPreset string `yaml:"access_log_format_preset"`
	// AccessLogPath sends access logs to a file instead of stdout.
	AccessLogPath   string                `yaml:"access_log_path"`
	AccessLogRotate AccessLogRotateConfig `yaml:"access_log_rotate"`

	accessLogSet bool `yaml:"-"`
}

func (c *LoggingConfig) UnmarshalYAML(value *yaml.Node) error {
	type rawLogging struct {
		Level                 string                `yaml:"level"`
		AccessLog             bool                  `yaml:"access_log"`
		AccessLogFormat       string                `yaml:"access_log_format"`
		AccessLogFormatPreset string                `yaml:"access_log_format_preset"`
		AccessLogPath         string                `yaml:"access_log_path"`
		AccessLogRotate       AccessLogRotateConfig `yaml:"access_log_rotate"`
	}
	var raw rawLogging
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Level = raw.Level
	c.AccessLog = raw.AccessLog
	c.AccessLogFormat = raw.AccessLogFormat
	c.AccessLogFormatPreset = raw.AccessLogFormatPreset
	c.AccessLogPath = raw.AccessLogPath
	c.AccessLogRotate = raw.AccessLogRotate
	c.accessLogSet = false

	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if strings.TrimSpace(value.Content[i].Value) == "access_log" {
			c.accessLogSet = true
		}
	}
	return nil
}

type ProbeConfig struct {
	// TimeoutMs bounds a single target fetch. Zero disables the bound.
	TimeoutMs    int    `yaml:"timeout_ms"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
	UserAgent    string `yaml:"user_agent"`
	// ProxyURL is used for http and https targets unless the host matches NoProxy.
	ProxyURL string `yaml:"proxy_url"`
	NoProxy  string `yaml:"no_proxy"`
}

type Config struct {
	Server struct {
		Listen         string `yaml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
	} `yaml:"server"`

	Probe ProbeConfig `yaml:"probe"`

	Jsonnet struct {
		// LibraryPaths are searched for imports of file based modules.
		LibraryPaths []string `yaml:"library_paths"`
		MaxStack     int      `yaml:"max_stack"`
		// CacheSize bounds the number of loaded modules kept in memory.
		CacheSize int `yaml:"cache_size"`
	} `yaml:"jsonnet"`

	Logging LoggingConfig `yaml:"logging"`

	Reload struct {
		// Watch reloads the config when it or a module file changes.
		Watch      bool `yaml:"watch"`
		DebounceMs int  `yaml:"debounce_ms"`
	} `yaml:"reload"`

	Modules map[string]ModuleSpec `yaml:"modules"`

	path string
}

// Path is the file the config was loaded from, empty for parsed documents.
func (c *Config) Path() string { return c.path }

// ModuleNames returns the configured module names in lexical order.
func (c *Config) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModulePaths returns the jsonnet_path of every file based module.
func (c *Config) ModulePaths() []string {
	out := make([]string, 0, len(c.Modules))
	for _, name := range c.ModuleNames() {
		if p := strings.TrimSpace(c.Modules[name].JsonnetPath); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func Load(path string) (*Config, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(b, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse decodes a config document. Relative jsonnet_path values are resolved
// against baseDir.
func Parse(b []byte, baseDir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	resolveModulePaths(&cfg, baseDir)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = DefaultListen
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 30000
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 30000
	}
	if cfg.Probe.TimeoutMs == 0 {
		cfg.Probe.TimeoutMs = 10000
	}
	if cfg.Probe.MaxBodyBytes == 0 {
		cfg.Probe.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(cfg.Probe.UserAgent) == "" {
		cfg.Probe.UserAgent = DefaultUserAgent
	}
	if cfg.Jsonnet.MaxStack <= 0 {
		cfg.Jsonnet.MaxStack = 500
	}
	if cfg.Jsonnet.CacheSize <= 0 {
		cfg.Jsonnet.CacheSize = 128
	}
	if cfg.Reload.DebounceMs <= 0 {
		cfg.Reload.DebounceMs = 300
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if !cfg.Logging.accessLogSet {
		cfg.Logging.AccessLog = true
	}
	if cfg.Logging.AccessLogRotate.MaxSizeMB <= 0 {
		cfg.Logging.AccessLogRotate.MaxSizeMB = 100
	}
	if cfg.Logging.AccessLogRotate.MaxBackups <= 0 {
		cfg.Logging.AccessLogRotate.MaxBackups = 14
	}
	if cfg.Modules == nil {
		cfg.Modules = map[string]ModuleSpec{}
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("JSONNET_EXPORTER_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("JSONNET_EXPORTER_LOG_LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	cfg.Logging.AccessLog = envBool("JSONNET_EXPORTER_ACCESS_LOG", cfg.Logging.AccessLog)
	if v := strings.TrimSpace(os.Getenv("JSONNET_EXPORTER_ACCESS_LOG_PATH")); v != "" {
		cfg.Logging.AccessLogPath = v
	}
	if n, ok := envInt("JSONNET_EXPORTER_PROBE_TIMEOUT_MS"); ok {
		cfg.Probe.TimeoutMs = n
	}
	if n, ok := envInt("JSONNET_EXPORTER_PROBE_MAX_BODY_BYTES"); ok && n > 0 {
		cfg.Probe.MaxBodyBytes = int64(n)
	}
	if v := strings.TrimSpace(os.Getenv("JSONNET_EXPORTER_PROBE_PROXY_URL")); v != "" {
		cfg.Probe.ProxyURL = v
	}
	cfg.Reload.Watch = envBool("JSONNET_EXPORTER_RELOAD_WATCH", cfg.Reload.Watch)
	cfg.Jsonnet.LibraryPaths = append(cfg.Jsonnet.LibraryPaths, SplitLibraryPaths(os.Getenv("JSONNET_PATH"))...)
}

// SplitLibraryPaths splits a JSONNET_PATH style list.
func SplitLibraryPaths(v string) []string {
	out := make([]string, 0)
	for _, p := range filepath.SplitList(v) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func resolveModulePaths(cfg *Config, baseDir string) {
	if strings.TrimSpace(baseDir) == "" {
		return
	}
	for name, spec := range cfg.Modules {
		p := strings.TrimSpace(spec.JsonnetPath)
		if p == "" || filepath.IsAbs(p) {
			continue
		}
		spec.JsonnetPath = filepath.Join(baseDir, p)
		cfg.Modules[name] = spec
	}
}

func envInt(name string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Probe.TimeoutMs < 0 {
		return errors.New("probe.timeout_ms must be >= 0")
	}
	if cfg.Probe.MaxBodyBytes < 0 {
		return errors.New("probe.max_body_bytes must be > 0")
	}
	if v := strings.TrimSpace(cfg.Probe.ProxyURL); v != "" && !strings.Contains(v, "://") {
		return errors.New("probe.proxy_url must be a URL (e.g. http://127.0.0.1:3128)")
	}
	return ValidateModules(cfg.Modules)
}

// ValidateModules checks every module spec and joins all failures, ordered
// by module name.
func ValidateModules(modules map[string]ModuleSpec) error {
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, &ModuleError{Module: name, Err: errors.New("module name must not be empty")})
			continue
		}
		if err := modules[name].Validate(); err != nil {
			errs = append(errs, &ModuleError{Module: name, Err: err})
		}
	}
	return errors.Join(errs...)
}
