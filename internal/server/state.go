package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/simonswine/jsonnet-exporter/internal/logx"
	"github.com/simonswine/jsonnet-exporter/internal/selfmetrics"
	"github.com/simonswine/jsonnet-exporter/pkg/config"
	"github.com/simonswine/jsonnet-exporter/pkg/engine"
	"github.com/simonswine/jsonnet-exporter/pkg/httpclient"
	"github.com/simonswine/jsonnet-exporter/pkg/modules"
	"github.com/simonswine/jsonnet-exporter/pkg/probe"
)

// Options are command line overrides applied on top of the config file.
type Options struct {
	ConfigFile   string
	ListenAddr   string
	LibraryPaths []string
}

// LoadConfig loads the config file and applies opts.
func LoadConfig(opts Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", opts.ConfigFile, err)
	}
	if v := strings.TrimSpace(opts.ListenAddr); v != "" {
		cfg.Server.Listen = v
	}
	cfg.Jsonnet.LibraryPaths = append(cfg.Jsonnet.LibraryPaths, opts.LibraryPaths...)
	return cfg, nil
}

// NewRegistry builds the module registry described by cfg.
func NewRegistry(cfg *config.Config) (*modules.Registry, error) {
	eng := engine.New(engine.Options{
		LibraryPaths: cfg.Jsonnet.LibraryPaths,
		MaxStack:     cfg.Jsonnet.MaxStack,
	})
	var debugf func(string, ...any)
	if logx.Enabled(logx.LevelDebug) {
		debugf = logx.Debugf
	}
	return modules.NewRegistry(cfg, eng, modules.Options{
		CacheSize: cfg.Jsonnet.CacheSize,
		Debugf:    debugf,
	})
}

// snapshot is everything a request needs. It is replaced as a whole on reload.
type snapshot struct {
	cfg      *config.Config
	registry *modules.Registry
	prober   *probe.Prober
	loadedAt time.Time
}

type state struct {
	opts    Options
	metrics *selfmetrics.Metrics

	cur atomic.Pointer[snapshot]
	// mu serializes reloads.
	mu sync.Mutex
}

func newState(opts Options, metrics *selfmetrics.Metrics) *state {
	return &state{opts: opts, metrics: metrics}
}

func (s *state) current() *snapshot { return s.cur.Load() }

// load builds and validates a snapshot from cfg. Test mismatches are logged
// and counted, load and evaluation errors fail the whole snapshot.
func (s *state) load(ctx context.Context, cfg *config.Config) (*snapshot, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	reg, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	sum, err := modules.Validate(ctx, reg, s.reportTest)
	if err != nil {
		return nil, fmt.Errorf("validate modules: %w", err)
	}
	logx.Infof("modules validated: modules=%d tests_passed=%d tests_failed=%d", sum.Modules, sum.Passed, sum.Failed)

	client, err := httpclient.New(httpclient.Options{
		ProxyURL: cfg.Probe.ProxyURL,
		NoProxy:  cfg.Probe.NoProxy,
	})
	if err != nil {
		return nil, fmt.Errorf("init probe client: %w", err)
	}
	return &snapshot{
		cfg:      cfg,
		registry: reg,
		prober: &probe.Prober{
			Registry:     reg,
			Client:       client,
			Timeout:      time.Duration(cfg.Probe.TimeoutMs) * time.Millisecond,
			MaxBodyBytes: cfg.Probe.MaxBodyBytes,
			UserAgent:    cfg.Probe.UserAgent,
		},
		loadedAt: time.Now(),
	}, nil
}

func (s *state) reportTest(r modules.TestResult) {
	if s.metrics != nil {
		s.metrics.ObserveTest(r.Module, r.Result())
	}
	switch r.Result() {
	case modules.ResultPass:
		logx.Debugf("module test passed: module=%q test=%d", r.Module, r.Index)
	case modules.ResultFail:
		logx.Warnf("module test output mismatch: module=%q test=%d\n%s", r.Module, r.Index, r.Diff)
	}
}

// init loads the first snapshot; failures are fatal to the caller.
func (s *state) init(ctx context.Context, cfg *config.Config) error {
	snap, err := s.load(ctx, cfg)
	if s.metrics != nil {
		s.metrics.ObserveReload(err)
	}
	if err != nil {
		return err
	}
	s.cur.Store(snap)
	return nil
}

// Reload re-reads the config file. On failure the previous snapshot stays.
func (s *state) Reload(ctx context.Context) (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := LoadConfig(s.opts)
	if err == nil {
		err = applyLogLevel(cfg)
	}
	var snap *snapshot
	if err == nil {
		snap, err = s.load(ctx, cfg)
	}
	if s.metrics != nil {
		s.metrics.ObserveReload(err)
	}
	if err != nil {
		return nil, err
	}
	s.cur.Store(snap)
	return snap, nil
}
