package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/simonswine/jsonnet-exporter/internal/logx"
	"github.com/simonswine/jsonnet-exporter/internal/selfmetrics"
	"github.com/simonswine/jsonnet-exporter/internal/version"
	"github.com/simonswine/jsonnet-exporter/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// Run loads the config, validates every module and serves until ctx is done
// or SIGINT/SIGTERM is received.
func Run(ctx context.Context, opts Options) error {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	if err := applyLogLevel(cfg); err != nil {
		return err
	}
	logx.Infof("starting %s", version.String())

	accessFormat, err := logx.ResolveAccessLogFormat(cfg.Logging.AccessLogFormat, cfg.Logging.AccessLogFormatPreset)
	if err != nil {
		return fmt.Errorf("resolve access log format: %w", err)
	}
	accessFormatter, err := logx.CompileAccessLogFormat(accessFormat)
	if err != nil {
		return fmt.Errorf("compile access_log_format: %w", err)
	}

	st := newState(opts, selfmetrics.New(true))
	if err := st.init(ctx, cfg); err != nil {
		return err
	}

	accessLogger, accessClose, accessColor, err := openAccessLogger(cfg)
	if err != nil {
		return fmt.Errorf("init access log: %w", err)
	}
	if accessClose != nil {
		defer func() { _ = accessClose.Close() }()
	}
	engine := NewRouter(st, RouterOptions{
		AccessLog:       cfg.Logging.AccessLog,
		AccessLogger:    accessLogger,
		AccessColor:     accessColor,
		AccessFormatter: accessFormatter,
	})

	stopSignals := installReloadSignalHandler(st)
	defer stopSignals()

	if cfg.Reload.Watch {
		closer, err := installAutoReload(cfg, time.Duration(cfg.Reload.DebounceMs)*time.Millisecond, func() error {
			_, err := st.Reload(context.Background())
			return err
		})
		if err != nil {
			return fmt.Errorf("init auto reload: %w", err)
		}
		defer func() { _ = closer.Close() }()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           engine,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutMs) * time.Millisecond,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutMs) * time.Millisecond,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logx.Infof("listening on %s", cfg.Server.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("run: %w", err)
	case <-ctx.Done():
	}

	logx.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openAccessLogger returns a logger for stdout, or for access_log_path with
// optional size based rotation. Colors are only used on a terminal.
func openAccessLogger(cfg *config.Config) (*log.Logger, io.Closer, bool, error) {
	if cfg == nil || !cfg.Logging.AccessLog {
		return nil, nil, false, nil
	}
	path := strings.TrimSpace(cfg.Logging.AccessLogPath)
	if path == "" {
		return log.New(os.Stdout, "", log.LstdFlags), nil, logx.StdoutColorEnabled(), nil
	}
	opts := logx.RotateOptions{Path: path}
	if rot := cfg.Logging.AccessLogRotate; rot.Enabled {
		opts.MaxBytes = int64(rot.MaxSizeMB) * 1024 * 1024
		opts.MaxBackups = rot.MaxBackups
		opts.Compress = rot.Compress
	}
	w, err := logx.OpenRotatingFile(opts)
	if err != nil {
		return nil, nil, false, err
	}
	return log.New(w, "", log.LstdFlags), w, false, nil
}

func applyLogLevel(cfg *config.Config) error {
	lvl, err := logx.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logx.SetLevel(lvl)
	return nil
}

func installReloadSignalHandler(st *state) func() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range ch {
			snap, err := st.Reload(context.Background())
			if err != nil {
				logx.Errorf("reload failed (signal): %v", err)
				continue
			}
			logx.Infof("reload ok (signal): config=%q modules=%s", st.opts.ConfigFile, moduleNamesForLog(snap.registry.Names()))
		}
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
		<-done
	}
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }
