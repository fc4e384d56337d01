package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/opendmp/python-script-processor/core/logx"
	"github.com/opendmp/python-script-processor/core/secret"
	pyscript "github.com/opendmp/python-script-processor/modules/pyscript/ext"
	"github.com/opendmp/python-script-processor/sdk/base/codec"
	"github.com/opendmp/python-script-processor/server/internal/catalog"
	"github.com/opendmp/python-script-processor/server/internal/config"
	"github.com/opendmp/python-script-processor/server/internal/metrics"
	"github.com/opendmp/python-script-processor/server/internal/plugin"
	"github.com/opendmp/python-script-processor/server/internal/server"
	"github.com/opendmp/python-script-processor/server/internal/serverstate"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// configPathFromArgs lets --config pick the file before flags are parsed.
func configPathFromArgs(args []string) (string, bool) {
	for i, a := range args {
		a = "-" + strings.TrimLeft(a, "-")
		if a == "-config" && i+1 < len(args) {
			return args[i+1], true
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v, true
		}
	}
	return "", false
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("python-script-processor", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "print version and exit")
	printFormat := fs.String("print", "", "print the plugin descriptor (json, yaml, msgpack) and exit")
	exportPath := fs.String("export", "", "write the plugin descriptor to a file (format from extension) and exit")
	validatePath := fs.String("validate", "", "validate a plugin descriptor file and exit")

	var cfg config.ServerConfig
	// Resolve config with precedence: defaults < file < env < args
	cfg.SetDefaults()
	cfg.ApplyEnv()
	if p, ok := configPathFromArgs(args); ok {
		cfg.ConfigFile = p
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logx.Log.Error().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
			return 1
		}
	}
	cfg.ApplyEnv()
	cfg.BindFlags(fs)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "python-script-processor version=%s sha=%s date=%s\n\n", version, buildSHA, buildDate)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	logx.Configure(cfg.LogLevel)

	switch {
	case *showVersion:
		_, _ = fmt.Fprintf(stdout, "python-script-processor version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return 0
	case *printFormat != "":
		f, err := codec.ParseFormat(*printFormat)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 2
		}
		b, err := codec.Encode(f, pyscript.Descriptor())
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		_, _ = stdout.Write(b)
		return 0
	case *exportPath != "":
		if err := codec.WriteFile(*exportPath, pyscript.Descriptor()); err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		logx.Log.Info().Str("path", *exportPath).Msg("descriptor exported")
		return 0
	case *validatePath != "":
		d, err := codec.ReadFile(*validatePath)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		_, _ = fmt.Fprintf(stdout, "%s: valid descriptor for %s (%d fields)\n", *validatePath, d.ServiceName, len(d.Fields))
		return 0
	}

	if err := serve(cfg); err != nil {
		logx.Log.Error().Err(err).Msg("server error")
		return 1
	}
	return 0
}

func serve(cfg config.ServerConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state := serverstate.NewTracker()
	reg := plugin.Default()
	preg := prometheus.NewRegistry()
	handler := server.New(server.Options{
		Config:   cfg,
		Registry: reg,
		State:    state,
		Version:  version,
		Metrics:  preg,
	})
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	if cfg.RedisAddr != "" {
		cat, err := catalog.NewRedisCatalog(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect redis %s: %w", secret.MaskURL(cfg.RedisAddr), err)
		}
		defer func() { _ = cat.Close() }()
		for _, id := range reg.IDs() {
			d, _ := reg.Descriptor(id)
			err := cat.Publish(ctx, d)
			metrics.RecordPublish(err)
			if err != nil {
				return err
			}
			logx.Log.Info().Str("plugin", id).Str("redis", secret.MaskURL(cfg.RedisAddr)).Msg("descriptor published")
		}
	}

	srv := &http.Server{Addr: cfg.APIAddr(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	var metricsSrv *http.Server
	if !cfg.MetricsOnAPIPort() {
		metricsSrv = &http.Server{Addr: cfg.MetricsListenAddr(), Handler: server.MetricsHandler(preg), ReadHeaderTimeout: 10 * time.Second}
	}

	errCh := make(chan error, 2)
	listen := func(name string, s *http.Server) {
		logx.Log.Info().Str("addr", s.Addr).Msg(name + " starting")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}
	if cfg.APIKey != "" {
		logx.Log.Info().Str("api_key", secret.Mask(cfg.APIKey)).Msg("API key auth enabled")
	}
	go listen("descriptor server", srv)
	if metricsSrv != nil {
		go listen("metrics server", metricsSrv)
	}
	state.SetStatus(serverstate.Ready)
	logx.Log.Info().Str("instance", cfg.InstanceID).Strs("plugins", reg.IDs()).Msg("ready")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	state.StartDrain()
	logx.Log.Info().Dur("timeout", cfg.DrainTimeout).Msg("draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Log.Error().Err(err).Msg("server shutdown")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logx.Log.Error().Err(err).Msg("metrics server shutdown")
		}
	}
	return runErr
}
