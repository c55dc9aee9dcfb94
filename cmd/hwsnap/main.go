package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/hwsnap/internal/aggregator"
	"codeberg.org/mutker/hwsnap/internal/config"
	"codeberg.org/mutker/hwsnap/internal/errors"
	"codeberg.org/mutker/hwsnap/internal/exporter"
	"codeberg.org/mutker/hwsnap/internal/logger"
	"codeberg.org/mutker/hwsnap/internal/remote"
	"codeberg.org/mutker/hwsnap/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(exitCode(err))
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cfg, os.Stdout); err != nil {
		var e errors.Error
		if errors.As(err, &e) {
			logger.ErrorWithCode(e).Msg("hwsnap failed")
		} else {
			logger.Error().Err(err).Msg("hwsnap failed")
		}
		cancel()
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for usage and configuration mistakes, 1 otherwise.
func exitCode(err error) int {
	code, ok := errors.CodeOf(err)
	if !ok {
		return 1
	}

	switch code {
	case errors.ErrInvalidArgument,
		errors.ErrInvalidConfig,
		errors.ErrBindFlags,
		errors.ErrParseFlags,
		errors.ErrReadConfig,
		errors.ErrInvalidTimeout,
		errors.ErrInvalidProbe,
		errors.ErrInvalidLogLevel:
		return 2
	default:
		return 1
	}
}

func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	agg := aggregator.New(aggregatorConfig(cfg), aggregator.WithLogger(logger.Default()))

	if cfg.Exporter.Listen != "" {
		return exporter.Serve(ctx, cfg.Exporter.Listen, exporter.NewCollector(agg, cfg.Exporter.ScrapeTimeout))
	}

	var snapshot telemetry.Snapshot
	if cfg.Remote.Host != "" || cfg.Remote.IP != "" {
		snapshot = agg.GetRemoteSnapshot(ctx, cfg.Remote.Host, cfg.Remote.User, cfg.Remote.IP)
	} else {
		snapshot = agg.GetSnapshot(ctx)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return errors.New().Wrap(errors.ErrEncodeOut, err)
	}

	return nil
}

func aggregatorConfig(cfg *config.Config) aggregator.Config {
	disabled := make([]telemetry.SourceID, 0, len(cfg.DisabledProbes))
	for _, name := range cfg.DisabledProbes {
		disabled = append(disabled, telemetry.SourceID(name))
	}

	return aggregator.Config{
		Root:               cfg.Root,
		ProbeTimeout:       cfg.ProbeTimeout,
		RemoteProbeTimeout: cfg.Remote.ProbeTimeout,
		Disabled:           disabled,
		Remote: remote.Config{
			Port:                  cfg.Remote.Port,
			ConnectTimeout:        cfg.Remote.ConnectTimeout,
			IdentityFiles:         cfg.Remote.IdentityFiles,
			KnownHostsFile:        cfg.Remote.KnownHosts,
			InsecureIgnoreHostKey: cfg.Remote.InsecureIgnoreHostKey,
			UseAgent:              cfg.Remote.UseAgent,
		},
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
