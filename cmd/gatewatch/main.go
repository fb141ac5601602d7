package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"

	"github.com/nailsalon/admin-gate/internal/accessgate"
	"github.com/nailsalon/admin-gate/internal/config"
	"github.com/nailsalon/admin-gate/internal/identity"
	"github.com/nailsalon/admin-gate/internal/observability"
	"github.com/nailsalon/admin-gate/internal/proxyclient"
)

func main() {
	managerName := flag.String("manager-name", "", "enroll this address with the manager's name when denied")
	once := flag.Bool("once", false, "check once and exit instead of polling")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Logger.Service = "gatewatch"
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := proxyclient.New(proxyclient.Options{URL: cfg.Gate.ProxyURL, APIKey: cfg.Gate.APIKey})
	gate := accessgate.New(accessgate.Options{
		Detector:    accessgate.NewIPLookup(cfg.Gate.IPPrimaryURL, cfg.Gate.IPFallbackURL, 0),
		Checker:     client,
		Fingerprint: deviceFingerprint(),
		Interval:    cfg.Gate.PollInterval(),
		Logger:      logger,
	})

	gate.OnChange(func(s accessgate.State) {
		fields := []zap.Field{zap.String("phase", string(s.Phase)), zap.String("address", s.Address)}
		if s.Err != nil {
			fields = append(fields, zap.Error(s.Err))
		}
		logger.Info("access gate", fields...)
	})

	if *once {
		gate.Start(ctx)
		if gate.Snapshot().Phase == accessgate.PhaseDenied && *managerName != "" {
			enroll(ctx, gate, *managerName, logger)
		}
		if gate.Snapshot().Phase != accessgate.PhaseAllowed {
			os.Exit(1)
		}
		return
	}

	if *managerName != "" {
		var attempted atomic.Bool
		gate.OnChange(func(s accessgate.State) {
			if s.Phase != accessgate.PhaseDenied || !attempted.CompareAndSwap(false, true) {
				return
			}
			// Enroll re-runs the check, which must not happen inside the observer.
			go enroll(ctx, gate, *managerName, logger)
		})
	}

	if role, err := client.CurrentRole(ctx); err == nil {
		logger.Info("proxy role", zap.String("role", role.String()))
	}
	if err := gate.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("access gate stopped", zap.Error(err))
	}
}

func enroll(ctx context.Context, gate *accessgate.Gate, managerName string, logger *zap.Logger) {
	ok, err := gate.Enroll(ctx, managerName)
	switch {
	case err != nil:
		logger.Error("enrollment failed", zap.Error(err))
	case !ok:
		logger.Warn("enrollment refused: manager name did not match")
	default:
		logger.Info("address enrolled", zap.String("address", gate.Snapshot().Address))
	}
}

func deviceFingerprint() string {
	host, _ := os.Hostname()
	return identity.Fingerprint("gatewatch/"+host, os.Getenv("LANG"), runtime.GOOS+"/"+runtime.GOARCH)
}
