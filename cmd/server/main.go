package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/partyhub/internal/adapters/gamefinder"
	router "github.com/dkeye/partyhub/internal/adapters/http"
	wssignal "github.com/dkeye/partyhub/internal/adapters/signal"
	"github.com/dkeye/partyhub/internal/app"
	"github.com/dkeye/partyhub/internal/app/invite"
	"github.com/dkeye/partyhub/internal/app/orch"
	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/config"
	"github.com/dkeye/partyhub/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	sessions := app.NewSessions()
	hub := wssignal.NewHub(wssignal.Options{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod})
	inApp := invite.NewTransportChannel(hub)

	hooks := party.Hooks{}
	if cfg.Party.JoinRateLimit > 0 {
		limiter := app.NewJoinRateLimiter(cfg.Party.JoinRateLimit, cfg.Party.JoinRateInterval)
		hooks.JoinPolicies = append(hooks.JoinPolicies, limiter.Policy())
	}

	reg := app.NewRegistry(party.Options{
		Config:         cfg.Party.Engine(),
		Sessions:       sessions,
		Transport:      hub,
		Matchmaker:     &gamefinder.Loopback{Delay: cfg.GameFinder.Delay},
		Channels:       []core.InvitationChannel{inApp},
		DefaultChannel: inApp,
		Hooks:          hooks,
	}, cfg.Party.InvitationCodeLength)

	o := &orch.Orchestrator{
		Registry: reg,
		Sessions: sessions,
	}
	ctl := wssignal.NewController(o, hub, cfg.Party.RequestTimeout)

	r := router.SetupRouter(ctx, cfg, reg, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("PartyHub server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		hub.CloseAll("server.shutdown")
		reg.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}
