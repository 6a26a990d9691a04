// Command textlens processes selected text with a configured LLM provider,
// either one-shot from the command line or behind a local HTTP bridge.
//
//	@title			textlens bridge API
//	@version		0.1.0
//	@description	Local HTTP bridge for processing selected text with a configured LLM provider.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/HerbHall/textlens/api/swagger"
	"github.com/HerbHall/textlens/internal/config"
	"github.com/HerbHall/textlens/internal/event"
	"github.com/HerbHall/textlens/internal/process"
	"github.com/HerbHall/textlens/internal/server"
	"github.com/HerbHall/textlens/internal/settings"
	"github.com/HerbHall/textlens/internal/version"
	"github.com/HerbHall/textlens/internal/ws"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "process":
			os.Exit(runProcess(os.Args[2:]))
		case "version":
			fmt.Println(version.Info())
			return
		case "serve":
			os.Args = append(os.Args[:1], os.Args[2:]...)
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if err := serve(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "textlens: %v\n", err)
		os.Exit(1)
	}
}

func serve(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	logger.Info("textlens starting", zap.String("version", version.Short()))
	config.WatchLogLevel(a.v, a.level, logger)

	srvCfg := server.Config{
		Host:           a.cfg.GetString("server.host"),
		Port:           a.cfg.GetInt("server.port"),
		AllowRemote:    a.cfg.GetBool("server.allow_remote"),
		OriginPatterns: a.cfg.GetStringSlice("server.origin_patterns"),
		DevMode:        a.cfg.GetBool("server.dev_mode"),
	}
	rl := server.RateLimitConfig{
		RPS:   a.cfg.GetFloat64("ratelimit.rps"),
		Burst: a.cfg.GetInt("ratelimit.burst"),
	}

	bus := event.NewBus(logger.Named("event"))
	machine := process.NewMachine(a.pipeline, bus, logger.Named("process"))

	wsHandler := ws.NewHandler(bus, srvCfg.OriginPatterns, logger.Named("ws"))
	defer wsHandler.Close()

	settingsHandler := settings.NewHandler(a.providers, a.templates, a.legacy, logger.Named("settings"))
	processHandler := process.NewHandler(ctx, machine, logger.Named("process"))

	readyCheck := server.ReadinessChecker(func(ctx context.Context) error {
		return a.db.DB().PingContext(ctx)
	})
	srv := server.New(srvCfg.Addr(), logger, readyCheck,
		server.Options{AllowRemote: srvCfg.AllowRemote, RateLimit: rl, DevMode: srvCfg.DevMode},
		settingsHandler, processHandler, wsHandler,
	)
	if srvCfg.AllowRemote {
		logger.Warn("remote access enabled; the API can read and change provider settings",
			zap.String("addr", srvCfg.Addr()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := machine.Shutdown(shutdownCtx); err != nil {
			logger.Warn("processing did not stop cleanly", zap.Error(err))
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("textlens stopped")
	return nil
}
