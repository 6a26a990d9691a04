package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HerbHall/textlens/internal/config"
	"github.com/HerbHall/textlens/internal/process"
	"github.com/HerbHall/textlens/internal/prompt"
	"github.com/HerbHall/textlens/internal/request"
	"github.com/HerbHall/textlens/internal/resolver"
	"github.com/HerbHall/textlens/internal/secrets"
	"github.com/HerbHall/textlens/internal/server"
	"github.com/HerbHall/textlens/internal/sse"
	"github.com/HerbHall/textlens/internal/store"
	"github.com/HerbHall/textlens/internal/transport"
	"github.com/HerbHall/textlens/internal/version"
)

// app holds the components shared by the serve and process commands.
type app struct {
	v      *viper.Viper
	cfg    *config.ViperConfig
	logger *zap.Logger
	level  zap.AtomicLevel

	db        *store.SQLiteStore
	providers *store.ProviderStore
	templates *store.TemplateStore
	legacy    *store.LegacyStore
	pipeline  *process.Pipeline
}

// newApp loads configuration, opens the database and builds the pipeline.
// Callers must call close.
func newApp(ctx context.Context, configPath string) (*app, error) {
	v, err := server.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, level, err := config.NewLoggerWithLevel(v)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	a := &app{v: v, cfg: config.New(v), logger: logger, level: level}

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Info("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.buildPipeline(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	dbPath := a.v.GetString("database.path")
	if dbPath == "" {
		dbPath = "textlens.db"
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		return err
	}
	if err := db.MigrateCore(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	a.logger.Info("database initialized",
		zap.String("component", "database"),
		zap.String("path", dbPath),
	)

	sealer, err := secrets.Open(ctx, db, a.v.GetString("secrets.passphrase"), a.logger.Named("secrets"))
	if err != nil {
		return fmt.Errorf("open secrets: %w", err)
	}

	a.providers = store.NewProviderStore(db, sealer)
	a.templates = store.NewTemplateStore(db)
	a.legacy = store.NewLegacyStore(db, sealer)

	if a.v.GetBool("templates.seed_presets") {
		presets, err := prompt.Presets()
		if err != nil {
			return fmt.Errorf("load preset templates: %w", err)
		}
		n, err := a.templates.SeedIfEmpty(ctx, presets)
		if err != nil {
			return fmt.Errorf("seed templates: %w", err)
		}
		if n > 0 {
			a.logger.Info("preset templates added", zap.Int("count", n))
		}
	}
	return nil
}

func (a *app) buildPipeline() error {
	transportCfg := transport.DefaultConfig()
	if err := a.cfg.Section("transport", &transportCfg); err != nil {
		return err
	}
	sseCfg := sse.DefaultConfig()
	if err := a.cfg.Section("sse", &sseCfg); err != nil {
		return err
	}

	res := resolver.New(a.providers, a.templates, a.legacy, a.logger.Named("resolver"))
	a.pipeline = process.NewPipeline(
		res,
		request.NewBuilder(a.logger.Named("request")),
		transport.New(transportCfg, a.logger.Named("transport")),
		sse.NewParser(sseCfg, a.logger.Named("sse")),
		a.logger.Named("pipeline"),
	)
	return nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
