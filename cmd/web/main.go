// cmd/web/main.go
//
// Gridfolio – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load env vars (host-wide file → conf/.env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load layered config; resolve vault: references when VAULT_ADDR is
//     set.
//
//  4. Open the shared MySQL store.
//
//  5. Build the domain graph: scope resolver + cache, binding manager,
//     widget store/setup, Notion client, feed aggregator.
//
//  6. Mount the API router and wrap it with request enrichment, security
//     headers, and (optionally) HTTPS enforcement.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/gridfolio/gridfolio/internal/binding"
	"github.com/gridfolio/gridfolio/internal/config"
	"github.com/gridfolio/gridfolio/internal/database"
	"github.com/gridfolio/gridfolio/internal/feed"
	"github.com/gridfolio/gridfolio/internal/logger"
	"github.com/gridfolio/gridfolio/internal/middleware"
	"github.com/gridfolio/gridfolio/internal/notion"
	"github.com/gridfolio/gridfolio/internal/requestinfo"
	"github.com/gridfolio/gridfolio/internal/scope"
	"github.com/gridfolio/gridfolio/internal/server"
	"github.com/gridfolio/gridfolio/internal/vault"
	"github.com/gridfolio/gridfolio/internal/web"
	"github.com/gridfolio/gridfolio/internal/widget"
)

const serverEnvPath = "/usr/local/etc/gridfolio/global.env"

// loadEnv prefers the host-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	ctx := context.Background()

	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	//
	// ── 1.  Config + secret resolution ─────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		logOut.Fatalw("load config", "err", err)
	}

	if os.Getenv("VAULT_ADDR") != "" {
		vc, err := vault.New(ctx)
		if err != nil {
			logOut.Fatalw("connect vault", "err", err)
		}
		if err := config.ResolveSecrets(ctx, cfg, vc); err != nil {
			logOut.Fatalw("resolve secrets", "err", err)
		}
		cfg = config.Get()
	}

	//
	// ── 2.  Shared store ───────────────────────────────────────────────
	//
	logOut.Infow("connecting to store")
	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logOut.Fatalw("connect store", "err", err)
	}
	defer db.Close()

	// Early sanity check: active-customer count.
	var active int
	_ = db.Get(&active, `SELECT COUNT(*) FROM customer WHERE status = 'active'`)
	logOut.Infow("store online", "active_customers", active)

	//
	// ── 3.  Domain graph ───────────────────────────────────────────────
	//
	resolver := scope.NewResolver(db)
	scopes := scope.NewCache(resolver, scope.IdleTTL, scope.MaxAge, scope.MaxEntries)

	bindings := binding.NewManager(binding.NewSQLStore(db))
	widgets := widget.NewStore(db)
	setup := widget.NewSetupService(db, widgets)

	nc := notion.New(cfg.Notion.BaseURL, cfg.Notion.ClientID,
		cfg.Notion.ClientSecret, cfg.Notion.RedirectURI)
	feeds := feed.NewAggregator(nc)

	if cfg.Geo.MMDBPath != "" {
		if err := requestinfo.InitGeo(cfg.Geo.MMDBPath); err != nil {
			logOut.Warnw("geo lookups disabled", "err", err)
		}
	}

	//
	// ── 4.  Router + middleware ────────────────────────────────────────
	//
	api := web.New(web.Deps{
		Scopes:       scopes,
		Resolver:     resolver,
		Bindings:     bindings,
		Widgets:      widgets,
		Setup:        setup,
		Notion:       nc,
		Feeds:        feeds,
		DashboardURL: cfg.App.PublicURL + "/dashboard",
	})

	handler := middleware.Security(requestinfo.Enrich(api.Routes()))
	if cfg.HTTP.ForceHTTPS {
		handler = middleware.ForceHTTPS(handler)
	}

	srv := server.New(cfg.HTTP.ListenAddr, handler)
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := srv.ListenAndServe(); err != nil {
		logOut.Fatalw("http server", "err", err)
	}
}
