// Command waypoint runs a guided tour over a live web application.
//
// Usage:
//
//	waypoint -guide tour.yaml -url http://localhost:3000     # headful tour
//	waypoint -config waypoint.yaml                            # daemon config
//	waypoint -guide tour.yaml -preview                        # print steps and exit
//
// The tour is driven by the popover buttons in the page, and optionally
// through the HTTP control API (-addr) and MCP tools on stdio (-mcp).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/waypoint/browser"
	"github.com/hazyhaar/waypoint/config"
	"github.com/hazyhaar/waypoint/event"
	"github.com/hazyhaar/waypoint/guide"
	"github.com/hazyhaar/waypoint/kit"
	"github.com/hazyhaar/waypoint/persist"
	"github.com/hazyhaar/waypoint/route"
	"github.com/hazyhaar/waypoint/server"
	"github.com/hazyhaar/waypoint/tour"
)

var version = "dev"

type options struct {
	configPath string
	guidePath  string
	url        string
	db         string
	addr       string
	webhook    string
	mcp        bool
	preview    bool
	headless   bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", env("WAYPOINT_CONFIG", ""), "path to waypoint.yaml")
	flag.StringVar(&o.guidePath, "guide", env("WAYPOINT_GUIDE", ""), "path to the guide (JSON or YAML)")
	flag.StringVar(&o.url, "url", env("WAYPOINT_URL", ""), "application URL the tour opens on")
	flag.StringVar(&o.db, "db", env("WAYPOINT_DB", ""), "keep the tour record in this SQLite file instead of localStorage")
	flag.StringVar(&o.addr, "addr", env("WAYPOINT_ADDR", ""), "control API listen address, e.g. :8090")
	flag.StringVar(&o.webhook, "webhook", env("WAYPOINT_WEBHOOK", ""), "POST tour events to this URL")
	flag.BoolVar(&o.mcp, "mcp", false, "serve MCP tools on stdio")
	flag.BoolVar(&o.preview, "preview", false, "print the guide steps as markdown and exit")
	flag.BoolVar(&o.headless, "headless", false, "run Chrome headless")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("waypoint: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if cfg.Guide.Path == "" {
		fmt.Fprintln(os.Stderr, "usage: waypoint -guide <file> -url <url> | -config <file> | -guide <file> -preview")
		os.Exit(2)
	}

	g, err := guide.Load(cfg.Guide.Path)
	if err != nil {
		return fmt.Errorf("load guide: %w", err)
	}
	if o.preview {
		return preview(os.Stdout, g)
	}
	if cfg.Page.URL == "" {
		return errors.New("no application URL: set -url or page.url")
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		Bin:              cfg.Browser.Bin,
		ProfileDir:       cfg.Browser.Profile,
		Headless:         cfg.Browser.Headless,
		Stealth:          cfg.Browser.Stealth,
		Width:            cfg.Browser.Width,
		Height:           cfg.Browser.Height,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return err
	}
	defer mgr.Close()

	tab, err := browser.OpenTab(ctx, mgr, cfg.Page.URL)
	if err != nil {
		return err
	}
	defer tab.Close()
	tab.NavTimeout = cfg.Page.NavTimeout

	metrics := server.NewMetrics()

	storage, closeStorage, err := openStorage(cfg.Storage, tab)
	if err != nil {
		return err
	}
	defer closeStorage()

	sinks, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	sinks = append(sinks, metrics)

	// An SQLite record store also keeps the event history.
	var history *event.History
	if db, ok := storage.(*persist.SQLite); ok {
		if history, err = event.NewHistory(db.DB, 256, event.WithHistoryLogger(logger)); err != nil {
			return err
		}
		sinks = append(sinks, history)
	}

	mode := route.Hard
	if cfg.Tour.Navigation == "soft" {
		mode = route.Soft
	}
	var sim *tour.Simulator
	if cfg.Tour.Simulate {
		sim = &tour.Simulator{Interval: cfg.Tour.SimulateInterval, Ticks: cfg.Tour.SimulateTicks}
	}

	persister := persist.New(persist.Config{
		Storage:   storage,
		Key:       g.Config.StorageKey,
		OnFailure: metrics.PersistFailed,
		Logger:    logger,
	})
	s, err := tour.New(tour.Config{
		Guide:          g,
		Document:       tab,
		View:           tab,
		Navigator:      tab,
		NavigationMode: &mode,
		Persister:      persister,
		Sink:           event.NewRouter(logger, sinks...),
		Simulator:      sim,
		OnComplete: func() {
			logger.Info("waypoint: tour completed", "title", g.Title)
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer s.Destroy(context.Background())

	if db, ok := storage.(*persist.SQLite); ok {
		w := db.Watch(persister.Key(), persist.WatchOptions{Interval: cfg.Storage.WatchInterval, Logger: logger})
		go w.OnChange(ctx, func() error {
			_, err := s.Sync(ctx)
			return err
		})
	}

	boot := func() {
		st, err := s.Boot(ctx)
		if err != nil {
			logger.Warn("waypoint: boot", "error", err)
			return
		}
		// A record of any kind means the user has met the tour before.
		if cfg.Tour.AutoStart && !st.IsActive && !st.PanelOpen {
			if _, err := s.Start(ctx, nil); err != nil {
				logger.Warn("waypoint: auto start", "error", err)
			}
		}
	}
	boot()

	// Popover clicks and page events go through the same logged endpoints
	// as the HTTP and MCP surfaces.
	pageCtx := kit.WithSessionID(kit.WithTransport(ctx, kit.TransportPage), s.ID())
	action := kit.Logging(logger, "page_action")(func(ctx context.Context, req any) (any, error) {
		return s.Dispatch(ctx, req.(string))
	})
	reposition := kit.Logging(logger, "page_reposition")(func(ctx context.Context, _ any) (any, error) {
		return s.Reposition(ctx)
	})

	go tab.Listen(ctx, browser.Bindings{
		OnAction: func(a string) {
			action(pageCtx, a)
		},
		OnViewport: func() {
			reposition(pageCtx, nil)
		},
		OnLoad: boot,
	})

	if cfg.Guide.Watch {
		go func() {
			err := guide.Watch(ctx, cfg.Guide.Path, guide.WatchOptions{Debounce: cfg.Guide.Debounce, Logger: logger}, func(ng *guide.Guide) {
				if err := s.SetGuide(ctx, ng); err != nil {
					logger.Warn("waypoint: guide reload rejected", "error", err)
				}
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("waypoint: guide watcher stopped", "error", err)
			}
		}()
	}

	if cfg.Server.MCP {
		srv := mcp.NewServer(&mcp.Implementation{Name: "waypoint", Version: version}, nil)
		s.RegisterMCP(srv)
		go func() {
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("waypoint: mcp", "error", err)
			}
		}()
	}

	if cfg.Server.Addr != "" {
		httpSrv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           server.New(server.Config{Session: s, Metrics: metrics, History: history, Logger: logger}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("waypoint: control API listening", "addr", cfg.Server.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("waypoint: http", "error", err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutCtx)
		}()
	}

	logger.Info("waypoint: ready", "guide", g.Title, "steps", g.Len(), "url", cfg.Page.URL, "session", s.ID())
	<-ctx.Done()
	logger.Info("waypoint: shutting down")
	return nil
}

// loadConfig reads the config file, if any, and lays the flags over it.
func loadConfig(o options) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	}
	if o.guidePath != "" {
		cfg.Guide.Path = o.guidePath
	}
	if o.url != "" {
		cfg.Page.URL = o.url
	}
	if o.db != "" {
		cfg.Storage.Type = "sqlite"
		cfg.Storage.Path = o.db
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.mcp {
		cfg.Server.MCP = true
	}
	if o.headless {
		cfg.Browser.Headless = true
	}
	if o.webhook != "" {
		cfg.Sinks = append(cfg.Sinks, config.SinkConfig{Type: "webhook", URL: o.webhook, Retries: 3, Backoff: time.Second})
	}
	return cfg, cfg.Validate()
}

func openStorage(sc config.StorageConfig, tab *browser.Tab) (persist.Storage, func(), error) {
	switch sc.Type {
	case "sqlite":
		db, err := persist.OpenSQLite(sc.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open tour db: %w", err)
		}
		return db, func() { db.Close() }, nil
	case "memory":
		return persist.NewMemory(), func() {}, nil
	default:
		return tab, func() {}, nil
	}
}

func openSinks(cfg *config.Config, logger *slog.Logger) ([]event.Sink, error) {
	var sinks []event.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "stdout":
			if cfg.Server.MCP {
				logger.Warn("waypoint: stdout sink ignored, stdout carries MCP")
				continue
			}
			sinks = append(sinks, event.NewJSONLines(os.Stdout))
		case "jsonl":
			f, err := os.OpenFile(sc.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open event log: %w", err)
			}
			sinks = append(sinks, &fileSink{JSONLines: event.NewJSONLines(f), f: f})
		case "webhook":
			sinks = append(sinks, event.NewWebhook(sc.URL,
				event.WithWebhookRetries(sc.Retries),
				event.WithWebhookBackoff(sc.Backoff),
				event.WithWebhookLogger(logger),
			))
		}
	}
	return sinks, nil
}

// fileSink closes its file with the sink.
type fileSink struct {
	*event.JSONLines
	f *os.File
}

func (s *fileSink) Close() error { return s.f.Close() }

// preview prints every step as markdown.
func preview(w io.Writer, g *guide.Guide) error {
	r := guide.NewRenderer()
	fmt.Fprintf(w, "# %s\n\n", g.Title)
	if g.Description != "" {
		fmt.Fprintf(w, "%s\n\n", g.Description)
	}
	for i, st := range g.Steps {
		c := r.Render(st, i, g.Len(), g.Config)
		fmt.Fprintf(w, "## %d. %s\n\n", i+1, c.Title)
		if pattern := st.TargetPattern(); pattern != "" {
			fmt.Fprintf(w, "Route: `%s`\n\n", pattern)
		}
		if c.Text != "" {
			fmt.Fprintf(w, "%s\n\n", c.Text)
		}
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
