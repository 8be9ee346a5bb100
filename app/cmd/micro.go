package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/wahook/pkg/backup"
	"github.com/wahook/pkg/cache"
	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/database"
	"github.com/wahook/pkg/domains/events"
	"github.com/wahook/pkg/domains/maintenance"
	"github.com/wahook/pkg/domains/status"
	"github.com/wahook/pkg/domains/webhook"
	"github.com/wahook/pkg/domains/whatsapp"
	"github.com/wahook/pkg/hub"
	"github.com/wahook/pkg/metrics"
	"github.com/wahook/pkg/monitor"
	"github.com/wahook/pkg/server"
	"github.com/wahook/pkg/tunnel"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// store bundles the persistence layer shared by every command.
type store struct {
	db     *gorm.DB
	repo   events.Repository
	cache  cache.Cache
	events events.Service
}

func openStore(cfg *config.Config, log zerolog.Logger) (*store, error) {
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	repo := events.NewRepo(db, cfg.Database)
	c := cache.New(cfg.Cache, log)
	return &store{
		db:     db,
		repo:   repo,
		cache:  c,
		events: events.NewService(repo, c, log),
	}, nil
}

func (s *store) Close() {
	s.cache.Close()
	database.Close(s.db)
}

func newMaintenance(ctx context.Context, cfg *config.Config, st *store, log zerolog.Logger) (maintenance.Service, error) {
	var uploader backup.Uploader
	if cfg.S3.Enabled {
		client, err := backup.NewS3Client(ctx, cfg.S3, log)
		if err != nil {
			return nil, err
		}
		uploader = client
	}
	return maintenance.NewService(st.repo, st.cache, uploader, cfg.Database.BackupDir, cfg.Retention, log), nil
}

// StartApp runs the full ingestion flow until ctx is cancelled. Shutdown
// happens in a fixed order: the monitor exits, the tunnel stops, then the
// HTTP listener closes.
func StartApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, out io.Writer) error {
	port, err := strconv.Atoi(cfg.App.Port)
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", cfg.App.Port, err)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	requests := capture.NewLog(cfg.Webhook.CaptureLimit)
	outcomes := hub.New(log)
	ingest := webhook.NewService(st.events, metrics.NewWebhook(registry), log)

	var wa whatsapp.Service
	if cfg.WhatsApp.Enabled {
		wa = whatsapp.NewService(cfg.WhatsApp, log)
		defer wa.Close()
	}

	var sup tunnel.Supervisor
	if !cfg.Tunnel.Disabled {
		sup = tunnel.NewSupervisor(cfg.Tunnel, log)
	}

	maint, err := newMaintenance(ctx, cfg, st, log)
	if err != nil {
		return err
	}
	if err := maint.StartRetention(ctx); err != nil {
		return err
	}
	defer maint.StopRetention()

	router := server.NewRouter(server.Deps{
		Config:   cfg,
		Log:      log,
		Registry: registry,
		Webhook:  ingest,
		Events:   st.events,
		Status:   status.NewService(sup, requests, st.events, wa, port, cfg.Webhook.Path),
		WhatsApp: wa,
		Requests: requests,
		Hub:      outcomes,
	})
	srv := server.New(cfg.App, router, log)
	serveErr, err := srv.Listen()
	if err != nil {
		return err
	}
	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}

	local := fmt.Sprintf("http://localhost:%d%s", port, cfg.Webhook.Path)
	fmt.Fprintf(out, "%s %s\n", labelStyle.Render("local webhook:"), valueStyle.Render(local))

	if sup != nil {
		url, err := sup.Start(ctx, port)
		if err != nil {
			var se *tunnel.StartError
			if errors.As(err, &se) {
				fmt.Fprintln(out, warnStyle.Render(se.Guidance()))
			}
			shutdown()
			return err
		}
		public := strings.TrimRight(url, "/") + cfg.Webhook.Path
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render("public webhook:"), valueStyle.Render(public))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case err, ok := <-serveErr:
			if ok && err != nil {
				log.Error().Err(err).Msg("http server stopped")
			}
			cancel()
		case <-runCtx.Done():
		}
	}()

	var stopper monitor.Stopper
	if sup != nil {
		stopper = sup
	}
	if !cfg.Monitor.Disabled {
		m := monitor.New(requests, st.events, stopper, cfg.Monitor.Interval, out, log)
		if err := m.Run(runCtx); err != nil {
			log.Error().Err(err).Msg("monitor exited with error")
		}
	} else {
		<-runCtx.Done()
	}

	// The monitor already stopped the tunnel; Stop is idempotent.
	if sup != nil {
		if err := sup.Stop(); err != nil {
			log.Error().Err(err).Msg("tunnel stop failed")
		}
	}
	shutdown()
	log.Info().Msg("shutdown complete")
	return nil
}
