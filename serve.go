package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"artisanat/auth"
	"artisanat/cache"
	"artisanat/checkout"
	"artisanat/dashboard"
	"artisanat/handlers"
	"artisanat/invoice"
	"artisanat/mailer"
	"artisanat/notify"
	"artisanat/storage"
	"artisanat/storage/migrations"
	"artisanat/storage/postgres"
	"artisanat/worker"
)

const (
	shutdownTimeout = 15 * time.Second
	cachePrefix     = "artisanat:"
	cacheSweepSpec  = "@every 1m"
)

func newServeCmd(a *app) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the confirmation workers and the scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func (a *app) openCache(ctx context.Context) (cache.Cache, func(), error) {
	if a.cfg.RedisURL == "" {
		return cache.NewMemory(), func() {}, nil
	}
	r, err := cache.NewRedis(ctx, a.cfg.RedisURL, cachePrefix)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}

func (a *app) newMailer() mailer.Mailer {
	if !a.cfg.MailEnabled() {
		a.log.Warn("SMTP_HOST is empty, emails are only logged")
		return &mailer.Log{Logger: a.log}
	}
	return mailer.NewSMTP(a.cfg.SMTPHost, a.cfg.SMTPPort, a.cfg.SMTPUsername, a.cfg.SMTPPassword, a.cfg.MailFrom)
}

func (a *app) serve(ctx context.Context, migrate bool) error {
	cfg, log := a.cfg, a.log

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	if pg, ok := store.(*postgres.Store); ok && migrate {
		v, err := migrations.Up(pg.DB().DB)
		if err != nil {
			return err
		}
		log.Info("schema migrated", zap.Uint("version", v))
	}

	c, closeCache, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	m := a.newMailer()
	hub := notify.NewHub(log, cfg.Origins())
	defer hub.Close()
	notifier := notify.NewService(store, hub, c, log)

	confirmations := worker.NewConfirmations(store, m, worker.ConfirmationConfig{
		Company: invoice.Company{
			Name:    cfg.CompanyName,
			Address: cfg.CompanyAddress,
			Legal:   cfg.CompanyLegal,
			Support: cfg.SupportContact,
		},
		TaxRate: cfg.TaxRateDecimal(),
		SiteURL: cfg.SiteURL,
	}, log.Named("confirmations"), 0)

	proxies, err := handlers.NewProxies(cfg.Proxies())
	if err != nil {
		return err
	}
	limiter := handlers.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.Proxies = proxies

	deps := &handlers.Deps{
		Store:  store,
		Tokens: auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Mailer: m,
		Checkout: &checkout.Service{
			Store: store,
			Pricing: checkout.Pricing{
				TaxRate:          cfg.TaxRateDecimal(),
				ShippingFlat:     cfg.ShippingFlatDecimal(),
				FreeShippingOver: cfg.FreeShippingOverDecimal(),
			},
			DeliveryDays: cfg.DeliveryDays,
			Notifier:     notifier,
			Queue:        confirmations,
			Log:          log.Named("checkout"),
		},
		Notify:    notifier,
		Hub:       hub,
		Dashboard: dashboard.NewService(store, c, log.Named("dashboard")),
		Limiter:   limiter,
		Proxies:   proxies,
		Config:    cfg,
		Log:       log,
	}

	sched, err := a.scheduler(store, m, limiter, c)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return confirmations.Run(ctx, cfg.Workers) })
	g.Go(func() error { return sched.Run(ctx) })

	return g.Wait()
}

func (a *app) scheduler(store storage.Store, m mailer.Mailer, limiter *handlers.RateLimiter, c cache.Cache) (*worker.Scheduler, error) {
	log := a.log.Named("scheduler")
	s := worker.NewScheduler(log)
	if err := s.Add(worker.StockAlertSpec, "stock-alerts", worker.StockAlertSweep(store, m, a.cfg.SiteURL, log)); err != nil {
		return nil, err
	}
	if err := s.Add(worker.SessionPurgeSpec, "session-purge", worker.PurgeSessions(store, log)); err != nil {
		return nil, err
	}
	if err := s.Add(worker.LimiterSpec, "limiter-cleanup", worker.Cleanup(limiter)); err != nil {
		return nil, err
	}
	if mem, ok := c.(*cache.Memory); ok {
		sweep := func(context.Context) error {
			mem.Sweep()
			return nil
		}
		if err := s.Add(cacheSweepSpec, "cache-sweep", sweep); err != nil {
			return nil, err
		}
	}
	return s, nil
}
