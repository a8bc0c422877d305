package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"artisanat/mailer"
	"artisanat/models"
)

const (
	StockAlertSpec   = "@every 10m"
	SessionPurgeSpec = "@hourly"
	LimiterSpec      = "@every 5m"
)

// JobFunc is one run of a scheduled job.
type JobFunc func(ctx context.Context) error

// Scheduler runs maintenance jobs on cron specs. A job that is still running
// when its next tick comes is skipped.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
	ctx  context.Context
}

func NewScheduler(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		log:  log,
		ctx:  context.Background(),
	}
}

// Add registers fn under name. Jobs receive the context given to Run.
func (s *Scheduler) Add(spec, name string, fn JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		log := s.log.With(zap.String("job", name))
		if err := fn(s.ctx); err != nil {
			log.Error("job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
			return
		}
		log.Debug("job done", zap.Duration("took", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled and running
// jobs have returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

type StockAlertStore interface {
	DueStockAlerts(ctx context.Context) ([]models.StockAlert, error)
	MarkStockAlertNotified(ctx context.Context, id int64, at time.Time) error
}

// StockAlertSweep emails every subscriber whose product is back in stock and
// marks the alert notified. Failed deliveries stay pending for the next run.
func StockAlertSweep(store StockAlertStore, m mailer.Mailer, siteURL string, log *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		due, err := store.DueStockAlerts(ctx)
		if err != nil {
			return fmt.Errorf("load stock alerts: %w", err)
		}
		var errs []error
		sent := 0
		for _, a := range due {
			msg, err := mailer.Compose(mailer.KindStockAlert, []string{a.Email}, mailer.StockAlertData{
				ProductName: a.ProductName,
				ProductURL:  fmt.Sprintf("%s/products/%d", strings.TrimRight(siteURL, "/"), a.ProductID),
			})
			if err != nil {
				return err
			}
			if err := mailer.Deliver(ctx, m, msg); err != nil {
				errs = append(errs, fmt.Errorf("alert %d: %w", a.ID, err))
				continue
			}
			if err := store.MarkStockAlertNotified(ctx, a.ID, time.Now()); err != nil {
				errs = append(errs, fmt.Errorf("alert %d: %w", a.ID, err))
				continue
			}
			sent++
		}
		if sent > 0 {
			log.Info("stock alerts sent", zap.Int("count", sent))
		}
		return errors.Join(errs...)
	}
}

type SessionStore interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

func PurgeSessions(store SessionStore, log *zap.Logger) JobFunc {
	return func(ctx context.Context) error {
		n, err := store.PurgeExpiredSessions(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		if n > 0 {
			log.Info("expired sessions purged", zap.Int64("count", n))
		}
		return nil
	}
}

// Cleaner drops idle per-client state, such as rate limiters.
type Cleaner interface {
	Cleanup() int
}

func Cleanup(c Cleaner) JobFunc {
	return func(context.Context) error {
		c.Cleanup()
		return nil
	}
}
