// Package worker runs the background side of the shop: the order
// confirmation queue and the periodic maintenance jobs.
package worker

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"artisanat/invoice"
	"artisanat/mailer"
	"artisanat/models"
)

type OrderStore interface {
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	MarkEmailSent(ctx context.Context, id int64) error
}

type ConfirmationConfig struct {
	Company invoice.Company
	TaxRate decimal.Decimal
	SiteURL string
}

// Confirmations is a buffered queue of placed order ids. Each queued order
// gets its confirmation email with the invoice attached.
type Confirmations struct {
	store  OrderStore
	mailer mailer.Mailer
	cfg    ConfirmationConfig
	log    *zap.Logger
	queue  chan int64
}

func NewConfirmations(store OrderStore, m mailer.Mailer, cfg ConfirmationConfig, log *zap.Logger, size int) *Confirmations {
	if size <= 0 {
		size = 100
	}
	return &Confirmations{
		store:  store,
		mailer: m,
		cfg:    cfg,
		log:    log,
		queue:  make(chan int64, size),
	}
}

// Enqueue schedules the confirmation of orderID. It never blocks and reports
// false when the queue is full.
func (c *Confirmations) Enqueue(orderID int64) bool {
	select {
	case c.queue <- orderID:
		return true
	default:
		return false
	}
}

// Run consumes the queue with n workers until ctx is cancelled.
func (c *Confirmations) Run(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		worker := i
		g.Go(func() error {
			c.loop(ctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (c *Confirmations) loop(ctx context.Context, worker int) {
	log := c.log.With(zap.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-c.queue:
			if err := c.Send(ctx, id); err != nil {
				log.Error("order confirmation failed", zap.Int64("order_id", id), zap.Error(err))
				continue
			}
			log.Info("order confirmation sent", zap.Int64("order_id", id))
		}
	}
}

// Send emails the confirmation of one order and flags it as sent. A failed
// delivery leaves EmailSent false.
func (c *Confirmations) Send(ctx context.Context, orderID int64) error {
	o, err := c.store.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if o.EmailSent {
		return nil
	}
	customer, err := c.store.GetUser(ctx, o.CustomerID)
	if err != nil {
		return fmt.Errorf("load customer %d: %w", o.CustomerID, err)
	}

	var pdf bytes.Buffer
	if err := invoice.Render(&pdf, o, customer, c.cfg.Company, c.cfg.TaxRate); err != nil {
		return err
	}

	msg, err := mailer.Compose(mailer.KindOrderConfirmation, []string{customer.Email}, mailer.OrderData{
		Customer: customer,
		Order:    o,
		Company:  c.cfg.Company.Name,
		SiteURL:  c.cfg.SiteURL,
	})
	if err != nil {
		return err
	}
	msg.Attachments = []mailer.Attachment{{Name: invoice.Filename(o), Data: pdf.Bytes()}}

	if err := mailer.Deliver(ctx, c.mailer, msg); err != nil {
		return err
	}
	if err := c.store.MarkEmailSent(ctx, o.ID); err != nil {
		return fmt.Errorf("mark email sent: %w", err)
	}
	return nil
}
