package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"artisanat/invoice"
	"artisanat/mailer"
	"artisanat/models"
	"artisanat/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func category(t *testing.T, store *storage.Memory) int64 {
	t.Helper()
	c, err := store.CreateCategory(context.Background(), models.Category{Name: "Décoration", Color: models.DefaultCategoryColor})
	require.NoError(t, err)
	return c.ID
}

func placedOrder(t *testing.T, store *storage.Memory) models.Order {
	t.Helper()
	ctx := context.Background()
	cat := category(t, store)
	u, err := store.CreateUser(ctx, models.User{Email: "awa@example.fr", FirstName: "Awa", LastName: "Diop", UserType: models.UserClient, AccountStatus: true})
	require.NoError(t, err)
	p, err := store.CreateProduct(ctx, models.Product{CategoryID: cat, Name: "Calebasse", Price: decimal.RequireFromString("15"), Stock: 3, Status: models.ProductActive})
	require.NoError(t, err)

	pid := p.ID
	o, err := store.PlaceOrder(ctx, models.Order{
		OrderNumber:   "CMD-ABCDEF12",
		CustomerID:    u.ID,
		Status:        models.OrderPending,
		Subtotal:      decimal.RequireFromString("15"),
		TaxAmount:     decimal.RequireFromString("3"),
		ShippingCost:  decimal.RequireFromString("5"),
		TotalAmount:   decimal.RequireFromString("23"),
		PaymentMethod: models.PayCard,
		PaymentStatus: models.PaymentCompleted,
		Items: []models.OrderItem{{
			ProductID: &pid, ProductName: p.Name, Quantity: 1,
			UnitPrice: p.Price, TotalPrice: p.Price,
		}},
	}, nil)
	require.NoError(t, err)
	return o
}

func newConfirmations(store *storage.Memory, m mailer.Mailer, size int) *Confirmations {
	return NewConfirmations(store, m, ConfirmationConfig{
		Company: invoice.Company{Name: "Afro Artisanat", Support: "contact@example.fr"},
		TaxRate: decimal.RequireFromString("0.20"),
		SiteURL: "https://shop.example.fr",
	}, zap.NewNop(), size)
}

func TestSendAttachesInvoice(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	o := placedOrder(t, store)
	m := &mailer.Memory{}
	c := newConfirmations(store, m, 4)

	require.NoError(t, c.Send(ctx, o.ID))

	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"awa@example.fr"}, sent[0].To)
	assert.Equal(t, "Confirmation de votre commande #CMD-ABCDEF12", sent[0].Subject)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "facture_CMD-ABCDEF12.pdf", sent[0].Attachments[0].Name)
	assert.True(t, len(sent[0].Attachments[0].Data) > 4 && string(sent[0].Attachments[0].Data[:5]) == "%PDF-")

	stored, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailSent)

	// already confirmed orders are not emailed twice
	require.NoError(t, c.Send(ctx, o.ID))
	assert.Len(t, m.Sent(), 1)
}

func TestSendFailureKeepsFlag(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	o := placedOrder(t, store)
	c := newConfirmations(store, &mailer.Memory{Err: errors.New("smtp down")}, 4)

	assert.Error(t, c.Send(ctx, o.ID))
	stored, err := store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.False(t, stored.EmailSent)

	assert.ErrorIs(t, c.Send(ctx, 999), storage.ErrNotFound)
}

func TestEnqueueNeverBlocks(t *testing.T) {
	c := newConfirmations(storage.NewMemory(), &mailer.Memory{}, 1)
	assert.True(t, c.Enqueue(1))
	assert.False(t, c.Enqueue(2))
}

func TestRunConsumesQueue(t *testing.T) {
	store := storage.NewMemory()
	o := placedOrder(t, store)
	m := &mailer.Memory{}
	c := newConfirmations(store, m, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 2) }()

	require.True(t, c.Enqueue(o.ID))
	require.Eventually(t, func() bool { return len(m.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestStockAlertSweep(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	p, err := store.CreateProduct(ctx, models.Product{CategoryID: category(t, store), Name: "Boubou", Price: decimal.RequireFromString("40"), Status: models.ProductActive})
	require.NoError(t, err)
	_, err = store.CreateStockAlert(ctx, models.StockAlert{ProductID: p.ID, Email: "fan@example.fr"})
	require.NoError(t, err)

	m := &mailer.Memory{}
	sweep := StockAlertSweep(store, m, "https://shop.example.fr/", zap.NewNop())

	require.NoError(t, sweep(ctx))
	assert.Empty(t, m.Sent())

	p.Stock = 4
	_, err = store.UpdateProduct(ctx, p)
	require.NoError(t, err)

	require.NoError(t, sweep(ctx))
	sent := m.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Boubou est de nouveau disponible", sent[0].Subject)
	assert.Contains(t, sent[0].HTML, "https://shop.example.fr/products/")

	require.NoError(t, sweep(ctx))
	assert.Len(t, m.Sent(), 1)
}

func TestStockAlertSweepKeepsFailedAlerts(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	p, err := store.CreateProduct(ctx, models.Product{CategoryID: category(t, store), Name: "Pagne", Price: decimal.RequireFromString("12"), Stock: 2, Status: models.ProductActive})
	require.NoError(t, err)
	_, err = store.CreateStockAlert(ctx, models.StockAlert{ProductID: p.ID, Email: "fan@example.fr"})
	require.NoError(t, err)

	sweep := StockAlertSweep(store, &mailer.Memory{Err: errors.New("down")}, "", zap.NewNop())
	assert.Error(t, sweep(ctx))

	due, err := store.DueStockAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestPurgeSessions(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_, err := store.CreateSession(ctx, models.Session{UserID: 1, TokenHash: "old", ExpiresAt: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	_, err = store.CreateSession(ctx, models.Session{UserID: 1, TokenHash: "new", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, PurgeSessions(store, zap.NewNop())(ctx))
	_, err = store.GetSessionByHash(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetSessionByHash(ctx, "new")
	assert.NoError(t, err)
}

type countingCleaner struct{ calls int }

func (c *countingCleaner) Cleanup() int { c.calls++; return 0 }

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	cleaner := &countingCleaner{}
	require.NoError(t, s.Add(LimiterSpec, "limiter_cleanup", Cleanup(cleaner)))
	require.NoError(t, s.Add(SessionPurgeSpec, "session_purge", PurgeSessions(storage.NewMemory(), zap.NewNop())))
	assert.Error(t, s.Add("not a spec", "broken", Cleanup(cleaner)))
	assert.Equal(t, 2, s.Entries())

	require.NoError(t, Cleanup(cleaner)(context.Background()))
	assert.Equal(t, 1, cleaner.calls)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
