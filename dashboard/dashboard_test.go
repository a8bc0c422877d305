package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artisanat/cache"
	"artisanat/models"
	"artisanat/storage"
)

// Wednesday
var fixedNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func newService(store Store) *Service {
	s := NewService(store, cache.NewMemory(), zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestChange(t *testing.T) {
	d := decimal.NewFromInt
	assert.Equal(t, 100.0, Change(d(3), d(0)))
	assert.Equal(t, 0.0, Change(d(0), d(0)))
	assert.Equal(t, -50.0, Change(d(1), d(2)))
	assert.Equal(t, 33.3, Change(d(4), d(3)))
}

func TestStatsEmptyShop(t *testing.T) {
	st, err := newService(storage.NewMemory()).Stats(context.Background())
	require.NoError(t, err)

	assert.Zero(t, st.Totals.Orders)
	require.Len(t, st.DailySales, 7)
	assert.Equal(t, "Mer", st.DailySales[6].Day)
	assert.Equal(t, "Jeu", st.DailySales[0].Day)
	require.Len(t, st.CategorySales, 1)
	assert.Equal(t, "Pas de catégories", st.CategorySales[0].Name)
	require.Len(t, st.TopProducts, 1)
	assert.Equal(t, "Pas de données disponibles", st.TopProducts[0].Name)
	assert.Empty(t, st.RecentOrders)
}

func item(pid *int64, name, sku string, qty int, unit string) models.OrderItem {
	price := decimal.RequireFromString(unit)
	return models.OrderItem{
		ProductID: pid, ProductName: name, ProductSKU: sku, Quantity: qty,
		UnitPrice: price, TotalPrice: price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	client, err := store.CreateUser(ctx, models.User{Email: "fatou@example.fr", FirstName: "Fatou", LastName: "Sow", UserType: models.UserClient, DateJoined: fixedNow.AddDate(0, 0, -3)})
	require.NoError(t, err)
	pottery, err := store.CreateCategory(ctx, models.Category{Name: "Poterie", Color: "#aa5500"})
	require.NoError(t, err)
	_, err = store.CreateCategory(ctx, models.Category{Name: "Textile", Color: "#0055aa"})
	require.NoError(t, err)
	sku := "VASE-1"
	vase, err := store.CreateProduct(ctx, models.Product{CategoryID: pottery.ID, Name: "Vase en terre", SKU: &sku, Price: decimal.RequireFromString("20"), Stock: 10, Status: models.ProductActive})
	require.NoError(t, err)
	_, err = store.CreateProduct(ctx, models.Product{CategoryID: pottery.ID, Name: "Jarre", Price: decimal.RequireFromString("90"), Status: models.ProductActive})
	require.NoError(t, err)

	place := func(number string, at time.Time, ps models.PaymentStatus, total string, it models.OrderItem) {
		t.Helper()
		_, err := store.PlaceOrder(ctx, models.Order{
			OrderNumber: number, CustomerID: client.ID, Status: models.OrderPending, CreatedAt: at,
			TotalAmount: decimal.RequireFromString(total), PaymentStatus: ps, PaymentMethod: models.PayCard,
			Items: []models.OrderItem{it},
		}, nil)
		require.NoError(t, err)
	}
	pid := vase.ID
	place("CMD-1", fixedNow.AddDate(0, 0, -1), models.PaymentCompleted, "72", item(&pid, "Vase en terre", sku, 3, "20"))
	place("CMD-2", fixedNow.AddDate(0, 0, -10), models.PaymentCompleted, "25", item(&pid, "Vase en terre", sku, 1, "20"))
	place("CMD-3", fixedNow.Add(-2*time.Hour), models.PaymentPending, "30", item(nil, "Bracelet", "SKU-X", 3, "10"))

	svc := newService(store)
	st, err := svc.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, st.Totals.Orders)
	assert.True(t, decimal.RequireFromString("97").Equal(st.Totals.Revenue))
	assert.Equal(t, 1, st.Totals.NewCustomers)
	assert.Equal(t, 1, st.Totals.OutOfStock)

	assert.Equal(t, 100.0, st.Changes.Orders)
	assert.Equal(t, 188.0, st.Changes.Revenue)
	assert.Equal(t, 100.0, st.Changes.Customers)
	assert.Zero(t, st.Changes.Stock)

	assert.Equal(t, "Mar", st.DailySales[5].Day)
	assert.True(t, decimal.RequireFromString("72").Equal(st.DailySales[5].Value))
	assert.True(t, st.DailySales[6].Value.IsZero(), "pending payments are not revenue")

	require.Len(t, st.CategorySales, 2)
	assert.Equal(t, "Poterie", st.CategorySales[0].Name)
	assert.True(t, decimal.RequireFromString("80").Equal(st.CategorySales[0].Value))
	assert.True(t, st.CategorySales[1].Value.IsZero())

	require.Len(t, st.TopProducts, 2)
	assert.Equal(t, "Vase en terre", st.TopProducts[0].Name)
	assert.Equal(t, 4, st.TopProducts[0].Sales)
	assert.Equal(t, 100.0, st.TopProducts[0].Percentage)
	assert.Equal(t, 75.0, st.TopProducts[1].Percentage)

	require.Len(t, st.RecentOrders, 3)
	assert.Equal(t, "CMD-3", st.RecentOrders[0].OrderNumber)
	assert.Equal(t, "Fatou Sow", st.RecentOrders[0].CustomerName)
	assert.Equal(t, 1, st.RecentOrders[0].Products)
	assert.Equal(t, "2024-05-05", st.RecentOrders[2].Date)

	// served from cache until it expires
	place("CMD-4", fixedNow, models.PaymentCompleted, "10", item(nil, "Carte", "SKU-Y", 1, "10"))
	again, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, again.Totals.Orders)
}

func TestCategorySalesWithoutRevenue(t *testing.T) {
	cats := []models.Category{{ID: 1, Name: "Bijoux"}}
	out := categorySales(nil, cats, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "Pas de données de vente", out[0].Name)
	assert.True(t, decimal.NewFromInt(100).Equal(out[0].Value))
}

func TestDailySalesAcrossDSTChange(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// clocks go forward on 31 March 2024, so that day lasts 23 hours
	today := time.Date(2024, 4, 3, 0, 0, 0, 0, paris)
	orders := []models.Order{
		{PaymentStatus: models.PaymentCompleted, TotalAmount: decimal.NewFromInt(10), CreatedAt: time.Date(2024, 4, 1, 0, 30, 0, 0, paris)},
		{PaymentStatus: models.PaymentCompleted, TotalAmount: decimal.NewFromInt(5), CreatedAt: time.Date(2024, 4, 3, 9, 0, 0, 0, paris)},
	}

	sales := dailySales(orders, today)
	require.Len(t, sales, 7)
	// 28 Mar .. 3 Apr, Monday 1 April is index 4
	assert.Equal(t, "Lun", sales[4].Day)
	assert.True(t, sales[4].Value.Equal(decimal.NewFromInt(10)), sales[4].Value.String())
	assert.True(t, sales[3].Value.IsZero())
	assert.True(t, sales[6].Value.Equal(decimal.NewFromInt(5)))
}
