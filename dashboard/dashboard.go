// Package dashboard computes the back-office overview figures.
package dashboard

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"artisanat/cache"
	"artisanat/models"
	"artisanat/storage"
)

const (
	cacheKey = "dashboard:stats"
	cacheTTL = 60 * time.Second

	noCategories  = "Pas de catégories"
	noSales       = "Pas de données de vente"
	noTopProducts = "Pas de données disponibles"
)

var weekdays = [...]string{"Dim", "Lun", "Mar", "Mer", "Jeu", "Ven", "Sam"}

type Store interface {
	ListOrders(ctx context.Context, f storage.OrderFilter) ([]models.Order, error)
	ListUsers(ctx context.Context, f storage.UserFilter) ([]models.User, error)
	ListProducts(ctx context.Context, f storage.ProductFilter) ([]models.Product, int, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type Totals struct {
	Orders       int             `json:"total_orders"`
	Revenue      decimal.Decimal `json:"total_revenue"`
	NewCustomers int             `json:"new_customers"`
	OutOfStock   int             `json:"out_of_stock"`
}

type Changes struct {
	Orders    float64 `json:"orders_percentage"`
	Revenue   float64 `json:"revenue_percentage"`
	Customers float64 `json:"customers_percentage"`
	Stock     float64 `json:"stock_percentage"`
}

type DailySale struct {
	Day   string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

type CategorySale struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
	Color string          `json:"color"`
}

type TopProduct struct {
	Name       string  `json:"name"`
	SKU        string  `json:"sku"`
	Sales      int     `json:"sales"`
	Percentage float64 `json:"percentage"`
}

type RecentOrder struct {
	ID           int64              `json:"id"`
	OrderNumber  string             `json:"order_number"`
	CustomerName string             `json:"customer_name"`
	Products     int                `json:"products_count"`
	Total        decimal.Decimal    `json:"total"`
	Status       models.OrderStatus `json:"status"`
	Date         string             `json:"date"`
}

type Stats struct {
	Totals        Totals         `json:"stats"`
	Changes       Changes        `json:"changes"`
	DailySales    []DailySale    `json:"daily_sales"`
	CategorySales []CategorySale `json:"categories"`
	TopProducts   []TopProduct   `json:"top_products"`
	RecentOrders  []RecentOrder  `json:"recent_orders"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

type Service struct {
	store Store
	cache cache.Cache
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, c cache.Cache, log *zap.Logger) *Service {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{store: store, cache: c, log: log, now: time.Now}
}

// Stats returns the overview, recomputed at most once a minute.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if ok, err := cache.GetJSON(ctx, s.cache, cacheKey, &st); err == nil && ok {
		return st, nil
	}
	st, err := s.compute(ctx)
	if err != nil {
		return Stats{}, err
	}
	if err := cache.SetJSON(ctx, s.cache, cacheKey, st, cacheTTL); err != nil {
		s.log.Warn("cache dashboard stats", zap.Error(err))
	}
	return st, nil
}

func (s *Service) compute(ctx context.Context) (Stats, error) {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	lastWeek := now.AddDate(0, 0, -7)
	previousWeek := lastWeek.AddDate(0, 0, -7)
	lastMonth := now.AddDate(0, 0, -30)

	orders, err := s.store.ListOrders(ctx, storage.OrderFilter{WithItems: true})
	if err != nil {
		return Stats{}, err
	}
	clients, err := s.store.ListUsers(ctx, storage.UserFilter{Types: []models.UserType{models.UserClient}, JoinedSince: &lastMonth})
	if err != nil {
		return Stats{}, err
	}
	_, outOfStock, err := s.store.ListProducts(ctx, storage.ProductFilter{Status: models.ProductActive, OutOfStock: true, Limit: 1})
	if err != nil {
		return Stats{}, err
	}

	st := Stats{GeneratedAt: now}
	st.Totals = Totals{Orders: len(orders), NewCustomers: len(clients), OutOfStock: outOfStock}

	var curOrders, prevOrders int
	var curRevenue, prevRevenue decimal.Decimal
	for _, o := range orders {
		completed := o.PaymentStatus == models.PaymentCompleted
		if completed {
			st.Totals.Revenue = st.Totals.Revenue.Add(o.TotalAmount)
		}
		switch {
		case !o.CreatedAt.Before(lastWeek):
			curOrders++
			if completed {
				curRevenue = curRevenue.Add(o.TotalAmount)
			}
		case !o.CreatedAt.Before(previousWeek):
			prevOrders++
			if completed {
				prevRevenue = prevRevenue.Add(o.TotalAmount)
			}
		}
	}
	var curClients, prevClients int
	for _, u := range clients {
		switch {
		case !u.DateJoined.Before(lastWeek):
			curClients++
		case !u.DateJoined.Before(previousWeek):
			prevClients++
		}
	}
	st.Changes = Changes{
		Orders:    Change(decimal.NewFromInt(int64(curOrders)), decimal.NewFromInt(int64(prevOrders))),
		Revenue:   Change(curRevenue, prevRevenue),
		Customers: Change(decimal.NewFromInt(int64(curClients)), decimal.NewFromInt(int64(prevClients))),
	}

	st.DailySales = dailySales(orders, today)

	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return Stats{}, err
	}
	products, _, err := s.store.ListProducts(ctx, storage.ProductFilter{})
	if err != nil {
		return Stats{}, err
	}
	st.CategorySales = categorySales(orders, categories, products)
	st.TopProducts = topProducts(orders)

	names, err := s.customerNames(ctx, orders)
	if err != nil {
		return Stats{}, err
	}
	for i, o := range orders {
		if i == 10 {
			break
		}
		st.RecentOrders = append(st.RecentOrders, RecentOrder{
			ID:           o.ID,
			OrderNumber:  o.OrderNumber,
			CustomerName: names[o.CustomerID],
			Products:     len(o.Items),
			Total:        o.TotalAmount,
			Status:       o.Status,
			Date:         o.CreatedAt.Format("2006-01-02"),
		})
	}
	return st, nil
}

// Change is the period-over-period percentage, rounded to one decimal. A
// previous value of zero gives 100 when the current one is positive.
func Change(cur, prev decimal.Decimal) float64 {
	if prev.IsZero() {
		if cur.IsPositive() {
			return 100
		}
		return 0
	}
	f, _ := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return f
}

func dailySales(orders []models.Order, today time.Time) []DailySale {
	out := make([]DailySale, 7)
	for i := range out {
		day := today.AddDate(0, 0, i-6)
		out[i].Day = weekdays[day.Weekday()]
		out[i].Value = decimal.Zero
	}
	start := today.AddDate(0, 0, -6)
	for _, o := range orders {
		if o.PaymentStatus != models.PaymentCompleted || o.CreatedAt.Before(start) {
			continue
		}
		idx := calendarDays(start, o.CreatedAt.In(today.Location()))
		if idx >= 0 && idx < len(out) {
			out[idx].Value = out[idx].Value.Add(o.TotalAmount)
		}
	}
	return out
}

// calendarDays counts the date changes from a to b, ignoring clock time and
// DST shifts in their location.
func calendarDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func categorySales(orders []models.Order, categories []models.Category, products []models.Product) []CategorySale {
	if len(categories) == 0 {
		return []CategorySale{{Name: noCategories, Value: decimal.NewFromInt(100), Color: models.DefaultCategoryColor}}
	}
	skuCategory := map[string]int64{}
	for _, p := range products {
		if p.SKU != nil && *p.SKU != "" {
			skuCategory[*p.SKU] = p.CategoryID
		}
	}
	totals := map[int64]decimal.Decimal{}
	for _, o := range orders {
		if o.PaymentStatus != models.PaymentCompleted {
			continue
		}
		for _, it := range o.Items {
			if cid, ok := skuCategory[it.ProductSKU]; ok {
				totals[cid] = totals[cid].Add(it.TotalPrice)
			}
		}
	}

	out := make([]CategorySale, 0, len(categories))
	hasSales := false
	for _, c := range categories {
		v := totals[c.ID]
		if !v.IsZero() {
			hasSales = true
		}
		out = append(out, CategorySale{Name: c.Name, Value: v, Color: c.Color})
	}
	if !hasSales {
		return []CategorySale{{Name: noSales, Value: decimal.NewFromInt(100), Color: models.DefaultCategoryColor}}
	}
	return out
}

func topProducts(orders []models.Order) []TopProduct {
	type key struct{ name, sku string }
	sold := map[key]int{}
	for _, o := range orders {
		for _, it := range o.Items {
			sold[key{it.ProductName, it.ProductSKU}] += it.Quantity
		}
	}
	out := make([]TopProduct, 0, len(sold))
	for k, n := range sold {
		out = append(out, TopProduct{Name: k.name, SKU: k.sku, Sales: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sales != out[j].Sales {
			return out[i].Sales > out[j].Sales
		}
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	if len(out) > 5 {
		out = out[:5]
	}
	if len(out) == 0 || out[0].Sales == 0 {
		return []TopProduct{{Name: noTopProducts}}
	}
	best := float64(out[0].Sales)
	for i := range out {
		out[i].Percentage = float64(out[i].Sales) / best * 100
	}
	return out
}

func (s *Service) customerNames(ctx context.Context, orders []models.Order) (map[int64]string, error) {
	users, err := s.store.ListUsers(ctx, storage.UserFilter{})
	if err != nil {
		return nil, err
	}
	wanted := map[int64]bool{}
	for i, o := range orders {
		if i == 10 {
			break
		}
		wanted[o.CustomerID] = true
	}
	names := make(map[int64]string, len(wanted))
	for _, u := range users {
		if wanted[u.ID] {
			names[u.ID] = strings.TrimSpace(u.FullName())
		}
	}
	return names, nil
}
