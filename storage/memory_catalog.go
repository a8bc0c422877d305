package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"artisanat/models"
)

func (s *Memory) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Category, 0, len(s.Categories))
	for _, id := range sortedKeys(s.Categories) {
		out = append(out, s.Categories[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) GetCategory(_ context.Context, id int64) (models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.Categories[id]
	if !ok {
		return models.Category{}, ErrNotFound
	}
	return c, nil
}

func (s *Memory) categoryNameTaken(name string, except int64) bool {
	for id, c := range s.Categories {
		if id != except && strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}

func (s *Memory) CreateCategory(_ context.Context, c models.Category) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.categoryNameTaken(c.Name, 0) {
		return models.Category{}, ErrConflict
	}
	c.ID = s.id("categories")
	s.Categories[c.ID] = c
	return c, nil
}

func (s *Memory) UpdateCategory(_ context.Context, c models.Category) (models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Categories[c.ID]; !ok {
		return models.Category{}, ErrNotFound
	}
	if s.categoryNameTaken(c.Name, c.ID) {
		return models.Category{}, ErrConflict
	}
	s.Categories[c.ID] = c
	return c, nil
}

func (s *Memory) DeleteCategory(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Categories[id]; !ok {
		return ErrNotFound
	}
	for _, p := range s.Products {
		if p.CategoryID == id {
			return ErrConflict
		}
	}
	delete(s.Categories, id)
	return nil
}

func productMatches(p models.Product, f ProductFilter) bool {
	if f.Search != "" && !containsFold(p.Name, f.Search) {
		return false
	}
	if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
		return false
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.InStockOnly && p.Stock <= 0 {
		return false
	}
	if f.OutOfStock && p.Stock > 0 {
		return false
	}
	if f.Featured && !p.Featured {
		return false
	}
	if f.ExcludeID != 0 && p.ID == f.ExcludeID {
		return false
	}
	return true
}

func (s *Memory) ListProducts(_ context.Context, f ProductFilter) ([]models.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Product{}
	for _, id := range sortedKeys(s.Products) {
		if p := s.Products[id]; productMatches(p, f) {
			out = append(out, p)
		}
	}

	switch f.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	}

	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (s *Memory) GetProduct(_ context.Context, id int64) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.Products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	p.Media = []models.ProductMedia{}
	for _, mid := range sortedKeys(s.Media) {
		if m := s.Media[mid]; m.ProductID == id {
			p.Media = append(p.Media, m)
		}
	}
	return p, nil
}

func (s *Memory) productUnique(p models.Product) bool {
	for id, other := range s.Products {
		if id == p.ID {
			continue
		}
		if strings.EqualFold(other.Name, p.Name) {
			return false
		}
		if p.SKU != nil && other.SKU != nil && *p.SKU == *other.SKU {
			return false
		}
		if p.Barcode != nil && other.Barcode != nil && *p.Barcode == *other.Barcode {
			return false
		}
	}
	return true
}

func (s *Memory) CreateProduct(_ context.Context, p models.Product) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Categories[p.CategoryID]; !ok {
		return models.Product{}, ErrNotFound
	}
	p.ID = 0
	if !s.productUnique(p) {
		return models.Product{}, ErrConflict
	}
	p.ID = s.id("products")
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Media = nil
	s.Products[p.ID] = p
	return p, nil
}

func (s *Memory) UpdateProduct(_ context.Context, p models.Product) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.Products[p.ID]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	if _, ok := s.Categories[p.CategoryID]; !ok {
		return models.Product{}, ErrNotFound
	}
	if !s.productUnique(p) {
		return models.Product{}, ErrConflict
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now()
	p.Media = nil
	s.Products[p.ID] = p
	return p, nil
}

func (s *Memory) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Products[id]; !ok {
		return ErrNotFound
	}
	delete(s.Products, id)
	for mid, m := range s.Media {
		if m.ProductID == id {
			delete(s.Media, mid)
		}
	}
	for aid, a := range s.Alerts {
		if a.ProductID == id {
			delete(s.Alerts, aid)
		}
	}
	// order history keeps the line, detached from the catalog
	for iid, it := range s.OrderItems {
		if it.ProductID != nil && *it.ProductID == id {
			it.ProductID = nil
			s.OrderItems[iid] = it
		}
	}
	return nil
}

func (s *Memory) AddMedia(_ context.Context, m models.ProductMedia) (models.ProductMedia, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Products[m.ProductID]; !ok {
		return models.ProductMedia{}, ErrNotFound
	}
	m.ID = s.id("media")
	s.Media[m.ID] = m
	return m, nil
}

func (s *Memory) DeleteMedia(_ context.Context, productID, mediaID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.Media[mediaID]
	if !ok || m.ProductID != productID {
		return ErrNotFound
	}
	delete(s.Media, mediaID)
	return nil
}

// --- stock alerts ------------------------------------------------------------

func (s *Memory) CreateStockAlert(_ context.Context, a models.StockAlert) (models.StockAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Products[a.ProductID]
	if !ok {
		return models.StockAlert{}, ErrNotFound
	}
	for _, other := range s.Alerts {
		if other.ProductID == a.ProductID && strings.EqualFold(other.Email, a.Email) {
			return models.StockAlert{}, ErrConflict
		}
	}
	a.ID = s.id("alerts")
	a.ProductName = p.Name
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.Alerts[a.ID] = a
	return a, nil
}

func (s *Memory) DueStockAlerts(_ context.Context) ([]models.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.StockAlert{}
	for _, id := range sortedKeys(s.Alerts) {
		a := s.Alerts[id]
		if a.Notified {
			continue
		}
		if p, ok := s.Products[a.ProductID]; ok && p.Stock > 0 {
			a.ProductName = p.Name
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Memory) MarkStockAlertNotified(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.Alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.Notified = true
	a.NotifiedAt = &at
	s.Alerts[id] = a
	return nil
}
