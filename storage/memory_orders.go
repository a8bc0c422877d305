package storage

import (
	"context"
	"sort"
	"time"

	"artisanat/models"
)

func (s *Memory) PlaceOrder(_ context.Context, o models.Order, note *models.OrderNote) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, ok := s.Users[o.CustomerID]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	for _, existing := range s.Orders {
		if existing.OrderNumber == o.OrderNumber {
			return models.Order{}, ErrConflict
		}
	}

	// the same product may appear on several lines
	requested := map[int64]int{}
	var order []int64
	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		if _, ok := s.Products[*it.ProductID]; !ok {
			return models.Order{}, ErrNotFound
		}
		if _, seen := requested[*it.ProductID]; !seen {
			order = append(order, *it.ProductID)
		}
		requested[*it.ProductID] += it.Quantity
	}

	var shortages []Shortage
	for _, pid := range order {
		p := s.Products[pid]
		if p.Stock < requested[pid] {
			shortages = append(shortages, Shortage{ProductID: pid, Name: p.Name, Available: p.Stock, Requested: requested[pid]})
		}
	}
	if len(shortages) > 0 {
		return models.Order{}, &StockError{Shortages: shortages}
	}

	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	o.ID = s.id("orders")

	for _, pid := range order {
		p := s.Products[pid]
		p.Stock -= requested[pid]
		p.UpdatedAt = now
		s.Products[pid] = p
	}

	items := make([]models.OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		it.ID = s.id("order_items")
		it.OrderID = o.ID
		it.CreatedAt, it.UpdatedAt = o.CreatedAt, o.CreatedAt
		s.OrderItems[it.ID] = it
		items = append(items, it)
	}

	var notes []models.OrderNote
	if note != nil {
		n := *note
		n.ID = s.id("order_notes")
		n.OrderID = o.ID
		if n.CreatedAt.IsZero() {
			n.CreatedAt = o.CreatedAt
		}
		s.OrderNotes[n.ID] = n
		notes = append(notes, n)
	}

	stored := o
	stored.Items, stored.Notes = nil, nil
	s.Orders[o.ID] = stored

	customer.TotalOrders++
	customer.TotalSpent = customer.TotalSpent.Add(o.TotalAmount)
	last := o.CreatedAt
	customer.LastOrderDate = &last
	s.Users[customer.ID] = customer

	o.Items, o.Notes = items, notes
	return o, nil
}

// hydrate attaches items and notes. Callers hold at least the read lock.
func (s *Memory) hydrate(o models.Order, notes bool) models.Order {
	o.Items = []models.OrderItem{}
	for _, id := range sortedKeys(s.OrderItems) {
		if it := s.OrderItems[id]; it.OrderID == o.ID {
			o.Items = append(o.Items, it)
		}
	}
	if notes {
		o.Notes = []models.OrderNote{}
		for _, id := range sortedKeys(s.OrderNotes) {
			if n := s.OrderNotes[id]; n.OrderID == o.ID {
				o.Notes = append(o.Notes, n)
			}
		}
	}
	return o
}

func (s *Memory) GetOrder(_ context.Context, id int64) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.Orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	return s.hydrate(o, true), nil
}

func (s *Memory) GetOrderByNumber(_ context.Context, number string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.Orders {
		if o.OrderNumber == number {
			return s.hydrate(o, true), nil
		}
	}
	return models.Order{}, ErrNotFound
}

func (s *Memory) orderMatches(o models.Order, f OrderFilter) bool {
	if f.CustomerID != 0 && o.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.Since != nil && o.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && !o.CreatedAt.Before(*f.Until) {
		return false
	}
	if f.Search != "" {
		email := s.Users[o.CustomerID].Email
		if !containsFold(o.OrderNumber, f.Search) && !containsFold(email, f.Search) {
			return false
		}
	}
	return true
}

func (s *Memory) ListOrders(_ context.Context, f OrderFilter) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Order{}
	for _, o := range s.Orders {
		if s.orderMatches(o, f) {
			if f.WithItems {
				o = s.hydrate(o, false)
			}
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, 0), nil
}

func (s *Memory) ChangeOrderStatus(_ context.Context, id int64, next models.OrderStatus, at time.Time) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	if err := o.SetStatus(next, at); err != nil {
		return models.Order{}, err
	}
	if next == models.OrderCancelled {
		for _, it := range s.OrderItems {
			if it.OrderID != id || it.ProductID == nil {
				continue
			}
			if p, ok := s.Products[*it.ProductID]; ok {
				p.Stock += it.Quantity
				p.UpdatedAt = at
				s.Products[p.ID] = p
			}
		}
	}
	s.Orders[id] = o
	return s.hydrate(o, true), nil
}

func (s *Memory) ChangePaymentStatus(_ context.Context, id int64, next models.PaymentStatus, at time.Time) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	if err := o.SetPaymentStatus(next, at); err != nil {
		return models.Order{}, err
	}
	s.Orders[id] = o
	return s.hydrate(o, true), nil
}

func (s *Memory) SetTrackingNumber(_ context.Context, id int64, tracking string) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return models.Order{}, ErrNotFound
	}
	o.TrackingNumber = &tracking
	o.UpdatedAt = s.now()
	s.Orders[id] = o
	return s.hydrate(o, true), nil
}

func (s *Memory) AddOrderNote(_ context.Context, n models.OrderNote) (models.OrderNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Orders[n.OrderID]; !ok {
		return models.OrderNote{}, ErrNotFound
	}
	n.ID = s.id("order_notes")
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.OrderNotes[n.ID] = n
	return n, nil
}

func (s *Memory) MarkEmailSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[id]
	if !ok {
		return ErrNotFound
	}
	o.EmailSent = true
	s.Orders[id] = o
	return nil
}
