// Package checkout turns a posted cart into a placed order: it prices the
// lines from the catalog, computes the totals and hands the order to the
// store, which checks and decrements stock atomically.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"artisanat/apperr"
	"artisanat/metrics"
	"artisanat/models"
	"artisanat/storage"
)

// Pricing holds the shop-wide amounts used to compute order totals.
type Pricing struct {
	TaxRate          decimal.Decimal
	ShippingFlat     decimal.Decimal
	FreeShippingOver decimal.Decimal
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Shipping decimal.Decimal `json:"shipping_cost"`
	Total    decimal.Decimal `json:"total_amount"`
}

func (p Pricing) Totals(items []models.OrderItem) Totals {
	var t Totals
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	t.Tax = t.Subtotal.Mul(p.TaxRate).Round(2)
	if t.Subtotal.LessThan(p.FreeShippingOver) {
		t.Shipping = p.ShippingFlat
	}
	t.Total = t.Subtotal.Add(t.Tax).Add(t.Shipping)
	return t
}

// NewOrderNumber returns "CMD-" followed by 8 upper-case hex characters.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CMD-" + strings.ToUpper(hex[:8])
}

type Store interface {
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	GetAddress(ctx context.Context, userID, id int64) (models.Address, error)
	PlaceOrder(ctx context.Context, o models.Order, note *models.OrderNote) (models.Order, error)
}

// Notifier is told about placed orders and products that ran out of stock.
type Notifier interface {
	OrderPlaced(ctx context.Context, o models.Order) error
	OutOfStock(ctx context.Context, p models.Product) error
}

type Enqueuer interface {
	Enqueue(orderID int64) bool
}

type Service struct {
	Store        Store
	Pricing      Pricing
	DeliveryDays int
	Notifier     Notifier
	Queue        Enqueuer
	Log          *zap.Logger

	Now       func() time.Time
	NewNumber func() string
}

type Address struct {
	Street     string `json:"street_address"`
	Apartment  string `json:"apartment"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) Text() string {
	return models.FormatAddress(a.Street, a.Apartment, a.PostalCode, a.City, a.Country)
}

type Request struct {
	Customer             models.User
	PaymentMethod        models.PaymentMethod
	Items                []CartItem
	Address              Address
	AddressID            int64
	DeliveryInstructions string
	Phone                string
	Email                string
	IPAddress            string
	UserAgent            string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) number() string {
	if s.NewNumber != nil {
		return s.NewNumber()
	}
	return NewOrderNumber()
}

func (s *Service) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.NewNop()
}

// Place validates the request, prices it and stores the order. A stock
// shortage on any line rejects the whole order.
func (s *Service) Place(ctx context.Context, req Request) (models.Order, error) {
	if req.PaymentMethod == "" {
		return models.Order{}, apperr.Validation(map[string]string{"payment_method": "required"})
	}
	if !req.PaymentMethod.Valid() {
		return models.Order{}, apperr.Validation(map[string]string{"payment_method": "unknown payment method"})
	}

	addr := req.Address
	if req.AddressID != 0 {
		saved, err := s.Store.GetAddress(ctx, req.Customer.ID, req.AddressID)
		if err != nil {
			return models.Order{}, err
		}
		apt := ""
		if saved.Apartment != nil {
			apt = *saved.Apartment
		}
		addr = Address{Street: saved.StreetAddress, Apartment: apt, City: saved.City, PostalCode: saved.PostalCode, Country: saved.Country}
	}
	if fields := missingAddressFields(addr); len(fields) > 0 {
		return models.Order{}, apperr.Validation(fields)
	}
	if len(req.Items) == 0 {
		return models.Order{}, apperr.BadRequest(ErrEmptyCart.Error())
	}

	now := s.now()
	number := s.number()

	items := make([]models.OrderItem, 0, len(req.Items))
	for i, ci := range req.Items {
		it, err := s.line(ctx, number, i, ci)
		if err != nil {
			return models.Order{}, err
		}
		items = append(items, it)
	}
	totals := s.Pricing.Totals(items)

	text := addr.Text()
	eta := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, s.DeliveryDays)
	o := models.Order{
		OrderNumber:           number,
		CustomerID:            req.Customer.ID,
		Status:                models.OrderPending,
		CreatedAt:             now,
		Subtotal:              totals.Subtotal,
		ShippingCost:          totals.Shipping,
		TaxAmount:             totals.Tax,
		TotalAmount:           totals.Total,
		PaymentMethod:         req.PaymentMethod,
		PaymentStatus:         models.PaymentCompleted,
		PaymentDate:           &now,
		ShippingAddressText:   text,
		BillingAddressText:    text,
		IPAddress:             optional(req.IPAddress),
		UserAgent:             optional(req.UserAgent),
		EstimatedDeliveryDate: &eta,
		Items:                 items,
	}
	if req.PaymentMethod == models.PayDelivery {
		o.PaymentStatus = models.PaymentPending
		o.PaymentDate = nil
		if req.Phone != "" && req.Email != "" {
			o.PaymentDetails = models.JSONMap{"delivery_phone": req.Phone, "delivery_email": req.Email}
		}
	}

	var note *models.OrderNote
	if instr := strings.TrimSpace(req.DeliveryInstructions); instr != "" {
		uid := req.Customer.ID
		note = &models.OrderNote{UserID: &uid, Note: instr, CreatedAt: now}
	}

	placed, err := s.Store.PlaceOrder(ctx, o, note)
	if err != nil {
		return models.Order{}, fmt.Errorf("place order %s: %w", number, err)
	}
	metrics.OrderPlaced(string(placed.PaymentMethod))
	s.afterPlace(ctx, placed)
	return placed, nil
}

// line prices one cart entry. Catalog products win over client values.
func (s *Service) line(ctx context.Context, number string, index int, ci CartItem) (models.OrderItem, error) {
	sku := ci.SKU
	if sku == "" {
		sku = fmt.Sprintf("SKU-%s-%d", number, index)
	}
	it := models.OrderItem{
		ProductName: ci.Name,
		ProductSKU:  sku,
		Quantity:    ci.Quantity,
		UnitPrice:   ci.Price,
		Options:     ci.Options,
	}
	if ci.ProductID != nil {
		p, err := s.Store.GetProduct(ctx, *ci.ProductID)
		switch {
		case err == nil:
			pid := p.ID
			it.ProductID = &pid
			it.ProductName = p.Name
			it.ProductSKU = p.SKUOr(sku)
			it.UnitPrice = p.Price
		case errors.Is(err, storage.ErrNotFound):
			// sold as a catalog-less line
		default:
			return models.OrderItem{}, err
		}
	}
	it.TotalPrice = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	return it, nil
}

func (s *Service) afterPlace(ctx context.Context, o models.Order) {
	log := s.logger().With(zap.Int64("order_id", o.ID), zap.String("order_number", o.OrderNumber))

	if s.Notifier != nil {
		if err := s.Notifier.OrderPlaced(ctx, o); err != nil {
			log.Warn("order notification failed", zap.Error(err))
		}
		seen := map[int64]bool{}
		for _, it := range o.Items {
			if it.ProductID == nil || seen[*it.ProductID] {
				continue
			}
			seen[*it.ProductID] = true
			p, err := s.Store.GetProduct(ctx, *it.ProductID)
			if err != nil || p.Stock > 0 {
				continue
			}
			if err := s.Notifier.OutOfStock(ctx, p); err != nil {
				log.Warn("stock notification failed", zap.Int64("product_id", p.ID), zap.Error(err))
			}
		}
	}

	if s.Queue != nil && !s.Queue.Enqueue(o.ID) {
		log.Warn("confirmation queue full, email not scheduled")
	}
}

func missingAddressFields(a Address) map[string]string {
	fields := map[string]string{}
	for name, v := range map[string]string{
		"street_address": a.Street,
		"city":           a.City,
		"postal_code":    a.PostalCode,
		"country":        a.Country,
	} {
		if strings.TrimSpace(v) == "" {
			fields[name] = "required"
		}
	}
	return fields
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
