package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderStatusLabels = map[OrderStatus]string{
	OrderPending:    "En attente",
	OrderProcessing: "En cours",
	OrderShipped:    "Expédiée",
	OrderDelivered:  "Livrée",
	OrderCancelled:  "Annulée",
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

func (s OrderStatus) Label() string {
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// CanTransition reports whether an order in status s may move to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentStatusLabels = map[PaymentStatus]string{
	PaymentPending:   "En attente",
	PaymentCompleted: "Payée",
	PaymentFailed:    "Échouée",
	PaymentRefunded:  "Remboursée",
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatusLabels[s]
	return ok
}

func (s PaymentStatus) Label() string {
	if l, ok := paymentStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

type PaymentMethod string

const (
	PayCard     PaymentMethod = "card"
	PayPaypal   PaymentMethod = "paypal"
	PayTransfer PaymentMethod = "transfer"
	PayCash     PaymentMethod = "cash"
	PayDelivery PaymentMethod = "delivery"
)

var paymentMethodLabels = map[PaymentMethod]string{
	PayCard:     "Carte bancaire",
	PayPaypal:   "PayPal",
	PayTransfer: "Virement bancaire",
	PayCash:     "Espèces",
	PayDelivery: "Paiement à la livraison",
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethodLabels[m]
	return ok
}

func (m PaymentMethod) Label() string {
	if l, ok := paymentMethodLabels[m]; ok {
		return l
	}
	return string(m)
}

// JSONMap is a free-form JSON object stored in a jsonb column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("JSONMap: unsupported source type")
	}
	if len(raw) == 0 {
		*m = nil
		return nil
	}
	return json.Unmarshal(raw, m)
}

type Order struct {
	ID          int64       `json:"id" db:"id"`
	OrderNumber string      `json:"order_number" db:"order_number"`
	CustomerID  int64       `json:"customer_id" db:"customer_id"`
	Status      OrderStatus `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`

	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	TaxAmount    decimal.Decimal `json:"tax_amount" db:"tax_amount"`
	TotalAmount  decimal.Decimal `json:"total_amount" db:"total_amount"`

	PaymentStatus  PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentMethod  PaymentMethod `json:"payment_method" db:"payment_method"`
	PaymentDetails JSONMap       `json:"payment_details,omitempty" db:"payment_details"`
	PaymentDate    *time.Time    `json:"payment_date,omitempty" db:"payment_date"`

	ShippingAddressText string `json:"shipping_address_text" db:"shipping_address_text"`
	BillingAddressText  string `json:"billing_address_text" db:"billing_address_text"`

	IPAddress             *string    `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent             *string    `json:"user_agent,omitempty" db:"user_agent"`
	TrackingNumber        *string    `json:"tracking_number,omitempty" db:"tracking_number"`
	EstimatedDeliveryDate *time.Time `json:"estimated_delivery_date,omitempty" db:"estimated_delivery_date"`
	EmailSent             bool       `json:"email_sent" db:"email_sent"`

	Items []OrderItem `json:"items,omitempty" db:"-"`
	Notes []OrderNote `json:"notes,omitempty" db:"-"`
}

// SetStatus applies a status change, rejecting transitions the workflow
// does not allow.
func (o *Order) SetStatus(next OrderStatus, now time.Time) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if o.Status == next {
		return ErrSameStatus
	}
	if !o.Status.CanTransition(next) {
		return ErrForbiddenTransition
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}

func (o *Order) SetPaymentStatus(next PaymentStatus, now time.Time) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if o.PaymentStatus == next {
		return ErrSameStatus
	}
	o.PaymentStatus = next
	if next == PaymentCompleted && o.PaymentDate == nil {
		t := now
		o.PaymentDate = &t
	}
	o.UpdatedAt = now
	return nil
}

var (
	ErrInvalidStatus       = errors.New("invalid status")
	ErrSameStatus          = errors.New("status is already set to this value")
	ErrForbiddenTransition = errors.New("status transition not allowed")
)

type OrderItem struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	ProductID   *int64          `json:"product_id,omitempty" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	ProductSKU  string          `json:"product_sku" db:"product_sku"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price" db:"total_price"`
	Options     JSONMap         `json:"options,omitempty" db:"options"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

type OrderNote struct {
	ID            int64     `json:"id" db:"id"`
	OrderID       int64     `json:"order_id" db:"order_id"`
	UserID        *int64    `json:"user_id,omitempty" db:"user_id"`
	Note          string    `json:"note" db:"note"`
	AttachmentURL *string   `json:"attachment_url,omitempty" db:"attachment_url"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
