package checkout

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"artisanat/models"
)

var ErrEmptyCart = errors.New("cart is empty")

// CartItem is one line of the client-side cart. ProductID is nil for lines
// that do not reference a catalog product.
type CartItem struct {
	ProductID *int64          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	SKU       string          `json:"sku,omitempty"`
	Options   models.JSONMap  `json:"options,omitempty"`
}

const (
	unknownProductName = "Produit inconnu"
	maxQuantity        = 10000
)

// ParseCart reads a cart posted by the storefront. It accepts a bare JSON
// array, an object with an "items" array, and the older envelopes
// {"full_cart_json": "<array>"} and {"cart_items": ["<item>", ...]}.
// Entries that cannot be read are skipped.
func ParseCart(raw []byte) ([]CartItem, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrEmptyCart
	}
	root := gjson.ParseBytes(raw)

	var entries []gjson.Result
	switch {
	case root.IsArray():
		entries = root.Array()
	case root.IsObject():
		for _, key := range []string{"items", "full_cart_json", "cart_items"} {
			if v := unwrap(root.Get(key)); v.IsArray() && len(v.Array()) > 0 {
				entries = v.Array()
				break
			}
		}
	}

	items := make([]CartItem, 0, len(entries))
	for _, e := range entries {
		if it, ok := parseItem(unwrap(e)); ok {
			items = append(items, it)
		}
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	return items, nil
}

// unwrap decodes values that were posted as JSON encoded strings.
func unwrap(v gjson.Result) gjson.Result {
	if v.Type == gjson.String && gjson.Valid(v.Str) {
		return gjson.Parse(v.Str)
	}
	return v
}

func numberText(v gjson.Result) string {
	if v.Type == gjson.String {
		return strings.TrimSpace(v.Str)
	}
	return v.Raw
}

// wholeNumber accepts 2, "2", 2.0 and "2.0" as the positive integer 2.
func wholeNumber(v gjson.Result, limit int64) (int64, bool) {
	d, err := decimal.NewFromString(numberText(v))
	if err != nil || !d.IsInteger() || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(limit)) {
		return 0, false
	}
	return d.IntPart(), true
}

func parseItem(e gjson.Result) (CartItem, bool) {
	if !e.IsObject() {
		return CartItem{}, false
	}
	it := CartItem{
		Name:     strings.TrimSpace(e.Get("name").String()),
		Quantity: 1,
		SKU:      strings.TrimSpace(e.Get("sku").String()),
	}
	if it.Name == "" {
		it.Name = unknownProductName
	}

	if id := e.Get("id"); id.Exists() {
		if n, ok := wholeNumber(id, math.MaxInt64); ok {
			it.ProductID = &n
		}
	}

	if q := e.Get("quantity"); q.Exists() {
		n, ok := wholeNumber(q, maxQuantity)
		if !ok {
			return CartItem{}, false
		}
		it.Quantity = int(n)
	}

	if p := e.Get("price"); p.Exists() {
		price, err := decimal.NewFromString(numberText(p))
		if err != nil || price.IsNegative() {
			return CartItem{}, false
		}
		it.Price = price
	}

	if o := e.Get("options"); o.IsObject() {
		var opts models.JSONMap
		if err := json.Unmarshal([]byte(o.Raw), &opts); err == nil && len(opts) > 0 {
			it.Options = opts
		}
	}
	return it, true
}
