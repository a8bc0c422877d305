package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductDraft    ProductStatus = "draft"
	ProductArchived ProductStatus = "archived"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductDraft, ProductArchived:
		return true
	}
	return false
}

const DefaultCategoryColor = "#6b21a8"

type Category struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
	Icon        string  `json:"icon" db:"icon"`
	Color       string  `json:"color" db:"color"`
	Featured    bool    `json:"featured" db:"featured"`
	ImageURL    *string `json:"image_url,omitempty" db:"image_url"`
}

type Product struct {
	ID          int64            `json:"id" db:"id"`
	CategoryID  int64            `json:"category_id" db:"category_id"`
	Name        string           `json:"name" db:"name"`
	Description *string          `json:"description,omitempty" db:"description"`
	Price       decimal.Decimal  `json:"price" db:"price"`
	Stock       int              `json:"stock" db:"stock"`
	SKU         *string          `json:"sku,omitempty" db:"sku"`
	Barcode     *string          `json:"barcode,omitempty" db:"barcode"`
	Weight      *decimal.Decimal `json:"weight,omitempty" db:"weight"`
	Status      ProductStatus    `json:"status" db:"status"`
	Featured    bool             `json:"featured" db:"featured"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`

	Media []ProductMedia `json:"media,omitempty" db:"-"`
}

func (p Product) InStock() bool { return p.Stock > 0 }

func (p Product) SKUOr(fallback string) string {
	if p.SKU != nil && *p.SKU != "" {
		return *p.SKU
	}
	return fallback
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

type ProductMedia struct {
	ID        int64     `json:"id" db:"id"`
	ProductID int64     `json:"product_id" db:"product_id"`
	MediaType MediaType `json:"media_type" db:"media_type"`
	URL       string    `json:"url" db:"url"`
}
