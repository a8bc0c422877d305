package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"artisanat/apperr"
	"artisanat/models"
	"artisanat/storage"
)

const (
	productsPerPage      = 12
	adminProductsPerPage = 20
	featuredProducts     = 9
	similarProducts      = 4
)

type ProductHandler struct {
	*Deps
}

type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description"`
	Icon        string  `json:"icon" validate:"max=50"`
	Color       string  `json:"color" validate:"omitempty,max=20"`
	Featured    bool    `json:"featured"`
	ImageURL    *string `json:"image_url"`
}

func (req CategoryRequest) apply(c models.Category) models.Category {
	c.Name = strings.TrimSpace(req.Name)
	c.Description = optional(req.Description)
	c.Icon = req.Icon
	c.Color = req.Color
	if c.Color == "" {
		c.Color = models.DefaultCategoryColor
	}
	c.Featured = req.Featured
	c.ImageURL = req.ImageURL
	return c
}

type ProductRequest struct {
	CategoryID  int64            `json:"category_id" validate:"required"`
	Name        string           `json:"name" validate:"required,max=200"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int             `json:"stock" validate:"required,gte=0"`
	SKU         string           `json:"sku" validate:"max=50"`
	Barcode     string           `json:"barcode" validate:"max=50"`
	Weight      *decimal.Decimal `json:"weight"`
	Status      string           `json:"status" validate:"omitempty,oneof=active draft archived"`
	Featured    bool             `json:"featured"`
}

func (req ProductRequest) apply(p models.Product) (models.Product, error) {
	if req.Price.IsNegative() {
		return p, apperr.Validation(map[string]string{"price": "must be greater than or equal to 0"})
	}
	p.CategoryID = req.CategoryID
	p.Name = strings.TrimSpace(req.Name)
	p.Description = optional(req.Description)
	p.Price = *req.Price
	p.Stock = *req.Stock
	p.SKU = optional(req.SKU)
	p.Barcode = optional(req.Barcode)
	p.Weight = req.Weight
	p.Status = models.ProductStatus(req.Status)
	if p.Status == "" {
		p.Status = models.ProductActive
	}
	p.Featured = req.Featured
	return p, nil
}

type MediaRequest struct {
	MediaType string `json:"media_type" validate:"required,oneof=image video"`
	URL       string `json:"url" validate:"required,max=500"`
}

func parsePrice(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

// listPage fetches one page of products. A page past the end falls back to
// the first page.
func (h *ProductHandler) listPage(r *http.Request, f storage.ProductFilter, perPage int) ([]models.Product, pageInfo, error) {
	page, offset := pageParam(r, perPage)
	f.Limit, f.Offset = perPage, offset
	products, total, err := h.Store.ListProducts(r.Context(), f)
	if err != nil {
		return nil, pageInfo{}, err
	}
	if page > 1 && f.Offset >= total {
		page, f.Offset = 1, 0
		if products, total, err = h.Store.ListProducts(r.Context(), f); err != nil {
			return nil, pageInfo{}, err
		}
	}
	return products, newPageInfo(page, perPage, total), nil
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortBy := q.Get("sort")
	switch sortBy {
	case storage.SortPriceAsc, storage.SortPriceDesc:
	default:
		sortBy = storage.SortNewest
	}
	f := storage.ProductFilter{
		Search:      strings.TrimSpace(q.Get("search")),
		CategoryID:  parseID(q.Get("category")),
		MinPrice:    parsePrice(q.Get("min_price")),
		MaxPrice:    parsePrice(q.Get("max_price")),
		Status:      models.ProductActive,
		InStockOnly: true,
		Sort:        sortBy,
	}
	products, info, err := h.listPage(r, f, productsPerPage)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products":   products,
		"categories": categories,
		"sort":       sortBy,
		"page":       info,
	})
}

func (h *ProductHandler) Home(w http.ResponseWriter, r *http.Request) {
	featured, _, err := h.Store.ListProducts(r.Context(), storage.ProductFilter{
		Status:   models.ProductActive,
		Featured: true,
		Limit:    featuredProducts,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"featured_products": featured,
		"categories":        categories,
	})
}

// publicProduct loads an active product or answers 404.
func (h *ProductHandler) publicProduct(r *http.Request) (models.Product, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return models.Product{}, err
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		return models.Product{}, err
	}
	if p.Status != models.ProductActive {
		return models.Product{}, apperr.NotFound("product not found")
	}
	return p, nil
}

func (h *ProductHandler) Detail(w http.ResponseWriter, r *http.Request) {
	p, err := h.publicProduct(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !p.InStock() {
		h.writeError(w, r, apperr.Conflict("out of stock"))
		return
	}
	similar, _, err := h.Store.ListProducts(r.Context(), storage.ProductFilter{
		CategoryID:  p.CategoryID,
		Status:      models.ProductActive,
		InStockOnly: true,
		ExcludeID:   p.ID,
		Limit:       similarProducts,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product":          p,
		"similar_products": similar,
	})
}

func (h *ProductHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"product_id": p.ID,
		"stock":      p.Stock,
		"in_stock":   p.InStock(),
	})
}

func (h *ProductHandler) SubscribeAlert(w http.ResponseWriter, r *http.Request) {
	p, err := h.publicProduct(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Store.CreateStockAlert(r.Context(), models.StockAlert{
		ProductID: p.ID,
		Email:     normalizeEmail(req.Email),
		CreatedAt: h.now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			err = apperr.Conflict("you are already subscribed to this product")
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"alert":   a,
		"message": "you will be notified when the product is back in stock",
	})
}

func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Store.CreateCategory(r.Context(), req.apply(models.Category{}))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *ProductHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	existing, err := h.Store.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req CategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Store.UpdateCategory(r.Context(), req.apply(existing))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ProductHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteCategory(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			err = apperr.Conflict("category still has products")
		}
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.ProductStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, r, apperr.Validation(map[string]string{"status": "unknown product status"}))
		return
	}
	products, info, err := h.listPage(r, storage.ProductFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		CategoryID: parseID(q.Get("category")),
		Status:     status,
	}, adminProductsPerPage)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products, "page": info})
}

func (h *ProductHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := req.apply(models.Product{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Store.GetCategory(r.Context(), p.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.Validation(map[string]string{"category_id": "unknown category"})
		}
		h.writeError(w, r, err)
		return
	}
	created, err := h.Store.CreateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	existing, err := h.Store.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ProductRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := req.apply(existing)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.Store.GetCategory(r.Context(), p.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.Validation(map[string]string{"category_id": "unknown category"})
		}
		h.writeError(w, r, err)
		return
	}
	updated, err := h.Store.UpdateProduct(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) AddMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req MediaRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	m, err := h.Store.AddMedia(r.Context(), models.ProductMedia{
		ProductID: id,
		MediaType: models.MediaType(req.MediaType),
		URL:       strings.TrimSpace(req.URL),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *ProductHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	mediaID, err := pathID(r, "media")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteMedia(r.Context(), id, mediaID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
