package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"artisanat/models"
	"artisanat/storage"
)

const categoryColumns = `id, name, description, icon, color, featured, image_url`

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	out := []models.Category{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+categoryColumns+` FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (models.Category, error) {
	var c models.Category
	if err := s.db.GetContext(ctx, &c, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id); err != nil {
		return models.Category{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO categories (name, description, icon, color, featured, image_url)
		VALUES (:name, :description, :icon, :color, :featured, :image_url)
		RETURNING id`, c)
	if err != nil {
		return models.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c models.Category) (models.Category, error) {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE categories SET name = :name, description = :description, icon = :icon,
			color = :color, featured = :featured, image_url = :image_url
		WHERE id = :id`, c)
	if err := affectedOne(res, err); err != nil {
		return models.Category{}, fmt.Errorf("update category %d: %w", c.ID, err)
	}
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if isFKViolation(err) {
		// products still reference the category
		return storage.ErrConflict
	}
	return affectedOne(res, err)
}

const productColumns = `id, category_id, name, description, price, stock, sku, barcode, weight,
	status, featured, created_at, updated_at`

func productWhere(f storage.ProductFilter) *where {
	w := &where{}
	if f.Search != "" {
		w.add("name ILIKE ?", like(f.Search))
	}
	if f.CategoryID != 0 {
		w.add("category_id = ?", f.CategoryID)
	}
	if f.MinPrice != nil {
		w.add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("price <= ?", *f.MaxPrice)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.InStockOnly {
		w.add("stock > 0")
	}
	if f.OutOfStock {
		w.add("stock = 0")
	}
	if f.Featured {
		w.add("featured")
	}
	if f.ExcludeID != 0 {
		w.add("id <> ?", f.ExcludeID)
	}
	return w
}

func (s *Store) ListProducts(ctx context.Context, f storage.ProductFilter) ([]models.Product, int, error) {
	w := productWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, sqlx.Rebind(sqlx.DOLLAR, `SELECT COUNT(*) FROM products`+w.String()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order := "id DESC"
	switch f.Sort {
	case storage.SortPriceAsc:
		order = "price ASC, id"
	case storage.SortPriceDesc:
		order = "price DESC, id"
	}
	query := `SELECT ` + productColumns + ` FROM products` + w.String() + ` ORDER BY ` + order
	args := append([]any{}, w.args...)
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	out := []models.Product{}
	if err := s.db.SelectContext(ctx, &out, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return out, total, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	var p models.Product
	if err := s.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id); err != nil {
		return models.Product{}, mapErr(err)
	}
	p.Media = []models.ProductMedia{}
	if err := s.db.SelectContext(ctx, &p.Media, `
		SELECT id, product_id, media_type, url FROM product_media WHERE product_id = $1 ORDER BY id`, id); err != nil {
		return models.Product{}, fmt.Errorf("product media: %w", err)
	}
	return p, nil
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO products (category_id, name, description, price, stock, sku, barcode, weight,
			status, featured, created_at, updated_at)
		VALUES (:category_id, :name, :description, :price, :stock, :sku, :barcode, :weight,
			:status, :featured, :created_at, :updated_at)
		RETURNING id`, p)
	if err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	p.ID = id
	p.Media = nil
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.UpdatedAt = s.now()
	err := s.db.QueryRowxContext(ctx, `
		UPDATE products SET category_id = $2, name = $3, description = $4, price = $5, stock = $6,
			sku = $7, barcode = $8, weight = $9, status = $10, featured = $11, updated_at = $12
		WHERE id = $1
		RETURNING created_at`,
		p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.Stock, p.SKU, p.Barcode, p.Weight,
		p.Status, p.Featured, p.UpdatedAt).Scan(&p.CreatedAt)
	if err != nil {
		return models.Product{}, fmt.Errorf("update product %d: %w", p.ID, mapErr(err))
	}
	p.Media = nil
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	return affectedOne(s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id))
}

func (s *Store) AddMedia(ctx context.Context, m models.ProductMedia) (models.ProductMedia, error) {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO product_media (product_id, media_type, url) VALUES ($1, $2, $3) RETURNING id`,
		m.ProductID, m.MediaType, m.URL).Scan(&m.ID)
	if err != nil {
		return models.ProductMedia{}, fmt.Errorf("add media: %w", mapErr(err))
	}
	return m, nil
}

func (s *Store) DeleteMedia(ctx context.Context, productID, mediaID int64) error {
	return affectedOne(s.db.ExecContext(ctx,
		`DELETE FROM product_media WHERE id = $1 AND product_id = $2`, mediaID, productID))
}

// --- stock alerts ------------------------------------------------------------

const alertSelect = `
	SELECT a.id, a.product_id, p.name AS product_name, a.email, a.created_at, a.notified, a.notified_at
	FROM stock_alerts a JOIN products p ON p.id = a.product_id`

func (s *Store) CreateStockAlert(ctx context.Context, a models.StockAlert) (models.StockAlert, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO stock_alerts (product_id, email, created_at)
		SELECT id, $2, $3 FROM products WHERE id = $1
		RETURNING id, (SELECT name FROM products WHERE id = $1)`,
		a.ProductID, a.Email, a.CreatedAt).Scan(&a.ID, &a.ProductName)
	if err != nil {
		return models.StockAlert{}, fmt.Errorf("create stock alert: %w", mapErr(err))
	}
	return a, nil
}

func (s *Store) DueStockAlerts(ctx context.Context) ([]models.StockAlert, error) {
	out := []models.StockAlert{}
	if err := s.db.SelectContext(ctx, &out, alertSelect+` WHERE NOT a.notified AND p.stock > 0 ORDER BY a.id`); err != nil {
		return nil, fmt.Errorf("due stock alerts: %w", err)
	}
	return out, nil
}

func (s *Store) MarkStockAlertNotified(ctx context.Context, id int64, at time.Time) error {
	return affectedOne(s.db.ExecContext(ctx,
		`UPDATE stock_alerts SET notified = TRUE, notified_at = $2 WHERE id = $1`, id, at))
}
