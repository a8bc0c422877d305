package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"artisanat/models"
	"artisanat/storage"
)

const orderColumns = `id, order_number, customer_id, status, created_at, updated_at, subtotal,
	shipping_cost, tax_amount, total_amount, payment_status, payment_method, payment_details,
	payment_date, shipping_address_text, billing_address_text, ip_address, user_agent,
	tracking_number, estimated_delivery_date, email_sent`

const itemColumns = `id, order_id, product_id, product_name, product_sku, quantity, unit_price,
	total_price, options, created_at, updated_at`

type stockRow struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Stock int    `db:"stock"`
}

func (s *Store) PlaceOrder(ctx context.Context, o models.Order, note *models.OrderNote) (models.Order, error) {
	requested := map[int64]int{}
	var firstSeen []int64
	for _, it := range o.Items {
		if it.ProductID == nil {
			continue
		}
		if _, seen := requested[*it.ProductID]; !seen {
			firstSeen = append(firstSeen, *it.ProductID)
		}
		requested[*it.ProductID] += it.Quantity
	}

	now := s.now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if len(firstSeen) > 0 {
			ids := append([]int64(nil), firstSeen...)
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

			var rows []stockRow
			if err := tx.SelectContext(ctx, &rows, `
				SELECT id, name, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
				pq.Array(ids)); err != nil {
				return fmt.Errorf("lock products: %w", err)
			}
			locked := make(map[int64]stockRow, len(rows))
			for _, r := range rows {
				locked[r.ID] = r
			}

			var shortages []storage.Shortage
			for _, pid := range firstSeen {
				r, ok := locked[pid]
				if !ok {
					return storage.ErrNotFound
				}
				if r.Stock < requested[pid] {
					shortages = append(shortages, storage.Shortage{ProductID: pid, Name: r.Name, Available: r.Stock, Requested: requested[pid]})
				}
			}
			if len(shortages) > 0 {
				return &storage.StockError{Shortages: shortages}
			}

			for _, pid := range ids {
				if _, err := tx.ExecContext(ctx, `
					UPDATE products SET stock = stock - $1, updated_at = $2 WHERE id = $3`,
					requested[pid], now, pid); err != nil {
					return mapErr(err)
				}
			}
		}

		id, err := insertReturningID(ctx, tx, `
			INSERT INTO orders (order_number, customer_id, status, created_at, updated_at, subtotal,
				shipping_cost, tax_amount, total_amount, payment_status, payment_method, payment_details,
				payment_date, shipping_address_text, billing_address_text, ip_address, user_agent,
				tracking_number, estimated_delivery_date, email_sent)
			VALUES (:order_number, :customer_id, :status, :created_at, :updated_at, :subtotal,
				:shipping_cost, :tax_amount, :total_amount, :payment_status, :payment_method, :payment_details,
				:payment_date, :shipping_address_text, :billing_address_text, :ip_address, :user_agent,
				:tracking_number, :estimated_delivery_date, :email_sent)
			RETURNING id`, o)
		if err != nil {
			return err
		}
		o.ID = id

		for i := range o.Items {
			it := &o.Items[i]
			it.OrderID = o.ID
			it.CreatedAt, it.UpdatedAt = o.CreatedAt, o.CreatedAt
			if it.ID, err = insertReturningID(ctx, tx, `
				INSERT INTO order_items (order_id, product_id, product_name, product_sku, quantity,
					unit_price, total_price, options, created_at, updated_at)
				VALUES (:order_id, :product_id, :product_name, :product_sku, :quantity,
					:unit_price, :total_price, :options, :created_at, :updated_at)
				RETURNING id`, it); err != nil {
				return err
			}
		}

		o.Notes = nil
		if note != nil {
			n := *note
			n.OrderID = o.ID
			if n.CreatedAt.IsZero() {
				n.CreatedAt = o.CreatedAt
			}
			if n.ID, err = insertNote(ctx, tx, n); err != nil {
				return err
			}
			o.Notes = append(o.Notes, n)
		}

		return affectedOne(tx.ExecContext(ctx, `
			UPDATE users SET total_orders = total_orders + 1, total_spent = total_spent + $1,
				last_order_date = $2
			WHERE id = $3`, o.TotalAmount, o.CreatedAt, o.CustomerID))
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("place order: %w", err)
	}
	return o, nil
}

func insertNote(ctx context.Context, q sqlx.QueryerContext, n models.OrderNote) (int64, error) {
	return insertReturningID(ctx, q, `
		INSERT INTO order_notes (order_id, user_id, note, attachment_url, created_at)
		VALUES (:order_id, :user_id, :note, :attachment_url, :created_at)
		RETURNING id`, n)
}

func (s *Store) hydrate(ctx context.Context, q sqlx.QueryerContext, o *models.Order, notes bool) error {
	o.Items = []models.OrderItem{}
	if err := sqlx.SelectContext(ctx, q, &o.Items,
		`SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID); err != nil {
		return fmt.Errorf("order items: %w", err)
	}
	if notes {
		o.Notes = []models.OrderNote{}
		if err := sqlx.SelectContext(ctx, q, &o.Notes, `
			SELECT id, order_id, user_id, note, attachment_url, created_at
			FROM order_notes WHERE order_id = $1 ORDER BY id`, o.ID); err != nil {
			return fmt.Errorf("order notes: %w", err)
		}
	}
	return nil
}

func (s *Store) getOrder(ctx context.Context, cond string, arg any) (models.Order, error) {
	var o models.Order
	if err := s.db.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE `+cond, arg); err != nil {
		return models.Order{}, mapErr(err)
	}
	if err := s.hydrate(ctx, s.db, &o, true); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (models.Order, error) {
	return s.getOrder(ctx, "id = $1", id)
}

func (s *Store) GetOrderByNumber(ctx context.Context, number string) (models.Order, error) {
	return s.getOrder(ctx, "order_number = $1", number)
}

func (s *Store) ListOrders(ctx context.Context, f storage.OrderFilter) ([]models.Order, error) {
	var w where
	if f.CustomerID != 0 {
		w.add("customer_id = ?", f.CustomerID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.PaymentStatus != "" {
		w.add("payment_status = ?", f.PaymentStatus)
	}
	if f.Since != nil {
		w.add("created_at >= ?", *f.Since)
	}
	if f.Until != nil {
		w.add("created_at < ?", *f.Until)
	}
	if f.Search != "" {
		p := like(f.Search)
		w.add("(order_number ILIKE ? OR customer_id IN (SELECT id FROM users WHERE email ILIKE ?))", p, p)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + w.String() + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	orders := []models.Order{}
	if err := s.db.SelectContext(ctx, &orders, sqlx.Rebind(sqlx.DOLLAR, query), w.args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if !f.WithItems || len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items,
		`SELECT `+itemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY id`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	byOrder := map[int64][]models.OrderItem{}
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return orders, nil
}

// lockOrder loads an order row FOR UPDATE inside tx.
func lockOrder(ctx context.Context, tx *sqlx.Tx, id int64) (models.Order, error) {
	var o models.Order
	if err := tx.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return models.Order{}, mapErr(err)
	}
	return o, nil
}

func (s *Store) ChangeOrderStatus(ctx context.Context, id int64, next models.OrderStatus, at time.Time) (models.Order, error) {
	var o models.Order
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if o, err = lockOrder(ctx, tx, id); err != nil {
			return err
		}
		if err := o.SetStatus(next, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, o.Status, o.UpdatedAt); err != nil {
			return mapErr(err)
		}
		if next == models.OrderCancelled {
			if _, err := tx.ExecContext(ctx, `
				UPDATE products p SET stock = p.stock + q.qty, updated_at = $2
				FROM (SELECT product_id, SUM(quantity) AS qty FROM order_items
				      WHERE order_id = $1 AND product_id IS NOT NULL GROUP BY product_id) q
				WHERE p.id = q.product_id`, id, at); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		return s.hydrate(ctx, tx, &o, true)
	})
	if err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (s *Store) ChangePaymentStatus(ctx context.Context, id int64, next models.PaymentStatus, at time.Time) (models.Order, error) {
	var o models.Order
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if o, err = lockOrder(ctx, tx, id); err != nil {
			return err
		}
		if err := o.SetPaymentStatus(next, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET payment_status = $2, payment_date = $3, updated_at = $4 WHERE id = $1`,
			id, o.PaymentStatus, o.PaymentDate, o.UpdatedAt); err != nil {
			return mapErr(err)
		}
		return s.hydrate(ctx, tx, &o, true)
	})
	if err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (s *Store) SetTrackingNumber(ctx context.Context, id int64, tracking string) (models.Order, error) {
	if err := affectedOne(s.db.ExecContext(ctx,
		`UPDATE orders SET tracking_number = $2, updated_at = $3 WHERE id = $1`, id, tracking, s.now())); err != nil {
		return models.Order{}, err
	}
	return s.GetOrder(ctx, id)
}

func (s *Store) AddOrderNote(ctx context.Context, n models.OrderNote) (models.OrderNote, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	id, err := insertNote(ctx, s.db, n)
	if err != nil {
		return models.OrderNote{}, fmt.Errorf("add order note: %w", err)
	}
	n.ID = id
	return n, nil
}

func (s *Store) MarkEmailSent(ctx context.Context, id int64) error {
	return affectedOne(s.db.ExecContext(ctx, `UPDATE orders SET email_sent = TRUE WHERE id = $1`, id))
}
