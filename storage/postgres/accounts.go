package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"artisanat/models"
	"artisanat/storage"
)

const userColumns = `id, email, first_name, last_name, user_type, gender, birth_date, phone,
	company_name, profession, password_hash, total_orders, total_spent, last_order_date,
	account_status, email_confirmed, email_confirmation_token, password_reset_token,
	password_reset_expires, date_joined, last_login, created_by`

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.DateJoined.IsZero() {
		u.DateJoined = s.now()
	}
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO users (email, first_name, last_name, user_type, gender, birth_date, phone,
			company_name, profession, password_hash, total_orders, total_spent, last_order_date,
			account_status, email_confirmed, email_confirmation_token, password_reset_token,
			password_reset_expires, date_joined, last_login, created_by)
		VALUES (:email, :first_name, :last_name, :user_type, :gender, :birth_date, :phone,
			:company_name, :profession, :password_hash, :total_orders, :total_spent, :last_order_date,
			:account_status, :email_confirmed, :email_confirmation_token, :password_reset_token,
			:password_reset_expires, :date_joined, :last_login, :created_by)
		RETURNING id`, u)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	return u, nil
}

func (s *Store) getUser(ctx context.Context, cond string, arg any) (models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE `+cond, arg)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	return s.getUser(ctx, "id = $1", id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.getUser(ctx, "LOWER(email) = LOWER($1)", email)
}

func (s *Store) GetUserByConfirmationToken(ctx context.Context, token string) (models.User, error) {
	return s.getUser(ctx, "email_confirmation_token = $1", token)
}

func (s *Store) GetUserByResetToken(ctx context.Context, token string) (models.User, error) {
	return s.getUser(ctx, "password_reset_token = $1", token)
}

func (s *Store) UpdateUser(ctx context.Context, u models.User) (models.User, error) {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE users SET email = :email, first_name = :first_name, last_name = :last_name,
			user_type = :user_type, gender = :gender, birth_date = :birth_date, phone = :phone,
			company_name = :company_name, profession = :profession, password_hash = :password_hash,
			total_orders = :total_orders, total_spent = :total_spent, last_order_date = :last_order_date,
			account_status = :account_status, email_confirmed = :email_confirmed,
			email_confirmation_token = :email_confirmation_token,
			password_reset_token = :password_reset_token, password_reset_expires = :password_reset_expires,
			last_login = :last_login, created_by = :created_by
		WHERE id = :id`, u)
	if err := affectedOne(res, err); err != nil {
		return models.User{}, fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return affectedOne(s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id))
}

var userOrderColumns = map[string]string{
	"date_joined":  "date_joined",
	"last_login":   "last_login",
	"total_orders": "total_orders",
	"total_spent":  "total_spent",
}

func (s *Store) ListUsers(ctx context.Context, f storage.UserFilter) ([]models.User, error) {
	var w where
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		w.add("user_type = ANY(?)", pq.Array(types))
	}
	if f.Active != nil {
		w.add("account_status = ?", *f.Active)
	}
	if f.ManagedBy != 0 {
		w.add("(id = ? OR (created_by = ? AND user_type = 'CLIENT'))", f.ManagedBy, f.ManagedBy)
	}
	if f.JoinedSince != nil {
		w.add("date_joined >= ?", *f.JoinedSince)
	}
	if f.Search != "" {
		p := like(f.Search)
		w.add("(email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR COALESCE(phone, '') ILIKE ?)", p, p, p, p)
	}

	field, desc := storage.ParseOrdering(f.Ordering)
	order := userOrderColumns[field] + " ASC NULLS FIRST"
	if desc {
		order = userOrderColumns[field] + " DESC NULLS LAST"
	}

	users := []models.User{}
	query := sqlx.Rebind(sqlx.DOLLAR, `SELECT `+userColumns+` FROM users`+w.String()+` ORDER BY `+order+`, id`)
	if err := s.db.SelectContext(ctx, &users, query, w.args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// --- sessions ----------------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess models.Session) (models.Session, error) {
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now()
	}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt).Scan(&sess.ID)
	if err != nil {
		return models.Session{}, fmt.Errorf("create session: %w", mapErr(err))
	}
	return sess, nil
}

func (s *Store) GetSessionByHash(ctx context.Context, hash string) (models.Session, error) {
	var sess models.Session
	err := s.db.GetContext(ctx, &sess, `
		SELECT id, user_id, token_hash, expires_at, created_at FROM sessions WHERE token_hash = $1`, hash)
	if err != nil {
		return models.Session{}, mapErr(err)
	}
	return sess, nil
}

func (s *Store) DeleteSessionByHash(ctx context.Context, hash string) error {
	return affectedOne(s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hash))
}

func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

// --- addresses ---------------------------------------------------------------

const addressColumns = `id, user_id, address_type, street_address, apartment, city, state,
	postal_code, country, is_default`

func (s *Store) ListAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	out := []models.Address{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT `+addressColumns+` FROM addresses WHERE user_id = $1
		ORDER BY is_default DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return out, nil
}

func (s *Store) GetAddress(ctx context.Context, userID, id int64) (models.Address, error) {
	var a models.Address
	err := s.db.GetContext(ctx, &a, `
		SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return models.Address{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) SaveAddress(ctx context.Context, a models.Address) (models.Address, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if a.IsDefault {
			if _, err := tx.ExecContext(ctx, `
				UPDATE addresses SET is_default = FALSE
				WHERE user_id = $1 AND address_type = $2 AND is_default AND id <> $3`,
				a.UserID, a.AddressType, a.ID); err != nil {
				return mapErr(err)
			}
		}
		if a.ID == 0 {
			id, err := insertReturningID(ctx, tx, `
				INSERT INTO addresses (user_id, address_type, street_address, apartment, city, state,
					postal_code, country, is_default)
				VALUES (:user_id, :address_type, :street_address, :apartment, :city, :state,
					:postal_code, :country, :is_default)
				RETURNING id`, a)
			a.ID = id
			return err
		}
		res, err := tx.NamedExecContext(ctx, `
			UPDATE addresses SET address_type = :address_type, street_address = :street_address,
				apartment = :apartment, city = :city, state = :state, postal_code = :postal_code,
				country = :country, is_default = :is_default
			WHERE id = :id AND user_id = :user_id`, a)
		return affectedOne(res, err)
	})
	if err != nil {
		return models.Address{}, fmt.Errorf("save address: %w", err)
	}
	return a, nil
}

func (s *Store) DeleteAddress(ctx context.Context, userID, id int64) error {
	return affectedOne(s.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
}
