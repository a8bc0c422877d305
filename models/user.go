package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserType string

const (
	UserSuperAdmin UserType = "SUPER_ADMIN"
	UserAdmin      UserType = "ADMIN"
	UserClient     UserType = "CLIENT"
)

func (t UserType) Valid() bool {
	switch t {
	case UserSuperAdmin, UserAdmin, UserClient:
		return true
	}
	return false
}

type User struct {
	ID        int64    `json:"id" db:"id"`
	Email     string   `json:"email" db:"email"`
	FirstName string   `json:"first_name" db:"first_name"`
	LastName  string   `json:"last_name" db:"last_name"`
	UserType  UserType `json:"user_type" db:"user_type"`

	Gender      *string    `json:"gender,omitempty" db:"gender"`
	BirthDate   *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	Phone       *string    `json:"phone,omitempty" db:"phone"`
	CompanyName *string    `json:"company_name,omitempty" db:"company_name"`
	Profession  *string    `json:"profession,omitempty" db:"profession"`

	PasswordHash string `json:"-" db:"password_hash"`

	TotalOrders   int             `json:"total_orders" db:"total_orders"`
	TotalSpent    decimal.Decimal `json:"total_spent" db:"total_spent"`
	LastOrderDate *time.Time      `json:"last_order_date,omitempty" db:"last_order_date"`

	AccountStatus          bool       `json:"account_status" db:"account_status"`
	EmailConfirmed         bool       `json:"email_confirmed" db:"email_confirmed"`
	EmailConfirmationToken *string    `json:"-" db:"email_confirmation_token"`
	PasswordResetToken     *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpires   *time.Time `json:"-" db:"password_reset_expires"`

	DateJoined time.Time  `json:"date_joined" db:"date_joined"`
	LastLogin  *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedBy  *int64     `json:"created_by,omitempty" db:"created_by"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u User) IsAdmin() bool      { return u.UserType == UserAdmin }
func (u User) IsSuperAdmin() bool { return u.UserType == UserSuperAdmin }

// IsStaff reports whether the user may reach the back office.
func (u User) IsStaff() bool { return u.IsAdmin() || u.IsSuperAdmin() }

// CanManage reports whether u may read or modify other. A super admin manages
// everyone, an admin manages the clients it created, everybody manages
// themselves.
func (u User) CanManage(other User) bool {
	if u.ID == other.ID || u.IsSuperAdmin() {
		return true
	}
	if u.IsAdmin() {
		return other.CreatedBy != nil && *other.CreatedBy == u.ID && other.UserType == UserClient
	}
	return false
}

type AddressType string

const (
	AddressBilling  AddressType = "BILLING"
	AddressShipping AddressType = "SHIPPING"
	AddressBoth     AddressType = "BOTH"
)

var AddressTypes = []AddressType{AddressBilling, AddressShipping, AddressBoth}

func (t AddressType) Valid() bool {
	switch t {
	case AddressBilling, AddressShipping, AddressBoth:
		return true
	}
	return false
}

type Address struct {
	ID            int64       `json:"id" db:"id"`
	UserID        int64       `json:"user_id" db:"user_id"`
	AddressType   AddressType `json:"address_type" db:"address_type"`
	StreetAddress string      `json:"street_address" db:"street_address"`
	Apartment     *string     `json:"apartment,omitempty" db:"apartment"`
	City          string      `json:"city" db:"city"`
	State         *string     `json:"state,omitempty" db:"state"`
	PostalCode    string      `json:"postal_code" db:"postal_code"`
	Country       string      `json:"country" db:"country"`
	IsDefault     bool        `json:"is_default" db:"is_default"`
}

// OneLine renders the address the way orders store it.
func (a Address) OneLine() string {
	apt := ""
	if a.Apartment != nil {
		apt = *a.Apartment
	}
	return FormatAddress(a.StreetAddress, apt, a.PostalCode, a.City, a.Country)
}

func FormatAddress(street, apartment, postalCode, city, country string) string {
	return street + " " + apartment + ", " + postalCode + " " + city + ", " + country
}

type Session struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
