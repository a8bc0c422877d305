package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type Region struct {
	ID   int64  `json:"id" db:"id" yaml:"-"`
	Name string `json:"name" db:"name" yaml:"name"`
	Slug string `json:"slug" db:"slug" yaml:"slug"`
}

type CraftType struct {
	ID   int64  `json:"id" db:"id" yaml:"-"`
	Name string `json:"name" db:"name" yaml:"name"`
	Slug string `json:"slug" db:"slug" yaml:"slug"`
}

type Artisan struct {
	ID          int64     `json:"id" db:"id"`
	UserID      *int64    `json:"user_id,omitempty" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	RegionID    *int64    `json:"region_id,omitempty" db:"region_id"`
	Country     string    `json:"country" db:"country"`
	CraftTypeID *int64    `json:"craft_type_id,omitempty" db:"craft_type_id"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"image_url" db:"image_url"`
	Rating      float64   `json:"rating" db:"rating"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	IsActive    bool      `json:"is_active" db:"is_active"`
}

const DefaultArtisanImage = "artisans/placeholder.jpg"

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

var applicationStatusLabels = map[ApplicationStatus]string{
	ApplicationPending:  "En attente",
	ApplicationApproved: "Approuvé",
	ApplicationRejected: "Rejeté",
}

func (s ApplicationStatus) Valid() bool {
	_, ok := applicationStatusLabels[s]
	return ok
}

func (s ApplicationStatus) Label() string {
	if l, ok := applicationStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// StringList is a list of strings stored as a JSON array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

func (l *StringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	}
	return errors.New("StringList: unsupported source type")
}

type ArtisanApplication struct {
	ID            int64             `json:"id" db:"id"`
	FullName      string            `json:"full_name" db:"full_name"`
	Email         string            `json:"email" db:"email"`
	Phone         string            `json:"phone" db:"phone"`
	Country       string            `json:"country" db:"country"`
	CraftTypeID   *int64            `json:"craft_type_id,omitempty" db:"craft_type_id"`
	OtherCraft    string            `json:"other_craft" db:"other_craft"`
	Experience    string            `json:"experience" db:"experience"`
	Description   string            `json:"description" db:"description"`
	PortfolioURL  string            `json:"portfolio_url" db:"portfolio_url"`
	PhotoURLs     StringList        `json:"photo_urls" db:"photo_urls"`
	TermsAccepted bool              `json:"terms_accepted" db:"terms_accepted"`
	Status        ApplicationStatus `json:"status" db:"status"`
	SubmittedAt   time.Time         `json:"submitted_at" db:"submitted_at"`
}
