package models

import "time"

type ContactSubject string

const (
	SubjectOrder   ContactSubject = "commande"
	SubjectProduct ContactSubject = "produit"
	SubjectReturn  ContactSubject = "retour"
	SubjectOther   ContactSubject = "autre"
)

var contactSubjectLabels = map[ContactSubject]string{
	SubjectOrder:   "Question sur ma commande",
	SubjectProduct: "Information produit",
	SubjectReturn:  "Retour produit",
	SubjectOther:   "Autre",
}

func (s ContactSubject) Valid() bool {
	_, ok := contactSubjectLabels[s]
	return ok
}

func (s ContactSubject) Label() string {
	if l, ok := contactSubjectLabels[s]; ok {
		return l
	}
	return string(s)
}

type ContactMessage struct {
	ID              int64          `json:"id" db:"id"`
	FirstName       string         `json:"first_name" db:"first_name"`
	LastName        string         `json:"last_name" db:"last_name"`
	Email           string         `json:"email" db:"email"`
	Phone           string         `json:"phone" db:"phone"`
	Subject         ContactSubject `json:"subject" db:"subject"`
	Message         string         `json:"message" db:"message"`
	PrivacyAccepted bool           `json:"privacy_accepted" db:"privacy_accepted"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}

type NewsletterSubscription struct {
	ID        int64     `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	DateAdded time.Time `json:"date_added" db:"date_added"`
	Active    bool      `json:"active" db:"active"`
}

type StockAlert struct {
	ID          int64      `json:"id" db:"id"`
	ProductID   int64      `json:"product_id" db:"product_id"`
	ProductName string     `json:"product_name" db:"product_name"`
	Email       string     `json:"email" db:"email"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	Notified    bool       `json:"notified" db:"notified"`
	NotifiedAt  *time.Time `json:"notified_at,omitempty" db:"notified_at"`
}
