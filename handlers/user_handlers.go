package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"artisanat/apperr"
	"artisanat/auth"
	"artisanat/models"
	"artisanat/storage"
)

type UserHandler struct {
	*Deps
}

type CreateUserRequest struct {
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	UserType        string `json:"user_type" validate:"omitempty,oneof=SUPER_ADMIN ADMIN CLIENT"`
	Phone           string `json:"phone"`
	CompanyName     string `json:"company_name"`
	Profession      string `json:"profession"`
}

type UpdateUserRequest struct {
	FirstName     *string `json:"first_name" validate:"omitempty,min=1,max=150"`
	LastName      *string `json:"last_name" validate:"omitempty,min=1,max=150"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone"`
	CompanyName   *string `json:"company_name"`
	Profession    *string `json:"profession"`
	UserType      *string `json:"user_type" validate:"omitempty,oneof=SUPER_ADMIN ADMIN CLIENT"`
	AccountStatus *bool   `json:"account_status"`
}

type AddressRequest struct {
	AddressType   string `json:"address_type" validate:"required,oneof=BILLING SHIPPING BOTH"`
	StreetAddress string `json:"street_address" validate:"required,max=255"`
	Apartment     string `json:"apartment"`
	City          string `json:"city" validate:"required,max=100"`
	State         string `json:"state"`
	PostalCode    string `json:"postal_code" validate:"required,max=20"`
	Country       string `json:"country" validate:"required,max=100"`
	IsDefault     bool   `json:"is_default"`
}

func (req AddressRequest) apply(a models.Address) models.Address {
	a.AddressType = models.AddressType(req.AddressType)
	a.StreetAddress = strings.TrimSpace(req.StreetAddress)
	a.Apartment = optional(req.Apartment)
	a.City = strings.TrimSpace(req.City)
	a.State = optional(req.State)
	a.PostalCode = strings.TrimSpace(req.PostalCode)
	a.Country = strings.TrimSpace(req.Country)
	a.IsDefault = req.IsDefault
	return a
}

// managedUser loads a user the caller may manage. Users outside the caller's
// reach are reported as missing.
func (h *UserHandler) managedUser(r *http.Request) (models.User, error) {
	actor, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		return models.User{}, err
	}
	u, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		return models.User{}, err
	}
	if !actor.CanManage(u) {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)
	q := r.URL.Query()

	f := storage.UserFilter{
		Search:   strings.TrimSpace(q.Get("search")),
		Ordering: q.Get("ordering"),
	}
	if !actor.IsSuperAdmin() {
		f.ManagedBy = actor.ID
	}
	if t := q.Get("type"); t != "" {
		ut := models.UserType(strings.ToUpper(t))
		if !ut.Valid() {
			h.writeError(w, r, apperr.Validation(map[string]string{"type": "unknown user type"}))
			return
		}
		f.Types = []models.UserType{ut}
	}
	if a := q.Get("active"); a != "" {
		active, err := strconv.ParseBool(a)
		if err != nil {
			h.writeError(w, r, apperr.Validation(map[string]string{"active": "must be true or false"}))
			return
		}
		f.Active = &active
	}

	users, err := h.Store.ListUsers(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(users), "results": users})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)
	var req CreateUserRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	ut := models.UserClient
	if req.UserType != "" {
		ut = models.UserType(req.UserType)
	}
	if ut != models.UserClient && !actor.IsSuperAdmin() {
		h.writeError(w, r, apperr.Forbidden("administrators can only create clients"))
		return
	}
	if err := auth.ValidatePassword(req.Password, req.PasswordConfirm); err != nil {
		h.writeError(w, r, passwordError(err, "password", "password_confirm"))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	creator := actor.ID
	u, err := h.Store.CreateUser(r.Context(), models.User{
		Email:          normalizeEmail(req.Email),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		UserType:       ut,
		Phone:          optional(req.Phone),
		CompanyName:    optional(req.CompanyName),
		Profession:     optional(req.Profession),
		PasswordHash:   hash,
		AccountStatus:  true,
		EmailConfirmed: true,
		DateJoined:     h.now(),
		CreatedBy:      &creator,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.managedUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := currentUser(r)
	u, err := h.managedUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req UpdateUserRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Email != nil {
		u.Email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		u.Phone = optional(*req.Phone)
	}
	if req.CompanyName != nil {
		u.CompanyName = optional(*req.CompanyName)
	}
	if req.Profession != nil {
		u.Profession = optional(*req.Profession)
	}
	if req.UserType != nil && models.UserType(*req.UserType) != u.UserType {
		if !actor.IsSuperAdmin() {
			h.writeError(w, r, apperr.Forbidden("only a super administrator can change user types"))
			return
		}
		u.UserType = models.UserType(*req.UserType)
	}
	if req.AccountStatus != nil {
		u.AccountStatus = *req.AccountStatus
	}

	updated, err := h.Store.UpdateUser(r.Context(), u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, err := h.managedUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteUser(r.Context(), u.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MonthlySpending sums the completed orders of a user over one calendar
// month, the current one by default.
func (h *UserHandler) MonthlySpending(w http.ResponseWriter, r *http.Request) {
	u, err := h.managedUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	now := h.now()
	year, month := now.Year(), int(now.Month())
	q := r.URL.Query()
	if s := q.Get("year"); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			h.writeError(w, r, apperr.BadRequest("year and month must be integers"))
			return
		}
	}
	if s := q.Get("month"); s != "" {
		if month, err = strconv.Atoi(s); err != nil {
			h.writeError(w, r, apperr.BadRequest("year and month must be integers"))
			return
		}
	}
	if month < 1 || month > 12 {
		h.writeError(w, r, apperr.BadRequest("month must be between 1 and 12"))
		return
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0)
	orders, err := h.Store.ListOrders(r.Context(), storage.OrderFilter{
		CustomerID:    u.ID,
		PaymentStatus: models.PaymentCompleted,
		Since:         &start,
		Until:         &end,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.TotalAmount)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        u.ID,
		"year":           year,
		"month":          month,
		"orders":         len(orders),
		"monthly_amount": total,
	})
}

func (h *UserHandler) CustomerDetail(w http.ResponseWriter, r *http.Request) {
	u, err := h.managedUser(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.Store.ListOrders(r.Context(), storage.OrderFilter{CustomerID: u.ID, WithItems: true})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	addresses, err := h.Store.ListAddresses(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":  u,
		"orders":    orders,
		"addresses": addresses,
	})
}

func (h *UserHandler) Addresses(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	list, err := h.Store.ListAddresses(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *UserHandler) Address(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Store.GetAddress(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *UserHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	var req AddressRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Store.SaveAddress(r.Context(), req.apply(models.Address{UserID: u.ID}))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *UserHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	existing, err := h.Store.GetAddress(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req AddressRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	a, err := h.Store.SaveAddress(r.Context(), req.apply(existing))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *UserHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.DeleteAddress(r.Context(), u.ID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) AddressesByType(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	list, err := h.Store.ListAddresses(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make(map[models.AddressType][]models.Address, len(models.AddressTypes))
	for _, t := range models.AddressTypes {
		out[t] = []models.Address{}
	}
	for _, a := range list {
		out[a.AddressType] = append(out[a.AddressType], a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UserHandler) DefaultAddresses(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	list, err := h.Store.ListAddresses(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := make(map[models.AddressType]*models.Address, len(models.AddressTypes))
	for _, t := range models.AddressTypes {
		out[t] = nil
	}
	for i := range list {
		if list[i].IsDefault {
			out[list[i].AddressType] = &list[i]
		}
	}
	writeJSON(w, http.StatusOK, out)
}
