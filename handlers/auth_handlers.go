package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"artisanat/apperr"
	"artisanat/auth"
	"artisanat/logging"
	"artisanat/mailer"
	"artisanat/models"
	"artisanat/storage"
)

const resetTokenTTL = time.Hour

type AuthHandler struct {
	*Deps
}

type RegisterRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=150"`
	LastName        string `json:"last_name" validate:"required,max=150"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`

	Phone       string `json:"phone"`
	Gender      string `json:"gender" validate:"omitempty,oneof=M F O"`
	BirthDate   string `json:"birth_date"`
	CompanyName string `json:"company_name"`
	Profession  string `json:"profession"`

	StreetAddress string `json:"street_address"`
	Apartment     string `json:"apartment"`
	City          string `json:"city"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,min=1,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,min=1,max=150"`
	Phone       *string `json:"phone"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=M F O"`
	BirthDate   *string `json:"birth_date"`
	CompanyName *string `json:"company_name"`
	Profession  *string `json:"profession"`
}

type PasswordChangeRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

type PasswordResetRequest struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func passwordError(err error, field, confirmField string) error {
	if errors.Is(err, auth.ErrPasswordMismatch) {
		return apperr.Validation(map[string]string{confirmField: err.Error()})
	}
	return apperr.Validation(map[string]string{field: err.Error()})
}

func parseBirthDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, apperr.Validation(map[string]string{"birth_date": "use the YYYY-MM-DD format"})
	}
	return &t, nil
}

// sendMail composes and delivers a message, logging failures. It reports
// whether the message went out.
func (d *Deps) sendMail(r *http.Request, kind mailer.Kind, to []string, data any) bool {
	log := logging.FromContext(r.Context(), d.Log)
	msg, err := mailer.Compose(kind, to, data)
	if err == nil {
		err = mailer.Deliver(r.Context(), d.Mailer, msg)
	}
	if err != nil {
		log.Warn("email not sent", zap.String("kind", string(kind)), zap.Error(err))
		return false
	}
	return true
}

func (d *Deps) setAuthCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   !d.Config.DevMode,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := auth.ValidatePassword(req.Password, req.PasswordConfirm); err != nil {
		h.writeError(w, r, passwordError(err, "password", "password_confirm"))
		return
	}
	birth, err := parseBirthDate(req.BirthDate)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	email := normalizeEmail(req.Email)
	if _, err := h.Store.GetUserByEmail(r.Context(), email); err == nil {
		h.writeError(w, r, apperr.Conflict("an account already exists with this email"))
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	token := auth.NewOpaqueToken()
	u, err := h.Store.CreateUser(r.Context(), models.User{
		Email:                  email,
		FirstName:              strings.TrimSpace(req.FirstName),
		LastName:               strings.TrimSpace(req.LastName),
		UserType:               models.UserClient,
		Gender:                 optional(req.Gender),
		BirthDate:              birth,
		Phone:                  optional(req.Phone),
		CompanyName:            optional(req.CompanyName),
		Profession:             optional(req.Profession),
		PasswordHash:           hash,
		AccountStatus:          true,
		EmailConfirmationToken: &token,
		DateJoined:             h.now(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.StreetAddress != "" && req.City != "" && req.PostalCode != "" && req.Country != "" {
		_, err := h.Store.SaveAddress(r.Context(), models.Address{
			UserID:        u.ID,
			AddressType:   models.AddressBoth,
			StreetAddress: req.StreetAddress,
			Apartment:     optional(req.Apartment),
			City:          req.City,
			PostalCode:    req.PostalCode,
			Country:       req.Country,
			IsDefault:     true,
		})
		if err != nil {
			logging.FromContext(r.Context(), h.Log).Warn("registration address not saved", zap.Int64("user_id", u.ID), zap.Error(err))
		}
	}

	h.sendMail(r, mailer.KindConfirmEmail, []string{u.Email}, mailer.LinkData{
		Name: u.FirstName,
		Link: h.Config.SiteURL + "/accounts/confirm/" + token,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":    u,
		"message": "account created, check your inbox to confirm your email address",
	})
}

func (h *AuthHandler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUserByConfirmationToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.NotFound("invalid confirmation link")
		}
		h.writeError(w, r, err)
		return
	}
	if u.EmailConfirmed {
		writeJSON(w, http.StatusOK, map[string]string{"message": "email already confirmed"})
		return
	}
	u.EmailConfirmed = true
	u.EmailConfirmationToken = nil
	if _, err := h.Store.UpdateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "email confirmed"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.Store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}
	if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		h.writeError(w, r, apperr.Unauthorized(auth.ErrInvalidCredentials.Error()))
		return
	}
	if !u.AccountStatus {
		h.writeError(w, r, apperr.Forbidden("account disabled"))
		return
	}
	if !u.EmailConfirmed {
		h.writeError(w, r, apperr.Forbidden("confirm your email address before logging in"))
		return
	}

	token, exp, err := h.Tokens.Issue(u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	now := h.now()
	if _, err := h.Store.CreateSession(r.Context(), models.Session{
		UserID:    u.ID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: exp,
		CreatedAt: now,
	}); err != nil {
		h.writeError(w, r, err)
		return
	}
	u.LastLogin = &now
	if u, err = h.Store.UpdateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setAuthCookie(w, token, exp)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
		"user":       u,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		err := h.Store.DeleteSessionByHash(r.Context(), auth.HashToken(token))
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.Config.DevMode,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	u, err := h.Store.GetUserByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.NotFound("no account is registered with this email")
		}
		h.writeError(w, r, err)
		return
	}

	token := auth.NewOpaqueToken()
	expires := h.now().Add(resetTokenTTL)
	u.PasswordResetToken = &token
	u.PasswordResetExpires = &expires
	if _, err := h.Store.UpdateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.sendMail(r, mailer.KindPasswordReset, []string{u.Email}, mailer.LinkData{
		Name: u.FirstName,
		Link: h.Config.SiteURL + "/accounts/reset-password/" + token,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUserByResetToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.NotFound("invalid reset link")
		}
		h.writeError(w, r, err)
		return
	}
	if u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(h.now()) {
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
		if _, err := h.Store.UpdateUser(r.Context(), u); err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeError(w, r, apperr.Gone("the reset link has expired"))
		return
	}

	var req PasswordResetRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
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
	u.PasswordHash = hash
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
	if _, err := h.Store.UpdateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	writeJSON(w, http.StatusOK, u)
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	var req ProfileRequest
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
	if req.Phone != nil {
		u.Phone = optional(*req.Phone)
	}
	if req.Gender != nil {
		u.Gender = optional(*req.Gender)
	}
	if req.CompanyName != nil {
		u.CompanyName = optional(*req.CompanyName)
	}
	if req.Profession != nil {
		u.Profession = optional(*req.Profession)
	}
	if req.BirthDate != nil {
		birth, err := parseBirthDate(*req.BirthDate)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		u.BirthDate = birth
	}

	updated, err := h.Store.UpdateUser(r.Context(), u)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	var req PasswordChangeRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.OldPassword) {
		h.writeError(w, r, apperr.Validation(map[string]string{"old_password": "incorrect password"}))
		return
	}
	if err := auth.ValidatePassword(req.NewPassword, req.NewPasswordConfirm); err != nil {
		h.writeError(w, r, passwordError(err, "new_password", "new_password_confirm"))
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	u.PasswordHash = hash
	if _, err := h.Store.UpdateUser(r.Context(), u); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
