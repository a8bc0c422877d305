package handlers

import (
	"net/http"
	"strings"

	"artisanat/apperr"
	"artisanat/mailer"
	"artisanat/models"
)

type ContactHandler struct {
	*Deps
}

type ContactRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"max=20"`
	Subject         string `json:"subject" validate:"required"`
	Message         string `json:"message" validate:"required"`
	PrivacyAccepted bool   `json:"privacy_accepted"`
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ContactRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	fields := map[string]string{}
	subject := models.ContactSubject(req.Subject)
	if !subject.Valid() {
		fields["subject"] = "must be one of: commande produit retour autre"
	}
	if !req.PrivacyAccepted {
		fields["privacy_accepted"] = "you must accept the privacy policy"
	}
	if len(fields) > 0 {
		h.writeError(w, r, apperr.Validation(fields))
		return
	}

	m, err := h.Store.CreateContactMessage(r.Context(), models.ContactMessage{
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		Email:           normalizeEmail(req.Email),
		Phone:           strings.TrimSpace(req.Phone),
		Subject:         subject,
		Message:         plain.Sanitize(req.Message),
		PrivacyAccepted: true,
		CreatedAt:       h.now(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	data := mailer.ContactData{ContactMessage: m, SubjectLabel: subject.Label()}
	h.sendMail(r, mailer.KindContactAdmin, []string{h.Config.AdminEmail}, data)
	h.sendMail(r, mailer.KindContactAck, []string{m.Email}, data)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      m.ID,
		"message": "your message has been sent, we will answer shortly",
	})
}

func (h *ContactHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	sub, created, err := h.Store.SubscribeNewsletter(r.Context(), normalizeEmail(req.Email), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, map[string]any{"subscription": sub, "message": "already subscribed"})
		return
	}
	h.sendMail(r, mailer.KindNewsletter, []string{sub.Email}, mailer.NewsletterData{Email: sub.Email})
	writeJSON(w, http.StatusCreated, map[string]any{"subscription": sub, "message": "subscribed"})
}

func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Store.ListContactMessages(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}
