package handlers

import (
	"errors"
	"net/http"
	"strings"

	"artisanat/apperr"
	"artisanat/models"
	"artisanat/storage"
)

type AboutHandler struct {
	*Deps
}

type AboutItemRequest struct {
	Kind     string `json:"kind" validate:"required"`
	Title    string `json:"title" validate:"required,max=200"`
	Subtitle string `json:"subtitle" validate:"max=200"`
	Body     string `json:"body"`
	Icon     string `json:"icon" validate:"max=50"`
	ImageURL string `json:"image_url"`
	Location string `json:"location" validate:"max=100"`
	Order    int    `json:"order" validate:"gte=0"`
	IsActive *bool  `json:"is_active"`
}

// Page returns the about block with its active items grouped by kind. A
// site that never saved the block gets the default section titles.
func (h *AboutHandler) Page(w http.ResponseWriter, r *http.Request) {
	content, err := h.Store.GetAboutContent(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}
	content.FillDefaults()

	items, err := h.Store.ListAboutItems(r.Context(), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	grouped := make(map[models.AboutItemKind][]models.AboutItem, len(models.AboutItemKinds))
	for _, k := range models.AboutItemKinds {
		grouped[k] = []models.AboutItem{}
	}
	for _, it := range items {
		grouped[it.Kind] = append(grouped[it.Kind], it)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"content":      content,
		"team_members": grouped[models.AboutTeam],
		"values":       grouped[models.AboutValue],
		"steps":        grouped[models.AboutStep],
		"testimonials": grouped[models.AboutTestimonial],
	})
}

func (h *AboutHandler) SaveContent(w http.ResponseWriter, r *http.Request) {
	var c models.AboutContent
	if err := decodeJSON(r, &c); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(c.Title) == "" {
		h.writeError(w, r, apperr.Validation(map[string]string{"title": "this field is required"}))
		return
	}
	c.FillDefaults()
	saved, err := h.Store.SaveAboutContent(r.Context(), c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *AboutHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req AboutItemRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	kind := models.AboutItemKind(req.Kind)
	if !kind.Valid() {
		h.writeError(w, r, apperr.Validation(map[string]string{"kind": "must be one of: team value step testimonial"}))
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	it, err := h.Store.CreateAboutItem(r.Context(), models.AboutItem{
		Kind:      kind,
		Title:     strings.TrimSpace(req.Title),
		Subtitle:  req.Subtitle,
		Body:      req.Body,
		Icon:      req.Icon,
		ImageURL:  optional(req.ImageURL),
		Location:  req.Location,
		Order:     req.Order,
		IsActive:  active,
		CreatedAt: h.now(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}
