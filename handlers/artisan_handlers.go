package handlers

import (
	"errors"
	"net/http"
	"strings"

	"artisanat/apperr"
	"artisanat/mailer"
	"artisanat/models"
	"artisanat/storage"
)

const (
	artisansPerPage = 6
	similarArtisans = 3
	otherCraftSlug  = "autre"
	maxPhotos       = 3
)

type ArtisanHandler struct {
	*Deps
}

type ApplicationRequest struct {
	FullName      string   `json:"full_name" validate:"required,max=200"`
	Email         string   `json:"email" validate:"required,email"`
	Phone         string   `json:"phone" validate:"required,max=20"`
	Country       string   `json:"country" validate:"required,max=100"`
	CraftTypeID   *int64   `json:"craft_type_id" validate:"required"`
	OtherCraft    string   `json:"other_craft" validate:"max=100"`
	Experience    string   `json:"experience" validate:"required"`
	Description   string   `json:"description" validate:"required"`
	PortfolioURL  string   `json:"portfolio_url" validate:"omitempty,url"`
	PhotoURLs     []string `json:"photo_urls"`
	TermsAccepted bool     `json:"terms_accepted"`
}

type ArtisanContactRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required"`
}

type ArtisanRequest struct {
	UserID      *int64  `json:"user_id"`
	Name        string  `json:"name" validate:"required,max=100"`
	RegionID    *int64  `json:"region_id"`
	Country     string  `json:"country" validate:"required,max=100"`
	CraftTypeID *int64  `json:"craft_type_id"`
	Description string  `json:"description" validate:"required"`
	ImageURL    string  `json:"image_url"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
	IsActive    *bool   `json:"is_active"`
}

type NamedSlugRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"max=100"`
}

func (req NamedSlugRequest) slug() string {
	if req.Slug != "" {
		return models.Slugify(req.Slug)
	}
	return models.Slugify(req.Name)
}

func (h *ArtisanHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, offset := pageParam(r, artisansPerPage)
	f := storage.ArtisanFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		ActiveOnly: true,
		Limit:      artisansPerPage,
		Offset:     offset,
	}

	regions, err := h.Store.ListRegions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	crafts, err := h.Store.ListCraftTypes(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// an unknown slug matches nothing
	unknown := false
	if slug := q.Get("region"); slug != "" {
		region, err := h.Store.GetRegionBySlug(r.Context(), slug)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			unknown = true
		case err != nil:
			h.writeError(w, r, err)
			return
		default:
			f.RegionID = region.ID
		}
	}
	if slug := q.Get("craft"); slug != "" {
		craft, err := h.Store.GetCraftTypeBySlug(r.Context(), slug)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			unknown = true
		case err != nil:
			h.writeError(w, r, err)
			return
		default:
			f.CraftTypeID = craft.ID
		}
	}

	artisans, total := []models.Artisan{}, 0
	if !unknown {
		if artisans, total, err = h.Store.ListArtisans(r.Context(), f); err != nil {
			h.writeError(w, r, err)
			return
		}
		if page > 1 && f.Offset >= total {
			page, f.Offset = 1, 0
			if artisans, total, err = h.Store.ListArtisans(r.Context(), f); err != nil {
				h.writeError(w, r, err)
				return
			}
		}
	} else {
		page = 1
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"artisans":    artisans,
		"regions":     regions,
		"craft_types": crafts,
		"page":        newPageInfo(page, artisansPerPage, total),
	})
}

func (h *ArtisanHandler) activeArtisan(r *http.Request) (models.Artisan, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return models.Artisan{}, err
	}
	a, err := h.Store.GetArtisan(r.Context(), id)
	if err != nil {
		return models.Artisan{}, err
	}
	if !a.IsActive {
		return models.Artisan{}, apperr.NotFound("artisan not found")
	}
	return a, nil
}

// Detail returns an artisan with a few others from the same region, or of
// the same craft when the region has none.
func (h *ArtisanHandler) Detail(w http.ResponseWriter, r *http.Request) {
	a, err := h.activeArtisan(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	similar := []models.Artisan{}
	if a.RegionID != nil {
		if similar, _, err = h.Store.ListArtisans(r.Context(), storage.ArtisanFilter{
			RegionID: *a.RegionID, ActiveOnly: true, ExcludeID: a.ID, Limit: similarArtisans,
		}); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	if len(similar) == 0 && a.CraftTypeID != nil {
		if similar, _, err = h.Store.ListArtisans(r.Context(), storage.ArtisanFilter{
			CraftTypeID: *a.CraftTypeID, ActiveOnly: true, ExcludeID: a.ID, Limit: similarArtisans,
		}); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artisan": a, "similar_artisans": similar})
}

func (h *ArtisanHandler) Contact(w http.ResponseWriter, r *http.Request) {
	a, err := h.activeArtisan(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ArtisanContactRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artisan_id": a.ID,
		"message":    "your message has been sent to " + a.Name,
	})
}

// validateApplication gathers every problem of an application in one field
// map.
func (h *ArtisanHandler) validateApplication(r *http.Request, req ApplicationRequest) error {
	fields := map[string]string{}
	if err := check(&req); err != nil {
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			return err
		}
		for k, v := range ae.Fields {
			fields[k] = v
		}
	}
	if req.CraftTypeID != nil {
		craft, err := h.Store.GetCraftType(r.Context(), *req.CraftTypeID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fields["craft_type_id"] = "unknown craft type"
		case err != nil:
			return err
		case craft.Slug == otherCraftSlug && strings.TrimSpace(req.OtherCraft) == "":
			fields["other_craft"] = "describe your craft"
		}
	}
	photos := 0
	for _, p := range req.PhotoURLs {
		if strings.TrimSpace(p) != "" {
			photos++
		}
	}
	if photos == 0 {
		fields["photo_urls"] = "add at least one photo of your work"
	} else if photos > maxPhotos {
		fields["photo_urls"] = "at most 3 photos"
	}
	if !req.TermsAccepted {
		fields["terms_accepted"] = "you must accept the terms"
	}
	if len(fields) > 0 {
		return apperr.Validation(fields)
	}
	return nil
}

func (h *ArtisanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validateApplication(r, req); err != nil {
		h.writeError(w, r, err)
		return
	}
	photos := make(models.StringList, 0, len(req.PhotoURLs))
	for _, p := range req.PhotoURLs {
		if p = strings.TrimSpace(p); p != "" {
			photos = append(photos, p)
		}
	}
	app, err := h.Store.CreateApplication(r.Context(), models.ArtisanApplication{
		FullName:      strings.TrimSpace(req.FullName),
		Email:         normalizeEmail(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		Country:       strings.TrimSpace(req.Country),
		CraftTypeID:   req.CraftTypeID,
		OtherCraft:    strings.TrimSpace(req.OtherCraft),
		Experience:    req.Experience,
		Description:   plain.Sanitize(req.Description),
		PortfolioURL:  req.PortfolioURL,
		PhotoURLs:     photos,
		TermsAccepted: true,
		Status:        models.ApplicationPending,
		SubmittedAt:   h.now(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"application": app,
		"message":     "your application has been received",
	})
}

func (h *ArtisanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ArtisanRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	image := req.ImageURL
	if image == "" {
		image = models.DefaultArtisanImage
	}
	a, err := h.Store.CreateArtisan(r.Context(), models.Artisan{
		UserID:      req.UserID,
		Name:        strings.TrimSpace(req.Name),
		RegionID:    req.RegionID,
		Country:     strings.TrimSpace(req.Country),
		CraftTypeID: req.CraftTypeID,
		Description: req.Description,
		ImageURL:    image,
		Rating:      req.Rating,
		IsActive:    active,
		CreatedAt:   h.now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = apperr.Validation(map[string]string{"region_id": "unknown region or craft type"})
		}
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *ArtisanHandler) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.Store.ListRegions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, regions)
}

func (h *ArtisanHandler) CreateRegion(w http.ResponseWriter, r *http.Request) {
	var req NamedSlugRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	region, err := h.Store.CreateRegion(r.Context(), models.Region{Name: strings.TrimSpace(req.Name), Slug: req.slug()})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, region)
}

func (h *ArtisanHandler) CraftTypes(w http.ResponseWriter, r *http.Request) {
	crafts, err := h.Store.ListCraftTypes(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crafts)
}

func (h *ArtisanHandler) CreateCraftType(w http.ResponseWriter, r *http.Request) {
	var req NamedSlugRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	craft, err := h.Store.CreateCraftType(r.Context(), models.CraftType{Name: strings.TrimSpace(req.Name), Slug: req.slug()})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, craft)
}

func (h *ArtisanHandler) Applications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Store.ListApplications(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// ChangeStatus moves an application to a new status and tells the
// applicant. A failed email keeps the change and comes back as a warning.
func (h *ArtisanHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	status := models.ApplicationStatus(req.Status)
	if !status.Valid() {
		h.writeError(w, r, apperr.Validation(map[string]string{"status": "must be one of: pending approved rejected"}))
		return
	}
	app, err := h.Store.GetApplication(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if app.Status == status {
		h.writeError(w, r, apperr.BadRequest("the application already has this status"))
		return
	}
	app, err = h.Store.UpdateApplicationStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := map[string]any{
		"application": app,
		"message":     "application status changed to " + status.Label(),
	}
	sent := h.sendMail(r, mailer.KindApplicationStatus, []string{app.Email}, mailer.ApplicationData{
		FullName:    app.FullName,
		Status:      app.Status,
		StatusLabel: app.Status.Label(),
	})
	if !sent {
		resp["warning"] = "the status was updated but the applicant could not be emailed"
	}
	writeJSON(w, http.StatusOK, resp)
}
