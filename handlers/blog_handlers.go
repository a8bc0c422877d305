package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"

	"artisanat/apperr"
	"artisanat/models"
	"artisanat/storage"
)

const postsPerPage = 6

var (
	ugc   = bluemonday.UGCPolicy()
	plain = bluemonday.StrictPolicy()
)

type BlogHandler struct {
	*Deps
}

type PostRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Slug            string  `json:"slug" validate:"max=200"`
	CategoryID      *int64  `json:"category_id"`
	Content         string  `json:"content" validate:"required"`
	Excerpt         string  `json:"excerpt" validate:"max=500"`
	FeaturedImage   *string `json:"featured_image"`
	MetaTitle       string  `json:"meta_title" validate:"max=60"`
	MetaDescription string  `json:"meta_description" validate:"max=160"`
	IsFeatured      bool    `json:"is_featured"`
	TagIDs          []int64 `json:"tag_ids"`
}

func (req PostRequest) apply(p models.BlogPost) models.BlogPost {
	p.Title = strings.TrimSpace(req.Title)
	p.CategoryID = req.CategoryID
	p.Content = ugc.Sanitize(req.Content)
	p.Excerpt = plain.Sanitize(req.Excerpt)
	p.FeaturedImage = req.FeaturedImage
	p.MetaTitle = strings.TrimSpace(req.MetaTitle)
	p.MetaDescription = strings.TrimSpace(req.MetaDescription)
	p.IsFeatured = req.IsFeatured
	p.TagIDs = req.TagIDs
	return p
}

type CommentRequest struct {
	Content  string `json:"content" validate:"required"`
	ParentID *int64 `json:"parent_id"`
}

type BlogCategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Slug        string `json:"slug" validate:"max=100"`
	Description string `json:"description"`
	ParentID    *int64 `json:"parent_id"`
	Order       int    `json:"order"`
	IsActive    *bool  `json:"is_active"`
}

type TagRequest struct {
	Name string `json:"name" validate:"required,max=50"`
	Slug string `json:"slug" validate:"max=50"`
}

// uniqueSlug slugifies want and appends -2, -3... until the slug is free for
// kind. except is the slug the object already owns, which stays valid.
func (h *BlogHandler) uniqueSlug(ctx context.Context, kind, want, except string) (string, error) {
	base := models.Slugify(want)
	if base == "" {
		base = kind
	}
	slug := base
	for i := 2; ; i++ {
		if slug == except {
			return slug, nil
		}
		taken, err := h.Store.SlugTaken(ctx, kind, slug)
		if err != nil {
			return "", err
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

func tagError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Validation(map[string]string{"tag_ids": "unknown tag"})
	}
	return err
}

func (h *BlogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, offset := pageParam(r, postsPerPage)
	f := storage.PostFilter{Status: models.PostPublished, Limit: postsPerPage, Offset: offset}
	posts, total, err := h.Store.ListPosts(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if page > 1 && f.Offset >= total {
		page, f.Offset = 1, 0
		if posts, total, err = h.Store.ListPosts(r.Context(), f); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	categories, err := h.Store.ListBlogCategories(r.Context(), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts":      posts,
		"categories": categories,
		"page":       newPageInfo(page, postsPerPage, total),
	})
}

func (h *BlogHandler) publishedPost(r *http.Request) (models.BlogPost, error) {
	p, err := h.Store.GetPostBySlug(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		return models.BlogPost{}, err
	}
	if p.Status != models.PostPublished {
		return models.BlogPost{}, apperr.NotFound("post not found")
	}
	return p, nil
}

func (h *BlogHandler) Detail(w http.ResponseWriter, r *http.Request) {
	p, err := h.publishedPost(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Store.IncrementPostViews(r.Context(), p.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	p.ViewCount++

	comments, err := h.Store.ListComments(r.Context(), p.ID, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	categories, err := h.Store.ListBlogCategories(r.Context(), true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tags, err := h.Store.ListTags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post":       p,
		"comments":   comments,
		"categories": categories,
		"tags":       tags,
	})
}

func (h *BlogHandler) Comment(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	p, err := h.publishedPost(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req CommentRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	content := strings.TrimSpace(ugc.Sanitize(req.Content))
	if content == "" {
		h.writeError(w, r, apperr.Validation(map[string]string{"content": "this field is required"}))
		return
	}
	if req.ParentID != nil {
		if err := h.checkParent(r, p.ID, *req.ParentID); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	uid := u.ID
	c, err := h.Store.CreateComment(r.Context(), models.Comment{
		PostID:     p.ID,
		AuthorID:   &uid,
		ParentID:   req.ParentID,
		Content:    content,
		IsApproved: true,
		CreatedAt:  h.now(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// checkParent makes sure a reply points at a comment of the same post.
func (h *BlogHandler) checkParent(r *http.Request, postID, parentID int64) error {
	comments, err := h.Store.ListComments(r.Context(), postID, false)
	if err != nil {
		return err
	}
	for _, c := range comments {
		if c.ID == parentID {
			return nil
		}
	}
	return apperr.Validation(map[string]string{"parent_id": "unknown comment for this post"})
}

func (h *BlogHandler) MyPosts(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	posts, total, err := h.Store.ListPosts(r.Context(), storage.PostFilter{AuthorID: u.ID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": total, "posts": posts})
}

// ownPost loads one of the caller's posts. Other authors' posts are reported
// as missing.
func (h *BlogHandler) ownPost(r *http.Request) (models.BlogPost, error) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		return models.BlogPost{}, err
	}
	p, err := h.Store.GetPost(r.Context(), id)
	if err != nil {
		return models.BlogPost{}, err
	}
	if p.AuthorID == nil || *p.AuthorID != u.ID {
		return models.BlogPost{}, apperr.NotFound("post not found")
	}
	return p, nil
}

func (h *BlogHandler) MyPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.ownPost(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *BlogHandler) Preview(w http.ResponseWriter, r *http.Request) {
	p, err := h.ownPost(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"post": p, "preview": true})
}

func (h *BlogHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	var req PostRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	uid := u.ID
	p := req.apply(models.BlogPost{AuthorID: &uid, Status: models.PostDraft, CreatedAt: h.now()})

	want := req.Slug
	if want == "" {
		want = p.Title
	}
	slug, err := h.uniqueSlug(r.Context(), "post", want, "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p.Slug = slug
	p.FillDefaults()

	created, err := h.Store.CreatePost(r.Context(), p)
	if err != nil {
		h.writeError(w, r, tagError(err))
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *BlogHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, err := h.ownPost(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if existing.Status == models.PostPublished {
		h.writeError(w, r, apperr.Conflict("published posts cannot be edited"))
		return
	}
	var req PostRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p := req.apply(existing)
	if req.Slug != "" {
		if p.Slug, err = h.uniqueSlug(r.Context(), "post", req.Slug, existing.Slug); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	p.UpdatedAt = h.now()
	p.FillDefaults()

	updated, err := h.Store.UpdatePost(r.Context(), p)
	if err != nil {
		h.writeError(w, r, tagError(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *BlogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.ownPost(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if p.Status == models.PostPublished {
		h.writeError(w, r, apperr.Conflict("published posts cannot be deleted"))
		return
	}
	if err := h.Store.DeletePost(r.Context(), p.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BlogHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	status := models.PostStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		h.writeError(w, r, apperr.Validation(map[string]string{"status": "unknown post status"}))
		return
	}
	posts, total, err := h.Store.ListPosts(r.Context(), storage.PostFilter{Status: status})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": total, "posts": posts})
}

func (h *BlogHandler) setStatus(w http.ResponseWriter, r *http.Request, status models.PostStatus) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.Store.GetPost(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	now := h.now()
	if status == models.PostPublished {
		p.Publish(now)
	} else {
		p.Status = status
		p.UpdatedAt = now
	}
	updated, err := h.Store.UpdatePost(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *BlogHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.PostPublished)
}

func (h *BlogHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, models.PostArchived)
}

func (h *BlogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Store.ListBlogCategories(r.Context(), false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *BlogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req BlogCategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	want := req.Slug
	if want == "" {
		want = req.Name
	}
	slug, err := h.uniqueSlug(r.Context(), "category", want, "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	c, err := h.Store.CreateBlogCategory(r.Context(), models.BlogCategory{
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: req.Description,
		ParentID:    req.ParentID,
		Order:       req.Order,
		IsActive:    active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *BlogHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Store.ListTags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *BlogHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	want := req.Slug
	if want == "" {
		want = req.Name
	}
	slug, err := h.uniqueSlug(r.Context(), "tag", want, "")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.Store.CreateTag(r.Context(), models.Tag{Name: strings.TrimSpace(req.Name), Slug: slug})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}
