package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	"artisanat/models"
)

// --- notifications -----------------------------------------------------------

func (s *Memory) CreateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Users[n.UserID]; !ok {
		return models.Notification{}, ErrNotFound
	}
	n.ID = s.id("notifications")
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.Notifications[n.ID] = n
	return n, nil
}

func (s *Memory) GetNotification(_ context.Context, userID, id int64) (models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.Notifications[id]
	if !ok || n.UserID != userID {
		return models.Notification{}, ErrNotFound
	}
	return n, nil
}

func (s *Memory) ListNotifications(_ context.Context, f NotificationFilter) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Notification{}
	for _, n := range s.Notifications {
		if n.UserID != f.UserID || n.IsArchived != f.Archived {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		if f.Type != "" && n.Type != f.Type {
			continue
		}
		if f.Search != "" && !containsFold(n.Title, f.Search) && !containsFold(n.Message, f.Search) {
			continue
		}
		if f.Since != nil && n.CreatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, 0), nil
}

func (s *Memory) UpdateNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.Notifications[n.ID]
	if !ok || existing.UserID != n.UserID {
		return models.Notification{}, ErrNotFound
	}
	s.Notifications[n.ID] = n
	return n, nil
}

func (s *Memory) MarkAllNotificationsRead(_ context.Context, userID int64, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, n := range s.Notifications {
		if n.UserID == userID && !n.IsRead && !n.IsArchived {
			n.MarkRead(at)
			s.Notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *Memory) DeleteNotification(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.Notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	delete(s.Notifications, id)
	return nil
}

func (s *Memory) ClearNotifications(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, n := range s.Notifications {
		if n.UserID == userID && !n.IsArchived {
			delete(s.Notifications, id)
			count++
		}
	}
	return count, nil
}

// --- blog --------------------------------------------------------------------

func (s *Memory) ListBlogCategories(_ context.Context, activeOnly bool) ([]models.BlogCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.BlogCategory{}
	for _, id := range sortedKeys(s.BlogCategories) {
		if c := s.BlogCategories[id]; !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Memory) CreateBlogCategory(_ context.Context, c models.BlogCategory) (models.BlogCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.BlogCategories {
		if other.Slug == c.Slug || strings.EqualFold(other.Name, c.Name) {
			return models.BlogCategory{}, ErrConflict
		}
	}
	c.ID = s.id("blog_categories")
	s.BlogCategories[c.ID] = c
	return c, nil
}

func (s *Memory) ListTags(_ context.Context) ([]models.Tag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Tag{}
	for _, id := range sortedKeys(s.Tags) {
		out = append(out, s.Tags[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) CreateTag(_ context.Context, t models.Tag) (models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.Tags {
		if other.Slug == t.Slug || strings.EqualFold(other.Name, t.Name) {
			return models.Tag{}, ErrConflict
		}
	}
	t.ID = s.id("tags")
	s.Tags[t.ID] = t
	return t, nil
}

func (s *Memory) SlugTaken(_ context.Context, kind, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch kind {
	case "post":
		for _, p := range s.Posts {
			if p.Slug == slug {
				return true, nil
			}
		}
	case "category":
		for _, c := range s.BlogCategories {
			if c.Slug == slug {
				return true, nil
			}
		}
	case "tag":
		for _, t := range s.Tags {
			if t.Slug == slug {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Memory) withTags(p models.BlogPost) models.BlogPost {
	p.Tags = []models.Tag{}
	for _, id := range p.TagIDs {
		if t, ok := s.Tags[id]; ok {
			p.Tags = append(p.Tags, t)
		}
	}
	return p
}

func (s *Memory) validTags(ids []int64) bool {
	for _, id := range ids {
		if _, ok := s.Tags[id]; !ok {
			return false
		}
	}
	return true
}

func (s *Memory) CreatePost(_ context.Context, p models.BlogPost) (models.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.Posts {
		if other.Slug == p.Slug {
			return models.BlogPost{}, ErrConflict
		}
	}
	if !s.validTags(p.TagIDs) {
		return models.BlogPost{}, ErrNotFound
	}
	p.ID = s.id("posts")
	now := s.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt
	p.Tags = nil
	s.Posts[p.ID] = p
	return s.withTags(p), nil
}

func (s *Memory) UpdatePost(_ context.Context, p models.BlogPost) (models.BlogPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.Posts[p.ID]
	if !ok {
		return models.BlogPost{}, ErrNotFound
	}
	for id, other := range s.Posts {
		if id != p.ID && other.Slug == p.Slug {
			return models.BlogPost{}, ErrConflict
		}
	}
	if !s.validTags(p.TagIDs) {
		return models.BlogPost{}, ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	if p.UpdatedAt.IsZero() || !p.UpdatedAt.After(existing.UpdatedAt) {
		p.UpdatedAt = s.now()
	}
	p.Tags = nil
	s.Posts[p.ID] = p
	return s.withTags(p), nil
}

func (s *Memory) DeletePost(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Posts[id]; !ok {
		return ErrNotFound
	}
	delete(s.Posts, id)
	for cid, c := range s.Comments {
		if c.PostID == id {
			delete(s.Comments, cid)
		}
	}
	return nil
}

func (s *Memory) GetPost(_ context.Context, id int64) (models.BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.Posts[id]
	if !ok {
		return models.BlogPost{}, ErrNotFound
	}
	return s.withTags(p), nil
}

func (s *Memory) GetPostBySlug(_ context.Context, slug string) (models.BlogPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.Posts {
		if p.Slug == slug {
			return s.withTags(p), nil
		}
	}
	return models.BlogPost{}, ErrNotFound
}

func postSortKey(p models.BlogPost) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

func (s *Memory) ListPosts(_ context.Context, f PostFilter) ([]models.BlogPost, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.BlogPost{}
	for _, p := range s.Posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.AuthorID != 0 && (p.AuthorID == nil || *p.AuthorID != f.AuthorID) {
			continue
		}
		out = append(out, s.withTags(p))
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := postSortKey(out[i]), postSortKey(out[j])
		if ki.Equal(kj) {
			return out[i].ID > out[j].ID
		}
		return ki.After(kj)
	})
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (s *Memory) IncrementPostViews(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Posts[id]
	if !ok {
		return ErrNotFound
	}
	p.ViewCount++
	s.Posts[id] = p
	return nil
}

func (s *Memory) CreateComment(_ context.Context, c models.Comment) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.Posts[c.PostID]; !ok {
		return models.Comment{}, ErrNotFound
	}
	c.ID = s.id("comments")
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = c.CreatedAt
	s.Comments[c.ID] = c
	return c, nil
}

func (s *Memory) ListComments(_ context.Context, postID int64, approvedOnly bool) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Comment{}
	for _, id := range sortedKeys(s.Comments) {
		c := s.Comments[id]
		if c.PostID == postID && (!approvedOnly || c.IsApproved) {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- contact -----------------------------------------------------------------

func (s *Memory) CreateContactMessage(_ context.Context, m models.ContactMessage) (models.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id("contacts")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.Contacts[m.ID] = m
	return m, nil
}

func (s *Memory) ListContactMessages(_ context.Context) ([]models.ContactMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := sortedKeys(s.Contacts)
	out := make([]models.ContactMessage, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, s.Contacts[keys[i]])
	}
	return out, nil
}

func (s *Memory) SubscribeNewsletter(_ context.Context, email string, at time.Time) (models.NewsletterSubscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.Newsletter {
		if strings.EqualFold(sub.Email, email) {
			return sub, false, nil
		}
	}
	sub := models.NewsletterSubscription{ID: s.id("newsletter"), Email: email, DateAdded: at, Active: true}
	s.Newsletter[sub.ID] = sub
	return sub, true, nil
}

// --- artisans ----------------------------------------------------------------

func (s *Memory) ListRegions(_ context.Context) ([]models.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Region{}
	for _, id := range sortedKeys(s.Regions) {
		out = append(out, s.Regions[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) GetRegionBySlug(_ context.Context, slug string) (models.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.Regions {
		if r.Slug == slug {
			return r, nil
		}
	}
	return models.Region{}, ErrNotFound
}

func (s *Memory) CreateRegion(_ context.Context, r models.Region) (models.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.Regions {
		if other.Slug == r.Slug || strings.EqualFold(other.Name, r.Name) {
			return models.Region{}, ErrConflict
		}
	}
	r.ID = s.id("regions")
	s.Regions[r.ID] = r
	return r, nil
}

func (s *Memory) ListCraftTypes(_ context.Context) ([]models.CraftType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.CraftType{}
	for _, id := range sortedKeys(s.CraftTypes) {
		out = append(out, s.CraftTypes[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Memory) GetCraftType(_ context.Context, id int64) (models.CraftType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.CraftTypes[id]
	if !ok {
		return models.CraftType{}, ErrNotFound
	}
	return c, nil
}

func (s *Memory) GetCraftTypeBySlug(_ context.Context, slug string) (models.CraftType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.CraftTypes {
		if c.Slug == slug {
			return c, nil
		}
	}
	return models.CraftType{}, ErrNotFound
}

func (s *Memory) CreateCraftType(_ context.Context, c models.CraftType) (models.CraftType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.CraftTypes {
		if other.Slug == c.Slug || strings.EqualFold(other.Name, c.Name) {
			return models.CraftType{}, ErrConflict
		}
	}
	c.ID = s.id("craft_types")
	s.CraftTypes[c.ID] = c
	return c, nil
}

func (s *Memory) ListArtisans(_ context.Context, f ArtisanFilter) ([]models.Artisan, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Artisan{}
	for _, id := range sortedKeys(s.Artisans) {
		a := s.Artisans[id]
		if f.ActiveOnly && !a.IsActive {
			continue
		}
		if f.RegionID != 0 && (a.RegionID == nil || *a.RegionID != f.RegionID) {
			continue
		}
		if f.CraftTypeID != 0 && (a.CraftTypeID == nil || *a.CraftTypeID != f.CraftTypeID) {
			continue
		}
		if f.ExcludeID != 0 && a.ID == f.ExcludeID {
			continue
		}
		if f.Search != "" && !containsFold(a.Name, f.Search) && !containsFold(a.Description, f.Search) && !containsFold(a.Country, f.Search) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (s *Memory) GetArtisan(_ context.Context, id int64) (models.Artisan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.Artisans[id]
	if !ok {
		return models.Artisan{}, ErrNotFound
	}
	return a, nil
}

func (s *Memory) CreateArtisan(_ context.Context, a models.Artisan) (models.Artisan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.RegionID != nil {
		if _, ok := s.Regions[*a.RegionID]; !ok {
			return models.Artisan{}, ErrNotFound
		}
	}
	if a.CraftTypeID != nil {
		if _, ok := s.CraftTypes[*a.CraftTypeID]; !ok {
			return models.Artisan{}, ErrNotFound
		}
	}
	a.ID = s.id("artisans")
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.Artisans[a.ID] = a
	return a, nil
}

func (s *Memory) CreateApplication(_ context.Context, a models.ArtisanApplication) (models.ArtisanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.id("applications")
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = s.now()
	}
	s.Application[a.ID] = a
	return a, nil
}

func (s *Memory) ListApplications(_ context.Context) ([]models.ArtisanApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := sortedKeys(s.Application)
	out := make([]models.ArtisanApplication, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		out = append(out, s.Application[keys[i]])
	}
	return out, nil
}

func (s *Memory) GetApplication(_ context.Context, id int64) (models.ArtisanApplication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.Application[id]
	if !ok {
		return models.ArtisanApplication{}, ErrNotFound
	}
	return a, nil
}

func (s *Memory) UpdateApplicationStatus(_ context.Context, id int64, status models.ApplicationStatus) (models.ArtisanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.Application[id]
	if !ok {
		return models.ArtisanApplication{}, ErrNotFound
	}
	a.Status = status
	s.Application[id] = a
	return a, nil
}

// --- about -------------------------------------------------------------------

func (s *Memory) GetAboutContent(_ context.Context) (models.AboutContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.About == nil {
		return models.AboutContent{}, ErrNotFound
	}
	return *s.About, nil
}

func (s *Memory) SaveAboutContent(_ context.Context, c models.AboutContent) (models.AboutContent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.About == nil {
		c.ID = s.id("about")
	} else {
		c.ID = s.About.ID
	}
	s.About = &c
	return c, nil
}

func (s *Memory) ListAboutItems(_ context.Context, activeOnly bool) ([]models.AboutItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.AboutItem{}
	for _, id := range sortedKeys(s.AboutItems) {
		if it := s.AboutItems[id]; !activeOnly || it.IsActive {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (s *Memory) CreateAboutItem(_ context.Context, it models.AboutItem) (models.AboutItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it.ID = s.id("about_items")
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now()
	}
	s.AboutItems[it.ID] = it
	return it, nil
}
