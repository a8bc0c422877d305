package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"artisanat/models"
	"artisanat/storage"
)

// --- notifications -----------------------------------------------------------

const notificationColumns = `id, user_id, title, message, type, level, is_read, is_archived,
	related_object_id, related_object_type, action_url, icon, created_at, read_at, archived_at`

func (s *Store) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO notifications (user_id, title, message, type, level, is_read, is_archived,
			related_object_id, related_object_type, action_url, icon, created_at, read_at, archived_at)
		VALUES (:user_id, :title, :message, :type, :level, :is_read, :is_archived,
			:related_object_id, :related_object_type, :action_url, :icon, :created_at, :read_at, :archived_at)
		RETURNING id`, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	n.ID = id
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, userID, id int64) (models.Notification, error) {
	var n models.Notification
	err := s.db.GetContext(ctx, &n,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return models.Notification{}, mapErr(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	var w where
	w.add("user_id = ?", f.UserID)
	w.add("is_archived = ?", f.Archived)
	if f.UnreadOnly {
		w.add("NOT is_read")
	}
	if f.Type != "" {
		w.add("type = ?", f.Type)
	}
	if f.Search != "" {
		p := like(f.Search)
		w.add("(title ILIKE ? OR message ILIKE ?)", p, p)
	}
	if f.Since != nil {
		w.add("created_at >= ?", *f.Since)
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications` + w.String() + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	out := []models.Notification{}
	if err := s.db.SelectContext(ctx, &out, sqlx.Rebind(sqlx.DOLLAR, query), w.args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE notifications SET title = :title, message = :message, type = :type, level = :level,
			is_read = :is_read, is_archived = :is_archived, action_url = :action_url, icon = :icon,
			read_at = :read_at, archived_at = :archived_at
		WHERE id = :id AND user_id = :user_id`, n)
	if err := affectedOne(res, err); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT is_read AND NOT is_archived`, userID, at)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) DeleteNotification(ctx context.Context, userID, id int64) error {
	return affectedOne(s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Store) ClearNotifications(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE user_id = $1 AND NOT is_archived`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear notifications: %w", err)
	}
	return res.RowsAffected()
}

// --- blog --------------------------------------------------------------------

func (s *Store) ListBlogCategories(ctx context.Context, activeOnly bool) ([]models.BlogCategory, error) {
	query := `SELECT id, name, slug, description, parent_id, sort_order, is_active FROM blog_categories`
	if activeOnly {
		query += ` WHERE is_active`
	}
	out := []models.BlogCategory{}
	if err := s.db.SelectContext(ctx, &out, query+` ORDER BY sort_order, name`); err != nil {
		return nil, fmt.Errorf("list blog categories: %w", err)
	}
	return out, nil
}

func (s *Store) CreateBlogCategory(ctx context.Context, c models.BlogCategory) (models.BlogCategory, error) {
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO blog_categories (name, slug, description, parent_id, sort_order, is_active)
		VALUES (:name, :slug, :description, :parent_id, :sort_order, :is_active)
		RETURNING id`, c)
	if err != nil {
		return models.BlogCategory{}, fmt.Errorf("create blog category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *Store) ListTags(ctx context.Context) ([]models.Tag, error) {
	out := []models.Tag{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name, slug FROM tags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return out, nil
}

func (s *Store) CreateTag(ctx context.Context, t models.Tag) (models.Tag, error) {
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO tags (name, slug) VALUES ($1, $2) RETURNING id`, t.Name, t.Slug).Scan(&t.ID)
	if err != nil {
		return models.Tag{}, fmt.Errorf("create tag: %w", mapErr(err))
	}
	return t, nil
}

var slugTables = map[string]string{
	"post":     "blog_posts",
	"category": "blog_categories",
	"tag":      "tags",
}

func (s *Store) SlugTaken(ctx context.Context, kind, slug string) (bool, error) {
	table, ok := slugTables[kind]
	if !ok {
		return false, nil
	}
	var taken bool
	err := s.db.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE slug = $1)`, slug)
	if err != nil {
		return false, fmt.Errorf("slug lookup: %w", err)
	}
	return taken, nil
}

const postColumns = `id, title, slug, category_id, author_id, content, excerpt, featured_image,
	meta_title, meta_description, status, is_featured, created_at, updated_at, published_at,
	view_count, like_count, share_count`

func setPostTags(ctx context.Context, tx *sqlx.Tx, postID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = $1`, postID); err != nil {
		return mapErr(err)
	}
	for _, tid := range tagIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO post_tags (post_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			postID, tid); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

// loadTags fills Tags and TagIDs for every post with a single query.
func (s *Store) loadTags(ctx context.Context, q sqlx.QueryerContext, posts []models.BlogPost) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int64, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	var rows []struct {
		PostID int64 `db:"post_id"`
		models.Tag
	}
	if err := sqlx.SelectContext(ctx, q, &rows, `
		SELECT pt.post_id, t.id, t.name, t.slug
		FROM post_tags pt JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1) ORDER BY t.id`, pq.Array(ids)); err != nil {
		return fmt.Errorf("post tags: %w", err)
	}
	byPost := map[int64][]models.Tag{}
	for _, r := range rows {
		byPost[r.PostID] = append(byPost[r.PostID], r.Tag)
	}
	for i := range posts {
		posts[i].Tags = byPost[posts[i].ID]
		if posts[i].Tags == nil {
			posts[i].Tags = []models.Tag{}
		}
		posts[i].TagIDs = make([]int64, len(posts[i].Tags))
		for j, t := range posts[i].Tags {
			posts[i].TagIDs[j] = t.ID
		}
	}
	return nil
}

func (s *Store) CreatePost(ctx context.Context, p models.BlogPost) (models.BlogPost, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	posts := []models.BlogPost{p}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		id, err := insertReturningID(ctx, tx, `
			INSERT INTO blog_posts (title, slug, category_id, author_id, content, excerpt, featured_image,
				meta_title, meta_description, status, is_featured, created_at, updated_at, published_at,
				view_count, like_count, share_count)
			VALUES (:title, :slug, :category_id, :author_id, :content, :excerpt, :featured_image,
				:meta_title, :meta_description, :status, :is_featured, :created_at, :updated_at, :published_at,
				:view_count, :like_count, :share_count)
			RETURNING id`, p)
		if err != nil {
			return err
		}
		posts[0].ID = id
		if err := setPostTags(ctx, tx, id, p.TagIDs); err != nil {
			return err
		}
		return s.loadTags(ctx, tx, posts)
	})
	if err != nil {
		return models.BlogPost{}, fmt.Errorf("create post: %w", err)
	}
	return posts[0], nil
}

func (s *Store) UpdatePost(ctx context.Context, p models.BlogPost) (models.BlogPost, error) {
	p.UpdatedAt = s.now()
	posts := []models.BlogPost{p}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.QueryRowxContext(ctx, `
			UPDATE blog_posts SET title = $2, slug = $3, category_id = $4, content = $5, excerpt = $6,
				featured_image = $7, meta_title = $8, meta_description = $9, status = $10,
				is_featured = $11, updated_at = $12, published_at = $13
			WHERE id = $1
			RETURNING created_at, author_id, view_count, like_count, share_count`,
			p.ID, p.Title, p.Slug, p.CategoryID, p.Content, p.Excerpt, p.FeaturedImage, p.MetaTitle,
			p.MetaDescription, p.Status, p.IsFeatured, p.UpdatedAt, p.PublishedAt).
			Scan(&posts[0].CreatedAt, &posts[0].AuthorID, &posts[0].ViewCount, &posts[0].LikeCount, &posts[0].ShareCount)
		if err != nil {
			return mapErr(err)
		}
		if err := setPostTags(ctx, tx, p.ID, p.TagIDs); err != nil {
			return err
		}
		return s.loadTags(ctx, tx, posts)
	})
	if err != nil {
		return models.BlogPost{}, fmt.Errorf("update post %d: %w", p.ID, err)
	}
	return posts[0], nil
}

func (s *Store) DeletePost(ctx context.Context, id int64) error {
	return affectedOne(s.db.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = $1`, id))
}

func (s *Store) getPost(ctx context.Context, cond string, arg any) (models.BlogPost, error) {
	posts := make([]models.BlogPost, 1)
	if err := s.db.GetContext(ctx, &posts[0], `SELECT `+postColumns+` FROM blog_posts WHERE `+cond, arg); err != nil {
		return models.BlogPost{}, mapErr(err)
	}
	if err := s.loadTags(ctx, s.db, posts); err != nil {
		return models.BlogPost{}, err
	}
	return posts[0], nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (models.BlogPost, error) {
	return s.getPost(ctx, "id = $1", id)
}

func (s *Store) GetPostBySlug(ctx context.Context, slug string) (models.BlogPost, error) {
	return s.getPost(ctx, "slug = $1", slug)
}

func (s *Store) ListPosts(ctx context.Context, f storage.PostFilter) ([]models.BlogPost, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.AuthorID != 0 {
		w.add("author_id = ?", f.AuthorID)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, sqlx.Rebind(sqlx.DOLLAR, `SELECT COUNT(*) FROM blog_posts`+w.String()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	query := `SELECT ` + postColumns + ` FROM blog_posts` + w.String() +
		` ORDER BY COALESCE(published_at, created_at) DESC, id DESC`
	args := append([]any{}, w.args...)
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	posts := []models.BlogPost{}
	if err := s.db.SelectContext(ctx, &posts, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	if err := s.loadTags(ctx, s.db, posts); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (s *Store) IncrementPostViews(ctx context.Context, id int64) error {
	return affectedOne(s.db.ExecContext(ctx, `UPDATE blog_posts SET view_count = view_count + 1 WHERE id = $1`, id))
}

func (s *Store) CreateComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.UpdatedAt = c.CreatedAt
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO comments (post_id, author_id, parent_id, content, is_approved, created_at, updated_at)
		VALUES (:post_id, :author_id, :parent_id, :content, :is_approved, :created_at, :updated_at)
		RETURNING id`, c)
	if err != nil {
		return models.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, postID int64, approvedOnly bool) ([]models.Comment, error) {
	query := `SELECT id, post_id, author_id, parent_id, content, is_approved, created_at, updated_at
		FROM comments WHERE post_id = $1`
	if approvedOnly {
		query += ` AND is_approved`
	}
	out := []models.Comment{}
	if err := s.db.SelectContext(ctx, &out, query+` ORDER BY id`, postID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return out, nil
}

// --- contact -----------------------------------------------------------------

func (s *Store) CreateContactMessage(ctx context.Context, m models.ContactMessage) (models.ContactMessage, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO contact_messages (first_name, last_name, email, phone, subject, message,
			privacy_accepted, created_at)
		VALUES (:first_name, :last_name, :email, :phone, :subject, :message, :privacy_accepted, :created_at)
		RETURNING id`, m)
	if err != nil {
		return models.ContactMessage{}, fmt.Errorf("create contact message: %w", err)
	}
	m.ID = id
	return m, nil
}

func (s *Store) ListContactMessages(ctx context.Context) ([]models.ContactMessage, error) {
	out := []models.ContactMessage{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, first_name, last_name, email, phone, subject, message, privacy_accepted, created_at
		FROM contact_messages ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return out, nil
}

func (s *Store) SubscribeNewsletter(ctx context.Context, email string, at time.Time) (models.NewsletterSubscription, bool, error) {
	sub := models.NewsletterSubscription{Email: email, DateAdded: at, Active: true}
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO newsletter_subscriptions (email, date_added, active) VALUES ($1, $2, TRUE)
		ON CONFLICT (email) DO NOTHING RETURNING id`, email, at).Scan(&sub.ID)
	if err == nil {
		return sub, true, nil
	}
	if err = mapErr(err); !errors.Is(err, storage.ErrNotFound) {
		return models.NewsletterSubscription{}, false, fmt.Errorf("subscribe: %w", err)
	}

	// already subscribed
	if err := s.db.GetContext(ctx, &sub, `
		SELECT id, email, date_added, active FROM newsletter_subscriptions WHERE email = $1`, email); err != nil {
		return models.NewsletterSubscription{}, false, mapErr(err)
	}
	return sub, false, nil
}

// --- artisans ----------------------------------------------------------------

func (s *Store) ListRegions(ctx context.Context) ([]models.Region, error) {
	out := []models.Region{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name, slug FROM regions ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list regions: %w", err)
	}
	return out, nil
}

func (s *Store) GetRegionBySlug(ctx context.Context, slug string) (models.Region, error) {
	var r models.Region
	if err := s.db.GetContext(ctx, &r, `SELECT id, name, slug FROM regions WHERE slug = $1`, slug); err != nil {
		return models.Region{}, mapErr(err)
	}
	return r, nil
}

func (s *Store) CreateRegion(ctx context.Context, r models.Region) (models.Region, error) {
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO regions (name, slug) VALUES ($1, $2) RETURNING id`, r.Name, r.Slug).Scan(&r.ID)
	if err != nil {
		return models.Region{}, fmt.Errorf("create region: %w", mapErr(err))
	}
	return r, nil
}

func (s *Store) ListCraftTypes(ctx context.Context) ([]models.CraftType, error) {
	out := []models.CraftType{}
	if err := s.db.SelectContext(ctx, &out, `SELECT id, name, slug FROM craft_types ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list craft types: %w", err)
	}
	return out, nil
}

func (s *Store) GetCraftType(ctx context.Context, id int64) (models.CraftType, error) {
	var c models.CraftType
	if err := s.db.GetContext(ctx, &c, `SELECT id, name, slug FROM craft_types WHERE id = $1`, id); err != nil {
		return models.CraftType{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) GetCraftTypeBySlug(ctx context.Context, slug string) (models.CraftType, error) {
	var c models.CraftType
	if err := s.db.GetContext(ctx, &c, `SELECT id, name, slug FROM craft_types WHERE slug = $1`, slug); err != nil {
		return models.CraftType{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) CreateCraftType(ctx context.Context, c models.CraftType) (models.CraftType, error) {
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO craft_types (name, slug) VALUES ($1, $2) RETURNING id`, c.Name, c.Slug).Scan(&c.ID)
	if err != nil {
		return models.CraftType{}, fmt.Errorf("create craft type: %w", mapErr(err))
	}
	return c, nil
}

const artisanColumns = `id, user_id, name, region_id, country, craft_type_id, description,
	image_url, rating, created_at, is_active`

func (s *Store) ListArtisans(ctx context.Context, f storage.ArtisanFilter) ([]models.Artisan, int, error) {
	var w where
	if f.ActiveOnly {
		w.add("is_active")
	}
	if f.RegionID != 0 {
		w.add("region_id = ?", f.RegionID)
	}
	if f.CraftTypeID != 0 {
		w.add("craft_type_id = ?", f.CraftTypeID)
	}
	if f.ExcludeID != 0 {
		w.add("id <> ?", f.ExcludeID)
	}
	if f.Search != "" {
		p := like(f.Search)
		w.add("(name ILIKE ? OR description ILIKE ? OR country ILIKE ?)", p, p, p)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, sqlx.Rebind(sqlx.DOLLAR, `SELECT COUNT(*) FROM artisans`+w.String()), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count artisans: %w", err)
	}
	query := `SELECT ` + artisanColumns + ` FROM artisans` + w.String() + ` ORDER BY name, id`
	args := append([]any{}, w.args...)
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}
	out := []models.Artisan{}
	if err := s.db.SelectContext(ctx, &out, sqlx.Rebind(sqlx.DOLLAR, query), args...); err != nil {
		return nil, 0, fmt.Errorf("list artisans: %w", err)
	}
	return out, total, nil
}

func (s *Store) GetArtisan(ctx context.Context, id int64) (models.Artisan, error) {
	var a models.Artisan
	if err := s.db.GetContext(ctx, &a, `SELECT `+artisanColumns+` FROM artisans WHERE id = $1`, id); err != nil {
		return models.Artisan{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) CreateArtisan(ctx context.Context, a models.Artisan) (models.Artisan, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO artisans (user_id, name, region_id, country, craft_type_id, description,
			image_url, rating, created_at, is_active)
		VALUES (:user_id, :name, :region_id, :country, :craft_type_id, :description,
			:image_url, :rating, :created_at, :is_active)
		RETURNING id`, a)
	if err != nil {
		return models.Artisan{}, fmt.Errorf("create artisan: %w", err)
	}
	a.ID = id
	return a, nil
}

const applicationColumns = `id, full_name, email, phone, country, craft_type_id, other_craft,
	experience, description, portfolio_url, photo_urls, terms_accepted, status, submitted_at`

func (s *Store) CreateApplication(ctx context.Context, a models.ArtisanApplication) (models.ArtisanApplication, error) {
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = s.now()
	}
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO artisan_applications (full_name, email, phone, country, craft_type_id, other_craft,
			experience, description, portfolio_url, photo_urls, terms_accepted, status, submitted_at)
		VALUES (:full_name, :email, :phone, :country, :craft_type_id, :other_craft,
			:experience, :description, :portfolio_url, :photo_urls, :terms_accepted, :status, :submitted_at)
		RETURNING id`, a)
	if err != nil {
		return models.ArtisanApplication{}, fmt.Errorf("create application: %w", err)
	}
	a.ID = id
	return a, nil
}

func (s *Store) ListApplications(ctx context.Context) ([]models.ArtisanApplication, error) {
	out := []models.ArtisanApplication{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+applicationColumns+` FROM artisan_applications ORDER BY id DESC`); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return out, nil
}

func (s *Store) GetApplication(ctx context.Context, id int64) (models.ArtisanApplication, error) {
	var a models.ArtisanApplication
	if err := s.db.GetContext(ctx, &a, `SELECT `+applicationColumns+` FROM artisan_applications WHERE id = $1`, id); err != nil {
		return models.ArtisanApplication{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus) (models.ArtisanApplication, error) {
	var a models.ArtisanApplication
	err := s.db.GetContext(ctx, &a, `
		UPDATE artisan_applications SET status = $2 WHERE id = $1 RETURNING `+applicationColumns, id, status)
	if err != nil {
		return models.ArtisanApplication{}, mapErr(err)
	}
	return a, nil
}

// --- about -------------------------------------------------------------------

const aboutColumns = `id, title, subtitle, history_title, history_content, mission_title,
	mission_content, process_title, team_title, team_intro, cta_title, cta_content`

func (s *Store) GetAboutContent(ctx context.Context) (models.AboutContent, error) {
	var c models.AboutContent
	if err := s.db.GetContext(ctx, &c, `SELECT `+aboutColumns+` FROM about_content ORDER BY id LIMIT 1`); err != nil {
		return models.AboutContent{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) SaveAboutContent(ctx context.Context, c models.AboutContent) (models.AboutContent, error) {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var existing int64
		err := tx.GetContext(ctx, &existing, `SELECT id FROM about_content ORDER BY id LIMIT 1 FOR UPDATE`)
		if err = mapErr(err); errors.Is(err, storage.ErrNotFound) {
			c.ID, err = insertReturningID(ctx, tx, `
				INSERT INTO about_content (title, subtitle, history_title, history_content, mission_title,
					mission_content, process_title, team_title, team_intro, cta_title, cta_content)
				VALUES (:title, :subtitle, :history_title, :history_content, :mission_title,
					:mission_content, :process_title, :team_title, :team_intro, :cta_title, :cta_content)
				RETURNING id`, c)
			return err
		}
		if err != nil {
			return err
		}
		c.ID = existing
		_, err = tx.NamedExecContext(ctx, `
			UPDATE about_content SET title = :title, subtitle = :subtitle, history_title = :history_title,
				history_content = :history_content, mission_title = :mission_title,
				mission_content = :mission_content, process_title = :process_title,
				team_title = :team_title, team_intro = :team_intro, cta_title = :cta_title,
				cta_content = :cta_content
			WHERE id = :id`, c)
		return mapErr(err)
	})
	if err != nil {
		return models.AboutContent{}, fmt.Errorf("save about content: %w", err)
	}
	return c, nil
}

func (s *Store) ListAboutItems(ctx context.Context, activeOnly bool) ([]models.AboutItem, error) {
	query := `SELECT id, kind, title, subtitle, body, icon, image_url, location, sort_order, is_active, created_at
		FROM about_items`
	if activeOnly {
		query += ` WHERE is_active`
	}
	out := []models.AboutItem{}
	if err := s.db.SelectContext(ctx, &out, query+` ORDER BY sort_order, title`); err != nil {
		return nil, fmt.Errorf("list about items: %w", err)
	}
	return out, nil
}

func (s *Store) CreateAboutItem(ctx context.Context, it models.AboutItem) (models.AboutItem, error) {
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now()
	}
	id, err := insertReturningID(ctx, s.db, `
		INSERT INTO about_items (kind, title, subtitle, body, icon, image_url, location, sort_order,
			is_active, created_at)
		VALUES (:kind, :title, :subtitle, :body, :icon, :image_url, :location, :sort_order,
			:is_active, :created_at)
		RETURNING id`, it)
	if err != nil {
		return models.AboutItem{}, fmt.Errorf("create about item: %w", err)
	}
	it.ID = id
	return it, nil
}
