package models

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
	PostArchived  PostStatus = "archived"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostPublished, PostArchived:
		return true
	}
	return false
}

type BlogCategory struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	Description string `json:"description" db:"description"`
	ParentID    *int64 `json:"parent_id,omitempty" db:"parent_id"`
	Order       int    `json:"order" db:"sort_order"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

type Tag struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Slug string `json:"slug" db:"slug"`
}

type BlogPost struct {
	ID            int64   `json:"id" db:"id"`
	Title         string  `json:"title" db:"title"`
	Slug          string  `json:"slug" db:"slug"`
	CategoryID    *int64  `json:"category_id,omitempty" db:"category_id"`
	AuthorID      *int64  `json:"author_id,omitempty" db:"author_id"`
	Content       string  `json:"content" db:"content"`
	Excerpt       string  `json:"excerpt" db:"excerpt"`
	FeaturedImage *string `json:"featured_image,omitempty" db:"featured_image"`

	MetaTitle       string `json:"meta_title" db:"meta_title"`
	MetaDescription string `json:"meta_description" db:"meta_description"`

	Status      PostStatus `json:"status" db:"status"`
	IsFeatured  bool       `json:"is_featured" db:"is_featured"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty" db:"published_at"`

	ViewCount  int `json:"view_count" db:"view_count"`
	LikeCount  int `json:"like_count" db:"like_count"`
	ShareCount int `json:"share_count" db:"share_count"`

	TagIDs []int64 `json:"tag_ids,omitempty" db:"-"`
	Tags   []Tag   `json:"tags,omitempty" db:"-"`
}

// FillDefaults derives the slug and SEO fields left empty by the author.
func (p *BlogPost) FillDefaults() {
	if p.Slug == "" {
		p.Slug = Slugify(p.Title)
	}
	if p.MetaTitle == "" {
		p.MetaTitle = TruncateRunes(p.Title, 60)
	}
	if p.MetaDescription == "" && p.Excerpt != "" {
		p.MetaDescription = TruncateRunes(p.Excerpt, 160)
	}
}

// Publish moves the post to published, stamping the first publication date.
func (p *BlogPost) Publish(now time.Time) {
	p.Status = PostPublished
	if p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	p.UpdatedAt = now
}

type Comment struct {
	ID         int64     `json:"id" db:"id"`
	PostID     int64     `json:"post_id" db:"post_id"`
	AuthorID   *int64    `json:"author_id,omitempty" db:"author_id"`
	ParentID   *int64    `json:"parent_id,omitempty" db:"parent_id"`
	Content    string    `json:"content" db:"content"`
	IsApproved bool      `json:"is_approved" db:"is_approved"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lower-cases s, folds accents and joins the remaining words with '-'.
func Slugify(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
