package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"artisanat/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Shortage struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (s Shortage) String() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", s.Name, s.Available, s.Requested)
}

// StockError lists every product an order could not reserve.
type StockError struct {
	Shortages []Shortage
}

func (e *StockError) Error() string {
	msgs := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		msgs = append(msgs, s.String())
	}
	return strings.Join(msgs, "; ")
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

type UserFilter struct {
	Types  []models.UserType
	Active *bool
	Search string
	// Ordering is one of date_joined, last_login, total_orders, total_spent,
	// optionally prefixed with '-'. Empty means -date_joined.
	Ordering string
	// ManagedBy restricts the result to the given admin and the clients it
	// created. Zero means no restriction.
	ManagedBy int64
	// JoinedSince keeps users who joined at or after the given time.
	JoinedSince *time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, u models.User) (models.User, error)
	GetUser(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByConfirmationToken(ctx context.Context, token string) (models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	ListUsers(ctx context.Context, f UserFilter) ([]models.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, s models.Session) (models.Session, error)
	GetSessionByHash(ctx context.Context, hash string) (models.Session, error)
	DeleteSessionByHash(ctx context.Context, hash string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type AddressStore interface {
	// ListAddresses returns the user's addresses, defaults first.
	ListAddresses(ctx context.Context, userID int64) ([]models.Address, error)
	GetAddress(ctx context.Context, userID, id int64) (models.Address, error)
	// SaveAddress inserts (ID == 0) or updates an address. A default address
	// clears the default flag on the user's other addresses of that type.
	SaveAddress(ctx context.Context, a models.Address) (models.Address, error)
	DeleteAddress(ctx context.Context, userID, id int64) error
}

const (
	SortNewest    = "newest"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

type ProductFilter struct {
	Search      string
	CategoryID  int64
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Status      models.ProductStatus
	InStockOnly bool
	OutOfStock  bool
	Featured    bool
	ExcludeID   int64
	Sort        string
	Limit       int
	Offset      int
}

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (models.Category, error)
	CreateCategory(ctx context.Context, c models.Category) (models.Category, error)
	UpdateCategory(ctx context.Context, c models.Category) (models.Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	// ListProducts returns one page of products and the total match count.
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product) (models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	AddMedia(ctx context.Context, m models.ProductMedia) (models.ProductMedia, error)
	DeleteMedia(ctx context.Context, productID, mediaID int64) error
}

type StockAlertStore interface {
	CreateStockAlert(ctx context.Context, a models.StockAlert) (models.StockAlert, error)
	// DueStockAlerts returns unnotified alerts whose product is back in stock.
	DueStockAlerts(ctx context.Context) ([]models.StockAlert, error)
	MarkStockAlertNotified(ctx context.Context, id int64, at time.Time) error
}

type OrderFilter struct {
	CustomerID    int64
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	// Search matches the order number or the customer email.
	Search    string
	Since     *time.Time
	Until     *time.Time
	WithItems bool
	Limit     int
}

type OrderStore interface {
	// PlaceOrder reserves stock for every catalog-backed item, inserts the
	// order with its items and note, and updates the customer's order
	// statistics, all or nothing. A shortage yields a *StockError.
	PlaceOrder(ctx context.Context, o models.Order, note *models.OrderNote) (models.Order, error)
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	GetOrderByNumber(ctx context.Context, number string) (models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	// ChangeOrderStatus applies a workflow transition. Cancelling restores
	// the stock of catalog-backed items.
	ChangeOrderStatus(ctx context.Context, id int64, next models.OrderStatus, at time.Time) (models.Order, error)
	ChangePaymentStatus(ctx context.Context, id int64, next models.PaymentStatus, at time.Time) (models.Order, error)
	SetTrackingNumber(ctx context.Context, id int64, tracking string) (models.Order, error)
	AddOrderNote(ctx context.Context, n models.OrderNote) (models.OrderNote, error)
	MarkEmailSent(ctx context.Context, id int64) error
}

type NotificationFilter struct {
	UserID int64
	// Archived selects archived (true) or live (false) notifications.
	Archived   bool
	UnreadOnly bool
	Type       models.NotificationType
	Search     string
	Since      *time.Time
	Limit      int
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	GetNotification(ctx context.Context, userID, id int64) (models.Notification, error)
	ListNotifications(ctx context.Context, f NotificationFilter) ([]models.Notification, error)
	UpdateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID int64, at time.Time) (int64, error)
	DeleteNotification(ctx context.Context, userID, id int64) error
	// ClearNotifications deletes the user's live notifications.
	ClearNotifications(ctx context.Context, userID int64) (int64, error)
}

type PostFilter struct {
	Status   models.PostStatus
	AuthorID int64
	Limit    int
	Offset   int
}

type BlogStore interface {
	ListBlogCategories(ctx context.Context, activeOnly bool) ([]models.BlogCategory, error)
	CreateBlogCategory(ctx context.Context, c models.BlogCategory) (models.BlogCategory, error)
	ListTags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, t models.Tag) (models.Tag, error)

	// SlugTaken reports whether a slug is used by a post, a blog category or
	// a tag, depending on kind ("post", "category", "tag").
	SlugTaken(ctx context.Context, kind, slug string) (bool, error)

	CreatePost(ctx context.Context, p models.BlogPost) (models.BlogPost, error)
	UpdatePost(ctx context.Context, p models.BlogPost) (models.BlogPost, error)
	DeletePost(ctx context.Context, id int64) error
	GetPost(ctx context.Context, id int64) (models.BlogPost, error)
	GetPostBySlug(ctx context.Context, slug string) (models.BlogPost, error)
	// ListPosts returns posts newest first (published date for published
	// posts, creation date otherwise) and the total count.
	ListPosts(ctx context.Context, f PostFilter) ([]models.BlogPost, int, error)
	IncrementPostViews(ctx context.Context, id int64) error

	CreateComment(ctx context.Context, c models.Comment) (models.Comment, error)
	ListComments(ctx context.Context, postID int64, approvedOnly bool) ([]models.Comment, error)
}

type ContactStore interface {
	CreateContactMessage(ctx context.Context, m models.ContactMessage) (models.ContactMessage, error)
	ListContactMessages(ctx context.Context) ([]models.ContactMessage, error)
	// SubscribeNewsletter returns the subscription for email, creating it
	// when missing. created reports whether a row was inserted.
	SubscribeNewsletter(ctx context.Context, email string, at time.Time) (sub models.NewsletterSubscription, created bool, err error)
}

type ArtisanFilter struct {
	RegionID    int64
	CraftTypeID int64
	Search      string
	ActiveOnly  bool
	ExcludeID   int64
	Limit       int
	Offset      int
}

type ArtisanStore interface {
	ListRegions(ctx context.Context) ([]models.Region, error)
	GetRegionBySlug(ctx context.Context, slug string) (models.Region, error)
	CreateRegion(ctx context.Context, r models.Region) (models.Region, error)
	ListCraftTypes(ctx context.Context) ([]models.CraftType, error)
	GetCraftType(ctx context.Context, id int64) (models.CraftType, error)
	GetCraftTypeBySlug(ctx context.Context, slug string) (models.CraftType, error)
	CreateCraftType(ctx context.Context, c models.CraftType) (models.CraftType, error)

	ListArtisans(ctx context.Context, f ArtisanFilter) ([]models.Artisan, int, error)
	GetArtisan(ctx context.Context, id int64) (models.Artisan, error)
	CreateArtisan(ctx context.Context, a models.Artisan) (models.Artisan, error)

	CreateApplication(ctx context.Context, a models.ArtisanApplication) (models.ArtisanApplication, error)
	ListApplications(ctx context.Context) ([]models.ArtisanApplication, error)
	GetApplication(ctx context.Context, id int64) (models.ArtisanApplication, error)
	UpdateApplicationStatus(ctx context.Context, id int64, status models.ApplicationStatus) (models.ArtisanApplication, error)
}

type AboutStore interface {
	GetAboutContent(ctx context.Context) (models.AboutContent, error)
	// SaveAboutContent writes the single about page block, creating it on
	// first use.
	SaveAboutContent(ctx context.Context, c models.AboutContent) (models.AboutContent, error)
	ListAboutItems(ctx context.Context, activeOnly bool) ([]models.AboutItem, error)
	CreateAboutItem(ctx context.Context, it models.AboutItem) (models.AboutItem, error)
}

// Store is everything the HTTP layer and the background jobs need.
type Store interface {
	UserStore
	SessionStore
	AddressStore
	CatalogStore
	StockAlertStore
	OrderStore
	NotificationStore
	BlogStore
	ContactStore
	ArtisanStore
	AboutStore
}
