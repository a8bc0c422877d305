// Package notify creates back-office notifications, keeps the unread counters
// cached and pushes new notifications to connected staff.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"artisanat/cache"
	"artisanat/models"
	"artisanat/storage"
)

const unreadTTL = 5 * time.Minute

type Store interface {
	ListUsers(ctx context.Context, f storage.UserFilter) ([]models.User, error)
	storage.NotificationStore
}

// Event is the websocket payload sent for each new notification.
type Event struct {
	Type         string              `json:"type"`
	Notification models.Notification `json:"notification"`
	UnreadCount  int                 `json:"unread_count"`
}

type Service struct {
	store Store
	hub   *Hub
	cache cache.Cache
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, hub *Hub, c cache.Cache, log *zap.Logger) *Service {
	if c == nil {
		c = cache.NewMemory()
	}
	return &Service{store: store, hub: hub, cache: c, log: log, now: time.Now}
}

func unreadKey(userID int64) string {
	return fmt.Sprintf("notif:unread:%d", userID)
}

// Create stores n and pushes it to the recipient's open connections.
func (s *Service) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	if n.Icon == "" {
		n.Icon = models.DefaultNotificationIcon
	}
	if n.Level == "" {
		n.Level = models.LevelInfo
	}
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}
	s.invalidate(ctx, created.UserID)

	if s.hub != nil {
		unread, err := s.UnreadCount(ctx, created.UserID)
		if err != nil {
			s.log.Warn("unread count failed", zap.Int64("user_id", created.UserID), zap.Error(err))
		}
		s.hub.Publish(created.UserID, Event{Type: "notification", Notification: created, UnreadCount: unread})
	}
	return created, nil
}

func (s *Service) staff(ctx context.Context) ([]models.User, error) {
	active := true
	return s.store.ListUsers(ctx, storage.UserFilter{
		Types:  []models.UserType{models.UserAdmin, models.UserSuperAdmin},
		Active: &active,
	})
}

// fanOut sends a copy of tmpl to every active staff member. It keeps going
// after a failed recipient and reports all failures.
func (s *Service) fanOut(ctx context.Context, tmpl models.Notification) error {
	users, err := s.staff(ctx)
	if err != nil {
		return fmt.Errorf("list staff: %w", err)
	}
	var errs []error
	for _, u := range users {
		n := tmpl
		n.UserID = u.ID
		if _, err := s.Create(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

func orderNotification(o models.Order) models.Notification {
	id := o.ID
	kind := "order"
	url := "/orders/confirmation/" + o.OrderNumber
	return models.Notification{
		Type:              models.NotifyOrder,
		RelatedObjectID:   &id,
		RelatedObjectType: &kind,
		ActionURL:         &url,
	}
}

func (s *Service) OrderPlaced(ctx context.Context, o models.Order) error {
	n := orderNotification(o)
	n.Title = "Nouvelle commande"
	n.Message = fmt.Sprintf("Une nouvelle commande #%s a été passée pour un montant de %s €.", o.OrderNumber, o.TotalAmount.StringFixed(2))
	n.Level = models.LevelSuccess
	n.Icon = "fas fa-shopping-bag"
	return s.fanOut(ctx, n)
}

func (s *Service) OrderCancelled(ctx context.Context, o models.Order) error {
	n := orderNotification(o)
	n.Title = "Commande annulée"
	n.Message = fmt.Sprintf("La commande #%s a été annulée.", o.OrderNumber)
	n.Level = models.LevelWarning
	n.Icon = "fas fa-times-circle"
	return s.fanOut(ctx, n)
}

func (s *Service) OutOfStock(ctx context.Context, p models.Product) error {
	id := p.ID
	kind := "product"
	return s.fanOut(ctx, models.Notification{
		Title:             "Rupture de stock",
		Message:           fmt.Sprintf("Le produit %s n'est plus en stock.", p.Name),
		Type:              models.NotifyStock,
		Level:             models.LevelWarning,
		Icon:              "fas fa-box",
		RelatedObjectID:   &id,
		RelatedObjectType: &kind,
	})
}

// UnreadCount returns the number of live unread notifications of userID.
func (s *Service) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	if ok, err := cache.GetJSON(ctx, s.cache, unreadKey(userID), &count); err == nil && ok {
		return count, nil
	}
	unread, err := s.store.ListNotifications(ctx, storage.NotificationFilter{UserID: userID, UnreadOnly: true})
	if err != nil {
		return 0, err
	}
	count = len(unread)
	if err := cache.SetJSON(ctx, s.cache, unreadKey(userID), count, unreadTTL); err != nil {
		s.log.Debug("cache unread count", zap.Error(err))
	}
	return count, nil
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if err := s.cache.Delete(ctx, unreadKey(userID)); err != nil {
		s.log.Debug("invalidate unread count", zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, f storage.NotificationFilter) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, f)
}

// Open returns a notification of userID and marks it read.
func (s *Service) Open(ctx context.Context, userID, id int64) (models.Notification, error) {
	n, err := s.store.GetNotification(ctx, userID, id)
	if err != nil {
		return models.Notification{}, err
	}
	if n.IsRead {
		return n, nil
	}
	n.MarkRead(s.now())
	return s.update(ctx, n)
}

func (s *Service) Toggle(ctx context.Context, userID, id int64) (models.Notification, error) {
	n, err := s.store.GetNotification(ctx, userID, id)
	if err != nil {
		return models.Notification{}, err
	}
	if n.IsRead {
		n.MarkUnread()
	} else {
		n.MarkRead(s.now())
	}
	return s.update(ctx, n)
}

func (s *Service) Archive(ctx context.Context, userID, id int64) (models.Notification, error) {
	n, err := s.store.GetNotification(ctx, userID, id)
	if err != nil {
		return models.Notification{}, err
	}
	n.Archive(s.now())
	return s.update(ctx, n)
}

func (s *Service) update(ctx context.Context, n models.Notification) (models.Notification, error) {
	updated, err := s.store.UpdateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, err
	}
	s.invalidate(ctx, n.UserID)
	return updated, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}

func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteNotification(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) Clear(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.ClearNotifications(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx, userID)
	return n, nil
}
