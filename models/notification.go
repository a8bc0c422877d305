package models

import "time"

type NotificationType string

const (
	NotifyOrder  NotificationType = "order"
	NotifyStock  NotificationType = "stock"
	NotifySystem NotificationType = "system"
)

var NotificationTypes = []NotificationType{NotifyOrder, NotifyStock, NotifySystem}

type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelSuccess NotificationLevel = "success"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

const DefaultNotificationIcon = "fas fa-bell"

type Notification struct {
	ID      int64             `json:"id" db:"id"`
	UserID  int64             `json:"user_id" db:"user_id"`
	Title   string            `json:"title" db:"title"`
	Message string            `json:"message" db:"message"`
	Type    NotificationType  `json:"type" db:"type"`
	Level   NotificationLevel `json:"level" db:"level"`

	IsRead     bool `json:"is_read" db:"is_read"`
	IsArchived bool `json:"is_archived" db:"is_archived"`

	RelatedObjectID   *int64  `json:"related_object_id,omitempty" db:"related_object_id"`
	RelatedObjectType *string `json:"related_object_type,omitempty" db:"related_object_type"`
	ActionURL         *string `json:"action_url,omitempty" db:"action_url"`
	Icon              string  `json:"icon" db:"icon"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty" db:"read_at"`
	ArchivedAt *time.Time `json:"archived_at,omitempty" db:"archived_at"`
}

func (n *Notification) MarkRead(now time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &now
}

func (n *Notification) MarkUnread() {
	n.IsRead = false
	n.ReadAt = nil
}

func (n *Notification) Archive(now time.Time) {
	if n.IsArchived {
		return
	}
	n.IsArchived = true
	n.ArchivedAt = &now
}

// NotificationIcon returns the font-awesome icon shown in the unread
// dropdown for a notification type.
func NotificationIcon(t string) string {
	switch t {
	case "order":
		return "fa-shopping-bag"
	case "stock":
		return "fa-box"
	case "system":
		return "fa-cog"
	case "customer":
		return "fa-user"
	case "payment":
		return "fa-credit-card"
	}
	return "fa-bell"
}
