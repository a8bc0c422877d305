package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"artisanat/apperr"
	"artisanat/logging"
	"artisanat/models"
	"artisanat/storage"
)

const unreadPreview = 5

type NotificationHandler struct {
	*Deps
}

type notificationView struct {
	models.Notification
	RelatedOrder *models.Order `json:"related_order,omitempty"`
}

type unreadItem struct {
	ID        int64                   `json:"id"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Type      models.NotificationType `json:"type"`
	Icon      string                  `json:"icon"`
	ActionURL *string                 `json:"action_url,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// periodStart resolves the time filter of the notification list. Weeks start
// on Monday.
func periodStart(period string, now time.Time) (*time.Time, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var since time.Time
	switch period {
	case "", "all":
		return nil, nil
	case "today":
		since = today
	case "week":
		offset := (int(today.Weekday()) + 6) % 7
		since = today.AddDate(0, 0, -offset)
	case "month":
		since = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return nil, apperr.Validation(map[string]string{"time": "must be one of: all today week month"})
	}
	return &since, nil
}

func (h *NotificationHandler) relatedOrder(ctx context.Context, n models.Notification) *models.Order {
	if n.RelatedObjectID == nil || n.RelatedObjectType == nil || *n.RelatedObjectType != "order" {
		return nil
	}
	o, err := h.Store.GetOrder(ctx, *n.RelatedObjectID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.FromContext(ctx, h.Log).Warn("load notification order", zap.Int64("order_id", *n.RelatedObjectID), zap.Error(err))
		}
		return nil
	}
	return &o
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	q := r.URL.Query()

	f := storage.NotificationFilter{UserID: u.ID, Search: strings.TrimSpace(q.Get("search"))}
	switch filter := q.Get("filter"); filter {
	case "", "all":
	case "unread":
		f.UnreadOnly = true
	case string(models.NotifyOrder), string(models.NotifyStock), string(models.NotifySystem):
		f.Type = models.NotificationType(filter)
	default:
		h.writeError(w, r, apperr.Validation(map[string]string{"filter": "must be one of: all unread order stock system"}))
		return
	}
	since, err := periodStart(q.Get("time"), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f.Since = since

	list, err := h.Notify.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]notificationView, 0, len(list))
	for _, n := range list {
		views = append(views, notificationView{Notification: n, RelatedOrder: h.relatedOrder(r.Context(), n)})
	}

	all, err := h.Notify.List(r.Context(), storage.NotificationFilter{UserID: u.ID})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	typeCounts := make(map[models.NotificationType]int, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		typeCounts[t] = 0
	}
	for _, n := range all {
		typeCounts[n.Type]++
	}
	unread, err := h.Notify.UnreadCount(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": views,
		"unread_count":  unread,
		"total_count":   len(all),
		"type_counts":   typeCounts,
	})
}

func (h *NotificationHandler) Unread(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	list, err := h.Notify.List(r.Context(), storage.NotificationFilter{UserID: u.ID, UnreadOnly: true, Limit: unreadPreview})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := h.Notify.UnreadCount(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]unreadItem, 0, len(list))
	for _, n := range list {
		items = append(items, unreadItem{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Icon:      models.NotificationIcon(string(n.Type)),
			ActionURL: n.ActionURL,
			CreatedAt: n.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items, "unread_count": count})
}

func (h *NotificationHandler) Detail(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Notify.Open(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationView{Notification: n, RelatedOrder: h.relatedOrder(r.Context(), n)})
}

func (h *NotificationHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Notify.Toggle(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": n.ID, "is_read": n.IsRead})
}

func (h *NotificationHandler) Archive(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Notify.Archive(r.Context(), u.ID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NotificationHandler) ReadAll(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	n, err := h.Notify.MarkAllRead(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.Notify.Delete(r.Context(), u.ID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	n, err := h.Notify.Clear(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

// Socket upgrades the connection and streams the caller's new
// notifications until either side closes.
func (h *NotificationHandler) Socket(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	if err := h.Hub.Serve(w, r, u.ID); err != nil {
		logging.FromContext(r.Context(), h.Log).Debug("notification socket closed", zap.Error(err))
	}
}
