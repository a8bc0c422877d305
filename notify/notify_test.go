package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"artisanat/cache"
	"artisanat/models"
	"artisanat/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedStaff(t *testing.T, store *storage.Memory) (admin, super models.User) {
	t.Helper()
	ctx := context.Background()
	var err error
	super, err = store.CreateUser(ctx, models.User{Email: "root@example.fr", UserType: models.UserSuperAdmin, AccountStatus: true})
	require.NoError(t, err)
	admin, err = store.CreateUser(ctx, models.User{Email: "admin@example.fr", UserType: models.UserAdmin, AccountStatus: true})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, models.User{Email: "old@example.fr", UserType: models.UserAdmin, AccountStatus: false})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, models.User{Email: "client@example.fr", UserType: models.UserClient, AccountStatus: true})
	require.NoError(t, err)
	return admin, super
}

func TestOrderPlacedFansOutToActiveStaff(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	admin, super := seedStaff(t, store)
	svc := NewService(store, nil, cache.NewMemory(), zap.NewNop())

	order := models.Order{ID: 42, OrderNumber: "CMD-0A1B2C3D", TotalAmount: decimal.RequireFromString("119")}
	require.NoError(t, svc.OrderPlaced(ctx, order))

	for _, u := range []models.User{admin, super} {
		list, err := svc.List(ctx, storage.NotificationFilter{UserID: u.ID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		n := list[0]
		assert.Equal(t, "Nouvelle commande", n.Title)
		assert.Equal(t, "Une nouvelle commande #CMD-0A1B2C3D a été passée pour un montant de 119.00 €.", n.Message)
		assert.Equal(t, models.NotifyOrder, n.Type)
		assert.Equal(t, models.LevelSuccess, n.Level)
		assert.Equal(t, "fas fa-shopping-bag", n.Icon)
		require.NotNil(t, n.ActionURL)
		assert.Equal(t, "/orders/confirmation/CMD-0A1B2C3D", *n.ActionURL)
		require.NotNil(t, n.RelatedObjectID)
		assert.EqualValues(t, 42, *n.RelatedObjectID)
	}
	assert.Len(t, store.Notifications, 2)
}

func TestCancelAndStockNotifications(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	admin, _ := seedStaff(t, store)
	svc := NewService(store, nil, nil, zap.NewNop())

	require.NoError(t, svc.OrderCancelled(ctx, models.Order{ID: 1, OrderNumber: "CMD-1"}))
	require.NoError(t, svc.OutOfStock(ctx, models.Product{ID: 9, Name: "Masque"}))

	cancelled, err := svc.List(ctx, storage.NotificationFilter{UserID: admin.ID, Type: models.NotifyOrder})
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, "Commande annulée", cancelled[0].Title)
	assert.Equal(t, "fas fa-times-circle", cancelled[0].Icon)
	assert.Equal(t, models.LevelWarning, cancelled[0].Level)

	stock, err := svc.List(ctx, storage.NotificationFilter{UserID: admin.ID, Type: models.NotifyStock})
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, "Rupture de stock", stock[0].Title)
	assert.Contains(t, stock[0].Message, "Masque")
}

func TestUnreadCountIsInvalidated(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	admin, _ := seedStaff(t, store)
	c := cache.NewMemory()
	svc := NewService(store, nil, c, zap.NewNop())

	first, err := svc.Create(ctx, models.Notification{UserID: admin.ID, Title: "a", Type: models.NotifySystem})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.Notification{UserID: admin.ID, Title: "b", Type: models.NotifySystem})
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	_, cached, _ := c.Get(ctx, unreadKey(admin.ID))
	assert.True(t, cached)

	opened, err := svc.Open(ctx, admin.ID, first.ID)
	require.NoError(t, err)
	assert.True(t, opened.IsRead)
	assert.NotNil(t, opened.ReadAt)

	count, err = svc.UnreadCount(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	toggled, err := svc.Toggle(ctx, admin.ID, first.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsRead)
	assert.Nil(t, toggled.ReadAt)

	n, err := svc.MarkAllRead(ctx, admin.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	count, err = svc.UnreadCount(ctx, admin.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOwnNotificationsOnly(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	admin, super := seedStaff(t, store)
	svc := NewService(store, nil, nil, zap.NewNop())

	n, err := svc.Create(ctx, models.Notification{UserID: admin.ID, Title: "x", Type: models.NotifySystem})
	require.NoError(t, err)

	_, err = svc.Open(ctx, super.ID, n.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, super.ID, n.ID), storage.ErrNotFound)

	archived, err := svc.Archive(ctx, admin.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	cleared, err := svc.Clear(ctx, admin.ID)
	require.NoError(t, err)
	assert.Zero(t, cleared)
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func TestHubPushesNewNotifications(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	admin, _ := seedStaff(t, store)
	hub := NewHub(zap.NewNop(), nil)
	svc := NewService(store, hub, nil, zap.NewNop())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, admin.ID)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Connections(admin.ID) == 1 }, time.Second, 10*time.Millisecond)

	_, err := svc.Create(ctx, models.Notification{UserID: admin.ID, Title: "Bonjour", Type: models.NotifySystem})
	require.NoError(t, err)

	var ev Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "notification", ev.Type)
	assert.Equal(t, "Bonjour", ev.Notification.Title)
	assert.Equal(t, 1, ev.UnreadCount)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connections(admin.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), []string{"https://shop.example.fr"})
	served := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(served)
		_ = hub.Serve(w, r, 7)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connections(7) == 1 }, time.Second, 10*time.Millisecond)

	hub.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	// answer the close frame so the server read loop returns
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Close")
	}
	assert.Zero(t, hub.Connections(7))
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zap.NewNop(), []string{"https://shop.example.fr"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 1)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHubWithoutOriginsAcceptsOnlyOwnHost(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, 1)
	}))
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{srv.URL}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Eventually(t, func() bool { return hub.Connections(1) == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.Connections(1) == 0 }, 2*time.Second, 10*time.Millisecond)
}
