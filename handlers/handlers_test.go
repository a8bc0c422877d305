package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"artisanat/auth"
	"artisanat/checkout"
	"artisanat/config"
	"artisanat/dashboard"
	"artisanat/mailer"
	"artisanat/models"
	"artisanat/notify"
	"artisanat/storage"
)

const testPassword = "s3cret-pass"

var fixedNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

type testEnv struct {
	store  *storage.Memory
	mail   *mailer.Memory
	deps   *Deps
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemory()
	mail := &mailer.Memory{}
	log := zap.NewNop()
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		TokenTTL:       time.Hour,
		SiteURL:        "http://shop.test",
		AdminEmail:     "admin@shop.test",
		CORSOrigins:    "http://front.test",
		TaxRate:        0.2,
		DevMode:        true,
		CompanyName:    "Afro Artisanat",
		CompanyAddress: "12 rue des Artisans 75011 Paris",
		SupportContact: "contact@shop.test",
	}
	hub := notify.NewHub(log, cfg.Origins())
	notifier := notify.NewService(store, hub, nil, log)
	now := func() time.Time { return fixedNow }

	d := &Deps{
		Store:  store,
		Tokens: auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		Mailer: mail,
		Checkout: &checkout.Service{
			Store: store,
			Pricing: checkout.Pricing{
				TaxRate:          decimal.RequireFromString("0.2"),
				ShippingFlat:     decimal.RequireFromString("5"),
				FreeShippingOver: decimal.RequireFromString("100"),
			},
			DeliveryDays: 5,
			Notifier:     notifier,
			Log:          log,
			Now:          now,
		},
		Notify:    notifier,
		Hub:       hub,
		Dashboard: dashboard.NewService(store, nil, log),
		Config:    cfg,
		Log:       log,
		Now:       now,
	}
	return &testEnv{store: store, mail: mail, deps: d, router: NewRouter(d)}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// user stores a confirmed, active account with testPassword.
func (e *testEnv) user(t *testing.T, email string, kind models.UserType) models.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	u, err := e.store.CreateUser(context.Background(), models.User{
		Email:          email,
		FirstName:      "Awa",
		LastName:       "Diop",
		UserType:       kind,
		PasswordHash:   hash,
		AccountStatus:  true,
		EmailConfirmed: true,
	})
	require.NoError(t, err)
	return u
}

// login opens a session for u the same way the login endpoint does.
func (e *testEnv) login(t *testing.T, u models.User) string {
	t.Helper()
	token, exp, err := e.deps.Tokens.Issue(u)
	require.NoError(t, err)
	_, err = e.store.CreateSession(context.Background(), models.Session{
		UserID:    u.ID,
		TokenHash: auth.HashToken(token),
		ExpiresAt: exp,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return token
}

func (e *testEnv) product(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	ctx := context.Background()
	cats, err := e.store.ListCategories(ctx)
	require.NoError(t, err)
	var catID int64
	if len(cats) > 0 {
		catID = cats[0].ID
	} else {
		c, err := e.store.CreateCategory(ctx, models.Category{Name: "Vannerie", Color: models.DefaultCategoryColor})
		require.NoError(t, err)
		catID = c.ID
	}
	p, err := e.store.CreateProduct(ctx, models.Product{
		CategoryID: catID,
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Stock:      stock,
		Status:     models.ProductActive,
	})
	require.NoError(t, err)
	return p
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegisterConfirmLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"first_name":       "Fatou",
		"last_name":        "Sow",
		"email":            " Fatou@Example.com ",
		"password":         testPassword,
		"password_confirm": testPassword,
		"street_address":   "3 rue Myrha",
		"city":             "Paris",
		"postal_code":      "75018",
		"country":          "France",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	u, err := e.store.GetUserByEmail(context.Background(), "fatou@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.UserClient, u.UserType)
	assert.False(t, u.EmailConfirmed)
	require.NotNil(t, u.EmailConfirmationToken)

	addrs, err := e.store.ListAddresses(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, models.AddressBoth, addrs[0].AddressType)
	assert.True(t, addrs[0].IsDefault)

	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, mailer.KindConfirmEmail, sent[0].Kind)
	assert.Contains(t, sent[0].HTML, "http://shop.test/accounts/confirm/"+*u.EmailConfirmationToken)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "fatou@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token := *u.EmailConfirmationToken
	rec = e.do(t, http.MethodGet, "/auth/confirm/"+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/auth/confirm/"+token, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "fatou@example.com", "password": "wrong-pass1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "FATOU@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	jwt, _ := body["token"].(string)
	require.NotEmpty(t, jwt)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	me := httptest.NewRecorder()
	e.router.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "fatou@example.com", decodeBody(t, me)["email"])

	rec = e.do(t, http.MethodPost, "/auth/logout", jwt, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/me", jwt, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterRejectsDuplicateEmailAndWeakPassword(t *testing.T) {
	e := newTestEnv(t)
	e.user(t, "awa@example.com", models.UserClient)

	rec := e.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"first_name": "Awa", "last_name": "Diop", "email": "awa@example.com",
		"password": testPassword, "password_confirm": testPassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/register", "", map[string]any{
		"first_name": "Ali", "last_name": "Ba", "email": "ali@example.com",
		"password": testPassword, "password_confirm": "different-pass1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "password_confirm")

	rec = e.do(t, http.MethodPost, "/auth/register", "", map[string]any{"email": "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields, _ = decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "first_name")
	assert.Contains(t, fields, "email")
}

func TestPasswordResetFlow(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "awa@example.com", models.UserClient)

	rec := e.do(t, http.MethodPost, "/auth/password/forgot", "", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPost, "/auth/password/forgot", "", map[string]string{"email": u.Email})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := e.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordResetToken)
	require.NotNil(t, stored.PasswordResetExpires)
	assert.Equal(t, fixedNow.Add(time.Hour), *stored.PasswordResetExpires)

	path := "/auth/password/reset/" + *stored.PasswordResetToken
	rec = e.do(t, http.MethodPost, path, "", map[string]string{"password": "n3w-password", "password_confirm": "n3w-password"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err = e.store.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PasswordResetToken)
	assert.True(t, auth.CheckPassword(stored.PasswordHash, "n3w-password"))

	rec = e.do(t, http.MethodPost, path, "", map[string]string{"password": "n3w-password", "password_confirm": "n3w-password"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpiredResetTokenIsGone(t *testing.T) {
	e := newTestEnv(t)
	u := e.user(t, "awa@example.com", models.UserClient)
	token := "expired-token"
	past := fixedNow.Add(-time.Minute)
	u.PasswordResetToken = &token
	u.PasswordResetExpires = &past
	_, err := e.store.UpdateUser(context.Background(), u)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/auth/password/reset/"+token, "", map[string]string{"password": "n3w-password", "password_confirm": "n3w-password"})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestAccessControl(t *testing.T) {
	e := newTestEnv(t)
	client := e.login(t, e.user(t, "client@example.com", models.UserClient))
	admin := e.login(t, e.user(t, "admin@example.com", models.UserAdmin))

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/me/orders", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/admin/orders", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/admin/orders", client, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/orders", admin, nil).Code)

	// a bad token on a public route is treated as anonymous
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/products", "garbage", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/me", "garbage", nil).Code)
}

func TestAdminCanOnlyManageOwnClients(t *testing.T) {
	e := newTestEnv(t)
	admin := e.user(t, "admin@example.com", models.UserAdmin)
	token := e.login(t, admin)
	other := e.user(t, "other@example.com", models.UserClient)

	rec := e.do(t, http.MethodPost, "/api/admin/users", token, map[string]any{
		"email": "new@example.com", "first_name": "Nia", "last_name": "Kone",
		"user_type": "ADMIN", "password": testPassword, "password_confirm": testPassword,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/users", token, map[string]any{
		"email": "new@example.com", "first_name": "Nia", "last_name": "Kone",
		"user_type": "CLIENT", "password": testPassword, "password_confirm": testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody(t, rec)
	id := int64(created["id"].(float64))

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/admin/users/"+itoa(id), token, nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/admin/users/"+itoa(other.ID), token, nil).Code)

	rec = e.do(t, http.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// the admin and the client it created
	assert.EqualValues(t, 2, decodeBody(t, rec)["count"])
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
