// Package handlers is the JSON HTTP API of the storefront and its back
// office.
package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"artisanat/auth"
	"artisanat/checkout"
	"artisanat/config"
	"artisanat/dashboard"
	"artisanat/mailer"
	"artisanat/metrics"
	"artisanat/notify"
	"artisanat/storage"
)

// Deps carries everything the handlers share.
type Deps struct {
	Store     storage.Store
	Tokens    *auth.Tokens
	Mailer    mailer.Mailer
	Checkout  *checkout.Service
	Notify    *notify.Service
	Hub       *notify.Hub
	Dashboard *dashboard.Service
	Limiter   *RateLimiter
	Proxies   *Proxies
	Config    *config.Config
	Log       *zap.Logger
	Now       func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func NewRouter(d *Deps) http.Handler {
	authH := &AuthHandler{d}
	users := &UserHandler{d}
	products := &ProductHandler{d}
	orders := &OrderHandler{d}
	notifs := &NotificationHandler{d}
	blog := &BlogHandler{d}
	contact := &ContactHandler{d}
	artisans := &ArtisanHandler{d}
	about := &AboutHandler{d}

	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Handler(h)
	}

	r := mux.NewRouter()
	r.Use(metrics.Instrument, Recover(d.Log))

	r.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"service": "artisanat", "status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	a := r.PathPrefix("/auth").Subrouter()
	a.Use(d.authenticate)
	a.Handle("/register", limited(authH.Register)).Methods(http.MethodPost)
	a.HandleFunc("/confirm/{token}", authH.ConfirmEmail).Methods(http.MethodGet)
	a.Handle("/login", limited(authH.Login)).Methods(http.MethodPost)
	a.HandleFunc("/logout", authH.Logout).Methods(http.MethodPost)
	a.Handle("/password/forgot", limited(authH.ForgotPassword)).Methods(http.MethodPost)
	a.Handle("/password/reset/{token}", limited(authH.ResetPassword)).Methods(http.MethodPost)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(d.authenticate, requireStaff)
	ws.HandleFunc("/notifications", notifs.Socket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(d.authenticate)

	api.HandleFunc("/home", products.Home).Methods(http.MethodGet)
	api.HandleFunc("/products", products.List).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", products.Detail).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}/stock", products.Stock).Methods(http.MethodGet)
	api.Handle("/products/{id:[0-9]+}/alerts", limited(products.SubscribeAlert)).Methods(http.MethodPost)
	api.HandleFunc("/categories", products.Categories).Methods(http.MethodGet)

	api.HandleFunc("/blog/posts", blog.List).Methods(http.MethodGet)
	api.HandleFunc("/blog/posts/{slug}", blog.Detail).Methods(http.MethodGet)
	api.Handle("/blog/posts/{slug}/comments", requireAuth(http.HandlerFunc(blog.Comment))).Methods(http.MethodPost)

	api.Handle("/contact", limited(contact.Submit)).Methods(http.MethodPost)
	api.Handle("/newsletter", limited(contact.Subscribe)).Methods(http.MethodPost)

	api.HandleFunc("/artisans", artisans.List).Methods(http.MethodGet)
	api.Handle("/artisans/applications", limited(artisans.Apply)).Methods(http.MethodPost)
	api.HandleFunc("/artisans/{id:[0-9]+}", artisans.Detail).Methods(http.MethodGet)
	api.Handle("/artisans/{id:[0-9]+}/contact", limited(artisans.Contact)).Methods(http.MethodPost)

	api.HandleFunc("/about", about.Page).Methods(http.MethodGet)

	api.Handle("/checkout", requireAuth(http.HandlerFunc(orders.Checkout))).Methods(http.MethodPost)
	api.Handle("/checkout/confirmation/{number}", requireAuth(http.HandlerFunc(orders.Confirmation))).Methods(http.MethodGet)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(requireAuth)
	me.HandleFunc("", authH.Me).Methods(http.MethodGet)
	me.HandleFunc("", authH.UpdateProfile).Methods(http.MethodPatch)
	me.HandleFunc("/password", authH.ChangePassword).Methods(http.MethodPost)
	me.HandleFunc("/orders", orders.Mine).Methods(http.MethodGet)
	me.HandleFunc("/orders/{id:[0-9]+}", orders.MyOrder).Methods(http.MethodGet)
	me.HandleFunc("/orders/{id:[0-9]+}/invoice", orders.Invoice).Methods(http.MethodGet)
	me.HandleFunc("/addresses", users.Addresses).Methods(http.MethodGet)
	me.HandleFunc("/addresses", users.CreateAddress).Methods(http.MethodPost)
	me.HandleFunc("/addresses/by-type", users.AddressesByType).Methods(http.MethodGet)
	me.HandleFunc("/addresses/default", users.DefaultAddresses).Methods(http.MethodGet)
	me.HandleFunc("/addresses/{id:[0-9]+}", users.Address).Methods(http.MethodGet)
	me.HandleFunc("/addresses/{id:[0-9]+}", users.UpdateAddress).Methods(http.MethodPut, http.MethodPatch)
	me.HandleFunc("/addresses/{id:[0-9]+}", users.DeleteAddress).Methods(http.MethodDelete)
	me.HandleFunc("/posts", blog.MyPosts).Methods(http.MethodGet)
	me.HandleFunc("/posts", blog.Create).Methods(http.MethodPost)
	me.HandleFunc("/posts/{id:[0-9]+}", blog.MyPost).Methods(http.MethodGet)
	me.HandleFunc("/posts/{id:[0-9]+}", blog.Update).Methods(http.MethodPut)
	me.HandleFunc("/posts/{id:[0-9]+}", blog.Delete).Methods(http.MethodDelete)
	me.HandleFunc("/posts/{id:[0-9]+}/preview", blog.Preview).Methods(http.MethodGet)

	adm := api.PathPrefix("/admin").Subrouter()
	adm.Use(requireStaff)

	adm.HandleFunc("/dashboard", func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Dashboard.Stats(r.Context())
		if err != nil {
			d.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}).Methods(http.MethodGet)

	adm.HandleFunc("/users", users.List).Methods(http.MethodGet)
	adm.HandleFunc("/users", users.Create).Methods(http.MethodPost)
	adm.HandleFunc("/users/{id:[0-9]+}", users.Get).Methods(http.MethodGet)
	adm.HandleFunc("/users/{id:[0-9]+}", users.Update).Methods(http.MethodPut, http.MethodPatch)
	adm.HandleFunc("/users/{id:[0-9]+}", users.Delete).Methods(http.MethodDelete)
	adm.HandleFunc("/users/{id:[0-9]+}/monthly-spending", users.MonthlySpending).Methods(http.MethodGet)
	adm.HandleFunc("/users/{id:[0-9]+}/detail", users.CustomerDetail).Methods(http.MethodGet)

	adm.HandleFunc("/categories", products.Categories).Methods(http.MethodGet)
	adm.HandleFunc("/categories", products.CreateCategory).Methods(http.MethodPost)
	adm.HandleFunc("/categories/{id:[0-9]+}", products.UpdateCategory).Methods(http.MethodPut)
	adm.HandleFunc("/categories/{id:[0-9]+}", products.DeleteCategory).Methods(http.MethodDelete)
	adm.HandleFunc("/products", products.AdminList).Methods(http.MethodGet)
	adm.HandleFunc("/products", products.Create).Methods(http.MethodPost)
	adm.HandleFunc("/products/{id:[0-9]+}", products.AdminGet).Methods(http.MethodGet)
	adm.HandleFunc("/products/{id:[0-9]+}", products.Update).Methods(http.MethodPut)
	adm.HandleFunc("/products/{id:[0-9]+}", products.Delete).Methods(http.MethodDelete)
	adm.HandleFunc("/products/{id:[0-9]+}/media", products.AddMedia).Methods(http.MethodPost)
	adm.HandleFunc("/products/{id:[0-9]+}/media/{media:[0-9]+}", products.DeleteMedia).Methods(http.MethodDelete)

	adm.HandleFunc("/orders", orders.AdminList).Methods(http.MethodGet)
	adm.HandleFunc("/orders/batch", orders.Batch).Methods(http.MethodPost)
	adm.HandleFunc("/orders/export/{format:csv|xlsx|pdf}", orders.Export).Methods(http.MethodGet)
	adm.HandleFunc("/orders/{id:[0-9]+}", orders.AdminDetail).Methods(http.MethodGet)
	adm.HandleFunc("/orders/{id:[0-9]+}/status", orders.ChangeStatus).Methods(http.MethodPost)
	adm.HandleFunc("/orders/{id:[0-9]+}/payment-status", orders.ChangePaymentStatus).Methods(http.MethodPost)
	adm.HandleFunc("/orders/{id:[0-9]+}/tracking", orders.Tracking).Methods(http.MethodPost)
	adm.HandleFunc("/orders/{id:[0-9]+}/notes", orders.AddNote).Methods(http.MethodPost)

	adm.HandleFunc("/notifications", notifs.List).Methods(http.MethodGet)
	adm.HandleFunc("/notifications/unread", notifs.Unread).Methods(http.MethodGet)
	adm.HandleFunc("/notifications/read-all", notifs.ReadAll).Methods(http.MethodPost)
	adm.HandleFunc("/notifications/clear", notifs.Clear).Methods(http.MethodPost)
	adm.HandleFunc("/notifications/{id:[0-9]+}", notifs.Detail).Methods(http.MethodGet)
	adm.HandleFunc("/notifications/{id:[0-9]+}", notifs.Delete).Methods(http.MethodDelete)
	adm.HandleFunc("/notifications/{id:[0-9]+}/toggle", notifs.Toggle).Methods(http.MethodPost)
	adm.HandleFunc("/notifications/{id:[0-9]+}/archive", notifs.Archive).Methods(http.MethodPost)

	adm.HandleFunc("/blog/posts", blog.AdminList).Methods(http.MethodGet)
	adm.HandleFunc("/blog/posts/{id:[0-9]+}/publish", blog.Publish).Methods(http.MethodPost)
	adm.HandleFunc("/blog/posts/{id:[0-9]+}/archive", blog.Archive).Methods(http.MethodPost)
	adm.HandleFunc("/blog/categories", blog.Categories).Methods(http.MethodGet)
	adm.HandleFunc("/blog/categories", blog.CreateCategory).Methods(http.MethodPost)
	adm.HandleFunc("/blog/tags", blog.Tags).Methods(http.MethodGet)
	adm.HandleFunc("/blog/tags", blog.CreateTag).Methods(http.MethodPost)

	adm.HandleFunc("/contacts", contact.List).Methods(http.MethodGet)

	adm.HandleFunc("/artisans", artisans.Create).Methods(http.MethodPost)
	adm.HandleFunc("/regions", artisans.Regions).Methods(http.MethodGet)
	adm.HandleFunc("/regions", artisans.CreateRegion).Methods(http.MethodPost)
	adm.HandleFunc("/craft-types", artisans.CraftTypes).Methods(http.MethodGet)
	adm.HandleFunc("/craft-types", artisans.CreateCraftType).Methods(http.MethodPost)
	adm.HandleFunc("/applications", artisans.Applications).Methods(http.MethodGet)
	adm.HandleFunc("/applications/{id:[0-9]+}/status", artisans.ChangeStatus).Methods(http.MethodPost)

	adm.HandleFunc("/about/content", about.SaveContent).Methods(http.MethodPut, http.MethodPost)
	adm.HandleFunc("/about/items", about.CreateItem).Methods(http.MethodPost)

	cors := NewCORS(d.Config.Origins())
	return Trace(d.Log)(cors.Handler(r))
}
