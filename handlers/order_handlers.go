package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"artisanat/apperr"
	"artisanat/checkout"
	"artisanat/invoice"
	"artisanat/logging"
	"artisanat/models"
	"artisanat/storage"
)

const clearCartCookie = "clear_cart"

type OrderHandler struct {
	*Deps
}

// CheckoutRequest is the checkout form. The cart itself is read from the same
// body by checkout.ParseCart.
type CheckoutRequest struct {
	PaymentMethod        string `json:"payment_method"`
	StreetAddress        string `json:"street_address"`
	Apartment            string `json:"apartment"`
	City                 string `json:"city"`
	PostalCode           string `json:"postal_code"`
	Country              string `json:"country"`
	AddressID            int64  `json:"address_id"`
	DeliveryInstructions string `json:"delivery_instructions"`
	Phone                string `json:"phone"`
	Email                string `json:"email"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type PaymentStatusRequest struct {
	PaymentStatus string `json:"payment_status" validate:"required"`
}

type TrackingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=100"`
}

type NoteRequest struct {
	Note          string `json:"note" validate:"required"`
	AttachmentURL string `json:"attachment_url" validate:"omitempty,max=500"`
}

type BatchRequest struct {
	OrderIDs      []int64 `json:"order_ids" validate:"required,min=1"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
}

func (d *Deps) company() invoice.Company {
	return invoice.Company{
		Name:    d.Config.CompanyName,
		Address: d.Config.CompanyAddress,
		Legal:   d.Config.CompanyLegal,
		Support: d.Config.SupportContact,
	}
}

func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, apperr.BadRequest("could not read request body"))
		return
	}
	var req CheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, apperr.BadRequest("invalid JSON"))
		return
	}
	items, err := checkout.ParseCart(body)
	if err != nil {
		h.writeError(w, r, apperr.BadRequest(err.Error()))
		return
	}

	o, err := h.Deps.Checkout.Place(r.Context(), checkout.Request{
		Customer:      u,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		Items:         items,
		Address: checkout.Address{
			Street:     strings.TrimSpace(req.StreetAddress),
			Apartment:  strings.TrimSpace(req.Apartment),
			City:       strings.TrimSpace(req.City),
			PostalCode: strings.TrimSpace(req.PostalCode),
			Country:    strings.TrimSpace(req.Country),
		},
		AddressID:            req.AddressID,
		DeliveryInstructions: req.DeliveryInstructions,
		Phone:                strings.TrimSpace(req.Phone),
		Email:                strings.TrimSpace(req.Email),
		IPAddress:            h.Proxies.ClientIP(r),
		UserAgent:            r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: clearCartCookie, Value: "true", Path: "/", MaxAge: 60})
	writeJSON(w, http.StatusCreated, map[string]any{
		"order":   o,
		"message": "your order has been placed",
	})
}

// ownOrder loads an order of the signed-in customer. Other customers' orders
// are reported as missing.
func (h *OrderHandler) ownOrder(r *http.Request) (models.Order, error) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		return models.Order{}, err
	}
	o, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		return models.Order{}, err
	}
	if o.CustomerID != u.ID {
		return models.Order{}, apperr.NotFound("order not found")
	}
	return o, nil
}

func (h *OrderHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	o, err := h.Store.GetOrderByNumber(r.Context(), mux.Vars(r)["number"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if o.CustomerID != u.ID {
		h.writeError(w, r, apperr.NotFound("order not found"))
		return
	}
	resp := map[string]any{"order": o}
	if len(o.Items) == 0 {
		resp["warning"] = "no item found for this order"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	orders, err := h.Store.ListOrders(r.Context(), storage.OrderFilter{CustomerID: u.ID, WithItems: true})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) MyOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ownOrder(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Invoice(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	o, err := h.ownOrder(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := invoice.Render(&buf, o, u, h.company(), h.Config.TaxRateDecimal()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+invoice.Filename(o)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func orderFilter(r *http.Request) (storage.OrderFilter, error) {
	q := r.URL.Query()
	f := storage.OrderFilter{
		Status:        models.OrderStatus(q.Get("status")),
		PaymentStatus: models.PaymentStatus(q.Get("payment_status")),
		Search:        strings.TrimSpace(q.Get("search")),
	}
	fields := map[string]string{}
	if f.Status != "" && !f.Status.Valid() {
		fields["status"] = "unknown order status"
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		fields["payment_status"] = "unknown payment status"
	}
	if len(fields) > 0 {
		return f, apperr.Validation(fields)
	}
	return f, nil
}

func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	f, err := orderFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f.WithItems = true
	orders, err := h.Store.ListOrders(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(orders), "orders": orders})
}

func (h *OrderHandler) AdminDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Store.GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	customer, err := h.Store.GetUser(r.Context(), o.CustomerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": o, "customer": customer})
}

// changeStatus applies a status transition and tells staff about
// cancellations.
func (h *OrderHandler) changeStatus(r *http.Request, id int64, next models.OrderStatus) (models.Order, error) {
	o, err := h.Store.ChangeOrderStatus(r.Context(), id, next, h.now())
	if err != nil {
		return models.Order{}, err
	}
	if next == models.OrderCancelled && h.Notify != nil {
		if err := h.Notify.OrderCancelled(r.Context(), o); err != nil {
			logging.FromContext(r.Context(), h.Log).Warn("cancellation notification failed", zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

func (h *OrderHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.changeStatus(r, id, models.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":   o,
		"message": "order status changed to " + o.Status.Label(),
	})
}

func (h *OrderHandler) ChangePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req PaymentStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.Store.ChangePaymentStatus(r.Context(), id, models.PaymentStatus(req.PaymentStatus), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":   o,
		"message": "payment status changed to " + o.PaymentStatus.Label(),
	})
}

func (h *OrderHandler) Tracking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req TrackingRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	tracking := strings.TrimSpace(req.TrackingNumber)
	if tracking == "" {
		h.writeError(w, r, apperr.Validation(map[string]string{"tracking_number": "this field is required"}))
		return
	}
	o, err := h.Store.SetTrackingNumber(r.Context(), id, tracking)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	u, _ := currentUser(r)
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req NoteRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		h.writeError(w, r, apperr.Validation(map[string]string{"note": "this field is required"}))
		return
	}
	uid := u.ID
	n, err := h.Store.AddOrderNote(r.Context(), models.OrderNote{
		OrderID:       id,
		UserID:        &uid,
		Note:          strings.TrimSpace(req.Note),
		AttachmentURL: optional(req.AttachmentURL),
		CreatedAt:     h.now(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// Batch applies a status and/or payment status to several orders. Orders
// that refuse the change are reported and left untouched.
func (h *OrderHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Status == "" && req.PaymentStatus == "" {
		h.writeError(w, r, apperr.BadRequest("status or payment_status is required"))
		return
	}
	status := models.OrderStatus(req.Status)
	payment := models.PaymentStatus(req.PaymentStatus)
	fields := map[string]string{}
	if status != "" && !status.Valid() {
		fields["status"] = "unknown order status"
	}
	if payment != "" && !payment.Valid() {
		fields["payment_status"] = "unknown payment status"
	}
	if len(fields) > 0 {
		h.writeError(w, r, apperr.Validation(fields))
		return
	}

	updated := 0
	skipped := map[int64]string{}
	for _, id := range req.OrderIDs {
		if status != "" {
			if _, err := h.changeStatus(r, id, status); err != nil {
				skipped[id] = apperr.From(err).Message
				continue
			}
		}
		if payment != "" {
			if _, err := h.Store.ChangePaymentStatus(r.Context(), id, payment, h.now()); err != nil {
				skipped[id] = apperr.From(err).Message
				continue
			}
		}
		updated++
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "skipped": skipped})
}

var exportContentTypes = map[string]string{
	"csv":  "text/csv; charset=utf-8",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pdf":  "application/pdf",
}

func (h *OrderHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	contentType, ok := exportContentTypes[format]
	if !ok {
		h.writeError(w, r, apperr.NotFound("unknown export format"))
		return
	}
	f, err := orderFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	orders, err := h.Store.ListOrders(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	users, err := h.Store.ListUsers(r.Context(), storage.UserFilter{})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	customers := make(map[int64]models.User, len(users))
	for _, u := range users {
		customers[u.ID] = u
	}
	rows := invoice.Rows(orders, customers)

	now := h.now()
	var buf bytes.Buffer
	switch format {
	case "csv":
		err = invoice.WriteCSV(&buf, rows)
	case "xlsx":
		err = invoice.WriteXLSX(&buf, rows)
	case "pdf":
		err = invoice.WritePDF(&buf, rows, now)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+invoice.ExportFilename(format, now)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
