package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/peeves91/mcc-final-project/internal/clients"
	"github.com/peeves91/mcc-final-project/internal/orders"
	"github.com/peeves91/mcc-final-project/internal/redisx"
)

// OrdersHandler is the public API. It never touches another service's
// tables: users and carts are resolved through their owning services.
type OrdersHandler struct {
	Repo        *orders.Repo
	Coordinator *orders.Coordinator
	Users       *clients.Users
	Cart        *clients.Cart
	Items       *clients.Items
	Redis       *redis.Client
	Log         zerolog.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/queue_item", h.queueItem)
	r.Get("/get_queued_items", h.getQueuedItems)
	r.Post("/purchase_queue", h.purchaseQueue)
	r.Post("/clear_queue", h.clearQueue)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/get_orders_containing_item", h.ordersContainingItem)
}

type queueItemReq struct {
	UserEmail string `json:"user_email"`
	ItemName  string `json:"item_name"`
	Quantity  int    `json:"quantity"`
}

func (h *OrdersHandler) queueItem(w http.ResponseWriter, r *http.Request) {
	var req queueItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserEmail == "" || req.ItemName == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	ctx := r.Context()

	user, err := h.Users.ByEmail(ctx, req.UserEmail)
	if errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no user found with that email")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if _, err := h.Cart.Ensure(ctx, user.UserID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if err := h.Cart.AddItem(ctx, user.UserID, req.ItemName, req.Quantity); err != nil {
		if errors.Is(err, clients.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no such item")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *OrdersHandler) getQueuedItems(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("user_email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "missing user_email")
		return
	}
	ctx := r.Context()

	user, err := h.Users.ByEmail(ctx, email)
	if errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no user found with that email")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	items, err := h.Cart.Items(ctx, user.UserID)
	if errors.Is(err, clients.ErrNotFound) {
		// No open cart reads as an empty queue.
		writeJSON(w, http.StatusOK, map[string]any{"items": []clients.CartItem{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if items == nil {
		items = []clients.CartItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type purchaseReq struct {
	UserEmail string `json:"user_email"`
}

// purchaseQueue is submit-then-poll: a 202 means the pending order is
// committed and OrderCreated is on the broker, nothing more. The
// terminal status shows up later on GET /orders/{id}.
func (h *OrdersHandler) purchaseQueue(w http.ResponseWriter, r *http.Request) {
	var req purchaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserEmail == "" {
		writeError(w, http.StatusBadRequest, "missing user_email")
		return
	}
	ctx := r.Context()

	user, err := h.Users.ByEmail(ctx, req.UserEmail)
	if errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no user found with that email")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	orderID, err := h.Coordinator.StartPurchase(ctx, user.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"order_id": orderID,
		"status":   orders.StatusPending,
	})
}

func (h *OrdersHandler) clearQueue(w http.ResponseWriter, r *http.Request) {
	var req purchaseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserEmail == "" {
		writeError(w, http.StatusBadRequest, "missing user_email")
		return
	}
	ctx := r.Context()

	user, err := h.Users.ByEmail(ctx, req.UserEmail)
	if errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no user found with that email")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	if err := h.Cart.Cancel(ctx, user.UserID); err != nil && !errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}
	ctx := r.Context()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	o, err := h.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	body, _ := json.Marshal(map[string]any{
		"order_id":    o.ID,
		"status":      o.Status,
		"total_price": o.TotalPrice,
	})
	if o.Status.Terminal() {
		// Pending orders are about to change; only terminal states are
		// worth caching.
		_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type orderMatch struct {
	OrderID   int64  `json:"order_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

func (h *OrdersHandler) ordersContainingItem(w http.ResponseWriter, r *http.Request) {
	itemName := r.URL.Query().Get("item_name")
	if itemName == "" {
		writeError(w, http.StatusBadRequest, "missing item_name")
		return
	}
	ctx := r.Context()

	item, err := h.Items.ByName(ctx, itemName)
	if errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such item")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	var userID int64
	if email := r.URL.Query().Get("user_email"); email != "" {
		user, err := h.Users.ByEmail(ctx, email)
		if errors.Is(err, clients.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no user found with that email")
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		userID = user.UserID
	}

	matched, err := h.Repo.OrdersContainingItem(ctx, item.ID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]orderMatch, 0, len(matched))
	for _, o := range matched {
		user, err := h.Users.ByID(ctx, o.UserID)
		if err != nil {
			h.Log.Error().Err(err).Int64("user_id", o.UserID).Msg("user lookup failed for order match")
			continue
		}
		out = append(out, orderMatch{
			OrderID:   o.ID,
			UserName:  user.FirstName + " " + user.LastName,
			UserEmail: user.Email,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
