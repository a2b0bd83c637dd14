package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/peeves91/mcc-final-project/internal/cart"
	"github.com/peeves91/mcc-final-project/internal/clients"
)

type CartHandler struct {
	Repo  *cart.Repo
	Items *clients.Items // price capture on add
	Log   zerolog.Logger
}

func (h *CartHandler) Register(r *chi.Mux) {
	r.Post("/get_or_create_cart", h.getOrCreate)
	r.Post("/add_item_to_cart", h.addItem)
	r.Get("/get_cart_items", h.getItems)
	r.Post("/cancel_cart", h.cancel)
}

type userIDReq struct {
	UserID int64 `json:"user_id"`
}

func (h *CartHandler) getOrCreate(w http.ResponseWriter, r *http.Request) {
	var req userIDReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	cartID, err := h.Repo.GetOrCreate(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cart_id": cartID})
}

type addItemReq struct {
	UserID   int64  `json:"user_id"`
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.UserID == 0 || req.ItemName == "" || req.Quantity <= 0 {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	ctx := r.Context()

	// Capture the unit price now; the cart keeps it even if the catalog
	// price changes later.
	item, err := h.Items.ByName(ctx, req.ItemName)
	if errors.Is(err, clients.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such item")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	err = h.Repo.AddItem(ctx, req.UserID, item.ID, req.Quantity, item.Price)
	if errors.Is(err, cart.ErrNoOpenCart) {
		writeError(w, http.StatusConflict, "no open cart found for user")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type cartItemView struct {
	ItemID   int64   `json:"item_id"`
	ItemName string  `json:"item_name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

func (h *CartHandler) getItems(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}
	ctx := r.Context()

	items, err := h.Repo.Items(ctx, userID)
	if errors.Is(err, cart.ErrNoOpenCart) {
		writeError(w, http.StatusNotFound, "no_cart")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]cartItemView, 0, len(items))
	for _, li := range items {
		view := cartItemView{ItemID: li.ItemID, Quantity: li.Quantity, Price: li.Price}
		if info, err := h.Items.ByID(ctx, li.ItemID); err == nil {
			view.ItemName = info.Name
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *CartHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req userIDReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		writeError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	err := h.Repo.Cancel(r.Context(), req.UserID)
	if errors.Is(err, cart.ErrNoOpenCart) {
		// Nothing to cancel is fine from the caller's point of view.
		h.Log.Warn().Int64("user_id", req.UserID).Msg("no open cart to cancel")
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Log.Info().Int64("user_id", req.UserID).Msg("cart cancelled")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
