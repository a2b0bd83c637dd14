package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/peeves91/mcc-final-project/internal/inventory"
)

type ItemsHandler struct {
	Repo *inventory.Repo
	Log  zerolog.Logger
}

func (h *ItemsHandler) Register(r *chi.Mux) {
	r.Get("/get_item_info", h.getItemInfo)
}

type itemView struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	QuantityInStock int     `json:"quantity_in_stock"`
}

func (h *ItemsHandler) getItemInfo(w http.ResponseWriter, r *http.Request) {
	var (
		item inventory.Item
		err  error
	)
	switch q := r.URL.Query(); {
	case q.Get("item_name") != "":
		item, err = h.Repo.ItemByName(r.Context(), q.Get("item_name"))
	case q.Get("item_id") != "":
		var id int64
		if id, err = strconv.ParseInt(q.Get("item_id"), 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid item_id")
			return
		}
		item, err = h.Repo.ItemByID(r.Context(), id)
	default:
		writeError(w, http.StatusBadRequest, "no valid search criteria specified")
		return
	}

	if errors.Is(err, inventory.ErrItemNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]itemView{"item": {
		ID:              item.ID,
		Name:            item.Name,
		Price:           item.Price,
		QuantityInStock: item.QuantityInStock,
	}})
}
