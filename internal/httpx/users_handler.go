package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/peeves91/mcc-final-project/internal/users"
)

type UsersHandler struct {
	Repo *users.Repo
	Log  zerolog.Logger
}

func (h *UsersHandler) Register(r *chi.Mux) {
	r.Post("/create_user", h.createUser)
	r.Get("/get_user", h.getUser)
}

type createUserReq struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	CreditCard string `json:"credit_card"`
}

func (h *UsersHandler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Email == "" || req.FirstName == "" || req.LastName == "" ||
		req.Phone == "" || req.Address == "" || req.CreditCard == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}

	id, err := h.Repo.Create(r.Context(), users.NewUser{
		Email:      req.Email,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Address:    req.Address,
		CreditCard: req.CreditCard,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.Log.Info().Int64("user_id", id).Str("email", req.Email).Msg("user created")
	writeJSON(w, http.StatusOK, map[string]int64{"user_id": id})
}

type userView struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	UpdatedAt time.Time `json:"updated_at"`
}

// getUser searches by email, id, or last name; the response is always a
// results list, empty when nothing matched.
func (h *UsersHandler) getUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		found []users.User
		err   error
	)
	switch {
	case q.Get("user_email") != "":
		var u users.User
		u, err = h.Repo.ByEmail(ctx, q.Get("user_email"))
		if err == nil {
			found = []users.User{u}
		}
	case q.Get("user_id") != "":
		var id int64
		if id, err = strconv.ParseInt(q.Get("user_id"), 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		var u users.User
		u, err = h.Repo.ByID(ctx, id)
		if err == nil {
			found = []users.User{u}
		}
	case q.Get("last_name") != "":
		found, err = h.Repo.ByLastName(ctx, q.Get("last_name"))
	default:
		writeError(w, http.StatusBadRequest, "no valid search criteria specified")
		return
	}

	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]userView, 0, len(found))
	for _, u := range found {
		results = append(results, userView{
			UserID:    u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Address:   u.Address,
			Phone:     u.Phone,
			UpdatedAt: u.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
