package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"eshop/internal/auth/models"
	"eshop/internal/payload"
	"eshop/pkg/platform/httputil"
	"eshop/pkg/requestcontext"
)

// HandleListUsers implements GET /users with the query pipeline.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context(), r.URL.Query())
	if err != nil {
		h.fail(w, r, "failed to list users", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.UserListResponse{
		Status:  httputil.StatusSuccess,
		Results: len(users),
		Data:    models.UserListData{Users: users},
	})
}

func (h *Handler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, "failed to get user", err)
		return
	}
	h.writeUser(w, http.StatusOK, user)
}

func (h *Handler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateUserRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	user, err := h.auth.CreateUser(ctx, req)
	if err != nil {
		h.fail(w, r, "failed to create user", err)
		return
	}
	h.writeUser(w, http.StatusCreated, user)
}

// HandleUpdateUser implements PATCH /users/{id}. Fields outside the admin
// whitelist are dropped by the service.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := payload.FromRequest(r)
	if err != nil {
		h.fail(w, r, "failed to decode user update", err)
		return
	}

	user, err := h.auth.UpdateUser(r.Context(), id, p.Fields)
	if err != nil {
		h.fail(w, r, "failed to update user", err, "user_id", id)
		return
	}
	h.writeUser(w, http.StatusOK, user)
}
