package handler

import (
	"net/http"
)

// HandleGoogleStart redirects the browser to the provider's consent page.
func (h *Handler) HandleGoogleStart(w http.ResponseWriter, r *http.Request) {
	target, err := h.auth.GoogleStart(r.Context())
	if err != nil {
		h.fail(w, r, "google sign-in start failed", err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleGoogleCallback completes the code exchange and signs the user in.
func (h *Handler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.auth.GoogleCallback(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		h.fail(w, r, "google sign-in failed", err)
		return
	}
	h.writeSession(w, http.StatusOK, res)
}
