package handlers

import (
	"net/http"

	"github.com/pribylovaa/books-auth/internal/service"
	apierrors "github.com/pribylovaa/books-auth/internal/transport/http/errors"
	"github.com/pribylovaa/books-auth/internal/transport/http/middleware"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	user, err := h.Service.Register(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	pair, err := h.Service.Login(r.Context(), in.Login, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(pair))
}

// Logout отзывает Bearer-токен (access или refresh) и, если передан,
// refresh-токен из тела запроса. Оба проверяются до отзыва: при отказе
// по любому из них не отзывается ни один.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.TokenFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	var in logoutRequest
	if err := decodeOptional(w, r, &in); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var more []string
	if in.RefreshToken != "" && in.RefreshToken != raw {
		more = append(more, in.RefreshToken)
	}

	if err := h.Service.Logout(r.Context(), raw, more...); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Refresh выпускает новый access-токен по Bearer refresh-токену.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.TokenFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	pair, err := h.Service.Refresh(r.Context(), raw)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokensFromModel(pair))
}
