package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/handsomefox/upcoming-watchlist/internal/store"
)

type HandlerWithErr func(w http.ResponseWriter, r *http.Request) error

type Error struct {
	Status  int
	Message string
}

func (e Error) Error() string {
	return e.Message + " code=" + strconv.FormatInt(int64(e.Status), 10)
}

type errorResponse struct {
	Error string `json:"error"`
}

func Adapt(h HandlerWithErr) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}

		var statusErr *Error
		switch {
		case errors.As(err, &statusErr):
			writeJSON(w, statusErr.Status, errorResponse{Error: statusErr.Message})
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
	})
}
