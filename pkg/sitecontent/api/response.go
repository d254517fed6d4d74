package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-sitecontent/pkg/sitecontent"
)

// Response is the envelope of every JSON reply
type Response struct {
	Status  bool        `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SlotView is a slot as returned to clients. Assets maps image fields to
// absolute URLs when a public base URL is configured.
type SlotView struct {
	*sitecontent.Slot
	Assets map[string]string `json:"assets,omitempty"`
}

func (h *Handler) view(slot *sitecontent.Slot) *SlotView {
	if slot == nil {
		return nil
	}
	v := &SlotView{Slot: slot}
	if !h.resolver.Enabled() {
		return v
	}
	for _, f := range sitecontent.Fields {
		if !f.IsImage() {
			continue
		}
		if ref, ok := slot.Get(f); ok && ref != "" {
			if v.Assets == nil {
				v.Assets = make(map[string]string)
			}
			v.Assets[string(f)] = h.resolver.Resolve(ref)
		}
	}
	return v
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, sitecontent.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, sitecontent.ErrAssetNotFound):
		return http.StatusNotFound
	case errors.Is(err, sitecontent.ErrAssetStoreRequired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error(message, "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
	} else {
		slog.Warn(message, "path", r.URL.Path, "request_id", RequestIDFrom(r.Context()), "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, Response{Status: false, Message: message, Error: err.Error()})
}

func (h *Handler) renderNotFound(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusNotFound)
	render.JSON(w, r, Response{Status: false, Message: "Dynamic part not found"})
}
