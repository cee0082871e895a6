package settings

import (
	"context"
	"net/http"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]Setting, error)
	Timeline(ctx context.Context) ([]TimelineEntry, error)
	ToggleLock(ctx context.Context, actor internal.Actor, name Name, dto ToggleLockDTO) (*Setting, error)
	SaveChanges(ctx context.Context, actor internal.Actor, dto SaveChangesDTO) ([]Setting, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(nil)
	}
	return &Handler{BaseHandler: base, Service: service}
}

func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": list})
}

func (h *Handler) ListTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.Timeline(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"timeline": entries})
}

func (h *Handler) SaveChanges(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto SaveChangesDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	list, err := h.Service.SaveChanges(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": list})
}

func (h *Handler) ToggleLock(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto ToggleLockDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	st, err := h.Service.ToggleLock(r.Context(), actor, Name(chi.URLParam(r, "name")), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, st)
}
