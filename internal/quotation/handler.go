package quotation

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/document"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
)

type ServiceAPI interface {
	Submit(ctx context.Context, actor internal.Actor, requestID int64, dto SubmitQuotationDTO) (*Quotation, error)
	Resubmit(ctx context.Context, actor internal.Actor, requestID int64, dto SubmitQuotationDTO) (*Quotation, error)
	Get(ctx context.Context, actor internal.Actor, requestID int64) (*Quotation, error)
	Canvass(ctx context.Context, actor internal.Actor, requestID int64) (*document.AbstractOfCanvass, error)
	PurchaseRequestDocument(ctx context.Context, actor internal.Actor, requestID int64) (*document.PurchaseRequest, error)
}

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Renderer document.Renderer
}

func NewHandler(base *transport.BaseHandler, service ServiceAPI, renderer document.Renderer) *Handler {
	if base == nil {
		base = transport.NewBaseHandler(nil)
	}
	if renderer == nil {
		renderer = document.JSONRenderer{}
	}
	return &Handler{BaseHandler: base, Service: service, Renderer: renderer}
}

func (h *Handler) SubmitQuotation(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.Service.Submit, http.StatusCreated)
}

func (h *Handler) ResubmitQuotation(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, h.Service.Resubmit, http.StatusOK)
}

type recordFunc func(ctx context.Context, actor internal.Actor, requestID int64, dto SubmitQuotationDTO) (*Quotation, error)

func (h *Handler) record(w http.ResponseWriter, r *http.Request, fn recordFunc, status int) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto SubmitQuotationDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	q, err := fn(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, status, q)
}

func (h *Handler) GetQuotation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	q, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, q)
}

func (h *Handler) AbstractOfCanvass(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	doc, err := h.Service.Canvass(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.render(w, r, doc)
}

func (h *Handler) PurchaseRequestDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	doc, err := h.Service.PurchaseRequestDocument(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.render(w, r, doc)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, doc document.Document) {
	out, err := h.Renderer.Render(r.Context(), doc)
	if err != nil {
		h.HandleServiceError(w, internal.NewInternalError("failed to render document", err))
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Body); err != nil {
		h.Logger.Error("failed to write document", "kind", doc.Kind(), "error", err)
	}
}
