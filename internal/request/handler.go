package request

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor internal.Actor, dto RequestFormDTO) (*Request, error)
	Update(ctx context.Context, actor internal.Actor, id int64, dto RequestFormDTO) (*Request, error)
	Submit(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	Process(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	ProcessPurchaseRequest(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	Approve(ctx context.Context, actor internal.Actor, id int64, dto ApproveRequestDTO) (*Request, error)
	Decline(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	Return(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	Void(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	Resubmit(ctx context.Context, actor internal.Actor, id int64, dto ResubmitRequestDTO) (*Request, error)
	Complete(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)
	Get(ctx context.Context, actor internal.Actor, id int64) (*View, error)
	OpenFile(ctx context.Context, actor internal.Actor, requestID, fileID int64) (io.ReadCloser, *File, error)
	ListForOfficial(ctx context.Context, actor internal.Actor, tab string, page int) (*Page, error)
	ListForCaptain(ctx context.Context, actor internal.Actor, dto CaptainFilterDTO) (*Page, error)
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

// decodeForm accepts either a JSON body or a multipart form with a JSON
// "payload" field and "files" attachments.
func (h *Handler) decodeForm(r *http.Request, dto interface{}) (func(), error) {
	if !transport.IsMultipart(r) {
		return func() {}, h.DecodeJSON(r, dto)
	}

	uploads, closeFn, err := h.ParseUploads(r, "files")
	if err != nil {
		return closeFn, err
	}
	if payload := r.FormValue("payload"); payload != "" {
		if err := json.Unmarshal([]byte(payload), dto); err != nil {
			return closeFn, internal.NewValidationFieldError("payload", "payload must be valid JSON", internal.ErrCodeValidationFailed)
		}
	}

	switch v := dto.(type) {
	case *RequestFormDTO:
		v.Files = uploads
	case *ResubmitRequestDTO:
		if v.Form != nil {
			v.Form.Files = uploads
		}
	}
	return closeFn, nil
}

func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	var dto RequestFormDTO
	closeFn, err := h.decodeForm(r, &dto)
	defer closeFn()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Create(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, req)
}

func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto RequestFormDTO
	closeFn, err := h.decodeForm(r, &dto)
	defer closeFn()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Update(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	view, err := h.Service.Get(r.Context(), actor, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	fileID, err := h.ParseIDParam(r, "fileID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	rc, file, err := h.Service.OpenFile(r.Context(), actor, id, fileID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Error("failed to stream request file", "error", err, "request_id", id, "file_id", fileID)
	}
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	page, err := h.Service.ListForOfficial(r.Context(), actor, r.URL.Query().Get("tab"), transport.QueryInt(r, "page", 1))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) ListCaptainRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	dto := CaptainFilterDTO{
		Search: q.Get("search"),
		Status: q.Get("status"),
		Page:   transport.QueryInt(r, "page", 1),
	}
	if q.Get("type") == "progress" || q.Get("progress") != "" {
		dto.Progress = q.Get("progress")
	}
	for key, target := range map[string]**time.Time{"from": &dto.From, "to": &dto.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.HandleServiceError(w, internal.NewValidationFieldError(key, key+" must be formatted as YYYY-MM-DD", internal.ErrCodeInvalidDate))
			return
		}
		if key == "to" {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		*target = &t
	}

	page, err := h.Service.ListForCaptain(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

type remarksAction func(ctx context.Context, actor internal.Actor, id int64, dto RemarksDTO) (*Request, error)

func (h *Handler) remarks(action remarksAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.Actor(w, r)
		if !ok {
			return
		}
		id, err := h.ParseIDParam(r, "id")
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		var dto RemarksDTO
		if err := h.DecodeJSON(r, &dto); err != nil {
			h.HandleServiceError(w, err)
			return
		}

		req, err := action(r.Context(), actor, id, dto)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, req)
	}
}

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.Submit)(w, r)
}

func (h *Handler) ProcessRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.Process)(w, r)
}

func (h *Handler) ProcessPurchaseRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.ProcessPurchaseRequest)(w, r)
}

func (h *Handler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.Decline)(w, r)
}

func (h *Handler) ReturnRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.Return)(w, r)
}

func (h *Handler) VoidRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.Void)(w, r)
}

func (h *Handler) CompleteRequest(w http.ResponseWriter, r *http.Request) {
	h.remarks(h.Service.Complete)(w, r)
}

func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto ApproveRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Approve(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}

func (h *Handler) ResubmitRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto ResubmitRequestDTO
	closeFn, err := h.decodeForm(r, &dto)
	defer closeFn()
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Resubmit(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, req)
}
