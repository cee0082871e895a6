package fund

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/transport"
	"github.com/shopspring/decimal"
)

type ServiceAPI interface {
	AddIncome(ctx context.Context, actor internal.Actor, budgetID int64, dto AmountDTO) (*Posting, error)
	AddProposedBudget(ctx context.Context, actor internal.Actor, budgetID int64, dto AmountDTO) (*Posting, error)
	RecordExpense(ctx context.Context, actor internal.Actor, budgetID int64, dto ExpenseDTO) (*Posting, error)
	EnsureBudget(ctx context.Context, actor internal.Actor, dto EnsureBudgetDTO) (*BudgetView, error)
	GetBudget(ctx context.Context, id int64) (*BudgetView, error)
	Overview(ctx context.Context, year int) ([]Group, error)
	TransactionHistory(ctx context.Context, dto HistoryFilterDTO) (*HistoryPage, error)
	Reconcile(ctx context.Context, budgetID int64) (*Reconciliation, error)
	OpenReceipt(ctx context.Context, transactionID, fileID int64) (io.ReadCloser, *TransactionFile, error)
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

func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.Overview(r.Context(), transport.QueryInt(r, "year", 0))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"budget_groups": groups})
}

func (h *Handler) TransactionHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dto := HistoryFilterDTO{
		Search:  q.Get("search"),
		Type:    q.Get("type"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Page:    transport.QueryInt(r, "page", 1),
		PerPage: transport.QueryInt(r, "per_page", 0),
	}
	if raw := q.Get("budget_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.HandleServiceError(w, internal.NewValidationFieldError("budget_id", "invalid budget_id", internal.ErrCodeValidationFailed))
			return
		}
		dto.BudgetID = id
	}

	page, err := h.Service.TransactionHistory(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	b, err := h.Service.GetBudget(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, b)
}

func (h *Handler) EnsureBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	var dto EnsureBudgetDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	b, err := h.Service.EnsureBudget(r.Context(), actor, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, b)
}

// AddIncome accepts JSON or a multipart form with "amount", "remarks" and
// "receipts" files.
func (h *Handler) AddIncome(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	var dto AmountDTO
	if transport.IsMultipart(r) {
		uploads, closeFn, err := h.ParseUploads(r, "receipts")
		defer closeFn()
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if err := decodeAmountForm(r, &dto); err != nil {
			h.HandleServiceError(w, err)
			return
		}
		dto.Files = uploads
	} else if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	posting, err := h.Service.AddIncome(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, posting)
}

func decodeAmountForm(r *http.Request, dto *AmountDTO) error {
	amount, err := decimal.NewFromString(r.FormValue("amount"))
	if err != nil {
		return internal.NewValidationFieldError("amount", "amount must be a number", internal.ErrCodeInvalidAmount)
	}
	dto.Amount = amount
	dto.Remarks = r.FormValue("remarks")
	return nil
}

func (h *Handler) AddProposedBudget(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto AmountDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	posting, err := h.Service.AddProposedBudget(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, posting)
}

func (h *Handler) RecordExpense(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.Actor(w, r)
	if !ok {
		return
	}
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	var dto ExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	posting, err := h.Service.RecordExpense(r.Context(), actor, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, posting)
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	rec, err := h.Service.Reconcile(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	txID, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	fileID, err := h.ParseIDParam(r, "fileID")
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	rc, file, err := h.Service.OpenReceipt(r.Context(), txID, fileID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	defer rc.Close()

	contentType := "image/*"
	if file.FileType == FileTypePDF {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	if _, err := io.Copy(w, rc); err != nil {
		h.Logger.Error("failed to stream receipt", "error", err, "transaction_id", txID, "file_id", fileID)
	}
}
