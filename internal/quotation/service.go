package quotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
	"github.com/frahmantamala/barangay-procurement/internal/document"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
)

// RepositoryAPI reads quotations and their company quotes.
type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetByRequest(ctx context.Context, requestID int64) (*Quotation, error)
}

// TxRepository writes quotations and the owning request in one transaction.
type TxRepository interface {
	Requests() request.TxRepository
	GetOrCreate(ctx context.Context, requestID int64) (*Quotation, error)
	UpsertCompany(ctx context.Context, company *Company) error
	ReplaceDetails(ctx context.Context, quotationID int64, details []Detail) error
	MarkSubmitted(ctx context.Context, quotationID, processorID int64, at time.Time) error
}

// RequestReader loads a request with its timeline for permission checks.
type RequestReader interface {
	GetByID(ctx context.Context, id int64) (*request.Request, error)
}

// Officials resolves who signs printed documents.
type Officials interface {
	FirstNameByRole(ctx context.Context, role internal.Role) (string, error)
}

type Options struct {
	RequiredCompanies int
	Location          string
	District          string
	Currency          string
}

// OptionsFromConfig takes the quotation limits from the procurement config.
func OptionsFromConfig(cfg internal.ProcurementConfig) Options {
	return Options{
		RequiredCompanies: cfg.RequiredCompanies,
		Location:          cfg.Location,
		District:          cfg.District,
		Currency:          cfg.Currency,
	}
}

type Service struct {
	repo      RepositoryAPI
	requests  RequestReader
	officials Officials
	publisher events.Publisher
	logger    *slog.Logger
	opts      Options
	money     document.Formatter
	now       func() time.Time
}

// NewService creates a new quotation service
func NewService(repo RepositoryAPI, requests RequestReader, officials Officials, publisher events.Publisher, logger *slog.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequiredCompanies <= 0 {
		opts.RequiredCompanies = 3
	}
	return &Service{
		repo:      repo,
		requests:  requests,
		officials: officials,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		money:     document.NewFormatter(opts.Currency),
		now:       time.Now,
	}
}

// WithClock overrides the time source used for timeline entries.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit records the first set of company quotes for a request at the
// Quotation stage.
func (s *Service) Submit(ctx context.Context, actor internal.Actor, requestID int64, dto SubmitQuotationDTO) (*Quotation, error) {
	return s.record(ctx, actor, requestID, dto, false)
}

// Resubmit replaces every company quote of a returned or pending quotation.
func (s *Service) Resubmit(ctx context.Context, actor internal.Actor, requestID int64, dto SubmitQuotationDTO) (*Quotation, error) {
	return s.record(ctx, actor, requestID, dto, true)
}

func (s *Service) record(ctx context.Context, actor internal.Actor, requestID int64, dto SubmitQuotationDTO, resubmit bool) (*Quotation, error) {
	if err := dto.Validate(s.opts.RequiredCompanies); err != nil {
		return nil, err
	}
	companies, items := dto.details()

	var req *request.Request
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		now := s.now()
		t, err := req.RecordQuotation(actor, resubmit, dto.Remarks, now)
		if err != nil {
			return err
		}

		q, err := tx.GetOrCreate(ctx, requestID)
		if err != nil {
			return err
		}
		if !resubmit && q.HaveQuotation {
			return internal.ErrInvalidRequestStatus.WithMessage("quotation was already submitted, use resubmit")
		}

		details := make([]Detail, len(companies))
		for i := range companies {
			if err := tx.UpsertCompany(ctx, &companies[i]); err != nil {
				return err
			}
			details[i] = Detail{CompanyID: companies[i].ID, Company: companies[i], Items: items[i]}
		}
		if err := tx.ReplaceDetails(ctx, q.ID, details); err != nil {
			return err
		}
		if err := tx.MarkSubmitted(ctx, q.ID, actor.ID, now); err != nil {
			return err
		}
		if err := tx.Requests().Save(ctx, req); err != nil {
			return err
		}
		return tx.Requests().AppendTimeline(ctx, t.Entry)
	})
	if err != nil {
		s.logger.Warn("quotation rejected",
			"request_id", requestID,
			"actor_id", actor.ID,
			"resubmit", resubmit,
			"error", err)
		return nil, err
	}

	s.logger.Info("quotation recorded", "request_id", requestID, "actor_id", actor.ID, "resubmit", resubmit)
	if err := s.publisher.Publish(ctx, events.NewRequestTransitionEvent(events.EventTypeQuotationSubmitted, requestID, actor.ID, string(req.Progress), string(req.Status))); err != nil {
		s.logger.Warn("failed to publish quotation event", "request_id", requestID, "error", err)
	}
	return s.repo.GetByRequest(ctx, requestID)
}

func (s *Service) viewable(ctx context.Context, actor internal.Actor, requestID int64) (*request.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.PermissionFor(actor) == request.PermissionNone {
		return nil, internal.ErrNotAuthorized
	}
	return req, nil
}

// Get returns the quotation of a request the actor may view.
func (s *Service) Get(ctx context.Context, actor internal.Actor, requestID int64) (*Quotation, error) {
	if _, err := s.viewable(ctx, actor, requestID); err != nil {
		return nil, err
	}
	return s.repo.GetByRequest(ctx, requestID)
}

// Canvass compares the submitted quotes and returns the abstract of canvass.
func (s *Service) Canvass(ctx context.Context, actor internal.Actor, requestID int64) (*document.AbstractOfCanvass, error) {
	req, err := s.viewable(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	q, err := s.repo.GetByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	c, err := ComputeCanvass(q)
	if err != nil {
		return nil, err
	}

	doc := &document.AbstractOfCanvass{
		RequestID: req.ID,
		Title:     req.Name,
		Location:  s.opts.Location,
		District:  s.opts.District,
		Awarded:   c.Awarded.Name,
		ByLowest:  c.ByLowest,
		Tied:      c.Tied,
	}
	for i, comp := range c.Companies {
		doc.Companies = append(doc.Companies, document.CanvassCompany{
			ID:      comp.ID,
			Name:    comp.Name,
			Total:   s.money.Format(c.Totals[i]),
			Awarded: comp.ID == c.Awarded.ID,
		})
	}
	for _, row := range c.Rows {
		out := document.CanvassRow{Name: row.Name, Description: row.Description, Quantity: row.Quantity}
		for _, cell := range row.Cells {
			out.Prices = append(out.Prices, s.money.FormatOptional(cell.Price))
			out.Totals = append(out.Totals, s.money.FormatOptional(cell.Total))
		}
		doc.Rows = append(doc.Rows, out)
	}

	doc.Signatories, err = s.signatories(ctx, true)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// PurchaseRequestDocument lists the items of the selected company under a
// PR number derived from the request's creation month.
func (s *Service) PurchaseRequestDocument(ctx context.Context, actor internal.Actor, requestID int64) (*document.PurchaseRequest, error) {
	req, err := s.viewable(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	q, err := s.repo.GetByRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	selected, ok := q.Selected()
	if !ok {
		return nil, internal.ErrQuotationNotFound.WithMessage("no selected quotation found")
	}

	doc := &document.PurchaseRequest{
		RequestID:   req.ID,
		Number:      PRNumber(req),
		Title:       req.Name,
		Description: req.Description,
		Category:    req.CategoryName,
		Location:    s.opts.Location,
		District:    s.opts.District,
		Company:     selected.Company.Name,
		Address:     selected.Company.Address,
		GrandTotal:  s.money.Format(selected.Total()),
	}
	if approval, ok := timeline.LatestApproval(req.Timeline, string(request.ProgressPurchaseRequest)); ok && approval.ApprovedDate != nil {
		doc.Date = approval.ApprovedDate.Format("2006-01-02")
	}
	for _, it := range selected.Items {
		doc.Items = append(doc.Items, document.PurchaseRequestItem{
			Name:        it.Name,
			Description: it.DescriptionText(),
			Quantity:    it.Quantity,
			UnitPrice:   s.money.Format(it.Price),
			Total:       s.money.Format(it.Total()),
		})
	}

	doc.Signatories, err = s.signatories(ctx, false)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// PRNumber is YYYY-MM-<id> of the request's creation date.
func PRNumber(req *request.Request) string {
	return fmt.Sprintf("%s-%d", req.CreatedAt.Format("2006-01"), req.ID)
}

func (s *Service) signatories(ctx context.Context, withSecretary bool) (document.Signatories, error) {
	var sig document.Signatories
	if s.officials == nil {
		return sig.WithDefaults(), nil
	}
	var err error
	if withSecretary {
		if sig.Secretary, err = s.officials.FirstNameByRole(ctx, internal.RoleSecretary); err != nil {
			return sig, err
		}
	}
	if sig.Treasurer, err = s.officials.FirstNameByRole(ctx, internal.RoleTreasurer); err != nil {
		return sig, err
	}
	if sig.Captain, err = s.officials.FirstNameByRole(ctx, internal.RoleCaptain); err != nil {
		return sig, err
	}
	sig = sig.WithDefaults()
	if !withSecretary {
		sig.Secretary = ""
	}
	return sig, nil
}
