package request_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/frahmantamala/barangay-procurement/internal"
	"github.com/frahmantamala/barangay-procurement/internal/core/events"
	"github.com/frahmantamala/barangay-procurement/internal/request"
	"github.com/frahmantamala/barangay-procurement/internal/storage"
	"github.com/frahmantamala/barangay-procurement/internal/timeline"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockRepository keeps requests in memory and discards every write of a
// failed transaction.
type MockRepository struct {
	requests  map[int64]request.Request
	timeline  []timeline.Entry
	stages    []request.StageRecord
	selected  map[int64]int64
	supplier  map[int64]bool
	completed map[int64]bool
	companies map[int64][]int64
	nextID    int64
	nextFile  int64

	failAddFiles error
	lastFilter   request.ListFilter
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		requests:  make(map[int64]request.Request),
		selected:  make(map[int64]int64),
		supplier:  make(map[int64]bool),
		completed: make(map[int64]bool),
		companies: make(map[int64][]int64),
	}
}

type mockState struct {
	requests map[int64]request.Request
	timeline []timeline.Entry
	stages   []request.StageRecord
	selected map[int64]int64
	nextID   int64
}

func (m *MockRepository) snapshot() mockState {
	s := mockState{
		requests: make(map[int64]request.Request, len(m.requests)),
		timeline: append([]timeline.Entry(nil), m.timeline...),
		stages:   append([]request.StageRecord(nil), m.stages...),
		selected: make(map[int64]int64, len(m.selected)),
		nextID:   m.nextID,
	}
	for k, v := range m.requests {
		s.requests[k] = v
	}
	for k, v := range m.selected {
		s.selected[k] = v
	}
	return s
}

func (m *MockRepository) restore(s mockState) {
	m.requests, m.timeline, m.stages, m.selected, m.nextID = s.requests, s.timeline, s.stages, s.selected, s.nextID
}

func (m *MockRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx request.TxRepository) error) error {
	before := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(before)
		return err
	}
	return nil
}

func (m *MockRepository) GetByID(_ context.Context, id int64) (*request.Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, internal.ErrRequestNotFound
	}
	for _, e := range m.timeline {
		if e.RequestID == id {
			req.Timeline = append(req.Timeline, e)
		}
	}
	return &req, nil
}

func (m *MockRepository) List(_ context.Context, filter request.ListFilter) ([]*request.Request, int64, error) {
	m.lastFilter = filter
	var out []*request.Request
	for id := range m.requests {
		req := m.requests[id]
		out = append(out, &req)
	}
	return out, int64(len(out)), nil
}

func (m *MockRepository) GetForUpdate(ctx context.Context, id int64) (*request.Request, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, internal.ErrRequestNotFound
	}
	return &req, nil
}

func (m *MockRepository) Create(_ context.Context, req *request.Request) error {
	m.nextID++
	req.ID = m.nextID
	m.requests[req.ID] = *req
	return nil
}

func (m *MockRepository) Save(_ context.Context, req *request.Request) error {
	stored, ok := m.requests[req.ID]
	if !ok {
		return internal.ErrRequestNotFound
	}
	if stored.Version != req.Version {
		return internal.ErrConcurrentModification
	}
	req.Version++
	m.requests[req.ID] = *req
	return nil
}

func (m *MockRepository) ReplaceCollaborators(_ context.Context, id int64, collaborators []request.Collaborator) error {
	req := m.requests[id]
	req.Collaborators = collaborators
	m.requests[id] = req
	return nil
}

func (m *MockRepository) AddFiles(_ context.Context, id int64, files []request.File) error {
	if m.failAddFiles != nil {
		return m.failAddFiles
	}
	req := m.requests[id]
	for i := range files {
		m.nextFile++
		files[i].ID = m.nextFile
	}
	req.Files = append(req.Files, files...)
	m.requests[id] = req
	return nil
}

func (m *MockRepository) RemoveFiles(_ context.Context, id int64, fileIDs []int64) ([]request.File, error) {
	req := m.requests[id]
	var kept, removed []request.File
	for _, f := range req.Files {
		drop := false
		for _, fid := range fileIDs {
			if f.ID == fid {
				drop = true
			}
		}
		if drop {
			removed = append(removed, f)
		} else {
			kept = append(kept, f)
		}
	}
	req.Files = kept
	m.requests[id] = req
	return removed, nil
}

func (m *MockRepository) AppendTimeline(_ context.Context, entry *timeline.Entry) error {
	entry.ID = int64(len(m.timeline) + 1)
	m.timeline = append(m.timeline, *entry)
	return nil
}

func (m *MockRepository) CreateStageRecord(_ context.Context, record request.StageRecord) error {
	m.stages = append(m.stages, record)
	return nil
}

func (m *MockRepository) SelectQuotationCompany(_ context.Context, requestID, companyID int64) error {
	for _, id := range m.companies[requestID] {
		if id == companyID {
			m.selected[requestID] = companyID
			return nil
		}
	}
	return internal.ErrMissingSelection
}

func (m *MockRepository) MarkSupplierApproval(_ context.Context, requestID, _ int64, _ time.Time) error {
	m.supplier[requestID] = true
	return nil
}

func (m *MockRepository) ApprovePurchaseOrder(_ context.Context, requestID, _ int64, _ time.Time) error {
	m.completed[requestID] = true
	return nil
}

type MockCategories struct {
	active map[int64]bool
}

func (m *MockCategories) IsActiveCategory(_ context.Context, id int64) (bool, error) {
	return m.active[id], nil
}

// MemoryStore is a storage.Store kept in a map.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string][]byte)}
}

func (s *MemoryStore) Store(_ context.Context, r io.Reader, dir, name string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	path := dir + "/" + strings.Repeat("f", s.seq) + "-" + name
	s.files[path] = data
	return path, nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path)
	return nil
}

func (s *MemoryStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, internal.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type RecordingPublisher struct {
	events []events.Event
}

func (p *RecordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *RecordingPublisher) Types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

var _ = Describe("Request Service", func() {
	var (
		ctx       context.Context
		repo      *MockRepository
		files     *MemoryStore
		publisher *RecordingPublisher
		service   *request.Service
		form      request.RequestFormDTO
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = NewMockRepository()
		files = NewMemoryStore()
		publisher = &RecordingPublisher{}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service = request.NewService(repo, &MockCategories{active: map[int64]bool{7: true}}, files, publisher, logger).
			WithClock(func() time.Time { return clock })
		form = request.RequestFormDTO{
			Name:        "Office supplies",
			CategoryID:  7,
			Description: "Bond paper and ink for the hall",
		}
	})

	create := func() *request.Request {
		req, err := service.Create(ctx, official, form)
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	Describe("Create", func() {
		It("creates a draft with collaborators and attachments", func() {
			form.Collaborators = []request.CollaboratorInput{
				{UserID: colleague.ID, Permission: "edit"},
				{UserID: official.ID, Permission: "view"},
			}
			form.Files = []storage.Upload{{Name: "quote.pdf", Size: 4, Reader: strings.NewReader("%PDF")}}

			req := create()
			Expect(req.ID).To(BeNumerically(">", 0))
			Expect(req.Status).To(Equal(request.StatusDraft))
			Expect(req.Progress).To(Equal(request.ProgressRequestForm))
			Expect(req.Collaborators).To(ConsistOf(request.Collaborator{UserID: colleague.ID, Permission: request.PermissionEdit}))
			Expect(req.Files).To(HaveLen(1))
			Expect(files.Len()).To(Equal(1))
		})

		It("is limited to officials", func() {
			_, err := service.Create(ctx, captain, form)
			Expect(err).To(MatchError(internal.ErrNotAuthorized))
		})

		It("rejects unknown or inactive categories", func() {
			form.CategoryID = 99
			_, err := service.Create(ctx, official, form)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvalidCategory))
		})

		It("reports every invalid field", func() {
			_, err := service.Create(ctx, official, request.RequestFormDTO{Name: "x"})
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
			details, ok := appErr.Details.(internal.ValidationErrors)
			Expect(ok).To(BeTrue())
			Expect(len(details.Errors)).To(BeNumerically(">=", 3))
		})

		It("removes stored files when the transaction fails", func() {
			repo.failAddFiles = errors.New("disk quota")
			form.Files = []storage.Upload{{Name: "a.jpg", Size: 1, Reader: strings.NewReader("a")}}
			_, err := service.Create(ctx, official, form)
			Expect(err).To(HaveOccurred())
			Expect(files.Len()).To(BeZero())
			Expect(repo.requests).To(BeEmpty())
		})
	})

	Describe("Update", func() {
		It("replaces the form of a draft and drops removed files", func() {
			form.Files = []storage.Upload{{Name: "old.pdf", Size: 3, Reader: strings.NewReader("old")}}
			req := create()
			Expect(files.Len()).To(Equal(1))

			update := request.RequestFormDTO{
				Name:          "Office supplies (revised)",
				CategoryID:    7,
				Description:   "Bond paper, ink and folders",
				RemoveFileIDs: []int64{req.Files[0].ID},
			}
			updated, err := service.Update(ctx, official, req.ID, update)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Name).To(Equal("Office supplies (revised)"))
			Expect(updated.Files).To(BeEmpty())
			Expect(files.Len()).To(BeZero())
		})

		It("refuses submitted requests", func() {
			req := create()
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Update(ctx, official, req.ID, form)
			Expect(err).To(MatchError(internal.ErrInvalidRequestStatus))
		})
	})

	Describe("approval flow", func() {
		It("creates the quotation record and one approved timeline entry on approve", func() {
			req := create()
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{Remarks: "for approval"})
			Expect(err).NotTo(HaveOccurred())

			approved, err := service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{Remarks: "go"})
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Progress).To(Equal(request.ProgressQuotation))
			Expect(approved.Status).To(Equal(request.StatusPending))
			Expect(repo.stages).To(Equal([]request.StageRecord{request.QuotationRecord{RequestID: req.ID}}))

			approvals := 0
			for _, e := range repo.timeline {
				if e.IsApproval() && *e.ApprovedStatus == timeline.Approved {
					approvals++
					Expect(*e.ApprovedProgress).To(Equal(string(request.ProgressRequestForm)))
				}
			}
			Expect(approvals).To(Equal(1))
			Expect(publisher.Types()).To(Equal([]string{events.EventTypeRequestSubmitted, events.EventTypeRequestApproved}))
		})

		It("leaves everything unchanged when the quotation company is missing", func() {
			req := create()
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			entries := len(repo.timeline)

			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{})
			Expect(err).To(MatchError(internal.ErrMissingSelection))

			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{CompanyID: 77})
			Expect(err).To(MatchError(internal.ErrMissingSelection))

			Expect(repo.timeline).To(HaveLen(entries))
			Expect(repo.stages).To(HaveLen(1))
			Expect(repo.requests[req.ID].Progress).To(Equal(request.ProgressQuotation))
		})

		It("selects the company and creates the purchase request", func() {
			req := create()
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			repo.companies[req.ID] = []int64{11, 12, 13}

			approved, err := service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{CompanyID: 12})
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Progress).To(Equal(request.ProgressPurchaseRequest))
			Expect(repo.selected[req.ID]).To(Equal(int64(12)))
			Expect(repo.stages[len(repo.stages)-1]).To(Equal(request.PurchaseRequestRecord{RequestID: req.ID}))
		})

		It("runs the whole chain up to completion", func() {
			req := create()
			repo.companies[req.ID] = []int64{11}
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{CompanyID: 11})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.ProcessPurchaseRequest(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.supplier[req.ID]).To(BeTrue())
			_, err = service.Approve(ctx, captain, req.ID, request.ApproveRequestDTO{})
			Expect(err).NotTo(HaveOccurred())

			done, err := service.Complete(ctx, captain, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			Expect(done.Status).To(Equal(request.StatusCompleted))
			Expect(repo.completed[req.ID]).To(BeTrue())

			view, err := service.Get(ctx, official, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.ProgressPercent).To(Equal(100))
		})

		It("resubmits a returned request with a revised form", func() {
			req := create()
			_, err := service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Return(ctx, captain, req.ID, request.RemarksDTO{Remarks: "add details"})
			Expect(err).NotTo(HaveOccurred())

			revised := form
			revised.Description = "Bond paper, ink and two staplers"
			resubmitted, err := service.Resubmit(ctx, official, req.ID, request.ResubmitRequestDTO{Form: &revised})
			Expect(err).NotTo(HaveOccurred())
			Expect(resubmitted.Status).To(Equal(request.StatusPending))
			Expect(resubmitted.Description).To(Equal("Bond paper, ink and two staplers"))
		})
	})

	Describe("Void", func() {
		It("cannot be undone", func() {
			req := create()
			_, err := service.Void(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).NotTo(HaveOccurred())
			_, err = service.Submit(ctx, official, req.ID, request.RemarksDTO{})
			Expect(err).To(MatchError(internal.ErrInvalidRequestStatus))
			Expect(repo.requests[req.ID].Status).To(Equal(request.StatusVoided))
		})
	})

	Describe("Get", func() {
		It("hides requests from users who are not involved", func() {
			req := create()
			_, err := service.Get(ctx, stranger, req.ID)
			Expect(err).To(MatchError(internal.ErrNotAuthorized))

			view, err := service.Get(ctx, official, req.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.UserPermission).To(Equal(request.PermissionOwner))
		})
	})

	Describe("OpenFile", func() {
		It("streams attachments to viewers", func() {
			form.Files = []storage.Upload{{Name: "quote.pdf", Size: 4, Reader: strings.NewReader("%PDF")}}
			req := create()

			rc, file, err := service.OpenFile(ctx, official, req.ID, req.Files[0].ID)
			Expect(err).NotTo(HaveOccurred())
			defer rc.Close()
			data, err := io.ReadAll(rc)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("%PDF"))
			Expect(file.Name).To(Equal("quote.pdf"))

			_, _, err = service.OpenFile(ctx, official, req.ID, 999)
			Expect(err).To(MatchError(internal.ErrFileNotFound))
		})
	})

	Describe("listing", func() {
		It("maps the history tab to terminal statuses", func() {
			_, err := service.ListForOfficial(ctx, official, request.TabHistory, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastFilter.ParticipantID).To(Equal(official.ID))
			Expect(repo.lastFilter.Statuses).To(ConsistOf(request.StatusVoided, request.StatusCompleted))
			Expect(repo.lastFilter.PerPage).To(Equal(request.OfficialPageSize))
		})

		It("hides terminal requests from the stage tabs", func() {
			_, err := service.ListForOfficial(ctx, official, request.TabQuotation, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastFilter.Progress).To(Equal(request.ProgressQuotation))
			Expect(repo.lastFilter.ExcludeStatuses).To(ConsistOf(request.StatusVoided, request.StatusCompleted))
			Expect(repo.lastFilter.Offset()).To(Equal(request.OfficialPageSize))
		})

		It("rejects unknown tabs", func() {
			_, err := service.ListForOfficial(ctx, official, "archive", 1)
			Expect(err).To(HaveOccurred())
		})

		It("never shows drafts to the captain", func() {
			_, err := service.ListForCaptain(ctx, captain, request.CaptainFilterDTO{Status: "pending", Page: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.lastFilter.ExcludeStatuses).To(ConsistOf(request.StatusDraft))
			Expect(repo.lastFilter.Statuses).To(ConsistOf(request.StatusPending))
			Expect(repo.lastFilter.PerPage).To(Equal(request.CaptainPageSize))

			_, err = service.ListForCaptain(ctx, captain, request.CaptainFilterDTO{Status: "draft"})
			Expect(err).To(HaveOccurred())
			_, err = service.ListForCaptain(ctx, official, request.CaptainFilterDTO{})
			Expect(err).To(MatchError(internal.ErrNotAuthorized))
		})
	})
})
