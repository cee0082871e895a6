// Package timeline records the append-only audit trail of a request's
// approvals and processing steps.
package timeline

import (
	"context"
	"sort"
	"time"

	requestDatamodel "github.com/frahmantamala/barangay-procurement/internal/core/datamodel/request"
)

type ApprovedStatus string

const (
	Approved ApprovedStatus = "approved"
	Declined ApprovedStatus = "declined"
	Returned ApprovedStatus = "returned"
)

type ProcessedStatus string

const (
	Submitted   ProcessedStatus = "submitted"
	Processed   ProcessedStatus = "processed"
	Resubmitted ProcessedStatus = "resubmitted"
	Voided      ProcessedStatus = "voided"
)

// Entry is either an approval (captain) or a processing (official) record.
type Entry struct {
	ID                int64            `json:"id"`
	RequestID         int64            `json:"request_id"`
	ApproverID        *int64           `json:"approver_id,omitempty"`
	ApproverName      string           `json:"approver_name,omitempty"`
	ApprovedDate      *time.Time       `json:"approved_date,omitempty"`
	ApprovedProgress  *string          `json:"approved_progress,omitempty"`
	ApprovedStatus    *ApprovedStatus  `json:"approved_status,omitempty"`
	ProcessorID       *int64           `json:"processor_id,omitempty"`
	ProcessorName     string           `json:"processor_name,omitempty"`
	ProcessedDate     *time.Time       `json:"processed_date,omitempty"`
	ProcessedProgress *string          `json:"processed_progress,omitempty"`
	ProcessedStatus   *ProcessedStatus `json:"processed_status,omitempty"`
	Remarks           *string          `json:"remarks,omitempty"`
}

func NewApproval(requestID, approverID int64, progress string, status ApprovedStatus, remarks string, at time.Time) Entry {
	return Entry{
		RequestID:        requestID,
		ApproverID:       &approverID,
		ApprovedDate:     &at,
		ApprovedProgress: &progress,
		ApprovedStatus:   &status,
		Remarks:          optional(remarks),
	}
}

func NewProcessing(requestID, processorID int64, progress string, status ProcessedStatus, remarks string, at time.Time) Entry {
	return Entry{
		RequestID:         requestID,
		ProcessorID:       &processorID,
		ProcessedDate:     &at,
		ProcessedProgress: &progress,
		ProcessedStatus:   &status,
		Remarks:           optional(remarks),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (e Entry) IsApproval() bool {
	return e.ApprovedStatus != nil
}

// OccurredAt is the earlier of the approval and processing dates.
func (e Entry) OccurredAt() time.Time {
	switch {
	case e.ApprovedDate != nil && e.ProcessedDate != nil:
		if e.ProcessedDate.Before(*e.ApprovedDate) {
			return *e.ProcessedDate
		}
		return *e.ApprovedDate
	case e.ApprovedDate != nil:
		return *e.ApprovedDate
	case e.ProcessedDate != nil:
		return *e.ProcessedDate
	}
	return time.Time{}
}

// Progress is the stage the entry was recorded at.
func (e Entry) Progress() string {
	if e.ApprovedProgress != nil {
		return *e.ApprovedProgress
	}
	if e.ProcessedProgress != nil {
		return *e.ProcessedProgress
	}
	return ""
}

// Sort orders entries by OccurredAt, falling back to insertion order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].OccurredAt(), entries[j].OccurredAt()
		if a.Equal(b) {
			return entries[i].ID < entries[j].ID
		}
		return a.Before(b)
	})
}

// ApprovedProgresses returns the set of stages that received an approval.
func ApprovedProgresses(entries []Entry) map[string]bool {
	out := make(map[string]bool)
	for _, e := range entries {
		if e.ApprovedStatus != nil && *e.ApprovedStatus == Approved && e.ApprovedProgress != nil {
			out[*e.ApprovedProgress] = true
		}
	}
	return out
}

// LatestApproval returns the most recent approved entry for a stage.
func LatestApproval(entries []Entry, progress string) (Entry, bool) {
	var (
		found  Entry
		exists bool
	)
	for _, e := range entries {
		if e.ApprovedStatus == nil || *e.ApprovedStatus != Approved || e.ApprovedProgress == nil || *e.ApprovedProgress != progress {
			continue
		}
		if !exists || e.OccurredAt().After(found.OccurredAt()) {
			found, exists = e, true
		}
	}
	return found, exists
}

// Appender is the only write operation a timeline supports.
type Appender interface {
	Append(ctx context.Context, entry *Entry) error
}

type Reader interface {
	ListByRequest(ctx context.Context, requestID int64) ([]Entry, error)
}

func ToDataModel(e *Entry) *requestDatamodel.Timeline {
	var approved, processed *string
	if e.ApprovedStatus != nil {
		s := string(*e.ApprovedStatus)
		approved = &s
	}
	if e.ProcessedStatus != nil {
		s := string(*e.ProcessedStatus)
		processed = &s
	}
	return &requestDatamodel.Timeline{
		ID:                e.ID,
		RequestID:         e.RequestID,
		ApproverID:        e.ApproverID,
		ApprovedDate:      e.ApprovedDate,
		ApprovedProgress:  e.ApprovedProgress,
		ApprovedStatus:    approved,
		ProcessorID:       e.ProcessorID,
		ProcessedDate:     e.ProcessedDate,
		ProcessedProgress: e.ProcessedProgress,
		ProcessedStatus:   processed,
		Remarks:           e.Remarks,
	}
}

func FromDataModel(t *requestDatamodel.Timeline) Entry {
	e := Entry{
		ID:                t.ID,
		RequestID:         t.RequestID,
		ApproverID:        t.ApproverID,
		ApprovedDate:      t.ApprovedDate,
		ApprovedProgress:  t.ApprovedProgress,
		ProcessorID:       t.ProcessorID,
		ProcessedDate:     t.ProcessedDate,
		ProcessedProgress: t.ProcessedProgress,
		Remarks:           t.Remarks,
	}
	if t.ApprovedStatus != nil {
		s := ApprovedStatus(*t.ApprovedStatus)
		e.ApprovedStatus = &s
	}
	if t.ProcessedStatus != nil {
		s := ProcessedStatus(*t.ProcessedStatus)
		e.ProcessedStatus = &s
	}
	return e
}
