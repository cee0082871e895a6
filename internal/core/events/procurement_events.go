package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeRequestSubmitted   = "request.submitted"
	EventTypeRequestProcessed   = "request.processed"
	EventTypeRequestApproved    = "request.approved"
	EventTypeRequestDeclined    = "request.declined"
	EventTypeRequestReturned    = "request.returned"
	EventTypeRequestVoided      = "request.voided"
	EventTypeRequestResubmitted = "request.resubmitted"
	EventTypeRequestCompleted   = "request.completed"
	EventTypeQuotationSubmitted = "quotation.submitted"

	EventTypeFundTransactionRecorded = "fund.transaction_recorded"
	EventTypeSettingToggled          = "settings.lock_toggled"
)

// AllEventTypes lists every event the services publish.
var AllEventTypes = []string{
	EventTypeRequestSubmitted,
	EventTypeRequestProcessed,
	EventTypeRequestApproved,
	EventTypeRequestDeclined,
	EventTypeRequestReturned,
	EventTypeRequestVoided,
	EventTypeRequestResubmitted,
	EventTypeRequestCompleted,
	EventTypeQuotationSubmitted,
	EventTypeFundTransactionRecorded,
	EventTypeSettingToggled,
}

type RequestTransitionEvent struct {
	BaseEvent
	RequestID int64  `json:"request_id"`
	ActorID   int64  `json:"actor_id"`
	Progress  string `json:"progress"`
	Status    string `json:"status"`
}

func NewRequestTransitionEvent(eventType string, requestID, actorID int64, progress, status string) *RequestTransitionEvent {
	return &RequestTransitionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"request_id": requestID,
				"actor_id":   actorID,
				"progress":   progress,
				"status":     status,
			},
		},
		RequestID: requestID,
		ActorID:   actorID,
		Progress:  progress,
		Status:    status,
	}
}

type FundTransactionEvent struct {
	BaseEvent
	BudgetID        int64  `json:"budget_id"`
	TransactionID   int64  `json:"transaction_id"`
	TransactionType string `json:"transaction_type"`
	Amount          string `json:"amount"`
	ActorID         int64  `json:"actor_id"`
}

func NewFundTransactionEvent(budgetID, transactionID int64, transactionType, amount string, actorID int64) *FundTransactionEvent {
	return &FundTransactionEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeFundTransactionRecorded,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"budget_id":        budgetID,
				"transaction_id":   transactionID,
				"transaction_type": transactionType,
				"amount":           amount,
				"actor_id":         actorID,
			},
		},
		BudgetID:        budgetID,
		TransactionID:   transactionID,
		TransactionType: transactionType,
		Amount:          amount,
		ActorID:         actorID,
	}
}

func NewSettingToggledEvent(setting string, locked bool, actorID int64) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      EventTypeSettingToggled,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"setting":  setting,
			"locked":   locked,
			"actor_id": actorID,
		},
	}
}

// RegisterAuditLog writes every published event to the structured log.
func RegisterAuditLog(bus *EventBus, logger *slog.Logger) {
	bus.SubscribeAll(AllEventTypes, func(ctx context.Context, event Event) error {
		logger.InfoContext(ctx, "audit",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	})
}

// Noop discards events; useful where no bus is wired.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
