package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event emitted after a successful mutation.
type EventType string

const (
	EventInterestCredited        EventType = "interest_credited"
	EventDeposit                 EventType = "deposit"
	EventWithdrawal              EventType = "withdrawal"
	EventAutoSave                EventType = "auto_save"
	EventFixedSavingsCreated     EventType = "fixed_savings_created"
	EventFixedSavingsMatured     EventType = "fixed_savings_matured"
	EventFixedSavingsPaidOut     EventType = "fixed_savings_paid_out"
	EventFixedSavingsAutoRenewed EventType = "fixed_savings_auto_renewed"
	EventEarlyWithdrawal         EventType = "early_withdrawal"
)

// Event is the explicit replacement for signal-driven side effects: services
// return from their atomic mutation first, then hand one of these to the
// Notifier at the call site.
type Event struct {
	Type       EventType         `json:"type"`
	OwnerID    uuid.UUID         `json:"owner_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Payload    map[string]string `json:"payload,omitempty"`
}

// Notifier dispatches events to external delivery channels. Implementations
// are fire-and-forget: they must never block for long and any delivery error
// must stay inside the implementation; a failed notification can never fail
// or roll back the ledger mutation that produced it.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(context.Context, Event) {}
