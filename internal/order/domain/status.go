package domain

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusPreparing      Status = "preparing"
	StatusReady          Status = "ready"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var AllStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery: {StatusDelivered},
}

var ErrInvalidTransition = errors.New("invalid status transition")

var ErrUnknownStatus = errors.New("unknown order status")

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusChange records one accepted transition.
type StatusChange struct {
	TenantID  string    `json:"tenantId"`
	OrderID   string    `json:"orderId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Actor     string    `json:"actor,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// TransitionTo moves o to status to. On error o is left unchanged.
func (o *Order) TransitionTo(to Status, actor string, now time.Time) (StatusChange, error) {
	if !CanTransition(o.Status, to) {
		return StatusChange{}, &InvalidTransitionError{From: o.Status, To: to}
	}
	now = now.UTC()
	ch := StatusChange{
		TenantID:  o.TenantID,
		OrderID:   o.ID,
		From:      o.Status,
		To:        to,
		Actor:     actor,
		ChangedAt: now,
	}
	o.Status = to
	o.UpdatedAt = now
	if to == StatusDelivered {
		o.DeliveredAt = &now
	}
	return ch, nil
}
