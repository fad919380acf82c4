package tickets

import (
	"errors"
	"time"
)

// TicketStatus enumerates ticket lifecycle states.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "open"
	StatusInProgress TicketStatus = "in_progress"
	StatusResolved   TicketStatus = "resolved"
	StatusClosed     TicketStatus = "closed"
)

// ValidStatus reports whether s is one of the known statuses.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "low"
	PriorityMedium TicketPriority = "medium"
	PriorityHigh   TicketPriority = "high"
	PriorityUrgent TicketPriority = "urgent"
)

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p TicketPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Ticket is a support request. Number is assigned exactly once at creation
// and never mutated afterwards.
type Ticket struct {
	ID          int64
	Number      string
	ClientID    int64
	Subject     string
	Description string
	Priority    TicketPriority
	Status      TicketStatus
	AssigneeID  *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

// Comment is one append-only entry on a ticket's thread.
type Comment struct {
	ID        int64
	TicketID  int64
	AuthorID  int64
	Body      string
	Internal  bool
	CreatedAt time.Time
}

// Domain errors.
var (
	ErrNotFound        = errors.New("tickets: not found")
	ErrInvalidStatus   = errors.New("tickets: unknown status")
	ErrInvalidPriority = errors.New("tickets: unknown priority")
	ErrEmptySubject    = errors.New("tickets: subject required")
	ErrEmptyComment    = errors.New("tickets: comment body required")
	// ErrDuplicateNumber surfaces a unique-index violation on ticket_number.
	// The counter makes this unreachable in normal operation; it exists so a
	// corrupted counter state is retried instead of failing the request.
	ErrDuplicateNumber = errors.New("tickets: duplicate ticket number")
)
