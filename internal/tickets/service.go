package tickets

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/meridian-crm/meridian/internal/shared"
)

// CreateTicketInput describes a new support ticket.
type CreateTicketInput struct {
	ClientID    int64
	Subject     string
	Description string
	Priority    TicketPriority
}

// UpdateTicketInput describes an edit to a ticket's mutable fields.
type UpdateTicketInput struct {
	Subject     string
	Description string
	Priority    TicketPriority
	AssigneeID  *int64
}

// CreateCommentInput describes a new ticket comment.
type CreateCommentInput struct {
	AuthorID int64
	Body     string
	Internal bool
}

// CreateTicketRecord is the repository-level shape of a validated ticket.
type CreateTicketRecord struct {
	Number      string
	ClientID    int64
	Subject     string
	Description string
	Priority    TicketPriority
}

// UpdateTicketRecord is the repository-level shape of a validated edit.
type UpdateTicketRecord struct {
	Subject     string
	Description string
	Priority    TicketPriority
	AssigneeID  *int64
}

// CreateCommentRecord is the repository-level shape of a validated comment.
type CreateCommentRecord struct {
	TicketID int64
	AuthorID int64
	Body     string
	Internal bool
}

// ListTicketsRequest filters ticket listings.
type ListTicketsRequest struct {
	Status     TicketStatus
	Priority   TicketPriority
	ClientID   int64
	AssigneeID int64
	Limit      int
	Offset     int
}

// RepositoryPort defines data access methods for tickets.
type RepositoryPort interface {
	NextSequence(ctx context.Context, year int) (int64, error)
	CreateTicket(ctx context.Context, input CreateTicketRecord) (*Ticket, error)
	GetTicket(ctx context.Context, id int64) (*Ticket, error)
	ListTickets(ctx context.Context, req ListTicketsRequest) ([]Ticket, int, error)
	UpdateTicket(ctx context.Context, id int64, input UpdateTicketRecord) (*Ticket, error)
	SetStatus(ctx context.Context, id int64, status TicketStatus) error
	AddComment(ctx context.Context, input CreateCommentRecord) (*Comment, error)
	ListComments(ctx context.Context, ticketID int64) ([]Comment, error)
}

// AuditRecorder persists audit trail entries.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles ticket business logic.
type Service struct {
	repo  RepositoryPort
	audit AuditRecorder
	now   func() time.Time
}

// NewService builds Service instance. audit may be nil.
func NewService(repo RepositoryPort, audit AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Create assigns the next year-scoped ticket number and persists the ticket.
// The number comes from an atomic counter reservation; should the backstop
// unique index still report a collision, one retry runs with a fresh value.
func (s *Service) Create(ctx context.Context, input CreateTicketInput) (*Ticket, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, ErrEmptySubject
	}
	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !ValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	year := s.now().Year()
	var ticket *Ticket
	for attempt := 0; attempt < 2; attempt++ {
		seq, err := s.repo.NextSequence(ctx, year)
		if err != nil {
			return nil, err
		}
		ticket, err = s.repo.CreateTicket(ctx, CreateTicketRecord{
			Number:      FormatNumber(year, seq),
			ClientID:    input.ClientID,
			Subject:     input.Subject,
			Description: input.Description,
			Priority:    priority,
		})
		if err == nil {
			break
		}
		if err != ErrDuplicateNumber || attempt == 1 {
			return nil, err
		}
	}

	s.recordAudit(ctx, "ticket.created", ticket.ID, map[string]any{"number": ticket.Number})
	return ticket, nil
}

// Get returns a ticket by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Ticket, error) {
	return s.repo.GetTicket(ctx, id)
}

// List returns tickets matching the filter plus the total for the filter.
func (s *Service) List(ctx context.Context, req ListTicketsRequest) ([]Ticket, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListTickets(ctx, req)
}

// Update rewrites a ticket's mutable fields; the assigned number is immutable.
func (s *Service) Update(ctx context.Context, id int64, input UpdateTicketInput) (*Ticket, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, ErrEmptySubject
	}
	if !ValidPriority(input.Priority) {
		return nil, ErrInvalidPriority
	}
	return s.repo.UpdateTicket(ctx, id, UpdateTicketRecord{
		Subject:     input.Subject,
		Description: input.Description,
		Priority:    input.Priority,
		AssigneeID:  input.AssigneeID,
	})
}

// SetStatus assigns a ticket status.
func (s *Service) SetStatus(ctx context.Context, id int64, status TicketStatus) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.recordAudit(ctx, "ticket.status.changed", id, map[string]any{"status": string(status)})
	return nil
}

// AddComment appends a comment to the ticket thread.
func (s *Service) AddComment(ctx context.Context, ticketID int64, input CreateCommentInput) (*Comment, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrEmptyComment
	}
	return s.repo.AddComment(ctx, CreateCommentRecord{
		TicketID: ticketID,
		AuthorID: input.AuthorID,
		Body:     input.Body,
		Internal: input.Internal,
	})
}

// ListComments returns the ticket thread.
func (s *Service) ListComments(ctx context.Context, ticketID int64) ([]Comment, error) {
	return s.repo.ListComments(ctx, ticketID)
}

func (s *Service) recordAudit(ctx context.Context, action string, ticketID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "ticket",
		EntityID: strconv.FormatInt(ticketID, 10),
		Meta:     meta,
		At:       s.now(),
	})
}
