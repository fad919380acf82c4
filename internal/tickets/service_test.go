package tickets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryTicketRepo struct {
	mu            sync.Mutex
	tickets       map[int64]*Ticket
	comments      map[int64][]Comment
	sequences     map[int]int64
	numbers       map[string]bool
	nextID        int64
	nextCommentID int64
	// failCreates forces the first N CreateTicket calls to report a
	// duplicate number, exercising the retry path.
	failCreates int
}

func newMemoryTicketRepo() *memoryTicketRepo {
	return &memoryTicketRepo{
		tickets:   make(map[int64]*Ticket),
		comments:  make(map[int64][]Comment),
		sequences: make(map[int]int64),
		numbers:   make(map[string]bool),
	}
}

func (r *memoryTicketRepo) NextSequence(ctx context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequences[year]++
	return r.sequences[year], nil
}

func (r *memoryTicketRepo) CreateTicket(ctx context.Context, input CreateTicketRecord) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreates > 0 {
		r.failCreates--
		return nil, ErrDuplicateNumber
	}
	if r.numbers[input.Number] {
		return nil, ErrDuplicateNumber
	}
	r.nextID++
	ticket := &Ticket{
		ID:          r.nextID,
		Number:      input.Number,
		ClientID:    input.ClientID,
		Subject:     input.Subject,
		Description: input.Description,
		Priority:    input.Priority,
		Status:      StatusOpen,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.tickets[ticket.ID] = ticket
	r.numbers[ticket.Number] = true
	return ticket, nil
}

func (r *memoryTicketRepo) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ticket, nil
}

func (r *memoryTicketRepo) ListTickets(ctx context.Context, req ListTicketsRequest) ([]Ticket, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Ticket
	for _, t := range r.tickets {
		if req.Status != "" && t.Status != req.Status {
			continue
		}
		if req.Priority != "" && t.Priority != req.Priority {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r *memoryTicketRepo) UpdateTicket(ctx context.Context, id int64, input UpdateTicketRecord) (*Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket.Subject = input.Subject
	ticket.Description = input.Description
	ticket.Priority = input.Priority
	ticket.AssigneeID = input.AssigneeID
	ticket.UpdatedAt = time.Now()
	return ticket, nil
}

func (r *memoryTicketRepo) SetStatus(ctx context.Context, id int64, status TicketStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return ErrNotFound
	}
	ticket.Status = status
	if status == StatusResolved || status == StatusClosed {
		if ticket.ResolvedAt == nil {
			now := time.Now()
			ticket.ResolvedAt = &now
		}
	} else {
		ticket.ResolvedAt = nil
	}
	return nil
}

func (r *memoryTicketRepo) AddComment(ctx context.Context, input CreateCommentRecord) (*Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[input.TicketID]; !ok {
		return nil, ErrNotFound
	}
	r.nextCommentID++
	comment := Comment{
		ID:        r.nextCommentID,
		TicketID:  input.TicketID,
		AuthorID:  input.AuthorID,
		Body:      input.Body,
		Internal:  input.Internal,
		CreatedAt: time.Now(),
	}
	r.comments[input.TicketID] = append(r.comments[input.TicketID], comment)
	return &comment, nil
}

func (r *memoryTicketRepo) ListComments(ctx context.Context, ticketID int64) ([]Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Comment(nil), r.comments[ticketID]...), nil
}

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, 5, 20, 9, 0, 0, 0, time.UTC)
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	repo := newMemoryTicketRepo()
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateTicketInput{ClientID: 1, Subject: "Printer down"})
	require.NoError(t, err)
	require.Equal(t, "TKT-2025-000001", first.Number)
	require.Equal(t, StatusOpen, first.Status)
	require.Equal(t, PriorityMedium, first.Priority, "default priority")

	second, err := svc.Create(ctx, CreateTicketInput{ClientID: 1, Subject: "VPN flaky"})
	require.NoError(t, err)
	require.Equal(t, "TKT-2025-000002", second.Number)
}

func TestCreateNumberingRestartsEachYear(t *testing.T) {
	repo := newMemoryTicketRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	svc.WithNow(fixedClock(2025))
	inYear, err := svc.Create(ctx, CreateTicketInput{Subject: "Last of the year"})
	require.NoError(t, err)
	require.Equal(t, "TKT-2025-000001", inYear.Number)

	svc.WithNow(fixedClock(2026))
	nextYear, err := svc.Create(ctx, CreateTicketInput{Subject: "First of the year"})
	require.NoError(t, err)
	require.Equal(t, "TKT-2026-000001", nextYear.Number)
}

func TestCreateConcurrentNumbersDistinct(t *testing.T) {
	repo := newMemoryTicketRepo()
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))

	const n = 50
	results := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := svc.Create(context.Background(), CreateTicketInput{Subject: "load"})
			if err != nil {
				results <- "error"
				return
			}
			results <- ticket.Number
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for number := range results {
		require.NotEqual(t, "error", number)
		require.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true
	}
	require.Len(t, seen, n)
}

func TestCreateRetriesOnDuplicateNumber(t *testing.T) {
	repo := newMemoryTicketRepo()
	repo.failCreates = 1
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))

	ticket, err := svc.Create(context.Background(), CreateTicketInput{Subject: "Retry me"})
	require.NoError(t, err)
	// First sequence value burned by the simulated collision.
	require.Equal(t, "TKT-2025-000002", ticket.Number)
}

func TestCreateGivesUpAfterSecondCollision(t *testing.T) {
	repo := newMemoryTicketRepo()
	repo.failCreates = 2
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))

	_, err := svc.Create(context.Background(), CreateTicketInput{Subject: "Unlucky"})
	require.ErrorIs(t, err, ErrDuplicateNumber)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryTicketRepo(), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateTicketInput{Subject: "   "})
	require.ErrorIs(t, err, ErrEmptySubject)

	_, err = svc.Create(ctx, CreateTicketInput{Subject: "ok", Priority: "critical"})
	require.ErrorIs(t, err, ErrInvalidPriority)
}

func TestStatusAndComments(t *testing.T) {
	repo := newMemoryTicketRepo()
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))
	ctx := context.Background()

	ticket, err := svc.Create(ctx, CreateTicketInput{Subject: "Broken export"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.SetStatus(ctx, ticket.ID, "pending"), ErrInvalidStatus)
	require.NoError(t, svc.SetStatus(ctx, ticket.ID, StatusResolved))

	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.Equal(t, StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)

	require.NoError(t, svc.SetStatus(ctx, ticket.ID, StatusOpen))
	got, err = svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, got.ResolvedAt, "reopening clears resolved_at")

	_, err = svc.AddComment(ctx, ticket.ID, CreateCommentInput{Body: "  "})
	require.ErrorIs(t, err, ErrEmptyComment)

	_, err = svc.AddComment(ctx, ticket.ID, CreateCommentInput{AuthorID: 3, Body: "Looking into it"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, ticket.ID, CreateCommentInput{AuthorID: 3, Body: "Fixed", Internal: true})
	require.NoError(t, err)

	comments, err := svc.ListComments(ctx, ticket.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "Looking into it", comments[0].Body)
	require.True(t, comments[1].Internal)

	// Ticket number never changed by any mutation.
	require.Equal(t, "TKT-2025-000001", got.Number)
}

func TestListReturnsTotal(t *testing.T) {
	repo := newMemoryTicketRepo()
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))
	ctx := context.Background()

	for _, subject := range []string{"Login loop", "Slow reports", "Bad totals"} {
		_, err := svc.Create(ctx, CreateTicketInput{Subject: subject})
		require.NoError(t, err)
	}

	out, total, err := svc.List(ctx, ListTicketsRequest{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, 3, total)
}

func TestCloseStampsResolvedAt(t *testing.T) {
	repo := newMemoryTicketRepo()
	svc := NewService(repo, nil)
	svc.WithNow(fixedClock(2025))
	ctx := context.Background()

	ticket, err := svc.Create(ctx, CreateTicketInput{Subject: "Stuck import"})
	require.NoError(t, err)

	// Closing directly, without passing through resolved, still records when
	// work on the ticket ended.
	require.NoError(t, svc.SetStatus(ctx, ticket.ID, StatusClosed))
	got, err := svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAt)

	require.NoError(t, svc.SetStatus(ctx, ticket.ID, StatusOpen))
	got, err = svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.Nil(t, got.ResolvedAt)

	// Resolve then close: the original resolution time survives the close.
	require.NoError(t, svc.SetStatus(ctx, ticket.ID, StatusResolved))
	got, err = svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAt)
	resolvedAt := *got.ResolvedAt

	require.NoError(t, svc.SetStatus(ctx, ticket.ID, StatusClosed))
	got, err = svc.Get(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedAt)
	require.Equal(t, resolvedAt, *got.ResolvedAt)
}
