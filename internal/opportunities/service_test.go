package opportunities

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryOpportunityRepo struct {
	mu          sync.Mutex
	records     map[int64]*Opportunity
	events      map[int64][]StageEvent
	nextID      int64
	nextEventID int64
}

func newMemoryOpportunityRepo() *memoryOpportunityRepo {
	return &memoryOpportunityRepo{
		records: make(map[int64]*Opportunity),
		events:  make(map[int64][]StageEvent),
	}
}

func (r *memoryOpportunityRepo) CreateOpportunity(ctx context.Context, input CreateOpportunityRecord) (*Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	o := &Opportunity{
		ID:              r.nextID,
		ClientID:        input.ClientID,
		Title:           input.Title,
		Stage:           input.Stage,
		Value:           input.Value,
		Probability:     input.Probability,
		ExpectedCloseAt: input.ExpectedCloseAt,
		Notes:           input.Notes,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	r.records[o.ID] = o
	return o, nil
}

func (r *memoryOpportunityRepo) GetOpportunity(ctx context.Context, id int64) (*Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r *memoryOpportunityRepo) ListOpportunities(ctx context.Context, req ListOpportunitiesRequest) ([]Opportunity, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Opportunity
	for _, o := range r.records {
		if req.Stage != "" && o.Stage != req.Stage {
			continue
		}
		if req.ClientID > 0 && o.ClientID != req.ClientID {
			continue
		}
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (r *memoryOpportunityRepo) UpdateOpportunity(ctx context.Context, id int64, input UpdateOpportunityRecord) (*Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Title = input.Title
	o.Value = input.Value
	o.Probability = input.Probability
	o.ExpectedCloseAt = input.ExpectedCloseAt
	o.Notes = input.Notes
	o.UpdatedAt = time.Now()
	return o, nil
}

func (r *memoryOpportunityRepo) SetStage(ctx context.Context, id int64, stage Stage) (*Opportunity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Stage == stage {
		return o, nil
	}
	r.nextEventID++
	r.events[id] = append(r.events[id], StageEvent{
		ID:            r.nextEventID,
		OpportunityID: id,
		FromStage:     o.Stage,
		ToStage:       stage,
		ChangedAt:     time.Now(),
	})
	o.Stage = stage
	if stage.Closed() {
		now := time.Now()
		o.ClosedAt = &now
	} else {
		o.ClosedAt = nil
	}
	return o, nil
}

func (r *memoryOpportunityRepo) ListStageEvents(ctx context.Context, opportunityID int64) ([]StageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StageEvent(nil), r.events[opportunityID]...), nil
}

func TestCreateDefaultsToLead(t *testing.T) {
	svc := NewService(newMemoryOpportunityRepo())

	opp, err := svc.Create(context.Background(), CreateOpportunityInput{
		ClientID: 1,
		Title:    "ERP rollout",
		Value:    decimal.NewFromInt(12000),
	})
	require.NoError(t, err)
	require.Equal(t, StageLead, opp.Stage)
	require.Nil(t, opp.ClosedAt)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryOpportunityRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateOpportunityInput{Title: "  "})
	require.ErrorIs(t, err, ErrEmptyTitle)

	_, err = svc.Create(ctx, CreateOpportunityInput{Title: "x", Value: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalidValue)

	_, err = svc.Create(ctx, CreateOpportunityInput{Title: "x", Probability: 120})
	require.ErrorIs(t, err, ErrInvalidProbability)

	_, err = svc.Create(ctx, CreateOpportunityInput{Title: "x", Stage: "maybe"})
	require.ErrorIs(t, err, ErrInvalidStage)
}

func TestStageTransitionsRecorded(t *testing.T) {
	repo := newMemoryOpportunityRepo()
	svc := NewService(repo)
	ctx := context.Background()

	opp, err := svc.Create(ctx, CreateOpportunityInput{ClientID: 1, Title: "CRM migration"})
	require.NoError(t, err)

	for _, stage := range []Stage{StageQualified, StageProposal, StageNegotiation, StageWon} {
		_, err = svc.SetStage(ctx, opp.ID, stage)
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, opp.ID)
	require.NoError(t, err)
	require.Equal(t, StageWon, got.Stage)
	require.NotNil(t, got.ClosedAt)

	events, err := svc.History(ctx, opp.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, StageLead, events[0].FromStage)
	require.Equal(t, StageQualified, events[0].ToStage)
	require.Equal(t, StageWon, events[3].ToStage)
	require.False(t, events[3].ChangedAt.IsZero())
}

func TestSetStageNoOpWhenUnchanged(t *testing.T) {
	repo := newMemoryOpportunityRepo()
	svc := NewService(repo)
	ctx := context.Background()

	opp, err := svc.Create(ctx, CreateOpportunityInput{Title: "Support renewal", Stage: StageProposal})
	require.NoError(t, err)

	_, err = svc.SetStage(ctx, opp.ID, StageProposal)
	require.NoError(t, err)

	events, err := svc.History(ctx, opp.ID)
	require.NoError(t, err)
	require.Empty(t, events)

	_, err = svc.SetStage(ctx, opp.ID, "archived")
	require.ErrorIs(t, err, ErrInvalidStage)

	_, err = svc.SetStage(ctx, 999, StageWon)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReopenClearsClosedAt(t *testing.T) {
	repo := newMemoryOpportunityRepo()
	svc := NewService(repo)
	ctx := context.Background()

	opp, err := svc.Create(ctx, CreateOpportunityInput{Title: "Hardware refresh"})
	require.NoError(t, err)

	_, err = svc.SetStage(ctx, opp.ID, StageLost)
	require.NoError(t, err)
	got, err := svc.Get(ctx, opp.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClosedAt)

	_, err = svc.SetStage(ctx, opp.ID, StageNegotiation)
	require.NoError(t, err)
	got, err = svc.Get(ctx, opp.ID)
	require.NoError(t, err)
	require.Nil(t, got.ClosedAt)
}
