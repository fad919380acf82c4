package opportunities

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateOpportunityInput describes a new pipeline record.
type CreateOpportunityInput struct {
	ClientID        int64
	Title           string
	Stage           Stage
	Value           decimal.Decimal
	Probability     int
	ExpectedCloseAt *time.Time
	Notes           *string
}

// UpdateOpportunityInput replaces an opportunity's mutable fields. Stage moves
// go through SetStage so history stays complete.
type UpdateOpportunityInput struct {
	Title           string
	Value           decimal.Decimal
	Probability     int
	ExpectedCloseAt *time.Time
	Notes           *string
}

// CreateOpportunityRecord is the repository-level shape of a validated record.
type CreateOpportunityRecord struct {
	ClientID        int64
	Title           string
	Stage           Stage
	Value           decimal.Decimal
	Probability     int
	ExpectedCloseAt *time.Time
	Notes           *string
}

// UpdateOpportunityRecord is the repository-level shape of a validated edit.
type UpdateOpportunityRecord struct {
	Title           string
	Value           decimal.Decimal
	Probability     int
	ExpectedCloseAt *time.Time
	Notes           *string
}

// ListOpportunitiesRequest filters pipeline listings.
type ListOpportunitiesRequest struct {
	Stage    Stage
	ClientID int64
	Limit    int
	Offset   int
}

// RepositoryPort defines data access methods for opportunities.
type RepositoryPort interface {
	CreateOpportunity(ctx context.Context, input CreateOpportunityRecord) (*Opportunity, error)
	GetOpportunity(ctx context.Context, id int64) (*Opportunity, error)
	ListOpportunities(ctx context.Context, req ListOpportunitiesRequest) ([]Opportunity, int, error)
	UpdateOpportunity(ctx context.Context, id int64, input UpdateOpportunityRecord) (*Opportunity, error)
	SetStage(ctx context.Context, id int64, stage Stage) (*Opportunity, error)
	ListStageEvents(ctx context.Context, opportunityID int64) ([]StageEvent, error)
}

// Service handles pipeline business logic.
type Service struct {
	repo RepositoryPort
}

func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func validateCommon(title string, value decimal.Decimal, probability int) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	if value.IsNegative() {
		return ErrInvalidValue
	}
	if probability < 0 || probability > 100 {
		return ErrInvalidProbability
	}
	return nil
}

func (s *Service) Create(ctx context.Context, input CreateOpportunityInput) (*Opportunity, error) {
	if err := validateCommon(input.Title, input.Value, input.Probability); err != nil {
		return nil, err
	}
	stage := input.Stage
	if stage == "" {
		stage = StageLead
	}
	if !ValidStage(stage) {
		return nil, ErrInvalidStage
	}
	return s.repo.CreateOpportunity(ctx, CreateOpportunityRecord{
		ClientID:        input.ClientID,
		Title:           strings.TrimSpace(input.Title),
		Stage:           stage,
		Value:           input.Value,
		Probability:     input.Probability,
		ExpectedCloseAt: input.ExpectedCloseAt,
		Notes:           input.Notes,
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Opportunity, error) {
	return s.repo.GetOpportunity(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListOpportunitiesRequest) ([]Opportunity, int, error) {
	if req.Stage != "" && !ValidStage(req.Stage) {
		return nil, 0, ErrInvalidStage
	}
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListOpportunities(ctx, req)
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateOpportunityInput) (*Opportunity, error) {
	if err := validateCommon(input.Title, input.Value, input.Probability); err != nil {
		return nil, err
	}
	return s.repo.UpdateOpportunity(ctx, id, UpdateOpportunityRecord{
		Title:           strings.TrimSpace(input.Title),
		Value:           input.Value,
		Probability:     input.Probability,
		ExpectedCloseAt: input.ExpectedCloseAt,
		Notes:           input.Notes,
	})
}

// SetStage moves the opportunity through the pipeline and records the
// transition with its timestamp.
func (s *Service) SetStage(ctx context.Context, id int64, stage Stage) (*Opportunity, error) {
	if !ValidStage(stage) {
		return nil, ErrInvalidStage
	}
	return s.repo.SetStage(ctx, id, stage)
}

// History returns the stage transitions for an opportunity, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]StageEvent, error) {
	if _, err := s.repo.GetOpportunity(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListStageEvents(ctx, id)
}
