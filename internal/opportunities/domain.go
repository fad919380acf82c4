package opportunities

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Stage enumerates pipeline stages.
type Stage string

const (
	StageLead        Stage = "lead"
	StageQualified   Stage = "qualified"
	StageProposal    Stage = "proposal"
	StageNegotiation Stage = "negotiation"
	StageWon         Stage = "won"
	StageLost        Stage = "lost"
)

// ValidStage reports whether s is one of the known stages.
func ValidStage(s Stage) bool {
	switch s {
	case StageLead, StageQualified, StageProposal, StageNegotiation, StageWon, StageLost:
		return true
	}
	return false
}

// Closed reports whether the stage terminates the pipeline.
func (s Stage) Closed() bool {
	return s == StageWon || s == StageLost
}

// Opportunity is a pipeline record for a client.
type Opportunity struct {
	ID              int64           `json:"id"`
	ClientID        int64           `json:"client_id"`
	Title           string          `json:"title"`
	Stage           Stage           `json:"stage"`
	Value           decimal.Decimal `json:"value"`
	Probability     int             `json:"probability"`
	ExpectedCloseAt *time.Time      `json:"expected_close_at,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StageEvent is one append-only entry in an opportunity's stage history.
type StageEvent struct {
	ID            int64     `json:"id"`
	OpportunityID int64     `json:"opportunity_id"`
	FromStage     Stage     `json:"from_stage"`
	ToStage       Stage     `json:"to_stage"`
	ChangedAt     time.Time `json:"changed_at"`
}

var (
	ErrNotFound           = errors.New("opportunities: not found")
	ErrEmptyTitle         = errors.New("opportunities: title required")
	ErrInvalidStage       = errors.New("opportunities: unknown stage")
	ErrInvalidValue       = errors.New("opportunities: value must not be negative")
	ErrInvalidProbability = errors.New("opportunities: probability must be between 0 and 100")
)
