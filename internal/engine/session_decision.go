package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/rendis/crisisdrill/internal/scoring"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// RecordOptions carries the optional inputs of NewSessionDecision.
type RecordOptions struct {
	Now            Clock
	UserConfidence *float64
}

// NewSessionDecision builds the immutable log entry for a decision accepted
// in stateID after takenMs milliseconds. The risk level is carried from the
// decision or inferred from its consequences.
func NewSessionDecision(stateID string, d schema.Decision, takenMs int64, opts RecordOptions) schema.SessionDecision {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	risk := d.RiskLevel
	if risk.Rank() == 0 {
		risk = scoring.InferRiskLevel(d.Consequences)
	}
	rec := schema.SessionDecision{
		ID:           uuid.New().String(),
		StateID:      stateID,
		DecisionID:   d.ID,
		DecisionText: d.Text,
		Timestamp:    now().UTC().Format(time.RFC3339),
		TimeTakenMs:  max(takenMs, 0),
		ScoreImpact:  scoring.ExpectedImpact(d.Consequences),
		Consequences: schema.CloneConsequences(d.Consequences),
		RiskLevel:    risk,
	}
	if rec.Consequences == nil {
		rec.Consequences = []schema.Consequence{}
	}
	if opts.UserConfidence != nil {
		c := min(max(*opts.UserConfidence, 0), 1)
		rec.UserConfidence = &c
	}
	return rec
}
