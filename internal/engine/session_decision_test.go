package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/crisisdrill/pkg/schema"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("UTC-3", -3*3600))
}

func TestNewSessionDecision(t *testing.T) {
	d := schema.Decision{
		ID:   "isolate",
		Text: "Isolate the segment",
		Consequences: []schema.Consequence{
			{ID: "c1", Kind: schema.ConsequenceDirect, ImpactScore: 60, Probability: 0.5},
			{ID: "c2", Kind: schema.ConsequenceSecondOrder, ImpactScore: -20, Probability: 0.5},
		},
		RiskLevel: schema.RiskMedium,
	}
	conf := 1.7

	rec := NewSessionDecision("triage", d, 4200, RecordOptions{Now: fixedClock, UserConfidence: &conf})

	_, err := uuid.Parse(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "triage", rec.StateID)
	assert.Equal(t, "isolate", rec.DecisionID)
	assert.Equal(t, "Isolate the segment", rec.DecisionText)
	assert.Equal(t, "2026-03-14T12:26:53Z", rec.Timestamp)
	assert.Equal(t, int64(4200), rec.TimeTakenMs)
	assert.InDelta(t, 20.0, rec.ScoreImpact, 1e-9)
	assert.Equal(t, schema.RiskMedium, rec.RiskLevel)
	require.NotNil(t, rec.UserConfidence)
	assert.Equal(t, 1.0, *rec.UserConfidence)

	rec.Consequences[0].ImpactScore = 0
	assert.Equal(t, 60.0, d.Consequences[0].ImpactScore)
}

func TestNewSessionDecision_InfersRisk(t *testing.T) {
	d := schema.Decision{
		ID:           "ignore",
		Consequences: []schema.Consequence{{ID: "c1", Kind: schema.ConsequenceDirect, ImpactScore: -90, Probability: 0.8}},
	}
	rec := NewSessionDecision("detect", d, -5, RecordOptions{Now: fixedClock})
	assert.Equal(t, schema.RiskHigh, rec.RiskLevel)
	assert.Zero(t, rec.TimeTakenMs)
	assert.Nil(t, rec.UserConfidence)

	other := NewSessionDecision("detect", d, 0, RecordOptions{Now: fixedClock})
	assert.NotEqual(t, rec.ID, other.ID)

	empty := NewSessionDecision("detect", schema.Decision{ID: "wait"}, 0, RecordOptions{})
	assert.NotNil(t, empty.Consequences)
	assert.Equal(t, schema.RiskLow, empty.RiskLevel)
}
