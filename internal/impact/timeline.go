package impact

import "github.com/rendis/crisisdrill/pkg/schema"

// TemporalPattern summarizes when a decision's effects land.
type TemporalPattern string

const (
	PatternImmediate TemporalPattern = "immediate"
	PatternDelayed   TemporalPattern = "delayed"
	PatternMixed     TemporalPattern = "mixed"
	PatternGradual   TemporalPattern = "gradual"
)

const shortTermLimitMinutes = 60

// TimelineBucket aggregates consequences resolving in one time window.
type TimelineBucket struct {
	Count         int      `json:"count"`
	AverageImpact float64  `json:"average_impact"`
	Consequences  []string `json:"consequences"`
}

// TimelineImpact partitions consequences into immediate (<= 5 min),
// short-term (<= 60 min) and long-term windows.
type TimelineImpact struct {
	Immediate TimelineBucket  `json:"immediate"`
	ShortTerm TimelineBucket  `json:"short_term"`
	LongTerm  TimelineBucket  `json:"long_term"`
	Pattern   TemporalPattern `json:"pattern"`
}

func timelineImpact(consequences []schema.Consequence) TimelineImpact {
	var buckets [3][]schema.Consequence
	for _, c := range consequences {
		switch d := c.Delay(); {
		case d <= schema.ImmediateDelayMinutes:
			buckets[0] = append(buckets[0], c)
		case d <= shortTermLimitMinutes:
			buckets[1] = append(buckets[1], c)
		default:
			buckets[2] = append(buckets[2], c)
		}
	}

	t := TimelineImpact{
		Immediate: bucket(buckets[0]),
		ShortTerm: bucket(buckets[1]),
		LongTerm:  bucket(buckets[2]),
	}

	n := len(consequences)
	switch {
	case n == 0:
		t.Pattern = PatternImmediate
	case t.Immediate.Count > 0 && t.ShortTerm.Count > 0 && t.LongTerm.Count > 0:
		t.Pattern = PatternGradual
	case float64(t.Immediate.Count)/float64(n) >= 0.7:
		t.Pattern = PatternImmediate
	case float64(t.Immediate.Count)/float64(n) <= 0.3:
		t.Pattern = PatternDelayed
	default:
		t.Pattern = PatternMixed
	}
	return t
}

func bucket(cs []schema.Consequence) TimelineBucket {
	b := TimelineBucket{Count: len(cs), Consequences: make([]string, 0, len(cs))}
	var sum float64
	for _, c := range cs {
		sum += c.ImpactScore
		b.Consequences = append(b.Consequences, c.ID)
	}
	if len(cs) > 0 {
		b.AverageImpact = round2(sum / float64(len(cs)))
	}
	return b
}
