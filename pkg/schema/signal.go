package schema

// LifecycleAction enumerates the lifecycle requests a caller can make on a session.
type LifecycleAction string

const (
	LifecyclePause   LifecycleAction = "pause"
	LifecycleResume  LifecycleAction = "resume"
	LifecycleAbandon LifecycleAction = "abandon"
)

// TargetStatus maps a lifecycle action to the session status it requests.
func (a LifecycleAction) TargetStatus() (SessionStatus, bool) {
	switch a {
	case LifecyclePause:
		return SessionStatusPaused, true
	case LifecycleResume:
		return SessionStatusActive, true
	case LifecycleAbandon:
		return SessionStatusAbandoned, true
	default:
		return "", false
	}
}

// RiskProfile is a trainee's declared risk posture.
type RiskProfile string

const (
	RiskProfileConservative RiskProfile = "conservative"
	RiskProfileBalanced     RiskProfile = "balanced"
	RiskProfileAggressive   RiskProfile = "aggressive"
)

// PreferredRisk returns the risk level aligned with the profile, or "" if unknown.
func (p RiskProfile) PreferredRisk() RiskLevel {
	switch p {
	case RiskProfileConservative:
		return RiskLow
	case RiskProfileBalanced:
		return RiskMedium
	case RiskProfileAggressive:
		return RiskHigh
	default:
		return ""
	}
}
