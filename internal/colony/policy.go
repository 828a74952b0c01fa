package colony

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownPolicy is returned for a policy key outside the fixed record.
	ErrUnknownPolicy = errors.New("unknown policy")

	// ErrInvalidPolicyValue is returned when a new policy value is out of range.
	ErrInvalidPolicyValue = errors.New("invalid policy value")
)

// PolicyName identifies one field of the policy record.
type PolicyName string

const (
	PolicyMinPAS            PolicyName = "min_pas"
	PolicyMaxAgents         PolicyName = "max_agents"
	PolicyApprovalThreshold PolicyName = "approval_threshold"
)

// PolicyNames lists the mutable policy keys.
var PolicyNames = []PolicyName{PolicyMinPAS, PolicyMaxAgents, PolicyApprovalThreshold}

// ParsePolicyName validates a policy key.
func ParsePolicyName(s string) (PolicyName, error) {
	for _, n := range PolicyNames {
		if string(n) == s {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Policy holds the governance thresholds of the collective.
type Policy struct {
	MinPAS            float64 `json:"min_pas" yaml:"min_pas"`
	MaxAgents         int     `json:"max_agents" yaml:"max_agents"`
	ApprovalThreshold float64 `json:"approval_threshold" yaml:"approval_threshold"`
}

// DefaultPolicy returns the thresholds a fresh colony starts with.
func DefaultPolicy() Policy {
	return Policy{
		MinPAS:            0.5,
		MaxAgents:         15,
		ApprovalThreshold: 0.6,
	}
}

// Quorum is the tally a proposal needs to pass with the given population.
// An empty roster needs zero, so any non-negative tally passes.
func (p Policy) Quorum(population int) int {
	return int(math.Ceil(float64(population) * p.ApprovalThreshold))
}

// Value reads a policy field by name.
func (p Policy) Value(name PolicyName) (float64, error) {
	switch name {
	case PolicyMinPAS:
		return p.MinPAS, nil
	case PolicyMaxAgents:
		return float64(p.MaxAgents), nil
	case PolicyApprovalThreshold:
		return p.ApprovalThreshold, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
}

// With returns a copy of the policy with one field changed. population is
// the current roster size; max_agents may never drop below it.
func (p Policy) With(name PolicyName, value float64, population int) (Policy, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return p, fmt.Errorf("%w: %s=%v", ErrInvalidPolicyValue, name, value)
	}
	switch name {
	case PolicyMinPAS:
		if value < 0 || value > 1 {
			return p, fmt.Errorf("%w: min_pas must be within [0,1], got %v", ErrInvalidPolicyValue, value)
		}
		p.MinPAS = value
	case PolicyApprovalThreshold:
		if value <= 0 || value > 1 {
			return p, fmt.Errorf("%w: approval_threshold must be within (0,1], got %v", ErrInvalidPolicyValue, value)
		}
		p.ApprovalThreshold = value
	case PolicyMaxAgents:
		if value != math.Trunc(value) || value < 1 {
			return p, fmt.Errorf("%w: max_agents must be a positive integer, got %v", ErrInvalidPolicyValue, value)
		}
		if int(value) < population {
			return p, fmt.Errorf("%w: max_agents %d is below the current population %d", ErrInvalidPolicyValue, int(value), population)
		}
		p.MaxAgents = int(value)
	default:
		return p, fmt.Errorf("%w: %q", ErrUnknownPolicy, name)
	}
	return p, nil
}
