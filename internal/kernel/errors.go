package kernel

import (
	"errors"

	"collective/internal/colony"
)

var (
	// ErrRunning is returned by operations that require a stopped kernel.
	ErrRunning = errors.New("kernel is running")

	// ErrBusy is returned when a chat or foresight call is already outstanding.
	ErrBusy = errors.New("operation already in progress")

	// ErrInvalidConfig is returned when a spawn config blob is not a JSON object.
	ErrInvalidConfig = errors.New("invalid agent config")

	// ErrCapacityReached is returned when the roster is at the policy maximum.
	ErrCapacityReached = errors.New("max agent limit reached")

	// ErrNoSavedState is returned by Load when the store holds no blob.
	ErrNoSavedState = errors.New("no saved state")

	// ErrCorruptState is returned by Load when the blob cannot be decoded.
	// The blob is removed from the store.
	ErrCorruptState = errors.New("saved state is corrupt")

	ErrUnknownPolicy      = colony.ErrUnknownPolicy
	ErrInvalidPolicyValue = colony.ErrInvalidPolicyValue
	ErrUnknownAgentType   = colony.ErrUnknownAgentType

	errNoLanguageModel  = errors.New("language model not configured")
	errNoVideoGenerator = errors.New("video generator not configured")
)
