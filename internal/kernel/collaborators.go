package kernel

import (
	"context"

	"collective/internal/colony"
)

// LanguageModel is the conversational collaborator behind the chat relay.
// history is oldest first and does not include message.
type LanguageModel interface {
	ClassifyIntent(ctx context.Context, history []colony.Turn, message string) (colony.Intent, error)
	Reflect(ctx context.Context, history []colony.Turn, message string) (string, error)
	Answer(ctx context.Context, history []colony.Turn, message string) (colony.Answer, error)
	Brainstorm(ctx context.Context, history []colony.Turn, message string, agents []colony.AgentBrief) ([]colony.Idea, error)
}

// ImageGenerator renders agent avatars. An empty result means no image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (dataURI string, err error)
}

// VideoGenerator renders foresight clips. It blocks until the clip is ready.
type VideoGenerator interface {
	GenerateVideo(ctx context.Context, prompt string) (uri string, err error)
}

// RandomSource supplies every random draw the kernel makes. *rand.Rand from
// math/rand satisfies it. It is only used while the kernel lock is held.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
	Read(p []byte) (n int, err error)
}
