package kernel

import (
	"context"
	"fmt"

	"collective/internal/colony"
	"collective/internal/logging"
)

// chatHistoryTurns is how many prior chat messages accompany a user message.
const chatHistoryTurns = 10

// chatOutcome is what the language model produced for one user message.
type chatOutcome struct {
	intent  colony.Intent
	text    string
	sources []colony.Citation
	ideas   []colony.Idea
	err     error
}

// HandleUserMessage relays a user message to the collective. Only one chat
// call may be outstanding; a second returns ErrBusy. Collaborator failures
// are appended to the chat log as system messages rather than returned. The
// call is not cancelled by Stop, and a late reply is still appended.
func (k *Kernel) HandleUserMessage(ctx context.Context, text string) error {
	k.mu.Lock()
	if k.chatInFlight {
		k.mu.Unlock()
		return ErrBusy
	}

	history := colony.RecentTurns(k.state.Messages, chatHistoryTurns)
	roster := make([]colony.AgentBrief, len(k.state.Agents))
	for i, a := range k.state.Agents {
		roster[i] = a.Brief()
	}

	k.pushMessage(colony.ChatMessage{Message: text, Sender: "User", SenderType: colony.SenderUser})
	k.chatInFlight = true
	k.state.IsThinking = true
	llm := k.llm
	k.publishLocked()
	k.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryAPI, "chat")
	out := k.converse(ctx, llm, history, text, roster)
	timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()
	k.applyChat(out)
	k.chatInFlight = false
	k.state.IsThinking = false
	k.publishLocked()
	return nil
}

// converse runs the collaborator calls without holding the lock.
func (k *Kernel) converse(ctx context.Context, llm LanguageModel, history []colony.Turn, text string, roster []colony.AgentBrief) chatOutcome {
	if llm == nil {
		return chatOutcome{err: errNoLanguageModel}
	}

	intent, err := llm.ClassifyIntent(ctx, history, text)
	if err != nil {
		k.metrics.IncExternalCall("intent", "error")
		return chatOutcome{err: err}
	}
	k.metrics.IncExternalCall("intent", "ok")
	logging.APIDebug("chat intent: %s", intent)

	out := chatOutcome{intent: intent}
	switch intent {
	case colony.IntentStatus:
		// Composed locally when the reply is applied.
	case colony.IntentQuestion:
		ans, err := llm.Answer(ctx, history, text)
		out.err = err
		out.text = ans.Text
		out.sources = dedupeCitations(ans.Citations)
	case colony.IntentBrainstorm:
		out.ideas, out.err = llm.Brainstorm(ctx, history, text, roster)
	default:
		out.intent = colony.IntentReflect
		out.text, out.err = llm.Reflect(ctx, history, text)
	}

	if intent != colony.IntentStatus {
		status := "ok"
		if out.err != nil {
			status = "error"
		}
		k.metrics.IncExternalCall(string(out.intent), status)
	}
	return out
}

// applyChat appends the outcome to the chat log. Must be called with k.mu held.
func (k *Kernel) applyChat(out chatOutcome) {
	if out.err != nil {
		logging.APIError("chat failed: %v", out.err)
		k.pushMessage(systemMessage(fmt.Sprintf("Error from collective: %v", out.err)))
		return
	}

	switch out.intent {
	case colony.IntentStatus:
		k.pushMessage(systemMessage(k.state.Summary()))

	case colony.IntentBrainstorm:
		accepted := 0
		for _, idea := range out.ideas {
			i := k.state.AgentIndex(idea.AgentID)
			if i < 0 {
				k.pushLog(colony.LogWarning, fmt.Sprintf("[WARN] Dropped idea from unknown agent %s.", idea.AgentID))
				logging.KernelWarn("brainstorm idea from unknown agent %q dropped", idea.AgentID)
				continue
			}
			k.pushMessage(colony.ChatMessage{
				Message:    idea.Idea,
				Sender:     idea.AgentID,
				SenderType: colony.SenderAgent,
			})
			k.state.Agents[i].Metrics.IdeasGenerated++
			k.record(i, colony.LogInfo, "Contributed an idea to a brainstorm")
			accepted++
		}
		if accepted == 0 {
			k.pushMessage(systemMessage("The collective produced no ideas."))
		}

	default:
		k.pushMessage(colony.ChatMessage{
			Message:    out.text,
			Sender:     colony.KernelSender,
			SenderType: colony.SenderSystem,
			Sources:    out.sources,
		})
	}
}

func systemMessage(text string) colony.ChatMessage {
	return colony.ChatMessage{Message: text, Sender: colony.KernelSender, SenderType: colony.SenderSystem}
}

// dedupeCitations keeps the first citation for each URI.
func dedupeCitations(in []colony.Citation) []colony.Citation {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]colony.Citation, 0, len(in))
	for _, c := range in {
		if c.URI == "" || seen[c.URI] {
			continue
		}
		seen[c.URI] = true
		out = append(out, c)
	}
	return out
}
