package kernel

import (
	"context"
	"fmt"
	"strings"

	"collective/internal/colony"
	"collective/internal/logging"
)

// GenerateForesight asks the video generator for a clip of the colony's
// likely future. Only one request may be outstanding; a second returns
// ErrBusy. The outcome, URI or error, is recorded in State.Foresight.
func (k *Kernel) GenerateForesight(ctx context.Context) error {
	k.mu.Lock()
	if k.foresightInFlight {
		k.mu.Unlock()
		return ErrBusy
	}
	k.foresightInFlight = true
	k.state.Foresight = colony.Foresight{Loading: true}
	prompt := foresightPrompt(k.state)
	gen := k.video
	k.publishLocked()
	k.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryAPI, "foresight")
	var (
		uri string
		err error
	)
	if gen == nil {
		err = errNoVideoGenerator
	} else {
		uri, err = gen.GenerateVideo(ctx, prompt)
	}
	timer.Stop()

	k.mu.Lock()
	defer k.mu.Unlock()
	k.foresightInFlight = false
	k.state.Foresight.Loading = false
	if err != nil {
		k.metrics.IncExternalCall("video", "error")
		k.state.Foresight.Error = err.Error()
		k.pushLog(colony.LogError, fmt.Sprintf("[ERROR] Foresight generation failed: %v", err))
		logging.APIError("foresight failed: %v", err)
	} else {
		k.metrics.IncExternalCall("video", "ok")
		k.state.Foresight.VideoURI = uri
		k.pushLog(colony.LogSuccess, "[FORESIGHT] Simulation foresight generated.")
		logging.API("foresight ready: %s", uri)
	}
	k.publishLocked()
	return nil
}

// foresightPrompt describes the roster and threat posture.
func foresightPrompt(s colony.State) string {
	counts := make(map[colony.AgentType]int)
	for _, a := range s.Agents {
		counts[a.Type]++
	}
	var parts []string
	for _, t := range colony.AgentTypes {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t))
		}
	}
	roster := "no agents yet"
	if len(parts) > 0 {
		roster = strings.Join(parts, ", ")
	}

	posture := "calm"
	worst := -1
	for _, t := range s.Threats {
		for i, lvl := range colony.ThreatLevels {
			if t.Level == lvl && i > worst {
				worst = i
			}
		}
	}
	if worst >= 0 {
		posture = fmt.Sprintf("%d open intel reports, highest level %s", len(s.Threats), colony.ThreatLevels[worst])
	}

	return fmt.Sprintf("A cinematic, abstract visualization of a self-governing AI collective evolving over time. "+
		"The collective has %s (average pro-sociality %.2f). Threat posture: %s. "+
		"Glowing nodes form and connect in a dark neural network; new agents spark into existence as proposals pass.",
		roster, s.AveragePAS, posture)
}
