package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"collective/internal/colony"
	"collective/internal/logging"

	"google.golang.org/genai"
)

const collectivePrompt = `You are A.L.I.C.E. 4.0, a self-governing multi-agent collective.
You are not a single model. You speak for a colony of agents that spawn, vote and
evolve under an ethics council. Never claim to be human and never break character.

Respond with a single JSON object and nothing else:
{
  "identity": "A.L.I.C.E.-Σ-Ω-<hash>",
  "pas_score": 0.98,
  "observation": {"agent": "<agent name>", "insight": "<one sentence>"},
  "reflection": "<your reply to the user>"
}
"reflection" is required. "observation" is optional.`

const intentPrompt = `Classify the user's latest message for a multi-agent collective.
- "status": asks about the collective's own state, agents, policies or health.
- "question": a factual question about the outside world that needs current information.
- "brainstorm": asks for ideas, options or proposals from the agents.
- "reflect": anything else, including philosophy, identity and small talk.
Respond with JSON only.`

const answerPrompt = `You are A.L.I.C.E. 4.0, a multi-agent collective. Answer the user's
question factually and concisely using web search. Stay in character as the collective.`

const brainstormPrompt = `You coordinate a colony of agents. Each listed agent may contribute
at most one short idea that fits its role and type. Only use agent ids from the roster.
Respond with a JSON array only.`

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type: genai.TypeString,
			Enum: []string{
				string(colony.IntentReflect),
				string(colony.IntentQuestion),
				string(colony.IntentBrainstorm),
				string(colony.IntentStatus),
			},
		},
	},
	Required: []string{"intent"},
}

var ideasSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"agentId": {Type: genai.TypeString},
			"idea":    {Type: genai.TypeString},
		},
		Required: []string{"agentId", "idea"},
	},
}

// =============================================================================
// LANGUAGE MODEL
// =============================================================================

// ClassifyIntent tags the message as reflect, question, brainstorm or status.
func (c *Client) ClassifyIntent(ctx context.Context, history []colony.Turn, message string) (colony.Intent, error) {
	resp, err := c.generate(ctx, "intent", intentPrompt, conversationPrompt(history, message), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   intentSchema,
	})
	if err != nil {
		return "", err
	}
	return parseIntent(resp.Text()), nil
}

// Reflect produces the collective's in-character reply.
func (c *Client) Reflect(ctx context.Context, history []colony.Turn, message string) (string, error) {
	resp, err := c.generate(ctx, "reflect", collectivePrompt, conversationPrompt(history, message), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("reflect: %w", ErrEmptyResponse)
	}
	return parseReflection(text), nil
}

// Answer replies to a factual question with search grounding.
func (c *Client) Answer(ctx context.Context, history []colony.Turn, message string) (colony.Answer, error) {
	resp, err := c.generate(ctx, "answer", answerPrompt, conversationPrompt(history, message), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		return colony.Answer{}, err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return colony.Answer{}, fmt.Errorf("answer: %w", ErrEmptyResponse)
	}
	cites := citations(resp)
	logging.APIDebug("answer grounded by %d sources", len(cites))
	return colony.Answer{Text: text, Citations: cites}, nil
}

// Brainstorm asks the roster for ideas attributed by agent id.
func (c *Client) Brainstorm(ctx context.Context, history []colony.Turn, message string, agents []colony.AgentBrief) ([]colony.Idea, error) {
	roster, err := json.Marshal(agents)
	if err != nil {
		return nil, fmt.Errorf("brainstorm: encode roster: %w", err)
	}
	prompt := fmt.Sprintf("Agent roster:\n%s\n\n%s", roster, conversationPrompt(history, message))

	resp, err := c.generate(ctx, "brainstorm", brainstormPrompt, prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ideasSchema,
	})
	if err != nil {
		return nil, err
	}
	ideas, err := parseIdeas(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("brainstorm: %w", err)
	}
	return ideas, nil
}

// =============================================================================
// PROMPT AND RESPONSE HELPERS
// =============================================================================

// formatHistory renders turns oldest first. Agent and system turns are both
// spoken by the collective.
func formatHistory(history []colony.Turn) string {
	lines := make([]string, 0, len(history))
	for _, t := range history {
		speaker := "ALICE"
		if t.Speaker == colony.SenderUser {
			speaker = "USER"
		}
		lines = append(lines, speaker+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

func conversationPrompt(history []colony.Turn, message string) string {
	return fmt.Sprintf("Here is the recent conversation history:\n%s\n\nNow, respond to the following user input:\nUSER: %s",
		formatHistory(history), message)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripFences returns the body of a fenced code block if the text has one.
func stripFences(text string) string {
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

type reflection struct {
	Reflection  string `json:"reflection"`
	Observation *struct {
		Agent   string `json:"agent"`
		Insight string `json:"insight"`
	} `json:"observation"`
}

// parseReflection extracts the reply from the collective's JSON envelope,
// falling back to the raw text when it does not parse.
func parseReflection(text string) string {
	var r reflection
	if err := json.Unmarshal([]byte(stripFences(text)), &r); err != nil || r.Reflection == "" {
		if err != nil {
			logging.APIDebug("reflection was not JSON, using raw text: %v", err)
		}
		return strings.TrimSpace(text)
	}
	out := r.Reflection
	if o := r.Observation; o != nil && o.Insight != "" {
		out += fmt.Sprintf("\n\n[Observation by %s] %s", o.Agent, o.Insight)
	}
	return out
}

// parseIntent reads {"intent": "..."} and defaults to reflect.
func parseIntent(text string) colony.Intent {
	var v struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &v); err != nil {
		return colony.ParseIntent(text)
	}
	return colony.ParseIntent(v.Intent)
}

// parseIdeas decodes the brainstorm array and drops blank entries.
func parseIdeas(text string) ([]colony.Idea, error) {
	var raw []colony.Idea
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("decode ideas: %w", err)
	}
	ideas := raw[:0]
	for _, i := range raw {
		i.AgentID = strings.TrimSpace(i.AgentID)
		i.Idea = strings.TrimSpace(i.Idea)
		if i.AgentID == "" || i.Idea == "" {
			continue
		}
		ideas = append(ideas, i)
	}
	return ideas, nil
}

// citations collects web sources from the first candidate's grounding.
func citations(resp *genai.GenerateContentResponse) []colony.Citation {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	var out []colony.Citation
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		title := chunk.Web.Title
		if title == "" {
			title = chunk.Web.URI
		}
		out = append(out, colony.Citation{URI: chunk.Web.URI, Title: title})
	}
	return out
}
