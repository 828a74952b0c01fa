package colony

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAgentType(t *testing.T) {
	tests := []struct {
		in      string
		want    AgentType
		wantErr bool
	}{
		{"Analyst", AgentAnalyst, false},
		{"ethicist", AgentEthicist, false},
		{"  STRATEGIST ", AgentStrategist, false},
		{"Janitor", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAgentType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownAgentType) {
				t.Errorf("ParseAgentType(%q) error = %v, want ErrUnknownAgentType", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAgentType(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestAgentRecordEvictsOldest(t *testing.T) {
	var a Agent
	for i := 0; i < 5; i++ {
		a.Record(HistoryEntry{Tick: int64(i)}, 3)
	}
	require.Len(t, a.History, 3)
	assert.Equal(t, int64(2), a.History[0].Tick)
	assert.Equal(t, int64(4), a.History[2].Tick)
}

func TestAgentCapabilities(t *testing.T) {
	a := Agent{Type: AgentAnalyst, Role: "Guardian Mediator"}
	got := a.Capabilities()
	want := []string{
		"Threat Identification", "Pattern Recognition", "Intel Synthesis",
		"System Monitoring", "Anomaly Detection",
		"Inter-agent Communication", "Consensus Building",
	}
	assert.Equal(t, want, got)

	plain := Agent{Type: AgentEngineer, Role: "builder"}
	assert.Len(t, plain.Capabilities(), 3)
}

func TestAgentCloneIsDeep(t *testing.T) {
	a := Agent{
		ID:      "agent-1",
		Config:  map[string]any{"nested": map[string]any{"k": "v"}, "list": []any{1.0}},
		History: []HistoryEntry{{Message: "born"}},
	}
	c := a.Clone()
	c.Config["nested"].(map[string]any)["k"] = "changed"
	c.Config["list"].([]any)[0] = 2.0
	c.History[0].Message = "changed"

	assert.Equal(t, "v", a.Config["nested"].(map[string]any)["k"])
	assert.Equal(t, 1.0, a.Config["list"].([]any)[0])
	assert.Equal(t, "born", a.History[0].Message)
}

func TestCloneKeepsEmptyCollections(t *testing.T) {
	a := Agent{ID: "agent-1", History: []HistoryEntry{}}
	assert.NotNil(t, a.Clone().History)

	p := Proposal{ID: "prop-1", Voted: []string{}}
	assert.NotNil(t, p.Clone().Voted)

	s := NewState(DefaultPolicy())
	s.Agents = []Agent{a}
	c := s.Clone()
	assert.NotNil(t, c.Agents[0].History)
	assert.NotNil(t, c.Logs)
}

func TestPolicyQuorum(t *testing.T) {
	p := Policy{ApprovalThreshold: 0.6}
	tests := []struct {
		population int
		want       int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 2},
		{10, 6},
	}
	for _, tt := range tests {
		if got := p.Quorum(tt.population); got != tt.want {
			t.Errorf("Quorum(%d) = %d, want %d", tt.population, got, tt.want)
		}
	}
}

func TestPolicyWith(t *testing.T) {
	base := DefaultPolicy()

	p, err := base.With(PolicyMinPAS, 0.7, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.7, p.MinPAS)
	assert.Equal(t, 0.5, base.MinPAS, "original must be unchanged")

	p, err = base.With(PolicyMaxAgents, 20, 3)
	require.NoError(t, err)
	assert.Equal(t, 20, p.MaxAgents)

	_, err = base.With(PolicyMaxAgents, 2, 3)
	assert.ErrorIs(t, err, ErrInvalidPolicyValue)

	_, err = base.With(PolicyMaxAgents, 4.5, 3)
	assert.ErrorIs(t, err, ErrInvalidPolicyValue)

	_, err = base.With(PolicyApprovalThreshold, 0, 3)
	assert.ErrorIs(t, err, ErrInvalidPolicyValue)

	_, err = base.With(PolicyMinPAS, 1.5, 3)
	assert.ErrorIs(t, err, ErrInvalidPolicyValue)

	_, err = base.With("quorum", 1, 3)
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}

func TestProposalCast(t *testing.T) {
	p := Proposal{ID: "prop-1"}
	p.Cast("a", true)
	p.Cast("b", false)
	p.Cast("c", true)

	assert.Equal(t, 1, p.Tally)
	assert.True(t, p.HasVoted("b"))
	assert.False(t, p.HasVoted("d"))

	c := p.Clone()
	c.Voted[0] = "zzz"
	assert.Equal(t, "a", p.Voted[0])
}

func TestStateCloneIsDeep(t *testing.T) {
	s := NewState(DefaultPolicy())
	s.Agents = append(s.Agents, Agent{ID: "agent-1", PAS: 0.5})
	s.Proposals = append(s.Proposals, Proposal{ID: "prop-1", Action: NewSpawnAction(AgentEngineer, "Builder", "{}")})
	s.Messages = append(s.Messages, ChatMessage{ID: 1, Sources: []Citation{{URI: "https://a"}}})

	c := s.Clone()
	c.Agents[0].PAS = 0.1
	c.Proposals[0].Action.Spawn.Role = "changed"
	c.Messages[0].Sources[0].URI = "changed"

	assert.Equal(t, 0.5, s.Agents[0].PAS)
	assert.Equal(t, "Builder", s.Proposals[0].Action.Spawn.Role)
	assert.Equal(t, "https://a", s.Messages[0].Sources[0].URI)
}

func TestStateNormalize(t *testing.T) {
	s := State{Agents: []Agent{{ID: "agent-1"}}}
	s.Normalize()

	assert.NotNil(t, s.Threats)
	assert.NotNil(t, s.AgentMessages)
	assert.NotNil(t, s.Proposals)
	assert.NotNil(t, s.Agents[0].History)
	assert.NotNil(t, s.Agents[0].Config)
}

func TestBuildGraph(t *testing.T) {
	agents := []Agent{
		{ID: "a", Role: "Genesis", Type: AgentStrategist, PAS: 0.9},
		{ID: "b", Role: "Scout", Type: AgentResearcher, PAS: 0.4, Parent: "a"},
	}
	g := BuildGraph(agents)

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "Genesis\n(Strategist)", g.Nodes[0].Label)
	assert.InDelta(t, 23.0, g.Nodes[0].Value, 1e-9)
	assert.Equal(t, []Edge{{From: "a", To: "b"}}, g.Edges)
	assert.InDelta(t, 0.65, AveragePAS(agents), 1e-9)
	assert.Equal(t, 0.0, AveragePAS(nil))
}

func TestRecentTurns(t *testing.T) {
	msgs := []ChatMessage{
		{ID: 3, Message: "third", SenderType: SenderAgent},
		{ID: 2, Message: "second", SenderType: SenderSystem},
		{ID: 1, Message: "first", SenderType: SenderUser},
	}
	turns := RecentTurns(msgs, 10)
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Speaker: SenderUser, Text: "first"}, turns[0])
	assert.Equal(t, Turn{Speaker: SenderSystem, Text: "third"}, turns[2])

	assert.Len(t, RecentTurns(msgs, 2), 2)
}

func TestParseIntent(t *testing.T) {
	assert.Equal(t, IntentQuestion, ParseIntent(" Question "))
	assert.Equal(t, IntentBrainstorm, ParseIntent("brainstorm"))
	assert.Equal(t, IntentReflect, ParseIntent("dance"))
}
