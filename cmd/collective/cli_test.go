package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"collective/internal/colony"
	"collective/internal/config"
	"collective/internal/kernel"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// setupCLI points the global config at a fresh SQLite file with autonomous
// behaviors off so every command is deterministic.
func setupCLI(t *testing.T) {
	t.Helper()
	logger = zap.NewNop()
	timeout = time.Minute

	c := config.DefaultConfig()
	c.Storage.Path = filepath.Join(t.TempDir(), "state.db")
	c.Kernel.Seed = 42
	c.Kernel.Behaviors.Enabled = false
	c.Kernel.Behaviors.Avatars = false
	c.LLM.APIKey = ""
	cfg = c

	t.Cleanup(func() {
		cfg = nil
		stepCount = 1
		runTicks, runDuration = 0, 0
		proposeType, proposeRole, proposeConfig = "", "", "{}"
		policyName, policyValue = "", 0
	})
}

func outCmd() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func savedSnapshot(t *testing.T) colony.Snapshot {
	t.Helper()
	col, err := openColony(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openColony: %v", err)
	}
	snap := col.kernel.Snapshot()
	if err := col.close(context.Background(), false); err != nil {
		t.Fatalf("close: %v", err)
	}
	return snap
}

func TestStepPersists(t *testing.T) {
	setupCLI(t)
	stepCount = 3

	cmd, out := outCmd()
	if err := runStep(cmd, nil); err != nil {
		t.Fatalf("runStep: %v", err)
	}
	if !strings.Contains(out.String(), "Tick 3.") {
		t.Errorf("output = %q, want tick 3", out.String())
	}

	if got := savedSnapshot(t).Counters.Tick; got != 3 {
		t.Errorf("saved tick = %d, want 3", got)
	}

	cmd, out = outCmd()
	if err := runStep(cmd, nil); err != nil {
		t.Fatalf("second runStep: %v", err)
	}
	if !strings.Contains(out.String(), "Tick 6.") {
		t.Errorf("output = %q, want tick 6", out.String())
	}
}

func TestStepRejectsZeroCount(t *testing.T) {
	setupCLI(t)
	stepCount = 0
	cmd, _ := outCmd()
	if err := runStep(cmd, nil); err == nil {
		t.Fatal("expected error for --count 0")
	}
}

func TestProposeSpawnThenStep(t *testing.T) {
	setupCLI(t)
	proposeType, proposeRole, proposeConfig = "analyst", "Sentinel", `{"focus":"intel"}`

	cmd, out := outCmd()
	if err := runProposeSpawn(cmd, nil); err != nil {
		t.Fatalf("runProposeSpawn: %v", err)
	}
	if !strings.Contains(out.String(), "spawn a 'Sentinel' Analyst agent") {
		t.Errorf("output = %q", out.String())
	}
	if n := len(savedSnapshot(t).State.Proposals); n != 1 {
		t.Fatalf("pending proposals = %d, want 1", n)
	}

	// With no agents the quorum is zero, so one step passes the proposal.
	cmd, _ = outCmd()
	if err := runStep(cmd, nil); err != nil {
		t.Fatalf("runStep: %v", err)
	}
	snap := savedSnapshot(t)
	if len(snap.State.Proposals) != 0 {
		t.Errorf("pending proposals = %d, want 0", len(snap.State.Proposals))
	}
	if len(snap.State.Agents) != 1 || snap.State.Agents[0].Role != "Sentinel" {
		t.Fatalf("agents = %+v, want one Sentinel", snap.State.Agents)
	}
	if snap.State.Agents[0].Config["focus"] != "intel" {
		t.Errorf("config = %v", snap.State.Agents[0].Config)
	}

	cmd, out = outCmd()
	if err := runStatus(cmd, nil); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	if !strings.Contains(out.String(), "Sentinel") {
		t.Errorf("status missing agent: %q", out.String())
	}
}

func TestProposePolicyErrors(t *testing.T) {
	setupCLI(t)

	policyName, policyValue = "quorum", 1
	cmd, _ := outCmd()
	if err := runProposePolicy(cmd, nil); !errors.Is(err, kernel.ErrUnknownPolicy) {
		t.Errorf("err = %v, want ErrUnknownPolicy", err)
	}

	policyName, policyValue = "approval_threshold", 1.5
	if err := runProposePolicy(cmd, nil); !errors.Is(err, kernel.ErrInvalidPolicyValue) {
		t.Errorf("err = %v, want ErrInvalidPolicyValue", err)
	}

	if n := len(savedSnapshot(t).State.Proposals); n != 0 {
		t.Errorf("pending proposals = %d, want 0", n)
	}
}

func TestChatWithoutKeyRecordsError(t *testing.T) {
	setupCLI(t)

	cmd, _ := outCmd()
	if err := runChat(cmd, []string{"who", "are", "you?"}); err != nil {
		t.Fatalf("runChat: %v", err)
	}

	msgs := savedSnapshot(t).State.Messages
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[1].Message != "who are you?" || msgs[1].SenderType != colony.SenderUser {
		t.Errorf("user message = %+v", msgs[1])
	}
	if !strings.HasPrefix(msgs[0].Message, "Error from collective") {
		t.Errorf("reply = %q", msgs[0].Message)
	}
}

func TestForesightWithoutKeyFails(t *testing.T) {
	setupCLI(t)
	cmd, _ := outCmd()
	err := runForesight(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "foresight failed") {
		t.Errorf("err = %v, want foresight failure", err)
	}
}

func TestRunHeadlessTicks(t *testing.T) {
	setupCLI(t)
	cfg.Kernel.TickInterval = "5ms"
	runTicks = 3

	cmd, out := outCmd()
	if err := runHeadless(cmd, nil); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	if !strings.Contains(out.String(), "is stopped") {
		t.Errorf("output = %q", out.String())
	}

	snap := savedSnapshot(t)
	if snap.Counters.Tick < 3 {
		t.Errorf("saved tick = %d, want >= 3", snap.Counters.Tick)
	}
	if len(snap.State.Agents) == 0 || snap.State.Agents[0].Role != "Genesis" {
		t.Errorf("agents = %+v, want Genesis", snap.State.Agents)
	}
	if snap.State.IsRunning {
		t.Error("saved state should not be running")
	}
}

func TestRenderStatus(t *testing.T) {
	s := colony.NewState(colony.DefaultPolicy())
	s.Identity = "A.L.I.C.E.-Σ-Ω-deadbeef"
	s.Agents = []colony.Agent{
		{ID: "agent-1", Role: "Genesis", Type: colony.AgentStrategist, PAS: 0.9},
		{ID: "agent-2", Role: "Sentinel", Type: colony.AgentAnalyst, PAS: 0.4},
	}
	s.Threats = []colony.Threat{{ID: "threat-1", Level: colony.ThreatHigh, Description: "Drift detected."}}
	s.Logs = []colony.LogEntry{{ID: 1, Type: colony.LogInfo, Message: "[INIT] Kernel standing by."}}

	out := renderStatus(colony.Snapshot{State: s, Counters: colony.Counters{Tick: 12}}, 5)
	for _, want := range []string{"deadbeef", "Genesis", "Sentinel", "Drift detected.", "[INIT] Kernel standing by.", "12"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Genesis") > strings.Index(out, "Sentinel") {
		t.Error("agents should be ordered by PAS, highest first")
	}
}

type fakeController struct {
	running bool
	steps   int
}

func (f *fakeController) Init()           { f.running = true }
func (f *fakeController) Stop()           { f.running = false }
func (f *fakeController) IsRunning() bool { return f.running }
func (f *fakeController) Step() error {
	if f.running {
		return kernel.ErrRunning
	}
	f.steps++
	return nil
}

func TestWatchModel(t *testing.T) {
	ctl := &fakeController{}
	ch := make(chan colony.Snapshot, 1)
	m := newWatchModel(ctl, ch)

	if !strings.Contains(m.View(), "Waiting") {
		t.Errorf("initial view = %q", m.View())
	}

	s := colony.NewState(colony.DefaultPolicy())
	s.Identity = "A.L.I.C.E.-Σ-Ω-cafebabe"
	next, cmd := m.Update(snapshotMsg(colony.Snapshot{State: s, Counters: colony.Counters{Tick: 4}}))
	m = next.(watchModel)
	if cmd == nil {
		t.Error("expected a follow-up wait command")
	}
	if !strings.Contains(m.View(), "cafebabe") {
		t.Errorf("view missing identity: %q", m.View())
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = next.(watchModel)
	cmd()
	if !ctl.running {
		t.Error("space should start the kernel")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if msg, ok := cmd().(kernelErrMsg); !ok || !errors.Is(msg.err, kernel.ErrRunning) {
		t.Errorf("step while running = %v, want ErrRunning", msg)
	}

	next, _ = m.Update(kernelErrMsg{err: kernel.ErrRunning})
	m = next.(watchModel)
	if !strings.Contains(m.View(), kernel.ErrRunning.Error()) {
		t.Error("view should show the last error")
	}

	close(ch)
	if _, ok := m.waitForSnapshot()().(streamClosedMsg); !ok {
		t.Error("closed subscription should end the dashboard")
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || next.(watchModel).View() != "" {
		t.Error("q should quit")
	}
}

func TestWatchModelBusyIndicator(t *testing.T) {
	m := newWatchModel(&fakeController{}, make(chan colony.Snapshot))

	s := colony.NewState(colony.DefaultPolicy())
	s.IsThinking = true
	next, _ := m.Update(snapshotMsg(colony.Snapshot{State: s}))
	m = next.(watchModel)
	if !m.spinning {
		t.Fatal("an outstanding chat call should start the spinner")
	}
	view := m.View()
	if !strings.Contains(view, "thinking") {
		t.Errorf("view missing busy line: %q", view)
	}
	if !strings.Contains(view, "pause/resume") || !strings.Contains(view, "quit") {
		t.Errorf("view missing key help: %q", view)
	}

	if _, cmd := m.Update(spinner.TickMsg{ID: m.spinner.ID()}); cmd == nil {
		t.Error("spinner should keep ticking while busy")
	}

	s.IsThinking = false
	next, _ = m.Update(snapshotMsg(colony.Snapshot{State: s}))
	m = next.(watchModel)
	next, cmd := m.Update(spinner.TickMsg{ID: m.spinner.ID()})
	if cmd != nil || next.(watchModel).spinning {
		t.Error("spinner should stop once the call resolves")
	}
	if strings.Contains(next.(watchModel).View(), "thinking") {
		t.Error("busy line should clear")
	}
}
