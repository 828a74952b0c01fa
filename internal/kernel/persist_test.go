package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collective/internal/colony"
	"collective/internal/store"
)

type failingStore struct {
	store.BlobStore
	err error
}

func (f failingStore) Put(context.Context, string, []byte) error { return f.err }

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Behaviors = Behaviors{Intel: 1, Message: 1}
	k := newTestKernel(t, cfg, WithLanguageModel(&fakeLLM{intent: colony.IntentReflect, reply: "We are many."}))
	withGenesis(t, k)

	_, err := k.Spawn(colony.AgentAnalyst, "Sentinel", `{"watch": ["north"]}`, "")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, k.Step())
	}
	_, err = k.ProposeSpawnAgent(colony.AgentEngineer, "Builder", "{}")
	require.NoError(t, err)
	require.NoError(t, k.HandleUserMessage(ctx, "Who are you?"))

	// The blob holds the colony as it was before the save entry was logged.
	saved := k.Snapshot()
	require.NoError(t, k.Save(ctx))

	// Diverge, then restore.
	require.NoError(t, k.Step())
	_, err = k.Spawn(colony.AgentEthicist, "Steward", "{}", "")
	require.NoError(t, err)

	require.NoError(t, k.Load(ctx))
	loaded := k.Snapshot()

	if diff := cmp.Diff(saved.State, loaded.State, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("state mismatch after load (-saved +loaded):\n%s", diff)
	}
	assert.Equal(t, saved.Counters, loaded.Counters, "counters are restored exactly")
	assert.False(t, loaded.State.IsRunning)
}

func TestLoadLeavesKernelStopped(t *testing.T) {
	ctx := context.Background()
	k := newTestKernel(t, testConfig())

	k.Init()
	require.NoError(t, k.Save(ctx))
	require.NoError(t, k.Load(ctx))

	assert.False(t, k.IsRunning())
	assert.NoError(t, k.Step(), "stepping is allowed after a load")
}

func TestLoadClearsTransientFlags(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	k := newTestKernel(t, testConfig(), WithStore(st))
	require.NoError(t, k.Save(ctx))

	// Blob written while a chat and a foresight request were in flight.
	k.mu.Lock()
	k.state.IsThinking = true
	k.state.Foresight.Loading = true
	k.mu.Unlock()
	require.NoError(t, k.Save(ctx))

	require.NoError(t, k.Load(ctx))
	snap := k.Snapshot()
	assert.False(t, snap.State.IsThinking)
	assert.False(t, snap.State.Foresight.Loading)
}

func TestLoadKeepsOutstandingCallsExclusive(t *testing.T) {
	ctx := context.Background()
	llm := &fakeLLM{intent: colony.IntentReflect, reply: "first", block: make(chan struct{})}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))
	require.NoError(t, k.Save(ctx))

	errc := make(chan error, 1)
	go func() { errc <- k.HandleUserMessage(ctx, "one") }()
	require.Eventually(t, func() bool { return k.Snapshot().State.IsThinking }, 2*time.Second, time.Millisecond)

	require.NoError(t, k.Load(ctx))
	assert.True(t, k.Snapshot().State.IsThinking, "outstanding chat survives a load")
	assert.ErrorIs(t, k.HandleUserMessage(ctx, "two"), ErrBusy)

	close(llm.block)
	require.NoError(t, <-errc)
	snap := k.Snapshot()
	assert.False(t, snap.State.IsThinking)
	assert.Equal(t, "first", snap.State.Messages[0].Message)
	assert.NoError(t, k.HandleUserMessage(ctx, "three"), "chat is accepted again once the call resolves")
}

func TestLoadKeepsOutstandingForesightExclusive(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	k := newTestKernel(t, testConfig(), WithVideoGenerator(fakeVideo{uri: "https://video.example/2", block: block}))
	require.NoError(t, k.Save(ctx))

	errc := make(chan error, 1)
	go func() { errc <- k.GenerateForesight(ctx) }()
	require.Eventually(t, func() bool { return k.Snapshot().State.Foresight.Loading }, 2*time.Second, time.Millisecond)

	require.NoError(t, k.Load(ctx))
	assert.True(t, k.Snapshot().State.Foresight.Loading)
	assert.ErrorIs(t, k.GenerateForesight(ctx), ErrBusy)

	close(block)
	require.NoError(t, <-errc)
	f := k.Snapshot().State.Foresight
	assert.False(t, f.Loading)
	assert.Equal(t, "https://video.example/2", f.VideoURI)
}

func TestLoadMissingBlob(t *testing.T) {
	k := newTestKernel(t, testConfig())
	withGenesis(t, k)
	before := k.Snapshot()

	err := k.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoSavedState)

	after := k.Snapshot()
	if diff := cmp.Diff(before.State, after.State, cmpopts.IgnoreFields(colony.State{}, "Logs")); diff != "" {
		t.Errorf("state changed on missing blob:\n%s", diff)
	}
	assert.Equal(t, colony.LogWarning, after.State.Logs[0].Type)
}

func TestLoadCorruptBlob(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	k := newTestKernel(t, testConfig(), WithStore(st))
	withGenesis(t, k)
	require.NoError(t, st.Put(ctx, "alice-kernel-state", []byte("{not json")))
	before := k.Snapshot()

	err := k.Load(ctx)
	assert.ErrorIs(t, err, ErrCorruptState)

	_, err = st.Get(ctx, "alice-kernel-state")
	assert.ErrorIs(t, err, store.ErrNotFound, "corrupt blob is discarded")

	after := k.Snapshot()
	assert.Equal(t, before.State.Agents, after.State.Agents)
	assert.Equal(t, colony.LogError, after.State.Logs[0].Type)
}

func TestLoadDefaultsMissingCollections(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	k := newTestKernel(t, testConfig(), WithStore(st))

	legacy := `{"state":{"identity":"A.L.I.C.E.-Σ-Ω-legacy","agents":[{"id":"agent-00000001","role":"Genesis","type":"Strategist","pas":0.9,"age":4}],` +
		`"policies":{"min_pas":0.5,"max_agents":15,"approval_threshold":0.6}},"counters":{"tick":4,"nextLogId":9,"nextMessageId":2}}`
	require.NoError(t, st.Put(ctx, "alice-kernel-state", []byte(legacy)))

	require.NoError(t, k.Load(ctx))
	snap := k.Snapshot()
	assert.NotNil(t, snap.State.Threats)
	assert.NotNil(t, snap.State.AgentMessages)
	assert.NotNil(t, snap.State.Agents[0].History)
	assert.Equal(t, int64(4), snap.Counters.Tick)
	assert.Len(t, snap.State.Graph.Nodes, 1)

	require.NoError(t, k.Step())
	assert.Equal(t, int64(5), k.Snapshot().State.Agents[0].Age)
}

func TestSaveFailureIsLogged(t *testing.T) {
	boom := errors.New("quota exceeded")
	k := newTestKernel(t, testConfig(), WithStore(failingStore{BlobStore: store.NewMemoryStore(), err: boom}))

	err := k.Save(context.Background())
	assert.ErrorIs(t, err, boom)
	logs := k.Snapshot().State.Logs
	assert.Equal(t, colony.LogError, logs[0].Type)
	assert.Contains(t, logs[0].Message, "quota exceeded")
}
