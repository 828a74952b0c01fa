package kernel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collective/internal/colony"
)

func TestChatReflect(t *testing.T) {
	llm := &fakeLLM{intent: colony.IntentReflect, reply: "I am a mirror."}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))

	require.NoError(t, k.HandleUserMessage(context.Background(), "What are you?"))

	msgs := k.Snapshot().State.Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, colony.SenderSystem, msgs[0].SenderType)
	assert.Equal(t, colony.KernelSender, msgs[0].Sender)
	assert.Equal(t, "I am a mirror.", msgs[0].Message)
	assert.Equal(t, colony.SenderUser, msgs[1].SenderType)
	assert.Equal(t, "What are you?", msgs[1].Message)
	assert.Greater(t, msgs[0].ID, msgs[1].ID)
	assert.False(t, k.Snapshot().State.IsThinking)
}

func TestChatHistoryIsOldestFirst(t *testing.T) {
	llm := &fakeLLM{intent: colony.IntentReflect, reply: "reply"}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))
	ctx := context.Background()

	require.NoError(t, k.HandleUserMessage(ctx, "first"))
	assert.Empty(t, llm.lastHistory())

	require.NoError(t, k.HandleUserMessage(ctx, "second"))
	assert.Equal(t, []colony.Turn{
		{Speaker: colony.SenderUser, Text: "first"},
		{Speaker: colony.SenderSystem, Text: "reply"},
	}, llm.lastHistory())
}

func TestChatQuestionDedupesCitations(t *testing.T) {
	llm := &fakeLLM{
		intent: colony.IntentQuestion,
		answer: colony.Answer{
			Text: "The answer.",
			Citations: []colony.Citation{
				{URI: "https://a.example", Title: "A"},
				{URI: "https://b.example", Title: "B"},
				{URI: "https://a.example", Title: "A again"},
			},
		},
	}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))

	require.NoError(t, k.HandleUserMessage(context.Background(), "What is new?"))

	reply := k.Snapshot().State.Messages[0]
	assert.Equal(t, "The answer.", reply.Message)
	assert.Equal(t, []colony.Citation{
		{URI: "https://a.example", Title: "A"},
		{URI: "https://b.example", Title: "B"},
	}, reply.Sources)
}

func TestChatBrainstorm(t *testing.T) {
	llm := &fakeLLM{intent: colony.IntentBrainstorm}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))
	genesis := withGenesis(t, k)
	llm.ideas = []colony.Idea{
		{AgentID: genesis.ID, Idea: "Expand the council."},
		{AgentID: "agent-ghost", Idea: "Boo."},
	}

	require.NoError(t, k.HandleUserMessage(context.Background(), "Ideas?"))

	snap := k.Snapshot()
	require.Len(t, snap.State.Messages, 2)
	assert.Equal(t, colony.SenderAgent, snap.State.Messages[0].SenderType)
	assert.Equal(t, genesis.ID, snap.State.Messages[0].Sender)
	assert.Equal(t, "Expand the council.", snap.State.Messages[0].Message)
	assert.Equal(t, 1, snap.State.Agents[0].Metrics.IdeasGenerated)
	assert.Equal(t, colony.LogWarning, snap.State.Logs[0].Type)
}

func TestChatStatusIsLocal(t *testing.T) {
	llm := &fakeLLM{intent: colony.IntentStatus}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))
	withGenesis(t, k)

	require.NoError(t, k.HandleUserMessage(context.Background(), "status?"))

	reply := k.Snapshot().State.Messages[0]
	assert.Equal(t, colony.SenderSystem, reply.SenderType)
	assert.Contains(t, reply.Message, "1/15 agents")
}

func TestChatFailureBecomesMessage(t *testing.T) {
	k := newTestKernel(t, testConfig(), WithLanguageModel(&fakeLLM{err: errors.New("boom")}))

	require.NoError(t, k.HandleUserMessage(context.Background(), "hello"))
	reply := k.Snapshot().State.Messages[0]
	assert.Equal(t, "Error from collective: boom", reply.Message)
	assert.Equal(t, colony.SenderSystem, reply.SenderType)

	bare := newTestKernel(t, testConfig())
	require.NoError(t, bare.HandleUserMessage(context.Background(), "hello"))
	assert.Equal(t, "Error from collective: language model not configured", bare.Snapshot().State.Messages[0].Message)
}

func TestChatBusyAndLateReply(t *testing.T) {
	llm := &fakeLLM{intent: colony.IntentReflect, reply: "late", block: make(chan struct{})}
	k := newTestKernel(t, testConfig(), WithLanguageModel(llm))
	k.Init()

	errc := make(chan error, 1)
	go func() { errc <- k.HandleUserMessage(context.Background(), "slow") }()

	require.Eventually(t, func() bool { return k.Snapshot().State.IsThinking }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, k.HandleUserMessage(context.Background(), "again"), ErrBusy)

	k.Stop()
	close(llm.block)
	require.NoError(t, <-errc)

	snap := k.Snapshot()
	assert.False(t, snap.State.IsThinking)
	assert.Equal(t, "late", snap.State.Messages[0].Message, "reply after Stop is still appended")
}

// =============================================================================
// FORESIGHT
// =============================================================================

func TestForesightSuccess(t *testing.T) {
	prompts := make(chan string, 1)
	k := newTestKernel(t, testConfig(), WithVideoGenerator(fakeVideo{uri: "https://video.example/1", prompt: prompts}))
	withGenesis(t, k)

	require.NoError(t, k.GenerateForesight(context.Background()))

	f := k.Snapshot().State.Foresight
	assert.False(t, f.Loading)
	assert.Equal(t, "https://video.example/1", f.VideoURI)
	assert.Empty(t, f.Error)
	assert.Contains(t, <-prompts, "1 Strategist")
}

func TestForesightFailure(t *testing.T) {
	k := newTestKernel(t, testConfig(), WithVideoGenerator(fakeVideo{err: errors.New("invalid credential")}))

	require.NoError(t, k.GenerateForesight(context.Background()))
	f := k.Snapshot().State.Foresight
	assert.False(t, f.Loading)
	assert.Empty(t, f.VideoURI)
	assert.Equal(t, "invalid credential", f.Error)

	bare := newTestKernel(t, testConfig())
	require.NoError(t, bare.GenerateForesight(context.Background()))
	assert.Equal(t, "video generator not configured", bare.Snapshot().State.Foresight.Error)
}

func TestForesightBusy(t *testing.T) {
	block := make(chan struct{})
	k := newTestKernel(t, testConfig(), WithVideoGenerator(fakeVideo{uri: "u", block: block}))

	errc := make(chan error, 1)
	go func() { errc <- k.GenerateForesight(context.Background()) }()

	require.Eventually(t, func() bool { return k.Snapshot().State.Foresight.Loading }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, k.GenerateForesight(context.Background()), ErrBusy)

	close(block)
	require.NoError(t, <-errc)
	assert.Equal(t, "u", k.Snapshot().State.Foresight.VideoURI)
}
