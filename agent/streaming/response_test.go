package streaming

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microsoft/Agents-for-net-sub004/agent/channels"
	"github.com/microsoft/Agents-for-net-sub004/agent/citations"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// --- Helpers ---

// fakeTurn records every activity it accepts.
type fakeTurn struct {
	activity *types.Activity

	mu       sync.Mutex
	sent     []*types.Activity
	attempts int
	failNext int
	failAll  bool
	assignID string
}

func newFakeTurn(channelID string, mode types.DeliveryMode) *fakeTurn {
	return &fakeTurn{activity: &types.Activity{
		Type:         types.ActivityTypeMessage,
		ChannelID:    channelID,
		DeliveryMode: mode,
		Conversation: &types.ConversationAccount{ID: "conv-1"},
	}}
}

func (f *fakeTurn) Activity() *types.Activity { return f.activity }

func (f *fakeTurn) SendActivity(_ context.Context, a *types.Activity) (*types.ResourceResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failAll {
		return nil, errors.New("channel unavailable")
	}
	if f.failNext > 0 {
		f.failNext--
		return nil, errors.New("channel unavailable")
	}
	f.sent = append(f.sent, a.Clone())
	id := f.assignID
	if id == "" {
		id = fmt.Sprintf("act-%d", len(f.sent))
	}
	return &types.ResourceResponse{ID: id}, nil
}

func (f *fakeTurn) Sent() []*types.Activity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Activity(nil), f.sent...)
}

func (f *fakeTurn) Attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeTurn) waitSent(t *testing.T, n int) []*types.Activity {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.Sent()) >= n }, 3*time.Second, 5*time.Millisecond)
	return f.Sent()
}

func fastPolicy(mode channels.StreamIDMode) channels.Policy {
	return channels.Policy{
		StreamingEnabled: true,
		Interval:         20 * time.Millisecond,
		StreamIDMode:     mode,
	}
}

func streamInfo(t *testing.T, a *types.Activity) *types.Entity {
	t.Helper()
	info := a.StreamInfo()
	require.NotNil(t, info, "activity has no streaminfo entity")
	return info
}

func aiEntity(a *types.Activity) *types.Entity {
	for i := range a.Entities {
		if a.Entities[i].Type == types.EntityTypeAIMessage {
			return &a.Entities[i]
		}
	}
	return nil
}

func endStream(t *testing.T, s *StreamingResponse) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := s.EndStream(ctx)
	require.NoError(t, err)
	return res
}

type recordingObserver struct {
	started atomic.Int64
	sent    atomic.Int64
	failed  atomic.Int64
	ended   atomic.Int64

	mu      sync.Mutex
	results []Result
}

func (o *recordingObserver) StreamStarted(string) { o.started.Add(1) }
func (o *recordingObserver) ActivitySent(string, types.StreamType, time.Duration) {
	o.sent.Add(1)
}
func (o *recordingObserver) SendFailed(string, types.StreamType, error) { o.failed.Add(1) }
func (o *recordingObserver) StreamEnded(_ string, r Result, _ time.Duration) {
	o.ended.Add(1)
	o.mu.Lock()
	o.results = append(o.results, r)
	o.mu.Unlock()
}

// --- Construction ---

func TestNewStreamingResponse_RejectsInvalidTurn(t *testing.T) {
	_, err := NewStreamingResponse(nil)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidTurnContext))

	_, err = NewStreamingResponse(&fakeTurn{})
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidTurnContext))
}

func TestNewStreamingResponse_ResolvesPolicy(t *testing.T) {
	tests := []struct {
		name      string
		channelID string
		mode      types.DeliveryMode
		streaming bool
		interval  time.Duration
	}{
		{"teams", channels.MSTeams, types.DeliveryModeNormal, true, channels.TeamsInterval},
		{"webchat", channels.WebChat, types.DeliveryModeNormal, true, channels.WebChatInterval},
		{"expect replies", channels.WebChat, types.DeliveryModeExpectReplies, false, 0},
		{"unknown channel", "slack", types.DeliveryModeNormal, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStreamingResponse(newFakeTurn(tt.channelID, tt.mode))
			require.NoError(t, err)
			assert.Equal(t, tt.streaming, s.IsStreamingChannel())
			assert.Equal(t, tt.interval, s.Interval())
			assert.Equal(t, DefaultEndStreamTimeout, s.EndStreamTimeout())
		})
	}
}

// --- End to end ---

func TestStreamingResponse_TeamsEndToEnd(t *testing.T) {
	turn := newFakeTurn(channels.MSTeams, types.DeliveryModeNormal)
	turn.assignID = "teams-stream-1"

	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)

	s.QueueTextChunk("Hello")
	time.Sleep(1300 * time.Millisecond)

	sent := turn.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, types.ActivityTypeTyping, sent[0].Type)
	assert.Equal(t, "Hello", sent[0].Text)
	assert.Empty(t, sent[0].ID, "first send goes out before the server assigns an id")
	info := streamInfo(t, sent[0])
	assert.Equal(t, types.StreamTypeStreaming, info.StreamType)
	assert.Equal(t, 1, info.StreamSequence)
	assert.Equal(t, "streaming", sent[0].ChannelData["streamType"])

	s.QueueTextChunk(" world")
	assert.Equal(t, "Hello world", s.Message())

	assert.Equal(t, ResultSuccess, endStream(t, s))
	assert.Equal(t, "Hello world", s.Message())

	sent = turn.Sent()
	require.Len(t, sent, 2)
	final := sent[1]
	assert.Equal(t, types.ActivityTypeMessage, final.Type)
	assert.Equal(t, "Hello world", final.Text)
	assert.Equal(t, "teams-stream-1", final.ID)
	finalInfo := streamInfo(t, final)
	assert.Equal(t, types.StreamTypeFinal, finalInfo.StreamType)
	assert.Equal(t, "teams-stream-1", finalInfo.StreamID)
	assert.Equal(t, "final", final.ChannelData["streamType"])
	assert.Equal(t, "teams-stream-1", final.ChannelData["streamId"])
}

// --- Stream identity ---

func TestStreamingResponse_ClientAssignedIDIsStable(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	turn.assignID = "ignored"

	s, err := NewStreamingResponse(turn, WithStreamIDGenerator(func() string { return "stream-abc" }))
	require.NoError(t, err)
	s.SetInterval(20 * time.Millisecond)
	assert.Equal(t, "stream-abc", s.StreamID())

	s.QueueTextChunk("a")
	turn.waitSent(t, 1)
	s.QueueTextChunk("b")
	turn.waitSent(t, 2)
	endStream(t, s)

	for _, a := range turn.Sent() {
		assert.Equal(t, "stream-abc", a.ID)
		assert.Equal(t, "stream-abc", streamInfo(t, a).StreamID)
	}
	assert.Equal(t, "stream-abc", s.StreamID())
}

func TestStreamingResponse_ServerAssignedAdoptsFirstID(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	turn.assignID = "srv-42"

	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ServerAssigned)))
	require.NoError(t, err)
	assert.Empty(t, s.StreamID())

	s.QueueTextChunk("one")
	turn.waitSent(t, 1)
	s.QueueTextChunk(" two")
	sent := turn.waitSent(t, 2)

	assert.Empty(t, sent[0].ID)
	assert.Equal(t, "srv-42", sent[1].ID)
	assert.Equal(t, "srv-42", streamInfo(t, sent[1]).StreamID)
	assert.Equal(t, "srv-42", s.StreamID())
}

// --- Sequence numbering and failures ---

func TestStreamingResponse_SequenceIncrementsOnSuccess(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ClientAssigned)))
	require.NoError(t, err)

	for i, chunk := range []string{"a", "b", "c"} {
		s.QueueTextChunk(chunk)
		turn.waitSent(t, i+1)
	}

	for i, a := range turn.Sent() {
		assert.Equal(t, i+1, streamInfo(t, a).StreamSequence)
	}
	assert.Equal(t, 3, s.UpdatesSent())
}

func TestStreamingResponse_SendFailureDoesNotCorruptState(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	turn.failNext = 1
	obs := &recordingObserver{}

	s, err := NewStreamingResponse(turn,
		WithPolicy(fastPolicy(channels.ClientAssigned)),
		WithObserver(obs))
	require.NoError(t, err)

	s.QueueTextChunk("a")
	require.Eventually(t, func() bool { return turn.Attempts() >= 1 }, 3*time.Second, 5*time.Millisecond)
	assert.Empty(t, turn.Sent())
	assert.Equal(t, 0, s.UpdatesSent())

	s.QueueTextChunk("b")
	sent := turn.waitSent(t, 1)
	assert.Equal(t, "ab", sent[0].Text)
	assert.Equal(t, 1, streamInfo(t, sent[0]).StreamSequence, "failed send does not consume a sequence number")
	assert.Equal(t, "ab", s.Message())
	assert.Equal(t, int64(1), obs.failed.Load())
}

func TestStreamingResponse_FinalSendFailureReportsError(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	turn.failAll = true

	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ClientAssigned)))
	require.NoError(t, err)

	s.QueueTextChunk("x")
	assert.Equal(t, ResultError, endStream(t, s))
	assert.Equal(t, "x", s.Message())
}

// --- Informative updates ---

func TestStreamingResponse_InformativeUpdate(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.QueueInformativeUpdate(ctx, "Thinking..."))

	sent := turn.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, types.ActivityTypeTyping, sent[0].Type)
	assert.Equal(t, "Thinking...", sent[0].Text)
	info := streamInfo(t, sent[0])
	assert.Equal(t, types.StreamTypeInformative, info.StreamType)
	assert.Equal(t, 1, info.StreamSequence)
	assert.True(t, s.IsStreamStarted())
	assert.Empty(t, s.Message(), "informative text is not part of the message")
}

// --- Disabled channels ---

func TestStreamingResponse_DisabledChannelIsNoOp(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeExpectReplies)
	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)

	s.QueueTextChunk("hidden")
	s.AddCitation(citations.Citation{Title: "doc"})
	require.NoError(t, s.QueueInformativeUpdate(context.Background(), "thinking"))

	assert.False(t, s.IsStreamingChannel())
	assert.Empty(t, s.Message())
	assert.Empty(t, s.Citations())
	assert.False(t, s.IsStreamStarted())
	assert.Equal(t, ResultSuccess, endStream(t, s))
	assert.Empty(t, turn.Sent())
}

func TestStreamingResponse_DisabledChannelSendsFinalMessage(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeExpectReplies)
	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)

	s.SetFinalMessage(&types.Activity{Type: types.ActivityTypeMessage, Text: "complete answer"})
	assert.Equal(t, ResultSuccess, endStream(t, s))

	sent := turn.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "complete answer", sent[0].Text)
	assert.Nil(t, sent[0].StreamInfo())
}

// --- End of stream ---

func TestStreamingResponse_EndStreamEmptyIsIdempotent(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)

	assert.Equal(t, ResultSuccess, endStream(t, s))
	assert.Equal(t, ResultSuccess, endStream(t, s))
	assert.Empty(t, turn.Sent())
	assert.True(t, s.IsEnded())

	s.QueueTextChunk("after end")
	assert.Empty(t, s.Message())
}

func TestStreamingResponse_EndStreamFlushesPendingText(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn, WithStreamIDGenerator(func() string { return "s-1" }))
	require.NoError(t, err)

	s.QueueTextChunk("never ")
	s.QueueTextChunk("ticked")
	assert.Equal(t, ResultSuccess, endStream(t, s))

	sent := turn.Sent()
	require.NotEmpty(t, sent)
	final := sent[len(sent)-1]
	assert.Equal(t, types.ActivityTypeMessage, final.Type)
	assert.Equal(t, "never ticked", final.Text)
	assert.Equal(t, "s-1", final.ID)
	assert.Equal(t, 0, streamInfo(t, final).StreamSequence)
}

func TestStreamingResponse_CustomFinalMessage(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn,
		WithPolicy(fastPolicy(channels.ClientAssigned)),
		WithStreamIDGenerator(func() string { return "s-final" }))
	require.NoError(t, err)

	s.SetFinalMessage(&types.Activity{Text: "Done!"})
	s.QueueTextChunk("partial")
	endStream(t, s)

	sent := turn.Sent()
	final := sent[len(sent)-1]
	assert.Equal(t, types.ActivityTypeMessage, final.Type)
	assert.Equal(t, "Done!", final.Text)
	assert.Equal(t, "s-final", final.ID)
	assert.Equal(t, types.StreamTypeFinal, streamInfo(t, final).StreamType)
	assert.Equal(t, "Done!", s.FinalMessage().Text)
}

func TestStreamingResponse_EndStreamTimeout(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	obs := &recordingObserver{}
	s, err := NewStreamingResponse(turn,
		WithEndStreamTimeout(50*time.Millisecond),
		WithObserver(obs))
	require.NoError(t, err)

	s.QueueTextChunk("late")
	require.Eventually(t, s.IsEnded, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, ResultTimeout, endStream(t, s))
	sent := turn.Sent()
	require.NotEmpty(t, sent)
	assert.Equal(t, "late", sent[len(sent)-1].Text)
	assert.Equal(t, types.ActivityTypeMessage, sent[len(sent)-1].Type)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []Result{ResultTimeout}, obs.results)
}

func TestStreamingResponse_EndStreamHonoursContext(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)
	s.QueueTextChunk("x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.EndStream(ctx)
	// The final job may already be done; either outcome is valid, but a
	// cancelled context must never block.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, ResultSuccess, endStream(t, s))
}

// --- Reset ---

func TestStreamingResponse_ResetIsolation(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	var n atomic.Int64
	s, err := NewStreamingResponse(turn,
		WithPolicy(fastPolicy(channels.ClientAssigned)),
		WithStreamIDGenerator(func() string { return fmt.Sprintf("s%d", n.Add(1)) }))
	require.NoError(t, err)

	s.AddCitation(citations.Citation{Title: "old"})
	s.SetFinalMessage(&types.Activity{Text: "old final"})
	s.QueueTextChunk("old text")
	turn.waitSent(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Reset(ctx))

	assert.Empty(t, s.Message())
	assert.Empty(t, s.Citations())
	assert.Nil(t, s.FinalMessage())
	assert.Equal(t, "s2", s.StreamID())
	assert.Equal(t, 0, s.UpdatesSent())
	assert.False(t, s.IsStreamStarted())

	before := len(turn.Sent())
	s.QueueTextChunk("x")
	require.Eventually(t, func() bool { return len(turn.Sent()) > before }, 3*time.Second, 5*time.Millisecond)

	next := turn.Sent()[before]
	assert.Equal(t, "x", next.Text)
	assert.Equal(t, "s2", next.ID)
	assert.Equal(t, 1, streamInfo(t, next).StreamSequence)
	for _, a := range turn.Sent()[:before] {
		assert.Equal(t, "s1", a.ID)
	}
}

func TestStreamingResponse_ResetDiscardsFinalMessage(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	var n atomic.Int64
	s, err := NewStreamingResponse(turn,
		WithPolicy(fastPolicy(channels.ClientAssigned)),
		WithStreamIDGenerator(func() string { return fmt.Sprintf("s%d", n.Add(1)) }))
	require.NoError(t, err)

	s.SetFinalMessage(&types.Activity{Text: "stream one answer"})
	s.QueueTextChunk("first")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Reset(ctx))
	assert.Nil(t, s.FinalMessage())

	s.QueueTextChunk("x")
	endStream(t, s)

	sent := turn.Sent()
	require.NotEmpty(t, sent)
	final := sent[len(sent)-1]
	assert.Equal(t, types.StreamTypeFinal, streamInfo(t, final).StreamType)
	assert.Equal(t, "x", final.Text)
	assert.Equal(t, "s2", final.ID)
	for _, a := range sent {
		assert.NotEqual(t, "stream one answer", a.Text)
	}
}

func TestStreamingResponse_InformativeOnlyStreamGetsFinal(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	turn.assignID = "srv-7"
	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ServerAssigned)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.QueueInformativeUpdate(ctx, "Searching..."))
	assert.Equal(t, "srv-7", s.StreamID())
	assert.Equal(t, ResultSuccess, endStream(t, s))

	sent := turn.Sent()
	require.Len(t, sent, 2)
	final := sent[1]
	assert.Equal(t, types.ActivityTypeMessage, final.Type)
	assert.Equal(t, DefaultEmptyFinalText, final.Text)
	assert.Equal(t, "srv-7", final.ID)
	info := streamInfo(t, final)
	assert.Equal(t, types.StreamTypeFinal, info.StreamType)
	assert.Equal(t, "srv-7", info.StreamID)
}

func TestStreamingResponse_EmptyFinalTextOption(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn,
		WithPolicy(fastPolicy(channels.ClientAssigned)),
		WithEmptyFinalText("Nothing to add."))
	require.NoError(t, err)

	require.NoError(t, s.QueueInformativeUpdate(context.Background(), "Checking..."))
	endStream(t, s)

	sent := turn.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Nothing to add.", sent[1].Text)
}

// --- Citations ---

func TestStreamingResponse_Citations(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ClientAssigned)))
	require.NoError(t, err)

	s.AddCitations(
		citations.Citation{Title: "First", Content: "first document"},
		citations.Citation{Title: "Second", Content: "second document"},
	)
	got := s.Citations()
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Position)
	assert.Equal(t, 2, got[1].Position)

	s.QueueTextChunk("See [doc1]")
	sent := turn.waitSent(t, 1)
	assert.Equal(t, "See [1]", sent[0].Text)
	entity := aiEntity(sent[0])
	require.NotNil(t, entity)
	require.Len(t, entity.Citation, 1)
	assert.Equal(t, 1, entity.Citation[0].Position)

	s.QueueTextChunk(" and [doc2]")
	endStream(t, s)

	sent = turn.Sent()
	final := sent[len(sent)-1]
	assert.Equal(t, "See [1] and [2]", final.Text)
	entity = aiEntity(final)
	require.NotNil(t, entity)
	require.Len(t, entity.Citation, 2)
	assert.Equal(t, "Second", entity.Citation[1].Appearance.Name)
}

func TestStreamingResponse_CitationsAfterEndAreDropped(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ClientAssigned)))
	require.NoError(t, err)

	s.AddCitation(citations.Citation{Title: "kept"})
	s.QueueTextChunk("answer [doc1]")
	endStream(t, s)

	s.AddCitations(citations.Citation{Title: "late"})
	got := s.Citations()
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].Title)
}

func TestStreamingResponse_TeamsFinalMessageExtras(t *testing.T) {
	turn := newFakeTurn(channels.MSTeams, types.DeliveryModeNormal)
	policy := fastPolicy(channels.ServerAssigned)
	policy.MirrorChannelData = true

	s, err := NewStreamingResponse(turn,
		WithPolicy(policy),
		WithGeneratedByAILabel(true),
		WithFeedbackLoop(true))
	require.NoError(t, err)

	s.QueueTextChunk("hi")
	endStream(t, s)

	sent := turn.Sent()
	final := sent[len(sent)-1]
	entity := aiEntity(final)
	require.NotNil(t, entity)
	assert.Equal(t, []string{types.AIGeneratedContent}, entity.AdditionalType)
	assert.Empty(t, entity.Citation)
	assert.Equal(t, true, final.ChannelData["feedbackLoopEnabled"])
	assert.Equal(t, "final", final.ChannelData["streamType"])
}

// --- Observer ---

func TestStreamingResponse_ObserverLifecycle(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	obs := &recordingObserver{}
	s, err := NewStreamingResponse(turn,
		WithPolicy(fastPolicy(channels.ClientAssigned)),
		WithObserver(obs))
	require.NoError(t, err)

	s.QueueTextChunk("a")
	turn.waitSent(t, 1)
	endStream(t, s)

	assert.Equal(t, int64(1), obs.started.Load())
	assert.Equal(t, int64(len(turn.Sent())), obs.sent.Load())
	assert.Equal(t, int64(1), obs.ended.Load())
	assert.Equal(t, int64(0), obs.failed.Load())
}

// --- Concurrency ---

func TestStreamingResponse_ConcurrentChunks(t *testing.T) {
	turn := newFakeTurn("custom", types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn, WithPolicy(fastPolicy(channels.ClientAssigned)))
	require.NoError(t, err)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.QueueTextChunk("x")
			}
		}()
	}
	wg.Wait()
	endStream(t, s)

	assert.Equal(t, strings.Repeat("x", workers*perWorker), s.Message())
	sent := turn.Sent()
	assert.Equal(t, s.Message(), sent[len(sent)-1].Text)
	for i := 1; i < len(sent); i++ {
		assert.GreaterOrEqual(t, len(sent[i].Text), len(sent[i-1].Text), "text must grow monotonically")
	}
}

func TestStreamingResponse_SetInterval(t *testing.T) {
	turn := newFakeTurn(channels.WebChat, types.DeliveryModeNormal)
	s, err := NewStreamingResponse(turn)
	require.NoError(t, err)

	s.SetInterval(0)
	assert.Equal(t, channels.WebChatInterval, s.Interval())

	s.QueueTextChunk("slow")
	s.SetInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, s.Interval())
	turn.waitSent(t, 1)
}
