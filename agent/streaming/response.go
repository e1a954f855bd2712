package streaming

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/microsoft/Agents-for-net-sub004/agent/channels"
	"github.com/microsoft/Agents-for-net-sub004/agent/citations"
	llmstreaming "github.com/microsoft/Agents-for-net-sub004/llm/streaming"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// TurnContext is the part of a turn a StreamingResponse needs: the inbound
// activity that decides the channel behaviour, and a way to send activities
// back into the conversation.
type TurnContext interface {
	Activity() *types.Activity
	SendActivity(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error)
}

// StreamingResponse streams a single reply into a conversation.
//
// Text chunks are accumulated and re-sent as cumulative typing activities at
// the channel's cadence, then closed out by one final message. All methods are
// safe for concurrent use. Channel failures are logged and reported to the
// Observer; they never surface from the queue methods.
type StreamingResponse struct {
	turn      TurnContext
	channelID string
	policy    channels.Policy
	opts      options
	logger    *zap.Logger
	limiter   *rate.Limiter
	queue     *sendQueue

	mu       sync.Mutex
	state    *streamState
	interval time.Duration
}

// streamState is one stream. Reset replaces it; jobs already queued keep a
// pointer to the state they were created for.
type streamState struct {
	generation int
	id         string
	sequence   int
	message    string
	citations  []citations.Citation

	batcher   *llmstreaming.ChunkBatcher
	started   bool
	startedAt time.Time
	timer     *time.Timer

	finalMessage *types.Activity

	ended   bool
	result  Result
	endDone chan struct{}
}

// NewStreamingResponse binds a response stream to a turn. The channel policy
// is resolved once from the turn's inbound activity.
func NewStreamingResponse(turn TurnContext, opts ...Option) (*StreamingResponse, error) {
	if turn == nil {
		return nil, types.NewError(types.ErrInvalidTurnContext, "turn context is required")
	}
	inbound := turn.Activity()
	if inbound == nil {
		return nil, types.NewError(types.ErrInvalidTurnContext, "turn context has no activity")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	policy := channels.ResolveActivity(inbound)
	if o.policy != nil {
		policy = *o.policy
	}

	s := &StreamingResponse{
		turn:      turn,
		channelID: inbound.ChannelID,
		policy:    policy,
		opts:      o,
		interval:  policy.Interval,
	}
	fields := []zap.Field{
		zap.String("component", "streaming_response"),
		zap.String("channel_id", inbound.ChannelID),
	}
	if inbound.Conversation != nil {
		fields = append(fields, zap.String("conversation_id", inbound.Conversation.ID))
	}
	s.logger = o.logger.With(fields...)
	if policy.MinSendInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(policy.MinSendInterval), 1)
	}
	s.queue = newSendQueue(s.run)
	s.state = s.newState(0)

	s.logger.Debug("streaming response created",
		zap.Bool("streaming_enabled", policy.StreamingEnabled),
		zap.Duration("interval", policy.Interval),
		zap.Stringer("stream_id_mode", policy.StreamIDMode))
	return s, nil
}

func (s *StreamingResponse) newState(generation int) *streamState {
	st := &streamState{generation: generation}
	if s.policy.StreamingEnabled && s.policy.StreamIDMode == channels.ClientAssigned {
		st.id = s.opts.newStreamID()
	}
	return st
}

// ============================================================
// Producer operations
// ============================================================

// QueueTextChunk appends text to the message. The accumulated text is sent at
// the next batching tick. A no-op on channels without streaming and after the
// stream has ended.
func (s *StreamingResponse) QueueTextChunk(text string) {
	if !s.policy.StreamingEnabled || text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.ended {
		s.logger.Debug("text chunk dropped after end of stream")
		return
	}
	st.message += text
	s.startLocked(st)
	// Pushing under the lock keeps the batcher's text in the same order as
	// the message; emissions only touch the send queue's own lock.
	st.batcher.Push(text)
}

// QueueInformativeUpdate sends a status line ("Searching documents...") ahead
// of the answer. It returns once the update has been handed to the channel,
// or when ctx is done.
func (s *StreamingResponse) QueueInformativeUpdate(ctx context.Context, text string) error {
	if !s.policy.StreamingEnabled {
		return nil
	}

	s.mu.Lock()
	st := s.state
	if st.ended {
		s.mu.Unlock()
		s.logger.Debug("informative update dropped after end of stream")
		return nil
	}
	s.startLocked(st)
	job := &sendJob{kind: jobInformative, state: st, text: text, done: make(chan struct{})}
	s.queue.push(job)
	s.mu.Unlock()

	select {
	case <-job.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddCitation registers a citation for the message. A zero Position is
// replaced with the next sequential position.
func (s *StreamingResponse) AddCitation(c citations.Citation) {
	s.AddCitations(c)
}

// AddCitations registers several citations in order. Dropped once the stream
// has ended.
func (s *StreamingResponse) AddCitations(list ...citations.Citation) {
	if !s.policy.StreamingEnabled || len(list) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.ended {
		return
	}
	for _, c := range list {
		if c.Position <= 0 {
			c.Position = len(st.citations) + 1
		}
		st.citations = append(st.citations, c)
	}
}

// SetFinalMessage replaces the generated final message of the current
// stream. Its text is sent as given; stream metadata is still attached. Reset
// discards it.
func (s *StreamingResponse) SetFinalMessage(a *types.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.finalMessage = a.Clone()
}

// FinalMessage returns a copy of the caller-provided final message, or nil.
func (s *StreamingResponse) FinalMessage() *types.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.finalMessage.Clone()
}

// SetInterval changes the batching cadence. Takes effect on the running stream.
func (s *StreamingResponse) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	if b := s.state.batcher; b != nil {
		b.SetInterval(d)
	}
}

// ============================================================
// Lifecycle
// ============================================================

// EndStream closes the stream: pending text is flushed as the final message
// and the result is returned once it has been delivered. Calling it again
// returns the first result. The error is non-nil only when ctx is done first;
// the stream still ends in the background.
func (s *StreamingResponse) EndStream(ctx context.Context) (Result, error) {
	s.mu.Lock()
	st := s.state
	if !st.ended {
		s.endLocked(st, ResultSuccess)
	}
	done := st.endDone
	s.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ResultError, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return st.result, nil
}

// Reset abandons the current stream without sending a final message and
// starts a fresh one with a new stream id and sequence. Updates already
// queued for the old stream still go out under the old id; Reset waits for
// them or for ctx.
func (s *StreamingResponse) Reset(ctx context.Context) error {
	s.mu.Lock()
	old := s.state
	if old.batcher != nil {
		old.batcher.Dispose()
	}
	if old.timer != nil {
		old.timer.Stop()
	}
	if !old.ended {
		old.ended = true
		old.result = ResultSuccess
		old.endDone = make(chan struct{})
		close(old.endDone)
	}
	s.state = s.newState(old.generation + 1)
	barrier := &sendJob{kind: jobBarrier, state: old, done: make(chan struct{})}
	s.queue.push(barrier)
	s.mu.Unlock()

	s.logger.Debug("stream reset", zap.Int("generation", old.generation+1))

	select {
	case <-barrier.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startLocked arms the stream on its first queued item.
func (s *StreamingResponse) startLocked(st *streamState) {
	if st.started {
		return
	}
	st.started = true
	st.startedAt = time.Now()

	st.batcher = llmstreaming.NewChunkBatcher(s.interval)
	st.batcher.Subscribe(func(text string) {
		s.queue.push(&sendJob{kind: jobStreaming, state: st, text: text})
	})

	if d := s.opts.endStreamTimeout; d > 0 {
		st.timer = time.AfterFunc(d, func() { s.expire(st) })
	}
	s.opts.observer.StreamStarted(s.channelID)
}

func (s *StreamingResponse) expire(st *streamState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ended || s.state != st {
		return
	}
	s.logger.Warn("stream exceeded end-of-stream timeout, ending",
		zap.Duration("timeout", s.opts.endStreamTimeout),
		zap.String("stream_id", st.id))
	s.endLocked(st, ResultTimeout)
}

// endLocked stops the batcher and queues the final job. The final job closes
// endDone once it has run, so EndStream also waits for earlier updates.
func (s *StreamingResponse) endLocked(st *streamState, result Result) {
	st.ended = true
	st.result = result
	st.endDone = make(chan struct{})
	if st.timer != nil {
		st.timer.Stop()
	}
	if st.batcher != nil {
		st.batcher.Complete()
	}

	var final *types.Activity
	switch {
	case st.finalMessage != nil:
		final = st.finalMessage.Clone()
	case s.policy.StreamingEnabled && st.message != "":
		final = &types.Activity{
			Type: types.ActivityTypeMessage,
			Text: citations.FormatCitations(st.message),
		}
	case s.policy.StreamingEnabled && st.started:
		// Informative updates only. The open stream still needs a final.
		final = &types.Activity{
			Type: types.ActivityTypeMessage,
			Text: s.opts.emptyFinalText,
		}
	}
	s.queue.push(&sendJob{kind: jobFinal, state: st, final: final, done: st.endDone})
}

// ============================================================
// Introspection
// ============================================================

// Message returns the text accumulated so far for the current stream.
func (s *StreamingResponse) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.message
}

// Citations returns a copy of the registered citations.
func (s *StreamingResponse) Citations() []citations.Citation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]citations.Citation(nil), s.state.citations...)
}

// IsStreamingChannel reports whether the channel receives intermediate updates.
func (s *StreamingResponse) IsStreamingChannel() bool {
	return s.policy.StreamingEnabled
}

// Policy returns the resolved channel policy.
func (s *StreamingResponse) Policy() channels.Policy {
	return s.policy
}

// Interval returns the batching cadence.
func (s *StreamingResponse) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// EndStreamTimeout returns the end-of-stream deadline; zero means none.
func (s *StreamingResponse) EndStreamTimeout() time.Duration {
	return s.opts.endStreamTimeout
}

// UpdatesSent returns how many intermediate updates the channel accepted for the current stream.
func (s *StreamingResponse) UpdatesSent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.sequence
}

// IsStreamStarted reports whether anything was queued on the current stream.
func (s *StreamingResponse) IsStreamStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.started
}

// IsEnded reports whether the current stream has ended.
func (s *StreamingResponse) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ended
}

// StreamID returns the current stream id. Empty until the channel assigns one.
func (s *StreamingResponse) StreamID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.id
}
