package streaming

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/channels"
	"github.com/microsoft/Agents-for-net-sub004/agent/citations"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

type jobKind int

const (
	jobStreaming jobKind = iota
	jobInformative
	jobFinal
	jobBarrier
)

type sendJob struct {
	kind  jobKind
	state *streamState
	text  string
	final *types.Activity
	done  chan struct{}
}

// sendQueue runs jobs one at a time on a worker goroutine that exists only
// while the queue is non-empty. A queued streaming job that has not started
// yet is overwritten by a newer one for the same stream, since each carries
// the full cumulative text.
type sendQueue struct {
	mu      sync.Mutex
	jobs    []*sendJob
	running bool
	run     func(*sendJob)
}

func newSendQueue(run func(*sendJob)) *sendQueue {
	return &sendQueue{run: run}
}

func (q *sendQueue) push(job *sendJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.kind == jobStreaming && len(q.jobs) > 0 {
		tail := q.jobs[len(q.jobs)-1]
		if tail.kind == jobStreaming && tail.state == job.state {
			tail.text = job.text
			return
		}
	}
	q.jobs = append(q.jobs, job)
	if !q.running {
		q.running = true
		go q.drain()
	}
}

func (q *sendQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.run(job)
	}
}

// ============================================================
// Worker side
// ============================================================

// run executes one job. Only the worker goroutine sends, so reading the
// stream id, sending and adopting the returned id never interleave.
func (s *StreamingResponse) run(job *sendJob) {
	switch job.kind {
	case jobStreaming:
		s.sendUpdate(job, types.StreamTypeStreaming)
	case jobInformative:
		s.sendUpdate(job, types.StreamTypeInformative)
	case jobFinal:
		s.sendFinal(job)
	}
	if job.done != nil {
		close(job.done)
	}
}

func (s *StreamingResponse) sendUpdate(job *sendJob, streamType types.StreamType) {
	st := job.state

	s.mu.Lock()
	seq := st.sequence + 1
	text := job.text
	var used []citations.Citation
	if streamType == types.StreamTypeStreaming {
		text = citations.FormatCitations(text)
		used = citations.UsedCitations(text, st.citations)
	}
	activity := &types.Activity{
		Type:     types.ActivityTypeTyping,
		Text:     text,
		Entities: []types.Entity{types.NewStreamInfo(streamType, st.id, seq)},
	}
	if st.id != "" {
		activity.ID = st.id
	}
	if len(used) > 0 {
		activity.Entities = append(activity.Entities,
			types.NewAIEntity(citations.ToClientCitations(used, s.opts.snippetLength), false))
	}
	if s.policy.MirrorChannelData {
		activity.ChannelData = streamChannelData(streamType, st.id, seq)
	}
	s.mu.Unlock()

	resp, err := s.deliver(st, activity, streamType, seq)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.sequence = seq
	if st.id == "" && resp != nil && resp.ID != "" {
		st.id = resp.ID
		s.logger.Debug("adopted server stream id",
			zap.String("stream_id", st.id),
			zap.Int("generation", st.generation))
	}
}

func (s *StreamingResponse) sendFinal(job *sendJob) {
	st := job.state
	if job.final == nil {
		s.finish(st, nil)
		return
	}

	s.mu.Lock()
	activity := s.buildFinalLocked(st, job.final)
	s.mu.Unlock()

	_, err := s.deliver(st, activity, types.StreamTypeFinal, 0)
	s.finish(st, err)
}

// buildFinalLocked stamps the final message. On channels without streaming
// the caller's message goes out untouched.
func (s *StreamingResponse) buildFinalLocked(st *streamState, final *types.Activity) *types.Activity {
	if !s.policy.StreamingEnabled {
		return final
	}
	if final.Type == "" {
		final.Type = types.ActivityTypeMessage
	}
	if st.id != "" {
		final.ID = st.id
	}

	entities := final.Entities[:0:0]
	hasAIEntity := false
	for _, e := range final.Entities {
		if e.Type == types.EntityTypeStreamInfo {
			continue
		}
		if e.Type == types.EntityTypeAIMessage {
			hasAIEntity = true
		}
		entities = append(entities, e)
	}
	entities = append(entities, types.NewStreamInfo(types.StreamTypeFinal, st.id, 0))
	if !hasAIEntity {
		used := citations.UsedCitations(final.Text, st.citations)
		if len(used) > 0 || s.opts.generatedByAILabel {
			entities = append(entities, types.NewAIEntity(
				citations.ToClientCitations(used, s.opts.snippetLength), s.opts.generatedByAILabel))
		}
	}
	final.Entities = entities

	if s.policy.MirrorChannelData {
		data := streamChannelData(types.StreamTypeFinal, st.id, 0)
		for k, v := range final.ChannelData {
			data[k] = v
		}
		if s.opts.feedbackLoop && channels.IsTeams(s.channelID) {
			data["feedbackLoopEnabled"] = true
		}
		final.ChannelData = data
	}
	return final
}

// finish records the outcome once the final job has run.
func (s *StreamingResponse) finish(st *streamState, err error) {
	s.mu.Lock()
	if err != nil && st.result == ResultSuccess {
		st.result = ResultError
	}
	result, started, startedAt := st.result, st.started, st.startedAt
	s.mu.Unlock()

	if started {
		s.opts.observer.StreamEnded(s.channelID, result, time.Since(startedAt))
	}
	s.logger.Debug("stream ended",
		zap.Stringer("result", result),
		zap.Int("generation", st.generation))
}

// deliver sends one activity. Failures are logged and reported, never returned
// to producers.
func (s *StreamingResponse) deliver(st *streamState, activity *types.Activity, streamType types.StreamType, seq int) (*types.ResourceResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.sendTimeout)
	defer cancel()

	ctx, span := s.opts.tracer.Start(ctx, "streaming.send",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("channel.id", s.channelID),
			attribute.String("stream.type", string(streamType)),
			attribute.Int("stream.sequence", seq),
			attribute.Int("stream.generation", st.generation),
		))
	defer span.End()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			s.sendFailed(span, activity, streamType, err)
			return nil, err
		}
	}

	start := time.Now()
	resp, err := s.turn.SendActivity(ctx, activity)
	if err != nil {
		s.sendFailed(span, activity, streamType, err)
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	s.opts.observer.ActivitySent(s.channelID, streamType, time.Since(start))
	return resp, nil
}

func (s *StreamingResponse) sendFailed(span trace.Span, activity *types.Activity, streamType types.StreamType, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.opts.observer.SendFailed(s.channelID, streamType, err)
	s.logger.Warn("failed to send streaming activity",
		zap.String("stream_id", activity.ID),
		zap.String("stream_type", string(streamType)),
		zap.Error(err))
}

func streamChannelData(streamType types.StreamType, streamID string, seq int) map[string]any {
	data := map[string]any{"streamType": string(streamType)}
	if seq > 0 {
		data["streamSequence"] = seq
	}
	if streamID != "" {
		data["streamId"] = streamID
	}
	return data
}
