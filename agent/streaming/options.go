package streaming

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/channels"
)

// DefaultEndStreamTimeout reflects the two minute limit Teams puts on a stream.
const DefaultEndStreamTimeout = 2 * time.Minute

// DefaultSendTimeout bounds a single send to the channel.
const DefaultSendTimeout = 30 * time.Second

// DefaultEmptyFinalText closes a stream that only carried informative
// updates. Channels reject a final message without text.
const DefaultEmptyFinalText = "No response was generated."

// Option configures a StreamingResponse.
type Option func(*options)

type options struct {
	logger             *zap.Logger
	observer           Observer
	tracer             trace.Tracer
	policy             *channels.Policy
	endStreamTimeout   time.Duration
	sendTimeout        time.Duration
	newStreamID        func() string
	generatedByAILabel bool
	feedbackLoop       bool
	snippetLength      int
	emptyFinalText     string
}

func defaultOptions() options {
	return options{
		logger:           zap.NewNop(),
		observer:         NopObserver{},
		tracer:           noop.NewTracerProvider().Tracer("streaming"),
		endStreamTimeout: DefaultEndStreamTimeout,
		sendTimeout:      DefaultSendTimeout,
		newStreamID:      uuid.NewString,
		emptyFinalText:   DefaultEmptyFinalText,
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver injects a recorder for stream lifecycle events.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithTracer injects the tracer used for per-send spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithPolicy overrides the policy resolved from the inbound activity.
func WithPolicy(p channels.Policy) Option {
	return func(o *options) {
		o.policy = &p
	}
}

// WithEndStreamTimeout sets the deadline after which an open stream ends
// itself. Zero disables the deadline.
func WithEndStreamTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.endStreamTimeout = d
		}
	}
}

// WithSendTimeout bounds each individual send.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithStreamIDGenerator replaces the generator for client-assigned stream ids.
func WithStreamIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newStreamID = fn
		}
	}
}

// WithGeneratedByAILabel marks the final message as AI generated.
func WithGeneratedByAILabel(enabled bool) Option {
	return func(o *options) {
		o.generatedByAILabel = enabled
	}
}

// WithFeedbackLoop enables the feedback buttons on the final Teams message.
func WithFeedbackLoop(enabled bool) Option {
	return func(o *options) {
		o.feedbackLoop = enabled
	}
}

// WithCitationSnippetLength bounds citation abstracts.
func WithCitationSnippetLength(n int) Option {
	return func(o *options) {
		o.snippetLength = n
	}
}

// WithEmptyFinalText sets the final message text used when a started stream
// ends without any queued text.
func WithEmptyFinalText(text string) Option {
	return func(o *options) {
		if text != "" {
			o.emptyFinalText = text
		}
	}
}
