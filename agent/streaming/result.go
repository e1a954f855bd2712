package streaming

// Result is the outcome of ending a stream.
type Result int

const (
	// ResultSuccess: the stream ended and its final message, if any, was delivered.
	ResultSuccess Result = iota
	// ResultTimeout: the stream hit its end-of-stream deadline and ended itself.
	ResultTimeout
	// ResultError: the final message could not be delivered.
	ResultError
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultTimeout:
		return "timeout"
	case ResultError:
		return "error"
	default:
		return "unknown"
	}
}
