package domain

import "time"

// EventKind discriminates lifecycle events emitted while a run executes.
type EventKind string

// Lifecycle event kinds, in the order a typical run emits them. Events are
// informational: they stream in call-completion order under concurrency and
// must never be treated as authoritative over the final report.
const (
	EventStart         EventKind = "start"
	EventChunkStart    EventKind = "chunk-start"
	EventChunkRetry    EventKind = "chunk-retry"
	EventChunkPartial  EventKind = "chunk-partial"
	EventChunkComplete EventKind = "chunk-complete"
	EventChunkError    EventKind = "chunk-error"
	EventProgress      EventKind = "progress"
	EventComplete      EventKind = "complete"
)

// RetryReason explains why a chunk attempt is being retried.
type RetryReason string

// Retry reasons carried by chunk-retry events and observer callbacks.
const (
	// RetryMissingJSON covers responses with no extractable JSON payload,
	// including provider-reported truncation at the output-token cap.
	RetryMissingJSON RetryReason = "missing-json"

	// RetryInvalidJSON covers payloads that parse but fail the shape check.
	RetryInvalidJSON RetryReason = "invalid-json"

	// RetryPartial covers well-formed payloads with required fields absent.
	RetryPartial RetryReason = "partial"

	// RetryTransport covers retryable transport or API failures.
	RetryTransport RetryReason = "transport"
)

// Event is one discriminated lifecycle record. A single struct with
// optional fields keeps the stream trivially NDJSON-encodable; consumers
// switch on Kind and read the fields that kind populates.
type Event struct {
	// Kind discriminates the record.
	Kind EventKind `json:"kind"`

	// RunID identifies the run the event belongs to.
	RunID string `json:"runId"`

	// Timestamp is the emission time.
	Timestamp time.Time `json:"timestamp"`

	// ChunkIndex identifies the chunk for chunk-scoped kinds; -1 for
	// run-scoped kinds.
	ChunkIndex int `json:"chunkIndex"`

	// Attempt is the judge call number the event refers to, for
	// chunk-retry and chunk-partial.
	Attempt int `json:"attempt,omitempty"`

	// Reason explains a chunk-retry.
	Reason RetryReason `json:"reason,omitempty"`

	// MissingFields lists absent field paths for chunk-partial.
	MissingFields []string `json:"missingFields,omitempty"`

	// OverallScore carries the chunk score on chunk-complete and the
	// weighted run score on complete.
	OverallScore int `json:"overallScore,omitempty"`

	// FallbackApplied marks a chunk-complete produced via fallback.
	FallbackApplied bool `json:"fallbackApplied,omitempty"`

	// Completed and Total carry progress counts for progress and the
	// chunk total for start.
	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`

	// Model names the judge on start.
	Model string `json:"model,omitempty"`

	// Error describes the failure on chunk-error.
	Error string `json:"error,omitempty"`
}

// newEvent stamps the shared fields of every record.
func newEvent(kind EventKind, runID string, chunkIndex int) Event {
	return Event{
		Kind:       kind,
		RunID:      runID,
		Timestamp:  time.Now().UTC(),
		ChunkIndex: chunkIndex,
	}
}

// NewStartEvent announces a run of total chunks against model.
func NewStartEvent(runID, model string, total int) Event {
	ev := newEvent(EventStart, runID, -1)
	ev.Model = model
	ev.Total = total
	return ev
}

// NewChunkStartEvent announces that a worker claimed a chunk.
func NewChunkStartEvent(runID string, index int) Event {
	return newEvent(EventChunkStart, runID, index)
}

// NewChunkRetryEvent announces a retry of the given attempt for a reason.
func NewChunkRetryEvent(runID string, index, attempt int, reason RetryReason) Event {
	ev := newEvent(EventChunkRetry, runID, index)
	ev.Attempt = attempt
	ev.Reason = reason
	return ev
}

// NewChunkPartialEvent announces that an attempt returned a partial payload.
func NewChunkPartialEvent(runID string, index, attempt int, missing []string) Event {
	ev := newEvent(EventChunkPartial, runID, index)
	ev.Attempt = attempt
	ev.MissingFields = append([]string(nil), missing...)
	return ev
}

// NewChunkCompleteEvent announces a finished chunk, fallback or not.
func NewChunkCompleteEvent(runID string, result ChunkResult) Event {
	ev := newEvent(EventChunkComplete, runID, result.Index)
	ev.OverallScore = result.OverallScore
	ev.Attempt = result.AttemptsUsed
	ev.FallbackApplied = result.FallbackApplied
	return ev
}

// NewChunkErrorEvent announces the fatal failure of a chunk.
func NewChunkErrorEvent(runID string, index int, err error) Event {
	ev := newEvent(EventChunkError, runID, index)
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// NewProgressEvent reports completed out of total chunks.
func NewProgressEvent(runID string, completed, total int) Event {
	ev := newEvent(EventProgress, runID, -1)
	ev.Completed = completed
	ev.Total = total
	return ev
}

// NewCompleteEvent announces the finished run with its weighted score.
func NewCompleteEvent(runID string, overallScore, total int) Event {
	ev := newEvent(EventComplete, runID, -1)
	ev.OverallScore = overallScore
	ev.Total = total
	return ev
}
