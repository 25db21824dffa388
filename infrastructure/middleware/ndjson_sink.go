package middleware

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/ahrav/go-verso/internal/domain"
	"github.com/ahrav/go-verso/internal/ports"
)

var _ ports.EventSink = (*NDJSONSink)(nil)

// NDJSONSink streams evaluation events to a writer as newline-delimited
// JSON, one event per line in emission order. Writes are synchronous
// under a mutex; hand the sink a buffered or local writer (stderr, a
// file, a pipe) rather than a slow network destination.
type NDJSONSink struct {
	mu       sync.Mutex
	enc      *json.Encoder
	firstErr error
}

// NewNDJSONSink creates a sink that encodes events to w.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	return &NDJSONSink{enc: json.NewEncoder(w)}
}

// Emit implements the EventSink interface. Write failures are retained
// for Err rather than surfaced to the run; the stream is informational
// and must not abort an evaluation.
func (s *NDJSONSink) Emit(_ context.Context, event domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(event); err != nil && s.firstErr == nil {
		s.firstErr = err
	}
}

// Err returns the first write error encountered, if any.
func (s *NDJSONSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}
