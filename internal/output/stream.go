package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// StreamSink writes structured events onto a writer.
//
// Formats:
//   - json: aggregates per-repository events and writes a single JSON array
//     on Close
//   - ndjson: streams every Event (one JSON object per line)
type StreamSink struct {
	writer io.Writer
	format string // "json" | "ndjson"
	mu     sync.Mutex
	events []Event
}

func NewStreamSink(w io.Writer, format string) (*StreamSink, error) {
	if w == nil {
		return nil, fmt.Errorf("stream sink writer must not be nil")
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported stream format: %s", format)
	}
	return &StreamSink{writer: w, format: format}, nil
}

func (s *StreamSink) Write(v any) error {
	e, ok := v.(Event)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		if !e.perRepo() {
			// Ignore lifecycle events in JSON aggregate mode.
			return nil
		}
		s.events = append(s.events, e)
		return nil
	case "ndjson":
		if err := json.NewEncoder(s.writer).Encode(e); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported stream format: %s", s.format)
	}
}

func (s *StreamSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(s.events); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	}
	return nil
}
