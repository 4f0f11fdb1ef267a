package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink owns a report file on disk and streams events into it through a
// StreamSink. The format is inferred from the file extension unless given
// explicitly.
type FileSink struct {
	path   string
	file   *os.File
	stream *StreamSink
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}

	if format == "" {
		ext := strings.ToLower(filepath.Ext(path))
		switch ext {
		case ".json":
			format = "json"
		case ".ndjson", ".jsonl":
			format = "ndjson"
		default:
			return nil, fmt.Errorf("cannot infer report format from file extension %q", ext)
		}
	}

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report file: %w", err)
	}
	stream, err := NewStreamSink(f, format)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return &FileSink{path: path, file: f, stream: stream}, nil
}

func (s *FileSink) Write(v any) error {
	return s.stream.Write(v)
}

func (s *FileSink) Close() error {
	err := s.stream.Close()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
