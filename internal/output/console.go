package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleSink renders progress lines for humans. Everything streams; it
// keeps no state between events.
type ConsoleSink struct {
	writer io.Writer
	mu     sync.Mutex

	cloned  *color.Color
	fetched *color.Color
	planned *color.Color
	failed  *color.Color
	bold    *color.Color
}

func NewConsoleSink(w io.Writer, noColor bool) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	s := &ConsoleSink{
		writer:  w,
		cloned:  color.New(color.FgGreen),
		fetched: color.New(color.FgCyan),
		planned: color.New(color.FgYellow),
		failed:  color.New(color.FgRed, color.Bold),
		bold:    color.New(color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{s.cloned, s.fetched, s.planned, s.failed, s.bold} {
			c.DisableColor()
		}
	}
	return s
}

func (s *ConsoleSink) Write(v any) error {
	e, ok := v.(Event)
	if !ok {
		// Ignore values other sinks may understand.
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeLocked(e); err != nil {
		return err
	}
	return flushIfPossible(s.writer)
}

func (s *ConsoleSink) writeLocked(e Event) error {
	switch e.Type {
	case EventRunStarted:
		_, err := s.bold.Fprintf(s.writer, "Backing up from %s with %d workers\n",
			strings.Join(e.Providers, ", "), e.Workers)
		return err
	case EventRepoPlanned:
		return s.repoLine(s.planned, "planned", e.Dest)
	case EventRepoSynced:
		c := s.fetched
		if e.Action == "cloned" {
			c = s.cloned
		}
		return s.repoLine(c, e.Action, e.Dest)
	case EventRepoFailed:
		if err := s.repoLine(s.failed, "failed", e.Dest); err != nil {
			return err
		}
		if e.Error != "" {
			_, err := fmt.Fprintf(s.writer, "        %s\n", e.Error)
			return err
		}
		return nil
	case EventRunFinished:
		return s.summaryLocked(e.Summary)
	default:
		return nil
	}
}

func (s *ConsoleSink) repoLine(c *color.Color, verb, dest string) error {
	if _, err := c.Fprintf(s.writer, "%-8s", verb); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.writer, dest)
	return err
}

func (s *ConsoleSink) summaryLocked(sum *Summary) error {
	if sum == nil {
		return nil
	}
	if sum.Aborted {
		if _, err := s.failed.Fprintln(s.writer, "Run aborted: too many failures"); err != nil {
			return err
		}
	}
	if sum.Planned > 0 {
		_, err := s.bold.Fprintf(s.writer, "Dry run: %d repositories, %d planned, %d ignored\n",
			sum.Total, sum.Planned, sum.Ignored)
		return err
	}
	_, err := s.bold.Fprintf(s.writer, "Done: %d repositories, %d synced, %d failed, %d ignored\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.Ignored)
	return err
}

func (s *ConsoleSink) Close() error {
	return nil
}

type flusher interface {
	Flush() error
}

func flushIfPossible(w io.Writer) error {
	f, ok := w.(flusher)
	if !ok {
		return nil
	}
	return f.Flush()
}
