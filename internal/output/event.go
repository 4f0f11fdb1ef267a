package output

// Event is a lifecycle record describing one moment of a backup run.
//
// In NDJSON mode, sinks emit Events (one JSON object per line), including:
//   - run.started
//   - repo.planned  (dry runs only)
//   - repo.synced
//   - repo.failed
//   - run.finished
//
// JSON mode remains an aggregate of the per-repository events.
type Event struct {
	Type      string   `json:"type"`
	Dest      string   `json:"dest,omitempty"`
	URL       string   `json:"url,omitempty"`
	Action    string   `json:"action,omitempty"`
	Error     string   `json:"error,omitempty"`
	Providers []string `json:"providers,omitempty"`
	Workers   int      `json:"workers,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
}

// Summary closes a run. Zero values are meaningful here, so only Planned,
// which dry runs alone populate, carries omitempty.
type Summary struct {
	Total     int  `json:"total"`
	Ignored   int  `json:"ignored"`
	Planned   int  `json:"planned,omitempty"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
	Aborted   bool `json:"aborted"`
	ExitCode  int  `json:"exit_code"`
}

const (
	EventRunStarted  = "run.started"
	EventRepoPlanned = "repo.planned"
	EventRepoSynced  = "repo.synced"
	EventRepoFailed  = "repo.failed"
	EventRunFinished = "run.finished"
)

// RunStarted announces the providers and worker count of a new run.
func RunStarted(providers []string, workers int) Event {
	return Event{Type: EventRunStarted, Providers: providers, Workers: workers}
}

// RepoPlanned records a repository a dry run would have synced.
func RepoPlanned(dest, url string) Event {
	return Event{Type: EventRepoPlanned, Dest: dest, URL: url}
}

// RepoSynced records a successful sync and which action it took.
func RepoSynced(dest, url, action string) Event {
	return Event{Type: EventRepoSynced, Dest: dest, URL: url, Action: action}
}

// RepoFailed records a failed sync.
func RepoFailed(dest, url string, err error) Event {
	e := Event{Type: EventRepoFailed, Dest: dest, URL: url}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// RunFinished closes the run with its final tallies.
func RunFinished(s Summary) Event {
	return Event{Type: EventRunFinished, Summary: &s}
}

// perRepo reports whether the event describes a single repository, which is
// what aggregate sinks collect.
func (e Event) perRepo() bool {
	switch e.Type {
	case EventRepoPlanned, EventRepoSynced, EventRepoFailed:
		return true
	}
	return false
}
