package scrape

import (
	"time"

	"github.com/google/uuid"
)

// State is a step of a scrape run.
type State string

const (
	StateIdle                 State = "idle"
	StateFetchingListing      State = "fetching-listing"
	StateExtractingCandidates State = "extracting-candidates"
	StateCheckingDedup        State = "checking-dedup"
	StateFetchingDetail       State = "fetching-detail"
	StateExtractingDetail     State = "extracting-detail"
	StateAccumulating         State = "accumulating"
	StatePersisting           State = "persisting"
	StateDone                 State = "done"
	StateFailed               State = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Outcome is what happened to a single candidate.
type Outcome string

const (
	OutcomeAccumulated   Outcome = "accumulated"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeFetchFailed   Outcome = "fetch-failed"
	OutcomeExtractFailed Outcome = "extract-failed"
	OutcomeInvalid       Outcome = "invalid"
)

// Report summarizes a finished run.
type Report struct {
	RunID  uuid.UUID `json:"runId"`
	Source string    `json:"source"`
	State  State     `json:"state"`

	Candidates int `json:"candidates"`
	Fetched    int `json:"fetched"`
	Extracted  int `json:"extracted"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Staged     int `json:"staged"`

	// Cancelled is set when the run stopped early and persisted what it had.
	Cancelled bool `json:"cancelled,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ProgressEvent is emitted on every state transition and candidate outcome.
type ProgressEvent struct {
	RunID     string  `json:"run_id"`
	Source    string  `json:"source"`
	State     State   `json:"state"`
	Outcome   Outcome `json:"outcome,omitempty"`
	DetailURL string  `json:"detail_url,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// ProgressCallback receives progress events. With RunAll it is called from
// several goroutines at once.
type ProgressCallback func(event ProgressEvent)
