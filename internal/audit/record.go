package audit

import "time"

// Entry is one line of the audit log.
type Entry struct {
	RunID    string    `json:"run_id"`
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"ts"`
	PrevHash string    `json:"prev_hash"`
	Pipeline string    `json:"pipeline"`
	Stages   []string  `json:"stages"`
	Pid      int       `json:"pid,omitempty"` // terminal stage
	ExitCode int       `json:"exit_code"`
	Error    string    `json:"error,omitempty"`
	Duration float64   `json:"duration_ms"`
	Cwd      string    `json:"cwd"`
	Allow    bool      `json:"allow,omitempty"`
	Hash     string    `json:"hash"` // SHA-256 of the entry with Hash empty
}

// Run describes a finished (or refused) pipeline run.
type Run struct {
	Pipeline string
	Stages   []string
	Pid      int
	ExitCode int
	Err      error
	Duration time.Duration
	Cwd      string
	Allow    bool
}
