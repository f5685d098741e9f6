// Package audit records what a sync pass did as one JSON document per run.
package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

const (
	ModeDebug      = "DEBUG"
	ModeProduction = "PRODUCTION"
)

// Entry statuses.
const (
	StatusWritten   = "written"
	StatusSimulated = "simulated"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

type Summary struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Scanned int `json:"scanned"`
}

// Entry is the outcome for one record.
type Entry struct {
	Name             string   `json:"name"`
	Action           string   `json:"action"`
	Reason           string   `json:"reason"`
	EstimatedMinutes *float64 `json:"estimated_minutes,omitempty"`
	WrittenHours     *float64 `json:"written_hours,omitempty"`
	WrittenWeeks     *float64 `json:"written_weeks,omitempty"`
	Status           string   `json:"status"`
	Error            string   `json:"error,omitempty"`
}

// Log is the audit document of a single pass. It is safe for concurrent use.
type Log struct {
	RunID      string           `json:"run_id"`
	Timestamp  time.Time        `json:"timestamp"`
	Mode       string           `json:"mode"`
	Flow       string           `json:"flow"`
	Engine     string           `json:"engine"`
	DatabaseID string           `json:"database_id"`
	Summary    Summary          `json:"summary"`
	Estimates  map[string]Entry `json:"estimates"`

	mu sync.Mutex
}

// New starts the audit document of a pass.
func New(flow, engine, databaseID string, debug bool, now time.Time) *Log {
	mode := ModeProduction
	if debug {
		mode = ModeDebug
	}
	return &Log{
		RunID:      uuid.NewString(),
		Timestamp:  now,
		Mode:       mode,
		Flow:       flow,
		Engine:     engine,
		DatabaseID: databaseID,
		Estimates:  make(map[string]Entry),
	}
}

// Scanned records how many records the store returned.
func (l *Log) Scanned(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Summary.Scanned = n
}

// Skip counts a record that needed no action.
func (l *Log) Skip() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Summary.Skipped++
}

// Add stores the outcome of an acted-upon record and updates the tally.
func (l *Log) Add(id string, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Summary.Total++
	switch e.Status {
	case StatusWritten, StatusSimulated:
		l.Summary.Updated++
	case StatusFailed:
		l.Summary.Failed++
	}
	l.Estimates[id] = e
}

// Snapshot returns a copy of the current tally.
func (l *Log) Snapshot() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.Summary
}

// FileName is <flow>_YYYYMMDD_HHMMSS_<run id prefix>.json, so passes started
// within the same second keep separate documents.
func (l *Log) FileName() string {
	id := l.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	return l.Flow + "_" + l.Timestamp.Format("20060102_150405") + "_" + id + ".json"
}

// Save writes the document into dir and returns its path. A plain file
// sitting where dir should be is removed first.
func (l *Log) Save(dir string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		if err := os.Remove(dir); err != nil {
			return "", eris.Wrapf(err, "remove file at log dir %s", dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "create log dir %s", dir)
	}

	path := filepath.Join(dir, l.FileName())
	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "create audit log %s", path)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(l); err != nil {
		return "", eris.Wrapf(err, "write audit log %s", path)
	}
	return path, nil
}
