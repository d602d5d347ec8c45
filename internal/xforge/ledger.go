package xforge

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Outcome is the terminal state of one package for one run.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSkipped
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	}
	return "pending"
}

// Ledger is the append-only record of a run: a timestamped activity log
// plus one outcome file per terminal state. Entries are never mutated or
// deleted; a package gets exactly one outcome entry per run. Passed
// explicitly to every component so tests can substitute buffers.
type Ledger struct {
	mu        sync.Mutex
	activity  io.Writer
	succeeded io.Writer
	failed    io.Writer
	now       func() time.Time

	closers []io.Closer
}

// NewLedger builds a ledger over arbitrary writers (tests use buffers).
func NewLedger(activity, succeeded, failed io.Writer) *Ledger {
	return &Ledger{
		activity:  activity,
		succeeded: succeeded,
		failed:    failed,
		now:       time.Now,
	}
}

// OpenLedger opens the three log files under logDir in append mode.
func OpenLedger(logDir string) (*Ledger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	names := []string{"activity.log", "succeeded.log", "failed.log"}
	files := make([]*os.File, 0, len(names))
	for _, name := range names {
		f, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			for _, open := range files {
				open.Close()
			}
			return nil, err
		}
		files = append(files, f)
	}
	led := NewLedger(files[0], files[1], files[2])
	for _, f := range files {
		led.closers = append(led.closers, f)
	}
	return led, nil
}

func (l *Ledger) Close() {
	for _, c := range l.closers {
		c.Close()
	}
}

// Logf appends one timestamped line to the activity log.
func (l *Ledger) Logf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp := l.now().Format(time.RFC3339)
	fmt.Fprintf(l.activity, "%s %s\n", stamp, fmt.Sprintf(format, args...))
}

// Record appends the terminal outcome for one package. Succeeded and Failed
// additionally land in their dedicated ledger files so the operator can see
// at a glance what to re-run.
func (l *Ledger) Record(name string, outcome Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	stamp := l.now().Format(time.RFC3339)
	fmt.Fprintf(l.activity, "%s %s: %s\n", stamp, name, outcome)
	switch outcome {
	case OutcomeSucceeded:
		fmt.Fprintf(l.succeeded, "%s %s\n", stamp, name)
	case OutcomeFailed:
		fmt.Fprintf(l.failed, "%s %s\n", stamp, name)
	}
}
