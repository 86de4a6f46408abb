package recording

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const execTimeFormat = "2006-01-02 15:04:05.000000000"

// ExecRecorder records when and how the program was run.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecEntry
}

// NewExecRecorder creates the execution information table in recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTable, ExecEntry{})

	return &ExecRecorder{recorder: recorder}
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		ExecEntry{"Start Time", time.Now().Format(execTimeFormat)},
		ExecEntry{"Command", strings.Join(os.Args, " ")},
	)

	if ex, err := os.Executable(); err == nil {
		e.entries = append(e.entries,
			ExecEntry{"Working Directory", filepath.Dir(ex)})
	}
}

// Set notes an extra property of the run.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, ExecEntry{property, value})
}

// End writes the noted properties together with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTable, entry)
	}

	e.recorder.InsertData(ExecTable,
		ExecEntry{"End Time", time.Now().Format(execTimeFormat)})

	e.entries = nil

	e.recorder.Flush()
}
