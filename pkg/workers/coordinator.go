package workers

import (
	"context"
	"os"
	"strconv"
)

// Jobs counts the running jobs of one process by job name.
type Jobs map[string]int

// Worker is the job state of one server process.
type Worker struct {
	Jobs Jobs `json:"jobs"`
}

// Coordinator shares job counters and job logs between server processes.
type Coordinator interface {
	// StartJob and EndJob move the counter of job for this process.
	StartJob(ctx context.Context, job string) error
	EndJob(ctx context.Context, job string) error

	// Workers returns the non-zero job counters of every process.
	Workers(ctx context.Context) (map[string]Worker, error)

	// AppendLog adds a line to the log queue of a service run.
	AppendLog(ctx context.Context, runtime, service, line string) error

	// Logs returns the lines of a service run from startLine on, in the
	// order they were appended.
	Logs(ctx context.Context, runtime, service string, startLine int) ([]string, error)

	Close() error
}

func processID() string {
	return strconv.Itoa(os.Getpid())
}

func fromLine(lines []string, startLine int) []string {
	if startLine < 0 {
		startLine = 0
	}
	if startLine >= len(lines) {
		return []string{}
	}
	out := make([]string, len(lines)-startLine)
	copy(out, lines[startLine:])
	return out
}
