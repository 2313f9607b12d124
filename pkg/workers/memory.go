package workers

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxLogRuns is the number of run logs a MemoryCoordinator keeps. The
// least recently written run is dropped first.
const MaxLogRuns = 1000

// MemoryCoordinator keeps counters and logs in this process only. Other
// processes of the same deployment do not see them.
type MemoryCoordinator struct {
	mu   sync.Mutex
	pid  string
	jobs Jobs
	logs *lru.Cache[string, []string]
}

var _ Coordinator = (*MemoryCoordinator)(nil)

func NewMemoryCoordinator() *MemoryCoordinator {
	return newMemoryCoordinator(MaxLogRuns)
}

func newMemoryCoordinator(runs int) *MemoryCoordinator {
	logs, err := lru.New[string, []string](runs)
	if err != nil {
		panic(err)
	}
	return &MemoryCoordinator{
		pid:  processID(),
		jobs: Jobs{},
		logs: logs,
	}
}

func (m *MemoryCoordinator) StartJob(_ context.Context, job string) error {
	m.move(job, 1)
	return nil
}

func (m *MemoryCoordinator) EndJob(_ context.Context, job string) error {
	m.move(job, -1)
	return nil
}

func (m *MemoryCoordinator) move(job string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job] += delta
	if m.jobs[job] == 0 {
		delete(m.jobs, job)
	}
}

func (m *MemoryCoordinator) Workers(_ context.Context) (map[string]Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jobs) == 0 {
		return map[string]Worker{}, nil
	}
	jobs := make(Jobs, len(m.jobs))
	for job, count := range m.jobs {
		jobs[job] = count
	}
	return map[string]Worker{m.pid: {Jobs: jobs}}, nil
}

func (m *MemoryCoordinator) AppendLog(_ context.Context, runtime, service, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := logKey(runtime, service)
	lines, _ := m.logs.Get(key)
	m.logs.Add(key, append(lines, line))
	return nil
}

func (m *MemoryCoordinator) Logs(_ context.Context, runtime, service string, startLine int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines, _ := m.logs.Peek(logKey(runtime, service))
	return fromLine(lines, startLine), nil
}

func (m *MemoryCoordinator) Close() error {
	return nil
}
