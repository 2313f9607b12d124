package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SDID constants for structured data IDs (RFC5424). 32473 is the
// documentation enterprise number of RFC 5612.
const (
	EnterpriseNumber = 32473
	SDIDAuth         = "auth@32473"
	SDIDSubject      = "subject@32473"
	SDIDAction       = "action@32473"
	SDIDClient       = "client@32473"
	SDIDRequest      = "request@32473"
)

// Syslog facility constants
const (
	FacilityUser     = 1  // LOG_USER - user-level messages
	FacilityAuth     = 4  // LOG_AUTH - security/authorization messages
	FacilityAuthPriv = 10 // LOG_AUTHPRIV - security/authorization messages (private)
)

// Severity levels matching syslog (RFC5424)
type Severity int

const (
	SeverityEmergency Severity = iota // 0
	SeverityAlert                     // 1
	SeverityCritical                  // 2
	SeverityError                     // 3
	SeverityWarning                   // 4
	SeverityNotice                    // 5
	SeverityInfo                      // 6
	SeverityDebug                     // 7
)

// Name returns the lower-case level name stored in changelog rows.
func (s Severity) Name() string {
	switch s {
	case SeverityEmergency, SeverityAlert, SeverityCritical:
		return "critical"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityDebug:
		return "debug"
	default:
		return "info"
	}
}

// Event represents an audit event
type Event interface {
	MessageID() string
	Message() string
	Severity() Severity
	Facility() int
	StructuredData() map[string]map[string]string
}

// Actor is implemented by events attributed to a user.
type Actor interface {
	Actor() string
}

// Sink persists events next to the syslog stream.
type Sink interface {
	Save(ctx context.Context, event Event) error
}

// Logger handles audit logging in RFC5424 syslog format
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	hostname string
	appName  string
	pid      int
	sink     Sink
	log      *logrus.Logger
	disabled bool
}

// NewLogger creates a new audit logger writing to stdout. Sink failures
// are reported through log.
func NewLogger(log *logrus.Logger) *Logger {
	hostname, _ := os.Hostname()
	return &Logger{
		writer:   os.Stdout,
		hostname: hostname,
		appName:  "enms",
		pid:      os.Getpid(),
		log:      log,
	}
}

// SetWriter sets the output writer for the logger
func (l *Logger) SetWriter(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer = w
}

// SetSink adds a persistent sink.
func (l *Logger) SetSink(sink Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// SetEnabled turns audit output on or off.
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = !enabled
}

// Log writes an audit event in RFC5424 syslog format
// Format: <PRI>VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID SD MSG
func (l *Logger) Log(ctx context.Context, event Event) {
	if l == nil {
		return
	}
	if q, ok := ctx.Value(heldKey{}).(*held); ok {
		q.add(event)
		return
	}
	l.mu.Lock()
	if l.disabled {
		l.mu.Unlock()
		return
	}
	_, _ = l.writer.Write([]byte(l.format(event, time.Now().UTC())))
	sink := l.sink
	l.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink.Save(ctx, event); err != nil && l.log != nil {
		l.log.WithError(err).WithField("msgid", event.MessageID()).Warn("audit: failed to save event")
	}
}

type heldKey struct{}

type held struct {
	mu     sync.Mutex
	events []Event
}

func (h *held) add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

// Hold returns a context whose events are queued instead of written, and
// a release function writing them in order. Events are held while a
// database transaction is open so the sink never waits on it.
func (l *Logger) Hold(ctx context.Context) (context.Context, func()) {
	h := &held{}
	release := func() {
		h.mu.Lock()
		events := h.events
		h.events = nil
		h.mu.Unlock()
		for _, event := range events {
			l.Log(ctx, event)
		}
	}
	return context.WithValue(ctx, heldKey{}, h), release
}

func (l *Logger) format(event Event, now time.Time) string {
	// Calculate PRI value: facility * 8 + severity
	pri := event.Facility()*8 + int(event.Severity())

	sd := formatStructuredData(event.StructuredData())
	if sd == "" {
		sd = "-"
	}

	hostname := l.hostname
	if hostname == "" {
		hostname = "-"
	}

	return fmt.Sprintf("<%d>1 %s %s %s %d %s %s %s\n",
		pri,
		now.Format("2006-01-02T15:04:05.000Z"),
		hostname,
		l.appName,
		l.pid,
		event.MessageID(),
		sd,
		event.Message(),
	)
}

// formatStructuredData formats the structured data according to RFC5424
// Format: [sdid param1="value1" param2="value2"][sdid2 ...]
// Elements and parameters are sorted so lines are reproducible.
func formatStructuredData(sd map[string]map[string]string) string {
	if len(sd) == 0 {
		return ""
	}

	ids := make([]string, 0, len(sd))
	for sdid := range sd {
		ids = append(ids, sdid)
	}
	sort.Strings(ids)

	var parts []string
	for _, sdid := range ids {
		params := sd[sdid]
		keys := make([]string, 0, len(params))
		for key := range params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		paramParts := []string{sdid}
		for _, key := range keys {
			paramParts = append(paramParts, fmt.Sprintf("%s=%s", key, escapeSDValue(params[key])))
		}
		parts = append(parts, "["+strings.Join(paramParts, " ")+"]")
	}
	return strings.Join(parts, "")
}

// escapeSDValue escapes special characters in structured data values per RFC5424
func escapeSDValue(value string) string {
	// Escape backslash, double quote, and closing bracket
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "]", "\\]")
	return "\"" + value + "\""
}
