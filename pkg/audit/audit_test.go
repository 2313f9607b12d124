package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.New())
	logger.SetWriter(&buf)

	logger.Log(context.Background(), AuthnEvent{
		User:     "admin",
		ClientIP: "192.168.1.1",
		Method:   "database",
		Success:  true,
	})

	output := buf.String()

	// <PRI> = authpriv(10) * 8 + info(6)
	if !strings.HasPrefix(output, "<86>1 ") {
		t.Errorf("expected priority prefix, got %q", output)
	}
	if !strings.Contains(output, " enms ") {
		t.Error("Expected app name 'enms' in output")
	}
	if !strings.Contains(output, " authn ") {
		t.Error("Expected message ID 'authn' in output")
	}
	if !strings.Contains(output, `[auth@32473 method="database" user="admin"][client@32473 ip="192.168.1.1"]`) {
		t.Errorf("Expected sorted structured data in output, got %q", output)
	}
	if !strings.HasSuffix(output, "admin successfully authenticated with method database\n") {
		t.Errorf("Expected success message in output, got %q", output)
	}
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.New())
	logger.SetWriter(&buf)
	logger.SetEnabled(false)

	logger.Log(context.Background(), LoginEvent{User: "admin"})

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLoggerHold(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(logrus.New())
	logger.SetWriter(&buf)

	ctx, release := logger.Hold(context.Background())
	logger.Log(ctx, LoginEvent{User: "admin"})
	logger.Log(ctx, LogoutEvent{User: "admin"})
	if buf.Len() != 0 {
		t.Fatalf("expected held events to wait, got %q", buf.String())
	}

	release()
	output := buf.String()
	login := strings.Index(output, " login ")
	logout := strings.Index(output, " logout ")
	if login < 0 || logout < login {
		t.Errorf("expected login then logout, got %q", output)
	}

	buf.Reset()
	release()
	if buf.Len() != 0 {
		t.Errorf("expected a second release to write nothing, got %q", buf.String())
	}
}

type recordingSink struct {
	events []Event
	err    error
}

func (s *recordingSink) Save(_ context.Context, event Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestLoggerSink(t *testing.T) {
	log, hook := test.NewNullLogger()
	logger := NewLogger(log)
	logger.SetWriter(&bytes.Buffer{})

	sink := &recordingSink{}
	logger.SetSink(sink)
	logger.Log(context.Background(), LogoutEvent{User: "admin"})
	if len(sink.events) != 1 {
		t.Fatalf("expected 1 saved event, got %d", len(sink.events))
	}

	sink.err = errors.New("database is locked")
	logger.Log(context.Background(), LogoutEvent{User: "admin"})
	if hook.LastEntry() == nil || hook.LastEntry().Level != logrus.WarnLevel {
		t.Fatal("expected a warning for the failed save")
	}
	if hook.LastEntry().Data["msgid"] != "logout" {
		t.Errorf("msgid = %v, want logout", hook.LastEntry().Data["msgid"])
	}
}

func TestNilLogger(t *testing.T) {
	var logger *Logger
	logger.Log(context.Background(), LoginEvent{User: "admin"})
}

func TestEscapeSDValue(t *testing.T) {
	got := escapeSDValue(`a"b]c\d`)
	want := `"a\"b\]c\\d"`
	if got != want {
		t.Errorf("escapeSDValue() = %s, want %s", got, want)
	}
}

func TestAuthnEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     AuthnEvent
		wantMsg   string
		wantSev   Severity
		wantFac   int
		wantMsgID string
	}{
		{
			name: "successful authentication",
			event: AuthnEvent{
				User:     "admin",
				ClientIP: "10.0.0.1",
				Method:   "database",
				Success:  true,
			},
			wantMsg:   "successfully authenticated",
			wantSev:   SeverityInfo,
			wantFac:   FacilityAuthPriv,
			wantMsgID: "authn",
		},
		{
			name: "failed authentication",
			event: AuthnEvent{
				User:     "bob",
				ClientIP: "10.0.0.1",
				Method:   "database",
				Reason:   "unknown user",
			},
			wantMsg:   "failed to authenticate with method database: unknown user",
			wantSev:   SeverityWarning,
			wantFac:   FacilityAuthPriv,
			wantMsgID: "authn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.event.Message(), tt.wantMsg) {
				t.Errorf("Message() = %q, want to contain %q", tt.event.Message(), tt.wantMsg)
			}
			if tt.event.Severity() != tt.wantSev {
				t.Errorf("Severity() = %v, want %v", tt.event.Severity(), tt.wantSev)
			}
			if tt.event.Facility() != tt.wantFac {
				t.Errorf("Facility() = %v, want %v", tt.event.Facility(), tt.wantFac)
			}
			if tt.event.MessageID() != tt.wantMsgID {
				t.Errorf("MessageID() = %v, want %v", tt.event.MessageID(), tt.wantMsgID)
			}
		})
	}
}

func TestRequestEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   RequestEvent
		wantMsg string
		wantSev Severity
		wantFac int
	}{
		{
			name:    "anonymous",
			event:   RequestEvent{Method: "GET", Path: "/rest/is_alive", Status: 401},
			wantMsg: "Unknown GET /rest/is_alive returned 401",
			wantSev: SeverityWarning,
			wantFac: FacilityAuth,
		},
		{
			name:    "not found",
			event:   RequestEvent{User: "admin", Method: "POST", Path: "/nope", Status: 404},
			wantMsg: "admin POST /nope returned 404",
			wantSev: SeverityInfo,
			wantFac: FacilityUser,
		},
		{
			name:    "server error",
			event:   RequestEvent{User: "admin", Method: "POST", Path: "/update/device", Status: 500},
			wantMsg: "admin POST /update/device returned 500",
			wantSev: SeverityError,
			wantFac: FacilityUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.event.Message() != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", tt.event.Message(), tt.wantMsg)
			}
			if tt.event.Severity() != tt.wantSev {
				t.Errorf("Severity() = %v, want %v", tt.event.Severity(), tt.wantSev)
			}
			if tt.event.Facility() != tt.wantFac {
				t.Errorf("Facility() = %v, want %v", tt.event.Facility(), tt.wantFac)
			}
		})
	}
}

func TestChangeEvent(t *testing.T) {
	event := ChangeEvent{User: "admin", Operation: "update", Type: "device", Name: "r1", Success: true}

	if event.MessageID() != "change" {
		t.Errorf("MessageID() = %v, want 'change'", event.MessageID())
	}
	if event.Message() != "update: device 'r1' (admin)" {
		t.Errorf("Message() = %q", event.Message())
	}
	if event.StructuredData()[SDIDAction]["result"] != "success" {
		t.Errorf("unexpected structured data %v", event.StructuredData())
	}

	event.Success = false
	event.Reason = "Operation not allowed."
	if !strings.Contains(event.Message(), "tried to update device 'r1'") {
		t.Errorf("Message() = %q", event.Message())
	}
}

func TestSeverityName(t *testing.T) {
	tests := map[Severity]string{
		SeverityCritical: "critical",
		SeverityError:    "error",
		SeverityWarning:  "warning",
		SeverityNotice:   "info",
		SeverityInfo:     "info",
		SeverityDebug:    "debug",
	}
	for severity, want := range tests {
		if got := severity.Name(); got != want {
			t.Errorf("Severity(%d).Name() = %q, want %q", severity, got, want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	logger := &Logger{hostname: "host", appName: "enms", pid: 42}
	line := logger.format(LoginEvent{User: "admin", ClientIP: "::1"}, time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC))
	want := `<38>1 2024-01-02T03:04:05.006Z host enms 42 login [client@32473 ip="::1"][subject@32473 user="admin"] USER 'admin' logged in` + "\n"
	if line != want {
		t.Errorf("format() = %q\nwant %q", line, want)
	}
}
