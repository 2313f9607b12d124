package audit

import (
	"fmt"
	"strconv"
)

// AuthnEvent records a credential check made by the authentication gateway.
type AuthnEvent struct {
	User     string
	ClientIP string
	Method   string
	Success  bool
	Reason   string
}

func (e AuthnEvent) MessageID() string {
	return "authn"
}

func (e AuthnEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s successfully authenticated with method %s", e.User, e.Method)
	}
	msg := fmt.Sprintf("%s failed to authenticate with method %s", e.User, e.Method)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e AuthnEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e AuthnEvent) Facility() int {
	return FacilityAuthPriv
}

func (e AuthnEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"method": e.Method,
			"user":   e.User,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
	}
}

func (e AuthnEvent) Actor() string {
	return e.User
}

// RequestEvent records a request that did not complete with 200.
type RequestEvent struct {
	User     string
	ClientIP string
	Method   string
	Path     string
	Status   int
}

func (e RequestEvent) MessageID() string {
	return "request"
}

func (e RequestEvent) Message() string {
	user := e.User
	if user == "" {
		user = "Unknown"
	}
	return fmt.Sprintf("%s %s %s returned %d", user, e.Method, e.Path, e.Status)
}

func (e RequestEvent) Severity() Severity {
	switch {
	case e.Status >= 500:
		return SeverityError
	case e.Status == 401 || e.Status == 403:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

func (e RequestEvent) Facility() int {
	if e.Status == 401 || e.Status == 403 {
		return FacilityAuth
	}
	return FacilityUser
}

func (e RequestEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDRequest: {
			"method": e.Method,
			"path":   e.Path,
			"status": strconv.Itoa(e.Status),
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
	}
	if e.User != "" {
		sd[SDIDSubject] = map[string]string{"user": e.User}
	}
	return sd
}

func (e RequestEvent) Actor() string {
	return e.User
}

// LoginEvent is emitted when a page session is opened.
type LoginEvent struct {
	User     string
	ClientIP string
}

func (e LoginEvent) MessageID() string { return "login" }

func (e LoginEvent) Message() string {
	return fmt.Sprintf("USER '%s' logged in", e.User)
}

func (e LoginEvent) Severity() Severity { return SeverityInfo }

func (e LoginEvent) Facility() int { return FacilityAuth }

func (e LoginEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {"user": e.User},
		SDIDClient:  {"ip": e.ClientIP},
	}
}

func (e LoginEvent) Actor() string { return e.User }

// LogoutEvent is emitted when a page session is closed.
type LogoutEvent struct {
	User     string
	ClientIP string
}

func (e LogoutEvent) MessageID() string { return "logout" }

func (e LogoutEvent) Message() string {
	return fmt.Sprintf("USER '%s' logged out", e.User)
}

func (e LogoutEvent) Severity() Severity { return SeverityInfo }

func (e LogoutEvent) Facility() int { return FacilityAuth }

func (e LogoutEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {"user": e.User},
		SDIDClient:  {"ip": e.ClientIP},
	}
}

func (e LogoutEvent) Actor() string { return e.User }

// ChangeEvent records an entity write made through the controller.
type ChangeEvent struct {
	User      string
	Operation string // create, update, delete, duplicate
	Type      string
	Name      string
	Success   bool
	Reason    string
}

func (e ChangeEvent) MessageID() string {
	return "change"
}

func (e ChangeEvent) Message() string {
	if e.Success {
		return fmt.Sprintf("%s: %s '%s' (%s)", e.Operation, e.Type, e.Name, e.User)
	}
	msg := fmt.Sprintf("%s tried to %s %s '%s'", e.User, e.Operation, e.Type, e.Name)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e ChangeEvent) Severity() Severity {
	if e.Success {
		return SeverityNotice
	}
	return SeverityWarning
}

func (e ChangeEvent) Facility() int {
	return FacilityUser
}

func (e ChangeEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"type": e.Type,
			"name": e.Name,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    result(e.Success),
		},
	}
}

func (e ChangeEvent) Actor() string {
	return e.User
}

// TokenEvent records bearer token issuance and rejection.
type TokenEvent struct {
	User     string
	ClientIP string
	Issued   bool
	Reason   string
}

func (e TokenEvent) MessageID() string { return "token" }

func (e TokenEvent) Message() string {
	if e.Issued {
		return fmt.Sprintf("issued bearer token for %s", e.User)
	}
	return fmt.Sprintf("rejected bearer token: %s", e.Reason)
}

func (e TokenEvent) Severity() Severity {
	if e.Issued {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e TokenEvent) Facility() int { return FacilityAuthPriv }

func (e TokenEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {"user": e.User},
		SDIDClient:  {"ip": e.ClientIP},
		SDIDAction:  {"result": result(e.Issued)},
	}
}

func (e TokenEvent) Actor() string { return e.User }

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
