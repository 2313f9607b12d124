package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/netops-labs/enms-in-go/pkg/forms"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// Alerts shown for each failure status.
var alerts = map[int]string{
	http.StatusUnauthorized:        "Wrong Credentials",
	http.StatusForbidden:           "Operation not allowed.",
	http.StatusNotFound:            "Invalid POST request.",
	http.StatusInternalServerError: "Internal Server Error.",
}

// Alert returns the JSON error message for status.
func Alert(status int) string {
	return fmt.Sprintf("Error %d - %s", status, alerts[status])
}

type outcome struct {
	status int
	// alert replaces the default message of status.
	alert string
	err   error
	// invalid is set when a submitted form failed validation.
	invalid *forms.ValidationError
}

func (o outcome) message() string {
	if o.alert != "" {
		return o.alert
	}
	return Alert(o.status)
}

// panicError carries a recovered handler panic and its stack.
type panicError struct {
	value interface{}
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// classify maps a dispatch error to the response status.
func classify(err error) outcome {
	var (
		rbacErr    *rbac.Error
		invalidErr *forms.ValidationError
	)
	switch {
	case err == nil:
		return outcome{status: http.StatusOK}
	case errors.As(err, &invalidErr):
		return outcome{status: http.StatusOK, invalid: invalidErr, err: err}
	case errors.Is(err, store.ErrForbidden), errors.As(err, &rbacErr):
		return outcome{status: http.StatusForbidden, err: err}
	case errors.Is(err, store.ErrNotFound):
		return outcome{status: http.StatusNotFound, err: err}
	default:
		return outcome{status: http.StatusInternalServerError, err: err}
	}
}

// trace returns the detail logged for a server error.
func trace(err error) string {
	var p *panicError
	if errors.As(err, &p) {
		return fmt.Sprintf("%v\n%s", p.value, p.stack)
	}
	return fmt.Sprintf("%+v", err)
}
