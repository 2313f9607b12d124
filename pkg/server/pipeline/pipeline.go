package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	"github.com/netops-labs/enms-in-go/pkg/authenticator"
	"github.com/netops-labs/enms-in-go/pkg/identity"
	"github.com/netops-labs/enms-in-go/pkg/metrics"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/rbac"
	"github.com/netops-labs/enms-in-go/pkg/render"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
	"github.com/netops-labs/enms-in-go/pkg/token"
)

// LoginEndpoint is answered with an error page rather than a redirect.
const LoginEndpoint = "/login"

// Call is the request as seen by a handler. Session is bound to the
// request transaction and to the caller.
type Call struct {
	Request  *http.Request
	Writer   http.ResponseWriter
	Session  store.Session
	Identity *identity.Identity

	committed []func(ctx context.Context)
}

// OnCommit runs fn once the request transaction has committed. Nothing
// runs when the handler fails.
func (c *Call) OnCommit(fn func(ctx context.Context)) {
	c.committed = append(c.committed, fn)
}

func (c *Call) Context() context.Context {
	return c.Request.Context()
}

// User returns the caller, nil when anonymous.
func (c *Call) User() *model.User {
	return c.Identity.User
}

// Var returns a route variable.
func (c *Call) Var(name string) string {
	return mux.Vars(c.Request)[name]
}

// Handler serves one route inside the request transaction.
type Handler func(c *Call) (Result, error)

type Options struct {
	Store    store.Store
	Table    *rbac.TableHolder
	Gateway  *authenticator.Gateway
	Tokens   *token.Signer
	Sessions *token.Sessions
	Renderer render.Renderer
	Audit    *audit.Logger
	Metrics  *metrics.Metrics
	Log      *logrus.Logger
}

// Pipeline identifies, authorizes and dispatches every request, then maps
// the outcome to a response, a log line and an audit event.
type Pipeline struct {
	store    store.Store
	table    *rbac.TableHolder
	gateway  *authenticator.Gateway
	tokens   *token.Signer
	sessions *token.Sessions
	renderer render.Renderer
	audit    *audit.Logger
	metrics  *metrics.Metrics
	log      *logrus.Logger
	now      func() time.Time
}

func New(opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{
		store:    opts.Store,
		table:    opts.Table,
		gateway:  opts.Gateway,
		tokens:   opts.Tokens,
		sessions: opts.Sessions,
		renderer: opts.Renderer,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		log:      log,
		now:      time.Now,
	}
}

// Handle wraps h.
func (p *Pipeline) Handle(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, h)
	})
}

func (p *Pipeline) serve(w http.ResponseWriter, r *http.Request, h Handler) {
	start := p.now()
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	endpoint, api := Classify(r.URL.Path)
	id := identity.Anonymous().
		WithRemoteIP(identity.ParseRemoteAddr(r.RemoteAddr)).
		WithEndpoint(endpoint, api)

	out := p.identify(r, id)
	if out.status == http.StatusOK {
		out = p.authorize(r, id)
	}
	var result Result
	if out.status == http.StatusOK {
		result, out = p.dispatch(w, r, id, h)
	}

	p.respond(w, r, id, result, out)
	p.complete(r, id, out, p.now().Sub(start), requestID)
}

// identify resolves the caller in its own transaction so that a user
// provisioned on first login is kept whatever the handler does.
func (p *Pipeline) identify(r *http.Request, id *identity.Identity) outcome {
	ctx, release := p.audit.Hold(r.Context())
	var (
		user   *model.User
		source identity.Source
	)
	err := p.store.Transaction(ctx, nil, func(s store.Session) error {
		var err error
		if id.API {
			user, source, err = p.apiUser(ctx, s, r, id)
		} else {
			user, source, err = p.sessionUser(ctx, s, r)
		}
		return err
	})
	release()
	switch {
	case err == nil:
		id.User, id.Source = user, source
		return outcome{status: http.StatusOK}
	case errors.Is(err, token.ErrExpired):
		return outcome{status: http.StatusForbidden, alert: "Expired Token", err: err}
	case errors.Is(err, token.ErrInvalid):
		return outcome{status: http.StatusForbidden, alert: "Invalid Token", err: err}
	default:
		return outcome{status: http.StatusInternalServerError, err: err}
	}
}

func (p *Pipeline) apiUser(ctx context.Context, s store.Session, r *http.Request, id *identity.Identity) (*model.User, identity.Source, error) {
	scheme, credentials, _ := strings.Cut(r.Header.Get("Authorization"), " ")
	if strings.EqualFold(scheme, "Bearer") {
		userID, err := p.tokens.Parse(strings.TrimSpace(credentials))
		if err != nil {
			return nil, identity.SourceNone, err
		}
		user, err := s.FetchUserByID(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, identity.SourceNone, fmt.Errorf("%w: unknown user %d", token.ErrInvalid, userID)
		}
		if err != nil {
			return nil, identity.SourceNone, err
		}
		return user, identity.SourceBearer, nil
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, identity.SourceNone, nil
	}
	user, err := p.gateway.Authenticate(ctx, s, authenticator.Credentials{
		Username: username,
		Password: password,
		ClientIP: id.Client(),
	})
	if errors.Is(err, authenticator.ErrAuthenticationFailed) {
		return nil, identity.SourceNone, nil
	}
	if err != nil {
		return nil, identity.SourceNone, err
	}
	return user, identity.SourceBasic, nil
}

// sessionUser returns the user of the page session. An expired or
// tampered cookie is an anonymous caller.
func (p *Pipeline) sessionUser(ctx context.Context, s store.Session, r *http.Request) (*model.User, identity.Source, error) {
	userID, err := p.sessions.User(r)
	if err != nil {
		p.log.WithError(err).Debug("ignoring session cookie")
		return nil, identity.SourceNone, nil
	}
	if userID == 0 {
		return nil, identity.SourceNone, nil
	}
	user, err := s.FetchUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, identity.SourceNone, nil
	}
	if err != nil {
		return nil, identity.SourceNone, err
	}
	return user, identity.SourceSession, nil
}

func (p *Pipeline) authorize(r *http.Request, id *identity.Identity) outcome {
	switch p.table.Load().Decide(id.User, r.Method, id.Endpoint, id.API) {
	case rbac.Allow:
		return outcome{status: http.StatusOK}
	case rbac.NotFound:
		return outcome{status: http.StatusNotFound}
	case rbac.Unauthenticated:
		return outcome{status: http.StatusUnauthorized}
	default:
		return outcome{status: http.StatusForbidden}
	}
}

// dispatch runs h in the request transaction, committed only when h
// succeeds. A panic rolls back and is reported as a server error.
func (p *Pipeline) dispatch(w http.ResponseWriter, r *http.Request, id *identity.Identity, h Handler) (Result, outcome) {
	ctx := identity.Set(r.Context(), id)
	held, release := p.audit.Hold(ctx)
	r = r.WithContext(held)

	var (
		result Result
		call   *Call
	)
	err := p.store.Transaction(held, id.User, func(s store.Session) (err error) {
		defer func() {
			if v := recover(); v != nil {
				err = &panicError{value: v, stack: debug.Stack()}
			}
		}()
		call = &Call{Request: r, Writer: w, Session: s, Identity: id}
		result, err = h(call)
		return err
	})
	release()
	if err != nil {
		// Cookies set by a failed handler must not outlive the rollback.
		w.Header().Del("Set-Cookie")
		return nil, classify(err)
	}
	for _, fn := range call.committed {
		fn(ctx)
	}
	return result, classify(nil)
}

type errorPage struct {
	Status  int
	Message string
}

func (p *Pipeline) respond(w http.ResponseWriter, r *http.Request, id *identity.Identity, result Result, out outcome) {
	var user string
	if id.IsAuthenticated() {
		user = id.User.Name
	}

	var err error
	switch {
	case out.invalid != nil:
		err = writeJSON(w, http.StatusOK, map[string]interface{}{
			"invalid_form": true,
			"errors":       out.invalid.Errors,
		})
	case out.status == http.StatusOK:
		if result == nil {
			result = JSON(nil)
		}
		err = result.write(w, r, p.renderer, user)
	case !id.API && (r.Method == http.MethodGet || id.Endpoint == LoginEndpoint):
		if !id.IsAuthenticated() && id.Endpoint != LoginEndpoint {
			http.Redirect(w, r, LoginEndpoint+"?next_url="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
			return
		}
		message := alerts[out.status]
		if out.alert != "" {
			message = out.alert
		}
		err = p.renderer.Render(w, out.status, "error", render.Page{
			Title: fmt.Sprintf("Error %d", out.status),
			User:  user,
			Data:  errorPage{Status: out.status, Message: message},
		})
	default:
		err = writeJSON(w, out.status, map[string]string{"alert": out.message()})
	}
	if err != nil {
		p.log.WithError(err).WithField("path", r.URL.Path).Error("failed to write response")
	}
}

// complete writes the access log line, metrics and, for failures, an
// audit event.
func (p *Pipeline) complete(r *http.Request, id *identity.Identity, out outcome, elapsed time.Duration, requestID string) {
	line := fmt.Sprintf("USER: %s (%s) - %.3fs - %s %s (%d)",
		id.Name(), id.Client(), elapsed.Seconds(), r.Method, r.URL.Path, out.status)
	entry := p.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"endpoint":   id.Endpoint,
	})

	switch out.status {
	case http.StatusOK:
		if out.invalid != nil {
			entry = entry.WithField("form", out.invalid.Form)
		}
		entry.Info(line)
	case http.StatusUnauthorized, http.StatusForbidden:
		if out.err != nil {
			entry = entry.WithError(out.err)
		}
		entry.Warn(line)
	case http.StatusInternalServerError:
		if out.err != nil {
			entry = entry.WithField("trace", trace(out.err))
		}
		entry.Error(line)
	default:
		entry.Info(line)
	}

	p.metrics.ObserveRequest(r.Method, id.Endpoint, out.status, elapsed)

	if out.status != http.StatusOK {
		var user string
		if id.IsAuthenticated() {
			user = id.User.Name
		}
		p.audit.Log(r.Context(), audit.RequestEvent{
			User:     user,
			ClientIP: id.Client(),
			Method:   r.Method,
			Path:     r.URL.Path,
			Status:   out.status,
		})
	}
}
