package endpoints

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"strings"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	"github.com/netops-labs/enms-in-go/pkg/authenticator"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/forms"
	"github.com/netops-labs/enms-in-go/pkg/migration"
	"github.com/netops-labs/enms-in-go/pkg/model"
	"github.com/netops-labs/enms-in-go/pkg/render"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// LoginPage is the data of the login template.
type LoginPage struct {
	Error   string
	NextURL string
	Methods []string
}

// Counter is one line of the dashboard.
type Counter struct {
	Type  string
	Count int
}

// DashboardPage is the data of the dashboard template.
type DashboardPage struct {
	Counters []Counter
}

// TablePage is the data of the table template.
type TablePage struct {
	Type    string
	Columns []string
	Rows    []map[string]interface{}
}

// FormPage is the data of the form template.
type FormPage struct {
	Action   string
	FormType string
	Fields   forms.Descriptor
}

// HelpPage is the data of the help template.
type HelpPage struct {
	Body template.HTML
}

// RegisterPageEndpoints registers the browser pages.
func RegisterPageEndpoints(s *server.Server) {
	p := s.Pipeline
	r := s.Router

	r.Handle("/", p.Handle(handleIndex())).Methods("GET")
	r.Handle("/login", p.Handle(handleLoginPage(s))).Methods("GET")
	r.Handle("/login", p.Handle(handleLogin(s))).Methods("POST")
	r.Handle("/logout", p.Handle(handleLogout(s))).Methods("GET")
	r.Handle("/dashboard", p.Handle(handleDashboard(s))).Methods("GET")
	r.Handle("/{type:[a-z_]+}_table", p.Handle(handleTable(s))).Methods("GET")
	r.Handle("/parameterized_form/{id}", p.Handle(handleParameterizedForm(s))).Methods("GET")
	r.Handle("/{form:[a-z_]+}_form", p.Handle(handleForm(s))).Methods("GET")
	r.Handle("/help", p.Handle(handleHelp(s))).Methods("GET")
	r.Handle("/help/{path:.*}", p.Handle(handleHelp(s))).Methods("GET")
}

func handleIndex() pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		if c.User() == nil {
			return pipeline.Redirect("/login"), nil
		}
		return pipeline.Redirect("/dashboard"), nil
	}
}

func handleLoginPage(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		next := safeRedirect(c.Request.URL.Query().Get("next_url"), "/dashboard")
		if c.User() != nil {
			return pipeline.Redirect(next), nil
		}
		return pipeline.Page("login", "Login", LoginPage{
			NextURL: next,
			Methods: s.Gateway.Registry().Enabled(),
		}), nil
	}
}

// handleLogin opens a page session. Rejected credentials answer 403.
func handleLogin(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		ctx := c.Context()
		values, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		next, _ := values["next_url"].(string)
		delete(values, "next_url")
		values[FormTypeField] = "login"
		if values, err = validated(s, values); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrForbidden, err)
		}

		username, _ := values["username"].(string)
		password, _ := values["password"].(string)
		method, _ := values["authentication_method"].(string)
		user, err := s.Gateway.Authenticate(ctx, c.Session, authenticator.Credentials{
			Username: username,
			Password: password,
			Method:   method,
			ClientIP: c.Identity.Client(),
		})
		if errors.Is(err, authenticator.ErrAuthenticationFailed) {
			return nil, fmt.Errorf("%w: %v", store.ErrForbidden, err)
		}
		if err != nil {
			return nil, err
		}

		if err := s.Sessions.Start(c.Writer, user.ID); err != nil {
			return nil, err
		}
		s.Log.WithField("user", user.Name).Info("USER '" + user.Name + "' logged in")
		event := audit.LoginEvent{User: user.Name, ClientIP: c.Identity.Client()}
		c.OnCommit(func(ctx context.Context) { s.Audit.Log(ctx, event) })
		return pipeline.Redirect(safeRedirect(next, "/dashboard")), nil
	}
}

func handleLogout(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		s.Sessions.End(c.Writer)
		if user := c.User(); user != nil {
			s.Log.WithField("user", user.Name).Info("USER '" + user.Name + "' logged out")
			event := audit.LogoutEvent{User: user.Name, ClientIP: c.Identity.Client()}
			c.OnCommit(func(ctx context.Context) { s.Audit.Log(ctx, event) })
		}
		return pipeline.Redirect("/login"), nil
	}
}

func handleDashboard(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		page := DashboardPage{}
		for _, entityType := range migration.DefaultTypes {
			objects, err := c.Session.FetchAll(c.Context(), entityType, nil)
			if err != nil {
				return nil, err
			}
			page.Counters = append(page.Counters, Counter{Type: entityType, Count: len(readable(s, c, objects))})
		}
		return pipeline.Page("dashboard", "Dashboard", page), nil
	}
}

// columns returns the serialized properties of a type, name first.
func columns(schema *model.Schema) []string {
	var cols []string
	for _, prop := range schema.Properties {
		if prop.Private || prop.NoSerialize || prop.Name == "name" {
			continue
		}
		cols = append(cols, prop.Name)
	}
	sort.Strings(cols)
	return append([]string{"name"}, cols...)
}

func handleTable(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		ctx := c.Context()
		entityType := c.Var("type")
		schema, err := s.Models.Lookup(entityType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrNotFound, err)
		}
		objects, err := c.Session.FetchAll(ctx, entityType, nil)
		if err != nil {
			return nil, err
		}
		page := TablePage{Type: entityType, Columns: columns(schema)}
		for _, obj := range readable(s, c, objects) {
			row, err := s.Manager.GetProperties(ctx, c.Session, obj, entity.PropertyOptions{Include: page.Columns})
			if err != nil {
				return nil, err
			}
			page.Rows = append(page.Rows, row)
		}
		return pipeline.Page("table", entityType, page), nil
	}
}

func handleForm(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		name := c.Var("form")
		descriptor, ok := s.Forms.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: form %s", store.ErrNotFound, name)
		}
		action := "/" + name
		if _, err := s.Models.Lookup(name); err == nil {
			action = "/update/" + name
		}
		return pipeline.Page("form", formTitle(name), FormPage{
			Action:   action,
			FormType: name,
			Fields:   descriptor,
		}), nil
	}
}

// handleParameterizedForm shows the run form of a service, built from its
// YAML field list.
func handleParameterizedForm(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		service, err := fetchService(s, c, c.Var("id"), "run")
		if err != nil {
			return nil, err
		}
		descriptor, err := forms.Parse([]byte(service.ParameterizedForm))
		if err != nil {
			return nil, err
		}
		return pipeline.Page("form", service.Name, FormPage{
			Action: fmt.Sprintf("/run_service/%d", service.ID),
			Fields: descriptor,
		}), nil
	}
}

func handleHelp(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		title, body, err := s.Renderer.Help(c.Var("path"))
		if errors.Is(err, render.ErrHelpNotFound) {
			return nil, fmt.Errorf("%w: help page %s", store.ErrNotFound, c.Var("path"))
		}
		if err != nil {
			return nil, err
		}
		return pipeline.Page("help", title, HelpPage{Body: body}), nil
	}
}

func fetchService(s *server.Server, c *pipeline.Call, ref interface{}, verb string) (*model.Service, error) {
	obj, err := fetch(s, c, "service", ref, verb)
	if err != nil {
		return nil, err
	}
	service, ok := obj.(*model.Service)
	if !ok {
		return nil, fmt.Errorf("%w: service %v", store.ErrNotFound, ref)
	}
	return service, nil
}

// formTitle turns a form name such as "device" into "Device".
func formTitle(name string) string {
	title := strings.ReplaceAll(name, "_", " ")
	if title == "" {
		return title
	}
	return strings.ToUpper(title[:1]) + title[1:]
}
