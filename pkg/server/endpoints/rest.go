package endpoints

import (
	"context"
	"strconv"

	"github.com/netops-labs/enms-in-go/pkg/audit"
	"github.com/netops-labs/enms-in-go/pkg/entity"
	"github.com/netops-labs/enms-in-go/pkg/forms"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
)

// TokenResponse is the body of /rest/token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// RegisterRESTEndpoints registers the /rest API.
func RegisterRESTEndpoints(s *server.Server) {
	p := s.Pipeline
	r := s.Router.PathPrefix("/rest").Subrouter()

	r.Handle("/is_alive", p.Handle(handleIsAlive(s))).Methods("GET")
	r.Handle("/instance/{type}/{name}", p.Handle(handleGetInstance(s))).Methods("GET")
	r.Handle("/query/{type}", p.Handle(handleQuery(s))).Methods("GET")
	r.Handle("/token", p.Handle(handleToken(s))).Methods("GET")
	r.Handle("/workers", p.Handle(handleWorkers(s))).Methods("GET")
	r.Handle("/result/{runtime}/{service}", p.Handle(handleResult(s))).Methods("GET")
	r.Handle("/instance/{type}", p.Handle(handleUpdate(s))).Methods("POST")
	r.Handle("/run_service", p.Handle(handleRESTRunService(s))).Methods("POST")
	r.Handle("/instance/{type}/{name}", p.Handle(handleDeleteInstance(s))).Methods("DELETE")

	unknown := p.Handle(handleUnknown())
	r.NotFoundHandler = unknown
	r.MethodNotAllowedHandler = unknown
}

func handleGetInstance(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		obj, err := fetch(s, c, c.Var("type"), c.Var("name"), "read")
		if err != nil {
			return nil, err
		}
		dict, err := s.Manager.ToDict(c.Context(), c.Session, obj, entity.DictOptions{RelationNamesOnly: true})
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(dict), nil
	}
}

// handleQuery lists the visible entities of a type. Query parameters
// filter on columns.
func handleQuery(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		ctx := c.Context()
		conditions := map[string]interface{}{}
		for key, values := range c.Request.URL.Query() {
			if len(values) > 0 {
				conditions[key] = values[0]
			}
		}
		objects, err := c.Session.FetchAll(ctx, c.Var("type"), conditions)
		if err != nil {
			return nil, err
		}
		objects = readable(s, c, objects)
		results := make([]map[string]interface{}, 0, len(objects))
		for _, obj := range objects {
			dict, err := s.Manager.ToDict(ctx, c.Session, obj, entity.DictOptions{RelationNamesOnly: true})
			if err != nil {
				return nil, err
			}
			results = append(results, dict)
		}
		return pipeline.JSON(results), nil
	}
}

func handleToken(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		user := c.User()
		raw, err := s.Tokens.Issue(user.ID)
		if err != nil {
			return nil, err
		}
		event := audit.TokenEvent{User: user.Name, ClientIP: c.Identity.Client(), Issued: true}
		c.OnCommit(func(ctx context.Context) { s.Audit.Log(ctx, event) })
		return pipeline.JSON(TokenResponse{
			Token:     raw,
			ExpiresIn: int(s.Tokens.TTL().Seconds()),
		}), nil
	}
}

// handleResult returns the job log lines of a run, from start_line on.
func handleResult(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		start := 0
		if raw := c.Request.URL.Query().Get("start_line"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, &forms.ValidationError{
					Form:   "result",
					Errors: map[string][]string{"start_line": {"Not a valid integer value."}},
				}
			}
			start = n
		}
		lines, err := s.Coordinator.Logs(c.Context(), c.Var("runtime"), c.Var("service"), start)
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(map[string]interface{}{"logs": lines}), nil
	}
}

// handleRESTRunService runs the service named in the body. The payload is
// the "payload" object when given, the rest of the body otherwise.
func handleRESTRunService(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		values, err := readValues(c.Request)
		if err != nil {
			return nil, err
		}
		name, _ := values["name"].(string)
		if name == "" {
			return nil, &forms.ValidationError{
				Form:   "run_service",
				Errors: map[string][]string{"name": {forms.RequiredMessage}},
			}
		}
		service, err := fetchService(s, c, name, "run")
		if err != nil {
			return nil, err
		}
		payload, ok := values["payload"].(map[string]interface{})
		if !ok {
			delete(values, "name")
			payload = values
		}
		result, err := runService(s, c, service, payload)
		if err != nil {
			return nil, err
		}
		return pipeline.JSON(result), nil
	}
}

func handleDeleteInstance(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		return deleteInstance(s, c, c.Var("name"))
	}
}
