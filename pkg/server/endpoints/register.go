package endpoints

import (
	"fmt"

	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
	"github.com/netops-labs/enms-in-go/pkg/server/store"
)

// RegisterAll registers every route on the server. /metrics is served
// outside the request pipeline. Paths and methods without a route still
// go through the pipeline, which answers them as not found.
func RegisterAll(srv *server.Server) {
	srv.Router.Handle("/metrics", srv.Metrics.Handler()).Methods("GET")

	RegisterRESTEndpoints(srv)
	RegisterControllerEndpoints(srv)
	RegisterPageEndpoints(srv)

	unknown := srv.Pipeline.Handle(handleUnknown())
	srv.Router.NotFoundHandler = unknown
	srv.Router.MethodNotAllowedHandler = unknown
}

func handleUnknown() pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, c.Request.Method, c.Request.URL.Path)
	}
}
