package endpoints

import (
	"fmt"
	"os"

	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/pipeline"
)

// Version is reported by is_alive. It is set at link time.
var Version = "dev"

// StatusResponse is the body of /rest/is_alive.
type StatusResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// handleIsAlive answers once the database is reachable.
func handleIsAlive(s *server.Server) pipeline.Handler {
	return func(c *pipeline.Call) (pipeline.Result, error) {
		if err := s.Store.CheckConnectivity(c.Context()); err != nil {
			return nil, fmt.Errorf("database connectivity check failed: %w", err)
		}
		name, err := os.Hostname()
		if err != nil {
			name = "unknown"
		}
		return pipeline.JSON(StatusResponse{
			Name:    name,
			Version: Version,
			Status:  "ok",
		}), nil
	}
}
