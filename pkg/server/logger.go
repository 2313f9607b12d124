package server

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/netops-labs/enms-in-go/pkg/config"
)

// NewLogger builds the application logger from the log_level and
// log_format settings.
func NewLogger(cfg *config.Config, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	switch cfg.LogFormat {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return log, nil
}
