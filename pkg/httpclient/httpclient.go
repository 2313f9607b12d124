// Package httpclient builds the outbound HTTP clients shared by the
// secret service and external authentication methods.
package httpclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
)

// Options size the connection pool and retry policy.
type Options struct {
	Retries  int
	PoolSize int
	Timeout  time.Duration
}

// Clients holds one pooled transport used plain or with retries.
type Clients struct {
	pooled   *http.Client
	retrying *http.Client
}

// New creates the clients. Retries apply to connection errors and 5xx
// responses of idempotent requests as decided by retryablehttp.
func New(opts Options, log *logrus.Logger) *Clients {
	pooled := cleanhttp.DefaultPooledClient()
	if transport, ok := pooled.Transport.(*http.Transport); ok && opts.PoolSize > 0 {
		transport.MaxIdleConnsPerHost = opts.PoolSize
		transport.MaxConnsPerHost = opts.PoolSize
	}
	if opts.Timeout > 0 {
		pooled.Timeout = opts.Timeout
	}

	retrying := retryablehttp.NewClient()
	retrying.HTTPClient = pooled
	retrying.RetryMax = opts.Retries
	retrying.RetryWaitMin = 100 * time.Millisecond
	retrying.RetryWaitMax = 2 * time.Second
	retrying.Logger = leveled{log: log}

	return &Clients{pooled: pooled, retrying: retrying.StandardClient()}
}

// Pooled returns the client without retries, for callers with their own
// retry logic.
func (c *Clients) Pooled() *http.Client {
	return c.pooled
}

// Retrying returns the client that retries failed requests.
func (c *Clients) Retrying() *http.Client {
	return c.retrying
}

// leveled adapts logrus to retryablehttp.LeveledLogger.
type leveled struct {
	log *logrus.Logger
}

func (l leveled) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}
	return l.log.WithFields(fields)
}

func (l leveled) Error(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Error(msg)
}

func (l leveled) Info(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Debug(msg)
}

func (l leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.entry(keysAndValues).Warn(msg)
}
