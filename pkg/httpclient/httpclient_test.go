package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrying(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log, _ := test.NewNullLogger()
	clients := New(Options{Retries: 3, PoolSize: 4}, log)

	resp, err := clients.Retrying().Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	atomic.StoreInt32(&calls, 0)
	resp, err = clients.Pooled().Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestPoolSize(t *testing.T) {
	log, _ := test.NewNullLogger()
	clients := New(Options{PoolSize: 7}, log)
	transport := clients.Pooled().Transport.(*http.Transport)
	assert.Equal(t, 7, transport.MaxIdleConnsPerHost)
}

func TestLeveledLogger(t *testing.T) {
	log, hook := test.NewNullLogger()
	leveled{log: log}.Warn("retrying", "url", "http://x", "attempt")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "http://x", hook.LastEntry().Data["url"])
	assert.Len(t, hook.LastEntry().Data, 1)
}
