package integration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/netops-labs/enms-in-go/pkg/config"
	enmsdb "github.com/netops-labs/enms-in-go/pkg/db"
	"github.com/netops-labs/enms-in-go/pkg/server"
	"github.com/netops-labs/enms-in-go/pkg/server/endpoints"
)

var (
	secretKey = []byte("integration-secret-key-0123456789")
	dataKey   = []byte("0123456789abcdef0123456789abcdef")
)

// TestContext holds the containers and the server under test.
//
// Admin is an in-process server on the same database, used to seed and
// inspect data whether the server under test runs inline or as a binary.
type TestContext struct {
	Postgres    testcontainers.Container
	Redis       testcontainers.Container
	DatabaseURL string
	RedisAddr   string
	ServerURL   string
	Admin       *server.Server
	HTTPClient  *http.Client

	inline  *server.Server
	process *exec.Cmd
	cancel  context.CancelFunc
}

// NewTestContext starts PostgreSQL and Redis containers, migrates the
// schema and starts the server.
// Modes:
//   - Inline mode (default): the server runs in-process
//   - Binary mode: set ENMS_BINARY to the path of the enmsctl binary
func NewTestContext(ctx context.Context) (*TestContext, error) {
	tc := &TestContext{HTTPClient: &http.Client{Timeout: 10 * time.Second}}

	pg, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("enms_test"),
		tcpostgres.WithUsername("enms"),
		tcpostgres.WithPassword("enms"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}
	tc.Postgres = pg
	if tc.DatabaseURL, err = pg.ConnectionString(ctx, "sslmode=disable"); err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	redis, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}
	tc.Redis = redis
	if tc.RedisAddr, err = redis.PortEndpoint(ctx, "6379/tcp", ""); err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("failed to get redis address: %w", err)
	}

	if err := migrate(tc.DatabaseURL); err != nil {
		tc.Close(ctx)
		return nil, err
	}

	if tc.Admin, err = tc.newServer(ctx, "127.0.0.1:0"); err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("failed to assemble admin server: %w", err)
	}

	port, err := freePort()
	if err != nil {
		tc.Close(ctx)
		return nil, err
	}
	tc.ServerURL = fmt.Sprintf("http://127.0.0.1:%d", port)

	if binary := os.Getenv("ENMS_BINARY"); binary != "" {
		log.Printf("Using binary: %s", binary)
		err = tc.startBinary(binary, port)
	} else {
		log.Println("Using inline server mode")
		err = tc.startInline(ctx, port)
	}
	if err != nil {
		tc.Close(ctx)
		return nil, err
	}

	if err := waitForServer(tc.ServerURL, 30*time.Second); err != nil {
		tc.Close(ctx)
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}
	return tc, nil
}

func migrate(url string) error {
	m, err := enmsdb.NewMigrator(url)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	if _, err := m.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (tc *TestContext) newServer(ctx context.Context, addr string) (*server.Server, error) {
	cfg := config.Default()
	cfg.RBACPath = os.DevNull + ".missing"
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return server.New(ctx, server.Options{
		Config:      cfg,
		Log:         log,
		DatabaseURL: tc.DatabaseURL,
		SecretKey:   secretKey,
		DataKey:     dataKey,
		RedisAddr:   tc.RedisAddr,
		Addr:        addr,
	})
}

func (tc *TestContext) startInline(ctx context.Context, port int) error {
	s, err := tc.newServer(ctx, fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("failed to start inline server: %w", err)
	}
	endpoints.RegisterAll(s)
	tc.inline = s
	go func() {
		if err := s.Start(); err != nil {
			log.Printf("inline server stopped: %v", err)
		}
	}()
	return nil
}

func (tc *TestContext) startBinary(binary string, port int) error {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, binary, "server", "--no-migrate", "-b", "127.0.0.1", "-p", fmt.Sprint(port))
	cmd.Env = append(os.Environ(),
		"DATABASE_URL="+tc.DatabaseURL,
		"REDIS_ADDR="+tc.RedisAddr,
		"SECRET_KEY="+string(secretKey),
		"ENMS_DATA_KEY="+base64.StdEncoding.EncodeToString(dataKey),
		"ENMS_RBAC_PATH="+os.DevNull+".missing",
	)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start binary: %w", err)
	}
	tc.process = cmd
	tc.cancel = cancel
	return nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to allocate a port: %w", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitForServer polls is_alive until it answers 200 or times out.
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/rest/is_alive")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close stops the server and terminates the containers.
func (tc *TestContext) Close(ctx context.Context) {
	if tc.inline != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := tc.inline.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("inline server shutdown: %v", err)
		}
		cancel()
	}
	if tc.cancel != nil {
		tc.cancel()
	}
	if tc.process != nil && tc.process.Process != nil {
		_ = tc.process.Process.Kill()
		_ = tc.process.Wait()
	}
	if tc.Admin != nil {
		_ = tc.Admin.Shutdown(ctx)
	}
	for _, c := range []testcontainers.Container{tc.Redis, tc.Postgres} {
		if c != nil {
			_ = c.Terminate(ctx)
		}
	}
}
