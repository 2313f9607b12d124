package workers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisOptions configures the shared coordinator.
type RedisOptions struct {
	Addr       string
	MaxRetries int
	PoolSize   int
}

// LogTTL is how long Redis keeps a run log after its last line.
const LogTTL = 24 * time.Hour

// RedisCoordinator keeps counters under workers/{pid}/{job} and job logs
// in lists under {runtime}/{service}/logs.
type RedisCoordinator struct {
	client *redis.Client
	pid    string
}

var _ Coordinator = (*RedisCoordinator)(nil)

// NewRedisCoordinator connects to Redis and checks the connection.
func NewRedisCoordinator(ctx context.Context, opts RedisOptions) (*RedisCoordinator, error) {
	options := &redis.Options{
		Addr:         opts.Addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
	if opts.MaxRetries > 0 {
		options.MaxRetries = opts.MaxRetries
	}
	if opts.PoolSize > 0 {
		options.PoolSize = opts.PoolSize
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCoordinator{client: client, pid: processID()}, nil
}

func (r *RedisCoordinator) jobKey(job string) string {
	return "workers/" + r.pid + "/" + job
}

func (r *RedisCoordinator) StartJob(ctx context.Context, job string) error {
	if err := r.client.Incr(ctx, r.jobKey(job)).Err(); err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	return nil
}

func (r *RedisCoordinator) EndJob(ctx context.Context, job string) error {
	if err := r.client.Decr(ctx, r.jobKey(job)).Err(); err != nil {
		return fmt.Errorf("redis decr failed: %w", err)
	}
	return nil
}

func (r *RedisCoordinator) Workers(ctx context.Context) (map[string]Worker, error) {
	workers := map[string]Worker{}
	keys, err := r.client.Keys(ctx, "workers/*").Result()
	if err != nil {
		return nil, fmt.Errorf("redis keys failed: %w", err)
	}
	if len(keys) == 0 {
		return workers, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	for i, key := range keys {
		raw, ok := values[i].(string)
		if !ok {
			continue
		}
		count, err := strconv.Atoi(raw)
		if err != nil || count == 0 {
			continue
		}
		parts := strings.SplitN(key, "/", 3)
		if len(parts) != 3 {
			continue
		}
		worker, ok := workers[parts[1]]
		if !ok {
			worker = Worker{Jobs: Jobs{}}
			workers[parts[1]] = worker
		}
		worker.Jobs[parts[2]] = count
	}
	return workers, nil
}

func (r *RedisCoordinator) AppendLog(ctx context.Context, runtime, service, line string) error {
	key := logKey(runtime, service)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, line)
		pipe.Expire(ctx, key, LogTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis lpush failed: %w", err)
	}
	return nil
}

func (r *RedisCoordinator) Logs(ctx context.Context, runtime, service string, startLine int) ([]string, error) {
	lines, err := r.client.LRange(ctx, logKey(runtime, service), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange failed: %w", err)
	}
	// LPUSH stores the newest line first.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return fromLine(lines, startLine), nil
}

func (r *RedisCoordinator) Close() error {
	return r.client.Close()
}

func logKey(runtime, service string) string {
	return runtime + "/" + service + "/logs"
}
