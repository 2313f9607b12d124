// Package workers tracks running jobs and their log queues.
//
// A Coordinator holds per-process job counters and per-run log lines.
// RedisCoordinator shares them between processes; MemoryCoordinator keeps
// them in the current process when no Redis address is configured.
// Services are run through an Executor.
package workers
