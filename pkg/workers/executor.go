package workers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/netops-labs/enms-in-go/pkg/model"
)

// RuntimeFormat is the layout of run identifiers.
const RuntimeFormat = "2006-01-02 15:04:05.000000"

// Job is a request to run a service.
type Job struct {
	Service *model.Service
	Payload map[string]interface{}
	User    string
}

// Result is returned to the caller of a run.
type Result map[string]interface{}

// Executor runs services. Device protocol handling lives behind this
// interface, outside this module.
type Executor interface {
	Run(ctx context.Context, job Job) (Result, error)
}

// Recorder is the executor used when no engine is plugged in. It tracks
// the run in the coordinator and logs its targets without contacting
// any device.
type Recorder struct {
	coordinator Coordinator
	log         *logrus.Logger
	now         func() time.Time
}

var _ Executor = (*Recorder)(nil)

func NewRecorder(coordinator Coordinator, log *logrus.Logger) *Recorder {
	return &Recorder{coordinator: coordinator, log: log, now: time.Now}
}

func (r *Recorder) Run(ctx context.Context, job Job) (Result, error) {
	service := job.Service
	runtime := r.now().UTC().Format(RuntimeFormat)
	serviceID := strconv.FormatUint(uint64(service.ID), 10)

	if err := r.coordinator.StartJob(ctx, service.Name); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.coordinator.EndJob(ctx, service.Name); err != nil {
			r.log.WithError(err).WithField("service", service.Name).Error("failed to release job counter")
		}
	}()

	logf := func(format string, args ...interface{}) error {
		line := fmt.Sprintf("%s - %s - %s", r.now().UTC().Format(RuntimeFormat), job.User, fmt.Sprintf(format, args...))
		return r.coordinator.AppendLog(ctx, runtime, serviceID, line)
	}

	if err := logf("RUNNING %s", service.Name); err != nil {
		return nil, err
	}
	targets := make([]string, 0, len(service.Devices))
	for _, device := range service.Devices {
		targets = append(targets, device.Name)
		if err := logf("target device %s", device.Name); err != nil {
			return nil, err
		}
	}
	for _, pool := range service.Pools {
		if err := logf("target pool %s", pool.Name); err != nil {
			return nil, err
		}
	}
	if err := logf("FINISHED %s", service.Name); err != nil {
		return nil, err
	}

	r.log.WithFields(logrus.Fields{
		"service": service.Name,
		"runtime": runtime,
		"user":    job.User,
	}).Info("service run recorded")

	return Result{
		"success":    true,
		"runtime":    runtime,
		"service":    service.Name,
		"service_id": serviceID,
		"targets":    targets,
		"payload":    job.Payload,
	}, nil
}
