package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tidwall/gjson"

	"gateway-console/pkg/api"
	"gateway-console/pkg/telemetry"
)

// Job types understood by the gateway.
const (
	TypeScan         = "scan"
	TypeReboot       = "reboot"
	TypeFactoryReset = "factory_reset"
	TypeUpdate       = "update"
	TypeLQIRefresh   = "lqi_refresh"
)

// Job states.
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
)

const (
	reasonTimeout   = "timeout"
	reasonCancelled = "cancelled"
	reasonFallback  = "job failed"
)

// Channel is the request/response side of the gateway used to drive jobs.
// *api.Client implements it.
type Channel interface {
	SubmitJob(ctx context.Context, req api.JobRequest) (api.JobSubmitResponse, error)
	Job(ctx context.Context, id int64) (api.JobStatus, error)
}

// Options for one submission. Zero fields take the orchestrator defaults.
type Options struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Label        string
}

func DefaultOptions() Options {
	return Options{
		Timeout:      30 * time.Second,
		PollInterval: 600 * time.Millisecond,
	}
}

// Orchestrator submits jobs and polls them to a terminal state. At most one
// job per type is outstanding at a time.
type Orchestrator struct {
	ch       Channel
	defaults Options
	pub      telemetry.TelemetryPublisher
	logger   *log.Logger

	active *xsync.MapOf[string, string]

	clock telemetry.Clock
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

// NewOrchestrator creates an orchestrator. pub and logger may be nil.
func NewOrchestrator(ch Channel, defaults Options, pub telemetry.TelemetryPublisher, logger *log.Logger) *Orchestrator {
	def := DefaultOptions()
	if defaults.Timeout <= 0 {
		defaults.Timeout = def.Timeout
	}
	if defaults.PollInterval <= 0 {
		defaults.PollInterval = def.PollInterval
	}
	if pub == nil {
		pub = telemetry.NewNoopPublisher()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Orchestrator{
		ch:       ch,
		defaults: defaults,
		pub:      pub,
		logger:   logger,
		active:   xsync.NewMapOf[string, string](),
		clock:    telemetry.RealClock{},
		sleep:    sleepCtx,
		newID:    uuid.NewString,
	}
}

// Active reports whether a job of jobType is outstanding.
func (o *Orchestrator) Active(jobType string) bool {
	_, ok := o.active.Load(jobType)
	return ok
}

// Submit posts a job and polls it until it succeeds, fails, times out or ctx
// is cancelled. On success the raw result payload is returned.
func (o *Orchestrator) Submit(ctx context.Context, jobType string, payload map[string]any, opts Options) (json.RawMessage, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = o.defaults.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = o.defaults.PollInterval
	}

	requestID := o.newID()
	if _, loaded := o.active.LoadOrStore(jobType, requestID); loaded {
		return nil, fmt.Errorf("%s: %w", jobType, ErrJobInProgress)
	}
	defer o.active.Delete(jobType)

	resp, err := o.ch.SubmitJob(ctx, api.JobRequest{Type: jobType, Payload: payload, RequestID: requestID})
	if err != nil {
		return nil, fmt.Errorf("submit %s job: %w", jobType, err)
	}
	if resp.JobID <= 0 {
		return nil, fmt.Errorf("submit %s job: %w", jobType, ErrInvalidJobID)
	}

	t := &tracker{o: o, id: resp.JobID, jobType: jobType, label: opts.Label, requestID: requestID}
	t.publish(StateQueued, "")
	o.logger.Printf("job %d (%s) queued, request %s", resp.JobID, jobType, requestID)

	start := o.clock.Now()
	for {
		st, err := o.ch.Job(ctx, resp.JobID)
		if err != nil {
			t.abandon(ctx, err)
			return nil, fmt.Errorf("poll %s job %d: %w", jobType, resp.JobID, err)
		}

		switch {
		case st.State == StateSucceeded:
			t.observe(StateSucceeded)
			o.logger.Printf("job %d (%s) succeeded", resp.JobID, jobType)
			return st.Result, nil
		case st.State == StateFailed || st.Done:
			reason := failureReason(st)
			t.publish(StateFailed, reason)
			o.logger.Printf("job %d (%s) failed: %s", resp.JobID, jobType, reason)
			return nil, &JobFailedError{JobID: resp.JobID, Type: jobType, Reason: reason}
		default:
			t.observe(st.State)
		}

		if o.clock.Now().Sub(start) >= opts.Timeout {
			t.publish(StateFailed, reasonTimeout)
			o.logger.Printf("job %d (%s) timed out after %s", resp.JobID, jobType, opts.Timeout)
			return nil, fmt.Errorf("%s job %d: %w", jobType, resp.JobID, ErrJobTimeout)
		}
		if err := o.sleep(ctx, opts.PollInterval); err != nil {
			t.abandon(ctx, err)
			return nil, err
		}
	}
}

// tracker deduplicates state notifications for one job and ignores
// observations that would move the state backwards.
type tracker struct {
	o         *Orchestrator
	id        int64
	jobType   string
	label     string
	requestID string
	last      string
}

func (t *tracker) observe(state string) {
	if state == "" || state == t.last {
		return
	}
	if stateRank(state) < stateRank(t.last) {
		t.o.logger.Printf("job %d: ignoring state %s after %s", t.id, state, t.last)
		return
	}
	t.publish(state, "")
}

// abandon closes out a job the client stopped polling, so listeners do not
// keep it active.
func (t *tracker) abandon(ctx context.Context, err error) {
	reason := err.Error()
	if ctx.Err() != nil {
		reason = reasonCancelled
	}
	t.o.logger.Printf("job %d (%s) abandoned: %s", t.id, t.jobType, reason)
	t.publish(StateFailed, reason)
}

func (t *tracker) publish(state, reason string) {
	t.last = state
	t.o.pub.Publish(telemetry.NewJobStateChanged(t.id, t.jobType, t.label, state, reason, t.requestID))
}

func stateRank(state string) int {
	switch state {
	case "":
		return -1
	case StateQueued:
		return 0
	case StateSucceeded, StateFailed:
		return 2
	default:
		return 1
	}
}

// failureReason prefers result.error, then a top-level error string or
// error.message.
func failureReason(st api.JobStatus) string {
	if len(st.Result) > 0 {
		if r := gjson.GetBytes(st.Result, "error"); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	if len(st.Error) > 0 {
		e := gjson.ParseBytes(st.Error)
		if e.Type == gjson.String && e.Str != "" {
			return e.Str
		}
		if m := e.Get("message"); m.Type == gjson.String && m.Str != "" {
			return m.Str
		}
	}
	return reasonFallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
