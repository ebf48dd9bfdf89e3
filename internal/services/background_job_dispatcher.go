package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const jobEventQueued = "job.queued"

// ErrJobInvalidInput indicates required fields were missing from the job.
var ErrJobInvalidInput = errors.New("job: invalid input")

// JobPublisher delivers job messages to the background queue.
type JobPublisher interface {
	PublishJob(ctx context.Context, message JobMessage) (string, error)
	Close(ctx context.Context) error
}

// JobMessage is the payload delivered to background workers via Pub/Sub.
type JobMessage struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Payload  map[string]any `json:"payload,omitempty"`
	QueuedAt time.Time      `json:"queuedAt"`
}

// BackgroundJobDispatcherDeps enumerates collaborators required to construct the dispatcher.
type BackgroundJobDispatcherDeps struct {
	Publisher   JobPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type backgroundJobDispatcher struct {
	publisher JobPublisher
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ BackgroundJobDispatcher = (*backgroundJobDispatcher)(nil)

// NewBackgroundJobDispatcher wires dependencies into a BackgroundJobDispatcher implementation.
func NewBackgroundJobDispatcher(deps BackgroundJobDispatcherDeps) (BackgroundJobDispatcher, error) {
	if deps.Publisher == nil {
		return nil, errors.New("background job dispatcher: publisher is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "job_" + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &backgroundJobDispatcher{
		publisher: deps.Publisher,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (d *backgroundJobDispatcher) Dispatch(ctx context.Context, job BackgroundJob) error {
	kind := strings.TrimSpace(job.Kind)
	if kind == "" {
		return fmt.Errorf("%w: kind is required", ErrJobInvalidInput)
	}

	msg := JobMessage{
		ID:       d.newID(),
		Kind:     kind,
		Payload:  copyMap(job.Payload),
		QueuedAt: d.clock(),
	}

	messageID, err := d.publisher.PublishJob(ctx, msg)
	if err != nil {
		return fmt.Errorf("publish job %s: %w", kind, err)
	}

	d.logger(ctx, jobEventQueued, map[string]any{
		"job_id":     msg.ID,
		"kind":       kind,
		"message_id": messageID,
	})
	return nil
}

func (d *backgroundJobDispatcher) Close(ctx context.Context) error {
	return d.publisher.Close(ctx)
}

func copyMap(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
