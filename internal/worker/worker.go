// Package worker runs the rotation jobs received from a message queue
// and publishes an event when each job ends.
package worker

import (
	"context"
	"fmt"

	"github.com/airbusgeo/georotate/interface/messaging"
	"github.com/airbusgeo/georotate/internal/image"
	"github.com/airbusgeo/georotate/internal/log"
	"github.com/airbusgeo/georotate/internal/rotate"
	"github.com/airbusgeo/georotate/internal/utils"
	"go.uber.org/zap"
)

// Job is a rotation request
type Job struct {
	ID     string `json:"id"`
	Mode   string `json:"mode"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	// Theta defaults to the angle of the mode
	Theta          *float64 `json:"theta,omitempty"`
	Resampling     string   `json:"resampling,omitempty"`
	Workers        int      `json:"workers,omitempty"`
	Cog            bool     `json:"cog,omitempty"`
	CreationParams []string `json:"creation_options,omitempty"`
}

// Config returns the validated configuration of the job
func (j Job) Config() (rotate.Config, error) {
	if j.Mode != rotate.ModeTransform && j.Mode != rotate.ModeResample {
		return rotate.Config{}, fmt.Errorf("unknown mode %q", j.Mode)
	}
	cfg := rotate.Config{
		Theta:      rotate.DefaultTheta(j.Mode),
		InputPath:  j.Input,
		OutputPath: j.Output,
		Resampling: j.Resampling,
		Workers:    j.Workers,
	}
	if j.Cog && j.Mode == rotate.ModeTransform {
		return rotate.Config{}, fmt.Errorf("cog is only supported by the %s mode", rotate.ModeResample)
	}
	if j.Theta != nil {
		cfg.Theta = *j.Theta
	}
	for _, co := range j.CreationParams {
		if _, _, err := image.ParseCreationOption(co); err != nil {
			return rotate.Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

type Status string

const (
	StatusDone   Status = "DONE"
	StatusFailed Status = "FAILED"
)

// Event is published when a job ends
type Event struct {
	JobID  string `json:"job_id"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HandlerFactory returns the handler of a job
type HandlerFactory func(cog bool, creationParams []string) image.Handler

// Worker processes the jobs
type Worker struct {
	newHandler HandlerFactory
	publisher  messaging.Publisher
	retryCount int
}

// New creates a worker. publisher may be nil (no event is published).
// A job failing with a temporary error is retried retryCount times.
func New(newHandler HandlerFactory, publisher messaging.Publisher, retryCount int) *Worker {
	return &Worker{
		newHandler: newHandler,
		publisher:  publisher,
		retryCount: retryCount,
	}
}

// Run pulls and processes the jobs until ctx is done or the consumer fails
func (w *Worker) Run(ctx context.Context, consumer messaging.Consumer) error {
	for ctx.Err() == nil {
		if err := consumer.Pull(ctx, w.Process); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("consumer.pull: %w", err)
		}
	}
	return nil
}

// Process implements messaging.Callback.
// It returns a temporary error if the job must be retried, or an error if the message is unreadable.
func (w *Worker) Process(ctx context.Context, msg *messaging.Message) error {
	var job Job
	if err := msg.Decode(&job); err != nil {
		return err
	}
	ctx = log.With(ctx, "job", job.ID)

	if msg.Exhausted(w.retryCount) {
		return w.notify(ctx, job, fmt.Errorf("too many tries"))
	}

	cfg, err := job.Config()
	if err != nil {
		return w.notify(ctx, job, fmt.Errorf("invalid job: %w", err))
	}

	log.Logger(ctx).Sugar().Infof("got message id %s: %s %s", msg.ID, job.Mode, job.Input)
	handler := w.newHandler(job.Cog, job.CreationParams)
	if job.Mode == rotate.ModeTransform {
		err = handler.Transform(ctx, cfg)
	} else {
		err = handler.Resample(ctx, cfg)
	}

	if err != nil && utils.Temporary(err) && msg.TryCount < w.retryCount {
		log.Logger(ctx).Warn("temporary error", zap.Error(err))
		return err
	}
	return w.notify(ctx, job, err)
}

// notify publishes the end of the job
func (w *Worker) notify(ctx context.Context, job Job, jobErr error) error {
	evt := Event{JobID: job.ID, Input: job.Input, Output: job.Output, Status: StatusDone}
	if jobErr != nil {
		log.Logger(ctx).Error("job failed", zap.Error(jobErr))
		evt.Status = StatusFailed
		evt.Error = jobErr.Error()
	}
	if w.publisher == nil {
		return nil
	}
	if err := messaging.PublishJSON(ctx, w.publisher, evt); err != nil {
		return utils.MakeTemporary(fmt.Errorf("PublishEvent: %w", err))
	}
	return nil
}
