package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kiranshivaraju/pixelrelay/pkg/models"
)

// ErrWaitExhausted is returned by Wait when the job is still pending after MaxAttempts polls.
var ErrWaitExhausted = errors.New("prediction still pending after max attempts")

var errPending = errors.New("pending")

// WaitOptions bounds a Wait loop.
type WaitOptions struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultWaitOptions polls for roughly five minutes.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		MaxAttempts:     60,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      1.5,
	}
}

func (o WaitOptions) withDefaults() WaitOptions {
	d := DefaultWaitOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = d.InitialInterval
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = d.MaxInterval
	}
	if o.MaxInterval < o.InitialInterval {
		o.MaxInterval = o.InitialInterval
	}
	if o.Multiplier < 1 {
		o.Multiplier = d.Multiplier
	}
	return o
}

// Wait polls Status until the job is terminal, an error occurs, ctx is done or
// MaxAttempts polls have been made. On exhaustion the last pending status is
// returned together with ErrWaitExhausted.
//
// The HTTP endpoints never call Wait; it exists for callers that own the polling cadence.
func (s *Service) Wait(ctx context.Context, id string, opts WaitOptions) (*models.JobStatus, error) {
	opts = opts.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.InitialInterval
	eb.MaxInterval = opts.MaxInterval
	eb.Multiplier = opts.Multiplier
	eb.RandomizationFactor = 0.1
	eb.MaxElapsedTime = 0
	eb.Reset()
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if opts.MaxAttempts > 1 {
		// WithMaxRetries treats 0 as unlimited.
		policy = backoff.WithMaxRetries(eb, uint64(opts.MaxAttempts-1))
	}
	b := backoff.WithContext(policy, ctx)

	var last *models.JobStatus
	op := func() error {
		st, err := s.Status(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = st
		if !st.Done() {
			return errPending
		}
		return nil
	}
	notify := func(_ error, next time.Duration) {
		slog.Debug("prediction pending", "id", id, "label", last.Label, "next_poll", next)
	}

	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return last, nil
	case errors.Is(err, errPending):
		return last, fmt.Errorf("%w: %s", ErrWaitExhausted, id)
	default:
		return last, err
	}
}
