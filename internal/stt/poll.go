package stt

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/sesimlab/counselvoice/internal/apperrors"
)

const (
	// DefaultPollInterval is the fixed wait between vendor status checks.
	DefaultPollInterval = 10 * time.Second
	// DefaultPollTimeout is the absolute ceiling on one vendor job.
	DefaultPollTimeout = 6 * time.Hour
)

// errStillPending signals the poll function that the vendor job has not
// reached a terminal state yet.
var errStillPending = errors.New("stt: job still pending")

// Pending is returned by a PollFunc to request another poll cycle.
func Pending() error { return errStillPending }

// PollFunc checks vendor job status once. It returns nil when the job is
// done, Pending() to keep polling, or any other error to stop permanently.
type PollFunc func(ctx context.Context) error

// PollUntil drives a vendor job's status checks at a fixed interval until
// the job finishes, fails, or the absolute timeout elapses. A timeout is
// reported as a retryable TIMEOUT-class error so the upload ledger records
// it distinctly from vendor rejections.
func PollUntil(ctx context.Context, vendor string, interval, timeout time.Duration, fn PollFunc) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	operation := func() error {
		err := fn(ctx)
		if errors.Is(err, errStillPending) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	err := backoff.Retry(operation, b)
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errStillPending) {
		return apperrors.Timeout("transcription job for vendor " + vendor)
	}
	return err
}
