package driver

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrOutOfDate means the swapchain no longer matches the surface and
	// must be recreated before further use.
	ErrOutOfDate = errors.New("swapchain out of date")
	// ErrSuboptimal means the swapchain still works but no longer matches
	// the surface exactly.
	ErrSuboptimal = errors.New("swapchain suboptimal")
	ErrTimeout    = errors.New("timeout expired")
	ErrNotReady   = errors.New("not ready")

	ErrSurfaceLost   = errors.New("surface lost")
	ErrDeviceLost    = errors.New("device lost")
	ErrNoDevice      = errors.New("no suitable device")
	ErrUnknownHandle = errors.New("unknown handle")

	// ErrFatal marks errors the frame loop must not recover from.
	ErrFatal = errors.New("fatal driver error")
)

// Outcome is the tagged result of a driver call.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeStale asks for swapchain recreation.
	OutcomeStale
	// OutcomeTimeout asks the caller to try again later.
	OutcomeTimeout
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeStale:
		return "stale"
	case OutcomeTimeout:
		return "timeout"
	}
	return "fatal"
}

// Classify maps an error returned by a device call to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrFatal):
		return OutcomeFatal
	case errors.Is(err, ErrOutOfDate), errors.Is(err, ErrSuboptimal):
		return OutcomeStale
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrNotReady):
		return OutcomeTimeout
	}
	return OutcomeFatal
}

// Fatal marks err so Classify reports OutcomeFatal regardless of its cause.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(err, ErrFatal)
}
